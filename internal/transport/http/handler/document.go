package handler

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"localchat/internal/app"
	"localchat/internal/transport/http/response"
)

const maxPDFSize = 10 << 20 // 10 MB

type DocumentHandler struct {
	ingestService *app.IngestService
}

func NewDocumentHandler(ingestService *app.IngestService) *DocumentHandler {
	return &DocumentHandler{ingestService: ingestService}
}

// Upload accepts a multipart form with one or more "files" PDF uploads
// and ingests the whole batch into the vector store.
func (h *DocumentHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid multipart form")
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing files")
		return
	}

	pdfs := make([][]byte, 0, len(files))
	for _, file := range files {
		if file.Size > maxPDFSize {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large (max 10MB): "+file.Filename)
			return
		}
		if strings.ToLower(filepath.Ext(file.Filename)) != ".pdf" {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "only PDF files are allowed: "+file.Filename)
			return
		}
		data, err := readMultipartFile(file)
		if err != nil {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, err.Error())
			return
		}
		pdfs = append(pdfs, data)
	}

	chunkCount, err := h.ingestService.IngestPDFs(c.Request.Context(), pdfs)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrNoExtractableText):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ingest failed: "+err.Error())
		}
		return
	}

	response.OK(c, gin.H{
		"documents":   len(pdfs),
		"chunk_count": chunkCount,
	})
}
