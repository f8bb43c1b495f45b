package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"localchat/internal/app"
	"localchat/internal/transport/http/response"
)

const (
	maxImageSize = 5 << 20  // 5 MB
	maxAudioSize = 20 << 20 // 20 MB
)

type ChatHandler struct {
	chatService *app.ChatService
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Send handles one user turn. The request is a multipart form carrying
// the serialized session state, the text input and optional image and
// audio uploads.
func (h *ChatHandler) Send(c *gin.Context) {
	state := app.SessionState{
		Selected:   c.PostForm("selected"),
		PendingNew: c.PostForm("pending_new"),
	}

	image, err := readUpload(c, "image", maxImageSize)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}
	audio, err := readUpload(c, "audio", maxAudioSize)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}

	result, err := h.chatService.HandleTurn(c.Request.Context(), app.TurnInput{
		State:   state,
		Text:    c.PostForm("text"),
		Image:   image,
		Audio:   audio,
		Model:   c.PostForm("model"),
		DocChat: c.PostForm("doc_chat") == "true" || c.PostForm("doc_chat") == "1",
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrEmptyTurn), errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrAudioUnavailable):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "chat turn failed")
		}
		return
	}

	response.OK(c, gin.H{
		"state":      result.State,
		"session_id": result.SessionID,
		"reply":      result.Reply,
		"messages":   toMessageViews(result.Messages),
	})
}

func readUpload(c *gin.Context, field string, maxSize int64) ([]byte, error) {
	file, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, errors.New("malformed " + field + " upload")
	}
	if file.Size > maxSize {
		return nil, errors.New(field + " upload too large")
	}
	return readMultipartFile(file)
}

func readMultipartFile(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, errors.New("failed to open uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.New("failed to read uploaded file")
	}
	return data, nil
}
