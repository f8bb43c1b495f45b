package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"localchat/internal/app"
	"localchat/internal/transport/http/response"
)

type ModelHandler struct {
	chatService *app.ChatService
}

type PullModelRequest struct {
	Model     string `json:"model" binding:"required"`
	Stream    bool   `json:"stream"`
	Async     bool   `json:"async"`
	SessionID string `json:"session_id"`
}

func NewModelHandler(chatService *app.ChatService) *ModelHandler {
	return &ModelHandler{chatService: chatService}
}

func (h *ModelHandler) List(c *gin.Context) {
	response.OK(c, gin.H{"models": h.chatService.Models(c.Request.Context())})
}

// Pull downloads a model. The caller chooses the execution mode
// explicitly: async submits a background task and returns immediately,
// stream sends progress lines over SSE, otherwise the request blocks
// until the pull resolves and the status text is returned.
func (h *ModelHandler) Pull(c *gin.Context) {
	var req PullModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	if req.Async {
		status := h.chatService.SchedulePull(c.Request.Context(), req.SessionID, req.Model)
		response.OK(c, gin.H{"status": status})
		return
	}

	if !req.Stream {
		status := h.chatService.PullModel(c.Request.Context(), req.Model, false, nil)
		response.OK(c, gin.H{"status": status})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	status := h.chatService.PullModel(c.Request.Context(), req.Model, true, func(chunk string) {
		if _, err := c.Writer.Write([]byte("data: " + sanitizeSSE(chunk) + "\n\n")); err == nil {
			flusher.Flush()
		}
	})

	if _, err := c.Writer.Write([]byte("event: done\ndata: " + sanitizeSSE(status) + "\n\n")); err == nil {
		flusher.Flush()
	}
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	replaced = strings.ReplaceAll(replaced, "\n", "\\n")
	return replaced
}
