package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"localchat/internal/app"
	"localchat/internal/transport/http/response"
)

type SessionHandler struct {
	chatService *app.ChatService
}

func NewSessionHandler(chatService *app.ChatService) *SessionHandler {
	return &SessionHandler{chatService: chatService}
}

func (h *SessionHandler) List(c *gin.Context) {
	ids, err := h.chatService.ListSessions()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list sessions failed")
		return
	}
	response.OK(c, gin.H{"session_ids": ids})
}

func (h *SessionHandler) Delete(c *gin.Context) {
	sessionID := c.Param("id")
	if err := h.chatService.DeleteSession(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session id")
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete session failed")
		return
	}
	response.OK(c, gin.H{"deleted_session_id": sessionID})
}

func (h *SessionHandler) Messages(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == app.NewSessionID {
		response.OK(c, gin.H{"messages": []MessageView{}})
		return
	}

	messages, err := h.chatService.GetMessages(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "load messages failed")
		return
	}
	response.OK(c, gin.H{"messages": toMessageViews(messages)})
}
