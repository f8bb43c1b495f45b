package handler

import (
	"encoding/base64"

	"localchat/internal/model"
)

// MessageView is the wire form of a stored message: text inline, image
// and audio payloads base64-encoded.
type MessageView struct {
	MessageID   uint   `json:"message_id"`
	SenderType  string `json:"sender_type"`
	MessageType string `json:"message_type"`
	Content     string `json:"content"`
}

func toMessageViews(messages []model.Message) []MessageView {
	views := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		content := m.TextContent
		if m.MessageType != model.TypeText {
			content = base64.StdEncoding.EncodeToString(m.BlobContent)
		}
		views = append(views, MessageView{
			MessageID:   m.MessageID,
			SenderType:  m.SenderType,
			MessageType: m.MessageType,
			Content:     content,
		})
	}
	return views
}
