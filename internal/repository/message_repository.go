package repository

import (
	"fmt"

	"gorm.io/gorm"

	"localchat/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) AppendText(sessionID, senderType, text string) error {
	msg := &model.Message{
		ChatHistoryID: sessionID,
		SenderType:    senderType,
		MessageType:   model.TypeText,
		TextContent:   text,
	}
	if err := r.db.Create(msg).Error; err != nil {
		return fmt.Errorf("append text message failed: %w", err)
	}
	return nil
}

func (r *MessageRepository) AppendImage(sessionID, senderType string, blob []byte) error {
	msg := &model.Message{
		ChatHistoryID: sessionID,
		SenderType:    senderType,
		MessageType:   model.TypeImage,
		BlobContent:   blob,
	}
	if err := r.db.Create(msg).Error; err != nil {
		return fmt.Errorf("append image message failed: %w", err)
	}
	return nil
}

func (r *MessageRepository) AppendAudio(sessionID, senderType string, blob []byte) error {
	msg := &model.Message{
		ChatHistoryID: sessionID,
		SenderType:    senderType,
		MessageType:   model.TypeAudio,
		BlobContent:   blob,
	}
	if err := r.db.Create(msg).Error; err != nil {
		return fmt.Errorf("append audio message failed: %w", err)
	}
	return nil
}

// ListSessionIDs returns the sorted distinct session ids that have at
// least one message.
func (r *MessageRepository) ListSessionIDs() ([]string, error) {
	var ids []string
	err := r.db.Model(&model.Message{}).
		Distinct("chat_history_id").
		Order("chat_history_id ASC").
		Pluck("chat_history_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list session ids failed: %w", err)
	}
	return ids, nil
}

// DeleteSession removes every message of the session. Deleting a
// session that does not exist is a no-op, not an error.
func (r *MessageRepository) DeleteSession(sessionID string) error {
	if err := r.db.Where("chat_history_id = ?", sessionID).Delete(&model.Message{}).Error; err != nil {
		return fmt.Errorf("delete session failed: %w", err)
	}
	return nil
}

// ListRecentText returns the last k text messages of the session,
// re-ordered oldest first.
func (r *MessageRepository) ListRecentText(sessionID string, k int) ([]model.Message, error) {
	if k <= 0 {
		return nil, nil
	}

	var messages []model.Message
	err := r.db.
		Where("chat_history_id = ? AND message_type = ?", sessionID, model.TypeText).
		Order("message_id DESC").
		Limit(k).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list recent text messages failed: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ListAll returns every message of the session in creation order.
func (r *MessageRepository) ListAll(sessionID string) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.
		Where("chat_history_id = ?", sessionID).
		Order("message_id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}
