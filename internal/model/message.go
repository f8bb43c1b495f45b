package model

const (
	SenderUser      = "user"
	SenderAssistant = "assistant"

	TypeText  = "text"
	TypeImage = "image"
	TypeAudio = "audio"
)

// Message is one row of the messages table. Exactly one of TextContent
// and BlobContent is populated, determined by MessageType. Rows are
// never updated; a session is deleted by removing all of its rows.
type Message struct {
	MessageID     uint   `gorm:"column:message_id;primaryKey;autoIncrement" json:"message_id"`
	ChatHistoryID string `gorm:"column:chat_history_id;size:64;not null;index" json:"chat_history_id"`
	SenderType    string `gorm:"column:sender_type;size:16;not null" json:"sender_type"`
	MessageType   string `gorm:"column:message_type;size:16;not null" json:"message_type"`
	TextContent   string `gorm:"column:text_content" json:"text_content,omitempty"`
	BlobContent   []byte `gorm:"column:blob_content" json:"blob_content,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}
