package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a direct message between two users. The ID is a ULID assigned
// when the message is persisted, so ids sort in creation order.
type Message struct {
	ID          string    `json:"id"`
	SenderID    uuid.UUID `json:"senderId"`
	ReceiverID  uuid.UUID `json:"receiverId"`
	Content     string    `json:"content,omitempty"`
	Attachments []string  `json:"attachments,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Read        bool      `json:"read"`

	// Sender and Receiver carry display attributes when the message was
	// loaded through a history query. Nil on the write path.
	Sender   *Profile `json:"sender,omitempty"`
	Receiver *Profile `json:"receiver,omitempty"`
}

// HasBody reports whether the message carries any content at all.
// A message must have text or at least one attachment.
func (m *Message) HasBody() bool {
	return m.Content != "" || len(m.Attachments) > 0
}
