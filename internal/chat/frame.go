package chat

import (
	"time"

	"github.com/sahilmundada/rathialmuninetwork/internal/models"
)

// Client→server frame types.
const (
	FrameIdentify    = "identify"
	FrameSend        = "send"
	FrameTyping      = "typing"
	FrameMarkRead    = "markRead"
	FrameLoadHistory = "loadHistory"
)

// Server→client event types.
const (
	EventMessage       = "messageForReceiver"
	EventAck           = "messageAck"
	EventDeliveryError = "deliveryError"
	EventTyping        = "typingSignal"
	EventReadReceipt   = "readReceipt"
	EventOnline        = "onlineSnapshot"
	EventOffline       = "userOffline"
	EventHistory       = "messageHistory"
)

// ClientFrame is the tagged union over the operations a client can issue on
// a live connection. Type selects which of the remaining fields apply.
type ClientFrame struct {
	Type          string   `json:"type"`
	UserID        string   `json:"userId,omitempty"`        // identify
	ReceiverID    string   `json:"receiverId,omitempty"`    // send, typing
	CounterpartID string   `json:"counterpartId,omitempty"` // markRead, loadHistory
	Content       string   `json:"content,omitempty"`       // send
	Attachments   []string `json:"attachments,omitempty"`   // send
	IsTyping      bool     `json:"isTyping"`                // typing
}

// Event is a server→client frame. Only the fields relevant to Type are set.
type Event struct {
	Type     string           `json:"type"`
	Message  *models.Message  `json:"message,omitempty"`  // messageForReceiver, messageAck
	Messages []models.Message `json:"messages,omitempty"` // messageHistory
	Users    []string         `json:"users,omitempty"`    // onlineSnapshot
	UserID   string           `json:"userId,omitempty"`   // userOffline
	SenderID string           `json:"senderId,omitempty"` // typingSignal
	ReaderID string           `json:"readerId,omitempty"` // readReceipt
	IsTyping *bool            `json:"isTyping,omitempty"` // typingSignal
	At       *time.Time       `json:"at,omitempty"`       // readReceipt
	Reason   string           `json:"reason,omitempty"`   // deliveryError
}
