package models

// ConversationSummary is the derived "recent conversations" entry for one
// counterpart: who they are, the latest message exchanged with them, and how
// many of their messages the current user has not read yet. Never persisted.
type ConversationSummary struct {
	Counterpart Profile `json:"user"`
	LastMessage Message `json:"lastMessage"`
	UnreadCount int     `json:"unreadCount"`
}
