package models

import "time"

// Conversation is a titled, typed thread owned by one user. The type is
// fixed at creation.
type Conversation struct {
	ID               int64           `json:"id"`
	OwnerID          string          `json:"user_id"`
	Title            string          `json:"title"`
	ConversationType MessageType     `json:"conversation_type"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Messages         []StoredMessage `json:"messages,omitempty"`
}

// StoredMessage is a message as persisted by the backend. It carries no
// type of its own; the type is the conversation's.
type StoredMessage struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

// ConversationFilter narrows a conversation listing.
type ConversationFilter struct {
	OwnerID string
	Skip    int
	Limit   int
	Search  string
	Type    MessageType
	From    *time.Time
	To      *time.Time
}

// ConversationPage is one page of an owner's conversations.
type ConversationPage struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
	Skip          int            `json:"skip"`
	Limit         int            `json:"limit"`
}

// ConversationSnapshot is the export form of a conversation.
type ConversationSnapshot struct {
	Conversation Conversation    `json:"conversation"`
	Messages     []StoredMessage `json:"messages"`
	ExportedAt   time.Time       `json:"exported_at"`
}
