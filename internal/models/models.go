package models

import (
	"fmt"
	"time"
)

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// MessageType is the interaction mode a message or conversation belongs to.
// The empty value means no type.
type MessageType string

const (
	TypeQuestion MessageType = "question"
	TypeQuiz     MessageType = "quiz"
	TypeTask     MessageType = "task"
)

// Types lists the interaction modes in display order.
var Types = []MessageType{TypeQuestion, TypeQuiz, TypeTask}

// Valid reports whether t is a known, non-empty type.
func (t MessageType) Valid() bool {
	switch t {
	case TypeQuestion, TypeQuiz, TypeTask:
		return true
	}
	return false
}

// ParseMessageType converts user input into a MessageType.
func ParseMessageType(s string) (MessageType, error) {
	t := MessageType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown conversation type %q", s)
	}
	return t, nil
}

// Message is a chat turn held in the local session. ID and Timestamp are
// assigned locally when the message is appended; messages are never
// modified afterwards.
type Message struct {
	ID        string      `json:"id"`
	Role      Role        `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Type      MessageType `json:"type,omitempty"`
}

// HistoryEntry is the context item sent to the reasoning endpoints.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ExportRow is one turn of a dialog export.
type ExportRow struct {
	TurnNumber    int    `json:"turn_number"`
	Role          Role   `json:"role"`
	Content       string `json:"content"`
	ModelResponse string `json:"model_response"`
}
