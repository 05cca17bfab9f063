package storage

import (
	"context"
	"errors"

	"github.com/xaenox/edu-assistant/internal/models"
)

var ErrNotFound = errors.New("storage: not found")

// DefaultListLimit applies when a listing asks for no limit.
const DefaultListLimit = 100

type Storage interface {
	ConversationStorage
	MessageStorage
	Close() error
}

type ConversationStorage interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	// GetConversation returns the conversation with its messages.
	GetConversation(ctx context.Context, id int64) (*models.Conversation, error)
	// ListConversations returns one page, most recently updated first, and
	// the total number of matches.
	ListConversations(ctx context.Context, filter models.ConversationFilter) ([]models.Conversation, int, error)
	// DeleteConversation removes the conversation and its messages.
	DeleteConversation(ctx context.Context, id int64) error
	UpdateTitle(ctx context.Context, id int64, title string) (*models.Conversation, error)
}

type MessageStorage interface {
	// AddMessage appends to a conversation and bumps its updated_at.
	AddMessage(ctx context.Context, msg *models.StoredMessage) error
	GetMessages(ctx context.Context, conversationID int64) ([]models.StoredMessage, error)
}
