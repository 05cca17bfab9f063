package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xaenox/edu-assistant/internal/models"
	"go.uber.org/zap"
)

// DefaultTitleLayout formats the generated title of a new conversation.
const DefaultTitleLayout = "02.01.2006, 15:04:05"

var (
	ErrConversationCreateFailed = errors.New("session: conversation create failed")
	ErrEmptyTitle               = errors.New("session: title is empty")
)

// ConversationAPI is the part of the backend that persists conversations.
type ConversationAPI interface {
	CreateConversation(ctx context.Context, req models.CreateConversationRequest) (*models.Conversation, error)
	GetConversation(ctx context.Context, id int64) (*models.Conversation, error)
	ListConversations(ctx context.Context, filter models.ConversationFilter) (*models.ConversationPage, error)
	DeleteConversation(ctx context.Context, id int64) error
	AddMessage(ctx context.Context, req models.AddMessageRequest) (*models.StoredMessage, error)
	UpdateTitle(ctx context.Context, id int64, title string) (*models.StatusResponse, error)
}

// Lifecycle binds the store to durable conversations. At most one
// conversation is bound at a time.
type Lifecycle struct {
	store       *Store
	api         ConversationAPI
	titleLayout string
	logger      *zap.Logger
}

func NewLifecycle(store *Store, api ConversationAPI, titleLayout string, logger *zap.Logger) *Lifecycle {
	if titleLayout == "" {
		titleLayout = DefaultTitleLayout
	}
	return &Lifecycle{
		store:       store,
		api:         api,
		titleLayout: titleLayout,
		logger:      logger,
	}
}

// CreateNewConversation creates a conversation of type t titled with the
// current time and binds it, replacing the transcript. On failure the state
// is untouched and the error wraps ErrConversationCreateFailed.
func (l *Lifecycle) CreateNewConversation(ctx context.Context, t models.MessageType) (int64, error) {
	if !t.Valid() {
		return 0, fmt.Errorf("%w: invalid type %q", ErrConversationCreateFailed, t)
	}

	ownerID := l.store.OwnerID()
	conv, err := l.api.CreateConversation(ctx, models.CreateConversationRequest{
		OwnerID:          ownerID,
		Title:            l.store.now().Format(l.titleLayout),
		ConversationType: t,
	})
	if err != nil {
		l.logger.Error("Failed to create conversation",
			zap.Error(err),
			zap.String("owner_id", ownerID),
			zap.String("type", string(t)))
		return 0, fmt.Errorf("%w: %w", ErrConversationCreateFailed, err)
	}

	l.store.bind(conv.ID, t, nil)
	l.logger.Info("Conversation created",
		zap.Int64("conversation_id", conv.ID),
		zap.String("type", string(t)))
	l.store.events.publish(Event{Kind: EventConversationCreated, Conversation: conv})
	return conv.ID, nil
}

// LoadConversation replaces the transcript with a stored conversation.
// Stored messages carry no type, so each one takes the conversation's type.
// Nothing changes if the fetch fails.
func (l *Lifecycle) LoadConversation(ctx context.Context, id int64) error {
	conv, err := l.api.GetConversation(ctx, id)
	if err != nil {
		l.logger.Error("Failed to load conversation",
			zap.Error(err),
			zap.Int64("conversation_id", id))
		return fmt.Errorf("session: load conversation %d: %w", id, err)
	}

	messages := make([]models.Message, 0, len(conv.Messages))
	for _, stored := range conv.Messages {
		ts := stored.Timestamp
		if ts.IsZero() {
			ts = l.store.now()
		}
		messages = append(messages, models.Message{
			ID:        l.store.newID(),
			Role:      stored.Role,
			Content:   stored.Content,
			Timestamp: ts,
			Type:      conv.ConversationType,
		})
	}

	l.store.bind(conv.ID, conv.ConversationType, messages)
	l.store.events.publish(Event{Kind: EventConversationLoaded, Conversation: conv})
	return nil
}

// conversationFor returns the bound conversation if it has type t and
// creates one otherwise. A binding restored without its type is looked up
// first; a failed lookup counts as a mismatch.
func (l *Lifecycle) conversationFor(ctx context.Context, t models.MessageType) (int64, error) {
	id, boundType := l.store.binding()
	if id != 0 && boundType == "" {
		conv, err := l.api.GetConversation(ctx, id)
		if err != nil {
			l.logger.Warn("Failed to resolve bound conversation",
				zap.Error(err),
				zap.Int64("conversation_id", id))
		} else {
			boundType = conv.ConversationType
			l.store.resolveBinding(id, boundType)
		}
	}
	if id != 0 && boundType == t {
		return id, nil
	}
	return l.CreateNewConversation(ctx, t)
}

// MirrorMessage copies a message that is already in the local transcript to
// the bound conversation. It is best effort: without a bound conversation it
// does nothing, and a failed write is logged and dropped. The local message
// stays either way.
func (l *Lifecycle) MirrorMessage(ctx context.Context, role models.Role, content string) {
	l.mirrorTo(ctx, l.store.CurrentConversationID(), role, content)
}

func (l *Lifecycle) mirrorTo(ctx context.Context, conversationID int64, role models.Role, content string) {
	if conversationID == 0 {
		l.logger.Debug("No bound conversation, message not mirrored",
			zap.String("role", string(role)))
		return
	}

	_, err := l.api.AddMessage(ctx, models.AddMessageRequest{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	})
	if err != nil {
		l.logger.Error("Failed to mirror message",
			zap.Error(err),
			zap.Int64("conversation_id", conversationID),
			zap.String("role", string(role)))
	}
}

// DeleteConversation deletes a conversation and clears the store if it was
// the bound one.
func (l *Lifecycle) DeleteConversation(ctx context.Context, id int64) error {
	if err := l.api.DeleteConversation(ctx, id); err != nil {
		l.logger.Error("Failed to delete conversation",
			zap.Error(err),
			zap.Int64("conversation_id", id))
		return fmt.Errorf("session: delete conversation %d: %w", id, err)
	}

	if l.store.CurrentConversationID() == id {
		l.store.ClearMessages()
	}
	return nil
}

func (l *Lifecycle) RenameConversation(ctx context.Context, id int64, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	if _, err := l.api.UpdateTitle(ctx, id, title); err != nil {
		l.logger.Error("Failed to rename conversation",
			zap.Error(err),
			zap.Int64("conversation_id", id))
		return fmt.Errorf("session: rename conversation %d: %w", id, err)
	}
	return nil
}

// ListConversations lists the store owner's conversations; the owner in
// filter is ignored.
func (l *Lifecycle) ListConversations(ctx context.Context, filter models.ConversationFilter) (*models.ConversationPage, error) {
	filter.OwnerID = l.store.OwnerID()
	page, err := l.api.ListConversations(ctx, filter)
	if err != nil {
		l.logger.Error("Failed to list conversations",
			zap.Error(err),
			zap.String("owner_id", filter.OwnerID))
		return nil, fmt.Errorf("session: list conversations: %w", err)
	}
	return page, nil
}
