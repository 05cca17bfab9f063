package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xaenox/edu-assistant/internal/models"
)

type MemoryStorage struct {
	mu            sync.RWMutex
	conversations map[int64]*models.Conversation
	messages      map[int64][]models.StoredMessage
	nextConvID    int64
	nextMsgID     int64
	now           func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		conversations: make(map[int64]*models.Conversation),
		messages:      make(map[int64][]models.StoredMessage),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStorage) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextConvID++
	now := s.now()
	conv.ID = s.nextConvID
	conv.CreatedAt = now
	conv.UpdatedAt = now
	conv.Messages = nil

	stored := *conv
	s.conversations[conv.ID] = &stored
	return nil
}

func (s *MemoryStorage) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, exists := s.conversations[id]
	if !exists {
		return nil, ErrNotFound
	}
	result := *conv
	result.Messages = append([]models.StoredMessage{}, s.messages[id]...)
	return &result, nil
}

func (s *MemoryStorage) ListConversations(ctx context.Context, filter models.ConversationFilter) ([]models.Conversation, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	matched := make([]models.Conversation, 0)
	for _, conv := range s.conversations {
		if conv.OwnerID != filter.OwnerID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(conv.Title), search) {
			continue
		}
		if filter.Type != "" && conv.ConversationType != filter.Type {
			continue
		}
		if filter.From != nil && conv.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && conv.CreatedAt.After(*filter.To) {
			continue
		}
		matched = append(matched, *conv)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	total := len(matched)
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	start := filter.Skip
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *MemoryStorage) DeleteConversation(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[id]; !exists {
		return ErrNotFound
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func (s *MemoryStorage) UpdateTitle(ctx context.Context, id int64, title string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[id]
	if !exists {
		return nil, ErrNotFound
	}
	conv.Title = title
	conv.UpdatedAt = s.now()
	result := *conv
	return &result, nil
}

func (s *MemoryStorage) AddMessage(ctx context.Context, msg *models.StoredMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[msg.ConversationID]
	if !exists {
		return ErrNotFound
	}

	s.nextMsgID++
	msg.ID = s.nextMsgID
	msg.Timestamp = s.now()
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], *msg)
	conv.UpdatedAt = msg.Timestamp
	return nil
}

func (s *MemoryStorage) GetMessages(ctx context.Context, conversationID int64) ([]models.StoredMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.conversations[conversationID]; !exists {
		return nil, ErrNotFound
	}
	return append([]models.StoredMessage{}, s.messages[conversationID]...), nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
