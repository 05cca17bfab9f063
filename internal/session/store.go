// Package session owns the conversation state of one client profile and
// keeps it in step with the backend.
//
// Local state is authoritative for the running session: messages are
// appended optimistically and mirrored to the backend on a best-effort
// basis. Only the owner identifier and the bound conversation id outlive
// the process; they are kept in a profile.Settings.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/edu-assistant/internal/models"
	"github.com/xaenox/edu-assistant/internal/profile"
	"go.uber.org/zap"
)

// State is a copy of the session state at one point in time.
type State struct {
	Messages              []models.Message
	CurrentType           models.MessageType
	CurrentConversationID int64
	IsLoading             bool
	OwnerID               string
}

// Store is the state container. All mutations go through its methods;
// subscribers are notified after each one.
type Store struct {
	mu    sync.Mutex
	state State
	// boundType is the type of the bound conversation, empty when unknown.
	boundType models.MessageType

	settings *profile.Settings
	events   *broker
	now      func() time.Time
	newID    func() string
	logger   *zap.Logger
}

// NewStore hydrates a Store from persisted settings. The owner identifier
// is created on first use; the bound conversation id is restored but its
// messages are not loaded.
func NewStore(ctx context.Context, settings *profile.Settings, logger *zap.Logger) (*Store, error) {
	ownerID, err := settings.OwnerID(ctx)
	if err != nil {
		return nil, err
	}

	conversationID, err := settings.CurrentConversationID(ctx)
	if err != nil {
		logger.Warn("Failed to restore current conversation",
			zap.Error(err),
			zap.String("profile", settings.Profile()))
		conversationID = 0
	}

	return &Store{
		state: State{
			Messages:              []models.Message{},
			CurrentConversationID: conversationID,
			OwnerID:               ownerID,
		},
		settings: settings,
		events:   newBroker(),
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   logger,
	}, nil
}

// Subscribe registers fn for every subsequent event and returns a function
// that removes it.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	return s.events.subscribe(fn)
}

// AddMessage stamps msg with a fresh id and the current time and appends it.
func (s *Store) AddMessage(msg models.Message) models.Message {
	s.mu.Lock()
	msg = s.appendLocked(msg)
	s.mu.Unlock()

	s.events.publish(Event{Kind: EventMessageAdded, Message: msg})
	return msg
}

// appendTo appends msg only while conversationID is still bound. The
// stamped message is returned either way.
func (s *Store) appendTo(conversationID int64, msg models.Message) (models.Message, bool) {
	s.mu.Lock()
	if s.state.CurrentConversationID != conversationID {
		msg.ID = s.newID()
		msg.Timestamp = s.now()
		s.mu.Unlock()
		return msg, false
	}
	msg = s.appendLocked(msg)
	s.mu.Unlock()

	s.events.publish(Event{Kind: EventMessageAdded, Message: msg})
	return msg, true
}

func (s *Store) appendLocked(msg models.Message) models.Message {
	msg.ID = s.newID()
	msg.Timestamp = s.now()
	s.state.Messages = append(s.state.Messages, msg)
	return msg
}

// SetCurrentType changes the interaction mode only.
func (s *Store) SetCurrentType(t models.MessageType) {
	s.mu.Lock()
	s.state.CurrentType = t
	s.mu.Unlock()

	s.events.publish(Event{Kind: EventTypeChanged, Type: t})
}

// ClearMessages drops the transcript, the type and the conversation binding.
func (s *Store) ClearMessages() {
	s.mu.Lock()
	s.state.Messages = []models.Message{}
	s.state.CurrentType = ""
	s.state.CurrentConversationID = 0
	s.boundType = ""
	s.mu.Unlock()

	s.persistConversationID(0)
	s.events.publish(Event{Kind: EventCleared})
}

// SetLoading sets the send guard. Front-ends disable input while it is set.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	s.state.IsLoading = loading
	s.mu.Unlock()

	s.events.publish(Event{Kind: EventLoadingChanged, Loading: loading})
}

// TryBeginSend sets the send guard unless it is already set.
func (s *Store) TryBeginSend() bool {
	s.mu.Lock()
	if s.state.IsLoading {
		s.mu.Unlock()
		return false
	}
	s.state.IsLoading = true
	s.mu.Unlock()

	s.events.publish(Event{Kind: EventLoadingChanged, Loading: true})
	return true
}

// SetCurrentConversationID binds id without touching messages. The type of
// the conversation is unknown until it is loaded.
func (s *Store) SetCurrentConversationID(id int64) {
	s.mu.Lock()
	s.state.CurrentConversationID = id
	s.boundType = ""
	s.mu.Unlock()

	s.persistConversationID(id)
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state
	st.Messages = append([]models.Message(nil), s.state.Messages...)
	return st
}

func (s *Store) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.state.Messages...)
}

func (s *Store) CurrentType() models.MessageType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentType
}

func (s *Store) CurrentConversationID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentConversationID
}

func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsLoading
}

func (s *Store) OwnerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.OwnerID
}

func (s *Store) Settings() *profile.Settings {
	return s.settings
}

// binding returns the bound conversation and its type as one read.
func (s *Store) binding() (int64, models.MessageType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentConversationID, s.boundType
}

// resolveBinding records the type of conversationID if it is still bound.
func (s *Store) resolveBinding(conversationID int64, t models.MessageType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CurrentConversationID == conversationID {
		s.boundType = t
	}
}

// bind replaces messages, binding and type in one step.
func (s *Store) bind(id int64, t models.MessageType, messages []models.Message) {
	if messages == nil {
		messages = []models.Message{}
	}

	s.mu.Lock()
	s.state.Messages = messages
	s.state.CurrentConversationID = id
	s.state.CurrentType = t
	s.boundType = t
	s.mu.Unlock()

	s.persistConversationID(id)
}

func (s *Store) persistConversationID(id int64) {
	if err := s.settings.SetCurrentConversationID(context.Background(), id); err != nil {
		s.logger.Error("Failed to persist current conversation",
			zap.Error(err),
			zap.Int64("conversation_id", id))
	}
}
