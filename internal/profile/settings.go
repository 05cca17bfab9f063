package profile

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// Settings is the typed view of one profile's persisted state.
type Settings struct {
	mu      sync.Mutex
	store   Store
	profile string
}

func NewSettings(store Store, profile string) *Settings {
	return &Settings{store: store, profile: profile}
}

func (s *Settings) Profile() string {
	return s.profile
}

// OwnerID returns the profile's owner identifier, generating and persisting
// one on first use. An existing value is never replaced.
func (s *Settings) OwnerID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.store.Get(ctx, s.profile, KeyOwnerID)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}

	id = "user_" + uuid.NewString()
	if err := s.store.Set(ctx, s.profile, KeyOwnerID, id); err != nil {
		return "", err
	}
	return id, nil
}

// CurrentConversationID returns the last bound conversation, or 0.
func (s *Settings) CurrentConversationID(ctx context.Context) (int64, error) {
	value, err := s.store.Get(ctx, s.profile, KeyCurrentConversationID)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, nil
	}
	return id, nil
}

// SetCurrentConversationID persists the binding; 0 removes it.
func (s *Settings) SetCurrentConversationID(ctx context.Context, id int64) error {
	if id == 0 {
		return s.store.Delete(ctx, s.profile, KeyCurrentConversationID)
	}
	return s.store.Set(ctx, s.profile, KeyCurrentConversationID, strconv.FormatInt(id, 10))
}

func (s *Settings) DarkMode(ctx context.Context) (bool, error) {
	value, err := s.store.Get(ctx, s.profile, KeyDarkMode)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value == "true", nil
}

func (s *Settings) SetDarkMode(ctx context.Context, on bool) error {
	return s.store.Set(ctx, s.profile, KeyDarkMode, strconv.FormatBool(on))
}

// NextExportNumber returns the counter value for the next dialog export and
// advances the stored counter. The counter starts at 1.
func (s *Settings) NextExportNumber(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := 1
	value, err := s.store.Get(ctx, s.profile, KeyExportCounter)
	switch {
	case err == nil:
		if n, convErr := strconv.Atoi(value); convErr == nil && n > 0 {
			current = n
		}
	case !errors.Is(err, ErrNotFound):
		return current, err
	}

	if err := s.store.Set(ctx, s.profile, KeyExportCounter, strconv.Itoa(current+1)); err != nil {
		return current, err
	}
	return current, nil
}
