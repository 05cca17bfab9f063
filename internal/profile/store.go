// Package profile persists the small amount of client state that survives a
// restart: the owner identifier, the bound conversation, the dark-mode flag
// and the dialog export counter. Values are stored per profile under
// independent keys.
package profile

import (
	"context"
	"errors"
	"fmt"
)

// Keys of the persisted client state.
const (
	KeyOwnerID               = "owner_id"
	KeyCurrentConversationID = "current_conversation_id"
	KeyDarkMode              = "dark_mode"
	KeyExportCounter         = "dialog_export_counter"
)

// Drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
)

var ErrNotFound = errors.New("profile: key not found")

// Store is a per-profile key/value store.
type Store interface {
	Get(ctx context.Context, profile, key string) (string, error)
	Set(ctx context.Context, profile, key, value string) error
	Delete(ctx context.Context, profile, key string) error
	Close() error
}

// Open returns the store for driver. An empty driver means sqlite.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite, "":
		return NewSQLiteStore(path)
	case DriverBolt:
		return NewBoltStore(path)
	}
	return nil, fmt.Errorf("profile: unknown driver %q", driver)
}
