package storage

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/afero"
)

// ErrStatePersist wraps any failure to durably write the state record.
var ErrStatePersist = errors.New("state persist failed")

// State maps pool key -> remaining items of the current cycle.
type State map[string][]string

// Clone returns a deep copy so callers can mutate freely.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Config configures storage.
//
// Driver values:
//   - "file" (default): one indented JSON document, rewritten via tmp+rename
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	// Fs is the filesystem used by the file driver. Nil means the OS filesystem.
	Fs afero.Fs
}

// DeliveryRecord is one row of the delivery audit trail.
// Keep it compact and schema-stable.
type DeliveryRecord struct {
	ID        string    `json:"id"`
	At        time.Time `json:"at"`
	Trigger   string    `json:"trigger"`
	PostType  string    `json:"post_type"`
	PostHash  string    `json:"post_hash"`
	Media     string    `json:"media,omitempty"`
	WithMedia bool      `json:"with_media"`
	ChatID    int64     `json:"chat_id"`
	MessageID int       `json:"message_id,omitempty"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	TookMS    int64     `json:"took_ms"`
}

// Store is the persistence API used by the selectors and the delivery pipeline.
type Store interface {
	// Load returns the stored state. Missing or unreadable state yields an empty
	// State; problems are logged, never returned.
	Load(ctx context.Context) State
	// Save atomically replaces the whole stored state.
	Save(ctx context.Context, st State) error
	AppendDelivery(ctx context.Context, rec DeliveryRecord) error
	RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error)
	Close() error
}
