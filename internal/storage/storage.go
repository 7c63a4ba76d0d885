package storage

import (
	"context"
	"errors"
	"time"
)

// ErrConflict reports an insert that collides with an existing row, such as
// a second reminder for the same user at the exact same instant.
var ErrConflict = errors.New("storage: conflict")

// ErrNotFound reports a lookup that matched nothing.
var ErrNotFound = errors.New("storage: not found")

// Reminder is the persisted form of one scheduled reminder. Instants are
// stored as Unix milliseconds so restarts reproduce them exactly.
type Reminder struct {
	ID        string
	UserID    int64
	ChatID    int64
	Message   string
	Timezone  string
	DueAt     time.Time
	CreatedAt time.Time
}

// Store is the persistence boundary for reminders and per-user settings.
type Store interface {
	// AddReminder inserts a new reminder. A (user, due instant) collision
	// returns ErrConflict.
	AddReminder(ctx context.Context, r Reminder) error
	// DeleteReminders removes the given reminder IDs. Unknown IDs are
	// ignored; the count of rows actually removed is returned.
	DeleteReminders(ctx context.Context, ids []string) (int64, error)
	// ListReminders returns every stored reminder ordered by due instant.
	ListReminders(ctx context.Context) ([]Reminder, error)
	// DeleteDueBefore purges reminders whose due instant is before cutoff,
	// returning the number removed.
	DeleteDueBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// UserTimezone returns the user's saved zone name, or ErrNotFound.
	UserTimezone(ctx context.Context, userID int64) (string, error)
	// SetUserTimezone saves or replaces the user's zone name.
	SetUserTimezone(ctx context.Context, userID int64, zone string) error

	Close() error
}

// Config selects the backing database file.
type Config struct {
	// Path is the SQLite database file. Empty means "./chimebot.db".
	Path string `json:"path" yaml:"path"`
}

func (c Config) path() string {
	if c.Path == "" {
		return "./chimebot.db"
	}
	return c.Path
}
