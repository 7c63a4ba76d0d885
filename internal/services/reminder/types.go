package reminder

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrQuotaExceeded means the owner already has the maximum number of
	// pending reminders.
	ErrQuotaExceeded = errors.New("reminder: quota exceeded")
	// ErrPastDue means the requested instant is not in the future.
	ErrPastDue = errors.New("reminder: instant is in the past")
	// ErrDuplicate means the owner already has a reminder at that instant.
	ErrDuplicate = errors.New("reminder: duplicate instant")
	// ErrNotFound means no pending reminder matched the given ID.
	ErrNotFound = errors.New("reminder: not found")
)

// Entry is one pending reminder. ID is assigned by the service on Add.
type Entry struct {
	ID        string
	OwnerID   int64
	ChatID    int64
	Message   string
	Zone      string
	DueAt     time.Time
	CreatedAt time.Time
}

// Deliverer pushes a due reminder to its owner. Implementations should
// return an error wrapping kit.ErrUnreachable when the owner cannot be
// messaged at all, so the service can stop trying that owner.
type Deliverer interface {
	Deliver(ctx context.Context, e Entry) error
}

// Config tunes the reminder service. Zero values pick the defaults.
type Config struct {
	// MaxPerUser caps pending reminders per owner. Default 25.
	MaxPerUser int `json:"max_per_user" yaml:"max_per_user"`
	// DefaultTimezone is applied when an owner has no saved zone.
	DefaultTimezone string `json:"default_timezone" yaml:"default_timezone"`
	// Tick is the due-check interval. Default 1s.
	Tick time.Duration `json:"tick" yaml:"tick"`
	// DeliverTimeout bounds a single delivery attempt. Default 10s.
	DeliverTimeout time.Duration `json:"deliver_timeout" yaml:"deliver_timeout"`
	// RetryBackoff is the pause after a failed service-loop pass. Default 10s.
	RetryBackoff time.Duration `json:"retry_backoff" yaml:"retry_backoff"`
}

func (c Config) withDefaults() Config {
	if c.MaxPerUser <= 0 {
		c.MaxPerUser = 25
	}
	if c.DefaultTimezone == "" {
		c.DefaultTimezone = "Pacific/Auckland"
	}
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
	if c.DeliverTimeout <= 0 {
		c.DeliverTimeout = 10 * time.Second
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 10 * time.Second
	}
	return c
}
