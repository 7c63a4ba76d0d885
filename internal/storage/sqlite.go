package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"chimebot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open creates or opens the SQLite database and applies migrations.
func Open(cfg Config, log logx.Logger) (Store, error) {
	path := cfg.path()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA busy_timeout = 5000")
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	st.log.Debug("storage ready", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AddReminder(ctx context.Context, r Reminder) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders(id, user_id, chat_id, message, timezone, due_at_ms, created_at_ms)
		 VALUES(?,?,?,?,?,?,?)`,
		r.ID, r.UserID, r.ChatID, r.Message, r.Timezone,
		r.DueAt.UnixMilli(), r.CreatedAt.UnixMilli(),
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *sqliteStore) DeleteReminders(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := `DELETE FROM reminders WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqliteStore) ListReminders(ctx context.Context) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, chat_id, message, timezone, due_at_ms, created_at_ms
		 FROM reminders ORDER BY due_at_ms ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var r Reminder
		var dueMS, createdMS int64
		if err := rows.Scan(&r.ID, &r.UserID, &r.ChatID, &r.Message, &r.Timezone, &dueMS, &createdMS); err != nil {
			return nil, err
		}
		r.DueAt = time.UnixMilli(dueMS)
		r.CreatedAt = time.UnixMilli(createdMS)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DeleteDueBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE due_at_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqliteStore) UserTimezone(ctx context.Context, userID int64) (string, error) {
	var zone string
	err := s.db.QueryRowContext(ctx,
		`SELECT timezone FROM user_timezones WHERE user_id = ?`, userID).Scan(&zone)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return zone, nil
}

func (s *sqliteStore) SetUserTimezone(ctx context.Context, userID int64, zone string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_timezones(user_id, timezone, updated_at_ms) VALUES(?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET timezone=excluded.timezone, updated_at_ms=excluded.updated_at_ms`,
		userID, zone, time.Now().UnixMilli(),
	)
	return err
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlitelib.SQLITE_CONSTRAINT_UNIQUE
}
