package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"chimebot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestReminderRoundTrip(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	due := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	r := Reminder{
		ID:        "r-1",
		UserID:    42,
		ChatID:    -100,
		Message:   "stand up",
		Timezone:  "Pacific/Auckland",
		DueAt:     due,
		CreatedAt: due.Add(-time.Hour),
	}
	if err := st.AddReminder(ctx, r); err != nil {
		t.Fatalf("AddReminder: %v", err)
	}

	got, err := st.ListReminders(ctx)
	if err != nil {
		t.Fatalf("ListReminders: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d reminders, want 1", len(got))
	}
	if got[0].ID != r.ID || got[0].Message != r.Message || got[0].Timezone != r.Timezone {
		t.Fatalf("round trip mismatch: %+v", got[0])
	}
	if !got[0].DueAt.Equal(due) {
		t.Fatalf("DueAt = %v, want %v", got[0].DueAt, due)
	}
}

func TestAddReminderConflict(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	due := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	base := Reminder{UserID: 7, ChatID: 7, Message: "a", Timezone: "UTC", DueAt: due, CreatedAt: time.Now()}

	first := base
	first.ID = "r-1"
	if err := st.AddReminder(ctx, first); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	second := base
	second.ID = "r-2"
	second.Message = "b"
	if err := st.AddReminder(ctx, second); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate (user, due) insert: got %v, want ErrConflict", err)
	}
	// A different user at the same instant is fine.
	third := base
	third.ID = "r-3"
	third.UserID = 8
	if err := st.AddReminder(ctx, third); err != nil {
		t.Fatalf("other-user insert: %v", err)
	}
}

func TestDeleteReminders(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		r := Reminder{
			ID: id, UserID: 1, ChatID: 1, Message: id, Timezone: "UTC",
			DueAt: base.Add(time.Duration(i) * time.Minute), CreatedAt: time.Now(),
		}
		if err := st.AddReminder(ctx, r); err != nil {
			t.Fatalf("AddReminder(%s): %v", id, err)
		}
	}

	n, err := st.DeleteReminders(ctx, []string{"a", "c", "missing"})
	if err != nil {
		t.Fatalf("DeleteReminders: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted %d rows, want 2", n)
	}
	left, err := st.ListReminders(ctx)
	if err != nil {
		t.Fatalf("ListReminders: %v", err)
	}
	if len(left) != 1 || left[0].ID != "b" {
		t.Fatalf("remaining = %+v, want only b", left)
	}

	if n, err := st.DeleteReminders(ctx, nil); err != nil || n != 0 {
		t.Fatalf("empty delete: n=%d err=%v", n, err)
	}
}

func TestDeleteDueBefore(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	now := time.Now()
	ids := map[string]time.Time{
		"old":    now.Add(-2 * time.Hour),
		"recent": now.Add(-time.Minute),
		"future": now.Add(time.Hour),
	}
	var user int64
	for id, due := range ids {
		user++
		r := Reminder{ID: id, UserID: user, ChatID: 1, Message: id, Timezone: "UTC", DueAt: due, CreatedAt: now}
		if err := st.AddReminder(ctx, r); err != nil {
			t.Fatalf("AddReminder(%s): %v", id, err)
		}
	}

	n, err := st.DeleteDueBefore(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteDueBefore: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d rows, want 1", n)
	}
	left, _ := st.ListReminders(ctx)
	if len(left) != 2 {
		t.Fatalf("remaining %d rows, want 2", len(left))
	}
	for _, r := range left {
		if r.ID == "old" {
			t.Fatalf("purge left the expired row behind")
		}
	}
}

func TestUserTimezone(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.UserTimezone(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unset zone: got %v, want ErrNotFound", err)
	}
	if err := st.SetUserTimezone(ctx, 99, "Europe/Berlin"); err != nil {
		t.Fatalf("SetUserTimezone: %v", err)
	}
	if zone, err := st.UserTimezone(ctx, 99); err != nil || zone != "Europe/Berlin" {
		t.Fatalf("UserTimezone = %q, %v", zone, err)
	}
	// Overwrite.
	if err := st.SetUserTimezone(ctx, 99, "UTC"); err != nil {
		t.Fatalf("SetUserTimezone overwrite: %v", err)
	}
	if zone, _ := st.UserTimezone(ctx, 99); zone != "UTC" {
		t.Fatalf("after overwrite zone = %q, want UTC", zone)
	}
}
