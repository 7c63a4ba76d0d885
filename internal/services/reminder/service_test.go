package reminder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmhodges/clock"

	"chimebot/internal/kit"
	"chimebot/internal/storage"
	"chimebot/pkg/logx"
)

type captureDeliverer struct {
	mu  sync.Mutex
	got []Entry
	err error
}

func (d *captureDeliverer) Deliver(_ context.Context, e Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, e)
	return d.err
}

func (d *captureDeliverer) delivered() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Entry(nil), d.got...)
}

func newTestService(t *testing.T, cfg Config) (*Service, clock.FakeClock, *captureDeliverer, storage.Store) {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	clk := clock.NewFake()
	del := &captureDeliverer{}
	return newWithClock(cfg, st, del, logx.Nop(), clk), clk, del, st
}

func mustAdd(t *testing.T, s *Service, owner int64, msg string, due time.Time) Entry {
	t.Helper()
	e, err := s.Add(context.Background(), Entry{OwnerID: owner, ChatID: owner, Message: msg, Zone: "UTC", DueAt: due})
	if err != nil {
		t.Fatalf("Add(%q): %v", msg, err)
	}
	return e
}

func TestAddListCancel(t *testing.T) {
	t.Parallel()
	s, clk, _, _ := newTestService(t, Config{})
	now := clk.Now()

	late := mustAdd(t, s, 1, "late", now.Add(3*time.Hour))
	early := mustAdd(t, s, 1, "early", now.Add(time.Hour))
	mustAdd(t, s, 2, "other owner", now.Add(2*time.Hour))

	list := s.ListForOwner(1)
	if len(list) != 2 {
		t.Fatalf("ListForOwner(1) returned %d entries, want 2", len(list))
	}
	if list[0].ID != early.ID || list[1].ID != late.ID {
		t.Fatalf("list not soonest-first: %q then %q", list[0].Message, list[1].Message)
	}

	// Another owner cannot cancel it.
	if err := s.Cancel(context.Background(), 2, early.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign cancel: got %v, want ErrNotFound", err)
	}
	if err := s.Cancel(context.Background(), 1, early.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got := s.ListForOwner(1); len(got) != 1 || got[0].ID != late.ID {
		t.Fatalf("after cancel list = %+v", got)
	}
	if err := s.Cancel(context.Background(), 1, early.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double cancel: got %v, want ErrNotFound", err)
	}
}

func TestAddValidation(t *testing.T) {
	t.Parallel()
	s, clk, _, _ := newTestService(t, Config{MaxPerUser: 3})
	now := clk.Now()

	if _, err := s.Add(context.Background(), Entry{OwnerID: 1, DueAt: now.Add(-time.Minute)}); !errors.Is(err, ErrPastDue) {
		t.Fatalf("past instant: got %v, want ErrPastDue", err)
	}
	if _, err := s.Add(context.Background(), Entry{OwnerID: 1, DueAt: now}); !errors.Is(err, ErrPastDue) {
		t.Fatalf("exactly-now instant: got %v, want ErrPastDue", err)
	}

	due := now.Add(time.Hour)
	mustAdd(t, s, 1, "first", due)
	if _, err := s.Add(context.Background(), Entry{OwnerID: 1, Message: "again", Zone: "UTC", DueAt: due}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("same instant twice: got %v, want ErrDuplicate", err)
	}
	// Same instant for someone else is allowed.
	mustAdd(t, s, 2, "other", due)

	mustAdd(t, s, 1, "second", due.Add(time.Minute))
	mustAdd(t, s, 1, "third", due.Add(2*time.Minute))
	if _, err := s.Add(context.Background(), Entry{OwnerID: 1, Message: "over", Zone: "UTC", DueAt: due.Add(3 * time.Minute)}); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("over quota: got %v, want ErrQuotaExceeded", err)
	}
}

func TestDeliverDue(t *testing.T) {
	t.Parallel()
	s, clk, del, st := newTestService(t, Config{})
	now := clk.Now()

	first := mustAdd(t, s, 1, "first", now.Add(time.Minute))
	mustAdd(t, s, 1, "second", now.Add(10*time.Minute))

	if err := s.deliverDue(context.Background()); err != nil {
		t.Fatalf("deliverDue: %v", err)
	}
	s.wg.Wait()
	if got := del.delivered(); len(got) != 0 {
		t.Fatalf("nothing is due yet, delivered %d", len(got))
	}

	clk.Add(2 * time.Minute)
	if err := s.deliverDue(context.Background()); err != nil {
		t.Fatalf("deliverDue: %v", err)
	}
	s.wg.Wait()
	got := del.delivered()
	if len(got) != 1 || got[0].ID != first.ID {
		t.Fatalf("delivered %+v, want just %q", got, first.Message)
	}

	// A second pass at the same instant must not re-fire it.
	if err := s.deliverDue(context.Background()); err != nil {
		t.Fatalf("deliverDue: %v", err)
	}
	s.wg.Wait()
	if got := del.delivered(); len(got) != 1 {
		t.Fatalf("entry fired twice")
	}

	rows, err := st.ListReminders(context.Background())
	if err != nil {
		t.Fatalf("ListReminders: %v", err)
	}
	if len(rows) != 1 || rows[0].Message != "second" {
		t.Fatalf("store rows = %+v, want only the later one", rows)
	}
}

func TestCancelledEntryDoesNotFire(t *testing.T) {
	t.Parallel()
	s, clk, del, _ := newTestService(t, Config{})
	now := clk.Now()

	e := mustAdd(t, s, 1, "doomed", now.Add(time.Minute))
	mustAdd(t, s, 1, "kept", now.Add(time.Minute+time.Second))
	if err := s.Cancel(context.Background(), 1, e.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	clk.Add(5 * time.Minute)
	if err := s.deliverDue(context.Background()); err != nil {
		t.Fatalf("deliverDue: %v", err)
	}
	s.wg.Wait()
	got := del.delivered()
	if len(got) != 1 || got[0].Message != "kept" {
		t.Fatalf("delivered %+v, want only the kept entry", got)
	}
}

func TestUnreachableOwnerSuppressed(t *testing.T) {
	t.Parallel()
	s, clk, del, _ := newTestService(t, Config{})
	del.err = fmt.Errorf("send: %w", kit.ErrUnreachable)
	now := clk.Now()

	mustAdd(t, s, 1, "first", now.Add(time.Minute))
	mustAdd(t, s, 1, "second", now.Add(2*time.Minute))

	clk.Add(90 * time.Second)
	if err := s.deliverDue(context.Background()); err != nil {
		t.Fatalf("deliverDue: %v", err)
	}
	s.wg.Wait()
	if got := del.delivered(); len(got) != 1 {
		t.Fatalf("first attempt count = %d, want 1", len(got))
	}

	// Owner is now flagged: the second entry is dropped without an attempt.
	clk.Add(time.Minute)
	if err := s.deliverDue(context.Background()); err != nil {
		t.Fatalf("deliverDue: %v", err)
	}
	s.wg.Wait()
	if got := del.delivered(); len(got) != 1 {
		t.Fatalf("suppressed owner was attempted again: %d attempts", len(got))
	}

	// A fresh Add lifts the suppression.
	del.err = nil
	mustAdd(t, s, 1, "third", clk.Now().Add(time.Minute))
	clk.Add(2 * time.Minute)
	if err := s.deliverDue(context.Background()); err != nil {
		t.Fatalf("deliverDue: %v", err)
	}
	s.wg.Wait()
	if got := del.delivered(); len(got) != 2 {
		t.Fatalf("delivery after re-add: %d attempts, want 2", len(got))
	}
}

func TestLoadDiscardsExpired(t *testing.T) {
	t.Parallel()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	clk := clock.NewFake()
	del := &captureDeliverer{}
	now := clk.Now()

	s1 := newWithClock(Config{}, st, del, logx.Nop(), clk)
	kept := mustAdd(t, s1, 1, "kept", now.Add(time.Hour))
	mustAdd(t, s1, 1, "expired", now.Add(time.Minute))

	// Restart after the first one has lapsed.
	clk.Add(30 * time.Minute)
	s2 := newWithClock(Config{}, st, del, logx.Nop(), clk)
	s2.Load(context.Background())

	list := s2.ListForOwner(1)
	if len(list) != 1 || list[0].ID != kept.ID {
		t.Fatalf("after restart list = %+v, want only the future entry", list)
	}
	rows, err := st.ListReminders(context.Background())
	if err != nil {
		t.Fatalf("ListReminders: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != kept.ID {
		t.Fatalf("store rows = %+v, want expired row purged", rows)
	}
}

// faultStore lets a test fail individual store operations on demand.
type faultStore struct {
	storage.Store
	mu        sync.Mutex
	listErr   error
	deleteErr error
}

func (f *faultStore) setErrs(list, del error) {
	f.mu.Lock()
	f.listErr, f.deleteErr = list, del
	f.mu.Unlock()
}

func (f *faultStore) ListReminders(ctx context.Context) ([]storage.Reminder, error) {
	f.mu.Lock()
	err := f.listErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Store.ListReminders(ctx)
}

func (f *faultStore) DeleteReminders(ctx context.Context, ids []string) (int64, error) {
	f.mu.Lock()
	err := f.deleteErr
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return f.Store.DeleteReminders(ctx, ids)
}

func newFaultService(t *testing.T, cfg Config) (*Service, clock.FakeClock, *captureDeliverer, *faultStore) {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	fs := &faultStore{Store: st}
	clk := clock.NewFake()
	del := &captureDeliverer{}
	return newWithClock(cfg, fs, del, logx.Nop(), clk), clk, del, fs
}

func TestLoadStoreFailureStartsEmpty(t *testing.T) {
	t.Parallel()
	s, clk, _, fs := newFaultService(t, Config{})
	fs.setErrs(errors.New("disk gone"), nil)

	// An unreadable store degrades to an empty set; it never refuses startup.
	s.Load(context.Background())
	if got := s.ListForOwner(1); len(got) != 0 {
		t.Fatalf("list after failed load = %+v, want empty", got)
	}

	// The service still takes new reminders afterwards.
	fs.setErrs(nil, nil)
	mustAdd(t, s, 1, "fresh", clk.Now().Add(time.Hour))
	if got := s.ListForOwner(1); len(got) != 1 {
		t.Fatalf("list after add = %+v, want one entry", got)
	}
}

func TestCancelStoreFailureKeepsEntry(t *testing.T) {
	t.Parallel()
	s, clk, _, fs := newFaultService(t, Config{})
	e := mustAdd(t, s, 1, "sticky", clk.Now().Add(time.Hour))

	fs.setErrs(nil, errors.New("delete timeout"))
	if err := s.Cancel(context.Background(), 1, e.ID); err == nil {
		t.Fatal("Cancel with broken store: want error")
	}
	// The entry must stay cancellable, not vanish from memory while its row
	// survives in the store.
	if got := s.ListForOwner(1); len(got) != 1 {
		t.Fatalf("list after failed cancel = %+v, want the entry kept", got)
	}

	fs.setErrs(nil, nil)
	if err := s.Cancel(context.Background(), 1, e.ID); err != nil {
		t.Fatalf("retried Cancel: %v", err)
	}
	if got := s.ListForOwner(1); len(got) != 0 {
		t.Fatalf("list after retried cancel = %+v, want empty", got)
	}
	rows, err := fs.ListReminders(context.Background())
	if err != nil {
		t.Fatalf("ListReminders: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("store rows = %+v, want empty", rows)
	}
}

func TestDeliverDueStoreFailureRequeues(t *testing.T) {
	t.Parallel()
	s, clk, del, fs := newFaultService(t, Config{})
	e := mustAdd(t, s, 1, "patient", clk.Now().Add(time.Minute))

	clk.Add(2 * time.Minute)
	fs.setErrs(nil, errors.New("delete timeout"))
	if err := s.deliverDue(context.Background()); err == nil {
		t.Fatal("deliverDue with broken store: want error")
	}
	s.wg.Wait()
	if got := del.delivered(); len(got) != 0 {
		t.Fatalf("delivered despite store failure: %+v", got)
	}
	// The batch went back in; the next pass picks it up.
	if got := s.ListForOwner(1); len(got) != 1 || got[0].ID != e.ID {
		t.Fatalf("list after failed pass = %+v, want the entry requeued", got)
	}

	fs.setErrs(nil, nil)
	if err := s.deliverDue(context.Background()); err != nil {
		t.Fatalf("deliverDue: %v", err)
	}
	s.wg.Wait()
	if got := del.delivered(); len(got) != 1 || got[0].ID != e.ID {
		t.Fatalf("delivered %+v, want exactly the requeued entry once", got)
	}
}

func TestPurgeExpired(t *testing.T) {
	t.Parallel()
	s, clk, _, st := newTestService(t, Config{})
	now := clk.Now()

	mustAdd(t, s, 1, "soon", now.Add(time.Minute))
	clk.Add(3 * time.Hour)

	n, err := s.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d, want 1", n)
	}
	rows, _ := st.ListReminders(context.Background())
	if len(rows) != 0 {
		t.Fatalf("store rows = %+v, want empty", rows)
	}
}

func TestFormatList(t *testing.T) {
	t.Parallel()
	if got := FormatList(nil); got != "You have no pending reminders." {
		t.Fatalf("empty list = %q", got)
	}
	e := Entry{ID: "abcdefgh-1234", Message: "stand up", Zone: "UTC", DueAt: time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC)}
	got := FormatList([]Entry{e})
	for _, want := range []string{"stand up", "abcdefgh", "3:04 PM"} {
		if !strings.Contains(got, want) {
			t.Fatalf("FormatList = %q, missing %q", got, want)
		}
	}
}
