package reminder

import (
	"container/heap"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"

	"chimebot/internal/kit"
	"chimebot/internal/storage"
	"chimebot/pkg/logx"
)

// slotKey identifies an (owner, due instant) pair at millisecond precision,
// mirroring the storage uniqueness constraint.
type slotKey struct {
	owner int64
	dueMS int64
}

type heapItem struct {
	id  string
	due time.Time
}

// dueHeap orders pending items by due instant; ties break on ID so pops are
// deterministic. Cancelled items stay in the heap and are skipped on pop.
type dueHeap []heapItem

func (h dueHeap) Len() int { return len(h) }
func (h dueHeap) Less(i, j int) bool {
	if !h[i].due.Equal(h[j].due) {
		return h[i].due.Before(h[j].due)
	}
	return h[i].id < h[j].id
}
func (h dueHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *dueHeap) Push(x any) { *h = append(*h, x.(heapItem)) }
func (h *dueHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Service owns every pending reminder: an in-memory due-ordered index backed
// by the store, plus the delivery loop. All state lives on the Service; there
// is exactly one per process.
type Service struct {
	cfg     Config
	store   storage.Store
	deliver Deliverer
	log     logx.Logger
	clk     clock.Clock

	mu          sync.Mutex
	entries     map[string]Entry
	slots       map[slotKey]string
	counts      map[int64]int
	pending     dueHeap
	unreachable map[int64]struct{}

	wg sync.WaitGroup
}

func New(cfg Config, store storage.Store, deliver Deliverer, log logx.Logger) *Service {
	return newWithClock(cfg, store, deliver, log, clock.New())
}

func newWithClock(cfg Config, store storage.Store, deliver Deliverer, log logx.Logger, clk clock.Clock) *Service {
	return &Service{
		cfg:         cfg.withDefaults(),
		store:       store,
		deliver:     deliver,
		log:         log.With(logx.String("svc", "reminder")),
		clk:         clk,
		entries:     make(map[string]Entry),
		slots:       make(map[slotKey]string),
		counts:      make(map[int64]int),
		unreachable: make(map[int64]struct{}),
	}
}

// Load rebuilds the in-memory index from the store. Rows whose instant has
// already passed are dropped rather than fired, so a long outage never
// produces a burst of stale pings. A store failure must not refuse startup:
// the service comes up with an empty set and keeps accepting new reminders.
func (s *Service) Load(ctx context.Context) {
	rows, err := s.store.ListReminders(ctx)
	if err != nil {
		s.log.Error("store unreadable, starting with no pending reminders", logx.Err(err))
		return
	}
	now := s.clk.Now()

	s.mu.Lock()
	var stale []string
	for _, r := range rows {
		if !r.DueAt.After(now) {
			stale = append(stale, r.ID)
			continue
		}
		s.insertLocked(Entry{
			ID: r.ID, OwnerID: r.UserID, ChatID: r.ChatID,
			Message: r.Message, Zone: r.Timezone,
			DueAt: r.DueAt, CreatedAt: r.CreatedAt,
		})
	}
	loaded := len(s.entries)
	s.mu.Unlock()

	if len(stale) > 0 {
		if _, err := s.store.DeleteReminders(ctx, stale); err != nil {
			// The hourly purge will get them; the rows were not indexed.
			s.log.Warn("expired row cleanup failed", logx.Err(err))
		}
	}
	s.log.Info("reminders loaded",
		logx.Int("pending", loaded), logx.Int("expired", len(stale)))
}

func (s *Service) insertLocked(e Entry) {
	s.entries[e.ID] = e
	s.slots[slotKey{e.OwnerID, e.DueAt.UnixMilli()}] = e.ID
	s.counts[e.OwnerID]++
	heap.Push(&s.pending, heapItem{id: e.ID, due: e.DueAt})
}

func (s *Service) removeLocked(e Entry) {
	delete(s.entries, e.ID)
	delete(s.slots, slotKey{e.OwnerID, e.DueAt.UnixMilli()})
	if s.counts[e.OwnerID]--; s.counts[e.OwnerID] <= 0 {
		delete(s.counts, e.OwnerID)
	}
	// The heap item is left behind and skipped when it surfaces.
}

// Add validates, persists and indexes a new reminder, returning it with its
// assigned ID.
func (s *Service) Add(ctx context.Context, e Entry) (Entry, error) {
	now := s.clk.Now()
	if !e.DueAt.After(now) {
		return Entry{}, ErrPastDue
	}
	if e.Zone == "" {
		e.Zone = s.cfg.DefaultTimezone
	}
	e.ID = uuid.NewString()
	e.CreatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.counts[e.OwnerID] >= s.cfg.MaxPerUser {
		return Entry{}, ErrQuotaExceeded
	}
	if _, taken := s.slots[slotKey{e.OwnerID, e.DueAt.UnixMilli()}]; taken {
		return Entry{}, ErrDuplicate
	}

	err := s.store.AddReminder(ctx, storage.Reminder{
		ID: e.ID, UserID: e.OwnerID, ChatID: e.ChatID,
		Message: e.Message, Timezone: e.Zone,
		DueAt: e.DueAt, CreatedAt: e.CreatedAt,
	})
	if errors.Is(err, storage.ErrConflict) {
		return Entry{}, ErrDuplicate
	}
	if err != nil {
		return Entry{}, err
	}

	s.insertLocked(e)
	// A fresh delivery channel attempt is warranted once the owner asks again.
	delete(s.unreachable, e.OwnerID)

	s.log.Debug("reminder added",
		logx.String("id", e.ID), logx.Int64("owner", e.OwnerID), logx.Time("due", e.DueAt))
	return e, nil
}

// Cancel removes one of the owner's pending reminders by ID. The store row
// goes first: a failed delete leaves the entry indexed and cancellable again
// instead of letting the row resurrect on the next restart.
func (s *Service) Cancel(ctx context.Context, ownerID int64, id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok || e.OwnerID != ownerID {
		return ErrNotFound
	}

	if _, err := s.store.DeleteReminders(ctx, []string{id}); err != nil {
		return err
	}

	s.mu.Lock()
	if e, ok := s.entries[id]; ok {
		s.removeLocked(e)
	}
	s.mu.Unlock()
	return nil
}

// CancelAll removes every pending reminder the owner has and reports how
// many were dropped.
func (s *Service) CancelAll(ctx context.Context, ownerID int64) (int, error) {
	s.mu.Lock()
	var ids []string
	for _, e := range s.entries {
		if e.OwnerID == ownerID {
			ids = append(ids, e.ID)
		}
	}
	s.mu.Unlock()

	if len(ids) == 0 {
		return 0, nil
	}
	if _, err := s.store.DeleteReminders(ctx, ids); err != nil {
		return 0, err
	}

	s.mu.Lock()
	for _, id := range ids {
		if e, ok := s.entries[id]; ok {
			s.removeLocked(e)
		}
	}
	s.mu.Unlock()
	return len(ids), nil
}

// ListForOwner returns the owner's pending reminders soonest-first.
func (s *Service) ListForOwner(ownerID int64) []Entry {
	s.mu.Lock()
	var out []Entry
	for _, e := range s.entries {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueAt.Equal(out[j].DueAt) {
			return out[i].DueAt.Before(out[j].DueAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// popDue removes and returns every entry due at or before now. Removal
// happens before delivery, so each entry fires at most once.
func (s *Service) popDue(now time.Time) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Entry
	for s.pending.Len() > 0 && !s.pending[0].due.After(now) {
		it := heap.Pop(&s.pending).(heapItem)
		e, ok := s.entries[it.id]
		if !ok || !e.DueAt.Equal(it.due) {
			continue // cancelled
		}
		s.removeLocked(e)
		due = append(due, e)
	}
	return due
}

// deliverDue runs one pass: pop, unpersist, then deliver asynchronously.
func (s *Service) deliverDue(ctx context.Context) error {
	due := s.popDue(s.clk.Now())
	if len(due) == 0 {
		return nil
	}

	ids := make([]string, len(due))
	for i, e := range due {
		ids[i] = e.ID
	}
	if _, err := s.store.DeleteReminders(ctx, ids); err != nil {
		// Nothing was delivered yet, so the batch can go back in for the
		// next pass without risking a double fire.
		s.mu.Lock()
		for _, e := range due {
			s.insertLocked(e)
		}
		s.mu.Unlock()
		return err
	}

	for _, e := range due {
		if s.isUnreachable(e.OwnerID) {
			s.log.Debug("delivery skipped, owner unreachable",
				logx.String("id", e.ID), logx.Int64("owner", e.OwnerID))
			continue
		}
		s.wg.Add(1)
		go s.deliverOne(ctx, e)
	}
	return nil
}

func (s *Service) deliverOne(ctx context.Context, e Entry) {
	defer s.wg.Done()
	dctx, cancel := context.WithTimeout(ctx, s.cfg.DeliverTimeout)
	defer cancel()

	err := s.deliver.Deliver(dctx, e)
	switch {
	case err == nil:
		s.log.Debug("reminder delivered",
			logx.String("id", e.ID), logx.Int64("owner", e.OwnerID))
	case errors.Is(err, kit.ErrUnreachable):
		s.markUnreachable(e.OwnerID)
		s.log.Warn("owner unreachable, suppressing further deliveries",
			logx.Int64("owner", e.OwnerID), logx.Err(err))
	default:
		s.log.Error("reminder delivery failed",
			logx.String("id", e.ID), logx.Int64("owner", e.OwnerID), logx.Err(err))
	}
}

func (s *Service) isUnreachable(ownerID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.unreachable[ownerID]
	return ok
}

func (s *Service) markUnreachable(ownerID int64) {
	s.mu.Lock()
	s.unreachable[ownerID] = struct{}{}
	s.mu.Unlock()
}

// PurgeExpired drops stored rows more than an hour past due. It exists for
// the periodic maintenance job; the delivery loop normally keeps the table
// clean on its own.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteDueBefore(ctx, s.clk.Now().Add(-time.Hour))
}

// Run drives the delivery loop until ctx is cancelled. A failed pass is
// retried after a backoff instead of tearing the loop down.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info("delivery loop started", logx.Duration("tick", s.cfg.Tick))
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.log.Info("delivery loop stopped")
			return nil
		case <-s.clk.After(s.cfg.Tick):
			if err := s.deliverDue(ctx); err != nil {
				s.log.Error("delivery pass failed, backing off", logx.Err(err))
				select {
				case <-ctx.Done():
				case <-s.clk.After(s.cfg.RetryBackoff):
				}
			}
		}
	}
}
