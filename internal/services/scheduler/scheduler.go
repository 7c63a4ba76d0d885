// Package scheduler runs recurring maintenance jobs (cleanup sweeps, daily
// digests) on cron-style schedules, decoupled from the caller through a
// small worker pool.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"chimebot/pkg/logx"
)

// Job is one unit of scheduled work. Jobs must honor ctx cancellation.
type Job func(ctx context.Context)

type Config struct {
	// Workers is the number of concurrent job runners. Default 2.
	Workers int `json:"workers" yaml:"workers"`
	// QueueSize bounds pending jobs; excess firings are dropped. Default 64.
	QueueSize int `json:"queue_size" yaml:"queue_size"`
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	return c
}

type task struct {
	name string
	fn   Job
}

type Service struct {
	cfg  Config
	log  logx.Logger
	cron *cron.Cron

	queue  chan task
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

func New(cfg Config, log logx.Logger) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		cfg:   cfg,
		log:   log.With(logx.String("svc", "scheduler")),
		cron:  cron.New(),
		queue: make(chan task, cfg.QueueSize),
	}
}

// AddInterval registers a job that fires every `every`.
func (s *Service) AddInterval(name string, every time.Duration, job Job) error {
	if every <= 0 {
		return fmt.Errorf("scheduler: interval for %q must be positive", name)
	}
	return s.add(name, "@every "+every.String(), job)
}

// AddDaily registers a job that fires once a day at the given "HH:MM"
// wall-clock time (server zone).
func (s *Service) AddDaily(name, at string, job Job) error {
	h, m, err := parseHHMM(at)
	if err != nil {
		return fmt.Errorf("scheduler: daily time for %q: %w", name, err)
	}
	return s.add(name, fmt.Sprintf("%d %d * * *", m, h), job)
}

func (s *Service) add(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.enqueue(task{name: name, fn: job}) })
	if err != nil {
		return fmt.Errorf("scheduler: register %q: %w", name, err)
	}
	s.log.Debug("job registered", logx.String("job", name), logx.String("spec", spec))
	return nil
}

func (s *Service) enqueue(t task) {
	select {
	case s.queue <- t:
	default:
		s.log.Warn("job queue full, firing dropped", logx.String("job", t.name))
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true

	wctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(wctx)
	}
	s.cron.Start()
	s.log.Info("scheduler started", logx.Int("workers", s.cfg.Workers))
	return nil
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-s.queue:
			start := time.Now()
			s.runSafely(ctx, t)
			s.log.Debug("job finished",
				logx.String("job", t.name), logx.Duration("took", time.Since(start)))
		}
	}
}

func (s *Service) runSafely(ctx context.Context, t task) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panicked",
				logx.String("job", t.name), logx.Any("panic", r))
		}
	}()
	t.fn(ctx)
}

// Stop halts firing, then waits for in-flight jobs up to ctx's deadline.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	select {
	case <-cronDone.Done():
	case <-ctx.Done():
	}

	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func parseHHMM(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("bad hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("bad minute in %q", s)
	}
	return hour, minute, nil
}
