// Package notify funnels outbound bot messages through a single rate-limited
// path so bursts of reminders or log mirrors cannot trip platform flood
// limits.
package notify

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"chimebot/internal/kit"
	"chimebot/pkg/logx"
)

type Config struct {
	// RatePerSecond caps outbound sends. Default 20, well under the
	// Telegram bot API's 30 msg/s global limit.
	RatePerSecond float64 `json:"rate_per_second" yaml:"rate_per_second"`
	// Burst is the limiter bucket size. Default 5.
	Burst int `json:"burst" yaml:"burst"`
}

func (c Config) withDefaults() Config {
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 20
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	return c
}

type Service struct {
	adapter kit.Adapter
	lim     *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		adapter: adapter,
		lim:     rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		log:     log.With(logx.String("svc", "notify")),
	}
}

// Notify sends one notification, blocking on the rate limiter first. High
// priorities get a visual marker prepended.
func (s *Service) Notify(ctx context.Context, n kit.Notification) error {
	if err := s.lim.Wait(ctx); err != nil {
		return err
	}
	text := n.Text
	switch {
	case n.Priority >= 8:
		text = "‼️ " + text
	case n.Priority >= 5:
		text = "⚠️ " + text
	}
	if _, err := s.adapter.SendText(ctx, n.Target, text, n.Options); err != nil {
		return fmt.Errorf("notify chat %d: %w", n.Target.ChatID, err)
	}
	return nil
}

// Send is the plain-text convenience form of Notify.
func (s *Service) Send(ctx context.Context, to kit.ChatTarget, text string) error {
	return s.Notify(ctx, kit.Notification{Target: to, Text: text})
}
