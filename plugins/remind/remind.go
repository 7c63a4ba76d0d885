// Package remind implements the reminder commands: setting from natural
// language, listing, and cancelling, plus the periodic purge of stale rows.
package remind

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"chimebot/internal/core"
	"chimebot/internal/services/reminder"
	"chimebot/pkg/logx"
	"chimebot/pkg/naturaltime"
)

const usageText = `I couldn't find a time in that. Try:
/remind me in 20 minutes to stretch
/remind tomorrow at 6pm to call mum
/remind "buy milk" friday at 3pm`

type Config struct {
	// CleanupInterval is how often stale stored rows are purged. Go
	// duration string, default "1h".
	CleanupInterval string `json:"cleanup_interval"`
}

type Plugin struct {
	log  logx.Logger
	cfg  Config
	deps core.PluginDeps

	cleanupOnce sync.Once
}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "remind" }

func (p *Plugin) Init(ctx context.Context, deps core.PluginDeps) error {
	p.deps = deps
	p.log = deps.Logger.With(logx.String("plugin", p.Name()))
	return nil
}

func (p *Plugin) OnConfigChange(ctx context.Context, raw json.RawMessage) error {
	c, err := core.DecodePluginConfig[Config](raw)
	if err != nil {
		return err
	}
	if c.CleanupInterval != "" {
		if _, err := time.ParseDuration(c.CleanupInterval); err != nil {
			return fmt.Errorf("cleanup_interval: %w", err)
		}
	}
	p.cfg = c
	return nil
}

func (p *Plugin) Start(ctx context.Context) error {
	interval := time.Hour
	if p.cfg.CleanupInterval != "" {
		if d, err := time.ParseDuration(p.cfg.CleanupInterval); err == nil && d > 0 {
			interval = d
		}
	}
	var err error
	// The scheduler keeps entries for the process lifetime, so register
	// only on the first enable.
	p.cleanupOnce.Do(func() {
		err = p.deps.Services.Scheduler.AddInterval("remind:cleanup", interval, func(ctx context.Context) {
			n, perr := p.deps.Services.Reminders.PurgeExpired(ctx)
			if perr != nil {
				p.log.Warn("stale reminder purge failed", logx.Err(perr))
				return
			}
			if n > 0 {
				p.log.Info("stale reminders purged", logx.Int64("count", n))
			}
		})
	})
	return err
}

func (p *Plugin) Stop(ctx context.Context) error { return nil }

func (p *Plugin) Commands() []core.Command {
	return []core.Command{
		{
			Route:       "remind",
			Aliases:     []string{"r"},
			Description: "set a reminder from natural language",
			Usage:       `/remind me <when> to <message>  OR  /remind "<message>" <when>`,
			Access:      core.AccessEveryone,
			Handle:      p.handleSet,
		},
		{
			Route:       "remind list",
			Aliases:     []string{"reminders"},
			Description: "list your pending reminders",
			Usage:       "/remind list",
			Access:      core.AccessEveryone,
			Handle:      p.handleList,
		},
		{
			Route:       "remind cancel",
			Description: "cancel a reminder by id, or all of them",
			Usage:       "/remind cancel <id|all>",
			Access:      core.AccessEveryone,
			Handle:      p.handleCancel,
		},
	}
}

func (p *Plugin) handleSet(ctx context.Context, req *core.Request) error {
	text := req.Text()
	if strings.TrimSpace(text) == "" {
		return p.reply(ctx, req, usageText)
	}

	zone := req.Services.Zones.UserZone(ctx, req.FromID)
	loc, err := naturaltime.ResolveZone(zone)
	if err != nil {
		// A broken stored zone should not lock the user out.
		p.log.Warn("stored zone invalid, using UTC", logx.String("zone", zone), logx.Err(err))
		zone, loc = "UTC", time.UTC
	}

	now := time.Now()
	for _, cand := range splitCandidates(text) {
		when, msg := cand[0], cand[1]
		due, ok := naturaltime.Parse(when, loc, now)
		if !ok {
			continue
		}
		e, err := req.Services.Reminders.Add(ctx, reminder.Entry{
			OwnerID: req.FromID,
			ChatID:  req.Chat.ChatID,
			Message: msg,
			Zone:    zone,
			DueAt:   due,
		})
		if err != nil {
			return p.reply(ctx, req, addErrorText(err))
		}
		return p.reply(ctx, req, fmt.Sprintf("Got it. I'll remind you on %s [%s].",
			reminder.LocalDue(e), reminder.ShortID(e.ID)))
	}
	return p.reply(ctx, req, usageText)
}

func addErrorText(err error) string {
	switch {
	case errors.Is(err, reminder.ErrQuotaExceeded):
		return "You already have the maximum number of pending reminders. Cancel one first (/remind cancel)."
	case errors.Is(err, reminder.ErrDuplicate):
		return "You already have a reminder at that exact time. Pick a slightly different one."
	case errors.Is(err, reminder.ErrPastDue):
		return "That time has already passed. Give me something in the future."
	default:
		return "Couldn't save that reminder, sorry. Try again in a moment."
	}
}

func (p *Plugin) handleList(ctx context.Context, req *core.Request) error {
	entries := req.Services.Reminders.ListForOwner(req.FromID)
	return p.reply(ctx, req, reminder.FormatList(entries))
}

func (p *Plugin) handleCancel(ctx context.Context, req *core.Request) error {
	if len(req.Args) == 0 {
		return p.reply(ctx, req, "Usage: /remind cancel <id|all> — the id is shown by /remind list.")
	}
	ref := strings.ToLower(strings.TrimSpace(req.Args[0]))

	if ref == "all" {
		n, err := req.Services.Reminders.CancelAll(ctx, req.FromID)
		if err != nil {
			return err
		}
		return p.reply(ctx, req, fmt.Sprintf("Cancelled %d reminder(s).", n))
	}

	var matches []reminder.Entry
	for _, e := range req.Services.Reminders.ListForOwner(req.FromID) {
		if strings.HasPrefix(strings.ToLower(e.ID), ref) {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return p.reply(ctx, req, "No reminder with that id. See /remind list.")
	case 1:
		if err := req.Services.Reminders.Cancel(ctx, req.FromID, matches[0].ID); err != nil {
			return err
		}
		return p.reply(ctx, req, fmt.Sprintf("Cancelled %q.", matches[0].Message))
	default:
		return p.reply(ctx, req, "That id matches more than one reminder, give me a few more characters.")
	}
}

func (p *Plugin) reply(ctx context.Context, req *core.Request, text string) error {
	_, err := req.Adapter.SendText(ctx, req.Chat, text, nil)
	return err
}
