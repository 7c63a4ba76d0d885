// Package tz lets users pick the IANA time zone their reminders are
// interpreted and displayed in.
package tz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chimebot/internal/core"
	"chimebot/pkg/logx"
	"chimebot/pkg/naturaltime"
)

type Plugin struct {
	log  logx.Logger
	deps core.PluginDeps
}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "tz" }

func (p *Plugin) Init(ctx context.Context, deps core.PluginDeps) error {
	p.deps = deps
	p.log = deps.Logger.With(logx.String("plugin", p.Name()))
	return nil
}

func (p *Plugin) Start(ctx context.Context) error { return nil }
func (p *Plugin) Stop(ctx context.Context) error  { return nil }

func (p *Plugin) Commands() []core.Command {
	return []core.Command{
		{
			Route:       "timezone",
			Aliases:     []string{"tz"},
			Description: "show or set your time zone",
			Usage:       "/timezone [set] [Area/City]",
			Access:      core.AccessEveryone,
			Handle:      p.handle,
		},
	}
}

func (p *Plugin) handle(ctx context.Context, req *core.Request) error {
	args := req.Args
	if len(args) > 0 && args[0] == "set" {
		args = args[1:]
	}

	if len(args) == 0 {
		zone := req.Services.Zones.UserZone(ctx, req.FromID)
		loc, err := naturaltime.ResolveZone(zone)
		if err != nil {
			return p.reply(ctx, req, fmt.Sprintf("Your zone is %s, but it no longer resolves. Set a new one with /timezone set Area/City.", zone))
		}
		return p.reply(ctx, req, fmt.Sprintf("Your time zone is %s. Local time: %s.\nChange it with /timezone set Area/City.",
			zone, time.Now().In(loc).Format("Mon 2 Jan 15:04")))
	}

	zone := args[0]
	if _, err := naturaltime.ResolveZone(zone); err != nil {
		if errors.Is(err, naturaltime.ErrUnknownZone) {
			return p.reply(ctx, req, fmt.Sprintf("%q is not a zone I know. Use an IANA name like Pacific/Auckland or Europe/Berlin.", zone))
		}
		return err
	}
	if err := req.Services.Zones.SetUserZone(ctx, req.FromID, zone); err != nil {
		return err
	}
	p.log.Info("user zone updated", logx.Int64("user", req.FromID), logx.String("zone", zone))
	return p.reply(ctx, req, fmt.Sprintf("Done, your reminders now use %s.", zone))
}

func (p *Plugin) reply(ctx context.Context, req *core.Request, text string) error {
	_, err := req.Adapter.SendText(ctx, req.Chat, text, nil)
	return err
}
