// Package ask forwards questions to the configured chat-completion model.
package ask

import (
	"context"
	"errors"
	"strings"
	"time"

	"chimebot/internal/core"
	"chimebot/internal/services/llm"
	"chimebot/pkg/logx"
)

const systemPrompt = "You are a helpful assistant inside a group chat. " +
	"Answer concisely, in plain text, without markdown."

type Plugin struct {
	log  logx.Logger
	deps core.PluginDeps
}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "ask" }

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
			Route:       "ask",
			Description: "ask the assistant a question",
			Usage:       "/ask <question>",
			Access:      core.AccessEveryone,
			Timeout:     90 * time.Second,
			Handle:      p.handle,
		},
	}
}

func (p *Plugin) handle(ctx context.Context, req *core.Request) error {
	q := req.Text()
	if strings.TrimSpace(q) == "" {
		return p.reply(ctx, req, "Ask me something: /ask <question>")
	}
	if !req.Services.Ask.Enabled() {
		return p.reply(ctx, req, "The assistant is not configured on this bot.")
	}

	answer, err := req.Services.Ask.Complete(ctx, systemPrompt, q)
	if err != nil {
		if errors.Is(err, llm.ErrDisabled) {
			return p.reply(ctx, req, "The assistant is not configured on this bot.")
		}
		p.log.Warn("completion failed", logx.Err(err))
		return p.reply(ctx, req, "The assistant didn't answer, try again later.")
	}
	return p.reply(ctx, req, answer)
}

func (p *Plugin) reply(ctx context.Context, req *core.Request, text string) error {
	_, err := req.Adapter.SendText(ctx, req.Chat, text, nil)
	return err
}
