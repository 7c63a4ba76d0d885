// Package llm wraps the OpenAI-compatible chat completion API used by the
// /ask command. The base URL is configurable so any compatible provider
// works.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"chimebot/pkg/logx"
)

// ErrDisabled means no API key is configured; callers should tell the user
// the feature is off rather than report a failure.
var ErrDisabled = errors.New("llm: not configured")

type Config struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	BaseURL string `json:"base_url" yaml:"base_url"`
	// Model defaults to gpt-4o-mini.
	Model string `json:"model" yaml:"model"`
	// MaxTokens caps the reply length. Default 700.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
	// Timeout bounds one completion call. Default 60s.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = openai.GPT4oMini
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 700
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c
}

type Client struct {
	cfg Config
	api *openai.Client
	log logx.Logger
}

// New builds the client. A missing API key yields a client whose calls
// return ErrDisabled, so wiring stays unconditional.
func New(cfg Config, log logx.Logger) *Client {
	cfg = cfg.withDefaults()
	c := &Client{cfg: cfg, log: log.With(logx.String("svc", "llm"))}
	if cfg.APIKey == "" {
		return c
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	c.api = openai.NewClientWithConfig(oc)
	return c
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c.api != nil }

// Complete sends one system+user prompt pair and returns the reply text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if c.api == nil {
		return "", ErrDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: empty response")
	}
	c.log.Debug("completion served",
		logx.String("model", c.cfg.Model),
		logx.Int("prompt_tokens", resp.Usage.PromptTokens),
		logx.Int("completion_tokens", resp.Usage.CompletionTokens),
		logx.Duration("took", time.Since(start)))
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
