// Package roll is a dice roller: /roll 2d6+1 and friends.
package roll

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"chimebot/internal/core"
	"chimebot/pkg/logx"
)

const (
	maxDice  = 100
	maxSides = 1000
)

var diceRe = regexp.MustCompile(`^(\d*)d(\d+)([+-]\d+)?$`)

type spec struct {
	count    int
	sides    int
	modifier int
}

// parseSpec understands "NdM", "dM" and an optional "+K"/"-K" suffix.
func parseSpec(s string) (spec, error) {
	m := diceRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return spec{}, fmt.Errorf("bad dice spec %q", s)
	}
	out := spec{count: 1}
	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return spec{}, fmt.Errorf("bad dice count in %q", s)
		}
		out.count = n
	}
	sides, err := strconv.Atoi(m[2])
	if err != nil || sides < 2 {
		return spec{}, fmt.Errorf("dice need at least 2 sides, got %q", s)
	}
	out.sides = sides
	if m[3] != "" {
		k, err := strconv.Atoi(m[3])
		if err != nil {
			return spec{}, fmt.Errorf("bad modifier in %q", s)
		}
		out.modifier = k
	}
	if out.count > maxDice || out.sides > maxSides {
		return spec{}, fmt.Errorf("that's too many dice (max %dd%d)", maxDice, maxSides)
	}
	return out, nil
}

func (s spec) roll(rng *rand.Rand) (total int, rolls []int) {
	rolls = make([]int, s.count)
	for i := range rolls {
		rolls[i] = rng.Intn(s.sides) + 1
		total += rolls[i]
	}
	return total + s.modifier, rolls
}

type Plugin struct {
	log  logx.Logger
	deps core.PluginDeps
	rng  *rand.Rand
}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "roll" }

func (p *Plugin) Init(ctx context.Context, deps core.PluginDeps) error {
	p.deps = deps
	p.log = deps.Logger.With(logx.String("plugin", p.Name()))
	p.rng = rand.New(rand.NewSource(rand.Int63()))
	return nil
}

func (p *Plugin) Start(ctx context.Context) error { return nil }
func (p *Plugin) Stop(ctx context.Context) error  { return nil }

func (p *Plugin) Commands() []core.Command {
	return []core.Command{
		{
			Route:       "roll",
			Description: "roll dice",
			Usage:       "/roll [NdM[+K]]   e.g. /roll 2d6+1",
			Access:      core.AccessEveryone,
			Handle:      p.handle,
		},
	}
}

func (p *Plugin) handle(ctx context.Context, req *core.Request) error {
	arg := "1d6"
	if len(req.Args) > 0 {
		arg = req.Args[0]
	}
	s, err := parseSpec(arg)
	if err != nil {
		return p.reply(ctx, req, "I roll dice like 1d6, 2d20 or 3d8+2.")
	}

	total, rolls := s.roll(p.rng)
	text := fmt.Sprintf("🎲 %d", total)
	if len(rolls) > 1 || s.modifier != 0 {
		parts := make([]string, len(rolls))
		for i, r := range rolls {
			parts[i] = strconv.Itoa(r)
		}
		text += " (" + strings.Join(parts, " + ")
		if s.modifier > 0 {
			text += fmt.Sprintf(" +%d", s.modifier)
		} else if s.modifier < 0 {
			text += fmt.Sprintf(" %d", s.modifier)
		}
		text += ")"
	}
	return p.reply(ctx, req, text)
}

func (p *Plugin) reply(ctx context.Context, req *core.Request, text string) error {
	_, err := req.Adapter.SendText(ctx, req.Chat, text, nil)
	return err
}
