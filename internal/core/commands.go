package core

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"time"

	"chimebot/internal/kit"
	"chimebot/internal/services/reminder"
	"chimebot/internal/services/scheduler"
	"chimebot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type Command struct {
	// Route is a space-separated command path, e.g.:
	//   "remind"
	//   "remind cancel"
	Route       string
	Aliases     []string // root-level aliases, e.g. ["r"]
	Description string
	Usage       string
	Access      Access

	PluginName string
	Timeout    time.Duration // optional per-command override
	Handle     HandlerFunc
}

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Path    []string // matched command path tokens
	Command string
	Args    []string

	RawArgs   []string
	Flags     map[string]string
	BoolFlags map[string]bool
	ReqID     string

	Adapter     kit.Adapter
	Config      *Config
	Logger      logx.Logger
	Services    *Services
	OwnerUserID []int64
}

// Text returns everything after the matched command path, whitespace intact
// apart from trimming. Natural-language arguments must not go through the
// tokenizer, which would eat quotes and collapse runs of spaces.
func (r *Request) Text() string {
	msg := r.Update.Message
	if msg == nil {
		return ""
	}
	rest := strings.TrimSpace(msg.Text)
	for range r.Path {
		rest = strings.TrimSpace(rest)
		i := strings.IndexAny(rest, " \t")
		if i < 0 {
			return ""
		}
		rest = rest[i:]
	}
	return strings.TrimSpace(rest)
}

// Services are the ports plugins program against.
type Services struct {
	Scheduler SchedulerPort
	Notifier  NotifierPort
	Reminders ReminderPort
	Zones     ZonePort
	Ask       AskPort
}

type SchedulerPort interface {
	AddInterval(name string, every time.Duration, job scheduler.Job) error
	AddDaily(name, at string, job scheduler.Job) error
}

type NotifierPort interface {
	Notify(ctx context.Context, n kit.Notification) error
	Send(ctx context.Context, to kit.ChatTarget, text string) error
}

type ReminderPort interface {
	Add(ctx context.Context, e reminder.Entry) (reminder.Entry, error)
	Cancel(ctx context.Context, ownerID int64, id string) error
	CancelAll(ctx context.Context, ownerID int64) (int, error)
	ListForOwner(ownerID int64) []reminder.Entry
	PurgeExpired(ctx context.Context) (int64, error)
}

// ZonePort resolves and stores per-user display time zones.
type ZonePort interface {
	UserZone(ctx context.Context, userID int64) string
	SetUserZone(ctx context.Context, userID int64, zone string) error
}

type AskPort interface {
	Enabled() bool
	Complete(ctx context.Context, system, user string) (string, error)
}

type CommandManager struct {
	mu sync.RWMutex

	routes *routeSet
	alias  map[string]*Command

	owners []int64

	log     logx.Logger
	adapter kit.Adapter
	cfgm    *ConfigManager
	serv    *Services

	jobs chan func()
}

func NewCommandManager(log logx.Logger, adapter kit.Adapter, cfgm *ConfigManager, serv *Services, owners []int64) *CommandManager {
	// copy to avoid callers mutating the slice after construction
	ownCopy := append([]int64(nil), owners...)
	return &CommandManager{
		routes:  newRouteSet(),
		alias:   map[string]*Command{},
		log:     log,
		adapter: adapter,
		cfgm:    cfgm,
		serv:    serv,
		owners:  ownCopy,
		jobs:    make(chan func(), 256),
	}
}

// SetOwners updates the owner list used for AccessOwnerOnly checks.
// Safe to call during hot-reload.
func (m *CommandManager) SetOwners(owners []int64) {
	ownCopy := append([]int64(nil), owners...)
	m.mu.Lock()
	m.owners = ownCopy
	m.mu.Unlock()
}

func (m *CommandManager) ownersSnapshot() []int64 {
	m.mu.RLock()
	cp := append([]int64(nil), m.owners...)
	m.mu.RUnlock()
	return cp
}

func (m *CommandManager) SetRegistry(cmds []Command) {
	// always inject help
	helper := Command{
		Route:       "help",
		Aliases:     []string{"h", "start"},
		Description: "show help",
		Usage:       "/help [cmd] [sub...]",
		Access:      AccessEveryone,
		Handle: func(ctx context.Context, req *Request) error {
			text := m.helpText(req.Args)
			_, _ = req.Adapter.SendText(ctx, req.Chat, text, &kit.SendOptions{DisablePreview: true})
			return nil
		},
	}
	cmds = append(cmds, helper)

	routes := newRouteSet()
	alias := map[string]*Command{}

	for _, c := range cmds {
		route := routeWords(c.Route)
		if len(route) == 0 || c.Handle == nil {
			continue
		}
		cc := c // copy
		routes.put(route, cc)

		leaf := routes.lookup(route)
		// auto alias for two-word routes: "remind list" -> "remind_list"
		if len(route) > 1 {
			auto := strings.Join(route, "_")
			if _, exists := alias[auto]; !exists {
				alias[auto] = leaf
			}
		}
		for _, a := range c.Aliases {
			a = strings.TrimSpace(a)
			if a == "" || strings.Contains(a, " ") {
				continue
			}
			alias[a] = leaf
		}
	}

	m.mu.Lock()
	m.routes = routes
	m.alias = alias
	m.mu.Unlock()
}

// MenuCommands lists the registered root commands for the platform menu.
func (m *CommandManager) MenuCommands() []kit.BotCommand {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []kit.BotCommand
	for _, word := range m.routes.words() {
		e, _ := m.routes.entry(word)
		desc := ""
		if e.cmd != nil {
			if e.cmd.Access == AccessOwnerOnly {
				continue
			}
			desc = e.cmd.Description
		}
		out = append(out, kit.BotCommand{Command: word, Description: desc})
	}
	return out
}

func (m *CommandManager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	m.log.Info("command dispatcher started", logx.Int("workers", workers))

	var (
		wg        sync.WaitGroup
		closeOnce sync.Once
	)
	closeJobs := func() {
		closeOnce.Do(func() { close(m.jobs) })
	}

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-m.jobs:
					if !ok {
						return
					}
					if job == nil {
						continue
					}
					job()
				}
			}
		}()
	}

	defer func() {
		closeJobs()
		wg.Wait()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if up.Kind == kit.UpdateMessage {
				m.routeMessage(ctx, up)
			}
		}
	}
}

func (m *CommandManager) routeMessage(root context.Context, up kit.Update) {
	if up.Message == nil {
		return
	}
	msg := up.Message
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return
	}
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	args := []string{}
	if len(parts) > 1 {
		args = parts[1:]
	}

	// snapshot registry
	m.mu.RLock()
	routes := m.routes
	aliasMap := m.alias
	m.mu.RUnlock()

	// alias as root-level shortcut
	if ac, ok := aliasMap[word]; ok && ac != nil {
		cmd := *ac
		pos, flags, bools := parseFlags(args)
		m.enqueueCommand(root, up, cmd, routeWords(cmd.Route), pos, args, flags, bools)
		return
	}

	entry, ok := routes.entry(word)
	if !ok {
		// In a group any slash-prefixed text can be meant for another bot;
		// only nag about unknown commands in private chats.
		if !msg.IsGroup {
			_, _ = m.adapter.SendText(root, kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}, "unknown command. try /help", nil)
		}
		return
	}

	// At most one subcommand word follows ("remind list", "remind cancel");
	// anything else stays in args for the handler.
	path := []string{word}
	cmd := entry.cmd
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		if sc, ok := entry.subs[args[0]]; ok {
			cmd = sc
			path = append(path, args[0])
			args = args[1:]
		}
	}

	// A bare container word ("remind" without a root handler) shows its help.
	if cmd == nil {
		txt := m.helpText(path)
		_, _ = m.adapter.SendText(root, kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}, txt, &kit.SendOptions{DisablePreview: true})
		return
	}

	pos, flags, bools := parseFlags(args)
	m.enqueueCommand(root, up, *cmd, path, pos, args, flags, bools)
}

func (m *CommandManager) enqueueCommand(root context.Context, up kit.Update, cmd Command, path []string, args []string, raw []string, flags map[string]string, bools map[string]bool) {
	msg := up.Message
	if msg == nil {
		return
	}

	owners := m.ownersSnapshot()
	if cmd.Access == AccessOwnerOnly && !isOwner(msg.FromID, owners) {
		_, _ = m.adapter.SendText(root, kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}, "unauthorized", nil)
		return
	}

	rid := newReqID()
	reqLog := m.log.With(
		logx.String("rid", rid),
		logx.Int64("chat_id", msg.ChatID),
		logx.Int64("from_id", msg.FromID),
		logx.String("cmd", cmd.Route),
	)

	req := &Request{
		Update:      up,
		Chat:        kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		FromID:      msg.FromID,
		Path:        path,
		Command:     cmd.Route,
		Args:        args,
		RawArgs:     raw,
		Flags:       flags,
		BoolFlags:   bools,
		ReqID:       rid,
		Adapter:     m.adapter,
		Config:      m.cfgm.Get(),
		Logger:      reqLog,
		Services:    m.serv,
		OwnerUserID: owners,
	}

	final := Chain(
		cmd.Handle,
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWTimeout(cmd.Timeout),
	)

	select {
	case m.jobs <- func() { _ = final(root, req) }:
	default:
		_, _ = m.adapter.SendText(root, req.Chat, "busy, try again", nil)
	}
}

func isOwner(id int64, owners []int64) bool {
	for _, o := range owners {
		if o == id {
			return true
		}
	}
	return false
}
