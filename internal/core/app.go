package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chimebot/internal/adapters/telegram"
	"chimebot/internal/kit"
	"chimebot/internal/services/llm"
	"chimebot/internal/services/notify"
	"chimebot/internal/services/reminder"
	"chimebot/internal/services/scheduler"
	"chimebot/internal/storage"
	"chimebot/pkg/logx"
	"chimebot/pkg/naturaltime"
)

type App struct {
	cfgPath string

	cfgm *ConfigManager
	sup  *Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter *telegram.Adapter
	store   storage.Store

	rem   *reminder.Service
	sched *scheduler.Service
	notif *notify.Service
	ask   *llm.Client

	cmdm *CommandManager
	pm   *PluginManager

	updates chan kit.Update
}

// notifyDeliverer bridges the reminder service onto the rate-limited
// notifier path.
type notifyDeliverer struct {
	notif *notify.Service
}

func (d *notifyDeliverer) Deliver(ctx context.Context, e reminder.Entry) error {
	target := kit.ChatTarget{ChatID: e.ChatID}
	if target.ChatID == 0 {
		// Entries recorded without an origin chat go straight to the owner.
		target.ChatID = e.OwnerID
	}
	return d.notif.Send(ctx, target, reminder.DeliveryText(e))
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := NewConfigManager(cfgPath)
	cfg, err := cfgm.Load(context.Background())
	if err != nil {
		return nil, err
	}

	pollTimeout, err := durationSetting("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, logx.NewConsole(cfg.Logging.Level))
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}, ad)
	log = log.With(logx.String("comp", "app"))
	applyLogTarget(logSvc, cfg)

	store, err := storage.Open(storage.Config{Path: cfg.Storage.Path}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	remCfg, err := reminderConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	notifSvc := notify.New(notify.Config{
		RatePerSecond: cfg.Notify.RatePerSec,
		Burst:         cfg.Notify.Burst,
	}, ad, log)

	remSvc := reminder.New(remCfg, store, &notifyDeliverer{notif: notifSvc}, log)

	schedSvc := scheduler.New(scheduler.Config{
		Workers:   cfg.Scheduler.Workers,
		QueueSize: cfg.Scheduler.QueueSize,
	}, log)

	llmTimeout, err := durationSetting("llm.timeout", cfg.LLM.Timeout, 0)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	askSvc := llm.New(llm.Config{
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   llmTimeout,
	}, log)

	serv := &Services{
		Scheduler: schedSvc,
		Notifier:  notifSvc,
		Reminders: remSvc,
		Ask:       askSvc,
		Zones: &zoneService{
			store:       store,
			defaultZone: remCfg.DefaultTimezone,
			log:         log.With(logx.String("comp", "zones")),
		},
	}

	cmdm := NewCommandManager(log.With(logx.String("comp", "commands")),
		ad, cfgm, serv, cfg.Telegram.OwnerUserIDs)

	pm := NewPluginManager(log.With(logx.String("comp", "plugins")),
		cfgm, PluginDeps{
			Logger:      log,
			Adapter:     ad,
			Config:      cfgm,
			Services:    serv,
			OwnerUserID: cfg.Telegram.OwnerUserIDs,
		}, cmdm)

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		adapter: ad,
		store:   store,
		rem:     remSvc,
		sched:   schedSvc,
		notif:   notifSvc,
		ask:     askSvc,
		cmdm:    cmdm,
		pm:      pm,
		updates: make(chan kit.Update, 256),
	}, nil
}

func reminderConfig(cfg *Config) (reminder.Config, error) {
	tick, err := durationSetting("reminders.tick", cfg.Reminders.Tick, 0)
	if err != nil {
		return reminder.Config{}, err
	}
	dt, err := durationSetting("reminders.deliver_timeout", cfg.Reminders.DeliverTimeout, 0)
	if err != nil {
		return reminder.Config{}, err
	}
	rb, err := durationSetting("reminders.retry_backoff", cfg.Reminders.RetryBackoff, 0)
	if err != nil {
		return reminder.Config{}, err
	}
	if tz := strings.TrimSpace(cfg.Reminders.DefaultTimezone); tz != "" {
		if _, err := naturaltime.ResolveZone(tz); err != nil {
			return reminder.Config{}, fmt.Errorf("reminders.default_timezone: %w", err)
		}
	}
	return reminder.Config{
		MaxPerUser:      cfg.Reminders.MaxPerUser,
		DefaultTimezone: cfg.Reminders.DefaultTimezone,
		Tick:            tick,
		DeliverTimeout:  dt,
		RetryBackoff:    rb,
	}, nil
}

func applyLogTarget(logs *logx.Service, cfg *Config) {
	g := strings.TrimSpace(cfg.Telegram.GroupLog)
	if g == "" {
		logs.SetTelegramTarget(0, 0)
		return
	}
	if chatID, err := strconv.ParseInt(g, 10, 64); err == nil {
		logs.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
	}
}

func (a *App) Plugins() *PluginManager { return a.pm }

// Done is closed when the app supervisor context is cancelled (fatal error
// or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))

	// Transactional config reload: validate candidates before they commit.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *Config) error {
		if _, err := durationSetting("telegram.poll_timeout", cfg.Telegram.PollTimeout, 0); err != nil {
			return err
		}
		if _, err := reminderConfig(cfg); err != nil {
			return err
		}
		if cfg.Reminders.MaxPerUser < 0 {
			return fmt.Errorf("reminders.max_per_user must be >= 0")
		}
		if cfg.Scheduler.Workers < 0 {
			return fmt.Errorf("scheduler.workers must be >= 0")
		}
		if _, err := durationSetting("llm.timeout", cfg.LLM.Timeout, 0); err != nil {
			return err
		}
		return nil
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	if err := a.sched.Start(a.sup.Context()); err != nil {
		return err
	}
	a.rem.Load(a.sup.Context())
	a.sup.Go("reminders.run", func(c context.Context) error {
		return a.rem.Run(c)
	})

	if err := a.pm.StartAll(a.sup.Context()); err != nil {
		return err
	}

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	// hot reload fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(c, newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.refreshMenu(a.sup.Context())
	a.log.Info("app started")
	return nil
}

func (a *App) applyReload(ctx context.Context, cfg *Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	})
	applyLogTarget(a.logs, cfg)

	a.cmdm.SetOwners(cfg.Telegram.OwnerUserIDs)
	a.pm.SetOwnerUserIDs(cfg.Telegram.OwnerUserIDs)
	a.pm.OnConfigUpdate(ctx, cfg)
	a.refreshMenu(ctx)

	// Storage, reminder-loop and LLM settings are bound at startup.
	a.log.Info("config reloaded")
}

func (a *App) refreshMenu(ctx context.Context) {
	mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.adapter.UpdateMenuCommands(mctx, a.cmdm.MenuCommands()); err != nil {
		a.log.Warn("menu command update failed", logx.Err(err))
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Run a shutdown step with an upper bound so one component can't stall
	// the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem > 0 && rem < max {
					max = rem
				}
			}
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name), logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)))
		}
	}

	// Plugins first (they may depend on services).
	step("plugins", 4*time.Second, func(c context.Context) error { a.pm.StopAll(c, reason); return nil })
	step("scheduler", 2*time.Second, func(c context.Context) error { return a.sched.Stop(c) })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })
	step("logs", time.Second, func(context.Context) error { return a.logs.Close() })

	a.log.Info("stopped")
	return nil
}
