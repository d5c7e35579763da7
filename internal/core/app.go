// Package core wires the application together: config, logging, storage,
// the host adapter, the trigger engine and the janitor.
package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"stagehand/internal/adapters/telegram"
	"stagehand/internal/config"
	"stagehand/internal/engine"
	"stagehand/internal/kit"
	"stagehand/internal/services/janitor"
	"stagehand/internal/services/logging"
	"stagehand/internal/storage"
	"stagehand/internal/tasks"
	"stagehand/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	logs *logging.Service
	log  *slog.Logger

	bus     *kit.Bus
	adapter *telegram.Adapter
	store   storage.Store
	repo    *tasks.Repository
	eng     *engine.Engine
	jan     *janitor.Service

	stopOnce sync.Once
	cancelWG sync.WaitGroup
	cancels  []context.CancelFunc
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	bootLog := logx.NewConsole("info")
	cfgm.SetLogger(bootLog.With(logx.String("comp", "config")))
	cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		return config.Validate(c)
	})

	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	app := &App{cfgm: cfgm}

	// Bootstrap logging first so everything below logs consistently.
	// The chat sink gets its sender once the adapter exists.
	bus := kit.NewBus(slog.New(logging.NewPrettyHandler(logging.Stdout(), slog.LevelInfo)).
		With(slog.String("comp", "bus")))
	app.bus = bus

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapterLog := slog.New(logging.NewPrettyHandler(logging.Stdout(), slog.LevelInfo)).
		With(slog.String("comp", "telegram"))
	ad, err := telegram.New(telegram.Config{
		Token:            cfg.Telegram.Token,
		AssistantUserIDs: cfg.Telegram.AssistantUserIDs,
		PollTimeout:      pollTimeout,
	}, bus, adapterLog)
	if err != nil {
		return nil, err
	}
	app.adapter = ad

	logSvc, log := logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logging.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logging.ChatConfig{
			Enabled:    cfg.Logging.Chat.Enabled,
			MinLevel:   cfg.Logging.Chat.MinLevel,
			RatePerSec: cfg.Logging.Chat.RatePerSec,
		},
	}, ad)
	app.logs = logSvc
	app.log = log.With(slog.String("comp", "app"))

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, bootLog.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	app.store = st

	engCfg, err := engineConfig(cfg.Engine)
	if err != nil {
		return nil, err
	}
	app.repo = tasks.NewRepository(st, engCfg.PersistDebounce, log.With(slog.String("comp", "tasks")))
	app.eng = engine.New(engCfg, engine.Deps{
		Repo:        app.repo,
		Store:       st,
		Transcripts: ad,
		Executor:    ad,
	}, log.With(slog.String("comp", "engine")))
	ad.SetCommandSurface(app.eng)

	sweepEvery, err := config.ParseDurationOrDefault("janitor.sweep_every", cfg.Janitor.SweepEvery, 30*time.Second)
	if err != nil {
		return nil, err
	}
	app.jan = janitor.New(janitor.Config{
		Enabled:    cfg.Janitor.Enabled,
		SweepEvery: sweepEvery,
	}, log.With(slog.String("comp", "janitor")))
	app.jan.Add("engine", app.eng.Sweep)

	return app, nil
}

func engineConfig(c config.Engine) (engine.Config, error) {
	out := engine.Config{
		CooldownMax: c.CooldownMax,
		LedgerMax:   c.LedgerMax,
	}
	var err error
	if out.CooldownWindow, err = config.ParseDurationField("engine.cooldown_window", c.CooldownWindow); err != nil {
		return out, err
	}
	if out.TransitionWindow, err = config.ParseDurationField("engine.transition_window", c.TransitionWindow); err != nil {
		return out, err
	}
	if out.SettleDelay, err = config.ParseDurationField("engine.settle_delay", c.SettleDelay); err != nil {
		return out, err
	}
	if out.PersistDebounce, err = config.ParseDurationField("engine.persist_debounce", c.PersistDebounce); err != nil {
		return out, err
	}
	return out, nil
}

func (a *App) Engine() *engine.Engine { return a.eng }

func (a *App) Start(ctx context.Context) error {
	if err := a.repo.Load(ctx); err != nil {
		return err
	}
	if err := a.adapter.Start(ctx); err != nil {
		return err
	}
	if err := a.eng.Start(ctx, a.bus); err != nil {
		return err
	}
	if err := a.jan.Start(ctx); err != nil {
		return err
	}

	// Follow the active chat with the log sink.
	events, unsub := a.bus.Subscribe(16)
	wctx, cancel := context.WithCancel(ctx)
	a.cancels = append(a.cancels, cancel)
	a.cancelWG.Add(1)
	go func() {
		defer a.cancelWG.Done()
		defer unsub()
		for {
			select {
			case <-wctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Kind == kit.EventChatChanged {
					a.logs.SetChatTarget(kit.ChatTarget{ChatID: ev.ChatID})
				}
			}
		}
	}()

	// Hot-reload: logging config applies live; the rest needs a restart.
	cfgCh := a.cfgm.Subscribe(1)
	wctx2, cancel2 := context.WithCancel(ctx)
	a.cancels = append(a.cancels, cancel2)
	a.cancelWG.Add(2)
	go func() {
		defer a.cancelWG.Done()
		_ = a.cfgm.Watch(wctx2)
	}()
	go func() {
		defer a.cancelWG.Done()
		for {
			select {
			case <-wctx2.Done():
				a.cfgm.Unsubscribe(cfgCh)
				return
			case cfg, ok := <-cfgCh:
				if !ok {
					return
				}
				a.logs.Apply(logging.Config{
					Level:   cfg.Logging.Level,
					Console: cfg.Logging.Console,
					File: logging.FileConfig{
						Enabled: cfg.Logging.File.Enabled,
						Path:    cfg.Logging.File.Path,
					},
					Chat: logging.ChatConfig{
						Enabled:    cfg.Logging.Chat.Enabled,
						MinLevel:   cfg.Logging.Chat.MinLevel,
						RatePerSec: cfg.Logging.Chat.RatePerSec,
					},
				})
				a.log.Info("logging config applied")
			}
		}
	}()

	a.log.Info("stagehand started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		for _, cancel := range a.cancels {
			cancel()
		}
		a.cancelWG.Wait()
		a.jan.Stop(ctx)
		a.eng.Stop(ctx)
		a.adapter.Stop()
		if a.store != nil {
			_ = a.store.Close()
		}
		_ = a.logs.Close()
		a.log.Info("stagehand stopped")
	})
	return nil
}
