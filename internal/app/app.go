// Package app wires configuration, storage, the scheduler and the HTTP API
// into one lifecycle.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"vellum/internal/ai"
	"vellum/internal/config"
	"vellum/internal/debug"
	"vellum/internal/sched"
	"vellum/internal/server"
	"vellum/internal/storage"
	logx "vellum/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager

	logs *logx.Service
	log  logx.Logger

	store    *storage.Store
	schedSvc *sched.Service
	auto     *sched.AutoScheduler
	srv      *server.Server
	pprof    *debug.PprofServer

	cancel context.CancelFunc
	wg     sync.WaitGroup
	errCh  chan error
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, logs.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	schedSvc := sched.NewService(store, sched.Config{
		Timezone:       cfg.Scheduler.Timezone,
		DaysToSchedule: cfg.Scheduler.DaysToSchedule,
	}, logs.Logger().With(logx.String("comp", "scheduler")))

	auto := sched.NewAutoScheduler(schedSvc, autoConfig(cfg),
		logs.Logger().With(logx.String("comp", "autoschedule")))

	var classifier server.Classifier
	if aiSvc, err := buildAI(cfg, store, logs.Logger().With(logx.String("comp", "ai"))); err != nil {
		return nil, err
	} else if aiSvc != nil {
		classifier = aiSvc
	}

	srvCfg, err := serverConfig(cfg)
	if err != nil {
		return nil, err
	}
	srv := server.New(srvCfg, store, schedSvc, classifier,
		logs.Logger().With(logx.String("comp", "http")))

	return &App{
		cfgm:     cfgm,
		logs:     logs,
		log:      log,
		store:    store,
		schedSvc: schedSvc,
		auto:     auto,
		srv:      srv,
		pprof:    debug.NewPprofServer(logs.Logger().With(logx.String("comp", "pprof"))),
		errCh:    make(chan error, 1),
	}, nil
}

// Err delivers the first fatal error from a background component.
func (a *App) Err() <-chan error { return a.errCh }

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.cfgm.SetLogger(a.logs.Logger().With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	cfg := a.cfgm.Get()
	a.pprof.Apply(runCtx, pprofConfig(cfg))
	a.auto.Start(runCtx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.srv.Start(); err != nil {
			a.log.Error("http server failed", logx.Err(err))
			select {
			case a.errCh <- err:
			default:
			}
			cancel()
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.reloadLoop(runCtx)
	}()

	a.log.Info("app started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}

	a.auto.Stop(ctx)
	if err := a.srv.Stop(ctx); err != nil {
		a.log.Warn("http shutdown error", logx.Err(err))
	}
	a.pprof.Stop(ctx)

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("stop deadline reached; continuing")
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("closing storage failed", logx.Err(err))
	}
	a.log.Info("stopped")
	return a.logs.Close()
}

// reloadLoop applies hot config changes: logging sinks, bearer tokens, the
// auto-schedule trigger and the pprof listener. Storage, AI and the listen
// address need a restart.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)

	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					goto apply
				}
			}
		apply:
			sections, attrs := config.SummarizeConfigChange(last, cfg)
			last = cfg
			if len(sections) == 0 {
				a.log.Debug("config reload received, but no effective changes detected")
				continue
			}

			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			a.srv.SetTokens(cfg.Server.Tokens)
			a.auto.Apply(ctx, autoConfig(cfg))
			a.pprof.Apply(ctx, pprofConfig(cfg))

			a.log.Info("config reloaded",
				append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)
		}
	}
}

func validate(cfg *config.Config) error {
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	if cfg.Scheduler.DaysToSchedule < 0 {
		return fmt.Errorf("scheduler.days_to_schedule must be >= 0")
	}
	if _, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		return err
	}
	for _, f := range []struct{ path, raw string }{
		{"server.read_timeout", cfg.Server.ReadTimeout},
		{"server.write_timeout", cfg.Server.WriteTimeout},
		{"server.idle_timeout", cfg.Server.IdleTimeout},
	} {
		if _, err := config.ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	if cfg.AI != nil {
		if _, err := config.ParseDurationField("ai.timeout", cfg.AI.Timeout); err != nil {
			return err
		}
	}
	return nil
}

func serverConfig(cfg *config.Config) (server.Config, error) {
	read, err := config.ParseDurationField("server.read_timeout", cfg.Server.ReadTimeout)
	if err != nil {
		return server.Config{}, err
	}
	write, err := config.ParseDurationField("server.write_timeout", cfg.Server.WriteTimeout)
	if err != nil {
		return server.Config{}, err
	}
	idle, err := config.ParseDurationField("server.idle_timeout", cfg.Server.IdleTimeout)
	if err != nil {
		return server.Config{}, err
	}
	return server.Config{
		Addr:         cfg.Server.Addr,
		Debug:        cfg.Server.Debug,
		CORS:         cfg.Server.CORS,
		Tokens:       cfg.Server.Tokens,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}, nil
}

func buildAI(cfg *config.Config, store *storage.Store, log logx.Logger) (*ai.Service, error) {
	if cfg.AI == nil || !cfg.AI.Enabled {
		return nil, nil
	}
	timeout, err := config.ParseDurationField("ai.timeout", cfg.AI.Timeout)
	if err != nil {
		return nil, err
	}
	loc := time.UTC
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	return ai.NewService(ai.Config{
		Enabled:    true,
		APIKey:     cfg.AI.APIKey,
		BaseURL:    cfg.AI.BaseURL,
		Model:      cfg.AI.Model,
		DailyLimit: cfg.AI.DailyLimit,
		RatePerSec: float64(cfg.AI.RatePerSec),
		Timeout:    timeout,
	}, store, loc, log), nil
}

func autoConfig(cfg *config.Config) sched.AutoConfig {
	out := sched.AutoConfig{Timezone: cfg.Scheduler.Timezone}
	if cfg.Scheduler.Auto != nil {
		out.Enabled = cfg.Scheduler.Auto.Enabled
		out.Spec = cfg.Scheduler.Auto.Spec
	}
	return out
}

func pprofConfig(cfg *config.Config) debug.PprofConfig {
	return debug.PprofConfig{
		Enabled:              cfg.Pprof.Enabled,
		Address:              cfg.Pprof.Address,
		BlockProfileRate:     cfg.Pprof.BlockProfileRate,
		MutexProfileFraction: cfg.Pprof.MutexProfileFraction,
	}
}
