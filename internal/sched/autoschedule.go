package sched

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "vellum/pkg/logx"
)

// AutoConfig controls the cron trigger for automatic scheduling runs.
type AutoConfig struct {
	Enabled  bool
	Spec     string // cron expression or descriptor; default "@daily"
	Timezone string // IANA zone for the cron clock
}

const defaultAutoSpec = "@daily"

// AutoScheduler periodically re-runs the scheduler for every user who opted
// in via preferences. It is trigger-only: each firing walks the opted-in
// users and invokes Service.Run with config defaults.
type AutoScheduler struct {
	svc *Service
	log logx.Logger

	mu  sync.Mutex
	cfg AutoConfig
	c   *cron.Cron
}

func NewAutoScheduler(svc *Service, cfg AutoConfig, log logx.Logger) *AutoScheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &AutoScheduler{svc: svc, cfg: cfg, log: log}
}

// Start begins cron triggering. It is a no-op when disabled or already
// started; an invalid spec is logged and leaves the trigger off.
func (a *AutoScheduler) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.c != nil || !a.cfg.Enabled {
		return
	}

	loc := time.UTC
	if tz := strings.TrimSpace(a.cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			a.log.Warn("auto-schedule timezone invalid; using UTC", logx.String("tz", tz), logx.Err(err))
		} else {
			loc = l
		}
	}

	spec := strings.TrimSpace(a.cfg.Spec)
	if spec == "" {
		spec = defaultAutoSpec
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(spec, func() { a.fire(ctx) }); err != nil {
		a.log.Error("auto-schedule spec invalid; trigger disabled", logx.String("spec", spec), logx.Err(err))
		return
	}
	c.Start()
	a.c = c
	a.log.Info("auto-schedule started", logx.String("spec", spec), logx.String("tz", loc.String()))
}

// Stop halts cron triggering and waits for a running firing to finish.
func (a *AutoScheduler) Stop(ctx context.Context) {
	a.mu.Lock()
	c := a.c
	a.c = nil
	a.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		// best-effort
	}
	a.log.Info("auto-schedule stopped")
}

// Apply restarts the trigger when the config changed.
func (a *AutoScheduler) Apply(ctx context.Context, cfg AutoConfig) {
	a.mu.Lock()
	unchanged := a.cfg == cfg
	a.cfg = cfg
	a.mu.Unlock()
	if unchanged {
		return
	}
	a.Stop(ctx)
	a.Start(ctx)
}

func (a *AutoScheduler) fire(ctx context.Context) {
	users, err := a.svc.store.AutoScheduleUsers(ctx)
	if err != nil {
		a.log.Warn("listing auto-schedule users failed", logx.Err(err))
		return
	}
	for _, userID := range users {
		if ctx.Err() != nil {
			return
		}
		res, err := a.svc.Run(ctx, userID, RunOptions{})
		if err != nil {
			// ErrNoPreferences here means the user toggled auto_schedule
			// before configuring hours; skip quietly at warn level.
			a.log.Warn("auto-schedule run failed", logx.String("user", userID), logx.Err(err))
			continue
		}
		a.log.Debug("auto-schedule run done",
			logx.String("user", userID),
			logx.Int("scheduled", res.ScheduledCount),
		)
	}
}
