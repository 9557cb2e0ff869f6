package sched

import (
	"context"
	"strings"
	"sync"
	"time"

	logx "vellum/pkg/logx"
)

// Store is the slice of the persistence layer a scheduling run needs.
// The engine itself never touches it; only Service does, around the pure
// Schedule call.
type Store interface {
	// LoadSchedulingContext returns the user's tasks (with history), the
	// committed instances of all tasks, and the preferences. Preferences
	// are nil when the user never configured availability.
	LoadSchedulingContext(ctx context.Context, userID string) ([]Task, []Instance, *Preferences, error)

	// MarkOverdueInstancesMissed closes scheduled-but-never-started
	// instances whose end lies in the past.
	MarkOverdueInstancesMissed(ctx context.Context, userID string, now time.Time) (int, error)

	// ClearPendingInstances removes future not-yet-started scheduled
	// instances so the run can recompute them.
	ClearPendingInstances(ctx context.Context, userID string, now time.Time) (int, error)

	// CommitInstances bulk-persists newly placed instances.
	CommitInstances(ctx context.Context, userID string, instances []Instance) error

	// AutoScheduleUsers lists users who opted into automatic runs.
	AutoScheduleUsers(ctx context.Context) ([]string, error)
}

// Config carries scheduling-run defaults from the config file.
type Config struct {
	Timezone       string
	DaysToSchedule int
}

// Service wraps the pure engine with the read, reconcile and commit phases.
//
// Reconciliation and persistence failures are logged and non-fatal; only
// missing preferences or a bad timezone abort a run. Service also enforces
// the one-run-per-user rule the engine itself assumes.
type Service struct {
	store Store
	log   logx.Logger
	cfg   Config

	mu      sync.Mutex
	running map[string]struct{}
}

func NewService(store Store, cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		store:   store,
		log:     log,
		cfg:     cfg,
		running: make(map[string]struct{}),
	}
}

// RunOptions are per-request overrides; zero values fall back to config
// defaults (and Now to the wall clock).
type RunOptions struct {
	Days int
	Zone string
	Now  time.Time
}

// Run executes one scheduling run for a user: reconcile stale instances,
// load the snapshot, compute placements, commit them.
func (s *Service) Run(ctx context.Context, userID string, opts RunOptions) (Result, error) {
	if err := s.acquire(userID); err != nil {
		return Result{}, err
	}
	defer s.release(userID)

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	zone := strings.TrimSpace(opts.Zone)
	if zone == "" {
		zone = s.cfg.Timezone
	}
	days := opts.Days
	if days == 0 {
		days = s.cfg.DaysToSchedule
	}
	days = ClampDays(days)

	started := time.Now()
	log := s.log.With(logx.String("user", userID))

	// Best-effort reconciliation; a failure here must not block scheduling.
	if n, err := s.store.MarkOverdueInstancesMissed(ctx, userID, now); err != nil {
		log.Warn("marking overdue instances failed", logx.Err(err))
	} else if n > 0 {
		log.Debug("overdue instances marked missed", logx.Int("count", n))
	}
	if n, err := s.store.ClearPendingInstances(ctx, userID, now); err != nil {
		log.Warn("clearing pending instances failed", logx.Err(err))
	} else if n > 0 {
		log.Debug("pending instances cleared", logx.Int("count", n))
	}

	tasks, existing, prefs, err := s.store.LoadSchedulingContext(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	res, err := Schedule(Input{
		Tasks:       tasks,
		Preferences: prefs,
		Existing:    existing,
		Now:         now,
		Days:        days,
		Zone:        zone,
	})
	if err != nil {
		return Result{}, err
	}

	if len(res.Instances) > 0 {
		if err := s.store.CommitInstances(ctx, userID, res.Instances); err != nil {
			// The computation stands; the caller still gets the result.
			log.Error("committing instances failed", logx.Err(err), logx.Int("count", len(res.Instances)))
		}
	}

	log.Info("scheduling run finished",
		logx.Int("days", days),
		logx.String("zone", zone),
		logx.Int("scheduled", res.ScheduledCount),
		logx.Int("unschedulable", len(res.Unschedulable)),
		logx.Duration("took", time.Since(started)),
	)
	return res, nil
}

func (s *Service) acquire(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.running[userID]; busy {
		return ErrRunInProgress
	}
	s.running[userID] = struct{}{}
	return nil
}

func (s *Service) release(userID string) {
	s.mu.Lock()
	delete(s.running, userID)
	s.mu.Unlock()
}
