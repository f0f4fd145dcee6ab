// Package jobs runs the periodic work of the booking lifecycle: sweeping
// abandoned requests, dispatching due reminders and completing elapsed
// sessions. Every run holds a distributed lock so replicas never run the same
// job at once.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/lo"

	"github.com/Alijeyrad/rookie_backend/config"
	"github.com/Alijeyrad/rookie_backend/internal/service/booking"
	"github.com/Alijeyrad/rookie_backend/internal/service/notification"
	redispkg "github.com/Alijeyrad/rookie_backend/pkg/redis"
)

const (
	JobSweep     = "sweep"
	JobReminders = "reminders"
	JobComplete  = "complete"

	defaultSweepSchedule     = "*/5 * * * *"
	defaultRemindersSchedule = "* * * * *"
	defaultCompleteSchedule  = "*/5 * * * *"
	defaultLockTTL           = 5 * time.Minute
)

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrLocked     = errors.New("job is already running elsewhere")
)

// Job processes whatever is due at now and reports how many items it
// handled.
type Job func(ctx context.Context, now time.Time) (int, error)

// Lock is a held job lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out job locks. Acquire returns a nil Lock when the job is
// held elsewhere.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (Lock, error)
}

// Metrics counts job runs.
type Metrics interface {
	RecordJob(ctx context.Context, job string, items int, err error)
}

type Runner struct {
	jobs      map[string]Job
	schedules map[string]string
	locker    Locker
	lockTTL   time.Duration
	metrics   Metrics
	now       func() time.Time
}

// NewRunner wires the lifecycle jobs. locker and metrics may be nil.
func NewRunner(bookings booking.Service, notifier notification.Service, locker Locker, metrics Metrics, cfg config.JobsConfig) *Runner {
	ttl := time.Duration(cfg.LockTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Runner{
		jobs: map[string]Job{
			JobSweep:     bookings.SweepAbandoned,
			JobReminders: notifier.DispatchDue,
			JobComplete:  bookings.CompleteElapsed,
		},
		schedules: map[string]string{
			JobSweep:     lo.CoalesceOrEmpty(cfg.SweepSchedule, defaultSweepSchedule),
			JobReminders: lo.CoalesceOrEmpty(cfg.RemindersSchedule, defaultRemindersSchedule),
			JobComplete:  lo.CoalesceOrEmpty(cfg.CompleteSchedule, defaultCompleteSchedule),
		},
		locker:  locker,
		lockTTL: ttl,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Names lists the registered jobs in stable order.
func (r *Runner) Names() []string {
	names := lo.Keys(r.jobs)
	slices.Sort(names)
	return names
}

// RunOnce runs one job under its lock. It returns ErrLocked without running
// when another process holds the lock.
func (r *Runner) RunOnce(ctx context.Context, name string) (int, error) {
	job, found := r.jobs[name]
	if !found {
		return 0, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	if r.locker != nil {
		lock, err := r.locker.Acquire(ctx, "job:"+name, r.lockTTL)
		if err != nil {
			return 0, fmt.Errorf("lock job %s: %w", name, err)
		}
		if lock == nil {
			return 0, ErrLocked
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("release job lock", "job", name, "error", err)
			}
		}()
	}

	started := time.Now()
	n, err := job(ctx, r.now())
	if r.metrics != nil {
		r.metrics.RecordJob(ctx, name, n, err)
	}
	if err != nil {
		slog.Error("job failed", "job", name, "items", n, "error", err)
		return n, fmt.Errorf("run job %s: %w", name, err)
	}
	slog.Info("job finished", "job", name, "items", n, "duration", time.Since(started))
	return n, nil
}

// Scheduler builds a cron scheduler firing every job on its schedule. The
// caller starts and stops it.
func (r *Runner) Scheduler() (*cron.Cron, error) {
	c := cron.New()
	for _, name := range r.Names() {
		spec := r.schedules[name]
		if _, err := c.AddFunc(spec, func() {
			if _, err := r.RunOnce(context.Background(), name); err != nil && !errors.Is(err, ErrLocked) {
				slog.Warn("scheduled job did not complete", "job", name, "error", err)
			}
		}); err != nil {
			return nil, fmt.Errorf("schedule job %s (%q): %w", name, spec, err)
		}
		slog.Info("job scheduled", "job", name, "schedule", spec)
	}
	return c, nil
}

// RedisLocker adapts the Redis lock to Locker.
type RedisLocker struct {
	L *redispkg.Locker
}

func (rl RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (Lock, error) {
	lock, err := rl.L.TryAcquire(ctx, name, ttl)
	if err != nil || lock == nil {
		return nil, err
	}
	return lock, nil
}
