// Package workers runs the background jobs that drain the ledgers and
// expire opportunities.
package workers

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"yoma-api/lock"
	"yoma-api/metrics"
	"yoma-api/services"
)

// Job is one named background job.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (services.ProcessResult, error)
}

// Scheduler runs jobs on their interval. A job runs on at most one replica
// at a time: each run first takes the job's lock.
type Scheduler struct {
	jobs    map[string]Job
	locker  lock.Locker
	lockTTL time.Duration
	logger  zerolog.Logger
	sched   gocron.Scheduler
}

func NewScheduler(locker lock.Locker, lockTTL time.Duration, logger zerolog.Logger, jobs ...Job) *Scheduler {
	s := &Scheduler{
		jobs:    make(map[string]Job, len(jobs)),
		locker:  locker,
		lockTTL: lockTTL,
		logger:  logger.With().Str("component", "scheduler").Logger(),
	}
	for _, j := range jobs {
		s.jobs[j.Name] = j
	}
	return s
}

// Names returns the registered job names, sorted.
func (s *Scheduler) Names() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start registers every job with gocron and starts it. Runs use ctx; the
// scheduler stops when Shutdown is called.
func (s *Scheduler) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	for _, name := range s.Names() {
		job := s.jobs[name]
		_, err := sched.NewJob(
			gocron.DurationJob(job.Interval),
			gocron.NewTask(func() {
				_, _, _ = s.run(ctx, job)
			}),
			gocron.WithName(job.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return fmt.Errorf("schedule job %s: %w", job.Name, err)
		}
		s.logger.Info().Str("job", job.Name).Dur("interval", job.Interval).Msg("job scheduled")
	}

	sched.Start()
	s.sched = sched
	return nil
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	if s.sched == nil {
		return nil
	}
	return s.sched.Shutdown()
}

// RunOnce runs the named job immediately. ran is false when another
// replica holds the job's lock.
func (s *Scheduler) RunOnce(ctx context.Context, name string) (result services.ProcessResult, ran bool, err error) {
	job, ok := s.jobs[name]
	if !ok {
		return result, false, fmt.Errorf("unknown job %q, expected one of %v", name, s.Names())
	}
	return s.run(ctx, job)
}

func (s *Scheduler) run(ctx context.Context, job Job) (services.ProcessResult, bool, error) {
	logger := s.logger.With().Str("job", job.Name).Logger()
	ctx = logger.WithContext(ctx)

	release, ok, err := s.locker.TryAcquire(ctx, "jobs:"+job.Name, s.lockTTL)
	if err != nil {
		logger.Error().Err(err).Msg("failed to acquire job lock")
		return services.ProcessResult{}, false, err
	}
	if !ok {
		logger.Debug().Msg("job is running elsewhere, skipping")
		return services.ProcessResult{}, false, nil
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn().Err(err).Msg("failed to release job lock")
		}
	}()

	started := time.Now()
	result, err := job.Run(ctx)
	metrics.RecordJobRun(job.Name, time.Since(started), err)
	metrics.RecordJobItems(job.Name, "succeeded", result.Succeeded)
	metrics.RecordJobItems(job.Name, "failed", result.Failed)
	metrics.RecordJobItems(job.Name, "skipped", result.Skipped)

	if err != nil {
		logger.Error().Err(err).Interface("result", result).Msg("job failed")
		return result, true, err
	}
	if result.Processed > 0 {
		logger.Info().
			Int("processed", result.Processed).
			Int("succeeded", result.Succeeded).
			Int("failed", result.Failed).
			Int("skipped", result.Skipped).
			Dur("duration", time.Since(started)).
			Msg("job finished")
	}
	return result, true, nil
}
