// Package scheduler drives the named lifecycle jobs (crawl, analyze,
// publish) on independent cadences, with mandatory overlap prevention per
// job name and a persisted run history.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"heartofnews/internal/domain"
	"heartofnews/internal/ports"
)

const (
	defaultBudget = 10 * time.Minute
	recordTimeout = 5 * time.Second
)

// ErrJobRunning is returned when a job is triggered while a run of the
// same name is still active.
var ErrJobRunning = errors.New("job is already running")

// ErrUnknownJob is returned for trigger or history requests on a name that
// was never registered.
var ErrUnknownJob = errors.New("unknown job")

// JobFunc executes one run of a job and reports per-item tallies.
type JobFunc func(ctx context.Context) (domain.JobReport, error)

// JobConfig describes one named periodic job.
type JobConfig struct {
	Name string
	// Every is the trigger interval.
	Every time.Duration
	// Budget is the hard wall-clock limit for one run; work persisted
	// before the budget expires remains valid.
	Budget time.Duration
}

type job struct {
	cfg      JobConfig
	fn       JobFunc
	inFlight atomic.Bool
}

// Scheduler owns one run slot per job name. Two concurrent runs of the
// same name would double-process the same article set, so a tick that
// lands while the previous run is active is skipped.
type Scheduler struct {
	cron   *cron.Cron
	runs   ports.JobRunStore
	logger *slog.Logger

	mu   sync.Mutex
	jobs map[string]*job
}

// New builds an empty scheduler recording runs into the given store.
func New(runs ports.JobRunStore, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(),
		runs:   runs,
		logger: logger,
		jobs:   map[string]*job{},
	}
}

// Register adds a named job on its own interval. Must be called before
// Start; registering the same name twice is an error.
func (s *Scheduler) Register(cfg JobConfig, fn JobFunc) error {
	if cfg.Name == "" || fn == nil {
		return fmt.Errorf("register job: name and function are required")
	}
	if cfg.Every <= 0 {
		return fmt.Errorf("register job %s: interval must be positive", cfg.Name)
	}
	if cfg.Budget <= 0 {
		cfg.Budget = defaultBudget
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[cfg.Name]; exists {
		return fmt.Errorf("register job %s: already registered", cfg.Name)
	}

	j := &job{cfg: cfg, fn: fn}
	s.jobs[cfg.Name] = j

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", cfg.Every), func() {
		if _, err := s.execute(context.Background(), j); err != nil && !errors.Is(err, ErrJobRunning) {
			s.logger.Error("scheduled run failed", "job", j.cfg.Name, "error", err)
		}
	})
	if err != nil {
		delete(s.jobs, cfg.Name)
		return fmt.Errorf("cron.AddFunc %s: %w", cfg.Name, err)
	}
	return nil
}

// Start begins ticking. Stop must be called on shutdown.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop halts the cron driver and waits for in-flight runs it started.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunNow triggers one run of the named job synchronously, outside its
// normal cadence. Returns ErrJobRunning when a run is already active.
func (s *Scheduler) RunNow(ctx context.Context, name string) (domain.JobRun, error) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return domain.JobRun{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, j)
}

// History returns the most recent runs of the named job, newest first.
func (s *Scheduler) History(ctx context.Context, name string, limit int) ([]domain.JobRun, error) {
	s.mu.Lock()
	_, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.runs.History(ctx, name, limit)
}

// execute claims the job's run slot, runs it under the wall-clock budget,
// and records the outcome. A run that exceeds the budget is cancelled;
// per-source or per-article work already persisted stays valid.
func (s *Scheduler) execute(ctx context.Context, j *job) (domain.JobRun, error) {
	if !j.inFlight.CompareAndSwap(false, true) {
		s.logger.Warn("run skipped, previous still active", "job", j.cfg.Name)
		return domain.JobRun{}, fmt.Errorf("%w: %s", ErrJobRunning, j.cfg.Name)
	}
	defer j.inFlight.Store(false)

	runCtx, cancel := context.WithTimeout(ctx, j.cfg.Budget)
	defer cancel()

	started := time.Now().UTC()
	s.logger.Info("run started", "job", j.cfg.Name)

	report, err := j.fn(runCtx)

	finished := time.Now().UTC()
	run := domain.JobRun{
		ID:             uuid.NewString(),
		Job:            j.cfg.Name,
		StartedAt:      started,
		FinishedAt:     finished,
		NextEligibleAt: finished.Add(j.cfg.Every),
		Outcome:        report.Outcome(),
		Attempted:      report.Attempted,
		Succeeded:      report.Succeeded,
		Failed:         report.Failed,
		Errors:         report.Errors,
	}
	if err != nil {
		run.Outcome = domain.OutcomeFailed
		run.Errors = append(run.Errors, err.Error())
	}

	// The run context may already be expired; recording gets its own.
	recordCtx, recordCancel := context.WithTimeout(context.Background(), recordTimeout)
	defer recordCancel()
	if rErr := s.runs.Record(recordCtx, run); rErr != nil {
		s.logger.Error("record run failed", "job", j.cfg.Name, "error", rErr)
	}

	s.logger.Info("run finished",
		"job", j.cfg.Name,
		"outcome", run.Outcome,
		"attempted", run.Attempted,
		"failed", run.Failed,
		"duration", run.FinishedAt.Sub(run.StartedAt))

	return run, err
}
