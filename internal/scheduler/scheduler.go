package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/CloserClaus/closer-claus-hub-sub004/internal/clock"
	obsmetrics "github.com/CloserClaus/closer-claus-hub-sub004/internal/observability/metrics"
	payoutdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/payout/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobPayoutBatch = "payout_batch"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Processor payoutdomain.Processor
	Config    Config `optional:"true"`
}

type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	processor payoutdomain.Processor

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	cancel  context.CancelFunc
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Processor == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(cfg.CronSpec); err != nil {
		return nil, fmt.Errorf("%w: cron spec %q: %v", ErrInvalidConfig, cfg.CronSpec, err)
	}
	return &Scheduler{
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       cfg,
		genID:     p.GenID,
		clock:     p.Clock,
		processor: p.Processor,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// a timeout is soft: the next run picks up where this one stopped
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job a single time.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobPayoutBatch, s.isJobEnabled(JobPayoutBatch), func(ctx context.Context) error {
			return s.runJob(ctx, JobPayoutBatch, 0, s.cfg.PayoutTimeout, s.PayoutBatchJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

// PayoutBatchJob pays every due salary and commission.
func (s *Scheduler) PayoutBatchJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobPayoutBatch, 0)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	result, err := s.processor.ProcessDue(ctx)
	run.AddProcessed(result.Processed)
	obsmetrics.Scheduler().AddBatchProcessed(JobPayoutBatch, "payout", result.Processed)

	switch {
	case errors.Is(err, payoutdomain.ErrBatchInProgress):
		s.logger(ctx).Info("payout batch already running elsewhere; skipped",
			zap.String("run_id", run.runID),
		)
		return nil
	case errors.Is(err, payoutdomain.ErrPaymentProviderNotConfigured):
		// configuration problem, not a job failure; logged so operators notice
		s.logSchedulerError(ctx, run, "payout batch skipped", JobPayoutBatch, err)
		return nil
	case err != nil:
		s.logSchedulerError(ctx, run, "payout batch failed", JobPayoutBatch, err,
			zap.String("batch_run_id", result.RunID),
		)
		return err
	}

	if result.Failed > 0 {
		run.IncError()
	}
	s.logger(ctx).Info("payout batch summary",
		zap.String("batch_run_id", result.RunID),
		zap.Int("successful", result.Successful),
		zap.Int("held", result.Held),
		zap.Int("retrying", result.Retrying),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
	return nil
}

// Start registers the jobs with cron. Cron specs carry a seconds field and
// are evaluated in UTC, the same zone payout dates are in.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC))
	id, err := c.AddFunc(s.cfg.CronSpec, func() {
		if prev := c.Entry(s.entryID).Prev; !prev.IsZero() {
			obsmetrics.Scheduler().ObserveRunLag(s.clock.Now().Sub(prev))
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
	})
	if err != nil {
		cancel()
		return fmt.Errorf("schedule %s: %w", JobPayoutBatch, err)
	}

	s.cron = c
	s.entryID = id
	s.cancel = cancel
	c.Start()
	s.log.Info("scheduler started", zap.String("cron_spec", s.cfg.CronSpec))
	return nil
}

// Stop cancels the running job and waits for it to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	cancel()
	done := c.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// an empty list enables everything, the monolith default
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
