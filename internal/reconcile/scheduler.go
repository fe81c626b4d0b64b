package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const jobName = "ledger_reconcile"

// Scheduler runs the checker periodically in the background.
type Scheduler struct {
	scheduler gocron.Scheduler
	checker   *Checker
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

func NewScheduler(checker *Checker, interval time.Duration, logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	sched := &Scheduler{
		scheduler: s,
		checker:   checker,
		interval:  interval,
		timeout:   interval / 2,
		logger:    logger,
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(sched.run),
		gocron.WithName(jobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		s.Shutdown()
		return nil, err
	}
	return sched, nil
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
	s.logger.Info("reconciliation scheduler started", "interval", s.interval)
}

func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.checker.Check(ctx); err != nil {
		s.logger.ErrorContext(ctx, "reconciliation failed", "error", err)
	}
}
