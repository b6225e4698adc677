package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/fmalcolm/alpine-analytics/internal/models"
)

// Scheduler runs the incremental pipeline on a cron schedule. Overlapping
// runs are skipped via the run lock rather than queued: a skipped run's races
// are inside the next run's lookback window anyway.
type Scheduler struct {
	pipeline *Pipeline
	lock     RunLock
	logger   *logrus.Logger
	cron     *cron.Cron
	schedule string

	mu        sync.Mutex
	isRunning bool
}

func NewScheduler(pipeline *Pipeline, lock RunLock, logger *logrus.Logger, schedule string) *Scheduler {
	return &Scheduler{
		pipeline: pipeline,
		lock:     lock,
		logger:   logger,
		cron:     cron.New(),
		schedule: schedule,
	}
}

// Start begins the recurring incremental runs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	_, err := s.cron.AddFunc(s.schedule, s.runIncremental)
	if err != nil {
		return fmt.Errorf("failed to schedule pipeline: %w", err)
	}

	s.cron.Start()
	s.isRunning = true

	s.logger.WithField("schedule", s.schedule).Info("ETL scheduler started")
	return nil
}

// Stop halts the schedule and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.logger.Info("ETL scheduler stopped")
}

func (s *Scheduler) runIncremental() {
	ctx := context.Background()

	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to acquire run lock")
		return
	}
	if !acquired {
		s.logger.Warn("Previous run still in progress, skipping this cycle")
		return
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logger.WithError(err).Error("Failed to release run lock")
		}
	}()

	// nil fromDate: the pipeline auto-detects the window from the latest race.
	if _, err := s.pipeline.Run(ctx, models.RunModeDaily, nil); err != nil {
		s.logger.WithError(err).Error("Scheduled pipeline run failed")
	}
}
