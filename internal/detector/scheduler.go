package detector

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/terraguard/climate-alerts/internal/observability"
	"github.com/terraguard/climate-alerts/internal/repository"
)

// Scheduler owns the two recurring jobs: the detection cycle and the alert
// expiry sweep. The sweep runs on its own, tighter interval so alerts expire
// close to their deadline even when detection is quiet.
type Scheduler struct {
	scheduler     *gocron.Scheduler
	detector      *Detector
	alerts        repository.AlertRepository
	interval      time.Duration
	sweepInterval time.Duration
	metrics       *observability.Metrics
}

func NewScheduler(
	detector *Detector,
	alerts repository.AlertRepository,
	interval, sweepInterval time.Duration,
	metrics *observability.Metrics,
) *Scheduler {
	return &Scheduler{
		scheduler:     gocron.NewScheduler(time.UTC),
		detector:      detector,
		alerts:        alerts,
		interval:      interval,
		sweepInterval: sweepInterval,
		metrics:       metrics,
	}
}

// Start registers both jobs and starts the scheduler in the background.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.interval).Do(s.runDetection); err != nil {
		return err
	}
	if _, err := s.scheduler.Every(s.sweepInterval).Do(s.runExpirySweep); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	slog.Info("scheduler started", "detection_interval", s.interval, "sweep_interval", s.sweepInterval)
	return nil
}

// Stop halts the scheduler. Jobs already running are left to finish; the
// detection cycle bounds itself with its own wall budget.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// RunDetectionNow runs one detection cycle on the caller's goroutine. Used by
// the cron HTTP endpoint so external schedulers can drive the same code path.
func (s *Scheduler) RunDetectionNow(ctx context.Context) (CycleReport, error) {
	regions, err := s.detector.MonitoredRegions(ctx)
	if err != nil {
		return CycleReport{}, err
	}
	return s.detector.RunCycle(ctx, regions), nil
}

// RunExpirySweepNow expires overdue alerts on the caller's goroutine.
func (s *Scheduler) RunExpirySweepNow(ctx context.Context) (int64, error) {
	expired, err := s.alerts.ExpireOverdue(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.AlertsExpired.Add(float64(expired))
	}
	if expired > 0 {
		slog.Info("expired overdue alerts", "count", expired)
	}
	return expired, nil
}

func (s *Scheduler) runDetection() {
	if _, err := s.RunDetectionNow(context.Background()); err != nil {
		slog.Error("scheduled detection cycle failed", "error", err)
	}
}

func (s *Scheduler) runExpirySweep() {
	if _, err := s.RunExpirySweepNow(context.Background()); err != nil {
		slog.Error("scheduled expiry sweep failed", "error", err)
	}
}
