package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/nextgen/internal/logfields"
)

// Scheduler runs periodic housekeeping jobs next to the watch loop.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, logger: logger}, nil
}

// Every registers fn to run each interval. Runs of one job never overlap.
func (s *Scheduler) Every(ctx context.Context, name string, interval time.Duration, fn func(ctx context.Context) error) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if err := fn(ctx); err != nil {
				s.logger.Warn("Scheduled job failed", slog.String("job", name), logfields.Error(err))
			}
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	s.logger.Debug("Scheduled job", slog.String("job", name), logfields.Duration(interval))
	return job.ID().String(), nil
}

// Jobs returns the names of registered jobs.
func (s *Scheduler) Jobs() []string {
	jobs := s.scheduler.Jobs()
	names := make([]string, len(jobs))
	for i, j := range jobs {
		names[i] = j.Name()
	}
	return names
}

// Start begins running jobs.
func (s *Scheduler) Start() { s.scheduler.Start() }

// Stop shuts the scheduler down and waits for running jobs.
func (s *Scheduler) Stop() error { return s.scheduler.Shutdown() }
