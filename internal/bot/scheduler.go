package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/bymbot/internal/bot/tasks"
	"github.com/edgard/bymbot/internal/config"
)

// Scheduler runs the registered housekeeping tasks on their cron schedules.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a scheduler for taskMap. Nothing is scheduled until
// Start.
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    logger.With("component", "scheduler"),
		cfg:       cfg,
		taskMap:   taskMap,
	}, nil
}

// Start schedules every enabled task and starts ticking. Tasks receive ctx,
// so cancelling it aborts the ones in flight.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler is already running")
	}

	if s.cfg == nil || len(s.cfg.Tasks) == 0 {
		s.logger.Warn("No scheduler tasks configured.")
		s.scheduler.Start()
		s.running = true
		return nil
	}

	names := make([]string, 0, len(s.cfg.Tasks))
	for name := range s.cfg.Tasks {
		names = append(names, name)
	}
	slices.Sort(names)

	scheduledCount := 0
	for _, taskName := range names {
		taskConfig := s.cfg.Tasks[taskName]
		if !s.cfg.Enabled(taskName) {
			s.logger.Info("Skipping disabled task", "task_name", taskName)
			continue
		}

		taskFunc, exists := s.taskMap[taskName]
		if !exists {
			s.logger.Warn("Scheduled task configured but not found in registry, skipping", "task_name", taskName)
			continue
		}

		if taskConfig.Schedule == "" {
			s.logger.Warn("Scheduled task enabled but has empty schedule, skipping", "task_name", taskName)
			continue
		}

		_, err := s.scheduler.NewJob(
			gocron.CronJob(taskConfig.Schedule, true),
			gocron.NewTask(s.runTask, ctx, taskName, taskFunc),
			gocron.WithName(taskName),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			s.logger.Error("Failed to schedule task", "task_name", taskName, "schedule", taskConfig.Schedule, "error", err)
			continue
		}

		s.logger.Info("Scheduled task", "task_name", taskName, "schedule", taskConfig.Schedule)
		scheduledCount++
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler started", "tasks_scheduled", scheduledCount)

	return nil
}

func (s *Scheduler) runTask(ctx context.Context, name string, task tasks.ScheduledTaskFunc) {
	if ctx.Err() != nil {
		return
	}
	s.logger.InfoContext(ctx, "Running scheduled task", "task_name", name)
	startTime := time.Now()
	if err := task(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Scheduled task failed", "task_name", name, "error", err)
	}
	s.logger.InfoContext(ctx, "Finished scheduled task", "task_name", name, "duration", time.Since(startTime))
}

// Scheduled returns the names of the jobs currently scheduled, sorted.
func (s *Scheduler) Scheduled() []string {
	jobs := s.scheduler.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	slices.Sort(names)
	return names
}

// Stop shuts the scheduler down, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Info("Scheduler is not running, nothing to stop.")
		return nil
	}

	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully.")
	}

	s.running = false
	return err
}
