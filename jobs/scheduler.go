package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron"
	"github.com/rs/zerolog/log"
)

const defaultRunTimeout = 30 * time.Minute

// Task is one unit of background maintenance.
type Task func(ctx context.Context) error

type job struct {
	name    string
	task    Task
	running sync.Mutex
}

// Scheduler runs maintenance tasks on cron schedules. A run that is still in
// progress when its next tick fires is skipped.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	jobs    []*job
}

func NewScheduler(timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	return &Scheduler{cron: cron.New(), timeout: timeout}
}

// Add registers task under schedule, e.g. "@every 1h" or "0 0 3 * * *".
// An empty schedule disables the task.
func (s *Scheduler) Add(name, schedule string, task Task) error {
	if schedule == "" {
		log.Info().Str("job", name).Msg("Job disabled, no schedule configured")
		return nil
	}

	j := &job{name: name, task: task}
	if err := s.cron.AddFunc(schedule, func() { s.run(j) }); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", schedule, name, err)
	}
	s.jobs = append(s.jobs, j)

	log.Info().Str("job", name).Str("schedule", schedule).Msg("Job scheduled")
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) run(j *job) {
	if !j.running.TryLock() {
		log.Warn().Str("job", j.name).Msg("Previous run still in progress, skipping")
		return
	}
	defer j.running.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_ = Run(ctx, j.name, j.task)
}

// Run executes task once and logs its outcome.
func Run(ctx context.Context, name string, task Task) error {
	started := time.Now()
	log.Info().Str("job", name).Msg("Job started")

	if err := task(ctx); err != nil {
		log.Error().Err(err).Str("job", name).Dur("elapsed", time.Since(started)).Msg("Job failed")
		return err
	}

	log.Info().Str("job", name).Dur("elapsed", time.Since(started)).Msg("Job completed")
	return nil
}
