package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// FileCleaner removes stored files older than a cutoff
type FileCleaner interface {
	Cleanup(cutoff time.Time) (int, error)
}

// JobPruner removes terminal jobs that finished before a cutoff
type JobPruner interface {
	Prune(cutoff time.Time) int
}

// ArchivePruner removes archived jobs that finished before a cutoff
type ArchivePruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// JanitorConfig configures the housekeeping run
type JanitorConfig struct {
	Schedule         string
	FileRetention    time.Duration
	JobRetention     time.Duration // zero keeps jobs forever
	ArchiveRetention time.Duration // zero keeps archived jobs forever
}

// Janitor periodically removes expired files and jobs on a cron schedule
type Janitor struct {
	cfg      JanitorConfig
	schedule cron.Schedule
	files    FileCleaner
	jobs     JobPruner
	archive  ArchivePruner
	now      func() time.Time
	stopChan chan struct{}
	wg       sync.WaitGroup
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewJanitor creates a janitor. The schedule accepts five-field cron
// expressions and descriptors such as @hourly.
func NewJanitor(cfg JanitorConfig, files FileCleaner, jobs JobPruner) (*Janitor, error) {
	schedule, err := parser.Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", cfg.Schedule, err)
	}

	return &Janitor{
		cfg:      cfg,
		schedule: schedule,
		files:    files,
		jobs:     jobs,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}, nil
}

// WithArchive makes each sweep also expire archived jobs
func (j *Janitor) WithArchive(archive ArchivePruner) *Janitor {
	j.archive = archive
	return j
}

// Start begins the schedule loop
func (j *Janitor) Start(ctx context.Context) {
	slog.Info("Starting janitor",
		"schedule", j.cfg.Schedule,
		"file_retention", j.cfg.FileRetention,
		"job_retention", j.cfg.JobRetention,
	)

	j.wg.Add(1)
	go j.run(ctx)
}

// Stop waits for a running sweep to finish
func (j *Janitor) Stop() {
	slog.Info("Stopping janitor")
	close(j.stopChan)
	j.wg.Wait()
	slog.Info("Janitor stopped")
}

func (j *Janitor) run(ctx context.Context) {
	defer j.wg.Done()

	for {
		next := j.schedule.Next(j.now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-timer.C:
			j.RunOnce()
		case <-j.stopChan:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// RunOnce performs one sweep and reports how many files and jobs were removed
func (j *Janitor) RunOnce() (files, jobs int) {
	start := j.now()

	if j.files != nil && j.cfg.FileRetention > 0 {
		removed, err := j.files.Cleanup(start.Add(-j.cfg.FileRetention))
		if err != nil {
			slog.Error("File cleanup failed", "error", err)
		}
		files = removed
	}

	if j.jobs != nil && j.cfg.JobRetention > 0 {
		jobs = j.jobs.Prune(start.Add(-j.cfg.JobRetention))
	}

	var archived int64
	if j.archive != nil && j.cfg.ArchiveRetention > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		removed, err := j.archive.DeleteBefore(ctx, start.Add(-j.cfg.ArchiveRetention))
		cancel()
		if err != nil {
			slog.Error("Archive cleanup failed", "error", err)
		}
		archived = removed
	}

	slog.Info("Janitor sweep finished",
		"files_removed", files,
		"jobs_removed", jobs,
		"archived_removed", archived,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return files, jobs
}
