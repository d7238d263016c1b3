package model

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStore is the in-memory registry of jobs. It is the only writer of job
// state: every mutation goes through Update and every read returns a copy.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewJobStore creates a new job store
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a queued job and returns its snapshot
func (s *JobStore) Create(kind JobKind, params JobParams) Job {
	now := s.now()
	job := &Job{
		ID:         uuid.New().String(),
		Kind:       kind,
		Status:     StatusQueued,
		Message:    "Job queued",
		Params:     params,
		Candidates: []Candidate{},
		Artifacts:  []Artifact{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	return job.Clone()
}

// Get returns a snapshot of a job
func (s *JobStore) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return Job{}, ErrJobNotFound
	}
	return job.Clone(), nil
}

// Update applies mutate to a private copy of the job, checks the result
// against the lifecycle rules and commits it atomically. The committed
// snapshot is returned. Progress never moves backwards: a lower value is
// kept at the current one, completed pins it to 100 and failed leaves it
// where it was.
func (s *JobStore) Update(id string, mutate func(*Job)) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.jobs[id]
	if !exists {
		return Job{}, ErrJobNotFound
	}
	if current.Status.IsTerminal() {
		return current.Clone(), fmt.Errorf("update job %s: %w", id, ErrJobTerminal)
	}

	next := current.Clone()
	mutate(&next)

	// Identity is fixed at creation
	next.ID = current.ID
	next.Kind = current.Kind
	next.CreatedAt = current.CreatedAt

	if !CanTransition(current.Status, next.Status) {
		return current.Clone(), fmt.Errorf("update job %s: %w: %s -> %s",
			id, ErrInvalidTransition, current.Status, next.Status)
	}
	if len(next.Artifacts) < len(current.Artifacts) {
		return current.Clone(), fmt.Errorf("update job %s: %w", id, ErrArtifactsTruncated)
	}

	switch next.Status {
	case StatusCompleted:
		next.Progress = 100
		next.Error = ""
	case StatusFailed:
		next.Progress = current.Progress
		if next.Error == "" {
			next.Error = "job failed"
		}
	default:
		next.Progress = max(current.Progress, min(next.Progress, 100))
		next.Error = ""
	}

	now := s.now()
	next.UpdatedAt = now
	if next.StartedAt == nil && next.Status != StatusQueued {
		next.StartedAt = &now
	}
	if next.Status.IsTerminal() {
		next.CompletedAt = &now
	}

	s.jobs[id] = &next
	return next.Clone(), nil
}

// List returns snapshots of all jobs, newest first
func (s *JobStore) List() []Job {
	s.mu.RLock()
	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// Prune removes terminal jobs that completed before cutoff and returns how many were removed
func (s *JobStore) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, job := range s.jobs {
		if !job.Status.IsTerminal() || job.CompletedAt == nil {
			continue
		}
		if job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked jobs
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
