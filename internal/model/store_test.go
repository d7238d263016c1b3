package model

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStoreCreateAndGet(t *testing.T) {
	store := NewJobStore()

	job := store.Create(KindTopicResearch, JobParams{Topic: "supply chain resilience", MaxDocuments: 3})
	require.NotEmpty(t, job.ID)
	assert.Equal(t, StatusQueued, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Empty(t, job.Artifacts)
	assert.NotNil(t, job.Artifacts)

	got, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "supply chain resilience", got.Params.Topic)

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobStoreSnapshotsAreIsolated(t *testing.T) {
	store := NewJobStore()
	job := store.Create(KindTopicResearch, JobParams{Topic: "t"})

	_, err := store.Update(job.ID, func(j *Job) {
		j.Status = StatusDiscovering
		j.Candidates = append(j.Candidates, Candidate{URL: "https://a.example/a.pdf"})
	})
	require.NoError(t, err)

	snap, err := store.Get(job.ID)
	require.NoError(t, err)
	snap.Candidates[0].URL = "mutated"
	snap.Status = StatusFailed

	again, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://a.example/a.pdf", again.Candidates[0].URL)
	assert.Equal(t, StatusDiscovering, again.Status)
}

func TestJobStoreUpdateRules(t *testing.T) {
	t.Run("progress never decreases", func(t *testing.T) {
		store := NewJobStore()
		job := store.Create(KindTopicResearch, JobParams{})

		updated, err := store.Update(job.ID, func(j *Job) {
			j.Status = StatusDiscovering
			j.Progress = 40
		})
		require.NoError(t, err)
		assert.Equal(t, 40, updated.Progress)

		updated, err = store.Update(job.ID, func(j *Job) { j.Progress = 10 })
		require.NoError(t, err)
		assert.Equal(t, 40, updated.Progress)

		updated, err = store.Update(job.ID, func(j *Job) { j.Progress = 250 })
		require.NoError(t, err)
		assert.Equal(t, 100, updated.Progress)
	})

	t.Run("completed pins progress to 100", func(t *testing.T) {
		store := NewJobStore()
		job := store.Create(KindSingleDocument, JobParams{})

		_, err := store.Update(job.ID, func(j *Job) { j.Status = StatusExtracting; j.Progress = 20 })
		require.NoError(t, err)
		done, err := store.Update(job.ID, func(j *Job) { j.Status = StatusCompleted })
		require.NoError(t, err)
		assert.Equal(t, 100, done.Progress)
		assert.NotNil(t, done.CompletedAt)
		assert.NotNil(t, done.StartedAt)
	})

	t.Run("failed keeps last progress", func(t *testing.T) {
		store := NewJobStore()
		job := store.Create(KindTopicResearch, JobParams{})

		_, err := store.Update(job.ID, func(j *Job) { j.Status = StatusDiscovering; j.Progress = 10 })
		require.NoError(t, err)
		failed, err := store.Update(job.ID, func(j *Job) {
			j.Status = StatusFailed
			j.Progress = 0
			j.Error = "no candidates"
		})
		require.NoError(t, err)
		assert.Equal(t, 10, failed.Progress)
		assert.Equal(t, "no candidates", failed.Error)
	})

	t.Run("terminal jobs are immutable", func(t *testing.T) {
		store := NewJobStore()
		job := store.Create(KindTopicResearch, JobParams{})
		_, err := store.Update(job.ID, func(j *Job) { j.Status = StatusFailed; j.Error = "boom" })
		require.NoError(t, err)

		_, err = store.Update(job.ID, func(j *Job) { j.Message = "again" })
		assert.ErrorIs(t, err, ErrJobTerminal)

		got, err := store.Get(job.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, got.Status)
	})

	t.Run("illegal transitions are rejected", func(t *testing.T) {
		store := NewJobStore()
		job := store.Create(KindTopicResearch, JobParams{})

		_, err := store.Update(job.ID, func(j *Job) { j.Status = StatusAnalyzing })
		assert.ErrorIs(t, err, ErrInvalidTransition)

		got, err := store.Get(job.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusQueued, got.Status)
	})

	t.Run("artifacts cannot shrink", func(t *testing.T) {
		store := NewJobStore()
		job := store.Create(KindSingleDocument, JobParams{})
		_, err := store.Update(job.ID, func(j *Job) {
			j.Status = StatusExtracting
			j.Artifacts = append(j.Artifacts, Artifact{Name: "Table_1"})
		})
		require.NoError(t, err)

		_, err = store.Update(job.ID, func(j *Job) { j.Artifacts = nil })
		assert.ErrorIs(t, err, ErrArtifactsTruncated)
	})

	t.Run("identity fields cannot change", func(t *testing.T) {
		store := NewJobStore()
		job := store.Create(KindSingleDocument, JobParams{})
		updated, err := store.Update(job.ID, func(j *Job) {
			j.ID = "other"
			j.Kind = KindTopicResearch
		})
		require.NoError(t, err)
		assert.Equal(t, job.ID, updated.ID)
		assert.Equal(t, KindSingleDocument, updated.Kind)
	})

	t.Run("unknown job", func(t *testing.T) {
		store := NewJobStore()
		_, err := store.Update("missing", func(j *Job) {})
		assert.ErrorIs(t, err, ErrJobNotFound)
	})
}

func TestJobStoreConcurrentReadersSeeWholeUpdates(t *testing.T) {
	store := NewJobStore()
	job := store.Create(KindTopicResearch, JobParams{})
	_, err := store.Update(job.ID, func(j *Job) { j.Status = StatusDiscovering })
	require.NoError(t, err)
	_, err = store.Update(job.ID, func(j *Job) { j.Status = StatusDownloading })
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 100; i++ {
			_, err := store.Update(job.ID, func(j *Job) {
				j.Progress = i
				j.Artifacts = append(j.Artifacts, Artifact{Name: "t"})
			})
			assert.NoError(t, err)
		}
	}()

	last := 0
	for i := 0; i < 200; i++ {
		snap, err := store.Get(job.ID)
		require.NoError(t, err)
		// Progress and artifact count are written together
		assert.Equal(t, snap.Progress, len(snap.Artifacts))
		assert.GreaterOrEqual(t, snap.Progress, last)
		last = snap.Progress
	}
	wg.Wait()
}

func TestJobStoreListAndPrune(t *testing.T) {
	store := NewJobStore()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	old := store.Create(KindTopicResearch, JobParams{Topic: "old"})
	_, err := store.Update(old.ID, func(j *Job) { j.Status = StatusFailed; j.Error = "x" })
	require.NoError(t, err)

	clock = clock.Add(48 * time.Hour)
	active := store.Create(KindTopicResearch, JobParams{Topic: "active"})

	jobs := store.List()
	require.Len(t, jobs, 2)
	assert.Equal(t, active.ID, jobs[0].ID)

	removed := store.Prune(clock.Add(-24 * time.Hour))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())

	_, err = store.Get(old.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to JobStatus
		want     bool
	}{
		{StatusQueued, StatusDiscovering, true},
		{StatusQueued, StatusExtracting, true},
		{StatusQueued, StatusDownloading, false},
		{StatusDiscovering, StatusDownloading, true},
		{StatusDiscovering, StatusCompleted, false},
		{StatusDownloading, StatusExtracting, true},
		{StatusExtracting, StatusAnalyzing, true},
		{StatusAnalyzing, StatusDownloading, true},
		{StatusAnalyzing, StatusCompleted, true},
		{StatusExtracting, StatusFailed, true},
		{StatusDownloading, StatusDownloading, true},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusFailed, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}
