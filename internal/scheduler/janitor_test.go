package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFiles struct {
	cutoff time.Time
	calls  atomic.Int32
	err    error
}

func (f *fakeFiles) Cleanup(cutoff time.Time) (int, error) {
	f.calls.Add(1)
	f.cutoff = cutoff
	return 3, f.err
}

type fakeJobs struct{ cutoff time.Time }

func (f *fakeJobs) Prune(cutoff time.Time) int {
	f.cutoff = cutoff
	return 2
}

func TestNewJanitorSchedules(t *testing.T) {
	for _, schedule := range []string{"@hourly", "*/5 * * * *", "@every 1m"} {
		_, err := NewJanitor(JanitorConfig{Schedule: schedule}, nil, nil)
		assert.NoError(t, err, schedule)
	}

	_, err := NewJanitor(JanitorConfig{Schedule: "every day"}, nil, nil)
	assert.Error(t, err)
}

func TestJanitorRunOnce(t *testing.T) {
	files := &fakeFiles{}
	jobs := &fakeJobs{}
	janitor, err := NewJanitor(JanitorConfig{
		Schedule:      "@hourly",
		FileRetention: 24 * time.Hour,
		JobRetention:  time.Hour,
	}, files, jobs)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	janitor.now = func() time.Time { return now }

	removedFiles, removedJobs := janitor.RunOnce()
	assert.Equal(t, 3, removedFiles)
	assert.Equal(t, 2, removedJobs)
	assert.Equal(t, now.Add(-24*time.Hour), files.cutoff)
	assert.Equal(t, now.Add(-time.Hour), jobs.cutoff)
}

func TestJanitorKeepsJobsWithoutRetention(t *testing.T) {
	files := &fakeFiles{err: errors.New("disk gone")}
	jobs := &fakeJobs{}
	janitor, err := NewJanitor(JanitorConfig{Schedule: "@hourly", FileRetention: time.Hour}, files, jobs)
	require.NoError(t, err)

	_, removedJobs := janitor.RunOnce()
	assert.Equal(t, 0, removedJobs)
	assert.True(t, jobs.cutoff.IsZero())
}

func TestJanitorLoop(t *testing.T) {
	files := &fakeFiles{}
	janitor, err := NewJanitor(JanitorConfig{Schedule: "@every 1s", FileRetention: time.Hour}, files, nil)
	require.NoError(t, err)

	janitor.Start(context.Background())
	require.Eventually(t, func() bool { return files.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	janitor.Stop()
}

type fakeArchive struct {
	cutoff time.Time
	err    error
}

func (f *fakeArchive) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 4, f.err
}

func TestJanitorExpiresArchive(t *testing.T) {
	archive := &fakeArchive{}
	janitor, err := NewJanitor(JanitorConfig{Schedule: "@daily", ArchiveRetention: 30 * 24 * time.Hour}, nil, nil)
	require.NoError(t, err)
	janitor.WithArchive(archive)

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	janitor.now = func() time.Time { return now }
	janitor.RunOnce()
	assert.Equal(t, now.Add(-30*24*time.Hour), archive.cutoff)

	idle := &fakeArchive{}
	janitor, err = NewJanitor(JanitorConfig{Schedule: "@daily"}, nil, nil)
	require.NoError(t, err)
	janitor.WithArchive(idle).RunOnce()
	assert.True(t, idle.cutoff.IsZero())
}
