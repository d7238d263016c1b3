package files

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	m, err := NewManager(filepath.Join(root, "downloads"), filepath.Join(root, "uploads"), filepath.Join(root, "results"))
	require.NoError(t, err)
	return m, root
}

func TestManagerSaveAndRemoveJob(t *testing.T) {
	m, root := newManager(t)

	first, err := m.SaveDownload("job1", 0, []byte("%PDF-a"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "downloads", "research_job1_0.pdf"), first)
	_, err = m.SaveDownload("job1", 1, []byte("%PDF-b"))
	require.NoError(t, err)
	other, err := m.SaveDownload("job2", 0, []byte("%PDF-c"))
	require.NoError(t, err)

	upload, err := m.SaveUpload("job1", strings.NewReader("%PDF-upload"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "uploads", "upload_job1.pdf"), upload)

	m.RemoveJob("job1")

	assert.NoFileExists(t, first)
	assert.NoFileExists(t, upload)
	assert.FileExists(t, other)
}

func TestManagerCleanup(t *testing.T) {
	m, _ := newManager(t)

	oldPath, err := m.SaveDownload("old", 0, []byte("x"))
	require.NoError(t, err)
	newPath, err := m.SaveDownload("new", 0, []byte("y"))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(m.WorkDir("old"), 0o755))

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, past, past))
	require.NoError(t, os.Chtimes(m.WorkDir("old"), past, past))

	removed, err := m.Cleanup(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.NoFileExists(t, oldPath)
	assert.NoDirExists(t, m.WorkDir("old"))
	assert.FileExists(t, newPath)
}
