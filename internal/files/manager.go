package files

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Manager owns the on-disk layout: downloaded documents, uploads and
// per-job result directories. Every file it creates carries the job id in
// its name so a job's files can be removed together.
type Manager struct {
	downloadDir string
	uploadDir   string
	resultsDir  string
}

// NewManager creates the directories if needed
func NewManager(downloadDir, uploadDir, resultsDir string) (*Manager, error) {
	for _, dir := range []string{downloadDir, uploadDir, resultsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return &Manager{
		downloadDir: downloadDir,
		uploadDir:   uploadDir,
		resultsDir:  resultsDir,
	}, nil
}

// SaveDownload stores the document fetched for candidate index of a research job
func (m *Manager) SaveDownload(jobID string, index int, data []byte) (string, error) {
	path := filepath.Join(m.downloadDir, fmt.Sprintf("research_%s_%d.pdf", jobID, index))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save download: %w", err)
	}
	return path, nil
}

// SaveUpload stores an uploaded document for a single-document job
func (m *Manager) SaveUpload(jobID string, r io.Reader) (string, error) {
	path := filepath.Join(m.uploadDir, fmt.Sprintf("upload_%s.pdf", jobID))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return path, nil
}

// WorkDir returns the directory collaborators write a job's intermediate files to
func (m *Manager) WorkDir(jobID string) string {
	return filepath.Join(m.resultsDir, jobID)
}

// RemoveJob deletes the downloads and uploads of a job. Result workbooks are
// kept until Cleanup ages them out.
func (m *Manager) RemoveJob(jobID string) {
	patterns := []string{
		filepath.Join(m.downloadDir, fmt.Sprintf("research_%s_*.pdf", jobID)),
		filepath.Join(m.uploadDir, fmt.Sprintf("upload_%s.pdf", jobID)),
	}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, path := range matches {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				slog.Warn("Failed to remove job file", "job_id", jobID, "path", path, "error", err)
			}
		}
	}
}

// Cleanup removes entries of the managed directories last modified before
// cutoff and returns how many were removed.
func (m *Manager) Cleanup(cutoff time.Time) (int, error) {
	removed := 0
	for _, dir := range []string{m.downloadDir, m.uploadDir, m.resultsDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return removed, fmt.Errorf("failed to read %s: %w", dir, err)
		}
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
				slog.Warn("Failed to remove expired file", "path", entry.Name(), "error", err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}
