package service

import (
	"context"
	"io"

	"github.com/dandantas/tablescout/internal/extraction"
	"github.com/dandantas/tablescout/internal/model"
	"github.com/dandantas/tablescout/internal/worker"
)

// DocumentSource finds and downloads candidate documents
type DocumentSource interface {
	Discover(ctx context.Context, topic string, limit int) ([]model.Candidate, error)
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Extractor turns one document into artifacts
type Extractor interface {
	Extract(ctx context.Context, documentPath, workDir string, progress chan<- extraction.Progress) extraction.Result
}

// Publisher fans job updates out to live observers
type Publisher interface {
	Publish(jobID string, msg model.Message)
	Broadcast(msg model.Message)
}

// FileStore keeps the documents a job works on
type FileStore interface {
	SaveDownload(jobID string, index int, data []byte) (string, error)
	SaveUpload(jobID string, r io.Reader) (string, error)
	WorkDir(jobID string) string
	RemoveJob(jobID string)
}

// Runner schedules background work
type Runner interface {
	Submit(task worker.Task) error
}

// Archive stores terminal job snapshots beyond process memory
type Archive interface {
	Save(ctx context.Context, job model.Job) error
	Get(ctx context.Context, id string) (model.Job, error)
}

// Notifier announces terminal jobs to an external system
type Notifier interface {
	Notify(ctx context.Context, job model.Job) error
}
