package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dandantas/tablescout/internal/extraction"
	"github.com/dandantas/tablescout/internal/metrics"
	"github.com/dandantas/tablescout/internal/model"
	"github.com/dandantas/tablescout/internal/source"
	"github.com/dandantas/tablescout/internal/worker"
	"github.com/dandantas/tablescout/pkg/middleware"
)

// Progress checkpoints of the two job kinds
const (
	researchDiscovering = 10
	researchBandStart   = 30
	researchBandWidth   = 60
	documentBandStart   = 20
	documentBandWidth   = 80
)

// Config bounds the research requests the pipeline accepts
type Config struct {
	DefaultDocuments int
	MaxDocuments     int
}

// Dependencies are the collaborators of a Pipeline. Archive and Notifier are optional.
type Dependencies struct {
	Store     *model.JobStore
	Source    DocumentSource
	Extractor Extractor
	Publisher Publisher
	Files     FileStore
	Runner    Runner
	Archive   Archive
	Notifier  Notifier
}

// Pipeline runs research and single-document jobs in the background. Every
// state change goes through commit, which writes the job store first and
// publishes the committed snapshot second.
type Pipeline struct {
	deps    Dependencies
	cfg     Config
	pending sync.WaitGroup // webhook notifications in flight
}

// NewPipeline creates a new pipeline
func NewPipeline(deps Dependencies, cfg Config) *Pipeline {
	if cfg.DefaultDocuments <= 0 {
		cfg.DefaultDocuments = 5
	}
	if cfg.MaxDocuments < cfg.DefaultDocuments {
		cfg.MaxDocuments = cfg.DefaultDocuments
	}
	return &Pipeline{deps: deps, cfg: cfg}
}

// SubmitResearch creates a topic research job and queues it. maxDocuments of
// zero or less selects the default; larger values are capped.
func (p *Pipeline) SubmitResearch(ctx context.Context, topic string, maxDocuments int) (model.Job, error) {
	if maxDocuments <= 0 {
		maxDocuments = p.cfg.DefaultDocuments
	}
	maxDocuments = min(maxDocuments, p.cfg.MaxDocuments)

	params := model.JobParams{Topic: topic, MaxDocuments: maxDocuments}
	job := p.create(ctx, model.KindTopicResearch, params)

	return p.submit(ctx, job, func(runCtx context.Context) {
		p.runResearch(runCtx, job.ID, params)
	})
}

// SubmitDocument stores an uploaded document and queues a single-document job for it
func (p *Pipeline) SubmitDocument(ctx context.Context, name string, document io.Reader) (model.Job, error) {
	job := p.create(ctx, model.KindSingleDocument, model.JobParams{DocumentName: name})

	path, err := p.deps.Files.SaveUpload(job.ID, document)
	if err != nil {
		p.fail(job.ID, err)
		return job, err
	}

	return p.submit(ctx, job, func(runCtx context.Context) {
		p.runDocument(runCtx, job.ID, name, path)
	})
}

// Job returns the current snapshot of a job, falling back to the archive
// for jobs no longer held in memory.
func (p *Pipeline) Job(ctx context.Context, id string) (model.Job, error) {
	job, err := p.deps.Store.Get(id)
	if errors.Is(err, model.ErrJobNotFound) && p.deps.Archive != nil {
		return p.deps.Archive.Get(ctx, id)
	}
	return job, err
}

// Jobs lists in-memory jobs, newest first
func (p *Pipeline) Jobs() []model.Job {
	return p.deps.Store.List()
}

// Snapshot renders the current state of a job as a job_update for a new subscriber
func (p *Pipeline) Snapshot(jobID string) (model.Message, bool) {
	job, err := p.deps.Store.Get(jobID)
	if err != nil {
		return model.Message{}, false
	}
	return model.NewJobUpdate(job, model.EventNone, nil), true
}

// Wait blocks until pending notifications are sent or ctx ends
func (p *Pipeline) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) create(ctx context.Context, kind model.JobKind, params model.JobParams) model.Job {
	job := p.deps.Store.Create(kind, params)
	p.deps.Publisher.Broadcast(model.NewJobUpdate(job, model.EventNone, nil))

	slog.Info("Job created",
		"job_id", job.ID,
		"kind", job.Kind,
		"topic", params.Topic,
		"document", params.DocumentName,
		"correlation_id", middleware.GetCorrelationID(ctx),
	)
	return job
}

func (p *Pipeline) submit(ctx context.Context, job model.Job, run func(context.Context)) (model.Job, error) {
	correlationID := middleware.GetCorrelationID(ctx)
	task := worker.Task{
		ID: job.ID,
		Run: func(runCtx context.Context) {
			defer p.recoverRun(job.ID)
			run(middleware.WithCorrelationID(runCtx, correlationID))
		},
	}

	if err := p.deps.Runner.Submit(task); err != nil {
		p.fail(job.ID, err)
		return job, fmt.Errorf("failed to queue job %s: %w", job.ID, err)
	}
	return job, nil
}

func (p *Pipeline) runResearch(ctx context.Context, jobID string, params model.JobParams) {
	_, err := p.commit(jobID, func(j *model.Job) {
		j.Status = model.StatusDiscovering
		j.Progress = researchDiscovering
		j.Message = fmt.Sprintf("Searching for documents about %q", params.Topic)
	}, model.EventNone, nil)
	if err != nil {
		return
	}

	candidates, err := p.deps.Source.Discover(ctx, params.Topic, params.MaxDocuments)
	if err == nil && len(candidates) == 0 {
		err = &source.DiscoveryError{Topic: params.Topic}
	}
	if err != nil {
		p.fail(jobID, err)
		return
	}

	total := len(candidates)
	_, err = p.commit(jobID, func(j *model.Job) {
		j.Status = model.StatusDownloading
		j.Progress = researchBandStart
		j.Candidates = candidates
		j.Message = fmt.Sprintf("Found %d documents", total)
	}, model.EventPDFsFound, map[string]any{"count": total, "pdfs": candidates})
	if err != nil {
		return
	}

	var processed, failed, tables int
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			p.fail(jobID, fmt.Errorf("job cancelled: %w", err))
			return
		}

		artifacts, ok := p.processCandidate(ctx, jobID, i, total, candidate)
		if !ok {
			failed++
			continue
		}
		processed++
		tables += len(artifacts)

		done := researchBandStart + researchBandWidth*(i+1)/total
		_, err := p.commit(jobID, func(j *model.Job) {
			j.Artifacts = append(j.Artifacts, artifacts...)
			j.Progress = done
			j.Message = fmt.Sprintf("Extracted %d tables from %s", len(artifacts), candidate.Title)
		}, model.EventProcessing, map[string]any{
			"current":      i + 1,
			"total":        total,
			"tables_found": len(artifacts),
			"total_tables": tables,
		})
		if err != nil {
			return
		}
	}

	p.complete(jobID, processed, failed, fmt.Sprintf("Research completed: %d tables from %d documents", tables, processed))
}

// processCandidate downloads and extracts one candidate. A rejected download
// or a failed extraction is logged and reported as not ok.
func (p *Pipeline) processCandidate(ctx context.Context, jobID string, i, total int, candidate model.Candidate) ([]model.Artifact, bool) {
	base := researchBandStart + researchBandWidth*i/total
	_, err := p.commit(jobID, func(j *model.Job) {
		j.Status = model.StatusDownloading
		j.Progress = base
		j.Message = fmt.Sprintf("Processing document %d/%d: %s", i+1, total, candidate.Title)
	}, model.EventProcessing, map[string]any{
		"current": i + 1,
		"total":   total,
		"url":     candidate.URL,
		"title":   candidate.Title,
	})
	if err != nil {
		return nil, false
	}

	logger := slog.With("job_id", jobID, "candidate_index", i, "url", candidate.URL,
		"correlation_id", middleware.GetCorrelationID(ctx))

	data, err := p.deps.Source.Fetch(ctx, candidate.URL)
	if err != nil {
		reason := source.FetchReasonOf(err)
		metrics.FetchFailed(string(reason))
		logger.Warn("Skipping document after failed download", "reason", reason, "error", err)
		return nil, false
	}

	path, err := p.deps.Files.SaveDownload(jobID, i, data)
	if err != nil {
		logger.Error("Skipping document that could not be stored", "error", err)
		return nil, false
	}

	result := p.extract(ctx, jobID, path, func(pct int) int {
		return researchBandStart + researchBandWidth*(i*100+pct)/(total*100)
	})
	if !result.Success {
		logger.Warn("Skipping document after failed extraction", "error", result.Error)
		return nil, false
	}

	for k := range result.Artifacts {
		result.Artifacts[k].SourceDocument = candidate.Title
		result.Artifacts[k].SourceURL = candidate.URL
	}
	logger.Info("Document processed", "tables", len(result.Artifacts),
		"duration_ms", result.ProcessingTime.Milliseconds())
	return result.Artifacts, true
}

func (p *Pipeline) runDocument(ctx context.Context, jobID, name, path string) {
	_, err := p.commit(jobID, func(j *model.Job) {
		j.Status = model.StatusExtracting
		j.Progress = documentBandStart
		j.Message = fmt.Sprintf("Extracting tables from %s", name)
	}, model.EventNone, nil)
	if err != nil {
		return
	}

	result := p.extract(ctx, jobID, path, func(pct int) int {
		return documentBandStart + documentBandWidth*pct/100
	})
	if !result.Success {
		p.fail(jobID, fmt.Errorf("extraction failed: %s", result.Error))
		return
	}

	for k := range result.Artifacts {
		result.Artifacts[k].SourceDocument = name
	}
	_, err = p.commit(jobID, func(j *model.Job) {
		j.Artifacts = append(j.Artifacts, result.Artifacts...)
	}, model.EventNone, nil)
	if err != nil {
		return
	}

	p.complete(jobID, 1, 0, fmt.Sprintf("Extracted %d tables from %s", len(result.Artifacts), name))
}

// extract runs the extractor in its own goroutine and commits its progress,
// rescaled by scale, as it arrives. It returns once the extractor has
// returned and all of its progress has been committed.
func (p *Pipeline) extract(ctx context.Context, jobID, path string, scale func(int) int) extraction.Result {
	progress := make(chan extraction.Progress)
	var result extraction.Result

	go func() {
		defer close(progress)
		defer func() {
			if r := recover(); r != nil {
				result = extraction.Result{Error: fmt.Sprintf("extractor panicked: %v", r)}
			}
		}()
		result = p.deps.Extractor.Extract(ctx, path, p.deps.Files.WorkDir(jobID), progress)
	}()

	for step := range progress {
		status := model.StatusAnalyzing
		if step.Stage == extraction.StageExtracting {
			status = model.StatusExtracting
		}
		pct := scale(step.Percent)
		msg := stageMessage(step.Stage)
		if _, err := p.commit(jobID, func(j *model.Job) {
			j.Status = status
			j.Progress = pct
			j.Message = msg
		}, model.EventNone, nil); err != nil {
			slog.Warn("Dropping extraction progress", "job_id", jobID, "error", err)
		}
	}

	metrics.ExtractionDone(result.Success)
	if result.Success {
		metrics.ArtifactsAdded(len(result.Artifacts))
	}
	return result
}

func stageMessage(stage extraction.Stage) string {
	switch stage {
	case extraction.StageExtracting:
		return "Extracting tables"
	case extraction.StageAnalyzing:
		return "Analyzing tables"
	case extraction.StageFormatting:
		return "Formatting results"
	}
	return "Extraction finished"
}

func (p *Pipeline) complete(jobID string, processed, failed int, message string) {
	_, _ = p.commit(jobID, func(j *model.Job) {
		started := j.CreatedAt
		if j.StartedAt != nil {
			started = *j.StartedAt
		}
		j.Status = model.StatusCompleted
		j.Message = message
		j.Summary = &model.JobSummary{
			TableCount:         len(j.Artifacts),
			ProcessedDocuments: processed,
			FailedDocuments:    failed,
			ProcessingTime:     time.Since(started).Seconds(),
		}
	}, model.EventCompleted, map[string]any{
		"processed_documents": processed,
		"failed_documents":    failed,
	})
}

func (p *Pipeline) fail(jobID string, cause error) {
	_, _ = p.commit(jobID, func(j *model.Job) {
		j.Status = model.StatusFailed
		j.Error = cause.Error()
		j.Message = "Job failed"
	}, model.EventError, map[string]any{"error": cause.Error()})
}

func (p *Pipeline) recoverRun(jobID string) {
	if r := recover(); r != nil {
		slog.Error("Job panicked", "job_id", jobID, "panic", r)
		p.fail(jobID, fmt.Errorf("unexpected error: %v", r))
	}
}

// commit is the only path through which a running job changes. Observers
// are told about a state only after the store holds it.
func (p *Pipeline) commit(jobID string, mutate func(*model.Job), event model.JobEvent, data map[string]any) (model.Job, error) {
	job, err := p.deps.Store.Update(jobID, mutate)
	if err != nil {
		slog.Error("Job update rejected", "job_id", jobID, "error", err)
		return job, err
	}

	if event == model.EventCompleted {
		if data == nil {
			data = map[string]any{}
		}
		data["table_count"] = len(job.Artifacts)
	}
	p.deps.Publisher.Publish(jobID, model.NewJobUpdate(job, event, data))

	if job.Status.IsTerminal() {
		p.finish(job)
	}
	return job, nil
}

// finish runs the terminal side effects of a job exactly once
func (p *Pipeline) finish(job model.Job) {
	started := job.CreatedAt
	if job.StartedAt != nil {
		started = *job.StartedAt
	}
	metrics.JobFinished(string(job.Kind), string(job.Status), time.Since(started))
	p.deps.Files.RemoveJob(job.ID)

	slog.Info("Job finished",
		"job_id", job.ID,
		"status", job.Status,
		"tables", len(job.Artifacts),
		"error", job.Error,
	)

	if p.deps.Archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := p.deps.Archive.Save(ctx, job); err != nil {
			slog.Error("Failed to archive job", "job_id", job.ID, "error", err)
		}
		cancel()
	}

	if p.deps.Notifier != nil {
		p.pending.Add(1)
		go func() {
			defer p.pending.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := p.deps.Notifier.Notify(ctx, job); err != nil {
				slog.Warn("Job notification failed", "job_id", job.ID, "error", err)
			}
		}()
	}
}
