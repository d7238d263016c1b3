package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dandantas/tablescout/internal/model"
)

const (
	DefaultTimeout     = 300 * time.Second
	DefaultPreviewRows = 100
)

// ErrExtractionTimeout is reported when a collaborator exceeds the ceiling
var ErrExtractionTimeout = errors.New("extraction timed out")

// Stage names a phase of a single extraction
type Stage string

const (
	StageExtracting Stage = "extracting"
	StageAnalyzing  Stage = "analyzing"
	StageFormatting Stage = "formatting"
	StageDone       Stage = "done"
)

// Progress is reported on the progress channel while Extract runs
type Progress struct {
	Stage   Stage
	Percent int
}

// Result is the outcome of one extraction. Artifacts is empty when Success is false.
type Result struct {
	Artifacts      []model.Artifact
	Success        bool
	Error          string
	WorkbookPath   string
	ProcessingTime time.Duration
}

// Adapter turns one document into artifacts with the help of external collaborators
type Adapter struct {
	extractor   TableExtractor
	analyzer    TableAnalyzer
	timeout     time.Duration
	previewRows int
}

// NewAdapter creates an adapter. analyzer may be nil, in which case tables
// are categorized by name only.
func NewAdapter(extractor TableExtractor, analyzer TableAnalyzer, timeout time.Duration, previewRows int) *Adapter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}
	return &Adapter{
		extractor:   extractor,
		analyzer:    analyzer,
		timeout:     timeout,
		previewRows: previewRows,
	}
}

// Extract runs the collaborators against documentPath, writing intermediate
// files under workDir. Progress is sent on progress (which may be nil) only
// from the calling goroutine and never after Extract returns. Extract never
// panics and never returns an error: failures are reported in the Result.
func (a *Adapter) Extract(ctx context.Context, documentPath, workDir string, progress chan<- Progress) (result Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Extraction panicked", "document", documentPath, "panic", r)
			result = Result{Error: fmt.Sprintf("extraction panicked: %v", r)}
		}
		result.ProcessingTime = time.Since(start)
	}()

	report := func(stage Stage, pct int) {
		if progress == nil {
			return
		}
		select {
		case progress <- Progress{Stage: stage, Percent: pct}:
		case <-ctx.Done():
		}
	}

	if _, err := os.Stat(documentPath); err != nil {
		return Result{Error: fmt.Sprintf("document not readable: %v", err)}
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return Result{Error: fmt.Sprintf("failed to create work directory: %v", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	report(StageExtracting, 10)
	workbook, err := runWithCeiling(ctx, func(ctx context.Context) (string, error) {
		return a.extractor.ExtractTables(ctx, documentPath, workDir)
	})
	if err != nil {
		slog.Warn("Table extraction failed", "document", documentPath, "error", err)
		return Result{Error: err.Error()}
	}
	report(StageExtracting, 20)

	report(StageAnalyzing, 40)
	var categories Categories
	if a.analyzer != nil {
		categories, err = runWithCeiling(ctx, func(ctx context.Context) (Categories, error) {
			return a.analyzer.Categorize(ctx, workbook)
		})
		if err != nil {
			// Categorization falls back to table names
			slog.Warn("Table analysis failed", "workbook", workbook, "error", err)
			categories = nil
		}
	}
	report(StageAnalyzing, 60)

	report(StageFormatting, 80)
	tables, err := ReadWorkbook(workbook)
	if err != nil {
		return Result{WorkbookPath: workbook, Error: err.Error()}
	}

	artifacts := make([]model.Artifact, 0, len(tables))
	for _, table := range tables {
		artifacts = append(artifacts, table.Artifact(Categorize(table.Name, categories), a.previewRows))
	}
	report(StageFormatting, 90)
	report(StageDone, 100)

	slog.Info("Extraction finished", "document", documentPath, "tables", len(artifacts))
	return Result{
		Artifacts:    artifacts,
		Success:      true,
		WorkbookPath: workbook,
	}
}

// runWithCeiling returns when fn does or when ctx ends, whichever is first,
// so a collaborator that ignores cancellation cannot hold the caller.
func runWithCeiling[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- outcome{zero, fmt.Errorf("collaborator panicked: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- outcome{v, err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return out.value, fmt.Errorf("%w: %v", ErrExtractionTimeout, out.err)
		}
		return out.value, out.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrExtractionTimeout
		}
		return zero, ctx.Err()
	}
}
