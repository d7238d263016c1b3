package extraction

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// TableExtractor is the external table-extraction collaborator. It turns a
// document into a workbook with one sheet per table and returns its path.
type TableExtractor interface {
	ExtractTables(ctx context.Context, documentPath, outDir string) (string, error)
}

// TableAnalyzer is the external categorization collaborator
type TableAnalyzer interface {
	Categorize(ctx context.Context, workbookPath string) (Categories, error)
}

// CommandExtractor runs an external program. Arguments may contain the
// placeholders {input} and {output}; the program must write the workbook
// to {output}.
type CommandExtractor struct {
	Command string
	Args    []string
}

func (e *CommandExtractor) ExtractTables(ctx context.Context, documentPath, outDir string) (string, error) {
	output := filepath.Join(outDir, workbookName(documentPath))
	args := expandArgs(e.Args, documentPath, output)

	cmd := exec.CommandContext(ctx, e.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("extractor %s failed: %w: %s", e.Command, err, tail(stderr.String()))
	}
	if _, err := os.Stat(output); err != nil {
		return "", fmt.Errorf("extractor %s produced no workbook: %w", e.Command, err)
	}
	return output, nil
}

// CommandAnalyzer runs an external program that prints
// {"categorized_tables": {"category": ["table", ...]}} on stdout.
type CommandAnalyzer struct {
	Command string
	Args    []string
}

type analyzerOutput struct {
	CategorizedTables Categories `json:"categorized_tables"`
}

func (a *CommandAnalyzer) Categorize(ctx context.Context, workbookPath string) (Categories, error) {
	cmd := exec.CommandContext(ctx, a.Command, expandArgs(a.Args, workbookPath, "")...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("analyzer %s failed: %w: %s", a.Command, err, tail(stderr.String()))
	}

	var out analyzerOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("analyzer %s returned invalid JSON: %w", a.Command, err)
	}
	return out.CategorizedTables, nil
}

// ServiceExtractor posts the document to an extraction service. The service
// answers with an xlsx workbook, or with CSV for a single table.
type ServiceExtractor struct {
	URL        string
	HTTPClient *http.Client
}

func (s *ServiceExtractor) ExtractTables(ctx context.Context, documentPath, outDir string) (string, error) {
	body, contentType, err := multipartBody(documentPath)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, body)
	if err != nil {
		return "", fmt.Errorf("failed to create extraction request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("extraction service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("extraction service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	output := filepath.Join(outDir, workbookName(documentPath))
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv") {
		records, err := csv.NewReader(resp.Body).ReadAll()
		if err != nil {
			return "", fmt.Errorf("invalid CSV from extraction service: %w", err)
		}
		name := "Table_1"
		return output, WriteWorkbook(output, map[string][][]string{name: records}, []string{name})
	}

	f, err := os.Create(output)
	if err != nil {
		return "", fmt.Errorf("failed to create workbook file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	return output, nil
}

func multipartBody(documentPath string) (io.Reader, string, error) {
	f, err := os.Open(documentPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(documentPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("failed to read document: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func workbookName(documentPath string) string {
	base := filepath.Base(documentPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_tables.xlsx"
}

func expandArgs(args []string, input, output string) []string {
	out := make([]string, len(args))
	r := strings.NewReplacer("{input}", input, "{output}", output)
	for i, arg := range args {
		out[i] = r.Replace(arg)
	}
	return out
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 512 {
		return s[len(s)-512:]
	}
	return s
}
