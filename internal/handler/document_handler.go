package handler

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dandantas/tablescout/internal/model"
	"github.com/dandantas/tablescout/internal/source"
)

const uploadField = "pdf_file"

// DocumentHandler handles single-document jobs
type DocumentHandler struct {
	jobs        JobService
	maxUploadMB int64
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(jobs JobService, maxUploadMB int64) *DocumentHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 50
	}
	return &DocumentHandler{jobs: jobs, maxUploadMB: maxUploadMB}
}

// Upload handles POST /pdf/upload
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadMB<<20)

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing or unreadable upload field "+uploadField)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		writeError(w, http.StatusBadRequest, "Only PDF files are supported")
		return
	}

	magic := make([]byte, len(source.DocumentMagic))
	n, _ := io.ReadFull(file, magic)
	if !bytes.Equal(magic[:n], source.DocumentMagic) {
		writeError(w, http.StatusBadRequest, "File is not a valid PDF document")
		return
	}

	job, err := h.jobs.SubmitDocument(r.Context(), name, io.MultiReader(bytes.NewReader(magic[:n]), file))
	if err != nil {
		writeSubmitError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, StartResponse{JobID: job.ID, Status: "processing", Filename: name})
}

// Status handles GET /pdf/status/{job_id}
func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJobStatus(w, r, h.jobs, model.KindSingleDocument)
}
