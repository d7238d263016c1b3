package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger is an optional dependency checked by the health endpoints
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueReporter reports the number of jobs waiting for a worker
type QueueReporter interface {
	QueueLength() int
}

// HealthHandler handles service health and readiness checks
type HealthHandler struct {
	db        Pinger // nil when the archive is disabled
	queue     QueueReporter
	stats     StatsReporter
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger, queue QueueReporter, stats StatsReporter, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		queue:     queue,
		stats:     stats,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	Timestamp       string `json:"timestamp"`
	MongoDB         string `json:"mongodb"`
	QueuedJobs      int    `json:"queued_jobs"`
	LiveConnections int    `json:"live_connections"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Ready   bool   `json:"ready"`
	MongoDB string `json:"mongodb"`
}

// ServiceInfo is returned by GET /
type ServiceInfo struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	Endpoints map[string]string `json:"endpoints"`
}

// Root returns the service description
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ServiceInfo{
		Service: "tablescout",
		Version: h.version,
		Status:  "running",
		Endpoints: map[string]string{
			"start_research":  "POST /research/start",
			"research_status": "GET /research/status/{job_id}",
			"upload_document": "POST /pdf/upload",
			"document_status": "GET /pdf/status/{job_id}",
			"jobs":            "GET /jobs",
			"live":            "GET /ws",
			"metrics":         "GET /metrics",
		},
	})
}

// Health returns the service health status
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		MongoDB:       h.mongoStatus(r.Context()),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}
	if h.queue != nil {
		response.QueuedJobs = h.queue.QueueLength()
	}
	if h.stats != nil {
		response.LiveConnections = h.stats.Stats().Connections
	}

	writeJSON(w, http.StatusOK, response)
}

// Ready returns the service readiness status
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	mongoStatus := h.mongoStatus(r.Context())
	ready := mongoStatus != "disconnected"

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, ReadyResponse{
		Ready:   ready,
		MongoDB: mongoStatus,
	})
}

func (h *HealthHandler) mongoStatus(ctx context.Context) string {
	if h.db == nil {
		return "disabled"
	}
	if err := h.db.Ping(ctx); err != nil {
		return "disconnected"
	}
	return "connected"
}
