package handler

import (
	"net/http"

	"github.com/dandantas/tablescout/internal/metrics"
	"github.com/dandantas/tablescout/pkg/middleware"
	"github.com/go-chi/chi/v5"
)

// Router handles HTTP routing
type Router struct {
	researchHandler  *ResearchHandler
	documentHandler  *DocumentHandler
	jobHandler       *JobHandler
	webSocketHandler *WebSocketHandler
	healthHandler    *HealthHandler
	corsConfig       middleware.CORSConfig
}

// NewRouter creates a new router
func NewRouter(
	researchHandler *ResearchHandler,
	documentHandler *DocumentHandler,
	jobHandler *JobHandler,
	webSocketHandler *WebSocketHandler,
	healthHandler *HealthHandler,
	corsConfig middleware.CORSConfig,
) *Router {
	return &Router{
		researchHandler:  researchHandler,
		documentHandler:  documentHandler,
		jobHandler:       jobHandler,
		webSocketHandler: webSocketHandler,
		healthHandler:    healthHandler,
		corsConfig:       corsConfig,
	}
}

// Handler returns the configured HTTP handler with middleware
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	// Outermost first; CORS sits innermost so preflight requests are still logged
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS(rt.corsConfig))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/", rt.healthHandler.Root)
	r.Get("/health", rt.healthHandler.Health)
	r.Get("/ready", rt.healthHandler.Ready)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/research", func(r chi.Router) {
		r.Post("/start", rt.researchHandler.Start)
		r.Get("/status/{job_id}", rt.researchHandler.Status)
	})

	r.Route("/pdf", func(r chi.Router) {
		r.Post("/upload", rt.documentHandler.Upload)
		r.Get("/status/{job_id}", rt.documentHandler.Status)
	})

	r.Get("/jobs", rt.jobHandler.List)

	r.Get("/ws", rt.webSocketHandler.Serve)
	r.Get("/ws/stats", rt.webSocketHandler.Stats)

	return r
}
