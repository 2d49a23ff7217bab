// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	cerrors "ethics-advisor/internal/common/errors"
	"ethics-advisor/internal/common/logger"
	"ethics-advisor/internal/common/metrics"
	"ethics-advisor/internal/ingestion"
	"ethics-advisor/internal/models"
	"ethics-advisor/internal/workflow"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// ConsultationRunner executes the consultation workflow. Satisfied by
// *workflow.Orchestrator.
type ConsultationRunner interface {
	Run(ctx context.Context, req models.ConsultationRequest) (*models.ConsultationResponse, error)
	RunWithProgress(ctx context.Context, req models.ConsultationRequest, progress func(stage string)) (*models.ConsultationResponse, error)
}

// HistoryReader serves the consultation history endpoint.
type HistoryReader interface {
	RecentByAgency(ctx context.Context, agency string, limit int) ([]models.ConsultationRecord, error)
}

// DocumentIngester chunks, embeds, and indexes corpus documents.
type DocumentIngester interface {
	IngestDocument(ctx context.Context, doc ingestion.Document, strategy ingestion.Strategy) (*ingestion.Result, error)
}

// HealthCheck pings one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// Server is the HTTP boundary around the consultation workflow.
type Server struct {
	config   *Config
	runner   ConsultationRunner
	history  HistoryReader
	ingester DocumentIngester
	checks   map[string]HealthCheck
	log      logger.Logger
	httpSrv  *http.Server
}

func New(cfg *Config, runner ConsultationRunner, log logger.Logger) *Server {
	return &Server{
		config: cfg,
		runner: runner,
		checks: make(map[string]HealthCheck),
		log:    log.With(map[string]interface{}{"component": "server"}),
	}
}

// WithHistory enables GET /api/history.
func (s *Server) WithHistory(h HistoryReader) *Server {
	s.history = h
	return s
}

// WithIngester enables POST /api/documents.
func (s *Server) WithIngester(ing DocumentIngester) *Server {
	s.ingester = ing
	return s
}

// WithHealthCheck registers a named dependency ping for GET /health.
func (s *Server) WithHealthCheck(name string, check HealthCheck) *Server {
	s.checks[name] = check
	return s
}

// Handler builds the full route table with CORS and metrics middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/api/chat", s.handleChat).Methods("POST")
	r.HandleFunc("/api/chat/stream", s.handleChatStream).Methods("POST")
	r.HandleFunc("/api/history", s.handleHistory).Methods("GET")
	r.HandleFunc("/api/documents", s.handleIngestDocument).Methods("POST")

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// Start blocks serving HTTP until Shutdown or listener failure.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.log.Info("HTTP server listening", map[string]interface{}{
		"port": s.config.Port,
	})
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// --- Handlers ---

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ConsultationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", "INVALID_REQUEST", http.StatusBadRequest)
		return
	}

	resp, err := s.runner.Run(r.Context(), req)
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req models.ConsultationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", "INVALID_REQUEST", http.StatusBadRequest)
		return
	}
	// Validation failures must go out as a plain 400 before any SSE
	// headers are committed.
	if err := req.Validate(); err != nil {
		s.writeRunError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, "Streaming unsupported", "STREAMING_UNSUPPORTED", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// RunWithProgress invokes the callback on this goroutine, so the
	// writes below never race.
	resp, err := s.runner.RunWithProgress(r.Context(), req, func(stage string) {
		s.writeEvent(w, map[string]interface{}{
			"status":  stage,
			"message": stageMessage(stage),
		})
		flusher.Flush()
	})
	if err != nil {
		s.writeEvent(w, map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	} else {
		s.writeEvent(w, map[string]interface{}{
			"status":   "complete",
			"response": resp,
		})
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	components := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			status = "degraded"
		} else {
			components[name] = "ok"
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, map[string]interface{}{
		"status":     status,
		"service":    "ethics-advisor",
		"components": components,
		"timestamp":  time.Now().UTC(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, "Consultation history is not available", "HISTORY_UNAVAILABLE", http.StatusServiceUnavailable)
		return
	}

	agency := r.URL.Query().Get("agency")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, "Invalid limit parameter", "INVALID_REQUEST", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := s.history.RecentByAgency(r.Context(), agency, limit)
	if err != nil {
		s.log.Error("History query failed", map[string]interface{}{
			"error":  err.Error(),
			"agency": agency,
		})
		s.writeError(w, "Failed to load consultation history", "HISTORY_QUERY_FAILED", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"consultations": records,
		"count":         len(records),
	})
}

type ingestRequest struct {
	SourceID string `json:"source_id"`
	Text     string `json:"text"`
	Strategy string `json:"strategy,omitempty"`
}

func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	if s.ingester == nil {
		s.writeError(w, "Document ingestion is not available", "INGESTION_UNAVAILABLE", http.StatusServiceUnavailable)
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", "INVALID_REQUEST", http.StatusBadRequest)
		return
	}

	doc := ingestion.Document{SourceID: req.SourceID, Text: req.Text}
	result, err := s.ingester.IngestDocument(r.Context(), doc, ingestion.Strategy(req.Strategy))
	if err != nil {
		switch {
		case errors.Is(err, ingestion.ErrEmptyDocument):
			s.writeError(w, "Document text must not be empty", "EMPTY_DOCUMENT", http.StatusBadRequest)
		case errors.Is(err, ingestion.ErrInvalidChunkStrategy):
			s.writeError(w, "Unknown chunking strategy", "INVALID_STRATEGY", http.StatusBadRequest)
		default:
			s.log.Error("Document ingestion failed", map[string]interface{}{
				"error":    err.Error(),
				"sourceId": req.SourceID,
			})
			s.writeError(w, "Failed to ingest document", "INGESTION_FAILED", http.StatusInternalServerError)
		}
		return
	}
	s.writeJSON(w, http.StatusCreated, result)
}

// --- Support ---

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("Failed to encode response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *Server) writeError(w http.ResponseWriter, message, code string, status int) {
	s.writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeRunError maps workflow errors onto HTTP statuses. Validation
// problems are the caller's fault; everything else is ours.
func (s *Server) writeRunError(w http.ResponseWriter, err error) {
	var stdErr *cerrors.StandardError
	if errors.As(err, &stdErr) {
		status := http.StatusInternalServerError
		if cerrors.GetErrorCategory(stdErr.Code) == "VALIDATION" {
			status = http.StatusBadRequest
		}
		s.writeError(w, stdErr.Message, string(stdErr.Code), status)
		return
	}
	s.log.Error("Consultation failed", map[string]interface{}{
		"error": err.Error(),
	})
	s.writeError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
}

func (s *Server) writeEvent(w http.ResponseWriter, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("Failed to encode stream event", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func stageMessage(stage string) string {
	switch stage {
	case workflow.StagePlanning:
		return "Planning research strategy..."
	case workflow.StageRetrieving:
		return "Searching federal ethics law database..."
	case workflow.StageSearching:
		return "Researching penalties, guidance, and precedents..."
	case workflow.StageAssessing:
		return "Generating comprehensive assessment..."
	}
	return "Processing..."
}

// --- Middleware ---

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}
