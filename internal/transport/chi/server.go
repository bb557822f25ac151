package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docembed/internal/domain"
	"github.com/kailas-cloud/docembed/internal/domain/batch"
	"github.com/kailas-cloud/docembed/internal/domain/section"
	"github.com/kailas-cloud/docembed/internal/domain/vector"
	logpkg "github.com/kailas-cloud/docembed/internal/logger"
	"github.com/kailas-cloud/docembed/internal/metrics"
	healthuc "github.com/kailas-cloud/docembed/internal/usecase/health"
	"github.com/kailas-cloud/docembed/internal/usecase/ingest"
)

// maxBodyBytes limits JSON request bodies.
const maxBodyBytes = 1 << 20

// Trainer runs the ingestion entry point.
type Trainer interface {
	TrainEmbeddings(ctx context.Context, in ingest.TrainingInput) (batch.Report, error)
}

// Querier runs the similarity query entry point.
type Querier interface {
	GetSimilarDataFrom(ctx context.Context, text, source string) (vector.QueryResult, error)
}

// HealthReporter aggregates component health.
type HealthReporter interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, body ErrorResponse) bool

// Server serves the HTTP API.
type Server struct {
	trainer       Trainer
	querier       Querier
	health        HealthReporter
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(trainer Trainer, querier Querier, health HealthReporter, logger *zap.Logger) *Server {
	s := &Server{
		trainer: trainer,
		querier: querier,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, ErrorCodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeEmbeddingProvider),
	}
	return s
}

// Options configure the router.
type Options struct {
	APIKeys []string
}

// Router builds the chi router with the full middleware chain.
func (s *Server) Router(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(opts.APIKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/train", s.Train)
		r.Get("/similar", s.Similar)
		r.Post("/sections", s.Sections)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
	return r
}

// Train handles POST /v1/train.
func (s *Server) Train(w http.ResponseWriter, r *http.Request) {
	var req TrainRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	report, err := s.trainer.TrainEmbeddings(r.Context(), ingest.TrainingInput{
		Container: req.Container,
		ObjectKey: req.ObjectKey,
	})
	if err != nil {
		var dto *TrainReport
		if len(report.Batches) > 0 {
			dto = reportToDTO(report)
		}
		s.handleDomainError(w, r, err, dto)
		return
	}

	writeJSON(w, http.StatusOK, reportToDTO(report))
}

// Similar handles GET /v1/similar?query=...&source=...
func (s *Server) Similar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := s.querier.GetSimilarDataFrom(r.Context(), q.Get("query"), q.Get("source"))
	if err != nil {
		s.handleDomainError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, resultToDTO(result))
}

// Sections handles POST /v1/sections.
func (s *Server) Sections(w http.ResponseWriter, r *http.Request) {
	var req SectionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Headings) == 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "at least one heading is required")
		return
	}
	writeJSON(w, http.StatusOK, SectionsResponse{
		Sections: section.Scan(blocksFromDTO(req.Blocks), req.Headings...),
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	// Degraded is still 200; only a failed required check returns 503.
	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{Status: string(report.Status), Checks: checks})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a client-safe message without exposing internals.
// Validation errors are shown verbatim since they only echo the input.
func safeDomainMessage(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	sentinels := []error{
		domain.ErrInvalidInput,
		domain.ErrNotFound,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
		domain.ErrVectorDimMismatch,
		domain.ErrProvisioning,
		domain.ErrEmbedding,
		domain.ErrUpsert,
		domain.ErrQuery,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, body ErrorResponse) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		body.Code = code
		writeJSON(w, status, body)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error, report *TrainReport) {
	log := logpkg.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))

	body := ErrorResponse{Message: safeDomainMessage(err), Report: report}
	for _, h := range s.errorHandlers {
		if h(w, err, body) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	body.Code = ErrorCodeInternal
	writeJSON(w, http.StatusInternalServerError, body)
}
