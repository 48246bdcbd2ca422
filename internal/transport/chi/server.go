package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/photodex/internal/domain"
	domimg "github.com/kailas-cloud/photodex/internal/domain/image"
	"github.com/kailas-cloud/photodex/internal/domain/search/request"
	"github.com/kailas-cloud/photodex/internal/domain/search/result"
	cataloguc "github.com/kailas-cloud/photodex/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/photodex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/photodex/internal/usecase/ingest"
	searchuc "github.com/kailas-cloud/photodex/internal/usecase/search"
)

// Error codes returned in errorResponse.Code.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeFileTooLarge     = "file_too_large"
	codeNotFound         = "not_found"
	codeDuplicate        = "duplicate_image"
	codeEmbeddingError   = "embedding_provider_error"
	codeQueueFull        = "queue_full"
	codeInternalError    = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Ingester stores uploads.
type Ingester interface {
	Ingest(ctx context.Context, up ingestuc.Upload) (ingestuc.Outcome, error)
}

// Searcher runs text and similarity searches.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) ([]result.Hit, error)
	Similar(ctx context.Context, req request.SimilarRequest) ([]result.Hit, error)
}

// Catalog reads and removes stored images.
type Catalog interface {
	Get(ctx context.Context, id int64) (cataloguc.Info, error)
	List(ctx context.Context, state *domimg.State, limit int) ([]domimg.Record, error)
	Delete(ctx context.Context, id int64) error
	Usage(ctx context.Context) (cataloguc.Usage, error)
}

// Retrier re-enqueues failed embedding jobs.
type Retrier interface {
	Retry(ctx context.Context, id int64) error
	RetryAllFailed(ctx context.Context) (int, error)
}

// QueryCache evicts cached query embeddings.
type QueryCache interface {
	Clear(ctx context.Context, text string) error
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Linker builds public URLs for storage keys.
type Linker interface {
	URL(key string) string
}

// Deps bundles the server collaborators.
type Deps struct {
	Ingest  Ingester
	Search  Searcher
	Catalog Catalog
	Jobs    Retrier
	Cache   QueryCache
	Health  HealthChecker
	Links   Linker
}

// Server serves the photodex HTTP API.
type Server struct {
	Deps
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(deps Deps, logger *zap.Logger) *Server {
	s := &Server{Deps: deps, logger: logger}
	s.errorHandlers = []errorHandler{
		embeddingErrorHandler,
		validationHandler,
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrDuplicate, http.StatusConflict, codeDuplicate),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingError),
		sentinelHandler(domain.ErrQueueFull, http.StatusServiceUnavailable, codeQueueFull),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r gochi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r gochi.Router) {
		r.Get("/search", s.SearchImages)
		r.Delete("/cache/queries", s.ClearQueryCache)
		r.Get("/usage", s.GetUsage)

		r.Route("/images", func(r gochi.Router) {
			r.Post("/", s.UploadImage)
			r.Get("/", s.ListImages)
			r.Post("/retry-failed", s.RetryFailed)
			r.Get("/{id}", s.GetImage)
			r.Delete("/{id}", s.DeleteImage)
			r.Get("/{id}/similar", s.SimilarImages)
			r.Post("/{id}/retry", s.RetryImage)
		})
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.Health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrImageNotFound,
		domain.ErrNotFound,
		domain.ErrDuplicate,
		domain.ErrEmbeddingProviderError,
		domain.ErrQueueFull,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// validationHandler surfaces the user-facing message of a ValidationError.
func validationHandler(w http.ResponseWriter, err error, _ string) bool {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	writeError(w, http.StatusBadRequest, codeValidationFailed, ve.Message)
	return true
}

// embeddingErrorHandler answers a failed query embedding with its fixed message.
func embeddingErrorHandler(w http.ResponseWriter, err error, _ string) bool {
	var ee *searchuc.EmbeddingError
	if !errors.As(err, &ee) {
		return false
	}
	writeError(w, http.StatusBadGateway, codeEmbeddingError, ee.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

// badRequest answers a malformed parameter.
func badRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
}
