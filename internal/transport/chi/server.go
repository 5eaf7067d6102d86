package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/obirdex/internal/domain"
	"github.com/kailas-cloud/obirdex/internal/envelope"
	"github.com/kailas-cloud/obirdex/internal/logger"
	healthuc "github.com/kailas-cloud/obirdex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/obirdex/internal/usecase/search"
)

// errPathInfoUnavailable is reported when a cache key has no path pair.
var errPathInfoUnavailable = errors.New("path info not available")

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server is the HTTP gateway over the search orchestrator.
type Server struct {
	search        *searchuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP gateway server.
func NewServer(search *searchuc.Service, health *healthuc.Service, l *zap.Logger) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	s := &Server{search: search, health: health, logger: l}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest),
		sentinelHandler(domain.ErrBackendStatus, http.StatusBadGateway),
		sentinelHandler(domain.ErrNormalization, http.StatusBadGateway),
		sentinelHandler(domain.ErrTransport, http.StatusBadGateway),
	}
	return s
}

// Routes registers the gateway routes on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search/two-round", s.TwoRoundSearch)
		r.Get("/search/basic", s.BasicSearch)
		r.Get("/paths/{cacheKey}", s.PathComparison)
		r.Get("/index/init-info", s.InitInfo)
		r.Get("/index/oram-info", s.OramInfo)
	})
}

// Handler returns a router serving the gateway routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Routes(r)
	return r
}

// TwoRoundSearch handles GET /api/v1/search/two-round.
func (s *Server) TwoRoundSearch(w http.ResponseWriter, r *http.Request) {
	q, err := bindSearchQuery(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	o, err := s.search.TwoRoundSearch(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope.NewTwoRound(o))
}

// BasicSearch handles GET /api/v1/search/basic.
func (s *Server) BasicSearch(w http.ResponseWriter, r *http.Request) {
	q, err := bindSearchQuery(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	o, err := s.search.BasicSearch(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope.NewBasic(o))
}

// PathComparison handles GET /api/v1/paths/{cacheKey}. The pair is applied to
// the session's results when this gateway served the first stage.
func (s *Server) PathComparison(w http.ResponseWriter, r *http.Request) {
	var cacheKey string
	err := runtime.BindStyledParameterWithOptions("simple", "cacheKey", chi.URLParam(r, "cacheKey"), &cacheKey,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		s.handleDomainError(w, r, fmt.Errorf("%w: %s", domain.ErrInvalidQuery, err.Error()))
		return
	}

	o, ok := s.search.ApplyPathComparison(r.Context(), cacheKey, nil)
	if !ok {
		writeJSON(w, http.StatusNotFound, envelope.NewFailure(errPathInfoUnavailable))
		return
	}

	writeJSON(w, http.StatusOK, envelope.NewPaths(o))
}

// InitInfo handles GET /api/v1/index/init-info. The backend payload is passed through.
func (s *Server) InitInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.search.InitInfo(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// OramInfo handles GET /api/v1/index/oram-info.
func (s *Server) OramInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.search.OramInfo(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope.NewOram(info))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// bindSearchQuery binds keyword, x, y and k from the query string.
func bindSearchQuery(r *http.Request) (domain.SearchQuery, error) {
	params := r.URL.Query()

	var (
		keyword string
		x, y    float64
		k       int
	)
	for _, p := range []struct {
		name string
		dest any
	}{
		{"keyword", &keyword},
		{"x", &x},
		{"y", &y},
		{"k", &k},
	} {
		if err := runtime.BindQueryParameter("form", true, true, p.name, params, p.dest); err != nil {
			return domain.SearchQuery{}, fmt.Errorf("%w: %s", domain.ErrInvalidQuery, err.Error())
		}
	}

	q, err := domain.NewQuery(keyword, x, y, k)
	if err != nil {
		return domain.SearchQuery{}, fmt.Errorf("bind query: %w", err)
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeJSON(w, status, envelope.NewFailure(err))
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context(), s.logger)
	log.Warn("domain error", zap.String("path", r.URL.Path), zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, envelope.Failure{Error: "internal error"})
}
