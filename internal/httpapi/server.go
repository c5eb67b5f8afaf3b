package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	goProfile "github.com/MrEthical07/goProfile"
	"github.com/MrEthical07/goProfile/indexer"
	"github.com/MrEthical07/goProfile/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ServiceName labels traces emitted by the HTTP layer.
const ServiceName = "profiled"

const requestTimeout = 10 * time.Second

// FactIndex answers fact history queries from the Postgres index.
type FactIndex interface {
	BySubject(ctx context.Context, subject string, limit int) ([]indexer.Row, error)
	ByActor(ctx context.Context, actor string, limit int) ([]indexer.Row, error)
}

// Server exposes engine operations over HTTP.
type Server struct {
	engine  *goProfile.Engine
	logger  zerolog.Logger
	metrics http.Handler
	index   FactIndex
}

// Option customizes a [Server].
type Option func(*Server)

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithFactIndex enables the /v1/index routes.
func WithFactIndex(idx FactIndex) Option {
	return func(s *Server) { s.index = idx }
}

// New builds a Server around engine.
func New(engine *goProfile.Engine, logger zerolog.Logger, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	s := &Server{engine: engine, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Routes constructs the chi router containing all API endpoints, wrapped in
// OpenTelemetry HTTP instrumentation.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(middleware.Caller)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.With(middleware.RequireCaller).Post("/profiles", s.handleRegister)
		r.Get("/profiles/{id}", s.handleGetProfile)
		r.Get("/owners/{owner}/profiles", s.handleProfilesByOwner)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCaller)
			r.Put("/profiles/{id}/nickname", s.handleUpdateNickname)
			r.Put("/profiles/{id}/bio", s.handleUpdateBio)
			r.Put("/profiles/{id}/avatar/url", s.handleSetAvatarURL)
			r.Post("/profiles/{id}/avatar/asset", s.handleMintAvatarAsset)
			r.Post("/assets/{id}/transfer", s.handleTransferAsset)
			r.Get("/stores/{id}/sessions", s.handleListSessions)
			r.Post("/stores/{id}/sessions", s.handleCreateSession)
			r.Delete("/stores/{id}/sessions/{key}", s.handleRevokeSession)
		})

		r.Get("/assets/{id}", s.handleGetAsset)
		r.Get("/stores/{id}", s.handleGetSessionStore)
		r.Get("/stores/{id}/sessions/{key}", s.handleValidateSession)
		r.Post("/stores/{id}/cleanup", s.handleCleanup)
		r.Post("/stores/{id}/sweep", s.handleSweep)
		r.Get("/facts", s.handleFacts)
		if s.index != nil {
			r.Get("/index/facts", s.handleIndexedFacts)
		}

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdminCap(s.engine))
			r.Post("/caps", s.handleIssueAdminCap)
			r.Post("/profiles/{id}/verify", s.handleVerify(true))
			r.Post("/profiles/{id}/unverify", s.handleVerify(false))
			r.Put("/profiles/{id}/tier", s.handleUpdateTier)
		})
	})

	return otelhttp.NewHandler(r, ServiceName)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.engine.Health(r.Context())
	code := http.StatusOK
	if !status.RedisAvailable {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]any{
		"redis_available":  status.RedisAvailable,
		"redis_latency_ms": status.RedisLatency.Milliseconds(),
	})
}
