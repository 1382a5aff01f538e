// Package httpapi implements the Request Edge (§4.9): the sole HTTP-facing
// component, which maps every inbound request onto a CORE or supporting
// component call and maps every apperr.Code back to an HTTP status. Grounded
// on Kaikei-e-Alt/auth-hub's main.go echo wiring (RequestLoggerWithConfig
// with a custom slog LogValuesFunc, Recover, signal.Notify-driven graceful
// shutdown) and its handler package's constructor-injected-interface style.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/archivecast/podgen/internal/domain"
	"github.com/archivecast/podgen/internal/infrastructure/llm"
	"github.com/archivecast/podgen/internal/ingestion"
	"github.com/archivecast/podgen/internal/metrics"
	"github.com/archivecast/podgen/internal/ports"
	"github.com/archivecast/podgen/internal/workflow"
)

// maxBodyBytes bounds any request body (§4.9: "10MB JSON body limit").
const maxBodyBytes = "10M"

// Server bundles every dependency the Request Edge's handlers call into,
// and owns the underlying echo instance.
type Server struct {
	echo *echo.Echo

	store        ports.CatalogStore
	ingestion    *ingestion.Engine
	pool         ports.KeyPool
	validator    ports.KeyValidator
	orchestrator *llm.Orchestrator
	workflow     *workflow.Engine
	metrics      *metrics.Metrics
	logger       *slog.Logger

	adminToken string
	envAPIKey  string
	startedAt  time.Time
}

// Config is the set of constructed dependencies a Server wires into routes.
type Config struct {
	Store        ports.CatalogStore
	Ingestion    *ingestion.Engine
	Pool         ports.KeyPool
	Validator    ports.KeyValidator
	Orchestrator *llm.Orchestrator
	Workflow     *workflow.Engine
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	AdminToken   string
	EnvAPIKey    string
}

// New builds a Server with every route registered.
func New(cfg Config) *Server {
	s := &Server{
		echo:         echo.New(),
		store:        cfg.Store,
		ingestion:    cfg.Ingestion,
		pool:         cfg.Pool,
		validator:    cfg.Validator,
		orchestrator: cfg.Orchestrator,
		workflow:     cfg.Workflow,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		adminToken:   cfg.AdminToken,
		envAPIKey:    cfg.EnvAPIKey,
		startedAt:    time.Now(),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.Use(middleware.CORS())
	s.echo.Use(middleware.BodyLimit(maxBodyBytes))
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogError:   true,
		LogMethod:  true,
		LogLatency: true,
		HandleError: true,
		LogValuesFunc: s.logRequest,
	}))
	s.echo.Use(middleware.Recover())

	s.routes()
	return s
}

// logRequest is the RequestLoggerConfig.LogValuesFunc: it writes a
// structured slog line and appends an analytics Event for every request
// (§4.9: "every request appends an Event row").
func (s *Server) logRequest(c echo.Context, v middleware.RequestLoggerValues) error {
	ctx := c.Request().Context()
	if v.Error == nil {
		s.logger.InfoContext(ctx, "request completed",
			"method", v.Method, "uri", v.URI, "status", v.Status, "latency_ms", v.Latency.Milliseconds())
	} else {
		s.logger.ErrorContext(ctx, "request failed",
			"method", v.Method, "uri", v.URI, "status", v.Status, "latency_ms", v.Latency.Milliseconds(), "error", v.Error.Error())
	}

	if s.metrics != nil {
		s.metrics.ObserveEvent("http_request")
	}
	if s.store != nil {
		event := domain.Event{
			EventType: "http_request",
			Data: map[string]any{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
			},
			IP:        c.RealIP(),
			UserAgent: c.Request().UserAgent(),
			Timestamp: time.Now(),
		}
		_ = s.store.AppendEvent(ctx, event)
	}
	return nil
}

// adminOnly rejects requests missing a matching X-Admin-Token header,
// unless no admin token is configured (§4.9: "admin routes are a no-op
// guard when ADMIN_TOKEN is unset").
func (s *Server) adminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.adminToken == "" {
			return next(c)
		}
		if c.Request().Header.Get("X-Admin-Token") != s.adminToken {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid admin token")
		}
		return next(c)
	}
}

func (s *Server) routes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/search", s.handleSearch)
	api.GET("/models", s.handleModels)
	api.GET("/key-pool-status", s.handleKeyPoolStatus)

	api.POST("/workflow", s.handleCreateWorkflow)
	api.GET("/workflow/:id", s.handleGetWorkflow)
	api.POST("/upload-script", s.handleUploadScript)
	api.POST("/generate-script", s.handleGenerateScript)
	api.POST("/generate-audio", s.handleGenerateAudio)
	api.POST("/finalize", s.handleFinalize)

	api.POST("/validate-openrouter-key", s.handleValidateOpenRouterKey)
	api.POST("/validate-keys", s.handleValidateKeys)
	api.POST("/openrouter", s.handleOpenRouterProxy)

	admin := api.Group("", s.adminOnly)
	admin.GET("/verify-sources", s.handleVerifySources)
	admin.POST("/refresh-archive", s.handleRefreshArchive)
	admin.POST("/refresh-models", s.handleRefreshModels)
}

// Start begins serving on addr; it blocks until the listener stops.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
