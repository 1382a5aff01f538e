// Package app wires every component named across §2/§6 into one runnable
// process: Catalog Store, source adapters, API-Key Pool, Key Validator,
// LLM Orchestrator, TTS Worker, Feed Writer, Workflow Engine, Ingestion
// Engine/Scheduler, Metrics, and the Request Edge. Grounded on the
// teacher's internal/app.Application — same New(cfg, logger)/Run(ctx)
// shape, generalized from a single-pipeline wiring to the full component
// graph.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/archivecast/podgen/internal/config"
	"github.com/archivecast/podgen/internal/httpapi"
	"github.com/archivecast/podgen/internal/infrastructure/adapters"
	"github.com/archivecast/podgen/internal/infrastructure/feed"
	"github.com/archivecast/podgen/internal/infrastructure/llm"
	"github.com/archivecast/podgen/internal/infrastructure/storage"
	"github.com/archivecast/podgen/internal/infrastructure/tts"
	"github.com/archivecast/podgen/internal/ingestion"
	"github.com/archivecast/podgen/internal/keypool"
	"github.com/archivecast/podgen/internal/keyvalidator"
	"github.com/archivecast/podgen/internal/logging"
	"github.com/archivecast/podgen/internal/metrics"
	"github.com/archivecast/podgen/internal/source"
	"github.com/archivecast/podgen/internal/workflow"
)

// refreshInterval is how often the background scheduler re-runs
// populateArchive after its immediate startup run (§5).
const refreshInterval = 6 * time.Hour

// Application bundles every wired component for a single process lifetime.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	store     *storage.SQLiteStore
	ingestion *ingestion.Engine
	scheduler *ingestion.BackgroundScheduler
	server    *httpapi.Server
}

// New constructs and wires every component but does not yet start the HTTP
// listener or the background scheduler; call Start for that.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = logging.New(cfg.Logging.Level)
	}

	dsn := strings.TrimSuffix(cfg.Storage.Root, "/") + "/archive.db"
	store, err := storage.Open(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog store: %w", err)
	}

	registry := buildSourceRegistry(cfg)
	pool := keypool.New()

	httpClient := &http.Client{Timeout: 60 * time.Second}
	orClient := llm.NewOpenRouterClient(llm.ClientConfig{
		Endpoint:   cfg.LLM.Endpoint,
		HTTPClient: httpClient,
	})

	validator, err := keyvalidator.New(store, orClient, 256)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build key validator: %w", err)
	}

	orchestrator := llm.NewOrchestrator(orClient, pool)
	ttsWorker := tts.New(cfg.TTS.Binary)
	feedWriter := feed.New()
	workflowEngine := workflow.New(store, orchestrator, ttsWorker, feedWriter, cfg.Storage.Root)

	ingestionEngine := ingestion.New(registry, store)
	scheduler := ingestion.NewBackgroundScheduler(refreshInterval)

	metricsObj := metrics.New(prometheus.DefaultRegisterer)

	server := httpapi.New(httpapi.Config{
		Store:        store,
		Ingestion:    ingestionEngine,
		Pool:         pool,
		Validator:    validator,
		Orchestrator: orchestrator,
		Workflow:     workflowEngine,
		Metrics:      metricsObj,
		Logger:       logger,
		AdminToken:   cfg.Server.AdminToken,
		EnvAPIKey:    cfg.LLM.EnvironmentKey,
	})

	return &Application{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		ingestion: ingestionEngine,
		scheduler: scheduler,
		server:    server,
	}, nil
}

// buildSourceRegistry registers one adapter per enabled entry in
// cfg.Sources, reading per-adapter overrides from SourceConfig.Options
// (§4.2's four-adapter family).
func buildSourceRegistry(cfg config.Config) *source.Registry {
	registry := source.NewRegistry()
	for _, sc := range cfg.Sources {
		if !sc.Enabled {
			continue
		}
		switch sc.Name {
		case "archive":
			registry.Register(adapters.NewArchiveSource(nil, sc.Options["baseURL"]))
		case "whitehouse":
			registry.Register(adapters.NewWhiteHouseSource(nil, sc.Options["baseURL"]))
		case "cspan":
			registry.Register(adapters.NewCSpanSource(nil, sc.Options["apiURL"], sc.Options["personURL"], sc.Options["subject"]))
		case "youtube":
			registry.Register(adapters.NewYouTubeSource(nil, cfg.Ingest.YouTubeAPIKey, splitQueries(sc.Options["queries"])))
		}
	}
	return registry
}

func splitQueries(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Start launches the background ingestion scheduler and the HTTP listener.
// The scheduler's first populateArchive run happens in the background; the
// server begins accepting requests immediately (§5: "the server starts
// accepting requests before it completes").
func (a *Application) Start(ctx context.Context) error {
	if err := a.scheduler.Start(ctx, func(time.Time) {
		result, err := a.ingestion.PopulateArchive(ctx, 50)
		if err != nil {
			a.logger.ErrorContext(ctx, "scheduled populate archive failed", "error", err)
			return
		}
		a.logger.InfoContext(ctx, "populate archive cycle finished",
			"skipped", result.Skipped, "existing", result.Existing, "inserted", result.Inserted, "total", result.Total)
	}); err != nil {
		return fmt.Errorf("start ingestion scheduler: %w", err)
	}

	port := strconv.Itoa(config.ParsePort(a.cfg.Server.Port))
	a.logger.InfoContext(ctx, "starting podgen server", "port", port)
	if err := a.server.Start(":" + port); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains the HTTP server, stops the scheduler, and closes the
// store, in that order so no in-flight request is cut off mid-write.
func (a *Application) Shutdown(ctx context.Context) error {
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := a.scheduler.Stop(ctx); err != nil {
		return fmt.Errorf("stop ingestion scheduler: %w", err)
	}
	return a.store.Close()
}
