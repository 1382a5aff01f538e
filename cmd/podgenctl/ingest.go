package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/archivecast/podgen/internal/config"
	"github.com/archivecast/podgen/internal/infrastructure/adapters"
	"github.com/archivecast/podgen/internal/infrastructure/storage"
	"github.com/archivecast/podgen/internal/ingestion"
	"github.com/archivecast/podgen/internal/source"
)

// newIngestCommand runs one populateArchive cycle against every configured
// source adapter, the same operation app.Application's background scheduler
// runs on a timer (§4.3), available here for an on-demand manual trigger.
func newIngestCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion cycle against every configured source",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			dsn := strings.TrimSuffix(cfg.Storage.Root, "/") + "/archive.db"

			store, err := storage.Open(cmd.Context(), dsn)
			if err != nil {
				return fmt.Errorf("open catalog store: %w", err)
			}
			defer store.Close()

			registry := buildIngestRegistry(cfg)
			engine := ingestion.New(registry, store)

			result, err := engine.PopulateArchive(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("populate archive: %w", err)
			}

			if result.Skipped {
				fmt.Printf("skipped: %d speeches already stored (threshold %d)\n", result.Existing, ingestion.PopulateThreshold)
				return nil
			}

			fmt.Printf("existing=%d inserted=%d total=%d\n", result.Existing, result.Inserted, result.Total)
			for _, e := range result.Errors {
				fmt.Printf("source error: %s\n", e)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum records to fetch per source")
	return cmd
}

// buildIngestRegistry mirrors app.buildSourceRegistry: the CLI and the daemon
// build the registry the same way from the same config so a manual `ingest`
// run behaves identically to the background scheduler's cycle.
func buildIngestRegistry(cfg config.Config) *source.Registry {
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
			registry.Register(adapters.NewYouTubeSource(nil, cfg.Ingest.YouTubeAPIKey, splitCSV(sc.Options["queries"])))
		}
	}
	return registry
}

func splitCSV(raw string) []string {
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
