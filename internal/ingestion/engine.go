// Package ingestion implements the Ingestion Engine (§4.3): a threshold-gated
// refresh that verifies and fetches from every registered source adapter,
// isolates per-source failures, and upserts the union into the Catalog
// Store. Grounded on the teacher's
// internal/infrastructure/parser/strategy_source.go (StrategySource.FetchDaily
// loop), generalized from sequential to bounded-concurrent fan-out via
// golang.org/x/sync/errgroup (as Mimic890-hyprbot and hrom512-rss_bot do for
// their own per-feed/per-channel fan-out).
package ingestion

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/archivecast/podgen/internal/domain"
	"github.com/archivecast/podgen/internal/ports"
	"github.com/archivecast/podgen/internal/source"
)

// PopulateThreshold is the speech count above which populateArchive is a
// no-op (§4.3: "default 10").
const PopulateThreshold = 10

// VerifyResults maps source name to its verify() outcome.
type VerifyResults map[string]ports.VerifyResult

// FetchOutcome is the result of fetchFromAllSources: the union of every
// adapter's records plus any per-source errors, isolated so one adapter's
// failure never drops another's results.
type FetchOutcome struct {
	Records []domain.Speech
	Errors  map[string]error
}

// PopulateResult is populateArchive's return contract (§6.1:
// `{existing, inserted, total, errors[]}`).
type PopulateResult struct {
	Existing int
	Inserted int
	Total    int
	Errors   []string
	Skipped  bool
}

// Engine drives ingestion refresh cycles over a registry of source adapters.
type Engine struct {
	registry *source.Registry
	store    ports.CatalogStore
}

// New wires an ingestion engine.
func New(registry *source.Registry, store ports.CatalogStore) *Engine {
	return &Engine{registry: registry, store: store}
}

// VerifyAllSources probes every registered adapter concurrently.
func (e *Engine) VerifyAllSources(ctx context.Context) VerifyResults {
	adapters := e.registry.All()
	results := make(VerifyResults, len(adapters))

	type outcome struct {
		name   string
		result ports.VerifyResult
	}
	ch := make(chan outcome, len(adapters))

	var g errgroup.Group
	for _, a := range adapters {
		a := a
		g.Go(func() error {
			ch <- outcome{name: a.Name(), result: a.Verify(ctx)}
			return nil
		})
	}
	_ = g.Wait()
	close(ch)

	for o := range ch {
		results[o.name] = o.result
	}
	return results
}

// FetchFromAllSources fans out fetch(limit) across every registered adapter
// with bounded concurrency; ordering across adapters is not observable.
// Per-source errors are collected, never propagated, so one adapter's
// failure can't suppress another's results (§4.3).
func (e *Engine) FetchFromAllSources(ctx context.Context, limit int) FetchOutcome {
	adapters := e.registry.All()

	type outcome struct {
		name    string
		records []domain.Speech
		err     error
	}
	ch := make(chan outcome, len(adapters))

	var g errgroup.Group
	g.SetLimit(4)
	for _, a := range adapters {
		a := a
		g.Go(func() error {
			records, err := a.Fetch(ctx, limit)
			ch <- outcome{name: a.Name(), records: records, err: err}
			return nil
		})
	}
	_ = g.Wait()
	close(ch)

	result := FetchOutcome{Errors: map[string]error{}}
	for o := range ch {
		if o.err != nil {
			result.Errors[o.name] = o.err
			continue
		}
		result.Records = append(result.Records, o.records...)
	}
	return result
}

// PopulateArchive is the startup/refresh entry point: it skips work if the
// store already holds more than PopulateThreshold speeches, otherwise
// verifies then fetches from every source and upserts the union (§4.3).
func (e *Engine) PopulateArchive(ctx context.Context, limit int) (PopulateResult, error) {
	existing, err := e.store.CountSpeeches(ctx)
	if err != nil {
		return PopulateResult{}, fmt.Errorf("count existing speeches: %w", err)
	}
	if existing > PopulateThreshold {
		return PopulateResult{Existing: existing, Total: existing, Skipped: true}, nil
	}

	e.VerifyAllSources(ctx)
	fetchResult := e.FetchFromAllSources(ctx, limit)

	inserted, err := e.store.UpsertSpeeches(ctx, fetchResult.Records)
	if err != nil {
		return PopulateResult{}, fmt.Errorf("upsert fetched speeches: %w", err)
	}

	total, err := e.store.CountSpeeches(ctx)
	if err != nil {
		return PopulateResult{}, fmt.Errorf("count speeches after upsert: %w", err)
	}

	errs := make([]string, 0, len(fetchResult.Errors))
	for name, err := range fetchResult.Errors {
		errs = append(errs, fmt.Sprintf("%s: %v", name, err))
	}

	return PopulateResult{Existing: existing, Inserted: inserted, Total: total, Errors: errs}, nil
}
