package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/archivecast/podgen/internal/domain"
	"github.com/archivecast/podgen/internal/ports"
	"github.com/archivecast/podgen/internal/source"
)

type fakeAdapter struct {
	name     string
	verify   ports.VerifyResult
	records  []domain.Speech
	fetchErr error
}

func (a *fakeAdapter) Name() string { return a.name }
func (a *fakeAdapter) Verify(ctx context.Context) ports.VerifyResult { return a.verify }
func (a *fakeAdapter) Fetch(ctx context.Context, limit int) ([]domain.Speech, error) {
	if a.fetchErr != nil {
		return nil, a.fetchErr
	}
	return a.records, nil
}

type fakeCatalogStore struct {
	speeches map[string]domain.Speech
}

func newFakeCatalogStore() *fakeCatalogStore {
	return &fakeCatalogStore{speeches: map[string]domain.Speech{}}
}

func (s *fakeCatalogStore) UpsertSpeeches(ctx context.Context, records []domain.Speech) (int, error) {
	inserted := 0
	for _, r := range records {
		if _, ok := s.speeches[r.ID]; !ok {
			inserted++
		}
		s.speeches[r.ID] = r
	}
	return inserted, nil
}
func (s *fakeCatalogStore) SearchSpeeches(ctx context.Context, filter domain.SearchFilter) (domain.SearchResult, error) {
	return domain.SearchResult{}, nil
}
func (s *fakeCatalogStore) CountSpeeches(ctx context.Context) (int, error) { return len(s.speeches), nil }
func (s *fakeCatalogStore) CreateWorkflow(ctx context.Context, name string, speechIDs []string) (domain.Workflow, error) {
	return domain.Workflow{}, nil
}
func (s *fakeCatalogStore) GetWorkflow(ctx context.Context, id string) (domain.Workflow, error) {
	return domain.Workflow{}, nil
}
func (s *fakeCatalogStore) UpdateWorkflow(ctx context.Context, id string, update domain.WorkflowUpdate) (domain.Workflow, error) {
	return domain.Workflow{}, nil
}
func (s *fakeCatalogStore) ResolveSpeeches(ctx context.Context, ids []string) ([]domain.Speech, error) {
	return nil, nil
}
func (s *fakeCatalogStore) CuratedModelsBy(ctx context.Context, category domain.ModelCategory) ([]domain.CuratedModel, error) {
	return nil, nil
}
func (s *fakeCatalogStore) UpsertCuratedModels(ctx context.Context, models []domain.CuratedModel) error {
	return nil
}
func (s *fakeCatalogStore) RecordModelUsage(ctx context.Context, modelID string, at time.Time, elapsed time.Duration, ok bool) error {
	return nil
}
func (s *fakeCatalogStore) CacheKeyValidation(ctx context.Context, result domain.KeyValidation) error {
	return nil
}
func (s *fakeCatalogStore) LookupKeyValidation(ctx context.Context, keyHash string) (*domain.KeyValidation, error) {
	return nil, nil
}
func (s *fakeCatalogStore) AppendEvent(ctx context.Context, event domain.Event) error { return nil }
func (s *fakeCatalogStore) AppendFeedback(ctx context.Context, feedback domain.FeedbackRecord) error {
	return nil
}
func (s *fakeCatalogStore) CountEventsByType(ctx context.Context, since time.Time) (map[string]int, error) {
	return nil, nil
}

func TestFetchFromAllSourcesIsolatesPerSourceErrors(t *testing.T) {
	t.Parallel()
	reg := source.NewRegistry()
	reg.Register(&fakeAdapter{name: "good", records: []domain.Speech{{ID: "good_1", Title: "A"}}})
	reg.Register(&fakeAdapter{name: "bad", fetchErr: errors.New("boom")})

	e := New(reg, newFakeCatalogStore())
	outcome := e.FetchFromAllSources(context.Background(), 10)

	if len(outcome.Records) != 1 {
		t.Fatalf("expected 1 record from the good source, got %d", len(outcome.Records))
	}
	if err, ok := outcome.Errors["bad"]; !ok || err == nil {
		t.Fatalf("expected bad source error to be isolated, got %v", outcome.Errors)
	}
}

func TestPopulateArchiveSkipsAboveThreshold(t *testing.T) {
	t.Parallel()
	store := newFakeCatalogStore()
	for i := 0; i < PopulateThreshold+1; i++ {
		store.speeches[string(rune('a'+i))] = domain.Speech{ID: string(rune('a' + i))}
	}

	reg := source.NewRegistry()
	reg.Register(&fakeAdapter{name: "src"})
	e := New(reg, store)

	result, err := e.PopulateArchive(context.Background(), 10)
	if err != nil {
		t.Fatalf("populate archive: %v", err)
	}
	if !result.Skipped {
		t.Fatalf("expected populate to be skipped above threshold")
	}
}

func TestPopulateArchiveFetchesBelowThreshold(t *testing.T) {
	t.Parallel()
	store := newFakeCatalogStore()
	reg := source.NewRegistry()
	reg.Register(&fakeAdapter{name: "src", records: []domain.Speech{{ID: "src_1", Title: "A"}, {ID: "src_2", Title: "B"}}})
	e := New(reg, store)

	result, err := e.PopulateArchive(context.Background(), 10)
	if err != nil {
		t.Fatalf("populate archive: %v", err)
	}
	if result.Skipped {
		t.Fatalf("expected populate to run below threshold")
	}
	if result.Inserted != 2 || result.Total != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestVerifyAllSourcesCollectsEveryAdapter(t *testing.T) {
	t.Parallel()
	reg := source.NewRegistry()
	reg.Register(&fakeAdapter{name: "a", verify: ports.VerifyResult{Available: true}})
	reg.Register(&fakeAdapter{name: "b", verify: ports.VerifyResult{Available: false, Error: "down"}})

	e := New(reg, newFakeCatalogStore())
	results := e.VerifyAllSources(context.Background())

	if len(results) != 2 {
		t.Fatalf("expected 2 verify results, got %d", len(results))
	}
	if !results["a"].Available || results["b"].Available {
		t.Fatalf("unexpected verify results: %+v", results)
	}
}
