package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/archivecast/podgen/internal/apperr"
	"github.com/archivecast/podgen/internal/domain"
	"github.com/archivecast/podgen/internal/infrastructure/feed"
	"github.com/archivecast/podgen/internal/infrastructure/llm"
	"github.com/archivecast/podgen/internal/ingestion"
	"github.com/archivecast/podgen/internal/keypool"
	"github.com/archivecast/podgen/internal/ports"
	"github.com/archivecast/podgen/internal/source"
	"github.com/archivecast/podgen/internal/workflow"
)

func notFoundErr(id string) error { return apperr.NotFound("workflow %s not found", id) }

// testWriter adapts *testing.T into an io.Writer so slog output surfaces
// under `go test -v` instead of being swallowed.
type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// fakeCatalogStore is a minimal in-memory ports.CatalogStore for routing
// tests; only the behavior each handler test exercises is real.
type fakeCatalogStore struct {
	workflows map[string]domain.Workflow
	speeches  map[string]domain.Speech
	events    []domain.Event
	seq       int
}

func newFakeCatalogStore() *fakeCatalogStore {
	return &fakeCatalogStore{workflows: map[string]domain.Workflow{}, speeches: map[string]domain.Speech{}}
}

func (s *fakeCatalogStore) UpsertSpeeches(ctx context.Context, records []domain.Speech) (int, error) { return 0, nil }
func (s *fakeCatalogStore) SearchSpeeches(ctx context.Context, filter domain.SearchFilter) (domain.SearchResult, error) {
	return domain.SearchResult{Rows: []domain.Speech{}, Total: 0}, nil
}
func (s *fakeCatalogStore) CountSpeeches(ctx context.Context) (int, error) { return len(s.speeches), nil }
func (s *fakeCatalogStore) CreateWorkflow(ctx context.Context, name string, speechIDs []string) (domain.Workflow, error) {
	s.seq++
	wf := domain.Workflow{ID: "wf-" + itoa(s.seq), Name: name, SpeechIDs: speechIDs, Status: domain.WorkflowDraft}
	s.workflows[wf.ID] = wf
	return wf, nil
}
func (s *fakeCatalogStore) GetWorkflow(ctx context.Context, id string) (domain.Workflow, error) {
	wf, ok := s.workflows[id]
	if !ok {
		return domain.Workflow{}, notFoundErr(id)
	}
	return wf, nil
}
func (s *fakeCatalogStore) UpdateWorkflow(ctx context.Context, id string, update domain.WorkflowUpdate) (domain.Workflow, error) {
	wf, ok := s.workflows[id]
	if !ok {
		return domain.Workflow{}, notFoundErr(id)
	}
	if update.Status != nil {
		wf.Status = *update.Status
	}
	s.workflows[id] = wf
	return wf, nil
}
func (s *fakeCatalogStore) ResolveSpeeches(ctx context.Context, ids []string) ([]domain.Speech, error) {
	out := make([]domain.Speech, 0, len(ids))
	for _, id := range ids {
		if sp, ok := s.speeches[id]; ok {
			out = append(out, sp)
		}
	}
	return out, nil
}
func (s *fakeCatalogStore) CuratedModelsBy(ctx context.Context, category domain.ModelCategory) ([]domain.CuratedModel, error) {
	return nil, nil
}
func (s *fakeCatalogStore) UpsertCuratedModels(ctx context.Context, models []domain.CuratedModel) error { return nil }
func (s *fakeCatalogStore) RecordModelUsage(ctx context.Context, modelID string, at time.Time, elapsed time.Duration, ok bool) error {
	return nil
}
func (s *fakeCatalogStore) CacheKeyValidation(ctx context.Context, result domain.KeyValidation) error { return nil }
func (s *fakeCatalogStore) LookupKeyValidation(ctx context.Context, keyHash string) (*domain.KeyValidation, error) {
	return nil, nil
}
func (s *fakeCatalogStore) AppendEvent(ctx context.Context, event domain.Event) error {
	s.events = append(s.events, event)
	return nil
}
func (s *fakeCatalogStore) AppendFeedback(ctx context.Context, feedback domain.FeedbackRecord) error { return nil }
func (s *fakeCatalogStore) CountEventsByType(ctx context.Context, since time.Time) (map[string]int, error) {
	return nil, nil
}

type fakeValidator struct {
	result domain.KeyValidation
}

func (f *fakeValidator) Validate(ctx context.Context, apiKey string) (domain.KeyValidation, error) {
	return f.result, nil
}

type fakeProvider struct{}

func (fakeProvider) Chat(ctx context.Context, req ports.ChatRequest) (ports.ChatResponse, error) {
	return ports.ChatResponse{Content: "ok"}, nil
}

func newTestServer(t *testing.T, store *fakeCatalogStore) *Server {
	t.Helper()
	pool := keypool.New()
	orchestrator := llm.NewOrchestrator(fakeProvider{}, pool)
	wf := workflow.New(store, orchestrator, nil, feed.New(), t.TempDir())
	ingest := ingestion.New(source.NewRegistry(), store)

	return New(Config{
		Store:        store,
		Ingestion:    ingest,
		Pool:         pool,
		Validator:    &fakeValidator{},
		Orchestrator: orchestrator,
		Workflow:     wf,
		Logger:       slog.New(slog.NewTextHandler(testWriter{t}, nil)),
	})
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, newFakeCatalogStore())

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Database != "ok" {
		t.Fatalf("expected database ok, got %q", body.Database)
	}
}

func TestCreateWorkflowRejectsEmptySpeechIDs(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, newFakeCatalogStore())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/workflow", strings.NewReader(`{"name":"ep1","speechIds":[]}`))
	req.Header.Set("Content-Type", "application/json")
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	var body errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "input_error" {
		t.Fatalf("expected input_error envelope, got %q", body.Error)
	}
}

func TestCreateAndFetchWorkflow(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, newFakeCatalogStore())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/workflow", strings.NewReader(`{"name":"ep1","speechIds":["s1"]}`))
	req.Header.Set("Content-Type", "application/json")
	s.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created workflowResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec2 := httptest.NewRecorder()
	s.echo.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/api/workflow/"+created.ID, nil))
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec2.Code, rec2.Body.String())
	}
}

func TestGetWorkflowNotFoundMapsTo404(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, newFakeCatalogStore())

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workflow/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminRouteRequiresTokenWhenConfigured(t *testing.T) {
	t.Parallel()
	store := newFakeCatalogStore()
	pool := keypool.New()
	orchestrator := llm.NewOrchestrator(fakeProvider{}, pool)
	wf := workflow.New(store, orchestrator, nil, feed.New(), t.TempDir())
	s := New(Config{
		Store: store, Ingestion: ingestion.New(source.NewRegistry(), store), Pool: pool,
		Validator: &fakeValidator{}, Orchestrator: orchestrator, Workflow: wf,
		Logger: slog.New(slog.NewTextHandler(testWriter{t}, nil)), AdminToken: "secret",
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/refresh-models", nil)
	s.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/api/refresh-models", nil)
	req2.Header.Set("X-Admin-Token", "secret")
	s.echo.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with valid token, got %d: %s", rec2.Code, rec2.Body.String())
	}
}

func TestKeyPoolStatusNeverLeaksRawKey(t *testing.T) {
	t.Parallel()
	store := newFakeCatalogStore()
	s := newTestServer(t, store)
	s.pool.Add("sk-or-v1-abcdefghijklmnop", 5)

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/key-pool-status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "sk-or-v1-abcdefghijklmnop") {
		t.Fatalf("expected raw key to never appear in response: %s", rec.Body.String())
	}
}

func itoa(n int) string { return strconv.Itoa(n) }
