package storage

import (
	"context"
	"testing"
	"time"

	"github.com/archivecast/podgen/internal/apperr"
	"github.com/archivecast/podgen/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestUpsertSpeechesInsertsThenUpdates(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	date := "2025-11-08"
	speech := domain.Speech{ID: "archive_1", Title: "Original Title", Date: &date, Source: "archive", Status: domain.SpeechActive}

	inserted, err := store.UpsertSpeeches(ctx, []domain.Speech{speech})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("expected 1 inserted, got %d", inserted)
	}

	speech.Title = "Updated Title"
	inserted, err = store.UpsertSpeeches(ctx, []domain.Speech{speech})
	if err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("expected 0 newly inserted on update, got %d", inserted)
	}

	result, err := store.SearchSpeeches(ctx, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 1 || result.Rows[0].Title != "Updated Title" {
		t.Fatalf("unexpected search result: %+v", result)
	}
}

func TestSearchSpeechesKeywordAndDateRange(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	dateA, dateB := "2025-01-01", "2025-06-01"
	_, err := store.UpsertSpeeches(ctx, []domain.Speech{
		{ID: "a", Title: "Rally in Phoenix", Date: &dateA, Source: "archive", Status: domain.SpeechActive},
		{ID: "b", Title: "Town Hall", Date: &dateB, Source: "archive", Status: domain.SpeechActive},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	result, err := store.SearchSpeeches(ctx, domain.SearchFilter{Keyword: "rally"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 1 || result.Rows[0].ID != "a" {
		t.Fatalf("unexpected keyword search result: %+v", result)
	}

	result, err = store.SearchSpeeches(ctx, domain.SearchFilter{StartDate: "2025-03-01"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 1 || result.Rows[0].ID != "b" {
		t.Fatalf("unexpected date range search result: %+v", result)
	}
}

func TestWorkflowLifecycle(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	w, err := store.CreateWorkflow(ctx, "Episode 1", []string{"archive_1"})
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	if w.Status != domain.WorkflowDraft {
		t.Fatalf("expected draft status, got %s", w.Status)
	}

	script := "Generated script text"
	status := domain.WorkflowScriptGenerated
	updated, err := store.UpdateWorkflow(ctx, w.ID, domain.WorkflowUpdate{Script: &script, Status: &status})
	if err != nil {
		t.Fatalf("update workflow: %v", err)
	}
	if updated.Script == nil || *updated.Script != script {
		t.Fatalf("expected script set, got %+v", updated)
	}
	if updated.Status != domain.WorkflowScriptGenerated {
		t.Fatalf("expected script_generated status, got %s", updated.Status)
	}

	fetched, err := store.GetWorkflow(ctx, w.ID)
	if err != nil {
		t.Fatalf("get workflow: %v", err)
	}
	if len(fetched.SpeechIDs) != 1 || fetched.SpeechIDs[0] != "archive_1" {
		t.Fatalf("unexpected speech ids: %+v", fetched.SpeechIDs)
	}
}

func TestGetWorkflowNotFound(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	_, err := store.GetWorkflow(context.Background(), "missing")
	appErr, ok := apperr.As(err)
	if !ok || appErr.Code != apperr.CodeNotFound {
		t.Fatalf("expected NotFound apperr, got %v", err)
	}
}

func TestKeyValidationCacheRoundTrip(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	kv := domain.KeyValidation{KeyHash: "hash123", IsValid: true, ModelCount: 42, ValidatedAt: now, ExpiresAt: now.Add(domain.ValidationTTL)}
	if err := store.CacheKeyValidation(ctx, kv); err != nil {
		t.Fatalf("cache key validation: %v", err)
	}

	got, err := store.LookupKeyValidation(ctx, "hash123")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got == nil || !got.IsValid || got.ModelCount != 42 {
		t.Fatalf("unexpected lookup result: %+v", got)
	}

	miss, err := store.LookupKeyValidation(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("lookup miss: %v", err)
	}
	if miss != nil {
		t.Fatalf("expected nil for missing hash, got %+v", miss)
	}
}

func TestCuratedModelUsageRecording(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	models := domain.DefaultCuratedModels()
	if err := store.UpsertCuratedModels(ctx, models); err != nil {
		t.Fatalf("seed models: %v", err)
	}

	err := store.RecordModelUsage(ctx, models[0].ID, time.Now().UTC(), 500*time.Millisecond, true)
	if err != nil {
		t.Fatalf("record usage: %v", err)
	}

	top, err := store.CuratedModelsBy(ctx, domain.CategoryTopOverall)
	if err != nil {
		t.Fatalf("list top overall: %v", err)
	}
	var found bool
	for _, m := range top {
		if m.ID == models[0].ID {
			found = true
			if m.UsageCount != 1 {
				t.Fatalf("expected usage count 1, got %d", m.UsageCount)
			}
		}
	}
	if !found {
		t.Fatalf("expected to find model %s", models[0].ID)
	}
}

func TestCountEventsByType(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	since := time.Now().UTC().Add(-time.Hour)
	if err := store.AppendEvent(ctx, domain.Event{EventType: "search", Data: map[string]any{"q": "rally"}}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if err := store.AppendEvent(ctx, domain.Event{EventType: "search"}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if err := store.AppendEvent(ctx, domain.Event{EventType: "workflow_created"}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	counts, err := store.CountEventsByType(ctx, since)
	if err != nil {
		t.Fatalf("count events: %v", err)
	}
	if counts["search"] != 2 || counts["workflow_created"] != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}
