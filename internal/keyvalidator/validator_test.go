package keyvalidator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/archivecast/podgen/internal/domain"
	"github.com/archivecast/podgen/internal/infrastructure/llm"
)

type fakeStore struct {
	cached map[string]domain.KeyValidation
}

func newFakeStore() *fakeStore { return &fakeStore{cached: map[string]domain.KeyValidation{}} }

func (f *fakeStore) CacheKeyValidation(ctx context.Context, result domain.KeyValidation) error {
	f.cached[result.KeyHash] = result
	return nil
}

func (f *fakeStore) LookupKeyValidation(ctx context.Context, keyHash string) (*domain.KeyValidation, error) {
	if v, ok := f.cached[keyHash]; ok {
		return &v, nil
	}
	return nil, nil
}

// the remaining ports.CatalogStore methods are unused by the validator.
func (f *fakeStore) UpsertSpeeches(ctx context.Context, records []domain.Speech) (int, error) {
	return 0, nil
}
func (f *fakeStore) SearchSpeeches(ctx context.Context, filter domain.SearchFilter) (domain.SearchResult, error) {
	return domain.SearchResult{}, nil
}
func (f *fakeStore) CountSpeeches(ctx context.Context) (int, error) { return 0, nil }
func (f *fakeStore) CreateWorkflow(ctx context.Context, name string, speechIDs []string) (domain.Workflow, error) {
	return domain.Workflow{}, nil
}
func (f *fakeStore) GetWorkflow(ctx context.Context, id string) (domain.Workflow, error) {
	return domain.Workflow{}, nil
}
func (f *fakeStore) UpdateWorkflow(ctx context.Context, id string, update domain.WorkflowUpdate) (domain.Workflow, error) {
	return domain.Workflow{}, nil
}
func (f *fakeStore) ResolveSpeeches(ctx context.Context, ids []string) ([]domain.Speech, error) {
	return nil, nil
}
func (f *fakeStore) CuratedModelsBy(ctx context.Context, category domain.ModelCategory) ([]domain.CuratedModel, error) {
	return nil, nil
}
func (f *fakeStore) UpsertCuratedModels(ctx context.Context, models []domain.CuratedModel) error {
	return nil
}
func (f *fakeStore) RecordModelUsage(ctx context.Context, modelID string, at time.Time, elapsed time.Duration, ok bool) error {
	return nil
}
func (f *fakeStore) AppendEvent(ctx context.Context, event domain.Event) error       { return nil }
func (f *fakeStore) AppendFeedback(ctx context.Context, feedback domain.FeedbackRecord) error {
	return nil
}
func (f *fakeStore) CountEventsByType(ctx context.Context, since time.Time) (map[string]int, error) {
	return nil, nil
}

type fakeProber struct {
	modelCount int
	err        error
}

func (f *fakeProber) ListModels(ctx context.Context, apiKey string) (int, error) {
	return f.modelCount, f.err
}

func TestValidateRejectsBadFormat(t *testing.T) {
	t.Parallel()
	v, err := New(newFakeStore(), &fakeProber{}, 16)
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}

	result, err := v.Validate(context.Background(), "not-a-valid-key")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.IsValid {
		t.Fatalf("expected invalid format to be rejected")
	}
	if result.ErrorCode == nil || *result.ErrorCode != domain.KeyErrValidationFailed {
		t.Fatalf("expected VALIDATION_FAILED, got %v", result.ErrorCode)
	}
}

func TestValidateSuccessCachesVerdict(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	prober := &fakeProber{modelCount: 42}
	v, err := New(store, prober, 16)
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}

	result, err := v.Validate(context.Background(), "sk-or-v1-validkey")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !result.IsValid || result.ModelCount != 42 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(store.cached) != 1 {
		t.Fatalf("expected verdict to be persisted")
	}

	prober.err = errors.New("should not be called again")
	result2, err := v.Validate(context.Background(), "sk-or-v1-validkey")
	if err != nil {
		t.Fatalf("second validate: %v", err)
	}
	if !result2.IsValid {
		t.Fatalf("expected cached hit to still be valid")
	}
}

func TestClassifyProbeErrorMapsStatusCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		want   domain.KeyErrorCode
	}{
		{401, domain.KeyErrInvalid},
		{403, domain.KeyErrInsufficientPerms},
		{429, domain.KeyErrRateLimited},
		{500, domain.KeyErrValidationFailed},
	}
	for _, tc := range cases {
		got := classifyProbeError(&llm.StatusError{StatusCode: tc.status})
		if got != tc.want {
			t.Fatalf("status %d: got %s, want %s", tc.status, got, tc.want)
		}
	}
}
