package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/archivecast/podgen/internal/apperr"
	"github.com/archivecast/podgen/internal/domain"
	"github.com/archivecast/podgen/internal/infrastructure/feed"
	"github.com/archivecast/podgen/internal/infrastructure/llm"
	"github.com/archivecast/podgen/internal/ports"
)

type fakeStore struct {
	workflows map[string]domain.Workflow
	speeches  map[string]domain.Speech
	seq       int
}

func newFakeStore(speeches ...domain.Speech) *fakeStore {
	s := &fakeStore{workflows: map[string]domain.Workflow{}, speeches: map[string]domain.Speech{}}
	for _, sp := range speeches {
		s.speeches[sp.ID] = sp
	}
	return s
}

func (s *fakeStore) UpsertSpeeches(ctx context.Context, records []domain.Speech) (int, error) {
	return 0, nil
}
func (s *fakeStore) SearchSpeeches(ctx context.Context, filter domain.SearchFilter) (domain.SearchResult, error) {
	return domain.SearchResult{}, nil
}
func (s *fakeStore) CountSpeeches(ctx context.Context) (int, error) { return 0, nil }

func (s *fakeStore) CreateWorkflow(ctx context.Context, name string, speechIDs []string) (domain.Workflow, error) {
	s.seq++
	id := "wf-" + string(rune('0'+s.seq))
	wf := domain.Workflow{ID: id, Name: name, SpeechIDs: speechIDs, Status: domain.WorkflowDraft, CreatedAt: time.Unix(0, 0), UpdatedAt: time.Unix(0, 0)}
	s.workflows[id] = wf
	return wf, nil
}

func (s *fakeStore) GetWorkflow(ctx context.Context, id string) (domain.Workflow, error) {
	wf, ok := s.workflows[id]
	if !ok {
		return domain.Workflow{}, apperr.NotFound("workflow %s not found", id)
	}
	return wf, nil
}

func (s *fakeStore) UpdateWorkflow(ctx context.Context, id string, update domain.WorkflowUpdate) (domain.Workflow, error) {
	wf, ok := s.workflows[id]
	if !ok {
		return domain.Workflow{}, apperr.NotFound("workflow %s not found", id)
	}
	if update.Script != nil {
		wf.Script = update.Script
	}
	if update.AudioURL != nil {
		wf.AudioURL = update.AudioURL
	}
	if update.RSSURL != nil {
		wf.RSSURL = update.RSSURL
	}
	if update.Status != nil {
		wf.Status = *update.Status
	}
	s.workflows[id] = wf
	return wf, nil
}

func (s *fakeStore) ResolveSpeeches(ctx context.Context, ids []string) ([]domain.Speech, error) {
	out := make([]domain.Speech, 0, len(ids))
	for _, id := range ids {
		if sp, ok := s.speeches[id]; ok {
			out = append(out, sp)
		}
	}
	return out, nil
}

func (s *fakeStore) CuratedModelsBy(ctx context.Context, category domain.ModelCategory) ([]domain.CuratedModel, error) {
	return nil, nil
}
func (s *fakeStore) UpsertCuratedModels(ctx context.Context, models []domain.CuratedModel) error {
	return nil
}
func (s *fakeStore) RecordModelUsage(ctx context.Context, modelID string, at time.Time, elapsed time.Duration, ok bool) error {
	return nil
}
func (s *fakeStore) CacheKeyValidation(ctx context.Context, result domain.KeyValidation) error {
	return nil
}
func (s *fakeStore) LookupKeyValidation(ctx context.Context, keyHash string) (*domain.KeyValidation, error) {
	return nil, nil
}
func (s *fakeStore) AppendEvent(ctx context.Context, event domain.Event) error { return nil }
func (s *fakeStore) AppendFeedback(ctx context.Context, feedback domain.FeedbackRecord) error {
	return nil
}
func (s *fakeStore) CountEventsByType(ctx context.Context, since time.Time) (map[string]int, error) {
	return nil, nil
}

type fakeProvider struct{}

func (fakeProvider) Chat(ctx context.Context, req ports.ChatRequest) (ports.ChatResponse, error) {
	return ports.ChatResponse{Content: "generated script"}, nil
}

type emptyPool struct{}

func (emptyPool) Add(key string, priority int)                                 {}
func (emptyPool) Next() (string, bool)                                         { return "", false }
func (emptyPool) MarkSuccess(key string)                                       {}
func (emptyPool) MarkRateLimited(key string, cooldown time.Duration)           {}
func (emptyPool) MarkError(key string, code domain.KeyErrorCode)               {}
func (emptyPool) Stats() []domain.PoolKeyStats                                 { return nil }
func (emptyPool) Len() int                                                     { return 0 }

type fakeTTSWorker struct {
	fail bool
}

func (f *fakeTTSWorker) Synthesize(ctx context.Context, req ports.TTSRequest) (ports.TTSResult, error) {
	if f.fail {
		return ports.TTSResult{}, errors.New("tts backend unavailable")
	}
	return ports.TTSResult{Success: true, OutputFile: req.OutputDir + "/" + req.OutputFile}, nil
}

func newTestEngine(t *testing.T, store *fakeStore, tts ports.TTSWorker) *Engine {
	t.Helper()
	orch := llm.NewOrchestrator(fakeProvider{}, emptyPool{})
	return New(store, orch, tts, feed.New(), t.TempDir())
}

func TestCreateWorkflowRejectsEmptySpeechIDs(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	e := newTestEngine(t, store, &fakeTTSWorker{})

	_, err := e.CreateWorkflow(context.Background(), "W1", nil)
	if err == nil {
		t.Fatalf("expected error for empty speech ids")
	}
	appErr, ok := apperr.As(err)
	if !ok || appErr.Code != apperr.CodeInput {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestGenerateScriptAdvancesStatus(t *testing.T) {
	t.Parallel()
	store := newFakeStore(domain.Speech{ID: "archive_a", Title: "Speech A"})
	e := newTestEngine(t, store, &fakeTTSWorker{})

	wf, err := e.CreateWorkflow(context.Background(), "W1", []string{"archive_a"})
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}

	outcome, err := e.GenerateScript(context.Background(), wf.ID, ScriptGenerationParams{Model: "x/y", EnvAPIKey: "env-key"})
	if err != nil {
		t.Fatalf("generate script: %v", err)
	}
	if outcome.Script == "" {
		t.Fatalf("expected non-empty script")
	}

	updated, err := store.GetWorkflow(context.Background(), wf.ID)
	if err != nil {
		t.Fatalf("get workflow: %v", err)
	}
	if updated.Status != domain.WorkflowScriptGenerated {
		t.Fatalf("expected script_generated, got %s", updated.Status)
	}
}

func TestUploadScriptRejectsOversizedText(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	e := newTestEngine(t, store, &fakeTTSWorker{})
	wf, _ := e.CreateWorkflow(context.Background(), "W1", []string{"archive_a"})

	oversized := strings.Repeat("a", MaxScriptLength+1)
	err := e.UploadScript(context.Background(), wf.ID, oversized)
	if err == nil {
		t.Fatalf("expected oversized script to be rejected")
	}
}

func TestGenerateAudioFallsBackOnWorkerFailure(t *testing.T) {
	t.Parallel()
	store := newFakeStore(domain.Speech{ID: "archive_a"})
	e := newTestEngine(t, store, &fakeTTSWorker{fail: true})

	wf, _ := e.CreateWorkflow(context.Background(), "W1", []string{"archive_a"})
	script := "hello world"
	if err := e.UploadScript(context.Background(), wf.ID, script); err != nil {
		t.Fatalf("upload script: %v", err)
	}

	outcome, err := e.GenerateAudio(context.Background(), wf.ID, AudioGenerationParams{Voice: "v1"})
	if err != nil {
		t.Fatalf("generate audio: %v", err)
	}
	if !outcome.FellBack {
		t.Fatalf("expected fallback flag to be set")
	}
	if outcome.AudioURL == "" {
		t.Fatalf("expected a fallback audio path")
	}

	updated, err := store.GetWorkflow(context.Background(), wf.ID)
	if err != nil {
		t.Fatalf("get workflow: %v", err)
	}
	if updated.Status != domain.WorkflowAudioGenerated {
		t.Fatalf("expected audio_generated even on tts failure, got %s", updated.Status)
	}
}

func TestFinalizeRequiresScriptAndAudio(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	e := newTestEngine(t, store, &fakeTTSWorker{})
	wf, _ := e.CreateWorkflow(context.Background(), "W1", []string{"archive_a"})

	_, err := e.Finalize(context.Background(), wf.ID, FinalizeParams{LocalBundle: true})
	if err == nil {
		t.Fatalf("expected error when script/audio missing")
	}
}

func TestFinalizeProducesLocalBundle(t *testing.T) {
	t.Parallel()
	store := newFakeStore(domain.Speech{ID: "archive_a"})
	e := newTestEngine(t, store, &fakeTTSWorker{})
	wf, _ := e.CreateWorkflow(context.Background(), "W1", []string{"archive_a"})

	if err := e.UploadScript(context.Background(), wf.ID, "hello world"); err != nil {
		t.Fatalf("upload script: %v", err)
	}
	if _, err := e.GenerateAudio(context.Background(), wf.ID, AudioGenerationParams{Voice: "v1"}); err != nil {
		t.Fatalf("generate audio: %v", err)
	}

	outcome, err := e.Finalize(context.Background(), wf.ID, FinalizeParams{Title: "T", Description: "D", LocalBundle: true})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if outcome.BundlePath == "" {
		t.Fatalf("expected a bundle path")
	}

	updated, err := store.GetWorkflow(context.Background(), wf.ID)
	if err != nil {
		t.Fatalf("get workflow: %v", err)
	}
	if updated.Status != domain.WorkflowFinalized {
		t.Fatalf("expected finalized, got %s", updated.Status)
	}
}

func TestNormalizeForTTS(t *testing.T) {
	t.Parallel()
	input := "HOST: Welcome [1:05] to the show. [pause] NARRATOR: More  content   here."
	got := NormalizeForTTS(input)
	if strings.Contains(got, "[1:05]") || strings.Contains(got, "[pause]") {
		t.Fatalf("expected brackets stripped, got %q", got)
	}
	if strings.Contains(got, "HOST:") || strings.Contains(got, "NARRATOR:") {
		t.Fatalf("expected speaker cues stripped, got %q", got)
	}
	if strings.Contains(got, "  ") {
		t.Fatalf("expected whitespace collapsed, got %q", got)
	}
}

func TestNormalizeForTTSTruncates(t *testing.T) {
	t.Parallel()
	got := NormalizeForTTS(strings.Repeat("a", TTSMaxTextLength+500))
	if len(got) != TTSMaxTextLength {
		t.Fatalf("expected truncation to %d chars, got %d", TTSMaxTextLength, len(got))
	}
}
