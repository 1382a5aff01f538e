// Package ports declares the narrow interfaces each CORE component depends
// on, so components are constructed with explicit dependency objects and
// tests can substitute isolated fakes (spec §9: "process-wide mutable
// singletons ... -> explicit dependency objects constructed at startup").
package ports

import (
	"context"
	"time"

	"github.com/archivecast/podgen/internal/domain"
)

// SourceAdapter is the capability set a provider-specific crawler
// implements (§4.2): verify availability, then fetch normalized records.
type SourceAdapter interface {
	Name() string
	Verify(ctx context.Context) VerifyResult
	Fetch(ctx context.Context, limit int) ([]domain.Speech, error)
}

// VerifyResult is the outcome of a source's availability probe.
type VerifyResult struct {
	Available bool
	Status    int
	Error     string
	Method    string
}

// CatalogStore is the durable, indexed store of every persistent record
// (§4.1).
type CatalogStore interface {
	UpsertSpeeches(ctx context.Context, records []domain.Speech) (int, error)
	SearchSpeeches(ctx context.Context, filter domain.SearchFilter) (domain.SearchResult, error)
	CountSpeeches(ctx context.Context) (int, error)

	CreateWorkflow(ctx context.Context, name string, speechIDs []string) (domain.Workflow, error)
	GetWorkflow(ctx context.Context, id string) (domain.Workflow, error)
	UpdateWorkflow(ctx context.Context, id string, update domain.WorkflowUpdate) (domain.Workflow, error)
	ResolveSpeeches(ctx context.Context, ids []string) ([]domain.Speech, error)

	CuratedModelsBy(ctx context.Context, category domain.ModelCategory) ([]domain.CuratedModel, error)
	UpsertCuratedModels(ctx context.Context, models []domain.CuratedModel) error
	RecordModelUsage(ctx context.Context, modelID string, at time.Time, elapsed time.Duration, ok bool) error

	CacheKeyValidation(ctx context.Context, result domain.KeyValidation) error
	LookupKeyValidation(ctx context.Context, keyHash string) (*domain.KeyValidation, error)

	AppendEvent(ctx context.Context, event domain.Event) error
	AppendFeedback(ctx context.Context, feedback domain.FeedbackRecord) error
	CountEventsByType(ctx context.Context, since time.Time) (map[string]int, error)
}

// KeyPool is the priority-weighted round robin over validated LLM keys
// (§4.4). Only this component mutates key state.
type KeyPool interface {
	Add(key string, priority int)
	Next() (string, bool)
	MarkSuccess(key string)
	MarkRateLimited(key string, cooldown time.Duration)
	MarkError(key string, code domain.KeyErrorCode)
	Stats() []domain.PoolKeyStats
	Len() int
}

// KeyValidator validates a candidate provider key (§4.5).
type KeyValidator interface {
	Validate(ctx context.Context, apiKey string) (domain.KeyValidation, error)
}

// LLMProvider issues a single chat completion call to an upstream LLM.
type LLMProvider interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// ChatRequest is a provider-agnostic chat completion request.
type ChatRequest struct {
	APIKey      string
	Model       string
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
}

// ChatMessage is one role/content turn.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatResponse is the provider-agnostic response; only the top choice's
// message content is contractually defined (§4.6).
type ChatResponse struct {
	Content    string
	ModelCount int // populated only by validation probes
}

// TTSWorker invokes the external subprocess-based speech synthesizer
// (§6.4).
type TTSWorker interface {
	Synthesize(ctx context.Context, req TTSRequest) (TTSResult, error)
}

// TTSRequest carries the subprocess CLI arguments for a generation call.
type TTSRequest struct {
	Text            string
	Voice           string
	Preset          string
	OutputFile      string
	OutputDir       string
	CustomVoicePath string
}

// TTSResult is the subprocess's tolerant JSON result (§6.4: "tolerate
// arbitrary JSON shape beyond those fields").
type TTSResult struct {
	Success    bool
	OutputFile string
	Duration   float64
	Raw        map[string]any
}

// FeedWriter renders RSS XML (§4.8). Bundle folders are written by
// feed.WriteBundle, not through this interface.
type FeedWriter interface {
	RenderRSS(item FeedItem, relative bool) ([]byte, error)
}

// FeedItem is the pure input to RSS rendering.
type FeedItem struct {
	Title       string
	Description string
	AudioPath   string // relative path (bundle) or absolute URL
	GUIDSeed    string
	Local       bool // true => audio/wav local bundle, false => audio/mpeg hosted
}

// BackgroundJob is the Start/Stop shape shared by the ingestion scheduler,
// grounded on the teacher's ports.Scheduler.
type BackgroundJob interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
