package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/archivecast/podgen/internal/apperr"
	"github.com/archivecast/podgen/internal/domain"
	"github.com/archivecast/podgen/internal/ports"
)

// Strategy names the script-generation plan chosen for a request (§4.6).
type Strategy string

const (
	StrategySingle  Strategy = "single"
	StrategyBatched Strategy = "batched"
	StrategySwarm   Strategy = "swarm"
)

// DefaultBatchSize is applied when the caller doesn't specify one.
const DefaultBatchSize = 10

const excerptLength = 500

// GenerateRequest is the Workflow Engine's input to a script-generation call.
type GenerateRequest struct {
	Speeches        []domain.Speech
	Model           string
	Style           string
	DurationMinutes int
	BatchSize       int
	UseSwarm        bool

	// Key selection, by precedence: ClientAPIKey -> pool (if UsePool and
	// non-empty) -> EnvAPIKey.
	ClientAPIKey string
	UsePool      bool
	EnvAPIKey    string
}

// GenerateResult is the outcome of a script-generation call.
type GenerateResult struct {
	Script         string
	Strategy       Strategy
	BatchProcessed bool
}

// Orchestrator selects and executes a Single/Batched/Swarm script-generation
// strategy over an API-key pool (§4.6).
type Orchestrator struct {
	provider ports.LLMProvider
	pool     ports.KeyPool
}

// NewOrchestrator wires an orchestrator over a chat provider and key pool.
func NewOrchestrator(provider ports.LLMProvider, pool ports.KeyPool) *Orchestrator {
	return &Orchestrator{provider: provider, pool: pool}
}

// GenerateScript runs the strategy selected by speech count and the swarm
// flag, returning the assembled script.
func (o *Orchestrator) GenerateScript(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	if len(req.Speeches) == 0 {
		return GenerateResult{}, apperr.Input("generate script requires at least one resolvable speech")
	}
	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	switch {
	case req.UseSwarm && len(req.Speeches) >= 3:
		return o.runSwarm(ctx, req, batchSize)
	case len(req.Speeches) > batchSize:
		return o.runBatched(ctx, req, batchSize)
	default:
		script, err := o.runSingle(ctx, req, req.Speeches)
		if err != nil {
			return GenerateResult{}, err
		}
		return GenerateResult{Script: script, Strategy: StrategySingle}, nil
	}
}

// runSingle assembles one prompt embedding title/date/location/excerpt per
// speech and asks for a duration-minute script in the requested style.
func (o *Orchestrator) runSingle(ctx context.Context, req GenerateRequest, speeches []domain.Speech) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a %d-minute podcast script in a %s style covering the following speeches:\n\n", durationOrDefault(req.DurationMinutes), styleOrDefault(req.Style))
	for _, s := range speeches {
		b.WriteString(describeSpeech(s))
		b.WriteString("\n\n")
	}

	resp, err := o.call(ctx, req, []ports.ChatMessage{
		{Role: "system", Content: "You are a podcast script writer producing a single cohesive narrative."},
		{Role: "user", Content: b.String()},
	})
	if err != nil {
		return "", err
	}
	return resp, nil
}

// runBatched partitions speeches into batches of batchSize, summarizes each
// batch, and synthesizes one script over the summaries. A failed batch
// summary is replaced with a failure marker rather than aborting the whole
// request (§4.6: "a partial script is preferable to no script"); the markers
// are also appended to the returned script.
func (o *Orchestrator) runBatched(ctx context.Context, req GenerateRequest, batchSize int) (GenerateResult, error) {
	batches := partitionContiguous(req.Speeches, batchSize)
	summaries := make([]string, len(batches))
	var failures []string
	for i, batch := range batches {
		summary, err := o.summarizeBatch(ctx, req, batch)
		if err != nil {
			summary = fmt.Sprintf("Batch processing failed: %s", strings.Join(titlesOf(batch), ", "))
			failures = append(failures, summary)
		}
		summaries[i] = summary
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a %d-minute podcast script in a %s style synthesizing the following batch summaries:\n\n", durationOrDefault(req.DurationMinutes), styleOrDefault(req.Style))
	for i, s := range summaries {
		fmt.Fprintf(&b, "Batch %d: %s\n\n", i+1, s)
	}

	script, err := o.call(ctx, req, []ports.ChatMessage{
		{Role: "system", Content: "You are a podcast script writer synthesizing batch summaries into one cohesive narrative."},
		{Role: "user", Content: b.String()},
	})
	if err != nil {
		return GenerateResult{}, err
	}
	if len(failures) > 0 {
		script = strings.TrimRight(script, "\n") + "\n\n" + strings.Join(failures, "\n")
	}
	return GenerateResult{Script: script, Strategy: StrategyBatched, BatchProcessed: true}, nil
}

func (o *Orchestrator) summarizeBatch(ctx context.Context, req GenerateRequest, batch []domain.Speech) (string, error) {
	var b strings.Builder
	b.WriteString("Summarize the following speeches in 200 words or fewer:\n\n")
	for _, s := range batch {
		b.WriteString(describeSpeech(s))
		b.WriteString("\n\n")
	}
	return o.call(ctx, req, []ports.ChatMessage{
		{Role: "system", Content: "You write terse, factual batch summaries."},
		{Role: "user", Content: b.String()},
	})
}

// runSwarm fans three specialized agents out concurrently over roughly equal
// contiguous slices, joins all three (success or failure), then synthesizes.
// Any single agent failure falls back to the Single strategy over the full
// input (§4.6).
func (o *Orchestrator) runSwarm(ctx context.Context, req GenerateRequest, batchSize int) (GenerateResult, error) {
	slices := partitionThree(req.Speeches)
	roles := []struct {
		name   string
		prompt string
	}{
		{"content analyst", "You are a content analyst. Identify the key claims, themes, and factual highlights."},
		{"narrative designer", "You are a narrative designer. Propose a compelling story arc and pacing."},
		{"audio producer", "You are an audio producer. Suggest tone, delivery notes, and transitions."},
	}

	analyses := make([]string, len(roles))
	errs := make([]error, len(roles))
	var wg sync.WaitGroup
	for i, role := range roles {
		wg.Add(1)
		go func(i int, role struct {
			name   string
			prompt string
		}) {
			defer wg.Done()
			var b strings.Builder
			b.WriteString("Analyze the following speeches:\n\n")
			for _, s := range slices[i] {
				b.WriteString(describeSpeech(s))
				b.WriteString("\n\n")
			}
			content, err := o.call(ctx, req, []ports.ChatMessage{
				{Role: "system", Content: role.prompt},
				{Role: "user", Content: b.String()},
			})
			analyses[i] = content
			errs[i] = err
		}(i, role)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return o.fallbackToSingle(ctx, req)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a %d-minute podcast script in a %s style combining these three analyses:\n\n", durationOrDefault(req.DurationMinutes), styleOrDefault(req.Style))
	for i, role := range roles {
		fmt.Fprintf(&b, "%s analysis: %s\n\n", role.name, analyses[i])
	}

	script, err := o.call(ctx, req, []ports.ChatMessage{
		{Role: "system", Content: "You are a podcast script writer synthesizing three specialist analyses into one cohesive narrative."},
		{Role: "user", Content: b.String()},
	})
	if err != nil {
		return GenerateResult{}, err
	}
	return GenerateResult{Script: script, Strategy: StrategySwarm}, nil
}

func (o *Orchestrator) fallbackToSingle(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	script, err := o.runSingle(ctx, req, req.Speeches)
	if err != nil {
		return GenerateResult{}, err
	}
	return GenerateResult{Script: script, Strategy: StrategySingle}, nil
}

// call selects a key by precedence, issues the chat request, and updates
// pool bookkeeping when the key came from the pool.
func (o *Orchestrator) call(ctx context.Context, req GenerateRequest, messages []ports.ChatMessage) (string, error) {
	key, fromPool, err := o.selectKey(req)
	if err != nil {
		return "", err
	}

	resp, err := o.provider.Chat(ctx, ports.ChatRequest{
		APIKey:   key,
		Model:    req.Model,
		Messages: messages,
	})
	if err != nil {
		if fromPool {
			o.classifyAndMarkPool(key, err)
		}
		return "", err
	}
	if fromPool {
		o.pool.MarkSuccess(key)
	}
	return resp.Content, nil
}

// classifyAndMarkPool applies §4.6's pool-mode outcome handling: 429 cools
// the key down, 401 evicts it. Neither is retried within this call.
func (o *Orchestrator) classifyAndMarkPool(key string, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		return
	}
	switch appErr.Code {
	case apperr.CodeRateLimited:
		o.pool.MarkRateLimited(key, 0)
	case apperr.CodeUnauthorized:
		o.pool.MarkError(key, domain.KeyErrInvalid)
	}
}

// selectKey applies the precedence rule: explicit client key -> pool (if
// usePool and non-empty) -> environment key.
func (o *Orchestrator) selectKey(req GenerateRequest) (key string, fromPool bool, err error) {
	if strings.TrimSpace(req.ClientAPIKey) != "" {
		return req.ClientAPIKey, false, nil
	}
	if req.UsePool && o.pool != nil && o.pool.Len() > 0 {
		if k, ok := o.pool.Next(); ok {
			return k, true, nil
		}
	}
	if strings.TrimSpace(req.EnvAPIKey) != "" {
		return req.EnvAPIKey, false, nil
	}
	return "", false, apperr.Input("no API key available: client key, pool, and environment key are all empty")
}

// ProxyRequest is a raw chat-completion call issued directly by the Request
// Edge's OpenRouter proxy endpoint, bypassing script-generation strategy
// selection but reusing the same key precedence and pool bookkeeping as
// GenerateScript (§6.1 "/api/openrouter").
type ProxyRequest struct {
	Model       string
	Messages    []ports.ChatMessage
	Temperature float64
	MaxTokens   int

	ClientAPIKey string
	UsePool      bool
	EnvAPIKey    string
}

// Chat issues one chat completion call under the standard key precedence.
func (o *Orchestrator) Chat(ctx context.Context, req ProxyRequest) (string, error) {
	key, fromPool, err := o.selectKey(GenerateRequest{
		Model:        req.Model,
		ClientAPIKey: req.ClientAPIKey,
		UsePool:      req.UsePool,
		EnvAPIKey:    req.EnvAPIKey,
	})
	if err != nil {
		return "", err
	}

	resp, err := o.provider.Chat(ctx, ports.ChatRequest{
		APIKey:      key,
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		if fromPool {
			o.classifyAndMarkPool(key, err)
		}
		return "", err
	}
	if fromPool {
		o.pool.MarkSuccess(key)
	}
	return resp.Content, nil
}

func durationOrDefault(minutes int) int {
	if minutes <= 0 {
		return 5
	}
	return minutes
}

func styleOrDefault(style string) string {
	if strings.TrimSpace(style) == "" {
		return "professional"
	}
	return style
}

func describeSpeech(s domain.Speech) string {
	date := "unknown date"
	if s.Date != nil {
		date = *s.Date
	}
	location := "unknown location"
	if s.RallyLocation != nil {
		location = *s.RallyLocation
	}
	excerpt := ""
	if s.Transcript != nil {
		excerpt = truncate(*s.Transcript, excerptLength)
	}
	return fmt.Sprintf("Title: %s\nDate: %s\nLocation: %s\nExcerpt: %s", s.Title, date, location, excerpt)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func titlesOf(speeches []domain.Speech) []string {
	out := make([]string, 0, len(speeches))
	for _, s := range speeches {
		out = append(out, s.Title)
	}
	return out
}

// partitionContiguous splits speeches into contiguous batches of size n.
func partitionContiguous(speeches []domain.Speech, n int) [][]domain.Speech {
	var batches [][]domain.Speech
	for i := 0; i < len(speeches); i += n {
		end := i + n
		if end > len(speeches) {
			end = len(speeches)
		}
		batches = append(batches, speeches[i:end])
	}
	return batches
}

// partitionThree splits speeches into three roughly equal contiguous slices.
func partitionThree(speeches []domain.Speech) [3][]domain.Speech {
	n := len(speeches)
	base := n / 3
	rem := n % 3
	var out [3][]domain.Speech
	start := 0
	for i := 0; i < 3; i++ {
		size := base
		if i < rem {
			size++
		}
		out[i] = speeches[start : start+size]
		start += size
	}
	return out
}
