package domain

import "time"

// ModelCategory buckets a CuratedModel within the curated catalog.
type ModelCategory string

const (
	CategoryTopOverall ModelCategory = "top_overall"
	CategoryTopFree    ModelCategory = "top_free"
	CategoryDiscovered ModelCategory = "discovered"
	CategoryFallback   ModelCategory = "fallback"
)

// CuratedModel is one entry in the LLM model catalog.
type CuratedModel struct {
	ID               string
	Name             string
	Provider         string
	Description      string
	Category         ModelCategory
	PerformanceScore float64
	UsageCount       int64
	AvgResponseTime  time.Duration
	SuccessRate      float64
	LastUsed         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RecordUsage updates usage bookkeeping for one LLM call. usage_count and
// last_used advance only when ok is true (§4.6's "usage_count and last_used
// updated on every successful LLM call" lifecycle rule); the response-time
// and success-rate averages take every call into account.
func (m *CuratedModel) RecordUsage(at time.Time, elapsed time.Duration, ok bool) {
	if ok {
		m.UsageCount++
		m.LastUsed = &at
	}
	// exponential moving average keeps a single row from requiring full history.
	const alpha = 0.2
	m.AvgResponseTime = time.Duration(float64(m.AvgResponseTime)*(1-alpha) + float64(elapsed)*alpha)
	var sample float64
	if ok {
		sample = 1
	}
	m.SuccessRate = m.SuccessRate*(1-alpha) + sample*alpha
}

// DefaultCuratedModels seeds the catalog on first boot (§3 "seeded from a
// built-in default set").
func DefaultCuratedModels() []CuratedModel {
	return []CuratedModel{
		{ID: "openai/gpt-4o-mini", Name: "GPT-4o mini", Provider: "openai", Category: CategoryTopOverall, PerformanceScore: 8.4},
		{ID: "anthropic/claude-3-haiku", Name: "Claude 3 Haiku", Provider: "anthropic", Category: CategoryTopOverall, PerformanceScore: 8.1},
		{ID: "meta-llama/llama-3-8b-instruct:free", Name: "Llama 3 8B Instruct (free)", Provider: "meta-llama", Category: CategoryTopFree, PerformanceScore: 6.5},
		{ID: "mistralai/mistral-7b-instruct:free", Name: "Mistral 7B Instruct (free)", Provider: "mistralai", Category: CategoryTopFree, PerformanceScore: 6.2},
		{ID: "openrouter/auto", Name: "Auto Router", Provider: "openrouter", Category: CategoryFallback, PerformanceScore: 5.0},
	}
}
