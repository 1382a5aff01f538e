package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/archivecast/podgen/internal/domain"
)

// clientAPIKey reads the caller-supplied OpenRouter key, if any, from the
// X-API-Key header — the "explicit client key" term of the precedence rule
// in §4.6.
func clientAPIKey(c echo.Context) string {
	return c.Request().Header.Get("X-API-Key")
}

// bindJSON decodes the request body with echo's default (DisallowUnknownFields
// off) binder; the Request Edge rejects missing required fields at the
// handler level instead, per §4.9 "reject unknown required fields, ignore
// unknown optional ones."
func bindJSON(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	return nil
}

// queryInt parses an optional integer query param, returning def on
// absence or parse failure.
func queryInt(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// --- workflow DTOs ---

type createWorkflowRequest struct {
	Name      string   `json:"name"`
	SpeechIDs []string `json:"speechIds"`
}

type workflowResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SpeechIDs []string  `json:"speechIds"`
	Script    *string   `json:"script,omitempty"`
	AudioURL  *string   `json:"audioUrl,omitempty"`
	RSSURL    *string   `json:"rssUrl,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Speeches  []speechResponse `json:"speeches,omitempty"`
}

func toWorkflowResponse(wf domain.Workflow) workflowResponse {
	return workflowResponse{
		ID: wf.ID, Name: wf.Name, SpeechIDs: wf.SpeechIDs,
		Script: wf.Script, AudioURL: wf.AudioURL, RSSURL: wf.RSSURL,
		Status: string(wf.Status), CreatedAt: wf.CreatedAt, UpdatedAt: wf.UpdatedAt,
	}
}

func toWorkflowWithSpeechesResponse(wf domain.WorkflowWithSpeeches) workflowResponse {
	out := toWorkflowResponse(wf.Workflow)
	out.Speeches = make([]speechResponse, len(wf.Speeches))
	for i, s := range wf.Speeches {
		out.Speeches[i] = toSpeechResponse(s)
	}
	return out
}

type uploadScriptRequest struct {
	WorkflowID string `json:"workflowId"`
	Script     string `json:"script"`
}

type generateScriptRequest struct {
	WorkflowID string `json:"workflowId"`
	Model      string `json:"model"`
	Style      string `json:"style"`
	Duration   int    `json:"durationMinutes"`
	BatchSize  int    `json:"batchSize"`
	UseSwarm   bool   `json:"useSwarm"`
	UsePool    *bool  `json:"usePool"`
}

type generateScriptResponse struct {
	Script         string `json:"script"`
	BatchProcessed bool   `json:"batchProcessed"`
}

type generateAudioRequest struct {
	WorkflowID      string `json:"workflowId"`
	Voice           string `json:"voice"`
	Preset          string `json:"preset"`
	OutputDir       string `json:"outputDir"`
	CustomVoicePath string `json:"customVoicePath"`
}

type generateAudioResponse struct {
	AudioURL string `json:"audioUrl"`
	Success  bool   `json:"success"`
	FellBack bool   `json:"fellBack"`
}

type finalizeRequest struct {
	WorkflowID  string `json:"workflowId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	LocalBundle bool   `json:"localBundle"`
}

type finalizeResponse struct {
	RSSURL     string `json:"rssUrl,omitempty"`
	BundlePath string `json:"bundlePath,omitempty"`
}

// --- catalog DTOs ---

type speechResponse struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Date          *string `json:"date,omitempty"`
	Source        string  `json:"source"`
	RallyLocation *string `json:"rallyLocation,omitempty"`
	VideoURL      string  `json:"videoUrl,omitempty"`
	AudioURL      string  `json:"audioUrl,omitempty"`
	TranscriptURL string  `json:"transcriptUrl,omitempty"`
	Duration      string  `json:"duration,omitempty"`
	ThumbnailURL  string  `json:"thumbnailUrl,omitempty"`
	Status        string  `json:"status"`
}

func toSpeechResponse(s domain.Speech) speechResponse {
	return speechResponse{
		ID: s.ID, Title: s.Title, Date: s.Date, Source: s.Source,
		RallyLocation: s.RallyLocation, VideoURL: s.VideoURL, AudioURL: s.AudioURL,
		TranscriptURL: s.TranscriptURL, Duration: s.Duration, ThumbnailURL: s.ThumbnailURL,
		Status: string(s.Status),
	}
}

type searchResponse struct {
	Rows  []speechResponse `json:"rows"`
	Total int              `json:"total"`
}

type statusResponse struct {
	Sources              map[string]sourceStatus `json:"sources"`
	SpeechCount          int                     `json:"speechCount"`
	AIProviderConfigured bool                    `json:"aiProviderConfigured"`
	KeyPoolSize          int                     `json:"keyPoolSize"`
}

type sourceStatus struct {
	Available bool   `json:"available"`
	Status    int    `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
	Method    string `json:"method,omitempty"`
}

type healthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	Database      string  `json:"database"`
}

type refreshArchiveRequest struct {
	Limit int `json:"limit"`
}

type refreshArchiveResponse struct {
	Existing int      `json:"existing"`
	Inserted int       `json:"inserted"`
	Total    int       `json:"total"`
	Errors   []string  `json:"errors,omitempty"`
	Skipped  bool      `json:"skipped"`
}

type curatedModelResponse struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Provider         string  `json:"provider"`
	Category         string  `json:"category"`
	PerformanceScore float64 `json:"performanceScore"`
	UsageCount       int64   `json:"usageCount"`
	SuccessRate      float64 `json:"successRate"`
}

func toCuratedModelResponse(m domain.CuratedModel) curatedModelResponse {
	return curatedModelResponse{
		ID: m.ID, Name: m.Name, Provider: m.Provider, Category: string(m.Category),
		PerformanceScore: m.PerformanceScore, UsageCount: m.UsageCount, SuccessRate: m.SuccessRate,
	}
}

// --- LLM / key DTOs ---

type validateKeyRequest struct {
	APIKey string `json:"apiKey"`
}

type keyValidationResponse struct {
	IsValid    bool    `json:"isValid"`
	ModelCount int     `json:"modelCount"`
	ErrorCode  *string `json:"errorCode,omitempty"`
}

func toKeyValidationResponse(v domain.KeyValidation) keyValidationResponse {
	out := keyValidationResponse{IsValid: v.IsValid, ModelCount: v.ModelCount}
	if v.ErrorCode != nil {
		code := string(*v.ErrorCode)
		out.ErrorCode = &code
	}
	return out
}

type validateKeysRequest struct {
	APIKeys []string `json:"apiKeys"`
}

type validateKeysResponse struct {
	Results []keyBatchResult `json:"results"`
}

type keyBatchResult struct {
	Prefix     string  `json:"prefix"`
	IsValid    bool    `json:"isValid"`
	ModelCount int     `json:"modelCount"`
	ErrorCode  *string `json:"errorCode,omitempty"`
	Added      bool    `json:"added"`
}

type poolStatusResponse struct {
	Keys []poolKeyStatsResponse `json:"keys"`
}

type poolKeyStatsResponse struct {
	Prefix           string     `json:"prefix"`
	Priority         int        `json:"priority"`
	LastUsed         time.Time  `json:"lastUsed"`
	RateLimitedUntil *time.Time `json:"rateLimitedUntil,omitempty"`
	SuccessCount     int64      `json:"successCount"`
	ErrorCount       int64      `json:"errorCount"`
}

func toPoolKeyStatsResponse(s domain.PoolKeyStats) poolKeyStatsResponse {
	return poolKeyStatsResponse{
		Prefix: s.Prefix, Priority: s.Priority, LastUsed: s.LastUsed,
		RateLimitedUntil: s.RateLimitedUntil, SuccessCount: s.SuccessCount, ErrorCount: s.ErrorCount,
	}
}

type openRouterProxyRequest struct {
	Model       string            `json:"model"`
	Messages    []proxyChatTurn   `json:"messages"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"maxTokens"`
	UsePool     *bool             `json:"usePool"`
}

type proxyChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterProxyResponse struct {
	Content string `json:"content"`
}
