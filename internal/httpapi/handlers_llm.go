package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/archivecast/podgen/internal/apperr"
	"github.com/archivecast/podgen/internal/infrastructure/llm"
	"github.com/archivecast/podgen/internal/ports"
)

// keyPoolPriority derives a pool priority from a key's validated model
// count: clamp(1, 10, modelCount/10) (§4.4).
func keyPoolPriority(modelCount int) int {
	priority := modelCount / 10
	if priority < 1 {
		priority = 1
	}
	if priority > 10 {
		priority = 10
	}
	return priority
}

// handleValidateOpenRouterKey runs the full Key Validator pipeline over one
// candidate key without adding it to the pool (§4.5).
func (s *Server) handleValidateOpenRouterKey(c echo.Context) error {
	var req validateKeyRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.APIKey == "" {
		return respondError(c, apperr.Input("apiKey is required"))
	}

	result, err := s.validator.Validate(c.Request().Context(), req.APIKey)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toKeyValidationResponse(result))
}

// maxBatchKeys bounds a single validate-keys call (§6.1: "at most 10 keys
// per call").
const maxBatchKeys = 10

// handleValidateKeys validates up to maxBatchKeys candidate keys and adds
// every valid one to the pool at a priority derived from its model count
// (§4.4, §4.5).
func (s *Server) handleValidateKeys(c echo.Context) error {
	var req validateKeysRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if len(req.APIKeys) == 0 {
		return respondError(c, apperr.Input("apiKeys must not be empty"))
	}
	if len(req.APIKeys) > maxBatchKeys {
		return respondError(c, apperr.Input("at most %d keys may be validated per call", maxBatchKeys))
	}

	ctx := c.Request().Context()
	results := make([]keyBatchResult, 0, len(req.APIKeys))
	for _, apiKey := range req.APIKeys {
		verdict, err := s.validator.Validate(ctx, apiKey)
		if err != nil {
			return respondError(c, err)
		}

		entry := keyBatchResult{IsValid: verdict.IsValid, ModelCount: verdict.ModelCount}
		if verdict.ErrorCode != nil {
			code := string(*verdict.ErrorCode)
			entry.ErrorCode = &code
		}
		if verdict.IsValid {
			priority := keyPoolPriority(verdict.ModelCount)
			s.pool.Add(apiKey, priority)
			entry.Added = true
		}
		entry.Prefix = prefixOf(apiKey)
		results = append(results, entry)
	}

	if s.metrics != nil {
		s.metrics.SetKeyPoolSize(s.pool.Len())
	}
	return c.JSON(http.StatusOK, validateKeysResponse{Results: results})
}

func prefixOf(key string) string {
	const n = 8
	if len(key) <= n {
		return key
	}
	return key[:n] + "..."
}

// handleKeyPoolStatus reports the pool's current observability snapshot,
// never the raw keys (§4.4).
func (s *Server) handleKeyPoolStatus(c echo.Context) error {
	stats := s.pool.Stats()
	out := make([]poolKeyStatsResponse, len(stats))
	for i, st := range stats {
		out[i] = toPoolKeyStatsResponse(st)
	}
	return c.JSON(http.StatusOK, poolStatusResponse{Keys: out})
}

// handleOpenRouterProxy issues one raw chat completion call under the
// standard key precedence, bypassing script-generation strategy selection
// (§6.1 "/api/openrouter").
func (s *Server) handleOpenRouterProxy(c echo.Context) error {
	var req openRouterProxyRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.Model == "" || len(req.Messages) == 0 {
		return respondError(c, apperr.Input("model and messages are required"))
	}

	usePool := true
	if req.UsePool != nil {
		usePool = *req.UsePool
	}

	messages := make([]ports.ChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = ports.ChatMessage{Role: m.Role, Content: m.Content}
	}

	content, err := s.orchestrator.Chat(c.Request().Context(), llm.ProxyRequest{
		Model: req.Model, Messages: messages, Temperature: req.Temperature, MaxTokens: req.MaxTokens,
		ClientAPIKey: clientAPIKey(c), UsePool: usePool, EnvAPIKey: s.envAPIKey,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, openRouterProxyResponse{Content: content})
}
