// Package llm implements the LLM Orchestrator's upstream client and
// Single/Batched/Swarm strategy selection (§4.6). The client is grounded on
// Mimic890-hyprbot's internal/providers/openai_compat/client.go (retry/backoff
// loop, endpoint URL building, tolerant response parsing); the chat payload
// shape follows the teacher's (now-removed) chatgpt.go system/user message
// marshaling.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/archivecast/podgen/internal/apperr"
	"github.com/archivecast/podgen/internal/ports"
)

// ClientConfig configures an OpenRouterClient.
type ClientConfig struct {
	Endpoint    string
	HTTPClient  *http.Client
	MaxRetries  int
	BackoffBase time.Duration
	// RequestsPerSecond throttles outbound calls so a single workflow can't
	// burst past what the upstream API tolerates.
	RequestsPerSecond float64
}

// OpenRouterClient is an OpenRouter-compatible chat completions client.
type OpenRouterClient struct {
	cfg     ClientConfig
	limiter *rate.Limiter
}

var _ ports.LLMProvider = (*OpenRouterClient)(nil)

// NewOpenRouterClient builds a client with sane defaults applied.
func NewOpenRouterClient(cfg ClientConfig) *OpenRouterClient {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://openrouter.ai/api/v1/chat/completions"
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 400 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	return &OpenRouterClient{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// Chat issues a chat completion request, retrying transport errors and 5xx
// responses up to MaxRetries times with exponential backoff; a 429 is
// returned without a retry.
func (c *OpenRouterClient) Chat(ctx context.Context, req ports.ChatRequest) (ports.ChatResponse, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return ports.ChatResponse{}, apperr.Input("chat request missing an API key")
	}

	body, err := buildPayload(req)
	if err != nil {
		return ports.ChatResponse{}, fmt.Errorf("build payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return ports.ChatResponse{}, err
		}

		content, retry, err := c.callOnce(ctx, req.APIKey, body)
		if err == nil {
			return ports.ChatResponse{Content: content}, nil
		}
		lastErr = err
		if !retry || attempt == c.cfg.MaxRetries {
			break
		}

		backoff := c.cfg.BackoffBase * (1 << attempt)
		select {
		case <-ctx.Done():
			return ports.ChatResponse{}, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return ports.ChatResponse{}, lastErr
}

func buildPayload(req ports.ChatRequest) ([]byte, error) {
	messages := make([]map[string]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, map[string]string{"role": m.Role, "content": m.Content})
	}
	payload := map[string]any{
		"model":    req.Model,
		"messages": messages,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}
	return json.Marshal(payload)
}

func (c *OpenRouterClient) callOnce(ctx context.Context, apiKey string, body []byte) (content string, retry bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return "", true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", false, fmt.Errorf("read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", false, apperr.Unauthorized("openrouter rejected the api key (status %d)", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", false, apperr.RateLimited("openrouter rate limited the request")
	case resp.StatusCode >= 500:
		return "", true, apperr.Upstream(fmt.Errorf("status %d", resp.StatusCode), "openrouter returned a server error")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", false, apperr.Upstream(fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)), "openrouter returned an error")
	}

	text, err := parseChatCompletion(respBody)
	if err != nil {
		return "", false, err
	}
	return text, false, nil
}

// StatusError carries a raw upstream HTTP status code so callers (notably
// the Key Validator) can classify outcomes per §4.5's 401/403/429/other
// table without string-matching an error message.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("models probe returned status %d", e.StatusCode)
}

func parseChatCompletion(body []byte) (string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("empty chat completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// ListModels probes a key's available model count, used by the Key
// Validator (§4.5).
func (c *OpenRouterClient) ListModels(ctx context.Context, apiKey string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://openrouter.ai/api/v1/models", nil)
	if err != nil {
		return 0, fmt.Errorf("build models request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return 0, apperr.Upstream(err, "models probe request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{StatusCode: resp.StatusCode}
	}

	var parsed struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode models response: %w", err)
	}
	return len(parsed.Data), nil
}
