package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/archivecast/podgen/internal/domain"
	"github.com/archivecast/podgen/internal/ports"
)

// ArchiveSource queries archive.org's advanced-search endpoint (§4.2).
// Grounded on the teacher's arxiv_scanner.go request-building/fetch shape,
// swapped from HTML pagination to a single JSON search call.
type ArchiveSource struct {
	client  *http.Client
	baseURL string
}

var _ ports.SourceAdapter = (*ArchiveSource)(nil)

// NewArchiveSource wires an HTTP client; baseURL defaults to archive.org.
func NewArchiveSource(client *http.Client, baseURL string) *ArchiveSource {
	if client == nil {
		client = &http.Client{Timeout: FetchTimeout}
	}
	if baseURL == "" {
		baseURL = "https://archive.org"
	}
	return &ArchiveSource{client: client, baseURL: baseURL}
}

func (a *ArchiveSource) Name() string { return "archive" }

func (a *ArchiveSource) Verify(ctx context.Context) ports.VerifyResult {
	ctx, cancel := context.WithTimeout(ctx, VerifyBudget)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/advancedsearch.php?q=test&rows=0&output=json", nil)
	if err != nil {
		return ports.VerifyResult{Available: false, Error: err.Error()}
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return ports.VerifyResult{Available: false, Error: err.Error(), Method: "GET"}
	}
	defer resp.Body.Close()

	return ports.VerifyResult{
		Available: resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status:    resp.StatusCode,
		Method:    "GET",
	}
}

type archiveSearchResponse struct {
	Response struct {
		Docs []archiveDoc `json:"docs"`
	} `json:"response"`
}

type archiveDoc struct {
	Identifier  string `json:"identifier"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

// Fetch queries `title:(speech OR rally) AND mediatype:movies` (§4.2).
func (a *ArchiveSource) Fetch(ctx context.Context, limit int) ([]domain.Speech, error) {
	if limit <= 0 {
		limit = 50
	}

	query := url.Values{}
	query.Set("q", `title:(speech OR rally) AND mediatype:movies`)
	query.Set("fl[]", "identifier,title,date,description")
	query.Set("rows", fmt.Sprintf("%d", limit))
	query.Set("output", "json")

	reqURL := a.baseURL + "/advancedsearch.php?" + query.Encode()

	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("archive search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("archive search returned %s", resp.Status)
	}

	var parsed archiveSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode archive response: %w", err)
	}

	now := time.Now().UTC()
	results := make([]domain.Speech, 0, len(parsed.Response.Docs))
	for _, doc := range parsed.Response.Docs {
		if doc.Identifier == "" {
			continue
		}
		var transcript *string
		if doc.Description != "" {
			transcript = &doc.Description
		}
		results = append(results, domain.Speech{
			ID:            speechID("archive", doc.Identifier),
			Title:         doc.Title,
			Date:          normalizeDate(doc.Date),
			Source:        "archive",
			RallyLocation: extractLocation(doc.Title),
			VideoURL:      a.baseURL + "/details/" + doc.Identifier,
			Transcript:    transcript,
			Status:        domain.SpeechActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return results, nil
}
