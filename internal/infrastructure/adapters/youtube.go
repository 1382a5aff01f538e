package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/archivecast/podgen/internal/domain"
	"github.com/archivecast/podgen/internal/ports"
)

// YouTubeSource queries the YouTube Data API v3 across several keyword
// searches, dedups by video id, then enriches with a details call for
// duration (§4.2). Requires a configured API key; Verify reports
// unavailable without one rather than erroring.
type YouTubeSource struct {
	client  *http.Client
	baseURL string
	apiKey  string
	queries []string
}

var _ ports.SourceAdapter = (*YouTubeSource)(nil)

// NewYouTubeSource wires the API key and search keywords used to build the
// candidate speech set. queries defaults to a single generic search when
// empty.
func NewYouTubeSource(client *http.Client, apiKey string, queries []string) *YouTubeSource {
	if client == nil {
		client = &http.Client{Timeout: FetchTimeout}
	}
	if len(queries) == 0 {
		queries = []string{"full speech rally"}
	}
	return &YouTubeSource{
		client:  client,
		baseURL: "https://www.googleapis.com/youtube/v3",
		apiKey:  apiKey,
		queries: queries,
	}
}

func (y *YouTubeSource) Name() string { return "youtube" }

func (y *YouTubeSource) Verify(ctx context.Context) ports.VerifyResult {
	if y.apiKey == "" {
		return ports.VerifyResult{Available: false, Error: "no API key configured", Method: "config"}
	}

	ctx, cancel := context.WithTimeout(ctx, VerifyBudget)
	defer cancel()

	q := url.Values{}
	q.Set("part", "id")
	q.Set("maxResults", "1")
	q.Set("q", y.queries[0])
	q.Set("type", "video")
	q.Set("key", y.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return ports.VerifyResult{Available: false, Error: err.Error()}
	}
	resp, err := y.client.Do(req)
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

type ytSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			PublishedAt  string `json:"publishedAt"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
}

type ytVideosResponse struct {
	Items []struct {
		ID          string `json:"id"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// Fetch runs each configured keyword query, dedups results by video id,
// then issues a single details call to resolve ISO-8601 durations.
func (y *YouTubeSource) Fetch(ctx context.Context, limit int) ([]domain.Speech, error) {
	if y.apiKey == "" {
		return nil, fmt.Errorf("youtube: no API key configured")
	}
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	type candidate struct {
		videoID string
		title   string
		date    string
	}
	seen := map[string]bool{}
	var candidates []candidate

	for _, query := range y.queries {
		if len(candidates) >= limit {
			break
		}
		q := url.Values{}
		q.Set("part", "snippet")
		q.Set("maxResults", strconv.Itoa(limit))
		q.Set("q", query)
		q.Set("type", "video")
		q.Set("key", y.apiKey)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+"/search?"+q.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("build search request: %w", err)
		}
		resp, err := y.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("youtube search %q: %w", query, err)
		}
		var parsed ytSearchResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("youtube search %q returned %s", query, resp.Status)
		}
		if decodeErr != nil {
			return nil, fmt.Errorf("decode youtube search response: %w", decodeErr)
		}

		for _, item := range parsed.Items {
			if item.ID.VideoID == "" || seen[item.ID.VideoID] {
				continue
			}
			seen[item.ID.VideoID] = true
			candidates = append(candidates, candidate{
				videoID: item.ID.VideoID,
				title:   item.Snippet.Title,
				date:    item.Snippet.PublishedAt,
			})
			if len(candidates) >= limit {
				break
			}
		}
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.videoID)
	}
	durations, err := y.fetchDurations(ctx, ids)
	if err != nil {
		durations = map[string]string{}
	}

	now := time.Now().UTC()
	results := make([]domain.Speech, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, domain.Speech{
			ID:            speechID("youtube", c.videoID),
			Title:         c.title,
			Date:          normalizeDate(c.date),
			Source:        "youtube",
			RallyLocation: extractLocation(c.title),
			VideoURL:      "https://www.youtube.com/watch?v=" + c.videoID,
			Duration:      parseISO8601Duration(durations[c.videoID]),
			Status:        domain.SpeechActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return results, nil
}

func (y *YouTubeSource) fetchDurations(ctx context.Context, ids []string) (map[string]string, error) {
	q := url.Values{}
	q.Set("part", "contentDetails")
	q.Set("id", strings.Join(ids, ","))
	q.Set("key", y.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+"/videos?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube videos returned %s", resp.Status)
	}

	var parsed ytVideosResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(parsed.Items))
	for _, item := range parsed.Items {
		out[item.ID] = item.ContentDetails.Duration
	}
	return out, nil
}

var iso8601DurationExpr = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISO8601Duration converts a YouTube "PT#H#M#S" duration into
// "H:MM:SS" or "M:SS", returning "" when raw doesn't parse.
func parseISO8601Duration(raw string) string {
	m := iso8601DurationExpr.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
