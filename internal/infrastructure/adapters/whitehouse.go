package adapters

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/temoto/robotstxt"

	"github.com/archivecast/podgen/internal/domain"
	"github.com/archivecast/podgen/internal/ports"
)

// WhiteHouseSource scrapes a speeches index page (§4.2), limiting to the 10
// most recent entries. Grounded on the teacher's arxiv_scanner.go goquery
// selection idiom.
type WhiteHouseSource struct {
	client  *http.Client
	baseURL string
	index   string
}

var _ ports.SourceAdapter = (*WhiteHouseSource)(nil)

// NewWhiteHouseSource wires an HTTP client against the speeches index page.
func NewWhiteHouseSource(client *http.Client, baseURL string) *WhiteHouseSource {
	if client == nil {
		client = &http.Client{Timeout: FetchTimeout}
	}
	if baseURL == "" {
		baseURL = "https://www.whitehouse.gov"
	}
	return &WhiteHouseSource{client: client, baseURL: baseURL, index: baseURL + "/briefing-room/speeches-remarks/"}
}

func (w *WhiteHouseSource) Name() string { return "whitehouse" }

// Verify checks robots.txt courtesy before the real probe (SPEC_FULL
// supplement), then confirms the index page is reachable.
func (w *WhiteHouseSource) Verify(ctx context.Context) ports.VerifyResult {
	ctx, cancel := context.WithTimeout(ctx, VerifyBudget)
	defer cancel()

	if disallowed, err := w.robotsDisallows(ctx); err == nil && disallowed {
		return ports.VerifyResult{Available: false, Error: "disallowed", Method: "robots.txt"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.index, nil)
	if err != nil {
		return ports.VerifyResult{Available: false, Error: err.Error()}
	}
	resp, err := w.client.Do(req)
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

func (w *WhiteHouseSource) robotsDisallows(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/robots.txt", nil)
	if err != nil {
		return false, err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, nil // absent robots.txt is permissive, not disallowed
	}
	robots, err := robotstxt.FromResponse(resp)
	if err != nil {
		return false, err
	}
	group := robots.FindGroup("ArchiveCastBot")
	return !group.Test("/briefing-room/speeches-remarks/"), nil
}

// Fetch extracts title + link + date from the speeches index, limited to
// the 10 most recent, and best-effort enriches each with a readability
// transcript pulled from the detail page.
func (w *WhiteHouseSource) Fetch(ctx context.Context, limit int) ([]domain.Speech, error) {
	const maxItems = 10
	if limit <= 0 || limit > maxItems {
		limit = maxItems
	}

	fetchCtx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, w.index, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "ArchiveCastBot/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whitehouse index returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}

	now := time.Now().UTC()
	var results []domain.Speech

	doc.Find("li.briefing-room__item, article.briefing-statement").EachWithBreak(func(i int, item *goquery.Selection) bool {
		if len(results) >= limit {
			return false
		}

		link := item.Find("a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if title == "" || href == "" {
			return true
		}
		if !strings.HasPrefix(href, "http") {
			href = strings.TrimRight(w.baseURL, "/") + href
		}

		dateText := strings.TrimSpace(item.Find("time").First().Text())
		if dateAttr, ok := item.Find("time").First().Attr("datetime"); ok && dateAttr != "" {
			dateText = dateAttr
		}

		localID := href
		if idx := strings.LastIndex(strings.TrimRight(href, "/"), "/"); idx >= 0 {
			localID = strings.TrimRight(href, "/")[idx+1:]
		}

		speech := domain.Speech{
			ID:            speechID("whitehouse", localID+"-"+strconv.Itoa(i)),
			Title:         title,
			Date:          normalizeDate(dateText),
			Source:        "whitehouse",
			RallyLocation: extractLocation(title),
			TranscriptURL: href,
			Status:        domain.SpeechActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if transcript := w.bestEffortTranscript(fetchCtx, href); transcript != "" {
			speech.Transcript = &transcript
		}

		results = append(results, speech)
		return true
	})

	return results, nil
}

// bestEffortTranscript fetches the detail page and runs go-readability to
// extract plain-text body content; any failure leaves transcript null
// (SPEC_FULL supplement).
func (w *WhiteHouseSource) bestEffortTranscript(ctx context.Context, pageURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	article, err := readability.FromReader(resp.Body, nil)
	if err != nil {
		return ""
	}
	var buf strings.Builder
	if err := article.RenderText(&buf); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}
