package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/archivecast/podgen/internal/domain"
	"github.com/archivecast/podgen/internal/ports"
)

const desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// CSpanSource attempts an API call with a desktop user-agent; on any
// non-2xx it falls back to HTML-scraping a person page (§4.2).
type CSpanSource struct {
	client     *http.Client
	apiURL     string
	personURL  string
	subject    string
}

var _ ports.SourceAdapter = (*CSpanSource)(nil)

// NewCSpanSource wires the API and fallback person-page URLs plus the
// subject name used to filter titles.
func NewCSpanSource(client *http.Client, apiURL, personURL, subject string) *CSpanSource {
	if client == nil {
		client = &http.Client{Timeout: FetchTimeout}
	}
	return &CSpanSource{client: client, apiURL: apiURL, personURL: personURL, subject: subject}
}

func (c *CSpanSource) Name() string { return "cspan" }

func (c *CSpanSource) Verify(ctx context.Context) ports.VerifyResult {
	ctx, cancel := context.WithTimeout(ctx, VerifyBudget)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return ports.VerifyResult{Available: false, Error: err.Error()}
	}
	req.Header.Set("User-Agent", desktopUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return ports.VerifyResult{Available: false, Error: err.Error(), Method: "API"}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return ports.VerifyResult{Available: true, Status: resp.StatusCode, Method: "API"}
	}

	// Fall back to confirming the scrape target is reachable.
	req2, err := http.NewRequestWithContext(ctx, http.MethodGet, c.personURL, nil)
	if err != nil {
		return ports.VerifyResult{Available: false, Error: err.Error(), Method: "scrape"}
	}
	resp2, err := c.client.Do(req2)
	if err != nil {
		return ports.VerifyResult{Available: false, Error: err.Error(), Method: "scrape"}
	}
	defer resp2.Body.Close()

	return ports.VerifyResult{
		Available: resp2.StatusCode >= 200 && resp2.StatusCode < 300,
		Status:    resp2.StatusCode,
		Method:    "scrape",
	}
}

type cspanAPIItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
	URL   string `json:"url"`
}

type cspanAPIResponse struct {
	Items []cspanAPIItem `json:"items"`
}

func (c *CSpanSource) Fetch(ctx context.Context, limit int) ([]domain.Speech, error) {
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", desktopUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cspan api: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return c.fetchByScraping(ctx, limit)
	}
	defer resp.Body.Close()

	var parsed cspanAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode cspan response: %w", err)
	}

	now := time.Now().UTC()
	var results []domain.Speech
	for _, item := range parsed.Items {
		if !c.matchesSubject(item.Title) {
			continue
		}
		results = append(results, domain.Speech{
			ID:            speechID("cspan", item.ID),
			Title:         item.Title,
			Date:          normalizeDate(item.Date),
			Source:        "cspan",
			RallyLocation: extractLocation(item.Title),
			VideoURL:      item.URL,
			Status:        domain.SpeechActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

func (c *CSpanSource) fetchByScraping(ctx context.Context, limit int) ([]domain.Speech, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.personURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build scrape request: %w", err)
	}
	req.Header.Set("User-Agent", desktopUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape person page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cspan person page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse person page: %w", err)
	}

	now := time.Now().UTC()
	var results []domain.Speech

	doc.Find(".views-row, .program-item").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if limit > 0 && len(results) >= limit {
			return false
		}
		link := row.Find("a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if title == "" || !c.matchesSubject(title) {
			return true
		}

		dateText := strings.TrimSpace(row.Find(".date, time").First().Text())

		results = append(results, domain.Speech{
			ID:            speechID("cspan", href+"-"+strconv.Itoa(i)),
			Title:         title,
			Date:          normalizeDate(dateText),
			Source:        "cspan",
			RallyLocation: extractLocation(title),
			VideoURL:      href,
			Status:        domain.SpeechActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		return true
	})

	return results, nil
}

func (c *CSpanSource) matchesSubject(title string) bool {
	if c.subject == "" {
		return true
	}
	return strings.Contains(strings.ToLower(title), strings.ToLower(c.subject))
}
