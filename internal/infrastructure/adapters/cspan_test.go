package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCSpanSourceFetchViaAPI(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"items": [
				{"id": "123", "title": "Senator Smith on the Economy", "date": "2025-11-08", "url": "https://c-span.org/video/123"},
				{"id": "456", "title": "Unrelated Speaker Remarks", "date": "2025-11-01", "url": "https://c-span.org/video/456"}
			]
		}`))
	}))
	defer server.Close()

	src := NewCSpanSource(server.Client(), server.URL+"/api", server.URL+"/person", "Smith")

	speeches, err := src.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(speeches) != 1 {
		t.Fatalf("expected 1 speech, got %d", len(speeches))
	}
	if speeches[0].ID != "cspan_123" {
		t.Fatalf("unexpected id: %s", speeches[0].ID)
	}
}

func TestCSpanSourceFallsBackToScraping(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/person":
			_, _ = w.Write([]byte(`
			<html><body>
			<div class="views-row">
				<a href="/video/789">Senator Smith rally in Tampa, FL</a>
				<span class="date">2025-10-01</span>
			</div>
			</body></html>`))
		}
	}))
	defer server.Close()

	src := NewCSpanSource(server.Client(), server.URL+"/api", server.URL+"/person", "Smith")

	speeches, err := src.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(speeches) != 1 {
		t.Fatalf("expected 1 speech, got %d", len(speeches))
	}
	if speeches[0].RallyLocation == nil || *speeches[0].RallyLocation != "Tampa, FL" {
		t.Fatalf("unexpected location: %v", speeches[0].RallyLocation)
	}
}
