package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWhiteHouseSourceFetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/robots.txt":
			w.WriteHeader(http.StatusNotFound)
		case strings.HasPrefix(r.URL.Path, "/briefing-room/speeches-remarks/") && r.URL.Path != "/briefing-room/speeches-remarks/detail":
			_, _ = w.Write([]byte(`
			<html><body>
			<li class="briefing-room__item">
				<a href="/briefing-room/speeches-remarks/detail">Remarks at a rally in Reno, NV</a>
				<time datetime="2025-11-08">November 8, 2025</time>
			</li>
			</body></html>`))
		default:
			_, _ = w.Write([]byte(`<html><body><article><p>Full remarks text goes here.</p></article></body></html>`))
		}
	}))
	defer server.Close()

	src := NewWhiteHouseSource(server.Client(), server.URL)

	speeches, err := src.Fetch(context.Background(), 5)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(speeches) != 1 {
		t.Fatalf("expected 1 speech, got %d", len(speeches))
	}

	got := speeches[0]
	if got.Source != "whitehouse" {
		t.Fatalf("unexpected source: %s", got.Source)
	}
	if got.Date == nil || *got.Date != "2025-11-08" {
		t.Fatalf("unexpected date: %v", got.Date)
	}
	if got.RallyLocation == nil || *got.RallyLocation != "Reno, NV" {
		t.Fatalf("unexpected location: %v", got.RallyLocation)
	}
}

func TestWhiteHouseSourceVerifyRobotsDisallow(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /briefing-room/speeches-remarks/\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	src := NewWhiteHouseSource(server.Client(), server.URL)
	result := src.Verify(context.Background())
	if result.Available {
		t.Fatalf("expected disallowed, got %+v", result)
	}
	if result.Method != "robots.txt" {
		t.Fatalf("expected robots.txt method, got %s", result.Method)
	}
}
