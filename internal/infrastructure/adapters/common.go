// Package adapters implements the four concrete source adapters from
// spec §4.2, grounded on the teacher's
// internal/infrastructure/parser/arxiv_scanner.go (HTTP fetch + goquery
// selection + pagination/dedup loop) and internal/scanner/scanner.go
// (the Scanner/Registry shape, now ports.SourceAdapter).
package adapters

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// FetchTimeout bounds a single adapter fetch request (§4.2: "Network
	// timeout: 10 seconds per request").
	FetchTimeout = 10 * time.Second
	// VerifyBudget bounds verify() (§4.2: "within a 5-second budget").
	VerifyBudget = 5 * time.Second
)

// speechID derives the stable, source-prefixed Speech.ID from a source name
// and a provider-local identifier (spec §3 invariant).
func speechID(source, localID string) string {
	return fmt.Sprintf("%s_%s", source, sanitizeID(localID))
}

func sanitizeID(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.ToLower(raw)
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

var dateLayouts = []string{
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"01/02/2006",
}

// normalizeDate parses a free-form date string into YYYY-MM-DD, or returns
// nil when it cannot be recognized (§4.2: "Dates are normalized to
// YYYY-MM-DD or null, never raw").
func normalizeDate(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			s := t.Format("2006-01-02")
			return &s
		}
	}
	return nil
}

var locationExpr = regexp.MustCompile(`\b(?i:in|at)\s+([A-Z][A-Za-z.'\- ]{2,40}?,\s*[A-Z]{2})\b`)

// extractLocation applies the "rally in <City>, <ST>" heuristic to a title;
// returns nil (never empty string) when no location is detectable (§4.2
// edge rule).
func extractLocation(title string) *string {
	m := locationExpr.FindStringSubmatch(title)
	if len(m) != 2 {
		return nil
	}
	loc := strings.TrimSpace(m[1])
	if loc == "" {
		return nil
	}
	return &loc
}
