package keypool

import (
	"testing"
	"time"

	"github.com/archivecast/podgen/internal/domain"
)

func TestNextPrefersHigherPriority(t *testing.T) {
	t.Parallel()
	p := New()
	p.Add("low", 1)
	p.Add("high", 10)

	key, ok := p.Next()
	if !ok || key != "high" {
		t.Fatalf("expected high priority key first, got %q", key)
	}
}

func TestMarkRateLimitedRemovesFromRotation(t *testing.T) {
	t.Parallel()
	p := New()
	p.Add("only", 1)

	if _, ok := p.Next(); !ok {
		t.Fatalf("expected a key before rate limiting")
	}
	p.MarkRateLimited("only", time.Minute)

	if _, ok := p.Next(); ok {
		t.Fatalf("expected no selectable key while rate-limited")
	}
}

func TestMarkErrorInvalidKeyPrunes(t *testing.T) {
	t.Parallel()
	p := New()
	p.Add("bad", 1)
	p.MarkError("bad", domain.KeyErrInvalid)

	if p.Len() != 0 {
		t.Fatalf("expected invalid key to be pruned, len=%d", p.Len())
	}
}

func TestStatsNeverExposesRawKey(t *testing.T) {
	t.Parallel()
	p := New()
	p.Add("sk-or-v1-abcdefghijklmnop", 1)

	stats := p.Stats()
	if len(stats) != 1 {
		t.Fatalf("expected 1 stat entry, got %d", len(stats))
	}
	if stats[0].Prefix == "sk-or-v1-abcdefghijklmnop" {
		t.Fatalf("expected prefix, not raw key")
	}
}
