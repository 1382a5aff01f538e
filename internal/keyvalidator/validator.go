// Package keyvalidator implements the Key Validator (§4.5): format check,
// cache lookup, live probe, and verdict persistence. Grounded on the
// teacher's internal/infrastructure/ml/client.go HTTP post/decode helper
// shape for the probe call, with a process-local read-through cache in
// front of the Catalog Store's KeyValidation table.
package keyvalidator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/archivecast/podgen/internal/apperr"
	"github.com/archivecast/podgen/internal/domain"
	"github.com/archivecast/podgen/internal/infrastructure/llm"
	"github.com/archivecast/podgen/internal/ports"
)

// ModelsProber is the minimal upstream capability the validator needs: a
// "list models" probe that reports how many models a key can see.
type ModelsProber interface {
	ListModels(ctx context.Context, apiKey string) (int, error)
}

// ProbeTimeout bounds the live validation call (§4.5: "10-second timeout").
const ProbeTimeout = 10 * time.Second

const keyPrefix = "sk-or-v1-"

// Validator implements ports.KeyValidator.
type Validator struct {
	store  ports.CatalogStore
	prober ModelsProber
	cache  *lru.Cache[string, domain.KeyValidation]
}

var _ ports.KeyValidator = (*Validator)(nil)

// New wires a validator with a bounded process-local cache in front of the
// store's KeyValidation table (§9: process-wide mutable singletons become
// explicit dependency objects; here the LRU is owned by this component, not
// a global).
func New(store ports.CatalogStore, prober ModelsProber, cacheSize int) (*Validator, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[string, domain.KeyValidation](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Validator{store: store, prober: prober, cache: cache}, nil
}

// hashKey derives the secure, non-reversible cache key (§3: "the key itself
// is never persisted").
func hashKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

// Validate runs the full format→cache→probe pipeline.
func (v *Validator) Validate(ctx context.Context, apiKey string) (domain.KeyValidation, error) {
	if !strings.HasPrefix(apiKey, keyPrefix) {
		code := domain.KeyErrValidationFailed
		return domain.KeyValidation{IsValid: false, ErrorCode: &code}, nil
	}

	hash := hashKey(apiKey)
	now := time.Now().UTC()

	if cached, ok := v.cache.Get(hash); ok && cached.Fresh(now) {
		return cached, nil
	}

	if stored, err := v.store.LookupKeyValidation(ctx, hash); err == nil && stored != nil && stored.Fresh(now) {
		v.cache.Add(hash, *stored)
		return *stored, nil
	}

	result := v.probe(ctx, apiKey, hash, now)

	if err := v.store.CacheKeyValidation(ctx, result); err != nil {
		return result, apperr.Store(err, apperr.StoreIO, "cache key validation verdict")
	}
	v.cache.Add(hash, result)
	return result, nil
}

func (v *Validator) probe(ctx context.Context, apiKey, hash string, now time.Time) domain.KeyValidation {
	probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	result := domain.KeyValidation{
		KeyHash:     hash,
		ValidatedAt: now,
		ExpiresAt:   now.Add(domain.ValidationTTL),
	}

	count, err := v.prober.ListModels(probeCtx, apiKey)
	if err == nil {
		result.IsValid = true
		result.ModelCount = count
		return result
	}

	code := classifyProbeError(err)
	result.IsValid = false
	result.ErrorCode = &code
	return result
}

// classifyProbeError maps a probe failure to a KeyErrorCode per §4.5's
// 401/403/429/network/other outcome table.
func classifyProbeError(err error) domain.KeyErrorCode {
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case 401:
			return domain.KeyErrInvalid
		case 403:
			return domain.KeyErrInsufficientPerms
		case 429:
			return domain.KeyErrRateLimited
		}
		return domain.KeyErrValidationFailed
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.KeyErrNetwork
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return domain.KeyErrNetwork
	}

	return domain.KeyErrValidationFailed
}
