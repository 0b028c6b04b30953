package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alem-hub/xp-observer/internal/domain/platform"
)

// DefaultCapabilityTTL bounds how long a cached answer may be stale.
const DefaultCapabilityTTL = time.Minute

// StringCache is the part of Cache the capability checker uses.
type StringCache interface {
	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key string, value string, ttl time.Duration) error
}

// CachedCapabilityChecker answers capability checks from Redis and falls back
// to the wrapped checker on a miss. Cache failures never fail a check.
type CachedCapabilityChecker struct {
	next   platform.CapabilityChecker
	cache  StringCache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedCapabilityChecker wraps next. A non-positive ttl uses DefaultCapabilityTTL.
func NewCachedCapabilityChecker(next platform.CapabilityChecker, cache StringCache, ttl time.Duration, logger *slog.Logger) *CachedCapabilityChecker {
	if ttl <= 0 {
		ttl = DefaultCapabilityTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedCapabilityChecker{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With("component", "capability_cache"),
	}
}

// HasCapability implements platform.CapabilityChecker.
func (c *CachedCapabilityChecker) HasCapability(ctx context.Context, capability string, contextID, userID int64) (bool, error) {
	key := CapabilityKey(capability, contextID, userID)

	val, err := c.cache.GetString(ctx, key)
	switch {
	case err == nil:
		return val == "1", nil
	case !errors.Is(err, ErrCacheMiss):
		c.logger.Warn("capability cache read failed", "key", key, "error", err)
	}

	ok, err := c.next.HasCapability(ctx, capability, contextID, userID)
	if err != nil {
		return false, err
	}

	val = "0"
	if ok {
		val = "1"
	}
	if err := c.cache.SetString(ctx, key, val, c.ttl); err != nil {
		c.logger.Warn("capability cache write failed", "key", key, "error", err)
	}

	return ok, nil
}
