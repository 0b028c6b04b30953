package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	values  map[string]string
	getErr  error
	setErr  error
	lastTTL time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: make(map[string]string)}
}

func (m *memoryCache) GetString(ctx context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (m *memoryCache) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	m.lastTTL = ttl
	return nil
}

type countingChecker struct {
	answer bool
	err    error
	calls  int
}

func (c *countingChecker) HasCapability(ctx context.Context, capability string, contextID, userID int64) (bool, error) {
	c.calls++
	return c.answer, c.err
}

func TestCachedCapabilityChecker_CachesAnswers(t *testing.T) {
	ctx := context.Background()

	for _, answer := range []bool{true, false} {
		next := &countingChecker{answer: answer}
		cache := newMemoryCache()
		checker := NewCachedCapabilityChecker(next, cache, 0, nil)

		for i := 0; i < 3; i++ {
			got, err := checker.HasCapability(ctx, "block/xp:earnxp", 15, 5)
			require.NoError(t, err)
			assert.Equal(t, answer, got)
		}

		assert.Equal(t, 1, next.calls)
		assert.Equal(t, DefaultCapabilityTTL, cache.lastTTL)
	}
}

func TestCachedCapabilityChecker_KeysByContextAndUser(t *testing.T) {
	ctx := context.Background()
	next := &countingChecker{answer: true}
	checker := NewCachedCapabilityChecker(next, newMemoryCache(), time.Second, nil)

	_, _ = checker.HasCapability(ctx, "block/xp:earnxp", 15, 5)
	_, _ = checker.HasCapability(ctx, "block/xp:earnxp", 15, 6)
	_, _ = checker.HasCapability(ctx, "block/xp:earnxp", 16, 5)

	assert.Equal(t, 3, next.calls)
}

func TestCachedCapabilityChecker_CacheFailuresFallThrough(t *testing.T) {
	next := &countingChecker{answer: true}
	cache := newMemoryCache()
	cache.getErr = errors.New("connection refused")
	cache.setErr = errors.New("connection refused")
	checker := NewCachedCapabilityChecker(next, cache, time.Second, nil)

	got, err := checker.HasCapability(context.Background(), "block/xp:earnxp", 15, 5)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestCachedCapabilityChecker_DoesNotCacheErrors(t *testing.T) {
	next := &countingChecker{err: errors.New("db down")}
	cache := newMemoryCache()
	checker := NewCachedCapabilityChecker(next, cache, time.Second, nil)

	_, err := checker.HasCapability(context.Background(), "block/xp:earnxp", 15, 5)
	require.Error(t, err)
	assert.Empty(t, cache.values)
}

func TestCapabilityKey(t *testing.T) {
	assert.Equal(t, "block_xp:cap:block/xp:earnxp:15:5", CapabilityKey("block/xp:earnxp", 15, 5))
}
