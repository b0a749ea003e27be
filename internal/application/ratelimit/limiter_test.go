package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "movecrm-api/pkg/errors"
)

// fakeCounterStore 内存计数器，记录每个 key 的 TTL
type fakeCounterStore struct {
	counts map[string]int64
	ttls   map[string]time.Duration
	err    error
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{
		counts: make(map[string]int64),
		ttls:   make(map[string]time.Duration),
	}
}

func (s *fakeCounterStore) IncrementAndGet(_ context.Context, key string, ttl time.Duration) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.counts[key]++
	if _, ok := s.ttls[key]; !ok {
		s.ttls[key] = ttl
	}
	return s.counts[key], nil
}

func newTestLimiter(store CounterStore, at time.Time) *Limiter {
	l := NewLimiter(store, "test:ratelimit")
	l.now = func() time.Time { return at }
	return l
}

func TestLimiterDeniesAboveTenantLimit(t *testing.T) {
	store := newFakeCounterStore()
	base := time.Date(2025, 6, 1, 12, 0, 10, 0, time.UTC)
	l := newTestLimiter(store, base)

	limits := Limits{Window: 60 * time.Second, MaxRequests: 15}

	for i := 0; i < 15; i++ {
		d, err := l.Check(context.Background(), "tenant-a", "", "public_quote", limits)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should pass", i+1)
	}

	d, err := l.Check(context.Background(), "tenant-a", "", "public_quote", limits)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, 60*time.Second)
}

func TestLimiterPerOriginLimit(t *testing.T) {
	store := newFakeCounterStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(store, base)

	limits := Limits{Window: 60 * time.Second, MaxRequests: 100, MaxPerOrigin: 2}

	for i := 0; i < 2; i++ {
		d, err := l.Check(context.Background(), "tenant-a", "widget.example.com", "public_quote", limits)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	// 同一来源第三次被拒
	d, err := l.Check(context.Background(), "tenant-a", "widget.example.com", "public_quote", limits)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	// 其他来源不受影响
	d, err = l.Check(context.Background(), "tenant-a", "other.example.com", "public_quote", limits)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLimiterWindowRollover(t *testing.T) {
	store := newFakeCounterStore()
	base := time.Date(2025, 6, 1, 12, 0, 59, 0, time.UTC)
	l := newTestLimiter(store, base)

	limits := Limits{Window: 60 * time.Second, MaxRequests: 1}

	d, err := l.Check(context.Background(), "tenant-a", "", "public_quote", limits)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Check(context.Background(), "tenant-a", "", "public_quote", limits)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	// 跨过窗口边界后计数归零
	l.now = func() time.Time { return base.Add(2 * time.Second) }
	d, err = l.Check(context.Background(), "tenant-a", "", "public_quote", limits)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLimiterTenantsIsolated(t *testing.T) {
	store := newFakeCounterStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(store, base)

	limits := Limits{Window: 60 * time.Second, MaxRequests: 1}

	d, err := l.Check(context.Background(), "tenant-a", "", "public_quote", limits)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// tenant-a 已耗尽，不影响 tenant-b
	d, err = l.Check(context.Background(), "tenant-b", "", "public_quote", limits)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLimiterFailsClosedOnStoreError(t *testing.T) {
	store := newFakeCounterStore()
	store.err = errors.New("connection refused")
	l := newTestLimiter(store, time.Now())

	limits := Limits{Window: 60 * time.Second, MaxRequests: 15}

	d, err := l.Check(context.Background(), "tenant-a", "", "public_quote", limits)
	require.Error(t, err)
	assert.False(t, d.Allowed)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeServiceUnavailable, appErr.Code)
}

func TestLimiterCounterTTLMatchesWindow(t *testing.T) {
	store := newFakeCounterStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(store, base)

	limits := Limits{Window: 30 * time.Second, MaxRequests: 5}
	_, err := l.Check(context.Background(), "tenant-a", "", "public_quote", limits)
	require.NoError(t, err)

	for _, ttl := range store.ttls {
		assert.Equal(t, 30*time.Second, ttl)
	}
}
