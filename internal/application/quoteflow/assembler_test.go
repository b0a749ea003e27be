package quoteflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movecrm-api/internal/application/aggregate"
	"movecrm-api/internal/application/directory"
	"movecrm-api/internal/application/guard"
	"movecrm-api/internal/application/pricing"
	"movecrm-api/internal/application/ratelimit"
	"movecrm-api/internal/domain/entity"
	"movecrm-api/internal/domain/repository"
	apperrors "movecrm-api/pkg/errors"
)

type staticResolver struct {
	record *directory.TenantRecord
}

func (r *staticResolver) Resolve(_ context.Context, _ string) (*directory.TenantRecord, error) {
	return r.record, nil
}

type fakeCounterStore struct {
	counts map[string]int64
	err    error
}

func (s *fakeCounterStore) IncrementAndGet(_ context.Context, key string, _ time.Duration) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	if s.counts == nil {
		s.counts = make(map[string]int64)
	}
	s.counts[key]++
	return s.counts[key], nil
}

type fakeTx struct{}

func (fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeTenantCtx struct{}

func (fakeTenantCtx) SetTenant(context.Context, string) error { return nil }
func (fakeTenantCtx) ClearTenant(context.Context) error       { return nil }

type fakeQuoteRepo struct {
	repository.QuoteRepository
	quotes       map[string]*entity.Quote
	seq          int64
	expiredCount int64
}

func newFakeQuoteRepo() *fakeQuoteRepo {
	return &fakeQuoteRepo{quotes: make(map[string]*entity.Quote)}
}

func (r *fakeQuoteRepo) Create(_ context.Context, q *entity.Quote) error {
	r.quotes[q.ID] = q
	return nil
}

func (r *fakeQuoteRepo) GetByID(_ context.Context, tenantID, id string) (*entity.Quote, error) {
	q, ok := r.quotes[id]
	if !ok || q.TenantID != tenantID {
		return nil, nil
	}
	return q, nil
}

func (r *fakeQuoteRepo) UpdateStatus(_ context.Context, tenantID, id string, from, to entity.QuoteStatus) error {
	q, ok := r.quotes[id]
	if !ok || q.TenantID != tenantID || q.Status != from {
		return apperrors.ErrInvalidTransition
	}
	q.Status = to
	return nil
}

func (r *fakeQuoteRepo) UpdateTotals(_ context.Context, q *entity.Quote) error {
	r.quotes[q.ID] = q
	return nil
}

func (r *fakeQuoteRepo) AddItem(_ context.Context, _ string, _ *entity.QuoteItem) error {
	return nil
}

func (r *fakeQuoteRepo) RemoveItem(_ context.Context, _, _, _ string) error {
	return nil
}

func (r *fakeQuoteRepo) NextSequence(_ context.Context, _ string, _ time.Time) (int64, error) {
	r.seq++
	return r.seq, nil
}

func (r *fakeQuoteRepo) ExpireStale(_ context.Context, _ time.Time) (int64, error) {
	return r.expiredCount, nil
}

func demoRecord(withRule bool) *directory.TenantRecord {
	tenant := entity.NewTenant("Demo Moving", "demo")
	tenant.ID = "tenant-1"

	sofa := entity.NewItemCatalogEntry("tenant-1", "Sofa",
		decimal.RequireFromString("35.0"), decimal.RequireFromString("1.2"))
	sofa.ID = "c1"
	sofa.Aliases = []string{"couch"}

	record := &directory.TenantRecord{
		Tenant:  tenant,
		Catalog: []*entity.ItemCatalogEntry{sofa},
		Limits: directory.EffectiveLimits{
			WindowSeconds:      60,
			PublicMaxRequests:  15,
			PublicMaxPerOrigin: 15,
			StaffMaxRequests:   120,
			StaffMaxPerOrigin:  60,
		},
		Settings: directory.EffectiveSettings{
			DetectionThreshold:    0.4,
			UnknownItemVolume:     "10.0",
			UnknownItemLaborHours: "0.5",
		},
	}
	if withRule {
		rule := entity.NewPricingRule("tenant-1", "standard")
		rule.ID = "rule-1"
		rule.RatePerVolumeUnit = decimal.RequireFromString("1.50")
		rule.LaborRatePerHour = decimal.RequireFromString("75.00")
		rule.MinimumCharge = decimal.RequireFromString("150.00")
		rule.TaxRate = decimal.RequireFromString("0.085")
		rule.IsDefault = true
		record.DefaultRule = rule
	}
	return record
}

func tenantContext(t *testing.T, record *directory.TenantRecord) *guard.TenantContext {
	t.Helper()
	tc, err := guard.NewGuard(&staticResolver{record: record}).ResolvePublic(context.Background(), "demo")
	require.NoError(t, err)
	return tc
}

type testEnv struct {
	assembler *Assembler
	quotes    *fakeQuoteRepo
	store     *fakeCounterStore
}

func newTestEnv(t *testing.T, record *directory.TenantRecord) (*testEnv, *guard.TenantContext) {
	t.Helper()
	store := &fakeCounterStore{}
	quotes := newFakeQuoteRepo()
	a := NewAssembler(
		ratelimit.NewLimiter(store, "test:ratelimit"),
		aggregate.NewAggregator(),
		pricing.NewCalculator(),
		quotes,
		fakeTx{},
		fakeTenantCtx{},
		30,
	)
	a.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return &testEnv{assembler: a, quotes: quotes, store: store}, tenantContext(t, record)
}

func floatPtr(v float64) *float64 { return &v }

func TestSubmitCreatesPendingQuote(t *testing.T) {
	env, tc := newTestEnv(t, demoRecord(true))

	quote, err := env.assembler.Submit(context.Background(), tc, SubmitInput{
		Source:       SourcePublic,
		Origin:       "widget.example.com",
		CustomerName: "Jane Doe",
		Items: []entity.DetectedItem{
			{RawLabel: "couch", Confidence: floatPtr(0.9), Quantity: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, entity.QuoteStatusPending, quote.Status)
	assert.Equal(t, "Q2025060001", quote.QuoteNumber)
	assert.True(t, quote.Subtotal.Equal(decimal.RequireFromString("3202.5")), "subtotal=%s", quote.Subtotal)
	assert.True(t, quote.Tax.Equal(decimal.RequireFromString("272.21")))
	assert.True(t, quote.Total.Equal(decimal.RequireFromString("3474.71")))
	assert.Equal(t, "rule-1", quote.PricingRuleID)
	require.NotNil(t, quote.ExpiresAt)
	assert.Equal(t, time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC), *quote.ExpiresAt)
	require.Len(t, quote.Items, 1)
	assert.Equal(t, quote.ID, quote.Items[0].QuoteID)

	// 已持久化
	assert.Len(t, env.quotes.quotes, 1)
}

func TestSubmitSequentialNumbers(t *testing.T) {
	env, tc := newTestEnv(t, demoRecord(true))

	first, err := env.assembler.Submit(context.Background(), tc, SubmitInput{Source: SourcePublic})
	require.NoError(t, err)
	second, err := env.assembler.Submit(context.Background(), tc, SubmitInput{Source: SourcePublic})
	require.NoError(t, err)

	assert.Equal(t, "Q2025060001", first.QuoteNumber)
	assert.Equal(t, "Q2025060002", second.QuoteNumber)
}

func TestSubmitAbortsOnNoPricingRule(t *testing.T) {
	env, tc := newTestEnv(t, demoRecord(false))

	_, err := env.assembler.Submit(context.Background(), tc, SubmitInput{
		Source: SourcePublic,
		Items: []entity.DetectedItem{
			{RawLabel: "couch", Confidence: floatPtr(0.9), Quantity: 1},
		},
	})
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeNoPricingRule, appErr.Code)

	// 计价失败不落任何数据
	assert.Empty(t, env.quotes.quotes)
}

func TestSubmitRateLimited(t *testing.T) {
	record := demoRecord(true)
	record.Limits.PublicMaxRequests = 2
	env, tc := newTestEnv(t, record)

	for i := 0; i < 2; i++ {
		_, err := env.assembler.Submit(context.Background(), tc, SubmitInput{Source: SourcePublic})
		require.NoError(t, err)
	}

	_, err := env.assembler.Submit(context.Background(), tc, SubmitInput{Source: SourcePublic})
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeRateLimited, appErr.Code)
	assert.Greater(t, appErr.RetryAfter, 0)
	assert.LessOrEqual(t, appErr.RetryAfter, 60)

	// 被限流的请求不产生报价
	assert.Len(t, env.quotes.quotes, 2)
}

func TestSubmitFailsClosedOnCounterStoreError(t *testing.T) {
	env, tc := newTestEnv(t, demoRecord(true))
	env.store.err = errors.New("connection refused")

	_, err := env.assembler.Submit(context.Background(), tc, SubmitInput{Source: SourcePublic})
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeServiceUnavailable, appErr.Code)
	assert.Empty(t, env.quotes.quotes)
}

func TestApproveFromPending(t *testing.T) {
	env, tc := newTestEnv(t, demoRecord(true))
	quote, err := env.assembler.Submit(context.Background(), tc, SubmitInput{Source: SourcePublic})
	require.NoError(t, err)

	approved, err := env.assembler.Approve(context.Background(), tc, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.QuoteStatusApproved, approved.Status)
}

func TestApproveTwiceFails(t *testing.T) {
	env, tc := newTestEnv(t, demoRecord(true))
	quote, err := env.assembler.Submit(context.Background(), tc, SubmitInput{Source: SourcePublic})
	require.NoError(t, err)

	_, err = env.assembler.Approve(context.Background(), tc, quote.ID)
	require.NoError(t, err)

	_, err = env.assembler.Approve(context.Background(), tc, quote.ID)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInvalidTransition, appErr.Code)
}

func TestRejectFromPending(t *testing.T) {
	env, tc := newTestEnv(t, demoRecord(true))
	quote, err := env.assembler.Submit(context.Background(), tc, SubmitInput{Source: SourcePublic})
	require.NoError(t, err)

	rejected, err := env.assembler.Reject(context.Background(), tc, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.QuoteStatusRejected, rejected.Status)

	// rejected 为终态
	_, err = env.assembler.Approve(context.Background(), tc, quote.ID)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInvalidTransition, appErr.Code)
}

func TestTransitionUnknownQuote(t *testing.T) {
	env, tc := newTestEnv(t, demoRecord(true))

	_, err := env.assembler.Approve(context.Background(), tc, "no-such-quote")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeQuoteNotFound, appErr.Code)
}

func TestAppendItemsReprices(t *testing.T) {
	env, tc := newTestEnv(t, demoRecord(true))
	quote, err := env.assembler.Submit(context.Background(), tc, SubmitInput{Source: SourcePublic})
	require.NoError(t, err)
	assert.True(t, quote.Subtotal.Equal(decimal.RequireFromString("150.00")))

	updated, err := env.assembler.AppendItems(context.Background(), tc, quote.ID, []entity.DetectedItem{
		{RawLabel: "couch", Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	assert.True(t, updated.Subtotal.Equal(decimal.RequireFromString("3202.5")), "subtotal=%s", updated.Subtotal)
	assert.True(t, updated.Total.Equal(decimal.RequireFromString("3474.71")))
}

func TestAppendItemsRejectedForApprovedQuote(t *testing.T) {
	env, tc := newTestEnv(t, demoRecord(true))
	quote, err := env.assembler.Submit(context.Background(), tc, SubmitInput{Source: SourcePublic})
	require.NoError(t, err)
	_, err = env.assembler.Approve(context.Background(), tc, quote.ID)
	require.NoError(t, err)

	_, err = env.assembler.AppendItems(context.Background(), tc, quote.ID, []entity.DetectedItem{
		{RawLabel: "couch", Quantity: 1},
	})
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInvalidTransition, appErr.Code)
}

func TestExpireStale(t *testing.T) {
	env, tc := newTestEnv(t, demoRecord(true))
	_ = tc
	env.quotes.expiredCount = 3

	count, err := env.assembler.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
