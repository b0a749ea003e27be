package detectionflow

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movecrm-api/internal/application/aggregate"
	"movecrm-api/internal/application/directory"
	"movecrm-api/internal/application/guard"
	"movecrm-api/internal/application/pricing"
	"movecrm-api/internal/application/quoteflow"
	"movecrm-api/internal/application/ratelimit"
	"movecrm-api/internal/domain/entity"
	"movecrm-api/internal/domain/repository"
	"movecrm-api/internal/infrastructure/messaging"
	apperrors "movecrm-api/pkg/errors"
)

type staticResolver struct {
	record *directory.TenantRecord
	err    error
}

func (r *staticResolver) Resolve(_ context.Context, _ string) (*directory.TenantRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.record, nil
}

type fakeDetector struct {
	results []entity.DetectionResult
	err     error
	calls   int
}

func (d *fakeDetector) Detect(_ context.Context, _ []string, _ string) ([]entity.DetectionResult, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.results, nil
}

type fakePublisher struct {
	published []*messaging.DetectionJobMessage
	err       error
}

func (p *fakePublisher) PublishDetectionJob(_ context.Context, job *messaging.DetectionJobMessage) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.published = append(p.published, job)
	return "1-0", nil
}

type fakeJobRepo struct {
	repository.DetectionJobRepository
	jobs map[string]*entity.DetectionJob
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[string]*entity.DetectionJob)}
}

func (r *fakeJobRepo) Create(_ context.Context, job *entity.DetectionJob) error {
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeJobRepo) GetByID(_ context.Context, tenantID, id string) (*entity.DetectionJob, error) {
	job, ok := r.jobs[id]
	if !ok || job.TenantID != tenantID {
		return nil, nil
	}
	return job, nil
}

func (r *fakeJobRepo) UpdateStatus(_ context.Context, _, id string, status entity.DetectionJobStatus) error {
	if job, ok := r.jobs[id]; ok {
		job.Status = status
	}
	return nil
}

func (r *fakeJobRepo) Complete(_ context.Context, _, id string, results []entity.DetectionResult) error {
	if job, ok := r.jobs[id]; ok {
		job.Status = entity.DetectionJobStatusCompleted
		job.Results = results
	}
	return nil
}

func (r *fakeJobRepo) Fail(_ context.Context, _, id, errMsg string) error {
	if job, ok := r.jobs[id]; ok {
		job.Status = entity.DetectionJobStatusFailed
		job.ErrorMessage = errMsg
	}
	return nil
}

type fakeCounterStore struct {
	counts map[string]int64
}

func (s *fakeCounterStore) IncrementAndGet(_ context.Context, key string, _ time.Duration) (int64, error) {
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
	quotes map[string]*entity.Quote
}

func newFakeQuoteRepo() *fakeQuoteRepo {
	return &fakeQuoteRepo{quotes: make(map[string]*entity.Quote)}
}

func (r *fakeQuoteRepo) GetByID(_ context.Context, tenantID, id string) (*entity.Quote, error) {
	q, ok := r.quotes[id]
	if !ok || q.TenantID != tenantID {
		return nil, nil
	}
	return q, nil
}

func (r *fakeQuoteRepo) UpdateTotals(_ context.Context, q *entity.Quote) error {
	r.quotes[q.ID] = q
	return nil
}

func (r *fakeQuoteRepo) AddItem(_ context.Context, _ string, _ *entity.QuoteItem) error {
	return nil
}

func demoRecord() *directory.TenantRecord {
	tenant := entity.NewTenant("Demo Moving", "demo")
	tenant.ID = "tenant-1"

	sofa := entity.NewItemCatalogEntry("tenant-1", "Sofa",
		decimal.RequireFromString("35.0"), decimal.RequireFromString("1.2"))
	sofa.ID = "c1"
	sofa.Aliases = []string{"couch"}

	rule := entity.NewPricingRule("tenant-1", "standard")
	rule.ID = "rule-1"
	rule.RatePerVolumeUnit = decimal.RequireFromString("1.50")
	rule.LaborRatePerHour = decimal.RequireFromString("75.00")
	rule.MinimumCharge = decimal.RequireFromString("150.00")
	rule.TaxRate = decimal.RequireFromString("0.085")

	return &directory.TenantRecord{
		Tenant:      tenant,
		Catalog:     []*entity.ItemCatalogEntry{sofa},
		DefaultRule: rule,
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
}

type pipelineEnv struct {
	pipeline  *Pipeline
	detector  *fakeDetector
	publisher *fakePublisher
	jobs      *fakeJobRepo
	quotes    *fakeQuoteRepo
	tc        *guard.TenantContext
}

func newPipelineEnv(t *testing.T, resolver *staticResolver) *pipelineEnv {
	t.Helper()
	g := guard.NewGuard(resolver)
	detector := &fakeDetector{}
	publisher := &fakePublisher{}
	jobs := newFakeJobRepo()
	quotes := newFakeQuoteRepo()

	assembler := quoteflow.NewAssembler(
		ratelimit.NewLimiter(&fakeCounterStore{}, "test:ratelimit"),
		aggregate.NewAggregator(),
		pricing.NewCalculator(),
		quotes,
		fakeTx{},
		fakeTenantCtx{},
		30,
	)

	tc, err := g.ResolvePublic(context.Background(), "demo")
	if resolver.err == nil {
		require.NoError(t, err)
	}

	return &pipelineEnv{
		pipeline:  NewPipeline(g, detector, publisher, jobs, quotes, assembler),
		detector:  detector,
		publisher: publisher,
		jobs:      jobs,
		quotes:    quotes,
		tc:        tc,
	}
}

func seedPendingQuote(env *pipelineEnv, id string) *entity.Quote {
	quote := &entity.Quote{
		ID:       id,
		TenantID: "tenant-1",
		Status:   entity.QuoteStatusPending,
		Subtotal: decimal.RequireFromString("150.00"),
	}
	env.quotes.quotes[id] = quote
	return quote
}

func TestEnqueueCreatesAndPublishesJob(t *testing.T) {
	env := newPipelineEnv(t, &staticResolver{record: demoRecord()})
	seedPendingQuote(env, "q1")

	job, err := env.pipeline.Enqueue(context.Background(), env.tc, "q1",
		[]string{"https://cdn.example.com/a.jpg"}, "furniture")
	require.NoError(t, err)

	assert.Equal(t, entity.DetectionJobStatusPending, job.Status)
	assert.NotEmpty(t, job.ID)
	require.Len(t, env.publisher.published, 1)
	assert.Equal(t, job.ID, env.publisher.published[0].JobID)
	assert.Equal(t, "demo", env.publisher.published[0].TenantSlug)
	assert.Equal(t, "q1", env.publisher.published[0].QuoteID)
}

func TestEnqueueUnknownQuote(t *testing.T) {
	env := newPipelineEnv(t, &staticResolver{record: demoRecord()})

	_, err := env.pipeline.Enqueue(context.Background(), env.tc, "missing", []string{"u"}, "")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeQuoteNotFound, appErr.Code)
	assert.Empty(t, env.publisher.published)
}

func TestEnqueueNonPendingQuote(t *testing.T) {
	env := newPipelineEnv(t, &staticResolver{record: demoRecord()})
	quote := seedPendingQuote(env, "q1")
	quote.Status = entity.QuoteStatusApproved

	_, err := env.pipeline.Enqueue(context.Background(), env.tc, "q1", []string{"u"}, "")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInvalidTransition, appErr.Code)
}

func detectionMessage(t *testing.T, payload *messaging.DetectionJobMessage) *messaging.Message {
	t.Helper()
	msg, err := messaging.NewMessage(payload.JobID, messaging.MsgTypeDetectionJob, payload.TenantID, payload.QuoteID, payload)
	require.NoError(t, err)
	return msg
}

func TestProcessCompletesJobAndRepricesQuote(t *testing.T) {
	env := newPipelineEnv(t, &staticResolver{record: demoRecord()})
	seedPendingQuote(env, "q1")
	env.jobs.jobs["j1"] = &entity.DetectionJob{ID: "j1", TenantID: "tenant-1", QuoteID: "q1", Status: entity.DetectionJobStatusPending}
	env.detector.results = []entity.DetectionResult{
		{Name: "couch", Confidence: 0.92},
	}

	err := env.pipeline.Process(context.Background(), detectionMessage(t, &messaging.DetectionJobMessage{
		JobID: "j1", TenantID: "tenant-1", TenantSlug: "demo", QuoteID: "q1",
		MediaURLs: []string{"https://cdn.example.com/a.jpg"},
	}))
	require.NoError(t, err)

	job := env.jobs.jobs["j1"]
	assert.Equal(t, entity.DetectionJobStatusCompleted, job.Status)
	require.Len(t, job.Results, 1)

	quote := env.quotes.quotes["q1"]
	require.Len(t, quote.Items, 1)
	assert.Equal(t, "Sofa", quote.Items[0].RawLabel)
	assert.True(t, quote.Subtotal.Equal(decimal.RequireFromString("3202.5")), "subtotal=%s", quote.Subtotal)
}

func TestProcessDetectionFailureMarksJobFailedAndRetries(t *testing.T) {
	env := newPipelineEnv(t, &staticResolver{record: demoRecord()})
	seedPendingQuote(env, "q1")
	env.jobs.jobs["j1"] = &entity.DetectionJob{ID: "j1", TenantID: "tenant-1", QuoteID: "q1", Status: entity.DetectionJobStatusPending}
	env.detector.err = apperrors.ErrDetectionUnavailable

	err := env.pipeline.Process(context.Background(), detectionMessage(t, &messaging.DetectionJobMessage{
		JobID: "j1", TenantID: "tenant-1", TenantSlug: "demo", QuoteID: "q1",
		MediaURLs: []string{"u"},
	}))
	require.Error(t, err)
	assert.Equal(t, entity.DetectionJobStatusFailed, env.jobs.jobs["j1"].Status)
}

func TestProcessUnknownTenantFailsJobWithoutRetry(t *testing.T) {
	env := newPipelineEnv(t, &staticResolver{err: apperrors.ErrUnknownTenant})
	env.jobs.jobs["j1"] = &entity.DetectionJob{ID: "j1", TenantID: "tenant-1", QuoteID: "q1", Status: entity.DetectionJobStatusPending}

	err := env.pipeline.Process(context.Background(), detectionMessage(t, &messaging.DetectionJobMessage{
		JobID: "j1", TenantID: "tenant-1", TenantSlug: "demo", QuoteID: "q1",
		MediaURLs: []string{"u"},
	}))
	require.NoError(t, err)
	assert.Equal(t, entity.DetectionJobStatusFailed, env.jobs.jobs["j1"].Status)
	assert.Zero(t, env.detector.calls)
}

func TestProcessResolutionFailureRetries(t *testing.T) {
	env := newPipelineEnv(t, &staticResolver{err: apperrors.ErrTenantResolutionFailed})
	env.jobs.jobs["j1"] = &entity.DetectionJob{ID: "j1", TenantID: "tenant-1", QuoteID: "q1", Status: entity.DetectionJobStatusPending}

	err := env.pipeline.Process(context.Background(), detectionMessage(t, &messaging.DetectionJobMessage{
		JobID: "j1", TenantID: "tenant-1", TenantSlug: "demo", QuoteID: "q1",
		MediaURLs: []string{"u"},
	}))
	require.Error(t, err)
	// 任务保持待处理，等待下次投递
	assert.Equal(t, entity.DetectionJobStatusPending, env.jobs.jobs["j1"].Status)
}

func TestProcessQuoteNoLongerPendingKeepsResults(t *testing.T) {
	env := newPipelineEnv(t, &staticResolver{record: demoRecord()})
	quote := seedPendingQuote(env, "q1")
	quote.Status = entity.QuoteStatusApproved
	env.jobs.jobs["j1"] = &entity.DetectionJob{ID: "j1", TenantID: "tenant-1", QuoteID: "q1", Status: entity.DetectionJobStatusPending}
	env.detector.results = []entity.DetectionResult{{Name: "couch", Confidence: 0.92}}

	err := env.pipeline.Process(context.Background(), detectionMessage(t, &messaging.DetectionJobMessage{
		JobID: "j1", TenantID: "tenant-1", TenantSlug: "demo", QuoteID: "q1",
		MediaURLs: []string{"u"},
	}))
	require.NoError(t, err)

	// 识别结果保留在任务记录，报价保持不变
	assert.Equal(t, entity.DetectionJobStatusCompleted, env.jobs.jobs["j1"].Status)
	assert.Empty(t, env.quotes.quotes["q1"].Items)
}
