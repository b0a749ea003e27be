package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movecrm-api/internal/application/directory"
	"movecrm-api/internal/application/guard"
	"movecrm-api/internal/domain/entity"
	"movecrm-api/internal/domain/repository"
	"movecrm-api/internal/interfaces/http/middleware"
	apperrors "movecrm-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeResolver struct {
	record *directory.TenantRecord
}

func (r *fakeResolver) Resolve(_ context.Context, slug string) (*directory.TenantRecord, error) {
	if r.record == nil || r.record.Tenant.Slug != slug {
		return nil, apperrors.ErrUnknownTenant
	}
	return r.record, nil
}

// newTenantContext 通过守卫签发测试用租户凭证
func newTenantContext(t *testing.T, tenantID, slug string) *guard.TenantContext {
	t.Helper()
	tenant := entity.NewTenant("Acme Moving", slug)
	tenant.ID = tenantID
	g := guard.NewGuard(&fakeResolver{record: &directory.TenantRecord{Tenant: tenant}})
	tc, err := g.ResolvePublic(context.Background(), slug)
	require.NoError(t, err)
	return tc
}

// withTenant 将租户凭证注入请求链
func withTenant(tc *guard.TenantContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.TenantContextKey, tc)
	}
}

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func jsonRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

type fakeCatalogRepo struct {
	entries map[string]*entity.ItemCatalogEntry
	created []*entity.ItemCatalogEntry
	updated []*entity.ItemCatalogEntry
	deleted []string
}

func newFakeCatalogRepo() *fakeCatalogRepo {
	return &fakeCatalogRepo{entries: make(map[string]*entity.ItemCatalogEntry)}
}

func (r *fakeCatalogRepo) Create(_ context.Context, entry *entity.ItemCatalogEntry) error {
	entry.ID = "entry-created"
	r.created = append(r.created, entry)
	r.entries[entry.ID] = entry
	return nil
}

func (r *fakeCatalogRepo) GetByID(_ context.Context, tenantID, id string) (*entity.ItemCatalogEntry, error) {
	entry, ok := r.entries[id]
	if !ok || entry.TenantID != tenantID {
		return nil, nil
	}
	return entry, nil
}

func (r *fakeCatalogRepo) Update(_ context.Context, entry *entity.ItemCatalogEntry) error {
	r.updated = append(r.updated, entry)
	r.entries[entry.ID] = entry
	return nil
}

func (r *fakeCatalogRepo) Delete(_ context.Context, _, id string) error {
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakeCatalogRepo) ListActive(_ context.Context, _ string) ([]*entity.ItemCatalogEntry, error) {
	return nil, nil
}

func (r *fakeCatalogRepo) List(_ context.Context, _ string, pagination repository.Pagination) (*repository.PagedResult[*entity.ItemCatalogEntry], error) {
	items := make([]*entity.ItemCatalogEntry, 0, len(r.entries))
	for _, e := range r.entries {
		items = append(items, e)
	}
	return repository.NewPagedResult(items, int64(len(items)), pagination), nil
}

type fakeInvalidator struct {
	slugs []string
}

func (i *fakeInvalidator) Invalidate(_ context.Context, slug string) error {
	i.slugs = append(i.slugs, slug)
	return nil
}

func catalogRouter(t *testing.T, repo *fakeCatalogRepo, inv *fakeInvalidator) *gin.Engine {
	t.Helper()
	h := NewCatalogHandler(repo, inv)
	tc := newTenantContext(t, "tenant-1", "acme")

	r := gin.New()
	r.Use(withTenant(tc))
	r.GET("/catalog", h.List)
	r.POST("/catalog", h.Create)
	r.GET("/catalog/:cid", h.Get)
	r.PUT("/catalog/:cid", h.Update)
	r.DELETE("/catalog/:cid", h.Delete)
	return r
}

func TestCatalogCreate(t *testing.T) {
	repo := newFakeCatalogRepo()
	inv := &fakeInvalidator{}
	r := catalogRouter(t, repo, inv)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/catalog", gin.H{
		"name":             "Sofa",
		"aliases":          []string{"couch"},
		"category":         "furniture",
		"base_volume":      "35",
		"labor_multiplier": "1.2",
	}))

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, repo.created, 1)
	entry := repo.created[0]
	assert.Equal(t, "tenant-1", entry.TenantID)
	assert.Equal(t, "Sofa", entry.Name)
	assert.Equal(t, []string{"couch"}, entry.Aliases)
	assert.True(t, entry.BaseVolume.Equal(decimalFromString(t, "35")))
	assert.True(t, entry.LaborMultiplier.Equal(decimalFromString(t, "1.2")))
	assert.True(t, entry.IsActive)
	assert.Equal(t, []string{"acme"}, inv.slugs)
}

func TestCatalogCreateRejectsNonPositiveVolume(t *testing.T) {
	repo := newFakeCatalogRepo()
	inv := &fakeInvalidator{}
	r := catalogRouter(t, repo, inv)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/catalog", gin.H{
		"name":             "Sofa",
		"base_volume":      "-1",
		"labor_multiplier": "1.2",
	}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, repo.created)
	assert.Empty(t, inv.slugs)
}

func TestCatalogGetNotFound(t *testing.T) {
	repo := newFakeCatalogRepo()
	r := catalogRouter(t, repo, &fakeInvalidator{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/catalog/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"error_code":"4005"`)
}

func TestCatalogUpdatePatchesOnlyProvidedFields(t *testing.T) {
	repo := newFakeCatalogRepo()
	inv := &fakeInvalidator{}
	existing := entity.NewItemCatalogEntry("tenant-1", "Sofa",
		decimalFromString(t, "35"), decimalFromString(t, "1.2"))
	existing.ID = "entry-1"
	repo.entries["entry-1"] = existing

	r := catalogRouter(t, repo, inv)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPut, "/catalog/entry-1", gin.H{
		"name":      "Sectional Sofa",
		"is_active": false,
	}))

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, repo.updated, 1)
	updated := repo.updated[0]
	assert.Equal(t, "Sectional Sofa", updated.Name)
	assert.False(t, updated.IsActive)
	assert.True(t, updated.BaseVolume.Equal(decimalFromString(t, "35")))
	assert.Equal(t, []string{"acme"}, inv.slugs)
}

func TestCatalogDelete(t *testing.T) {
	repo := newFakeCatalogRepo()
	inv := &fakeInvalidator{}
	r := catalogRouter(t, repo, inv)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/catalog/entry-1", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"entry-1"}, repo.deleted)
	assert.Equal(t, []string{"acme"}, inv.slugs)
}
