package guard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movecrm-api/internal/application/directory"
	"movecrm-api/internal/domain/entity"
	apperrors "movecrm-api/pkg/errors"
)

type fakeResolver struct {
	records map[string]*directory.TenantRecord
	err     error
}

func (r *fakeResolver) Resolve(_ context.Context, slug string) (*directory.TenantRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	record, ok := r.records[slug]
	if !ok {
		return nil, apperrors.ErrUnknownTenant
	}
	return record, nil
}

func recordFor(tenantID, slug string) *directory.TenantRecord {
	tenant := entity.NewTenant("Acme Moving", slug)
	tenant.ID = tenantID
	return &directory.TenantRecord{Tenant: tenant}
}

func TestGuardResolvePublic(t *testing.T) {
	g := NewGuard(&fakeResolver{records: map[string]*directory.TenantRecord{
		"acme": recordFor("tenant-1", "acme"),
	}})

	tc, err := g.ResolvePublic(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", tc.TenantID())
	assert.Equal(t, "acme", tc.Slug())
}

func TestGuardResolvePublicEmptySlug(t *testing.T) {
	g := NewGuard(&fakeResolver{})

	_, err := g.ResolvePublic(context.Background(), "")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeUnresolvedTenant, appErr.Code)
}

func TestGuardResolvePublicUnknownTenant(t *testing.T) {
	g := NewGuard(&fakeResolver{records: map[string]*directory.TenantRecord{}})

	_, err := g.ResolvePublic(context.Background(), "nobody")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeUnknownTenant, appErr.Code)
}

func TestGuardResolveStaff(t *testing.T) {
	g := NewGuard(&fakeResolver{records: map[string]*directory.TenantRecord{
		"acme": recordFor("tenant-1", "acme"),
	}})

	tc, err := g.ResolveStaff(context.Background(), "acme", "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", tc.TenantID())
}

func TestGuardResolveStaffMismatch(t *testing.T) {
	g := NewGuard(&fakeResolver{records: map[string]*directory.TenantRecord{
		"acme": recordFor("tenant-1", "acme"),
	}})

	_, err := g.ResolveStaff(context.Background(), "acme", "tenant-2")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeTenantMismatch, appErr.Code)
	// 对外表现与租户不存在一致
	assert.Equal(t, apperrors.ErrUnknownTenant.Message, appErr.Message)
	assert.Equal(t, 404, appErr.HTTPStatus)
}

func TestGuardResolveStaffMissingClaim(t *testing.T) {
	g := NewGuard(&fakeResolver{records: map[string]*directory.TenantRecord{
		"acme": recordFor("tenant-1", "acme"),
	}})

	_, err := g.ResolveStaff(context.Background(), "acme", "")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeUnauthorized, appErr.Code)
}

func TestGuardFailsClosedOnResolutionError(t *testing.T) {
	g := NewGuard(&fakeResolver{err: apperrors.ErrTenantResolutionFailed})

	_, err := g.ResolvePublic(context.Background(), "acme")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeTenantResolutionFailed, appErr.Code)

	_, err = g.ResolveStaff(context.Background(), "acme", "tenant-1")
	appErr, ok = apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeTenantResolutionFailed, appErr.Code)
}
