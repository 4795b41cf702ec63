package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/pkg/config"
	appErrors "github.com/noah-isme/campus-api/pkg/errors"
)

type fakeAuditLister struct {
	entries    []models.AuditLog
	total      int
	err        error
	lastFilter models.AuditFilter
}

func (m *fakeAuditLister) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	m.lastFilter = filter
	if m.err != nil {
		return nil, 0, m.err
	}
	return m.entries, m.total, nil
}

func TestAuditServiceList(t *testing.T) {
	lister := &fakeAuditLister{
		entries: []models.AuditLog{
			{ID: "audit-1", StudentID: "student-1", Action: models.AuditActionEnroll, CreatedAt: time.Now()},
		},
		total: 1,
	}
	svc := NewAuditService(lister, config.EnrollmentConfig{DefaultPageSize: 20, MaxPageSize: 100})

	entries, meta, err := svc.List(context.Background(), models.AuditFilter{
		StudentID: "student-1",
		Action:    models.AuditActionEnroll,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, meta.TotalItems)
	assert.Equal(t, "student-1", lister.lastFilter.StudentID)
	assert.Equal(t, models.AuditActionEnroll, lister.lastFilter.Action)
}

func TestAuditServiceListClampsPagination(t *testing.T) {
	lister := &fakeAuditLister{}
	svc := NewAuditService(lister, config.EnrollmentConfig{DefaultPageSize: 20, MaxPageSize: 100})

	_, meta, err := svc.List(context.Background(), models.AuditFilter{Page: -5, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, meta.CurrentPage)
	assert.Equal(t, 1, lister.lastFilter.Page)
	assert.Equal(t, 100, lister.lastFilter.PageSize)
}

func TestAuditServiceListRepositoryError(t *testing.T) {
	lister := &fakeAuditLister{err: errors.New("connection reset")}
	svc := NewAuditService(lister, config.EnrollmentConfig{DefaultPageSize: 20, MaxPageSize: 100})

	_, _, err := svc.List(context.Background(), models.AuditFilter{})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
}
