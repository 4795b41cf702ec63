package service

import (
	"context"

	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/pkg/config"
	appErrors "github.com/noah-isme/campus-api/pkg/errors"
	"github.com/noah-isme/campus-api/pkg/pagination"
)

type auditLister interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

// AuditService serves the read side of the append-only audit trail.
type AuditService struct {
	audits auditLister
	cfg    config.EnrollmentConfig
}

// NewAuditService constructs AuditService.
func NewAuditService(audits auditLister, cfg config.EnrollmentConfig) *AuditService {
	return &AuditService{audits: audits, cfg: cfg}
}

// List returns audit entries matching the filter, newest first.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *pagination.Meta, error) {
	page := pagination.NewPage(filter.Page, filter.PageSize, s.cfg.DefaultPageSize, s.cfg.MaxPageSize)
	filter.Page = page.Number
	filter.PageSize = page.Size

	entries, total, err := s.audits.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	return entries, pagination.NewMeta(page, total), nil
}
