package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-api/internal/dto"
	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/internal/repository"
	"github.com/noah-isme/campus-api/pkg/config"
	appErrors "github.com/noah-isme/campus-api/pkg/errors"
	"github.com/noah-isme/campus-api/pkg/pagination"
)

type approvalStore interface {
	Create(ctx context.Context, request *models.ApprovalRequest) error
	FindByID(ctx context.Context, id string) (*models.ApprovalRequest, error)
	UpdateReview(ctx context.Context, params repository.UpdateReviewParams) error
	Resubmit(ctx context.Context, id, reason string, documents []byte) error
	List(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalRequest, int, error)
}

// approvalTxStores bundles the repositories bound to one open transaction.
type approvalTxStores struct {
	approvals approvalStore
	audits    auditAppender
}

// ApprovalService runs the override request lifecycle: submit, review,
// resubmit after revision, and listings. Status transitions and their audit
// entries commit together.
type ApprovalService struct {
	db        *sqlx.DB
	stores    func(tx *sqlx.Tx) approvalTxStores
	approvals approvalStore
	validator *validator.Validate
	cfg       config.EnrollmentConfig
	logger    *zap.Logger
}

// NewApprovalService constructs ApprovalService.
func NewApprovalService(db *sqlx.DB, stores func(tx *sqlx.Tx) approvalTxStores, approvals approvalStore, validate *validator.Validate, cfg config.EnrollmentConfig, logger *zap.Logger) *ApprovalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{db: db, stores: stores, approvals: approvals, validator: validate, cfg: cfg, logger: logger}
}

// Submit creates an override request in PENDING status.
func (s *ApprovalService) Submit(ctx context.Context, principal *models.Principal, studentID string, req dto.SubmitApprovalRequest) (*models.ApprovalRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if !models.ValidApprovalType(models.ApprovalType(req.Type)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown approval type")
	}

	request := &models.ApprovalRequest{
		StudentID:           studentID,
		CourseID:            req.CourseID,
		FacultyID:           req.FacultyID,
		Type:                models.ApprovalType(req.Type),
		Status:              models.ApprovalStatusPending,
		Reason:              req.Reason,
		SupportingDocuments: req.Documents,
	}

	err := s.inTx(ctx, func(stores approvalTxStores) error {
		if err := stores.approvals.Create(ctx, request); err != nil {
			return err
		}
		return stores.audits.Create(ctx, newAuditEntry(principal, studentID, &request.CourseID, nil,
			models.AuditActionApprovalSubmitted,
			mustDetails(map[string]interface{}{"request_id": request.ID, "type": request.Type, "faculty_id": request.FacultyID})))
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit approval request")
	}
	return request, nil
}

// Review applies a reviewer decision. Only the faculty member named on the
// request may review it; APPROVED and REJECTED are terminal, and the first
// committed review wins any race.
func (s *ApprovalService) Review(ctx context.Context, principal *models.Principal, reviewerFacultyID, requestID string, req dto.ReviewApprovalRequest) (*models.ApprovalRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	request, err := s.approvals.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "approval request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval request")
	}
	if request.FacultyID != reviewerFacultyID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned faculty member may review this request")
	}
	if request.Status == models.ApprovalStatusApproved || request.Status == models.ApprovalStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrConflict, "approval request already reviewed")
	}
	if request.Status != models.ApprovalStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "approval request is awaiting resubmission")
	}

	var status models.ApprovalStatus
	var auditAction string
	switch req.Action {
	case "approve":
		status = models.ApprovalStatusApproved
		auditAction = models.AuditActionApprovalApproved
	case "reject":
		status = models.ApprovalStatusRejected
		auditAction = models.AuditActionApprovalRejected
	default:
		status = models.ApprovalStatusNeedsRevision
		auditAction = models.AuditActionApprovalRevision
	}

	now := time.Now().UTC()
	params := repository.UpdateReviewParams{ID: requestID, Status: status, ReviewedAt: now}
	if req.Notes != "" {
		params.Notes = &req.Notes
	}
	if req.Conditions != "" && status == models.ApprovalStatusApproved {
		params.Conditions = &req.Conditions
	}

	err = s.inTx(ctx, func(stores approvalTxStores) error {
		if err := stores.approvals.UpdateReview(ctx, params); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrConflict, "approval request already reviewed")
			}
			return err
		}
		return stores.audits.Create(ctx, newAuditEntry(principal, request.StudentID, &request.CourseID, nil, auditAction,
			mustDetails(map[string]interface{}{"request_id": requestID, "type": request.Type})))
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review approval request")
	}

	request.Status = status
	request.ReviewedAt = &now
	request.ReviewerNotes = params.Notes
	request.ApprovalConditions = params.Conditions
	return request, nil
}

// Resubmit returns a NEEDS_REVISION request to PENDING with updated content.
func (s *ApprovalService) Resubmit(ctx context.Context, principal *models.Principal, studentID, requestID string, req dto.ResubmitApprovalRequest) (*models.ApprovalRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	request, err := s.approvals.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "approval request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval request")
	}
	if request.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requesting student may resubmit")
	}

	err = s.inTx(ctx, func(stores approvalTxStores) error {
		if err := stores.approvals.Resubmit(ctx, requestID, req.Reason, req.Documents); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrConflict, "approval request is not awaiting revision")
			}
			return err
		}
		return stores.audits.Create(ctx, newAuditEntry(principal, studentID, &request.CourseID, nil,
			models.AuditActionApprovalSubmitted,
			mustDetails(map[string]interface{}{"request_id": requestID, "type": request.Type, "resubmitted": true})))
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resubmit approval request")
	}

	request.Status = models.ApprovalStatusPending
	request.Reason = req.Reason
	request.SupportingDocuments = req.Documents
	request.ReviewedAt = nil
	request.ReviewerNotes = nil
	return request, nil
}

// Get returns a single approval request.
func (s *ApprovalService) Get(ctx context.Context, requestID string) (*models.ApprovalRequest, error) {
	request, err := s.approvals.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "approval request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval request")
	}
	return request, nil
}

// ListPending returns the faculty member's PENDING requests.
func (s *ApprovalService) ListPending(ctx context.Context, facultyID string, page pagination.Page) ([]models.ApprovalRequest, *pagination.Meta, error) {
	return s.List(ctx, models.ApprovalFilter{
		FacultyID: facultyID,
		Status:    models.ApprovalStatusPending,
		Page:      page.Number,
		PageSize:  page.Size,
	})
}

// List returns approval requests matching the filter.
func (s *ApprovalService) List(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalRequest, *pagination.Meta, error) {
	page := pagination.NewPage(filter.Page, filter.PageSize, s.cfg.DefaultPageSize, s.cfg.MaxPageSize)
	filter.Page = page.Number
	filter.PageSize = page.Size

	requests, total, err := s.approvals.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approval requests")
	}
	return requests, pagination.NewMeta(page, total), nil
}

func (s *ApprovalService) inTx(ctx context.Context, fn func(stores approvalTxStores) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin approval tx: %w", err)
	}
	if err := fn(s.stores(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("approval tx rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit approval tx: %w", err)
	}
	return nil
}
