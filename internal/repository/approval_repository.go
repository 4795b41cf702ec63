package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-api/internal/models"
)

// ApprovalRepository handles persistence for override approval requests.
type ApprovalRepository struct {
	db *sqlx.DB
	q  sqlx.ExtContext
}

// NewApprovalRepository constructs the repository bound to the pool.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db, q: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *ApprovalRepository) WithTx(tx *sqlx.Tx) *ApprovalRepository {
	return &ApprovalRepository{db: r.db, q: tx}
}

const approvalColumns = `id, student_id, course_id, faculty_id, type, status, reason,
        supporting_documents, reviewer_notes, approval_conditions, submitted_at, reviewed_at`

// Create persists a new approval request in PENDING status.
func (r *ApprovalRepository) Create(ctx context.Context, request *models.ApprovalRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.SubmittedAt.IsZero() {
		request.SubmittedAt = time.Now().UTC()
	}
	if request.Status == "" {
		request.Status = models.ApprovalStatusPending
	}
	const query = `INSERT INTO approval_requests (id, student_id, course_id, faculty_id, type, status, reason,
        supporting_documents, reviewer_notes, approval_conditions, submitted_at, reviewed_at)
        VALUES (:id, :student_id, :course_id, :faculty_id, :type, :status, :reason,
        :supporting_documents, :reviewer_notes, :approval_conditions, :submitted_at, :reviewed_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, request); err != nil {
		return fmt.Errorf("create approval request: %w", err)
	}
	return nil
}

// FindByID returns an approval request by ID.
func (r *ApprovalRepository) FindByID(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM approval_requests WHERE id = $1`, approvalColumns)
	var request models.ApprovalRequest
	if err := sqlx.GetContext(ctx, r.q, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// UpdateReviewParams carries a reviewer decision.
type UpdateReviewParams struct {
	ID         string
	Status     models.ApprovalStatus
	Notes      *string
	Conditions *string
	ReviewedAt time.Time
}

// UpdateReview applies the reviewer decision. The status guard in the WHERE
// clause makes the first committed review win; a losing concurrent review
// matches zero rows and gets sql.ErrNoRows.
func (r *ApprovalRepository) UpdateReview(ctx context.Context, params UpdateReviewParams) error {
	const query = `UPDATE approval_requests
        SET status = $2, reviewer_notes = $3, approval_conditions = $4, reviewed_at = $5
        WHERE id = $1 AND status = $6`
	result, err := r.q.ExecContext(ctx, query, params.ID, params.Status, params.Notes,
		params.Conditions, params.ReviewedAt, models.ApprovalStatusPending)
	if err != nil {
		return fmt.Errorf("review approval request: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Resubmit moves a NEEDS_REVISION request back to PENDING with an updated
// reason and documents.
func (r *ApprovalRepository) Resubmit(ctx context.Context, id, reason string, documents []byte) error {
	const query = `UPDATE approval_requests
        SET status = $2, reason = $3, supporting_documents = $4, submitted_at = $5,
            reviewed_at = NULL, reviewer_notes = NULL
        WHERE id = $1 AND status = $6`
	result, err := r.q.ExecContext(ctx, query, id, models.ApprovalStatusPending, reason,
		documents, time.Now().UTC(), models.ApprovalStatusNeedsRevision)
	if err != nil {
		return fmt.Errorf("resubmit approval request: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ApprovedOverride reports whether the student holds an approved override of
// the given type for the course, along with any approval conditions.
func (r *ApprovalRepository) ApprovedOverride(ctx context.Context, studentID, courseID string, overrideType models.ApprovalType) (bool, *string, error) {
	const query = `SELECT approval_conditions FROM approval_requests
        WHERE student_id = $1 AND course_id = $2 AND type = $3 AND status = $4
        ORDER BY reviewed_at DESC LIMIT 1`
	var conditions *string
	err := sqlx.GetContext(ctx, r.q, &conditions, query, studentID, courseID, overrideType, models.ApprovalStatusApproved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("lookup approved override: %w", err)
	}
	return true, conditions, nil
}

// List returns approval requests matching the filter with a total count.
func (r *ApprovalRepository) List(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalRequest, int, error) {
	base := "FROM approval_requests"
	var conditions []string
	var args []interface{}

	if filter.FacultyID != "" {
		args = append(args, filter.FacultyID)
		conditions = append(conditions, fmt.Sprintf("faculty_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s ORDER BY submitted_at DESC LIMIT %d OFFSET %d`,
		approvalColumns, base+clause, size, offset)

	var requests []models.ApprovalRequest
	if err := sqlx.SelectContext(ctx, r.q, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list approval requests: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base + clause
	var total int
	if err := sqlx.GetContext(ctx, r.q, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count approval requests: %w", err)
	}
	return requests, total, nil
}
