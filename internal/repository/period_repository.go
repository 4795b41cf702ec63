package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-api/internal/models"
	appErrors "github.com/noah-isme/campus-api/pkg/errors"
)

// PeriodRepository handles persistence for enrollment periods.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository constructs the repository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

// ActiveAt returns active periods whose window contains the instant and
// whose group is empty or matches the given group.
func (r *PeriodRepository) ActiveAt(ctx context.Context, now time.Time, studentGroup string) ([]models.EnrollmentPeriod, error) {
	const query = `SELECT id, name, description, start_at, end_at, student_group, is_active, created_at
        FROM enrollment_periods
        WHERE is_active = true AND start_at <= $1 AND end_at >= $1
          AND (student_group = '' OR student_group = $2)
        ORDER BY start_at`
	var periods []models.EnrollmentPeriod
	if err := r.db.SelectContext(ctx, &periods, query, now, studentGroup); err != nil {
		return nil, fmt.Errorf("active enrollment periods: %w", err)
	}
	return periods, nil
}

// FindByID returns a period by its ID.
func (r *PeriodRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentPeriod, error) {
	const query = `SELECT id, name, description, start_at, end_at, student_group, is_active, created_at
        FROM enrollment_periods WHERE id = $1`
	var period models.EnrollmentPeriod
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// Create persists a new enrollment period. The window must be well formed.
func (r *PeriodRepository) Create(ctx context.Context, period *models.EnrollmentPeriod) error {
	if !period.EndAt.After(period.StartAt) {
		return appErrors.Clone(appErrors.ErrValidation, "period end must be after start")
	}
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	if period.CreatedAt.IsZero() {
		period.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollment_periods (id, name, description, start_at, end_at, student_group, is_active, created_at)
        VALUES (:id, :name, :description, :start_at, :end_at, :student_group, :is_active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("create enrollment period: %w", err)
	}
	return nil
}
