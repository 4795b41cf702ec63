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

// EnrollmentRepository handles persistence of enrollments. All methods run
// against the bound queryer, which is either the pool or an open transaction
// (see WithTx), so the engine can scope reads and writes to one commit.
type EnrollmentRepository struct {
	db *sqlx.DB
	q  sqlx.ExtContext
}

// NewEnrollmentRepository constructs the repository bound to the pool.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db, q: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *EnrollmentRepository) WithTx(tx *sqlx.Tx) *EnrollmentRepository {
	return &EnrollmentRepository{db: r.db, q: tx}
}

const enrollmentColumns = `id, student_id, course_id, section_id, period_id, status, enrollment_type,
        grade, waitlist_position, enrolled_at, drop_date, completion_date`

// LockCourse acquires a row-level exclusive lock on the course and returns
// its enrollment limit. Counts and waitlist positions read afterwards are
// stable until commit.
func (r *EnrollmentRepository) LockCourse(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT enrollment_limit FROM courses WHERE id = $1 FOR UPDATE`
	var limit int
	if err := sqlx.GetContext(ctx, r.q, &limit, query, courseID); err != nil {
		return 0, err
	}
	return limit, nil
}

// LockSection acquires a row-level exclusive lock on the section and returns
// its enrollment limit.
func (r *EnrollmentRepository) LockSection(ctx context.Context, sectionID string) (int, error) {
	const query = `SELECT enrollment_limit FROM sections WHERE id = $1 FOR UPDATE`
	var limit int
	if err := sqlx.GetContext(ctx, r.q, &limit, query, sectionID); err != nil {
		return 0, err
	}
	return limit, nil
}

// FindCurrent returns the student's ACTIVE or WAITLISTED enrollment for the
// (course, section) pair, or nil when none exists.
func (r *EnrollmentRepository) FindCurrent(ctx context.Context, studentID, courseID string, sectionID *string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments
        WHERE student_id = $1 AND course_id = $2 AND section_id IS NOT DISTINCT FROM $3
          AND status IN ($4, $5) LIMIT 1`, enrollmentColumns)
	var enrollment models.Enrollment
	err := sqlx.GetContext(ctx, r.q, &enrollment, query, studentID, courseID, sectionID,
		models.EnrollmentStatusActive, models.EnrollmentStatusWaitlisted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find current enrollment: %w", err)
	}
	return &enrollment, nil
}

// FindCurrentByCourse locates the student's ACTIVE or WAITLISTED enrollment
// on the course regardless of section.
func (r *EnrollmentRepository) FindCurrentByCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments
        WHERE student_id = $1 AND course_id = $2 AND status IN ($3, $4) LIMIT 1`, enrollmentColumns)
	var enrollment models.Enrollment
	err := sqlx.GetContext(ctx, r.q, &enrollment, query, studentID, courseID,
		models.EnrollmentStatusActive, models.EnrollmentStatusWaitlisted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find current enrollment by course: %w", err)
	}
	return &enrollment, nil
}

// CountActive returns the number of ACTIVE enrollments on the pair.
func (r *EnrollmentRepository) CountActive(ctx context.Context, courseID string, sectionID *string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments
        WHERE course_id = $1 AND section_id IS NOT DISTINCT FROM $2 AND status = $3`
	var count int
	if err := sqlx.GetContext(ctx, r.q, &count, query, courseID, sectionID, models.EnrollmentStatusActive); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

// MaxWaitlistPosition returns the highest waitlist position on the pair, or
// zero when the waitlist is empty.
func (r *EnrollmentRepository) MaxWaitlistPosition(ctx context.Context, courseID string, sectionID *string) (int, error) {
	const query = `SELECT COALESCE(MAX(waitlist_position), 0) FROM enrollments
        WHERE course_id = $1 AND section_id IS NOT DISTINCT FROM $2 AND status = $3`
	var max int
	if err := sqlx.GetContext(ctx, r.q, &max, query, courseID, sectionID, models.EnrollmentStatusWaitlisted); err != nil {
		return 0, fmt.Errorf("max waitlist position: %w", err)
	}
	return max, nil
}

// FirstWaitlisted returns the waitlisted enrollment with the smallest
// position, or nil when the waitlist is empty.
func (r *EnrollmentRepository) FirstWaitlisted(ctx context.Context, courseID string, sectionID *string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments
        WHERE course_id = $1 AND section_id IS NOT DISTINCT FROM $2 AND status = $3
        ORDER BY waitlist_position ASC LIMIT 1`, enrollmentColumns)
	var enrollment models.Enrollment
	err := sqlx.GetContext(ctx, r.q, &enrollment, query, courseID, sectionID, models.EnrollmentStatusWaitlisted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("first waitlisted enrollment: %w", err)
	}
	return &enrollment, nil
}

// ListWaitlisted returns the waitlisted enrollments on the pair in position
// order.
func (r *EnrollmentRepository) ListWaitlisted(ctx context.Context, courseID string, sectionID *string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments
        WHERE course_id = $1 AND section_id IS NOT DISTINCT FROM $2 AND status = $3
        ORDER BY waitlist_position ASC`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := sqlx.SelectContext(ctx, r.q, &enrollments, query, courseID, sectionID, models.EnrollmentStatusWaitlisted); err != nil {
		return nil, fmt.Errorf("list waitlisted enrollments: %w", err)
	}
	return enrollments, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, student_id, course_id, section_id, period_id, status,
        enrollment_type, grade, waitlist_position, enrolled_at, drop_date, completion_date)
        VALUES (:id, :student_id, :course_id, :section_id, :period_id, :status,
        :enrollment_type, :grade, :waitlist_position, :enrolled_at, :drop_date, :completion_date)`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// MarkDropped transitions the enrollment to DROPPED and clears its waitlist
// position.
func (r *EnrollmentRepository) MarkDropped(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE enrollments SET status = $2, drop_date = $3, waitlist_position = NULL WHERE id = $1`
	if _, err := r.q.ExecContext(ctx, query, id, models.EnrollmentStatusDropped, at); err != nil {
		return fmt.Errorf("drop enrollment: %w", err)
	}
	return nil
}

// MarkCompleted transitions an ACTIVE enrollment to COMPLETED with a grade.
func (r *EnrollmentRepository) MarkCompleted(ctx context.Context, id, grade string, at time.Time) error {
	const query = `UPDATE enrollments SET status = $2, grade = $3, completion_date = $4
        WHERE id = $1 AND status = $5`
	result, err := r.q.ExecContext(ctx, query, id, models.EnrollmentStatusCompleted, grade, at, models.EnrollmentStatusActive)
	if err != nil {
		return fmt.Errorf("complete enrollment: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Promote transitions a WAITLISTED enrollment to ACTIVE and clears its
// position.
func (r *EnrollmentRepository) Promote(ctx context.Context, id string) error {
	const query = `UPDATE enrollments SET status = $2, waitlist_position = NULL
        WHERE id = $1 AND status = $3`
	result, err := r.q.ExecContext(ctx, query, id, models.EnrollmentStatusActive, models.EnrollmentStatusWaitlisted)
	if err != nil {
		return fmt.Errorf("promote enrollment: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CompactWaitlist decrements every waitlist position above the vacated one,
// keeping positions a contiguous 1..N sequence.
func (r *EnrollmentRepository) CompactWaitlist(ctx context.Context, courseID string, sectionID *string, abovePosition int) error {
	const query = `UPDATE enrollments SET waitlist_position = waitlist_position - 1
        WHERE course_id = $1 AND section_id IS NOT DISTINCT FROM $2 AND status = $3
          AND waitlist_position > $4`
	if _, err := r.q.ExecContext(ctx, query, courseID, sectionID, models.EnrollmentStatusWaitlisted, abovePosition); err != nil {
		return fmt.Errorf("compact waitlist: %w", err)
	}
	return nil
}

// Delete removes an enrollment row. Used only for waitlist rejection.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM enrollments WHERE id = $1`
	if _, err := r.q.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return nil
}

// CompletedCourseCodes returns the codes of courses the student has
// completed.
func (r *EnrollmentRepository) CompletedCourseCodes(ctx context.Context, studentID string) ([]string, error) {
	const query = `SELECT c.code FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE e.student_id = $1 AND e.status = $2`
	var codes []string
	if err := sqlx.SelectContext(ctx, r.q, &codes, query, studentID, models.EnrollmentStatusCompleted); err != nil {
		return nil, fmt.Errorf("completed course codes: %w", err)
	}
	return codes, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.q, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// List returns enrollment details filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN courses c ON c.id = e.course_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)))
	}
	if filter.SectionID != "" {
		args = append(args, filter.SectionID)
		conditions = append(conditions, fmt.Sprintf("e.section_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "s.full_name",
		"course_code":  "c.code",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.course_id, e.section_id, e.period_id, e.status,
        e.enrollment_type, e.grade, e.waitlist_position, e.enrolled_at, e.drop_date, e.completion_date,
        s.full_name AS student_name, c.code AS course_code, c.name AS course_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := sqlx.SelectContext(ctx, r.q, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base + clause
	var total int
	if err := sqlx.GetContext(ctx, r.q, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// RosterByCourse returns active and waitlisted enrollments for a course in a
// stable order, active first then waitlist position.
func (r *EnrollmentRepository) RosterByCourse(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.course_id, e.section_id, e.period_id, e.status,
        e.enrollment_type, e.grade, e.waitlist_position, e.enrolled_at, e.drop_date, e.completion_date,
        s.full_name AS student_name, c.code AS course_code, c.name AS course_name
        FROM enrollments e
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN courses c ON c.id = e.course_id
        WHERE e.course_id = $1 AND e.status IN ($2, $3)
        ORDER BY e.status, e.waitlist_position NULLS FIRST, e.enrolled_at`
	var roster []models.EnrollmentDetail
	if err := sqlx.SelectContext(ctx, r.q, &roster, query, courseID,
		models.EnrollmentStatusActive, models.EnrollmentStatusWaitlisted); err != nil {
		return nil, fmt.Errorf("course roster: %w", err)
	}
	return roster, nil
}
