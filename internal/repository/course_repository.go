package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/pkg/pagination"
)

// CourseRepository handles read-side persistence for the catalog.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

var courseSorts = map[string]string{
	"code":       "code",
	"name":       "name",
	"department": "department",
	"credits":    "credits",
	"created_at": "created_at",
	"start_date": "start_date",
	"end_date":   "end_date",
}

// CourseSorts exposes the allowlisted sort keys for catalog listings.
func CourseSorts() map[string]string {
	return courseSorts
}

func courseConditions(filter models.CourseFilter, args *[]interface{}) []string {
	var conditions []string
	add := func(cond string, value interface{}) {
		*args = append(*args, value)
		conditions = append(conditions, fmt.Sprintf(cond, len(*args)))
	}

	if filter.Code != "" {
		add("code ILIKE $%d", "%"+filter.Code+"%")
	}
	if filter.Name != "" {
		add("name ILIKE $%d", "%"+filter.Name+"%")
	}
	if filter.Department != "" {
		add("department ILIKE $%d", "%"+filter.Department+"%")
	}
	if filter.InstructorID != "" {
		add("instructor_id = $%d", filter.InstructorID)
	}
	if filter.Credits != nil {
		add("credits = $%d", *filter.Credits)
	}
	if filter.LimitMin != nil {
		add("enrollment_limit >= $%d", *filter.LimitMin)
	}
	if filter.LimitMax != nil {
		add("enrollment_limit <= $%d", *filter.LimitMax)
	}
	if filter.StartFrom != nil {
		add("start_date >= $%d", *filter.StartFrom)
	}
	if filter.StartTo != nil {
		add("start_date <= $%d", *filter.StartTo)
	}
	if filter.EndFrom != nil {
		add("end_date >= $%d", *filter.EndFrom)
	}
	if filter.EndTo != nil {
		add("end_date <= $%d", *filter.EndTo)
	}
	return conditions
}

const courseColumns = `id, code, name, credits, department, instructor_id, enrollment_limit,
        start_date, end_date, restricted, grading_scale, created_at, updated_at`

// List returns catalog courses for an offset page along with the total count.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter, page pagination.Page, sort pagination.Sort) ([]models.Course, int, error) {
	var args []interface{}
	conditions := courseConditions(filter, &args)

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s FROM courses%s ORDER BY %s LIMIT %d OFFSET %d`,
		courseColumns, clause, sort.OrderBy(), page.Limit(), page.Offset())

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM courses" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// ListAfter returns up to size courses whose id is strictly greater than the
// cursor value, in id order, plus a flag indicating more rows remain.
func (r *CourseRepository) ListAfter(ctx context.Context, filter models.CourseFilter, afterID string, size int) ([]models.Course, bool, error) {
	var args []interface{}
	conditions := courseConditions(filter, &args)
	if afterID != "" {
		args = append(args, afterID)
		conditions = append(conditions, fmt.Sprintf("id > $%d", len(args)))
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s FROM courses%s ORDER BY id ASC LIMIT %d`,
		courseColumns, clause, size+1)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, false, fmt.Errorf("list courses after cursor: %w", err)
	}
	hasMore := len(courses) > size
	if hasMore {
		courses = courses[:size]
	}
	return courses, hasMore, nil
}

// FindByID fetches a course by ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindDetailByID fetches a course with prerequisites, schedule, and categories.
func (r *CourseRepository) FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	course, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &models.CourseDetail{Course: *course}

	if detail.Prerequisites, err = r.PrerequisiteCodes(ctx, id); err != nil {
		return nil, err
	}

	const scheduleQuery = `SELECT id, course_id, day_of_week, start_time, end_time, location
        FROM course_schedules WHERE course_id = $1 ORDER BY day_of_week, start_time`
	if err := r.db.SelectContext(ctx, &detail.Schedule, scheduleQuery, id); err != nil {
		return nil, fmt.Errorf("load course schedule: %w", err)
	}

	const categoryQuery = `SELECT category FROM course_categories WHERE course_id = $1 ORDER BY category`
	if err := r.db.SelectContext(ctx, &detail.Categories, categoryQuery, id); err != nil {
		return nil, fmt.Errorf("load course categories: %w", err)
	}
	return detail, nil
}

// PrerequisiteCodes returns the prerequisite course codes for a course.
func (r *CourseRepository) PrerequisiteCodes(ctx context.Context, courseID string) ([]string, error) {
	const query = `SELECT prerequisite_code FROM course_prerequisites WHERE course_id = $1 ORDER BY prerequisite_code`
	var codes []string
	if err := r.db.SelectContext(ctx, &codes, query, courseID); err != nil {
		return nil, fmt.Errorf("load prerequisites: %w", err)
	}
	return codes, nil
}

// ListSections returns the sections of a course.
func (r *CourseRepository) ListSections(ctx context.Context, courseID string) ([]models.Section, error) {
	const query = `SELECT id, course_id, section_number, instructor_id, enrollment_limit, created_at
        FROM sections WHERE course_id = $1 ORDER BY section_number`
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, courseID); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

// FindSection returns a single section by ID.
func (r *CourseRepository) FindSection(ctx context.Context, id string) (*models.Section, error) {
	const query = `SELECT id, course_id, section_number, instructor_id, enrollment_limit, created_at
        FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// Create inserts a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, code, name, credits, department, instructor_id, enrollment_limit,
        start_date, end_date, restricted, grading_scale, created_at, updated_at)
        VALUES (:id, :code, :name, :credits, :department, :instructor_id, :enrollment_limit,
        :start_date, :end_date, :restricted, :grading_scale, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}
