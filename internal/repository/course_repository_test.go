package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/pkg/pagination"
)

func newCourseMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func courseRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "code", "name", "credits", "department", "instructor_id",
		"enrollment_limit", "start_date", "end_date", "restricted", "grading_scale", "created_at", "updated_at"})
}

func TestCourseRepositoryList(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := courseRows().
		AddRow("course-1", "CS101", "Intro to Computing", 3, "CS", nil, 30, nil, nil, false, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("department ILIKE $1")).
		WithArgs("%CS%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses")).
		WithArgs("%CS%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	page := pagination.NewPage(1, 20, 20, 100)
	sort := pagination.ParseSort("code", "asc", CourseSorts(), "created_at")
	courses, total, err := repo.List(context.Background(), models.CourseFilter{Department: "CS"}, page, sort)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "CS101", courses[0].Code)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListAfter(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	// size+1 rows fetched to detect a further page.
	rows := courseRows().
		AddRow("course-2", "CS102", "Programming", 3, "CS", nil, 30, nil, nil, false, nil, time.Now(), time.Now()).
		AddRow("course-3", "CS103", "Algorithms", 3, "CS", nil, 30, nil, nil, false, nil, time.Now(), time.Now()).
		AddRow("course-4", "CS104", "Databases", 3, "CS", nil, 30, nil, nil, false, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("id > $1")).
		WithArgs("course-1").
		WillReturnRows(rows)

	courses, hasMore, err := repo.ListAfter(context.Background(), models.CourseFilter{}, "course-1", 2)
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.True(t, hasMore)
	assert.Equal(t, "course-3", courses[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListAfterLastPage(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := courseRows().
		AddRow("course-2", "CS102", "Programming", 3, "CS", nil, 30, nil, nil, false, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY id ASC")).
		WillReturnRows(rows)

	courses, hasMore, err := repo.ListAfter(context.Background(), models.CourseFilter{}, "", 2)
	require.NoError(t, err)
	assert.Len(t, courses, 1)
	assert.False(t, hasMore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := courseRows().
		AddRow("course-1", "CS101", "Intro to Computing", 3, "CS", nil, 30, nil, nil, true, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = $1")).
		WithArgs("course-1").
		WillReturnRows(rows)

	course, err := repo.FindByID(context.Background(), "course-1")
	require.NoError(t, err)
	assert.True(t, course.Restricted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = $1")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "course-missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindDetailByID(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	courseRow := courseRows().
		AddRow("course-1", "CS101", "Intro to Computing", 3, "CS", nil, 30, nil, nil, false, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = $1")).
		WithArgs("course-1").
		WillReturnRows(courseRow)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT prerequisite_code FROM course_prerequisites")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"prerequisite_code"}).AddRow("CS100"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM course_schedules WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "day_of_week", "start_time", "end_time", "location"}).
			AddRow("slot-1", "course-1", "MON", "09:00", "10:30", "Hall A"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT category FROM course_categories")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"category"}).AddRow("core"))

	detail, err := repo.FindDetailByID(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"CS100"}, detail.Prerequisites)
	require.Len(t, detail.Schedule, 1)
	assert.Equal(t, "Hall A", detail.Schedule[0].Location)
	assert.Equal(t, []string{"core"}, detail.Categories)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListSections(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "section_number", "instructor_id", "enrollment_limit", "created_at"}).
		AddRow("section-1", "course-1", "001", nil, 15, time.Now()).
		AddRow("section-2", "course-1", "002", nil, 15, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM sections WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(rows)

	sections, err := repo.ListSections(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "002", sections[1].SectionNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("INSERT INTO courses").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	course := &models.Course{Code: "CS101", Name: "Intro to Computing", Credits: 3, Department: "CS", EnrollmentLimit: 30}
	err := repo.Create(context.Background(), course)
	require.NoError(t, err)
	assert.NotEmpty(t, course.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
