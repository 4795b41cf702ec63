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
)

func newApprovalMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func approvalRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_id", "course_id", "faculty_id", "type", "status", "reason",
		"supporting_documents", "reviewer_notes", "approval_conditions", "submitted_at", "reviewed_at"})
}

func TestApprovalRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newApprovalMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	mock.ExpectExec("INSERT INTO approval_requests").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	request := &models.ApprovalRequest{
		StudentID: "student-1",
		CourseID:  "course-1",
		FacultyID: "faculty-1",
		Type:      models.ApprovalTypeCapacityOverride,
		Reason:    "course is full",
	}
	err := repo.Create(context.Background(), request)
	require.NoError(t, err)
	assert.NotEmpty(t, request.ID)
	assert.Equal(t, models.ApprovalStatusPending, request.Status)
	assert.False(t, request.SubmittedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newApprovalMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	rows := approvalRows().
		AddRow("request-1", "student-1", "course-1", "faculty-1", "CAPACITY_OVERRIDE", "PENDING",
			"course is full", nil, nil, nil, time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM approval_requests WHERE id = $1")).
		WithArgs("request-1").
		WillReturnRows(rows)

	request, err := repo.FindByID(context.Background(), "request-1")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusPending, request.Status)
	assert.Equal(t, models.ApprovalTypeCapacityOverride, request.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryUpdateReview(t *testing.T) {
	db, mock, cleanup := newApprovalMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	notes := "one-time exception"
	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("SET status = $2, reviewer_notes = $3, approval_conditions = $4, reviewed_at = $5")).
		WithArgs("request-1", models.ApprovalStatusApproved, &notes, nil, at, models.ApprovalStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateReview(context.Background(), UpdateReviewParams{
		ID:         "request-1",
		Status:     models.ApprovalStatusApproved,
		Notes:      &notes,
		ReviewedAt: at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryUpdateReviewLostRace(t *testing.T) {
	db, mock, cleanup := newApprovalMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = $6")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateReview(context.Background(), UpdateReviewParams{
		ID:         "request-1",
		Status:     models.ApprovalStatusRejected,
		ReviewedAt: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryResubmit(t *testing.T) {
	db, mock, cleanup := newApprovalMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("SET status = $2, reason = $3, supporting_documents = $4")).
		WithArgs("request-1", models.ApprovalStatusPending, "transcript attached", []byte(nil), sqlmock.AnyArg(),
			models.ApprovalStatusNeedsRevision).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Resubmit(context.Background(), "request-1", "transcript attached", nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryResubmitNotAwaitingRevision(t *testing.T) {
	db, mock, cleanup := newApprovalMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("SET status = $2, reason = $3, supporting_documents = $4")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Resubmit(context.Background(), "request-1", "x", nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryApprovedOverride(t *testing.T) {
	db, mock, cleanup := newApprovalMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT approval_conditions FROM approval_requests")).
		WithArgs("student-1", "course-1", models.ApprovalTypePrerequisiteOverride, models.ApprovalStatusApproved).
		WillReturnRows(sqlmock.NewRows([]string{"approval_conditions"}).AddRow("take MATH101 next term"))

	granted, conditions, err := repo.ApprovedOverride(context.Background(), "student-1", "course-1", models.ApprovalTypePrerequisiteOverride)
	require.NoError(t, err)
	assert.True(t, granted)
	require.NotNil(t, conditions)
	assert.Equal(t, "take MATH101 next term", *conditions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryApprovedOverrideAbsent(t *testing.T) {
	db, mock, cleanup := newApprovalMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT approval_conditions FROM approval_requests")).
		WillReturnError(sql.ErrNoRows)

	granted, conditions, err := repo.ApprovedOverride(context.Background(), "student-1", "course-1", models.ApprovalTypeCapacityOverride)
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Nil(t, conditions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryList(t *testing.T) {
	db, mock, cleanup := newApprovalMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	rows := approvalRows().
		AddRow("request-1", "student-1", "course-1", "faculty-1", "CAPACITY_OVERRIDE", "PENDING",
			"course is full", nil, nil, nil, time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("faculty_id = $1 AND status = $2")).
		WithArgs("faculty-1", models.ApprovalStatusPending).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM approval_requests")).
		WithArgs("faculty-1", models.ApprovalStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	requests, total, err := repo.List(context.Background(), models.ApprovalFilter{
		FacultyID: "faculty-1",
		Status:    models.ApprovalStatusPending,
	})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
