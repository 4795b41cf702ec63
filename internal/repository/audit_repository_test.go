package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-api/internal/models"
)

func newAuditMock(t *testing.T) (*AuditRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAuditRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func auditColumns() []string {
	return []string{"id", "actor_id", "student_id", "course_id", "section_id", "action",
		"details", "ip_address", "user_agent", "created_at"}
}

func TestAuditRepositoryCreate(t *testing.T) {
	repo, mock := newAuditMock(t)

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	courseID := "course-1"
	entry := &models.AuditLog{
		StudentID: "student-1",
		CourseID:  &courseID,
		Action:    models.AuditActionEnroll,
		Details:   []byte(`{"outcome":"ALLOW"}`),
	}
	err := repo.Create(context.Background(), entry)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryCreateWithinTx(t *testing.T) {
	repo, mock := newAuditMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := repo.db.Beginx()
	require.NoError(t, err)

	entry := &models.AuditLog{StudentID: "student-1", Action: models.AuditActionDrop}
	require.NoError(t, repo.WithTx(tx).Create(context.Background(), entry))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryList(t *testing.T) {
	repo, mock := newAuditMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("student_id = $1 AND action = $2")).
		WithArgs("student-1", models.AuditActionEnroll).
		WillReturnRows(sqlmock.NewRows(auditColumns()).
			AddRow("audit-2", nil, "student-1", "course-2", nil, models.AuditActionEnroll, []byte(`{}`), "", "", now).
			AddRow("audit-1", nil, "student-1", "course-1", nil, models.AuditActionEnroll, []byte(`{}`), "", "", now.Add(-time.Minute)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM audit_logs WHERE student_id = $1 AND action = $2")).
		WithArgs("student-1", models.AuditActionEnroll).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	entries, total, err := repo.List(context.Background(), models.AuditFilter{
		StudentID: "student-1",
		Action:    models.AuditActionEnroll,
		Page:      1,
		PageSize:  20,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, entries, 2)
	assert.Equal(t, "audit-2", entries[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListClampsPaging(t *testing.T) {
	repo, mock := newAuditMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows(auditColumns()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM audit_logs")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.AuditFilter{Page: -3, PageSize: 999})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
