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
	appErrors "github.com/noah-isme/campus-api/pkg/errors"
)

func newPeriodMock(t *testing.T) (*PeriodRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPeriodRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func periodColumns() []string {
	return []string{"id", "name", "description", "start_at", "end_at", "student_group", "is_active", "created_at"}
}

func TestPeriodRepositoryActiveAt(t *testing.T) {
	repo, mock := newPeriodMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("is_active = true AND start_at <= $1 AND end_at >= $1")).
		WithArgs(now, "FR").
		WillReturnRows(sqlmock.NewRows(periodColumns()).
			AddRow("period-1", "Fall Registration", "", now.Add(-time.Hour), now.Add(time.Hour), "", true, now).
			AddRow("period-2", "Freshman Window", "", now.Add(-time.Hour), now.Add(time.Hour), "FR", true, now))

	periods, err := repo.ActiveAt(context.Background(), now, "FR")
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, "period-1", periods[0].ID)
	assert.Equal(t, "FR", periods[1].StudentGroup)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryFindByID(t *testing.T) {
	repo, mock := newPeriodMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollment_periods WHERE id = $1")).
		WithArgs("period-1").
		WillReturnRows(sqlmock.NewRows(periodColumns()).
			AddRow("period-1", "Fall Registration", "Main window", now.Add(-time.Hour), now.Add(time.Hour), "", true, now))

	period, err := repo.FindByID(context.Background(), "period-1")
	require.NoError(t, err)
	assert.Equal(t, "Fall Registration", period.Name)
	assert.True(t, period.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryCreate(t *testing.T) {
	repo, mock := newPeriodMock(t)
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO enrollment_periods").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	period := &models.EnrollmentPeriod{
		Name:     "Spring Registration",
		StartAt:  now,
		EndAt:    now.Add(14 * 24 * time.Hour),
		IsActive: true,
	}
	err := repo.Create(context.Background(), period)
	require.NoError(t, err)
	assert.NotEmpty(t, period.ID)
	assert.False(t, period.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryCreateInvalidWindow(t *testing.T) {
	repo, mock := newPeriodMock(t)
	now := time.Now().UTC()

	period := &models.EnrollmentPeriod{
		Name:    "Backwards",
		StartAt: now,
		EndAt:   now.Add(-time.Hour),
	}
	err := repo.Create(context.Background(), period)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
