package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
)

func newApplicationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestApplicationRepositoryUpdateStatusGuardsState(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET status = $3, rejection_reason = $4, updated_at = $5 WHERE id = $1 AND status = $2")).
		WithArgs("app-1", models.ApplicationStatusPendingReview, models.ApplicationStatusApproved, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows, err := repo.UpdateStatus(context.Background(), "app-1", models.ApplicationStatusPendingReview, models.ApplicationStatusApproved, "")
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryUpdateStatusLostRace(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET status = $3, rejection_reason = $4, updated_at = $5 WHERE id = $1 AND status = $2")).
		WithArgs("app-1", models.ApplicationStatusPendingFinance, models.ApplicationStatusPendingReview, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rows, err := repo.UpdateStatus(context.Background(), "app-1", models.ApplicationStatusPendingFinance, models.ApplicationStatusPendingReview, "")
	require.NoError(t, err)
	require.Zero(t, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryTrackingCodeExists(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM applications WHERE tracking_code = $1 LIMIT 1")).
		WithArgs("MC-ABCDEFGHIJ").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.TrackingCodeExists(context.Background(), "MC-ABCDEFGHIJ")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryFindByTrackingCode(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "tracking_code", "status", "current_step", "created_at", "updated_at"}).
		AddRow("app-1", "MC-ABCDEFGHIJ", models.ApplicationStatusPendingFinance, 5, now, now)
	mock.ExpectQuery("SELECT .+ FROM applications WHERE tracking_code = .+ LIMIT 1").
		WithArgs("MC-ABCDEFGHIJ").
		WillReturnRows(rows)

	app, err := repo.FindByTrackingCode(context.Background(), "MC-ABCDEFGHIJ")
	require.NoError(t, err)
	require.Equal(t, models.ApplicationStatusPendingFinance, app.Status)
	require.Equal(t, 5, app.CurrentStep)
	require.NoError(t, mock.ExpectationsWereMet())
}
