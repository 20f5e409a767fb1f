package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newAvailabilityRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAvailabilityRepositoryBookIncrements(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE availability_slots")).
		WithArgs("slot-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows, err := repo.Book(context.Background(), "slot-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryBookFullSlot(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE availability_slots")).
		WithArgs("slot-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rows, err := repo.Book(context.Background(), "slot-1")
	require.NoError(t, err)
	require.Zero(t, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryHasOpenSlots(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM availability_slots WHERE mentor_id = $1 AND current_bookings < max_bookings LIMIT 1")).
		WithArgs("men-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	open, err := repo.HasOpenSlots(context.Background(), "men-1")
	require.NoError(t, err)
	require.False(t, open)
	require.NoError(t, mock.ExpectationsWereMet())
}
