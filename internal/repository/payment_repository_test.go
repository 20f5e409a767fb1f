package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
)

func newPaymentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPaymentRepositoryTransactionCodeExists(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM payments WHERE transaction_code = $1 LIMIT 1")).
		WithArgs("TX-100").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.TransactionCodeExists(context.Background(), "TX-100")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryTransactionCodeMissing(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM payments WHERE transaction_code = $1 LIMIT 1")).
		WithArgs("TX-404").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.TransactionCodeExists(context.Background(), "TX-404")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryCreateMapsUniqueViolation(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO payments").
		WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "payments_transaction_code_key"})

	err := repo.Create(context.Background(), &models.Payment{
		ApplicationID:   "app-1",
		TransactionCode: "TX-100",
		Amount:          5000,
		Currency:        "RWF",
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	require.Equal(t, appErrors.ErrDuplicateTxCode.Code, appErr.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryFindLatestUnverified(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "application_id", "transaction_code", "amount", "currency", "payer_phone", "receipt_path", "verified", "verified_by", "verified_at", "submitted_at"}).
		AddRow("pay-2", "app-1", "TX-200", 5000.0, "RWF", "0788000000", "", false, nil, nil, time.Now())
	mock.ExpectQuery("SELECT .+ FROM payments WHERE application_id = .+ AND verified = FALSE ORDER BY submitted_at DESC LIMIT 1").
		WithArgs("app-1").
		WillReturnRows(rows)

	payment, err := repo.FindLatestUnverified(context.Background(), "app-1")
	require.NoError(t, err)
	require.Equal(t, "pay-2", payment.ID)
	require.False(t, payment.Verified)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryMarkVerifiedSkipsVerified(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET verified = TRUE, verified_by = $2, verified_at = $3 WHERE id = $1 AND verified = FALSE")).
		WithArgs("pay-1", "fin-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rows, err := repo.MarkVerified(context.Background(), "pay-1", "fin-1", time.Now())
	require.NoError(t, err)
	require.Zero(t, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}
