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
	"github.com/lib/pq"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
)

// Postgres error code for unique_violation.
const pqUniqueViolation = "23505"

// PaymentRepository handles persistence of payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create persists a new payment. The transaction_code column carries a
// unique index, so a duplicate that slips past the pre-check still fails
// here and is reported as a duplicate, not an internal error.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.SubmittedAt.IsZero() {
		payment.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO payments (id, application_id, transaction_code, amount, currency, payer_phone, receipt_path, verified, verified_by, verified_at, submitted_at)
        VALUES (:id, :application_id, :transaction_code, :amount, :currency, :payer_phone, :receipt_path, :verified, :verified_by, :verified_at, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return appErrors.Clone(appErrors.ErrDuplicateTxCode, "transaction code was already used")
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// FindByID returns a payment by its ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	const query = `SELECT id, application_id, transaction_code, amount, currency, payer_phone, receipt_path, verified, verified_by, verified_at, submitted_at FROM payments WHERE id = $1 LIMIT 1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return &payment, nil
}

// TransactionCodeExists reports whether a transaction code is already used.
func (r *PaymentRepository) TransactionCodeExists(ctx context.Context, code string) (bool, error) {
	const query = `SELECT 1 FROM payments WHERE transaction_code = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check transaction code: %w", err)
	}
	return true, nil
}

// FindLatestUnverified returns the most recently submitted unverified
// payment for an application.
func (r *PaymentRepository) FindLatestUnverified(ctx context.Context, applicationID string) (*models.Payment, error) {
	const query = `SELECT id, application_id, transaction_code, amount, currency, payer_phone, receipt_path, verified, verified_by, verified_at, submitted_at
        FROM payments WHERE application_id = $1 AND verified = FALSE ORDER BY submitted_at DESC LIMIT 1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, applicationID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find unverified payment: %w", err)
	}
	return &payment, nil
}

// MarkVerified records the verifying officer on an unverified payment.
// It returns the number of rows changed; zero means the payment was
// already verified by a concurrent request.
func (r *PaymentRepository) MarkVerified(ctx context.Context, id, verifiedBy string, verifiedAt time.Time) (int64, error) {
	const query = `UPDATE payments SET verified = TRUE, verified_by = $2, verified_at = $3 WHERE id = $1 AND verified = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, verifiedBy, verifiedAt)
	if err != nil {
		return 0, fmt.Errorf("mark payment verified: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark payment verified rows: %w", err)
	}
	return rows, nil
}

// List returns payments with applicant context for finance listings.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	base := `FROM payments p
JOIN applications a ON a.id = p.application_id`
	var conditions []string
	var args []interface{}

	if filter.Verified != nil {
		conditions = append(conditions, fmt.Sprintf("p.verified = $%d", len(args)+1))
		args = append(args, *filter.Verified)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(a.full_name) LIKE $%d OR LOWER(p.transaction_code) LIKE $%d OR LOWER(a.tracking_code) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"submitted_at": "p.submitted_at",
		"verified_at":  "p.verified_at",
		"amount":       "p.amount",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "p.submitted_at"
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

	query := fmt.Sprintf(`SELECT p.id, p.application_id, p.transaction_code, p.amount, p.currency, p.payer_phone, p.receipt_path,
        p.verified, p.verified_by, p.verified_at, p.submitted_at,
        a.full_name AS applicant_name, a.tracking_code, a.status
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// Summary aggregates the finance dashboard figures.
func (r *PaymentRepository) Summary(ctx context.Context) (*models.FinanceSummary, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM applications WHERE status = 'pending_finance') AS pending_count,
        (SELECT COUNT(*) FROM payments WHERE verified = TRUE) AS verified_count,
        (SELECT COALESCE(SUM(amount), 0) FROM payments WHERE verified = TRUE) AS verified_total,
        (SELECT COUNT(*) FROM applications WHERE status = 'finance_rejected') AS rejected_count,
        (SELECT COUNT(*) FROM payments WHERE submitted_at::date = CURRENT_DATE) AS submitted_today`
	var summary models.FinanceSummary
	row := r.db.QueryRowxContext(ctx, query)
	if err := row.Scan(&summary.PendingCount, &summary.VerifiedCount, &summary.VerifiedTotal, &summary.RejectedCount, &summary.SubmittedToday); err != nil {
		return nil, fmt.Errorf("payment summary: %w", err)
	}

	recent, _, err := r.List(ctx, models.PaymentFilter{
		Verified: boolPtr(true),
		PageSize: 5,
		SortBy:   "verified_at",
	})
	if err != nil {
		return nil, err
	}
	summary.RecentVerified = recent
	summary.GeneratedAt = time.Now().UTC()
	return &summary, nil
}

func boolPtr(b bool) *bool { return &b }
