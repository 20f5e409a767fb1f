package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
)

const guestColumns = `id, full_name, email, school, interests, message, cv_path, mentor_id, status, mentor_feedback, registered_user_id, created_at, updated_at`

// GuestRepository handles guest applications and invitation tokens.
type GuestRepository struct {
	db *sqlx.DB
}

// NewGuestRepository constructs the repository.
func NewGuestRepository(db *sqlx.DB) *GuestRepository {
	return &GuestRepository{db: db}
}

// Create persists a new guest application.
func (r *GuestRepository) Create(ctx context.Context, app *models.GuestApplication) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now
	if app.Status == "" {
		app.Status = models.GuestStatusPending
	}
	const query = `INSERT INTO guest_applications (id, full_name, email, school, interests, message, cv_path, mentor_id, status, mentor_feedback, registered_user_id, created_at, updated_at)
        VALUES (:id, :full_name, :email, :school, :interests, :message, :cv_path, :mentor_id, :status, :mentor_feedback, :registered_user_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("create guest application: %w", err)
	}
	return nil
}

// FindByID returns a guest application by its ID.
func (r *GuestRepository) FindByID(ctx context.Context, id string) (*models.GuestApplication, error) {
	query := fmt.Sprintf(`SELECT %s FROM guest_applications WHERE id = $1 LIMIT 1`, guestColumns)
	var app models.GuestApplication
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find guest application: %w", err)
	}
	return &app, nil
}

// UpdateStatus records the mentor's decision when the application is
// still pending. The returned row count is zero when a decision already
// landed.
func (r *GuestRepository) UpdateStatus(ctx context.Context, id string, status models.GuestApplicationStatus, feedback string) (int64, error) {
	const query = `UPDATE guest_applications SET status = $2, mentor_feedback = $3, updated_at = $4 WHERE id = $1 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, id, status, feedback, time.Now().UTC(), models.GuestStatusPending)
	if err != nil {
		return 0, fmt.Errorf("update guest application status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update guest application rows: %w", err)
	}
	return rows, nil
}

// LinkRegisteredUser records the account created from an invitation.
func (r *GuestRepository) LinkRegisteredUser(ctx context.Context, id, userID string) error {
	const query = `UPDATE guest_applications SET registered_user_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("link registered user: %w", err)
	}
	return nil
}

// List returns guest applications matching the filter with a total count.
func (r *GuestRepository) List(ctx context.Context, filter models.GuestApplicationFilter) ([]models.GuestApplication, int, error) {
	base := `FROM guest_applications WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.MentorID != "" {
		conditions = append(conditions, fmt.Sprintf("mentor_id = $%d", len(args)+1))
		args = append(args, filter.MentorID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(email) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " AND " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", guestColumns, base+clause, size, offset)

	var apps []models.GuestApplication
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list guest applications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count guest applications: %w", err)
	}
	return apps, total, nil
}

// CreateInvitationToken persists a new invitation token.
func (r *GuestRepository) CreateInvitationToken(ctx context.Context, token *models.InvitationToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO invitation_tokens (id, token, application_id, expires_at, used_at, created_at)
        VALUES (:id, :token, :application_id, :expires_at, :used_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create invitation token: %w", err)
	}
	return nil
}

// FindInvitationToken returns an invitation token by its value.
func (r *GuestRepository) FindInvitationToken(ctx context.Context, token string) (*models.InvitationToken, error) {
	const query = `SELECT id, token, application_id, expires_at, used_at, created_at FROM invitation_tokens WHERE token = $1 LIMIT 1`
	var it models.InvitationToken
	if err := r.db.GetContext(ctx, &it, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find invitation token: %w", err)
	}
	return &it, nil
}

// MarkTokenUsed consumes an invitation token exactly once. The returned
// row count is zero when the token was already used.
func (r *GuestRepository) MarkTokenUsed(ctx context.Context, id string, usedAt time.Time) (int64, error) {
	const query = `UPDATE invitation_tokens SET used_at = $2 WHERE id = $1 AND used_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, usedAt)
	if err != nil {
		return 0, fmt.Errorf("mark invitation token used: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark invitation token rows: %w", err)
	}
	return rows, nil
}

// InvalidateTokens expires every live token for a guest application,
// used before issuing a replacement.
func (r *GuestRepository) InvalidateTokens(ctx context.Context, applicationID string, at time.Time) error {
	const query = `UPDATE invitation_tokens SET expires_at = $2 WHERE application_id = $1 AND used_at IS NULL AND expires_at > $2`
	if _, err := r.db.ExecContext(ctx, query, applicationID, at); err != nil {
		return fmt.Errorf("invalidate invitation tokens: %w", err)
	}
	return nil
}
