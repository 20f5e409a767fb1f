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

const applicationColumns = `id, tracking_code, applicant_id, session_key, status, current_step,
        full_name, email, phone, date_of_birth, is_minor,
        guardian_name, guardian_phone, parent_consent_given,
        school, education_level, field_of_study, motivation,
        mentor_id, slot_id, rejection_reason, submitted_at, created_at, updated_at`

// ApplicationRepository handles persistence of mentorship applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create persists a new application draft.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now
	if app.Status == "" {
		app.Status = models.ApplicationStatusDraft
	}
	if app.CurrentStep == 0 {
		app.CurrentStep = 1
	}
	const query = `INSERT INTO applications (id, tracking_code, applicant_id, session_key, status, current_step,
        full_name, email, phone, date_of_birth, is_minor,
        guardian_name, guardian_phone, parent_consent_given,
        school, education_level, field_of_study, motivation,
        mentor_id, slot_id, rejection_reason, submitted_at, created_at, updated_at)
        VALUES (:id, :tracking_code, :applicant_id, :session_key, :status, :current_step,
        :full_name, :email, :phone, :date_of_birth, :is_minor,
        :guardian_name, :guardian_phone, :parent_consent_given,
        :school, :education_level, :field_of_study, :motivation,
        :mentor_id, :slot_id, :rejection_reason, :submitted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// FindByID returns an application by its ID.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE id = $1 LIMIT 1`, applicationColumns)
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find application: %w", err)
	}
	return &app, nil
}

// FindByTrackingCode returns an application by its public tracking code.
func (r *ApplicationRepository) FindByTrackingCode(ctx context.Context, code string) (*models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE tracking_code = $1 LIMIT 1`, applicationColumns)
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find application by tracking code: %w", err)
	}
	return &app, nil
}

// FindDraftBySession returns the open draft tied to an anonymous session.
func (r *ApplicationRepository) FindDraftBySession(ctx context.Context, sessionKey string) (*models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE session_key = $1 AND status = $2 ORDER BY created_at DESC LIMIT 1`, applicationColumns)
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, sessionKey, models.ApplicationStatusDraft); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find draft by session: %w", err)
	}
	return &app, nil
}

// TrackingCodeExists reports whether a tracking code is already taken.
func (r *ApplicationRepository) TrackingCodeExists(ctx context.Context, code string) (bool, error) {
	const query = `SELECT 1 FROM applications WHERE tracking_code = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check tracking code: %w", err)
	}
	return true, nil
}

// Update persists the mutable wizard fields of an application.
func (r *ApplicationRepository) Update(ctx context.Context, app *models.Application) error {
	app.UpdatedAt = time.Now().UTC()
	const query = `UPDATE applications SET current_step = :current_step,
        full_name = :full_name, email = :email, phone = :phone,
        date_of_birth = :date_of_birth, is_minor = :is_minor,
        guardian_name = :guardian_name, guardian_phone = :guardian_phone,
        parent_consent_given = :parent_consent_given,
        school = :school, education_level = :education_level,
        field_of_study = :field_of_study, motivation = :motivation,
        mentor_id = :mentor_id, slot_id = :slot_id,
        applicant_id = :applicant_id, submitted_at = :submitted_at,
        updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	return nil
}

// UpdateStatus transitions an application only when it is still in the
// expected state. It returns the number of rows moved so callers can
// detect a lost race.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id string, from, to models.ApplicationStatus, reason string) (int64, error) {
	const query = `UPDATE applications SET status = $3, rejection_reason = $4, updated_at = $5 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, reason, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("update application status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update application status rows: %w", err)
	}
	return rows, nil
}

// UpdateMentor reassigns an application to another mentor and clears the slot.
func (r *ApplicationRepository) UpdateMentor(ctx context.Context, id, mentorID string) error {
	const query = `UPDATE applications SET mentor_id = $2, slot_id = NULL, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, mentorID, time.Now().UTC()); err != nil {
		return fmt.Errorf("reassign application mentor: %w", err)
	}
	return nil
}

// List returns applications matching the filter with a total count.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	base := `FROM applications a
LEFT JOIN users m ON m.id = a.mentor_id
LEFT JOIN availability_slots sl ON sl.id = a.slot_id`
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.MentorID != "" {
		conditions = append(conditions, fmt.Sprintf("a.mentor_id = $%d", len(args)+1))
		args = append(args, filter.MentorID)
	}
	if len(filter.MentorIDs) > 0 {
		placeholders := make([]string, len(filter.MentorIDs))
		for i, id := range filter.MentorIDs {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, id)
		}
		conditions = append(conditions, fmt.Sprintf("a.mentor_id IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.MinorOnly != nil {
		conditions = append(conditions, fmt.Sprintf("a.is_minor = $%d", len(args)+1))
		args = append(args, *filter.MinorOnly)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(a.full_name) LIKE $%d OR LOWER(a.email) LIKE $%d OR LOWER(a.tracking_code) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "a.created_at",
		"updated_at":   "a.updated_at",
		"submitted_at": "a.submitted_at",
		"full_name":    "a.full_name",
		"status":       "a.status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "a.created_at"
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

	query := fmt.Sprintf(`SELECT a.*, COALESCE(m.full_name, '') AS mentor_name,
        COALESCE(sl.title, '') AS slot_title, COALESCE(TO_CHAR(sl.date, 'YYYY-MM-DD'), '') AS slot_date
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var apps []models.ApplicationDetail
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return apps, total, nil
}

// CountByStatus aggregates applications per status for dashboards.
func (r *ApplicationRepository) CountByStatus(ctx context.Context) (*models.StatusCounts, error) {
	const query = `SELECT
        COUNT(*) FILTER (WHERE status = 'draft') AS draft,
        COUNT(*) FILTER (WHERE status = 'pending_finance') AS pending_finance,
        COUNT(*) FILTER (WHERE status = 'finance_rejected') AS finance_rejected,
        COUNT(*) FILTER (WHERE status = 'pending_review') AS pending_review,
        COUNT(*) FILTER (WHERE status = 'review_rejected') AS review_rejected,
        COUNT(*) FILTER (WHERE status = 'approved') AS approved,
        COUNT(*) FILTER (WHERE status = 'enrolled') AS enrolled
        FROM applications`
	var counts models.StatusCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count applications by status: %w", err)
	}
	return &counts, nil
}

// ListByApplicant returns all applications owned by a user.
func (r *ApplicationRepository) ListByApplicant(ctx context.Context, applicantID string) ([]models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE applicant_id = $1 ORDER BY created_at DESC`, applicationColumns)
	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, query, applicantID); err != nil {
		return nil, fmt.Errorf("list applicant applications: %w", err)
	}
	return apps, nil
}
