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

const slotColumns = `id, mentor_id, title, description, date, end_date, start_time, end_time, location_type, address, max_bookings, current_bookings, created_at, updated_at`

// AvailabilityRepository handles persistence of availability slots.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// Create persists a new availability slot.
func (r *AvailabilityRepository) Create(ctx context.Context, slot *models.AvailabilitySlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now
	const query = `INSERT INTO availability_slots (id, mentor_id, title, description, date, end_date, start_time, end_time, location_type, address, max_bookings, current_bookings, created_at, updated_at)
        VALUES (:id, :mentor_id, :title, :description, :date, :end_date, :start_time, :end_time, :location_type, :address, :max_bookings, :current_bookings, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create slot: %w", err)
	}
	return nil
}

// FindByID returns a slot by its ID.
func (r *AvailabilityRepository) FindByID(ctx context.Context, id string) (*models.AvailabilitySlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM availability_slots WHERE id = $1 LIMIT 1`, slotColumns)
	var slot models.AvailabilitySlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find slot: %w", err)
	}
	return &slot, nil
}

// Update persists mutable slot fields.
func (r *AvailabilityRepository) Update(ctx context.Context, slot *models.AvailabilitySlot) error {
	slot.UpdatedAt = time.Now().UTC()
	const query = `UPDATE availability_slots SET title = :title, description = :description,
        date = :date, end_date = :end_date, start_time = :start_time, end_time = :end_time,
        location_type = :location_type, address = :address, max_bookings = :max_bookings,
        updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("update slot: %w", err)
	}
	return nil
}

// Delete removes a slot.
func (r *AvailabilityRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM availability_slots WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	return nil
}

// Book increments current_bookings only while capacity remains. The
// returned row count is zero when the slot is already full, which is the
// only signal callers need; there is no read-modify-write window.
func (r *AvailabilityRepository) Book(ctx context.Context, id string) (int64, error) {
	const query = `UPDATE availability_slots
        SET current_bookings = current_bookings + 1, updated_at = $2
        WHERE id = $1 AND current_bookings < max_bookings`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("book slot: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("book slot rows: %w", err)
	}
	return rows, nil
}

// Release decrements current_bookings with a floor of zero.
func (r *AvailabilityRepository) Release(ctx context.Context, id string) error {
	const query = `UPDATE availability_slots
        SET current_bookings = current_bookings - 1, updated_at = $2
        WHERE id = $1 AND current_bookings > 0`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

// List returns slots matching the filter with a total count.
func (r *AvailabilityRepository) List(ctx context.Context, filter models.SlotFilter) ([]models.AvailabilitySlot, int, error) {
	base := `FROM availability_slots WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.MentorID != "" {
		conditions = append(conditions, fmt.Sprintf("mentor_id = $%d", len(args)+1))
		args = append(args, filter.MentorID)
	}
	if filter.OpenOnly {
		conditions = append(conditions, "current_bookings < max_bookings")
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]bool{
		"date":       true,
		"created_at": true,
	}
	sortBy := filter.SortBy
	if !allowedSorts[sortBy] {
		sortBy = "date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", slotColumns, base+clause, sortBy, order, size, offset)

	var slots []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list slots: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count slots: %w", err)
	}
	return slots, total, nil
}

// HasOpenSlots reports whether a mentor has any slot with free capacity.
func (r *AvailabilityRepository) HasOpenSlots(ctx context.Context, mentorID string) (bool, error) {
	const query = `SELECT 1 FROM availability_slots WHERE mentor_id = $1 AND current_bookings < max_bookings LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, mentorID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check open slots: %w", err)
	}
	return true, nil
}
