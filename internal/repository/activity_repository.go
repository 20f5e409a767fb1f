package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
)

// ActivityRepository handles the append-only activity log.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create appends one activity entry.
func (r *ActivityRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO activity_logs (id, entity_kind, entity_id, action_type, previous_status, new_status, details, actor_id, created_at)
        VALUES (:id, :entity_kind, :entity_id, :action_type, :previous_status, :new_status, :details, :actor_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create activity log: %w", err)
	}
	return nil
}

// ListByEntity returns the activity history for one entity, newest first.
func (r *ActivityRepository) ListByEntity(ctx context.Context, kind models.EntityKind, entityID string) ([]models.ActivityDetail, error) {
	const query = `SELECT l.id, l.entity_kind, l.entity_id, l.action_type, l.previous_status, l.new_status, l.details, l.actor_id, l.created_at,
        COALESCE(u.full_name, '') AS actor_name
        FROM activity_logs l
        LEFT JOIN users u ON u.id = l.actor_id
        WHERE l.entity_kind = $1 AND l.entity_id = $2
        ORDER BY l.created_at DESC`
	var entries []models.ActivityDetail
	if err := r.db.SelectContext(ctx, &entries, query, kind, entityID); err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return entries, nil
}
