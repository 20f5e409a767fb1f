package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
)

// FacilitatorRepository handles facilitator-to-mentor assignments.
type FacilitatorRepository struct {
	db *sqlx.DB
}

// NewFacilitatorRepository constructs the repository.
func NewFacilitatorRepository(db *sqlx.DB) *FacilitatorRepository {
	return &FacilitatorRepository{db: db}
}

// Create persists a new assignment.
func (r *FacilitatorRepository) Create(ctx context.Context, a *models.FacilitatorAssignment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO facilitator_assignments (id, facilitator_id, mentor_id, assigned_by, created_at)
        VALUES (:id, :facilitator_id, :mentor_id, :assigned_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create facilitator assignment: %w", err)
	}
	return nil
}

// Delete removes an assignment.
func (r *FacilitatorRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM facilitator_assignments WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete facilitator assignment: %w", err)
	}
	return nil
}

// Exists reports whether a facilitator is already assigned to a mentor.
func (r *FacilitatorRepository) Exists(ctx context.Context, facilitatorID, mentorID string) (bool, error) {
	const query = `SELECT 1 FROM facilitator_assignments WHERE facilitator_id = $1 AND mentor_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, facilitatorID, mentorID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check facilitator assignment: %w", err)
	}
	return true, nil
}

// MentorIDs returns every mentor assigned to a facilitator.
func (r *FacilitatorRepository) MentorIDs(ctx context.Context, facilitatorID string) ([]string, error) {
	const query = `SELECT mentor_id FROM facilitator_assignments WHERE facilitator_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, facilitatorID); err != nil {
		return nil, fmt.Errorf("list facilitator mentors: %w", err)
	}
	return ids, nil
}

// List returns assignments enriched with user names.
func (r *FacilitatorRepository) List(ctx context.Context, facilitatorID string) ([]models.FacilitatorAssignmentDetail, error) {
	query := `SELECT fa.id, fa.facilitator_id, fa.mentor_id, fa.assigned_by, fa.created_at,
        f.full_name AS facilitator_name, m.full_name AS mentor_name
        FROM facilitator_assignments fa
        JOIN users f ON f.id = fa.facilitator_id
        JOIN users m ON m.id = fa.mentor_id`
	var args []interface{}
	if facilitatorID != "" {
		query += ` WHERE fa.facilitator_id = $1`
		args = append(args, facilitatorID)
	}
	query += ` ORDER BY fa.created_at DESC`
	var assignments []models.FacilitatorAssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("list facilitator assignments: %w", err)
	}
	return assignments, nil
}
