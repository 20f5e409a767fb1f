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

const studentProfileColumns = `id, user_id, school, education_level, field_of_study, skills, interests, city, country, preferred_session_type, date_of_birth, created_at, updated_at`

const mentorProfileColumns = `id, user_id, headline, expertise, skills, experience_years, company, job_title, city, country, accepts_in_person, accepts_virtual, min_internship_days, max_internship_days, is_available, rating, total_reviews, hourly_rate, verified, created_at, updated_at`

// ProfileRepository handles persistence of student and mentor profiles.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs the repository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindStudentByUser returns the student profile for a user.
func (r *ProfileRepository) FindStudentByUser(ctx context.Context, userID string) (*models.StudentProfile, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_profiles WHERE user_id = $1 LIMIT 1`, studentProfileColumns)
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student profile: %w", err)
	}
	return &profile, nil
}

// UpsertStudent creates or replaces the student profile for a user.
func (r *ProfileRepository) UpsertStudent(ctx context.Context, profile *models.StudentProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	const query = `INSERT INTO student_profiles (id, user_id, school, education_level, field_of_study, skills, interests, city, country, preferred_session_type, date_of_birth, created_at, updated_at)
        VALUES (:id, :user_id, :school, :education_level, :field_of_study, :skills, :interests, :city, :country, :preferred_session_type, :date_of_birth, :created_at, :updated_at)
        ON CONFLICT (user_id) DO UPDATE SET
        school = EXCLUDED.school, education_level = EXCLUDED.education_level,
        field_of_study = EXCLUDED.field_of_study, skills = EXCLUDED.skills,
        interests = EXCLUDED.interests, city = EXCLUDED.city, country = EXCLUDED.country,
        preferred_session_type = EXCLUDED.preferred_session_type,
        date_of_birth = EXCLUDED.date_of_birth, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("upsert student profile: %w", err)
	}
	return nil
}

// FindMentorByUser returns the mentor profile for a user.
func (r *ProfileRepository) FindMentorByUser(ctx context.Context, userID string) (*models.MentorProfile, error) {
	query := fmt.Sprintf(`SELECT %s FROM mentor_profiles WHERE user_id = $1 LIMIT 1`, mentorProfileColumns)
	var profile models.MentorProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find mentor profile: %w", err)
	}
	return &profile, nil
}

// UpsertMentor creates or replaces the mentor profile for a user. Rating,
// review counts and the verified flag are managed elsewhere and survive
// the upsert.
func (r *ProfileRepository) UpsertMentor(ctx context.Context, profile *models.MentorProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	const query = `INSERT INTO mentor_profiles (id, user_id, headline, expertise, skills, experience_years, company, job_title, city, country, accepts_in_person, accepts_virtual, min_internship_days, max_internship_days, is_available, rating, total_reviews, hourly_rate, verified, created_at, updated_at)
        VALUES (:id, :user_id, :headline, :expertise, :skills, :experience_years, :company, :job_title, :city, :country, :accepts_in_person, :accepts_virtual, :min_internship_days, :max_internship_days, :is_available, :rating, :total_reviews, :hourly_rate, :verified, :created_at, :updated_at)
        ON CONFLICT (user_id) DO UPDATE SET
        headline = EXCLUDED.headline, expertise = EXCLUDED.expertise, skills = EXCLUDED.skills,
        experience_years = EXCLUDED.experience_years, company = EXCLUDED.company,
        job_title = EXCLUDED.job_title, city = EXCLUDED.city, country = EXCLUDED.country,
        accepts_in_person = EXCLUDED.accepts_in_person, accepts_virtual = EXCLUDED.accepts_virtual,
        min_internship_days = EXCLUDED.min_internship_days, max_internship_days = EXCLUDED.max_internship_days,
        is_available = EXCLUDED.is_available, hourly_rate = EXCLUDED.hourly_rate,
        updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("upsert mentor profile: %w", err)
	}
	return nil
}

// ListMentors returns directory entries matching the filter with a total count.
func (r *ProfileRepository) ListMentors(ctx context.Context, filter models.MentorFilter) ([]models.MentorDirectoryEntry, int, error) {
	base := `FROM mentor_profiles mp
JOIN users u ON u.id = mp.user_id AND u.active = TRUE`
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(u.full_name) LIKE $%d OR LOWER(mp.headline) LIKE $%d OR LOWER(mp.expertise) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Expertise != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(mp.expertise) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Expertise)+"%")
	}
	if filter.City != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(mp.city) = $%d", len(args)+1))
		args = append(args, strings.ToLower(filter.City))
	}
	if filter.Country != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(mp.country) = $%d", len(args)+1))
		args = append(args, strings.ToLower(filter.Country))
	}
	if filter.AvailableOnly {
		conditions = append(conditions, "mp.is_available = TRUE")
	}
	if filter.VerifiedOnly {
		conditions = append(conditions, "mp.verified = TRUE")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"rating":           "mp.rating",
		"experience_years": "mp.experience_years",
		"created_at":       "mp.created_at",
		"full_name":        "u.full_name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "mp.rating"
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

	query := fmt.Sprintf(`SELECT mp.*, u.full_name %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var mentors []models.MentorDirectoryEntry
	if err := r.db.SelectContext(ctx, &mentors, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list mentors: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count mentors: %w", err)
	}
	return mentors, total, nil
}

// ListAvailableMentors returns every available mentor with the owner name,
// used by the matching service to score candidates.
func (r *ProfileRepository) ListAvailableMentors(ctx context.Context) ([]models.MentorDirectoryEntry, error) {
	const query = `SELECT mp.*, u.full_name
        FROM mentor_profiles mp
        JOIN users u ON u.id = mp.user_id AND u.active = TRUE
        WHERE mp.is_available = TRUE`
	var mentors []models.MentorDirectoryEntry
	if err := r.db.SelectContext(ctx, &mentors, query); err != nil {
		return nil, fmt.Errorf("list available mentors: %w", err)
	}
	return mentors, nil
}
