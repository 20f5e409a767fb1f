package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
)

type profileRepository interface {
	FindStudentByUser(ctx context.Context, userID string) (*models.StudentProfile, error)
	UpsertStudent(ctx context.Context, profile *models.StudentProfile) error
	FindMentorByUser(ctx context.Context, userID string) (*models.MentorProfile, error)
	UpsertMentor(ctx context.Context, profile *models.MentorProfile) error
	ListMentors(ctx context.Context, filter models.MentorFilter) ([]models.MentorDirectoryEntry, int, error)
}

// ProfileService manages student and mentor profiles and the public
// mentor directory.
type ProfileService struct {
	repo      profileRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService constructs ProfileService.
func NewProfileService(repo profileRepository, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{repo: repo, validator: validate, logger: logger}
}

// GetStudent returns the student profile for a user.
func (s *ProfileService) GetStudent(ctx context.Context, userID string) (*models.StudentProfile, error) {
	profile, err := s.repo.FindStudentByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}
	return profile, nil
}

// UpdateStudent creates or updates the caller's student profile.
func (s *ProfileService) UpdateStudent(ctx context.Context, userID string, req models.UpdateStudentProfileRequest) (*models.StudentProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	profile := &models.StudentProfile{
		UserID:               userID,
		School:               req.School,
		EducationLevel:       req.EducationLevel,
		FieldOfStudy:         req.FieldOfStudy,
		Skills:               req.Skills,
		Interests:            req.Interests,
		City:                 req.City,
		Country:              req.Country,
		PreferredSessionType: req.PreferredSessionType,
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date of birth")
		}
		profile.DateOfBirth = &dob
	}

	if existing, err := s.repo.FindStudentByUser(ctx, userID); err == nil {
		profile.ID = existing.ID
		profile.CreatedAt = existing.CreatedAt
	}

	if err := s.repo.UpsertStudent(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save student profile")
	}
	return profile, nil
}

// GetMentor returns the mentor profile for a user.
func (s *ProfileService) GetMentor(ctx context.Context, userID string) (*models.MentorProfile, error) {
	profile, err := s.repo.FindMentorByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mentor profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor profile")
	}
	return profile, nil
}

// UpdateMentor creates or updates the caller's mentor profile.
func (s *ProfileService) UpdateMentor(ctx context.Context, userID string, req models.UpdateMentorProfileRequest) (*models.MentorProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	if req.MaxInternshipDays > 0 && req.MinInternshipDays > req.MaxInternshipDays {
		return nil, appErrors.Clone(appErrors.ErrValidation, "minimum internship length exceeds maximum")
	}

	profile := &models.MentorProfile{
		UserID:            userID,
		Headline:          req.Headline,
		Expertise:         req.Expertise,
		Skills:            req.Skills,
		ExperienceYears:   req.ExperienceYears,
		Company:           req.Company,
		JobTitle:          req.JobTitle,
		City:              req.City,
		Country:           req.Country,
		AcceptsInPerson:   req.AcceptsInPerson,
		AcceptsVirtual:    req.AcceptsVirtual,
		MinInternshipDays: req.MinInternshipDays,
		MaxInternshipDays: req.MaxInternshipDays,
		IsAvailable:       req.IsAvailable,
		HourlyRate:        req.HourlyRate,
	}

	if existing, err := s.repo.FindMentorByUser(ctx, userID); err == nil {
		profile.ID = existing.ID
		profile.CreatedAt = existing.CreatedAt
		profile.Rating = existing.Rating
		profile.TotalReviews = existing.TotalReviews
		profile.Verified = existing.Verified
	}

	if err := s.repo.UpsertMentor(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save mentor profile")
	}
	return profile, nil
}

// Directory returns the public mentor directory with pagination metadata.
func (s *ProfileService) Directory(ctx context.Context, filter models.MentorFilter) ([]models.MentorDirectoryEntry, *models.Pagination, error) {
	mentors, total, err := s.repo.ListMentors(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mentors")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return mentors, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
