package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
)

type facilitatorRepository interface {
	Create(ctx context.Context, a *models.FacilitatorAssignment) error
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, facilitatorID, mentorID string) (bool, error)
	MentorIDs(ctx context.Context, facilitatorID string) ([]string, error)
	List(ctx context.Context, facilitatorID string) ([]models.FacilitatorAssignmentDetail, error)
}

type applicationReassigner interface {
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, *models.Pagination, error)
	Reassign(ctx context.Context, id, actorID, mentorID string) (*models.Application, error)
	Get(ctx context.Context, id string, owner Owner) (*models.Application, error)
}

// FacilitatorService scopes application monitoring and mentor
// reassignment to the mentors a facilitator is assigned to.
type FacilitatorService struct {
	repo      facilitatorRepository
	users     mentorReader
	apps      applicationReassigner
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFacilitatorService constructs FacilitatorService.
func NewFacilitatorService(repo facilitatorRepository, users mentorReader, apps applicationReassigner, validate *validator.Validate, logger *zap.Logger) *FacilitatorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FacilitatorService{repo: repo, users: users, apps: apps, validator: validate, logger: logger}
}

// Assign links a facilitator to a mentor. Admin only.
func (s *FacilitatorService) Assign(ctx context.Context, adminID string, req models.AssignFacilitatorRequest) (*models.FacilitatorAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	facilitator, err := s.users.FindByID(ctx, req.FacilitatorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "facilitator not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load facilitator")
	}
	if facilitator.Role != models.RoleMentorFacilitator {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user is not a mentor facilitator")
	}

	mentor, err := s.users.FindByID(ctx, req.MentorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mentor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
	}
	if mentor.Role != models.RoleMentor {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user is not a mentor")
	}

	exists, err := s.repo.Exists(ctx, req.FacilitatorID, req.MentorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "facilitator is already assigned to this mentor")
	}

	assignment := &models.FacilitatorAssignment{
		FacilitatorID: req.FacilitatorID,
		MentorID:      req.MentorID,
		AssignedBy:    &adminID,
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	return assignment, nil
}

// Unassign removes an assignment.
func (s *FacilitatorService) Unassign(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	return nil
}

// Assignments lists assignments, optionally scoped to one facilitator.
func (s *FacilitatorService) Assignments(ctx context.Context, facilitatorID string) ([]models.FacilitatorAssignmentDetail, error) {
	assignments, err := s.repo.List(ctx, facilitatorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// Applications lists the applications belonging to the facilitator's
// assigned mentors.
func (s *FacilitatorService) Applications(ctx context.Context, facilitatorID string, filter models.ApplicationFilter) ([]models.ApplicationDetail, *models.Pagination, error) {
	mentorIDs, err := s.repo.MentorIDs(ctx, facilitatorID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assigned mentors")
	}
	if len(mentorIDs) == 0 {
		return []models.ApplicationDetail{}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 0}, nil
	}

	filter.MentorID = ""
	filter.MentorIDs = mentorIDs
	apps, pagination, err := s.apps.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	return apps, pagination, nil
}

// Reassign moves an application to another mentor. Both the current and
// the target mentor must belong to the facilitator's assigned set, and
// the application must not be finalised.
func (s *FacilitatorService) Reassign(ctx context.Context, facilitatorID, applicationID string, req models.ReassignMentorRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reassignment payload")
	}

	app, err := s.apps.Get(ctx, applicationID, Owner{Staff: true})
	if err != nil {
		return nil, err
	}

	mentorIDs, err := s.repo.MentorIDs(ctx, facilitatorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assigned mentors")
	}
	assigned := make(map[string]bool, len(mentorIDs))
	for _, id := range mentorIDs {
		assigned[id] = true
	}
	if app.MentorID == nil || !assigned[*app.MentorID] {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application's mentor is outside your assigned set")
	}
	if !assigned[req.MentorID] {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "target mentor is outside your assigned set")
	}

	return s.apps.Reassign(ctx, applicationID, facilitatorID, req.MentorID)
}
