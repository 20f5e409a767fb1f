package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
)

type guestRepository interface {
	Create(ctx context.Context, app *models.GuestApplication) error
	FindByID(ctx context.Context, id string) (*models.GuestApplication, error)
	UpdateStatus(ctx context.Context, id string, status models.GuestApplicationStatus, feedback string) (int64, error)
	List(ctx context.Context, filter models.GuestApplicationFilter) ([]models.GuestApplication, int, error)
	CreateInvitationToken(ctx context.Context, token *models.InvitationToken) error
	InvalidateTokens(ctx context.Context, applicationID string, at time.Time) error
}

type guestNotifier interface {
	GuestDecision(app *models.GuestApplication, approved bool, feedback, invitationToken string)
}

// GuestService handles the lightweight no-account contact flow: a guest
// writes to a mentor, the mentor decides, and an approval issues a
// single-use invitation token for registration.
type GuestService struct {
	repo      guestRepository
	users     mentorReader
	activity  activityAppender
	notifier  guestNotifier
	tokenTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGuestService constructs GuestService. The notifier may be nil.
func NewGuestService(repo guestRepository, users mentorReader, activity activityAppender, notifier guestNotifier, tokenTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *GuestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	return &GuestService{repo: repo, users: users, activity: activity, notifier: notifier, tokenTTL: tokenTTL, validator: validate, logger: logger}
}

// Create submits a guest application addressed to a mentor.
func (s *GuestService) Create(ctx context.Context, req models.CreateGuestApplicationRequest, cvPath string) (*models.GuestApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid guest application payload")
	}

	mentor, err := s.users.FindByID(ctx, req.MentorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mentor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
	}
	if mentor.Role != models.RoleMentor || !mentor.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "selected user is not an active mentor")
	}

	app := &models.GuestApplication{
		FullName:  req.FullName,
		Email:     req.Email,
		School:    req.School,
		Interests: req.Interests,
		Message:   req.Message,
		CVPath:    cvPath,
		MentorID:  req.MentorID,
		Status:    models.GuestStatusPending,
	}
	if err := s.repo.Create(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create guest application")
	}
	return app, nil
}

// Get returns a guest application visible to its mentor or staff.
func (s *GuestService) Get(ctx context.Context, id, mentorID string, staff bool) (*models.GuestApplication, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "guest application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guest application")
	}
	if !staff && app.MentorID != mentorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "guest application is addressed to another mentor")
	}
	return app, nil
}

// List returns guest applications with pagination metadata.
func (s *GuestService) List(ctx context.Context, filter models.GuestApplicationFilter) ([]models.GuestApplication, *models.Pagination, error) {
	apps, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list guest applications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return apps, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Approve records the mentor's approval, replaces any live invitation
// tokens with a fresh single-use one, and mails the invitation.
func (s *GuestService) Approve(ctx context.Context, id, mentorID string, req models.GuestDecisionRequest) (*models.InvitationToken, error) {
	app, err := s.Get(ctx, id, mentorID, false)
	if err != nil {
		return nil, err
	}
	if app.Status != models.GuestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrWrongState, "guest application already decided")
	}

	rows, err := s.repo.UpdateStatus(ctx, id, models.GuestStatusApproved, req.Feedback)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve guest application")
	}
	if rows == 0 {
		return nil, appErrors.Clone(appErrors.ErrWrongState, "guest application was decided concurrently")
	}

	now := time.Now().UTC()
	if err := s.repo.InvalidateTokens(ctx, id, now); err != nil {
		s.logger.Warn("failed to invalidate older invitation tokens", zap.Error(err))
	}

	value, err := generateInvitationToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate invitation token")
	}
	token := &models.InvitationToken{
		Token:         value,
		ApplicationID: id,
		ExpiresAt:     now.Add(s.tokenTTL),
	}
	if err := s.repo.CreateInvitationToken(ctx, token); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store invitation token")
	}

	if err := s.activity.Create(ctx, &models.ActivityLog{
		EntityKind:     models.EntityGuestApplication,
		EntityID:       id,
		ActionType:     models.ActivityStatusChange,
		PreviousStatus: string(models.GuestStatusPending),
		NewStatus:      string(models.GuestStatusApproved),
		Details:        req.Feedback,
		ActorID:        &mentorID,
	}); err != nil {
		s.logger.Warn("failed to record guest approval activity", zap.Error(err))
	}

	if s.notifier != nil {
		app.Status = models.GuestStatusApproved
		s.notifier.GuestDecision(app, true, req.Feedback, token.Token)
	}
	return token, nil
}

// Reject records the mentor's rejection with feedback.
func (s *GuestService) Reject(ctx context.Context, id, mentorID string, req models.GuestDecisionRequest) error {
	app, err := s.Get(ctx, id, mentorID, false)
	if err != nil {
		return err
	}
	if app.Status != models.GuestStatusPending {
		return appErrors.Clone(appErrors.ErrWrongState, "guest application already decided")
	}

	rows, err := s.repo.UpdateStatus(ctx, id, models.GuestStatusRejected, req.Feedback)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject guest application")
	}
	if rows == 0 {
		return appErrors.Clone(appErrors.ErrWrongState, "guest application was decided concurrently")
	}

	if err := s.activity.Create(ctx, &models.ActivityLog{
		EntityKind:     models.EntityGuestApplication,
		EntityID:       id,
		ActionType:     models.ActivityStatusChange,
		PreviousStatus: string(models.GuestStatusPending),
		NewStatus:      string(models.GuestStatusRejected),
		Details:        req.Feedback,
		ActorID:        &mentorID,
	}); err != nil {
		s.logger.Warn("failed to record guest rejection activity", zap.Error(err))
	}

	if s.notifier != nil {
		app.Status = models.GuestStatusRejected
		s.notifier.GuestDecision(app, false, req.Feedback, "")
	}
	return nil
}

func generateInvitationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
