package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
)

// trackingCodeAlphabet is base32 without padding; codes read well over
// the phone and never collide with lowercase email text.
const trackingCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

const trackingCodeLength = 10

// adultAge is the age at which guardian consent stops being required.
const adultAge = 18

type applicationRepository interface {
	Create(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, id string) (*models.Application, error)
	FindByTrackingCode(ctx context.Context, code string) (*models.Application, error)
	FindDraftBySession(ctx context.Context, sessionKey string) (*models.Application, error)
	TrackingCodeExists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, app *models.Application) error
	UpdateStatus(ctx context.Context, id string, from, to models.ApplicationStatus, reason string) (int64, error)
	UpdateMentor(ctx context.Context, id, mentorID string) error
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error)
	CountByStatus(ctx context.Context) (*models.StatusCounts, error)
	ListByApplicant(ctx context.Context, applicantID string) ([]models.Application, error)
}

type slotBooker interface {
	FindByID(ctx context.Context, id string) (*models.AvailabilitySlot, error)
	Book(ctx context.Context, id string) (int64, error)
	Release(ctx context.Context, id string) error
}

type activityAppender interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	ListByEntity(ctx context.Context, kind models.EntityKind, entityID string) ([]models.ActivityDetail, error)
}

type mentorReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type decisionNotifier interface {
	ApplicationDecision(app *models.Application, approved bool, reason string)
	MentorReassigned(app *models.Application, mentorName string)
}

// ApplicationService drives the mentorship application wizard and the
// admin review gate. All status transitions are state-guarded: acting on
// an application that already left the expected state fails loudly.
type ApplicationService struct {
	repo      applicationRepository
	slots     slotBooker
	activity  activityAppender
	users     mentorReader
	notifier  decisionNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewApplicationService constructs ApplicationService. The notifier may
// be nil when notifications are disabled.
func NewApplicationService(repo applicationRepository, slots slotBooker, activity activityAppender, users mentorReader, notifier decisionNotifier, validate *validator.Validate, logger *zap.Logger) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{repo: repo, slots: slots, activity: activity, users: users, notifier: notifier, validator: validate, logger: logger}
}

// StartDraft opens a new application draft. Either applicantID or
// sessionKey identifies the owner; anonymous drafts carry only the
// session key until registration.
func (s *ApplicationService) StartDraft(ctx context.Context, applicantID, sessionKey string) (*models.Application, error) {
	if applicantID == "" && sessionKey == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "an applicant or session is required")
	}

	code, err := s.generateTrackingCode(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate tracking code")
	}

	app := &models.Application{
		TrackingCode: code,
		SessionKey:   sessionKey,
		Status:       models.ApplicationStatusDraft,
		CurrentStep:  1,
	}
	if applicantID != "" {
		app.ApplicantID = &applicantID
	}
	if err := s.repo.Create(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}
	return app, nil
}

// ResumeDraft returns the open draft for an anonymous session.
func (s *ApplicationService) ResumeDraft(ctx context.Context, sessionKey string) (*models.Application, error) {
	app, err := s.repo.FindDraftBySession(ctx, sessionKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no open draft for session")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft")
	}
	return app, nil
}

// SavePersonalStep records step 1. The minor flag is derived from the
// date of birth and recomputed on every change; dropping back under the
// adult age re-requires guardian consent at step 2.
func (s *ApplicationService) SavePersonalStep(ctx context.Context, id string, owner Owner, req models.PersonalStepRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid personal details")
	}
	app, err := s.editableDraft(ctx, id, owner, 1)
	if err != nil {
		return nil, err
	}

	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date of birth")
	}
	if dob.After(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date of birth is in the future")
	}

	app.FullName = req.FullName
	app.Email = req.Email
	app.Phone = req.Phone
	app.DateOfBirth = &dob

	wasMinor := app.IsMinor
	app.IsMinor = ageAt(dob, time.Now().UTC()) < adultAge
	if !app.IsMinor {
		app.GuardianName = ""
		app.GuardianPhone = ""
		app.ParentConsentGiven = false
	} else if !wasMinor {
		// Becoming a minor invalidates any previously skipped consent.
		app.ParentConsentGiven = false
	}

	s.advanceStep(app, 2)
	if err := s.repo.Update(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save personal details")
	}
	return app, nil
}

// SaveGuardianStep records step 2. Guardian details and consent are
// required for minors and rejected for adults.
func (s *ApplicationService) SaveGuardianStep(ctx context.Context, id string, owner Owner, req models.GuardianStepRequest) (*models.Application, error) {
	app, err := s.editableDraft(ctx, id, owner, 2)
	if err != nil {
		return nil, err
	}

	if app.IsMinor {
		if req.GuardianName == "" || req.GuardianPhone == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "guardian name and phone are required for minors")
		}
		if !req.ParentConsentGiven {
			return nil, appErrors.Clone(appErrors.ErrValidation, "parental consent is required for minors")
		}
		app.GuardianName = req.GuardianName
		app.GuardianPhone = req.GuardianPhone
		app.ParentConsentGiven = true
	} else {
		if req.GuardianName != "" || req.GuardianPhone != "" || req.ParentConsentGiven {
			return nil, appErrors.Clone(appErrors.ErrValidation, "guardian details are only accepted for minors")
		}
	}

	s.advanceStep(app, 3)
	if err := s.repo.Update(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save guardian details")
	}
	return app, nil
}

// SaveEducationStep records step 3.
func (s *ApplicationService) SaveEducationStep(ctx context.Context, id string, owner Owner, req models.EducationStepRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid education details")
	}
	app, err := s.editableDraft(ctx, id, owner, 3)
	if err != nil {
		return nil, err
	}

	app.School = req.School
	app.EducationLevel = req.EducationLevel
	app.FieldOfStudy = req.FieldOfStudy
	app.Motivation = req.Motivation

	s.advanceStep(app, 4)
	if err := s.repo.Update(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save education details")
	}
	return app, nil
}

// SaveMentorStep records step 4 and reserves the chosen availability
// slot. The reservation is a conditional increment: when the slot filled
// up between listing and selection the step fails with a slot-full error
// instead of overbooking.
func (s *ApplicationService) SaveMentorStep(ctx context.Context, id string, owner Owner, req models.MentorStepRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mentor selection")
	}
	app, err := s.editableDraft(ctx, id, owner, 4)
	if err != nil {
		return nil, err
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

	slot, err := s.slots.FindByID(ctx, req.SlotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "availability slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
	}
	if slot.MentorID != req.MentorID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "slot does not belong to the selected mentor")
	}

	// Re-selecting the same slot is a no-op; a different slot swaps the
	// reservation.
	if app.SlotID == nil || *app.SlotID != req.SlotID {
		booked, err := s.slots.Book(ctx, req.SlotID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reserve slot")
		}
		if booked == 0 {
			return nil, appErrors.Clone(appErrors.ErrSlotFull, "availability slot is fully booked")
		}
		if app.SlotID != nil {
			if err := s.slots.Release(ctx, *app.SlotID); err != nil {
				s.logger.Warn("failed to release previous slot", zap.String("slot_id", *app.SlotID), zap.Error(err))
			}
		}
	}

	app.MentorID = &req.MentorID
	app.SlotID = &req.SlotID

	s.advanceStep(app, 5)
	if err := s.repo.Update(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save mentor selection")
	}
	return app, nil
}

// Submit completes step 5. The application stays in draft until a
// payment is recorded; submission only stamps the time and locks the
// wizard payload.
func (s *ApplicationService) Submit(ctx context.Context, id string, owner Owner) (*models.Application, error) {
	app, err := s.editableDraft(ctx, id, owner, 5)
	if err != nil {
		return nil, err
	}
	if app.MentorID == nil || app.SlotID == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "mentor and slot must be selected before submitting")
	}
	if app.IsMinor && !app.ParentConsentGiven {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "parental consent is missing")
	}

	now := time.Now().UTC()
	app.SubmittedAt = &now
	if err := s.repo.Update(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit application")
	}
	return app, nil
}

// ClaimDraft attaches an anonymous draft to a freshly registered account.
func (s *ApplicationService) ClaimDraft(ctx context.Context, sessionKey, applicantID string) (*models.Application, error) {
	app, err := s.ResumeDraft(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	app.ApplicantID = &applicantID
	if err := s.repo.Update(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to claim draft")
	}
	return app, nil
}

// Track returns the public status view for a tracking code.
func (s *ApplicationService) Track(ctx context.Context, code string) (*models.TrackingStatus, error) {
	app, err := s.repo.FindByTrackingCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no application with that tracking code")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return &models.TrackingStatus{
		TrackingCode: app.TrackingCode,
		Status:       app.Status,
		CurrentStep:  app.CurrentStep,
		SubmittedAt:  app.SubmittedAt,
		UpdatedAt:    app.UpdatedAt,
	}, nil
}

// Get returns an application visible to the owner or staff.
func (s *ApplicationService) Get(ctx context.Context, id string, owner Owner) (*models.Application, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if !owner.Staff && !ownerMatches(app, owner) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another applicant")
	}
	return app, nil
}

// ListMine returns every application owned by a user.
func (s *ApplicationService) ListMine(ctx context.Context, applicantID string) ([]models.Application, error) {
	apps, err := s.repo.ListByApplicant(ctx, applicantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	return apps, nil
}

// List returns applications with pagination metadata for staff views.
func (s *ApplicationService) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, *models.Pagination, error) {
	apps, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
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

// Counts returns the per-status totals for the admin dashboard.
func (s *ApplicationService) Counts(ctx context.Context) (*models.StatusCounts, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count applications")
	}
	return counts, nil
}

// History returns the activity trail for an application.
func (s *ApplicationService) History(ctx context.Context, id string) ([]models.ActivityDetail, error) {
	entries, err := s.activity.ListByEntity(ctx, models.EntityApplication, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application history")
	}
	return entries, nil
}

// Approve moves a reviewed application to approved.
func (s *ApplicationService) Approve(ctx context.Context, id, actorID string) (*models.Application, error) {
	return s.transition(ctx, id, actorID, models.ApplicationStatusPendingReview, models.ApplicationStatusApproved, "", true)
}

// RejectReview moves a reviewed application to review_rejected and
// releases its reserved slot.
func (s *ApplicationService) RejectReview(ctx context.Context, id, actorID string, req models.RejectApplicationRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "a rejection reason is required")
	}
	return s.transition(ctx, id, actorID, models.ApplicationStatusPendingReview, models.ApplicationStatusReviewRejected, req.Reason, true)
}

// Enroll finalises an approved application.
func (s *ApplicationService) Enroll(ctx context.Context, id, actorID string) (*models.Application, error) {
	return s.transition(ctx, id, actorID, models.ApplicationStatusApproved, models.ApplicationStatusEnrolled, "", false)
}

// Reassign moves an application to another mentor within the
// facilitator's assigned set. The reserved slot, if any, is released;
// the applicant picks a new one with the new mentor.
func (s *ApplicationService) Reassign(ctx context.Context, id, actorID, mentorID string) (*models.Application, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.Status.Final() {
		return nil, appErrors.Clone(appErrors.ErrWrongState, "application is already finalised")
	}
	mentor, err := s.users.FindByID(ctx, mentorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mentor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
	}
	if mentor.Role != models.RoleMentor || !mentor.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target user is not an active mentor")
	}
	if app.MentorID != nil && *app.MentorID == mentorID {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "application already assigned to this mentor")
	}

	previousMentor := ""
	if app.MentorID != nil {
		previousMentor = *app.MentorID
	}
	if app.SlotID != nil {
		if err := s.slots.Release(ctx, *app.SlotID); err != nil {
			s.logger.Warn("failed to release slot on reassignment", zap.String("slot_id", *app.SlotID), zap.Error(err))
		}
	}
	if err := s.repo.UpdateMentor(ctx, id, mentorID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reassign mentor")
	}

	if err := s.activity.Create(ctx, &models.ActivityLog{
		EntityKind: models.EntityApplication,
		EntityID:   id,
		ActionType: models.ActivityMentorReassigned,
		Details:    fmt.Sprintf("mentor changed from %s to %s", previousMentor, mentorID),
		ActorID:    &actorID,
	}); err != nil {
		s.logger.Warn("failed to record reassignment activity", zap.Error(err))
	}

	app.MentorID = &mentorID
	app.SlotID = nil
	if s.notifier != nil {
		s.notifier.MentorReassigned(app, mentor.FullName)
	}
	return app, nil
}

// Owner identifies who is acting on an application.
type Owner struct {
	UserID     string
	SessionKey string
	Staff      bool
}

func ownerMatches(app *models.Application, owner Owner) bool {
	if app.ApplicantID != nil && owner.UserID != "" {
		return *app.ApplicantID == owner.UserID
	}
	return app.SessionKey != "" && app.SessionKey == owner.SessionKey
}

func (s *ApplicationService) editableDraft(ctx context.Context, id string, owner Owner, step int) (*models.Application, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if !ownerMatches(app, owner) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another applicant")
	}
	if app.Status != models.ApplicationStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrWrongState, "application can no longer be edited")
	}
	if step > app.CurrentStep {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "previous steps must be completed first")
	}
	return app, nil
}

func (s *ApplicationService) advanceStep(app *models.Application, next int) {
	if next > 5 {
		next = 5
	}
	if next > app.CurrentStep {
		app.CurrentStep = next
	}
}

func (s *ApplicationService) transition(ctx context.Context, id, actorID string, from, to models.ApplicationStatus, reason string, releaseOnReject bool) (*models.Application, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.Status != from {
		return nil, appErrors.Clone(appErrors.ErrWrongState, fmt.Sprintf("application is %s, expected %s", app.Status, from))
	}

	rows, err := s.repo.UpdateStatus(ctx, id, from, to, reason)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}
	if rows == 0 {
		return nil, appErrors.Clone(appErrors.ErrWrongState, "application state changed concurrently")
	}

	if to == models.ApplicationStatusReviewRejected && releaseOnReject && app.SlotID != nil {
		if err := s.slots.Release(ctx, *app.SlotID); err != nil {
			s.logger.Warn("failed to release slot on rejection", zap.String("slot_id", *app.SlotID), zap.Error(err))
		}
	}

	if err := s.activity.Create(ctx, &models.ActivityLog{
		EntityKind:     models.EntityApplication,
		EntityID:       id,
		ActionType:     models.ActivityStatusChange,
		PreviousStatus: string(from),
		NewStatus:      string(to),
		Details:        reason,
		ActorID:        &actorID,
	}); err != nil {
		s.logger.Warn("failed to record status change activity", zap.Error(err))
	}

	app.Status = to
	app.RejectionReason = reason
	if s.notifier != nil {
		switch to {
		case models.ApplicationStatusApproved:
			s.notifier.ApplicationDecision(app, true, "")
		case models.ApplicationStatusReviewRejected:
			s.notifier.ApplicationDecision(app, false, reason)
		}
	}
	return app, nil
}

func (s *ApplicationService) generateTrackingCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		buf := make([]byte, trackingCodeLength)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for i := range buf {
			buf[i] = trackingCodeAlphabet[int(buf[i])%len(trackingCodeAlphabet)]
		}
		code := "MC-" + string(buf)
		exists, err := s.repo.TrackingCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("tracking code space exhausted after retries")
}

func ageAt(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	anniversary := dob.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}
