package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
)

// Request payloads validate mentor, slot and user references with the
// uuid rule, so shared fixtures carry fixed UUIDs instead of readable
// handles.
const (
	mentorAID        = "3d9c2f64-1b7a-4c8e-9f05-6a2d8e417b3c"
	mentorBID        = "7e1f5a28-9c3b-4d6e-8a40-2f7b9c0d1e5a"
	outsideMentorID  = "c4b8d2e6-0f1a-4739-b5c8-9e6d3a2f7081"
	inactiveMentorID = "5a0e9d31-7c2b-48f6-a1d4-3e8b6c9f2075"
	facilitatorAID   = "9f3e7b51-2d8c-46a0-b7e9-1c5a4d8f6302"
	studentUserID    = "1b6d4f82-3e9a-47c5-80d2-7f4c9b5e1a63"
	slotAID          = "2c7e9a14-5f8b-4d30-96c1-8a3d5e7f2b94"
)

type mockApplicationRepo struct {
	apps        map[string]models.Application
	codes       map[string]bool
	transitions []string
}

func (m *mockApplicationRepo) Create(ctx context.Context, app *models.Application) error {
	if m.apps == nil {
		m.apps = make(map[string]models.Application)
	}
	if app.ID == "" {
		app.ID = "new-app"
	}
	m.apps[app.ID] = *app
	return nil
}

func (m *mockApplicationRepo) FindByID(ctx context.Context, id string) (*models.Application, error) {
	if a, ok := m.apps[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockApplicationRepo) FindByTrackingCode(ctx context.Context, code string) (*models.Application, error) {
	for _, a := range m.apps {
		if a.TrackingCode == code {
			return &a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockApplicationRepo) FindDraftBySession(ctx context.Context, sessionKey string) (*models.Application, error) {
	for _, a := range m.apps {
		if a.SessionKey == sessionKey && a.Status == models.ApplicationStatusDraft {
			return &a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockApplicationRepo) TrackingCodeExists(ctx context.Context, code string) (bool, error) {
	return m.codes[code], nil
}

func (m *mockApplicationRepo) Update(ctx context.Context, app *models.Application) error {
	m.apps[app.ID] = *app
	return nil
}

func (m *mockApplicationRepo) UpdateStatus(ctx context.Context, id string, from, to models.ApplicationStatus, reason string) (int64, error) {
	a, ok := m.apps[id]
	if !ok || a.Status != from {
		return 0, nil
	}
	a.Status = to
	a.RejectionReason = reason
	m.apps[id] = a
	m.transitions = append(m.transitions, string(from)+"->"+string(to))
	return 1, nil
}

func (m *mockApplicationRepo) UpdateMentor(ctx context.Context, id, mentorID string) error {
	a := m.apps[id]
	a.MentorID = &mentorID
	a.SlotID = nil
	m.apps[id] = a
	return nil
}

func (m *mockApplicationRepo) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	var out []models.ApplicationDetail
	allowed := map[string]bool{}
	for _, id := range filter.MentorIDs {
		allowed[id] = true
	}
	for _, a := range m.apps {
		if len(allowed) > 0 && (a.MentorID == nil || !allowed[*a.MentorID]) {
			continue
		}
		out = append(out, models.ApplicationDetail{Application: a})
	}
	return out, len(out), nil
}

func (m *mockApplicationRepo) CountByStatus(ctx context.Context) (*models.StatusCounts, error) {
	return &models.StatusCounts{}, nil
}

func (m *mockApplicationRepo) ListByApplicant(ctx context.Context, applicantID string) ([]models.Application, error) {
	var out []models.Application
	for _, a := range m.apps {
		if a.ApplicantID != nil && *a.ApplicantID == applicantID {
			out = append(out, a)
		}
	}
	return out, nil
}

type mockSlotBooker struct {
	slots    map[string]models.AvailabilitySlot
	booked   []string
	released []string
}

func (m *mockSlotBooker) FindByID(ctx context.Context, id string) (*models.AvailabilitySlot, error) {
	if s, ok := m.slots[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSlotBooker) Book(ctx context.Context, id string) (int64, error) {
	s, ok := m.slots[id]
	if !ok || s.CurrentBookings >= s.MaxBookings {
		return 0, nil
	}
	s.CurrentBookings++
	m.slots[id] = s
	m.booked = append(m.booked, id)
	return 1, nil
}

func (m *mockSlotBooker) Release(ctx context.Context, id string) error {
	if s, ok := m.slots[id]; ok && s.CurrentBookings > 0 {
		s.CurrentBookings--
		m.slots[id] = s
	}
	m.released = append(m.released, id)
	return nil
}

type mockActivityLog struct {
	entries []models.ActivityLog
}

func (m *mockActivityLog) Create(ctx context.Context, entry *models.ActivityLog) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockActivityLog) ListByEntity(ctx context.Context, kind models.EntityKind, entityID string) ([]models.ActivityDetail, error) {
	var out []models.ActivityDetail
	for _, e := range m.entries {
		if e.EntityKind == kind && e.EntityID == entityID {
			out = append(out, models.ActivityDetail{ActivityLog: e})
		}
	}
	return out, nil
}

type mockUserReader struct {
	users map[string]*models.User
}

func (m *mockUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type mockDecisionNotifier struct {
	decisions  []string
	reassigned []string
}

func (m *mockDecisionNotifier) ApplicationDecision(app *models.Application, approved bool, reason string) {
	verdict := "approved"
	if !approved {
		verdict = "rejected"
	}
	m.decisions = append(m.decisions, verdict)
}

func (m *mockDecisionNotifier) MentorReassigned(app *models.Application, mentorName string) {
	m.reassigned = append(m.reassigned, mentorName)
}

func newWizardService(repo *mockApplicationRepo, slots *mockSlotBooker, activity *mockActivityLog, users *mockUserReader) *ApplicationService {
	if slots == nil {
		slots = &mockSlotBooker{}
	}
	if activity == nil {
		activity = &mockActivityLog{}
	}
	if users == nil {
		users = &mockUserReader{}
	}
	return NewApplicationService(repo, slots, activity, users, nil, validator.New(), zap.NewNop())
}

func TestApplicationServiceStartDraftGeneratesTrackingCode(t *testing.T) {
	repo := &mockApplicationRepo{}
	svc := newWizardService(repo, nil, nil, nil)

	app, err := svc.StartDraft(context.Background(), "", "sess-1")
	require.NoError(t, err)
	assert.Regexp(t, `^MC-[A-Z2-7]{10}$`, app.TrackingCode)
	assert.Equal(t, models.ApplicationStatusDraft, app.Status)
	assert.Equal(t, 1, app.CurrentStep)
}

func TestApplicationServicePersonalStepDerivesMinor(t *testing.T) {
	repo := &mockApplicationRepo{apps: map[string]models.Application{
		"app-1": {ID: "app-1", SessionKey: "sess-1", Status: models.ApplicationStatusDraft, CurrentStep: 1},
	}}
	svc := newWizardService(repo, nil, nil, nil)
	owner := Owner{SessionKey: "sess-1"}

	minorDOB := time.Now().AddDate(-16, 0, 0).Format("2006-01-02")
	app, err := svc.SavePersonalStep(context.Background(), "app-1", owner, models.PersonalStepRequest{
		FullName: "Jean Doe", Email: "jean@example.com", Phone: "0788000000", DateOfBirth: minorDOB,
	})
	require.NoError(t, err)
	assert.True(t, app.IsMinor)
	assert.Equal(t, 2, app.CurrentStep)

	adultDOB := time.Now().AddDate(-25, 0, 0).Format("2006-01-02")
	app, err = svc.SavePersonalStep(context.Background(), "app-1", owner, models.PersonalStepRequest{
		FullName: "Jean Doe", Email: "jean@example.com", Phone: "0788000000", DateOfBirth: adultDOB,
	})
	require.NoError(t, err)
	assert.False(t, app.IsMinor)
}

func TestApplicationServiceGuardianStepRequiredForMinors(t *testing.T) {
	repo := &mockApplicationRepo{apps: map[string]models.Application{
		"app-1": {ID: "app-1", SessionKey: "sess-1", Status: models.ApplicationStatusDraft, CurrentStep: 2, IsMinor: true},
	}}
	svc := newWizardService(repo, nil, nil, nil)
	owner := Owner{SessionKey: "sess-1"}

	_, err := svc.SaveGuardianStep(context.Background(), "app-1", owner, models.GuardianStepRequest{})
	require.Error(t, err)

	_, err = svc.SaveGuardianStep(context.Background(), "app-1", owner, models.GuardianStepRequest{
		GuardianName: "Parent Doe", GuardianPhone: "0788111111", ParentConsentGiven: false,
	})
	require.Error(t, err)

	app, err := svc.SaveGuardianStep(context.Background(), "app-1", owner, models.GuardianStepRequest{
		GuardianName: "Parent Doe", GuardianPhone: "0788111111", ParentConsentGiven: true,
	})
	require.NoError(t, err)
	assert.True(t, app.ParentConsentGiven)
	assert.Equal(t, 3, app.CurrentStep)
}

func TestApplicationServiceGuardianStepRejectedForAdults(t *testing.T) {
	repo := &mockApplicationRepo{apps: map[string]models.Application{
		"app-1": {ID: "app-1", SessionKey: "sess-1", Status: models.ApplicationStatusDraft, CurrentStep: 2, IsMinor: false},
	}}
	svc := newWizardService(repo, nil, nil, nil)

	_, err := svc.SaveGuardianStep(context.Background(), "app-1", Owner{SessionKey: "sess-1"}, models.GuardianStepRequest{
		GuardianName: "Parent Doe", GuardianPhone: "0788111111", ParentConsentGiven: true,
	})
	require.Error(t, err)
}

func TestApplicationServiceStepCannotBeSkipped(t *testing.T) {
	repo := &mockApplicationRepo{apps: map[string]models.Application{
		"app-1": {ID: "app-1", SessionKey: "sess-1", Status: models.ApplicationStatusDraft, CurrentStep: 1},
	}}
	svc := newWizardService(repo, nil, nil, nil)

	_, err := svc.SaveEducationStep(context.Background(), "app-1", Owner{SessionKey: "sess-1"}, models.EducationStepRequest{
		School: "GS Kigali", EducationLevel: "secondary", Motivation: "growth",
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestApplicationServiceMentorStepReservesSlot(t *testing.T) {
	repo := &mockApplicationRepo{apps: map[string]models.Application{
		"app-1": {ID: "app-1", SessionKey: "sess-1", Status: models.ApplicationStatusDraft, CurrentStep: 4},
	}}
	slots := &mockSlotBooker{slots: map[string]models.AvailabilitySlot{
		slotAID: {ID: slotAID, MentorID: mentorAID, MaxBookings: 1},
	}}
	users := &mockUserReader{users: map[string]*models.User{
		mentorAID: {ID: mentorAID, Role: models.RoleMentor, Active: true},
	}}
	svc := newWizardService(repo, slots, nil, users)

	app, err := svc.SaveMentorStep(context.Background(), "app-1", Owner{SessionKey: "sess-1"}, models.MentorStepRequest{
		MentorID: mentorAID, SlotID: slotAID,
	})
	require.NoError(t, err)
	assert.Equal(t, slotAID, *app.SlotID)
	assert.Equal(t, 5, app.CurrentStep)
	assert.Equal(t, 1, slots.slots[slotAID].CurrentBookings)
}

func TestApplicationServiceMentorStepSlotFull(t *testing.T) {
	repo := &mockApplicationRepo{apps: map[string]models.Application{
		"app-1": {ID: "app-1", SessionKey: "sess-1", Status: models.ApplicationStatusDraft, CurrentStep: 4},
	}}
	slots := &mockSlotBooker{slots: map[string]models.AvailabilitySlot{
		slotAID: {ID: slotAID, MentorID: mentorAID, MaxBookings: 1, CurrentBookings: 1},
	}}
	users := &mockUserReader{users: map[string]*models.User{
		mentorAID: {ID: mentorAID, Role: models.RoleMentor, Active: true},
	}}
	svc := newWizardService(repo, slots, nil, users)

	_, err := svc.SaveMentorStep(context.Background(), "app-1", Owner{SessionKey: "sess-1"}, models.MentorStepRequest{
		MentorID: mentorAID, SlotID: slotAID,
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrSlotFull.Code, appErr.Code)
}

func TestApplicationServiceApproveWrongState(t *testing.T) {
	repo := &mockApplicationRepo{apps: map[string]models.Application{
		"app-1": {ID: "app-1", Status: models.ApplicationStatusFinanceRejected},
	}}
	svc := newWizardService(repo, nil, nil, nil)

	_, err := svc.Approve(context.Background(), "app-1", "admin-1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrWrongState.Code, appErr.Code)
}

func TestApplicationServiceApproveWritesActivity(t *testing.T) {
	repo := &mockApplicationRepo{apps: map[string]models.Application{
		"app-1": {ID: "app-1", Status: models.ApplicationStatusPendingReview},
	}}
	activity := &mockActivityLog{}
	svc := newWizardService(repo, nil, activity, nil)

	app, err := svc.Approve(context.Background(), "app-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApproved, app.Status)
	require.Len(t, activity.entries, 1)
	assert.Equal(t, string(models.ApplicationStatusPendingReview), activity.entries[0].PreviousStatus)
	assert.Equal(t, string(models.ApplicationStatusApproved), activity.entries[0].NewStatus)
}

func TestApplicationServiceRejectReleasesSlot(t *testing.T) {
	slotID := "slot-1"
	repo := &mockApplicationRepo{apps: map[string]models.Application{
		"app-1": {ID: "app-1", Status: models.ApplicationStatusPendingReview, SlotID: &slotID},
	}}
	slots := &mockSlotBooker{slots: map[string]models.AvailabilitySlot{
		"slot-1": {ID: "slot-1", MentorID: "men-1", MaxBookings: 1, CurrentBookings: 1},
	}}
	svc := newWizardService(repo, slots, nil, nil)

	_, err := svc.RejectReview(context.Background(), "app-1", "admin-1", models.RejectApplicationRequest{Reason: "incomplete"})
	require.NoError(t, err)
	assert.Contains(t, slots.released, "slot-1")
	assert.Equal(t, 0, slots.slots["slot-1"].CurrentBookings)
}

func TestApplicationServiceReassignNotifiesApplicant(t *testing.T) {
	prevMentor := mentorAID
	slotID := slotAID
	repo := &mockApplicationRepo{apps: map[string]models.Application{
		"app-1": {ID: "app-1", Status: models.ApplicationStatusPendingReview, MentorID: &prevMentor, SlotID: &slotID},
	}}
	slots := &mockSlotBooker{slots: map[string]models.AvailabilitySlot{
		slotAID: {ID: slotAID, MentorID: mentorAID, MaxBookings: 1, CurrentBookings: 1},
	}}
	users := &mockUserReader{users: map[string]*models.User{
		mentorBID: {ID: mentorBID, Role: models.RoleMentor, Active: true, FullName: "Grace Mukantwari"},
	}}
	notifier := &mockDecisionNotifier{}
	svc := NewApplicationService(repo, slots, &mockActivityLog{}, users, notifier, validator.New(), zap.NewNop())

	app, err := svc.Reassign(context.Background(), "app-1", facilitatorAID, mentorBID)
	require.NoError(t, err)
	require.NotNil(t, app.MentorID)
	assert.Equal(t, mentorBID, *app.MentorID)
	assert.Contains(t, slots.released, slotAID)
	require.Len(t, notifier.reassigned, 1)
	assert.Equal(t, "Grace Mukantwari", notifier.reassigned[0])
}

func TestApplicationServiceEnrollRequiresApproved(t *testing.T) {
	repo := &mockApplicationRepo{apps: map[string]models.Application{
		"app-1": {ID: "app-1", Status: models.ApplicationStatusApproved},
		"app-2": {ID: "app-2", Status: models.ApplicationStatusPendingReview},
	}}
	svc := newWizardService(repo, nil, nil, nil)

	app, err := svc.Enroll(context.Background(), "app-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusEnrolled, app.Status)

	_, err = svc.Enroll(context.Background(), "app-2", "admin-1")
	require.Error(t, err)
}
