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

type mockGuestRepo struct {
	apps   map[string]models.GuestApplication
	tokens []models.InvitationToken
}

func (m *mockGuestRepo) Create(ctx context.Context, app *models.GuestApplication) error {
	if m.apps == nil {
		m.apps = make(map[string]models.GuestApplication)
	}
	if app.ID == "" {
		app.ID = "new-guest"
	}
	m.apps[app.ID] = *app
	return nil
}

func (m *mockGuestRepo) FindByID(ctx context.Context, id string) (*models.GuestApplication, error) {
	if a, ok := m.apps[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGuestRepo) UpdateStatus(ctx context.Context, id string, status models.GuestApplicationStatus, feedback string) (int64, error) {
	a, ok := m.apps[id]
	if !ok || a.Status != models.GuestStatusPending {
		return 0, nil
	}
	a.Status = status
	a.MentorFeedback = feedback
	m.apps[id] = a
	return 1, nil
}

func (m *mockGuestRepo) List(ctx context.Context, filter models.GuestApplicationFilter) ([]models.GuestApplication, int, error) {
	var out []models.GuestApplication
	for _, a := range m.apps {
		out = append(out, a)
	}
	return out, len(out), nil
}

func (m *mockGuestRepo) CreateInvitationToken(ctx context.Context, token *models.InvitationToken) error {
	if token.ID == "" {
		token.ID = "new-token"
	}
	m.tokens = append(m.tokens, *token)
	return nil
}

func (m *mockGuestRepo) InvalidateTokens(ctx context.Context, applicationID string, at time.Time) error {
	for i := range m.tokens {
		if m.tokens[i].ApplicationID == applicationID && m.tokens[i].UsedAt == nil && m.tokens[i].ExpiresAt.After(at) {
			m.tokens[i].ExpiresAt = at
		}
	}
	return nil
}

func newGuestService(repo *mockGuestRepo, users *mockUserReader, activity *mockActivityLog) *GuestService {
	if users == nil {
		users = &mockUserReader{}
	}
	if activity == nil {
		activity = &mockActivityLog{}
	}
	return NewGuestService(repo, users, activity, nil, 0, validator.New(), zap.NewNop())
}

func TestGuestServiceCreateRequiresActiveMentor(t *testing.T) {
	users := &mockUserReader{users: map[string]*models.User{
		mentorAID:        {ID: mentorAID, Role: models.RoleMentor, Active: true},
		inactiveMentorID: {ID: inactiveMentorID, Role: models.RoleMentor, Active: false},
		studentUserID:    {ID: studentUserID, Role: models.RoleStudent, Active: true},
	}}
	repo := &mockGuestRepo{}
	svc := newGuestService(repo, users, nil)

	req := models.CreateGuestApplicationRequest{
		FullName: "Guest Doe", Email: "guest@example.com", School: "GS Kigali",
		Interests: "backend", Message: "I would love an internship", MentorID: mentorAID,
	}
	app, err := svc.Create(context.Background(), req, "uploads/cv.pdf")
	require.NoError(t, err)
	assert.Equal(t, models.GuestStatusPending, app.Status)
	assert.Equal(t, "uploads/cv.pdf", app.CVPath)

	req.MentorID = inactiveMentorID
	_, err = svc.Create(context.Background(), req, "")
	require.Error(t, err)

	req.MentorID = studentUserID
	_, err = svc.Create(context.Background(), req, "")
	require.Error(t, err)
}

func TestGuestServiceApproveIssuesInvitationToken(t *testing.T) {
	repo := &mockGuestRepo{apps: map[string]models.GuestApplication{
		"guest-1": {ID: "guest-1", MentorID: "men-1", Status: models.GuestStatusPending},
	}}
	activity := &mockActivityLog{}
	svc := newGuestService(repo, nil, activity)

	token, err := svc.Approve(context.Background(), "guest-1", "men-1", models.GuestDecisionRequest{Feedback: "welcome"})
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
	assert.True(t, token.ExpiresAt.After(time.Now()))
	assert.Equal(t, models.GuestStatusApproved, repo.apps["guest-1"].Status)
	require.Len(t, repo.tokens, 1)
	require.Len(t, activity.entries, 1)
	assert.Equal(t, models.EntityGuestApplication, activity.entries[0].EntityKind)
}

func TestGuestServiceApproveReplacesOlderTokens(t *testing.T) {
	repo := &mockGuestRepo{
		apps: map[string]models.GuestApplication{
			"guest-1": {ID: "guest-1", MentorID: "men-1", Status: models.GuestStatusPending},
		},
		tokens: []models.InvitationToken{
			{ID: "tok-old", ApplicationID: "guest-1", Token: "old", ExpiresAt: time.Now().Add(24 * time.Hour)},
		},
	}
	svc := newGuestService(repo, nil, nil)

	_, err := svc.Approve(context.Background(), "guest-1", "men-1", models.GuestDecisionRequest{})
	require.NoError(t, err)
	require.Len(t, repo.tokens, 2)
	assert.False(t, repo.tokens[0].Valid(time.Now()))
	assert.True(t, repo.tokens[1].Valid(time.Now()))
}

func TestGuestServiceApproveOnlyOnce(t *testing.T) {
	repo := &mockGuestRepo{apps: map[string]models.GuestApplication{
		"guest-1": {ID: "guest-1", MentorID: "men-1", Status: models.GuestStatusApproved},
	}}
	svc := newGuestService(repo, nil, nil)

	_, err := svc.Approve(context.Background(), "guest-1", "men-1", models.GuestDecisionRequest{})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrWrongState.Code, appErr.Code)
}

func TestGuestServiceDecisionScopedToMentor(t *testing.T) {
	repo := &mockGuestRepo{apps: map[string]models.GuestApplication{
		"guest-1": {ID: "guest-1", MentorID: "men-1", Status: models.GuestStatusPending},
	}}
	svc := newGuestService(repo, nil, nil)

	_, err := svc.Approve(context.Background(), "guest-1", "men-other", models.GuestDecisionRequest{})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestGuestServiceRejectRecordsFeedback(t *testing.T) {
	repo := &mockGuestRepo{apps: map[string]models.GuestApplication{
		"guest-1": {ID: "guest-1", MentorID: "men-1", Status: models.GuestStatusPending},
	}}
	svc := newGuestService(repo, nil, nil)

	err := svc.Reject(context.Background(), "guest-1", "men-1", models.GuestDecisionRequest{Feedback: "not a fit"})
	require.NoError(t, err)
	assert.Equal(t, models.GuestStatusRejected, repo.apps["guest-1"].Status)
	assert.Equal(t, "not a fit", repo.apps["guest-1"].MentorFeedback)
	assert.Empty(t, repo.tokens)
}
