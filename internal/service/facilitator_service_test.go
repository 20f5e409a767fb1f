package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
)

type mockFacilitatorRepo struct {
	assignments map[string]models.FacilitatorAssignment
	mentors     map[string][]string
}

func (m *mockFacilitatorRepo) Create(ctx context.Context, a *models.FacilitatorAssignment) error {
	if m.assignments == nil {
		m.assignments = make(map[string]models.FacilitatorAssignment)
	}
	if a.ID == "" {
		a.ID = "new-assignment"
	}
	m.assignments[a.ID] = *a
	return nil
}

func (m *mockFacilitatorRepo) Delete(ctx context.Context, id string) error {
	delete(m.assignments, id)
	return nil
}

func (m *mockFacilitatorRepo) Exists(ctx context.Context, facilitatorID, mentorID string) (bool, error) {
	for _, id := range m.mentors[facilitatorID] {
		if id == mentorID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockFacilitatorRepo) MentorIDs(ctx context.Context, facilitatorID string) ([]string, error) {
	return m.mentors[facilitatorID], nil
}

func (m *mockFacilitatorRepo) List(ctx context.Context, facilitatorID string) ([]models.FacilitatorAssignmentDetail, error) {
	var out []models.FacilitatorAssignmentDetail
	for _, a := range m.assignments {
		if facilitatorID == "" || a.FacilitatorID == facilitatorID {
			out = append(out, models.FacilitatorAssignmentDetail{FacilitatorAssignment: a})
		}
	}
	return out, nil
}

func newFacilitatorService(repo *mockFacilitatorRepo, users *mockUserReader, apps applicationReassigner) *FacilitatorService {
	return NewFacilitatorService(repo, users, apps, validator.New(), zap.NewNop())
}

func TestFacilitatorServiceAssignChecksRoles(t *testing.T) {
	users := &mockUserReader{users: map[string]*models.User{
		facilitatorAID: {ID: facilitatorAID, Role: models.RoleMentorFacilitator, Active: true},
		mentorAID:      {ID: mentorAID, Role: models.RoleMentor, Active: true},
		studentUserID:  {ID: studentUserID, Role: models.RoleStudent, Active: true},
	}}
	repo := &mockFacilitatorRepo{}
	svc := newFacilitatorService(repo, users, nil)

	assignment, err := svc.Assign(context.Background(), "admin-1", models.AssignFacilitatorRequest{FacilitatorID: facilitatorAID, MentorID: mentorAID})
	require.NoError(t, err)
	require.NotNil(t, assignment.AssignedBy)
	assert.Equal(t, "admin-1", *assignment.AssignedBy)

	_, err = svc.Assign(context.Background(), "admin-1", models.AssignFacilitatorRequest{FacilitatorID: studentUserID, MentorID: mentorAID})
	require.Error(t, err)

	_, err = svc.Assign(context.Background(), "admin-1", models.AssignFacilitatorRequest{FacilitatorID: facilitatorAID, MentorID: studentUserID})
	require.Error(t, err)
}

func TestFacilitatorServiceAssignRejectsDuplicate(t *testing.T) {
	users := &mockUserReader{users: map[string]*models.User{
		facilitatorAID: {ID: facilitatorAID, Role: models.RoleMentorFacilitator, Active: true},
		mentorAID:      {ID: mentorAID, Role: models.RoleMentor, Active: true},
	}}
	repo := &mockFacilitatorRepo{mentors: map[string][]string{facilitatorAID: {mentorAID}}}
	svc := newFacilitatorService(repo, users, nil)

	_, err := svc.Assign(context.Background(), "admin-1", models.AssignFacilitatorRequest{FacilitatorID: facilitatorAID, MentorID: mentorAID})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestFacilitatorServiceApplicationsScopedToAssignedMentors(t *testing.T) {
	mentorA := "men-a"
	mentorB := "men-b"
	appsRepo := &mockApplicationRepo{apps: map[string]models.Application{
		"app-a": {ID: "app-a", Status: models.ApplicationStatusPendingReview, MentorID: &mentorA},
		"app-b": {ID: "app-b", Status: models.ApplicationStatusPendingReview, MentorID: &mentorB},
	}}
	appSvc := newWizardService(appsRepo, nil, nil, nil)
	repo := &mockFacilitatorRepo{mentors: map[string][]string{"fac-1": {"men-a"}}}
	svc := newFacilitatorService(repo, &mockUserReader{}, appSvc)

	apps, pagination, err := svc.Applications(context.Background(), "fac-1", models.ApplicationFilter{})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "app-a", apps[0].ID)
	assert.Equal(t, 1, pagination.TotalCount)

	apps, _, err = svc.Applications(context.Background(), "fac-none", models.ApplicationFilter{})
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestFacilitatorServiceReassignStaysWithinAssignedSet(t *testing.T) {
	currentMentor := mentorAID
	appsRepo := &mockApplicationRepo{apps: map[string]models.Application{
		"app-1": {ID: "app-1", Status: models.ApplicationStatusPendingReview, MentorID: &currentMentor},
	}}
	users := &mockUserReader{users: map[string]*models.User{
		mentorAID:       {ID: mentorAID, Role: models.RoleMentor, Active: true},
		mentorBID:       {ID: mentorBID, Role: models.RoleMentor, Active: true},
		outsideMentorID: {ID: outsideMentorID, Role: models.RoleMentor, Active: true},
	}}
	appSvc := newWizardService(appsRepo, nil, nil, users)
	repo := &mockFacilitatorRepo{mentors: map[string][]string{"fac-1": {mentorAID, mentorBID}}}
	svc := newFacilitatorService(repo, users, appSvc)

	_, err := svc.Reassign(context.Background(), "fac-1", "app-1", models.ReassignMentorRequest{MentorID: outsideMentorID})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	app, err := svc.Reassign(context.Background(), "fac-1", "app-1", models.ReassignMentorRequest{MentorID: mentorBID})
	require.NoError(t, err)
	require.NotNil(t, app.MentorID)
	assert.Equal(t, mentorBID, *app.MentorID)
	assert.Nil(t, app.SlotID)
}

func TestFacilitatorServiceReassignBlockedWhenMentorOutsideSet(t *testing.T) {
	outsideMentor := outsideMentorID
	appsRepo := &mockApplicationRepo{apps: map[string]models.Application{
		"app-1": {ID: "app-1", Status: models.ApplicationStatusPendingReview, MentorID: &outsideMentor},
	}}
	appSvc := newWizardService(appsRepo, nil, nil, nil)
	repo := &mockFacilitatorRepo{mentors: map[string][]string{"fac-1": {mentorAID}}}
	svc := newFacilitatorService(repo, &mockUserReader{}, appSvc)

	_, err := svc.Reassign(context.Background(), "fac-1", "app-1", models.ReassignMentorRequest{MentorID: mentorAID})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}
