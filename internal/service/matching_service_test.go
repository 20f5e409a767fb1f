package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
)

type mockProfileReader struct {
	students map[string]*models.StudentProfile
	mentors  []models.MentorDirectoryEntry
}

func (m *mockProfileReader) FindStudentByUser(ctx context.Context, userID string) (*models.StudentProfile, error) {
	if p, ok := m.students[userID]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProfileReader) ListAvailableMentors(ctx context.Context) ([]models.MentorDirectoryEntry, error) {
	return m.mentors, nil
}

type mockSlotChecker struct {
	open map[string]bool
}

func (m *mockSlotChecker) HasOpenSlots(ctx context.Context, mentorID string) (bool, error) {
	return m.open[mentorID], nil
}

func TestCompatibilityScoreWeightsSumToOne(t *testing.T) {
	total := weightSkills + weightExpertise + weightAvailability + weightLocation + weightReputation + weightSessionType
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestCompatibilityScorePerfectMatch(t *testing.T) {
	student := &models.StudentProfile{
		Skills:               "go,sql",
		Interests:            "backend",
		City:                 "Kigali",
		Country:              "Rwanda",
		PreferredSessionType: models.SessionVirtual,
	}
	mentor := &models.MentorProfile{
		Skills:         "Go,SQL,Docker",
		Expertise:      "Backend,Cloud",
		City:           "Kigali",
		Country:        "Rwanda",
		AcceptsVirtual: true,
		Rating:         5,
		TotalReviews:   12,
	}

	score, breakdown := CompatibilityScore(student, mentor, true)
	assert.InDelta(t, 100.0, score, 1e-9)
	assert.Equal(t, 100.0, breakdown.Skills)
	assert.Equal(t, 100.0, breakdown.Expertise)
	assert.Equal(t, 100.0, breakdown.Availability)
	assert.Equal(t, 100.0, breakdown.Location)
	assert.Equal(t, 100.0, breakdown.Reputation)
	assert.Equal(t, 100.0, breakdown.SessionType)
}

func TestCompatibilityScoreIsDeterministic(t *testing.T) {
	student := &models.StudentProfile{Skills: "go,python", Interests: "data", City: "Huye", Country: "Rwanda"}
	mentor := &models.MentorProfile{Skills: "go", Expertise: "data,ml", Country: "Rwanda", AcceptsVirtual: true, Rating: 4.2, TotalReviews: 7}

	first, _ := CompatibilityScore(student, mentor, true)
	for i := 0; i < 10; i++ {
		again, _ := CompatibilityScore(student, mentor, true)
		assert.Equal(t, first, again)
	}
}

func TestOverlapScoreNeutralWhenStudentListEmpty(t *testing.T) {
	assert.Equal(t, 50.0, overlapScore(nil, models.StringList{"go"}))
	assert.Equal(t, 0.0, overlapScore(models.StringList{"go"}, nil))
	assert.Equal(t, 50.0, overlapScore(models.StringList{"go", "rust"}, models.StringList{"Go"}))
}

func TestLocationScoreTiers(t *testing.T) {
	student := &models.StudentProfile{City: "Kigali", Country: "Rwanda"}

	assert.Equal(t, 100.0, locationScore(student, &models.MentorProfile{City: "kigali", Country: "Rwanda"}))
	assert.Equal(t, 60.0, locationScore(student, &models.MentorProfile{City: "Musanze", Country: "rwanda"}))
	assert.Equal(t, 40.0, locationScore(student, &models.MentorProfile{City: "Nairobi", Country: "Kenya", AcceptsVirtual: true}))
	assert.Equal(t, 0.0, locationScore(student, &models.MentorProfile{City: "Nairobi", Country: "Kenya"}))
}

func TestReputationScoreNeutralWithoutReviews(t *testing.T) {
	assert.Equal(t, 50.0, reputationScore(&models.MentorProfile{}))
	assert.InDelta(t, 84.0, reputationScore(&models.MentorProfile{Rating: 4.2, TotalReviews: 3}), 1e-9)
}

func TestSessionTypeScoreHybrid(t *testing.T) {
	assert.Equal(t, 100.0, sessionTypeScore(models.SessionHybrid, &models.MentorProfile{AcceptsInPerson: true, AcceptsVirtual: true}))
	assert.Equal(t, 50.0, sessionTypeScore(models.SessionHybrid, &models.MentorProfile{AcceptsVirtual: true}))
	assert.Equal(t, 0.0, sessionTypeScore(models.SessionHybrid, &models.MentorProfile{}))
	assert.Equal(t, 50.0, sessionTypeScore("", &models.MentorProfile{}))
}

func TestMatchingServiceSuggestRanksByScore(t *testing.T) {
	profiles := &mockProfileReader{
		students: map[string]*models.StudentProfile{
			"stu-1": {UserID: "stu-1", Skills: "go", Interests: "backend", City: "Kigali", Country: "Rwanda", PreferredSessionType: models.SessionVirtual},
		},
		mentors: []models.MentorDirectoryEntry{
			{MentorProfile: models.MentorProfile{UserID: "men-weak", Skills: "design", Expertise: "ux", Country: "Kenya"}, FullName: "Weak Fit"},
			{MentorProfile: models.MentorProfile{UserID: "men-strong", Skills: "go", Expertise: "backend", City: "Kigali", Country: "Rwanda", AcceptsVirtual: true, Rating: 5, TotalReviews: 10}, FullName: "Strong Fit"},
		},
	}
	slots := &mockSlotChecker{open: map[string]bool{"men-strong": true}}
	svc := NewMatchingService(profiles, slots, nil, 0, zap.NewNop())

	suggestions, err := svc.Suggest(context.Background(), "stu-1", 10)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "men-strong", suggestions[0].MentorID)
	assert.Greater(t, suggestions[0].Score, suggestions[1].Score)
}

func TestMatchingServiceSuggestRequiresProfile(t *testing.T) {
	svc := NewMatchingService(&mockProfileReader{}, &mockSlotChecker{}, nil, 0, zap.NewNop())

	_, err := svc.Suggest(context.Background(), "stu-unknown", 10)
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}
