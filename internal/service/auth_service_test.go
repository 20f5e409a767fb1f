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

type mockAuthRepo struct {
	usersByEmail  map[string]*models.User
	created       []models.User
	refreshTokens []models.RefreshToken
	auditLogs     []models.AuditLog
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.usersByEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.usersByEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.usersByEmail == nil {
		m.usersByEmail = make(map[string]*models.User)
	}
	if user.ID == "" {
		user.ID = "new-user"
	}
	m.usersByEmail[user.Email] = user
	m.created = append(m.created, *user)
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens = append(m.refreshTokens, *token)
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	for i := range m.refreshTokens {
		if m.refreshTokens[i].Token == token {
			return &m.refreshTokens[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, *log)
	return nil
}

type mockInvitationStore struct {
	tokens map[string]models.InvitationToken
	linked map[string]string
	// Simulates another registration consuming the token between the
	// validity check and the conditional update.
	consumedElsewhere bool
}

func (m *mockInvitationStore) FindInvitationToken(ctx context.Context, token string) (*models.InvitationToken, error) {
	if t, ok := m.tokens[token]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockInvitationStore) MarkTokenUsed(ctx context.Context, id string, usedAt time.Time) (int64, error) {
	if m.consumedElsewhere {
		return 0, nil
	}
	for key, tok := range m.tokens {
		if tok.ID != id || tok.UsedAt != nil {
			continue
		}
		tok.UsedAt = &usedAt
		m.tokens[key] = tok
		return 1, nil
	}
	return 0, nil
}

func (m *mockInvitationStore) LinkRegisteredUser(ctx context.Context, id, userID string) error {
	if m.linked == nil {
		m.linked = make(map[string]string)
	}
	m.linked[id] = userID
	return nil
}

func newAuthService(repo *mockAuthRepo, invitations *mockInvitationStore) *AuthService {
	cfg := AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "mentorconnect",
	}
	if invitations == nil {
		return NewAuthService(repo, nil, validator.New(), zap.NewNop(), cfg)
	}
	return NewAuthService(repo, invitations, validator.New(), zap.NewNop(), cfg)
}

func registerRequest(token string) models.RegisterRequest {
	return models.RegisterRequest{
		Email:           "student@example.com",
		Password:        "s3cret-pass",
		FullName:        "Jean Doe",
		InvitationToken: token,
	}
}

func TestAuthServiceRegisterRejectsExpiredInvitation(t *testing.T) {
	invitations := &mockInvitationStore{tokens: map[string]models.InvitationToken{
		"inv-abc": {ID: "tok-1", Token: "inv-abc", ApplicationID: "guest-1", ExpiresAt: time.Now().UTC().Add(-time.Hour)},
	}}
	repo := &mockAuthRepo{}
	svc := newAuthService(repo, invitations)

	_, err := svc.Register(context.Background(), registerRequest("inv-abc"))
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrTokenExpired.Code, appErr.Code)
	assert.Empty(t, repo.created)
}

func TestAuthServiceRegisterRejectsUsedInvitation(t *testing.T) {
	usedAt := time.Now().UTC().Add(-time.Minute)
	invitations := &mockInvitationStore{tokens: map[string]models.InvitationToken{
		"inv-abc": {ID: "tok-1", Token: "inv-abc", ApplicationID: "guest-1", ExpiresAt: time.Now().UTC().Add(time.Hour), UsedAt: &usedAt},
	}}
	repo := &mockAuthRepo{}
	svc := newAuthService(repo, invitations)

	_, err := svc.Register(context.Background(), registerRequest("inv-abc"))
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrTokenExpired.Code, appErr.Code)
	assert.Empty(t, repo.created)
}

func TestAuthServiceRegisterInvitationConsumedConcurrently(t *testing.T) {
	invitations := &mockInvitationStore{
		tokens: map[string]models.InvitationToken{
			"inv-abc": {ID: "tok-1", Token: "inv-abc", ApplicationID: "guest-1", ExpiresAt: time.Now().UTC().Add(time.Hour)},
		},
		consumedElsewhere: true,
	}
	svc := newAuthService(&mockAuthRepo{}, invitations)

	_, err := svc.Register(context.Background(), registerRequest("inv-abc"))
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrTokenExpired.Code, appErr.Code)
	assert.Empty(t, invitations.linked)
}

func TestAuthServiceRegisterConsumesInvitationAndLinksGuest(t *testing.T) {
	invitations := &mockInvitationStore{tokens: map[string]models.InvitationToken{
		"inv-abc": {ID: "tok-1", Token: "inv-abc", ApplicationID: "guest-1", ExpiresAt: time.Now().UTC().Add(time.Hour)},
	}}
	repo := &mockAuthRepo{}
	svc := newAuthService(repo, invitations)

	session, err := svc.Register(context.Background(), registerRequest("inv-abc"))
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, models.RoleStudent, session.User.Role)

	require.Len(t, repo.created, 1)
	require.NotNil(t, invitations.tokens["inv-abc"].UsedAt)
	assert.Equal(t, repo.created[0].ID, invitations.linked["guest-1"])
}

func TestAuthServiceRegisterWithoutTokenSkipsInvitations(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthService(repo, nil)

	session, err := svc.Register(context.Background(), registerRequest(""))
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, session.User.Role)
	require.Len(t, repo.created, 1)
}
