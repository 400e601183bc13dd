package services

import (
	"context"
	"testing"
	"time"

	"tomodachi/config"
	"tomodachi/internal/events"
	tomodachi_errors "tomodachi/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthService(repo *memUserRepo) *AuthService {
	return NewAuthService(repo, nil, testLogger(), &config.Config{
		JWTSecret:     "test-secret",
		JWTExpiryMin:  15,
		RefreshExpiry: 14,
	})
}

func registerTestUser(t *testing.T, svc *AuthService) AuthResponse {
	t.Helper()
	resp, err := svc.Register(context.Background(), RegisterInput{
		Email:       "Anna@Example.com",
		Username:    "Anna",
		Password:    "password123",
		DisplayName: "Anna K",
	})
	require.NoError(t, err)
	return resp
}

func TestRegisterLowercasesIdentity(t *testing.T) {
	repo := newMemUserRepo()
	svc := testAuthService(repo)

	resp := registerTestUser(t, svc)

	assert.Equal(t, "anna", resp.User.Username)
	u, err := repo.GetByEmail(context.Background(), "anna@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Anna K", u.DisplayName)
	assert.NotEqual(t, "password123", u.PasswordHash)
}

func TestRegisterAnnouncesNewUser(t *testing.T) {
	repo := newMemUserRepo()
	pub := newMemPublisher()
	svc := NewAuthService(repo, testBus(pub), testLogger(), &config.Config{
		JWTSecret:     "test-secret",
		JWTExpiryMin:  15,
		RefreshExpiry: 14,
	})

	resp := registerTestUser(t, svc)

	assert.Equal(t, 1, pub.countFor(events.ChannelUser(resp.User.ID.String())))
}

func TestRegisterRejectsBadInput(t *testing.T) {
	svc := testAuthService(newMemUserRepo())
	ctx := context.Background()

	cases := []RegisterInput{
		{Email: "a@b.com", Username: "ab", Password: "password123"},          // username too short
		{Email: "a@b.com", Username: "has space", Password: "password123"},  // invalid chars
		{Email: "not-an-email", Username: "valid", Password: "password123"}, // bad email
		{Email: "a@b.com", Username: "valid", Password: "short"},            // weak password
		{Username: "valid", Password: "password123"},                        // missing email
	}
	for _, in := range cases {
		_, err := svc.Register(ctx, in)
		assert.ErrorIs(t, err, tomodachi_errors.ErrInvalidInput, "input: %+v", in)
	}
}

func TestRegisterRejectsDuplicateIdentity(t *testing.T) {
	svc := testAuthService(newMemUserRepo())
	registerTestUser(t, svc)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "anna@example.com", Username: "other", Password: "password123",
	})
	assert.ErrorIs(t, err, tomodachi_errors.ErrAlreadyExists)

	_, err = svc.Register(context.Background(), RegisterInput{
		Email: "other@example.com", Username: "anna", Password: "password123",
	})
	assert.ErrorIs(t, err, tomodachi_errors.ErrAlreadyExists)
}

func TestLoginByUsernameAndEmail(t *testing.T) {
	svc := testAuthService(newMemUserRepo())
	registerTestUser(t, svc)
	ctx := context.Background()

	byUsername, err := svc.Login(ctx, LoginInput{Identity: "anna", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, byUsername.AccessToken)
	assert.NotEmpty(t, byUsername.RefreshToken)

	byEmail, err := svc.Login(ctx, LoginInput{Identity: "ANNA@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, byUsername.User.ID, byEmail.User.ID)
}

func TestLoginDoesNotLeakUnknownIdentities(t *testing.T) {
	svc := testAuthService(newMemUserRepo())
	registerTestUser(t, svc)
	ctx := context.Background()

	_, errWrong := svc.Login(ctx, LoginInput{Identity: "anna", Password: "wrongwrong"})
	_, errUnknown := svc.Login(ctx, LoginInput{Identity: "nobody", Password: "wrongwrong"})

	// Same error either way.
	assert.ErrorIs(t, errWrong, tomodachi_errors.ErrUnauthorized)
	assert.ErrorIs(t, errUnknown, tomodachi_errors.ErrUnauthorized)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := testAuthService(newMemUserRepo())
	resp := registerTestUser(t, svc)

	claims, err := svc.ParseAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID.String(), claims.UserID)
	assert.Equal(t, resp.SessionID, claims.SessionID)

	_, err = svc.ParseAccessToken("not-a-token")
	assert.ErrorIs(t, err, tomodachi_errors.ErrUnauthorized)
}

func TestAccessTokenRejectsWrongSecret(t *testing.T) {
	repo := newMemUserRepo()
	svc := testAuthService(repo)
	resp := registerTestUser(t, svc)

	other := NewAuthService(repo, nil, testLogger(), &config.Config{JWTSecret: "different", JWTExpiryMin: 15, RefreshExpiry: 14})
	_, err := other.ParseAccessToken(resp.AccessToken)
	assert.ErrorIs(t, err, tomodachi_errors.ErrUnauthorized)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc := testAuthService(newMemUserRepo())
	resp := registerTestUser(t, svc)
	ctx := context.Background()

	rotated, err := svc.Refresh(ctx, RefreshInput{SessionID: resp.SessionID, RefreshToken: resp.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, resp.RefreshToken, rotated.RefreshToken)
	assert.Equal(t, resp.SessionID, rotated.SessionID)

	// The old token is spent; replaying it revokes the session.
	_, err = svc.Refresh(ctx, RefreshInput{SessionID: resp.SessionID, RefreshToken: resp.RefreshToken})
	assert.ErrorIs(t, err, tomodachi_errors.ErrUnauthorized)

	// And the rotated one dies with it.
	_, err = svc.Refresh(ctx, RefreshInput{SessionID: resp.SessionID, RefreshToken: rotated.RefreshToken})
	assert.ErrorIs(t, err, tomodachi_errors.ErrUnauthorized)
}

func TestLogoutRevokesSession(t *testing.T) {
	repo := newMemUserRepo()
	svc := testAuthService(repo)
	resp := registerTestUser(t, svc)
	ctx := context.Background()

	require.NoError(t, svc.Logout(ctx, resp.SessionID))

	sessionID := uuid.MustParse(resp.SessionID)
	_, err := svc.ValidateSession(ctx, sessionID, resp.User.ID)
	assert.ErrorIs(t, err, tomodachi_errors.ErrUnauthorized)
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	repo := newMemUserRepo()
	svc := testAuthService(repo)
	first := registerTestUser(t, svc)
	ctx := context.Background()

	second, err := svc.Login(ctx, LoginInput{Identity: "anna", Password: "password123"})
	require.NoError(t, err)

	require.NoError(t, svc.LogoutAll(ctx, first.User.ID))

	for _, sid := range []string{first.SessionID, second.SessionID} {
		_, err := svc.ValidateSession(ctx, uuid.MustParse(sid), first.User.ID)
		assert.ErrorIs(t, err, tomodachi_errors.ErrUnauthorized)
	}
}

func TestValidateSessionRejectsWrongOwner(t *testing.T) {
	repo := newMemUserRepo()
	svc := testAuthService(repo)
	resp := registerTestUser(t, svc)

	_, err := svc.ValidateSession(context.Background(), uuid.MustParse(resp.SessionID), uuid.New())
	assert.ErrorIs(t, err, tomodachi_errors.ErrUnauthorized)
}

func TestValidateSessionRejectsExpired(t *testing.T) {
	repo := newMemUserRepo()
	svc := testAuthService(repo)
	resp := registerTestUser(t, svc)
	ctx := context.Background()

	sessionID := uuid.MustParse(resp.SessionID)
	session, err := repo.GetSessionByID(ctx, sessionID)
	require.NoError(t, err)
	session.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.UpdateSession(ctx, session))

	_, err = svc.ValidateSession(ctx, sessionID, resp.User.ID)
	assert.ErrorIs(t, err, tomodachi_errors.ErrUnauthorized)
}

func TestVerifyCredential(t *testing.T) {
	svc := testAuthService(newMemUserRepo())
	resp := registerTestUser(t, svc)
	ctx := context.Background()

	assert.NoError(t, svc.VerifyCredential(ctx, resp.User.ID, "password123"))
	assert.ErrorIs(t, svc.VerifyCredential(ctx, resp.User.ID, "wrongwrong"), tomodachi_errors.ErrUnauthorized)
}

func TestUserSessionContextRoundTrip(t *testing.T) {
	userID, sessionID := uuid.New(), uuid.New()
	ctx := WithUserSessionContext(context.Background(), userID, sessionID)

	gotUser, ok := UserIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, userID, gotUser)

	gotSession, ok := SessionIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, sessionID, gotSession)

	_, ok = UserIDFromContext(context.Background())
	assert.False(t, ok)
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[error]int{
		tomodachi_errors.ErrInvalidInput:       400,
		tomodachi_errors.ErrUnauthorized:       401,
		tomodachi_errors.ErrForbidden:          403,
		tomodachi_errors.ErrNotFound:           404,
		tomodachi_errors.ErrAlreadyExists:      409,
		tomodachi_errors.ErrConflict:           409,
		tomodachi_errors.ErrTooLarge:           413,
		tomodachi_errors.ErrUnsupportedMedia:   415,
		tomodachi_errors.ErrImmutableField:     422,
		tomodachi_errors.ErrRateLimited:        429,
		tomodachi_errors.ErrServiceUnavailable: 503,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
	assert.Equal(t, 500, HTTPStatus(assert.AnError))
}
