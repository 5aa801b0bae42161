package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmops/taskhive/token"
)

func TestLoginRefreshReplayBurnsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "alice@example.com")
	creds := f.login(t, "alice@example.com")

	// First refresh rotates the nonce and binds a fresh token to it.
	rotated, err := f.svc.Refresh(ctx, creds.Session.ID, creds.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, creds.Session.ID, rotated.Session.ID)
	assert.NotEqual(t, creds.Session.Nonce, rotated.Session.Nonce)
	assert.NotEqual(t, creds.AccessToken, rotated.AccessToken)

	// Replaying the original token is theft evidence: the whole session
	// family is burned, not just the one token.
	_, err = f.svc.Refresh(ctx, creds.Session.ID, creds.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	sessions, err := f.svc.Sessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	// Even the winning rotated token is dead now.
	_, err = f.svc.Refresh(ctx, rotated.Session.ID, rotated.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefreshAfterLogoutFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "alice@example.com")
	creds := f.login(t, "alice@example.com")

	require.NoError(t, f.svc.Logout(ctx, creds.Session.ID))
	// Logging out twice is fine.
	require.NoError(t, f.svc.Logout(ctx, creds.Session.ID))

	_, err := f.svc.Refresh(ctx, creds.Session.ID, creds.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefreshRejectsResetToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "alice@example.com")
	creds := f.login(t, "alice@example.com")

	// Valid signature, unexpired, but the wrong type for this operation.
	reset, err := f.codec.Issue(creds.Session.UserID, creds.Session.Nonce, token.TypeResetPassword, time.Minute)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, creds.Session.ID, reset)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// The session survives a wrong-type attempt; the nonce was never
	// compared.
	_, err = f.svc.Refresh(ctx, creds.Session.ID, creds.AccessToken)
	assert.NoError(t, err)
}

func TestRefreshSubjectMismatchBurnsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u1 := f.register(t, "alice@example.com")
	creds := f.login(t, "alice@example.com")

	forged, err := f.codec.Issue("someone-else", creds.Session.Nonce, token.TypeAccess, time.Minute)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, creds.Session.ID, forged)
	assert.ErrorIs(t, err, ErrUnauthorized)

	sessions, err := f.svc.Sessions(ctx, u1.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestAuthenticateRejectsNonAccessTokens(t *testing.T) {
	f := newFixture(t)

	u := f.register(t, "alice@example.com")
	creds := f.login(t, "alice@example.com")

	uid, err := f.svc.Authenticate(creds.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, uid)

	reset, err := f.codec.Issue(u.ID.String(), "reset-jti", token.TypeResetPassword, time.Minute)
	require.NoError(t, err)
	_, err = f.svc.Authenticate(reset)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.Authenticate("not.a.token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)

	f.register(t, "alice@example.com")
	_, err := f.svc.Register(context.Background(), "Alice@Example.com", "Other", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginBadCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "alice@example.com")

	_, err := f.svc.Login(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.Login(ctx, "nobody@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestPasswordResetDestroysAllSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "alice@example.com")
	f.login(t, "alice@example.com")
	f.login(t, "alice@example.com")

	sessions, err := f.svc.Sessions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	reset, err := f.svc.RequestPasswordReset(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, reset)

	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, reset, "new-password-123"))

	sessions, err = f.svc.Sessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	_, err = f.svc.Login(ctx, "alice@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.svc.Login(ctx, "alice@example.com", "new-password-123")
	assert.NoError(t, err)
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)

	tok, err := f.svc.RequestPasswordReset(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestConfirmPasswordResetRejectsAccessToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "alice@example.com")
	creds := f.login(t, "alice@example.com")

	err := f.svc.ConfirmPasswordReset(ctx, creds.AccessToken, "new-password-123")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Old password still works, nothing was reset.
	_, err = f.svc.Login(ctx, "alice@example.com", "hunter2hunter2")
	assert.NoError(t, err)
}

func TestLogoutAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "alice@example.com")
	f.login(t, "alice@example.com")
	f.login(t, "alice@example.com")

	require.NoError(t, f.svc.LogoutAll(ctx, u.ID))

	sessions, err := f.svc.Sessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
