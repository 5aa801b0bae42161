package tracker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/calmops/taskhive/internal"
	"github.com/calmops/taskhive/session"
	"github.com/calmops/taskhive/storage"
	"github.com/calmops/taskhive/token"
)

// Credentials is what a successful login or refresh hands back: an
// access token whose jti equals the session's current nonce, plus the
// session itself.
type Credentials struct {
	AccessToken string
	Session     *session.Session
}

// Register creates an account with an argon2id digest. A duplicate
// email fails with ErrEmailTaken.
func (s *Service) Register(ctx context.Context, email, name, pass string) (*storage.User, error) {
	digest, err := s.hasher.Hash(pass)
	if err != nil {
		return nil, err
	}

	u := &storage.User{
		ID:             uuid.New(),
		Email:          strings.ToLower(strings.TrimSpace(email)),
		Name:           name,
		PasswordDigest: digest,
		CreatedAt:      time.Now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.log.Info().Str("user_id", u.ID.String()).Msg("user registered")
	return u, nil
}

// Login verifies the password, creates a session, and mints an access
// token bound to the session's starting nonce. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, pass string) (*Credentials, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, unauthorized("unknown email")
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(pass, u.PasswordDigest)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, unauthorized("password mismatch")
	}

	sess, err := s.sessions.Create(ctx, u.ID.String())
	if err != nil {
		return nil, err
	}
	access, err := s.codec.Issue(u.ID.String(), sess.Nonce, token.TypeAccess, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", u.ID.String()).Str("session_id", sess.ID).Msg("login")
	return &Credentials{AccessToken: access, Session: sess}, nil
}

// Refresh exchanges a possibly-expired access token for a fresh one.
// The token's signature must verify and its jti must match the
// session's live nonce; a stale jti is treated as replay and burns the
// session. Every failure collapses to ErrUnauthorized so the response
// carries no signal about which check tripped.
func (s *Service) Refresh(ctx context.Context, sessionID, presentedToken string) (*Credentials, error) {
	claims, err := s.codec.VerifyExpired(presentedToken)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("refresh with unverifiable token")
		return nil, unauthorized("invalid token")
	}
	if claims.TokenType != token.TypeAccess {
		s.log.Warn().Str("session_id", sessionID).Str("type", string(claims.TokenType)).Msg("refresh with wrong token type")
		return nil, unauthorized("wrong token type")
	}

	sess, err := s.sessions.Refresh(ctx, sessionID, claims.ID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			s.log.Warn().Str("session_id", sessionID).Str("reason", "logged out").Msg("refresh rejected")
			return nil, unauthorized("logged out")
		case errors.Is(err, session.ErrNonceMismatch):
			s.log.Warn().Str("session_id", sessionID).Str("reason", "revoked").Msg("refresh replay detected, session burned")
			return nil, unauthorized("revoked")
		case errors.Is(err, session.ErrSessionExpired):
			s.log.Warn().Str("session_id", sessionID).Str("reason", "expired").Msg("refresh rejected")
			return nil, unauthorized("expired")
		default:
			return nil, err
		}
	}

	if sess.UserID != claims.Subject {
		// Token and session disagree about the identity; treat as theft.
		if _, delErr := s.sessions.Delete(ctx, sessionID); delErr != nil {
			s.log.Error().Err(delErr).Str("session_id", sessionID).Msg("failed to burn mismatched session")
		}
		s.log.Warn().Str("session_id", sessionID).Str("reason", "subject mismatch").Msg("refresh rejected, session burned")
		return nil, unauthorized("subject mismatch")
	}

	access, err := s.codec.Issue(sess.UserID, sess.Nonce, token.TypeAccess, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	return &Credentials{AccessToken: access, Session: sess}, nil
}

// Authenticate resolves a bearer token into a user id. The guard
// middleware calls this on every protected request.
func (s *Service) Authenticate(tokenStr string) (uuid.UUID, error) {
	claims, err := s.codec.Verify(tokenStr)
	if err != nil {
		return uuid.Nil, unauthorized("invalid token")
	}
	if claims.TokenType != token.TypeAccess {
		return uuid.Nil, unauthorized("wrong token type")
	}
	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, unauthorized("invalid subject")
	}
	return uid, nil
}

// Logout deletes the session. Deleting an already-absent session is not
// an error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	removed, err := s.sessions.Delete(ctx, sessionID)
	if err != nil {
		return err
	}
	if removed {
		s.log.Info().Str("session_id", sessionID).Msg("logout")
	}
	return nil
}

// LogoutAll destroys every session of the user.
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	return s.sessions.DeleteAllForUser(ctx, userID.String())
}

// Sessions lists the user's live sessions for the active-sessions view.
func (s *Service) Sessions(ctx context.Context, userID uuid.UUID) ([]*session.Session, error) {
	return s.sessions.ListByUser(ctx, userID.String())
}

// Me returns the authenticated user's own account.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*storage.User, error) {
	return s.users.GetByID(ctx, userID)
}

// RequestPasswordReset issues a short-lived RESET_PASSWORD token for the
// account. The token is handed to the delivery channel (mail, in a full
// deployment); an unknown email produces no error and no token, so the
// endpoint does not leak which addresses exist.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.log.Info().Msg("password reset requested for unknown email")
			return "", nil
		}
		return "", err
	}

	jti, err := internal.NewNonce()
	if err != nil {
		return "", err
	}
	reset, err := s.codec.Issue(u.ID.String(), jti, token.TypeResetPassword, s.cfg.ResetTTL)
	if err != nil {
		return "", err
	}

	s.log.Info().Str("user_id", u.ID.String()).Msg("password reset token issued")
	return reset, nil
}

// ConfirmPasswordReset verifies a RESET_PASSWORD token, replaces the
// digest, and destroys every session of the user. Any other token type
// is rejected even with a valid signature.
func (s *Service) ConfirmPasswordReset(ctx context.Context, tokenStr, newPass string) error {
	claims, err := s.codec.Verify(tokenStr)
	if err != nil {
		return unauthorized("invalid reset token")
	}
	if claims.TokenType != token.TypeResetPassword {
		return unauthorized("wrong token type")
	}
	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return unauthorized("invalid subject")
	}

	digest, err := s.hasher.Hash(newPass)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordDigest(ctx, uid, digest); err != nil {
		return err
	}
	if err := s.sessions.DeleteAllForUser(ctx, uid.String()); err != nil {
		return err
	}

	s.log.Info().Str("user_id", uid.String()).Msg("password reset confirmed, all sessions destroyed")
	return nil
}
