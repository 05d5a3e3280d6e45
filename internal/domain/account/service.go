package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/vitalia/portal/internal/domain/profile"
	"github.com/vitalia/portal/internal/platform/auth"
	"github.com/vitalia/portal/internal/platform/db"
	"github.com/vitalia/portal/internal/platform/notification"
)

const (
	ResetTokenTTL = time.Hour
	tokenType     = "bearer"
	// mailTimeout bounds a reset email sent after the request has returned.
	mailTimeout   = 30 * time.Second
)

// ValidationError is reported to the caller as a 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type ProfileReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*profile.Profile, error)
}

type Config struct {
	Tokens   *auth.TokenIssuer
	Sessions auth.SessionStore
	Resets   auth.ResetTokenStore
	Mailer   notification.Mailer
	// PublicURL is the web origin used in emailed links.
	PublicURL string
}

type Service struct {
	accounts Repository
	profiles ProfileReader
	cfg      Config
	logger   zerolog.Logger
	now      func() time.Time
	outbox   conc.WaitGroup
}

func NewService(accounts Repository, profiles ProfileReader, cfg Config, logger zerolog.Logger) *Service {
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &Service{
		accounts: accounts,
		profiles: profiles,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// NormalizeEmail trims and lowercases email and checks its shape.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", invalid("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", invalid("Unable to validate email address: invalid format")
	}
	return email, nil
}

func passwordError(err error) error {
	if errors.Is(err, auth.ErrWeakPassword) || errors.Is(err, auth.ErrPasswordTooLong) {
		return invalid("%s", err.Error())
	}
	return err
}

// asIdentity scopes ctx to userID for reads made before a session exists.
func asIdentity(ctx context.Context, userID uuid.UUID, role string) context.Context {
	return db.WithIdentity(ctx, db.Identity{UserID: userID.String(), Role: role})
}

// -- Sign up / sign in --

func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*Session, error) {
	email, err := NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = auth.RolePatient
	}
	if !auth.ValidRole(role) {
		return nil, invalid("role must be patient or doctor")
	}
	fullName := strings.TrimSpace(req.FullName)
	if req.Gender != nil && strings.TrimSpace(*req.Gender) == "" {
		req.Gender = nil
	}
	if err := profile.ValidateFields(fullName, req.Age, req.Gender); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, passwordError(err)
	}

	a := &Account{Email: email, PasswordHash: hash}
	p := &profile.Profile{Role: role, FullName: fullName, Age: req.Age, Gender: req.Gender}
	if err := s.accounts.CreateWithProfile(ctx, a, p); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	s.logger.Info().Str("user_id", a.ID.String()).Str("role", role).Msg("account created")

	s.sendWelcome(ctx, a, p)
	return s.startSession(ctx, a, p)
}

func (s *Service) SignIn(ctx context.Context, req CredentialsRequest) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}
	a, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("look up account: %w", err)
	}
	if err := auth.CheckPassword(a.PasswordHash, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	p, err := s.profileOf(asIdentity(ctx, a.ID, ""), a.ID)
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, a, p)
}

func (s *Service) startSession(ctx context.Context, a *Account, p *profile.Profile) (*Session, error) {
	role := ""
	if p != nil {
		role = p.Role
	}
	token, claims, err := s.cfg.Tokens.Issue(a.ID.String(), role)
	if err != nil {
		return nil, err
	}
	now := s.now()
	expires := claims.ExpiresAt.Time
	if err := s.cfg.Sessions.Save(ctx, auth.SessionRecord{
		ID:        claims.SessionID(),
		UserID:    a.ID.String(),
		Role:      role,
		CreatedAt: now,
		ExpiresAt: expires,
	}); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return &Session{
		AccessToken: token,
		TokenType:   tokenType,
		ExpiresIn:   int(s.cfg.Tokens.TTL().Seconds()),
		ExpiresAt:   expires.Unix(),
		User:        userOf(a, role),
		Profile:     p,
	}, nil
}

// SignOut revokes the caller's session. Anonymous and already revoked
// sessions are accepted.
func (s *Service) SignOut(ctx context.Context) {
	sess := auth.SessionFromContext(ctx)
	if err := sess.Revoke(ctx, s.cfg.Sessions); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("session revoke failed")
	}
}

// -- Password recovery --

// Recover emails a reset link when email belongs to an account. It reports
// nothing about whether the account exists. The email is sent in the
// background so a slow relay never holds the request.
func (s *Service) Recover(ctx context.Context, email string) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return
	}
	a, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Msg("recover: account lookup failed")
		}
		return
	}
	token, err := s.cfg.Resets.IssueResetToken(ctx, a.ID.String(), ResetTokenTTL)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", a.ID.String()).Msg("recover: issue reset token")
		return
	}
	if s.cfg.Mailer == nil {
		return
	}
	data := map[string]string{
		"reset_link": s.cfg.PublicURL + "/reset-password?token=" + token,
		"expires_in": "1 hour",
	}
	userID, to := a.ID.String(), a.Email
	mailCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailTimeout)
	s.outbox.Go(func() {
		defer cancel()
		if _, err := s.cfg.Mailer.SendTemplate(mailCtx, notification.TemplatePasswordReset, data, to); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("recover: reset email failed")
		}
	})
}

// Wait blocks until reset emails queued by Recover have been handed to the
// mailer.
func (s *Service) Wait() {
	s.outbox.Wait()
}

// Reset sets a new password using a single-use reset token.
func (s *Service) Reset(ctx context.Context, req ResetRequest) error {
	if strings.TrimSpace(req.Token) == "" {
		return auth.ErrResetTokenInvalid
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return passwordError(err)
	}
	userID, err := s.cfg.Resets.ConsumeResetToken(ctx, req.Token)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return auth.ErrResetTokenInvalid
	}
	if err := s.accounts.UpdatePassword(ctx, id, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.logger.Info().Str("user_id", userID).Msg("password reset")
	return nil
}

// -- Current session --

func (s *Service) Current(ctx context.Context) (*Current, error) {
	sess := auth.SessionFromContext(ctx)
	if !sess.Authenticated() {
		return nil, ErrInvalidCredentials
	}
	id, err := uuid.Parse(sess.UserID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	a, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := s.profileOf(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Current{User: userOf(a, sess.Role), Profile: p}, nil
}

// profileOf returns nil without error when no profile row exists.
func (s *Service) profileOf(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	p, err := s.profiles.GetByID(ctx, id)
	if errors.Is(err, profile.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

func (s *Service) sendWelcome(ctx context.Context, a *Account, p *profile.Profile) {
	if s.cfg.Mailer == nil {
		return
	}
	_, err := s.cfg.Mailer.SendTemplate(ctx, notification.TemplateWelcome, map[string]string{
		"name":       p.FullName,
		"role":       p.Role,
		"login_link": s.cfg.PublicURL + "/login",
	}, a.Email)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", a.ID.String()).Msg("welcome email failed")
	}
}

func userOf(a *Account, role string) *User {
	return &User{ID: a.ID, Email: a.Email, Role: role, CreatedAt: a.CreatedAt}
}
