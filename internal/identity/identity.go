// Package identity is the account service: sign-up restricted to one
// institutional email domain, password sign-in, email verification,
// password reset, Google sign-in and admin elevation.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/falconsupport/api/internal/auth"
	"github.com/falconsupport/api/internal/cache"
	"github.com/falconsupport/api/internal/mail"
	"github.com/falconsupport/api/internal/model"
	"github.com/falconsupport/api/internal/store"
)

const (
	VerificationTTL = 24 * time.Hour
	ResetTTL        = time.Hour
)

var (
	ErrDomainNotAllowed   = errors.New("email domain not allowed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserNotFound       = errors.New("user not found")
)

type Options struct {
	AllowedDomain string
	JWTSecret     string
	// LinkBaseURL prefixes the links put in verification and reset mail.
	LinkBaseURL string
}

type Service struct {
	users     store.UserStore
	kv        cache.Store
	mailer    mail.Mailer
	jwtSecret string
	domain    string
	emailRe   *regexp.Regexp
	linkBase  string
	now       func() time.Time
}

func NewService(users store.UserStore, kv cache.Store, mailer mail.Mailer, opts Options) *Service {
	domain := strings.ToLower(strings.TrimPrefix(opts.AllowedDomain, "@"))
	return &Service{
		users:     users,
		kv:        kv,
		mailer:    mailer,
		jwtSecret: opts.JWTSecret,
		domain:    domain,
		emailRe:   regexp.MustCompile(`(?i)^[a-z0-9._%+-]+@` + regexp.QuoteMeta(domain) + `$`),
		linkBase:  strings.TrimRight(opts.LinkBaseURL, "/"),
		now:       time.Now,
	}
}

// Domain is the institutional domain sign-ups are restricted to.
func (s *Service) Domain() string { return s.domain }

// CheckDomain rejects addresses outside the institutional domain. It never
// touches the user store.
func (s *Service) CheckDomain(email string) error {
	if !s.emailRe.MatchString(strings.TrimSpace(email)) {
		return ErrDomainNotAllowed
	}
	return nil
}

// Tokens is the result of a successful sign-in.
type Tokens struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresIn    int         `json:"expiresIn"`
	User         *model.User `json:"user"`
}

func (s *Service) Signup(ctx context.Context, email, password, name string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if err := s.CheckDomain(email); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(name),
		Provider:     model.ProviderPassword,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.sendVerification(ctx, user); err != nil {
		log.Printf("[Identity] verification mail for %s failed: %v", user.Email, err)
	}
	return user, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*Tokens, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	return s.issue(ctx, user)
}

func (s *Service) issue(ctx context.Context, user *model.User) (*Tokens, error) {
	accessToken, err := auth.GenerateAccessToken(user, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := auth.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := s.now()
	if err := s.users.CreateRefreshToken(ctx, model.NewRefreshToken(user.ID, refreshToken, now, auth.RefreshTokenExpiry)); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &Tokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(auth.AccessTokenExpiry.Seconds()),
		User:         user,
	}, nil
}

// Refresh mints a new access token from the stored user, so admin grants
// and revocations show up here.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, *model.User, error) {
	rt, err := s.users.FindRefreshToken(ctx, refreshToken, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, ErrInvalidToken
	}
	if err != nil {
		return "", nil, err
	}
	user, err := s.users.GetUserByID(ctx, rt.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, ErrUserNotFound
	}
	if err != nil {
		return "", nil, err
	}
	accessToken, err := auth.GenerateAccessToken(user, s.jwtSecret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	return accessToken, user, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.users.RevokeRefreshToken(ctx, refreshToken)
}

func (s *Service) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *Service) sendVerification(ctx context.Context, user *model.User) error {
	token, err := auth.GenerateToken()
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, cache.VerificationKey(token), []byte(user.ID), VerificationTTL); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}
	msg, err := mail.NewMail(user.Email, mail.VerificationSubject, mail.Verification, map[string]string{
		"BaseURL": s.linkBase,
		"Token":   token,
	})
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, msg)
}

// VerifyEmail spends a verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	raw, err := s.kv.GetDel(ctx, cache.VerificationKey(token))
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, string(raw))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !user.EmailVerified {
		user.EmailVerified = true
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// ResendVerification is silent about unknown or already verified addresses.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return nil
	}
	return s.sendVerification(ctx, user)
}

// ForgotPassword mails a reset link if the account exists. Callers always
// report success so addresses cannot be probed.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	token, err := auth.GenerateToken()
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, cache.ResetKey(token), []byte(user.ID), ResetTTL); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	msg, err := mail.NewMail(user.Email, mail.PasswordResetSubject, mail.PasswordReset, map[string]string{
		"BaseURL": s.linkBase,
		"Token":   token,
	})
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, msg)
}

func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	raw, err := s.kv.GetDel(ctx, cache.ResetKey(token))
	if errors.Is(err, cache.ErrMiss) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}

	user, err := s.users.GetUserByID(ctx, string(raw))
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return s.users.UpdateUser(ctx, user)
}

// GoogleSignIn finds or creates the account behind a Google identity. The
// domain restriction applies here too.
func (s *Service) GoogleSignIn(ctx context.Context, info *auth.GoogleUserInfo) (*Tokens, error) {
	if err := s.CheckDomain(info.Email); err != nil {
		return nil, err
	}
	if !info.VerifiedEmail {
		return nil, ErrEmailNotVerified
	}

	user, err := s.users.GetUserByProvider(ctx, model.ProviderGoogle, info.ID)
	if errors.Is(err, store.ErrNotFound) {
		user, err = s.users.GetUserByEmail(ctx, info.Email)
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		user = &model.User{
			Email:         info.Email,
			Name:          info.Name,
			Provider:      model.ProviderGoogle,
			ProviderID:    info.ID,
			AvatarURL:     info.Picture,
			EmailVerified: true,
		}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	case err != nil:
		return nil, err
	default:
		if info.Name != "" {
			user.Name = info.Name
		}
		user.AvatarURL = info.Picture
		user.EmailVerified = true
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return nil, err
		}
	}

	return s.issue(ctx, user)
}

// ListUsers returns every account with its verification and admin state,
// admins first.
func (s *Service) ListUsers(ctx context.Context) ([]model.UserListing, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.UserListing, 0, len(users))
	for _, u := range users {
		out = append(out, model.UserListing{Email: u.Email, EmailVerified: u.EmailVerified, Admin: u.IsAdmin})
	}
	return out, nil
}

// SetAdmin grants or revokes the admin claim. It takes effect the next time
// the user's access token is minted.
func (s *Service) SetAdmin(ctx context.Context, email string, admin bool) (*model.UserListing, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if user.IsAdmin != admin {
		user.IsAdmin = admin
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return nil, err
		}
	}
	return &model.UserListing{Email: user.Email, EmailVerified: user.EmailVerified, Admin: user.IsAdmin}, nil
}
