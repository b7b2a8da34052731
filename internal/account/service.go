// Package account implements registration, credential login and one-time
// code verification.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"coursehub/internal/auth"
	"coursehub/internal/config"
	"coursehub/internal/db"
	"coursehub/internal/models"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidOTP         = errors.New("invalid or expired otp")
	ErrOTPDelivery        = errors.New("otp delivery failed")
	ErrUnknownRole        = errors.New("unknown role")
	ErrInvalidRole        = errors.New("role cannot be self-assigned")
)

type UserStore interface {
	Create(ctx context.Context, username, email, passwordHash string, role models.Role) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	SetOTP(ctx context.Context, userID, codeHash string, expiresAt time.Time) error
	ConsumeOTP(ctx context.Context, email, codeHash string, now time.Time) (*models.User, error)
}

type Mailer interface {
	SendOTP(ctx context.Context, to, code string, ttl time.Duration) error
}

type Service struct {
	users      UserStore
	mailer     Mailer
	tokens     *auth.JWTService
	otps       *auth.OTPService
	strategies map[models.Role]loginStrategy
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     models.Role
}

// Session is a user paired with a freshly minted token.
type Session struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// LoginResult is either an operator token or a notice that a code was
// mailed to Email.
type LoginResult struct {
	OTPSent bool
	Email   string
	Role    models.Role
	Token   string
}

func NewService(users UserStore, mailer Mailer, tokens *auth.JWTService, otps *auth.OTPService, operators config.OperatorsConfig, policy string) *Service {
	s := &Service{
		users:  users,
		mailer: mailer,
		tokens: tokens,
		otps:   otps,
	}

	user := &userStrategy{svc: s, checkPassword: policy != config.PolicyOTPOnly}
	s.strategies = map[models.Role]loginStrategy{
		"":                    user,
		models.RoleUser:       user,
		models.RoleAdmin:      &operatorStrategy{tokens: tokens, role: models.RoleAdmin, account: operators.Admin},
		models.RoleInstructor: &operatorStrategy{tokens: tokens, role: models.RoleInstructor, account: operators.Instructor},
	}

	return s
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if in.Role != "" && in.Role != models.RoleUser {
		return nil, ErrInvalidRole
	}
	email := normalizeEmail(in.Email)

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("looking up email: %w", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, strings.TrimSpace(in.Username), email, hash, models.RoleUser)
	if errors.Is(err, db.ErrDuplicate) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	token, err := s.tokens.IssueUserToken(user)
	if err != nil {
		return nil, err
	}

	slog.Info("user registered", "component", "account", "user_id", user.ID)
	return &Session{User: user, Token: token}, nil
}

func (s *Service) Login(ctx context.Context, email, password string, role models.Role) (*LoginResult, error) {
	strategy, ok := s.strategies[role]
	if !ok {
		return nil, ErrUnknownRole
	}
	return strategy.login(ctx, normalizeEmail(email), password)
}

// IssueOTP stores a fresh code for the user and mails it. The code stays
// stored when delivery fails.
func (s *Service) IssueOTP(ctx context.Context, user *models.User) error {
	code, err := s.otps.GenerateCode()
	if err != nil {
		return err
	}

	if err := s.users.SetOTP(ctx, user.ID, auth.HashOTP(user.Email, code), s.otps.ExpiresAt()); err != nil {
		return fmt.Errorf("storing otp: %w", err)
	}

	if err := s.mailer.SendOTP(ctx, user.Email, code, s.otps.TTL()); err != nil {
		slog.Error("failed to send otp", "component", "account", "user_id", user.ID, "error", err)
		return fmt.Errorf("%w: %v", ErrOTPDelivery, err)
	}

	return nil
}

func (s *Service) VerifyOTP(ctx context.Context, email, code string) (*Session, error) {
	email = normalizeEmail(email)

	user, err := s.users.ConsumeOTP(ctx, email, auth.HashOTP(email, strings.TrimSpace(code)), s.otps.Now())
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidOTP
	}
	if err != nil {
		return nil, fmt.Errorf("consuming otp: %w", err)
	}

	token, err := s.tokens.IssueUserToken(user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
