// Package service implements phone-number login: a one-time code is issued
// per phone, verified, and exchanged for a JWT access token carrying the
// user's id and role. First-time phone numbers get a citizen account.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sanitrack/internal/audit"
	"sanitrack/internal/auth/models"
	identity "sanitrack/internal/identity/models"
	"sanitrack/pkg/attrs"
	id "sanitrack/pkg/domain"
	dErrors "sanitrack/pkg/domain-errors"
	"sanitrack/pkg/platform/sentinel"
	"sanitrack/pkg/requestcontext"
)

// OTPStore holds pending challenges. Implementations enforce expiry
// themselves: expired challenges surface as ErrExpired or ErrNotFound.
type OTPStore interface {
	Save(ctx context.Context, challenge models.Challenge) error
	Find(ctx context.Context, phone string, now time.Time) (models.Challenge, error)
	Delete(ctx context.Context, phone string) error
}

// UserStore resolves and provisions accounts by phone number.
type UserStore interface {
	Create(ctx context.Context, user *identity.User) error
	FindByPhone(ctx context.Context, phone string) (*identity.User, error)
}

// TokenIssuer mints signed access tokens.
type TokenIssuer interface {
	GenerateAccessToken(userID id.UserID, role string, expiresIn time.Duration) (string, error)
}

// AuditPublisher receives operational audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates OTP issuance and verification.
type Service struct {
	otps           OTPStore
	users          UserStore
	tokens         TokenIssuer
	otpTTL         time.Duration
	accessTokenTTL time.Duration
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(otps OTPStore, users UserStore, tokens TokenIssuer, otpTTL, accessTokenTTL time.Duration, opts ...Option) *Service {
	s := &Service{
		otps:           otps,
		users:          users,
		tokens:         tokens,
		otpTTL:         otpTTL,
		accessTokenTTL: accessTokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OTPChallenge is the response to a code request. The code itself travels
// out of band; the API only reports how long it stays valid.
type OTPChallenge struct {
	ExpiresIn int `json:"expires_in"`
}

// TokenResult is a successful login.
type TokenResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// RequestOTP issues a fresh code for the phone number, replacing any
// pending one. Delivery (SMS) is out of scope; the code is logged at debug
// level for development setups.
func (s *Service) RequestOTP(ctx context.Context, rawPhone string) (*OTPChallenge, error) {
	phone, err := identity.NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}
	code, err := models.GenerateCode()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
	}
	now := requestcontext.Now(ctx)
	challenge := models.Challenge{
		PhoneNumber: phone,
		CodeHash:    models.HashCode(code),
		ExpiresAt:   now.Add(s.otpTTL),
	}
	if err := s.otps.Save(ctx, challenge); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save code")
	}
	if s.logger != nil {
		s.logger.DebugContext(ctx, "otp issued", "phone", phone, "code", code)
	}
	s.logAudit(ctx, string(audit.EventOTPIssued), "phone", phone)
	return &OTPChallenge{ExpiresIn: int(s.otpTTL.Seconds())}, nil
}

// VerifyOTP exchanges a valid code for an access token. Codes are single
// use; an unknown phone number gets a citizen account on first login.
func (s *Service) VerifyOTP(ctx context.Context, rawPhone, code string) (*TokenResult, error) {
	phone, err := identity.NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	challenge, err := s.otps.Find(ctx, phone, now)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrExpired):
			return nil, dErrors.New(dErrors.CodeUnauthorized, "code has expired")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeUnauthorized, "no pending code for this phone number")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load code")
		}
	}
	if !challenge.Matches(code) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "incorrect code")
	}
	if err := s.otps.Delete(ctx, phone); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume code")
	}

	user, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
		}
		user, err = identity.NewUser(id.NewUserID(), phone, identity.RoleCitizen, now)
		if err != nil {
			return nil, err
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
		}
	}
	if !user.IsActive {
		return nil, dErrors.New(dErrors.CodeForbidden, "account is deactivated")
	}

	token, err := s.tokens.GenerateAccessToken(user.ID, user.Role.String(), s.accessTokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	s.logAudit(ctx, string(audit.EventLogin),
		"actor_id", user.ID.String(),
		"role", user.Role.String())
	return &TokenResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		ActorID: attrs.ExtractString(attributes, "actor_id"),
		Subject: attrs.ExtractString(attributes, "phone"),
		Action:  event,
	})
}
