package auth

import (
	"context"
	"log"
	"time"

	"github.com/shipway/server/internal/account"
	"github.com/shipway/server/internal/apperr"
	"github.com/shipway/server/internal/model"
	"github.com/shipway/server/internal/security"
	"github.com/shipway/server/internal/sms"
)

// Session is a signed bearer token issued for a user.
type Session struct {
	User      model.User
	Token     string
	ExpiresAt time.Time
}

// RegisterInput holds the registration form.
type RegisterInput struct {
	account.NewUser
	OTP string
}

// AuthService orchestrates authentication operations
type AuthService struct {
	otps     *OtpManager
	accounts *account.Manager
	tokens   *JWTService
	gateway  sms.Gateway
	fallback sms.Gateway
	brand    string
}

// NewAuthService creates a new auth service
func NewAuthService(
	otps *OtpManager,
	accounts *account.Manager,
	tokens *JWTService,
	gateway sms.Gateway,
	brand string,
) *AuthService {
	return &AuthService{
		otps:     otps,
		accounts: accounts,
		tokens:   tokens,
		gateway:  gateway,
		fallback: sms.LogGateway{},
		brand:    brand,
	}
}

// SendOTP issues a code for phone and dispatches it by SMS. Registration requires an unknown phone,
// reset-password a known one. Gateway failures fall back to log delivery and never fail the call.
func (s *AuthService) SendOTP(ctx context.Context, phone string, otpType model.OtpType) (Handle, error) {
	exists, err := s.accounts.Exists(ctx, phone, "")
	if err != nil {
		return Handle{}, err
	}
	switch otpType {
	case model.OtpRegistration:
		if exists {
			return Handle{}, account.ErrConflict
		}
	case model.OtpResetPassword:
		if !exists {
			return Handle{}, account.ErrNotFound
		}
	default:
		return Handle{}, apperr.Validation("invalid OTP type")
	}

	issued, err := s.otps.Issue(ctx, phone, otpType)
	if err != nil {
		return Handle{}, err
	}

	msg := sms.OtpMessage(s.brand, otpType, issued.Code, s.otps.TTL())
	if err := s.gateway.Send(ctx, phone, msg); err != nil {
		log.Printf("SMS delivery to %s failed, falling back to log: %v", security.MaskPhone(phone), err)
		_ = s.fallback.Send(ctx, phone, msg)
	}
	log.Printf("OTP issued: phone=%s type=%s", security.MaskPhone(phone), otpType)
	return issued.Handle, nil
}

// VerifyOTP checks a code without consuming it, so the register or reset call that follows can still use it.
func (s *AuthService) VerifyOTP(ctx context.Context, phone, code string, otpType model.OtpType) error {
	return s.otps.Check(ctx, phone, code, otpType)
}

// Register verifies the registration OTP, creates the account and signs a token.
// No user is created when verification fails.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	exists, err := s.accounts.Exists(ctx, in.Phone, in.Email)
	if err != nil {
		return Session{}, err
	}
	if exists {
		return Session{}, account.ErrConflict
	}

	// Hash before Verify so a rejected password cannot use up the code.
	hash, err := s.accounts.HashPassword(in.Password)
	if err != nil {
		return Session{}, err
	}

	if err := s.otps.Verify(ctx, in.Phone, in.OTP, model.OtpRegistration); err != nil {
		return Session{}, err
	}

	user, err := s.accounts.CreateHashed(ctx, in.NewUser, hash)
	if err != nil {
		return Session{}, err
	}

	if err := s.otps.Consume(ctx, in.Phone, model.OtpRegistration); err != nil {
		log.Printf("OTP cleanup after registration failed for %s: %v", security.MaskPhone(in.Phone), err)
	}

	token, expiresAt, err := s.tokens.Sign(user.ID, user.Phone, user.Role)
	if err != nil {
		return Session{}, err
	}
	log.Printf("User registered: id=%s phone=%s", user.ID, security.MaskPhone(user.Phone))
	return Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Login authenticates by phone and password and signs a token.
func (s *AuthService) Login(ctx context.Context, phone, password string) (Session, error) {
	user, err := s.accounts.Authenticate(ctx, phone, password)
	if err != nil {
		return Session{}, err
	}
	token, expiresAt, err := s.tokens.Sign(user.ID, user.Phone, user.Role)
	if err != nil {
		return Session{}, err
	}
	return Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// ResetPassword verifies the reset OTP and stores the new password. No token is issued.
func (s *AuthService) ResetPassword(ctx context.Context, phone, newPassword, code string) (model.User, error) {
	user, err := s.accounts.GetByPhone(ctx, phone)
	if err != nil {
		return model.User{}, err
	}

	hash, err := s.accounts.HashPassword(newPassword)
	if err != nil {
		return model.User{}, err
	}

	if err := s.otps.Verify(ctx, phone, code, model.OtpResetPassword); err != nil {
		return model.User{}, err
	}

	updated, err := s.accounts.SetPasswordHash(ctx, user.ID, hash)
	if err != nil {
		return model.User{}, err
	}

	if err := s.otps.Consume(ctx, phone, model.OtpResetPassword); err != nil {
		log.Printf("OTP cleanup after password reset failed for %s: %v", security.MaskPhone(phone), err)
	}
	log.Printf("Password reset: id=%s", updated.ID)
	return updated, nil
}
