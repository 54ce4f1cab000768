package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shipway/server/internal/apperr"
	"github.com/shipway/server/internal/model"
	"github.com/shipway/server/internal/repo"
)

// Handle describes an issued OTP without revealing its code.
type Handle struct {
	Phone     string        `json:"phone"`
	Type      model.OtpType `json:"type"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// IssuedOtp is the result of Issue. Code is for SMS dispatch only and must not reach API responses.
type IssuedOtp struct {
	Handle
	Code string
}

// OtpManager issues and verifies one-time passcodes. Codes are stored as salted hashes.
type OtpManager struct {
	otps repo.OtpRepo
	gen  CodeGenerator
	salt string
	ttl  time.Duration
	now  func() time.Time
}

// NewOtpManager creates a new OTP manager
func NewOtpManager(otps repo.OtpRepo, gen CodeGenerator, salt string, ttl time.Duration) *OtpManager {
	return &OtpManager{
		otps: otps,
		gen:  gen,
		salt: salt,
		ttl:  ttl,
		now:  time.Now,
	}
}

// TTL returns the lifetime of issued codes.
func (m *OtpManager) TTL() time.Duration {
	return m.ttl
}

// Issue replaces any record for (phone, otpType) with a fresh code valid for the configured TTL.
func (m *OtpManager) Issue(ctx context.Context, phone string, otpType model.OtpType) (IssuedOtp, error) {
	code, err := m.gen.Generate()
	if err != nil {
		return IssuedOtp{}, apperr.Internal(err)
	}

	now := m.now()
	rec := model.OtpRecord{
		ID:        uuid.New(),
		Phone:     phone,
		CodeHash:  hashOTPHex(phone, code, m.salt),
		Type:      otpType,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.otps.Replace(ctx, rec); err != nil {
		return IssuedOtp{}, apperr.Internal(fmt.Errorf("store otp: %w", err))
	}

	return IssuedOtp{
		Handle: Handle{Phone: phone, Type: otpType, ExpiresAt: rec.ExpiresAt},
		Code:   code,
	}, nil
}

// Verify accepts code once. Checks run in order: existence, already consumed, expired.
// Success flips the verified flag with a compare-and-set; a concurrent loser gets ErrAlreadyConsumed
// and a record that expires before the update gets ErrExpired.
func (m *OtpManager) Verify(ctx context.Context, phone, code string, otpType model.OtpType) error {
	rec, err := m.lookup(ctx, phone, code, otpType)
	if err != nil {
		return err
	}

	at := m.now()
	ok, err := m.otps.MarkVerified(ctx, rec.ID, at)
	if err != nil {
		return apperr.Internal(fmt.Errorf("mark otp verified: %w", err))
	}
	if !ok {
		if rec.Expired(at) && !m.consumedSince(ctx, rec) {
			return apperr.ErrExpired
		}
		return apperr.ErrAlreadyConsumed
	}
	return nil
}

// consumedSince reports whether rec was verified by another caller after it was read.
func (m *OtpManager) consumedSince(ctx context.Context, rec model.OtpRecord) bool {
	cur, err := m.otps.FindByCode(ctx, rec.Phone, rec.Type, rec.CodeHash)
	return err == nil && cur.ID == rec.ID && cur.Verified
}

// Check runs the same checks as Verify without consuming the code.
func (m *OtpManager) Check(ctx context.Context, phone, code string, otpType model.OtpType) error {
	_, err := m.lookup(ctx, phone, code, otpType)
	return err
}

func (m *OtpManager) lookup(ctx context.Context, phone, code string, otpType model.OtpType) (model.OtpRecord, error) {
	rec, err := m.otps.FindByCode(ctx, phone, otpType, hashOTPHex(phone, code, m.salt))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.OtpRecord{}, apperr.ErrInvalidCode
		}
		return model.OtpRecord{}, apperr.Internal(fmt.Errorf("find otp: %w", err))
	}
	if rec.Verified {
		return model.OtpRecord{}, apperr.ErrAlreadyConsumed
	}
	if rec.Expired(m.now()) {
		return model.OtpRecord{}, apperr.ErrExpired
	}
	return rec, nil
}

// Consume deletes every record for (phone, otpType).
func (m *OtpManager) Consume(ctx context.Context, phone string, otpType model.OtpType) error {
	if _, err := m.otps.DeleteByPhone(ctx, phone, otpType); err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	return nil
}

// Sweep deletes records whose expiry has passed and returns how many were removed.
func (m *OtpManager) Sweep(ctx context.Context) (int64, error) {
	n, err := m.otps.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("sweep expired otps: %w", err)
	}
	return n, nil
}
