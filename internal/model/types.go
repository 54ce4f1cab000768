package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization role carried by a user and by its bearer tokens.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleUser   Role = "user"
	RoleDriver Role = "driver"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleDriver:
		return true
	}
	return false
}

// OtpType is the flow an OTP was issued for.
type OtpType string

const (
	OtpRegistration  OtpType = "registration"
	OtpResetPassword OtpType = "reset-password"
)

// Valid reports whether t is one of the known OTP types.
func (t OtpType) Valid() bool {
	return t == OtpRegistration || t == OtpResetPassword
}

// User represents an account. PasswordHash is always a bcrypt digest.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	Role         Role
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserPatch holds the fields of a partial user update; nil fields are left unchanged.
type UserPatch struct {
	Name         *string
	Email        *string
	Phone        *string
	Role         *Role
	PasswordHash *string
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Role == nil && p.PasswordHash == nil
}

// OtpRecord is a stored one-time passcode. CodeHash is a salted digest of the code, never the code itself.
type OtpRecord struct {
	ID         uuid.UUID
	Phone      string
	CodeHash   string
	Type       OtpType
	Verified   bool
	VerifiedAt *time.Time
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the record is past its expiry at now.
func (o OtpRecord) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// Active reports whether the record can still be accepted at now.
func (o OtpRecord) Active(now time.Time) bool {
	return !o.Verified && !o.Expired(now)
}
