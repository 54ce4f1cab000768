package mongorepo

import (
	"time"

	"github.com/google/uuid"
	"github.com/shipway/server/internal/model"
)

const (
	usersCollection = "users"
	otpCollection   = "otps"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	Phone        string    `bson:"phone"`
	PasswordHash string    `bson:"password_hash"`
	Role         string    `bson:"role"`
	Verified     bool      `bson:"verified"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func toUserDoc(u model.User) userDoc {
	return userDoc{
		ID:           u.ID.String(),
		Name:         u.Name,
		Email:        u.Email,
		Phone:        u.Phone,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Verified:     u.Verified,
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
}

func (d userDoc) toModel() (model.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return model.User{}, err
	}
	return model.User{
		ID:           id,
		Name:         d.Name,
		Email:        d.Email,
		Phone:        d.Phone,
		PasswordHash: d.PasswordHash,
		Role:         model.Role(d.Role),
		Verified:     d.Verified,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

// otpDoc has no _id field: there is one document per (phone, type), and Replace swaps its contents
// in place, so the record id lives in otp_id.
type otpDoc struct {
	ID         string     `bson:"otp_id"`
	Phone      string     `bson:"phone"`
	CodeHash   string     `bson:"code_hash"`
	Type       string     `bson:"type"`
	Verified   bool       `bson:"verified"`
	VerifiedAt *time.Time `bson:"verified_at,omitempty"`
	CreatedAt  time.Time  `bson:"created_at"`
	ExpiresAt  time.Time  `bson:"expires_at"`
}

func toOtpDoc(r model.OtpRecord) otpDoc {
	return otpDoc{
		ID:         r.ID.String(),
		Phone:      r.Phone,
		CodeHash:   r.CodeHash,
		Type:       string(r.Type),
		Verified:   r.Verified,
		VerifiedAt: r.VerifiedAt,
		CreatedAt:  r.CreatedAt.UTC(),
		ExpiresAt:  r.ExpiresAt.UTC(),
	}
}

func (d otpDoc) toModel() (model.OtpRecord, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return model.OtpRecord{}, err
	}
	return model.OtpRecord{
		ID:         id,
		Phone:      d.Phone,
		CodeHash:   d.CodeHash,
		Type:       model.OtpType(d.Type),
		Verified:   d.Verified,
		VerifiedAt: d.VerifiedAt,
		CreatedAt:  d.CreatedAt,
		ExpiresAt:  d.ExpiresAt,
	}, nil
}
