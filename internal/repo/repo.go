package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shipway/server/internal/model"
)

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert or update violates a unique email/phone constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// UserRepo defines the interface for user repository operations
type UserRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	GetByPhone(ctx context.Context, phone string) (model.User, error)
	// ExistsByPhoneOrEmail reports whether any user matches phone or email. Empty keys are ignored.
	ExistsByPhoneOrEmail(ctx context.Context, phone, email string) (bool, error)
	Create(ctx context.Context, u model.User) error
	// Update applies patch and sets updated_at in a single atomic store operation and returns the new record.
	Update(ctx context.Context, id uuid.UUID, patch model.UserPatch, updatedAt time.Time) (model.User, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, role *model.Role, offset, limit int) ([]model.User, error)
	Count(ctx context.Context, role *model.Role) (int, error)
}

// OtpRepo defines the interface for OTP record repository operations
type OtpRepo interface {
	// Replace deletes every record for (rec.Phone, rec.Type) and inserts rec.
	Replace(ctx context.Context, rec model.OtpRecord) error
	// FindByCode returns the record matching phone, type and code hash exactly, or ErrNotFound.
	FindByCode(ctx context.Context, phone string, otpType model.OtpType, codeHash string) (model.OtpRecord, error)
	// MarkVerified sets verified=true only if it is currently false and the record has not expired at at.
	// Reports whether this call flipped it.
	MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	DeleteByPhone(ctx context.Context, phone string, otpType model.OtpType) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
	CountActive(ctx context.Context, phone string, otpType model.OtpType, now time.Time) (int, error)
}
