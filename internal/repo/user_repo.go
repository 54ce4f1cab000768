package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shipway/server/internal/model"
)

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new Postgres-backed UserRepo
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

const userColumns = `id, name, email, phone, password_hash, role, verified, created_at, updated_at`

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// GetByID retrieves a user by ID
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return r.scanOne(row)
}

// GetByPhone retrieves a user by phone number
func (r *userRepo) GetByPhone(ctx context.Context, phone string) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
	return r.scanOne(row)
}

// ExistsByPhoneOrEmail reports whether a user with the phone or the email exists
func (r *userRepo) ExistsByPhoneOrEmail(ctx context.Context, phone, email string) (bool, error) {
	if phone == "" && email == "" {
		return false, nil
	}
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE ($1 <> '' AND phone = $1) OR ($2 <> '' AND email = $2)
		)
	`, phone, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query user existence: %w", err)
	}
	return exists, nil
}

// Create inserts a new user. Unique violations on email or phone surface as ErrDuplicate.
func (r *userRepo) Create(ctx context.Context, u model.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, u.ID, u.Name, u.Email, u.Phone, u.PasswordHash, string(u.Role), u.Verified, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Update applies the non-nil fields of patch in one UPDATE ... RETURNING statement.
func (r *userRepo) Update(ctx context.Context, id uuid.UUID, patch model.UserPatch, updatedAt time.Time) (model.User, error) {
	var role *string
	if patch.Role != nil {
		s := string(*patch.Role)
		role = &s
	}
	row := r.db.QueryRowContext(ctx, `
		UPDATE users SET
			name = COALESCE($2, name),
			email = COALESCE($3, email),
			phone = COALESCE($4, phone),
			role = COALESCE($5, role),
			password_hash = COALESCE($6, password_hash),
			updated_at = $7
		WHERE id = $1
		RETURNING `+userColumns,
		id, patch.Name, patch.Email, patch.Phone, role, patch.PasswordHash, updatedAt)
	u, err := r.scanOne(row)
	if err != nil && isUniqueViolation(err) {
		return model.User{}, ErrDuplicate
	}
	return u, err
}

// Delete removes a user; reports whether a row was deleted
func (r *userRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// List returns users ordered by creation time, optionally filtered by role
func (r *userRepo) List(ctx context.Context, role *model.Role, offset, limit int) ([]model.User, error) {
	var filter sql.NullString
	if role != nil {
		filter = sql.NullString{String: string(*role), Valid: true}
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE $1::text IS NULL OR role = $1
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3
	`, filter, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// Count returns the number of users, optionally filtered by role
func (r *userRepo) Count(ctx context.Context, role *model.Role) (int, error) {
	var filter sql.NullString
	if role != nil {
		filter = sql.NullString{String: string(*role), Valid: true}
	}
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE $1::text IS NULL OR role = $1`, filter).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (r *userRepo) scanOne(row *sql.Row) (model.User, error) {
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		if isUniqueViolation(err) {
			return model.User{}, err
		}
		return model.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	var idStr, role string
	err := row.Scan(
		&idStr,
		&u.Name,
		&u.Email,
		&u.Phone,
		&u.PasswordHash,
		&role,
		&u.Verified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return model.User{}, err
	}
	u.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to parse user ID: %w", err)
	}
	u.Role = model.Role(role)
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
