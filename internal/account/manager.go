// Package account manages user records and their credentials.
package account

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shipway/server/internal/apperr"
	"github.com/shipway/server/internal/model"
	"github.com/shipway/server/internal/repo"
	"github.com/shipway/server/internal/security"
)

var (
	ErrConflict = apperr.New(apperr.CodeConflict, "phone number or email is already registered")
	ErrNotFound = apperr.New(apperr.CodeNotFound, "user not found")
)

// dummyPassword is hashed once per Manager at the configured cost. Authenticate compares against that
// hash when the phone is unknown, so both login failures cost one bcrypt check of the same cost.
const dummyPassword = "shipway-unknown-account"

// NewUser holds the fields needed to create an account.
type NewUser struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Role     model.Role
}

// Manager implements the account operations on top of a UserRepo.
type Manager struct {
	users     repo.UserRepo
	hasher    *security.Hasher
	dummyHash string
	now       func() time.Time
}

// NewManager creates a new account manager
func NewManager(users repo.UserRepo, hasher *security.Hasher) *Manager {
	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		log.Printf("Failed to prepare dummy password hash: %v", err)
	}
	return &Manager{
		users:     users,
		hasher:    hasher,
		dummyHash: dummy,
		now:       time.Now,
	}
}

// Exists reports whether any user has the phone or the email. Empty keys are ignored.
func (m *Manager) Exists(ctx context.Context, phone, email string) (bool, error) {
	exists, err := m.users.ExistsByPhoneOrEmail(ctx, phone, normalizeEmail(email))
	if err != nil {
		return false, apperr.Internal(err)
	}
	return exists, nil
}

// HashPassword returns the bcrypt digest of password. An empty password or one longer than bcrypt
// accepts is a validation error.
func (m *Manager) HashPassword(password string) (string, error) {
	hash, err := m.hasher.Hash(password)
	switch {
	case errors.Is(err, security.ErrEmptyPassword), errors.Is(err, security.ErrPasswordTooLong):
		return "", apperr.Validation(err.Error())
	case err != nil:
		return "", apperr.Internal(fmt.Errorf("hash password: %w", err))
	}
	return hash, nil
}

// Create hashes the password and stores a verified user. Duplicate phone or email yields ErrConflict.
func (m *Manager) Create(ctx context.Context, in NewUser) (model.User, error) {
	hash, err := m.HashPassword(in.Password)
	if err != nil {
		return model.User{}, err
	}
	return m.CreateHashed(ctx, in, hash)
}

// CreateHashed stores a verified user whose password was already hashed with HashPassword.
// in.Password is ignored.
func (m *Manager) CreateHashed(ctx context.Context, in NewUser, hash string) (model.User, error) {
	email := normalizeEmail(in.Email)
	exists, err := m.Exists(ctx, in.Phone, email)
	if err != nil {
		return model.User{}, err
	}
	if exists {
		return model.User{}, ErrConflict
	}

	role := in.Role
	if role == "" {
		role = model.RoleUser
	}
	now := m.now()
	u := model.User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Phone:        in.Phone,
		PasswordHash: hash,
		Role:         role,
		Verified:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.users.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return model.User{}, ErrConflict
		}
		return model.User{}, apperr.Internal(err)
	}
	return u, nil
}

// Authenticate returns the user when phone and password match. Unknown phone and wrong password
// yield the same ErrUnauthorized.
func (m *Manager) Authenticate(ctx context.Context, phone, password string) (model.User, error) {
	u, err := m.users.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			m.hasher.Matches(m.dummyHash, password)
			return model.User{}, apperr.ErrUnauthorized
		}
		return model.User{}, apperr.Internal(err)
	}
	if !m.hasher.Matches(u.PasswordHash, password) {
		return model.User{}, apperr.ErrUnauthorized
	}
	return u, nil
}

// UpdatePassword rehashes and stores a new password. Tokens issued earlier stay valid.
func (m *Manager) UpdatePassword(ctx context.Context, id uuid.UUID, password string) (model.User, error) {
	hash, err := m.HashPassword(password)
	if err != nil {
		return model.User{}, err
	}
	return m.SetPasswordHash(ctx, id, hash)
}

// SetPasswordHash stores a digest produced by HashPassword.
func (m *Manager) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) (model.User, error) {
	return m.Update(ctx, id, model.UserPatch{PasswordHash: &hash})
}

// Update applies the non-nil fields of patch and refreshes updatedAt in one store operation.
func (m *Manager) Update(ctx context.Context, id uuid.UUID, patch model.UserPatch) (model.User, error) {
	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		patch.Email = &email
	}
	u, err := m.users.Update(ctx, id, patch, m.now())
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return model.User{}, ErrNotFound
		case errors.Is(err, repo.ErrDuplicate):
			return model.User{}, ErrConflict
		}
		return model.User{}, apperr.Internal(err)
	}
	return u, nil
}

// Delete removes the user and reports whether a record existed.
// Callers are responsible for refusing self-deletion.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	deleted, err := m.users.Delete(ctx, id)
	if err != nil {
		return false, apperr.Internal(err)
	}
	return deleted, nil
}

func (m *Manager) Get(ctx context.Context, id uuid.UUID) (model.User, error) {
	return m.find(m.users.GetByID(ctx, id))
}

func (m *Manager) GetByPhone(ctx context.Context, phone string) (model.User, error) {
	return m.find(m.users.GetByPhone(ctx, phone))
}

func (m *Manager) find(u model.User, err error) (model.User, error) {
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, apperr.Internal(err)
	}
	return u, nil
}

// Page is one page of a user listing.
type Page struct {
	Users []model.User
	Page  int
	Limit int
	Total int
}

// Pages returns the number of pages needed for Total at Limit per page.
func (p Page) Pages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// List returns page (1-based) of users, newest first, optionally filtered by role.
func (m *Manager) List(ctx context.Context, role *model.Role, page, limit int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	users, err := m.users.List(ctx, role, (page-1)*limit, limit)
	if err != nil {
		return Page{}, apperr.Internal(err)
	}
	total, err := m.Count(ctx, role)
	if err != nil {
		return Page{}, err
	}
	return Page{Users: users, Page: page, Limit: limit, Total: total}, nil
}

func (m *Manager) Count(ctx context.Context, role *model.Role) (int, error) {
	n, err := m.users.Count(ctx, role)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

// EnsureAdmin creates the default administrator unless a user with that phone or email already exists.
// Reports whether an account was created.
func (m *Manager) EnsureAdmin(ctx context.Context, name, email, phone, password string) (bool, error) {
	if phone == "" || password == "" {
		return false, nil
	}
	_, err := m.Create(ctx, NewUser{
		Name:     name,
		Email:    email,
		Phone:    phone,
		Password: password,
		Role:     model.RoleAdmin,
	})
	if errors.Is(err, ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	log.Printf("Default admin created: %s", security.MaskPhone(phone))
	return true, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
