// Package memrepo provides in-memory UserRepo and OtpRepo implementations.
// Used for STORE_DRIVER=memory and for unit tests; data does not survive a restart.
package memrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shipway/server/internal/model"
	"github.com/shipway/server/internal/repo"
)

// UserStore holds users in memory
type UserStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]model.User
}

// NewUserStore creates an empty in-memory user store
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[uuid.UUID]model.User)}
}

var _ repo.UserRepo = (*UserStore)(nil)

func (s *UserStore) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (s *UserStore) GetByPhone(_ context.Context, phone string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Phone == phone {
			return u, nil
		}
	}
	return model.User{}, repo.ErrNotFound
}

func (s *UserStore) ExistsByPhoneOrEmail(_ context.Context, phone, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.conflictLocked(uuid.Nil, phone, email), nil
}

// Create inserts u, enforcing unique phone and email like the SQL indexes do.
func (s *UserStore) Create(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; ok {
		return repo.ErrDuplicate
	}
	if s.conflictLocked(uuid.Nil, u.Phone, u.Email) {
		return repo.ErrDuplicate
	}
	s.users[u.ID] = u
	return nil
}

func (s *UserStore) Update(_ context.Context, id uuid.UUID, patch model.UserPatch, updatedAt time.Time) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}

	var phone, email string
	if patch.Phone != nil {
		phone = *patch.Phone
	}
	if patch.Email != nil {
		email = *patch.Email
	}
	if s.conflictLocked(id, phone, email) {
		return model.User{}, repo.ErrDuplicate
	}

	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.Phone != nil {
		u.Phone = *patch.Phone
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	u.UpdatedAt = updatedAt
	s.users[id] = u
	return u, nil
}

func (s *UserStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return false, nil
	}
	delete(s.users, id)
	return true, nil
}

// List returns users newest first, matching the Postgres ordering.
func (s *UserStore) List(_ context.Context, role *model.Role, offset, limit int) ([]model.User, error) {
	s.mu.RLock()
	matched := s.filterLocked(role)
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if offset >= len(matched) {
		return []model.User{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (s *UserStore) Count(_ context.Context, role *model.Role) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.filterLocked(role)), nil
}

func (s *UserStore) filterLocked(role *model.Role) []model.User {
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		if role == nil || u.Role == *role {
			out = append(out, u)
		}
	}
	return out
}

// conflictLocked reports whether a user other than self owns phone or email. Empty keys never match.
func (s *UserStore) conflictLocked(self uuid.UUID, phone, email string) bool {
	for id, u := range s.users {
		if id == self {
			continue
		}
		if (phone != "" && u.Phone == phone) || (email != "" && u.Email == email) {
			return true
		}
	}
	return false
}

// OtpStore holds OTP records in memory. A single mutex makes Replace and MarkVerified atomic.
type OtpStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]model.OtpRecord
}

// NewOtpStore creates an empty in-memory OTP store
func NewOtpStore() *OtpStore {
	return &OtpStore{records: make(map[uuid.UUID]model.OtpRecord)}
}

var _ repo.OtpRepo = (*OtpStore)(nil)

func (s *OtpStore) Replace(_ context.Context, rec model.OtpRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(rec.Phone, rec.Type)
	s.records[rec.ID] = rec
	return nil
}

func (s *OtpStore) FindByCode(_ context.Context, phone string, otpType model.OtpType, codeHash string) (model.OtpRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found model.OtpRecord
	ok := false
	for _, r := range s.records {
		if r.Phone != phone || r.Type != otpType || r.CodeHash != codeHash {
			continue
		}
		if !ok || r.CreatedAt.After(found.CreatedAt) {
			found, ok = r, true
		}
	}
	if !ok {
		return model.OtpRecord{}, repo.ErrNotFound
	}
	return found, nil
}

func (s *OtpStore) MarkVerified(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok || !r.Active(at) {
		return false, nil
	}
	r.Verified = true
	r.VerifiedAt = &at
	s.records[id] = r
	return true, nil
}

func (s *OtpStore) DeleteByPhone(_ context.Context, phone string, otpType model.OtpType) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleteLocked(phone, otpType), nil
}

func (s *OtpStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, r := range s.records {
		if r.ExpiresAt.Before(before) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *OtpStore) CountActive(_ context.Context, phone string, otpType model.OtpType, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.records {
		if r.Phone == phone && r.Type == otpType && r.Active(now) {
			n++
		}
	}
	return n, nil
}

func (s *OtpStore) deleteLocked(phone string, otpType model.OtpType) int64 {
	var n int64
	for id, r := range s.records {
		if r.Phone == phone && r.Type == otpType {
			delete(s.records, id)
			n++
		}
	}
	return n
}
