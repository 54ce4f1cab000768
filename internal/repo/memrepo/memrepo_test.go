package memrepo

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shipway/server/internal/model"
	"github.com/shipway/server/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(phone, email string, role model.Role, created time.Time) model.User {
	return model.User{
		ID:        uuid.New(),
		Name:      "Test User",
		Email:     email,
		Phone:     phone,
		Role:      role,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestUserStore_CreateRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()
	now := time.Now()

	require.NoError(t, s.Create(ctx, newUser("+84397912441", "a@example.com", model.RoleUser, now)))

	err := s.Create(ctx, newUser("+84397912441", "b@example.com", model.RoleUser, now))
	assert.ErrorIs(t, err, repo.ErrDuplicate)

	err = s.Create(ctx, newUser("+84397912442", "a@example.com", model.RoleUser, now))
	assert.ErrorIs(t, err, repo.ErrDuplicate)

	exists, err := s.ExistsByPhoneOrEmail(ctx, "", "a@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.ExistsByPhoneOrEmail(ctx, "+84000000000", "")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUserStore_UpdatePatch(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()
	now := time.Now()
	u := newUser("+84397912441", "a@example.com", model.RoleUser, now)
	other := newUser("+84397912442", "b@example.com", model.RoleUser, now)
	require.NoError(t, s.Create(ctx, u))
	require.NoError(t, s.Create(ctx, other))

	name := "Renamed"
	later := now.Add(time.Minute)
	got, err := s.Update(ctx, u.ID, model.UserPatch{Name: &name}, later)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "a@example.com", got.Email)
	assert.Equal(t, later, got.UpdatedAt)

	taken := "b@example.com"
	_, err = s.Update(ctx, u.ID, model.UserPatch{Email: &taken}, later)
	assert.ErrorIs(t, err, repo.ErrDuplicate)

	own := "a@example.com"
	_, err = s.Update(ctx, u.ID, model.UserPatch{Email: &own}, later)
	assert.NoError(t, err)

	_, err = s.Update(ctx, uuid.New(), model.UserPatch{Name: &name}, later)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestUserStore_ListAndCount(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first := newUser("+84100000001", "1@example.com", model.RoleUser, base)
	second := newUser("+84100000002", "2@example.com", model.RoleDriver, base.Add(time.Hour))
	third := newUser("+84100000003", "3@example.com", model.RoleUser, base.Add(2*time.Hour))
	for _, u := range []model.User{first, second, third} {
		require.NoError(t, s.Create(ctx, u))
	}

	all, err := s.List(ctx, nil, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, third.ID, all[0].ID)
	assert.Equal(t, first.ID, all[2].ID)

	role := model.RoleUser
	users, err := s.List(ctx, &role, 1, 10)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, first.ID, users[0].ID)

	n, err := s.Count(ctx, &role)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	empty, err := s.List(ctx, nil, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	deleted, err := s.Delete(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = s.Delete(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func newOtp(phone string, hash string, now time.Time) model.OtpRecord {
	return model.OtpRecord{
		ID:        uuid.New(),
		Phone:     phone,
		CodeHash:  hash,
		Type:      model.OtpRegistration,
		CreatedAt: now,
		ExpiresAt: now.Add(5 * time.Minute),
	}
}

func TestOtpStore_ReplaceKeepsOneRecord(t *testing.T) {
	ctx := context.Background()
	s := NewOtpStore()
	now := time.Now()
	phone := "+84397912441"

	require.NoError(t, s.Replace(ctx, newOtp(phone, "h1", now)))
	require.NoError(t, s.Replace(ctx, newOtp(phone, "h2", now.Add(time.Second))))

	n, err := s.CountActive(ctx, phone, model.OtpRegistration, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.FindByCode(ctx, phone, model.OtpRegistration, "h1")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	rec, err := s.FindByCode(ctx, phone, model.OtpRegistration, "h2")
	require.NoError(t, err)
	assert.Equal(t, "h2", rec.CodeHash)

	_, err = s.FindByCode(ctx, phone, model.OtpResetPassword, "h2")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestOtpStore_MarkVerifiedOnce(t *testing.T) {
	ctx := context.Background()
	s := NewOtpStore()
	now := time.Now()
	rec := newOtp("+84397912441", "h", now)
	require.NoError(t, s.Replace(ctx, rec))

	const workers = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.MarkVerified(ctx, rec.ID, now)
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	got, err := s.FindByCode(ctx, rec.Phone, rec.Type, "h")
	require.NoError(t, err)
	assert.True(t, got.Verified)
	require.NotNil(t, got.VerifiedAt)
}

func TestOtpStore_MarkVerifiedRejectsExpired(t *testing.T) {
	ctx := context.Background()
	s := NewOtpStore()
	now := time.Now()
	rec := newOtp("+84397912441", "h", now)
	require.NoError(t, s.Replace(ctx, rec))

	ok, err := s.MarkVerified(ctx, rec.ID, rec.ExpiresAt.Add(time.Millisecond))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.MarkVerified(ctx, rec.ID, rec.ExpiresAt)
	require.NoError(t, err)
	assert.True(t, ok, "valid up to and including expiry")
}

func TestOtpStore_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	s := NewOtpStore()
	now := time.Now()

	old := newOtp("+84100000001", "a", now.Add(-time.Hour))
	fresh := newOtp("+84100000002", "b", now)
	require.NoError(t, s.Replace(ctx, old))
	require.NoError(t, s.Replace(ctx, fresh))

	n, err := s.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.FindByCode(ctx, old.Phone, old.Type, "a")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	n, err = s.DeleteByPhone(ctx, fresh.Phone, fresh.Type)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
