package account

import (
	"bytes"
	"context"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shipway/server/internal/apperr"
	"github.com/shipway/server/internal/model"
	"github.com/shipway/server/internal/repo/memrepo"
	"github.com/shipway/server/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestManager() *Manager {
	return NewManager(memrepo.NewUserStore(), security.NewHasher(bcrypt.MinCost))
}

func validUser() NewUser {
	return NewUser{
		Name:     "Nguyen Van A",
		Email:    "A@Example.com",
		Phone:    "+84397912441",
		Password: "Secret@123",
		Role:     model.RoleDriver,
	}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	u, err := m.Create(ctx, validUser())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.True(t, u.Verified)
	assert.Equal(t, "a@example.com", u.Email)
	assert.Equal(t, model.RoleDriver, u.Role)
	assert.NotEqual(t, "Secret@123", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("Secret@123")))

	exists, err := m.Exists(ctx, "", "a@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreate_Conflict(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	_, err := m.Create(ctx, validUser())
	require.NoError(t, err)

	samePhone := validUser()
	samePhone.Email = "other@example.com"
	_, err = m.Create(ctx, samePhone)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))

	sameEmail := validUser()
	sameEmail.Phone = "+84397912442"
	_, err = m.Create(ctx, sameEmail)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreate_DefaultRole(t *testing.T) {
	in := validUser()
	in.Role = ""
	u, err := newTestManager().Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, u.Role)
}

func TestAuthenticate_MergedFailures(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	created, err := m.Create(ctx, validUser())
	require.NoError(t, err)

	u, err := m.Authenticate(ctx, "+84397912441", "Secret@123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, u.ID)

	_, wrongPassword := m.Authenticate(ctx, "+84397912441", "Wrong@123")
	_, unknownPhone := m.Authenticate(ctx, "+84000000000", "Secret@123")
	require.Error(t, wrongPassword)
	require.Error(t, unknownPhone)
	assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(wrongPassword))
	assert.Equal(t, apperr.CodeOf(wrongPassword), apperr.CodeOf(unknownPhone))
	assert.Equal(t, wrongPassword.Error(), unknownPhone.Error())
}

func TestUpdatePassword(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }
	u, err := m.Create(ctx, validUser())
	require.NoError(t, err)

	m.now = func() time.Time { return base.Add(time.Hour) }
	updated, err := m.UpdatePassword(ctx, u.ID, "NewSecret@456")
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Hour), updated.UpdatedAt)

	_, err = m.Authenticate(ctx, u.Phone, "Secret@123")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = m.Authenticate(ctx, u.Phone, "NewSecret@456")
	assert.NoError(t, err)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	u, err := m.Create(ctx, validUser())
	require.NoError(t, err)
	other := validUser()
	other.Phone = "+84397912442"
	other.Email = "b@example.com"
	_, err = m.Create(ctx, other)
	require.NoError(t, err)

	name := "Tran Thi B"
	updated, err := m.Update(ctx, u.ID, model.UserPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Tran Thi B", updated.Name)
	assert.Equal(t, u.Email, updated.Email)
	assert.False(t, updated.UpdatedAt.Before(u.UpdatedAt))

	taken := "B@example.com"
	_, err = m.Update(ctx, u.ID, model.UserPatch{Email: &taken})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = m.Update(ctx, uuid.New(), model.UserPatch{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestDeleteAndGet(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	u, err := m.Create(ctx, validUser())
	require.NoError(t, err)

	got, err := m.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Phone, got.Phone)

	deleted, err := m.Delete(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = m.Delete(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = m.GetByPhone(ctx, u.Phone)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndCount(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	for i, role := range []model.Role{model.RoleUser, model.RoleUser, model.RoleDriver} {
		in := validUser()
		in.Phone = "+8439791244" + string(rune('0'+i))
		in.Email = string(rune('a'+i)) + "@example.com"
		in.Role = role
		_, err := m.Create(ctx, in)
		require.NoError(t, err)
	}

	page, err := m.List(ctx, nil, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page.Users, 2)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Pages())

	role := model.RoleDriver
	page, err = m.List(ctx, &role, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 10, page.Limit)
	assert.Len(t, page.Users, 1)

	n, err := m.Count(ctx, &role)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEnsureAdmin_Idempotent(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	created, err := m.EnsureAdmin(ctx, "Admin", "admin@shipway.vn", "+84900000000", "Admin@123")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = m.EnsureAdmin(ctx, "Admin", "admin@shipway.vn", "+84900000000", "Admin@123")
	require.NoError(t, err)
	assert.False(t, created)

	admin, err := m.GetByPhone(ctx, "+84900000000")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, admin.Role)

	created, err = m.EnsureAdmin(ctx, "Admin", "admin@shipway.vn", "", "")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestEnsureAdmin_LogsOnce(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	created, err := newTestManager().EnsureAdmin(context.Background(), "Admin", "admin@shipway.vn", "+84900000000", "Admin@123")
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"), buf.String())
	assert.NotContains(t, buf.String(), "+84900000000")
}

func TestDummyHash_UsesConfiguredCost(t *testing.T) {
	for _, cost := range []int{bcrypt.MinCost, bcrypt.MinCost + 2} {
		m := NewManager(memrepo.NewUserStore(), security.NewHasher(cost))
		got, err := bcrypt.Cost([]byte(m.dummyHash))
		require.NoError(t, err)
		assert.Equal(t, cost, got)
	}
}

func TestHashPassword_TooLongIsValidation(t *testing.T) {
	m := newTestManager()

	_, err := m.HashPassword(strings.Repeat("A1@a", 20))
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	_, err = m.HashPassword("")
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	hash, err := m.HashPassword("Secret@123")
	require.NoError(t, err)
	u, err := m.CreateHashed(context.Background(), validUser(), hash)
	require.NoError(t, err)
	assert.Equal(t, hash, u.PasswordHash)
}
