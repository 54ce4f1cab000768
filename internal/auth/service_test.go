package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shipway/server/internal/account"
	"github.com/shipway/server/internal/apperr"
	"github.com/shipway/server/internal/model"
	"github.com/shipway/server/internal/repo/memrepo"
	"github.com/shipway/server/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingGateway struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (g *recordingGateway) Send(_ context.Context, _ string, message string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.messages = append(g.messages, message)
	return nil
}

type serviceFixture struct {
	svc     *AuthService
	users   *memrepo.UserStore
	otps    *OtpManager
	tokens  *JWTService
	gateway *recordingGateway
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	users := memrepo.NewUserStore()
	otps := NewOtpManager(memrepo.NewOtpStore(), FixedGenerator{Code: "123456"}, "test-salt", 5*time.Minute)
	accounts := account.NewManager(users, security.NewHasher(bcrypt.MinCost))
	tokens := NewJWTService(testSecret, 7*24*time.Hour)
	gateway := &recordingGateway{}
	return &serviceFixture{
		svc:     NewAuthService(otps, accounts, tokens, gateway, "Shipway"),
		users:   users,
		otps:    otps,
		tokens:  tokens,
		gateway: gateway,
	}
}

func registration() RegisterInput {
	return RegisterInput{
		NewUser: account.NewUser{
			Name:     "Nguyen Van A",
			Email:    "a@example.com",
			Phone:    testPhone,
			Password: "Secret@123",
			Role:     model.RoleUser,
		},
		OTP: "123456",
	}
}

func TestSendOTP_Registration(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	handle, err := f.svc.SendOTP(ctx, testPhone, model.OtpRegistration)
	require.NoError(t, err)
	assert.Equal(t, testPhone, handle.Phone)
	assert.Equal(t, model.OtpRegistration, handle.Type)
	require.Len(t, f.gateway.messages, 1)
	assert.Contains(t, f.gateway.messages[0], "123456")
	assert.Contains(t, f.gateway.messages[0], "5 minutes")
}

func TestSendOTP_ExistenceRules(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.SendOTP(ctx, testPhone, model.OtpResetPassword)
	assert.ErrorIs(t, err, account.ErrNotFound)

	_, err = f.svc.SendOTP(ctx, testPhone, model.OtpRegistration)
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, registration())
	require.NoError(t, err)

	_, err = f.svc.SendOTP(ctx, testPhone, model.OtpRegistration)
	assert.ErrorIs(t, err, account.ErrConflict)

	_, err = f.svc.SendOTP(ctx, testPhone, model.OtpType("bogus"))
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestSendOTP_GatewayFailureDoesNotFail(t *testing.T) {
	f := newServiceFixture(t)
	f.gateway.err = errors.New("twilio down")
	ctx := context.Background()

	_, err := f.svc.SendOTP(ctx, testPhone, model.OtpRegistration)
	require.NoError(t, err)
	assert.NoError(t, f.svc.VerifyOTP(ctx, testPhone, "123456", model.OtpRegistration))
}

func TestRegister_CreatesVerifiedUserAndToken(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	_, err := f.svc.SendOTP(ctx, testPhone, model.OtpRegistration)
	require.NoError(t, err)

	require.NoError(t, f.svc.VerifyOTP(ctx, testPhone, "123456", model.OtpRegistration), "pre-check leaves the code usable")

	session, err := f.svc.Register(ctx, registration())
	require.NoError(t, err)
	assert.True(t, session.User.Verified)
	assert.NotEqual(t, "Secret@123", session.User.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(session.User.PasswordHash), []byte("Secret@123")))

	claims, err := f.tokens.Verify(session.Token)
	require.NoError(t, err)
	subject, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, subject)

	assert.ErrorIs(t, f.otps.Verify(ctx, testPhone, "123456", model.OtpRegistration), apperr.ErrInvalidCode,
		"code is gone after registration")
}

func TestRegister_FailedOTPCreatesNoUser(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	_, err := f.svc.SendOTP(ctx, testPhone, model.OtpRegistration)
	require.NoError(t, err)

	in := registration()
	in.OTP = "654321"
	_, err = f.svc.Register(ctx, in)
	assert.ErrorIs(t, err, apperr.ErrInvalidCode)

	n, err := f.users.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRegister_Conflict(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	_, err := f.svc.SendOTP(ctx, testPhone, model.OtpRegistration)
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, registration())
	require.NoError(t, err)

	again := registration()
	again.Phone = "+84397912442"
	_, err = f.svc.Register(ctx, again)
	assert.ErrorIs(t, err, account.ErrConflict, "email already taken")
}

func TestLogin(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	_, err := f.svc.SendOTP(ctx, testPhone, model.OtpRegistration)
	require.NoError(t, err)
	registered, err := f.svc.Register(ctx, registration())
	require.NoError(t, err)

	session, err := f.svc.Login(ctx, testPhone, "Secret@123")
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, session.User.ID)
	assert.NotEmpty(t, session.Token)

	_, wrong := f.svc.Login(ctx, testPhone, "Nope@1234")
	_, unknown := f.svc.Login(ctx, "+84000000000", "Secret@123")
	assert.ErrorIs(t, wrong, apperr.ErrUnauthorized)
	assert.ErrorIs(t, unknown, apperr.ErrUnauthorized)
	assert.Equal(t, apperr.MessageOf(wrong), apperr.MessageOf(unknown))
}

func TestResetPassword(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.ResetPassword(ctx, testPhone, "NewSecret@456", "123456")
	assert.ErrorIs(t, err, account.ErrNotFound)

	_, err = f.svc.SendOTP(ctx, testPhone, model.OtpRegistration)
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, registration())
	require.NoError(t, err)

	_, err = f.svc.ResetPassword(ctx, testPhone, "NewSecret@456", "123456")
	assert.ErrorIs(t, err, apperr.ErrInvalidCode, "registration code is not a reset code")

	_, err = f.svc.SendOTP(ctx, testPhone, model.OtpResetPassword)
	require.NoError(t, err)
	user, err := f.svc.ResetPassword(ctx, testPhone, "NewSecret@456", "123456")
	require.NoError(t, err)
	assert.Equal(t, testPhone, user.Phone)

	_, err = f.svc.Login(ctx, testPhone, "Secret@123")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = f.svc.Login(ctx, testPhone, "NewSecret@456")
	assert.NoError(t, err)

	_, err = f.svc.ResetPassword(ctx, testPhone, "Other@789", "123456")
	assert.ErrorIs(t, err, apperr.ErrInvalidCode, "code cannot be replayed")
}

func TestRegister_RejectedPasswordKeepsCode(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	_, err := f.svc.SendOTP(ctx, testPhone, model.OtpRegistration)
	require.NoError(t, err)

	in := registration()
	in.Password = strings.Repeat("Aa1@", 20)
	_, err = f.svc.Register(ctx, in)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	n, err := f.users.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.svc.Register(ctx, registration())
	assert.NoError(t, err, "the code is still usable after a rejected password")
}

func TestResetPassword_RejectedPasswordKeepsCode(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	_, err := f.svc.SendOTP(ctx, testPhone, model.OtpRegistration)
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, registration())
	require.NoError(t, err)
	_, err = f.svc.SendOTP(ctx, testPhone, model.OtpResetPassword)
	require.NoError(t, err)

	_, err = f.svc.ResetPassword(ctx, testPhone, strings.Repeat("Aa1@", 20), "123456")
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	_, err = f.svc.ResetPassword(ctx, testPhone, "NewSecret@456", "123456")
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, testPhone, "NewSecret@456")
	assert.NoError(t, err)
}
