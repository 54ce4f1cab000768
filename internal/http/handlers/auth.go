package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/shipway/server/internal/account"
	"github.com/shipway/server/internal/auth"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *auth.AuthService
	otpLength   int
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.AuthService, otpLength int) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		otpLength:   otpLength,
	}
}

// sendOTPRequest is the request body for POST /auth/send-otp
type sendOTPRequest struct {
	Phone string `json:"phone"`
	Type  string `json:"type"`
}

// verifyOTPRequest is the request body for POST /auth/verify-otp
type verifyOTPRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
	Type  string `json:"type"`
}

// registerRequest is the request body for POST /auth/register
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
	OTP      string `json:"otp"`
}

// loginRequest is the request body for POST /auth/login
type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// resetPasswordRequest is the request body for POST /auth/reset-password
type resetPasswordRequest struct {
	Phone       string `json:"phone"`
	NewPassword string `json:"new_password"`
	OTP         string `json:"otp"`
}

// sessionResponse is the JSON response for register and login
type sessionResponse struct {
	User      userResponse `json:"user"`
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type messageResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func toSessionResponse(s auth.Session) sessionResponse {
	return sessionResponse{
		User:      toUserResponse(s.User),
		Token:     s.Token,
		TokenType: "bearer",
		ExpiresAt: s.ExpiresAt,
	}
}

// HandleSendOTP handles POST /auth/send-otp
func (h *AuthHandler) HandleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	phone, err := normalizePhone(req.Phone)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	otpType, err := parseOtpType(req.Type)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	handle, err := h.authService.SendOTP(r.Context(), phone, otpType)
	if err != nil {
		logMaskedPhone(phone, "send OTP failed: %v", err)
		respondWithAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: "otp_sent", Data: handle})
}

// HandleVerifyOTP handles POST /auth/verify-otp. The code stays usable for register or reset.
func (h *AuthHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	phone, err := normalizePhone(req.Phone)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	code := strings.TrimSpace(req.Code)
	if err := validateOTP(code, h.otpLength); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	otpType, err := parseOtpType(req.Type)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	if err := h.authService.VerifyOTP(r.Context(), phone, code, otpType); err != nil {
		logMaskedPhone(phone, "OTP check failed: %v", err)
		respondWithAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: "otp_valid", Data: map[string]bool{"verified": true}})
}

// HandleRegister handles POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	in, err := h.parseRegister(req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	session, err := h.authService.Register(r.Context(), in)
	if err != nil {
		logMaskedPhone(in.Phone, "registration failed: %v", err)
		respondWithAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (h *AuthHandler) parseRegister(req registerRequest) (auth.RegisterInput, error) {
	if err := validateName(req.Name); err != nil {
		return auth.RegisterInput{}, err
	}
	if err := validateEmail(req.Email); err != nil {
		return auth.RegisterInput{}, err
	}
	phone, err := normalizePhone(req.Phone)
	if err != nil {
		return auth.RegisterInput{}, err
	}
	if err := validatePassword(req.Password); err != nil {
		return auth.RegisterInput{}, err
	}
	role, err := parseRegisterRole(req.Role)
	if err != nil {
		return auth.RegisterInput{}, err
	}
	code := strings.TrimSpace(req.OTP)
	if err := validateOTP(code, h.otpLength); err != nil {
		return auth.RegisterInput{}, err
	}
	return auth.RegisterInput{
		NewUser: account.NewUser{
			Name:     strings.TrimSpace(req.Name),
			Email:    strings.TrimSpace(req.Email),
			Phone:    phone,
			Password: req.Password,
			Role:     role,
		},
		OTP: code,
	}, nil
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	phone, err := normalizePhone(req.Phone)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if req.Password == "" {
		respondWithAppError(w, r, validationRequired("password"))
		return
	}

	session, err := h.authService.Login(r.Context(), phone, req.Password)
	if err != nil {
		logMaskedPhone(phone, "login failed: %v", err)
		respondWithAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toSessionResponse(session))
}

// HandleResetPassword handles POST /auth/reset-password
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	phone, err := normalizePhone(req.Phone)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if err := validatePassword(req.NewPassword); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	code := strings.TrimSpace(req.OTP)
	if err := validateOTP(code, h.otpLength); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	user, err := h.authService.ResetPassword(r.Context(), phone, req.NewPassword, code)
	if err != nil {
		logMaskedPhone(phone, "password reset failed: %v", err)
		respondWithAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]userResponse{"user": toUserResponse(user)})
}
