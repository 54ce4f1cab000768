package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/shipway/server/internal/apperr"
	"github.com/shipway/server/internal/model"
	"github.com/shipway/server/internal/security"
)

// statusFor maps an application error code to an HTTP status.
func statusFor(code apperr.Code) int {
	switch code.Category() {
	case apperr.CodeConflict:
		return http.StatusConflict
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeUnauthorized, apperr.CodeInvalidToken:
		return http.StatusUnauthorized
	case apperr.CodeForbidden:
		return http.StatusForbidden
	case apperr.CodeValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondWithAppError writes err as {"error", "code"}. Internal causes are logged, never returned.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	if code == apperr.CodeInternal {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	respondWithError(w, statusFor(code), apperr.MessageOf(err), code)
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string, code apperr.Code) {
	respondJSON(w, statusCode, map[string]string{"error": message, "code": string(code)})
}

func respondJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// decodeJSON reads the request body into dst. Malformed JSON is a validation error.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}

// userResponse is the user object in API responses. The password hash never leaves the server.
type userResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Role      model.Role `json:"role"`
	Verified  bool       `json:"verified"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func toUserResponse(u model.User) userResponse {
	return userResponse{
		ID:        u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// logMaskedPhone logs a message with masked phone number
func logMaskedPhone(phone, format string, args ...any) {
	log.Printf("Phone "+security.MaskPhone(phone)+": "+format, args...)
}
