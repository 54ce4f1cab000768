package handlers

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"

	"github.com/shipway/server/internal/apperr"
	"github.com/shipway/server/internal/model"
	"github.com/shipway/server/internal/security"
)

var (
	e164Pattern   = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)
	phoneStripper = regexp.MustCompile(`[^\d+]`)
)

const (
	minNameLen     = 2
	maxNameLen     = 100
	minPasswordLen = 8
)

// normalizePhone strips separators and rewrites Vietnamese national formats to E.164:
// 0397912441 and 84397912441 both become +84397912441.
func normalizePhone(raw string) (string, error) {
	cleaned := phoneStripper.ReplaceAllString(strings.TrimSpace(raw), "")
	switch {
	case cleaned == "":
		return "", apperr.Validation("phone is required")
	case strings.HasPrefix(cleaned, "+"):
	case strings.HasPrefix(cleaned, "0"):
		cleaned = "+84" + cleaned[1:]
	case strings.HasPrefix(cleaned, "84"):
		cleaned = "+" + cleaned
	default:
		cleaned = "+84" + cleaned
	}
	if !e164Pattern.MatchString(cleaned) {
		return "", apperr.Validation("phone must be a valid phone number in E.164 format")
	}
	return cleaned, nil
}

func validationRequired(field string) error {
	return apperr.Validation(field + " is required")
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperr.Validation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.Validation("email is invalid")
	}
	return nil
}

func validateName(name string) error {
	n := len([]rune(strings.TrimSpace(name)))
	if n < minNameLen || n > maxNameLen {
		return apperr.Validation(fmt.Sprintf("name must be between %d and %d characters", minNameLen, maxNameLen))
	}
	return nil
}

// validatePassword requires upper, lower, digit and special characters. The upper bound is bcrypt's
// byte limit, not a character count.
func validatePassword(password string) error {
	if len([]rune(password)) < minPasswordLen {
		return apperr.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	if len(password) > security.MaxPasswordBytes {
		return apperr.Validation(fmt.Sprintf("password must be at most %d bytes", security.MaxPasswordBytes))
	}
	var upper, lower, digit, special bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			upper = true
		case unicode.IsLower(c):
			lower = true
		case unicode.IsDigit(c):
			digit = true
		case unicode.IsPunct(c) || unicode.IsSymbol(c):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return apperr.Validation("password must contain an uppercase letter, a lowercase letter, a digit and a special character")
	}
	return nil
}

func validateOTP(code string, length int) error {
	if len(code) != length || strings.Trim(code, "0123456789") != "" {
		return apperr.Validation(fmt.Sprintf("otp must be exactly %d digits", length))
	}
	return nil
}

func parseOtpType(raw string) (model.OtpType, error) {
	t := model.OtpType(strings.TrimSpace(raw))
	if !t.Valid() {
		return "", apperr.Validation("type must be registration or reset-password")
	}
	return t, nil
}

// parseRegisterRole accepts the self-service roles; an empty role means user.
func parseRegisterRole(raw string) (model.Role, error) {
	r := model.Role(strings.TrimSpace(raw))
	switch r {
	case "":
		return model.RoleUser, nil
	case model.RoleUser, model.RoleDriver:
		return r, nil
	}
	return "", apperr.Validation("role must be user or driver")
}
