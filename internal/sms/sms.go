// Package sms delivers one-time passcodes to phone numbers.
package sms

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shipway/server/internal/model"
)

// Gateway sends a text message to an E.164 phone number.
type Gateway interface {
	Send(ctx context.Context, phone, message string) error
}

// OtpMessage renders the SMS body for a passcode of the given type.
func OtpMessage(brand string, otpType model.OtpType, code string, ttl time.Duration) string {
	minutes := int(math.Ceil(ttl.Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	switch otpType {
	case model.OtpResetPassword:
		return fmt.Sprintf("Your %s password reset code is: %s. It is valid for %d minutes. Ignore this message if you did not request a reset.", brand, code, minutes)
	default:
		return fmt.Sprintf("Your %s verification code is: %s. It is valid for %d minutes.", brand, code, minutes)
	}
}
