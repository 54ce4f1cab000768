package sms

import (
	"context"
	"log"
)

// LogGateway writes messages to the process log instead of sending them.
// Used in development and as the fallback when the real gateway fails.
type LogGateway struct{}

func (LogGateway) Send(_ context.Context, phone, message string) error {
	log.Printf("[SMS] to=%s body=%q", phone, message)
	return nil
}
