package auth

import (
	"context"
	"log"
	"time"
)

// RunSweeper removes expired OTP records every interval until ctx is cancelled.
func RunSweeper(ctx context.Context, m *OtpManager, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.Sweep(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("OTP sweep failed: %v", err)
				}
				continue
			}
			if n > 0 {
				log.Printf("OTP sweep removed %d expired record(s)", n)
			}
		}
	}
}
