package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shipway/server/internal/account"
	"github.com/shipway/server/internal/auth"
	"github.com/shipway/server/internal/config"
	httphandler "github.com/shipway/server/internal/http"
	"github.com/shipway/server/internal/http/handlers"
	"github.com/shipway/server/internal/security"
	"github.com/shipway/server/internal/sms"
)

func main() {
	// Load .env from CWD or server/ so it works from repo root or server/ (env vars override)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("server/.env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer st.close()

	accounts := account.NewManager(st.users, security.NewHasher(cfg.BcryptCost))

	var gen auth.CodeGenerator = auth.DigitGenerator{Length: cfg.OTPLength}
	if cfg.OTPDevMode {
		log.Printf("OTP dev mode enabled: every code is %s and SMS is logged only", cfg.DevOTPCode())
		gen = auth.FixedGenerator{Code: cfg.DevOTPCode()}
	}
	otps := auth.NewOtpManager(st.otps, gen, cfg.OTPSalt, cfg.OTPTTL)
	tokens := auth.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)
	authService := auth.NewAuthService(otps, accounts, tokens, newGateway(cfg), cfg.SMSBrand)

	if _, err := accounts.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPhone, cfg.AdminPassword); err != nil {
		log.Fatalf("Failed to seed admin account: %v", err)
	}

	go auth.RunSweeper(ctx, otps, cfg.OTPSweepInterval)

	router := httphandler.NewRouter(httphandler.Deps{
		AuthService: authService,
		Accounts:    accounts,
		Tokens:      tokens,
		Health:      handlers.NewHealthHandler(st.ping),
		OTPLength:   cfg.OTPLength,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s (env=%s, store=%s)", cfg.Port, cfg.AppEnv, cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited")
}

// newGateway picks Twilio when credentials are configured, otherwise log delivery.
func newGateway(cfg *config.Config) sms.Gateway {
	if cfg.OTPDevMode || !cfg.TwilioEnabled() {
		return sms.LogGateway{}
	}
	gw, err := sms.NewTwilioGateway(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
	if err != nil {
		log.Printf("Twilio gateway unavailable, falling back to log delivery: %v", err)
		return sms.LogGateway{}
	}
	return gw
}
