// Package config builds and validates the application configuration from the environment using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

const minJWTSecretLen = 32

// Config holds the application configuration
type Config struct {
	Port        string `mapstructure:"PORT"`
	AppEnv      string `mapstructure:"APP_ENV"`
	StoreDriver string `mapstructure:"STORE_DRIVER"`

	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	MongoURI      string `mapstructure:"MONGODB_URI"`
	MongoDatabase string `mapstructure:"MONGODB_DATABASE"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	JWTTTL    time.Duration `mapstructure:"JWT_TTL"`

	OTPLength        int           `mapstructure:"OTP_LENGTH"`
	OTPTTL           time.Duration `mapstructure:"OTP_TTL"`
	OTPSalt          string        `mapstructure:"OTP_SALT"`
	OTPSweepInterval time.Duration `mapstructure:"OTP_SWEEP_INTERVAL"`
	// OTPDevMode issues the fixed code 123456 (padded to OTP_LENGTH) and logs SMS instead of sending.
	OTPDevMode bool `mapstructure:"OTP_DEV_MODE"`

	BcryptCost int `mapstructure:"BCRYPT_COST"`

	TwilioAccountSID string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioFrom       string `mapstructure:"TWILIO_FROM"`
	SMSBrand         string `mapstructure:"SMS_BRAND"`

	AdminPhone    string `mapstructure:"ADMIN_PHONE"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`
	AdminName     string `mapstructure:"ADMIN_NAME"`
	AdminEmail    string `mapstructure:"ADMIN_EMAIL"`
}

// Load reads configuration from environment variables. The caller loads .env beforehand.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("STORE_DRIVER", StorePostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MONGODB_URI", "")
	v.SetDefault("MONGODB_DATABASE", "shipway")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TTL", "168h")
	v.SetDefault("OTP_LENGTH", 6)
	v.SetDefault("OTP_TTL", "5m")
	v.SetDefault("OTP_SALT", "")
	v.SetDefault("OTP_SWEEP_INTERVAL", "1m")
	v.SetDefault("OTP_DEV_MODE", false)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("TWILIO_ACCOUNT_SID", "")
	v.SetDefault("TWILIO_AUTH_TOKEN", "")
	v.SetDefault("TWILIO_FROM", "")
	v.SetDefault("SMS_BRAND", "Shipway")
	v.SetDefault("ADMIN_PHONE", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("ADMIN_NAME", "Shipway Administrator")
	v.SetDefault("ADMIN_EMAIL", "admin@shipway.vn")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL environment variable is required")
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("config: MONGODB_URI environment variable is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("config: STORE_DRIVER must be one of postgres, mongo, memory (got %q)", c.StoreDriver)
	}

	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET environment variable is required")
	}
	if len(c.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("config: JWT_SECRET must be at least %d bytes", minJWTSecretLen)
	}
	if c.JWTTTL <= 0 {
		return errors.New("config: JWT_TTL must be positive")
	}

	if c.OTPSalt == "" {
		return errors.New("config: OTP_SALT environment variable is required")
	}
	if c.OTPLength < 4 || c.OTPLength > 10 {
		return errors.New("config: OTP_LENGTH must be between 4 and 10")
	}
	if c.OTPTTL <= 0 {
		return errors.New("config: OTP_TTL must be positive")
	}
	if c.OTPDevMode && c.AppEnv == "production" {
		return errors.New("config: OTP_DEV_MODE must not be true when APP_ENV=production")
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	return nil
}

// TwilioEnabled reports whether all Twilio credentials are present.
func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFrom != ""
}

// DevOTPCode is the fixed code used when OTPDevMode is on.
func (c *Config) DevOTPCode() string {
	code := "123456"
	for len(code) < c.OTPLength {
		code += "0"
	}
	return code[:c.OTPLength]
}
