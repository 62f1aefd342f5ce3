package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	SigningSecret string // Required: HMAC signing secret for session tokens (min 32 bytes)
	Issuer        string // Optional: issuer claim for tokens and TOTP label (default: till-auth)

	AccessTokenTTL   time.Duration // Optional: access token lifetime (default: 15m)
	RefreshTokenTTL  time.Duration // Optional: refresh token lifetime (default: 720h)
	ChallengeTTL     time.Duration // Optional: 2FA challenge token lifetime (default: 5m)
	VerificationTTL  time.Duration // Optional: email verification code lifetime (default: 15m)
	ResendInterval   time.Duration // Optional: minimum gap between verification resends (default: 1m)
	ResetTTL         time.Duration // Optional: password reset token lifetime (default: 1h)
	VerifyAttempts   int           // Optional: guesses per verification code (default: 3)
	ResetURL         string        // Optional: base URL for emailed reset links
	DatabaseFile     string        // Optional: path to SQLite database file (default: ./auth.db)
	PepperFile       string        // Optional: path to file containing pepper for password hashing (default: ./pepper)
	RedisAddr        string        // Optional: Redis address; empty falls back to in-memory revocation
	RedisPassword    string        // Optional: Redis password
	SMTPHost         string        // Optional: SMTP host; empty logs dispatches instead of sending
	SMTPPort         int           // Optional: SMTP port (default: 587)
	SMTPUser         string        // Optional: SMTP username
	SMTPPass         string        // Optional: SMTP password
	SMTPFrom         string        // Optional: From address for outbound mail
	Env              string        // Environment (dev, staging, prod) (default: dev)
	LogLevel         string        // Log level (debug, info, warn, error) (default: info)
	LogFormat        string        // Log format (json, text) (default: json)
	Port             int           // HTTP server port (default: 8080)
	ShutdownGrace    time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingRate time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		SigningSecret:    os.Getenv("AUTH_SIGNING_SECRET"),
		Issuer:           getEnvOrDefault("AUTH_ISSUER", "till-auth"),
		AccessTokenTTL:   getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:  getEnvDurationOrDefault("AUTH_REFRESH_TOKEN_TTL", 30*24*time.Hour),
		ChallengeTTL:     getEnvDurationOrDefault("AUTH_CHALLENGE_TTL", 5*time.Minute),
		VerificationTTL:  getEnvDurationOrDefault("AUTH_VERIFICATION_TTL", 15*time.Minute),
		ResendInterval:   getEnvDurationOrDefault("AUTH_RESEND_INTERVAL", 1*time.Minute),
		ResetTTL:         getEnvDurationOrDefault("AUTH_RESET_TTL", 1*time.Hour),
		VerifyAttempts:   getEnvIntOrDefault("AUTH_VERIFY_ATTEMPTS", 3),
		ResetURL:         getEnvOrDefault("AUTH_RESET_URL", "http://localhost:3000/reset-password"),
		DatabaseFile:     getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:       getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPPort:         getEnvIntOrDefault("SMTP_PORT", 587),
		SMTPUser:         os.Getenv("SMTP_USER"),
		SMTPPass:         os.Getenv("SMTP_PASS"),
		SMTPFrom:         getEnvOrDefault("SMTP_FROM", "no-reply@till.local"),
		Env:              getEnvOrDefault("ENV", "dev"),
		LogLevel:         getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        getEnvOrDefault("LOG_FORMAT", "json"),
		Port:             getEnvIntOrDefault("PORT", 8080),
		ShutdownGrace:    getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingRate: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
