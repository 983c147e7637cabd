package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	// ClientBaseURL is where the browser is sent after a provider callback,
	// carrying only the one-time delivery token.
	ClientBaseURL string

	// Correlation store lifetimes. OAuth state is bounded by realistic
	// redirect latency; the result relay is shorter still; signup
	// verification links live for half an hour.
	OAuthStateTTL   time.Duration
	OAuthResultTTL  time.Duration
	SignupTokenTTL  time.Duration
	StoreSweepEvery time.Duration

	// SignupDistinguishTokenState controls whether signup verification
	// reports "already used" distinctly from "invalid or expired". OAuth
	// correlation always collapses the distinction.
	SignupDistinguishTokenState bool

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	AppleClientID      string
	AppleRedirectURL   string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	AccountsTable  string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	VerificationBaseURL string // prefix of the emailed verification link

	AllowedOrigins []string // CORS allowed origins
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		ClientBaseURL: getEnv("CLIENT_BASE_URL", "http://localhost:5173"),

		OAuthStateTTL:   time.Duration(getEnvInt("OAUTH_STATE_TTL_MIN", 10)) * time.Minute,
		OAuthResultTTL:  time.Duration(getEnvInt("OAUTH_RESULT_TTL_MIN", 2)) * time.Minute,
		SignupTokenTTL:  time.Duration(getEnvInt("SIGNUP_TOKEN_TTL_MIN", 30)) * time.Minute,
		StoreSweepEvery: time.Duration(getEnvInt("STORE_SWEEP_INTERVAL_MIN", 5)) * time.Minute,

		SignupDistinguishTokenState: getEnvBool("SIGNUP_DISTINGUISH_TOKEN_STATE", true),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:3000/v1/oauth/google/callback"),
		AppleClientID:      getEnv("APPLE_CLIENT_ID", ""),
		AppleRedirectURL:   getEnv("APPLE_REDIRECT_URL", "http://localhost:3000/v1/oauth/apple/callback"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AccountsTable:  getEnv("DYNAMO_TABLE_ACCOUNTS", "accounts"),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		VerificationBaseURL: getEnv("VERIFICATION_BASE_URL", "http://localhost:5173/verify-email"),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
