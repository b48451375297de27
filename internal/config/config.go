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

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTPrivateKeyPath   string
	JWTPublicKeyPath    string
	JWTExpiry           time.Duration
	SessionCookieName   string
	SessionCookieSecure bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SNSRegion    string
	SNSTopicARN  string // optional fan-out topic for outbound notifications

	AllowedOrigins []string // CORS allowed origins

	AuthIPLimit             int
	AuthIPWindow            time.Duration
	RevocationSweepInterval time.Duration
	// TrustProxyHeaders makes the per-IP limiters key on X-Forwarded-For /
	// X-Real-Ip. Enable only behind a proxy that overwrites those headers;
	// otherwise clients can rotate them to dodge the limits.
	TrustProxyHeaders bool
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Members              string
	PendingVerifications string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Members:              getEnv("DYNAMO_TABLE_MEMBERS", "members"),
			PendingVerifications: getEnv("DYNAMO_TABLE_PENDING_VERIFICATIONS", "pending_verifications"),
		},
		JWTPrivateKeyPath:       getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:        getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:               getEnvDuration("JWT_EXPIRY", 24*time.Hour),
		SessionCookieName:       getEnv("SESSION_COOKIE_NAME", "jwt_token"),
		SessionCookieSecure:     getEnvBool("SESSION_COOKIE_SECURE", true),
		RedisAddr:               getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:           getEnv("REDIS_PASSWORD", ""),
		RedisDB:                 getEnvInt("REDIS_DB", 0),
		SMTPHost:                getEnv("SMTP_HOST", "localhost"),
		SMTPPort:                getEnv("SMTP_PORT", "1025"),
		SMTPFrom:                getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:            getEnv("SMTP_USERNAME", ""),
		SMTPPassword:            getEnv("SMTP_PASSWORD", ""),
		SNSRegion:               getEnv("SNS_REGION", "us-east-1"),
		SNSTopicARN:             getEnv("SNS_TOPIC_ARN", ""),
		AllowedOrigins:          strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		AuthIPLimit:             getEnvInt("AUTH_IP_LIMIT", 100),
		AuthIPWindow:            getEnvDuration("AUTH_IP_WINDOW", 15*time.Minute),
		RevocationSweepInterval: getEnvDuration("REVOCATION_SWEEP_INTERVAL", time.Hour),
		TrustProxyHeaders:       getEnvBool("TRUST_PROXY_HEADERS", false),
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

// getEnvDuration accepts Go duration strings ("15m", "24h").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
