package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	// PlatformDomain is the registrable parent domain every tenant portal
	// lives under, e.g. "stackdesk.io" for acme-itsm.stackdesk.io.
	PlatformDomain string
	// DevTenantSlug is the tenant used when the request host is localhost.
	DevTenantSlug string

	AuthCookieSecure  bool
	SessionCookieName string

	// SeedAdminPassword overrides the default admin password created on
	// a fresh install. Must meet the auth password policy.
	SeedAdminPassword string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RateLimit RateLimitConfig

	OTLPEndpoint string
}

// RateLimitConfig configures the redis-backed login limiter.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LoginEmailRate  float64
	LoginEmailBurst int
	LoginIPRate     float64
	LoginIPBurst    int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	return Config{
		AppName:     getenv("APP_SERVICE", "stackdesk"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: environment,
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		NodeID:      int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),

		PlatformDomain: strings.TrimSpace(getenv("PLATFORM_DOMAIN", "stackdesk.io")),
		DevTenantSlug:  strings.TrimSpace(getenv("DEV_TENANT_SLUG", "demo")),

		AuthCookieSecure:  authCookieSecure,
		SessionCookieName: getenv("SESSION_COOKIE_NAME", "sd_session"),

		SeedAdminPassword: getenv("SEED_ADMIN_PASSWORD", ""),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "stackdesk"),
		DBUser:            getenv("DATABASE_USER", "stackdesk"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		RateLimit: RateLimitConfig{
			Enabled:         getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:       strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword:   getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:         getenvInt("RATE_LIMIT_REDIS_DB", 0),
			LoginEmailRate:  getenvFloat("RATE_LIMIT_LOGIN_EMAIL_RATE", 0.2),
			LoginEmailBurst: getenvInt("RATE_LIMIT_LOGIN_EMAIL_BURST", 5),
			LoginIPRate:     getenvFloat("RATE_LIMIT_LOGIN_IP_RATE", 1),
			LoginIPBurst:    getenvInt("RATE_LIMIT_LOGIN_IP_BURST", 20),
		},

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
