package config

import (
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// Session backends selectable through SESSION_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

const defaultSigningKey = "dev-secret-key-change-in-production"

// Server captures process level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string

	Auth      Auth
	Database  Database
	Redis     Redis
	RateLimit RateLimit

	SessionBackend         string
	SessionCleanupInterval time.Duration
	ShutdownTimeout        time.Duration
	RequestTimeout         time.Duration
	// TrustedProxies may set X-Forwarded-For. Empty means the header is ignored.
	TrustedProxies []netip.Prefix
}

// Auth holds the token and session policy. The signing algorithm is fixed to
// HS256 and deliberately has no knob here.
type Auth struct {
	JWTSigningKey          string
	AccessTokenTTL         time.Duration
	RefreshTokenTTL        time.Duration
	RememberMeRefreshTTL   time.Duration
	RefreshThreshold       time.Duration
	RequireVerifiedEmail   bool
	AllowSessionlessTokens bool
	BcryptCost             int
}

// Database configures the PostgreSQL pool.
type Database struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Redis configures the redis client used by the session store.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RateLimit sets the sliding window limits. Redis backs the counters when
// configured so instances share them.
type RateLimit struct {
	Enabled       bool
	AuthPerMinute int
	IPPerMinute   int
	UserPerMinute int
	UserPerHour   int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:        envString("TALENTGATE_ADDR", ":8080"),
		Environment: envString("ENVIRONMENT", "development"),
		LogLevel:    envString("LOG_LEVEL", "info"),
		Auth: Auth{
			JWTSigningKey:          envString("JWT_SIGNING_KEY", defaultSigningKey),
			AccessTokenTTL:         envDuration("ACCESS_TOKEN_TTL", time.Hour),
			RefreshTokenTTL:        envDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
			RememberMeRefreshTTL:   envDuration("REMEMBER_ME_REFRESH_TTL", 30*24*time.Hour),
			RefreshThreshold:       envDuration("TOKEN_REFRESH_THRESHOLD", 15*time.Minute),
			RequireVerifiedEmail:   envBool("REQUIRE_VERIFIED_EMAIL", true),
			AllowSessionlessTokens: envBool("ALLOW_SESSIONLESS_TOKENS", false),
			BcryptCost:             envInt("BCRYPT_COST", 12),
		},
		Database: Database{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		RateLimit: RateLimit{
			Enabled:       envBool("RATE_LIMIT_ENABLED", true),
			AuthPerMinute: envInt("RATE_LIMIT_AUTH_PER_MINUTE", 5),
			IPPerMinute:   envInt("RATE_LIMIT_IP_PER_MINUTE", 100),
			UserPerMinute: envInt("RATE_LIMIT_USER_PER_MINUTE", 60),
			UserPerHour:   envInt("RATE_LIMIT_USER_PER_HOUR", 1000),
		},
		SessionBackend:         strings.ToLower(envString("SESSION_BACKEND", BackendMemory)),
		SessionCleanupInterval: envDuration("SESSION_CLEANUP_INTERVAL", 5*time.Minute),
		ShutdownTimeout:        envDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		RequestTimeout:         envDuration("REQUEST_TIMEOUT", 30*time.Second),
		TrustedProxies:         envPrefixes("TRUSTED_PROXIES"),
	}
}

// IsProduction reports whether dev defaults must be refused.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// UsesDefaultSigningKey reports whether JWT_SIGNING_KEY was left unset.
func (s Server) UsesDefaultSigningKey() bool {
	return s.Auth.JWTSigningKey == defaultSigningKey
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envPrefixes parses a comma separated CIDR list. Entries that fail to parse
// are skipped; a bare address is treated as a single-host prefix.
func envPrefixes(key string) []netip.Prefix {
	var out []netip.Prefix
	for _, raw := range strings.Split(os.Getenv(key), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(raw); err == nil {
			out = append(out, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(raw); err == nil {
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return out
}
