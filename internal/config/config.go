package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

const defaultAllowedGuildID = "1119640635817853028"

type Config struct {
	Environment             string
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	DatabaseURL             string
	DBMaxConns              int32
	DBMinConns              int32
	MigrateOnStart          bool
	DiscordClientID         string
	DiscordClientSecret     string
	DiscordRedirectURI      string
	DiscordAllowedGuildIDs  []string
	DiscordEventRoleIDs     []string
	DiscordAPIBase          string
	DiscordTimeout          time.Duration
	JWTSecret               string
	JWTAlgorithm            string
	JWTExpire               time.Duration
	JWTIssuer               string
	AlertLead               time.Duration
	APIBasePath             string
	CORSOrigins             []string
	RateLimitRPM            int
	AuthRateLimitRPM        int
	RedisURL                string
	LogLevel                string
	LogFormat               string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment:             getEnv("ENVIRONMENT", "development"),
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:              int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:              int32(getInt("DB_MIN_CONNS", 2)),
		MigrateOnStart:          getBool("MIGRATE_ON_START", true),
		DiscordClientID:         strings.TrimSpace(os.Getenv("DISCORD_CLIENT_ID")),
		DiscordClientSecret:     strings.TrimSpace(os.Getenv("DISCORD_CLIENT_SECRET")),
		DiscordRedirectURI:      strings.TrimSpace(os.Getenv("DISCORD_REDIRECT_URI")),
		DiscordAllowedGuildIDs:  splitCSV(getEnv("DISCORD_ALLOWED_GUILD_IDS", defaultAllowedGuildID)),
		DiscordEventRoleIDs:     splitCSV(os.Getenv("DISCORD_EVENT_ROLE_IDS")),
		DiscordAPIBase:          strings.TrimRight(getEnv("DISCORD_API_BASE", "https://discord.com/api"), "/"),
		DiscordTimeout:          getDuration("DISCORD_TIMEOUT", 10*time.Second),
		JWTSecret:               strings.TrimSpace(os.Getenv("JWT_SECRET_KEY")),
		JWTAlgorithm:            strings.ToUpper(getEnv("JWT_ALGORITHM", "HS256")),
		JWTExpire:               time.Duration(getInt("JWT_EXPIRE_MINUTES", 60)) * time.Minute,
		JWTIssuer:               getEnv("JWT_ISSUER", "oe-overlay-service"),
		AlertLead:               time.Duration(getInt("ALERT_LEAD_MINUTES", 15)) * time.Minute,
		APIBasePath:             normalizeBasePath(getEnv("API_BASE_PATH", "/api")),
		CORSOrigins:             splitCSV(os.Getenv("CORS_ALLOW_ORIGINS")),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM:        getInt("AUTH_RATE_LIMIT_RPM", 10),
		RedisURL:                strings.TrimSpace(os.Getenv("REDIS_URL")),
		LogLevel:                strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:               strings.ToLower(getEnv("LOG_FORMAT", "pretty")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}

	if _, ok := jwt.GetSigningMethod(c.JWTAlgorithm).(*jwt.SigningMethodHMAC); !ok {
		return fmt.Errorf("JWT_ALGORITHM must be one of HS256, HS384, HS512")
	}

	if c.JWTExpire <= 0 {
		return fmt.Errorf("JWT_EXPIRE_MINUTES must be positive")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.DiscordClientID == "" || c.DiscordClientSecret == "" {
		return fmt.Errorf("DISCORD_CLIENT_ID and DISCORD_CLIENT_SECRET are required")
	}

	if _, err := url.ParseRequestURI(c.DiscordRedirectURI); err != nil {
		return fmt.Errorf("DISCORD_REDIRECT_URI must be an absolute URL")
	}

	if len(c.DiscordAllowedGuildIDs) == 0 {
		return fmt.Errorf("DISCORD_ALLOWED_GUILD_IDS cannot be empty")
	}

	if c.DiscordTimeout <= 0 {
		return fmt.Errorf("DISCORD_TIMEOUT must be positive")
	}

	if c.AlertLead < 0 {
		return fmt.Errorf("ALERT_LEAD_MINUTES cannot be negative")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MAX_CONNS must be positive and not below DB_MIN_CONNS")
	}

	return nil
}

// AlertLeadMinutes is the lead window as whole minutes, as reported to clients.
func (c *Config) AlertLeadMinutes() int {
	return int(c.AlertLead / time.Minute)
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}

func normalizeBasePath(raw string) string {
	trimmed := strings.Trim(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return ""
	}
	return "/" + trimmed
}
