package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type DatabaseConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type Config struct {
	Env  string
	Port string

	ClientDB    DatabaseConfig
	WordPressDB DatabaseConfig
	// WordPress table prefix, "wp_" on a default install.
	WpTablePrefix string

	RedisAddress string

	EncryptionKey string
	QueryTimeout  time.Duration

	CorsAllowedOrigins []string
	SkipMigrations     bool

	RateLimitEnabled     bool
	RateLimitMaxRequests int64
	RateLimitWindow      time.Duration

	LogLevel string
	LogFile  string
	GormLog  string
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads the environment (and .env when present).
func Load() Config {
	// Load env from .env
	_ = godotenv.Load()

	clientDB := DatabaseConfig{
		User:            os.Getenv("DB_USER"),
		Password:        os.Getenv("DB_PASSWORD"),
		Host:            os.Getenv("DB_HOST"),
		Port:            stringFromEnv("DB_PORT", "3306"),
		Name:            os.Getenv("DB_NAME"),
		MaxOpenConns:    intFromEnv("DB_MAX_OPEN_CONNS", 20),
		MaxIdleConns:    intFromEnv("DB_MAX_IDLE_CONNS", 10),
		ConnMaxLifetime: time.Duration(intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
		ConnMaxIdleTime: time.Duration(intFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)) * time.Second,
	}

	// the WordPress database defaults to the client database server
	wpDB := clientDB
	wpDB.User = stringFromEnv("WP_DB_USER", clientDB.User)
	wpDB.Password = stringFromEnv("WP_DB_PASSWORD", clientDB.Password)
	wpDB.Host = stringFromEnv("WP_DB_HOST", clientDB.Host)
	wpDB.Port = stringFromEnv("WP_DB_PORT", clientDB.Port)
	wpDB.Name = stringFromEnv("WP_DB_NAME", clientDB.Name)

	port := os.Getenv("API_PORT")
	if port == "" {
		port = stringFromEnv("PORT", "8080")
	}

	return Config{
		Env:                strings.TrimSpace(os.Getenv("GO_ENV")),
		Port:               port,
		ClientDB:           clientDB,
		WordPressDB:        wpDB,
		WpTablePrefix:      stringFromEnv("WP_TABLE_PREFIX", "wp_"),
		RedisAddress:       os.Getenv("REDIS_ADDRESS"),
		EncryptionKey:      os.Getenv("CLIENT_ENCRYPTION_KEY"),
		QueryTimeout:       time.Duration(intFromEnv("SYNC_QUERY_TIMEOUT_SECONDS", 10)) * time.Second,
		CorsAllowedOrigins: splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS")),
		SkipMigrations:     strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true"),
		LogLevel:           stringFromEnv("LOG_LEVEL", "info"),
		LogFile:            strings.TrimSpace(os.Getenv("LOG_FILE")),
		GormLog:            strings.TrimSpace(os.Getenv("GORM_LOG")),

		RateLimitEnabled:     strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true"),
		RateLimitMaxRequests: int64(intFromEnv("RATE_LIMIT_MAX_REQUESTS", 600)),
		RateLimitWindow:      time.Duration(intFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
	}
}

func stringFromEnv(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
