package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultGoogleTokenURL = "https://oauth2.googleapis.com/token"
)

type Config struct {
	DBDriver   string
	DBPath     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	ServerPort      string
	ShutdownTimeout time.Duration

	JWTSecret string
	JWTTTL    time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleTokenURL     string
	GoogleTimeout      time.Duration

	RabbitURL      string
	RabbitExchange string

	CORSAllowedOrigins []string

	LogLevel  zerolog.Level
	LogFormat string
}

// NewConfig reads the process environment, after merging a .env file
// from the working directory if one exists.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using process environment")
	}

	cfg := &Config{
		DBDriver:   getEnvOrDefault("DATABASE_DRIVER", DriverSQLite),
		DBPath:     getEnvOrDefault("DATABASE_PATH", "bookstore.db"),
		DBHost:     getEnvOrDefault("DATABASE_HOST", "localhost"),
		DBPort:     getEnvOrDefault("DATABASE_PORT", "5432"),
		DBUser:     getEnvOrDefault("DATABASE_USER", "postgres"),
		DBPassword: getEnvOrDefault("DATABASE_PASSWORD", "password"),
		DBName:     getEnvOrDefault("DATABASE_NAME", "bookstore"),

		ServerPort: getEnvOrDefault("SERVER_PORT", "8080"),
		JWTSecret:  getEnvOrDefault("JWT_SECRET", "books-store-secret-key"),

		GoogleClientID:     getEnvOrDefault("GOOGLE_CLIENT_ID", os.Getenv("client_id")),
		GoogleClientSecret: getEnvOrDefault("GOOGLE_CLIENT_SECRET", os.Getenv("client_secret")),
		GoogleTokenURL:     getEnvOrDefault("GOOGLE_TOKEN_URL", defaultGoogleTokenURL),

		RabbitURL:      os.Getenv("RABBITMQ_URL"),
		RabbitExchange: getEnvOrDefault("RABBITMQ_EXCHANGE", "bookstore.events"),

		CORSAllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		LogFormat:          getEnvOrDefault("LOG_FORMAT", "console"),
	}

	if cfg.DBDriver != DriverSQLite && cfg.DBDriver != DriverPostgres {
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DBDriver)
	}

	var err error
	if cfg.JWTTTL, err = getDuration("JWT_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.GoogleTimeout, err = getDuration("GOOGLE_HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = zerolog.ParseLevel(getEnvOrDefault("LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

func getEnvOrDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return def, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) DSN() string {
	if c.DBDriver == DriverSQLite {
		return "file:" + c.DBPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}
