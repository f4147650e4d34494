package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnv loads the first .env file found in the current or parent directories.
// Variables already set in the process environment are left untouched.
func LoadEnv() error {
	for _, path := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		return nil
	}
	return nil
}

// GetEnv gets environment variable with default
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets integer environment variable with default
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvBool gets boolean environment variable with default
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}

// Env is the process-level configuration read from the environment.
type Env struct {
	ConfigPath string
	LogLevel   string
	PrettyLogs bool
	Debug      bool

	WebHost string
	WebPort int
	APIKey  string

	DBDriver    string
	DatabaseURL string

	SFTP SFTP
}

// SFTP holds the CRM drop server settings.
type SFTP struct {
	Host       string
	Port       int
	User       string
	Password   string
	RemoteDir  string
	KnownHosts string
}

// Enabled reports whether delivery is configured.
func (s SFTP) Enabled() bool {
	return s.Host != "" && s.User != ""
}

// FromEnv reads Env, falling back to defaults for anything unset.
func FromEnv() Env {
	return Env{
		ConfigPath: GetEnv("SCRUB_CONFIG", ""),
		LogLevel:   GetEnv("LOG_LEVEL", "info"),
		PrettyLogs: GetEnvBool("PRETTY_LOGS", false),
		Debug:      GetEnvBool("SCRUB_DEBUG", false),

		WebHost: GetEnv("WEB_HOST", "0.0.0.0"),
		WebPort: GetEnvInt("WEB_PORT", 8080),
		APIKey:  GetEnv("API_KEY", ""),

		DBDriver:    GetEnv("DB_DRIVER", "postgres"),
		DatabaseURL: GetEnv("DATABASE_URL", postgresDSN()),

		SFTP: SFTP{
			Host:       GetEnv("SFTP_HOST", ""),
			Port:       GetEnvInt("SFTP_PORT", 22),
			User:       GetEnv("SFTP_USER", ""),
			Password:   GetEnv("SFTP_PASS", ""),
			RemoteDir:  GetEnv("SFTP_REMOTE_DIR", "/"),
			KnownHosts: GetEnv("SFTP_KNOWN_HOSTS", ""),
		},
	}
}

// postgresDSN assembles a DSN from the libpq PG* variables.
func postgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		GetEnv("PGHOST", "localhost"),
		GetEnv("PGPORT", "5432"),
		GetEnv("PGUSER", "postgres"),
		GetEnv("PGPASSWORD", ""),
		GetEnv("PGDATABASE", "contacts"),
		GetEnv("PGSSLMODE", "disable"),
	)
}
