// env.go - Environment variable configuration and validation for KrishiSahay
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "KRISHI_DEBUG", validateEnvBool},

		// Server
		{"server.listen", "KRISHI_LISTEN", nil},
		{"server.ratelimit", "KRISHI_RATELIMIT", validateEnvNonNegativeFloat},

		// Model
		{"model.path", "KRISHI_MODEL_PATH", nil},
		{"model.labelspath", "KRISHI_LABELS_PATH", nil},
		{"model.threads", "KRISHI_MODEL_THREADS", validateEnvThreads},

		// Vendor keys
		{"gemini.apikey", "KRISHI_GEMINI_APIKEY", nil},
		{"gemini.apikeyfile", "KRISHI_GEMINI_APIKEY_FILE", nil},
		{"gemini.model", "KRISHI_GEMINI_MODEL", nil},
		{"google.apikey", "KRISHI_GOOGLE_APIKEY", nil},
		{"google.apikeyfile", "KRISHI_GOOGLE_APIKEY_FILE", nil},
		{"places.apikey", "KRISHI_PLACES_APIKEY", nil},
		{"places.apikeyfile", "KRISHI_PLACES_APIKEY_FILE", nil},
		{"openweather.apikey", "KRISHI_OPENWEATHER_APIKEY", nil},
		{"openweather.apikeyfile", "KRISHI_OPENWEATHER_APIKEY_FILE", nil},

		// Speech
		{"speech.ffmpegpath", "KRISHI_FFMPEG_PATH", nil},
		{"speech.timeout", "KRISHI_SPEECH_TIMEOUT", validateEnvDuration},

		// Scraper
		{"scraper.url", "KRISHI_SCRAPER_URL", validateEnvURL},
		{"scraper.headless", "KRISHI_SCRAPER_HEADLESS", validateEnvBool},

		// Database
		{"database.type", "KRISHI_DATABASE_TYPE", validateEnvDatabaseType},
		{"database.sqlite.path", "KRISHI_SQLITE_PATH", nil},
		{"database.mysql.host", "KRISHI_MYSQL_HOST", nil},
		{"database.mysql.port", "KRISHI_MYSQL_PORT", validateEnvPort},
		{"database.mysql.username", "KRISHI_MYSQL_USERNAME", nil},
		{"database.mysql.password", "KRISHI_MYSQL_PASSWORD", nil},
		{"database.mysql.passwordfile", "KRISHI_MYSQL_PASSWORD_FILE", nil},
		{"database.mysql.database", "KRISHI_MYSQL_DATABASE", nil},

		// Session
		{"session.backend", "KRISHI_SESSION_BACKEND", validateEnvSessionBackend},
		{"session.secret", "KRISHI_SESSION_SECRET", nil},
		{"session.secretfile", "KRISHI_SESSION_SECRET_FILE", nil},
		{"session.maxage", "KRISHI_SESSION_MAXAGE", validateEnvDuration},
		{"session.redis.addr", "KRISHI_REDIS_ADDR", nil},
		{"session.redis.password", "KRISHI_REDIS_PASSWORD", nil},

		{"uploads.path", "KRISHI_UPLOADS_PATH", nil},
		{"metrics.enabled", "KRISHI_METRICS_ENABLED", validateEnvBool},
		{"sentry.dsn", "KRISHI_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value: %v", binding.EnvVar, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

// Environment variable validation functions

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvNonNegativeFloat(value string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid number: %w", err)
	}
	if f < 0 {
		return fmt.Errorf("must not be negative, got %g", f)
	}
	return nil
}

func validateEnvThreads(value string) error {
	threads, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid thread count: %w", err)
	}
	if threads < 0 || threads > 256 {
		return fmt.Errorf("threads must be between 0 and 256, got %d", threads)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", d)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got '%s'", u.Scheme)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvDatabaseType(value string) error {
	switch strings.ToLower(value) {
	case "sqlite", "mysql":
		return nil
	default:
		return fmt.Errorf("database type must be sqlite or mysql, got '%s'", value)
	}
}

func validateEnvSessionBackend(value string) error {
	switch strings.ToLower(value) {
	case SessionBackendDatabase, SessionBackendRedis:
		return nil
	default:
		return fmt.Errorf("session backend must be %s or %s, got '%s'", SessionBackendDatabase, SessionBackendRedis, value)
	}
}
