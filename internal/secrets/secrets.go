// Package secrets resolves credentials (API keys, session secret, database
// password) from configuration values that may reference environment variables
// or mounted secret files. Secret values are never logged.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/krishisahay/krishisahay-go/internal/logger"
)

// maxSecretFileSize limits secret file reads; secrets are tokens, not documents
const maxSecretFileSize = 64 * 1024

var (
	serviceLogger logger.Logger
	loggerOnce    sync.Once
)

// GetLogger returns the secrets package logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logger.Global().Module("secrets")
	})
	return serviceLogger
}

// ExpandString expands ${VAR} and ${VAR:-default} references in s.
//
//	"literal"             -> "literal"
//	"${GEMINI_KEY}"       -> value of GEMINI_KEY
//	"${GEMINI_KEY:-none}" -> value of GEMINI_KEY or "none"
//
// A reference without a fallback to an unset variable is an error.
func ExpandString(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	expanded := os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if value := os.Getenv(name); value != "" {
			return value
		}
		if hasFallback {
			return fallback
		}
		missing = append(missing, name)
		return ""
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}
	return expanded, nil
}

// ReadFile reads a secret from a mounted file such as /run/secrets/gemini_key.
// Trailing newlines are trimmed and an empty file is an error.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("secret file path is empty")
	}

	cleanPath := filepath.Clean(path)
	info, err := os.Stat(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("secret file not found: %s", cleanPath)
		}
		return "", fmt.Errorf("failed to stat secret file %s: %w", cleanPath, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret path is not a regular file: %s", cleanPath)
	}
	if info.Size() > maxSecretFileSize {
		return "", fmt.Errorf("secret file too large (max %d bytes): %s", maxSecretFileSize, cleanPath)
	}

	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		GetLogger().Warn("secret file is readable by group or others",
			logger.String("path", cleanPath),
			logger.String("perms", fmt.Sprintf("%04o", perm)))
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", cleanPath, err)
	}

	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fmt.Errorf("secret file is empty: %s", cleanPath)
	}
	return secret, nil
}

// Resolve returns the secret from filePath when set, otherwise value with
// environment references expanded. Both empty yields "".
func Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		secret, err := ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from file: %w", err)
		}
		return secret, nil
	}
	return ExpandString(value)
}
