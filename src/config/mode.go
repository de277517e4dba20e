// Package config loads EcoGarden configuration from server.yml, .env files
// and the environment, and handles mode detection.
package config

import (
	"os"
	"strings"
)

// Mode represents the application execution mode
type Mode string

const (
	// ModeDevelopment is for local development (verbose logging, debug log file)
	ModeDevelopment Mode = "development"
	// ModeProduction is for production deployment (strict validation)
	ModeProduction Mode = "production"
	// ModeTest is used by the test suites
	ModeTest Mode = "test"
)

// DetectMode determines the application mode from config and environment
// Priority: 1. Config file, 2. Environment variable, 3. Default (production)
func DetectMode(configMode string) Mode {
	if mode, ok := parseMode(configMode); ok {
		return mode
	}

	for _, key := range []string{"MODE", "APP_MODE", "APP_ENV"} {
		if mode, ok := parseMode(os.Getenv(key)); ok {
			return mode
		}
	}

	// Default to production so secrets are always validated
	return ModeProduction
}

func parseMode(value string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "development", "dev":
		return ModeDevelopment, true
	case "production", "prod":
		return ModeProduction, true
	case "test", "testing":
		return ModeTest, true
	}
	return "", false
}

func (m Mode) String() string {
	return string(m)
}

// IsProduction reports whether m is the production mode
func (m Mode) IsProduction() bool {
	return m == ModeProduction
}

// GinMode maps the application mode to a gin mode name
func (m Mode) GinMode() string {
	switch m {
	case ModeDevelopment:
		return "debug"
	case ModeTest:
		return "test"
	default:
		return "release"
	}
}

// IsTruthy parses boolean-ish environment values
// Accepts: 1, yes, true, on, enable, enabled (case-insensitive)
func IsTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "y", "yes", "true", "on", "enable", "enabled":
		return true
	}
	return false
}
