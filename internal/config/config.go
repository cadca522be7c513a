// Package config provides configuration management for the email router
// application. It handles loading configuration from environment variables
// with sensible defaults and validates the configuration to ensure the
// application starts safely.
//
// The router reads its routing rules from a local JSON document, serves an
// inbound webhook endpoint for raw email notifications, and exposes a small
// token-protected diagnostics API.
//
// Environment Variables:
//
// Application Settings:
//   - HOST: Interface to bind the HTTP listener to (default: 0.0.0.0)
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - INSTANCE_TYPE: Deployment instance this process serves - "blue" or "green"
//
// Routing Rules:
//   - RULES_FILE: Path to the routing rules JSON document (required)
//   - RELOAD_SCHEDULE: Cron expression for periodic rules reload (empty: disabled)
//
// Diagnostics API:
//   - API_ENABLED: Enable the token-protected /api endpoints (default: true)
//   - API_TOKEN_SECRET: Bearer token signing secret (required when API is
//     enabled, minimum 32 characters)
//
// TLS:
//   - TLS_CERT_FILE: Certificate file for HTTPS (optional)
//   - TLS_KEY_FILE: Key file for HTTPS (must accompany TLS_CERT_FILE)
//
// Example usage:
//
//	// Load configuration from environment
//	config := config.Load()
//
//	// Validate configuration
//	if err := config.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
//
//	// Use configuration
//	server := &http.Server{
//		Addr: net.JoinHostPort(config.Host, config.Port),
//	}
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"email-router/internal/common/validation"
)

// Config holds all configuration values for the email router application.
// All string fields correspond to environment variables that can be set to
// override the default values.
//
// The configuration is loaded using the Load() function and should be
// validated using the Validate() method before use.
type Config struct {
	// Application settings
	Host         string // Listen interface
	Port         string // Server port number
	LogLevel     string // Logging level (debug, info, warn, error)
	InstanceType string // Deployment instance served by this process ("blue" or "green")

	// Routing rules
	RulesFile      string // Path to the routing rules JSON document
	ReloadSchedule string // Cron expression for periodic reload, empty disables

	// Diagnostics API
	APIEnabled     bool   // Whether the /api endpoints are mounted
	APITokenSecret string // Secret key for bearer token verification

	// TLS configuration
	TLSCertFile string // Certificate file path, empty serves plain HTTP
	TLSKeyFile  string // Key file path, paired with TLSCertFile
}

// Load creates a new Config instance with values loaded from environment
// variables. If an environment variable is not set, the corresponding default
// value is used.
//
// This function does not validate the configuration - call Validate() on the
// returned Config to ensure all required values are properly set and valid.
//
// Returns:
//   - *Config: A new configuration instance with values from environment variables
func Load() *Config {
	return &Config{
		Host:         getEnv("HOST", "0.0.0.0"),
		Port:         getEnv("PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		InstanceType: getEnv("INSTANCE_TYPE", "blue"),

		// Routing rules
		RulesFile:      getEnv("RULES_FILE", ""),
		ReloadSchedule: getEnv("RELOAD_SCHEDULE", ""),

		// Diagnostics API
		APIEnabled:     getBoolEnv("API_ENABLED", true),
		APITokenSecret: getEnv("API_TOKEN_SECRET", ""),

		// TLS configuration
		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),
	}
}

// getEnv retrieves an environment variable value or returns a default value if not set.
//
// Parameters:
//   - key: The environment variable name to look up
//   - defaultValue: The value to return if the environment variable is not set or empty
//
// Returns:
//   - string: The environment variable value or the default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a default value.
//
// This function accepts common boolean representations:
//   - "true", "1", "t", "TRUE", "True" -> true
//   - "false", "0", "f", "FALSE", "False" -> false
//   - Any other value or parsing error -> returns defaultValue
//
// Parameters:
//   - key: The environment variable name to look up
//   - defaultValue: The value to return if the environment variable is not set, empty, or invalid
//
// Returns:
//   - bool: The parsed boolean value or the default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate performs comprehensive validation on the configuration to ensure
// all required fields are present and all values are valid.
//
// This method checks:
//   - Required fields (RULES_FILE, INSTANCE_TYPE)
//   - Field format validation (port range, cron expression)
//   - Cross-field dependencies (API secret when the API is enabled, TLS pair)
//   - Security requirements (secret length)
//
// The application should call this method after loading configuration and
// before starting to ensure safe operation.
//
// Returns:
//   - error: A descriptive error if validation fails, nil if configuration is valid
func (c *Config) Validate() error {
	// Validate required fields
	if c.RulesFile == "" {
		return fmt.Errorf("RULES_FILE environment variable is required")
	}

	// Validate instance type
	switch strings.ToLower(c.InstanceType) {
	case "blue", "green":
		// Supported deployment instances
	default:
		return fmt.Errorf("INSTANCE_TYPE must be 'blue' or 'green'")
	}

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	// Validate API token secret if the diagnostics API is enabled
	if c.APIEnabled {
		if c.APITokenSecret == "" {
			return fmt.Errorf("API_TOKEN_SECRET environment variable is required when the diagnostics API is enabled")
		}
		if len(c.APITokenSecret) < 32 {
			return fmt.Errorf("API_TOKEN_SECRET must be at least 32 characters long for security")
		}
	}

	// Validate reload schedule if provided
	if c.ReloadSchedule != "" {
		if !validation.Passes(c.ReloadSchedule, "cron_expression") {
			return fmt.Errorf("RELOAD_SCHEDULE must be a valid cron expression (e.g. '*/10 * * * *')")
		}
	}

	// Validate TLS configuration, certificate and key travel together
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be provided together")
	}

	return nil
}
