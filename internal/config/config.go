// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// DeviceID tags every transaction this process commits and keys its
	// history cursor. Required.
	DeviceID string

	// UserID is the account the process acts for. Required.
	UserID string

	// PrivateStore is the base name of the per-user private partitions and
	// SharedStore names the shared one.
	PrivateStore string
	SharedStore  string

	HistoryRetention time.Duration
	SyncPollInterval time.Duration
	GeocodeInterval  time.Duration
	MaxBodyBytes     int64

	// RedisAddr enables the geocode cache when set.
	RedisAddr string

	// AMQPURL enables remote change notifications when set.
	AMQPURL string

	// GeminiAPIKey enables the AI itinerary parser and place lookup when set.
	GeminiAPIKey string
	GeminiModel  string
}

// vars mirrors Config with the env tags; CORS_ORIGINS needs trimming that
// the env separator cannot do.
type vars struct {
	Port             string        `env:"PORT" envDefault:"8080"`
	DatabaseURL      string        `env:"DATABASE_URL"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigins      string        `env:"CORS_ORIGINS" envDefault:"http://localhost:5173"`
	DeviceID         string        `env:"DEVICE_ID"`
	UserID           string        `env:"USER_ID"`
	PrivateStore     string        `env:"PRIVATE_STORE" envDefault:"private"`
	SharedStore      string        `env:"SHARED_STORE" envDefault:"shared"`
	HistoryRetention time.Duration `env:"HISTORY_RETENTION" envDefault:"168h"`
	SyncPollInterval time.Duration `env:"SYNC_POLL_INTERVAL" envDefault:"30s"`
	GeocodeInterval  time.Duration `env:"GEOCODE_INTERVAL" envDefault:"600ms"`
	MaxBodyBytes     int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	RedisAddr        string        `env:"REDIS_ADDR"`
	AMQPURL          string        `env:"AMQP_URL"`
	GeminiAPIKey     string        `env:"GEMINI_API_KEY"`
	GeminiModel      string        `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
}

// Load reads configuration from environment variables and returns a Config.
// A .env file in the working directory is loaded first when present; real
// environment variables take precedence over it. Variables set to the empty
// string count as unset. Returns an error listing any required variables
// that are not set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config.Load: .env: %w", err)
	}

	var v vars
	if err := env.Parse(&v, env.Options{Environment: nonEmptyEnv()}); err != nil {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}

	var missing []string
	for _, req := range []struct{ name, value string }{
		{"DATABASE_URL", v.DatabaseURL},
		{"DEVICE_ID", v.DeviceID},
		{"USER_ID", v.UserID},
	} {
		if req.value == "" {
			missing = append(missing, req.name)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}
	if v.PrivateStore == v.SharedStore {
		return Config{}, fmt.Errorf("PRIVATE_STORE and SHARED_STORE must differ (both %q)", v.PrivateStore)
	}

	return Config{
		Port:             v.Port,
		DatabaseURL:      v.DatabaseURL,
		LogLevel:         v.LogLevel,
		CORSOrigins:      splitCSV(v.CORSOrigins),
		DeviceID:         v.DeviceID,
		UserID:           v.UserID,
		PrivateStore:     v.PrivateStore,
		SharedStore:      v.SharedStore,
		HistoryRetention: v.HistoryRetention,
		SyncPollInterval: v.SyncPollInterval,
		GeocodeInterval:  v.GeocodeInterval,
		MaxBodyBytes:     v.MaxBodyBytes,
		RedisAddr:        v.RedisAddr,
		AMQPURL:          v.AMQPURL,
		GeminiAPIKey:     v.GeminiAPIKey,
		GeminiModel:      v.GeminiModel,
	}, nil
}

// nonEmptyEnv returns the process environment without empty values, so an
// empty variable falls back to its default.
func nonEmptyEnv() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		k, val, ok := strings.Cut(kv, "=")
		if ok && val != "" {
			out[k] = val
		}
	}
	return out
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
