// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ericfisherdev/diasync/internal/domain/model"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr      string
	DBPath          string
	SecretKey       []byte // 32 bytes, or nil when credentials are kept in memory only.
	RequestTimeout  time.Duration
	LoginsPerMinute int
	SyncInterval    time.Duration // Zero disables the background sync loop.
	ReauthEverySync bool
	LookbackMinutes int
	MaxCount        int
	Candidates      []model.EndpointCandidate // Nil means the built-in set.
	TargetLow       int
	TargetHigh      int
	GeminiAPIKey    string
	GeminiModel     string
	LogLevel        slog.Level
}

// HasSecretKey returns true when credentials can be persisted encrypted.
// Used by the composition root to choose between the SQLite and in-memory
// credential stores.
func (c *Config) HasSecretKey() bool {
	return len(c.SecretKey) == 32
}

// candidatesFile is the YAML layout accepted by DIASYNC_CANDIDATES_FILE.
type candidatesFile struct {
	Candidates []model.EndpointCandidate `yaml:"candidates"`
}

// LoadEnvFile loads variables from a .env file without overriding ones
// already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables and returns a validated Config.
// Every variable is optional:
//
//	DIASYNC_LISTEN_ADDR        127.0.0.1:3000
//	DIASYNC_DB_PATH            diasync.db
//	DIASYNC_SECRET_KEY         64 hex characters; unset keeps credentials in memory
//	DIASYNC_REQUEST_TIMEOUT    15s
//	DIASYNC_LOGINS_PER_MINUTE  12
//	DIASYNC_SYNC_INTERVAL      0 (background sync disabled)
//	DIASYNC_REAUTH_EVERY_SYNC  false
//	DIASYNC_LOOKBACK_MINUTES   1440
//	DIASYNC_MAX_COUNT          288
//	DIASYNC_CANDIDATES_FILE    YAML override of the endpoint candidate set
//	DIASYNC_TARGET_LOW         70
//	DIASYNC_TARGET_HIGH        180
//	GEMINI_API_KEY             unset disables insights
//	DIASYNC_GEMINI_MODEL       gemini-2.5-flash
//	DIASYNC_LOG_LEVEL          info
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:   envString("DIASYNC_LISTEN_ADDR", "127.0.0.1:3000"),
		DBPath:       envString("DIASYNC_DB_PATH", "diasync.db"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  envString("DIASYNC_GEMINI_MODEL", "gemini-2.5-flash"),
	}

	var err error
	if cfg.SecretKey, err = parseSecretKey(os.Getenv("DIASYNC_SECRET_KEY")); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = envDuration("DIASYNC_REQUEST_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.SyncInterval, err = envDuration("DIASYNC_SYNC_INTERVAL", 0); err != nil {
		return nil, err
	}
	if cfg.LoginsPerMinute, err = envInt("DIASYNC_LOGINS_PER_MINUTE", 12); err != nil {
		return nil, err
	}
	if cfg.LookbackMinutes, err = envInt("DIASYNC_LOOKBACK_MINUTES", 1440); err != nil {
		return nil, err
	}
	if cfg.MaxCount, err = envInt("DIASYNC_MAX_COUNT", 288); err != nil {
		return nil, err
	}
	if cfg.TargetLow, err = envInt("DIASYNC_TARGET_LOW", 70); err != nil {
		return nil, err
	}
	if cfg.TargetHigh, err = envInt("DIASYNC_TARGET_HIGH", 180); err != nil {
		return nil, err
	}
	if cfg.ReauthEverySync, err = envBool("DIASYNC_REAUTH_EVERY_SYNC", false); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = parseLogLevel(os.Getenv("DIASYNC_LOG_LEVEL")); err != nil {
		return nil, err
	}

	if path := os.Getenv("DIASYNC_CANDIDATES_FILE"); path != "" {
		if cfg.Candidates, err = LoadCandidates(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("DIASYNC_REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.SyncInterval < 0 {
		return fmt.Errorf("DIASYNC_SYNC_INTERVAL must not be negative, got %s", c.SyncInterval)
	}
	if c.SyncInterval > 0 && c.SyncInterval < time.Minute {
		return fmt.Errorf("DIASYNC_SYNC_INTERVAL must be at least 1m, got %s", c.SyncInterval)
	}
	if c.LoginsPerMinute <= 0 {
		return fmt.Errorf("DIASYNC_LOGINS_PER_MINUTE must be positive, got %d", c.LoginsPerMinute)
	}
	if c.TargetLow <= 0 || c.TargetHigh <= c.TargetLow {
		return fmt.Errorf("target band %d-%d mg/dL is invalid", c.TargetLow, c.TargetHigh)
	}
	return nil
}

// LoadCandidates reads an endpoint candidate set from a YAML file:
//
//	candidates:
//	  - host: share2.dexcom.com
//	    application_id: d89443d2-327c-4a6f-89e5-496bbb0317db
//	    shape: camelCase
//	    region: US
func LoadCandidates(path string) ([]model.EndpointCandidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read candidates file: %w", err)
	}

	var file candidatesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse candidates file %s: %w", path, err)
	}
	if len(file.Candidates) == 0 {
		return nil, fmt.Errorf("candidates file %s lists no candidates", path)
	}

	for i, c := range file.Candidates {
		if c.Region == "" {
			file.Candidates[i].Region = model.RegionUS
		}
		if err := file.Candidates[i].Validate(); err != nil {
			return nil, fmt.Errorf("candidates file %s entry %d: %w", path, i, err)
		}
	}

	return file.Candidates, nil
}

func parseSecretKey(v string) ([]byte, error) {
	if v == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(strings.TrimSpace(v))
	if err != nil {
		return nil, fmt.Errorf("DIASYNC_SECRET_KEY is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("DIASYNC_SECRET_KEY must be 64 hex characters (32 bytes), got %d bytes", len(key))
	}
	return key, nil
}

func parseLogLevel(v string) (slog.Level, error) {
	if v == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return slog.LevelInfo, fmt.Errorf("DIASYNC_LOG_LEVEL has invalid level %q: %w", v, err)
	}
	return level, nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	if v == "0" {
		return 0, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	return parsed, nil
}

func envInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	return parsed, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s has invalid boolean %q: %w", key, v, err)
	}
	return parsed, nil
}
