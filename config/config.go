package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration derived from the config file and environment.
type Config struct {
	HTTPPort      string
	DBPath        string
	DataPath      string
	ImportDir     string
	EnableWatcher bool
	JobQueueSize  int
	WorkerCount   int
	JobTimeoutSec int
	SessionTTLMin int
	Auth          AuthConfig
	DarkMode      bool
	LogLevel      string
	Environment   string
	StrictConfig  bool

	// Warnings collects non-fatal problems found while loading. The caller
	// logs them once a logger exists.
	Warnings []string
}

// AuthConfig is the single operator account accepted by the sign-in gate.
type AuthConfig struct {
	Username string `json:"username" yaml:"username"`
	Email    string `json:"email" yaml:"email"`
	Password string `json:"password" yaml:"password"`
}

type fileConfig struct {
	HTTPPort      string     `json:"http_port" yaml:"http_port"`
	DBPath        string     `json:"db_path" yaml:"db_path"`
	DataPath      string     `json:"data_path" yaml:"data_path"`
	ImportDir     string     `json:"import_dir" yaml:"import_dir"`
	EnableWatcher *bool      `json:"enable_watcher" yaml:"enable_watcher"`
	WorkerCount   *int       `json:"worker_count" yaml:"worker_count"`
	JobQueueSize  *int       `json:"job_queue_size" yaml:"job_queue_size"`
	JobTimeoutSec *int       `json:"job_timeout_sec" yaml:"job_timeout_sec"`
	SessionTTLMin *int       `json:"session_ttl_min" yaml:"session_ttl_min"`
	DarkMode      *bool      `json:"dark_mode" yaml:"dark_mode"`
	LogLevel      string     `json:"log_level" yaml:"log_level"`
	Auth          AuthConfig `json:"auth" yaml:"auth"`
}

const (
	defaultPort          = ":8000"
	defaultDBFile        = "runtime/callpulse.db"
	defaultImportDir     = "runtime/imports"
	minQueueSize         = 1
	defaultQueueSize     = 100
	maxQueueSize         = 1024
	defaultWorkerCount   = 4
	defaultJobTimeoutSec = 60
	defaultSessionTTLMin = 120
	defaultUsername      = "admin"
	defaultEmail         = "admin@callpulse.local"
	defaultPassword      = "callpulse"
	defaultLogLevel      = "info"
	defaultEnvironment   = "production"
)

// Load reads configuration from an optional .env file, the config file, and
// environment variables, in increasing order of precedence.
func Load() (Config, error) {
	LoadDotEnv(getEnv("DOTENV_PATH", ".env"))

	cfg := Config{
		EnableWatcher: true,
		StrictConfig:  parseBoolEnv("STRICT_CONFIG"),
		Environment:   getEnv("ENVIRONMENT", defaultEnvironment),
	}

	configPath := getEnv("CONFIG_PATH", filepath.Join("config", "config.yaml"))
	fileCfg, fileErr := loadFileConfig(configPath)
	if fileErr != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("config load failed (%s): %w", configPath, fileErr)
		}
		cfg.warnf("config load failed (%s): %v (using defaults)", configPath, fileErr)
	}

	cfg.DBPath = firstNonEmpty(os.Getenv("DB_PATH"), fileCfg.DBPath, defaultDBFile)
	cfg.DataPath = firstNonEmpty(os.Getenv("DATA_PATH"), fileCfg.DataPath)
	cfg.ImportDir = firstNonEmpty(os.Getenv("IMPORT_DIR"), fileCfg.ImportDir, defaultImportDir)
	cfg.LogLevel = strings.ToLower(firstNonEmpty(os.Getenv("LOG_LEVEL"), fileCfg.LogLevel, defaultLogLevel))

	cfg.HTTPPort = firstNonEmpty(os.Getenv("HTTP_PORT"), fileCfg.HTTPPort, defaultPort)
	if legacyPort := os.Getenv("PORT"); legacyPort != "" && cfg.HTTPPort == defaultPort {
		cfg.HTTPPort = legacyPort
	}
	if !strings.HasPrefix(cfg.HTTPPort, ":") {
		cfg.HTTPPort = ":" + cfg.HTTPPort
	}

	if fileCfg.EnableWatcher != nil {
		cfg.EnableWatcher = *fileCfg.EnableWatcher
	}
	cfg.EnableWatcher = parseBoolEnvDefault("ENABLE_WATCHER", cfg.EnableWatcher)
	if fileCfg.DarkMode != nil {
		cfg.DarkMode = *fileCfg.DarkMode
	}
	cfg.DarkMode = parseBoolEnvDefault("DEFAULT_DARK_MODE", cfg.DarkMode)

	cfg.Auth = AuthConfig{
		Username: firstNonEmpty(os.Getenv("AUTH_USERNAME"), fileCfg.Auth.Username, defaultUsername),
		Email:    firstNonEmpty(os.Getenv("AUTH_EMAIL"), fileCfg.Auth.Email, defaultEmail),
		Password: firstNonEmpty(os.Getenv("AUTH_PASSWORD"), fileCfg.Auth.Password, defaultPassword),
	}
	if cfg.Auth.Password == defaultPassword {
		cfg.warnf("AUTH_PASSWORD not set, using the built-in default")
	}

	for _, knob := range []intSetting{
		{env: "WORKER_COUNT", file: fileCfg.WorkerCount, def: defaultWorkerCount, min: 1, dst: &cfg.WorkerCount},
		{env: "JOB_QUEUE_SIZE", file: fileCfg.JobQueueSize, def: defaultQueueSize, min: minQueueSize, max: maxQueueSize, dst: &cfg.JobQueueSize},
		{env: "JOB_TIMEOUT_SEC", file: fileCfg.JobTimeoutSec, def: defaultJobTimeoutSec, min: 1, mustParse: true, dst: &cfg.JobTimeoutSec},
		{env: "SESSION_TTL_MIN", file: fileCfg.SessionTTLMin, def: defaultSessionTTLMin, min: 1, dst: &cfg.SessionTTLMin},
	} {
		if err := cfg.applyInt(knob); err != nil {
			return cfg, err
		}
	}
	if cfg.JobQueueSize < cfg.WorkerCount {
		cfg.warnf("JOB_QUEUE_SIZE %d is below WORKER_COUNT %d, raised", cfg.JobQueueSize, cfg.WorkerCount)
		cfg.JobQueueSize = min(max(defaultQueueSize, cfg.WorkerCount), maxQueueSize)
	}

	if !validLogLevel(cfg.LogLevel) {
		err := fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", cfg.LogLevel)
		if cfg.StrictConfig {
			return cfg, err
		}
		cfg.warnf("%v (using %s)", err, defaultLogLevel)
		cfg.LogLevel = defaultLogLevel
	}

	if err := validateConfig(cfg); err != nil {
		if cfg.StrictConfig {
			return cfg, err
		}
		cfg.warnf("config validation failed: %v (continuing)", err)
	}

	return cfg, nil
}

// JobTimeout is the per-import job deadline.
func (c Config) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSec) * time.Second
}

// SessionTTL is how long an idle session survives.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMin) * time.Minute
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("empty config file")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.HTTPPort) == "" || cfg.HTTPPort == ":" {
		return errors.New("HTTP_PORT is required")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("DB_PATH is required")
	}
	if cfg.EnableWatcher && strings.TrimSpace(cfg.ImportDir) == "" {
		return errors.New("IMPORT_DIR is required when the watcher is enabled")
	}
	if strings.TrimSpace(cfg.Auth.Password) == "" {
		return errors.New("AUTH_PASSWORD is required")
	}
	if cfg.Auth.Username == "" && cfg.Auth.Email == "" {
		return errors.New("one of AUTH_USERNAME or AUTH_EMAIL is required")
	}
	if !validLogLevel(cfg.LogLevel) {
		return fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", cfg.LogLevel)
	}
	return nil
}

func validLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return defaultVal
	}
	return parseBoolEnv(key)
}

// intSetting is an integer knob read from the config file, then the
// environment, then clamped to [min, max]. A zero max is unbounded.
type intSetting struct {
	env       string
	file      *int
	def       int
	min, max  int
	mustParse bool
	dst       *int
}

// applyInt resolves one knob into its destination. Unparseable or out of
// range values fall back with a warning, unless the knob or strict mode
// demands an error.
func (c *Config) applyInt(s intSetting) error {
	fail := s.mustParse || c.StrictConfig
	n := s.def
	if s.file != nil && *s.file > 0 {
		n = *s.file
	}
	if raw := strings.TrimSpace(os.Getenv(s.env)); raw != "" {
		v, err := strconv.Atoi(raw)
		switch {
		case err != nil && fail:
			return fmt.Errorf("invalid %s %q: %w", s.env, raw, err)
		case err != nil:
			c.warnf("invalid %s=%q, using %d", s.env, raw, n)
		default:
			n = v
		}
	}
	if n < s.min {
		if fail {
			return fmt.Errorf("%s must be at least %d, got %d", s.env, s.min, n)
		}
		c.warnf("%s raised to minimum %d (was %d)", s.env, s.min, n)
		n = s.min
	}
	if s.max > 0 && n > s.max {
		c.warnf("%s capped at %d (was %d)", s.env, s.max, n)
		n = s.max
	}
	*s.dst = n
	return nil
}
