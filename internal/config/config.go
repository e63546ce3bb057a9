package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for analysisctl and the stub agent.
type Config struct {
	Agent    AgentConfig
	Polling  PollingConfig
	Retry    RetryConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Stub     StubConfig
}

type AgentConfig struct {
	BaseURL       string
	Timeout       time.Duration
	SubmitTimeout time.Duration
}

type PollingConfig struct {
	Interval        time.Duration
	MaxWait         time.Duration
	MonitorInterval time.Duration
}

type RetryConfig struct {
	SubmitMaxAttempts int
	SubmitDelay       time.Duration
	HealthMaxAttempts int
	HealthDelay       time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// DatabaseConfig is optional. An empty URL disables the job journal.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

// RedisConfig is optional. An empty URL disables the status cache.
type RedisConfig struct {
	URL       string
	StatusTTL time.Duration
}

type StubConfig struct {
	Port           int
	ProcessingTime time.Duration
}

var validLogFormats = map[string]bool{
	"console": true,
	"json":    true,
}

// Load reads configuration from environment variables and returns a validated Config.
// A .env file in the working directory is read first if present; real
// environment variables take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Agent: AgentConfig{
			BaseURL:       strings.TrimRight(envString("AGENT_BASE_URL", "http://localhost:8005"), "/"),
			Timeout:       envDuration("AGENT_TIMEOUT", 5*time.Second),
			SubmitTimeout: envDuration("AGENT_SUBMIT_TIMEOUT", 10*time.Second),
		},
		Polling: PollingConfig{
			Interval:        envDuration("POLL_INTERVAL", 5*time.Second),
			MaxWait:         envDuration("MAX_WAIT", 300*time.Second),
			MonitorInterval: envDuration("MONITOR_INTERVAL", 5*time.Second),
		},
		Retry: RetryConfig{
			SubmitMaxAttempts: envInt("SUBMIT_MAX_ATTEMPTS", 10),
			SubmitDelay:       envDuration("SUBMIT_RETRY_DELAY", time.Second),
			HealthMaxAttempts: envInt("HEALTH_MAX_ATTEMPTS", 10),
			HealthDelay:       envDuration("HEALTH_RETRY_DELAY", 5*time.Second),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "console"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 4),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 1),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   envString("DATABASE_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			URL:       os.Getenv("REDIS_URL"),
			StatusTTL: envDuration("REDIS_STATUS_TTL", 30*time.Minute),
		},
		Stub: StubConfig{
			Port:           envInt("STUB_PORT", 8005),
			ProcessingTime: envDuration("STUB_PROCESSING_TIME", 3*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if err := ValidateBaseURL(c.Agent.BaseURL); err != nil {
		return err
	}
	if c.Agent.Timeout <= 0 {
		return fmt.Errorf("AGENT_TIMEOUT must be positive, got %s", c.Agent.Timeout)
	}

	if c.Polling.Interval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.Polling.Interval)
	}
	if c.Polling.MaxWait <= 0 {
		return fmt.Errorf("MAX_WAIT must be positive, got %s", c.Polling.MaxWait)
	}
	if c.Polling.MonitorInterval <= 0 {
		return fmt.Errorf("MONITOR_INTERVAL must be positive, got %s", c.Polling.MonitorInterval)
	}

	if c.Retry.SubmitMaxAttempts < 1 {
		return fmt.Errorf("SUBMIT_MAX_ATTEMPTS must be at least 1, got %d", c.Retry.SubmitMaxAttempts)
	}
	if c.Retry.HealthMaxAttempts < 1 {
		return fmt.Errorf("HEALTH_MAX_ATTEMPTS must be at least 1, got %d", c.Retry.HealthMaxAttempts)
	}

	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of console, json; got %q", c.Log.Format)
	}

	if c.Redis.URL != "" && !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL)
	}

	if c.Stub.Port < 1 || c.Stub.Port > 65535 {
		return fmt.Errorf("STUB_PORT must be between 1 and 65535, got %d", c.Stub.Port)
	}

	return nil
}

// ValidateBaseURL checks that an agent URL is absolute http(s). It is exported
// so command-line overrides get the same check as AGENT_BASE_URL.
func ValidateBaseURL(u string) error {
	if u == "" {
		return fmt.Errorf("AGENT_BASE_URL is required")
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return fmt.Errorf("AGENT_BASE_URL must start with http:// or https://, got %q", u)
	}
	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// envDuration accepts Go durations ("1m30s") and bare seconds ("5").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}
