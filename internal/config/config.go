// Package config loads and validates service configuration from YAML
// files and VOYAGO_* environment variables.
package config

import (
	"fmt"
	"time"
)

// Config is the full service configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Gate      GateConfig      `mapstructure:"gate"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Session   SessionConfig   `mapstructure:"session"`
	EventBus  EventBusConfig  `mapstructure:"eventbus"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type GateConfig struct {
	Threshold      float64 `mapstructure:"threshold"`
	CatalogPath    string  `mapstructure:"catalog_path"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
}

type PlannerConfig struct {
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	Classifier string        `mapstructure:"classifier"`
}

type ProvidersConfig struct {
	Latency       time.Duration `mapstructure:"latency"`
	CallTimeout   time.Duration `mapstructure:"call_timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

type SessionConfig struct {
	Backend     string      `mapstructure:"backend"`
	MaxSessions int         `mapstructure:"max_sessions"`
	Redis       RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type EventBusConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	BufferSize  int  `mapstructure:"buffer_size"`
	WorkerCount int  `mapstructure:"worker_count"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Session backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// Classifier modes. The openai mode asks the chat model to extract the
// destination; the rule mode uses phrase rules and spends no model call.
const (
	ClassifierModeOpenAI = "openai"
	ClassifierModeRule   = "rule"
)

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "voyago"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Gate.Threshold == 0 {
		cfg.Gate.Threshold = 0.55
	}
	if cfg.Planner.Model == "" {
		cfg.Planner.Model = "gpt-4o-mini"
	}
	if cfg.Planner.CacheTTL == 0 {
		cfg.Planner.CacheTTL = 10 * time.Minute
	}
	if cfg.Planner.Classifier == "" {
		cfg.Planner.Classifier = ClassifierModeOpenAI
	}
	if cfg.Providers.Latency == 0 {
		cfg.Providers.Latency = 300 * time.Millisecond
	}
	if cfg.Providers.CallTimeout == 0 {
		cfg.Providers.CallTimeout = 10 * time.Second
	}
	if cfg.Providers.MaxConcurrent == 0 {
		cfg.Providers.MaxConcurrent = 5
	}
	if cfg.Providers.RetryDelay == 0 {
		cfg.Providers.RetryDelay = time.Second
	}
	if cfg.Session.Backend == "" {
		cfg.Session.Backend = SessionBackendMemory
	}
	if cfg.Session.MaxSessions == 0 {
		cfg.Session.MaxSessions = 1024
	}
	if cfg.Session.Redis.Address == "" {
		cfg.Session.Redis.Address = "localhost:6379"
	}
	if cfg.EventBus.BufferSize == 0 {
		cfg.EventBus.BufferSize = 100
	}
	if cfg.EventBus.WorkerCount == 0 {
		cfg.EventBus.WorkerCount = 5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", cfg.Server.Port)
	}
	if cfg.Gate.Threshold < 0 || cfg.Gate.Threshold > 2 {
		return fmt.Errorf("gate threshold %v out of range [0, 2]", cfg.Gate.Threshold)
	}
	switch cfg.Session.Backend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		return fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
	switch cfg.Planner.Classifier {
	case ClassifierModeOpenAI, ClassifierModeRule:
	default:
		return fmt.Errorf("unknown classifier mode %q", cfg.Planner.Classifier)
	}
	if cfg.Session.Backend == SessionBackendRedis && cfg.Session.Redis.Address == "" {
		return fmt.Errorf("session backend redis requires an address")
	}
	if cfg.Providers.MaxConcurrent < 1 {
		return fmt.Errorf("providers max_concurrent must be at least 1")
	}
	return nil
}

// Addr returns the host:port the HTTP server listens on.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
