package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "VOYAGO"

// Load reads configuration from an optional YAML file and the
// environment. Environment variables use the VOYAGO prefix with
// underscores, e.g. VOYAGO_SERVER_PORT or VOYAGO_PLANNER_API_KEY.
// An empty path means environment and defaults only.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	bindKeys(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// bindKeys registers every key so AutomaticEnv sees variables that have
// no value in the config file.
func bindKeys(v *viper.Viper) {
	keys := []string{
		"app.name",
		"app.environment",
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.shutdown_timeout",
		"gate.threshold",
		"gate.catalog_path",
		"gate.embedding_model",
		"planner.model",
		"planner.api_key",
		"planner.cache_ttl",
		"planner.classifier",
		"providers.latency",
		"providers.call_timeout",
		"providers.max_concurrent",
		"providers.max_retries",
		"providers.retry_delay",
		"session.backend",
		"session.max_sessions",
		"session.redis.address",
		"session.redis.password",
		"session.redis.db",
		"session.redis.ttl",
		"eventbus.enabled",
		"eventbus.buffer_size",
		"eventbus.worker_count",
		"logging.level",
		"logging.format",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			panic(fmt.Sprintf("bind env for %s: %v", key, err))
		}
	}
}
