package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/app/configs")

	viper.SetEnvPrefix("OCPP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.listen_addr", "0.0.0.0:8080")
	viper.SetDefault("server.admin_addr", "0.0.0.0:8081")
	viper.SetDefault("server.allow_unknown_stations", true)
	viper.SetDefault("ocpp.heartbeat_interval_sec", 30)
	viper.SetDefault("ocpp.call_timeout_sec", 30)
	viper.SetDefault("ocpp.meter_buffer", 1024)
	viper.SetDefault("auth.fail_policy", FailPolicyClosed)
	viper.SetDefault("auth.cache_ttl_sec", 300)
	viper.SetDefault("events.driver", "none")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("reservations.sweep_interval_sec", 60)

	// Allow flat env vars without OCPP_ prefix for Docker/VM deploys
	viper.BindEnv("server.listen_addr", "LISTEN_ADDR")
	viper.BindEnv("server.admin_addr", "ADMIN_ADDR")
	viper.BindEnv("server.allow_unknown_stations", "ALLOW_UNKNOWN_STATIONS")
	viper.BindEnv("server.denylist", "DENYLIST")
	viper.BindEnv("server.allowed_origins", "ALLOWED_ORIGINS")
	viper.BindEnv("database.url", "DB_URL", "DATABASE_URL")
	viper.BindEnv("ocpp.heartbeat_interval_sec", "HEARTBEAT_INTERVAL_SEC")
	viper.BindEnv("ocpp.call_timeout_sec", "CALL_TIMEOUT_SEC")
	viper.BindEnv("ocpp.meter_buffer", "METER_BUFFER")
	viper.BindEnv("auth.fail_policy", "AUTH_FAIL_POLICY")
	viper.BindEnv("auth.cache_ttl_sec", "AUTH_CACHE_TTL_SEC")
	viper.BindEnv("redis.url", "REDIS_URL")
	viper.BindEnv("events.driver", "EVENTS_DRIVER")
	viper.BindEnv("events.url", "EVENTS_URL")
	viper.BindEnv("telemetry.jaeger_endpoint", "JAEGER_ENDPOINT")
	viper.BindEnv("logging.level", "LOG_LEVEL")
	viper.BindEnv("reservations.sweep_interval_sec", "RESERVATION_SWEEP_SEC")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// no config file is fine, env vars carry the deploy
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the server cannot safely start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return fmt.Errorf("DB_URL is required")
	}
	switch c.Auth.FailPolicy {
	case FailPolicyOpen, FailPolicyClosed:
	default:
		return fmt.Errorf("AUTH_FAIL_POLICY must be %q or %q, got %q", FailPolicyOpen, FailPolicyClosed, c.Auth.FailPolicy)
	}
	switch c.Events.Driver {
	case "nats", "rabbitmq", "none":
	default:
		return fmt.Errorf("EVENTS_DRIVER must be nats, rabbitmq or none, got %q", c.Events.Driver)
	}
	if c.OCPP.HeartbeatIntervalSec <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL_SEC must be positive, got %d", c.OCPP.HeartbeatIntervalSec)
	}
	if c.OCPP.CallTimeoutSec <= 0 {
		return fmt.Errorf("CALL_TIMEOUT_SEC must be positive, got %d", c.OCPP.CallTimeoutSec)
	}
	if c.OCPP.MeterBuffer <= 0 {
		return fmt.Errorf("METER_BUFFER must be positive, got %d", c.OCPP.MeterBuffer)
	}
	if c.Auth.CacheTTLSec < 0 {
		return fmt.Errorf("AUTH_CACHE_TTL_SEC cannot be negative, got %d", c.Auth.CacheTTLSec)
	}
	return nil
}
