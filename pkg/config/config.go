package config

import (
	"strings"
	"time"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	OCPP         OCPPConfig         `mapstructure:"ocpp"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Events       EventsConfig       `mapstructure:"events"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Reservations ReservationsConfig `mapstructure:"reservations"`
}

type ServerConfig struct {
	ListenAddr           string   `mapstructure:"listen_addr"`
	AdminAddr            string   `mapstructure:"admin_addr"`
	AllowUnknownStations bool     `mapstructure:"allow_unknown_stations"`
	Denylist             string   `mapstructure:"denylist"`
	AllowedOrigins       []string `mapstructure:"allowed_origins"`
}

// DenylistIDs splits the comma-separated denylist into station identities.
func (c ServerConfig) DenylistIDs() []string {
	if strings.TrimSpace(c.Denylist) == "" {
		return nil
	}
	parts := strings.Split(c.Denylist, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if id := strings.TrimSpace(p); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type OCPPConfig struct {
	HeartbeatIntervalSec int `mapstructure:"heartbeat_interval_sec"`
	CallTimeoutSec       int `mapstructure:"call_timeout_sec"`
	MeterBuffer          int `mapstructure:"meter_buffer"`
}

func (c OCPPConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSec) * time.Second
}

func (c OCPPConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSec) * time.Second
}

const (
	FailPolicyOpen   = "open"
	FailPolicyClosed = "closed"
)

type AuthConfig struct {
	FailPolicy  string `mapstructure:"fail_policy"`
	CacheTTLSec int    `mapstructure:"cache_ttl_sec"`
}

// FailOpen reports whether unreachable authorization storage should admit tags.
func (c AuthConfig) FailOpen() bool {
	return c.FailPolicy == FailPolicyOpen
}

func (c AuthConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type EventsConfig struct {
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

type TelemetryConfig struct {
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type ReservationsConfig struct {
	SweepIntervalSec int `mapstructure:"sweep_interval_sec"`
}

func (c ReservationsConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}
