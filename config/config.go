package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/bond-anton/nts.service/errors"
)

// Control transport backends
const (
	TransportRedis = "redis"
	TransportNATS  = "nats"
)

// Control addressing modes: "service" listens on the shared service-name
// topic, "instance" listens on a per-instance topic derived from the
// username or a generated UUID.
const (
	ModeService  = "service"
	ModeInstance = "instance"
)

// Config represents the complete worker configuration
type Config struct {
	Service ServiceConfig `json:"service" yaml:"service"`
	Control ControlConfig `json:"control" yaml:"control"`
	Redis   RedisConfig   `json:"redis" yaml:"redis"`
	NATS    NATSConfig    `json:"nats,omitempty" yaml:"nats,omitempty"`
	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`

	// generatedIdentity pins the instance identity minted when no username
	// is configured, keeping ControlTopic stable across calls
	generatedIdentity string
}

// ServiceConfig defines the worker identity and loop parameters
type ServiceConfig struct {
	Name     string  `json:"name" yaml:"name"`
	Version  string  `json:"version" yaml:"version"`
	WorkerID int     `json:"worker_id,omitempty" yaml:"worker_id,omitempty"`
	Delay    float64 `json:"delay,omitempty" yaml:"delay,omitempty"`
	LogLevel string  `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// ControlConfig defines how the worker receives control messages
type ControlConfig struct {
	Transport string `json:"transport,omitempty" yaml:"transport,omitempty"`
	Mode      string `json:"mode,omitempty" yaml:"mode,omitempty"`
	Username  string `json:"username,omitempty" yaml:"username,omitempty"`
}

// RedisConfig defines the Redis connection used for the control channel,
// the status projection, the log stream, and time series storage
type RedisConfig struct {
	Addr      string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Password  string `json:"password,omitempty" yaml:"password,omitempty"`
	DB        int    `json:"db,omitempty" yaml:"db,omitempty"`
	LogStream string `json:"log_stream,omitempty" yaml:"log_stream,omitempty"`
}

// NATSConfig defines the optional NATS connection for the control channel
type NATSConfig struct {
	URL           string        `json:"url,omitempty" yaml:"url,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty" yaml:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty" yaml:"reconnect_wait,omitempty"`
	Credentials   string        `json:"credentials,omitempty" yaml:"credentials,omitempty"`
}

// MetricsConfig defines the Prometheus exposition endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Addr    string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Default returns a configuration with every optional field populated.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "nts-worker",
			Version:  "0.0.1",
			WorkerID: 1,
			Delay:    5,
			LogLevel: "DEBUG",
		},
		Control: ControlConfig{
			Transport: TransportRedis,
			Mode:      ModeService,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			LogStream: "worker_logs",
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			MaxReconnects: 10,
			ReconnectWait: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
			Path: "/metrics",
		},
	}
}

// Load reads a configuration file, fills unset fields from defaults,
// applies NTS_* environment overrides, and validates the result. An empty
// path loads defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "Config", "Load", "read file "+path)
		}
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".json":
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, errors.WrapInvalid(err, "Config", "Load", "parse JSON")
			}
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.WrapInvalid(err, "Config", "Load", "parse YAML")
			}
		default:
			return nil, errors.WrapInvalid(
				fmt.Errorf("unsupported config format %q", ext),
				"Config", "Load", "detect format")
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets the environment win over file values. Only fields
// a deployment realistically overrides per instance are exposed.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("NTS_SERVICE_NAME"); v != "" {
		c.Service.Name = v
	}
	if v := os.Getenv("NTS_SERVICE_VERSION"); v != "" {
		c.Service.Version = v
	}
	if v := os.Getenv("NTS_WORKER_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			c.Service.WorkerID = id
		}
	}
	if v := os.Getenv("NTS_DELAY"); v != "" {
		if delay, err := strconv.ParseFloat(v, 64); err == nil {
			c.Service.Delay = delay
		}
	}
	if v := os.Getenv("NTS_LOG_LEVEL"); v != "" {
		c.Service.LogLevel = v
	}
	if v := os.Getenv("NTS_CONTROL_TRANSPORT"); v != "" {
		c.Control.Transport = v
	}
	if v := os.Getenv("NTS_CONTROL_MODE"); v != "" {
		c.Control.Mode = v
	}
	if v := os.Getenv("NTS_CONTROL_USERNAME"); v != "" {
		c.Control.Username = v
	}
	if v := os.Getenv("NTS_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("NTS_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("NTS_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("NTS_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("NTS_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
		c.Metrics.Enabled = true
	}
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "service name required")
	}
	if strings.ContainsAny(c.Service.Name, " \t\n") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"service name must not contain whitespace")
	}
	if c.Service.Delay < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "delay must be >= 0")
	}
	switch c.Control.Transport {
	case TransportRedis, TransportNATS:
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown control transport %q", c.Control.Transport))
	}
	switch c.Control.Mode {
	case ModeService, ModeInstance:
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown control mode %q", c.Control.Mode))
	}
	if c.Control.Transport == TransportRedis && c.Redis.Addr == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "redis addr required")
	}
	if c.Control.Transport == TransportNATS && c.NATS.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "nats url required")
	}
	return nil
}

// ControlTopic resolves the topic the worker listens on. Service mode
// shares one topic per service name; instance mode derives a per-instance
// topic from the configured username, or a random UUID when none is set.
func (c *Config) ControlTopic() string {
	if c.Control.Mode == ModeInstance {
		identity := c.Control.Username
		if identity == "" {
			if c.generatedIdentity == "" {
				c.generatedIdentity = uuid.NewString()
			}
			identity = c.generatedIdentity
		}
		return c.Service.Name + "." + identity
	}
	return c.Service.Name
}
