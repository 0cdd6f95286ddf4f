// Package config loads Charge Point configuration from a YAML file with
// environment variable overrides, following the same load-then-override
// pattern used throughout this codebase.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	ChargePoint ChargePointConfig `yaml:"charge_point"`
	Central     CentralConfig     `yaml:"central_system"`
	Transaction TransactionConfig `yaml:"transaction"`
	Pool        PoolConfig        `yaml:"pool"`
	Server      ServerConfig      `yaml:"server"`
	Snapshot    SnapshotConfig    `yaml:"snapshot"`
}

// ChargePointConfig identifies this Charge Point to the Central System.
type ChargePointConfig struct {
	ID           string `yaml:"id"`
	Vendor       string `yaml:"vendor"`
	Model        string `yaml:"model"`
	HeartbeatSec int    `yaml:"heartbeat_interval_sec"`
}

// CentralConfig holds the OCPP-J WebSocket endpoint and auth material.
type CentralConfig struct {
	URL               string `yaml:"url"`
	Subprotocol       string `yaml:"subprotocol"`
	ConnectTimeoutSec int    `yaml:"connect_timeout_sec"`
	TLSSkipVerify     bool   `yaml:"tls_skip_verify"`
	BasicAuthUser     string `yaml:"basic_auth_user"`
	BasicAuthPassword string `yaml:"basic_auth_password"`
}

// TransactionConfig governs retry and timeout policy for the message engine.
type TransactionConfig struct {
	MessageAttempts     int `yaml:"message_attempts"`
	MessageRetrySec     int `yaml:"message_retry_interval_sec"`
	TxTimeoutSec        int `yaml:"tx_timeout_sec"`
	MaxRetries          int `yaml:"max_retries"`
	ReconnectBackoffSec int `yaml:"reconnect_backoff_sec"`
	ReconnectMaxBackoff int `yaml:"reconnect_max_backoff_sec"`
}

// PoolConfig sizes the fixed-capacity message pool.
type PoolConfig struct {
	Capacity int `yaml:"capacity"`
}

// ServerConfig configures the local metrics/health HTTP endpoint.
type ServerConfig struct {
	MetricsAddr     string `yaml:"metrics_addr"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	ShutdownSec     int    `yaml:"shutdown_timeout_sec"`
}

// SnapshotConfig controls periodic persistence of engine state across
// restarts.
type SnapshotConfig struct {
	Backend       string `yaml:"backend"` // "file" or "redis"
	Path          string `yaml:"path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisKey      string `yaml:"redis_key"`
	IntervalSec   int    `yaml:"interval_sec"`
	EncryptionKey string `yaml:"encryption_key_hex"`
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the process-wide singleton config, loaded from CONFIG_PATH (or
// config.yaml) on first call and overridden from the environment.
func Get() *Config {
	once.Do(func() {
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file, using defaults", "error", err)
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		instance = cfg
	})
	return instance
}

// LoadConfig loads config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.ChargePoint.ID = getEnv("CP_ID", c.ChargePoint.ID)
	c.ChargePoint.Vendor = getEnv("CP_VENDOR", c.ChargePoint.Vendor)
	c.ChargePoint.Model = getEnv("CP_MODEL", c.ChargePoint.Model)
	if v := getEnvInt("CP_HEARTBEAT_INTERVAL_SEC", 0); v > 0 {
		c.ChargePoint.HeartbeatSec = v
	}

	c.Central.URL = getEnv("CP_CENTRAL_URL", c.Central.URL)
	c.Central.Subprotocol = getEnv("CP_CENTRAL_SUBPROTOCOL", c.Central.Subprotocol)
	c.Central.TLSSkipVerify = getEnvBool("CP_TLS_SKIP_VERIFY", c.Central.TLSSkipVerify)
	c.Central.BasicAuthUser = getEnv("CP_BASIC_AUTH_USER", c.Central.BasicAuthUser)
	c.Central.BasicAuthPassword = getEnv("CP_BASIC_AUTH_PASSWORD", c.Central.BasicAuthPassword)
	if v := getEnvInt("CP_CONNECT_TIMEOUT_SEC", 0); v > 0 {
		c.Central.ConnectTimeoutSec = v
	}

	if v := getEnvInt("CP_TX_MESSAGE_ATTEMPTS", 0); v > 0 {
		c.Transaction.MessageAttempts = v
	}
	if v := getEnvInt("CP_TX_RETRY_INTERVAL_SEC", 0); v > 0 {
		c.Transaction.MessageRetrySec = v
	}
	if v := getEnvInt("CP_TX_TIMEOUT_SEC", 0); v > 0 {
		c.Transaction.TxTimeoutSec = v
	}
	if v := getEnvInt("CP_MAX_RETRIES", 0); v > 0 {
		c.Transaction.MaxRetries = v
	}
	if v := getEnvInt("CP_RECONNECT_BACKOFF_SEC", 0); v > 0 {
		c.Transaction.ReconnectBackoffSec = v
	}
	if v := getEnvInt("CP_RECONNECT_MAX_BACKOFF_SEC", 0); v > 0 {
		c.Transaction.ReconnectMaxBackoff = v
	}

	if v := getEnvInt("CP_POOL_CAPACITY", 0); v > 0 {
		c.Pool.Capacity = v
	}

	c.Server.MetricsAddr = getEnv("CP_METRICS_ADDR", c.Server.MetricsAddr)
	if v := getEnvInt("CP_SERVER_READ_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ReadTimeoutSec = v
	}
	if v := getEnvInt("CP_SERVER_WRITE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.WriteTimeoutSec = v
	}
	if v := getEnvInt("CP_SERVER_SHUTDOWN_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ShutdownSec = v
	}

	c.Snapshot.Backend = getEnv("CP_SNAPSHOT_BACKEND", c.Snapshot.Backend)
	c.Snapshot.Path = getEnv("CP_SNAPSHOT_PATH", c.Snapshot.Path)
	c.Snapshot.RedisAddr = getEnv("CP_SNAPSHOT_REDIS_ADDR", c.Snapshot.RedisAddr)
	c.Snapshot.RedisKey = getEnv("CP_SNAPSHOT_REDIS_KEY", c.Snapshot.RedisKey)
	c.Snapshot.EncryptionKey = getEnv("CP_SNAPSHOT_ENCRYPTION_KEY", c.Snapshot.EncryptionKey)
	if v := getEnvInt("CP_SNAPSHOT_INTERVAL_SEC", 0); v > 0 {
		c.Snapshot.IntervalSec = v
	}

	c.applyDefaults()
}

func (c *Config) applyDefaults() {
	if c.ChargePoint.ID == "" {
		c.ChargePoint.ID = "CP-001"
	}
	if c.ChargePoint.Vendor == "" {
		c.ChargePoint.Vendor = "libmcu"
	}
	if c.ChargePoint.Model == "" {
		c.ChargePoint.Model = "ocpp-go"
	}
	// HeartbeatSec has no non-zero default: a heartbeat interval of 0 means
	// heartbeats are disabled until the Central System sets one via
	// ChangeConfiguration.
	if c.Central.Subprotocol == "" {
		c.Central.Subprotocol = "ocpp1.6"
	}
	if c.Central.ConnectTimeoutSec == 0 {
		c.Central.ConnectTimeoutSec = 10
	}
	if c.Transaction.MessageAttempts == 0 {
		c.Transaction.MessageAttempts = 3
	}
	if c.Transaction.MessageRetrySec == 0 {
		c.Transaction.MessageRetrySec = 60
	}
	if c.Transaction.TxTimeoutSec == 0 {
		c.Transaction.TxTimeoutSec = 10
	}
	if c.Transaction.MaxRetries == 0 {
		c.Transaction.MaxRetries = 1
	}
	if c.Transaction.ReconnectBackoffSec == 0 {
		c.Transaction.ReconnectBackoffSec = 5
	}
	if c.Transaction.ReconnectMaxBackoff == 0 {
		c.Transaction.ReconnectMaxBackoff = 120
	}
	if c.Pool.Capacity == 0 {
		c.Pool.Capacity = 32
	}
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = ":9292"
	}
	if c.Server.ReadTimeoutSec == 0 {
		c.Server.ReadTimeoutSec = 15
	}
	if c.Server.WriteTimeoutSec == 0 {
		c.Server.WriteTimeoutSec = 15
	}
	if c.Server.ShutdownSec == 0 {
		c.Server.ShutdownSec = 10
	}
	if c.Snapshot.Backend == "" {
		c.Snapshot.Backend = "file"
	}
	if c.Snapshot.Path == "" {
		c.Snapshot.Path = "ocpp-engine.snapshot"
	}
	if c.Snapshot.RedisKey == "" {
		c.Snapshot.RedisKey = "ocpp:engine:snapshot"
	}
	if c.Snapshot.IntervalSec == 0 {
		c.Snapshot.IntervalSec = 30
	}
}

// The following methods adapt the on-disk integer-seconds fields to the
// time.Duration shape the engine's Config collaborator interface expects,
// read fresh on every call.

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.ChargePoint.HeartbeatSec) * time.Second
}

func (c *Config) TransactionMessageAttempts() int {
	return c.Transaction.MessageAttempts
}

func (c *Config) TransactionMessageRetryInterval() time.Duration {
	return time.Duration(c.Transaction.MessageRetrySec) * time.Second
}

func (c *Config) TxTimeout() time.Duration {
	return time.Duration(c.Transaction.TxTimeoutSec) * time.Second
}

func (c *Config) MaxTxRetries() int {
	return c.Transaction.MaxRetries
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
