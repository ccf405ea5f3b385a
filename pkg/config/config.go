package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment selects the Store backend and logging defaults
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// DBConfig holds Postgres connection settings
type DBConfig struct {
	Host           string
	Port           int
	Name           string
	User           string
	Password       string
	MinConnections int
	MaxConnections int
}

// DSN renders the lib/pq connection string
func (d DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		d.Host, d.Port, d.Name, d.User, d.Password)
}

// Config holds settings shared by every tradefleet process.
// Values come from the environment; a local .env file is honored in
// development so the binary runs without a wrapper script.
type Config struct {
	Environment Environment
	LogLevel    string
	LogJSON     bool

	DB DBConfig

	SessionTimeout     time.Duration // SESSION_TIMEOUT_SECONDS
	ExtensionThreshold time.Duration // SESSION_EXTENSION_THRESHOLD
	HeartbeatInterval  time.Duration // WS_HEARTBEAT_INTERVAL

	ReadyFilePath      string
	ActiveLockFilePath string
	ResetOnStartup     bool

	MetricsPort int
	GRPCPort    int

	CheckInterval    time.Duration // lifecycle reconcile tick
	ContainerdSocket string
	ExchangeID       string
	WorkflowFile     string
	DataDir          string
}

// Load reads configuration from the environment
func Load() (*Config, error) {
	// Best effort; absence of a .env file is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{
		Environment: Environment(getEnv("ENVIRONMENT", string(EnvDevelopment))),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogJSON:     getBool("LOG_JSON", false),
		DB: DBConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getInt("DB_PORT", 5432),
			Name:           getEnv("DB_NAME", "tradefleet"),
			User:           getEnv("DB_USER", "tradefleet"),
			Password:       getEnv("DB_PASSWORD", ""),
			MinConnections: getInt("DB_MIN_CONNECTIONS", 2),
			MaxConnections: getInt("DB_MAX_CONNECTIONS", 10),
		},
		SessionTimeout:     getSeconds("SESSION_TIMEOUT_SECONDS", 3600),
		ExtensionThreshold: getSeconds("SESSION_EXTENSION_THRESHOLD", 1800),
		HeartbeatInterval:  getSeconds("WS_HEARTBEAT_INTERVAL", 10),
		ReadyFilePath:      getEnv("READY_FILE_PATH", "/tmp/tradefleet-ready"),
		ActiveLockFilePath: getEnv("ACTIVE_LOCK_FILE_PATH", "/tmp/tradefleet-active"),
		ResetOnStartup:     getBool("RESET_ON_STARTUP", false),
		MetricsPort:        getInt("METRICS_PORT", 9090),
		GRPCPort:           getInt("GRPC_PORT", 50055),
		CheckInterval:      getSeconds("CHECK_INTERVAL_SECONDS", 60),
		ContainerdSocket:   getEnv("CONTAINERD_SOCKET", "/run/containerd/containerd.sock"),
		ExchangeID:         getEnv("EXCHANGE_ID", ""),
		WorkflowFile:       getEnv("WORKFLOW_FILE", "workflows.yaml"),
		DataDir:            getEnv("DATA_DIR", "/var/lib/tradefleet"),
	}

	if cfg.Environment != EnvDevelopment && cfg.Environment != EnvProduction {
		return nil, fmt.Errorf("invalid ENVIRONMENT %q", cfg.Environment)
	}
	if cfg.DB.MaxConnections < cfg.DB.MinConnections {
		return nil, fmt.Errorf("DB_MAX_CONNECTIONS (%d) below DB_MIN_CONNECTIONS (%d)",
			cfg.DB.MaxConnections, cfg.DB.MinConnections)
	}
	if cfg.SessionTimeout <= 0 {
		return nil, fmt.Errorf("SESSION_TIMEOUT_SECONDS must be positive")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getSeconds(key string, def int) time.Duration {
	return time.Duration(getInt(key, def)) * time.Second
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
