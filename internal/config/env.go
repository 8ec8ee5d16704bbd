// Package config handles environment-based configuration loading and the
// optional seed-node file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// EnvConfig holds all environment-variable-driven settings.
type EnvConfig struct {
	// Directories
	DataDir string
	LogDir  string

	// Engine
	EngineTick        time.Duration
	UpdateQueueSize   int
	CommandQueueSize  int
	PingPrivileged    bool
	DefaultHTTPProbe  time.Duration // per-probe HTTP timeout
	ConnectTimeout    time.Duration // interactive connect bound
	ConnectSSHPort    int

	// Node defaults applied by the front-end and the importer
	DefaultMonitoringInterval time.Duration
	DefaultRetryInterval      time.Duration
	DefaultMaxCheckAttempts   int

	// Stats
	UptimeCacheEntries   int
	UptimeCacheFreshness time.Duration

	// Maintenance
	DBMaintenanceSchedule string

	// Seed
	SeedFile string
}

// LoadEnvConfig reads environment variables and returns a validated
// EnvConfig. Returns an error if any value is invalid.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	// --- Directories ---
	cfg.DataDir = envStr("NODEWATCH_DATA_DIR", "/var/lib/nodewatch")
	cfg.LogDir = envStr("NODEWATCH_LOG_DIR", "/var/log/nodewatch")

	// --- Engine ---
	cfg.EngineTick = envDuration("NODEWATCH_ENGINE_TICK", time.Second, &errs)
	cfg.UpdateQueueSize = envInt("NODEWATCH_UPDATE_QUEUE_SIZE", 64, &errs)
	cfg.CommandQueueSize = envInt("NODEWATCH_COMMAND_QUEUE_SIZE", 16, &errs)
	cfg.PingPrivileged = envBool("NODEWATCH_PING_PRIVILEGED", false, &errs)
	cfg.DefaultHTTPProbe = envDuration("NODEWATCH_HTTP_PROBE_TIMEOUT", 15*time.Second, &errs)
	cfg.ConnectTimeout = envDuration("NODEWATCH_CONNECT_TIMEOUT", 10*time.Second, &errs)
	cfg.ConnectSSHPort = envInt("NODEWATCH_CONNECT_SSH_PORT", 22, &errs)

	// --- Node defaults ---
	cfg.DefaultMonitoringInterval = envDuration("NODEWATCH_DEFAULT_MONITORING_INTERVAL", 60*time.Second, &errs)
	cfg.DefaultRetryInterval = envDuration("NODEWATCH_DEFAULT_RETRY_INTERVAL", 15*time.Second, &errs)
	cfg.DefaultMaxCheckAttempts = envInt("NODEWATCH_DEFAULT_MAX_CHECK_ATTEMPTS", 3, &errs)

	// --- Stats ---
	cfg.UptimeCacheEntries = envInt("NODEWATCH_UPTIME_CACHE_ENTRIES", 1024, &errs)
	cfg.UptimeCacheFreshness = envDuration("NODEWATCH_UPTIME_CACHE_FRESHNESS", 30*time.Second, &errs)

	// --- Maintenance ---
	cfg.DBMaintenanceSchedule = envStr("NODEWATCH_DB_MAINTENANCE_SCHEDULE", "0 7 * * *")

	// --- Seed ---
	cfg.SeedFile = envStr("NODEWATCH_SEED_FILE", "")

	// --- Validation ---
	if cfg.DataDir == "" {
		errs = append(errs, "NODEWATCH_DATA_DIR must not be empty")
	}
	if cfg.EngineTick <= 0 {
		errs = append(errs, "NODEWATCH_ENGINE_TICK must be positive")
	}
	validatePositive("NODEWATCH_UPDATE_QUEUE_SIZE", cfg.UpdateQueueSize, &errs)
	validatePositive("NODEWATCH_COMMAND_QUEUE_SIZE", cfg.CommandQueueSize, &errs)
	if cfg.DefaultHTTPProbe <= 0 {
		errs = append(errs, "NODEWATCH_HTTP_PROBE_TIMEOUT must be positive")
	}
	if cfg.ConnectTimeout <= 0 {
		errs = append(errs, "NODEWATCH_CONNECT_TIMEOUT must be positive")
	}
	validatePort("NODEWATCH_CONNECT_SSH_PORT", cfg.ConnectSSHPort, &errs)
	if cfg.DefaultMonitoringInterval <= 0 {
		errs = append(errs, "NODEWATCH_DEFAULT_MONITORING_INTERVAL must be positive")
	}
	if cfg.DefaultRetryInterval <= 0 {
		errs = append(errs, "NODEWATCH_DEFAULT_RETRY_INTERVAL must be positive")
	}
	if cfg.DefaultRetryInterval > cfg.DefaultMonitoringInterval {
		errs = append(errs, "NODEWATCH_DEFAULT_RETRY_INTERVAL must not exceed NODEWATCH_DEFAULT_MONITORING_INTERVAL")
	}
	validatePositive("NODEWATCH_DEFAULT_MAX_CHECK_ATTEMPTS", cfg.DefaultMaxCheckAttempts, &errs)
	validatePositive("NODEWATCH_UPTIME_CACHE_ENTRIES", cfg.UptimeCacheEntries, &errs)
	if cfg.UptimeCacheFreshness <= 0 {
		errs = append(errs, "NODEWATCH_UPTIME_CACHE_FRESHNESS must be positive")
	}
	if _, err := cron.ParseStandard(cfg.DBMaintenanceSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("NODEWATCH_DB_MAINTENANCE_SCHEDULE: invalid cron expression %q: %v", cfg.DBMaintenanceSchedule, err))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envBool(key string, defaultVal bool, errs *[]string) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid boolean %q", key, v))
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}
