package config

import (
	"os"
	"strconv"
)

// Config holds the daemon's environment-driven configuration (§6 Environment).
type Config struct {
	ServerPort          int
	RegistryPath        string
	BusyTimeoutMS       int
	IdleShutdownSeconds int
	ClientSweepSeconds  int
}

// LoadConfig loads configuration from environment variables, falling back to
// the daemon's defaults for anything unset or unparseable.
func LoadConfig() *Config {
	cfg := &Config{
		ServerPort:          30110, // default TCP port, §6 Environment
		RegistryPath:        "",    // resolved by the daemon against its state dir when empty
		BusyTimeoutMS:       5000,
		IdleShutdownSeconds: 600,
		ClientSweepSeconds:  60,
	}

	if registryPath := os.Getenv("UNL_REGISTRY_PATH"); registryPath != "" {
		cfg.RegistryPath = registryPath
	}

	if portStr := os.Getenv("UNL_SERVER_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.ServerPort = port
		}
	}

	if busyStr := os.Getenv("UNL_BUSY_TIMEOUT_MS"); busyStr != "" {
		if busy, err := strconv.Atoi(busyStr); err == nil && busy > 0 {
			cfg.BusyTimeoutMS = busy
		}
	}

	if idleStr := os.Getenv("UNL_IDLE_SHUTDOWN_SECONDS"); idleStr != "" {
		if idle, err := strconv.Atoi(idleStr); err == nil && idle >= 0 {
			cfg.IdleShutdownSeconds = idle
		}
	}

	if sweepStr := os.Getenv("UNL_CLIENT_SWEEP_SECONDS"); sweepStr != "" {
		if sweep, err := strconv.Atoi(sweepStr); err == nil && sweep > 0 {
			cfg.ClientSweepSeconds = sweep
		}
	}

	return cfg
}
