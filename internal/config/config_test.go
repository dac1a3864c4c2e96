package config

import (
	"os"
	"testing"
)

func TestLoadConfig_DefaultValues(t *testing.T) {
	clearConfigEnvVars()
	defer clearConfigEnvVars()

	cfg := LoadConfig()

	if cfg.ServerPort != 30110 {
		t.Errorf("Expected ServerPort 30110, got %d", cfg.ServerPort)
	}
	if cfg.RegistryPath != "" {
		t.Errorf("Expected empty RegistryPath, got '%s'", cfg.RegistryPath)
	}
	if cfg.BusyTimeoutMS != 5000 {
		t.Errorf("Expected BusyTimeoutMS 5000, got %d", cfg.BusyTimeoutMS)
	}
	if cfg.IdleShutdownSeconds != 600 {
		t.Errorf("Expected IdleShutdownSeconds 600, got %d", cfg.IdleShutdownSeconds)
	}
	if cfg.ClientSweepSeconds != 60 {
		t.Errorf("Expected ClientSweepSeconds 60, got %d", cfg.ClientSweepSeconds)
	}
}

func TestLoadConfig_EnvironmentVariables(t *testing.T) {
	clearConfigEnvVars()
	defer clearConfigEnvVars()

	os.Setenv("UNL_SERVER_PORT", "40000")
	os.Setenv("UNL_REGISTRY_PATH", "/tmp/unlscan-registry.json")
	os.Setenv("UNL_BUSY_TIMEOUT_MS", "10000")
	os.Setenv("UNL_IDLE_SHUTDOWN_SECONDS", "600")
	os.Setenv("UNL_CLIENT_SWEEP_SECONDS", "30")

	cfg := LoadConfig()

	if cfg.ServerPort != 40000 {
		t.Errorf("Expected ServerPort 40000, got %d", cfg.ServerPort)
	}
	if cfg.RegistryPath != "/tmp/unlscan-registry.json" {
		t.Errorf("Expected RegistryPath '/tmp/unlscan-registry.json', got '%s'", cfg.RegistryPath)
	}
	if cfg.BusyTimeoutMS != 10000 {
		t.Errorf("Expected BusyTimeoutMS 10000, got %d", cfg.BusyTimeoutMS)
	}
	if cfg.IdleShutdownSeconds != 600 {
		t.Errorf("Expected IdleShutdownSeconds 600, got %d", cfg.IdleShutdownSeconds)
	}
	if cfg.ClientSweepSeconds != 30 {
		t.Errorf("Expected ClientSweepSeconds 30, got %d", cfg.ClientSweepSeconds)
	}
}

func TestLoadConfig_InvalidIntegerValues(t *testing.T) {
	clearConfigEnvVars()
	defer clearConfigEnvVars()

	os.Setenv("UNL_SERVER_PORT", "not-a-number")
	os.Setenv("UNL_BUSY_TIMEOUT_MS", "invalid")
	os.Setenv("UNL_IDLE_SHUTDOWN_SECONDS", "abc")
	os.Setenv("UNL_CLIENT_SWEEP_SECONDS", "xyz")

	cfg := LoadConfig()

	if cfg.ServerPort != 30110 {
		t.Errorf("Expected ServerPort 30110 (default), got %d", cfg.ServerPort)
	}
	if cfg.BusyTimeoutMS != 5000 {
		t.Errorf("Expected BusyTimeoutMS 5000 (default), got %d", cfg.BusyTimeoutMS)
	}
	if cfg.IdleShutdownSeconds != 600 {
		t.Errorf("Expected IdleShutdownSeconds 600 (default), got %d", cfg.IdleShutdownSeconds)
	}
	if cfg.ClientSweepSeconds != 60 {
		t.Errorf("Expected ClientSweepSeconds 60 (default), got %d", cfg.ClientSweepSeconds)
	}
}

func TestLoadConfig_NegativeValues(t *testing.T) {
	clearConfigEnvVars()
	defer clearConfigEnvVars()

	os.Setenv("UNL_SERVER_PORT", "-1")
	os.Setenv("UNL_BUSY_TIMEOUT_MS", "-10")
	os.Setenv("UNL_IDLE_SHUTDOWN_SECONDS", "-5")
	os.Setenv("UNL_CLIENT_SWEEP_SECONDS", "-30")

	cfg := LoadConfig()

	if cfg.ServerPort != 30110 {
		t.Errorf("Expected ServerPort 30110 (default for negative), got %d", cfg.ServerPort)
	}
	if cfg.BusyTimeoutMS != 5000 {
		t.Errorf("Expected BusyTimeoutMS 5000 (default for negative), got %d", cfg.BusyTimeoutMS)
	}
	if cfg.IdleShutdownSeconds != 600 {
		t.Errorf("Expected IdleShutdownSeconds 600 (default for negative), got %d", cfg.IdleShutdownSeconds)
	}
	if cfg.ClientSweepSeconds != 60 {
		t.Errorf("Expected ClientSweepSeconds 60 (default for negative), got %d", cfg.ClientSweepSeconds)
	}
}

func TestLoadConfig_ZeroValues(t *testing.T) {
	clearConfigEnvVars()
	defer clearConfigEnvVars()

	// IdleShutdownSeconds of 0 means "never idle-shut-down" and is accepted.
	os.Setenv("UNL_IDLE_SHUTDOWN_SECONDS", "0")
	// ServerPort, BusyTimeoutMS and ClientSweepSeconds must be positive.
	os.Setenv("UNL_SERVER_PORT", "0")
	os.Setenv("UNL_BUSY_TIMEOUT_MS", "0")
	os.Setenv("UNL_CLIENT_SWEEP_SECONDS", "0")

	cfg := LoadConfig()

	if cfg.IdleShutdownSeconds != 0 {
		t.Errorf("Expected IdleShutdownSeconds 0, got %d", cfg.IdleShutdownSeconds)
	}
	if cfg.ServerPort != 30110 {
		t.Errorf("Expected ServerPort 30110 (default for zero), got %d", cfg.ServerPort)
	}
	if cfg.BusyTimeoutMS != 5000 {
		t.Errorf("Expected BusyTimeoutMS 5000 (default for zero), got %d", cfg.BusyTimeoutMS)
	}
	if cfg.ClientSweepSeconds != 60 {
		t.Errorf("Expected ClientSweepSeconds 60 (default for zero), got %d", cfg.ClientSweepSeconds)
	}
}

func TestLoadConfig_EmptyStringValues(t *testing.T) {
	clearConfigEnvVars()
	defer clearConfigEnvVars()

	os.Setenv("UNL_SERVER_PORT", "")
	os.Setenv("UNL_REGISTRY_PATH", "")
	os.Setenv("UNL_BUSY_TIMEOUT_MS", "")

	cfg := LoadConfig()

	if cfg.ServerPort != 30110 {
		t.Errorf("Expected ServerPort 30110 (default for empty), got %d", cfg.ServerPort)
	}
	if cfg.RegistryPath != "" {
		t.Errorf("Expected empty RegistryPath, got '%s'", cfg.RegistryPath)
	}
	if cfg.BusyTimeoutMS != 5000 {
		t.Errorf("Expected BusyTimeoutMS 5000 (default for empty), got %d", cfg.BusyTimeoutMS)
	}
}

func TestLoadConfig_LargeValues(t *testing.T) {
	clearConfigEnvVars()
	defer clearConfigEnvVars()

	os.Setenv("UNL_SERVER_PORT", "65000")
	os.Setenv("UNL_BUSY_TIMEOUT_MS", "60000")
	os.Setenv("UNL_IDLE_SHUTDOWN_SECONDS", "86400")
	os.Setenv("UNL_CLIENT_SWEEP_SECONDS", "3600")

	cfg := LoadConfig()

	if cfg.ServerPort != 65000 {
		t.Errorf("Expected ServerPort 65000, got %d", cfg.ServerPort)
	}
	if cfg.BusyTimeoutMS != 60000 {
		t.Errorf("Expected BusyTimeoutMS 60000, got %d", cfg.BusyTimeoutMS)
	}
	if cfg.IdleShutdownSeconds != 86400 {
		t.Errorf("Expected IdleShutdownSeconds 86400, got %d", cfg.IdleShutdownSeconds)
	}
	if cfg.ClientSweepSeconds != 3600 {
		t.Errorf("Expected ClientSweepSeconds 3600, got %d", cfg.ClientSweepSeconds)
	}
}

// clearConfigEnvVars resets every config-related environment variable.
func clearConfigEnvVars() {
	envVars := []string{
		"UNL_SERVER_PORT",
		"UNL_REGISTRY_PATH",
		"UNL_BUSY_TIMEOUT_MS",
		"UNL_IDLE_SHUTDOWN_SECONDS",
		"UNL_CLIENT_SWEEP_SECONDS",
	}
	for _, envVar := range envVars {
		os.Unsetenv(envVar)
	}
}
