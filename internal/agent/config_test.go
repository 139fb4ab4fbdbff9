package agent

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestAgentConfig_ApplyDefaults(t *testing.T) {
	var cfg AgentConfig
	cfg.ApplyDefaults()

	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, DefaultLogLevel)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.Reconcile.Interval == 0 {
		t.Error("Reconcile.Interval not defaulted")
	}
	if cfg.Monitor.MaxConcurrentPings == 0 {
		t.Error("Monitor.MaxConcurrentPings not defaulted")
	}
	if cfg.WireGuard.ConfigDir == "" {
		t.Error("WireGuard.ConfigDir not defaulted")
	}
}

func TestAgentConfig_Validate_RequiresInventoryBaseURL(t *testing.T) {
	var cfg AgentConfig
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing Inventory.BaseURL")
	}
	cfg.Inventory.BaseURL = "https://inventory.example.com"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadConfig_MissingFileIsNotAnError(t *testing.T) {
	t.Setenv("API_C_SHARP_URL", "https://inventory.example.com")
	t.Setenv("VPN_SERVER_ENDPOINT", "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Inventory.BaseURL != "https://inventory.example.com" {
		t.Errorf("Inventory.BaseURL = %q, want env-supplied value", cfg.Inventory.BaseURL)
	}
}

func TestLoadConfig_YAMLLayeredUnderEnv(t *testing.T) {
	yaml := `
log_level: debug
inventory:
  baseurl: https://from-yaml.example.com
wireguard:
  configdir: /tmp/wg-from-yaml
`
	path := writeTemp(t, yaml)

	t.Setenv("VPN_SERVER_ENDPOINT", "ep-1")
	t.Setenv("WIREGUARD_CONFIG_DIR", "/tmp/wg-from-env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q (from YAML)", cfg.LogLevel, "debug")
	}
	if cfg.VPNServerEndpoint != "ep-1" {
		t.Errorf("VPNServerEndpoint = %q, want %q (from env)", cfg.VPNServerEndpoint, "ep-1")
	}
	// Env overrides the YAML-layered base for the same field.
	if cfg.WireGuard.ConfigDir != "/tmp/wg-from-env" {
		t.Errorf("WireGuard.ConfigDir = %q, want env override", cfg.WireGuard.ConfigDir)
	}
}

func TestApplyEnv_Durations(t *testing.T) {
	t.Setenv("SYNC_INTERVAL_SECONDS", "45")
	t.Setenv("MONITOR_INTERVAL_SECONDS", "90")
	t.Setenv("PING_TIMEOUT_MS", "500")
	t.Setenv("PING_ATTEMPTS", "5")
	t.Setenv("MAX_CONCURRENT_PINGS", "20")
	t.Setenv("API_C_SHARP_URL", "https://inventory.example.com")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Reconcile.Interval != 45*time.Second {
		t.Errorf("Reconcile.Interval = %v, want 45s", cfg.Reconcile.Interval)
	}
	if cfg.Monitor.Interval != 90*time.Second {
		t.Errorf("Monitor.Interval = %v, want 90s", cfg.Monitor.Interval)
	}
	if cfg.Monitor.PingTimeout != 500*time.Millisecond {
		t.Errorf("Monitor.PingTimeout = %v, want 500ms", cfg.Monitor.PingTimeout)
	}
	if cfg.Monitor.PingAttempts != 5 {
		t.Errorf("Monitor.PingAttempts = %d, want 5", cfg.Monitor.PingAttempts)
	}
	if cfg.Monitor.MaxConcurrentPings != 20 {
		t.Errorf("Monitor.MaxConcurrentPings = %d, want 20", cfg.Monitor.MaxConcurrentPings)
	}
}
