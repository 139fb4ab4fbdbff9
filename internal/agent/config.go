// Package agent wires the ambient concerns of the vpnagentd binary:
// configuration loading and structured logging. It holds no reconciler
// logic of its own.
package agent

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/becape187/vpnserver-agent/internal/inventory"
	"github.com/becape187/vpnserver-agent/internal/monitor"
	"github.com/becape187/vpnserver-agent/internal/reconcile"
	"github.com/becape187/vpnserver-agent/internal/wireguard"
)

// DefaultLogLevel is the default log level.
const DefaultLogLevel = "info"

// DefaultPort is the default port for the status/provisioning HTTP
// surface. The surface itself lives outside this agent; the field is
// carried so an environment configured for the full deployment loads
// without error.
const DefaultPort = 8000

// AgentConfig is the top-level configuration for the vpnagentd agent. It
// aggregates every subsystem's Config plus the agent-wide fields: the
// endpoint this instance owns, and the log level.
//
// Fields are populated in two layers, mirroring the teacher's layered
// config: an optional YAML file supplies a base (useful for fleet-wide
// defaults baked into an image), and the documented environment variables
// are then applied as overrides.
type AgentConfig struct {
	// VPNServerEndpoint is this instance's endpoint identity. Populated
	// from VPN_SERVER_ENDPOINT; its absence is not a Validate error — an
	// empty endpoint means "own nothing" and is logged as a warning by
	// the caller.
	VPNServerEndpoint string `yaml:"vpn_server_endpoint"`

	// LogLevel is the log level: "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// Port is the status/provisioning HTTP surface's listen port. Carried
	// for config-file compatibility; vpnagentd does not bind it.
	Port int `yaml:"port"`

	Inventory inventory.Config `yaml:"inventory"`
	Reconcile reconcile.Config `yaml:"reconcile"`
	Monitor   monitor.Config   `yaml:"monitor"`
	WireGuard wireguard.Config `yaml:"wireguard"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *AgentConfig) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	c.Inventory.ApplyDefaults()
	c.Reconcile.ApplyDefaults()
	c.Monitor.ApplyDefaults()
	c.WireGuard.ApplyDefaults()
}

// Validate checks that required fields are set and values are acceptable.
// VPNServerEndpoint is deliberately not required here: an agent that owns
// nothing yet is a valid (if idle) configuration, not a startup error.
func (c *AgentConfig) Validate() error {
	if err := c.Inventory.Validate(); err != nil {
		return err
	}
	if err := c.Reconcile.Validate(); err != nil {
		return err
	}
	if err := c.Monitor.Validate(); err != nil {
		return err
	}
	if err := c.WireGuard.Validate(); err != nil {
		return err
	}
	return nil
}

// LoadConfig builds an AgentConfig from an optional YAML file at path
// (a missing file is not an error — environment-only configuration is the
// common case) layered under the documented environment variables, applies
// defaults, and validates the result.
func LoadConfig(path string) (*AgentConfig, error) {
	var cfg AgentConfig

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("agent: config: parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Environment-only configuration; not an error.
		default:
			return nil, fmt.Errorf("agent: config: read %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays the documented environment variables onto cfg. A
// variable that is unset or unparsable leaves the existing (YAML-file or
// zero) value untouched, so malformed values fall back to the file/default
// rather than aborting startup.
func applyEnv(cfg *AgentConfig) {
	if v, ok := os.LookupEnv("VPN_SERVER_ENDPOINT"); ok {
		cfg.VPNServerEndpoint = v
	}
	if v, ok := os.LookupEnv("API_C_SHARP_URL"); ok {
		cfg.Inventory.BaseURL = v
	}
	if v, ok := os.LookupEnv("API_C_SHARP_VERIFY_SSL"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Inventory.TLSInsecureSkipVerify = !b
		}
	}
	if v, ok := os.LookupEnv("SYNC_INTERVAL_SECONDS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reconcile.Interval = time.Duration(n) * time.Second
		}
	}
	if v, ok := os.LookupEnv("MONITOR_INTERVAL_SECONDS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Monitor.Interval = time.Duration(n) * time.Second
		}
	}
	if v, ok := os.LookupEnv("PING_ATTEMPTS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Monitor.PingAttempts = n
		}
	}
	if v, ok := os.LookupEnv("PING_TIMEOUT_MS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Monitor.PingTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if v, ok := os.LookupEnv("MAX_CONCURRENT_PINGS"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Monitor.MaxConcurrentPings = n
		}
	}
	if v, ok := os.LookupEnv("WIREGUARD_CONFIG_DIR"); ok {
		cfg.WireGuard.ConfigDir = v
	}
	if v, ok := os.LookupEnv("PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
}
