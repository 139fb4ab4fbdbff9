package wireguard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/becape187/vpnserver-agent/internal/fsutil"
	"github.com/becape187/vpnserver-agent/internal/model"
	"github.com/becape187/vpnserver-agent/internal/platform"
)

// InterfaceController abstracts OS-level WireGuard and firewall operations
// for testability. The production implementation shells out to wg,
// wg-quick, and iptables; the reconciler never touches netlink directly.
type InterfaceController interface {
	// InterfaceExists reports whether name is a live kernel interface.
	InterfaceExists(ctx context.Context, name string) (bool, error)
	// ListInterfaces returns the names of every wg-* interface currently
	// present on the kernel, managed or not (the caller filters).
	ListInterfaces(ctx context.Context) ([]string, error)
	// WriteConfig writes text to the interface's config file atomically,
	// at configPath, creating parent directories as needed, after
	// validating it with the platform's config-strip equivalent.
	WriteConfig(ctx context.Context, configPath, text string) (changed bool, err error)
	// Up brings the interface up via `wg-quick up`. Idempotent.
	Up(ctx context.Context, configPath string) error
	// Down brings the interface down via `wg-quick down`. Tolerant of an
	// already-down interface.
	Down(ctx context.Context, name, configPath string) error
	// RemoveConfig deletes the interface's config file. Tolerant of a
	// missing file.
	RemoveConfig(configPath string) error
	// EnsureFirewallRules installs the NAT/forward rules for name, check-
	// then-add, idempotently. Absence of iptables is logged by the caller,
	// not fatal.
	EnsureFirewallRules(ctx context.Context, name, vpnCIDR string, listenPort int) error
}

// ExecController is the production InterfaceController, backed by
// platform.Runner invocations of wg-quick and iptables.
type ExecController struct {
	runner platform.Runner
}

// NewExecController returns an ExecController backed by runner.
func NewExecController(runner platform.Runner) *ExecController {
	return &ExecController{runner: runner}
}

// InterfaceExists shells out to `ip link show` to check kernel state.
func (c *ExecController) InterfaceExists(ctx context.Context, name string) (bool, error) {
	_, err := c.runner.Run(ctx, "ip", "link", "show", name)
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, fmt.Errorf("wireguard: check interface %s: %w", name, err)
}

// ListInterfaces shells out to `ip -o link show` and returns every interface
// name carrying the wg- prefix.
func (c *ExecController) ListInterfaces(ctx context.Context) ([]string, error) {
	result, err := c.runner.Run(ctx, "ip", "-o", "link", "show")
	if err != nil {
		return nil, fmt.Errorf("wireguard: list interfaces: %w", err)
	}

	var names []string
	for _, line := range strings.Split(result.Stdout, "\n") {
		fields := strings.Fields(line)
		// Format: "<idx>: <name>: <flags> ..." — the name field carries a
		// trailing colon and, for some link types, an "@peer" suffix.
		if len(fields) < 2 {
			continue
		}
		name := strings.TrimSuffix(fields[1], ":")
		name, _, _ = strings.Cut(name, "@")
		if model.IsManagedInterfaceName(name) {
			names = append(names, name)
		}
	}
	return names, nil
}

// WriteConfig writes text atomically via a temp-file-then-rename, only if it
// differs semantically from the existing file. Before the
// rename, the temp file is validated by invoking `wg-quick strip` against
// it; a config that fails validation never replaces a known-good file.
func (c *ExecController) WriteConfig(ctx context.Context, configPath, text string) (bool, error) {
	existing, err := os.ReadFile(configPath)
	if err == nil && NormalizeText(string(existing)) == NormalizeText(text) {
		return false, nil
	}

	dir, name := filepath.Split(configPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return false, fmt.Errorf("wireguard: create config dir %s: %w", dir, err)
	}

	validate := func(tmpPath string) error {
		if _, err := c.runner.Run(ctx, "wg-quick", "strip", tmpPath); err != nil {
			return fmt.Errorf("wireguard: validate config %s: %w", configPath, err)
		}
		return nil
	}
	if err := fsutil.WriteFileAtomicValidated(dir, name, []byte(text), 0o600, validate); err != nil {
		return false, fmt.Errorf("wireguard: write config %s: %w", configPath, err)
	}
	return true, nil
}

// Up brings the interface described by configPath up via wg-quick.
func (c *ExecController) Up(ctx context.Context, configPath string) error {
	if _, err := c.runner.Run(ctx, "wg-quick", "up", configPath); err != nil {
		return fmt.Errorf("wireguard: wg-quick up %s: %w", configPath, err)
	}
	return nil
}

// Down brings name down via wg-quick, tolerating an interface that is
// already down or absent.
func (c *ExecController) Down(ctx context.Context, name, configPath string) error {
	exists, err := c.InterfaceExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if _, err := c.runner.Run(ctx, "wg-quick", "down", configPath); err != nil {
		return fmt.Errorf("wireguard: wg-quick down %s: %w", configPath, err)
	}
	return nil
}

// RemoveConfig deletes the config file, tolerating its absence.
func (c *ExecController) RemoveConfig(configPath string) error {
	if err := os.Remove(configPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("wireguard: remove config %s: %w", configPath, err)
	}
	return nil
}

// EnsureFirewallRules installs three rule classes: accept inbound UDP on
// the listen port, accept all traffic on the tunnel
// interface in both directions, and MASQUERADE the VPN CIDR out the default
// route's egress interface. Every rule is installed check-then-add so
// repeated calls are no-ops.
func (c *ExecController) EnsureFirewallRules(ctx context.Context, name, vpnCIDR string, listenPort int) error {
	outIface, err := c.defaultEgressInterface(ctx)
	if err != nil || outIface == "" {
		outIface = "eth0"
	}

	rules := [][]string{
		{"-C", "INPUT", "-p", "udp", "--dport", fmt.Sprint(listenPort), "-j", "ACCEPT"},
		{"-C", "FORWARD", "-i", name, "-j", "ACCEPT"},
		{"-C", "FORWARD", "-o", name, "-j", "ACCEPT"},
		{"-C", "INPUT", "-i", name, "-j", "ACCEPT"},
		{"-C", "OUTPUT", "-o", name, "-j", "ACCEPT"},
	}
	for _, checkArgs := range rules {
		if err := c.checkThenAdd(ctx, "filter", checkArgs); err != nil {
			return err
		}
	}

	natCheck := []string{"-t", "nat", "-C", "POSTROUTING", "-s", vpnCIDR, "-o", outIface, "-j", "MASQUERADE"}
	return c.checkThenAdd(ctx, "nat", natCheck)
}

// checkThenAdd runs an iptables -C check (fully specified args including the
// -t table when non-default) and, if it fails, retries with -A instead of -C.
func (c *ExecController) checkThenAdd(ctx context.Context, table string, checkArgs []string) error {
	if _, err := c.runner.Run(ctx, "iptables", checkArgs...); err == nil {
		return nil // rule already present
	}

	addArgs := make([]string, len(checkArgs))
	copy(addArgs, checkArgs)
	for i, a := range addArgs {
		if a == "-C" {
			addArgs[i] = "-A"
			break
		}
	}

	// A missing iptables binary surfaces here too; the caller logs the
	// failure and carries on, it is not fatal to the interface.
	if _, err := c.runner.Run(ctx, "iptables", addArgs...); err != nil {
		return fmt.Errorf("wireguard: install %s rule: %w", table, err)
	}
	return nil
}

func (c *ExecController) defaultEgressInterface(ctx context.Context) (string, error) {
	result, err := c.runner.Run(ctx, "ip", "route", "show", "default")
	if err != nil {
		return "", err
	}
	fields := strings.Fields(result.Stdout)
	for i, f := range fields {
		if f == "dev" && i+1 < len(fields) {
			return fields[i+1], nil
		}
	}
	return "", nil
}
