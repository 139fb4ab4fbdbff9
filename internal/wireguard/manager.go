package wireguard

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/becape187/vpnserver-agent/internal/model"
	"github.com/becape187/vpnserver-agent/internal/platform"
)

// Manager materializes one VPN network's WireGuard interface: deriving its
// name, generating a keypair when inventory doesn't supply one, rendering
// its config file, and driving it up or down. It is the only component that
// mutates kernel tunnel state.
type Manager struct {
	ctrl     InterfaceController
	cfg      Config
	logger   *slog.Logger
	identity *IdentityCache
}

// NewManager creates a Manager. Config defaults are applied automatically.
func NewManager(ctrl InterfaceController, cfg Config, identity *IdentityCache, logger *slog.Logger) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		ctrl:     ctrl,
		cfg:      cfg,
		logger:   logger.With("component", "wireguard"),
		identity: identity,
	}
}

// ListInterfaces returns the names of every wg-* interface currently present
// on the kernel, the basis for diffing against desired state.
func (m *Manager) ListInterfaces(ctx context.Context) ([]string, error) {
	return m.ctrl.ListInterfaces(ctx)
}

// ConfigPath returns the on-disk path for a network's interface config.
func (m *Manager) ConfigPath(networkID string) string {
	return filepath.Join(m.cfg.ConfigDir, model.InterfaceName(networkID)+".conf")
}

// WarmIdentityCache rehydrates the identity cache from every existing
// interface config file's commented header blocks — the cold-start
// fallback used before the first inventory fetch has a chance to
// bulk-upsert fresher records. A missing or unreadable config directory is
// not an error — a fresh install simply has nothing to warm from.
func (m *Manager) WarmIdentityCache() {
	entries, err := os.ReadDir(m.cfg.ConfigDir)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("warm identity cache: read config dir failed", "dir", m.cfg.ConfigDir, "error", err)
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".conf" {
			continue
		}
		path := filepath.Join(m.cfg.ConfigDir, entry.Name())
		if err := m.identity.WarmFromConfig(path); err != nil {
			m.logger.Warn("warm identity cache: parse config failed", "path", path, "error", err)
		}
	}
}

// LookupIdentity returns the cached identity for publicKey. On a miss it
// re-reads the interface's config file and regexes the commented header
// blocks, so a peer observed in the runtime dump can be identified even
// when the cache was never warmed from inventory.
func (m *Manager) LookupIdentity(publicKey, interfaceName string) (model.IdentityRecord, bool) {
	if rec, ok := m.identity.Get(publicKey); ok {
		return rec, true
	}
	path := filepath.Join(m.cfg.ConfigDir, interfaceName+".conf")
	if err := m.identity.WarmFromConfig(path); err != nil {
		return model.IdentityRecord{}, false
	}
	return m.identity.Get(publicKey)
}

// SyncIdentityCache bulk-upserts identity records for every peer in the
// snapshot, including disabled peers that are never rendered into a config
// file. Routers whose parent network is absent are skipped.
func (m *Manager) SyncIdentityCache(networks []model.VPNNetwork, routers []model.Router) {
	byID := make(map[string]model.VPNNetwork, len(networks))
	for _, n := range networks {
		byID[n.ID] = n
	}
	for _, r := range routers {
		network, ok := byID[r.VPNNetworkID]
		if !ok {
			continue
		}
		m.identity.LoadFromPeers(network, r, r.Peers)
	}
}

// KeyMaterial is a network's WireGuard server keypair, either supplied by
// inventory or generated locally.
type KeyMaterial struct {
	PrivateKey string
	PublicKey  string
}

// ResolveKeys returns the network's server keypair, generating one via the
// platform tool if inventory did not supply a private key. Once
// generated a keypair never rotates implicitly — callers are expected to
// persist ServerPrivateKey/ServerPublicKey back through the caller's own
// inventory-sync path so the next fetch_snapshot returns the same pair.
func ResolveKeys(ctx context.Context, runner platform.Runner, network model.VPNNetwork) (KeyMaterial, error) {
	if network.ServerPrivateKey != "" {
		return KeyMaterial{PrivateKey: network.ServerPrivateKey, PublicKey: network.ServerPublicKey}, nil
	}

	priv, pub, err := GenerateKeypair(ctx, runner)
	if err != nil {
		return KeyMaterial{}, fmt.Errorf("wireguard: resolve keys for %s: %w", network.ID, err)
	}
	return KeyMaterial{PrivateKey: priv, PublicKey: pub}, nil
}

// EnsureInterface is idempotent: it renders the desired config text for
// network given its enabled peers, writes it only if changed, and brings
// the interface up only when the file changed or the session is down. It
// returns whether the live interface was cycled.
func (m *Manager) EnsureInterface(ctx context.Context, network model.VPNNetwork, keys KeyMaterial, peers []RenderPeer) (cycled bool, err error) {
	name := model.InterfaceName(network.ID)
	configPath := m.ConfigPath(network.ID)

	sort.Slice(peers, func(i, j int) bool {
		if peers[i].RouterID != peers[j].RouterID {
			return peers[i].RouterID < peers[j].RouterID
		}
		return peers[i].PublicKey < peers[j].PublicKey
	})

	text, err := RenderInterface(network, keys.PrivateKey, m.cfg.ListenPort, m.cfg.PersistentKeepalive, peers)
	if err != nil {
		return false, fmt.Errorf("wireguard: ensure interface %s: %w", name, err)
	}

	changed, err := m.ctrl.WriteConfig(ctx, configPath, text)
	if err != nil {
		return false, fmt.Errorf("wireguard: ensure interface %s: %w", name, err)
	}

	if err := m.ctrl.EnsureFirewallRules(ctx, name, network.CIDR, m.cfg.ListenPort); err != nil {
		m.logger.Warn("firewall rule install failed", "interface", name, "error", err)
	}

	for _, p := range peers {
		peerIP, _ := PeerTunnelIP(p.AllowedIPs)
		m.identity.Put(p.PublicKey, model.IdentityRecord{
			RouterID:       p.RouterID,
			RouterName:     p.RouterName,
			VPNNetworkID:   p.VPNNetworkID,
			VPNNetworkName: p.VPNNetworkName,
			PeerIP:         peerIP,
			AllowedIPs:     p.AllowedIPs,
		})
	}

	if !changed {
		// The file being correct does not mean the session is live: after a
		// host reboot the configs survive but the interfaces don't.
		up, err := m.ctrl.InterfaceExists(ctx, name)
		if err != nil {
			return false, fmt.Errorf("wireguard: ensure interface %s: %w", name, err)
		}
		if up {
			m.logger.Debug("interface config unchanged, leaving live session untouched", "interface", name)
			return false, nil
		}
		if err := m.ctrl.Up(ctx, configPath); err != nil {
			return false, fmt.Errorf("wireguard: bring up interface %s: %w", name, err)
		}
		m.logger.Info("interface config unchanged but session was down, brought up", "interface", name)
		return true, nil
	}

	if err := m.ctrl.Down(ctx, name, configPath); err != nil {
		m.logger.Warn("interface down before reapply failed", "interface", name, "error", err)
	}
	if err := m.ctrl.Up(ctx, configPath); err != nil {
		return false, fmt.Errorf("wireguard: bring up interface %s: %w", name, err)
	}

	m.logger.Info("interface config changed, cycled live session", "interface", name)
	return true, nil
}

// RemoveInterface brings the interface for networkID down and deletes its
// config file. Both operations tolerate "already in that state".
func (m *Manager) RemoveInterface(ctx context.Context, networkID string) error {
	return m.RemoveInterfaceByName(ctx, model.InterfaceName(networkID))
}

// RemoveInterfaceByName is RemoveInterface for callers that only have the
// kernel interface name — notably phase A's orphan removals, where the
// network that produced the name is no longer in the snapshot.
func (m *Manager) RemoveInterfaceByName(ctx context.Context, name string) error {
	configPath := filepath.Join(m.cfg.ConfigDir, name+".conf")

	if err := m.ctrl.Down(ctx, name, configPath); err != nil {
		return fmt.Errorf("wireguard: remove interface %s: %w", name, err)
	}
	if err := m.ctrl.RemoveConfig(configPath); err != nil {
		return fmt.Errorf("wireguard: remove interface %s: %w", name, err)
	}

	m.logger.Info("interface removed", "interface", name)
	return nil
}
