// Package model holds the value types the reconciler and monitor operate on:
// the runtime view of a peer, the durable peer-identity cache entry, and the
// process-wide published snapshot of managed state.
package model

import "time"

// PeerRuntime is the transient, per-peer view reconstructed from a WireGuard
// runtime dump on every parse. It has no persisted counterpart.
type PeerRuntime struct {
	InterfaceName       string
	PublicKey           string
	Endpoint            string // empty if the peer has never connected
	LatestHandshake     int64  // unix seconds; 0 means never
	RxBytes             uint64
	TxBytes             uint64
	PersistentKeepalive int
}

// OnlineWindow is the maximum handshake age, in seconds, for a peer to be
// classified online.
const OnlineWindow = 180 * time.Second

// Status reports the freshness-derived liveness of the peer as of now.
func (p PeerRuntime) Status(now time.Time) RouterStatus {
	if p.LatestHandshake == 0 {
		return StatusOffline
	}
	age := now.Unix() - p.LatestHandshake
	if age < 0 || age >= int64(OnlineWindow/time.Second) {
		return StatusOffline
	}
	return StatusOnline
}

// RouterStatus is the liveness classification of a router or peer.
type RouterStatus int

const (
	StatusOffline RouterStatus = iota
	StatusOnline
)

// IdentityRecord is a peer-identity cache entry: the durable mapping from a
// WireGuard public key back to the router and network it belongs to. The
// authoritative copy, when inventory is unreachable, lives in the commented
// header block of the interface's config file (see the wireguard package's
// render/parse of that block).
type IdentityRecord struct {
	RouterID        string
	RouterName      string
	VPNNetworkID    string
	VPNNetworkName  string
	PeerIP          string // first allowed-IP, prefix stripped
	AllowedIPs      string // full comma-separated list as provisioned
}

// ManagedState is the process-wide, read-copy-updated snapshot of what this
// agent currently believes it manages. It is published atomically at the end
// of every successful reconcile pass (see internal/reconcile.Store).
type ManagedState struct {
	VPNNetworks []VPNNetwork
	Routers     []Router
	LastSyncAt  time.Time
}

// VPNNetwork mirrors inventory.VPNNetwork. The interface name is not stored;
// it is derived from ID with InterfaceName.
type VPNNetwork struct {
	ID               string
	Name             string
	CIDR             string
	ServerPrivateKey string
	ServerPublicKey  string
	ServerEndpoint   string
	DNSServers       []string
}

// Router mirrors inventory.Router plus its peers in the domain's shape.
type Router struct {
	ID           string
	Name         string
	VPNNetworkID string
	Peers        []Peer
}

// Peer mirrors inventory.Peer.
type Peer struct {
	ID         string
	PublicKey  string
	PrivateKey string
	AllowedIPs string
	IsEnabled  bool
}
