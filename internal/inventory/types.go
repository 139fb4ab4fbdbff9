// Package inventory is the typed client for the fleet inventory service.
//
// The inventory is the single source of truth for which VPN networks and
// routers this agent owns; this package knows nothing about kernel tunnels
// or on-disk config — it only fetches and pushes typed records.
package inventory

// Snapshot is the desired-state view returned by fetching an endpoint's
// resources. It is immutable once returned: callers that need to retain it
// across a reconcile pass should treat it as read-only.
type Snapshot struct {
	VPNNetworks []VPNNetwork `json:"vpn_networks"`
	Routers     []Router     `json:"routers"`
}

// VPNNetwork is one VPN network as described by the inventory.
type VPNNetwork struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	CIDR             string   `json:"cidr"`
	ServerPrivateKey string   `json:"server_private_key,omitempty"`
	ServerPublicKey  string   `json:"server_public_key,omitempty"`
	ServerEndpoint   string   `json:"server_endpoint,omitempty"`
	DNSServers       []string `json:"dns_servers,omitempty"`
}

// Router is one managed edge router as described by the inventory.
// A Router never appears in a snapshot without its parent network; the
// reconciler is responsible for verifying that invariant.
type Router struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	VPNNetworkID  string `json:"vpn_network_id"`
	Peers         []Peer `json:"peers"`
}

// Peer is a single WireGuard peer belonging to a Router.
type Peer struct {
	ID         string `json:"id"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key,omitempty"`
	AllowedIPs string `json:"allowed_ips"`
	IsEnabled  bool   `json:"is_enabled"`
}

// PeerStatsUpdate is the body of PATCH /api/wireguard/peers/{peer_id}/stats.
// LastHandshake is omitted (zero value) when the peer has never handshaked:
// "never" is simply not reported, rather than sent as a zero-value
// timestamp.
type PeerStatsUpdate struct {
	LastHandshake   string  `json:"last_handshake,omitempty"`
	BytesReceived   uint64  `json:"bytes_received"`
	BytesSent       uint64  `json:"bytes_sent"`
	PingSuccess     bool    `json:"ping_success"`
	PingAvgTimeMs   float64 `json:"ping_avg_time_ms"`
	PingPacketLoss  float64 `json:"ping_packet_loss"`
}

// RouterStatus is the enum pushed via PUT /api/routers/{id}.
type RouterStatus int

const (
	RouterStatusOnline  RouterStatus = 1
	RouterStatusOffline RouterStatus = 2
)

// RouterUpdate is the body of PUT /api/routers/{id}. Only non-nil fields are
// sent — the inventory API accepts partial updates.
type RouterUpdate struct {
	Status          *RouterStatus `json:"status,omitempty"`
	LastSeenAt      *string       `json:"lastSeenAt,omitempty"`
	Latency         *int          `json:"latency,omitempty"`
	HardwareInfo    *string       `json:"hardwareInfo,omitempty"`
	FirmwareVersion *string       `json:"firmwareVersion,omitempty"`
	Model           *string       `json:"model,omitempty"`
}
