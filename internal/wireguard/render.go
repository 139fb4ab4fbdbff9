package wireguard

import (
	"fmt"
	"net"
	"strings"

	"github.com/becape187/vpnserver-agent/internal/model"
)

// identityHeaderRule is the rule of `=` characters bracketing each peer's
// commented identity block.
const identityHeaderRule = "# ============================================"

// RenderPeer is everything the config builder needs about one enabled peer,
// already joined with its parent router and network for the identity block.
type RenderPeer struct {
	RouterID       string
	RouterName     string
	VPNNetworkID   string
	VPNNetworkName string
	PublicKey      string
	AllowedIPs     string
}

// ServerAddress computes the network's server address (network_address + 1)
// and prefix length from its CIDR.
func ServerAddress(cidr string) (addr string, prefix int, err error) {
	_, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return "", 0, fmt.Errorf("wireguard: parse CIDR %q: %w", cidr, err)
	}
	ones, _ := ipNet.Mask.Size()
	network := ipNet.IP.To4()
	if network == nil {
		return "", 0, fmt.Errorf("wireguard: CIDR %q is not IPv4", cidr)
	}

	serverIP := make(net.IP, len(network))
	copy(serverIP, network)
	serverIP[3]++

	return serverIP.String(), ones, nil
}

// NormalizeAllowedIPs coerces the first comma-separated element to a /32
// host route and leaves the remaining elements untouched.
func NormalizeAllowedIPs(allowedIPs string) (string, error) {
	parts := strings.Split(allowedIPs, ",")
	if len(parts) == 0 || strings.TrimSpace(parts[0]) == "" {
		return "", fmt.Errorf("wireguard: empty allowed-ips")
	}

	first := strings.TrimSpace(parts[0])
	host, _, ok := strings.Cut(first, "/")
	if !ok {
		host = first
	}
	if net.ParseIP(host) == nil {
		return "", fmt.Errorf("wireguard: invalid peer address %q", host)
	}

	out := make([]string, 0, len(parts))
	out = append(out, host+"/32")
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	return strings.Join(out, ", "), nil
}

// PeerTunnelIP returns the first allowed-IP with any prefix stripped.
func PeerTunnelIP(allowedIPs string) (string, error) {
	first := strings.TrimSpace(strings.Split(allowedIPs, ",")[0])
	if first == "" {
		return "", fmt.Errorf("wireguard: empty allowed-ips")
	}
	host, _, _ := strings.Cut(first, "/")
	if net.ParseIP(host) == nil {
		return "", fmt.Errorf("wireguard: invalid peer address %q", host)
	}
	return host, nil
}

// RenderInterface produces the serialized config text for one interface, in
// the exact grammar the runtime parser and cold-start identity rehydration
// both depend on. peers must already be sorted in (router_id, public_key)
// order and filtered to enabled peers with non-empty public_key/allowed_ips.
func RenderInterface(network model.VPNNetwork, privateKey string, listenPort, keepalive int, peers []RenderPeer) (string, error) {
	serverAddr, prefix, err := ServerAddress(network.CIDR)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "PrivateKey = %s\n", privateKey)
	fmt.Fprintf(&b, "Address = %s/%d\n", serverAddr, prefix)
	fmt.Fprintf(&b, "ListenPort = %d\n", listenPort)
	if len(network.DNSServers) > 0 {
		fmt.Fprintf(&b, "DNS = %s\n", strings.Join(network.DNSServers, ", "))
	}
	b.WriteString("\n")

	for _, p := range peers {
		normalized, err := NormalizeAllowedIPs(p.AllowedIPs)
		if err != nil {
			return "", fmt.Errorf("wireguard: render peer %s: %w", p.PublicKey, err)
		}
		peerIP, err := PeerTunnelIP(p.AllowedIPs)
		if err != nil {
			return "", fmt.Errorf("wireguard: render peer %s: %w", p.PublicKey, err)
		}

		b.WriteString(identityHeaderRule + "\n")
		fmt.Fprintf(&b, "# Router: %s\n", p.RouterName)
		fmt.Fprintf(&b, "# Router ID: %s\n", p.RouterID)
		fmt.Fprintf(&b, "# VPN Network: %s\n", p.VPNNetworkName)
		fmt.Fprintf(&b, "# VPN Network ID: %s\n", p.VPNNetworkID)
		fmt.Fprintf(&b, "# Peer IP: %s\n", peerIP)
		fmt.Fprintf(&b, "# Public Key: %s\n", p.PublicKey)
		b.WriteString(identityHeaderRule + "\n")
		b.WriteString("[Peer]\n")
		fmt.Fprintf(&b, "PublicKey = %s\n", p.PublicKey)
		fmt.Fprintf(&b, "AllowedIPs = %s\n", normalized)
		fmt.Fprintf(&b, "PersistentKeepalive = %d\n", keepalive)
		b.WriteString("\n")
	}

	return b.String(), nil
}

// NormalizeText strips trailing blank lines and per-line trailing
// whitespace so two renderings that differ only in inconsequential
// whitespace compare equal.
func NormalizeText(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
