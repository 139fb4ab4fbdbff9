package reconcile

import (
	"sort"

	"github.com/becape187/vpnserver-agent/internal/model"
)

// InterfaceDiff is the result of phase A: partitioning the kernel's current
// wg-* interfaces against the networks named in a snapshot.
type InterfaceDiff struct {
	// Matched holds networks whose derived interface name already exists.
	Matched []model.VPNNetwork
	// Creations holds networks with no corresponding kernel interface yet.
	Creations []model.VPNNetwork
	// Removals holds kernel interface names prefixed wg- that don't derive
	// from any network in the snapshot — either the network vanished or
	// the interface was created outside the agent.
	Removals []string
}

// ComputeInterfaceDiff partitions networks against the set of interface
// names currently present on the kernel. The caller has already dropped
// routers whose parent network is absent from the snapshot before this
// function runs.
func ComputeInterfaceDiff(networks []model.VPNNetwork, existingInterfaces []string) InterfaceDiff {
	wanted := make(map[string]model.VPNNetwork, len(networks))
	for _, n := range networks {
		wanted[model.InterfaceName(n.ID)] = n
	}

	existing := make(map[string]struct{}, len(existingInterfaces))
	for _, name := range existingInterfaces {
		existing[name] = struct{}{}
	}

	var diff InterfaceDiff
	for name, network := range wanted {
		if _, ok := existing[name]; ok {
			diff.Matched = append(diff.Matched, network)
		} else {
			diff.Creations = append(diff.Creations, network)
		}
	}

	for name := range existing {
		if !model.IsManagedInterfaceName(name) {
			continue
		}
		if _, ok := wanted[name]; !ok {
			diff.Removals = append(diff.Removals, name)
		}
	}

	sort.Slice(diff.Matched, func(i, j int) bool { return diff.Matched[i].ID < diff.Matched[j].ID })
	sort.Slice(diff.Creations, func(i, j int) bool { return diff.Creations[i].ID < diff.Creations[j].ID })
	sort.Strings(diff.Removals)

	return diff
}

// FilterRoutableNetworks drops routers whose parent vpn_network_id is not
// present in the same snapshot — an orphan router is never partially
// applied — and returns the networks paired with their resolvable routers.
func FilterRoutableNetworks(networks []model.VPNNetwork, routers []model.Router) map[string][]model.Router {
	known := make(map[string]struct{}, len(networks))
	for _, n := range networks {
		known[n.ID] = struct{}{}
	}

	byNetwork := make(map[string][]model.Router)
	for _, r := range routers {
		if _, ok := known[r.VPNNetworkID]; !ok {
			continue
		}
		byNetwork[r.VPNNetworkID] = append(byNetwork[r.VPNNetworkID], r)
	}
	return byNetwork
}

// EnabledPeers filters routers down to the peers that should actually be
// rendered into an interface's config: enabled, with a non-empty public key
// and allowed-ips. Disabled or malformed peers are simply omitted.
func EnabledPeers(network model.VPNNetwork, routers []model.Router) []renderInput {
	var out []renderInput
	for _, r := range routers {
		for _, p := range r.Peers {
			if !p.IsEnabled || p.PublicKey == "" || p.AllowedIPs == "" {
				continue
			}
			out = append(out, renderInput{router: r, peer: p, network: network})
		}
	}
	return out
}

// renderInput joins a peer with its parent router and network, the shape
// the wireguard package's RenderPeer is built from.
type renderInput struct {
	router  model.Router
	peer    model.Peer
	network model.VPNNetwork
}
