package reconcile

import (
	"testing"

	"github.com/becape187/vpnserver-agent/internal/model"
)

func TestComputeInterfaceDiff(t *testing.T) {
	networks := []model.VPNNetwork{
		{ID: "net-aaaaaaaa-1111"}, // -> wg-netaaaaa, matched
		{ID: "net-bbbbbbbb-2222"}, // -> wg-netbbbbb..., new
	}
	existing := []string{
		model.InterfaceName("net-aaaaaaaa-1111"),
		"wg-deadbeef", // orphan: not derived from any network in the snapshot
		"eth0",        // not agent-managed, must be ignored
	}

	diff := ComputeInterfaceDiff(networks, existing)

	if len(diff.Matched) != 1 || diff.Matched[0].ID != "net-aaaaaaaa-1111" {
		t.Errorf("Matched = %+v", diff.Matched)
	}
	if len(diff.Creations) != 1 || diff.Creations[0].ID != "net-bbbbbbbb-2222" {
		t.Errorf("Creations = %+v", diff.Creations)
	}
	if len(diff.Removals) != 1 || diff.Removals[0] != "wg-deadbeef" {
		t.Errorf("Removals = %+v", diff.Removals)
	}
}

func TestFilterRoutableNetworks_DropsOrphanRouters(t *testing.T) {
	networks := []model.VPNNetwork{{ID: "net-1"}}
	routers := []model.Router{
		{ID: "r1", VPNNetworkID: "net-1"},
		{ID: "r2", VPNNetworkID: "net-missing"},
	}

	byNetwork := FilterRoutableNetworks(networks, routers)

	if len(byNetwork["net-1"]) != 1 || byNetwork["net-1"][0].ID != "r1" {
		t.Errorf("byNetwork[net-1] = %+v", byNetwork["net-1"])
	}
	if _, ok := byNetwork["net-missing"]; ok {
		t.Error("expected orphan router's network to be absent")
	}
}

func TestEnabledPeers_FiltersDisabledAndMalformed(t *testing.T) {
	network := model.VPNNetwork{ID: "net-1", Name: "hq"}
	routers := []model.Router{
		{
			ID: "r1", Name: "edge-1", VPNNetworkID: "net-1",
			Peers: []model.Peer{
				{PublicKey: "PUB1", AllowedIPs: "10.8.0.2/32", IsEnabled: true},
				{PublicKey: "PUB2", AllowedIPs: "10.8.0.3/32", IsEnabled: false},
				{PublicKey: "", AllowedIPs: "10.8.0.4/32", IsEnabled: true},
				{PublicKey: "PUB4", AllowedIPs: "", IsEnabled: true},
			},
		},
	}

	out := EnabledPeers(network, routers)
	if len(out) != 1 || out[0].peer.PublicKey != "PUB1" {
		t.Errorf("EnabledPeers = %+v", out)
	}
}
