package wireguard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/becape187/vpnserver-agent/internal/model"
)

func TestIdentityCache_PutGet(t *testing.T) {
	c := NewIdentityCache()
	c.Put("PUBKEY1", model.IdentityRecord{RouterID: "r1", RouterName: "edge-1"})

	rec, ok := c.Get("PUBKEY1")
	if !ok || rec.RouterID != "r1" {
		t.Fatalf("Get = %+v, %v", rec, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestIdentityCache_LoadFromPeers(t *testing.T) {
	c := NewIdentityCache()
	network := model.VPNNetwork{ID: "net-1", Name: "hq"}
	router := model.Router{ID: "r1", Name: "edge-1"}
	peers := []model.Peer{
		{PublicKey: "PUB1", AllowedIPs: "10.8.0.5/24, 192.168.0.0/16", IsEnabled: true},
		{PublicKey: "PUB2", AllowedIPs: "10.8.0.6/32", IsEnabled: false}, // disabled peers are remembered too
		{PublicKey: "", AllowedIPs: "10.8.0.7/32", IsEnabled: true},
	}

	c.LoadFromPeers(network, router, peers)

	rec, ok := c.Get("PUB1")
	if !ok {
		t.Fatal("expected PUB1 record")
	}
	if rec.PeerIP != "10.8.0.5" || rec.VPNNetworkID != "net-1" || rec.RouterName != "edge-1" {
		t.Errorf("record = %+v", rec)
	}
	if _, ok := c.Get("PUB2"); !ok {
		t.Error("expected disabled peer to be cached")
	}
	if _, ok := c.Get(""); ok {
		t.Error("expected empty public key to be skipped")
	}
}

func TestWarmFromConfig(t *testing.T) {
	network := model.VPNNetwork{ID: "net-1", Name: "hq", CIDR: "10.8.0.0/24"}
	peers := []RenderPeer{
		{RouterID: "r1", RouterName: "edge-1", VPNNetworkID: "net-1", VPNNetworkName: "hq", PublicKey: "PUBKEY1", AllowedIPs: "10.8.0.5/32"},
	}
	text, err := RenderInterface(network, "PRIVKEY", 51820, 25, peers)
	if err != nil {
		t.Fatalf("RenderInterface: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "wg-net1.conf")
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c := NewIdentityCache()
	if err := c.WarmFromConfig(path); err != nil {
		t.Fatalf("WarmFromConfig: %v", err)
	}

	rec, ok := c.Get("PUBKEY1")
	if !ok {
		t.Fatal("expected PUBKEY1 to be rehydrated")
	}
	if rec.RouterID != "r1" || rec.RouterName != "edge-1" || rec.PeerIP != "10.8.0.5" {
		t.Errorf("unexpected record: %+v", rec)
	}
}
