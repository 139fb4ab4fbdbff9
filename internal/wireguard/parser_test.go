package wireguard

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/becape187/vpnserver-agent/internal/model"
)

func TestParseDump(t *testing.T) {
	dump := "wg-a1b2c3d4\tSERVERPRIV\t51820\toff\n" +
		"wg-a1b2c3d4\tPEERPUB1\t1.2.3.4:51820\t10.8.0.5/32\t1700000000\t1024\t2048\t25\n" +
		"wg-a1b2c3d4\tPEERPUB2\t(none)\t10.8.0.6/32\t0\t0\t0\t25\n"

	want := []model.PeerRuntime{
		{
			InterfaceName:       "wg-a1b2c3d4",
			PublicKey:           "PEERPUB1",
			Endpoint:            "1.2.3.4:51820",
			LatestHandshake:     1700000000,
			RxBytes:             1024,
			TxBytes:             2048,
			PersistentKeepalive: 25,
		},
		{
			InterfaceName:       "wg-a1b2c3d4",
			PublicKey:           "PEERPUB2",
			PersistentKeepalive: 25,
		},
	}

	got := ParseDump(dump)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseDump() mismatch (-want +got):\n%s", diff)
	}
}

func TestPeerShowSection(t *testing.T) {
	show := "interface: wg-a1b2c3d4\n  public key: SERVERPUB\n\n" +
		"peer: PEERPUB1\n  endpoint: 1.2.3.4:51820\n  latest handshake: 5 minutes, 2 seconds ago\n\n" +
		"peer: PEERPUB2\n  latest handshake: 12 seconds ago\n"

	section, ok := PeerShowSection(show, "PEERPUB2")
	if !ok {
		t.Fatal("expected PEERPUB2 section")
	}
	age, ok := ParseHumanHandshakeAge(section)
	if !ok || age != 12*time.Second {
		t.Errorf("age = %v, %v; want 12s", age, ok)
	}

	if _, ok := PeerShowSection(show, "MISSING"); ok {
		t.Error("expected no section for unknown key")
	}
}

func TestParseHumanHandshakeAge(t *testing.T) {
	cases := []struct {
		text string
		want time.Duration
	}{
		{"latest handshake: 42 seconds ago", 42 * time.Second},
		{"latest handshake: 3 minutes, 10 seconds ago", 3*time.Minute + 10*time.Second},
	}
	for _, tc := range cases {
		got, ok := ParseHumanHandshakeAge(tc.text)
		if !ok {
			t.Fatalf("ParseHumanHandshakeAge(%q): no match", tc.text)
		}
		if got != tc.want {
			t.Errorf("ParseHumanHandshakeAge(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
