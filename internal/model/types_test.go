package model

import (
	"testing"
	"time"
)

func TestPeerRuntimeStatus(t *testing.T) {
	now := time.Unix(1_000_000, 0)

	cases := []struct {
		name      string
		handshake int64
		want      RouterStatus
	}{
		{"never", 0, StatusOffline},
		{"fresh", now.Unix() - 10, StatusOnline},
		{"boundary-online", now.Unix() - 179, StatusOnline},
		{"stale", now.Unix() - 200, StatusOffline},
		{"future", now.Unix() + 10, StatusOffline},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := PeerRuntime{LatestHandshake: tc.handshake}
			if got := p.Status(now); got != tc.want {
				t.Errorf("Status() = %v, want %v", got, tc.want)
			}
		})
	}
}
