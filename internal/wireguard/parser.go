package wireguard

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/becape187/vpnserver-agent/internal/model"
)

// minInterfaceFields is the field count of an interface line in
// `wg show all dump` output.
const minInterfaceFields = 4

// minPeerFields is the minimum field count of a peer line in
// `wg show all dump` output.
const minPeerFields = 8

// ParseDump parses the tab-separated output of `wg show all dump`. A line
// with exactly 4 fields describes an interface; a line with 8 or more
// fields describes a peer, inheriting the most recently seen interface
// name from its own first column.
func ParseDump(dump string) []model.PeerRuntime {
	var peers []model.PeerRuntime
	var currentIface string

	for _, line := range strings.Split(dump, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")

		switch {
		case len(fields) >= minPeerFields:
			currentIface = fields[0]
			peers = append(peers, peerFromFields(currentIface, fields))
		case len(fields) == minInterfaceFields:
			currentIface = fields[0]
		}
	}

	return peers
}

func peerFromFields(iface string, fields []string) model.PeerRuntime {
	pr := model.PeerRuntime{
		InterfaceName: iface,
		PublicKey:     fields[1],
	}
	if fields[2] != "(none)" {
		pr.Endpoint = fields[2]
	}
	if ts, err := strconv.ParseInt(fields[4], 10, 64); err == nil {
		pr.LatestHandshake = ts
	}
	if rx, err := strconv.ParseUint(fields[5], 10, 64); err == nil {
		pr.RxBytes = rx
	}
	if tx, err := strconv.ParseUint(fields[6], 10, 64); err == nil {
		pr.TxBytes = tx
	}
	if ka, err := strconv.Atoi(fields[7]); err == nil {
		pr.PersistentKeepalive = ka
	}
	return pr
}

// humanHandshakeRE matches the "N seconds ago" / "N minutes, M seconds ago"
// forms emitted by `wg show <iface>`'s human-readable output.
var humanHandshakeRE = regexp.MustCompile(`(?:(\d+)\s+minutes?,\s*)?(\d+)\s+seconds?\s+ago`)

// ParseHumanHandshakeAge parses a "latest handshake:" value line from
// `wg show <iface>` and returns the age as a duration. It is used as a
// fallback when the dump's handshake timestamp is suspected stale.
func ParseHumanHandshakeAge(text string) (time.Duration, bool) {
	m := humanHandshakeRE.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}

	var minutes, seconds int
	if m[1] != "" {
		minutes, _ = strconv.Atoi(m[1])
	}
	seconds, _ = strconv.Atoi(m[2])

	return time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second, true
}

// PeerShowSection extracts one peer's block from the human-readable output
// of `wg show <iface>`, so a handshake age reparsed from it cannot be
// attributed to the wrong peer on a multi-peer interface.
func PeerShowSection(showOutput, publicKey string) (string, bool) {
	sections := strings.Split(showOutput, "peer: ")
	for _, s := range sections[1:] {
		if strings.HasPrefix(s, publicKey) {
			return s, true
		}
	}
	return "", false
}

// ReconcileHandshake applies a human-format handshake age, reparsed relative
// to now, in place of the dump's timestamp when both sources are available.
// The human-format reading is preferred because the dump's latest_handshake
// field is documented to occasionally go stale.
func ReconcileHandshake(pr model.PeerRuntime, humanText string, now time.Time) model.PeerRuntime {
	age, ok := ParseHumanHandshakeAge(humanText)
	if !ok {
		return pr
	}
	pr.LatestHandshake = now.Add(-age).Unix()
	return pr
}
