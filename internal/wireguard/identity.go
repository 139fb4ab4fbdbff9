package wireguard

import (
	"os"
	"regexp"
	"sync"

	"github.com/becape187/vpnserver-agent/internal/model"
)

// IdentityCache is the process-wide mapping from a WireGuard public key to
// the router/network identity it belongs to. It has three writers: inventory
// sync (bulk upsert), the config builder (on every emit), and the runtime
// parser on cache miss, which re-reads the interface config file and regexes
// the preceding identity comment block written by RenderInterface.
type IdentityCache struct {
	mu      sync.RWMutex
	records map[string]model.IdentityRecord // public key -> record
}

// NewIdentityCache returns an empty IdentityCache.
func NewIdentityCache() *IdentityCache {
	return &IdentityCache{records: make(map[string]model.IdentityRecord)}
}

// Put inserts or overwrites the record for publicKey.
func (c *IdentityCache) Put(publicKey string, record model.IdentityRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[publicKey] = record
}

// Get returns the record for publicKey and whether it was present.
func (c *IdentityCache) Get(publicKey string) (model.IdentityRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[publicKey]
	return rec, ok
}

// LoadFromPeers bulk-upserts records derived from an inventory snapshot. It
// does not clear existing entries: a peer absent from the current snapshot
// may still be present in on-disk config and worth remembering.
func (c *IdentityCache) LoadFromPeers(network model.VPNNetwork, router model.Router, peers []model.Peer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range peers {
		if p.PublicKey == "" {
			continue
		}
		peerIP, _ := PeerTunnelIP(p.AllowedIPs)
		c.records[p.PublicKey] = model.IdentityRecord{
			RouterID:       router.ID,
			RouterName:     router.Name,
			VPNNetworkID:   network.ID,
			VPNNetworkName: network.Name,
			PeerIP:         peerIP,
			AllowedIPs:     p.AllowedIPs,
		}
	}
}

// identityBlockRE captures one full commented identity block emitted by
// RenderInterface, in source order, immediately preceding its [Peer] stanza.
var identityBlockRE = regexp.MustCompile(
	`(?m)^# Router: (.*)\n# Router ID: (.*)\n# VPN Network: (.*)\n# VPN Network ID: (.*)\n# Peer IP: (.*)\n# Public Key: (.*)\n`,
)

// RehydrateMap re-derives identity records by regexing the commented header
// blocks of an existing interface config file, keyed by public key. This is
// the cold-start fallback used when inventory is unreachable but the agent
// must still know which peer is which.
func RehydrateMap(configPath string) (map[string]model.IdentityRecord, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	matches := identityBlockRE.FindAllStringSubmatch(string(data), -1)
	out := make(map[string]model.IdentityRecord, len(matches))
	for _, m := range matches {
		publicKey := m[6]
		out[publicKey] = model.IdentityRecord{
			RouterName:     m[1],
			RouterID:       m[2],
			VPNNetworkName: m[3],
			VPNNetworkID:   m[4],
			PeerIP:         m[5],
		}
	}
	return out, nil
}

// WarmFromConfig merges any identity records recovered from configPath into
// the cache, without overwriting entries already present (inventory-sourced
// entries take precedence over the on-disk fallback).
func (c *IdentityCache) WarmFromConfig(configPath string) error {
	recovered, err := RehydrateMap(configPath)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for pk, rec := range recovered {
		if _, exists := c.records[pk]; !exists {
			c.records[pk] = rec
		}
	}
	return nil
}
