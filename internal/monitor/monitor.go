// Package monitor implements the liveness pass: for every router this agent
// manages, classify its first enabled peer's freshness from the WireGuard
// runtime dump, corroborate with a bounded ICMP probe, and push both back to
// inventory. The monitor never mutates kernel tunnel state — only the
// reconciler does that.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/becape187/vpnserver-agent/internal/inventory"
	"github.com/becape187/vpnserver-agent/internal/model"
	"github.com/becape187/vpnserver-agent/internal/platform"
	"github.com/becape187/vpnserver-agent/internal/reconcile"
	"github.com/becape187/vpnserver-agent/internal/wireguard"
)

// timeFormat is the ISO-8601 UTC format the inventory expects for
// last_handshake / lastSeenAt, trailing "Z" included.
const timeFormat = "2006-01-02T15:04:05Z"

// InventoryClient is the subset of inventory.Client the monitor pushes to.
type InventoryClient interface {
	PatchPeerStats(ctx context.Context, peerID string, stats inventory.PeerStatsUpdate) error
	PutRouter(ctx context.Context, routerID string, update inventory.RouterUpdate) error
}

// IdentityResolver recovers the identity of a peer observed in the runtime
// dump, re-reading the interface's on-disk config on a cache miss.
type IdentityResolver interface {
	LookupIdentity(publicKey, interfaceName string) (model.IdentityRecord, bool)
}

// Monitor runs the periodic liveness pass against the reconciler's published
// ManagedState.
type Monitor struct {
	client     InventoryClient
	runner     platform.Runner
	pinger     Pinger
	identities IdentityResolver // may be nil
	store      *reconcile.Store
	cfg        Config
	logger     *slog.Logger
}

// NewMonitor creates a Monitor. Config defaults are applied automatically.
// identities may be nil, in which case unrecognized dump peers are simply
// not identified.
func NewMonitor(client InventoryClient, runner platform.Runner, pinger Pinger, identities IdentityResolver, store *reconcile.Store, cfg Config, logger *slog.Logger) *Monitor {
	cfg.ApplyDefaults()
	return &Monitor{
		client:     client,
		runner:     runner,
		pinger:     pinger,
		identities: identities,
		store:      store,
		cfg:        cfg,
		logger:     logger.With("component", "monitor"),
	}
}

// Run starts the monitor loop. It blocks until ctx is cancelled. The first
// pass runs immediately; subsequent passes run at cfg.Interval.
func (m *Monitor) Run(ctx context.Context) error {
	if m.client == nil {
		return errors.New("monitor: client is nil")
	}

	m.logger.Info("monitor started", "interval", m.cfg.Interval)

	m.runPass(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			m.runPass(ctx)
		}
	}
}

// runPass performs one liveness pass over every router in the current
// ManagedState, fanning probes out concurrently bounded by
// cfg.MaxConcurrentPings.
func (m *Monitor) runPass(ctx context.Context) {
	start := time.Now()
	state := m.store.Get()
	if len(state.Routers) == 0 {
		return
	}

	runtimeByKey := m.currentRuntime(ctx)

	sem := semaphore.NewWeighted(m.cfg.MaxConcurrentPings)
	var wg sync.WaitGroup
	now := time.Now()

	checked := 0
	for _, router := range state.Routers {
		peer, ok := firstEnabledPeer(router)
		if !ok {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break // context cancelled; stop fanning out new probes
		}
		checked++

		rt, found := runtimeByKey[peer.PublicKey]
		wg.Add(1)
		go func(router model.Router, peer model.Peer, rt model.PeerRuntime, found bool) {
			defer wg.Done()
			defer sem.Release(1)
			m.checkRouter(ctx, router, peer, rt, found, now)
		}(router, peer, rt, found)
	}
	wg.Wait()

	m.logger.Debug("monitor pass completed", "routers_checked", checked, "duration", time.Since(start))
}

// currentRuntime fetches and parses the live WireGuard dump, indexed by
// public key. A failure to read the dump is logged and treated as an empty
// dump rather than aborting the pass, so every router falls back to its
// ICMP result.
func (m *Monitor) currentRuntime(ctx context.Context) map[string]model.PeerRuntime {
	result, err := m.runner.Run(ctx, "wg", "show", "all", "dump")
	if err != nil {
		m.logger.Warn("wg show all dump failed", "error", err)
		return map[string]model.PeerRuntime{}
	}

	peers := wireguard.ParseDump(result.Stdout)
	byKey := make(map[string]model.PeerRuntime, len(peers))
	for _, p := range peers {
		// A dump peer missing from the identity cache triggers a re-read of
		// its interface's config header blocks, so the peer stays
		// identifiable even when inventory has been unreachable all along.
		if m.identities != nil {
			if _, ok := m.identities.LookupIdentity(p.PublicKey, p.InterfaceName); !ok {
				m.logger.Debug("peer has no identity record", "public_key", p.PublicKey, "interface", p.InterfaceName)
			}
		}
		byKey[p.PublicKey] = p
	}
	return byKey
}

// checkRouter probes one router's first enabled peer and pushes both the
// peer-stats and router-status updates. Failures are logged; there is no
// retry within this tick.
func (m *Monitor) checkRouter(ctx context.Context, router model.Router, peer model.Peer, rt model.PeerRuntime, found bool, now time.Time) {
	ip, err := wireguard.PeerTunnelIP(peer.AllowedIPs)
	if err != nil {
		m.logger.Warn("invalid peer address, skipping probe", "router_id", router.ID, "error", err)
		return
	}

	pingResult, err := m.pinger.Probe(ctx, ip)
	if err != nil {
		m.logger.Warn("ping probe failed", "router_id", router.ID, "ip", ip, "error", err)
	}

	// The dump's latest_handshake field occasionally goes stale. When a peer
	// that did handshake at some point reads as offline, re-check against the
	// human-readable `wg show <iface>` output and prefer its age.
	if found && rt.LatestHandshake != 0 && rt.Status(now) != model.StatusOnline {
		if result, err := m.runner.Run(ctx, "wg", "show", rt.InterfaceName); err == nil {
			if section, ok := wireguard.PeerShowSection(result.Stdout, rt.PublicKey); ok {
				rt = wireguard.ReconcileHandshake(rt, section, now)
			}
		}
	}

	// Prefer WireGuard truth over ICMP truth. A peer the runtime dump
	// actually reported on is classified by handshake freshness; a peer
	// absent from the dump (e.g. the tool failed, or the interface isn't up
	// yet) falls back to plain ICMP success — a NATed peer can be reachable
	// one way and not the other.
	status := model.StatusOffline
	switch {
	case found:
		status = rt.Status(now)
	case pingResult.Success:
		status = model.StatusOnline
	}

	m.pushPeerStats(ctx, peer, rt, pingResult)
	m.pushRouterStatus(ctx, router, status, pingResult, now)
}

func (m *Monitor) pushPeerStats(ctx context.Context, peer model.Peer, rt model.PeerRuntime, ping PingResult) {
	update := inventory.PeerStatsUpdate{
		BytesReceived:  rt.RxBytes,
		BytesSent:      rt.TxBytes,
		PingSuccess:    ping.Success,
		PingAvgTimeMs:  float64(ping.AvgRTT.Milliseconds()),
		PingPacketLoss: ping.PacketLoss,
	}
	if rt.LatestHandshake != 0 {
		update.LastHandshake = time.Unix(rt.LatestHandshake, 0).UTC().Format(timeFormat)
	}

	if err := m.client.PatchPeerStats(ctx, peer.ID, update); err != nil {
		m.logger.Warn("patch peer stats failed", "peer_id", peer.ID, "error", err)
	}
}

func (m *Monitor) pushRouterStatus(ctx context.Context, router model.Router, status model.RouterStatus, ping PingResult, now time.Time) {
	routerStatus := inventory.RouterStatusOffline
	update := inventory.RouterUpdate{}

	if status == model.StatusOnline {
		routerStatus = inventory.RouterStatusOnline
		nowStr := now.UTC().Format(timeFormat)
		latency := int(math.Round(float64(ping.AvgRTT.Milliseconds())))
		update.LastSeenAt = &nowStr
		update.Latency = &latency
	}
	update.Status = &routerStatus

	if err := m.client.PutRouter(ctx, router.ID, update); err != nil {
		m.logger.Warn("put router status failed", "router_id", router.ID, "error", err)
	}
}

// firstEnabledPeer returns the first enabled peer with a usable public key
// and allowed-ips, in router.Peers order.
func firstEnabledPeer(router model.Router) (model.Peer, bool) {
	for _, p := range router.Peers {
		if p.IsEnabled && p.PublicKey != "" && p.AllowedIPs != "" {
			return p, true
		}
	}
	return model.Peer{}, false
}
