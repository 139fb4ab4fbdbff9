package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/becape187/vpnserver-agent/internal/inventory"
	"github.com/becape187/vpnserver-agent/internal/model"
	"github.com/becape187/vpnserver-agent/internal/platform"
	"github.com/becape187/vpnserver-agent/internal/wireguard"
)

// InventoryClient is the subset of inventory.Client the reconciler needs to
// fetch desired state.
type InventoryClient interface {
	FetchSnapshot(ctx context.Context, endpointID string) (*inventory.Snapshot, error)
}

// InterfaceManager is the subset of wireguard.Manager the reconciler drives.
type InterfaceManager interface {
	ListInterfaces(ctx context.Context) ([]string, error)
	EnsureInterface(ctx context.Context, network model.VPNNetwork, keys wireguard.KeyMaterial, peers []wireguard.RenderPeer) (bool, error)
	RemoveInterfaceByName(ctx context.Context, name string) error
	SyncIdentityCache(networks []model.VPNNetwork, routers []model.Router)
}

// Reconciler drives the three-phase declarative pass: diff the kernel's
// wg-* interfaces against the inventory's desired state, rebuild each
// matched or new interface's config file, and cycle the live session only
// for interfaces whose file actually changed. A snapshot of what it
// believes it manages is published to Store at the end of every pass that
// isn't a total failure.
type Reconciler struct {
	client     InventoryClient
	manager    InterfaceManager
	runner     platform.Runner
	endpointID string
	cfg        Config
	store      *Store
	logger     *slog.Logger

	mu        sync.Mutex // serializes passes; at most one runs at a time
	triggerCh chan struct{}
}

// NewReconciler creates a Reconciler. Config defaults are applied
// automatically.
func NewReconciler(client InventoryClient, manager InterfaceManager, runner platform.Runner, endpointID string, cfg Config, store *Store, logger *slog.Logger) *Reconciler {
	cfg.ApplyDefaults()
	return &Reconciler{
		client:     client,
		manager:    manager,
		runner:     runner,
		endpointID: endpointID,
		cfg:        cfg,
		store:      store,
		logger:     logger.With("component", "reconcile"),
		triggerCh:  make(chan struct{}, 1),
	}
}

// TriggerReconcile requests an immediate pass. Multiple rapid calls are
// coalesced — only one extra pass runs.
func (r *Reconciler) TriggerReconcile() {
	select {
	case r.triggerCh <- struct{}{}:
	default:
		// Already a trigger pending; coalesce.
	}
}

// Run starts the reconciliation loop. It blocks until ctx is cancelled.
// The first pass runs immediately; subsequent passes run at cfg.Interval
// or when TriggerReconcile is called.
func (r *Reconciler) Run(ctx context.Context) error {
	if r.client == nil {
		return errors.New("reconcile: client is nil")
	}
	if r.endpointID == "" {
		return errors.New("reconcile: endpointID is empty")
	}

	r.logger.Info("reconciler started", "endpoint_id", r.endpointID, "interval", r.cfg.Interval)

	r.runCycle(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped", "endpoint_id", r.endpointID)
			return ctx.Err()

		case <-ticker.C:
			r.runCycle(ctx)

		case <-r.triggerCh:
			r.runCycle(ctx)
			ticker.Reset(r.cfg.Interval)
		}
	}
}

// runCycle serializes and times a single pass, logging its outcome.
func (r *Reconciler) runCycle(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	report, err := r.pass(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("reconcile pass failed",
				"endpoint_id", r.endpointID,
				"error", err,
				"duration", time.Since(start),
			)
		}
		return
	}

	r.logger.Info("reconcile pass completed",
		"endpoint_id", r.endpointID,
		"created", len(report.Created),
		"rebuilt", len(report.Rebuilt),
		"removed", len(report.Removed),
		"failed", len(report.Failed),
		"duration", time.Since(start),
	)
}

// pass performs one fetch → diff → rebuild → apply cycle. A 404 from
// FetchSnapshot (ErrOwnsNothing) is treated as a request to tear down every
// locally-managed interface, not as a transport failure to shrug off.
func (r *Reconciler) pass(ctx context.Context) (ReconcileReport, error) {
	snap, err := r.client.FetchSnapshot(ctx, r.endpointID)
	if err != nil {
		if errors.Is(err, inventory.ErrOwnsNothing) {
			return r.teardownAll(ctx)
		}
		return ReconcileReport{}, fmt.Errorf("reconcile: fetch snapshot: %w", err)
	}

	networks, routers := fromSnapshot(snap)
	routersByNetwork := FilterRoutableNetworks(networks, routers)
	r.manager.SyncIdentityCache(networks, routers)

	existing, err := r.manager.ListInterfaces(ctx)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("reconcile: list interfaces: %w", err)
	}

	diff := ComputeInterfaceDiff(networks, existing)

	toApply := make([]model.VPNNetwork, 0, len(diff.Creations)+len(diff.Matched))
	toApply = append(toApply, diff.Creations...)
	toApply = append(toApply, diff.Matched...)
	sort.Slice(toApply, func(i, j int) bool { return toApply[i].ID < toApply[j].ID })

	creating := make(map[string]bool, len(diff.Creations))
	for _, n := range diff.Creations {
		creating[n.ID] = true
	}

	var report ReconcileReport
	for _, network := range toApply {
		if err := r.applyNetwork(ctx, network, routersByNetwork[network.ID], creating[network.ID], &report); err != nil {
			r.logger.Warn("apply network failed", "network_id", network.ID, "error", err)
		}
	}

	for _, name := range diff.Removals {
		if err := r.manager.RemoveInterfaceByName(ctx, name); err != nil {
			r.logger.Warn("remove orphan interface failed", "interface", name, "error", err)
			report.Failed = append(report.Failed, name)
			continue
		}
		report.Removed = append(report.Removed, name)
	}

	attempted := len(toApply) + len(diff.Removals)
	if attempted > 0 && len(report.Failed) == attempted {
		return report, fmt.Errorf("reconcile: all %d interfaces failed in this pass", attempted)
	}

	r.store.Update(networks, routers, time.Now())
	return report, nil
}

// applyNetwork resolves a network's keypair, renders and writes its config,
// and records the outcome on report. A failure here is isolated to this one
// network — it does not abort the rest of the pass.
func (r *Reconciler) applyNetwork(ctx context.Context, network model.VPNNetwork, routers []model.Router, isCreation bool, report *ReconcileReport) error {
	keys, err := wireguard.ResolveKeys(ctx, r.runner, network)
	if err != nil {
		report.Failed = append(report.Failed, network.ID)
		return err
	}

	peers := toRenderPeers(EnabledPeers(network, routers))

	cycled, err := r.manager.EnsureInterface(ctx, network, keys, peers)
	if err != nil {
		report.Failed = append(report.Failed, network.ID)
		return err
	}

	switch {
	case isCreation:
		report.Created = append(report.Created, network.ID)
	case cycled:
		report.Rebuilt = append(report.Rebuilt, network.ID)
	}
	return nil
}

// teardownAll removes every kernel interface this agent manages, used when
// the inventory reports this endpoint owns nothing.
func (r *Reconciler) teardownAll(ctx context.Context) (ReconcileReport, error) {
	existing, err := r.manager.ListInterfaces(ctx)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("reconcile: teardown: list interfaces: %w", err)
	}
	sort.Strings(existing)

	var report ReconcileReport
	for _, name := range existing {
		if err := r.manager.RemoveInterfaceByName(ctx, name); err != nil {
			r.logger.Warn("teardown: remove interface failed", "interface", name, "error", err)
			report.Failed = append(report.Failed, name)
			continue
		}
		report.Removed = append(report.Removed, name)
	}

	if len(existing) > 0 && len(report.Failed) == len(existing) {
		return report, fmt.Errorf("reconcile: teardown: all %d interfaces failed to remove", len(existing))
	}

	r.store.Update(nil, nil, time.Now())
	r.logger.Info("endpoint owns nothing, tore down all managed interfaces", "removed", len(report.Removed))
	return report, nil
}

// fromSnapshot converts the inventory's wire types into the domain's.
func fromSnapshot(snap *inventory.Snapshot) ([]model.VPNNetwork, []model.Router) {
	networks := make([]model.VPNNetwork, len(snap.VPNNetworks))
	for i, n := range snap.VPNNetworks {
		networks[i] = model.VPNNetwork{
			ID:               n.ID,
			Name:             n.Name,
			CIDR:             n.CIDR,
			ServerPrivateKey: n.ServerPrivateKey,
			ServerPublicKey:  n.ServerPublicKey,
			ServerEndpoint:   n.ServerEndpoint,
			DNSServers:       n.DNSServers,
		}
	}

	routers := make([]model.Router, len(snap.Routers))
	for i, rt := range snap.Routers {
		peers := make([]model.Peer, len(rt.Peers))
		for j, p := range rt.Peers {
			peers[j] = model.Peer{
				ID:         p.ID,
				PublicKey:  p.PublicKey,
				PrivateKey: p.PrivateKey,
				AllowedIPs: p.AllowedIPs,
				IsEnabled:  p.IsEnabled,
			}
		}
		routers[i] = model.Router{ID: rt.ID, Name: rt.Name, VPNNetworkID: rt.VPNNetworkID, Peers: peers}
	}

	return networks, routers
}

// toRenderPeers flattens the router/peer/network join produced by
// EnabledPeers into the wireguard package's render input shape.
func toRenderPeers(inputs []renderInput) []wireguard.RenderPeer {
	out := make([]wireguard.RenderPeer, len(inputs))
	for i, in := range inputs {
		out[i] = wireguard.RenderPeer{
			RouterID:       in.router.ID,
			RouterName:     in.router.Name,
			VPNNetworkID:   in.network.ID,
			VPNNetworkName: in.network.Name,
			PublicKey:      in.peer.PublicKey,
			AllowedIPs:     in.peer.AllowedIPs,
		}
	}
	return out
}
