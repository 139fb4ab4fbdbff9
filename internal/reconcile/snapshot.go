package reconcile

import (
	"sync"
	"time"

	"github.com/becape187/vpnserver-agent/internal/model"
)

// Store holds the process-wide ManagedState. All access is
// protected by a sync.RWMutex so the monitor loop can read concurrently
// with the reconciler publishing a new snapshot at the end of a pass.
type Store struct {
	mu    sync.RWMutex
	state model.ManagedState
}

// NewStore returns a Store with an empty ManagedState.
func NewStore() *Store {
	return &Store{}
}

// Get returns a deep copy of the current ManagedState.
func (s *Store) Get() model.ManagedState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.ManagedState{
		VPNNetworks: copyNetworks(s.state.VPNNetworks),
		Routers:     copyRouters(s.state.Routers),
		LastSyncAt:  s.state.LastSyncAt,
	}
}

// Update atomically replaces the snapshot with a deep copy of the given
// networks and routers, stamping LastSyncAt as now.
func (s *Store) Update(networks []model.VPNNetwork, routers []model.Router, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = model.ManagedState{
		VPNNetworks: copyNetworks(networks),
		Routers:     copyRouters(routers),
		LastSyncAt:  now,
	}
}

func copyNetworks(src []model.VPNNetwork) []model.VPNNetwork {
	if src == nil {
		return nil
	}
	dst := make([]model.VPNNetwork, len(src))
	copy(dst, src)
	for i := range dst {
		if src[i].DNSServers != nil {
			dst[i].DNSServers = make([]string, len(src[i].DNSServers))
			copy(dst[i].DNSServers, src[i].DNSServers)
		}
	}
	return dst
}

func copyRouters(src []model.Router) []model.Router {
	if src == nil {
		return nil
	}
	dst := make([]model.Router, len(src))
	copy(dst, src)
	for i := range dst {
		if src[i].Peers != nil {
			dst[i].Peers = make([]model.Peer, len(src[i].Peers))
			copy(dst[i].Peers, src[i].Peers)
		}
	}
	return dst
}
