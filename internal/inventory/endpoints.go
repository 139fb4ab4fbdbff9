package inventory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// FetchSnapshot fetches the declarative desired state owned by endpointID.
// GET /api/vpn-servers/{endpoint}/resources
//
// A 404 means the endpoint owns nothing and is translated to ErrOwnsNothing
// (see errors.go); callers distinguish it from a transient transport failure
// with errors.Is.
func (c *Client) FetchSnapshot(ctx context.Context, endpointID string) (*Snapshot, error) {
	var snap Snapshot
	path := fmt.Sprintf("/api/vpn-servers/%s/resources", url.PathEscape(endpointID))
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetVPNNetwork fetches a single VPN network by id, for ad-hoc provisioning.
// GET /api/vpn/networks/{id}
func (c *Client) GetVPNNetwork(ctx context.Context, networkID string) (*VPNNetwork, error) {
	var network VPNNetwork
	path := fmt.Sprintf("/api/vpn/networks/%s", url.PathEscape(networkID))
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &network); err != nil {
		return nil, err
	}
	return &network, nil
}

// GetRouter fetches a single router by id, for ad-hoc provisioning.
// GET /api/routers/{id}
func (c *Client) GetRouter(ctx context.Context, routerID string) (*Router, error) {
	var router Router
	path := fmt.Sprintf("/api/routers/%s", url.PathEscape(routerID))
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &router); err != nil {
		return nil, err
	}
	return &router, nil
}

// GetRouterPeers lists a router's WireGuard peers, for the RouterOS helper.
// GET /api/routers/{id}/wireguard/peers
func (c *Client) GetRouterPeers(ctx context.Context, routerID string) ([]Peer, error) {
	var peers []Peer
	path := fmt.Sprintf("/api/routers/%s/wireguard/peers", url.PathEscape(routerID))
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &peers); err != nil {
		return nil, err
	}
	return peers, nil
}

// PatchPeerStats pushes the latest liveness and throughput counters for a
// peer, as observed by the monitor loop.
// PATCH /api/wireguard/peers/{peer_id}/stats
func (c *Client) PatchPeerStats(ctx context.Context, peerID string, stats PeerStatsUpdate) error {
	path := fmt.Sprintf("/api/wireguard/peers/%s/stats", url.PathEscape(peerID))
	return c.doRequest(ctx, http.MethodPatch, path, stats, nil)
}

// PutRouter pushes a partial update of a router's observed status. Only
// the fields set on update are marshaled, since the inventory treats this
// as a partial update.
// PUT /api/routers/{id}
func (c *Client) PutRouter(ctx context.Context, routerID string, update RouterUpdate) error {
	path := fmt.Sprintf("/api/routers/%s", url.PathEscape(routerID))
	return c.doRequest(ctx, http.MethodPut, path, update, nil)
}
