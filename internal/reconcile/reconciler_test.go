package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/becape187/vpnserver-agent/internal/inventory"
	"github.com/becape187/vpnserver-agent/internal/model"
	"github.com/becape187/vpnserver-agent/internal/platform"
	"github.com/becape187/vpnserver-agent/internal/wireguard"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeInventoryClient struct {
	snap *inventory.Snapshot
	err  error
}

func (f *fakeInventoryClient) FetchSnapshot(_ context.Context, _ string) (*inventory.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

type fakeManager struct {
	existing  []string
	ensureErr error
	removed   []string
}

func (f *fakeManager) ListInterfaces(_ context.Context) ([]string, error) {
	return f.existing, nil
}

func (f *fakeManager) EnsureInterface(_ context.Context, _ model.VPNNetwork, _ wireguard.KeyMaterial, _ []wireguard.RenderPeer) (bool, error) {
	if f.ensureErr != nil {
		return false, f.ensureErr
	}
	return true, nil
}

func (f *fakeManager) RemoveInterfaceByName(_ context.Context, name string) error {
	f.removed = append(f.removed, name)
	return nil
}

func (f *fakeManager) SyncIdentityCache(_ []model.VPNNetwork, _ []model.Router) {}

func TestReconciler_Pass_CreatesAndRemoves(t *testing.T) {
	networkID := "net-aaaaaaaa-1111"
	snap := &inventory.Snapshot{
		VPNNetworks: []inventory.VPNNetwork{
			{ID: networkID, Name: "hq", CIDR: "10.8.0.0/24", ServerPrivateKey: "PRIV"},
		},
		Routers: []inventory.Router{
			{ID: "r1", Name: "edge-1", VPNNetworkID: networkID, Peers: []inventory.Peer{
				{PublicKey: "PUB1", AllowedIPs: "10.8.0.2/32", IsEnabled: true},
			}},
		},
	}

	client := &fakeInventoryClient{snap: snap}
	manager := &fakeManager{existing: []string{"wg-deadbeef"}}
	store := NewStore()

	r := NewReconciler(client, manager, platform.NewExecRunner(), "endpoint-1", Config{}, store, testLogger())

	report, err := r.pass(context.Background())
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if len(report.Created) != 1 || report.Created[0] != networkID {
		t.Errorf("Created = %+v", report.Created)
	}
	if len(manager.removed) != 1 || manager.removed[0] != "wg-deadbeef" {
		t.Errorf("removed = %+v", manager.removed)
	}

	state := store.Get()
	if len(state.VPNNetworks) != 1 || state.VPNNetworks[0].ID != networkID {
		t.Errorf("store state = %+v", state)
	}
}

func TestReconciler_Pass_OwnsNothingTearsDownEverything(t *testing.T) {
	client := &fakeInventoryClient{err: inventory.ErrOwnsNothing}
	manager := &fakeManager{existing: []string{"wg-aaaaaaaa", "wg-bbbbbbbb"}}
	store := NewStore()
	store.Update([]model.VPNNetwork{{ID: "net-1"}}, nil, time.Now())

	r := NewReconciler(client, manager, platform.NewExecRunner(), "endpoint-1", Config{}, store, testLogger())

	report, err := r.pass(context.Background())
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if len(report.Removed) != 2 {
		t.Errorf("Removed = %+v", report.Removed)
	}

	state := store.Get()
	if state.VPNNetworks != nil {
		t.Errorf("expected state cleared after teardown, got %+v", state)
	}
}

func TestReconciler_Pass_TotalFailureReturnsError(t *testing.T) {
	networkID := "net-1"
	snap := &inventory.Snapshot{
		VPNNetworks: []inventory.VPNNetwork{{ID: networkID, CIDR: "10.8.0.0/24", ServerPrivateKey: "PRIV"}},
	}

	client := &fakeInventoryClient{snap: snap}
	manager := &fakeManager{ensureErr: errors.New("boom")}
	store := NewStore()

	r := NewReconciler(client, manager, platform.NewExecRunner(), "endpoint-1", Config{}, store, testLogger())

	if _, err := r.pass(context.Background()); err == nil {
		t.Fatal("expected error when every interface fails")
	}
}
