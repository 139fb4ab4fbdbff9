package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/becape187/vpnserver-agent/internal/agent"
	"github.com/becape187/vpnserver-agent/internal/inventory"
	"github.com/becape187/vpnserver-agent/internal/monitor"
	"github.com/becape187/vpnserver-agent/internal/platform"
	"github.com/becape187/vpnserver-agent/internal/reconcile"
	"github.com/becape187/vpnserver-agent/internal/wireguard"
)

// drainTimeout is the maximum time to wait for the reconcile and monitor
// loops to exit cleanly after a shutdown signal; in-flight I/O is allowed
// to finish, bounded by this hard cap.
const drainTimeout = 30 * time.Second

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the vpnagentd reconcile and monitor loops",
	Long: "Start vpnagentd's two independent background loops: the reconciler, which\n" +
		"drives kernel WireGuard interfaces and peer tables to match the fleet\n" +
		"inventory's desired state, and the liveness monitor, which probes peer\n" +
		"freshness and pushes status upstream.",
	RunE: runUp,
}

func init() {
	rootCmd.AddCommand(upCmd)
}

func runUp(_ *cobra.Command, _ []string) error {
	cfg, err := agent.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("vpnagentd up: %w", err)
	}

	if apiURL != "" {
		cfg.Inventory.BaseURL = apiURL
	}
	if endpoint != "" {
		cfg.VPNServerEndpoint = endpoint
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger := agent.NewLogger(cfg.LogLevel)

	if cfg.VPNServerEndpoint == "" {
		logger.Warn("VPN_SERVER_ENDPOINT is unset; this agent owns nothing until it is configured")
	}

	logger.Info("starting vpnagentd",
		"version", buildVersion,
		"endpoint", cfg.VPNServerEndpoint,
	)

	client, err := inventory.NewClient(cfg.Inventory, buildVersion, logger)
	if err != nil {
		return fmt.Errorf("vpnagentd up: create inventory client: %w", err)
	}

	runner := platform.NewExecRunner()
	controller := wireguard.NewExecController(runner)
	identity := wireguard.NewIdentityCache()
	manager := wireguard.NewManager(controller, cfg.WireGuard, identity, logger)
	manager.WarmIdentityCache()

	store := reconcile.NewStore()
	reconciler := reconcile.NewReconciler(client, manager, runner, cfg.VPNServerEndpoint, cfg.Reconcile, store, logger)

	pinger := monitor.NewExecPinger(runner, cfg.Monitor)
	mon := monitor.NewMonitor(client, runner, pinger, manager, store, cfg.Monitor, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := reconciler.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("reconciler stopped", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mon.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("monitor stopped", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down", "reason", ctx.Err())

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Both loops exited cleanly.
	case <-time.After(drainTimeout):
		logger.Warn("drain timeout exceeded, forcing exit")
	}

	logger.Info("vpnagentd stopped")
	return nil
}
