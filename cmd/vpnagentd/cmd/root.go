// Package cmd implements the vpnagentd CLI commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	apiURL   string
	endpoint string
)

// Build info set from main.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersionInfo sets the version info from build-time ldflags.
func SetVersionInfo(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("vpnagentd version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

var rootCmd = &cobra.Command{
	Use:   "vpnagentd",
	Short: "vpnagentd is the per-host WireGuard tunnel control-plane agent",
	Long: "vpnagentd owns the lifecycle of WireGuard tunnels for the routers this host's\n" +
		"server endpoint is assigned. It fetches desired state from the fleet inventory,\n" +
		"reconciles kernel tunnel interfaces and peer tables against it, and probes peer\n" +
		"liveness to push status back upstream.",
	// No Run function — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "optional YAML config file path (environment variables always win)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "inventory API base URL (overrides config/env)")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "server endpoint identity (overrides config/env)")

	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("vpnagentd version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
