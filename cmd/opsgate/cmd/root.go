// Package cmd provides the CLI commands for opsgate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsgate/opsgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "opsgate",
	Short: "opsgate - SRE agent action gateway",
	Long: `opsgate gates an SRE agent's access to observability data and
remediation actions.

Read operations (health checks, incident investigation, trend analysis) are
authorized by capability and served from a TTL insight cache backed by
observability sources. Remediation actions pass through an admission policy:
a global kill switch, a confidence threshold, a trailing rate limit, and
optional CEL guard rules. Every admitted action is executed and recorded
exactly once; every decision is written to the audit log.

Quick start:
  1. Create a config file: opsgate.yaml
  2. Run: opsgate start

Configuration:
  Config is loaded from opsgate.yaml in the current directory,
  $HOME/.opsgate/, or /etc/opsgate/.

  Environment variables can override config values with the OPSGATE_ prefix.
  Example: OPSGATE_SERVER_ADDR=:9090

Commands:
  start       Start the gateway server
  hash-key    Generate a hash for an API key
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./opsgate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
