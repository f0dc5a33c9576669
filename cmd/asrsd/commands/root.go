package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

// configPath is the global --config flag, shared by all subcommands.
var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "asrsd",
	Short: "asrsd - ASRS crane control service",
	Long: `asrsd drives an Automated Storage and Retrieval System crane through
its PLC register interface. It turns queued warehouse jobs into physical
put and pick movements while keeping a database the single source of
truth for shelf occupancy.

The service exposes an HTTP/WebSocket API for warehouse systems and a
Redis status feed for dashboards.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "asrsd.yml", "path to the configuration file")
}
