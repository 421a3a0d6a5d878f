package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "securedrawd",
	Short: "securedrawd - commit-reveal winner draws over HTTP",
	Long: `securedrawd serves draw pools and randomness commitments over HTTP.

Winners are selected with oracle randomness that each pool owner commits to one
slot after the oracle does and reveals afterwards, so nobody ordering requests can
choose the seed of a draw.`,
	SilenceUsage: true,
}

// Execute runs the root command. It is called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(version, commit string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", version, commit)
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
