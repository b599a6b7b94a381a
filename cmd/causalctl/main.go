// Command causalctl is the operator and LLM-agent CLI for the causal
// diagnostics system (spec §4.11): ps, why, diag, fix against either a
// single host's local agent daemon or the cluster-wide hub.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "causalctl",
	Short:   "Query and act on the causal diagnostics graph",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("causalctl version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().String("socket", "/var/run/sentinel/agent.sock", "local agent control socket")
	rootCmd.PersistentFlags().String("hub", "", "hub HTTP address (e.g. http://127.0.0.1:8080); when set, queries the cluster-wide hub instead of the local agent")
	rootCmd.PersistentFlags().Bool("raw", false, "print the raw JSON response instead of a table (honoured by ps and why)")

	rootCmd.AddCommand(psCmd, whyCmd, diagCmd, fixCmd)
}
