package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sentinelgraph/sentinel/pkg/agent"
	"github.com/sentinelgraph/sentinel/pkg/hub"
	"github.com/sentinelgraph/sentinel/pkg/query"
)

var diagCmd = &cobra.Command{
	Use:   "diag PID",
	Short: "Print a full diagnostic packet (why plus neighbourhood) for an LLM caller",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid pid %q: %w", args[0], err)
		}

		hubAddr, _ := cmd.Flags().GetString("hub")

		if hubAddr != "" {
			var resp hub.HostDiagResponse
			if err := dialHub(hubAddr).getJSON(fmt.Sprintf("/api/v1/diag?pid=%d", pid), &resp); err != nil {
				return err
			}
			return printDiag(resp.HostID, resp.DiagResponse)
		}

		socketPath, _ := cmd.Flags().GetString("socket")
		c, err := dialLocal(socketPath)
		if err != nil {
			return err
		}
		defer c.Close()

		resp, err := c.call(agent.Request{Op: "diag", PID: pid})
		if err != nil {
			return err
		}
		return printDiag("", *resp.Diag)
	},
}

func printDiag(hostID string, resp query.DiagResponse) error {
	if err := printWhy(hostID, resp.WhyResponse); err != nil {
		return err
	}
	if resp.NotFound {
		return nil
	}
	fmt.Printf("  referenced event kinds: %s\n", strings.Join(resp.ReferencedEvents, ", "))
	fmt.Printf("  adjacency (%d edges):\n", len(resp.Adjacency))
	for _, e := range resp.Adjacency {
		fmt.Printf("    %s --%s--> %s\n", e.From, e.Kind, e.To)
	}
	return nil
}
