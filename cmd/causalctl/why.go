package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sentinelgraph/sentinel/pkg/agent"
	"github.com/sentinelgraph/sentinel/pkg/hub"
	"github.com/sentinelgraph/sentinel/pkg/query"
)

var whyCmd = &cobra.Command{
	Use:   "why PID",
	Short: "Explain why a process is in its current state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid pid %q: %w", args[0], err)
		}

		hubAddr, _ := cmd.Flags().GetString("hub")
		raw, _ := cmd.Flags().GetBool("raw")

		if hubAddr != "" {
			var resp hub.HostWhyResponse
			if err := dialHub(hubAddr).getJSON(fmt.Sprintf("/api/v1/why?pid=%d", pid), &resp); err != nil {
				return err
			}
			if raw {
				return printJSON(resp)
			}
			return printWhy(resp.HostID, resp.WhyResponse)
		}

		socketPath, _ := cmd.Flags().GetString("socket")
		c, err := dialLocal(socketPath)
		if err != nil {
			return err
		}
		defer c.Close()

		resp, err := c.call(agent.Request{Op: "why", PID: pid})
		if err != nil {
			return err
		}
		if raw {
			return printJSON(resp.Why)
		}
		return printWhy("", *resp.Why)
	},
}

func printWhy(hostID string, resp query.WhyResponse) error {
	if resp.NotFound {
		fmt.Printf("pid %d: not found\n", resp.PID)
		return nil
	}
	if hostID != "" {
		fmt.Printf("pid %d on %s\n", resp.PID, hostID)
	} else {
		fmt.Printf("pid %d\n", resp.PID)
	}
	if len(resp.Causes) == 0 {
		fmt.Println("  no causal chain found")
	}
	for _, c := range resp.Causes {
		fmt.Printf("  [%s] %s: %s\n", c.Kind, c.ID, c.Message)
	}
	if resp.Scene != nil {
		fmt.Printf("  scene: %s (%s)\n", resp.Scene.SceneTag, resp.Scene.Severity)
		fmt.Printf("  root cause: %s\n", resp.Scene.RootCausePrimary)
		for _, step := range resp.Scene.RecommendedActions {
			fmt.Printf("    - %s\n", step)
		}
	}
	return nil
}
