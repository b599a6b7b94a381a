package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sentinelgraph/sentinel/pkg/agent"
	"github.com/sentinelgraph/sentinel/pkg/hub"
	"github.com/sentinelgraph/sentinel/pkg/query"
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List live processes and the resources they consume",
	RunE: func(cmd *cobra.Command, args []string) error {
		hubAddr, _ := cmd.Flags().GetString("hub")
		raw, _ := cmd.Flags().GetBool("raw")

		if hubAddr != "" {
			var resp hub.PSResponse
			if err := dialHub(hubAddr).getJSON("/api/v1/ps", &resp); err != nil {
				return err
			}
			if raw {
				return printJSON(resp)
			}
			return printClusterPS(resp)
		}

		socketPath, _ := cmd.Flags().GetString("socket")
		c, err := dialLocal(socketPath)
		if err != nil {
			return err
		}
		defer c.Close()

		resp, err := c.call(agent.Request{Op: "ps"})
		if err != nil {
			return err
		}
		if raw {
			return printJSON(resp.PS)
		}
		return printLocalPS(*resp.PS)
	},
}

func printLocalPS(resp query.PSResponse) error {
	if len(resp.Processes) == 0 {
		fmt.Println("No live processes")
		return nil
	}
	fmt.Printf("%-10s %-10s %-10s %s\n", "PID", "STATE", "JOB", "RESOURCES")
	for _, p := range resp.Processes {
		fmt.Printf("%-10d %-10s %-10s %s\n", p.PID, p.State, p.JobID, joinOrDash(p.Resources))
	}
	return nil
}

func printClusterPS(resp hub.PSResponse) error {
	if len(resp.Processes) == 0 {
		fmt.Println("No live processes")
		return nil
	}
	fmt.Printf("%-16s %-10s %-10s %-10s %s\n", "HOST", "PID", "STATE", "JOB", "RESOURCES")
	for _, p := range resp.Processes {
		fmt.Printf("%-16s %-10d %-10s %-10s %s\n", p.HostID, p.PID, p.State, p.JobID, joinOrDash(p.Resources))
	}
	return nil
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	out := items[0]
	for _, s := range items[1:] {
		out += "," + s
	}
	return out
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
