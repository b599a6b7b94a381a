package main

import (
	"fmt"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sentinelgraph/sentinel/pkg/action"
	"github.com/sentinelgraph/sentinel/pkg/agent"
	"github.com/sentinelgraph/sentinel/pkg/hub"
)

var fixCmd = &cobra.Command{
	Use:   "fix PID OP",
	Short: "Dispatch a corrective action: kill, kill_tree, or signal",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid pid %q: %w", args[0], err)
		}
		op := args[1]

		hubAddr, _ := cmd.Flags().GetString("hub")
		if hubAddr != "" {
			var resp hub.FixResult
			body := map[string]interface{}{"target": pid, "op": op}
			if err := dialHub(hubAddr).postJSON("/api/v1/fix", body, &resp); err != nil {
				return err
			}
			fmt.Printf("host=%s target=%d op=%s status=%s %s\n", resp.HostID, resp.Target, resp.Op, resp.Status, resp.Message)
			return nil
		}

		signal, _ := cmd.Flags().GetInt("signal")
		user, _ := cmd.Flags().GetString("user")
		socketPath, _ := cmd.Flags().GetString("socket")

		c, err := dialLocal(socketPath)
		if err != nil {
			return err
		}
		defer c.Close()

		resp, err := c.call(agent.Request{Op: "fix", PID: pid, FixOp: op, Signal: signal, User: user})
		if err != nil {
			return err
		}
		return printFixResult(*resp.Fix)
	},
}

func init() {
	fixCmd.Flags().Int("signal", int(syscall.SIGTERM), "signal number to send when op=signal")
	fixCmd.Flags().String("user", "", "operator identity recorded in the audit log")
}

func printFixResult(res action.Result) error {
	fmt.Printf("op=%s target=%d\n", res.Op, res.Target)
	for _, r := range res.Results {
		status := "ok"
		if !r.Success {
			status = "failed: " + r.Error
		}
		fmt.Printf("  pid %d: %s\n", r.PID, status)
	}
	return nil
}
