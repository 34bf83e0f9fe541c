package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/autoheal/pkg/types"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single invocation and print the result",
	Long: `Run one invocation from the command line.

The trigger is read from --event (a file, or - for stdin) in any format the
Lambda handler accepts. Alternatively --target-group skips decoding and
remediates the given target group ARN directly.`,
	Example: `  # Replay a captured EventBridge event without stopping anything
  autoheal run --cluster prod --event alarm.json --dry-run

  # Remediate a target group directly
  autoheal run --cluster prod --target-group arn:aws:elasticloadbalancing:...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eventPath, _ := cmd.Flags().GetString("event")
		targetGroup, _ := cmd.Flags().GetString("target-group")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		if (eventPath == "") == (targetGroup == "") {
			return fmt.Errorf("exactly one of --event or --target-group is required")
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		a, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		var result *types.Result
		if targetGroup != "" {
			result, err = a.reconciler.ReconcileAlarm(ctx, &types.Alarm{TargetGroup: targetGroup})
		} else {
			var payload []byte
			payload, err = readEvent(cmd.InOrStdin(), eventPath)
			if err != nil {
				return err
			}
			result, err = a.reconciler.Reconcile(ctx, payload)
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func readEvent(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read event from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read event file: %w", err)
	}
	return data, nil
}

func init() {
	runCmd.Flags().String("event", "", "Trigger payload file, or - for stdin")
	runCmd.Flags().String("target-group", "", "Target group ARN to remediate without an event")
	runCmd.Flags().Duration("timeout", 5*time.Minute, "Abort the invocation after this long")
}
