package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cuemby/autoheal/pkg/config"
	"github.com/cuemby/autoheal/pkg/storage"
	"github.com/cuemby/autoheal/pkg/types"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [invocation-id]",
	Short: "Show recorded invocations",
	Long: `List recent invocations from the audit history, newest first, or show a
single invocation in full. Requires --history or history_path.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("history") {
			cfg.HistoryPath, _ = cmd.Flags().GetString("history")
		}
		initLogging(cfg)
		if cfg.HistoryPath == "" {
			return fmt.Errorf("no history configured: set --history or history_path")
		}

		store, err := storage.NewBoltStore(cfg.HistoryPath)
		if err != nil {
			return err
		}
		defer store.Close()

		out := cmd.OutOrStdout()

		if len(args) == 1 {
			record, err := store.GetInvocation(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(record)
		}

		if prune, _ := cmd.Flags().GetDuration("prune"); prune > 0 {
			removed, err := store.Prune(time.Now().Add(-prune))
			if err != nil {
				return fmt.Errorf("failed to prune history: %w", err)
			}
			fmt.Fprintf(out, "Pruned %d entries older than %s\n", removed, prune)
			return nil
		}

		if showEvents, _ := cmd.Flags().GetBool("events"); showEvents {
			limit, _ := cmd.Flags().GetInt("limit")
			list, err := store.ListEvents(limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tTYPE\tINVOCATION\tMESSAGE")
			for _, e := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					e.Timestamp.Format(time.RFC3339), e.Type, e.Metadata["invocation_id"], e.Message)
			}
			return w.Flush()
		}

		limit, _ := cmd.Flags().GetInt("limit")
		records, err := store.ListInvocations(limit)
		if err != nil {
			return err
		}
		return printInvocations(out, records)
	},
}

func printInvocations(out io.Writer, records []*types.InvocationRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(out, "No invocations recorded")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tTARGET GROUP\tOUTCOME")
	for _, r := range records {
		tg := "-"
		if r.Alarm != nil && r.Alarm.TargetGroup != "" {
			tg = shortTargetGroup(r.Alarm.TargetGroup)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.StartedAt.Format(time.RFC3339),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			tg,
			summarize(r),
		)
	}
	return w.Flush()
}

// summarize renders the result of one invocation on a single line
func summarize(r *types.InvocationRecord) string {
	switch {
	case r.Error != "":
		return "error: " + r.Error
	case r.Result == nil:
		return "-"
	case r.Result.Status != "":
		return string(r.Result.Status)
	}

	failed, skipped := 0, 0
	for _, o := range r.Result.Outcomes {
		switch o.Result {
		case types.OutcomeFailed:
			failed++
		case types.OutcomeSkipped:
			skipped++
		}
	}
	parts := []string{fmt.Sprintf("stopped %d", len(r.Result.KilledInstances))}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("failed %d", failed))
	}
	if skipped > 0 {
		parts = append(parts, fmt.Sprintf("skipped %d", skipped))
	}
	if n := len(r.Result.UnresolvedTargets); n > 0 {
		parts = append(parts, fmt.Sprintf("unresolved %d", n))
	}
	return strings.Join(parts, ", ")
}

// shortTargetGroup trims an ARN to its targetgroup/<name>/<id> resource
func shortTargetGroup(arn string) string {
	if i := strings.Index(arn, "targetgroup/"); i >= 0 {
		return arn[i:]
	}
	return arn
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum number of entries to show (0 for all)")
	historyCmd.Flags().Bool("events", false, "List recorded events instead of invocations")
	historyCmd.Flags().Duration("prune", 0, "Delete entries older than this duration")
}
