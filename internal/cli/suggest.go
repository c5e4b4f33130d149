package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"smart-scheduler/internal/ai"
	"smart-scheduler/internal/config"
	"smart-scheduler/internal/schedule"
	"smart-scheduler/internal/scheduler"
	"smart-scheduler/internal/store"
)

func newSuggestCmd() *cobra.Command {
	var (
		snapshotPath string
		fromDB       bool
		owner        int
		policyPath   string
		from         string
		format       string
		summary      bool
	)

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Propose a schedule for pending tasks",
		Long: "Propose a schedule either offline from a YAML snapshot (--snapshot) " +
			"or from an owner's pending tasks and calendar in the database (--db).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (snapshotPath != "") == fromDB {
				return errors.New("exactly one of --snapshot or --db is required")
			}
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown --format %q", format)
			}

			var start time.Time
			if from != "" {
				t, err := time.Parse(time.RFC3339, from)
				if err != nil {
					return fmt.Errorf("invalid --from: %w", err)
				}
				start = t
			}

			if snapshotPath != "" {
				snap, err := ReadSnapshot(snapshotPath)
				if err != nil {
					return err
				}
				if !start.IsZero() {
					snap.Start = start
				}
				req, err := snap.Request()
				if err != nil {
					return err
				}
				res, err := scheduler.Suggest(req)
				if err != nil {
					return err
				}
				logger.Debug().Int("placed", len(res.Suggestions)).Int("unscheduled", len(res.Unscheduled)).Msg("offline run done")
				if format == "json" {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				return printResult(cmd.OutOrStdout(), res, "")
			}

			database, err := openDB()
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer database.Close()

			policy := config.NewScheduleManager(policyPath, logger)
			if _, err := policy.Load(); err != nil {
				return fmt.Errorf("policy: %w", err)
			}

			var summarizer ai.Summarizer
			if summary && cfg.OpenAIKey != "" {
				summarizer = ai.New(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, cfg.AIRatePerSec)
			}

			st := store.New(database, logger)
			svc := schedule.New(st, st, policy, summarizer, nil, logger)
			run, err := svc.Suggest(cmd.Context(), owner, schedule.Options{From: start, Summary: summary})
			if err != nil {
				return err
			}
			if format == "json" {
				return writeJSON(cmd.OutOrStdout(), run)
			}
			text := run.Summary
			if run.SummaryError != "" {
				text = "(summary unavailable: " + run.SummaryError + ")"
			}
			return printResult(cmd.OutOrStdout(), run.Result, text)
		},
	}

	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "YAML snapshot to schedule offline")
	cmd.Flags().BoolVar(&fromDB, "db", false, "Schedule from the database")
	cmd.Flags().IntVar(&owner, "owner", 1, "Owner id for --db")
	cmd.Flags().StringVar(&policyPath, "policy", cfg.PolicyFile, "Policy file for --db (or POLICY_FILE env)")
	cmd.Flags().StringVar(&from, "from", "", "Earliest start (RFC 3339)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json)")
	cmd.Flags().BoolVar(&summary, "summary", false, "Ask the summarizer for a plain-language plan (--db only)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, res scheduler.Result, summary string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tTITLE\tSTART\tEND\tSCORE")
	for _, s := range res.Suggestions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n",
			s.TaskID, s.Title, s.Start.Format("Mon 2006-01-02 15:04"), s.End.Format("15:04"), s.PriorityScore)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, u := range res.Unscheduled {
		fmt.Fprintf(w, "unscheduled %d %s: %s\n", u.TaskID, u.Title, u.Reason)
	}
	for _, r := range res.Rejected {
		fmt.Fprintf(w, "rejected busy[%d]: %s\n", r.Index, r.Reason)
	}
	if summary != "" {
		fmt.Fprintf(w, "\n%s\n", summary)
	}
	return nil
}
