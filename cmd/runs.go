package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/evolbiolab/paperval/internal/model"
	"github.com/evolbiolab/paperval/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect validation run history",
	Long:  "Commands for listing, viewing, and summarizing saved validation runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List validation runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		since, _ := cmd.Flags().GetDuration("since")

		filter := store.RunFilter{Limit: limit}
		if since > 0 {
			filter.Since = time.Now().Add(-since)
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		// The report text has its own subcommand.
		run.Report = ""

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs report --

var runsReportCmd = &cobra.Command{
	Use:   "report <run-id>",
	Short: "Print the stored text report of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs report")
		}
		if run.Report == "" {
			return eris.Errorf("runs report: run %s has no stored report", args[0])
		}

		fmt.Print(run.Report)
		return nil
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics across runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		since, _ := cmd.Flags().GetDuration("since")
		filter := store.RunFilter{Limit: 10000}
		if since > 0 {
			filter.Since = time.Now().Add(-since)
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		stats := computeRunStats(runs)
		formatRunStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsListCmd.Flags().Duration("since", 0, "only runs newer than this (e.g. 24h, 168h)")

	runsStatsCmd.Flags().Duration("since", 0, "time window for stats (e.g. 24h, 168h)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsReportCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total         int
	Papers        int
	AvgPrecision  float64
	AvgRecall     float64
	AvgF1         float64
	RatedRuns     int
	UndefinedRuns int
}

// computeRunStats averages overall rates across runs where they are
// defined. Runs whose rates are undefined are counted separately.
func computeRunStats(runs []model.Run) runStats {
	var s runStats
	s.Total = len(runs)

	var sumP, sumR, sumF float64
	for _, r := range runs {
		s.Papers += r.PapersEvaluated
		o := r.Summary.Overall
		if o.Precision == nil || o.Recall == nil || o.F1 == nil {
			s.UndefinedRuns++
			continue
		}
		s.RatedRuns++
		sumP += *o.Precision
		sumR += *o.Recall
		sumF += *o.F1
	}

	if s.RatedRuns > 0 {
		s.AvgPrecision = sumP / float64(s.RatedRuns)
		s.AvgRecall = sumR / float64(s.RatedRuns)
		s.AvgF1 = sumF / float64(s.RatedRuns)
	}
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCREATED\tPAPERS\tTP\tFP\tFN\tPRECISION\tRECALL\tF1")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t--\t--\t--\t---------\t------\t--")

	for _, r := range runs {
		o := r.Summary.Overall
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.PapersEvaluated,
			o.TP,
			o.FP,
			o.FN,
			ratePct(o.Precision),
			ratePct(o.Recall),
			ratePct(o.F1),
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Papers evaluated:\t%d\n", s.Papers)
	if s.RatedRuns > 0 {
		_, _ = fmt.Fprintf(w, "Avg precision:\t%.1f%%\n", s.AvgPrecision*100)
		_, _ = fmt.Fprintf(w, "Avg recall:\t%.1f%%\n", s.AvgRecall*100)
		_, _ = fmt.Fprintf(w, "Avg F1:\t%.1f%%\n", s.AvgF1*100)
	}
	if s.UndefinedRuns > 0 {
		_, _ = fmt.Fprintf(w, "Runs with undefined rates:\t%d\n", s.UndefinedRuns)
	}
	_ = w.Flush()
}

// ratePct formats a rate as a percentage, or N/A when undefined.
func ratePct(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", *v*100)
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
