package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/evolbiolab/paperval/internal/extraction"
	"github.com/evolbiolab/paperval/internal/schema"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check and repair extraction result payloads",
	Long: `Check that extraction payloads parse as JSON objects and conform to the
declared field types.

String-wrapped payloads are always unwrapped; --repair additionally runs
mechanical JSON repair on malformed payloads (trailing commas, unquoted
keys, truncation). Conformance problems are reported per paper; --strict
marks such papers as failed. The command exits non-zero when any payload
is invalid or, in strict mode, fails validation.

Examples:
  # Dry run: report payload health
  check --results extraction_results.json --schema schema.yaml

  # Repair payloads and write the cleaned file
  check --results extraction_results.json --schema schema.yaml \
    --repair --output extraction_results_clean.json

  # Enforce schema conformance
  check --results extraction_results.json --schema schema.yaml --strict`,
	RunE: runCheck,
}

func init() {
	f := checkCmd.Flags()
	f.String("results", "", "path to extraction results JSON (required)")
	f.String("schema", "", "path to the extraction schema YAML or JSON (required)")
	f.String("output", "", "write repaired results to this path (default: dry run)")
	f.Bool("repair", false, "attempt mechanical repair of malformed payloads")
	f.Bool("strict", false, "treat schema conformance problems as failures")
	_ = checkCmd.MarkFlagRequired("results")
	_ = checkCmd.MarkFlagRequired("schema")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	resultsPath, _ := cmd.Flags().GetString("results")
	results, err := extraction.Load(resultsPath)
	if err != nil {
		return err
	}

	schemaPath, _ := cmd.Flags().GetString("schema")
	sch, err := schema.Load(schemaPath)
	if err != nil {
		return err
	}

	repair, _ := cmd.Flags().GetBool("repair")
	strict, _ := cmd.Flags().GetBool("strict")
	checker := &extraction.Checker{Schema: sch, Repair: repair, Strict: strict}
	rep := checker.CheckAll(results)

	formatCheckReport(os.Stdout, rep)

	if outputPath, _ := cmd.Flags().GetString("output"); outputPath != "" {
		if err := results.Save(outputPath); err != nil {
			return err
		}
		zap.L().Info("repaired results written",
			zap.String("path", outputPath),
			zap.Int("repaired", rep.Repaired),
		)
	}

	if bad := rep.Invalid + rep.FailedValidation; bad > 0 {
		return eris.Errorf("check: %d of %d extraction payloads failed checks", bad, rep.Checked)
	}
	return nil
}

// formatCheckReport writes the check summary and per-paper problems to w.
func formatCheckReport(out io.Writer, rep extraction.CheckReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Checked:\t%d\n", rep.Checked)
	_, _ = fmt.Fprintf(w, "Skipped (failed extraction):\t%d\n", rep.Skipped)
	_, _ = fmt.Fprintf(w, "Valid:\t%d\n", rep.Valid)
	_, _ = fmt.Fprintf(w, "Repaired:\t%d\n", rep.Repaired)
	_, _ = fmt.Fprintf(w, "Invalid:\t%d\n", rep.Invalid)
	if rep.FailedValidation > 0 {
		_, _ = fmt.Fprintf(w, "Failed validation:\t%d\n", rep.FailedValidation)
	}
	_ = w.Flush()

	ids := make([]string, 0, len(rep.ByPaper))
	for id := range rep.ByPaper {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		res := rep.ByPaper[id]
		if res.Status == extraction.CheckValid && len(res.Problems) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(out, "\n%s: %s\n", id, res.Status)
		for _, p := range res.Problems {
			_, _ = fmt.Fprintf(out, "  - %s\n", p)
		}
	}
}
