package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/evolbiolab/paperval/internal/annotation"
	"github.com/evolbiolab/paperval/internal/compare"
	"github.com/evolbiolab/paperval/internal/export"
	"github.com/evolbiolab/paperval/internal/metrics"
	"github.com/evolbiolab/paperval/internal/model"
	"github.com/evolbiolab/paperval/internal/report"
	"github.com/evolbiolab/paperval/internal/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Score automated extraction against annotated ground truth",
	Long: `Compare automated extraction output against human annotations and compute
precision, recall, and F1 per field and overall.

Counts are pooled across all annotated papers before rates are derived, so
papers with many extracted items weigh proportionally more than sparse ones.
Papers whose ground_truth has not been filled in are skipped with a warning;
the command fails only when no annotated papers are found at all.

Examples:
  # Score an annotated validation set
  validate --annotations validation_annotations.json --schema schema.yaml

  # Allow numeric slack and fuzzy string matching
  validate --annotations validation_annotations.json --schema schema.yaml \
    --numeric-tolerance 0.5 --fuzzy-strings

  # Export spreadsheets and persist the run
  validate --annotations validation_annotations.json --schema schema.yaml \
    --csv metrics.csv --xlsx metrics.xlsx --save`,
	RunE: runValidate,
}

func init() {
	f := validateCmd.Flags()
	f.String("annotations", "", "path to the annotated validation set JSON (required)")
	f.String("schema", "", "path to the extraction schema YAML or JSON (required)")
	f.String("metrics", "", "metrics JSON output path (default from config)")
	f.String("report", "", "text report output path (default from config)")
	f.Float64("numeric-tolerance", 0, "absolute tolerance for numeric comparisons (overrides config)")
	f.Bool("fuzzy-strings", false, "case- and whitespace-insensitive string matching (overrides config)")
	f.Bool("list-order-matters", false, "compare list elements by position (overrides config)")
	f.Float64("issue-threshold", 0, "precision/recall threshold for the common issues section (overrides config)")
	f.String("csv", "", "also export per-field metrics as CSV to this path")
	f.String("xlsx", "", "also export a metrics workbook to this path")
	f.Bool("save", false, "persist the run to the configured store")
	_ = validateCmd.MarkFlagRequired("annotations")
	_ = validateCmd.MarkFlagRequired("schema")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if err := cfg.Validate("evaluate"); err != nil {
		return err
	}

	schemaPath, _ := cmd.Flags().GetString("schema")
	annotationsPath, _ := cmd.Flags().GetString("annotations")

	opts := cfg.Compare.Options()
	if cmd.Flags().Changed("numeric-tolerance") {
		opts.NumericTolerance, _ = cmd.Flags().GetFloat64("numeric-tolerance")
	}
	if cmd.Flags().Changed("fuzzy-strings") {
		opts.FuzzyStrings, _ = cmd.Flags().GetBool("fuzzy-strings")
	}
	if cmd.Flags().Changed("list-order-matters") {
		opts.OrderedLists, _ = cmd.Flags().GetBool("list-order-matters")
	}

	threshold := cfg.Report.IssueThreshold
	if cmd.Flags().Changed("issue-threshold") {
		threshold, _ = cmd.Flags().GetFloat64("issue-threshold")
	}

	eval, err := evaluateAnnotations(schemaPath, annotationsPath, opts)
	if err != nil {
		return err
	}

	var reportBuf bytes.Buffer
	if err := report.Render(&reportBuf, *eval, threshold); err != nil {
		return eris.Wrap(err, "validate: render report")
	}

	metricsPath, _ := cmd.Flags().GetString("metrics")
	if metricsPath == "" {
		metricsPath = cfg.Report.MetricsPath
	}
	reportPath, _ := cmd.Flags().GetString("report")
	if reportPath == "" {
		reportPath = cfg.Report.TextPath
	}

	data, err := json.MarshalIndent(eval, "", "  ")
	if err != nil {
		return eris.Wrap(err, "validate: marshal metrics")
	}
	if err := os.WriteFile(metricsPath, append(data, '\n'), 0o644); err != nil {
		return eris.Wrap(err, "validate: write metrics")
	}
	if err := os.WriteFile(reportPath, reportBuf.Bytes(), 0o644); err != nil {
		return eris.Wrap(err, "validate: write report")
	}

	if csvPath, _ := cmd.Flags().GetString("csv"); csvPath != "" {
		f, err := os.Create(csvPath)
		if err != nil {
			return eris.Wrap(err, "validate: create csv")
		}
		if err := export.WriteCSV(f, *eval); err != nil {
			f.Close()
			return eris.Wrap(err, "validate: write csv")
		}
		if err := f.Close(); err != nil {
			return eris.Wrap(err, "validate: close csv")
		}
	}

	if xlsxPath, _ := cmd.Flags().GetString("xlsx"); xlsxPath != "" {
		if err := export.WriteWorkbook(xlsxPath, *eval); err != nil {
			return eris.Wrap(err, "validate: write workbook")
		}
	}

	if save, _ := cmd.Flags().GetBool("save"); save {
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "validate: migrate store")
		}

		run := &model.Run{
			AnnotationsPath: annotationsPath,
			SchemaPath:      schemaPath,
			Options:         opts,
			PapersEvaluated: eval.Summary.PapersEvaluated,
			PapersSkipped:   len(eval.PapersSkipped),
			Summary:         eval.Summary,
			Report:          reportBuf.String(),
		}
		if err := st.SaveRun(ctx, run); err != nil {
			return eris.Wrap(err, "validate: save run")
		}
		zap.L().Info("run saved", zap.String("run_id", run.ID))
	}

	// The report goes to stdout as well as the report file.
	fmt.Print(reportBuf.String())

	zap.L().Info("validation complete",
		zap.Int("papers_evaluated", eval.Summary.PapersEvaluated),
		zap.Int("papers_skipped", len(eval.PapersSkipped)),
		zap.String("metrics", metricsPath),
		zap.String("report", reportPath),
	)
	return nil
}

// evaluateAnnotations loads the schema and the annotation set and scores
// every annotated paper against its ground truth.
func evaluateAnnotations(schemaPath, annotationsPath string, opts compare.Options) (*metrics.Evaluation, error) {
	sch, err := schema.Load(schemaPath)
	if err != nil {
		return nil, err
	}
	set, err := annotation.Load(annotationsPath)
	if err != nil {
		return nil, err
	}

	annotated := set.Annotated()
	if len(annotated) == 0 {
		return nil, eris.New("validate: no annotated papers found; fill in ground_truth entries first")
	}

	pending := set.Pending()
	for _, id := range pending {
		zap.L().Warn("paper has no ground truth, skipping", zap.String("paper_id", id))
	}

	results := make(map[string]metrics.PaperResult, len(annotated))
	for _, id := range annotated {
		paper := set.Papers[id]
		res := metrics.EvaluatePaper(sch, id, paper.AutomatedExtraction, paper.GroundTruth, opts)
		results[id] = res
		zap.L().Debug("paper evaluated",
			zap.String("paper_id", id),
			zap.Int("tp", res.Overall.TP),
			zap.Int("fp", res.Overall.FP),
			zap.Int("fn", res.Overall.FN),
		)
	}

	return &metrics.Evaluation{
		Options:       opts,
		Summary:       metrics.Aggregate(results),
		ByPaper:       results,
		PapersSkipped: pending,
	}, nil
}
