package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/evolbiolab/paperval/internal/annotation"
	"github.com/evolbiolab/paperval/internal/export"
	"github.com/evolbiolab/paperval/internal/extraction"
	"github.com/evolbiolab/paperval/internal/sample"
	"github.com/evolbiolab/paperval/internal/schema"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Sample extraction results into an annotation set",
	Long: `Sample papers from extraction results and write an annotation set for
human annotators to fill in.

Only successful extractions are candidates. Sampling is seeded, so the same
inputs and seed always select the same papers. The stratified strategy
buckets papers by how many list items they carry so sparse and dense papers
are both represented.

Examples:
  # Sample 20 papers at random
  prepare --results extraction_results.json --schema schema.yaml

  # Stratified sample of 30 with a worksheet for spreadsheet annotators
  prepare --results extraction_results.json --schema schema.yaml \
    --sample-size 30 --strategy stratified --worksheet annotation.xlsx`,
	RunE: runPrepare,
}

func init() {
	f := prepareCmd.Flags()
	f.String("results", "", "path to extraction results JSON (required)")
	f.String("schema", "", "path to the extraction schema YAML or JSON (required)")
	f.String("output", "validation_annotations.json", "annotation set output path")
	f.Int("sample-size", 0, "number of papers to sample (overrides config)")
	f.String("strategy", "", "sampling strategy: random, stratified, or diverse (overrides config)")
	f.Int64("seed", 0, "random seed (overrides config)")
	f.String("worksheet", "", "also write an annotation worksheet XLSX to this path")
	_ = prepareCmd.MarkFlagRequired("results")
	_ = prepareCmd.MarkFlagRequired("schema")
	rootCmd.AddCommand(prepareCmd)
}

func runPrepare(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate("prepare"); err != nil {
		return err
	}

	size := cfg.Prepare.SampleSize
	if cmd.Flags().Changed("sample-size") {
		size, _ = cmd.Flags().GetInt("sample-size")
	}
	strategyName := cfg.Prepare.Strategy
	if cmd.Flags().Changed("strategy") {
		strategyName, _ = cmd.Flags().GetString("strategy")
	}
	seed := cfg.Prepare.Seed
	if cmd.Flags().Changed("seed") {
		seed, _ = cmd.Flags().GetInt64("seed")
	}

	strategy, err := sample.ParseStrategy(strategyName)
	if err != nil {
		return err
	}

	schemaPath, _ := cmd.Flags().GetString("schema")
	sch, err := schema.Load(schemaPath)
	if err != nil {
		return err
	}

	resultsPath, _ := cmd.Flags().GetString("results")
	results, err := extraction.Load(resultsPath)
	if err != nil {
		return err
	}

	successful := results.Successful()
	if len(successful) == 0 {
		return eris.New("prepare: no successful extractions to sample")
	}

	picked, err := sample.Select(successful, sample.Options{
		Size:     size,
		Strategy: strategy,
		Seed:     seed,
	})
	if err != nil {
		return err
	}

	seeds := make(map[string]annotation.PaperSeed, len(picked))
	for _, id := range picked {
		r := results[id]
		seeds[id] = annotation.PaperSeed{
			Extraction: successful[id],
			PDFPath:    r.PDFPath,
			Metadata:   r.Metadata,
		}
	}

	outputPath, _ := cmd.Flags().GetString("output")
	set := annotation.NewSet(sch, seeds)
	if err := set.Save(outputPath); err != nil {
		return err
	}

	if worksheetPath, _ := cmd.Flags().GetString("worksheet"); worksheetPath != "" {
		if err := export.WriteAnnotationWorksheet(worksheetPath, sch, set); err != nil {
			return err
		}
		zap.L().Info("annotation worksheet written", zap.String("path", worksheetPath))
	}

	zap.L().Info("annotation set prepared",
		zap.Int("sampled", len(picked)),
		zap.Int("candidates", len(successful)),
		zap.String("strategy", string(strategy)),
		zap.Int64("seed", seed),
		zap.String("output", outputPath),
	)

	fmt.Printf("Sampled %d of %d successful extractions into %s\n", len(picked), len(successful), outputPath)
	fmt.Println("Next: fill in each paper's ground_truth by reading the PDF, then run validate.")
	return nil
}
