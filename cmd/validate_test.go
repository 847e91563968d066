//go:build !integration

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolbiolab/paperval/internal/compare"
)

const testSchemaYAML = `
fields:
  is_phylogeny:
    type: boolean
  num_taxa:
    type: numeric
  regions:
    type: list
    elem:
      type: string
`

const testAnnotationsJSON = `{
  "validation_papers": {
    "paper_001": {
      "automated_extraction": {
        "is_phylogeny": true,
        "num_taxa": 42,
        "regions": ["New Zealand", "Australia"]
      },
      "ground_truth": {
        "is_phylogeny": true,
        "num_taxa": 42,
        "regions": ["New Zealand"]
      },
      "notes": "",
      "annotator": "tester",
      "annotation_date": "2025-06-01"
    },
    "paper_002": {
      "automated_extraction": {"is_phylogeny": false},
      "ground_truth": null,
      "notes": "",
      "annotator": "",
      "annotation_date": ""
    }
  }
}`

func writeValidationFixtures(t *testing.T) (schemaPath, annotationsPath string) {
	t.Helper()
	dir := t.TempDir()

	schemaPath = filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchemaYAML), 0o644))

	annotationsPath = filepath.Join(dir, "annotations.json")
	require.NoError(t, os.WriteFile(annotationsPath, []byte(testAnnotationsJSON), 0o644))
	return schemaPath, annotationsPath
}

func TestEvaluateAnnotations(t *testing.T) {
	schemaPath, annotationsPath := writeValidationFixtures(t)

	eval, err := evaluateAnnotations(schemaPath, annotationsPath, compare.Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, eval.Summary.PapersEvaluated)
	assert.Equal(t, []string{"paper_002"}, eval.PapersSkipped)

	// paper_001: boolean match + numeric match + one region match,
	// "Australia" extracted but not annotated.
	overall := eval.Summary.Overall
	assert.Equal(t, 3, overall.TP)
	assert.Equal(t, 1, overall.FP)
	assert.Equal(t, 0, overall.FN)

	require.NotNil(t, overall.Precision)
	assert.InDelta(t, 0.75, *overall.Precision, 0.001)
	require.NotNil(t, overall.Recall)
	assert.InDelta(t, 1.0, *overall.Recall, 0.001)

	regions, ok := eval.Summary.ByField["regions"]
	require.True(t, ok)
	assert.Equal(t, 1, regions.TP)
	assert.Equal(t, 1, regions.FP)
}

func TestEvaluateAnnotations_NoAnnotatedPapers(t *testing.T) {
	dir := t.TempDir()

	schemaPath := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchemaYAML), 0o644))

	annotationsPath := filepath.Join(dir, "annotations.json")
	pending := `{"validation_papers": {"paper_001": {"automated_extraction": {}, "ground_truth": null, "notes": "", "annotator": "", "annotation_date": ""}}}`
	require.NoError(t, os.WriteFile(annotationsPath, []byte(pending), 0o644))

	_, err := evaluateAnnotations(schemaPath, annotationsPath, compare.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no annotated papers")
}

func TestEvaluateAnnotations_MalformedAnnotations(t *testing.T) {
	dir := t.TempDir()

	schemaPath := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchemaYAML), 0o644))

	annotationsPath := filepath.Join(dir, "annotations.json")
	require.NoError(t, os.WriteFile(annotationsPath, []byte(`{not json`), 0o644))

	_, err := evaluateAnnotations(schemaPath, annotationsPath, compare.Options{})
	assert.Error(t, err)
}

func TestEvaluateAnnotations_MissingSchema(t *testing.T) {
	_, annotationsPath := writeValidationFixtures(t)

	_, err := evaluateAnnotations("does-not-exist.yaml", annotationsPath, compare.Options{})
	assert.Error(t, err)
}
