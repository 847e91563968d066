package export

import (
	"encoding/csv"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/evolbiolab/paperval/internal/annotation"
	"github.com/evolbiolab/paperval/internal/compare"
	"github.com/evolbiolab/paperval/internal/metrics"
	"github.com/evolbiolab/paperval/internal/schema"
)

func sampleEvaluation() metrics.Evaluation {
	results := map[string]metrics.PaperResult{
		"paper-a": {
			Fields: map[string]compare.Counts{
				"title":   {TP: 1},
				"regions": {TP: 2, FP: 1},
			},
			Overall: compare.Counts{TP: 3, FP: 1},
			Skipped: []metrics.SkippedField{{Field: "stray", Reason: "not declared in schema"}},
		},
		"paper-b": {
			Fields: map[string]compare.Counts{
				"title":   {FP: 1, FN: 1},
				"regions": {TP: 1, FN: 2},
			},
			Overall: compare.Counts{TP: 1, FP: 1, FN: 3},
		},
	}
	return metrics.Evaluation{
		Summary: metrics.Aggregate(results),
		ByPaper: results,
	}
}

func TestWriteCSV(t *testing.T) {
	var b strings.Builder
	require.NoError(t, WriteCSV(&b, sampleEvaluation()))

	rows, err := csv.NewReader(strings.NewReader(b.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4) // header, regions, title, overall

	assert.Equal(t, fieldHeader, rows[0])
	assert.Equal(t, "regions", rows[1][0])
	assert.Equal(t, "title", rows[2][0])
	assert.Equal(t, "overall", rows[3][0])

	// regions: tp=3 fp=1 fn=2 -> precision 0.75
	assert.Equal(t, "3", rows[1][1])
	assert.Equal(t, "0.7500", rows[1][5])
}

func TestWriteCSVUndefinedRatesEmpty(t *testing.T) {
	results := map[string]metrics.PaperResult{
		"paper-a": {
			Fields:  map[string]compare.Counts{"has_phylogeny": {TN: 1}},
			Overall: compare.Counts{TN: 1},
		},
	}
	eval := metrics.Evaluation{Summary: metrics.Aggregate(results), ByPaper: results}

	var b strings.Builder
	require.NoError(t, WriteCSV(&b, eval))

	rows, err := csv.NewReader(strings.NewReader(b.String())).ReadAll()
	require.NoError(t, err)
	// has_phylogeny row: precision, recall, f1 all empty.
	assert.Equal(t, "", rows[1][5])
	assert.Equal(t, "", rows[1][6])
	assert.Equal(t, "", rows[1][7])
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.xlsx")
	require.NoError(t, WriteWorkbook(path, sampleEvaluation()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	for _, name := range []string{"Summary", "Fields", "Papers"} {
		_, ok := f.Sheet[name]
		assert.True(t, ok, "missing sheet %s", name)
	}

	fields := f.Sheet["Fields"]
	require.NotEmpty(t, fields.Rows)
	assert.Equal(t, "field", fields.Rows[0].Cells[0].String())
	assert.Equal(t, "regions", fields.Rows[1].Cells[0].String())

	precision, err := fields.Rows[1].Cells[5].Float()
	require.NoError(t, err)
	assert.InDelta(t, 0.75, precision, 1e-9)

	papers := f.Sheet["Papers"]
	require.Len(t, papers.Rows, 3)
	assert.Equal(t, "paper-a", papers.Rows[1].Cells[0].String())
	assert.Equal(t, "stray", papers.Rows[1].Cells[8].String())
}

func TestWriteAnnotationWorksheet(t *testing.T) {
	sch := &schema.Schema{Fields: map[string]schema.Field{
		"title":   {Type: schema.TypeString},
		"regions": {Type: schema.TypeList},
	}}
	require.NoError(t, sch.Validate())

	set := annotation.NewSet(sch, map[string]annotation.PaperSeed{
		"paper-a": {
			Extraction: map[string]any{
				"title":   "A phylogeny",
				"regions": []any{"NZ", "AU"},
			},
			PDFPath: "pdfs/a.pdf",
		},
	})

	path := filepath.Join(t.TempDir(), "worksheet.xlsx")
	require.NoError(t, WriteAnnotationWorksheet(path, sch, set))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet["Annotation"]
	require.True(t, ok)

	// Header plus one row per schema field.
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "paper_id", sheet.Rows[0].Cells[0].String())

	regions := sheet.Rows[1]
	assert.Equal(t, "paper-a", regions.Cells[0].String())
	assert.Equal(t, "pdfs/a.pdf", regions.Cells[1].String())
	assert.Equal(t, "regions", regions.Cells[2].String())
	assert.Equal(t, "list", regions.Cells[3].String())
	assert.Equal(t, "NZ; AU", regions.Cells[4].String())

	title := sheet.Rows[2]
	assert.Equal(t, "title", title.Cells[2].String())
	assert.Equal(t, "A phylogeny", title.Cells[4].String())
}

func TestRenderValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "x", "x"},
		{"bool", true, "true"},
		{"number", 4.5, "4.5"},
		{"whole number", 4.0, "4"},
		{"list", []any{"a", "b"}, "a; b"},
		{"object", map[string]any{"b": 1.0, "a": "x"}, `{"a":"x","b":1}`},
		{"list of objects", []any{map[string]any{"a": 1.0}}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderValue(tt.in))
		})
	}
}
