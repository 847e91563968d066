// Package metrics scores automated extractions against annotated ground
// truth and derives precision, recall, and F1 from the pooled counts.
package metrics

import (
	"sort"

	"go.uber.org/zap"

	"github.com/evolbiolab/paperval/internal/compare"
	"github.com/evolbiolab/paperval/internal/schema"
)

// SkippedField records a field left out of scoring and why.
type SkippedField struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// PaperResult holds per-field and overall counts for one paper.
type PaperResult struct {
	Fields  map[string]compare.Counts `json:"fields"`
	Overall compare.Counts            `json:"overall"`
	Skipped []SkippedField            `json:"skipped,omitempty"`
}

// EvaluatePaper scores one paper's automated extraction against its ground
// truth. A field that cannot be compared under its declared type is skipped
// with a warning; it never fails the evaluation. Data fields not declared
// in the schema are likewise skipped.
func EvaluatePaper(s *schema.Schema, paperID string, automated, truth map[string]any, opts compare.Options) PaperResult {
	res := PaperResult{
		Fields: make(map[string]compare.Counts, len(s.Fields)),
	}

	for _, name := range s.FieldNames() {
		counts, err := compare.Field(s.Fields[name], automated[name], truth[name], opts)
		if err != nil {
			zap.L().Warn("skipping field",
				zap.String("paper", paperID),
				zap.String("field", name),
				zap.Error(err))
			res.Skipped = append(res.Skipped, SkippedField{Field: name, Reason: err.Error()})
			continue
		}
		res.Fields[name] = counts
		res.Overall.Add(counts)
	}

	for _, name := range undeclaredFields(s, automated, truth) {
		zap.L().Warn("field not declared in schema",
			zap.String("paper", paperID),
			zap.String("field", name))
		res.Skipped = append(res.Skipped, SkippedField{Field: name, Reason: "not declared in schema"})
	}

	return res
}

func undeclaredFields(s *schema.Schema, automated, truth map[string]any) []string {
	seen := make(map[string]struct{})
	for name := range automated {
		if _, ok := s.Fields[name]; !ok {
			seen[name] = struct{}{}
		}
	}
	for name := range truth {
		if _, ok := s.Fields[name]; !ok {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Metrics pairs raw counts with derived rates. A rate whose denominator is
// zero is undefined: it stays nil and serializes as JSON null rather than
// masquerading as a zero score.
type Metrics struct {
	TP        int      `json:"tp"`
	FP        int      `json:"fp"`
	FN        int      `json:"fn"`
	TN        int      `json:"tn,omitempty"`
	Precision *float64 `json:"precision"`
	Recall    *float64 `json:"recall"`
	F1        *float64 `json:"f1"`
}

// Derive computes precision, recall, and F1 from counts. F1 is undefined
// when either rate is undefined, and zero when both are defined but sum to
// zero. True negatives never enter any rate.
func Derive(c compare.Counts) Metrics {
	m := Metrics{TP: c.TP, FP: c.FP, FN: c.FN, TN: c.TN}
	m.Precision = ratio(c.TP, c.TP+c.FP)
	m.Recall = ratio(c.TP, c.TP+c.FN)
	if m.Precision != nil && m.Recall != nil {
		p, r := *m.Precision, *m.Recall
		f1 := 0.0
		if p+r > 0 {
			f1 = 2 * p * r / (p + r)
		}
		m.F1 = &f1
	}
	return m
}

func ratio(num, den int) *float64 {
	if den == 0 {
		return nil
	}
	v := float64(num) / float64(den)
	return &v
}

// Summary aggregates evaluation results across the validation set.
type Summary struct {
	PapersEvaluated int                `json:"papers_evaluated"`
	Overall         Metrics            `json:"overall"`
	ByField         map[string]Metrics `json:"by_field"`
}

// Aggregate pools per-field counts across papers and derives rates from the
// pooled counts. Rates are never averaged across papers.
func Aggregate(results map[string]PaperResult) Summary {
	var overall compare.Counts
	fieldCounts := make(map[string]compare.Counts)
	for _, r := range results {
		overall.Add(r.Overall)
		for name, c := range r.Fields {
			fc := fieldCounts[name]
			fc.Add(c)
			fieldCounts[name] = fc
		}
	}

	byField := make(map[string]Metrics, len(fieldCounts))
	for name, c := range fieldCounts {
		byField[name] = Derive(c)
	}

	return Summary{
		PapersEvaluated: len(results),
		Overall:         Derive(overall),
		ByField:         byField,
	}
}

// FieldNames returns the aggregated field names in sorted order.
func (s Summary) FieldNames() []string {
	names := make([]string, 0, len(s.ByField))
	for name := range s.ByField {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Evaluation is the structured output of a validation run, written as the
// metrics JSON file. It carries no timestamps so identical inputs produce
// identical output.
type Evaluation struct {
	Options       compare.Options        `json:"options"`
	Summary       Summary                `json:"summary"`
	ByPaper       map[string]PaperResult `json:"by_paper"`
	PapersSkipped []string               `json:"papers_skipped,omitempty"`
}
