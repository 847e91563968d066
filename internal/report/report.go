// Package report renders the plain-text validation report.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/evolbiolab/paperval/internal/metrics"
)

// DefaultIssueThreshold flags fields whose precision or recall falls below
// this rate in the COMMON ISSUES section.
const DefaultIssueThreshold = 0.7

const ruleWidth = 80

// Render writes the validation report. Output depends only on the
// evaluation and threshold: fields are sorted and nothing varies from run
// to run, so identical inputs produce byte-identical reports.
func Render(w io.Writer, eval metrics.Evaluation, threshold float64) error {
	var b strings.Builder

	rule := strings.Repeat("=", ruleWidth)
	sep := strings.Repeat("-", ruleWidth)

	b.WriteString(rule + "\n")
	b.WriteString("EXTRACTION VALIDATION REPORT\n")
	b.WriteString(rule + "\n\n")

	fmt.Fprintf(&b, "Papers evaluated: %d\n", eval.Summary.PapersEvaluated)
	if n := len(eval.PapersSkipped); n > 0 {
		fmt.Fprintf(&b, "Papers skipped (no ground truth): %d\n", n)
	}
	b.WriteString("\n")

	overall := eval.Summary.Overall
	b.WriteString(sep + "\n")
	b.WriteString("OVERALL METRICS\n")
	b.WriteString(sep + "\n")
	fmt.Fprintf(&b, "  True Positives:  %d\n", overall.TP)
	fmt.Fprintf(&b, "  False Positives: %d\n", overall.FP)
	fmt.Fprintf(&b, "  False Negatives: %d\n", overall.FN)
	if overall.TN > 0 {
		fmt.Fprintf(&b, "  True Negatives:  %d\n", overall.TN)
	}
	fmt.Fprintf(&b, "  Precision: %s\n", percent(overall.Precision))
	fmt.Fprintf(&b, "  Recall:    %s\n", percent(overall.Recall))
	fmt.Fprintf(&b, "  F1 Score:  %s\n", percent(overall.F1))
	b.WriteString("\n")

	b.WriteString(sep + "\n")
	b.WriteString("METRICS BY FIELD\n")
	b.WriteString(sep + "\n")
	fmt.Fprintf(&b, "%-30s %10s %10s %10s %5s %5s %5s\n",
		"Field", "Precision", "Recall", "F1", "TP", "FP", "FN")
	for _, name := range eval.Summary.FieldNames() {
		m := eval.Summary.ByField[name]
		fmt.Fprintf(&b, "%-30s %10s %10s %10s %5d %5d %5d\n",
			name, percent(m.Precision), percent(m.Recall), percent(m.F1),
			m.TP, m.FP, m.FN)
	}
	b.WriteString("\n")

	if issues := collectIssues(eval.Summary, threshold); len(issues) > 0 {
		b.WriteString(sep + "\n")
		b.WriteString("COMMON ISSUES\n")
		b.WriteString(sep + "\n")
		for _, issue := range issues {
			b.WriteString("  - " + issue + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(rule + "\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return eris.Wrap(err, "report: write")
	}
	return nil
}

// collectIssues lists fields whose recall or precision falls below the
// threshold, recall issues first, each group sorted by field name. An
// undefined rate is never an issue.
func collectIssues(sum metrics.Summary, threshold float64) []string {
	var issues []string
	for _, name := range sum.FieldNames() {
		m := sum.ByField[name]
		if m.Recall != nil && *m.Recall < threshold && m.FN > 0 {
			issues = append(issues, fmt.Sprintf("%s: low recall (%s), %d expected items missed",
				name, percent(m.Recall), m.FN))
		}
	}
	for _, name := range sum.FieldNames() {
		m := sum.ByField[name]
		if m.Precision != nil && *m.Precision < threshold && m.FP > 0 {
			issues = append(issues, fmt.Sprintf("%s: low precision (%s), %d spurious extractions",
				name, percent(m.Precision), m.FP))
		}
	}
	return issues
}

// percent renders a rate with one decimal place, or N/A when undefined.
func percent(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", *v*100)
}
