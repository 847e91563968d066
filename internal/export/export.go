// Package export writes evaluation results and annotation worksheets in
// tabular formats for spreadsheet review.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/evolbiolab/paperval/internal/metrics"
)

var fieldHeader = []string{"field", "tp", "fp", "fn", "tn", "precision", "recall", "f1"}

// WriteCSV writes the per-field metric breakdown, one row per field in
// sorted order, with an overall row last. Undefined rates are left empty.
func WriteCSV(w io.Writer, eval metrics.Evaluation) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(fieldHeader); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, name := range eval.Summary.FieldNames() {
		if err := cw.Write(metricRow(name, eval.Summary.ByField[name])); err != nil {
			return eris.Wrapf(err, "export: write csv row %s", name)
		}
	}
	if err := cw.Write(metricRow("overall", eval.Summary.Overall)); err != nil {
		return eris.Wrap(err, "export: write csv overall row")
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}

func metricRow(name string, m metrics.Metrics) []string {
	return []string{
		name,
		strconv.Itoa(m.TP),
		strconv.Itoa(m.FP),
		strconv.Itoa(m.FN),
		strconv.Itoa(m.TN),
		rateCell(m.Precision),
		rateCell(m.Recall),
		rateCell(m.F1),
	}
}

// rateCell renders a rate with four decimals; undefined rates stay empty
// so spreadsheets do not mistake them for zero scores.
func rateCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}

// renderValue flattens an extracted value to a single worksheet cell:
// scalars print plainly, lists join with semicolons, objects serialize as
// compact JSON.
func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case json.Number:
		return val.String()
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, renderValue(item))
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
