package export

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/evolbiolab/paperval/internal/annotation"
	"github.com/evolbiolab/paperval/internal/metrics"
	"github.com/evolbiolab/paperval/internal/schema"
)

// WriteWorkbook writes the evaluation as a workbook with Summary, Fields,
// and Papers sheets.
func WriteWorkbook(path string, eval metrics.Evaluation) error {
	f := xlsx.NewFile()

	if err := addSummarySheet(f, eval); err != nil {
		return err
	}
	if err := addFieldsSheet(f, eval); err != nil {
		return err
	}
	if err := addPapersSheet(f, eval); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save workbook %s", path)
	}
	return nil
}

func addSummarySheet(f *xlsx.File, eval metrics.Evaluation) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}

	overall := eval.Summary.Overall
	addLabelledInt(sheet, "Papers evaluated", eval.Summary.PapersEvaluated)
	addLabelledInt(sheet, "Papers skipped", len(eval.PapersSkipped))
	addLabelledInt(sheet, "True positives", overall.TP)
	addLabelledInt(sheet, "False positives", overall.FP)
	addLabelledInt(sheet, "False negatives", overall.FN)
	addLabelledInt(sheet, "True negatives", overall.TN)
	addLabelledRate(sheet, "Precision", overall.Precision)
	addLabelledRate(sheet, "Recall", overall.Recall)
	addLabelledRate(sheet, "F1", overall.F1)
	return nil
}

func addLabelledInt(sheet *xlsx.Sheet, label string, v int) {
	row := sheet.AddRow()
	row.AddCell().SetString(label)
	row.AddCell().SetInt(v)
}

func addLabelledRate(sheet *xlsx.Sheet, label string, v *float64) {
	row := sheet.AddRow()
	row.AddCell().SetString(label)
	setRate(row.AddCell(), v)
}

func setRate(cell *xlsx.Cell, v *float64) {
	if v == nil {
		cell.SetString("N/A")
		return
	}
	cell.SetFloat(*v)
}

func addFieldsSheet(f *xlsx.File, eval metrics.Evaluation) error {
	sheet, err := f.AddSheet("Fields")
	if err != nil {
		return eris.Wrap(err, "export: add fields sheet")
	}

	addHeaderRow(sheet, fieldHeader)
	for _, name := range eval.Summary.FieldNames() {
		addMetricsRow(sheet, name, eval.Summary.ByField[name])
	}
	addMetricsRow(sheet, "overall", eval.Summary.Overall)
	return nil
}

func addPapersSheet(f *xlsx.File, eval metrics.Evaluation) error {
	sheet, err := f.AddSheet("Papers")
	if err != nil {
		return eris.Wrap(err, "export: add papers sheet")
	}

	addHeaderRow(sheet, []string{"paper", "tp", "fp", "fn", "tn", "precision", "recall", "f1", "skipped_fields"})
	for _, id := range sortedIDs(eval.ByPaper) {
		r := eval.ByPaper[id]
		m := metrics.Derive(r.Overall)

		row := sheet.AddRow()
		row.AddCell().SetString(id)
		row.AddCell().SetInt(m.TP)
		row.AddCell().SetInt(m.FP)
		row.AddCell().SetInt(m.FN)
		row.AddCell().SetInt(m.TN)
		setRate(row.AddCell(), m.Precision)
		setRate(row.AddCell(), m.Recall)
		setRate(row.AddCell(), m.F1)

		skipped := make([]string, 0, len(r.Skipped))
		for _, s := range r.Skipped {
			skipped = append(skipped, s.Field)
		}
		row.AddCell().SetString(strings.Join(skipped, "; "))
	}
	return nil
}

func addHeaderRow(sheet *xlsx.Sheet, header []string) {
	row := sheet.AddRow()
	for _, h := range header {
		row.AddCell().SetString(h)
	}
}

func addMetricsRow(sheet *xlsx.Sheet, name string, m metrics.Metrics) {
	row := sheet.AddRow()
	row.AddCell().SetString(name)
	row.AddCell().SetInt(m.TP)
	row.AddCell().SetInt(m.FP)
	row.AddCell().SetInt(m.FN)
	row.AddCell().SetInt(m.TN)
	setRate(row.AddCell(), m.Precision)
	setRate(row.AddCell(), m.Recall)
	setRate(row.AddCell(), m.F1)
}

// WriteAnnotationWorksheet writes a one-row-per-field worksheet from a
// fresh annotation set so annotators can work in a spreadsheet while the
// JSON file stays the source of record. The ground_truth column is left
// blank for them to fill.
func WriteAnnotationWorksheet(path string, sch *schema.Schema, set *annotation.Set) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Annotation")
	if err != nil {
		return eris.Wrap(err, "export: add annotation sheet")
	}

	addHeaderRow(sheet, []string{"paper_id", "pdf_path", "field", "field_type", "automated_value", "ground_truth", "notes"})

	for _, id := range sortedIDs(set.Papers) {
		paper := set.Papers[id]
		if paper == nil {
			continue
		}
		for _, name := range sch.FieldNames() {
			row := sheet.AddRow()
			row.AddCell().SetString(id)
			row.AddCell().SetString(paper.PDFPath)
			row.AddCell().SetString(name)
			row.AddCell().SetString(string(sch.Fields[name].Type))
			row.AddCell().SetString(renderValue(paper.AutomatedExtraction[name]))
			row.AddCell().SetString("")
			row.AddCell().SetString("")
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save worksheet %s", path)
	}
	return nil
}
