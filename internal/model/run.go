// Package model defines the validation run records shared by the store,
// CLI, and HTTP surfaces.
package model

import (
	"time"

	"github.com/evolbiolab/paperval/internal/compare"
	"github.com/evolbiolab/paperval/internal/metrics"
)

// Run records one validation run: the inputs it scored, the comparison
// options in effect, and the aggregated outcome. The full text report is
// kept alongside so past runs can be reviewed without their input files.
type Run struct {
	ID              string          `json:"id"`
	AnnotationsPath string          `json:"annotations_path"`
	SchemaPath      string          `json:"schema_path"`
	Options         compare.Options `json:"options"`
	PapersEvaluated int             `json:"papers_evaluated"`
	PapersSkipped   int             `json:"papers_skipped"`
	Summary         metrics.Summary `json:"summary"`
	Report          string          `json:"report,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
