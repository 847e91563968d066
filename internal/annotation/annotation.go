// Package annotation reads and writes validation annotation sets: the
// files annotators fill in with ground truth for sampled papers.
package annotation

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/evolbiolab/paperval/internal/schema"
)

// Instructions is the guidance block embedded in a fresh annotation set.
type Instructions struct {
	Overview        string            `json:"overview,omitempty"`
	Steps           []string          `json:"steps,omitempty"`
	SchemaReference map[string]string `json:"schema_reference,omitempty"`
	Tips            []string          `json:"tips,omitempty"`
}

// Paper is one sampled paper awaiting or carrying annotation. A nil
// GroundTruth means the paper has not been annotated yet.
type Paper struct {
	AutomatedExtraction map[string]any `json:"automated_extraction"`
	GroundTruth         map[string]any `json:"ground_truth"`
	Notes               string         `json:"notes"`
	Annotator           string         `json:"annotator"`
	AnnotationDate      string         `json:"annotation_date"`
	PDFPath             string         `json:"_pdf_path,omitempty"`
	ExtractionMetadata  map[string]any `json:"_extraction_metadata,omitempty"`
}

// Annotated reports whether ground truth has been filled in.
func (p *Paper) Annotated() bool {
	return p.GroundTruth != nil
}

// Set is a full annotation file keyed by paper id.
type Set struct {
	Instructions *Instructions     `json:"_instructions,omitempty"`
	Papers       map[string]*Paper `json:"validation_papers"`
}

// Load reads an annotation set. A file without the validation_papers key is
// malformed; it is almost always the wrong file rather than an empty set.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "annotation: read %s", path)
	}

	var set Set
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, eris.Wrapf(err, "annotation: parse %s", path)
	}
	if set.Papers == nil {
		return nil, eris.Errorf("annotation: %s has no validation_papers key", path)
	}
	return &set, nil
}

// Save writes the set as indented JSON. Object keys serialize sorted, so
// saving the same set twice produces identical bytes.
func (s *Set) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return eris.Wrap(err, "annotation: marshal set")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "annotation: write %s", path)
	}
	return nil
}

// Annotated returns the ids of papers with ground truth filled in, sorted.
func (s *Set) Annotated() []string {
	return s.selectIDs(true)
}

// Pending returns the ids of papers still awaiting annotation, sorted.
func (s *Set) Pending() []string {
	return s.selectIDs(false)
}

func (s *Set) selectIDs(annotated bool) []string {
	var ids []string
	for id, p := range s.Papers {
		if p != nil && p.Annotated() == annotated {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// PaperSeed carries what the prepare step knows about a sampled paper.
type PaperSeed struct {
	Extraction map[string]any
	PDFPath    string
	Metadata   map[string]any
}

// NewSet builds a fresh annotation set for the given papers. Each entry
// carries the automated extraction for reference and a null ground_truth
// for the annotator to replace.
func NewSet(sch *schema.Schema, papers map[string]PaperSeed) *Set {
	set := &Set{
		Instructions: buildInstructions(sch),
		Papers:       make(map[string]*Paper, len(papers)),
	}
	for id, seed := range papers {
		set.Papers[id] = &Paper{
			AutomatedExtraction: seed.Extraction,
			PDFPath:             seed.PDFPath,
			ExtractionMetadata:  seed.Metadata,
		}
	}
	return set
}

func buildInstructions(sch *schema.Schema) *Instructions {
	ref := make(map[string]string, len(sch.Fields))
	for _, name := range sch.FieldNames() {
		ref[name] = describeField(sch.Fields[name])
	}
	return &Instructions{
		Overview: "Fill in ground_truth for every paper by reading the PDF and recording what it actually reports.",
		Steps: []string{
			"Open the paper at _pdf_path and read it alongside the automated_extraction block.",
			"Copy automated_extraction into ground_truth, then correct every field against the paper.",
			"Add fields the extraction missed; remove values the paper does not support.",
			"Leave ground_truth null for papers you have not finished; they are skipped at validation time.",
			"Fill in annotator and annotation_date when done.",
		},
		SchemaReference: ref,
		Tips: []string{
			"Annotate what the paper reports, not what you believe is true.",
			"Keep list entries atomic: one element per item the paper names.",
			"Record numbers as plain values without units or thousands separators.",
		},
	}
}

// describeField renders a field's declared type for the annotator, such as
// "list of object{count: numeric, species: string}".
func describeField(f schema.Field) string {
	switch f.Type {
	case schema.TypeList:
		return "list of " + describeField(f.ElemSpec())
	case schema.TypeObject:
		names := make([]string, 0, len(f.Fields))
		for name := range f.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s: %s", name, describeField(f.Fields[name])))
		}
		return "object{" + strings.Join(parts, ", ") + "}"
	default:
		return string(f.Type)
	}
}
