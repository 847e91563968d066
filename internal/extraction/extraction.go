// Package extraction models the output of the automated PDF extraction
// step and checks payloads before papers are sampled for validation.
package extraction

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Extraction attempt statuses as written by the extraction pipeline.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is one paper's extraction outcome. ExtractedData may be a JSON
// object or a JSON-encoded string containing an object; Data resolves
// either form.
type Result struct {
	Status        string          `json:"status"`
	ExtractedData json.RawMessage `json:"extracted_data,omitempty"`
	Analysis      string          `json:"analysis,omitempty"`
	Error         string          `json:"error,omitempty"`
	PDFPath       string          `json:"pdf_path,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
}

// Succeeded reports whether the extraction produced a payload.
func (r *Result) Succeeded() bool {
	return r.Status == StatusSuccess && len(r.ExtractedData) > 0
}

// Data parses the extracted payload, unwrapping string-encoded JSON. A
// missing or null payload returns nil without error.
func (r *Result) Data() (map[string]any, error) {
	raw := bytes.TrimSpace(r.ExtractedData)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, eris.Wrap(err, "extraction: unwrap payload")
		}
		raw = []byte(inner)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, eris.Wrap(err, "extraction: parse payload")
	}
	return data, nil
}

// Results maps paper id to extraction outcome.
type Results map[string]*Result

// Load reads an extraction results file.
func Load(path string) (Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extraction: read %s", path)
	}
	var rs Results
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, eris.Wrapf(err, "extraction: parse %s", path)
	}
	return rs, nil
}

// Save writes the results as indented JSON, keys sorted.
func (rs Results) Save(path string) error {
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return eris.Wrap(err, "extraction: marshal results")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "extraction: write %s", path)
	}
	return nil
}

// Successful returns parsed payloads for every paper whose extraction
// succeeded. Papers whose payload cannot be parsed are logged and left
// out; run the check command to repair them first.
func (rs Results) Successful() map[string]map[string]any {
	out := make(map[string]map[string]any)
	for id, r := range rs {
		if r == nil || !r.Succeeded() {
			continue
		}
		data, err := r.Data()
		if err != nil {
			zap.L().Warn("unparseable extraction payload",
				zap.String("paper", id),
				zap.Error(err))
			continue
		}
		if data != nil {
			out[id] = data
		}
	}
	return out
}
