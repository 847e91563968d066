package extraction

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/evolbiolab/paperval/internal/schema"
)

// CheckStatus classifies one paper's payload after a check pass.
type CheckStatus string

const (
	// CheckValid means the payload parsed as-is.
	CheckValid CheckStatus = "valid"
	// CheckRepaired means the payload needed unwrapping or JSON repair.
	CheckRepaired CheckStatus = "repaired"
	// CheckInvalid means the payload could not be recovered.
	CheckInvalid CheckStatus = "invalid"
	// CheckFailedValidation means the payload parsed but does not conform
	// to the schema. Only strict mode assigns it.
	CheckFailedValidation CheckStatus = "failed_validation"
)

// CheckResult is the outcome of checking one paper.
type CheckResult struct {
	Status   CheckStatus `json:"status"`
	Problems []string    `json:"problems,omitempty"`
}

// CheckReport summarizes a check pass over a results file.
type CheckReport struct {
	Checked          int                    `json:"checked"`
	Skipped          int                    `json:"skipped"`
	Valid            int                    `json:"valid"`
	Repaired         int                    `json:"repaired"`
	Invalid          int                    `json:"invalid"`
	FailedValidation int                    `json:"failed_validation,omitempty"`
	ByPaper          map[string]CheckResult `json:"by_paper"`
}

// Checker validates extraction payloads against the schema. String-wrapped
// payloads are always unwrapped; mechanical JSON repair runs only when
// Repair is set.
type Checker struct {
	Schema *schema.Schema
	// Repair enables jsonrepair recovery of malformed payloads.
	Repair bool
	// Strict marks papers with schema conformance problems as
	// failed_validation instead of merely reporting the problems.
	Strict bool
}

// CheckAll checks every successful result and rewrites repaired payloads
// in place. Papers whose extraction failed are skipped.
func (c *Checker) CheckAll(results Results) CheckReport {
	report := CheckReport{ByPaper: make(map[string]CheckResult, len(results))}

	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		r := results[id]
		if r == nil || !r.Succeeded() {
			report.Skipped++
			continue
		}
		report.Checked++

		cr := c.checkOne(id, r)
		report.ByPaper[id] = cr
		switch cr.Status {
		case CheckValid:
			report.Valid++
		case CheckRepaired:
			report.Repaired++
		case CheckInvalid:
			report.Invalid++
		case CheckFailedValidation:
			report.FailedValidation++
		}
	}
	return report
}

func (c *Checker) checkOne(id string, r *Result) CheckResult {
	data, repaired, err := recoverPayload(r.ExtractedData, c.Repair)
	if err != nil {
		zap.L().Warn("unrecoverable payload",
			zap.String("paper", id),
			zap.Error(err))
		return CheckResult{Status: CheckInvalid, Problems: []string{err.Error()}}
	}

	status := CheckValid
	if repaired {
		canonical, merr := json.Marshal(data)
		if merr != nil {
			return CheckResult{Status: CheckInvalid, Problems: []string{merr.Error()}}
		}
		r.ExtractedData = canonical
		status = CheckRepaired
		zap.L().Info("repaired payload", zap.String("paper", id))
	}

	var problems []string
	if c.Schema != nil {
		problems = c.conformance(data)
	}
	for _, p := range problems {
		zap.L().Warn("schema conformance",
			zap.String("paper", id),
			zap.String("problem", p))
	}
	if len(problems) > 0 && c.Strict {
		return CheckResult{Status: CheckFailedValidation, Problems: problems}
	}
	return CheckResult{Status: status, Problems: problems}
}

// recoverPayload parses a payload, unwrapping string-encoded JSON and,
// when repair is enabled, falling back to mechanical JSON repair. The
// repaired flag is set whenever the stored bytes need rewriting.
func recoverPayload(raw json.RawMessage, repair bool) (map[string]any, bool, error) {
	text := string(raw)

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err == nil {
		return data, false, nil
	}

	// A string-encoded payload parses as a JSON string first.
	var inner string
	if err := json.Unmarshal(raw, &inner); err == nil {
		if uerr := json.Unmarshal([]byte(inner), &data); uerr == nil {
			return data, true, nil
		}
		text = inner
	}

	if !repair {
		return nil, false, eris.New("extraction: payload is not a JSON object")
	}

	fixed, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return nil, false, eris.Wrap(err, "extraction: repair payload")
	}
	if uerr := json.Unmarshal([]byte(fixed), &data); uerr != nil {
		return nil, false, eris.Wrap(uerr, "extraction: parse repaired payload")
	}
	return data, true, nil
}

func numericString(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// conformance checks declared fields for type problems and flags fields
// the schema does not declare.
func (c *Checker) conformance(data map[string]any) []string {
	var problems []string
	for _, name := range c.Schema.FieldNames() {
		v, ok := data[name]
		if !ok || v == nil {
			continue
		}
		problems = append(problems, conformField(name, c.Schema.Fields[name], v)...)
	}

	undeclared := make([]string, 0)
	for name := range data {
		if _, ok := c.Schema.Fields[name]; !ok {
			undeclared = append(undeclared, name)
		}
	}
	sort.Strings(undeclared)
	for _, name := range undeclared {
		problems = append(problems, fmt.Sprintf("field %q not declared in schema", name))
	}
	return problems
}

func conformField(name string, f schema.Field, v any) []string {
	switch f.Type {
	case schema.TypeBoolean:
		if _, ok := v.(bool); !ok {
			return []string{fmt.Sprintf("field %q: %T is not a boolean", name, v)}
		}
	case schema.TypeNumeric:
		switch n := v.(type) {
		case float64, int, int64, json.Number:
		case string:
			if !numericString(n) {
				return []string{fmt.Sprintf("field %q: %q is not numeric", name, n)}
			}
		default:
			return []string{fmt.Sprintf("field %q: %T is not numeric", name, v)}
		}
	case schema.TypeString:
		switch v.(type) {
		case string, float64, json.Number, bool:
		default:
			return []string{fmt.Sprintf("field %q: %T is not a string", name, v)}
		}
	case schema.TypeList:
		items, ok := v.([]any)
		if !ok {
			// Bare scalars are tolerated at comparison time, but the
			// check surfaces them so the pipeline can be fixed.
			return []string{fmt.Sprintf("field %q: %T is not a list", name, v)}
		}
		var problems []string
		for i, item := range items {
			if item == nil {
				continue
			}
			problems = append(problems, conformField(fmt.Sprintf("%s[%d]", name, i), f.ElemSpec(), item)...)
		}
		return problems
	case schema.TypeObject:
		m, ok := v.(map[string]any)
		if !ok {
			return []string{fmt.Sprintf("field %q: %T is not an object", name, v)}
		}
		var problems []string
		for _, sub := range sortedFieldNames(f.Fields) {
			sv, ok := m[sub]
			if !ok || sv == nil {
				continue
			}
			problems = append(problems, conformField(name+"."+sub, f.Fields[sub], sv)...)
		}
		return problems
	}
	return nil
}

func sortedFieldNames(fields map[string]schema.Field) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
