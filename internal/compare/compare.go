// Package compare classifies automated extraction values against ground
// truth. Each comparison is driven by the field's declared schema type and
// an explicit Options value; there is no ambient configuration.
package compare

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"

	"github.com/evolbiolab/paperval/internal/schema"
)

// Options controls comparison tolerance. The zero value is strict: exact
// numerics, exact strings, order-independent lists.
type Options struct {
	// NumericTolerance accepts |automated - truth| <= tolerance for
	// top-level numeric fields. It does not apply inside lists.
	NumericTolerance float64 `json:"numeric_tolerance" yaml:"numeric_tolerance" mapstructure:"numeric_tolerance"`
	// FuzzyStrings collapses whitespace and case-folds before comparing.
	FuzzyStrings bool `json:"fuzzy_strings" yaml:"fuzzy_strings" mapstructure:"fuzzy_strings"`
	// OrderedLists compares list elements position-wise instead of as sets.
	OrderedLists bool `json:"list_order_matters" yaml:"list_order_matters" mapstructure:"list_order_matters"`
}

// Counts accumulates comparison outcomes. True negatives arise only from
// boolean fields and never contribute to precision or recall.
type Counts struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TN int `json:"tn,omitempty"`
}

// Add accumulates other into c.
func (c *Counts) Add(other Counts) {
	c.TP += other.TP
	c.FP += other.FP
	c.FN += other.FN
	c.TN += other.TN
}

// Total returns the number of classified items, excluding true negatives.
func (c Counts) Total() int {
	return c.TP + c.FP + c.FN
}

// Field compares an automated value against ground truth under the field's
// declared spec. Absent fields are passed as nil; JSON null is treated as
// absent. A value that cannot be interpreted under the declared type yields
// an error, which callers surface as a warning rather than a failure.
func Field(spec schema.Field, automated, truth any, opts Options) (Counts, error) {
	aAbsent := automated == nil
	tAbsent := truth == nil

	// Absent on both sides: ignored, not counted.
	if aAbsent && tAbsent {
		return Counts{}, nil
	}

	// Present only in automated: everything extracted is a false positive.
	// Present only in truth: everything expected was missed.
	if aAbsent || tAbsent {
		return oneSided(spec, automated, truth, opts)
	}

	switch spec.Type {
	case schema.TypeBoolean:
		return compareBoolean(automated, truth)
	case schema.TypeNumeric:
		return compareNumeric(automated, truth, opts.NumericTolerance)
	case schema.TypeString:
		return compareString(automated, truth, opts)
	case schema.TypeList:
		return compareList(spec.ElemSpec(), automated, truth, opts)
	case schema.TypeObject:
		return compareObject(spec.Fields, automated, truth, opts)
	default:
		return Counts{}, eris.Errorf("compare: unknown field type %q", spec.Type)
	}
}

// oneSided classifies a value present on exactly one side. Lists count per
// element, objects recurse so each present sub-field is counted under its
// own type, scalars count once.
func oneSided(spec schema.Field, automated, truth any, opts Options) (Counts, error) {
	asFP := truth == nil
	present := automated
	if !asFP {
		present = truth
	}

	switch spec.Type {
	case schema.TypeList:
		elems, err := listElements(present)
		if err != nil {
			return Counts{}, err
		}
		keys, err := keySet(spec.ElemSpec(), elems, opts)
		if err != nil {
			return Counts{}, err
		}
		if asFP {
			return Counts{FP: len(keys)}, nil
		}
		return Counts{FN: len(keys)}, nil
	case schema.TypeObject:
		if asFP {
			return compareObject(spec.Fields, present, nil, opts)
		}
		return compareObject(spec.Fields, nil, present, opts)
	default:
		if asFP {
			return Counts{FP: 1}, nil
		}
		return Counts{FN: 1}, nil
	}
}

func compareBoolean(automated, truth any) (Counts, error) {
	a, err := toBool(automated)
	if err != nil {
		return Counts{}, err
	}
	t, err := toBool(truth)
	if err != nil {
		return Counts{}, err
	}
	switch {
	case a && t:
		return Counts{TP: 1}, nil
	case a && !t:
		return Counts{FP: 1}, nil
	case !a && t:
		return Counts{FN: 1}, nil
	default:
		return Counts{TN: 1}, nil
	}
}

func compareNumeric(automated, truth any, tolerance float64) (Counts, error) {
	a, err := toFloat(automated)
	if err != nil {
		return Counts{}, err
	}
	t, err := toFloat(truth)
	if err != nil {
		return Counts{}, err
	}
	if math.Abs(a-t) <= tolerance {
		return Counts{TP: 1}, nil
	}
	return Counts{FP: 1, FN: 1}, nil
}

func compareString(automated, truth any, opts Options) (Counts, error) {
	a, err := toString(automated)
	if err != nil {
		return Counts{}, err
	}
	t, err := toString(truth)
	if err != nil {
		return Counts{}, err
	}
	if normalizeString(a, opts.FuzzyStrings) == normalizeString(t, opts.FuzzyStrings) {
		return Counts{TP: 1}, nil
	}
	return Counts{FP: 1, FN: 1}, nil
}

// compareList computes set-based counts by default: elements are reduced to
// canonical keys, tp = |intersection|, fp = automated-only, fn = truth-only.
// Whole-value equality is the matching key for list-of-objects; there is no
// keyed join on a sub-field. Ordered mode compares position-wise.
func compareList(elem schema.Field, automated, truth any, opts Options) (Counts, error) {
	aElems, err := listElements(automated)
	if err != nil {
		return Counts{}, err
	}
	tElems, err := listElements(truth)
	if err != nil {
		return Counts{}, err
	}

	if opts.OrderedLists {
		return orderedListCounts(elem, aElems, tElems, opts)
	}

	aKeys, err := keySet(elem, aElems, opts)
	if err != nil {
		return Counts{}, err
	}
	tKeys, err := keySet(elem, tElems, opts)
	if err != nil {
		return Counts{}, err
	}

	var c Counts
	for k := range aKeys {
		if _, ok := tKeys[k]; ok {
			c.TP++
		} else {
			c.FP++
		}
	}
	for k := range tKeys {
		if _, ok := aKeys[k]; !ok {
			c.FN++
		}
	}
	return c, nil
}

// orderedListCounts pairs elements by position. A matched pair is a true
// positive; a mismatched pair is both a false positive and a false
// negative; length overhang counts one-sided.
func orderedListCounts(elem schema.Field, aElems, tElems []any, opts Options) (Counts, error) {
	var c Counts
	n := len(aElems)
	if len(tElems) < n {
		n = len(tElems)
	}
	for i := 0; i < n; i++ {
		ak, err := canonicalKey(elem, aElems[i], opts)
		if err != nil {
			return Counts{}, err
		}
		tk, err := canonicalKey(elem, tElems[i], opts)
		if err != nil {
			return Counts{}, err
		}
		if ak == tk {
			c.TP++
		} else {
			c.FP++
			c.FN++
		}
	}
	c.FP += len(aElems) - n
	c.FN += len(tElems) - n
	return c, nil
}

// compareObject recurses over the declared sub-fields, summing counts.
// Either side may be nil (treated as an empty record). Data keys not
// declared in the sub-schema are ignored; record-level unknown fields are
// the aggregator's concern.
func compareObject(fields map[string]schema.Field, automated, truth any, opts Options) (Counts, error) {
	aMap, err := toMap(automated)
	if err != nil {
		return Counts{}, err
	}
	tMap, err := toMap(truth)
	if err != nil {
		return Counts{}, err
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var total Counts
	for _, name := range names {
		c, err := Field(fields[name], aMap[name], tMap[name], opts)
		if err != nil {
			return Counts{}, eris.Wrapf(err, "sub-field %q", name)
		}
		total.Add(c)
	}
	return total, nil
}

// keySet reduces list elements to unique canonical keys. Null elements are
// dropped.
func keySet(elem schema.Field, elems []any, opts Options) (map[string]struct{}, error) {
	keys := make(map[string]struct{}, len(elems))
	for _, e := range elems {
		if e == nil {
			continue
		}
		k, err := canonicalKey(elem, e, opts)
		if err != nil {
			return nil, err
		}
		keys[k] = struct{}{}
	}
	return keys, nil
}

// canonicalKey renders an element as a deterministic string under the
// element spec: scalars normalize to their value form, objects and nested
// lists serialize to canonical JSON with normalization applied recursively.
func canonicalKey(elem schema.Field, v any, opts Options) (string, error) {
	nv, err := normalizeValue(elem, v, opts)
	if err != nil {
		return "", err
	}
	switch s := nv.(type) {
	case string:
		return s, nil
	default:
		data, err := json.Marshal(nv)
		if err != nil {
			return "", eris.Wrap(err, "compare: canonical key")
		}
		return string(data), nil
	}
}

// normalizeValue maps a value to its canonical comparable form under spec.
func normalizeValue(spec schema.Field, v any, opts Options) (any, error) {
	switch spec.Type {
	case schema.TypeBoolean:
		b, err := toBool(v)
		if err != nil {
			return nil, err
		}
		return b, nil
	case schema.TypeNumeric:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case schema.TypeString:
		s, err := toString(v)
		if err != nil {
			return nil, err
		}
		return normalizeString(s, opts.FuzzyStrings), nil
	case schema.TypeList:
		elems, err := listElements(v)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(elems))
		for _, e := range elems {
			if e == nil {
				continue
			}
			k, err := canonicalKey(spec.ElemSpec(), e, opts)
			if err != nil {
				return nil, err
			}
			out = append(out, k)
		}
		if !opts.OrderedLists {
			sort.Strings(out)
		}
		return out, nil
	case schema.TypeObject:
		m, err := toMap(v)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(spec.Fields))
		for name, sub := range spec.Fields {
			val, ok := m[name]
			if !ok || val == nil {
				continue
			}
			nv, err := normalizeValue(sub, val, opts)
			if err != nil {
				return nil, eris.Wrapf(err, "sub-field %q", name)
			}
			out[name] = nv
		}
		return out, nil
	default:
		return nil, eris.Errorf("compare: unknown field type %q", spec.Type)
	}
}

// normalizeString optionally collapses whitespace and case-folds.
func normalizeString(s string, fuzzy bool) string {
	if !fuzzy {
		return s
	}
	folded := cases.Fold().String(s)
	return strings.Join(strings.Fields(folded), " ")
}

// listElements accepts a JSON array or wraps a bare scalar in a
// single-element list, mirroring tolerant annotation files.
func listElements(v any) ([]any, error) {
	if v == nil {
		return nil, nil
	}
	if elems, ok := v.([]any); ok {
		return elems, nil
	}
	return []any{v}, nil
}

func toBool(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, eris.Errorf("compare: %T is not a boolean", v)
	}
	return b, nil
}

// toFloat coerces JSON numbers and numeric strings, matching the loose
// typing of hand-edited annotation files.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, eris.Wrapf(err, "compare: numeric %q", n.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, eris.Errorf("compare: %q is not numeric", n)
		}
		return f, nil
	default:
		return 0, eris.Errorf("compare: %T is not numeric", v)
	}
}

// toString coerces scalars to their string form; composite values are
// rejected.
func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case float64:
		return strconv.FormatFloat(s, 'g', -1, 64), nil
	case json.Number:
		return s.String(), nil
	case bool:
		return strconv.FormatBool(s), nil
	default:
		return "", eris.Errorf("compare: %T is not a string", v)
	}
}

func toMap(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, eris.Errorf("compare: %T is not an object", v)
	}
	return m, nil
}
