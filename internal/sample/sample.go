// Package sample selects papers for manual validation. Selection is
// seeded and candidates are sorted before shuffling, so the same inputs
// and seed always draw the same sample.
package sample

import (
	"math/rand"
	"sort"

	"github.com/rotisserie/eris"
)

// Strategy names how papers are drawn from the extraction results.
type Strategy string

const (
	// StrategyRandom draws uniformly from all candidates.
	StrategyRandom Strategy = "random"
	// StrategyStratified splits candidates by extraction volume and draws
	// from every stratum, so sparse and rich extractions are both
	// represented.
	StrategyStratified Strategy = "stratified"
	// StrategyDiverse is an alias for stratified selection.
	StrategyDiverse Strategy = "diverse"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyRandom, StrategyStratified, StrategyDiverse:
		return Strategy(s), nil
	default:
		return "", eris.Errorf("sample: unknown strategy %q", s)
	}
}

// Options configures sampling.
type Options struct {
	Size     int
	Strategy Strategy
	Seed     int64
}

// Select draws up to Size paper ids from the candidates. The returned ids
// are sorted. When Size covers all candidates, every id is returned.
func Select(papers map[string]map[string]any, opts Options) ([]string, error) {
	if opts.Size < 1 {
		return nil, eris.Errorf("sample: size must be positive, got %d", opts.Size)
	}

	ids := make([]string, 0, len(papers))
	for id := range papers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if len(ids) <= opts.Size {
		return ids, nil
	}

	rng := rand.New(rand.NewSource(opts.Seed))

	var picked []string
	switch opts.Strategy {
	case StrategyRandom:
		picked = drawRandom(rng, ids, opts.Size)
	case StrategyStratified, StrategyDiverse:
		picked = drawStratified(rng, papers, ids, opts.Size)
	default:
		return nil, eris.Errorf("sample: unknown strategy %q", opts.Strategy)
	}

	sort.Strings(picked)
	return picked, nil
}

func drawRandom(rng *rand.Rand, ids []string, size int) []string {
	shuffled := append([]string(nil), ids...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:size]
}

// drawStratified draws one paper from every volume stratum first, splits
// the remaining budget proportionally to stratum size, then tops up from
// the leftover candidates until the sample is full.
func drawStratified(rng *rand.Rand, papers map[string]map[string]any, ids []string, size int) []string {
	byStratum := make(map[string][]string)
	for _, id := range ids {
		s := stratum(Volume(papers[id]))
		byStratum[s] = append(byStratum[s], id)
	}

	strata := make([]string, 0, len(byStratum))
	for s := range byStratum {
		strata = append(strata, s)
	}
	sort.Strings(strata)

	quotas := make(map[string]int, len(strata))
	budget := size
	for _, s := range strata {
		if budget == 0 {
			break
		}
		quotas[s] = 1
		budget--
	}
	for _, s := range strata {
		if budget == 0 {
			break
		}
		extra := len(byStratum[s])*size/len(ids) - quotas[s]
		if extra > len(byStratum[s])-quotas[s] {
			extra = len(byStratum[s]) - quotas[s]
		}
		if extra > budget {
			extra = budget
		}
		if extra > 0 {
			quotas[s] += extra
			budget -= extra
		}
	}

	picked := make([]string, 0, size)
	taken := make(map[string]bool, size)
	for _, s := range strata {
		group := append([]string(nil), byStratum[s]...)
		rng.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})
		for i := 0; i < quotas[s] && len(picked) < size; i++ {
			picked = append(picked, group[i])
			taken[group[i]] = true
		}
	}

	if len(picked) < size {
		rest := make([]string, 0, len(ids)-len(picked))
		for _, id := range ids {
			if !taken[id] {
				rest = append(rest, id)
			}
		}
		rng.Shuffle(len(rest), func(i, j int) {
			rest[i], rest[j] = rest[j], rest[i]
		})
		for _, id := range rest {
			if len(picked) == size {
				break
			}
			picked = append(picked, id)
		}
	}

	return picked
}

// Volume counts the extracted list items in one paper's data.
func Volume(data map[string]any) int {
	n := 0
	for _, v := range data {
		if items, ok := v.([]any); ok {
			n += len(items)
		}
	}
	return n
}

// stratum buckets a paper by how much list data was extracted from it.
func stratum(volume int) string {
	switch {
	case volume == 0:
		return "none"
	case volume <= 2:
		return "few"
	case volume <= 5:
		return "some"
	default:
		return "many"
	}
}
