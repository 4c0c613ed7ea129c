package research

import (
	"fmt"
	"sort"
	"strings"
)

// Pool is the bounded, deduplicated, score-ranked collection of
// evaluated sources carried across cycles. It is owned by the
// Controller and mutated once per cycle via Merge.
type Pool struct {
	max     int
	entries []Source
	index   map[string]int // url -> position in entries
}

// NewPool creates an empty pool capped at max sources.
func NewPool(max int) *Pool {
	if max < 1 {
		max = 1
	}
	return &Pool{max: max, index: make(map[string]int)}
}

// Merge folds a cycle's evaluated sources into the pool, keyed by URL.
// On collision the higher score wins; equal scores keep the
// earlier-discovered entry, since earlier cycles reflect more targeted
// queries. After merging the pool is re-ranked by score and truncated
// to its cap. Truncated sources are gone for good; a later cycle that
// re-surfaces the same URL starts from a fresh evaluation.
//
// The return value counts pool improvements: new URLs retained plus
// existing URLs whose score was raised. Merging an identical source
// twice changes nothing and counts nothing.
func (p *Pool) Merge(batch []Source) int {
	changed := make(map[string]struct{})
	for _, src := range batch {
		if src.URL == "" {
			continue
		}
		if i, ok := p.index[src.URL]; ok {
			if src.Score > p.entries[i].Score {
				p.entries[i] = src
				changed[src.URL] = struct{}{}
			}
			continue
		}
		p.index[src.URL] = len(p.entries)
		p.entries = append(p.entries, src)
		changed[src.URL] = struct{}{}
	}

	// Stable sort preserves discovery order among equal scores, so the
	// earlier-discovered entry is the last to be truncated.
	sort.SliceStable(p.entries, func(i, j int) bool {
		return p.entries[i].Score > p.entries[j].Score
	})

	if len(p.entries) > p.max {
		for _, cut := range p.entries[p.max:] {
			delete(p.index, cut.URL)
		}
		p.entries = p.entries[:p.max]
	}
	for i, e := range p.entries {
		p.index[e.URL] = i
	}

	// A newcomer that was truncated straight back out did not improve
	// the pool; only surviving additions and raises count.
	improved := 0
	for url := range changed {
		if _, ok := p.index[url]; ok {
			improved++
		}
	}
	return improved
}

// Len returns the number of retained sources.
func (p *Pool) Len() int {
	return len(p.entries)
}

// Full reports whether the pool has reached its cap.
func (p *Pool) Full() bool {
	return len(p.entries) >= p.max
}

// MinScore returns the lowest retained score, or 0 for an empty pool.
func (p *Pool) MinScore() float64 {
	if len(p.entries) == 0 {
		return 0
	}
	return p.entries[len(p.entries)-1].Score
}

// Sources returns the retained sources in rank order.
func (p *Pool) Sources() []Source {
	out := make([]Source, len(p.entries))
	copy(out, p.entries)
	return out
}

// Digest renders the pool as numbered one-line entries for use in
// follow-up query prompts.
func (p *Pool) Digest() string {
	if len(p.entries) == 0 {
		return ""
	}
	var lines []string
	for i, s := range p.entries {
		summary := s.Summary
		if len(summary) > 200 {
			summary = summary[:200] + "..."
		}
		lines = append(lines, fmt.Sprintf("[%d] %s: %s", i+1, s.Title, summary))
	}
	return strings.Join(lines, "\n")
}
