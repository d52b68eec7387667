package character

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// defaultFuzzyThreshold is the minimum Jaro-Winkler score required for a
// fuzzy name match to be accepted.
const defaultFuzzyThreshold = 0.85

// Resolver maps loosely-spelled character names to definitions. The control
// surface uses it so a caller can say "switch to mira" without knowing ids:
// exact id and exact (case-insensitive) name matches win first, then the
// best Jaro-Winkler candidate above the threshold.
//
// A Resolver is read-only after construction and safe for concurrent use;
// rebuild it after the roster changes.
type Resolver struct {
	defs      []Definition
	threshold float64
}

// ResolverOption configures a [Resolver] during construction.
type ResolverOption func(*Resolver)

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required for a
// fuzzy match. Default: 0.85.
func WithFuzzyThreshold(threshold float64) ResolverOption {
	return func(r *Resolver) {
		r.threshold = threshold
	}
}

// NewResolver builds a resolver over the given definitions.
func NewResolver(defs []Definition, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		defs:      defs,
		threshold: defaultFuzzyThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the definition best matching query.
//
// The strategy is applied in order:
//  1. Exact ID match.
//  2. Exact name or display-name match, case-insensitive.
//  3. Best Jaro-Winkler similarity against names and display names,
//     accepted only above the configured threshold.
//
// Returns [ErrNotFound] when nothing matches.
func (r *Resolver) Resolve(query string) (Definition, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return Definition{}, ErrNotFound
	}

	for _, d := range r.defs {
		if d.ID == q {
			return d, nil
		}
	}

	lower := strings.ToLower(q)
	for _, d := range r.defs {
		if strings.ToLower(d.Name) == lower || strings.ToLower(d.DisplayName) == lower {
			return d, nil
		}
	}

	var (
		best      Definition
		bestScore float64
	)
	for _, d := range r.defs {
		score := matchr.JaroWinkler(lower, strings.ToLower(d.Name), false)
		if d.DisplayName != "" {
			if s := matchr.JaroWinkler(lower, strings.ToLower(d.DisplayName), false); s > score {
				score = s
			}
		}
		if score > bestScore {
			best = d
			bestScore = score
		}
	}
	if bestScore >= r.threshold {
		return best, nil
	}
	return Definition{}, ErrNotFound
}
