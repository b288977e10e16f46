// Package query generates search requests against a generated tree, for
// load testing a directory that was filled with that tree.
package query

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/ldapfill/internal/entry"
	"github.com/isometry/ldapfill/internal/ldap"
)

const logSubsystem = "query"

// Query is one generated search.
type Query struct {
	Base   string
	Scope  ldap.SearchScope
	Filter string

	// ExpectResult is false for queries built to match nothing. Otherwise it
	// reports whether the entry the values were taken from lies within
	// Base and Scope, assuming the filter matches that entry.
	ExpectResult bool
}

// Rand is the entropy consumed by the generator. *math/rand/v2.Rand
// satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed makes the query stream reproducible. Zero picks a random seed.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}

// WithRand draws from r instead of a seeded source.
func WithRand(r Rand) Option {
	return func(g *Generator) {
		g.rng = r
	}
}

// WithNoResultProbability sets the share of queries whose values are
// random UUIDs.
func WithNoResultProbability(p float64) Option {
	return func(g *Generator) {
		g.missProb = p
	}
}

// WithBaseWeights weights search bases by the object class of the base
// entry. The tree base DN itself is weighted by using it as a key. Without
// weights every candidate base is equally likely.
func WithBaseWeights(weights map[string]float64) Option {
	return func(g *Generator) {
		g.baseWeights = weights
	}
}

// searchBase is a candidate base. entry is nil for the tree base DN.
type searchBase struct {
	entry *entry.Entry
	dn    string
}

// Generator draws queries from a tree.
type Generator struct {
	filters     []*Filter
	filterPick  weighted
	bases       []searchBase
	basePick    weighted
	byClass     map[string][]*entry.Entry
	baseWeights map[string]float64
	missProb    float64
	seed        uint64
	rng         Rand
}

// NewGenerator checks filters against tree and prepares the candidate bases:
// the tree base DN and every entry that has children.
func NewGenerator(tree *entry.Tree, filters []*Filter, opts ...Option) (*Generator, error) {
	if tree == nil {
		return nil, fmt.Errorf("tree cannot be nil")
	}
	if len(filters) == 0 {
		return nil, fmt.Errorf("no filters configured")
	}

	g := &Generator{filters: filters, byClass: make(map[string][]*entry.Entry)}
	for _, opt := range opts {
		opt(g)
	}
	if g.missProb < 0 || g.missProb > 1 {
		return nil, fmt.Errorf("no result probability must be between 0 and 1, got %g", g.missProb)
	}

	for e := range tree.All() {
		key := strings.ToLower(e.ObjectClass())
		g.byClass[key] = append(g.byClass[key], e)
	}

	weights := make([]float64, len(filters))
	for i, f := range filters {
		if err := g.checkFilter(f); err != nil {
			return nil, err
		}
		weights[i] = f.Weight
	}
	var ok bool
	if g.filterPick, ok = newWeighted(weights); !ok {
		return nil, fmt.Errorf("all filter weights are zero")
	}

	if err := g.collectBases(tree); err != nil {
		return nil, err
	}

	if g.rng == nil {
		for g.seed == 0 {
			g.seed = rand.Uint64()
		}
		g.rng = rand.New(rand.NewPCG(g.seed, 0))
	}

	return g, nil
}

func (g *Generator) checkFilter(f *Filter) error {
	entries := g.byClass[strings.ToLower(f.ObjectClass)]
	if len(entries) == 0 {
		return fmt.Errorf("filter %s: no entries of object class %s", f.Template, f.ObjectClass)
	}

	t := entries[0].Template()
	for _, attr := range f.attrs {
		if !containsFold(t.AttributeNames(), attr) {
			return fmt.Errorf("filter %s: object class %s has no attribute %s", f.Template, t.Name(), attr)
		}
	}
	return nil
}

func (g *Generator) collectBases(tree *entry.Tree) error {
	var weights []float64
	add := func(b searchBase, key string) error {
		w := 1.0
		if g.baseWeights != nil {
			w = lookupFold(g.baseWeights, key)
		}
		if w < 0 {
			return fmt.Errorf("base weight for %s cannot be negative", key)
		}
		if w > 0 {
			g.bases = append(g.bases, b)
			weights = append(weights, w)
		}
		return nil
	}

	if tree.Base() != "" {
		if err := add(searchBase{dn: tree.Base()}, tree.Base()); err != nil {
			return err
		}
	}
	for e := range tree.All() {
		if len(e.Children()) == 0 {
			continue
		}
		if err := add(searchBase{entry: e, dn: e.DN()}, e.ObjectClass()); err != nil {
			return err
		}
	}

	var ok bool
	if g.basePick, ok = newWeighted(weights); !ok {
		return fmt.Errorf("no candidate search bases")
	}
	return nil
}

// Seed returns the seed in use, zero when WithRand was given.
func (g *Generator) Seed() uint64 {
	return g.seed
}

// Generate draws n queries.
func (g *Generator) Generate(ctx context.Context, n int) []Query {
	out := make([]Query, n)
	misses := 0
	for i := range out {
		out[i] = g.Next()
		if !out[i].ExpectResult {
			misses++
		}
	}

	tflog.SubsystemInfo(ctx, logSubsystem, "Generated queries", map[string]any{
		"queries":       n,
		"no_result":     misses,
		"filters":       len(g.filters),
		"search_bases":  len(g.bases),
		"seed":          g.seed,
		"no_result_pct": g.missProb * 100,
	})
	return out
}

// Next draws one query: a filter, a base, then either an entry to take
// values from or, with the no result probability, random values.
func (g *Generator) Next() Query {
	f := g.filters[g.filterPick.pick(g.rng)]
	b := g.bases[g.basePick.pick(g.rng)]

	q := Query{Base: b.dn, Scope: f.Scope}
	// A filter without placeholders cannot be made to miss.
	if g.rng.Float64() < g.missProb && len(f.attrs) > 0 {
		values := make(map[string]string, len(f.attrs))
		q.Filter = f.expand(func(attr string) string {
			key := strings.ToLower(attr)
			if v, ok := values[key]; ok {
				return v
			}
			v := g.missValue()
			values[key] = v
			return v
		})
		return q
	}

	entries := g.byClass[strings.ToLower(f.ObjectClass)]
	e := entries[g.rng.IntN(len(entries))]
	q.Filter = f.expand(func(attr string) string {
		v, _ := e.Get(attr)
		return goldap.EscapeFilter(v)
	})
	q.ExpectResult = inScope(e, b, f.Scope)
	return q
}

// missValue returns a value no generated entry carries.
func (g *Generator) missValue() string {
	u, err := uuid.NewRandomFromReader(randReader{g.rng})
	if err != nil {
		return uuid.NewString()
	}
	return "ldapfill-" + u.String()
}

func inScope(e *entry.Entry, b searchBase, scope ldap.SearchScope) bool {
	switch scope {
	case ldap.ScopeBaseObject:
		return b.entry != nil && e == b.entry
	case ldap.ScopeSingleLevel:
		return e.Parent() == b.entry
	default:
		if b.entry == nil {
			return true
		}
		for p := e; p != nil; p = p.Parent() {
			if p == b.entry {
				return true
			}
		}
		return false
	}
}

// weighted picks indexes proportionally to their weights.
type weighted struct {
	cumulative []float64
}

// newWeighted reports false when no weight is positive.
func newWeighted(weights []float64) (weighted, bool) {
	cum := make([]float64, len(weights))
	total := 0.0
	for i, w := range weights {
		total += w
		cum[i] = total
	}
	return weighted{cumulative: cum}, total > 0
}

func (w weighted) pick(r Rand) int {
	x := r.Float64() * w.cumulative[len(w.cumulative)-1]
	return sort.Search(len(w.cumulative), func(i int) bool {
		return w.cumulative[i] > x
	})
}

// randReader adapts Rand to io.Reader for UUID generation.
type randReader struct {
	r Rand
}

func (rr randReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(rr.r.IntN(256))
	}
	return len(p), nil
}

func containsFold(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

func lookupFold(m map[string]float64, key string) float64 {
	if w, ok := m[key]; ok {
		return w
	}
	for k, w := range m {
		if strings.EqualFold(k, key) {
			return w
		}
	}
	return 0
}
