package entry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
	"golang.org/x/sync/errgroup"

	"github.com/isometry/ldapfill/internal/ldap"
	"github.com/isometry/ldapfill/internal/modifier"
	"github.com/isometry/ldapfill/internal/source"
)

const logSubsystem = "generator"

// Option configures a Builder.
type Option func(*Builder)

// WithBase places root entries under base.
func WithBase(base string) Option {
	return func(b *Builder) {
		b.base = base
	}
}

// WithSeed makes a run reproducible. Zero picks a random seed.
// Runs are only reproducible for the same seed and worker count.
func WithSeed(seed uint64) Option {
	return func(b *Builder) {
		b.seed = seed
	}
}

// WithWorkers sets the number of goroutines generating each level.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		b.workers = n
	}
}

// WithRand makes every draw come from r and forces sequential generation.
func WithRand(r source.Rand) Option {
	return func(b *Builder) {
		b.rng = r
	}
}

// Builder generates entry trees from a hierarchy.
type Builder struct {
	hierarchy *Hierarchy
	base      string
	seed      uint64
	workers   int
	rng       source.Rand
}

// NewBuilder validates the build options against h.
func NewBuilder(h *Hierarchy, opts ...Option) (*Builder, error) {
	if h == nil {
		return nil, configErrorf("hierarchy", "no hierarchy defined")
	}

	b := &Builder{hierarchy: h, workers: 1}
	for _, opt := range opts {
		opt(b)
	}

	if b.base != "" {
		if err := ldap.ValidateDNSyntax(b.base); err != nil {
			return nil, &ConfigError{Subject: "base DN", Msg: "cannot use " + b.base, Err: err}
		}
	}
	if b.workers < 1 {
		return nil, configErrorf("workers", "must be at least 1, got %d", b.workers)
	}
	if b.rng != nil {
		b.workers = 1
	}
	for b.seed == 0 {
		b.seed = rand.Uint64()
	}

	return b, nil
}

// Seed returns the seed the builder generates with.
func (b *Builder) Seed() uint64 {
	return b.seed
}

// Build generates the whole tree breadth first. ctx is checked between
// levels and between parents; a cancelled or failed run returns no tree.
func (b *Builder) Build(ctx context.Context) (*Tree, error) {
	tree := &Tree{base: b.base, seed: b.seed}

	tflog.SubsystemInfo(ctx, logSubsystem, "Starting generation", map[string]any{
		"levels":  b.hierarchy.Depth(),
		"entries": b.hierarchy.Total(),
		"seed":    b.seed,
		"workers": b.workers,
		"base_dn": b.base,
	})
	start := time.Now()

	// Level 0 hangs off a single nil parent.
	parents := []*Entry{nil}
	for i, level := range b.hierarchy.levels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		levelStart := time.Now()
		entries, err := b.buildLevel(ctx, i, level, parents)
		if err != nil {
			tflog.SubsystemError(ctx, logSubsystem, "Generation failed", map[string]any{
				"level":        i,
				"object_class": level.Template.name,
				"error":        err.Error(),
			})
			return nil, err
		}
		tree.levels = append(tree.levels, entries)

		elapsed := time.Since(levelStart)
		fields := map[string]any{
			"level":        i,
			"object_class": level.Template.name,
			"entries":      len(entries),
			"duration_ms":  elapsed.Milliseconds(),
		}
		if secs := elapsed.Seconds(); secs > 0 {
			fields["entries_per_second"] = int(float64(len(entries)) / secs)
		}
		tflog.SubsystemInfo(ctx, logSubsystem, "Generated level", fields)

		parents = entries
	}

	tflog.SubsystemInfo(ctx, logSubsystem, "Generation completed", map[string]any{
		"entries":     tree.Len(),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return tree, nil
}

func (b *Builder) buildLevel(ctx context.Context, i int, level Level, parents []*Entry) ([]*Entry, error) {
	out := make([]*Entry, len(parents)*level.Count)
	if len(out) == 0 {
		return out, nil
	}

	workers := min(b.workers, len(parents))
	chunk := (len(parents) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w*chunk < len(parents); w++ {
		lo, hi := w*chunk, min((w+1)*chunk, len(parents))
		rng := b.randFor(i, w)

		g.Go(func() error {
			for p := lo; p < hi; p++ {
				if err := gctx.Err(); err != nil {
					return err
				}

				parent := parents[p]
				children := out[p*level.Count : (p+1)*level.Count : (p+1)*level.Count]
				for k := range children {
					e, err := b.instantiate(level.Template, parent, i, k, rng)
					if err != nil {
						return err
					}
					children[k] = e
				}
				if parent != nil {
					parent.children = children
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Builder) randFor(level, worker int) source.Rand {
	if b.rng != nil {
		return b.rng
	}
	return rand.New(rand.NewPCG(b.seed, uint64(level)<<32|uint64(worker)))
}

// instantiate evaluates every attribute of t once, in declaration order.
func (b *Builder) instantiate(t *Template, parent *Entry, level, index int, r source.Rand) (*Entry, error) {
	parentDN := b.base
	if parent != nil {
		parentDN = parent.dn
	}

	e := &Entry{
		template: t,
		values:   make([]Value, len(t.attributes)),
		level:    level,
		index:    index,
		parent:   parent,
	}
	for j, attr := range t.attributes {
		value := modifier.Evaluate(attr.Expr, r)
		e.values[j] = Value{Name: attr.Name, Value: value}
		if attr.Name == t.rdn {
			e.rdn = value
		}
	}

	if e.rdn == "" {
		return nil, &GenerationError{
			ObjectClass: t.name,
			Attribute:   t.rdn,
			ParentDN:    parentDN,
			Level:       level,
			Index:       index,
			Err:         ErrEmptyRDN,
		}
	}
	e.dn = ldap.JoinDN(ldap.FormatRDN(t.rdn, e.rdn), parentDN)

	return e, nil
}
