package source

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Pool is a keyed cache of loaded sources. Every distinct path is loaded once
// and shared by all expressions that reference it.
type Pool struct {
	ctx     context.Context // Logging context with the source subsystem
	baseDir string

	mu      sync.Mutex
	sources map[string]*Source
}

// NewPool creates a pool resolving relative paths against baseDir.
func NewPool(ctx context.Context, baseDir string) *Pool {
	return &Pool{
		ctx:     ctx,
		baseDir: baseDir,
		sources: make(map[string]*Source),
	}
}

// Resolve returns the source for name, loading it on first use.
func (p *Pool) Resolve(name string) (*Source, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	path := p.resolvePath(name)

	if src, ok := p.sources[path]; ok {
		tflog.SubsystemTrace(p.ctx, "source", "Source reused", map[string]any{
			"path": path,
		})
		return src, nil
	}

	start := time.Now()
	src, err := Load(path)
	if err != nil {
		tflog.SubsystemError(p.ctx, "source", "Failed to load source file", map[string]any{
			"path":  path,
			"error": err.Error(),
		})
		return nil, err
	}

	p.sources[path] = src
	tflog.SubsystemDebug(p.ctx, "source", "Source loaded", map[string]any{
		"path":        path,
		"lines":       src.Len(),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return src, nil
}

// Add registers an already loaded source. Its ID is resolved like a name
// passed to Resolve, so a relative ID lands under the pool's base directory.
func (p *Pool) Add(src *Source) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources[p.resolvePath(src.ID())] = src
}

// Len returns the number of distinct loaded sources.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sources)
}

// Sources returns the loaded sources ordered by ID.
func (p *Pool) Sources() []*Source {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*Source, 0, len(p.sources))
	for _, src := range p.sources {
		out = append(out, src)
	}
	slices.SortFunc(out, func(a, b *Source) int {
		return strings.Compare(a.id, b.id)
	})
	return out
}

func (p *Pool) resolvePath(name string) string {
	if p.baseDir == "" || filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	return filepath.Join(p.baseDir, name)
}
