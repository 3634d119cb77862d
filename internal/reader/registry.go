package reader

import (
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/weavedoc/textgen/internal/executor"
	"github.com/weavedoc/textgen/internal/xerrors"
)

// Registry is the per-path Reader cache: a document is parsed at most
// once per run, concurrent requests for the same path share a single
// parse, and a document importing itself (directly or transitively) is
// a ParseError rather than a deadlock.
type Registry struct {
	mu       sync.RWMutex
	readers  map[string]*Reader
	group    singleflight.Group
	executor executor.Executor
}

// NewRegistry builds an empty Registry whose readers compile program
// blocks with ex.
func NewRegistry(ex executor.Executor) *Registry {
	return &Registry{readers: make(map[string]*Reader), executor: ex}
}

// Cached returns the Reader for path, parsing it on first request.
func (reg *Registry) Cached(path string) (*Reader, error) {
	return reg.cached(path, nil)
}

func (reg *Registry) cached(path string, chain map[string]bool) (*Reader, error) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, xerrors.NewIOError("resolve", path, err)
	}

	reg.mu.RLock()
	r, ok := reg.readers[resolved]
	reg.mu.RUnlock()
	if ok {
		return r, nil
	}
	if chain[resolved] {
		return nil, xerrors.NewParseError(resolved, 0, "", "cyclic import")
	}

	nextChain := make(map[string]bool, len(chain)+1)
	for k := range chain {
		nextChain[k] = true
	}
	nextChain[resolved] = true

	v, err, _ := reg.group.Do(resolved, func() (interface{}, error) {
		reg.mu.RLock()
		cached, ok := reg.readers[resolved]
		reg.mu.RUnlock()
		if ok {
			return cached, nil
		}

		content, err := os.ReadFile(resolved)
		if err != nil {
			return nil, xerrors.NewIOError("read", resolved, err)
		}

		built := &Reader{
			Path:     resolved,
			Dir:      filepath.Dir(resolved),
			executor: reg.executor,
			registry: reg,
			chain:    nextChain,
		}
		if err := built.read(string(content)); err != nil {
			return nil, err
		}

		reg.mu.Lock()
		reg.readers[resolved] = built
		reg.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Reader), nil
}
