// Package executor defines the pluggable program substrate: a uniform
// compile/prepare/run capability that isolates the core pipeline from
// any one embedded-program language. The default implementation in
// ugo_executor.go targets github.com/ozanh/ugo; other engines implement
// the same Executor interface.
package executor

import (
	"fmt"

	"github.com/weavedoc/textgen/internal/section"
	"github.com/weavedoc/textgen/internal/xerrors"
)

// CompileOptions carries the filename used in error messages and any
// engine-specific mode flags. It doubles as (part of) the compile
// cache's key, so equal options for equal source must compare equal.
type CompileOptions struct {
	Filename string
	Mode     string
}

// Code is an opaque compiled program. Source is retained for cache-key
// derivation; Compiled is the engine-specific payload produced by an
// Executor.
type Code struct {
	Source   string
	Filename string
	Compiled interface{}
}

// Namespace is the mutable export set threaded through Prepare and Run:
// injected environment fields plus whatever init codes exported.
type Namespace map[string]interface{}

// Result is the (location, text) pair an executed program emits.
type Result struct {
	Location section.Location
	Text     string
}

// Executor is the capability that compiles source into Code and runs it
// against a namespace seeded with the environment's injected fields and
// extended by each init code's exports in order. Implementations must
// not let one Prepare call's init codes observe each other's result
// values; only their merged namespace exports are visible to later
// codes and to the final Run.
type Executor interface {
	Compile(source string, opts CompileOptions) (Code, error)
	Prepare(init []Code, ns Namespace) (Namespace, error)
	Run(program Code, ns Namespace) (interface{}, error)
}

// NormalizeResults coerces a program's return value into a Result
// slice: a single Result is wrapped into a singleton; a slice must
// contain only Results; anything else is a ValidationError.
func NormalizeResults(path string, raw interface{}) ([]Result, error) {
	switch v := raw.(type) {
	case Result:
		return []Result{v}, nil
	case []Result:
		return v, nil
	case []interface{}:
		out := make([]Result, 0, len(v))
		for _, item := range v {
			r, ok := item.(Result)
			if !ok {
				return nil, xerrors.NewValidationError(path, fmt.Sprintf("program returned non-Result element %T", item))
			}
			out = append(out, r)
		}
		return out, nil
	default:
		return nil, xerrors.NewValidationError(path, fmt.Sprintf("program returned non-Result value %T", raw))
	}
}
