package executor

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/weavedoc/textgen/internal/config"
	"github.com/weavedoc/textgen/internal/section"
	"github.com/weavedoc/textgen/internal/xerrors"
)

// Environment is the isolated execution substrate for embedded
// programs: it injects cwf/cwd/cwf_sect capabilities and a render
// policy into a fresh namespace for every Exec call, and memoizes the
// capability portion of that namespace across calls as long as Config
// stays clean.
//
// Programs refer to Locations through opaque string tokens: cwf_sect
// hands out a token per section Location, the empty string denotes the
// null sink, and any other string is a file path resolved against cwd.
// The token table is rebuilt on every Exec, so one run's tokens are
// never observable by the next.
type Environment struct {
	Executor       Executor
	Registry       *section.Registry
	Config         *config.Config
	CWF            string
	CWD            string
	InitFlashcards bool

	mu            sync.Mutex
	cachedLibrary Namespace
	locations     []section.Location
}

const locTokenPrefix = "loc:"

// CwfSect builds a Location bound to a named section of this
// environment's current working file.
func (e *Environment) CwfSect(name string) section.Location {
	return section.FileSectionLocation{Registry: e.Registry, Path: e.CWF, Name: name}
}

// CwfSects builds one Location per name, in the order given.
func (e *Environment) CwfSects(names ...string) []section.Location {
	out := make([]section.Location, len(names))
	for i, n := range names {
		out[i] = e.CwfSect(n)
	}
	return out
}

// registerLocation adds loc to the per-Exec token table and returns its
// token.
func (e *Environment) registerLocation(loc section.Location) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locations = append(e.locations, loc)
	return locTokenPrefix + strconv.Itoa(len(e.locations)-1)
}

// resolveLocation maps a program-visible token back to its Location.
func (e *Environment) resolveLocation(token string) (section.Location, error) {
	if token == "" {
		return section.NullLocation{}, nil
	}
	if rest, ok := strings.CutPrefix(token, locTokenPrefix); ok {
		idx, err := strconv.Atoi(rest)
		e.mu.Lock()
		defer e.mu.Unlock()
		if err != nil || idx < 0 || idx >= len(e.locations) {
			return nil, xerrors.NewValidationError(e.CWF, fmt.Sprintf("unknown location token %q", token))
		}
		return e.locations[idx], nil
	}
	if filepath.IsAbs(token) {
		return section.PathLocation{Path: token}, nil
	}
	return section.PathLocation{Path: filepath.Join(e.CWD, token)}, nil
}

// library returns the cwf/cwd/section-capability namespace entries,
// reusing the memoized copy unless Config has gone dirty since it was
// built; two runs with different overrides must never share one copy.
func (e *Environment) library() Namespace {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cachedLibrary != nil && !config.Dirty(e.Config) {
		return cloneNamespace(e.cachedLibrary)
	}

	lib := Namespace{
		"cwf": e.CWF,
		"cwd": e.CWD,
		"cwf_sect": func(name string) string {
			return e.registerLocation(e.CwfSect(name))
		},
		"cwf_sects": func(names ...string) []string {
			tokens := make([]string, len(names))
			for i, n := range names {
				tokens[i] = e.registerLocation(e.CwfSect(n))
			}
			return tokens
		},
		"cloze_open":  e.Config.ClozeToken.Open,
		"cloze_close": e.Config.ClozeToken.Close,
	}
	if config.Dirty(e.Config) {
		e.cachedLibrary = nil
	} else {
		e.cachedLibrary = lib
	}
	return cloneNamespace(lib)
}

func cloneNamespace(ns Namespace) Namespace {
	out := make(Namespace, len(ns))
	for k, v := range ns {
		out[k] = v
	}
	return out
}

// Exec runs program against a fresh namespace holding this
// environment's injected capabilities, extended by initCodes' merged
// exports, and normalizes the result into a Result slice.
func (e *Environment) Exec(program Code, initCodes []Code) ([]Result, error) {
	e.mu.Lock()
	e.locations = nil
	e.mu.Unlock()

	ns := e.library()
	ns["render_policy"] = map[string]interface{}{
		"pad_missing_flashcard_state": e.InitFlashcards,
		"today":                       time.Now().Format("2006-01-02"),
	}

	ns, err := e.Executor.Prepare(initCodes, ns)
	if err != nil {
		return nil, err
	}

	raw, err := e.Executor.Run(program, ns)
	if err != nil {
		return nil, err
	}

	decoded, err := e.decodeResults(raw)
	if err != nil {
		return nil, err
	}
	return NormalizeResults(e.CWF, decoded)
}

// decodeResults rewrites engine-level result values (maps carrying a
// "text" entry plus an optional "location" token) into Result values,
// leaving native Results untouched so in-process executors keep working.
func (e *Environment) decodeResults(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case map[string]interface{}:
		return e.decodeResultMap(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				out[i] = item
				continue
			}
			r, err := e.decodeResultMap(m)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return raw, nil
	}
}

func (e *Environment) decodeResultMap(m map[string]interface{}) (Result, error) {
	rawText, ok := m["text"]
	if !ok {
		return Result{}, xerrors.NewValidationError(e.CWF, "program result map is missing a \"text\" entry")
	}
	text, ok := rawText.(string)
	if !ok {
		return Result{}, xerrors.NewValidationError(e.CWF, fmt.Sprintf("program result \"text\" is %T, not a string", rawText))
	}

	token := ""
	if rawLoc, ok := m["location"]; ok && rawLoc != nil {
		token, ok = rawLoc.(string)
		if !ok {
			return Result{}, xerrors.NewValidationError(e.CWF, fmt.Sprintf("program result \"location\" is %T, not a string", rawLoc))
		}
	}
	loc, err := e.resolveLocation(token)
	if err != nil {
		return Result{}, err
	}
	return Result{Location: loc, Text: text}, nil
}
