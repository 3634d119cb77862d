// Package section implements the file-section registry: a per-file,
// mtime-invalidated cache of named section slices, and the Location
// capability used to scope an edit to a whole file, one named section,
// or nowhere at all.
package section

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/weavedoc/textgen/internal/xerrors"
)

// sectionSlice is the half-open byte range of a section's body plus the
// text that occupied it at parse time.
type sectionSlice struct {
	start, end int
	original   string
}

// pathEntry holds one file's cached parse plus the mutex that serializes
// both the scan and the open/close critical section for that path.
type pathEntry struct {
	mu       sync.Mutex
	mtimeNs  int64
	sections map[string]sectionSlice
	order    []string
}

// Registry is the process-wide, per-path-mutex section cache. A single
// Registry is typically shared across an entire generate or clear run.
type Registry struct {
	entries sync.Map // map[string]*pathEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) entryFor(path string) *pathEntry {
	v, _ := r.entries.LoadOrStore(path, &pathEntry{})
	return v.(*pathEntry)
}

// ensureParsed reparses content into e.sections unless e already holds a
// parse for the given mtime.
func (e *pathEntry) ensureParsed(path string, content []byte, mtimeNs int64) error {
	if e.sections != nil && e.mtimeNs == mtimeNs {
		return nil
	}
	format, err := formatFor(path)
	if err != nil {
		return err
	}
	sections, order, err := parseSections(format, string(content), path)
	if err != nil {
		return err
	}
	e.sections = sections
	e.order = order
	e.mtimeNs = mtimeNs
	return nil
}

// parseSections scans text for sequential, non-overlapping start/stop
// pairs, rejecting duplicate names and checking that no closing
// sentinel is left unmatched.
func parseSections(f sectionFormat, text, path string) (map[string]sectionSlice, []string, error) {
	sections := make(map[string]sectionSlice)
	var order []string
	readTo := 0

	starts := f.startRegex.FindAllStringSubmatchIndex(text, -1)
	for _, m := range starts {
		start := m[0]
		if start < readTo {
			return nil, nil, xerrors.NewParseError(path, start, fragment(text, start), "overlapping section start")
		}
		name := f.nameOf(text, m)
		if _, exists := sections[name]; exists {
			return nil, nil, xerrors.NewParseError(path, start, fragment(text, start), fmt.Sprintf("duplicate section name %q", name))
		}

		bodyStart := m[1]
		stop := f.stopTag(name)
		rel := strings.Index(text[bodyStart:], stop)
		if rel < 0 {
			return nil, nil, xerrors.NewParseError(path, bodyStart, fragment(text, bodyStart), fmt.Sprintf("unenclosed section %q", name))
		}
		closeStart := bodyStart + rel
		closeEnd := closeStart + len(stop)

		sections[name] = sectionSlice{start: bodyStart, end: closeStart, original: text[bodyStart:closeStart]}
		order = append(order, name)
		readTo = closeEnd
	}

	if ends := f.endRegex.FindAllStringIndex(text, -1); len(ends) > len(sections) {
		return nil, nil, xerrors.NewParseError(path, 0, "", "too many closings")
	}

	return sections, order, nil
}

func fragment(text string, offset int) string {
	const width = 20
	end := offset + width
	if end > len(text) {
		end = len(text)
	}
	if offset > len(text) {
		offset = len(text)
	}
	return text[offset:end]
}

// sectionAt reads path, ensures its cached parse is current, and returns
// the named slice alongside the freshly-read file content it was
// computed against.
func (r *Registry) sectionAt(path, name string) (content []byte, slice sectionSlice, entry *pathEntry, err error) {
	entry = r.entryFor(path)
	entry.mu.Lock()

	info, statErr := os.Stat(path)
	if statErr != nil {
		entry.mu.Unlock()
		return nil, sectionSlice{}, nil, xerrors.NewIOError("stat", path, statErr)
	}
	content, readErr := os.ReadFile(path)
	if readErr != nil {
		entry.mu.Unlock()
		return nil, sectionSlice{}, nil, xerrors.NewIOError("read", path, readErr)
	}

	if err := entry.ensureParsed(path, content, info.ModTime().UnixNano()); err != nil {
		entry.mu.Unlock()
		return nil, sectionSlice{}, nil, err
	}

	slice, ok := entry.sections[name]
	if !ok {
		entry.mu.Unlock()
		return nil, sectionSlice{}, nil, xerrors.NewValidationError(path, fmt.Sprintf("no section named %q", name))
	}

	return content, slice, entry, nil
}

// SectionNames returns every section name discovered in path, in
// discovery order, so a caller can operate on every section of a file
// without knowing their names in advance.
func (r *Registry) SectionNames(path string) ([]string, error) {
	entry := r.entryFor(path)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return nil, xerrors.NewIOError("stat", path, err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.NewIOError("read", path, err)
	}
	if err := entry.ensureParsed(path, content, info.ModTime().UnixNano()); err != nil {
		return nil, err
	}

	return append([]string(nil), entry.order...), nil
}
