package section

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/weavedoc/textgen/internal/xerrors"
)

// Location is the capability a Result targets: a whole file, a named
// section inside a file, or a null sink that discards everything
// written to it. Edit presents the location's current text to fn and
// persists whatever fn returns only if it differs from what was
// presented — an unchanged buffer is a guaranteed no-op write.
type Location interface {
	Edit(fn func(current string) (string, error)) error
	String() string
}

// NullLocation discards everything written to it; it never touches disk.
type NullLocation struct{}

func (NullLocation) Edit(fn func(string) (string, error)) error {
	_, err := fn("")
	return err
}

func (NullLocation) String() string { return "<null>" }

// PathLocation scopes an edit to an entire file's contents.
type PathLocation struct {
	Path string
}

func (l PathLocation) Edit(fn func(string) (string, error)) error {
	original := ""
	existing, err := os.ReadFile(l.Path)
	switch {
	case err == nil:
		original = string(existing)
	case os.IsNotExist(err):
		// A brand new target file starts empty.
	default:
		return xerrors.NewIOError("read", l.Path, err)
	}

	updated, err := fn(original)
	if err != nil {
		return err
	}
	if updated == original {
		return nil
	}
	if err := writeFileAtomically(l.Path, updated); err != nil {
		return xerrors.NewWriteError(l.Path, err)
	}
	return nil
}

func (l PathLocation) String() string { return l.Path }

// FileSectionLocation scopes an edit to one named section of a file,
// backed by a shared Registry so concurrent edits to different sections
// of the same file serialize correctly.
type FileSectionLocation struct {
	Registry *Registry
	Path     string
	Name     string
}

func (l FileSectionLocation) Edit(fn func(string) (string, error)) error {
	content, slice, entry, err := l.Registry.sectionAt(l.Path, l.Name)
	if err != nil {
		return err
	}
	defer entry.mu.Unlock()

	updated, err := fn(slice.original)
	if err != nil {
		return err
	}
	if updated == slice.original {
		return nil
	}

	newContent := string(content[:slice.start]) + updated + string(content[slice.end:])
	if err := writeFileAtomically(l.Path, newContent); err != nil {
		return xerrors.NewWriteError(l.String(), err)
	}
	// The write changed the file's mtime; drop the cached parse so the
	// next access reparses against the new offsets instead of the stale
	// ones computed above.
	entry.sections = nil
	entry.order = nil
	return nil
}

func (l FileSectionLocation) String() string {
	return fmt.Sprintf("%s#%s", l.Path, l.Name)
}

// writeFileAtomically writes content to a temp file in path's directory
// and renames it over path, so a crash mid-write never leaves a
// truncated file in place.
func writeFileAtomically(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".textgen-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	info, err := os.Stat(path)
	mode := os.FileMode(0o644)
	if err == nil {
		mode = info.Mode()
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
