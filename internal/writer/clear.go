package writer

import (
	"regexp"

	"github.com/weavedoc/textgen/internal/section"
)

// ClearType names one annotation kind the Clear writer strips from a
// section. Values are bit flags so a run can request both.
type ClearType int

const (
	ClearContent ClearType = 1 << iota
	ClearFlashcardState
)

// ClearOpts is the set of ClearTypes one Clear run applies, as a bitmask.
type ClearOpts struct {
	Types ClearType
}

func (o ClearOpts) has(t ClearType) bool { return o.Types&t != 0 }

var flashcardStateRegex = regexp.MustCompile(` ?<!--SR:.*?-->`)

// ClearWriter strips content and/or flashcard-state annotations from
// every section discovered in a file.
type ClearWriter struct {
	Registry *section.Registry
	Path     string
	Opts     ClearOpts
}

// NewClear builds a ClearWriter over every section of path.
func NewClear(registry *section.Registry, path string, opts ClearOpts) *ClearWriter {
	return &ClearWriter{Registry: registry, Path: path, Opts: opts}
}

// Write applies the configured ClearTypes to every section in the file,
// in section-discovery order.
func (w *ClearWriter) Write() error {
	names, err := w.Registry.SectionNames(w.Path)
	if err != nil {
		return err
	}

	for _, name := range names {
		loc := section.FileSectionLocation{Registry: w.Registry, Path: w.Path, Name: name}
		err := loc.Edit(func(current string) (string, error) {
			switch {
			case w.Opts.has(ClearContent):
				// The splice removes content including any prior generate
				// header: the header lives inside the section body.
				return "", nil
			case w.Opts.has(ClearFlashcardState):
				return flashcardStateRegex.ReplaceAllString(current, ""), nil
			default:
				return current, nil
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}
