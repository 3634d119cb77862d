// Package reader extracts embedded programs from Markdown documents:
// it finds fenced `data`/`module` program blocks, resolves `# import`
// directives into a per-block init-code list, and exposes a Pipe of
// fully-resolved writer inputs.
package reader

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/weavedoc/textgen/internal/config"
	"github.com/weavedoc/textgen/internal/executor"
	"github.com/weavedoc/textgen/internal/section"
	"github.com/weavedoc/textgen/internal/xerrors"
)

// blockLanguage is the fence info-string the reader recognizes; it names
// the ugo-backed default Executor's language tag.
const blockLanguage = "ugo"

var (
	fenceOpenRegex  = regexp.MustCompile("(?m)^```" + blockLanguage + `\n// ` + regexp.QuoteMeta(section.Marker) + ` generate (\w+)\n`)
	importRegex     = regexp.MustCompile(`^# import (.+)$`)
	importLineRegex = regexp.MustCompile(`(?m)^# import (.+)$`)
)

// CodeLibrary is the capability an imported reader must expose: its
// module blocks' compiled code, in declaration order.
type CodeLibrary interface {
	Codes() []executor.Code
}

type dataBlock struct {
	code      executor.Code
	initCodes []executor.Code
}

// Reader is a per-path singleton that has parsed one Markdown document
// into its module code library and its data blocks.
type Reader struct {
	Path string
	Dir  string

	executor executor.Executor
	registry *Registry
	chain    map[string]bool

	codes      []executor.Code
	dataBlocks []dataBlock
}

// Codes implements CodeLibrary: the blocks tagged `module` in this
// document, each prefixed by its own resolved imports.
func (r *Reader) Codes() []executor.Code {
	return r.codes
}

// read extracts every fenced data/module block from text and populates
// r.codes / r.dataBlocks.
func (r *Reader) read(text string) error {
	matches := fenceOpenRegex.FindAllStringSubmatchIndex(text, -1)
	for _, m := range matches {
		tag := text[m[2]:m[3]]
		bodyStart := m[1]

		closeRel := strings.Index(text[bodyStart:], "\n```")
		if closeRel < 0 {
			return xerrors.NewParseError(r.Path, bodyStart, fragment(text, bodyStart), "unterminated fenced block")
		}
		body := text[bodyStart : bodyStart+closeRel]

		// Count every newline up to and including the opener's own
		// trailing one, so compile errors in the padded program report
		// the body's real source line. Import directives are rewritten
		// as engine comments, keeping the line count intact.
		blankLines := strings.Count(text[:m[1]], "\n")
		padded := strings.Repeat("\n", blankLines) + importLineRegex.ReplaceAllString(body, "// import $1")

		initCodes, err := r.resolveImports(body)
		if err != nil {
			return err
		}

		compiled, err := r.executor.Compile(padded, executor.CompileOptions{Filename: r.Path})
		if err != nil {
			return err
		}

		switch tag {
		case "module":
			r.codes = append(r.codes, dedupCodes(initCodes, []executor.Code{compiled})...)
		case "data":
			r.dataBlocks = append(r.dataBlocks, dataBlock{code: compiled, initCodes: initCodes})
		default:
			return xerrors.NewValidationError(r.Path, fmt.Sprintf("unrecognized block tag %q", tag))
		}
	}
	return nil
}

// resolveImports scans body (the block's unpadded, unwrapped source) for
// "# import <relative path>" lines and returns the union of the imported
// libraries' codes, first occurrence preserved.
func (r *Reader) resolveImports(body string) ([]executor.Code, error) {
	var initCodes []executor.Code
	for _, line := range strings.Split(body, "\n") {
		m := importRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		relPath := strings.TrimSpace(m[1])
		imported, err := r.registry.cached(r.resolveRelative(relPath), r.chain)
		if err != nil {
			return nil, err
		}
		var lib CodeLibrary = imported
		initCodes = dedupCodes(initCodes, lib.Codes())
	}
	return initCodes, nil
}

// resolveRelative resolves an import path relative to this reader's
// directory, matching how CWD-relative paths are resolved elsewhere in
// the pipeline.
func (r *Reader) resolveRelative(relPath string) string {
	if filepath.IsAbs(relPath) {
		return relPath
	}
	return filepath.Join(r.Dir, relPath)
}

// Pipe yields one WriterSpec per data block, ready for a Generate writer.
func (r *Reader) Pipe(opts PipeOptions) []WriterSpec {
	specs := make([]WriterSpec, 0, len(r.dataBlocks))
	for _, db := range r.dataBlocks {
		specs = append(specs, WriterSpec{
			Program:   db.code,
			InitCodes: dedupCodes(db.initCodes, r.codes),
			Env: &executor.Environment{
				Executor:       r.executor,
				Registry:       opts.SectionRegistry,
				Config:         opts.Config,
				CWF:            r.Path,
				CWD:            r.Dir,
				InitFlashcards: opts.InitFlashcards,
			},
		})
	}
	return specs
}

// PipeOptions carries the per-run settings applied to every Environment
// a Pipe call constructs.
type PipeOptions struct {
	SectionRegistry *section.Registry
	Config          *config.Config
	InitFlashcards  bool
}

// WriterSpec is the fully-resolved input to a Generate writer for one
// data block.
type WriterSpec struct {
	Program   executor.Code
	InitCodes []executor.Code
	Env       *executor.Environment
}

func dedupCodes(lists ...[]executor.Code) []executor.Code {
	seen := make(map[string]bool)
	var out []executor.Code
	for _, list := range lists {
		for _, c := range list {
			key := c.Filename + "\x00" + c.Source
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, c)
		}
	}
	return out
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
