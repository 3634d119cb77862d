// Package writer persists program output back into documents: Generate
// executes a program and splices its grouped results into their target
// locations with timestamp discipline; Clear truncates or strips state
// annotations from every section of a file.
package writer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/weavedoc/textgen/internal/executor"
	"github.com/weavedoc/textgen/internal/util"
)

// headerLayout renders a wall-clock timestamp with microseconds and a
// colon-separated UTC offset, matching the generate header's regex.
const headerLayout = "2006-01-02T15:04:05.000000-07:00"

var headerRegex = regexp.MustCompile(`^<!-- The following content is generated at \S+\. Any edits will be overridden! -->`)

func generateHeader(t time.Time) string {
	return fmt.Sprintf("<!-- The following content is generated at %s. Any edits will be overridden! -->", t.Local().Format(headerLayout))
}

// GenOpts configures one Generate write.
type GenOpts struct {
	// Timestamp, when true, stamps a fresh generate header on any write
	// that produces non-empty output. When false, an existing header is
	// preserved verbatim and no header is inserted where none existed.
	Timestamp bool
}

// Writer executes one compiled program and splices its results.
type Writer struct {
	Program   executor.Code
	InitCodes []executor.Code
	Env       *executor.Environment
	Opts      GenOpts
}

// New builds a Generate Writer from a reader.WriterSpec-shaped input.
func New(program executor.Code, initCodes []executor.Code, env *executor.Environment, opts GenOpts) *Writer {
	return &Writer{Program: program, InitCodes: initCodes, Env: env, Opts: opts}
}

// Write executes the program, groups its results by target location
// preserving arrival order, and performs one splice per location.
func (w *Writer) Write() error {
	results, err := w.Env.Exec(w.Program, w.InitCodes)
	if err != nil {
		return err
	}

	order, groups := groupByLocation(results)
	for _, key := range order {
		group := groups[key]
		if err := w.splice(group); err != nil {
			return err
		}
	}
	return nil
}

// groupByLocation buckets results by their location's String() key,
// preserving both first-appearance location order and per-location
// result order.
func groupByLocation(results []executor.Result) ([]string, map[string][]executor.Result) {
	return util.GroupBy(results, func(r executor.Result) string { return r.Location.String() })
}

func (w *Writer) splice(group []executor.Result) error {
	if len(group) == 0 {
		return nil
	}
	loc := group[0].Location

	var combined strings.Builder
	for _, r := range group {
		if r.Text == "" {
			continue
		}
		combined.WriteString(r.Text)
	}
	payload := combined.String()

	return loc.Edit(func(current string) (string, error) {
		existingHeader := headerRegex.FindString(current)
		compare := strings.TrimPrefix(current, existingHeader)

		if payload == "" {
			return current, nil
		}
		if payload == compare {
			return current, nil
		}

		var header string
		if w.Opts.Timestamp {
			header = generateHeader(time.Now())
		} else {
			header = existingHeader
		}
		return header + payload, nil
	})
}
