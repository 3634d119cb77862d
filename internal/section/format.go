package section

import (
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
	"github.com/weavedoc/textgen/internal/xerrors"
)

// Marker is the fixed 36-char identifier baked into every section
// sentinel. It is routed through uuid.Parse once at package init so a
// malformed literal fails at startup rather than on the first file
// scan.
var Marker = uuid.MustParse("c2e1d8b4-6f0a-4e9c-9b7d-1a2f3c4d5e6f").String()

// sectionFormat describes one extension's section sentinel pair: the
// regexes that find an opening and closing tag, a way to recover the
// section name from an opening match, and the literal tags to emit when
// writing a brand new section.
type sectionFormat struct {
	startRegex *regexp.Regexp
	endRegex   *regexp.Regexp
	nameOf     func(text string, match []int) string
	startTag   func(name string) string
	stopTag    func(name string) string
}

var formats map[string]sectionFormat

func init() {
	formats = map[string]sectionFormat{
		"": {
			startRegex: regexp.MustCompile(regexp.QuoteMeta("["+Marker+",generate,") + `([^,\]]*?)\]`),
			endRegex:   regexp.MustCompile(regexp.QuoteMeta("[" + Marker + ",end]")),
			nameOf: func(text string, match []int) string {
				return text[match[2]:match[3]]
			},
			startTag: func(name string) string { return "[" + Marker + ",generate," + name + "]" },
			stopTag:  func(string) string { return "[" + Marker + ",end]" },
		},
		".md": {
			// RE2 has no backreferences, so the two quote styles the
			// source regex expresses with \1 become two alternatives;
			// nameOf picks whichever alternative actually matched.
			startRegex: regexp.MustCompile(`(?s)` +
				regexp.QuoteMeta(`<!--`+Marker+` generate section=`) + `"([^"]*)"` + regexp.QuoteMeta("-->") +
				`|` +
				regexp.QuoteMeta(`<!--`+Marker+` generate section=`) + `'([^']*)'` + regexp.QuoteMeta("-->")),
			endRegex: regexp.MustCompile(regexp.QuoteMeta("<!--/" + Marker + "-->")),
			nameOf: func(text string, match []int) string {
				if match[2] != -1 {
					return text[match[2]:match[3]]
				}
				return text[match[4]:match[5]]
			},
			startTag: func(name string) string {
				return `<!--` + Marker + ` generate section="` + name + `"-->`
			},
			stopTag: func(string) string { return "<!--/" + Marker + "-->" },
		},
	}
}

// formatFor resolves path's extension to its sectionFormat.
func formatFor(path string) (sectionFormat, error) {
	ext := filepath.Ext(path)
	f, ok := formats[ext]
	if !ok {
		return sectionFormat{}, xerrors.NewValidationError(path, "no section format registered for extension "+ext)
	}
	return f, nil
}
