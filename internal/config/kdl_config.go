package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// overrideFile is the optional per-project configuration file. Its
// absence is not an error: Load simply returns Default().
const overrideFile = ".textgen.kdl"

// Load returns Default() with any values found in <projectRoot>/.textgen.kdl
// applied on top. A missing file is not an error.
func Load(projectRoot string) (*Config, error) {
	path := filepath.Join(projectRoot, overrideFile)
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return parseKDL(string(content))
}

func parseKDL(content string) (*Config, error) {
	cfg := Default()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing textgen config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "cloze_token":
			for _, cn := range n.Children {
				assignSimpleString(cn, "open", func(v string) { cfg.ClozeToken.Open = v })
				assignSimpleString(cn, "close", func(v string) { cfg.ClozeToken.Close = v })
			}
		case "separators":
			for _, cn := range n.Children {
				if s, ok := firstStringArg(cn); ok {
					if key, ok := separatorKeyFor(nodeName(cn)); ok {
						cfg.FlashcardSeparators[key] = s
					}
				}
			}
		}
	}

	return cfg, nil
}

// separatorKeyFor maps the four fixed node names recognized inside a
// "separators" block to their SeparatorKey.
func separatorKeyFor(name string) (SeparatorKey, bool) {
	switch name {
	case "singleline":
		return SeparatorKey{Reversible: false, Multiline: false}, true
	case "reversible_singleline":
		return SeparatorKey{Reversible: true, Multiline: false}, true
	case "multiline":
		return SeparatorKey{Reversible: false, Multiline: true}, true
	case "reversible_multiline":
		return SeparatorKey{Reversible: true, Multiline: true}, true
	default:
		return SeparatorKey{}, false
	}
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
