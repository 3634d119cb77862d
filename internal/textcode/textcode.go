// Package textcode implements the TextCode mini-language: a nested,
// escape-aware tagged-block format compiled by an explicit pushdown
// automaton over the states normal/tag/block/escape.
package textcode

import (
	"strings"
	"unicode/utf8"

	"github.com/weavedoc/textgen/internal/xerrors"
)

// CommonTag is the tag value shared by every common (untagged) block.
const CommonTag = ""

const escapeChars = "\\{}:"

// Escape inserts a backslash before every occurrence of \ { } : in text.
func Escape(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(escapeChars, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EscapeBlock wraps the escaped text as a standalone special block with an
// empty tag, so that pathological payloads (including the empty string)
// round-trip through the compiler.
func EscapeBlock(text string) string {
	return "{:" + Escape(text) + "}"
}

// Block is an immutable (text, char offset, tag) triple. A non-empty Tag
// marks a special block; an empty Tag marks a common one.
type Block struct {
	Text string
	Char int
	Tag  string
}

// Special reports whether the block carries a non-empty tag.
func (b Block) Special() bool { return b.Tag != "" }

// Common reports whether the block is untagged.
func (b Block) Common() bool { return !b.Special() }

// String renders the block back into TextCode source form.
func (b Block) String() string {
	if b.Special() {
		return "{" + b.Tag + ":" + Escape(b.Text) + "}"
	}
	if b.Text != "" {
		return Escape(b.Text)
	}
	return "{:}"
}

// ByTagEntry pairs a block with its position in the owning TextCode.
type ByTagEntry struct {
	Index int
	Block Block
}

// TextCode is an ordered, immutable sequence of Blocks plus a secondary
// index from tag to the blocks carrying it.
type TextCode struct {
	blocks []Block
	byTag  map[string][]ByTagEntry
}

// New builds a TextCode from an already-parsed block sequence.
func New(blocks []Block) *TextCode {
	tc := &TextCode{
		blocks: append([]Block(nil), blocks...),
		byTag:  make(map[string][]ByTagEntry),
	}
	for i, b := range tc.blocks {
		tc.byTag[b.Tag] = append(tc.byTag[b.Tag], ByTagEntry{Index: i, Block: b})
	}
	return tc
}

// Compile runs the pushdown automaton over text and returns the resulting
// TextCode, or a *xerrors.ParseError naming the offending offset.
func Compile(text string) (*TextCode, error) {
	blocks, err := compile(text)
	if err != nil {
		return nil, err
	}
	return New(blocks), nil
}

// Blocks returns the ordered block sequence.
func (tc *TextCode) Blocks() []Block { return tc.blocks }

// ByTag returns every (index, block) pair carrying the given tag, in
// ascending index order.
func (tc *TextCode) ByTag(tag string) []ByTagEntry { return tc.byTag[tag] }

// String concatenates every block's serialized form.
func (tc *TextCode) String() string {
	var b strings.Builder
	for _, blk := range tc.blocks {
		b.WriteString(blk.String())
	}
	return b.String()
}

// Equal reports whether two TextCodes have identical block sequences.
func (tc *TextCode) Equal(other *TextCode) bool {
	if other == nil || len(tc.blocks) != len(other.blocks) {
		return false
	}
	for i := range tc.blocks {
		if tc.blocks[i] != other.blocks[i] {
			return false
		}
	}
	return true
}

// CodeToStrs streams block.Text for every common block, plus every block
// carrying the given tag.
func CodeToStrs(tc *TextCode, tag string) []string {
	out := make([]string, 0, len(tc.blocks))
	for _, blk := range tc.blocks {
		if blk.Common() || blk.Tag == tag {
			out = append(out, blk.Text)
		}
	}
	return out
}

// CodeToStr concatenates CodeToStrs.
func CodeToStr(tc *TextCode, tag string) string {
	return strings.Join(CodeToStrs(tc, tag), "")
}

// AffixCode recompiles prefix ++ str(code) ++ suffix as a fresh TextCode.
func AffixCode(tc *TextCode, prefix, suffix string) (*TextCode, error) {
	return Compile(prefix + tc.String() + suffix)
}

// SeparateCodeByTag splits the serialized form of code at every char offset
// of a block carrying tag, yielding successive TextCodes. The first result
// covers the text before the first such block (possibly empty); boundary
// blocks begin each following sub-code.
func SeparateCodeByTag(tc *TextCode, tag string) ([]*TextCode, error) {
	source := []rune(tc.String())
	entries := tc.ByTag(tag)
	result := make([]*TextCode, 0, len(entries)+1)
	cur := 0
	for _, e := range entries {
		idx := e.Block.Char
		if idx < cur {
			idx = cur
		}
		if idx > len(source) {
			idx = len(source)
		}
		sub, err := Compile(string(source[cur:idx]))
		if err != nil {
			return nil, err
		}
		result = append(result, sub)
		cur = idx
	}
	last, err := Compile(string(source[cur:]))
	if err != nil {
		return nil, err
	}
	return append(result, last), nil
}

// stateKind enumerates the pushdown automaton's states.
type stateKind int

const (
	stNormal stateKind = iota
	stTag
	stBlock
	stEscape
)

// frame is one stack entry of the automaton. normal/tag accumulate into
// text; block accumulates into tag+body; escape remembers the state it
// interrupted so the following literal character rejoins it.
type frame struct {
	kind stateKind
	text string
	tag  string
	body string
	prev stateKind
}

// compile is a single left-to-right scan. It mutates an explicit frame
// stack rather than recursing, so escape can always resume whichever
// state it interrupted.
func compile(code string) ([]Block, error) {
	padded := code
	if !strings.HasSuffix(code, "}") || strings.HasSuffix(code, `\}`) || strings.HasSuffix(code, "{}") {
		padded = code + "{}"
	}

	runes := []rune(padded)
	var blocks []Block
	stack := []frame{{kind: stNormal}}

	fail := func(idx int, reason string) ([]Block, error) {
		frag := string(runes[idx:min(idx+20, len(runes))])
		return nil, xerrors.NewParseError("", idx, frag, reason)
	}

	for idx := 0; idx < len(runes); idx++ {
		ch := runes[idx]
		top := &stack[len(stack)-1]

		switch top.kind {
		case stNormal:
			switch ch {
			case '\\':
				stack = append(stack, frame{kind: stEscape, prev: stNormal})
			case '{':
				if top.text != "" {
					blocks = append(blocks, Block{Text: top.text, Char: idx - utf8.RuneCountInString(top.text)})
					top.text = ""
				}
				stack = append(stack, frame{kind: stTag})
			case '}':
				return fail(idx, "unmatched '}' outside any block")
			default:
				top.text += string(ch)
			}

		case stTag:
			switch ch {
			case '\\':
				stack = append(stack, frame{kind: stEscape, prev: stTag})
			case '{':
				return fail(idx, "unexpected '{' inside tag")
			case ':':
				stack[len(stack)-1] = frame{kind: stBlock, tag: top.text}
			case '}':
				if top.text != "" {
					return fail(idx, "unexpected '}' inside tag")
				}
				// "{}" with no colon and no tag text is a silent no-op,
				// used to flush a trailing common run without emitting
				// a block of its own.
				stack = stack[:len(stack)-1]
			default:
				top.text += string(ch)
			}

		case stBlock:
			switch ch {
			case '\\':
				stack = append(stack, frame{kind: stEscape, prev: stBlock})
			case '{', ':':
				return fail(idx, "unexpected '{' or ':' inside block body")
			case '}':
				char := idx - 1 - utf8.RuneCountInString(top.tag) - 1 - utf8.RuneCountInString(top.body)
				blocks = append(blocks, Block{Text: top.body, Char: char, Tag: top.tag})
				stack = stack[:len(stack)-1]
			default:
				top.body += string(ch)
			}

		case stEscape:
			prev := top.prev
			stack = stack[:len(stack)-1]
			below := &stack[len(stack)-1]
			if prev == stBlock {
				below.body += string(ch)
			} else {
				below.text += string(ch)
			}
		}
	}

	if len(stack) != 1 || stack[0].kind != stNormal {
		return fail(len(runes)-1, "unterminated tag, body, or escape at end of input")
	}
	return blocks, nil
}
