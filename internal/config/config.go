// Package config holds the generator's tunable values: the cloze
// delimiter pair and the flashcard separator table. Unlike a process-wide
// mutable singleton, Config is a per-run value threaded through Reader and
// Environment construction, so concurrent runs with different overrides
// never observe each other's state.
package config

import "reflect"

// ClozeToken is the (open, close) delimiter pair used to find clozes
// inside a Cloze flashcard's context, e.g. ("{{", "}}").
type ClozeToken struct {
	Open  string
	Close string
}

// SeparatorKey selects a flashcard separator: whether the card is
// reversible and whether either side contains a newline.
type SeparatorKey struct {
	Reversible bool
	Multiline  bool
}

// Config is the tunable set threaded through Reader and Environment
// construction for a single generation run.
type Config struct {
	ClozeToken          ClozeToken
	FlashcardSeparators map[SeparatorKey]string
}

// Default returns the built-in configuration. A reversible single-line
// TwoSided card renders "left:::right"; a reversible multi-line one
// renders "left\n???\nright".
func Default() *Config {
	return &Config{
		ClozeToken: ClozeToken{Open: "{{", Close: "}}"},
		FlashcardSeparators: map[SeparatorKey]string{
			{Reversible: false, Multiline: false}: "::",
			{Reversible: true, Multiline: false}:  ":::",
			{Reversible: false, Multiline: true}:  "\n??\n",
			{Reversible: true, Multiline: true}:   "\n???\n",
		},
	}
}

// Dirty reports whether cfg differs from the built-in defaults. Readers
// must not memoize module exports derived from a dirty configuration,
// since two runs with different overrides must not share cached results.
func Dirty(cfg *Config) bool {
	return !reflect.DeepEqual(cfg, Default())
}

// Separator looks up the separator for a TwoSided card, falling back to
// the non-reversible single-line entry if a custom table left a
// combination unset.
func (c *Config) Separator(reversible, multiline bool) string {
	if s, ok := c.FlashcardSeparators[SeparatorKey{Reversible: reversible, Multiline: multiline}]; ok {
		return s
	}
	return c.FlashcardSeparators[SeparatorKey{}]
}
