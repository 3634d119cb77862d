// Package util holds the small, broadly-reused helpers that don't
// belong to any one pipeline stage: Unicode punctuation splitting, a
// memoized lazy sequence over an iterator, a bounded worker pool that
// bridges blocking filesystem operations, and order-preserving grouping.
package util

import "unicode"

// SplitByPunctuations splits text at Unicode punctuation boundaries: a
// split point falls immediately after a run of punctuation characters,
// as long as that run isn't the text's leading prefix and doesn't run
// to the end of the string. A text with no internal punctuation
// boundary returns a single-element slice holding text unchanged.
func SplitByPunctuations(text string) []string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return []string{""}
	}

	isPunct := make([]bool, n)
	for i, r := range runes {
		isPunct[i] = unicode.IsPunct(r)
	}

	allPunctPrefix := make([]bool, n+1)
	allPunctPrefix[0] = true
	for i := 0; i < n; i++ {
		allPunctPrefix[i+1] = allPunctPrefix[i] && isPunct[i]
	}

	var splits []int
	for i := 1; i < n; i++ {
		if isPunct[i-1] && !isPunct[i] && !allPunctPrefix[i] {
			splits = append(splits, i)
		}
	}
	if len(splits) == 0 {
		return []string{text}
	}

	parts := make([]string, 0, len(splits)+1)
	prev := 0
	for _, s := range splits {
		parts = append(parts, string(runes[prev:s]))
		prev = s
	}
	parts = append(parts, string(runes[prev:]))
	return parts
}
