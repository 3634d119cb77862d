package xerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseError(t *testing.T) {
	err := NewParseError("note.md", 42, "{unterminated", "unmatched '{' in body")

	assert.Equal(t, "note.md", err.Path)
	assert.Equal(t, 42, err.Offset)
	assert.Contains(t, err.Error(), "note.md")
	assert.Contains(t, err.Error(), "offset 42")
}

func TestParseErrorTruncatesLongFragments(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	err := NewParseError("f.md", 0, string(long), "boom")
	assert.LessOrEqual(t, len([]rune(err.Fragment)), 41)
}

func TestIOErrorUnwraps(t *testing.T) {
	underlying := errors.New("permission denied")
	err := NewIOError("read", "/tmp/missing", underlying)

	assert.True(t, errors.Is(err, underlying))
	assert.Contains(t, err.Error(), "/tmp/missing")
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("note.md", "program returned non-Result value")
	assert.Equal(t, "note.md", err.Path)
	assert.Contains(t, err.Error(), "non-Result")
}

func TestWriteError(t *testing.T) {
	underlying := errors.New("disk full")
	err := NewWriteError("note.md#x", underlying)
	assert.True(t, errors.Is(err, underlying))
}

func TestCacheError(t *testing.T) {
	underlying := errors.New("corrupt bytecode")
	err := NewCacheError("abc-123", underlying)
	assert.True(t, errors.Is(err, underlying))
	assert.Contains(t, err.Error(), "abc-123")
}

func TestNoMatchAndAmbiguousMatch(t *testing.T) {
	nm := &NoMatchError{Text: "no state here"}
	assert.Contains(t, nm.Error(), "no flashcard state")

	am := &AmbiguousMatchError{Text: "two states", Count: 2}
	assert.Contains(t, am.Error(), "2 matches")
}

func TestMultiErrorFiltersNil(t *testing.T) {
	e1 := errors.New("first")
	merged := NewMultiError([]error{nil, e1, nil})
	assert.Len(t, merged.Errors, 1)
	assert.Equal(t, "first", merged.Error())
}

func TestMultiErrorNilWhenEmpty(t *testing.T) {
	assert.Nil(t, NewMultiError(nil))
	assert.Nil(t, NewMultiError([]error{nil, nil}))
}

func TestMultiErrorSummary(t *testing.T) {
	merged := NewMultiError([]error{errors.New("a"), errors.New("b")})
	assert.Contains(t, merged.Error(), "2 errors")
}
