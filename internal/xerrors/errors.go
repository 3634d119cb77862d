// Package xerrors implements the error taxonomy used across the generator
// pipeline: ParseError, IOError, ValidationError, WriteError, CacheError,
// and the strict-match errors raised by flashcard state parsing.
//
// The ParseError, IOError, ValidationError, WriteError and CacheError
// constructors route through github.com/samber/oops, so each wrapped
// error carries the "textgen" domain, a tag naming its Kind and the
// context values the constructor attaches; the typed error also records
// its creation time.
package xerrors

import (
	"fmt"
	"time"

	"github.com/samber/oops"
)

// Kind names an error's category; it is attached as the oops tag. The
// CLI's exit-code accounting matches on the error types, not on Kind.
type Kind string

const (
	KindParse      Kind = "parse"
	KindIO         Kind = "io"
	KindValidation Kind = "validation"
	KindWrite      Kind = "write"
	KindCache      Kind = "cache"
)

func domain(kind Kind) oops.OopsErrorBuilder {
	return oops.In("textgen").Tags(string(kind))
}

// ParseError is fatal to the surrounding operation: a TextCode imbalance,
// a FileSection overlap/duplicate/unenclosed span, or "too many closings".
type ParseError struct {
	Path       string
	Offset     int
	Fragment   string
	Underlying error
	Timestamp  time.Time
}

// NewParseError reports a parse failure at a character offset, truncating
// the offending fragment so long inputs don't flood the log line.
func NewParseError(path string, offset int, fragment string, reason string) *ParseError {
	const maxFragment = 40
	if len(fragment) > maxFragment {
		fragment = fragment[:maxFragment] + "…"
	}
	err := domain(KindParse).
		With("path", path).
		With("offset", offset).
		Wrap(fmt.Errorf("%s", reason))
	return &ParseError{
		Path:       path,
		Offset:     offset,
		Fragment:   fragment,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("parse error in %s at offset %d (near %q): %v", e.Path, e.Offset, e.Fragment, e.Underlying)
	}
	return fmt.Sprintf("parse error at offset %d (near %q): %v", e.Offset, e.Fragment, e.Underlying)
}

func (e *ParseError) Unwrap() error { return e.Underlying }

// WithPath attaches the source path to a ParseError raised by a
// path-agnostic compiler and returns the same error for chaining.
func (e *ParseError) WithPath(path string) *ParseError {
	e.Path = path
	return e
}

// IOError wraps a missing file, encoding failure, or permission problem.
type IOError struct {
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

func NewIOError(op, path string, err error) *IOError {
	wrapped := domain(KindIO).With("path", path).With("op", op).Wrap(err)
	return &IOError{Path: path, Operation: op, Underlying: wrapped, Timestamp: time.Now()}
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

func (e *IOError) Unwrap() error { return e.Underlying }

// ValidationError covers a program returning a non-Result value, an
// imported reader that doesn't satisfy CodeLibrary, or an unrecognized
// fence tag.
type ValidationError struct {
	Path       string
	Reason     string
	Underlying error
	Timestamp  time.Time
}

func NewValidationError(path, reason string) *ValidationError {
	err := domain(KindValidation).With("path", path).Wrap(fmt.Errorf("%s", reason))
	return &ValidationError{Path: path, Reason: reason, Underlying: err, Timestamp: time.Now()}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Path, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Underlying }

// WriteError covers a splice or truncate failure on a Location.
type WriteError struct {
	Location   string
	Underlying error
	Timestamp  time.Time
}

func NewWriteError(location string, err error) *WriteError {
	wrapped := domain(KindWrite).With("location", location).Wrap(err)
	return &WriteError{Location: location, Underlying: wrapped, Timestamp: time.Now()}
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write error for %s: %v", e.Location, e.Underlying)
}

func (e *WriteError) Unwrap() error { return e.Underlying }

// CacheError wraps a compile-cache folder or metadata.json failure. A
// failure to load or persist a single entry does not produce one: the
// cache drops that entry, removes its orphan file and logs a warning.
type CacheError struct {
	CacheName  string
	Underlying error
	Timestamp  time.Time
}

func NewCacheError(cacheName string, err error) *CacheError {
	wrapped := domain(KindCache).With("cache_name", cacheName).Wrap(err)
	return &CacheError{CacheName: cacheName, Underlying: wrapped, Timestamp: time.Now()}
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache error for entry %s: %v", e.CacheName, e.Underlying)
}

func (e *CacheError) Unwrap() error { return e.Underlying }

// NoMatchError is raised by FlashcardState.Compile when zero states are
// found where exactly one was required.
type NoMatchError struct{ Text string }

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no flashcard state found in %q", e.Text)
}

// AmbiguousMatchError is raised by FlashcardState.Compile when more than
// one state is found where exactly one was required.
type AmbiguousMatchError struct {
	Text  string
	Count int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous flashcard state in %q: %d matches", e.Text, e.Count)
}

// MultiError aggregates independent per-file failures so the CLI can
// continue processing remaining inputs and report everything at the end.
type MultiError struct {
	Errors []error
}

func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

func (e *MultiError) Unwrap() []error { return e.Errors }
