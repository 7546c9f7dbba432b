// Package errors defines the closed taxonomy of failures the indexing
// core can produce, using a "kind + underlying + context" shape rather
// than ad-hoc error strings.
package errors

import (
	"fmt"
)

// Kind identifies one row of the error taxonomy.
type Kind string

const (
	KindRootNotFound     Kind = "root_not_found"
	KindManifestMalformed Kind = "manifest_malformed"
	KindCacheCorrupt     Kind = "cache_corrupt"
	KindFileTooBig       Kind = "file_too_big"
	KindFileBinary       Kind = "file_binary"
	KindFileIOError      Kind = "file_io_error"
	KindParseTimeout     Kind = "parse_timeout"
	KindParseError       Kind = "parse_error"
	KindGitUnavailable   Kind = "git_unavailable"
	KindCacheWriteError  Kind = "cache_write_error"
)

// Fatal reports whether errors of this kind must abort the run rather
// than being localised to a single file.
func (k Kind) Fatal() bool {
	switch k {
	case KindRootNotFound, KindManifestMalformed, KindCacheWriteError:
		return true
	default:
		return false
	}
}

// Error is the single error type the core returns. Construct it with
// one of the New* helpers below.
type Error struct {
	Kind       Kind
	Path       string // repo-relative path, when the error implicates one file
	Operation  string
	Underlying error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (%s): %v", e.Kind, e.Operation, e.Path, e.Underlying)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Operation, e.Underlying)
}

func (e *Error) Unwrap() error { return e.Underlying }

// WithPath attaches a repo-relative path to the error and returns it.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

func new_(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Operation: op, Underlying: err}
}

func NewRootNotFound(op string, err error) *Error      { return new_(KindRootNotFound, op, err) }
func NewManifestMalformed(op string, err error) *Error { return new_(KindManifestMalformed, op, err) }
func NewCacheCorrupt(op string, err error) *Error      { return new_(KindCacheCorrupt, op, err) }
func NewFileTooBig(op string, err error) *Error        { return new_(KindFileTooBig, op, err) }
func NewFileBinary(op string, err error) *Error        { return new_(KindFileBinary, op, err) }
func NewFileIOError(op string, err error) *Error       { return new_(KindFileIOError, op, err) }
func NewParseTimeout(op string, err error) *Error      { return new_(KindParseTimeout, op, err) }
func NewParseError(op string, err error) *Error        { return new_(KindParseError, op, err) }
func NewGitUnavailable(op string, err error) *Error    { return new_(KindGitUnavailable, op, err) }
func NewCacheWriteError(op string, err error) *Error   { return new_(KindCacheWriteError, op, err) }

// Is allows errors.Is(err, Kind) style checks via a sentinel wrapper.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
