package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindFatalClassification(t *testing.T) {
	fatal := []Kind{KindRootNotFound, KindManifestMalformed, KindCacheWriteError}
	for _, k := range fatal {
		assert.True(t, k.Fatal(), "%s should be fatal", k)
	}

	recoverable := []Kind{
		KindCacheCorrupt, KindFileTooBig, KindFileBinary, KindFileIOError,
		KindParseTimeout, KindParseError, KindGitUnavailable,
	}
	for _, k := range recoverable {
		assert.False(t, k.Fatal(), "%s should not be fatal", k)
	}
}

func TestErrorMessageIncludesPathWhenSet(t *testing.T) {
	base := errors.New("boom")
	withoutPath := NewParseError("parse", base)
	assert.NotContains(t, withoutPath.Error(), "(")

	withPath := NewParseError("parse", base).WithPath("src/lib.rs")
	assert.Contains(t, withPath.Error(), "src/lib.rs")
	assert.Contains(t, withPath.Error(), "boom")
}

func TestErrorUnwrapExposesUnderlying(t *testing.T) {
	base := errors.New("disk full")
	wrapped := NewFileIOError("read", base)
	assert.ErrorIs(t, wrapped, base)
}

func TestErrorIsComparesByKindOnly(t *testing.T) {
	a := NewCacheCorrupt("load", errors.New("one"))
	b := NewCacheCorrupt("load", errors.New("two"))
	c := NewParseTimeout("parse", errors.New("three"))

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}
