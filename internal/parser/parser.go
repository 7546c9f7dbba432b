// Package parser implements tree-sitter-based structural extraction for
// Rust, with a reduced-scope Python extractor for symbols and imports
// only. One *tree_sitter.Parser is kept per language in a sync.Pool so
// concurrent pipeline workers never share a parser instance (tree-sitter
// parsers are not goroutine-safe), with a context-bound timeout wrapping
// every call.
package parser

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"

	cerrors "github.com/crateindex/crateindex/internal/errors"
	"github.com/crateindex/crateindex/internal/types"
)

// Language identifies which grammar a file should be parsed with.
type Language uint8

const (
	LanguageUnknown Language = iota
	LanguageRust
	LanguagePython
)

// LanguageForPath classifies a file by extension. Everything outside
// Rust and Python is LanguageUnknown; the pipeline driver leaves such
// files out of the run, and Parse rejects them with an error.
func LanguageForPath(path string) Language {
	switch filepath.Ext(path) {
	case ".rs":
		return LanguageRust
	case ".py":
		return LanguagePython
	default:
		return LanguageUnknown
	}
}

var rustPool = sync.Pool{
	New: func() any {
		p := tree_sitter.NewParser()
		lang := tree_sitter.NewLanguage(tree_sitter_rust.Language())
		if err := p.SetLanguage(lang); err != nil {
			return nil
		}
		return p
	},
}

var pythonPool = sync.Pool{
	New: func() any {
		p := tree_sitter.NewParser()
		lang := tree_sitter.NewLanguage(tree_sitter_python.Language())
		if err := p.SetLanguage(lang); err != nil {
			return nil
		}
		return p
	},
}

func getParser(lang Language) *tree_sitter.Parser {
	switch lang {
	case LanguageRust:
		if p, _ := rustPool.Get().(*tree_sitter.Parser); p != nil {
			return p
		}
	case LanguagePython:
		if p, _ := pythonPool.Get().(*tree_sitter.Parser); p != nil {
			return p
		}
	}
	return nil
}

func putParser(lang Language, p *tree_sitter.Parser) {
	if p == nil {
		return
	}
	switch lang {
	case LanguageRust:
		rustPool.Put(p)
	case LanguagePython:
		pythonPool.Put(p)
	}
}

// DefaultTimeout is the per-parse ceiling: a file that blows the
// grammar past this is returned as a ParseTimeout error (the pipeline
// records the file as skipped) rather than hanging a pipeline worker
// forever.
const DefaultTimeout = 10 * time.Second

// Parse dispatches on the file's language and returns the full
// extraction result. A grammar failure is reported as ParseFailed=true
// with no error, so the pipeline still counts the file. A timeout returns
// a ParseTimeout error, and the pipeline records the file as skipped;
// neither is fatal to the run.
func Parse(ctx context.Context, path string, content []byte) (types.ParsedFile, error) {
	lang := LanguageForPath(path)
	switch lang {
	case LanguageRust:
		return parseWithTimeout(ctx, path, content, LanguageRust, extractRust)
	case LanguagePython:
		return parseWithTimeout(ctx, path, content, LanguagePython, extractPython)
	default:
		return types.ParsedFile{}, cerrors.NewParseError("unsupported extension", nil).WithPath(path)
	}
}

type extractFunc func(tree *tree_sitter.Tree, content []byte) types.ParsedFile

func parseWithTimeout(ctx context.Context, path string, content []byte, lang Language, extract extractFunc) (types.ParsedFile, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	type result struct {
		pf  types.ParsedFile
		err error
	}
	done := make(chan result, 1)

	go func() {
		p := getParser(lang)
		if p == nil {
			done <- result{err: cerrors.NewParseError("grammar unavailable", nil).WithPath(path)}
			return
		}
		defer putParser(lang, p)

		// Tree-sitter mutates the buffer it is handed via CGO; give it a
		// private copy so the pipeline's cached content stays immutable.
		buf := make([]byte, len(content))
		copy(buf, content)

		tree := p.Parse(buf, nil)
		if tree == nil {
			done <- result{pf: types.ParsedFile{ParseFailed: true}}
			return
		}
		defer tree.Close()

		if tree.RootNode().HasError() {
			pf := extract(tree, buf)
			pf.ParseFailed = true
			done <- result{pf: pf}
			return
		}
		done <- result{pf: extract(tree, buf)}
	}()

	select {
	case <-ctx.Done():
		return types.ParsedFile{ParseFailed: true}, cerrors.NewParseTimeout("parse", ctx.Err()).WithPath(path)
	case r := <-done:
		return r.pf, r.err
	}
}
