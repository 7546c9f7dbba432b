package relation

import (
	"bufio"
	"os"
	"path/filepath"

	cerrors "github.com/crateindex/crateindex/internal/errors"
)

// SourceSlice is read_source's wire shape:
// {file, start_line, end_line, content, language}.
type SourceSlice struct {
	File      string
	StartLine int
	EndLine   int
	Content   string
	Language  string
}

// ReadSource returns the 1-indexed, inclusive line range [start, end]
// of relPath, which must be a file already registered in the index.
// end of 0 means "through end of file".
func (idx *Index) ReadSource(relPath string, start, end int) (SourceSlice, error) {
	if !idx.IsRegistered(relPath) {
		return SourceSlice{}, cerrors.NewFileIOError("read_source", os.ErrNotExist).WithPath(relPath)
	}

	f, err := os.Open(filepath.Join(idx.root, relPath))
	if err != nil {
		return SourceSlice{}, cerrors.NewFileIOError("read_source", err).WithPath(relPath)
	}
	defer f.Close()

	var buf []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		if line < start {
			continue
		}
		if end > 0 && line > end {
			break
		}
		buf = append(buf, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return SourceSlice{}, cerrors.NewFileIOError("read_source", err).WithPath(relPath)
	}

	actualEnd := end
	if actualEnd == 0 || actualEnd > line {
		actualEnd = line
	}

	content := ""
	for i, l := range buf {
		if i > 0 {
			content += "\n"
		}
		content += l
	}

	return SourceSlice{
		File: relPath, StartLine: start, EndLine: actualEnd,
		Content: content, Language: languageFor(relPath),
	}, nil
}

func languageFor(path string) string {
	switch filepath.Ext(path) {
	case ".py":
		return "python"
	default:
		return "rust"
	}
}
