package pipeline

import (
	"fmt"
	"strings"

	"github.com/crateindex/crateindex/internal/types"
)

// Summary renders the textual run summary the CLI prints after `index`
// completes.
func Summary(r *types.PipelineResult) string {
	if r.UpToDate {
		return fmt.Sprintf("up to date (%d files)\n", len(r.Files))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "indexed %d files (%d lines)\n", len(r.Files), r.TotalLines)
	if len(r.Skipped) > 0 {
		fmt.Fprintf(&b, "skipped %d files\n", len(r.Skipped))
	}
	if r.Diff.TotalChanges() == 0 {
		b.WriteString("no changes since last run\n")
	} else {
		fmt.Fprintf(&b, "%d added, %d removed, %d modified\n", len(r.Diff.Added), len(r.Diff.Removed), len(r.Diff.Modified))
	}
	if r.Git != nil && r.Git.CommitHash != "" {
		fmt.Fprintf(&b, "commit %s\n", r.Git.CommitHash)
	}
	return b.String()
}
