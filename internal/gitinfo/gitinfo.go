// Package gitinfo provides two git touchpoints: short commit hash and
// per-path churn over a recent window, each obtained with a single git
// argv call. Failure is non-fatal; it produces an empty value, not an
// error. No in-process git library is used.
package gitinfo

import (
	"bufio"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/crateindex/crateindex/internal/types"
)

// CommitHash returns the short HEAD commit hash, or "" if git is
// unavailable or root is not a repository.
func CommitHash(ctx context.Context, root string) string {
	out, err := runGit(ctx, root, "rev-parse", "--short", "HEAD")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// Churn returns, for every path touched in the last windowDays, the
// number of commits that touched it.
func Churn(ctx context.Context, root string, windowDays int) map[string]int {
	since := time.Now().AddDate(0, 0, -windowDays).Format("2006-01-02")
	out, err := runGit(ctx, root, "log", "--since="+since, "--name-only", "--pretty=format:")
	if err != nil {
		return nil
	}

	churn := make(map[string]int)
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		churn[filepathToSlash(line)]++
	}
	return churn
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	return string(out), err
}

// Collect gathers both touchpoints into a types.GitInfo, returning nil
// when git is entirely unavailable so the field serializes as JSON
// null rather than an empty object.
func Collect(ctx context.Context, root string, windowDays int) *types.GitInfo {
	hash := CommitHash(ctx, root)
	churn := Churn(ctx, root, windowDays)
	if hash == "" && churn == nil {
		return nil
	}
	return &types.GitInfo{CommitHash: hash, Churn: churn}
}

// ChurnFor is a small convenience that looks up one path's churn
// count, defaulting to 0.
func ChurnFor(churn map[string]int, relPath string) int {
	if churn == nil {
		return 0
	}
	return churn[relPath]
}
