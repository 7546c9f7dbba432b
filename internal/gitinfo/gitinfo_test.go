package gitinfo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(cmd.Env,
			"GIT_AUTHOR_NAME=t", "GIT_AUTHOR_EMAIL=t@t.com",
			"GIT_COMMITTER_NAME=t", "GIT_COMMITTER_EMAIL=t@t.com",
			"HOME=/tmp",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Skipf("git unavailable in sandbox: %v: %s", err, out)
		}
	}
	run("init", "-q")
	f := filepath.Join(dir, "lib.rs")
	require.NoError(t, os.WriteFile(f, []byte("fn main() {}"), 0o644))
	run("add", "lib.rs")
	run("commit", "-q", "-m", "init")
	return dir
}

func TestCommitHashNonEmptyInRepo(t *testing.T) {
	dir := initRepo(t)
	hash := CommitHash(context.Background(), dir)
	assert.NotEmpty(t, hash)
}

func TestCommitHashEmptyOutsideRepo(t *testing.T) {
	dir := t.TempDir()
	hash := CommitHash(context.Background(), dir)
	assert.Empty(t, hash)
}

func TestChurnCountsTouchedFile(t *testing.T) {
	dir := initRepo(t)
	churn := Churn(context.Background(), dir, 90)
	assert.Equal(t, 1, churn["lib.rs"])
}

func TestCollectReturnsNilOutsideRepo(t *testing.T) {
	dir := t.TempDir()
	info := Collect(context.Background(), dir, 90)
	assert.Nil(t, info)
}
