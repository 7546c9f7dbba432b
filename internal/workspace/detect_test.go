package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crateindex/crateindex/internal/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDetectSinglePackage(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Cargo.toml"), `
[package]
name = "simple_crate"

[dependencies]
serde = "1"
`)
	writeFile(t, filepath.Join(root, "src", "lib.rs"), "pub fn f() {}")

	info, err := Detect(root)
	require.NoError(t, err)
	assert.Equal(t, root, info.Root)
	require.Len(t, info.Members, 1)
	assert.Equal(t, "simple_crate", info.Members[0].Name)
	assert.Equal(t, types.CrateLibrary, info.Members[0].Kind)
	assert.Contains(t, info.Members[0].Dependencies, "serde")
}

func TestDetectWorkspaceMembers(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Cargo.toml"), `
[workspace]
members = ["crates/*"]
`)
	writeFile(t, filepath.Join(root, "crates", "alpha", "Cargo.toml"), `
[package]
name = "alpha"
`)
	writeFile(t, filepath.Join(root, "crates", "alpha", "src", "lib.rs"), "")
	writeFile(t, filepath.Join(root, "crates", "beta", "Cargo.toml"), `
[package]
name = "beta"

[[bin]]
name = "beta-cli"
`)

	info, err := Detect(root)
	require.NoError(t, err)
	assert.Equal(t, root, info.Root)
	require.Len(t, info.Members, 2)

	names := map[string]types.CrateInfo{}
	for _, m := range info.Members {
		names[m.Name] = m
	}
	assert.Equal(t, types.CrateLibrary, names["alpha"].Kind)
	assert.Equal(t, types.CrateBinary, names["beta"].Kind)
}

// TestDetectNestedWorkspace is scenario S6: driving from the child path
// must resolve the root to the child, not the parent workspace.
func TestDetectNestedWorkspace(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Cargo.toml"), `
[workspace]
members = ["child_crate"]
`)
	childDir := filepath.Join(root, "child_crate")
	writeFile(t, filepath.Join(childDir, "Cargo.toml"), `
[package]
name = "child_crate"
`)
	writeFile(t, filepath.Join(childDir, "src", "lib.rs"), "")

	info, err := Detect(childDir)
	require.NoError(t, err)
	assert.Equal(t, childDir, info.Root)
	require.Len(t, info.Members, 1)
	assert.Equal(t, "child_crate", info.Members[0].Name)
}

func TestDetectRootNotFound(t *testing.T) {
	root := t.TempDir()
	_, err := Detect(root)
	require.Error(t, err)
}
