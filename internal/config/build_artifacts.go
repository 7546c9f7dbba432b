package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// BuildArtifactDetector finds the build-output directory the walker
// should exclude, beyond the hard-coded cache directory: Cargo's
// target/ and any [profile.*] target-dir override.
type BuildArtifactDetector struct {
	root string
}

func NewBuildArtifactDetector(root string) *BuildArtifactDetector {
	return &BuildArtifactDetector{root: root}
}

// ExcludeDirs returns glob patterns for directories that hold compiled
// output and should never be walked, even if not gitignored.
func (d *BuildArtifactDetector) ExcludeDirs() []string {
	patterns := []string{"**/target/**"}

	data, err := os.ReadFile(filepath.Join(d.root, "Cargo.toml"))
	if err != nil {
		return patterns
	}

	var manifest map[string]any
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return patterns
	}

	profiles, ok := manifest["profile"].(map[string]any)
	if !ok {
		return patterns
	}
	for _, raw := range profiles {
		profile, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if targetDir, ok := profile["target-dir"].(string); ok && targetDir != "" {
			patterns = append(patterns, "**/"+targetDir+"/**")
		}
	}
	return patterns
}
