// Package workspace resolves the project root and enumerates member
// crates from a Cargo-style manifest, using
// github.com/pelletier/go-toml/v2.
package workspace

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"

	cerrors "github.com/crateindex/crateindex/internal/errors"
	"github.com/crateindex/crateindex/internal/types"
)

const manifestName = "Cargo.toml"

// Detect walks upward from start until it finds a manifest, then
// classifies the project root and its members.
func Detect(start string) (types.WorkspaceInfo, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return types.WorkspaceInfo{}, cerrors.NewRootNotFound("detect", err)
	}

	manifestDir, manifest, err := findManifest(abs)
	if err != nil {
		return types.WorkspaceInfo{}, err
	}

	if wsTable, ok := manifest["workspace"].(map[string]any); ok {
		return detectWorkspace(manifestDir, wsTable)
	}
	return detectSinglePackage(manifestDir, manifest)
}

// findManifest walks upward from dir, returning the first Cargo.toml it
// finds; it stops at the first match rather than continuing further up
// the tree.
func findManifest(dir string) (string, map[string]any, error) {
	cur := dir
	for {
		path := filepath.Join(cur, manifestName)
		if data, err := os.ReadFile(path); err == nil {
			var manifest map[string]any
			if err := toml.Unmarshal(data, &manifest); err != nil {
				return "", nil, cerrors.NewManifestMalformed("parse "+path, err)
			}
			return cur, manifest, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", nil, cerrors.NewRootNotFound("find manifest", os.ErrNotExist)
		}
		cur = parent
	}
}

func detectWorkspace(root string, wsTable map[string]any) (types.WorkspaceInfo, error) {
	info := types.WorkspaceInfo{Root: root}

	memberGlobs := stringSlice(wsTable["members"])
	excludeGlobs := stringSlice(wsTable["exclude"])

	seen := map[string]bool{}
	for _, g := range memberGlobs {
		matches, err := doublestar.Glob(os.DirFS(root), g)
		if err != nil {
			continue
		}
		for _, m := range matches {
			memberDir := filepath.Join(root, m)
			if excluded(m, excludeGlobs) || seen[memberDir] {
				continue
			}
			manifestPath := filepath.Join(memberDir, manifestName)
			data, err := os.ReadFile(manifestPath)
			if err != nil {
				continue
			}
			var manifest map[string]any
			if err := toml.Unmarshal(data, &manifest); err != nil {
				return types.WorkspaceInfo{}, cerrors.NewManifestMalformed("parse "+manifestPath, err)
			}
			seen[memberDir] = true
			info.Members = append(info.Members, crateInfo(memberDir, manifest))
		}
	}
	return info, nil
}

func excluded(rel string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	return false
}

func detectSinglePackage(dir string, manifest map[string]any) (types.WorkspaceInfo, error) {
	return types.WorkspaceInfo{
		Root:    dir,
		Members: []types.CrateInfo{crateInfo(dir, manifest)},
	}, nil
}

func crateInfo(dir string, manifest map[string]any) types.CrateInfo {
	pkg, _ := manifest["package"].(map[string]any)
	name, _ := pkg["name"].(string)
	if name == "" {
		name = filepath.Base(dir)
	}

	ci := types.CrateInfo{
		Name: name,
		Dir:  dir,
	}

	libTable, hasLib := manifest["lib"].(map[string]any)
	isProcMacro := false
	if hasLib {
		if pm, ok := libTable["proc-macro"].(bool); ok {
			isProcMacro = pm
		}
	}
	_, libErr := os.Stat(filepath.Join(dir, "src", "lib.rs"))
	_, mainErr := os.Stat(filepath.Join(dir, "src", "main.rs"))
	libFileExists := libErr == nil
	mainFileExists := mainErr == nil
	_, hasBinTables := manifest["bin"]

	switch {
	case isProcMacro:
		ci.Kind = types.CrateProcMacro
	case hasLib || libFileExists:
		ci.Kind = types.CrateLibrary
	case mainFileExists || hasBinTables:
		ci.Kind = types.CrateBinary
	default:
		ci.Kind = types.CrateLibrary
	}

	if deps, ok := manifest["dependencies"].(map[string]any); ok {
		for name := range deps {
			ci.Dependencies = append(ci.Dependencies, name)
		}
	}
	if features, ok := manifest["features"].(map[string]any); ok {
		for name := range features {
			ci.Features = append(ci.Features, name)
		}
	}

	if ci.Kind == types.CrateLibrary || libFileExists {
		ci.Targets = append(ci.Targets, types.TargetInfo{Name: name, Kind: types.TargetLib, Path: "src/lib.rs"})
	}
	if mainFileExists {
		ci.Targets = append(ci.Targets, types.TargetInfo{Name: name, Kind: types.TargetBin, Path: "src/main.rs"})
	}
	ci.Targets = append(ci.Targets, targetTables(manifest, "bin", types.TargetBin, "src/bin")...)
	ci.Targets = append(ci.Targets, targetTables(manifest, "example", types.TargetExample, "examples")...)
	ci.Targets = append(ci.Targets, targetTables(manifest, "bench", types.TargetBench, "benches")...)

	return ci
}

func targetTables(manifest map[string]any, key string, kind types.TargetKind, defaultDir string) []types.TargetInfo {
	raw, ok := manifest[key]
	if !ok {
		return nil
	}
	entries, ok := raw.([]map[string]any)
	if !ok {
		if ifaceSlice, ok2 := raw.([]any); ok2 {
			for _, e := range ifaceSlice {
				if m, ok := e.(map[string]any); ok {
					entries = append(entries, m)
				}
			}
		}
	}
	var targets []types.TargetInfo
	for _, e := range entries {
		name, _ := e["name"].(string)
		path, _ := e["path"].(string)
		if path == "" && name != "" {
			path = defaultDir + "/" + name + ".rs"
		}
		targets = append(targets, types.TargetInfo{Name: name, Kind: kind, Path: path})
	}
	return targets
}

func stringSlice(raw any) []string {
	var out []string
	if s, ok := raw.([]any); ok {
		for _, v := range s {
			if str, ok := v.(string); ok {
				out = append(out, str)
			}
		}
	}
	return out
}
