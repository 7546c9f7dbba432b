// Package config loads crateindex's ambient configuration: the tool
// config file (.crateindex.kdl), gitignore-equivalent exclusion rules,
// and build-artifact directory detection.
package config

const (
	DefaultMaxFileSize   int64 = 1 << 20 // 1 MiB
	DefaultBinaryPrefix  int   = 8192    // bytes scanned for a NUL byte
	DefaultChurnWindow          = 90     // days
	DefaultSemaphorePermits     = 256
	DefaultParseTimeoutSec      = 10
)

// Config is the full ambient configuration for one crateindex run.
type Config struct {
	Project Project
	Index   Index
	Search  Search

	Include []string
	Exclude []string
}

type Project struct {
	Root string
	Name string
}

type Index struct {
	MaxFileSize      int64
	RespectGitignore bool
	WatchMode        bool
	WatchDebounceMs  int
	ChurnWindowDays  int
}

type Search struct {
	DefaultContextLines int
	MaxResults          int
}

// Default returns the configuration used when no .crateindex.kdl is
// present.
func Default(root string) *Config {
	return &Config{
		Project: Project{Root: root},
		Index: Index{
			MaxFileSize:      DefaultMaxFileSize,
			RespectGitignore: true,
			WatchMode:        false,
			WatchDebounceMs:  500,
			ChurnWindowDays:  DefaultChurnWindow,
		},
		Search: Search{
			DefaultContextLines: 2,
			MaxResults:          50,
		},
	}
}

// Load reads .crateindex.kdl from root if present, falling back to
// Default. A malformed KDL file is a configuration error; a missing one
// is not.
func Load(root string) (*Config, error) {
	cfg, err := LoadKDL(root)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = Default(root)
	}
	return cfg, nil
}
