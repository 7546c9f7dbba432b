package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/crateindex/crateindex/internal/cache"
	"github.com/crateindex/crateindex/internal/metrics"
	"github.com/crateindex/crateindex/internal/pipeline"
	"github.com/crateindex/crateindex/internal/types"
	"github.com/crateindex/crateindex/internal/uiutil"
)

var indexCommand = &cli.Command{
	Name:  "index",
	Usage: "run the pipeline once and print a summary",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		dir := cacheDir(cfg.Project.Root)

		prev, err := cache.Load(filepath.Join(dir, "cache.bin"))
		if err != nil {
			uiutil.Warning(err.Error())
		}

		metrics.P.Init()
		pcfg := uiutil.NewProgressConfig(c.Bool("quiet"), c.Bool("no-color"))
		bar := uiutil.NewProgressBar(pcfg, 1, "indexing")

		driver := &pipeline.Driver{
			Config:  cfg,
			Cache:   prev,
			Metrics: &metrics.P,
			Progress: func(done, total int) {
				if bar == nil {
					return
				}
				bar.ChangeMax(total)
				_ = bar.Set(done)
			},
		}

		result, newCache, err := driver.Run(c.Context)
		if err != nil {
			return err
		}
		if bar != nil {
			_ = bar.Finish()
		}

		if err := persistRun(dir, newCache, result); err != nil {
			return err
		}

		fmt.Print(pipeline.Summary(result))
		return nil
	},
}

// runMeta is the on-disk meta.json shape.
type runMeta struct {
	Timestamp string  `json:"timestamp"`
	GitCommit *string `json:"git_commit"`
	Files     int     `json:"files"`
	Lines     int     `json:"lines"`
}

// persistRun writes the cache directory layout:
// cache.bin, meta.json, and an auto-created .gitignore so the cache
// directory never gets committed by accident.
func persistRun(dir string, c *cache.Cache, result *types.PipelineResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := cache.Save(filepath.Join(dir, "cache.bin"), c); err != nil {
		return err
	}

	meta := runMeta{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Files:     len(result.Files),
		Lines:     result.TotalLines,
	}
	if result.Git != nil && result.Git.CommitHash != "" {
		meta.GitCommit = &result.Git.CommitHash
	}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), metaBytes, 0o644); err != nil {
		return err
	}

	gitignorePath := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(gitignorePath); os.IsNotExist(err) {
		if err := os.WriteFile(gitignorePath, []byte("*\n"), 0o644); err != nil {
			return err
		}
	}
	return nil
}
