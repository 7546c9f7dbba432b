package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/crateindex/crateindex/internal/cache"
	"github.com/crateindex/crateindex/internal/uiutil"
)

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "print meta.json plus live file/line counts",
	Flags: []cli.Flag{&cli.BoolFlag{Name: "json"}},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		dir := cacheDir(cfg.Project.Root)

		metaBytes, err := os.ReadFile(filepath.Join(dir, "meta.json"))
		var meta runMeta
		if err == nil {
			_ = json.Unmarshal(metaBytes, &meta)
		}

		c2, err := cache.Load(filepath.Join(dir, "cache.bin"))
		if err != nil {
			uiutil.Warning(err.Error())
		}
		liveFiles := c2.Len()
		liveLines := 0
		for _, e := range c2.Snapshot() {
			liveLines += e.Lines
		}

		if c.Bool("json") {
			return printJSON(struct {
				Meta      runMeta `json:"meta"`
				LiveFiles int     `json:"live_files"`
				LiveLines int     `json:"live_lines"`
			}{meta, liveFiles, liveLines})
		}

		uiutil.Info(fmt.Sprintf("last run: %s (%d files, %d lines)", orDash(meta.Timestamp), meta.Files, meta.Lines))
		uiutil.Info(fmt.Sprintf("current cache: %d files, %d lines", liveFiles, liveLines))
		return nil
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
