package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v2"

	"github.com/crateindex/crateindex/internal/cache"
	"github.com/crateindex/crateindex/internal/metrics"
	"github.com/crateindex/crateindex/internal/pipeline"
	"github.com/crateindex/crateindex/internal/uiutil"
	"github.com/crateindex/crateindex/internal/walker"
)

var watchCommand = &cli.Command{
	Name:  "watch",
	Usage: "run the pipeline, then re-run it on every filesystem change",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		dir := cacheDir(cfg.Project.Root)

		w, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		defer w.Close()

		if err := addWatchDirs(w, cfg.Project.Root); err != nil {
			return err
		}

		debounce := time.Duration(cfg.Index.WatchDebounceMs) * time.Millisecond
		if debounce <= 0 {
			debounce = 500 * time.Millisecond
		}

		run := func() error {
			prev, err := cache.Load(filepath.Join(dir, "cache.bin"))
			if err != nil {
				uiutil.Warning(err.Error())
			}
			metrics.P.Init()
			driver := &pipeline.Driver{Config: cfg, Cache: prev, Metrics: &metrics.P}
			result, newCache, err := driver.Run(c.Context)
			if err != nil {
				return err
			}
			if err := persistRun(dir, newCache, result); err != nil {
				return err
			}
			uiutil.Info(fmt.Sprintf("reindexed: %d files, %d lines", len(result.Files), result.TotalLines))
			return nil
		}

		if err := run(); err != nil {
			return err
		}

		var timer *time.Timer
		for {
			select {
			case <-c.Context.Done():
				return nil
			case event, ok := <-w.Events:
				if !ok {
					return nil
				}
				if event.Op&fsnotify.Chmod != 0 {
					continue
				}
				if timer == nil {
					timer = time.AfterFunc(debounce, func() {
						if err := run(); err != nil {
							uiutil.Fail(err.Error())
						}
						timer = nil
					})
				} else {
					timer.Reset(debounce)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return nil
				}
				uiutil.Warning(err.Error())
			}
		}
	},
}

// addWatchDirs registers every directory under root with the watcher;
// fsnotify watches directories, not trees, so each one needs its own
// Add call.
func addWatchDirs(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == walker.CacheDirName || d.Name() == ".git" {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
