// Command crateindex is the CLI front end for the indexing core: it
// wires internal/pipeline, internal/cache, and internal/relation
// together behind urfave/cli/v2 subcommands.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/crateindex/crateindex/internal/config"
	"github.com/crateindex/crateindex/internal/uiutil"
	"github.com/crateindex/crateindex/internal/version"
)

func main() {
	app := &cli.App{
		Name:                   "crateindex",
		Usage:                  "structural index for a multi-crate Rust workspace",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Aliases: []string{"r"}, Usage: "project root directory (defaults to cwd)"},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "accepted but not read; the config always comes from <root>/.crateindex.kdl"},
			&cli.BoolFlag{Name: "no-color", Usage: "disable colored output"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "suppress the progress bar"},
		},
		Before: func(c *cli.Context) error {
			uiutil.InitColors(c.Bool("no-color"))
			return nil
		},
		Commands: []*cli.Command{
			indexCommand,
			watchCommand,
			queryCommand,
			statusCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		uiutil.Fail(err.Error())
		os.Exit(1)
	}
}

// loadConfig resolves the effective root and loads .crateindex.kdl,
// falling back to hard-coded defaults.
func loadConfig(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root = wd
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", root, err)
	}
	cfg, err := config.Load(absRoot)
	if err != nil {
		return nil, err
	}
	cfg.Project.Root = absRoot
	return cfg, nil
}

func cacheDir(root string) string {
	return filepath.Join(root, ".crateindex")
}
