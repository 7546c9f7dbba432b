package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/crateindex/crateindex/internal/cache"
	"github.com/crateindex/crateindex/internal/relation"
	"github.com/crateindex/crateindex/internal/types"
	"github.com/crateindex/crateindex/internal/workspace"
)

var queryCommand = &cli.Command{
	Name:  "query",
	Usage: "answer structural questions against the most recent index",
	Subcommands: []*cli.Command{
		{Name: "symbol", Usage: "query symbol NAME", Action: queryAction(runFindSymbol)},
		{Name: "impls", Usage: "query impls NAME", Action: queryAction(runFindImplementations)},
		{Name: "callers", Usage: "query callers NAME", Action: queryAction(runFindCallers)},
		{
			Name: "deps", Usage: "query deps NAME [--direction up|down|both]",
			Flags:  []cli.Flag{&cli.StringFlag{Name: "direction", Value: "both"}},
			Action: queryAction(runFindDependencies),
		},
		{Name: "hierarchy", Usage: "query hierarchy NAME", Action: queryAction(runGetTypeHierarchy)},
		{Name: "snippet", Usage: "query snippet NAME", Action: queryAction(runGetSnippet)},
		{Name: "read", Usage: "query read FILE:START[-END]", Action: queryAction(runReadSource)},
		{
			Name: "search", Usage: "query search PATTERN [--glob G] [-i] [--context N] [--max N]",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "glob"},
				&cli.BoolFlag{Name: "i"},
				&cli.IntFlag{Name: "context"},
				&cli.IntFlag{Name: "max"},
			},
			Action: queryAction(runSearchText),
		},
	},
}

// queryAction loads (or rescans) the on-disk cache into a fresh
// relation.Index and hands off to fn, which prints the resulting value
// as JSON.
func queryAction(fn func(c *cli.Context, idx *relation.Index) (any, error)) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		dir := cacheDir(cfg.Project.Root)

		cached, err := cache.Load(filepath.Join(dir, "cache.bin"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "warning:", err)
		}

		ws, err := workspace.Detect(cfg.Project.Root)
		if err != nil {
			return err
		}
		result := resultFromCache(cached, ws)
		idx := relation.Build(cfg.Project.Root, result)

		out, err := fn(c, idx)
		if err != nil {
			return err
		}
		return printJSON(out)
	}
}

// resultFromCache turns a persisted cache back into the PipelineResult
// shape relation.Build expects, without re-running the pipeline; used
// by every read-only query subcommand.
func resultFromCache(c *cache.Cache, ws types.WorkspaceInfo) *types.PipelineResult {
	entries := c.Snapshot()
	files := make([]types.FileResult, 0, len(entries))
	var totalLines int
	for path, entry := range entries {
		files = append(files, types.FileResult{
			RelPath: path, Hash: entry.Hash, Size: entry.Size,
			Lines: entry.Lines, Parsed: entry.Data.Parsed, FromCache: true,
		})
		totalLines += entry.Lines
	}
	return &types.PipelineResult{Files: files, Workspace: ws, TotalLines: totalLines}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requiredArg(c *cli.Context) (string, error) {
	name := c.Args().First()
	if name == "" {
		return "", fmt.Errorf("%s: missing NAME argument", c.Command.Name)
	}
	return name, nil
}

func runFindSymbol(c *cli.Context, idx *relation.Index) (any, error) {
	name, err := requiredArg(c)
	if err != nil {
		return nil, err
	}
	return idx.FindSymbol(name, nil), nil
}

func runFindImplementations(c *cli.Context, idx *relation.Index) (any, error) {
	name, err := requiredArg(c)
	if err != nil {
		return nil, err
	}
	return idx.FindImplementations(name), nil
}

func runFindCallers(c *cli.Context, idx *relation.Index) (any, error) {
	name, err := requiredArg(c)
	if err != nil {
		return nil, err
	}
	return idx.FindCallers(name), nil
}

func runFindDependencies(c *cli.Context, idx *relation.Index) (any, error) {
	name, err := requiredArg(c)
	if err != nil {
		return nil, err
	}
	var dir relation.Direction
	switch c.String("direction") {
	case "up", "upstream":
		dir = relation.DirectionUpstream
	case "down", "downstream":
		dir = relation.DirectionDownstream
	default:
		dir = relation.DirectionBoth
	}
	return idx.FindDependencies(name, dir), nil
}

func runGetTypeHierarchy(c *cli.Context, idx *relation.Index) (any, error) {
	name, err := requiredArg(c)
	if err != nil {
		return nil, err
	}
	return idx.GetTypeHierarchy(name), nil
}

func runGetSnippet(c *cli.Context, idx *relation.Index) (any, error) {
	name, err := requiredArg(c)
	if err != nil {
		return nil, err
	}
	return idx.GetSnippet(name), nil
}

func runReadSource(c *cli.Context, idx *relation.Index) (any, error) {
	spec, err := requiredArg(c)
	if err != nil {
		return nil, err
	}
	file, start, end, err := parseReadSpec(spec)
	if err != nil {
		return nil, err
	}
	return idx.ReadSource(file, start, end)
}

// parseReadSpec parses the "read" subcommand's FILE:START[-END] argument.
func parseReadSpec(spec string) (file string, start, end int, err error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return "", 0, 0, fmt.Errorf("read: expected FILE:START[-END], got %q", spec)
	}
	file = parts[0]
	rangePart := parts[1]
	if dash := strings.IndexByte(rangePart, '-'); dash >= 0 {
		start, err = strconv.Atoi(rangePart[:dash])
		if err != nil {
			return "", 0, 0, fmt.Errorf("read: invalid start line: %w", err)
		}
		end, err = strconv.Atoi(rangePart[dash+1:])
		if err != nil {
			return "", 0, 0, fmt.Errorf("read: invalid end line: %w", err)
		}
		return file, start, end, nil
	}
	start, err = strconv.Atoi(rangePart)
	if err != nil {
		return "", 0, 0, fmt.Errorf("read: invalid line: %w", err)
	}
	return file, start, 0, nil
}

func runSearchText(c *cli.Context, idx *relation.Index) (any, error) {
	pattern, err := requiredArg(c)
	if err != nil {
		return nil, err
	}
	return idx.SearchText(pattern, relation.SearchOptions{
		Glob:          c.String("glob"),
		CaseSensitive: !c.Bool("i"),
		Context:       c.Int("context"),
		Max:           c.Int("max"),
	})
}
