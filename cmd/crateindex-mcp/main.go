// Command crateindex-mcp is a thin MCP stdio server exposing the eight
// query operations as tools, plus a rescan tool. It holds a *relation.Index built from the
// on-disk cache and calls Index.Rescan on demand; it contains no
// indexing logic of its own.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/crateindex/crateindex/internal/cache"
	"github.com/crateindex/crateindex/internal/relation"
	"github.com/crateindex/crateindex/internal/types"
	"github.com/crateindex/crateindex/internal/version"
	"github.com/crateindex/crateindex/internal/workspace"
)

func main() {
	root, err := resolveRoot()
	if err != nil {
		log.Fatalf("crateindex-mcp: %v", err)
	}

	srv := newIndexServer(root)
	if err := srv.rescan(); err != nil {
		log.Printf("crateindex-mcp: initial rescan: %v", err)
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name: "crateindex-mcp", Version: version.Version,
	}, nil)

	srv.registerTools(server)

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("crateindex-mcp: %v", err)
	}
}

func resolveRoot() (string, error) {
	root := os.Getenv("CRATEINDEX_ROOT")
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		root = wd
	}
	return filepath.Abs(root)
}

// indexServer holds the single *relation.Index this process serves,
// rebuilding it from the on-disk cache on demand rather than indexing
// anything itself.
type indexServer struct {
	root string
	idx  *relation.Index
}

func newIndexServer(root string) *indexServer {
	return &indexServer{root: root, idx: relation.Build(root, &types.PipelineResult{})}
}

func (s *indexServer) rescan() error {
	c, err := cache.Load(filepath.Join(s.root, ".crateindex", "cache.bin"))
	if err != nil {
		return fmt.Errorf("load cache: %w", err)
	}
	ws, err := workspace.Detect(s.root)
	if err != nil {
		return fmt.Errorf("detect workspace: %w", err)
	}
	s.idx.Rescan(resultFromCache(c, ws))
	return nil
}

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

func stringSchema(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

func intSchema(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: desc}
}

func boolSchema(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: desc}
}
