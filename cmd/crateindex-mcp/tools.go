package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/crateindex/crateindex/internal/relation"
)

func (s *indexServer) registerTools(server *mcp.Server) {
	server.AddTool(&mcp.Tool{
		Name:        "rescan",
		Description: "Rebuild the index from the current on-disk cache",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handleRescan)

	server.AddTool(&mcp.Tool{
		Name:        "find_symbol",
		Description: "Look up a symbol by name, falling back to suffix/substring/fuzzy matches",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name": stringSchema("symbol name"),
			},
			Required: []string{"name"},
		},
	}, s.handleFindSymbol)

	server.AddTool(&mcp.Tool{
		Name:        "find_implementations",
		Description: "List trait implementors, implemented traits, methods, and derives for a symbol",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"symbol": stringSchema("trait or type name")},
			Required:   []string{"symbol"},
		},
	}, s.handleFindImplementations)

	server.AddTool(&mcp.Tool{
		Name:        "find_callers",
		Description: "List the bare and qualified callers of a symbol",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"symbol": stringSchema("function or method name")},
			Required:   []string{"symbol"},
		},
	}, s.handleFindCallers)

	server.AddTool(&mcp.Tool{
		Name:        "find_dependencies",
		Description: "List calls out, calls in, and references for a symbol",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"symbol":    stringSchema("symbol name"),
				"direction": stringSchema("upstream | downstream | both (default both)"),
			},
			Required: []string{"symbol"},
		},
	}, s.handleFindDependencies)

	server.AddTool(&mcp.Tool{
		Name:        "get_type_hierarchy",
		Description: "Get implementors, implements, derived traits, and supertraits for a symbol",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"symbol": stringSchema("trait or type name")},
			Required:   []string{"symbol"},
		},
	}, s.handleGetTypeHierarchy)

	server.AddTool(&mcp.Tool{
		Name:        "get_snippet",
		Description: "Get captured function bodies for a symbol, ordered by descending importance",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"name": stringSchema("function or Type::method name")},
			Required:   []string{"name"},
		},
	}, s.handleGetSnippet)

	server.AddTool(&mcp.Tool{
		Name:        "read_source",
		Description: "Read a line range from a file registered in the index",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file":  stringSchema("repo-relative path"),
				"start": intSchema("1-indexed start line"),
				"end":   intSchema("1-indexed end line (0 = end of file)"),
			},
			Required: []string{"file", "start"},
		},
	}, s.handleReadSource)

	server.AddTool(&mcp.Tool{
		Name:        "search_text",
		Description: "Regex search across every file registered in the index",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"pattern":        stringSchema("regular expression"),
				"glob":           stringSchema("optional glob or *suffix filter"),
				"case_sensitive": boolSchema("default false"),
				"context":        intSchema("context lines before/after a match"),
				"max":            intSchema("max matches (default 50)"),
			},
			Required: []string{"pattern"},
		},
	}, s.handleSearchText)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(body)}}}, nil
}

func errorResult(err error) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}, nil
}

func (s *indexServer) handleRescan(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.rescan(); err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]bool{"ok": true})
}

func (s *indexServer) handleFindSymbol(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult(err)
	}
	return jsonResult(s.idx.FindSymbol(args.Name, nil))
}

func (s *indexServer) handleFindImplementations(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult(err)
	}
	return jsonResult(s.idx.FindImplementations(args.Symbol))
}

func (s *indexServer) handleFindCallers(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult(err)
	}
	return jsonResult(s.idx.FindCallers(args.Symbol))
}

func (s *indexServer) handleFindDependencies(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Symbol    string `json:"symbol"`
		Direction string `json:"direction"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult(err)
	}
	var dir relation.Direction
	switch args.Direction {
	case "upstream":
		dir = relation.DirectionUpstream
	case "downstream":
		dir = relation.DirectionDownstream
	default:
		dir = relation.DirectionBoth
	}
	return jsonResult(s.idx.FindDependencies(args.Symbol, dir))
}

func (s *indexServer) handleGetTypeHierarchy(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult(err)
	}
	return jsonResult(s.idx.GetTypeHierarchy(args.Symbol))
}

func (s *indexServer) handleGetSnippet(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult(err)
	}
	return jsonResult(s.idx.GetSnippet(args.Name))
}

func (s *indexServer) handleReadSource(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		File  string `json:"file"`
		Start int    `json:"start"`
		End   int    `json:"end"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult(err)
	}
	slice, err := s.idx.ReadSource(args.File, args.Start, args.End)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(slice)
}

func (s *indexServer) handleSearchText(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Pattern       string `json:"pattern"`
		Glob          string `json:"glob"`
		CaseSensitive bool   `json:"case_sensitive"`
		Context       int    `json:"context"`
		Max           int    `json:"max"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult(err)
	}
	result, err := s.idx.SearchText(args.Pattern, relation.SearchOptions{
		Glob: args.Glob, CaseSensitive: args.CaseSensitive, Context: args.Context, Max: args.Max,
	})
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(result)
}
