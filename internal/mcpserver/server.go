// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the exported site to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notionhugo/internal/apperr"
	"github.com/starford/notionhugo/internal/exportservice"
	"github.com/starford/notionhugo/internal/ledger"
)

const formatURI = "notionhugo://export-format"

// Server wraps the MCP server with export tools.
type Server struct {
	mcp *server.MCPServer
	svc *exportservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *exportservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"notionhugo",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_exports",
		mcp.WithDescription("Full-text search through exported documents."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchExports)

	s.mcp.AddTool(mcp.NewTool("read_export",
		mcp.WithDescription("Read an exported document with its front matter and assets."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path relative to the content root (e.g. posts/Misc/intro/index.md)")),
	), s.readExport)

	s.mcp.AddTool(mcp.NewTool("list_exports",
		mcp.WithDescription("List exported documents, newest first."),
		mcp.WithString("category", mcp.Description("Optional category filter")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
	), s.listExports)

	s.mcp.AddTool(mcp.NewTool("find_document",
		mcp.WithDescription("Find where a source page was exported."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Source page id")),
	), s.findDocument)

	s.mcp.AddTool(mcp.NewTool("export_page",
		mcp.WithDescription("Export one source page now and return the written document. "+
			"Read the format via get_export_format or the "+formatURI+" resource."),
		mcp.WithString("page_id", mcp.Required(), mcp.Description("Source page id")),
	), s.exportPage)

	s.mcp.AddTool(mcp.NewTool("get_export_format",
		mcp.WithDescription("Returns the layout and front matter format of exported documents."),
	), s.getExportFormat)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Export Format",
			mcp.WithResourceDescription("Layout and front matter of exported documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readExportFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func toolError(err error, subject string) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", subject))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) searchExports(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	return jsonResult(results)
}

func (s *Server) readExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.GetExport(ctx, path)
	if err != nil {
		return toolError(err, path), nil
	}
	return jsonResult(d)
}

func (s *Server) listExports(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.svc.ListExports(ctx, ledger.ListOptions{
		Category: req.GetString("category", ""),
		Limit:    req.GetInt("limit", 50),
		Offset:   req.GetInt("offset", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d exports\n", total)
	for _, it := range items {
		fmt.Fprintf(&sb, "%s\t%s\n", it.Path, it.Title)
	}
	return mcp.NewToolResultText(strings.TrimRight(sb.String(), "\n")), nil
}

func (s *Server) findDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	row, err := s.svc.FindDocument(ctx, id)
	if err != nil {
		return toolError(err, id), nil
	}
	return mcp.NewToolResultText(row.Path), nil
}

func (s *Server) exportPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("page_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, warnings, err := s.svc.ExportPage(ctx, id)
	if err != nil {
		return toolError(err, id), nil
	}
	return jsonResult(map[string]any{
		"path":     d.Path,
		"title":    d.Title,
		"assets":   d.Assets,
		"warnings": warnings,
	})
}

func (s *Server) getExportFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ExportFormatContract), nil
}

func (s *Server) readExportFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     ExportFormatContract,
		},
	}, nil
}
