// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Anubis tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/anubis/internal/docservice"
	"github.com/starford/anubis/internal/lang"
	"github.com/starford/anubis/internal/parser"
)

const syntaxURI = "anubis://block-syntax"

// Server wraps the MCP server with Anubis tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *docservice.Service
	langs lang.Table
}

// New creates a new MCP server with all Anubis tools registered.
func New(svc *docservice.Service, langs lang.Table) *Server {
	s := &Server{svc: svc, langs: langs}

	s.mcp = server.NewMCPServer(
		"Anubis",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_blocks",
		mcp.WithDescription("Full-text search through block names and content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchBlocks)

	s.mcp.AddTool(mcp.NewTool("read_block",
		mcp.WithDescription("Read a documentation block: its content items, origin file, connections and rendered HTML."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Block name")),
	), s.readBlock)

	s.mcp.AddTool(mcp.NewTool("list_blocks",
		mcp.WithDescription("List the names of all documentation blocks."),
	), s.listBlocks)

	s.mcp.AddTool(mcp.NewTool("get_connections",
		mcp.WithDescription("List the blocks connected to the given block and whether each edge is a link, an embed or both."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Block name")),
	), s.getConnections)

	s.mcp.AddTool(mcp.NewTool("check_block_syntax",
		mcp.WithDescription("Scan source text for documentation blocks and report what was found or why it is malformed. "+
			"Read the syntax first via the get_block_syntax tool or the "+syntaxURI+" resource."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Source file text")),
		mcp.WithString("path", mcp.Required(), mcp.Description("File name used to pick the comment delimiters (e.g. lib.rs)")),
	), s.checkBlockSyntax)

	s.mcp.AddTool(mcp.NewTool("get_block_syntax",
		mcp.WithDescription("Returns the documentation block syntax. "+
			"Call this before writing blocks to ensure correct structure."),
	), s.getBlockSyntax)

	// Resource: block syntax contract.
	s.mcp.AddResource(
		mcp.NewResource(syntaxURI, "Block Syntax",
			mcp.WithResourceDescription("How documentation blocks are written inside source comments."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSyntaxResource,
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

func (s *Server) searchBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.GetBlock(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", name)), nil
	}
	out, _ := json.MarshalIndent(detail, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listBlocks(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items := s.svc.ListBlocks(ctx)
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (s *Server) getConnections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	conns, err := s.svc.Connections(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", name)), nil
	}
	if len(conns) == 0 {
		return mcp.NewToolResultText("no connections found"), nil
	}
	lines := make([]string, 0, len(conns))
	for _, c := range conns {
		lines = append(lines, c.Name+" ("+c.Kind+")")
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) checkBlockSyntax(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cfg, err := s.langs.ForFile(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	blocks, err := parser.Scan(content, cfg)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(blocks) == 0 {
		return mcp.NewToolResultText("no blocks found"), nil
	}
	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		lines = append(lines, fmt.Sprintf("%s [%s]: %d item(s), %d reference(s)",
			b.Info.Name, b.Info.TemplateName, len(b.Content), len(b.References())))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getBlockSyntax(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(BlockSyntaxContract), nil
}

func (s *Server) readSyntaxResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      syntaxURI,
			MIMEType: "text/markdown",
			Text:     BlockSyntaxContract,
		},
	}, nil
}
