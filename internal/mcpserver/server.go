// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the site's content tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/grayside/grayside/internal/apperr"
	"github.com/grayside/grayside/internal/index"
	"github.com/grayside/grayside/internal/nodeservice"
)

// FrontmatterFormatURI is the resource URI of the content format contract.
const FrontmatterFormatURI = "grayside://frontmatter-format"

// Server wraps the MCP server with the site tools.
type Server struct {
	mcp *server.MCPServer
	svc *nodeservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *nodeservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Grayside",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("derive_slug",
		mcp.WithDescription("Compute the URL slug a content file is published under. "+
			"The slug comes from the text after the last '---' in the file's parent directory name; "+
			"files below a 'notes' directory are published under /notes/."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the content file (e.g. pages/2017-11-02---my-first-post/index.md)")),
	), s.deriveSlug)

	s.mcp.AddTool(mcp.NewTool("tag_color",
		mcp.WithDescription("Return the palette colour, readable text colour and page slug assigned to a tag."),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag name as written in frontmatter")),
	), s.tagColor)

	s.mcp.AddTool(mcp.NewTool("list_nodes",
		mcp.WithDescription("List published posts and notes, newest first."),
		mcp.WithString("layout", mcp.Description("Optional layout filter: post or note")),
		mcp.WithString("tag", mcp.Description("Optional tag filter")),
		mcp.WithBoolean("drafts", mcp.Description("Include drafts")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of nodes (0 for all)")),
	), s.listNodes)

	s.mcp.AddTool(mcp.NewTool("read_node",
		mcp.WithDescription("Read a post or note by slug, including metadata and Markdown source."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Slug of the node (e.g. /my-first-post/ or notes/lti-notes)")),
	), s.readNode)

	s.mcp.AddTool(mcp.NewTool("search_content",
		mcp.WithDescription("Full-text search through published titles, tags and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchContent)

	s.mcp.AddTool(mcp.NewTool("get_frontmatter_contract",
		mcp.WithDescription("Returns the content layout and frontmatter contract. "+
			"Call this before drafting posts or notes to ensure correct structure."),
	), s.getFrontmatterContract)

	s.mcp.AddResource(
		mcp.NewResource(FrontmatterFormatURI, "Frontmatter Format Contract",
			mcp.WithResourceDescription("Directory naming and frontmatter rules every post and note follows."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFrontmatterFormatResource,
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

func (s *Server) deriveSlug(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.DeriveSlug(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) tagColor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.Color(tag))
}

func (s *Server) listNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodes, total, err := s.svc.List(ctx, index.ListOptions{
		Layout:        req.GetString("layout", ""),
		Tag:           req.GetString("tag", ""),
		IncludeDrafts: req.GetBool("drafts", false),
		Limit:         req.GetInt("limit", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"nodes": nodes, "total": total})
}

func (s *Server) readNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	node, err := s.svc.GetBySlug(ctx, slug)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", slug)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(node)
}

func (s *Server) searchContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) getFrontmatterContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FrontmatterContract), nil
}

func (s *Server) readFrontmatterFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FrontmatterFormatURI,
			MIMEType: "text/markdown",
			Text:     FrontmatterContract,
		},
	}, nil
}
