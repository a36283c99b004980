package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/doc-qa/internal/qa"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes the document question-answering
// tools.
type Server struct {
	svc *qa.Service
	mcp *server.MCPServer
}

// NewServer creates a new MCP server backed by svc.
func NewServer(svc *qa.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"docqa",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(askDocumentTool, s.handleAskDocument)
	s.mcp.AddTool(searchPassagesTool, s.handleSearchPassages)
	s.mcp.AddTool(ingestDocumentTool, s.handleIngestDocument)
	s.mcp.AddTool(listDocumentsTool, s.handleListDocuments)
	s.mcp.AddTool(indexStatsTool, s.handleIndexStats)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
