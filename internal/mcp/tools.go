package mcp

import "github.com/mark3labs/mcp-go/mcp"

// askDocumentTool defines the ask_document MCP tool.
var askDocumentTool = mcp.NewTool("ask_document",
	mcp.WithDescription("Answer a question from the indexed policy documents. Returns the answer, its confidence and the cited passages."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("Natural language question"),
	),
	mcp.WithString("document_id",
		mcp.Description("Restrict the answer to one indexed document"),
	),
)

// searchPassagesTool defines the search_passages MCP tool.
var searchPassagesTool = mcp.NewTool("search_passages",
	mcp.WithDescription("Semantic search over indexed document passages without generating an answer."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("top_k",
		mcp.Description("Maximum number of passages to return (default 10)"),
	),
	mcp.WithNumber("threshold",
		mcp.Description("Minimum similarity score between 0 and 1 (default from configuration)"),
	),
	mcp.WithString("document_id",
		mcp.Description("Restrict the search to one indexed document"),
	),
)

// ingestDocumentTool defines the ingest_document MCP tool.
var ingestDocumentTool = mcp.NewTool("ingest_document",
	mcp.WithDescription("Download a PDF by URL and add its passages to the index."),
	mcp.WithString("url",
		mcp.Required(),
		mcp.Description("http(s) URL or local path of the PDF"),
	),
	mcp.WithBoolean("force",
		mcp.Description("Re-index even if the document is already indexed"),
	),
)

// listDocumentsTool defines the list_documents MCP tool.
var listDocumentsTool = mcp.NewTool("list_documents",
	mcp.WithDescription("List documents known to the registry with their indexing status."),
	mcp.WithString("status",
		mcp.Description("Only list documents in this state"),
		mcp.Enum("unindexed", "indexing", "indexed", "failed"),
	),
)

// indexStatsTool defines the index_stats MCP tool.
var indexStatsTool = mcp.NewTool("index_stats",
	mcp.WithDescription("Report embedding index, document registry and query log statistics."),
)
