package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/doc-qa/internal/answer"
	"github.com/ziadkadry99/doc-qa/internal/documents"
	"github.com/ziadkadry99/doc-qa/internal/qa"
	"github.com/ziadkadry99/doc-qa/internal/vectordb"
)

// handleAskDocument answers a question through the full pipeline.
func (s *Server) handleAskDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question parameter is required"), nil
	}
	documentID := request.GetString("document_id", "")

	resp, err := s.svc.ProcessQuery(ctx, qa.QueryRequest{Query: question, DocumentID: documentID})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("answering failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatAnswer(resp)), nil
}

// handleSearchPassages returns the passages most similar to a query.
func (s *Server) handleSearchPassages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	retriever := s.svc.Retriever()
	topK := request.GetInt("top_k", 10)
	if topK <= 0 {
		topK = 10
	}
	threshold := request.GetFloat("threshold", retriever.Threshold())
	if threshold < 0 || threshold > 1 {
		return mcp.NewToolResultError("threshold must be between 0 and 1"), nil
	}
	documentID := request.GetString("document_id", "")

	result, err := retriever.RetrieveWithThreshold(ctx, query, topK, threshold, documentID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString(vectordb.FormatResults(result.Results))
	if len(result.Results) > 0 {
		fmt.Fprintf(&sb, "%d passage(s) at or above threshold %.2f.\n", len(result.Matches), threshold)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleIngestDocument indexes the document at the given URL.
func (s *Server) handleIngestDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required"), nil
	}
	force := request.GetBool("force", false)

	doc, err := s.svc.IngestDocument(ctx, url, force)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ingestion failed: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Indexed %s as %s (%d passages, status %s).",
		doc.Filename, doc.ID, doc.ChunkCount, doc.Status)), nil
}

// handleListDocuments lists the document registry.
func (s *Server) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := documents.Status(request.GetString("status", ""))

	docs, err := s.svc.Documents().List(ctx, status)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing documents failed: %v", err)), nil
	}
	if len(docs) == 0 {
		return mcp.NewToolResultText("No documents found."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d document(s):\n\n", len(docs))
	for _, d := range docs {
		fmt.Fprintf(&sb, "- %s  %s  [%s, %d passages]\n", d.ID, d.URL, d.Status, d.ChunkCount)
		if d.Error != "" {
			fmt.Fprintf(&sb, "  error: %s\n", d.Error)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleIndexStats returns service statistics as JSON.
func (s *Server) handleIndexStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.svc.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reading stats failed: %v", err)), nil
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding stats failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// formatAnswer renders an answer and its citations as readable text.
func formatAnswer(resp *answer.QueryResponse) string {
	var sb strings.Builder
	sb.WriteString(resp.Result)
	fmt.Fprintf(&sb, "\n\nConfidence: %.2f\n", resp.Confidence)

	if len(resp.Rationale) > 0 {
		sb.WriteString("\nSources:\n")
		for i, r := range resp.Rationale {
			fmt.Fprintf(&sb, "[%d] %s", i+1, r.Section)
			if r.Page > 0 {
				fmt.Fprintf(&sb, " (page %d)", r.Page)
			}
			fmt.Fprintf(&sb, ": %s\n", r.Excerpt)
		}
	}
	return sb.String()
}
