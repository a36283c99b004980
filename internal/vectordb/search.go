package vectordb

import (
	"fmt"
	"strings"
)

// FormatResults renders search results as human-readable text.
func FormatResults(results []SearchResult) string {
	if len(results) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d result(s):\n\n", len(results))

	for i, r := range results {
		fmt.Fprintf(&sb, "--- Result %d (similarity: %.4f) ---\n", i+1, r.Score)
		fmt.Fprintf(&sb, "Document: %s  Chunk: %s\n", r.Passage.DocumentID, r.Passage.ID)
		if r.Passage.Section != "" {
			fmt.Fprintf(&sb, "Section: %s\n", r.Passage.Section)
		}
		if r.Passage.Page > 0 {
			fmt.Fprintf(&sb, "Page: %d\n", r.Passage.Page)
		}

		sb.WriteString("\n")
		sb.WriteString(r.Passage.Text)
		sb.WriteString("\n\n")
	}

	return sb.String()
}
