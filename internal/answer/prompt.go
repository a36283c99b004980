package answer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ziadkadry99/doc-qa/internal/vectordb"
)

// SystemPrompt is sent with every answer request.
const SystemPrompt = "You answer questions about insurance, legal, HR and compliance documents using only the excerpts you are given."

const answerTemplate = `Based on the following document excerpts, answer the user's question with accuracy and detail.

Question: %s

Document Context:
%s

Instructions:
1. Provide a comprehensive answer based only on the provided document excerpts
2. If the information is not available in the context, clearly state that
3. Reference specific sections and pages when possible
4. Be precise with numbers, dates, and conditions
5. Keep the answer concise but complete

Answer:`

// BuildPrompt renders the answer prompt with one [Source i] block per
// retrieved passage.
func BuildPrompt(query string, results []vectordb.SearchResult) string {
	parts := make([]string, 0, len(results))
	for i, r := range results {
		parts = append(parts, fmt.Sprintf("[Source %d] Section: %s, Page: %s\n%s",
			i+1, sectionOf(r.Passage), pageOf(r.Passage), r.Passage.Text))
	}
	return fmt.Sprintf(answerTemplate, query, strings.Join(parts, "\n\n"))
}

func sectionOf(p vectordb.Passage) string {
	if p.Section == "" {
		return "Unknown Section"
	}
	return p.Section
}

func pageOf(p vectordb.Passage) string {
	if p.Page <= 0 {
		return "Unknown"
	}
	return strconv.Itoa(p.Page)
}

// Truncate caps s at limit runes. A non-positive limit disables the cap.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit]))
}

// Excerpt shortens text to n runes followed by "..." when it is longer.
func Excerpt(text string, n int) string {
	r := []rune(text)
	if n <= 0 || len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}
