package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/doc-qa/internal/answer"
	"github.com/ziadkadry99/doc-qa/internal/qa"
	"github.com/ziadkadry99/doc-qa/internal/ranker"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Search indexed documents, or answer a question with --answer",
	Long: `Embeds the question and searches the passage index. With --answer the full
pipeline runs: the retrieved passages are sent to the LLM and the answer is
printed with its confidence and cited sources.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().Bool("answer", false, "generate an answer with the LLM")
	queryCmd.Flags().Int("top-k", 0, "number of passages to retrieve (default from config)")
	queryCmd.Flags().Float64("threshold", -1, "minimum similarity for a matching clause (default from config)")
	queryCmd.Flags().String("document", "", "restrict the search to one document id")
	queryCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	queryText := args[0]

	withAnswer, _ := cmd.Flags().GetBool("answer")
	topK, _ := cmd.Flags().GetInt("top-k")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	documentID, _ := cmd.Flags().GetString("document")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := setup(appOptions{requireLLM: withAnswer, allowLocalFiles: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.index.Count() == 0 {
		fmt.Println("Index is empty. Run `docqa ingest <url>` first.")
		return nil
	}

	if withAnswer {
		resp, err := a.svc.ProcessQuery(ctx, qa.QueryRequest{Query: queryText, DocumentID: documentID})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(resp)
		}
		printAnswer(resp)
		return nil
	}

	retriever := a.svc.Retriever()
	if threshold < 0 {
		threshold = retriever.Threshold()
	}
	if threshold > 1 {
		return fmt.Errorf("--threshold must be within [0, 1]")
	}
	result, err := retriever.RetrieveWithThreshold(ctx, queryText, topK, threshold, documentID)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if jsonOutput {
		return printJSON(result.Matches)
	}

	if len(result.Results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	printMatches(result.Matches, len(result.Results), threshold)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printMatches(matches []ranker.ClauseMatch, retrieved int, threshold float64) {
	fmt.Printf("Retrieved %d passages, %d at or above %.2f:\n\n", retrieved, len(matches), threshold)
	for i, m := range matches {
		location := m.Section
		if m.PageNumber > 0 {
			location = fmt.Sprintf("%s, page %d", location, m.PageNumber)
		}
		fmt.Printf("  %d. [%.1f%%] %s (%s)\n", i+1, m.SimilarityScore*100, location, m.DocumentID)
		fmt.Printf("     %s\n\n", truncate(m.ClauseText, 160))
	}
}

func printAnswer(resp *answer.QueryResponse) {
	fmt.Println(resp.Result)
	fmt.Printf("\nConfidence: %.2f  (%.2fs)\n", resp.Confidence, resp.ProcessingTime)
	if len(resp.Rationale) == 0 {
		return
	}
	fmt.Println("\nSources:")
	for i, r := range resp.Rationale {
		page := ""
		if r.Page > 0 {
			page = fmt.Sprintf(", page %d", r.Page)
		}
		fmt.Printf("  [%d] %s%s\n", i+1, r.Section, page)
		fmt.Printf("      %s\n", truncate(r.Excerpt, 160))
	}
}

func truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
