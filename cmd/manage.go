package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/doc-qa/internal/documents"
	"github.com/ziadkadry99/doc-qa/internal/qa"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index, document and query statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		a, err := setup(appOptions{allowLocalFiles: true})
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.svc.Stats(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(stats)
		}

		e := stats.Embeddings
		fmt.Printf("Passages:     %d\n", e.TotalEmbeddings)
		fmt.Printf("Dimension:    %d\n", e.Dimension)
		fmt.Printf("Index size:   %d bytes\n", e.IndexSize)
		fmt.Printf("Last updated: %s\n", e.LastUpdated.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Documents:    %d indexed, %d indexing, %d failed, %d unindexed\n",
			stats.Documents[documents.StatusIndexed],
			stats.Documents[documents.StatusIndexing],
			stats.Documents[documents.StatusFailed],
			stats.Documents[documents.StatusUnindexed],
		)
		fmt.Printf("Queries:      %d\n", stats.Queries)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every passage from the index",
	RunE: func(cmd *cobra.Command, args []string) error {
		withHistory, _ := cmd.Flags().GetBool("history")

		a, err := setup(appOptions{allowLocalFiles: true})
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		if err := a.svc.ClearIndex(ctx); err != nil {
			return fmt.Errorf("clearing index: %w", err)
		}
		fmt.Println("Index cleared.")

		if withHistory {
			n, err := a.svc.History().Clear(ctx)
			if err != nil {
				return fmt.Errorf("clearing query history: %w", err)
			}
			fmt.Printf("Removed %d query log entries.\n", n)
		}
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <document-id>",
	Short: "Remove one document's passages from the index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(appOptions{allowLocalFiles: true})
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.svc.RemoveDocument(context.Background(), args[0])
		if errors.Is(err, qa.ErrDocumentNotFound) {
			return fmt.Errorf("document %s is not indexed", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Printf("Removed document %s (%d passages).\n", args[0], n)
		return nil
	},
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List documents in the registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		a, err := setup(appOptions{allowLocalFiles: true})
		if err != nil {
			return err
		}
		defer a.Close()

		docs, err := a.svc.Documents().List(context.Background(), documents.Status(status))
		if err != nil {
			return fmt.Errorf("listing documents: %w", err)
		}
		if jsonOutput {
			return printJSON(docs)
		}
		if len(docs) == 0 {
			fmt.Println("No documents indexed. Use `docqa ingest <url>` to add one.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tPASSAGES\tSIZE\tUPDATED\tURL")
		for _, d := range docs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
				d.ID, d.Status, d.ChunkCount, d.FileSize,
				d.UpdatedAt.Local().Format("2006-01-02 15:04"), truncate(d.URL, 60))
		}
		return w.Flush()
	},
}

func init() {
	statsCmd.Flags().Bool("json", false, "output as JSON")
	clearCmd.Flags().Bool("history", false, "also clear the query log")
	documentsCmd.Flags().String("status", "", "only list documents in this state: unindexed, indexing, indexed, failed")
	documentsCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(documentsCmd)
}
