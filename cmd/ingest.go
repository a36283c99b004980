package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/doc-qa/internal/progress"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <url|path|glob>...",
	Short: "Download, chunk and index documents",
	Long: `Fetches each document, extracts its pages, splits them into passages and
adds their embeddings to the index. Arguments may be http(s) URLs, local
paths, or doublestar globs such as "policies/**/*.pdf".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().Bool("force", false, "re-index documents that are already indexed")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	sources, err := expandSources(args)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no documents matched %s", strings.Join(args, " "))
	}

	a, err := setup(appOptions{allowLocalFiles: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	retriever := a.svc.Retriever()
	var failed int
	for _, src := range sources {
		tracker := progress.NewTracker(progress.NewReporter(), "Embedding "+shortName(src))
		retriever.SetProgressFunc(tracker.Func())

		doc, err := a.svc.IngestDocument(ctx, src, force)
		tracker.Finish()
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s %s: %v\n", red("✗"), src, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		fmt.Printf("%s %s  %s  %d passages\n", green("✓"), doc.ID, src, doc.ChunkCount)
	}
	retriever.SetProgressFunc(nil)

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed to ingest", failed, len(sources))
	}
	return nil
}

// expandSources keeps URLs as they are and expands local glob patterns.
func expandSources(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		if u, err := url.Parse(arg); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
			out = append(out, arg)
			continue
		}
		path := strings.TrimPrefix(arg, "file://")
		if !hasGlobMeta(path) {
			out = append(out, path)
			continue
		}
		matches, err := doublestar.FilepathGlob(path, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", arg, err)
		}
		out = append(out, matches...)
	}
	return out, nil
}

func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

func shortName(src string) string {
	if i := strings.LastIndexAny(src, `/\`); i >= 0 && i < len(src)-1 {
		return src[i+1:]
	}
	return src
}
