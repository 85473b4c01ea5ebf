package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/paperqa/paperqa-go/internal/colorize"
	"github.com/paperqa/paperqa-go/internal/rag"
)

// NewStatusCmd constructs the `paperqa status` command, which reports what
// is in the vector index and the local document catalog.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index and catalog contents",
		Long: `Report the state of the vector index and the local document catalog:
how many documents and chunks are indexed, and which sources they came from.

When the vector index is unreachable, the catalog contents are still shown
so you can see what was ingested previously.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cat, err := openCatalog()
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			defer cat.Close()

			docs, err := cat.List(ctx)
			if err != nil {
				return fmt.Errorf("status: reading catalog: %w", err)
			}

			fmt.Printf("%s %d documents\n", colorize.RenderLabel("Catalog:"), len(docs))
			for _, doc := range docs {
				fmt.Printf("  %s  %d chunks, ingested %s\n",
					colorize.Render(doc.Source, doc.Source),
					doc.ChunkCount,
					doc.IngestedAt.Format("2006-01-02 15:04"))
			}

			store, err := buildStore(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: vector index unreachable: %v\n", err)
				return nil
			}
			defer store.Close()

			status, err := store.Status(ctx)
			if errors.Is(err, rag.ErrIndexUnavailable) {
				fmt.Fprintf(os.Stderr, "warning: vector index unreachable: %v\n", err)
				return nil
			}
			if err != nil {
				return fmt.Errorf("status: querying index: %w", err)
			}

			fmt.Printf("\n%s %d documents, %d chunks\n",
				colorize.RenderLabel("Index:"), status.DocumentCount, status.ChunkCount)
			for _, src := range colorize.SortedSources(status.Sources) {
				fmt.Printf("  %s\n", colorize.Render(src, src))
			}
			return nil
		},
	}
}
