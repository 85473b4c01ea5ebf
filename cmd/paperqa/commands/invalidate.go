package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paperqa/paperqa-go/internal/colorize"
)

// NewInvalidateCmd constructs the `paperqa invalidate` command, which removes
// a document (or everything under a folder) from the index and catalog.
func NewInvalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate [source]",
		Short: "Remove a document or folder from the index",
		Long: `Remove all chunks for a source document from the vector index and drop
its catalog record. When the argument is a folder, every document under it
is removed. Matching is by path: "papers" removes "papers/a.pdf" but not
"papers-old/a.pdf".

Examples:
  paperqa invalidate papers/attention.pdf
  paperqa invalidate papers/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target := args[0]

			store, err := buildStore(ctx)
			if err != nil {
				return fmt.Errorf("invalidate: %w", err)
			}
			defer store.Close()

			chunks, err := store.DeleteBySource(ctx, target)
			if err != nil {
				return fmt.Errorf("invalidate: removing chunks for %s: %w", target, err)
			}

			cat, err := openCatalog()
			if err != nil {
				return fmt.Errorf("invalidate: %w", err)
			}
			defer cat.Close()

			docs, err := cat.DeleteByPrefix(ctx, target)
			if err != nil {
				return fmt.Errorf("invalidate: updating catalog for %s: %w", target, err)
			}

			fmt.Printf("%s removed %d chunks across %d documents for %s\n",
				colorize.RenderLabel("Invalidated:"), chunks, docs,
				colorize.Render(target, target))
			return nil
		},
	}
}
