package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/paperqa/paperqa-go/internal/chunk"
	"github.com/paperqa/paperqa-go/internal/colorize"
	"github.com/paperqa/paperqa-go/internal/embedder"
	"github.com/paperqa/paperqa-go/internal/extract"
	"github.com/paperqa/paperqa-go/internal/ingestion"
)

// NewIngestCmd constructs the `paperqa ingest` command, which extracts,
// chunks, and embeds documents into the vector index.
func NewIngestCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "ingest [file or folder]",
		Short: "Ingest papers into the vector index",
		Long: `Extract, chunk, and embed papers into the Qdrant vector index.

The argument may be a single document or a folder, which is walked
recursively for supported files (.pdf, .txt, .md). Documents already in the
index are skipped when their content is unchanged; use --force to re-embed
them anyway.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: paperqa-chunks)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  paperqa ingest ./papers
  paperqa ingest attention-is-all-you-need.pdf
  paperqa ingest --force ./papers`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := slog.Default()

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			extractor := extract.NewFileExtractor()
			paths, err := collectDocuments(args[0], extractor.Supports)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			emb, err := buildEmbedder()
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			log.Info("embedder initialised", slog.String("provider", getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")))

			store, err := buildStore(ctx)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer store.Close()

			cat, err := openCatalog()
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer cat.Close()

			splitter := chunk.NewSplitter(
				getEnvInt("CHUNK_MAX_CHARS", 0),
				getEnvInt("CHUNK_OVERLAP", 0),
			)

			pipeline, err := ingestion.NewPipeline(extractor, splitter, emb, store, cat, &ingestion.Config{
				Concurrency: getEnvInt("INGEST_CONCURRENCY", 0),
				Force:       force,
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			log.Info("starting ingestion", slog.Int("documents", len(paths)))
			report, err := pipeline.Ingest(ctx, paths, func(msg string) {
				log.Info(msg)
			})
			if err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			fmt.Printf("%s %d ingested, %d skipped, %d failed\n",
				colorize.RenderLabel("Ingest complete:"),
				report.Ingested, report.Skipped, len(report.Failures))
			for _, f := range report.Failures {
				fmt.Fprintf(os.Stderr, "  %s: %v\n", colorize.Render(f.Source, f.Source), f.Err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-ingest documents even when their content is unchanged")

	return cmd
}
