package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/paperqa/paperqa-go/internal/answer"
	"github.com/paperqa/paperqa-go/internal/colorize"
	"github.com/paperqa/paperqa-go/internal/llm"
	"github.com/paperqa/paperqa-go/internal/rag"
)

// NewAskCmd constructs the `paperqa ask` command, which retrieves relevant
// passages for a question and synthesizes a cited answer.
func NewAskCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about your ingested papers",
		Long: `Ask a natural-language question about the ingested papers.

The question is embedded, the most relevant passages are retrieved from the
vector index, and a completion model synthesizes an answer citing those
passages with [RefN] markers. The reference legend below the answer is
color-coded per source document.

Examples:
  paperqa ask "what problem does self-attention solve?"
  paperqa ask --top-k 8 "how were the models evaluated?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			question := strings.Join(args, " ")

			emb, err := buildEmbedder()
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			store, err := buildStore(ctx)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer store.Close()

			retriever, err := rag.NewRetriever(emb, store, getEnvInt("RETRIEVAL_TOP_K", 5))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			results, err := retriever.Retrieve(ctx, question, topK)
			if errors.Is(err, rag.ErrEmptyIndex) {
				return fmt.Errorf("ask: the index is empty — run 'paperqa ingest' first")
			}
			if err != nil {
				return fmt.Errorf("ask: retrieval failed: %w", err)
			}

			completer, err := llm.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ask: failed to initialise completion backend: %w", err)
			}
			synth, err := answer.NewSynthesizer(completer, getEnvInt("MAX_CONTEXT_TOKENS", 0))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			ans, err := synth.Synthesize(ctx, question, results)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(renderAnswer(ans))
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of passages to retrieve (default: RETRIEVAL_TOP_K or 5)")

	return cmd
}

// renderAnswer colorizes the reference markers in the answer text and
// appends the legend, one line per citation in first-appearance order.
func renderAnswer(ans *answer.Answer) string {
	text := ans.Text
	for _, c := range ans.Citations {
		text = strings.ReplaceAll(text, c.Marker, colorize.Render(c.Source, c.Marker))
	}

	if len(ans.Citations) == 0 {
		return text
	}

	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\n")
	b.WriteString(colorize.RenderLabel("References:"))
	b.WriteString("\n")
	for _, c := range ans.Citations {
		line := fmt.Sprintf("%s %s", c.Marker, c.Source)
		if c.Page > 0 {
			line += fmt.Sprintf(" (page %d)", c.Page)
		}
		b.WriteString("  " + colorize.Render(c.Source, line) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
