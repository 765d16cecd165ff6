// Package cli implements the cptgest command line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/philippgille/chromem-go"
	"github.com/spf13/cobra"

	"github.com/cpt-tools/cptgest/internal/config"
	"github.com/cpt-tools/cptgest/internal/corpus"
	"github.com/cpt-tools/cptgest/internal/extract"
)

var rootCmd = &cobra.Command{
	Use:   "cptgest",
	Short: "Extract CPT codes from EPUB codebooks",
	Long: `cptgest navigates EPUB codebooks by printed page number, captures page
ranges with their heading hierarchy, and extracts structured CPT code
records using the Gemini API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func loadConfig() (config.Config, error) {
	return config.Load()
}

// newStore builds the corpus backend for CLI commands, mirroring the
// server's selection: Vertex when configured, local index otherwise.
func newStore(cfg config.Config, gemini *extract.GeminiClient) (corpus.Store, error) {
	if cfg.UseVertex() {
		vc := corpus.NewVertexClient(cfg.GoogleCloudProject, cfg.GoogleCloudRegion, cfg.GoogleAccessToken, cfg.RAGCorpus)
		if err := vc.EnsureCorpus(context.Background(), "cptgest-reference", "CPT reference documents"); err != nil {
			return nil, fmt.Errorf("ensure RAG corpus: %w", err)
		}
		return vc, nil
	}
	embed := chromem.EmbeddingFunc(func(ctx context.Context, text string) ([]float32, error) {
		return gemini.Embed(ctx, text)
	})
	return corpus.NewLocal(cfg.LocalCorpusFile, embed)
}
