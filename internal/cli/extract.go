package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cpt-tools/cptgest/internal/extract"
	"github.com/cpt-tools/cptgest/internal/pipeline"
)

var extractStart int
var extractEnd int
var extractChunkPages int
var extractByChapter bool
var extractSimple bool
var extractOutput string

var extractCmd = &cobra.Command{
	Use:   "extract <file.epub>",
	Short: "Extract CPT code records from a page range",
	Long: `Extract structured CPT code records from an EPUB codebook. The page
range is split into chunks, each chunk is sent to Gemini together with
its heading hierarchy, and validated records are written as JSONL under
the output directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
		if extractOutput != "" {
			cfg.OutputDir = extractOutput
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		chunkPages := extractChunkPages
		if chunkPages <= 0 {
			chunkPages = cfg.DefaultChunkPage
		}

		now := time.Now()
		job := &pipeline.Job{
			ID:           pipeline.NewJobID(),
			Status:       pipeline.StatusQueued,
			Phase:        "queued",
			Filename:     args[0],
			StartPage:    extractStart,
			EndPage:      extractEnd,
			ChunkPages:   chunkPages,
			ByChapter:    extractByChapter,
			SimpleSchema: extractSimple,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		job.SetFileData(data)

		log := newLogger()
		gemini := extract.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.EmbedModel, cfg.GeminiBaseURL)
		defer gemini.Close()

		w := pipeline.NewWorker(gemini, log, cfg.OutputDir, cfg.MaxPromptBytes, cfg.CodeVersion)
		w.Process(context.Background(), job)

		snap := job.Snapshot()
		fmt.Fprintf(cmd.OutOrStdout(), "status: %s\nchunks: %d/%d\nrecords: %d\n",
			snap.Status, snap.Progress.ChunksProcessed, snap.Progress.TotalChunks, snap.Progress.RecordsValid)
		for _, e := range snap.Progress.Errors {
			fmt.Fprintf(cmd.OutOrStdout(), "error: %s\n", e)
		}
		if snap.Status == pipeline.StatusFailed {
			return fmt.Errorf("extraction failed")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "output: %s\n", cfg.OutputDir)
		return nil
	},
}

func init() {
	extractCmd.Flags().IntVar(&extractStart, "start", 0, "First page to extract (default: first marker)")
	extractCmd.Flags().IntVar(&extractEnd, "end", 0, "Last page to extract (default: last marker)")
	extractCmd.Flags().IntVar(&extractChunkPages, "chunk-pages", 0, "Pages per model call")
	extractCmd.Flags().BoolVar(&extractByChapter, "by-chapter", false, "Chunk on chapter boundaries instead of a fixed stride")
	extractCmd.Flags().BoolVar(&extractSimple, "simple-schema", false, "Emit the reduced record schema")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "Output directory (default from OUTPUT_DIR)")

	rootCmd.AddCommand(extractCmd)
}
