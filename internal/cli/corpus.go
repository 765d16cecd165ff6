package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cpt-tools/cptgest/internal/corpus"
	"github.com/cpt-tools/cptgest/internal/extract"
	"github.com/cpt-tools/cptgest/internal/inspect"
)

var uploadName string
var uploadDescription string
var searchTopK int

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage the reference corpus",
}

var corpusUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a reference document to the corpus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		filename := filepath.Base(args[0])
		if !inspect.IsSupported(filename) {
			return fmt.Errorf("unsupported file type: %s", filename)
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		gemini := extract.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.EmbedModel, cfg.GeminiBaseURL)
		defer gemini.Close()
		store, err := newStore(cfg, gemini)
		if err != nil {
			return err
		}
		defer store.Close()

		up := corpus.Upload{
			Filename:    filename,
			DisplayName: uploadName,
			Description: uploadDescription,
			Data:        data,
		}
		if up.DisplayName == "" {
			up.DisplayName = filename
		}
		if insp, err := inspect.ForFile(filename); err == nil {
			if info, ierr := insp.Inspect(bytes.NewReader(data), filename); ierr == nil {
				up.Text = info.Text
				up.Pages = info.Pages
				up.Words = info.Words
			}
		}

		ref, err := store.Upload(cmd.Context(), up)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%s)\n", ref.DisplayName, ref.ID)
		return nil
	},
}

var corpusListCmd = &cobra.Command{
	Use:   "list",
	Short: "List corpus documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		gemini := extract.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.EmbedModel, cfg.GeminiBaseURL)
		defer gemini.Close()
		store, err := newStore(cfg, gemini)
		if err != nil {
			return err
		}
		defer store.Close()

		files, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", f.ID, f.DisplayName)
		}
		return nil
	},
}

var corpusSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the corpus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		gemini := extract.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.EmbedModel, cfg.GeminiBaseURL)
		defer gemini.Close()
		store, err := newStore(cfg, gemini)
		if err != nil {
			return err
		}
		defer store.Close()

		hits, err := store.Search(cmd.Context(), args[0], searchTopK)
		if err != nil {
			return err
		}
		for _, h := range hits {
			fmt.Fprintf(cmd.OutOrStdout(), "[%.3f] %s\n%s\n\n", h.Score, h.Source, h.Content)
		}
		return nil
	},
}

func init() {
	corpusUploadCmd.Flags().StringVar(&uploadName, "name", "", "Display name (defaults to the filename)")
	corpusUploadCmd.Flags().StringVar(&uploadDescription, "description", "", "Document description")
	corpusSearchCmd.Flags().IntVar(&searchTopK, "top-k", 5, "Number of passages to return")

	corpusCmd.AddCommand(corpusUploadCmd)
	corpusCmd.AddCommand(corpusListCmd)
	corpusCmd.AddCommand(corpusSearchCmd)
	rootCmd.AddCommand(corpusCmd)
}
