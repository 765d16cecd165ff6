package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/cpt-tools/cptgest/internal/api"
	"github.com/cpt-tools/cptgest/internal/config"
	"github.com/cpt-tools/cptgest/internal/corpus"
	"github.com/cpt-tools/cptgest/internal/extract"
	"github.com/cpt-tools/cptgest/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gemini := extract.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.EmbedModel, cfg.GeminiBaseURL)

	// Corpus backend: hosted Vertex AI RAG when a cloud project is
	// configured, otherwise a local embedded index with Gemini embeddings.
	var store corpus.Store
	if cfg.UseVertex() {
		vc := corpus.NewVertexClient(cfg.GoogleCloudProject, cfg.GoogleCloudRegion, cfg.GoogleAccessToken, cfg.RAGCorpus)
		if err := vc.EnsureCorpus(ctx, "cptgest-reference", "CPT reference documents"); err != nil {
			log.Error("failed to ensure RAG corpus", "error", err)
			os.Exit(1)
		}
		store = vc
		log.Info("using Vertex AI RAG corpus", "project", cfg.GoogleCloudProject, "location", cfg.GoogleCloudRegion)
	} else {
		embed := chromem.EmbeddingFunc(func(ctx context.Context, text string) ([]float32, error) {
			return gemini.Embed(ctx, text)
		})
		local, err := corpus.NewLocal(cfg.LocalCorpusFile, embed)
		if err != nil {
			log.Error("failed to open local corpus", "path", cfg.LocalCorpusFile, "error", err)
			os.Exit(1)
		}
		store = local
		log.Info("using local corpus", "path", cfg.LocalCorpusFile)
	}

	orch := pipeline.NewOrchestrator(cfg, gemini, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, gemini, store, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		gemini.Close()
		if err := store.Close(); err != nil {
			log.Warn("corpus close failed", "error", err)
		}
	}()

	log.Info("starting cptgest", "port", cfg.Port, "model", cfg.GeminiModel)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
