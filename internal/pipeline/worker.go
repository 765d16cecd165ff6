package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cpt-tools/cptgest/internal/epub"
	"github.com/cpt-tools/cptgest/internal/extract"
	"github.com/cpt-tools/cptgest/internal/results"
)

// TextGenerator produces a JSON completion for a prompt.
type TextGenerator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// Worker processes a single extraction job: it opens the EPUB, walks the
// requested page range chunk by chunk, and accumulates validated records.
// Chunks run sequentially because each prompt carries the previous chunk's
// last record for continuity across chunk boundaries.
type Worker struct {
	gen            TextGenerator
	log            *slog.Logger
	outputDir      string
	maxPromptBytes int
	codeVersion    string
}

func NewWorker(gen TextGenerator, log *slog.Logger, outputDir string, maxPromptBytes int, codeVersion string) *Worker {
	return &Worker{
		gen:            gen,
		log:            log,
		outputDir:      outputDir,
		maxPromptBytes: maxPromptBytes,
		codeVersion:    codeVersion,
	}
}

// Process runs the full extraction pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	// Phase 1: Navigate
	job.SetStatus(StatusNavigating, "navigating")
	data := job.FileData()
	job.SetContentHash(ContentHashHex(data))

	nav, err := epub.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		log.Error("open failed", "error", err)
		job.AddError(fmt.Sprintf("open: %s", err))
		job.SetStatus(StatusFailed, "navigating")
		return
	}
	defer nav.Close()

	start, end := job.StartPage, job.EndPage
	if start <= 0 {
		start = 1
	}
	if end <= 0 {
		end = nav.MaxPage()
	}
	if end < start || nav.PageCount() == 0 {
		log.Error("no pages to process", "start", start, "end", end, "markers", nav.PageCount())
		job.AddError("no page markers in requested range")
		job.SetStatus(StatusFailed, "navigating")
		return
	}

	var chunks []ChunkRange
	if job.ByChapter {
		chunks = PlanChapters(nav.ChapterBoundaries(), start, end)
	} else {
		chunks = PlanFixed(start, end, job.ChunkPages)
	}
	job.SetTotalChunks(len(chunks))
	log.Info("planned extraction", "chunks", len(chunks), "start", start, "end", end, "by_chapter", job.ByChapter)

	if len(chunks) == 0 {
		job.AddError("empty chunk plan")
		job.SetStatus(StatusFailed, "navigating")
		return
	}

	// Phase 2: Extract chunk by chunk. Sequential on purpose: the prompt
	// for chunk i+1 includes the last record from chunk i.
	job.SetStatus(StatusExtracting, "extracting")
	var prev *extract.Record
	hadErrors := false

	for _, cr := range chunks {
		if ctx.Err() != nil {
			job.AddError(ctx.Err().Error())
			job.SetStatus(StatusFailed, "extracting")
			return
		}

		pages := cr.EndPage - cr.StartPage + 1
		valid, last, chunkErr := w.processChunk(ctx, log, nav, job, cr, prev)
		job.IncrChunksProcessed(pages)
		if chunkErr != nil {
			if errors.Is(chunkErr, context.Canceled) || errors.Is(chunkErr, context.DeadlineExceeded) {
				job.AddError(chunkErr.Error())
				job.SetStatus(StatusFailed, "extracting")
				return
			}
			log.Error("chunk failed", "start", cr.StartPage, "end", cr.EndPage, "error", chunkErr)
			job.AddError(fmt.Sprintf("pages %d-%d: %s", cr.StartPage, cr.EndPage, chunkErr))
			hadErrors = true
			continue
		}
		if len(valid) > 0 {
			job.AddRecords(valid)
			prev = last
		}
	}

	all := job.Records()
	log.Info("extraction complete", "valid_records", len(all), "errors", hadErrors)

	if len(all) == 0 {
		job.SetStatus(StatusFailed, "extracting")
		return
	}

	// Phase 3: Aggregate
	job.SetStatus(StatusAggregating, "aggregating")
	combined := results.CombinedPath(w.outputDir, job.ID, start, end)
	if err := results.WriteJSONL(combined, all); err != nil {
		log.Error("combined write failed", "path", combined, "error", err)
		job.AddError(fmt.Sprintf("write combined: %s", err))
		hadErrors = true
	}

	if hadErrors {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
}

// processChunk extracts one page window. It returns the validated records,
// the last valid record for continuity, and any terminal error.
func (w *Worker) processChunk(ctx context.Context, log *slog.Logger, nav *epub.Navigator, job *Job, cr ChunkRange, prev *extract.Record) ([]extract.Record, *extract.Record, error) {
	markup, err := nav.GetContentByPageRange(cr.StartPage, cr.EndPage)
	if err != nil {
		return nil, prev, err
	}
	text := strings.TrimSpace(epub.Text(markup))
	if text == "" {
		log.Warn("empty chunk text", "start", cr.StartPage, "end", cr.EndPage)
		return nil, prev, nil
	}

	hctx, err := nav.GetHierarchyContext(cr.StartPage)
	if err != nil {
		// Range capture succeeded, so the marker exists; treat as empty.
		hctx = epub.HierarchyContext{}
	}

	prompt := extract.BuildExtractionPrompt(extract.PromptInput{
		Text:           text,
		Section:        hctx.Section,
		Subsection:     hctx.Subsection,
		Subheading:     hctx.Subheading,
		Topic:          hctx.Topic,
		PreviousRecord: prev,
		SimpleSchema:   job.SimpleSchema,
		CodeVersion:    w.codeVersion,
		MaxBytes:       w.maxPromptBytes,
	})

	var raw string
	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		raw, lastErr = w.gen.GenerateJSON(ctx, prompt)
		if lastErr == nil || !IsRetryable(lastErr) {
			break
		}
		log.Warn("retryable generation error", "start", cr.StartPage, "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			return nil, prev, ctx.Err()
		}
	}
	if lastErr != nil {
		return nil, prev, lastErr
	}

	recs, err := extract.ParseRecords(raw)
	if err != nil {
		// Keep the raw response around for manual recovery.
		dump := results.RawErrorPath(w.outputDir, job.ID, cr.StartPage, cr.EndPage)
		if derr := results.WriteRaw(dump, raw); derr != nil {
			log.Warn("raw dump failed", "path", dump, "error", derr)
		}
		return nil, prev, fmt.Errorf("parse response: %w", err)
	}

	var valid []extract.Record
	for i := range recs {
		if extract.ValidateRecord(&recs[i], w.codeVersion) {
			valid = append(valid, recs[i])
		}
	}
	log.Info("chunk extracted", "start", cr.StartPage, "end", cr.EndPage, "records", len(recs), "valid", len(valid))

	if len(valid) > 0 {
		path := results.ChunkPath(w.outputDir, job.ID, cr.StartPage, cr.EndPage)
		if werr := results.WriteJSONL(path, valid); werr != nil {
			log.Warn("chunk write failed", "path", path, "error", werr)
		}
	}

	last := prev
	if len(valid) > 0 {
		last = &valid[len(valid)-1]
	}
	return valid, last, nil
}
