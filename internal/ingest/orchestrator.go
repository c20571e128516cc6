package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tutorbot-backend/internal/ai"
	"tutorbot-backend/internal/logger"
	"tutorbot-backend/models"
	"tutorbot-backend/services"

	"golang.org/x/sync/errgroup"
)

// Storage is the slice of the storage coordinator the orchestrator
// needs: the authoritative listing and local availability.
type Storage interface {
	List(ctx context.Context) ([]models.Document, error)
	FetchLocal(ctx context.Context, filename string) (string, error)
}

// Extractor extracts per-page text from a local PDF.
type Extractor interface {
	ExtractPages(ctx context.Context, filePath string) ([]services.PageText, error)
}

// TextChunker splits page text into embeddable chunks.
type TextChunker interface {
	ChunkPages(pages []services.PageText) []services.Chunk
}

// Index receives the rebuilt passage set.
type Index interface {
	Version() string
	Count() int
	ReplaceAll(version string, passages []models.Passage) error
}

// Result summarizes one ingestion run.
type Result struct {
	Version   string        `json:"version"`
	Documents int           `json:"documents"`
	Passages  int           `json:"passages"`
	Skipped   bool          `json:"skipped"`
	Duration  time.Duration `json:"-"`
}

// Orchestrator rebuilds the vector index from the document corpus.
// Runs are serialized: at most one rebuild at a time, and a second
// request during a run is rejected rather than queued.
type Orchestrator struct {
	mu        sync.Mutex
	storage   Storage
	extractor Extractor
	chunker   TextChunker
	embedder  ai.Embedder
	index     Index
	workers   int
}

func NewOrchestrator(storage Storage, extractor Extractor, chunker TextChunker, embedder ai.Embedder, idx Index, workers int) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		storage:   storage,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     idx,
		workers:   workers,
	}
}

// Run performs one full rebuild: list the corpus, compute its content
// version, and if it differs from the served one, extract, chunk, and
// embed every document, then swap the index. The rebuild is all or
// nothing: any per-document failure aborts the run and the served
// index stays on the previous generation.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	if !o.mu.TryLock() {
		return Result{}, models.ErrIngestInProgress
	}
	defer o.mu.Unlock()

	start := time.Now()

	docs, err := o.storage.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list corpus: %w", err)
	}

	version := ComputeVersion(docs)
	if version == o.index.Version() {
		logger.Info("corpus unchanged, skipping rebuild", "version", version)
		return Result{Version: version, Documents: len(docs), Passages: o.index.Count(), Skipped: true, Duration: time.Since(start)}, nil
	}

	var passages []models.Passage
	for _, doc := range docs {
		docPassages, err := o.processDocument(ctx, doc.Filename, version)
		if err != nil {
			return Result{}, fmt.Errorf("ingest %s: %w", doc.Filename, err)
		}
		passages = append(passages, docPassages...)
	}

	if err := o.index.ReplaceAll(version, passages); err != nil {
		return Result{}, fmt.Errorf("swap index: %w", err)
	}

	result := Result{Version: version, Documents: len(docs), Passages: len(passages), Duration: time.Since(start)}
	logger.Info("index rebuilt",
		"version", version,
		"documents", result.Documents,
		"passages", result.Passages,
		"duration", result.Duration.String())
	return result, nil
}

// processDocument fetches, extracts, chunks, and embeds one document.
// Chunks are embedded from a bounded worker pool; the first embedding
// failure cancels the remaining workers.
func (o *Orchestrator) processDocument(ctx context.Context, filename, version string) ([]models.Passage, error) {
	path, err := o.storage.FetchLocal(ctx, filename)
	if err != nil {
		return nil, err
	}

	pages, err := o.extractor.ExtractPages(ctx, path)
	if err != nil {
		return nil, err
	}

	chunks := o.chunker.ChunkPages(pages)
	passages := make([]models.Passage, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, chunk := range chunks {
		g.Go(func() error {
			embedding, err := o.embedder.Embed(gctx, chunk.Text)
			if err != nil {
				return err
			}
			passages[i] = models.Passage{
				ID:        chunk.ChunkID,
				Filename:  filename,
				Page:      chunk.Page,
				Text:      chunk.Text,
				Embedding: embedding,
				Version:   version,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return passages, nil
}
