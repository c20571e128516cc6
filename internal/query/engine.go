package query

import (
	"context"
	"fmt"
	"strings"

	"tutorbot-backend/internal/ai"
	"tutorbot-backend/internal/conversation"
	"tutorbot-backend/internal/index"
	"tutorbot-backend/internal/logger"
	"tutorbot-backend/models"
)

// TextGenerator produces the model's answer for a fully built prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Searcher retrieves the most similar passages for a query embedding.
type Searcher interface {
	Search(query []float32, topK int) []index.SearchResult
}

// NameSource maps filenames to their display names for citations.
type NameSource interface {
	DisplayNames(ctx context.Context) (map[string]string, error)
}

// Engine answers student questions against the indexed course corpus
// and records every exchange in the conversation store.
type Engine struct {
	generator     TextGenerator
	embedder      ai.Embedder
	searcher      Searcher
	store         conversation.Store
	names         NameSource
	topK          int
	historyWindow int
}

func NewEngine(generator TextGenerator, embedder ai.Embedder, searcher Searcher, store conversation.Store, names NameSource, topK, historyWindow int) *Engine {
	return &Engine{
		generator:     generator,
		embedder:      embedder,
		searcher:      searcher,
		store:         store,
		names:         names,
		topK:          topK,
		historyWindow: historyWindow,
	}
}

// Answer runs one retrieval-augmented exchange. Model failure means
// nothing is persisted; a persistence failure after a successful
// generation is logged and the answer still returned, so the student
// never loses a good answer to a flaky database.
func (e *Engine) Answer(ctx context.Context, req models.QueryRequest) (models.QueryResponse, error) {
	if !ValidMode(req.Mode) {
		return models.QueryResponse{}, fmt.Errorf("%w: unknown mode %q", models.ErrUnsupportedOperation, req.Mode)
	}
	mode := req.Mode
	if mode == "" {
		mode = ModeDirect
	}

	embedding, err := e.embedder.Embed(ctx, req.Question)
	if err != nil {
		return models.QueryResponse{}, err
	}
	results := e.searcher.Search(embedding, e.topK)

	history, err := e.store.History(ctx, req.UserID, e.historyWindow)
	if err != nil {
		// Retrieval still works without history.
		logger.Warn("failed to load conversation history", "user_id", req.UserID, "error", err)
		history = nil
	}

	names := e.displayNames(ctx)

	prompt := buildPrompt(req.Question, mode, history, results, names)
	answer, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return models.QueryResponse{}, err
	}

	citations := buildCitations(answer, results, names)

	err = e.store.AppendExchange(ctx, req.UserID,
		models.Turn{Role: models.RoleUser, Content: req.Question, Mode: mode},
		models.Turn{Role: models.RoleAssistant, Content: answer, Mode: mode, Citations: citations},
	)
	if err != nil {
		logger.Error("failed to persist exchange", "user_id", req.UserID, "error", err)
	}

	return models.QueryResponse{Content: answer, Citations: citations}, nil
}

func (e *Engine) displayNames(ctx context.Context) map[string]string {
	if e.names == nil {
		return map[string]string{}
	}
	names, err := e.names.DisplayNames(ctx)
	if err != nil {
		logger.Warn("failed to load display names for citations", "error", err)
		return map[string]string{}
	}
	return names
}

// buildCitations derives citations from the passages supplied to the
// model. A refusal answer cites nothing. Duplicate (source, page)
// pairs collapse to their first occurrence, preserving rank order.
func buildCitations(answer string, results []index.SearchResult, names map[string]string) []models.Citation {
	citations := make([]models.Citation, 0, len(results))
	// Match on the refusal prefix; models sometimes append an apology
	// or rephrase the tail of the sentence.
	if strings.Contains(answer, "I cannot find this information") {
		return citations
	}

	seen := make(map[string]bool)
	for _, r := range results {
		name := names[r.Passage.Filename]
		if name == "" {
			name = r.Passage.Filename
		}
		key := fmt.Sprintf("%s|%d", name, r.Passage.Page)
		if seen[key] {
			continue
		}
		seen[key] = true
		citations = append(citations, models.Citation{Source: name, Page: r.Passage.Page})
	}
	return citations
}
