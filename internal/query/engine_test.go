package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"tutorbot-backend/internal/conversation"
	"tutorbot-backend/internal/index"
	"tutorbot-backend/models"
)

type fakeGenerator struct {
	answer  string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type fakeSearcher struct {
	results []index.SearchResult
}

func (f *fakeSearcher) Search(query []float32, topK int) []index.SearchResult {
	if len(f.results) > topK {
		return f.results[:topK]
	}
	return f.results
}

type fakeNames struct {
	names map[string]string
	err   error
}

func (f *fakeNames) DisplayNames(ctx context.Context) (map[string]string, error) {
	return f.names, f.err
}

func result(filename string, page int, text string) index.SearchResult {
	return index.SearchResult{
		Passage: models.Passage{ID: fmt.Sprintf("%s-%d", filename, page), Filename: filename, Page: page, Text: text},
		Score:   0.9,
	}
}

func newTestEngine(gen *fakeGenerator, searcher *fakeSearcher, names *fakeNames) (*Engine, *conversation.MemoryStore) {
	store := conversation.NewMemoryStore()
	return NewEngine(gen, fakeEmbedder{}, searcher, store, names, 6, 10), store
}

func TestAnswerPersistsExchange(t *testing.T) {
	gen := &fakeGenerator{answer: "Dynamic programming reuses subproblem results."}
	searcher := &fakeSearcher{results: []index.SearchResult{result("algo.pdf", 12, "dp text")}}
	engine, store := newTestEngine(gen, searcher, &fakeNames{})

	resp, err := engine.Answer(context.Background(), models.QueryRequest{UserID: "student-1", Question: "What is DP?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if resp.Content != gen.answer {
		t.Errorf("unexpected answer %q", resp.Content)
	}

	turns, err := store.History(context.Background(), "student-1", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 persisted turns, got %d", len(turns))
	}
	if turns[0].Role != models.RoleUser || turns[0].Content != "What is DP?" {
		t.Errorf("unexpected user turn: %+v", turns[0])
	}
	if turns[1].Role != models.RoleAssistant || turns[1].Content != gen.answer {
		t.Errorf("unexpected assistant turn: %+v", turns[1])
	}
	if len(turns[1].Citations) != 1 {
		t.Errorf("assistant turn should carry citations, got %d", len(turns[1].Citations))
	}
}

func TestAnswerExchangesStayOrdered(t *testing.T) {
	gen := &fakeGenerator{answer: "answer"}
	engine, store := newTestEngine(gen, &fakeSearcher{}, &fakeNames{})

	for i := 0; i < 2; i++ {
		q := fmt.Sprintf("question %d", i)
		if _, err := engine.Answer(context.Background(), models.QueryRequest{UserID: "student-1", Question: q}); err != nil {
			t.Fatalf("Answer: %v", err)
		}
	}

	turns, _ := store.History(context.Background(), "student-1", 0)
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	wantRoles := []string{models.RoleUser, models.RoleAssistant, models.RoleUser, models.RoleAssistant}
	for i, role := range wantRoles {
		if turns[i].Role != role {
			t.Errorf("turn %d: got role %s, want %s", i, turns[i].Role, role)
		}
	}
	if turns[0].Content != "question 0" || turns[2].Content != "question 1" {
		t.Error("questions out of order")
	}
}

func TestAnswerCitationsUseDisplayNames(t *testing.T) {
	gen := &fakeGenerator{answer: "Covered in the slides."}
	searcher := &fakeSearcher{results: []index.SearchResult{
		result("week1.pdf", 3, "a"),
		result("week1.pdf", 3, "b"), // duplicate (source, page)
		result("week2.pdf", 7, "c"),
	}}
	names := &fakeNames{names: map[string]string{"week1.pdf": "Week 1 Lecture"}}
	engine, _ := newTestEngine(gen, searcher, names)

	resp, err := engine.Answer(context.Background(), models.QueryRequest{UserID: "u", Question: "q"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(resp.Citations) != 2 {
		t.Fatalf("expected 2 deduplicated citations, got %d", len(resp.Citations))
	}
	if resp.Citations[0].Source != "Week 1 Lecture" || resp.Citations[0].Page != 3 {
		t.Errorf("unexpected first citation: %+v", resp.Citations[0])
	}
	if resp.Citations[1].Source != "week2.pdf" || resp.Citations[1].Page != 7 {
		t.Errorf("unexpected second citation: %+v", resp.Citations[1])
	}
}

func TestAnswerRefusalHasNoCitations(t *testing.T) {
	gen := &fakeGenerator{answer: RefusalAnswer}
	searcher := &fakeSearcher{results: []index.SearchResult{result("week1.pdf", 3, "a")}}
	engine, _ := newTestEngine(gen, searcher, &fakeNames{})

	resp, err := engine.Answer(context.Background(), models.QueryRequest{UserID: "u", Question: "q"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if resp.Citations == nil {
		t.Fatal("citations must be an empty slice, not nil")
	}
	if len(resp.Citations) != 0 {
		t.Errorf("refusal answer must carry no citations, got %d", len(resp.Citations))
	}
}

func TestAnswerModelFailurePersistsNothing(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("%w: breaker open", models.ErrModelUnavailable)}
	engine, store := newTestEngine(gen, &fakeSearcher{}, &fakeNames{})

	_, err := engine.Answer(context.Background(), models.QueryRequest{UserID: "student-1", Question: "q"})
	if !errors.Is(err, models.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}

	turns, _ := store.History(context.Background(), "student-1", 0)
	if len(turns) != 0 {
		t.Errorf("failed exchange must not be persisted, got %d turns", len(turns))
	}
}

func TestAnswerRejectsUnknownMode(t *testing.T) {
	gen := &fakeGenerator{answer: "x"}
	engine, _ := newTestEngine(gen, &fakeSearcher{}, &fakeNames{})

	_, err := engine.Answer(context.Background(), models.QueryRequest{UserID: "u", Question: "q", Mode: "lecture"})
	if !errors.Is(err, models.ErrUnsupportedOperation) {
		t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
	}
	if len(gen.prompts) != 0 {
		t.Error("invalid mode must not reach the model")
	}
}

func TestAnswerModeShapesPrompt(t *testing.T) {
	cases := map[string]string{
		ModeHint:     "Give a helpful hint",
		ModeSocratic: "Guide the student using questions",
	}
	for mode, marker := range cases {
		gen := &fakeGenerator{answer: "x"}
		engine, _ := newTestEngine(gen, &fakeSearcher{}, &fakeNames{})
		if _, err := engine.Answer(context.Background(), models.QueryRequest{UserID: "u", Question: "q", Mode: mode}); err != nil {
			t.Fatalf("Answer(%s): %v", mode, err)
		}
		if !strings.Contains(gen.prompts[0], marker) {
			t.Errorf("mode %s: prompt missing instruction %q", mode, marker)
		}
	}

	// Direct mode adds no instruction.
	gen := &fakeGenerator{answer: "x"}
	engine, _ := newTestEngine(gen, &fakeSearcher{}, &fakeNames{})
	if _, err := engine.Answer(context.Background(), models.QueryRequest{UserID: "u", Question: "q"}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	for _, marker := range cases {
		if strings.Contains(gen.prompts[0], marker) {
			t.Errorf("direct mode prompt contains %q", marker)
		}
	}
}

func TestAnswerPromptIncludesHistoryAndSources(t *testing.T) {
	gen := &fakeGenerator{answer: "second answer"}
	searcher := &fakeSearcher{results: []index.SearchResult{result("notes.pdf", 2, "binary search halves the range")}}
	engine, store := newTestEngine(gen, searcher, &fakeNames{})

	if err := store.AppendExchange(context.Background(), "u",
		models.Turn{Role: models.RoleUser, Content: "earlier question"},
		models.Turn{Role: models.RoleAssistant, Content: "earlier answer"},
	); err != nil {
		t.Fatalf("seed history: %v", err)
	}

	if _, err := engine.Answer(context.Background(), models.QueryRequest{UserID: "u", Question: "follow-up"}); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	prompt := gen.prompts[0]
	for _, want := range []string{
		"USER: earlier question",
		"ASSISTANT: earlier answer",
		"[Source: notes.pdf | Page 2]",
		"binary search halves the range",
		"follow-up",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
