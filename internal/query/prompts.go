package query

import (
	"fmt"
	"strings"

	"tutorbot-backend/internal/index"
	"tutorbot-backend/models"
)

// RefusalAnswer is the exact sentence the model is instructed to use
// when the course materials do not contain the answer. Responses
// containing it carry no citations.
const RefusalAnswer = "I cannot find this information in the provided course content."

// Tutoring modes. ModeDirect is the default when a request leaves the
// mode empty.
const (
	ModeDirect   = "direct"
	ModeHint     = "hint"
	ModeSocratic = "socratic"
)

// ValidMode reports whether mode names a known tutoring mode. The
// empty string is valid and means direct.
func ValidMode(mode string) bool {
	switch mode {
	case "", ModeDirect, ModeHint, ModeSocratic:
		return true
	}
	return false
}

const systemPrompt = `You are an AI tutor for a specific university course.

STRICT RULES (YOU MUST FOLLOW ALL OF THESE):
1. You may ONLY use information found in the provided course material excerpts.
2. Do NOT use any outside knowledge, assumptions, or general facts.
3. If the answer to a question cannot be found in the provided course materials,
   respond exactly with:
   "` + RefusalAnswer + `"
4. Do NOT hallucinate, speculate, or fill in missing information.
5. Be clear, concise, and pedagogical in tone.
6. When appropriate, explain concepts step-by-step using only the course materials.

Your goal is to help students learn using ONLY the professor-provided content.`

// applyMode prefixes the question with the tutoring-mode instruction.
func applyMode(question, mode string) string {
	switch mode {
	case ModeHint:
		return "Give a helpful hint without revealing the full answer.\n\nQuestion:\n" + question
	case ModeSocratic:
		return "Guide the student using questions instead of direct answers.\n\nQuestion:\n" + question
	default:
		return question
	}
}

// buildPrompt assembles the full model prompt: system rules, retrieved
// excerpts tagged with their source and page, recent history, and the
// mode-adjusted question.
func buildPrompt(question, mode string, history []models.Turn, results []index.SearchResult, names map[string]string) string {
	var b strings.Builder
	b.WriteString(systemPrompt)

	b.WriteString("\n\nCOURSE MATERIAL EXCERPTS:\n")
	if len(results) == 0 {
		b.WriteString("(none found)\n")
	}
	for _, r := range results {
		name := names[r.Passage.Filename]
		if name == "" {
			name = r.Passage.Filename
		}
		fmt.Fprintf(&b, "\n[Source: %s | Page %d]\n%s\n", name, r.Passage.Page, r.Passage.Text)
	}

	b.WriteString("\nPREVIOUS CONVERSATION HISTORY:\n")
	for _, turn := range history {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(turn.Role), turn.Content)
	}

	b.WriteString("\nINSTRUCTION:\nBased on the course materials provided and the conversation history above, answer this question:\n")
	b.WriteString(applyMode(question, mode))
	return b.String()
}
