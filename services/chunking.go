package services

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Chunk is one embeddable unit of text, tagged with the page it came
// from so answers can cite it.
type Chunk struct {
	ChunkID string
	Page    int
	Text    string
}

// Chunker splits page text into overlapping chunks with sentence
// boundary awareness. Chunks never span pages, so a chunk's page tag is
// always exact.
type Chunker struct {
	maxChunkSize   int
	overlap        int
	minChunkSize   int
	sentenceRegex  *regexp.Regexp
	paragraphRegex *regexp.Regexp
}

func NewChunker(maxChunkSize, overlap, minChunkSize int) *Chunker {
	if maxChunkSize <= 0 {
		maxChunkSize = 1000
	}
	if overlap < 0 || overlap >= maxChunkSize {
		overlap = maxChunkSize / 5
	}
	if minChunkSize <= 0 {
		minChunkSize = 50
	}
	return &Chunker{
		maxChunkSize:   maxChunkSize,
		overlap:        overlap,
		minChunkSize:   minChunkSize,
		sentenceRegex:  regexp.MustCompile(`[.!?]+\s+`),
		paragraphRegex: regexp.MustCompile(`\n\n+`),
	}
}

// ChunkPages chunks every page and concatenates the results in page
// order.
func (c *Chunker) ChunkPages(pages []PageText) []Chunk {
	var chunks []Chunk
	for _, page := range pages {
		chunks = append(chunks, c.chunkPage(page)...)
	}
	return chunks
}

func (c *Chunker) chunkPage(page PageText) []Chunk {
	paragraphs := c.paragraphRegex.Split(page.Text, -1)

	var chunks []Chunk
	current := new(strings.Builder)

	flush := func() {
		text := strings.TrimSpace(current.String())
		if len(text) >= c.minChunkSize {
			chunks = append(chunks, Chunk{ChunkID: uuid.NewString(), Page: page.Page, Text: text})
		}
		current.Reset()
	}

	for _, paragraph := range paragraphs {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		// Paragraphs larger than a chunk get split on their own.
		if len(paragraph) > c.maxChunkSize {
			flush()
			for _, piece := range c.splitLong(paragraph) {
				chunks = append(chunks, Chunk{ChunkID: uuid.NewString(), Page: page.Page, Text: piece})
			}
			continue
		}

		if current.Len() > 0 && current.Len()+2+len(paragraph) > c.maxChunkSize {
			tail := c.overlapTail(current.String())
			flush()
			if tail != "" {
				current.WriteString(tail)
			}
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(paragraph)
	}
	flush()

	// A page shorter than minChunkSize still deserves one chunk rather
	// than vanishing from the corpus.
	if len(chunks) == 0 {
		text := strings.TrimSpace(page.Text)
		if text != "" {
			chunks = append(chunks, Chunk{ChunkID: uuid.NewString(), Page: page.Page, Text: text})
		}
	}
	return chunks
}

// splitLong breaks an oversized paragraph at word boundaries, stepping
// back by the overlap between consecutive pieces.
func (c *Chunker) splitLong(text string) []string {
	words := strings.Fields(text)
	var pieces []string
	start := 0
	for start < len(words) {
		size := 0
		end := start
		for end < len(words) && size+len(words[end])+1 <= c.maxChunkSize {
			size += len(words[end]) + 1
			end++
		}
		if end == start {
			end = start + 1
		}
		pieces = append(pieces, strings.Join(words[start:end], " "))
		if end >= len(words) {
			break
		}

		// Step back enough words to cover the overlap budget.
		back := end
		overlapSize := 0
		for back > start+1 && overlapSize < c.overlap {
			back--
			overlapSize += len(words[back]) + 1
		}
		start = back
	}
	return pieces
}

// overlapTail returns the trailing sentences of text that fit in the
// overlap budget, falling back to a raw suffix when no sentence
// boundary is near.
func (c *Chunker) overlapTail(text string) string {
	if c.overlap <= 0 {
		return ""
	}
	if len(text) <= c.overlap {
		return text
	}

	suffix := text[len(text)-c.overlap:]
	if loc := c.sentenceRegex.FindStringIndex(suffix); loc != nil {
		return strings.TrimSpace(suffix[loc[1]:])
	}
	if idx := strings.IndexAny(suffix, " \n\t"); idx >= 0 {
		return strings.TrimSpace(suffix[idx:])
	}
	return strings.TrimSpace(suffix)
}
