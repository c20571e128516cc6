package models

// Passage is a page-anchored chunk of source text plus its embedding
// vector. Immutable once created; the full passage set for a content
// version is replaced atomically by ingestion.
type Passage struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Page      int       `json:"page"` // 1-based
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
	Version   string    `json:"version"`
}
