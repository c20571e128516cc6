package index

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"tutorbot-backend/models"
)

// SearchResult pairs a passage with its similarity score for one query.
type SearchResult struct {
	Passage models.Passage
	Score   float64
}

// snapshot is one immutable generation of the index. Readers hold a
// snapshot for the duration of a search and never see a partial rebuild.
type snapshot struct {
	Version  string
	Passages []models.Passage
	norms    []float64
}

// Store is an in-memory brute-force cosine similarity index with an
// on-disk gob copy for restarts. ReplaceAll swaps whole generations
// atomically; there is no incremental mutation.
type Store struct {
	path string
	snap atomic.Pointer[snapshot]
}

func NewStore(path string) *Store {
	s := &Store{path: path}
	s.snap.Store(&snapshot{})
	return s
}

// persisted is the gob wire form. Norms are recomputed on load.
type persisted struct {
	Version  string
	Passages []models.Passage
}

// Load restores the last persisted generation. A missing file is a
// fresh deployment, not an error.
func (s *Store) Load() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	var p persisted
	if err := gob.NewDecoder(f).Decode(&p); err != nil {
		return fmt.Errorf("decode index file: %w", err)
	}
	s.snap.Store(newSnapshot(p.Version, p.Passages))
	return nil
}

// ReplaceAll persists the new generation and then swaps it in. The
// order matters: if the disk write fails the served index is unchanged,
// so a failed rebuild never leaves readers on an unrecoverable state.
func (s *Store) ReplaceAll(version string, passages []models.Passage) error {
	if err := s.persist(version, passages); err != nil {
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	s.snap.Store(newSnapshot(version, passages))
	return nil
}

func (s *Store) persist(version string, passages []models.Passage) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".index-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := gob.NewEncoder(tmp).Encode(persisted{Version: version, Passages: passages}); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Search returns the topK most similar passages, best first. Equal
// scores fall back to (filename, page) order so results are stable
// across runs.
func (s *Store) Search(query []float32, topK int) []SearchResult {
	snap := s.snap.Load()
	if len(snap.Passages) == 0 || topK <= 0 {
		return nil
	}

	qNorm := norm(query)
	if qNorm == 0 {
		return nil
	}

	results := make([]SearchResult, 0, len(snap.Passages))
	for i, p := range snap.Passages {
		if snap.norms[i] == 0 {
			continue
		}
		score := dot(query, p.Embedding) / (qNorm * snap.norms[i])
		results = append(results, SearchResult{Passage: p, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Passage.Filename != results[j].Passage.Filename {
			return results[i].Passage.Filename < results[j].Passage.Filename
		}
		return results[i].Passage.Page < results[j].Passage.Page
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Version returns the content version the served generation was built
// from, or "" when the index is empty.
func (s *Store) Version() string {
	return s.snap.Load().Version
}

// Count returns the number of passages in the served generation.
func (s *Store) Count() int {
	return len(s.snap.Load().Passages)
}

func newSnapshot(version string, passages []models.Passage) *snapshot {
	norms := make([]float64, len(passages))
	for i, p := range passages {
		norms[i] = norm(p.Embedding)
	}
	return &snapshot{Version: version, Passages: passages, norms: norms}
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
