package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"tutorbot-backend/models"
)

// ComputeVersion derives a content version from the document listing.
// The version covers filename, last-modified time, and size of every
// document, so any corpus change (add, remove, replace) produces a new
// version and an unchanged corpus always reproduces the same one.
func ComputeVersion(docs []models.Document) string {
	sorted := make([]models.Document, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Filename < sorted[j].Filename })

	h := sha256.New()
	for _, doc := range sorted {
		fmt.Fprintf(h, "%s\x00%d\x00%d\x00", doc.Filename, doc.LastModified.UTC().UnixNano(), doc.Size)
	}
	return hex.EncodeToString(h.Sum(nil))
}
