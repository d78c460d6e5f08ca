// Package memory implements long-term conversation memory: tagged storage,
// similarity retrieval with recency decay, and the best-effort retrieval
// coordinator the turn orchestrator depends on.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Entry is one stored memory fragment.
type Entry struct {
	ID        string            `json:"id"`
	SessionID string            `json:"sessionID"`
	Text      string            `json:"text"`
	Tag       string            `json:"tag"` // user_input, ai_output, ...
	Emotion   string            `json:"emotion,omitempty"`
	Vector    []float32         `json:"vector,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// SearchResult is a similarity search hit.
type SearchResult struct {
	Entry Entry
	Score float64 // cosine similarity (0-1)
}

// SearchQuery narrows a vector search.
type SearchQuery struct {
	TopK         int
	TagPatterns  []string  // doublestar globs; empty allows all tags
	ExcludeAfter time.Time // skip entries created at or after this instant; zero = none
}

// Searcher provides read-only vector search.
type Searcher interface {
	Search(ctx context.Context, vector []float32, q SearchQuery) ([]SearchResult, error)
}

// Writer provides write operations for memory entries.
type Writer interface {
	Add(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, id string) error
}

// Store is the full memory store interface.
type Store interface {
	Searcher
	Writer

	Count(ctx context.Context) (int, error)
	Close() error
}

// MatchTag reports whether tag matches any of the patterns. An empty
// pattern list allows everything.
func MatchTag(tag string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, tag); err == nil && ok {
			return true
		}
	}
	return false
}

// admit applies the shared SearchQuery filters.
func (q SearchQuery) admit(e Entry) bool {
	if !MatchTag(e.Tag, q.TagPatterns) {
		return false
	}
	if !q.ExcludeAfter.IsZero() && !e.CreatedAt.Before(q.ExcludeAfter) {
		return false
	}
	return true
}

func generateID(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:8])
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func sortByScore(results []SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
