package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/joss/aiko/internal/graph"
)

// GraphStore implements Store on a bolt-protocol graph database. Candidate
// nodes are fetched with Cypher; tag globbing and cosine similarity run
// client-side, which keeps the queries portable across Neo4j and Memgraph.
type GraphStore struct {
	db graph.Driver
}

// NewGraphStore creates a graph-backed memory store.
func NewGraphStore(db graph.Driver) *GraphStore {
	return &GraphStore{db: db}
}

// Add stores a memory entry as a node.
func (s *GraphStore) Add(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = generateID(entry.Text)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		MERGE (m:Memory {id: $id})
		SET m.text = $text,
			m.tag = $tag,
			m.emotion = $emotion,
			m.session_id = $session_id,
			m.created_at = $created_at,
			m.vector = $vector
	`
	params := map[string]any{
		"id":         entry.ID,
		"text":       entry.Text,
		"tag":        entry.Tag,
		"emotion":    entry.Emotion,
		"session_id": entry.SessionID,
		"created_at": entry.CreatedAt.Unix(),
		"vector":     entry.Vector,
	}
	return s.db.ExecuteWrite(ctx, query, params)
}

// Search fetches candidates and ranks them by cosine similarity.
func (s *GraphStore) Search(ctx context.Context, vector []float32, q SearchQuery) ([]SearchResult, error) {
	query := `
		MATCH (m:Memory)
		RETURN m.id AS id, m.text AS text, m.tag AS tag, m.emotion AS emotion,
			m.session_id AS session_id, m.created_at AS created_at, m.vector AS vector
	`
	records, err := s.db.Execute(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch memories: %w", err)
	}

	var results []SearchResult
	for _, rec := range records {
		entry := recordToEntry(rec)
		if !q.admit(entry) || len(entry.Vector) == 0 {
			continue
		}
		results = append(results, SearchResult{
			Entry: entry,
			Score: cosineSimilarity(vector, entry.Vector),
		})
	}

	sortByScore(results)
	if q.TopK > 0 && len(results) > q.TopK {
		results = results[:q.TopK]
	}
	return results, nil
}

// Delete removes an entry node by ID.
func (s *GraphStore) Delete(ctx context.Context, id string) error {
	return s.db.ExecuteWrite(ctx, `MATCH (m:Memory {id: $id}) DETACH DELETE m`, map[string]any{"id": id})
}

// Count returns total stored entries.
func (s *GraphStore) Count(ctx context.Context) (int, error) {
	records, err := s.db.Execute(ctx, `MATCH (m:Memory) RETURN count(m) AS count`, nil)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	if n, ok := records[0]["count"].(int64); ok {
		return int(n), nil
	}
	return 0, nil
}

// Close is a no-op; the driver is owned by the caller.
func (s *GraphStore) Close() error { return nil }

func recordToEntry(rec graph.Record) Entry {
	entry := Entry{}
	if v, ok := rec["id"].(string); ok {
		entry.ID = v
	}
	if v, ok := rec["text"].(string); ok {
		entry.Text = v
	}
	if v, ok := rec["tag"].(string); ok {
		entry.Tag = v
	}
	if v, ok := rec["emotion"].(string); ok {
		entry.Emotion = v
	}
	if v, ok := rec["session_id"].(string); ok {
		entry.SessionID = v
	}
	if v, ok := rec["created_at"].(int64); ok {
		entry.CreatedAt = time.Unix(v, 0)
	}
	if vs, ok := rec["vector"].([]any); ok {
		vec := make([]float32, 0, len(vs))
		for _, f := range vs {
			if fv, ok := f.(float64); ok {
				vec = append(vec, float32(fv))
			}
		}
		entry.Vector = vec
	}
	return entry
}

var _ Store = (*GraphStore)(nil)
