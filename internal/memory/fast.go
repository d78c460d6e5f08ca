package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	aikostrings "github.com/joss/aiko/internal/strings"
)

const (
	recentKey    = "aiko:memory:recent"
	recentCap    = 200
	recentTTL    = 7 * 24 * time.Hour
	fastMinScore = 0.2 // minimum token-overlap ratio for a fast-path hit
)

// RecentIndex is the fast retrieval path: the newest memories kept in a
// Redis list and scanned by token overlap. Cheap and narrow; when it cannot
// answer, the caller falls back to the full vector path.
type RecentIndex struct {
	client *redis.Client
}

// NewRecentIndex creates a fast-path index over an existing Redis client.
func NewRecentIndex(client *redis.Client) *RecentIndex {
	return &RecentIndex{client: client}
}

// Push records a memory in the recent window.
func (r *RecentIndex) Push(ctx context.Context, entry Entry) error {
	stripped := entry
	stripped.Vector = nil // vectors stay in the full-path store

	data, err := json.Marshal(stripped)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.LPush(ctx, recentKey, data)
	pipe.LTrim(ctx, recentKey, 0, recentCap-1)
	pipe.Expire(ctx, recentKey, recentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push recent: %w", err)
	}
	return nil
}

// Search scans the recent window and scores entries by token overlap with
// the query.
func (r *RecentIndex) Search(ctx context.Context, query string, q SearchQuery) ([]SearchResult, error) {
	raw, err := r.client.LRange(ctx, recentKey, 0, recentCap-1).Result()
	if err != nil {
		return nil, fmt.Errorf("scan recent: %w", err)
	}

	queryTokens := aikostrings.Tokens(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	var results []SearchResult
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		if !q.admit(entry) {
			continue
		}
		score := overlapScore(queryTokens, aikostrings.Tokens(entry.Text))
		if score < fastMinScore {
			continue
		}
		results = append(results, SearchResult{Entry: entry, Score: score})
	}

	sortByScore(results)
	if q.TopK > 0 && len(results) > q.TopK {
		results = results[:q.TopK]
	}
	return results, nil
}

// overlapScore is the fraction of query tokens present in the candidate.
func overlapScore(query, candidate []string) float64 {
	if len(query) == 0 {
		return 0
	}
	set := make(map[string]bool, len(candidate))
	for _, t := range candidate {
		set[t] = true
	}
	var hits int
	for _, t := range query {
		if set[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}
