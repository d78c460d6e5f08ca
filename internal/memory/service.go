package memory

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrFastPathUnavailable means no fast-path index is configured; callers
// fall back to the full path.
var ErrFastPathUnavailable = errors.New("memory: fast path unavailable")

// Options carries the retrieval limits for one lookup.
type Options struct {
	TopK          int
	MaxItems      int
	MinSimilarity float64
	HalfLifeDays  float64
	ExcludeAfter  time.Time // zero = no exclusion window
	TagPatterns   []string
}

// Service is the external memory service boundary: two retrieval tiers plus
// best-effort persistence of new memories.
//
// Retrieval is deliberately cross-session: memories saved in any session are
// candidates, so the companion recalls things from earlier conversations.
// sessionID is recorded as provenance on Save; same-session overlap with the
// prompt's history window is handled by Options.ExcludeAfter, not by a
// session filter.
type Service interface {
	RetrieveFast(ctx context.Context, query, sessionID string, opts Options) (string, error)
	RetrieveFull(ctx context.Context, query, sessionID string, opts Options) (string, error)
	Save(ctx context.Context, text, tag, sessionID, emotion string) error
}

// TieredService implements Service over a fast recent-index and a full
// vector store.
type TieredService struct {
	fast  *RecentIndex // optional
	store Store
	embed Embedder
}

// NewTieredService wires the tiers together. fast may be nil.
func NewTieredService(fast *RecentIndex, store Store, embed Embedder) *TieredService {
	return &TieredService{fast: fast, store: store, embed: embed}
}

// RetrieveFast serves from the recent index.
func (s *TieredService) RetrieveFast(ctx context.Context, query, sessionID string, opts Options) (string, error) {
	if s.fast == nil {
		return "", ErrFastPathUnavailable
	}

	results, err := s.fast.Search(ctx, query, SearchQuery{
		TopK:         opts.TopK,
		TagPatterns:  opts.TagPatterns,
		ExcludeAfter: opts.ExcludeAfter,
	})
	if err != nil {
		return "", err
	}

	items := Rank(results, RankOptions{
		MinSimilarity: fastMinScore,
		HalfLifeDays:  opts.HalfLifeDays,
		MaxItems:      opts.MaxItems,
	})
	return FormatContext(items), nil
}

// RetrieveFull embeds the query and searches the vector store with full
// ranking and recency decay.
func (s *TieredService) RetrieveFull(ctx context.Context, query, sessionID string, opts Options) (string, error) {
	vector, err := s.embed.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}

	results, err := s.store.Search(ctx, vector, SearchQuery{
		TopK:         opts.TopK,
		TagPatterns:  opts.TagPatterns,
		ExcludeAfter: opts.ExcludeAfter,
	})
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}

	items := Rank(results, RankOptions{
		MinSimilarity: opts.MinSimilarity,
		HalfLifeDays:  opts.HalfLifeDays,
		MaxItems:      opts.MaxItems,
	})
	return FormatContext(items), nil
}

// Save stores a new memory in the full store and, best-effort, in the
// recent index.
func (s *TieredService) Save(ctx context.Context, text, tag, sessionID, emotion string) error {
	vector, err := s.embed.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	entry := Entry{
		SessionID: sessionID,
		Text:      text,
		Tag:       tag,
		Emotion:   emotion,
		Vector:    vector,
		CreatedAt: time.Now(),
	}
	if err := s.store.Add(ctx, entry); err != nil {
		return fmt.Errorf("add: %w", err)
	}

	if s.fast != nil {
		// The recent index is a cache; losing a push is acceptable.
		_ = s.fast.Push(ctx, entry)
	}
	return nil
}

var _ Service = (*TieredService)(nil)
