package memory

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/joss/aiko/internal/domain"
)

// RankOptions control filtering and recency decay for candidate ranking.
type RankOptions struct {
	MinSimilarity float64
	HalfLifeDays  float64
	MaxItems      int
	Now           time.Time // zero means time.Now()
}

// Rank filters candidates to similarity >= MinSimilarity, decays each by age
// with weight = similarity * 0.5^(ageDays/halfLifeDays), sorts descending by
// weight, and truncates to MaxItems.
func Rank(candidates []SearchResult, opts RankOptions) []domain.MemoryItem {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	items := make([]domain.MemoryItem, 0, len(candidates))
	for _, c := range candidates {
		if c.Score < opts.MinSimilarity {
			continue
		}
		weight := c.Score
		if opts.HalfLifeDays > 0 {
			ageDays := now.Sub(c.Entry.CreatedAt).Hours() / 24
			if ageDays < 0 {
				ageDays = 0
			}
			weight = c.Score * math.Pow(0.5, ageDays/opts.HalfLifeDays)
		}
		items = append(items, domain.MemoryItem{
			Text:       c.Entry.Text,
			Tag:        c.Entry.Tag,
			Similarity: c.Score,
			Weight:     weight,
			Emotion:    c.Entry.Emotion,
			CreatedAt:  c.Entry.CreatedAt,
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Weight > items[j].Weight })

	if opts.MaxItems > 0 && len(items) > opts.MaxItems {
		items = items[:opts.MaxItems]
	}
	return items
}

// FormatContext renders ranked items as the memory-context block injected
// into the prompt. Empty input renders to the empty string.
func FormatContext(items []domain.MemoryItem) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		if item.Emotion != "" {
			b.WriteString("(" + item.Emotion + ") ")
		}
		b.WriteString(item.Text)
	}
	return b.String()
}
