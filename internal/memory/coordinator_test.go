package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joss/aiko/internal/config"
	"github.com/joss/aiko/internal/domain"
)

type fakeService struct {
	fastBlock string
	fastErr   error
	fullBlock string
	fullErr   error
	saved     []string
	saveErr   error

	fastCalls, fullCalls int
	lastOpts             Options
}

func (f *fakeService) RetrieveFast(ctx context.Context, query, sessionID string, opts Options) (string, error) {
	f.fastCalls++
	f.lastOpts = opts
	return f.fastBlock, f.fastErr
}

func (f *fakeService) RetrieveFull(ctx context.Context, query, sessionID string, opts Options) (string, error) {
	f.fullCalls++
	f.lastOpts = opts
	return f.fullBlock, f.fullErr
}

func (f *fakeService) Save(ctx context.Context, text, tag, sessionID, emotion string) error {
	f.saved = append(f.saved, tag+":"+text)
	return f.saveErr
}

func testMemoryConfig() config.Memory {
	cfg := config.Default().Memory
	cfg.WarmupTurns = 3
	return cfg
}

func history(times ...time.Time) []*domain.ChatMessage {
	msgs := make([]*domain.ChatMessage, len(times))
	for i, ts := range times {
		msgs[i] = &domain.ChatMessage{Timestamp: ts}
	}
	return msgs
}

func TestComputeExcludeWindow(t *testing.T) {
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	ts := func(i int) time.Time { return base.Add(time.Duration(i) * time.Minute) }

	t.Run("window smaller than history", func(t *testing.T) {
		h := history(ts(0), ts(1), ts(2), ts(3), ts(4), ts(5))
		cutoff, ok := ComputeExcludeWindow(h, 2) // last 4 entries
		require.True(t, ok)
		require.Equal(t, ts(2), cutoff)
	})

	t.Run("window larger than history", func(t *testing.T) {
		h := history(ts(0), ts(1))
		cutoff, ok := ComputeExcludeWindow(h, 5)
		require.True(t, ok)
		require.Equal(t, ts(0), cutoff)
	})

	t.Run("empty history", func(t *testing.T) {
		_, ok := ComputeExcludeWindow(nil, 3)
		require.False(t, ok)
	})

	t.Run("zero rounds", func(t *testing.T) {
		_, ok := ComputeExcludeWindow(history(ts(0)), 0)
		require.False(t, ok)
	})

	t.Run("out-of-order timestamps still yield the minimum", func(t *testing.T) {
		h := history(ts(0), ts(5), ts(3), ts(4))
		cutoff, ok := ComputeExcludeWindow(h, 2)
		require.True(t, ok)
		require.Equal(t, ts(3), cutoff)
	})
}

func TestRetrieveFastPathWins(t *testing.T) {
	svc := &fakeService{fastBlock: "- fast memory"}
	c := NewCoordinator(svc, testMemoryConfig(), nil)

	block, warning := c.Retrieve(context.Background(), "q", "s1", nil, 5)
	require.Equal(t, "- fast memory", block)
	require.Empty(t, warning)
	require.Equal(t, 1, svc.fastCalls)
	require.Zero(t, svc.fullCalls)
}

func TestRetrieveFallsBackToFullPath(t *testing.T) {
	svc := &fakeService{fastErr: errors.New("redis down"), fullBlock: "- full memory"}
	c := NewCoordinator(svc, testMemoryConfig(), nil)

	block, warning := c.Retrieve(context.Background(), "q", "s1", nil, 5)
	require.Equal(t, "- full memory", block)
	require.Empty(t, warning)
	require.Equal(t, 1, svc.fastCalls)
	require.Equal(t, 1, svc.fullCalls)
}

func TestRetrieveDegradesToEmpty(t *testing.T) {
	svc := &fakeService{fastErr: errors.New("down"), fullErr: errors.New("also down")}
	c := NewCoordinator(svc, testMemoryConfig(), nil)

	block, warning := c.Retrieve(context.Background(), "q", "s1", nil, 5)
	require.Empty(t, block)
	require.Equal(t, DegradedWarning, warning)
	require.Error(t, c.LastFailure())

	// the warning is one-shot
	_, warning = c.Retrieve(context.Background(), "q", "s1", nil, 6)
	require.Empty(t, warning)
}

func TestRetrieveWarningSuppressedDuringWarmup(t *testing.T) {
	svc := &fakeService{fastErr: errors.New("down"), fullErr: errors.New("down")}
	c := NewCoordinator(svc, testMemoryConfig(), nil)

	_, warning := c.Retrieve(context.Background(), "q", "s1", nil, 1)
	require.Empty(t, warning)
	_, warning = c.Retrieve(context.Background(), "q", "s1", nil, 3)
	require.Empty(t, warning)

	// first post-warmup failure surfaces it
	_, warning = c.Retrieve(context.Background(), "q", "s1", nil, 4)
	require.Equal(t, DegradedWarning, warning)
}

func TestRetrieveSkipsFastPathWhenDisabled(t *testing.T) {
	svc := &fakeService{fullBlock: "- full"}
	cfg := testMemoryConfig()
	cfg.FastPath = false
	c := NewCoordinator(svc, cfg, nil)

	block, _ := c.Retrieve(context.Background(), "q", "s1", nil, 5)
	require.Equal(t, "- full", block)
	require.Zero(t, svc.fastCalls)
}

func TestRetrievePassesExcludeWindowAndTags(t *testing.T) {
	svc := &fakeService{fastBlock: ""}
	cfg := testMemoryConfig()
	cfg.ExcludeRounds = 1
	cfg.IncludeAIOutput = false
	c := NewCoordinator(svc, cfg, nil)

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	h := history(base, base.Add(time.Minute))

	c.Retrieve(context.Background(), "q", "s1", h, 5)
	require.Equal(t, base, svc.lastOpts.ExcludeAfter)
	require.Equal(t, []string{domain.TagUserInput}, svc.lastOpts.TagPatterns)
}

func TestSaveSwallowsFailures(t *testing.T) {
	svc := &fakeService{saveErr: errors.New("store down")}
	c := NewCoordinator(svc, testMemoryConfig(), nil)

	c.Save(context.Background(), "text", domain.TagUserInput, "s1", "")
	require.Len(t, svc.saved, 1)

	c.Save(context.Background(), "", domain.TagUserInput, "s1", "")
	require.Len(t, svc.saved, 1) // empty text never saved
}
