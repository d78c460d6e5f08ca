package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTieredServiceRecallsAcrossSessions(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	svc := NewTieredService(nil, store, NewLocalEmbedder(64))

	require.NoError(t, svc.Save(ctx, "我家的猫叫咪咪", "user_input", "session-a", ""))

	// A later session still recalls what an earlier one saved.
	block, err := svc.RetrieveFull(ctx, "我家的猫", "session-b", Options{
		TopK:     5,
		MaxItems: 3,
	})
	require.NoError(t, err)
	require.Contains(t, block, "我家的猫叫咪咪")

	results, err := store.Search(ctx, mustEmbed(t, "我家的猫"), SearchQuery{TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "session-a", results[0].Entry.SessionID)
}

func TestTieredServiceFastPathUnavailableWithoutIndex(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	svc := NewTieredService(nil, store, NewLocalEmbedder(64))

	_, err = svc.RetrieveFast(context.Background(), "你好", "session-a", Options{TopK: 3})
	require.ErrorIs(t, err, ErrFastPathUnavailable)
}

func mustEmbed(t *testing.T, text string) []float32 {
	t.Helper()
	vec, err := NewLocalEmbedder(64).Embed(context.Background(), text)
	require.NoError(t, err)
	return vec
}
