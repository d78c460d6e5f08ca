package relation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestProcessor() (*Processor, *time.Time) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewProcessor(NewState())
	p.now = func() time.Time { return now }
	return p, &now
}

func TestRudenessPenalty(t *testing.T) {
	p, _ := newTestProcessor()
	before := p.State().Affinity

	a := p.Analyze("你真是个笨蛋，闭嘴！")
	require.True(t, a.Rude)
	require.Equal(t, rudenessPenalty, a.AffinityDelta)
	require.Equal(t, before+rudenessPenalty, p.State().Affinity)
	require.False(t, a.IntimacyAdvanced)
}

func TestRudenessCaughtThroughSeparators(t *testing.T) {
	p, _ := newTestProcessor()
	a := p.Analyze("s-t-u-p-i-d")
	require.True(t, a.Rude)
}

func TestBoundaryCrossingAtLowestTier(t *testing.T) {
	p, _ := newTestProcessor()
	require.Equal(t, IntimacyMin, p.State().Intimacy)
	intimacyBefore := p.State().Intimacy

	a := p.Analyze("亲我一下")
	require.True(t, a.BoundaryCrossing)
	require.Equal(t, boundaryPenalty, a.AffinityDelta)
	// no intimacy gain in the same turn as the deduction
	require.False(t, a.IntimacyAdvanced)
	require.Equal(t, intimacyBefore, p.State().Intimacy)
}

func TestNoBoundaryCrossingAtHigherTier(t *testing.T) {
	p, _ := newTestProcessor()
	p.State().Intimacy = 3

	a := p.Analyze("亲我一下")
	require.False(t, a.BoundaryCrossing)
	require.Equal(t, positiveGain, a.AffinityDelta)
}

func TestRudenessAndBoundaryDoNotStack(t *testing.T) {
	p, _ := newTestProcessor()
	a := p.Analyze("笨蛋，亲我")
	require.True(t, a.Rude)
	require.True(t, a.BoundaryCrossing)
	require.Equal(t, rudenessPenalty, a.AffinityDelta)
}

func TestApologyRecoveryWithCooldown(t *testing.T) {
	p, now := newTestProcessor()

	a := p.Analyze("对不起，我昨天太凶了")
	require.True(t, a.Apology)
	require.Equal(t, positiveGain+apologyRecovery, a.AffinityDelta)

	// second apology inside the cooldown only gets the base gain
	*now = now.Add(time.Minute)
	a = p.Analyze("真的很抱歉")
	require.Equal(t, positiveGain, a.AffinityDelta)

	// after the cooldown the recovery applies again
	*now = now.Add(time.Hour)
	a = p.Analyze("sorry呀")
	require.Equal(t, positiveGain+apologyRecovery, a.AffinityDelta)
}

func TestCrisisDetection(t *testing.T) {
	p, _ := newTestProcessor()
	a := p.Analyze("我最近总觉得不想活了")
	require.True(t, a.Crisis)
	require.NotEmpty(t, a.CrisisKeyword)
}

func TestIntimacyAdvancesAfterSustainedPositiveTurns(t *testing.T) {
	p, _ := newTestProcessor()
	for i := 0; i < intimacyTurnsToAdvance; i++ {
		p.Analyze("今天天气真好")
	}
	require.Equal(t, IntimacyMin+1, p.State().Intimacy)
}

func TestAffinityBounds(t *testing.T) {
	p, _ := newTestProcessor()
	p.State().Affinity = 2
	p.Analyze("笨蛋")
	require.Equal(t, AffinityMin, p.State().Affinity)

	p.State().Affinity = AffinityMax
	p.Analyze("你最好啦")
	require.Equal(t, AffinityMax, p.State().Affinity)
}
