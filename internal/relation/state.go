// Package relation scores conversational signals and maintains the two
// bounded relationship scores: affinity and intimacy. No I/O happens here.
package relation

// Score bounds. Affinity is a 0-100 goodwill score; intimacy is a small
// tiered scale where tier 1 means no trust established yet.
const (
	AffinityMin     = 0
	AffinityMax     = 100
	AffinityDefault = 50

	IntimacyMin     = 1
	IntimacyMax     = 5
	IntimacyDefault = 1
)

// State holds the relationship scores. Mutated at most once per turn by the
// single orchestrator instance; no concurrent writers assumed.
type State struct {
	Affinity int `json:"affinity"`
	Intimacy int `json:"intimacy"`

	// progress toward the next intimacy tier, in positive turns
	intimacyProgress int
}

// NewState returns the initial relationship state for a first meeting.
func NewState() *State {
	return &State{Affinity: AffinityDefault, Intimacy: IntimacyDefault}
}

func (s *State) addAffinity(delta int) {
	s.Affinity += delta
	if s.Affinity < AffinityMin {
		s.Affinity = AffinityMin
	}
	if s.Affinity > AffinityMax {
		s.Affinity = AffinityMax
	}
}

// advanceIntimacy records one positive turn; every turnsPerTier of them
// raises the intimacy tier by one.
func (s *State) advanceIntimacy(turnsPerTier int) {
	if s.Intimacy >= IntimacyMax {
		return
	}
	s.intimacyProgress++
	if s.intimacyProgress >= turnsPerTier {
		s.intimacyProgress = 0
		s.Intimacy++
	}
}
