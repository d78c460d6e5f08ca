package relation

import (
	"strings"
	"time"

	aikostrings "github.com/joss/aiko/internal/strings"
)

// Keyword lists are matched against normalized text (lowercased, punctuation
// and whitespace stripped), so separators cannot hide a keyword.
var (
	rudeKeywords = []string{
		"滚", "闭嘴", "笨蛋", "废物", "讨厌你", "蠢",
		"stupid", "idiot", "shutup", "useless", "hateyou",
	}
	apologyKeywords = []string{
		"对不起", "抱歉", "我错了", "原谅我",
		"sorry", "mybad", "apologize", "forgiveme",
	}
	crisisKeywords = []string{
		"自杀", "不想活", "想死", "活不下去", "自残",
		"killmyself", "suicide", "endmylife", "selfharm", "wanttodie",
	}
	// Escalation attempts before trust is established are penalized; the
	// same words at higher intimacy tiers are not.
	strongIntimacyKeywords = []string{
		"亲我", "吻我", "抱我睡", "做我女朋友", "做我男朋友",
		"kissme", "sleepwithme", "bemygirlfriend", "bemyboyfriend",
	}
)

// Score deltas applied per detected signal.
const (
	rudenessPenalty        = -5
	boundaryPenalty        = -3
	apologyRecovery        = +3
	positiveGain           = +1
	intimacyTurnsToAdvance = 10
)

// Analysis is the outcome of scoring one user message.
type Analysis struct {
	Rude             bool
	Apology          bool
	Crisis           bool
	CrisisKeyword    string
	BoundaryCrossing bool
	AffinityDelta    int
	IntimacyAdvanced bool
}

// Processor applies turn-local scoring. One instance per orchestrator.
type Processor struct {
	state           *State
	lastApologyGain time.Time
	apologyCooldown time.Duration
	now             func() time.Time
}

// NewProcessor creates a Processor around an existing state.
func NewProcessor(state *State) *Processor {
	if state == nil {
		state = NewState()
	}
	return &Processor{
		state:           state,
		apologyCooldown: 10 * time.Minute,
		now:             time.Now,
	}
}

// State returns the relationship state the processor mutates.
func (p *Processor) State() *State { return p.state }

// Analyze scores one user message and applies at most one adjustment to the
// relationship state: a single negative (rudeness or boundary-crossing,
// never both), or, with no negative signal, a positive intimacy update plus
// a cooldown-gated affinity recovery when an apology is present.
func (p *Processor) Analyze(text string) Analysis {
	norm := aikostrings.Normalize(text)

	a := Analysis{
		Rude:    containsAny(norm, rudeKeywords),
		Apology: containsAny(norm, apologyKeywords),
	}
	if kw := firstMatch(norm, crisisKeywords); kw != "" {
		a.Crisis = true
		a.CrisisKeyword = kw
	}
	if p.state.Intimacy == IntimacyMin && containsAny(norm, strongIntimacyKeywords) {
		a.BoundaryCrossing = true
	}

	switch {
	case a.Rude:
		a.AffinityDelta = rudenessPenalty
	case a.BoundaryCrossing:
		a.AffinityDelta = boundaryPenalty
	default:
		p.state.advanceIntimacy(intimacyTurnsToAdvance)
		a.IntimacyAdvanced = true
		a.AffinityDelta = positiveGain
		if a.Apology && p.now().Sub(p.lastApologyGain) >= p.apologyCooldown {
			a.AffinityDelta += apologyRecovery
			p.lastApologyGain = p.now()
		}
	}

	p.state.addAffinity(a.AffinityDelta)
	return a
}

func containsAny(norm string, keywords []string) bool {
	return firstMatch(norm, keywords) != ""
}

func firstMatch(norm string, keywords []string) string {
	for _, kw := range keywords {
		if strings.Contains(norm, kw) {
			return kw
		}
	}
	return ""
}
