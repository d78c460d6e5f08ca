// Package speech defines the capability interface for voice input.
package speech

import "context"

// State is the recognizer's listening state.
type State int

const (
	StateStopped State = iota
	StateListening
	StateFinalizing
)

// Recognizer is a streaming speech-to-text surface. Partial results
// update while the user speaks; exactly one final result closes each
// utterance. Cancel discards the utterance without a final result.
type Recognizer interface {
	// Start begins listening. With autoStop the recognizer finalizes on
	// detected silence; otherwise Stop must be called.
	Start(ctx context.Context, autoStop bool) error
	Stop(ctx context.Context) error
	Cancel(ctx context.Context) error

	Partials() <-chan string
	Finals() <-chan string
	States() <-chan State
}

// Stub is a no-hardware recognizer for tests and handsfree-disabled
// builds. Inject recognized text with Emit.
type Stub struct {
	partials chan string
	finals   chan string
	states   chan State
}

func NewStub() *Stub {
	return &Stub{
		partials: make(chan string, 16),
		finals:   make(chan string, 16),
		states:   make(chan State, 16),
	}
}

func (s *Stub) Start(ctx context.Context, autoStop bool) error {
	s.setState(StateListening)
	return nil
}

func (s *Stub) Stop(ctx context.Context) error {
	s.setState(StateStopped)
	return nil
}

func (s *Stub) Cancel(ctx context.Context) error {
	s.setState(StateStopped)
	return nil
}

func (s *Stub) Partials() <-chan string { return s.partials }
func (s *Stub) Finals() <-chan string   { return s.finals }
func (s *Stub) States() <-chan State    { return s.states }

// Emit injects a final recognition result.
func (s *Stub) Emit(text string) {
	s.finals <- text
}

// EmitPartial injects a partial recognition result.
func (s *Stub) EmitPartial(text string) {
	s.partials <- text
}

func (s *Stub) setState(st State) {
	select {
	case s.states <- st:
	default:
	}
}

var _ Recognizer = (*Stub)(nil)
