// Package avatar defines the capability interface for embodied output.
package avatar

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// State is the avatar's coarse activity state.
type State int

const (
	StateIdle State = iota
	StateListening
	StateThinking
	StateSpeaking
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateThinking:
		return "thinking"
	case StateSpeaking:
		return "speaking"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Driver is the rendering/voice surface. Implementations must tolerate
// Interrupt at any time; all methods are best-effort from the caller's
// point of view.
type Driver interface {
	// Speak queues text for voiced playback.
	Speak(ctx context.Context, text string) error

	// SpeakImmediate interrupts current playback and speaks now.
	SpeakImmediate(ctx context.Context, text string) error

	// SetEmotion switches the avatar's facial expression.
	SetEmotion(ctx context.Context, emotion string) error

	// PlayMotion triggers a body gesture once.
	PlayMotion(ctx context.Context, gesture string) error

	// Interrupt stops playback and motion.
	Interrupt(ctx context.Context) error

	// States streams state transitions until the driver closes.
	States() <-chan State
}

// Console writes avatar actions to a writer. It is the default driver
// when no embodied surface is attached.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	states chan State
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out, states: make(chan State, 16)}
}

func (c *Console) Speak(ctx context.Context, text string) error {
	c.setState(StateSpeaking)
	c.mu.Lock()
	fmt.Fprintf(c.out, "[speak] %s\n", text)
	c.mu.Unlock()
	c.setState(StateIdle)
	return nil
}

func (c *Console) SpeakImmediate(ctx context.Context, text string) error {
	return c.Speak(ctx, text)
}

func (c *Console) SetEmotion(ctx context.Context, emotion string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "[emotion] %s\n", emotion)
	return nil
}

func (c *Console) PlayMotion(ctx context.Context, gesture string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "[gesture] %s\n", gesture)
	return nil
}

func (c *Console) Interrupt(ctx context.Context) error {
	c.setState(StateIdle)
	return nil
}

func (c *Console) States() <-chan State { return c.states }

func (c *Console) setState(s State) {
	select {
	case c.states <- s:
	default:
	}
}

var _ Driver = (*Console)(nil)

// Noop discards all avatar actions.
type Noop struct{}

func (Noop) Speak(context.Context, string) error          { return nil }
func (Noop) SpeakImmediate(context.Context, string) error { return nil }
func (Noop) SetEmotion(context.Context, string) error     { return nil }
func (Noop) PlayMotion(context.Context, string) error     { return nil }
func (Noop) Interrupt(context.Context) error              { return nil }
func (Noop) States() <-chan State                         { return nil }

var _ Driver = Noop{}
