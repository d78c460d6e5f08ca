// Package logging provides structured JSON logging for aiko components.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event represents a structured log event
type Event struct {
	Timestamp string                 `json:"ts"`
	Level     Level                  `json:"level"`
	Component string                 `json:"component"`
	Event     string                 `json:"event"`
	Session   string                 `json:"session,omitempty"`
	Request   int64                  `json:"request,omitempty"`
	Duration  int64                  `json:"duration_ms,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// Logger provides structured logging
type Logger struct {
	component string
	session   string
	request   int64
	out       io.Writer
	mu        *sync.Mutex
}

// New creates a new logger for a component
func New(component string) *Logger {
	return &Logger{
		component: component,
		out:       os.Stderr,
		mu:        &sync.Mutex{},
	}
}

// NewWriter creates a logger writing to w. Used by tests.
func NewWriter(component string, w io.Writer) *Logger {
	return &Logger{component: component, out: w, mu: &sync.Mutex{}}
}

// WithSession sets the session context
func (l *Logger) WithSession(sessionID string) *Logger {
	c := *l
	c.session = sessionID
	return &c
}

// WithRequest sets the turn request context
func (l *Logger) WithRequest(requestID int64) *Logger {
	c := *l
	c.request = requestID
	return &c
}

func (l *Logger) log(level Level, event string, duration int64, extra map[string]interface{}, err error) {
	e := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Component: l.component,
		Event:     event,
		Session:   l.session,
		Request:   l.request,
		Duration:  duration,
		Extra:     extra,
	}

	if err != nil {
		e.Error = err.Error()
	}

	data, _ := json.Marshal(e)
	l.mu.Lock()
	fmt.Fprintln(l.out, string(data))
	l.mu.Unlock()
}

// Debug logs a debug event
func (l *Logger) Debug(event string, extra map[string]interface{}) {
	l.log(LevelDebug, event, 0, extra, nil)
}

// Info logs an info event
func (l *Logger) Info(event string, extra map[string]interface{}) {
	l.log(LevelInfo, event, 0, extra, nil)
}

// Warn logs a warning event
func (l *Logger) Warn(event string, extra map[string]interface{}, err error) {
	l.log(LevelWarn, event, 0, extra, err)
}

// Error logs an error event
func (l *Logger) Error(event string, extra map[string]interface{}, err error) {
	l.log(LevelError, event, 0, extra, err)
}

// Timed logs an info event with a duration measured from start.
func (l *Logger) Timed(event string, start time.Time, extra map[string]interface{}) {
	l.log(LevelInfo, event, time.Since(start).Milliseconds(), extra, nil)
}
