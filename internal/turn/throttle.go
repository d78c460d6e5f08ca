package turn

import (
	"time"
	"unicode/utf8"
)

const (
	throttleInterval  = 200 * time.Millisecond
	throttleMinGrowth = 3 // runes
)

// streamThrottle gates observable stream updates. An update passes when
// enough time elapsed since the last one, or the text grew by enough
// runes. The terminal update must bypass the throttle (call Flush).
type streamThrottle struct {
	interval  time.Duration
	minGrowth int

	last    time.Time
	lastLen int
	now     func() time.Time
}

func newStreamThrottle() *streamThrottle {
	return &streamThrottle{
		interval:  throttleInterval,
		minGrowth: throttleMinGrowth,
		now:       time.Now,
	}
}

// Allow reports whether text should be published now, and records the
// publication when it is.
func (t *streamThrottle) Allow(text string) bool {
	n := utf8.RuneCountInString(text)
	now := t.now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval && n-t.lastLen < t.minGrowth {
		return false
	}
	t.last = now
	t.lastLen = n
	return true
}

// Flush records a forced publication, used for the final text.
func (t *streamThrottle) Flush(text string) {
	t.last = t.now()
	t.lastLen = utf8.RuneCountInString(text)
}
