package memory

import (
	"context"
	"sync"
	"time"

	"github.com/joss/aiko/internal/config"
	"github.com/joss/aiko/internal/domain"
	"github.com/joss/aiko/internal/logging"
)

// DegradedWarning is the single non-blocking line surfaced to the user when
// retrieval is degraded. Suppressed during a session's first turns.
const DegradedWarning = "记忆服务暂时不可用，这轮对话不会用到长期记忆。"

// Coordinator produces a best-effort memory context block. It never fails
// its caller: fast path, then full path, then degrade to empty.
type Coordinator struct {
	svc    Service
	cfg    config.Memory
	logger *logging.Logger

	mu          sync.Mutex
	lastFailure error
	warned      bool
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(svc Service, cfg config.Memory, logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.New("memory")
	}
	return &Coordinator{svc: svc, cfg: cfg, logger: logger}
}

// ComputeExcludeWindow returns the timestamp of the oldest message among the
// last 2*excludeRounds history entries, or false if history is shorter or
// the window is disabled. Recently said things are already in the prompt's
// history section; retrieving them again would double-count them.
func ComputeExcludeWindow(history []*domain.ChatMessage, excludeRounds int) (time.Time, bool) {
	if excludeRounds <= 0 || len(history) == 0 {
		return time.Time{}, false
	}

	n := 2 * excludeRounds
	if n > len(history) {
		n = len(history)
	}

	oldest := history[len(history)-n].Timestamp
	for _, msg := range history[len(history)-n:] {
		if msg.Timestamp.Before(oldest) {
			oldest = msg.Timestamp
		}
	}
	return oldest, true
}

// Retrieve returns the memory context block for a query, plus a one-line
// warning when retrieval degraded ("" when there is nothing to surface).
// turn is the 1-based turn number within the session; early turns never warn
// since a fresh session has no memory worth alarming the user about.
func (c *Coordinator) Retrieve(ctx context.Context, query, sessionID string, history []*domain.ChatMessage, turn int) (string, string) {
	opts := c.options(history)

	if c.cfg.FastPath {
		block, err := c.svc.RetrieveFast(ctx, query, sessionID, opts)
		if err == nil {
			c.clearFailure()
			return block, ""
		}
		if err != ErrFastPathUnavailable {
			c.logger.Warn("fast_path_failed", nil, err)
		}
	}

	block, err := c.svc.RetrieveFull(ctx, query, sessionID, opts)
	if err == nil {
		c.clearFailure()
		return block, ""
	}

	c.logger.Warn("retrieval_degraded", map[string]interface{}{"turn": turn}, err)
	return "", c.recordFailure(err, turn)
}

// Save persists one memory fragment. Long-term memory is best-effort:
// failures are logged and swallowed.
func (c *Coordinator) Save(ctx context.Context, text, tag, sessionID, emotion string) {
	if text == "" {
		return
	}
	if err := c.svc.Save(ctx, text, tag, sessionID, emotion); err != nil {
		c.logger.Warn("save_failed", map[string]interface{}{"tag": tag}, err)
	}
}

// options assembles per-lookup options from configuration and history.
func (c *Coordinator) options(history []*domain.ChatMessage) Options {
	opts := Options{
		TopK:          c.cfg.TopKCandidates,
		MaxItems:      c.cfg.MaxItems,
		MinSimilarity: c.cfg.MinSimilarity,
		HalfLifeDays:  c.cfg.HalfLifeDays,
		TagPatterns:   c.allowedTags(),
	}
	if cutoff, ok := ComputeExcludeWindow(history, c.cfg.ExcludeRounds); ok {
		opts.ExcludeAfter = cutoff
	}
	return opts
}

// allowedTags selects the tag patterns for retrieval. Explicit configuration
// wins; otherwise user input plus, when enabled, the AI's own output.
func (c *Coordinator) allowedTags() []string {
	if len(c.cfg.TagPatterns) > 0 {
		return c.cfg.TagPatterns
	}
	tags := []string{domain.TagUserInput}
	if c.cfg.IncludeAIOutput {
		tags = append(tags, domain.TagAIOutput)
	}
	return tags
}

// recordFailure stores the failure reason and decides whether to surface the
// warning: once, and never during the warmup turns.
func (c *Coordinator) recordFailure(err error, turn int) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastFailure = err
	if turn <= c.cfg.WarmupTurns || c.warned {
		return ""
	}
	c.warned = true
	return DegradedWarning
}

func (c *Coordinator) clearFailure() {
	c.mu.Lock()
	c.lastFailure = nil
	c.mu.Unlock()
}

// LastFailure returns the most recent retrieval failure, nil when healthy.
func (c *Coordinator) LastFailure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFailure
}
