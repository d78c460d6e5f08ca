// Package notify delivers crisis alerts to out-of-band channels.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/joss/aiko/internal/logging"
)

// CrisisEvent describes a flagged user message.
type CrisisEvent struct {
	ID        string // unique per event, for dedup on the receiving side
	SessionID string
	Keyword   string
	Text      string
	Timestamp time.Time
}

// Notifier delivers a crisis event. Delivery is best-effort: the turn
// never fails because an alert could not be sent.
type Notifier interface {
	Notify(ctx context.Context, ev CrisisEvent) error
}

// Command runs a shell command template on each event, with
// {{.Keyword}} / {{.Text}} / {{.Session}} placeholders replaced.
type Command struct {
	Template string
	logger   *logging.Logger
}

func NewCommand(template string, logger *logging.Logger) *Command {
	return &Command{Template: template, logger: logger}
}

func (c *Command) Notify(ctx context.Context, ev CrisisEvent) error {
	if c.Template == "" {
		return nil
	}
	cmdStr := templateEvent(c.Template, ev)
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdStr)
	if out, err := cmd.CombinedOutput(); err != nil {
		if c.logger != nil {
			c.logger.Warn("notify command failed", map[string]any{
				"output": strings.TrimSpace(string(out)),
			}, err)
		}
		return fmt.Errorf("notify command: %w", err)
	}
	return nil
}

func templateEvent(command string, ev CrisisEvent) string {
	r := strings.NewReplacer(
		"{{.ID}}", ev.ID,
		"{{.Keyword}}", ev.Keyword,
		"{{.Text}}", ev.Text,
		"{{.Session}}", ev.SessionID,
	)
	return r.Replace(command)
}

// Slack posts events to an incoming webhook.
type Slack struct {
	WebhookURL string
}

func NewSlack(webhookURL string) *Slack {
	return &Slack{WebhookURL: webhookURL}
}

func (s *Slack) Notify(ctx context.Context, ev CrisisEvent) error {
	if s.WebhookURL == "" {
		return nil
	}
	msg := &slack.WebhookMessage{
		Text: fmt.Sprintf(":rotating_light: 陪伴对话触发危机关键词 %q (session %s)\n> %s",
			ev.Keyword, ev.SessionID, ev.Text),
	}
	if err := slack.PostWebhookContext(ctx, s.WebhookURL, msg); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}

// Multi fans an event out to every notifier, returning the first error.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev CrisisEvent) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var (
	_ Notifier = (*Command)(nil)
	_ Notifier = (*Slack)(nil)
	_ Notifier = Multi(nil)
)
