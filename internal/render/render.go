// Package render formats plain-mode terminal output.
package render

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/joss/aiko/internal/domain"
)

// Renderer handles output formatting. With pretty off, output is stable
// plain text suitable for pipes and logs.
type Renderer struct {
	pretty bool
}

// New creates a new renderer.
func New(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// Sessions formats a session list, newest first.
func (r *Renderer) Sessions(sessions []*domain.Session, activeID string) string {
	if len(sessions) == 0 {
		return "No sessions yet"
	}

	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString("Sessions\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}

	for _, s := range sessions {
		marker := " "
		if s.ID == activeID {
			marker = "*"
			if r.pretty {
				marker = color.GreenString("*")
			}
		}
		state := ""
		if s.Archived {
			state = " (archived)"
		}
		timeStr := s.UpdatedAt.Format("2006-01-02 15:04")
		if r.pretty {
			fmt.Fprintf(&sb, "%s %s %s %s%s\n", marker, color.HiBlackString(timeStr), s.ID, s.Title, state)
		} else {
			fmt.Fprintf(&sb, "%s [%s] %s %s%s\n", marker, timeStr, s.ID, s.Title, state)
		}
	}
	return sb.String()
}

// Memories formats ranked memory items from a search.
func (r *Renderer) Memories(items []domain.MemoryItem) string {
	if len(items) == 0 {
		return "No matching memories"
	}

	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString("Memories\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}

	for _, item := range items {
		score := fmt.Sprintf("%.2f", item.Weight)
		tag := item.Tag
		if item.Emotion != "" {
			tag += "/" + item.Emotion
		}
		if r.pretty {
			fmt.Fprintf(&sb, "%s %s %s\n", color.GreenString(score), color.HiBlackString(tag), item.Text)
		} else {
			fmt.Fprintf(&sb, "[%s] (%s) %s\n", score, tag, item.Text)
		}
	}
	return sb.String()
}

// MemoryStats formats store counters.
func (r *Renderer) MemoryStats(count int, fastEnabled bool, lastFailure error) string {
	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString("Memory store\n"))
	}
	fmt.Fprintf(&sb, "entries: %d\n", count)
	fmt.Fprintf(&sb, "fast path: %v\n", fastEnabled)
	if lastFailure != nil {
		if r.pretty {
			fmt.Fprintf(&sb, "last failure: %s\n", color.RedString(lastFailure.Error()))
		} else {
			fmt.Fprintf(&sb, "last failure: %s\n", lastFailure.Error())
		}
	}
	return sb.String()
}

// Transcript formats recent chat messages for plain mode.
func (r *Renderer) Transcript(msgs []*domain.ChatMessage, aiName string) string {
	var sb strings.Builder
	for _, msg := range msgs {
		speaker := "你"
		if msg.Role == domain.RoleAssistant {
			speaker = aiName
		} else if msg.Role == domain.RoleSystem {
			continue
		}
		if r.pretty && msg.Role == domain.RoleAssistant {
			fmt.Fprintf(&sb, "%s %s\n", color.MagentaString(speaker+"："), msg.Text)
		} else {
			fmt.Fprintf(&sb, "%s：%s\n", speaker, msg.Text)
		}
	}
	return sb.String()
}

// Warning formats a degradation warning line.
func (r *Renderer) Warning(msg string) string {
	if r.pretty {
		return color.YellowString("⚠ " + msg)
	}
	return "! " + msg
}

// Reply formats one assistant reply with its emotion annotation.
func (r *Renderer) Reply(aiName, text, emotion string) string {
	if r.pretty {
		line := color.MagentaString(aiName+"：") + text
		if emotion != "" {
			line += color.HiBlackString(" (" + emotion + ")")
		}
		return line
	}
	return aiName + "：" + text
}
