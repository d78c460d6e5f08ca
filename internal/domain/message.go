package domain

import (
	"time"
)

// ChatMessage is one persisted message in a session timeline.
type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionID"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`              // display text, control tags stripped
	Raw       string    `json:"raw,omitempty"`     // untouched model output, kept for re-parsing
	ImageRef  string    `json:"imageRef,omitempty"`
	VideoRef  string    `json:"videoRef,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)
