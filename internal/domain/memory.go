package domain

import "time"

// Memory tags: every stored fragment carries one.
const (
	TagUserInput = "user_input"
	TagAIOutput  = "ai_output"
)

// MemoryItem is one retrieved conversation fragment. The core only consumes
// ranked lists of these; the memory service owns their lifecycle.
type MemoryItem struct {
	Text       string    `json:"text"`
	Tag        string    `json:"tag"`
	Similarity float64   `json:"similarity"`
	Weight     float64   `json:"weight"` // similarity decayed by age
	Emotion    string    `json:"emotion,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
