// Package persona loads the character configuration that shapes the system
// prompt: identity, relationship framing, and tone.
package persona

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Persona describes the AI character. Warmth affects tone only, never
// identity or safety boundaries; the prompt builder states that explicitly.
type Persona struct {
	Name         string `yaml:"name"`
	Identity     string `yaml:"identity"`     // who the character is
	Relationship string `yaml:"relationship"` // framing toward the user
	Style        string `yaml:"style"`        // speaking style notes
	Greeting     string `yaml:"greeting"`
	UserGender   string `yaml:"userGender"`
	AIGender     string `yaml:"aiGender"`
	Warmth       int    `yaml:"warmth"` // 0-100
}

// Default returns the built-in persona used when no file is configured.
func Default() *Persona {
	return &Persona{
		Name:         "Aiko",
		Identity:     "A warm, attentive companion who remembers the little things.",
		Relationship: "A close friend the user talks to every day.",
		Style:        "Casual, affectionate, concise. Mirrors the user's language.",
		Greeting:     "你回来啦！今天过得怎么样？",
		UserGender:   "unspecified",
		AIGender:     "female",
		Warmth:       60,
	}
}

// Load reads a persona document from a YAML file. Missing fields fall back
// to the defaults.
func Load(path string) (*Persona, error) {
	p := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse persona: %w", err)
	}
	if p.Warmth < 0 {
		p.Warmth = 0
	}
	if p.Warmth > 100 {
		p.Warmth = 100
	}
	return p, nil
}
