package llm

import (
	"context"

	"github.com/joss/aiko/internal/domain"
)

// Route selects which model family handles a request.
type Route int

const (
	RouteText   Route = iota // text-only model
	RouteVision              // vision-capable model, required when image parts are present
)

// Message is one prompt message sent to the model. Parts allow mixed
// text/image content for vision routes; plain turns carry a single TextPart.
type Message struct {
	Role  domain.Role
	Parts []Part
}

// Part is a piece of prompt content.
type Part interface {
	PartType() string
}

type TextPart struct {
	Text string
}

func (p TextPart) PartType() string { return "text" }

type ImagePart struct {
	DataURL   string // data:<media type>;base64,<payload>
	MediaType string
	Detail    string // "auto", "low", "high"
}

func (p ImagePart) PartType() string { return "image" }

// Text builds a single-part text message.
func Text(role domain.Role, text string) Message {
	return Message{Role: role, Parts: []Part{TextPart{Text: text}}}
}

// ChatRequest is a streaming chat completion request.
type ChatRequest struct {
	Messages    []Message
	Route       Route
	MaxTokens   int
	Temperature float64
}

// Chunk is one element of the response stream. Text is the full accumulated
// text so far, not a delta. Err is terminal: no further chunks follow it.
type Chunk struct {
	Text string
	Done bool
	Err  error
}

// Gateway is the interface all chat-completion backends implement.
type Gateway interface {
	ID() string

	// StreamChat sends messages and returns an incremental response stream.
	// The channel is closed when generation completes or fails.
	StreamChat(ctx context.Context, req *ChatRequest) (<-chan Chunk, error)
}

// Registry holds available gateways keyed by ID.
type Registry struct {
	gateways map[string]Gateway
}

func NewRegistry() *Registry {
	return &Registry{gateways: make(map[string]Gateway)}
}

func (r *Registry) Register(g Gateway) {
	r.gateways[g.ID()] = g
}

func (r *Registry) Get(id string) (Gateway, bool) {
	g, ok := r.gateways[id]
	return g, ok
}

func (r *Registry) List() []Gateway {
	result := make([]Gateway, 0, len(r.gateways))
	for _, g := range r.gateways {
		result = append(result, g)
	}
	return result
}
