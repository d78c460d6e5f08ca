package provider

import (
	"context"
	"strings"
	"sync"

	"github.com/joss/aiko/pkg/llm"
)

// Mock is a scripted gateway for tests and offline mode. Each call pops
// the next script entry; when the script is exhausted it replays the
// last entry. Requests are recorded for inspection.
type Mock struct {
	mu       sync.Mutex
	script   []MockReply
	calls    int
	requests []*llm.ChatRequest
}

// MockReply is one scripted response. Text is split into rune groups of
// ChunkSize to simulate incremental streaming; Err, when set, terminates
// the stream after any text.
type MockReply struct {
	Text      string
	ChunkSize int
	Err       error
}

func NewMock(script ...MockReply) *Mock {
	return &Mock{script: script}
}

func (m *Mock) ID() string { return "mock" }

// Requests returns copies of all recorded requests in call order.
func (m *Mock) Requests() []*llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*llm.ChatRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Mock) StreamChat(ctx context.Context, req *llm.ChatRequest) (<-chan llm.Chunk, error) {
	m.mu.Lock()
	reply := MockReply{Text: "好的。"}
	if len(m.script) > 0 {
		idx := m.calls
		if idx >= len(m.script) {
			idx = len(m.script) - 1
		}
		reply = m.script[idx]
	}
	m.calls++
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	chunkSize := reply.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 4
	}

	chunks := make(chan llm.Chunk, 100)
	go func() {
		defer close(chunks)
		runes := []rune(reply.Text)
		var sb strings.Builder
		for i := 0; i < len(runes); i += chunkSize {
			end := i + chunkSize
			if end > len(runes) {
				end = len(runes)
			}
			sb.WriteString(string(runes[i:end]))
			select {
			case chunks <- llm.Chunk{Text: sb.String()}:
			case <-ctx.Done():
				chunks <- llm.Chunk{Text: sb.String(), Err: ctx.Err()}
				return
			}
		}
		if reply.Err != nil {
			chunks <- llm.Chunk{Text: sb.String(), Err: reply.Err}
			return
		}
		chunks <- llm.Chunk{Text: sb.String(), Done: true}
	}()
	return chunks, nil
}

var _ llm.Gateway = (*Mock)(nil)
