// Package provider implements llm.Gateway backends.
package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/joss/aiko/pkg/llm"
)

const openaiAPIURL = "https://api.openai.com/v1/chat/completions"

// OpenAI streams chat completions from the OpenAI API or any
// OpenAI-compatible endpoint. Route selection picks between a text
// model and a vision model.
type OpenAI struct {
	apiKey      string
	baseURL     string
	model       string
	visionModel string
	client      HTTPClient
}

func NewOpenAI(apiKey, baseURLOverride, model, visionModel string) *OpenAI {
	return NewOpenAIWithClient(apiKey, baseURLOverride, model, visionModel, &http.Client{})
}

func NewOpenAIWithClient(apiKey, baseURLOverride, model, visionModel string, client HTTPClient) *OpenAI {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	baseURL := baseURLOverride
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if baseURL == "" {
		baseURL = openaiAPIURL
	} else {
		// Normalize: remove trailing slash
		if baseURL[len(baseURL)-1] == '/' {
			baseURL = baseURL[:len(baseURL)-1]
		}
		// Ensure it ends with /v1/chat/completions
		if !strings.HasSuffix(baseURL, "/chat/completions") {
			if strings.HasSuffix(baseURL, "/v1") {
				baseURL = baseURL + "/chat/completions"
			} else {
				baseURL = baseURL + "/v1/chat/completions"
			}
		}
	}
	if visionModel == "" {
		visionModel = model
	}
	return &OpenAI{
		apiKey:      apiKey,
		baseURL:     baseURL,
		model:       model,
		visionModel: visionModel,
		client:      client,
	}
}

func (o *OpenAI) ID() string { return "openai" }

type openaiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content,omitempty"`
}

type openaiContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openaiImageURL `json:"image_url,omitempty"`
}

type openaiImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"` // "auto", "low", "high"
}

func (o *OpenAI) StreamChat(ctx context.Context, req *llm.ChatRequest) (<-chan llm.Chunk, error) {
	msgs := make([]openaiMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msg := openaiMessage{Role: string(m.Role)}
		var contentParts []openaiContentPart
		hasImage := false

		for _, p := range m.Parts {
			switch part := p.(type) {
			case llm.TextPart:
				contentParts = append(contentParts, openaiContentPart{
					Type: "text",
					Text: part.Text,
				})
			case llm.ImagePart:
				hasImage = true
				detail := part.Detail
				if detail == "" {
					detail = "auto"
				}
				contentParts = append(contentParts, openaiContentPart{
					Type: "image_url",
					ImageURL: &openaiImageURL{
						URL:    part.DataURL,
						Detail: detail,
					},
				})
			}
		}

		// Use array format when there are images, string when just text
		if hasImage || len(contentParts) > 1 {
			msg.Content = contentParts
		} else if len(contentParts) == 1 {
			msg.Content = contentParts[0].Text
		}

		if msg.Content != nil {
			msgs = append(msgs, msg)
		}
	}

	model := o.model
	if req.Route == llm.RouteVision {
		model = o.visionModel
	}

	reqBody := map[string]interface{}{
		"model":    model,
		"messages": msgs,
		"stream":   true,
	}

	if req.MaxTokens > 0 {
		// Newer O1/GPT-5 models require max_completion_tokens
		if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "gpt-5") {
			reqBody["max_completion_tokens"] = req.MaxTokens
		} else {
			reqBody["max_tokens"] = req.MaxTokens
		}
	}

	if req.Temperature > 0 {
		reqBody["temperature"] = req.Temperature
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("OpenAI API error %d: %s", resp.StatusCode, string(body))
	}

	chunks := make(chan llm.Chunk, 100)
	go o.streamResponse(resp.Body, chunks)
	return chunks, nil
}

type openaiStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// streamResponse reads SSE lines and emits the accumulated text so far
// with every chunk.
func (o *OpenAI) streamResponse(body io.ReadCloser, chunks chan<- llm.Chunk) {
	defer close(chunks)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var accumulated strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		if len(line) > 6 && line[:6] == "data: " {
			data := line[6:]
			if data == "[DONE]" {
				chunks <- llm.Chunk{Text: accumulated.String(), Done: true}
				return
			}

			var chunk openaiStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}

			if chunk.Error != nil {
				chunks <- llm.Chunk{Text: accumulated.String(), Err: fmt.Errorf("stream error: %s", chunk.Error.Message)}
				return
			}

			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					accumulated.WriteString(choice.Delta.Content)
					chunks <- llm.Chunk{Text: accumulated.String()}
				}

				if choice.FinishReason == "stop" {
					chunks <- llm.Chunk{Text: accumulated.String(), Done: true}
					return
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		chunks <- llm.Chunk{Text: accumulated.String(), Err: fmt.Errorf("read stream: %w", err)}
		return
	}
	chunks <- llm.Chunk{Text: accumulated.String(), Done: true}
}

var _ llm.Gateway = (*OpenAI)(nil)
