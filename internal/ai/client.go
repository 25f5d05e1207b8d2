// Package ai is the OpenAI-compatible HTTP client for the engine's two
// external capabilities: text embedding and chat completion.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sitechat/engine/internal/kb"
)

// The embedding capability enforces a hard input-size limit; text is
// capped before submission.
const MaxEmbedInputLen = 8000

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer produces text from a system instruction and a user prompt.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Service bundles both external capabilities.
type Service interface {
	Embedder
	Completer
}

type Config struct {
	APIKey        string
	EmbedEndpoint string
	EmbedModel    string
	ChatEndpoint  string
	ChatModel     string
	Timeout       time.Duration
}

// Client implements Embedder and Completer against OpenAI-compatible
// endpoints.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: t},
	}
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type EmbeddingData struct {
	Embedding []float32 `json:"embedding"`
}

type EmbeddingResponse struct {
	Data []EmbeddingData `json:"data"`
}

// Embed returns the embedding vector for text. The input is
// whitespace-normalized and truncated to MaxEmbedInputLen before
// submission; empty input is an error.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	clean := NormalizeEmbedInput(text)
	if clean == "" {
		return nil, kb.ErrEmptyEmbeddingInput
	}

	body, err := c.post(ctx, c.cfg.EmbedEndpoint, embeddingRequest{
		Model: c.cfg.EmbedModel,
		Input: clean,
	})
	if err != nil {
		return nil, err
	}

	var result EmbeddingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("embedding API returned no data")
	}
	return result.Data[0].Embedding, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends a chat completion request. system may be empty, in
// which case only the user message is sent.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	var messages []chatMessage
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	body, err := c.post(ctx, c.cfg.ChatEndpoint, chatRequest{
		Model:       c.cfg.ChatModel,
		Messages:    messages,
		MaxTokens:   2000,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}

	var result ChatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("unmarshal: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("AI API %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// NormalizeEmbedInput collapses whitespace and truncates to the hard
// input-size limit on a rune boundary.
func NormalizeEmbedInput(text string) string {
	return truncateText(strings.Join(strings.Fields(text), " "), MaxEmbedInputLen)
}
