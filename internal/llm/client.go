// Package llm is a client for OpenAI-compatible chat completion services,
// with streaming support and transient-failure classification.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Finish reasons reported by the service.
const (
	FinishStop   = "stop"
	FinishLength = "length"
)

// Message is one role-tagged chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the conversation state for one logical exchange: a model, a
// system prompt, and optional history. It is a value created per exchange
// and passed into each call, so concurrent tasks never share chat state.
type Session struct {
	Model   string
	System  string
	History []Message
}

func (s Session) messages(prompt string) []Message {
	msgs := make([]Message, 0, len(s.History)+2)
	if s.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: s.System})
	}
	msgs = append(msgs, s.History...)
	msgs = append(msgs, Message{Role: "user", Content: prompt})
	return msgs
}

// Options are per-call sampling settings.
type Options struct {
	Temperature float64
	MaxTokens   int
	JSONMode    bool // Ask for structured (machine-parseable) output.
}

// Client calls a chat completion API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	// Stats aggregates call latencies for the operator API.
	Stats *CallStats
}

// NewClient builds a client for the given API base URL (the segment before
// /chat/completions).
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
		},
		Stats: NewCallStats(time.Hour),
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Stream         bool            `json:"stream"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StreamComplete issues one streaming completion request and accumulates
// the incremental fragments. It returns the full content and the terminal
// finish reason.
func (c *Client) StreamComplete(ctx context.Context, s Session, prompt string, opts Options) (string, string, error) {
	start := time.Now()
	defer func() { c.Stats.Record(time.Since(start).Milliseconds()) }()

	resp, err := c.post(ctx, s, prompt, opts, true)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	var content strings.Builder
	finish := ""
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return "", "", fmt.Errorf("decode stream chunk: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		content.WriteString(chunk.Choices[0].Delta.Content)
		if fr := chunk.Choices[0].FinishReason; fr != nil && *fr != "" {
			finish = *fr
		}
	}
	if err := scanner.Err(); err != nil {
		return "", "", fmt.Errorf("read stream: %w", err)
	}
	return content.String(), finish, nil
}

// Complete issues one non-streaming completion request.
func (c *Client) Complete(ctx context.Context, s Session, prompt string, opts Options) (string, string, error) {
	start := time.Now()
	defer func() { c.Stats.Record(time.Since(start).Milliseconds()) }()

	resp, err := c.post(ctx, s, prompt, opts, false)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", "", fmt.Errorf("read response: %w", err)
	}
	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", "", fmt.Errorf("decode response: %w", err)
	}
	if cr.Error != nil {
		return "", "", fmt.Errorf("completion error: %s: %s", cr.Error.Type, cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return "", "", errors.New("empty response from completion service")
	}
	return cr.Choices[0].Message.Content, cr.Choices[0].FinishReason, nil
}

func (c *Client) post(ctx context.Context, s Session, prompt string, opts Options, stream bool) (*http.Response, error) {
	reqBody := chatRequest{
		Model:       s.Model,
		Messages:    s.messages(prompt),
		Stream:      stream,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSONMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion api: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, &RetryableError{StatusCode: resp.StatusCode, Message: string(msg)}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, fmt.Errorf("completion api status %d: %s", resp.StatusCode, truncate(string(msg), 200))
	}
	return resp, nil
}

// Close releases resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// RetryableError indicates a transient service failure (rate limiting or a
// server-side error) that the rate-controlled executor should back off on.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable checks whether an error is worth a growing backoff.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
