package adjust

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "anthropic/claude-sonnet-4"

	defaultTimeout = 120 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is an OpenAI-compatible, non-streaming chat completion request.
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// ChatCompleter returns the assistant reply for a chat request.
type ChatCompleter interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// Client talks to an OpenRouter-compatible chat completions endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a client. An empty baseURL selects OpenRouter.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		backoff:    initialBackoff,
	}
}

// Complete sends req and returns the content of the first choice. HTTP 429
// responses are retried with exponential backoff.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := range maxRetries {
		reply, err := c.doChat(ctx, body)
		if err == nil {
			return reply, nil
		}

		var rl *rateLimitError
		if !errors.As(err, &rl) {
			return "", err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(c.backoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return "", fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

type rateLimitError struct {
	status int
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.status)
}

func (c *Client) doChat(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &rateLimitError{status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", "https://github.com/kalambet/cvextract")
	req.Header.Set("X-Title", "cvextract")
}
