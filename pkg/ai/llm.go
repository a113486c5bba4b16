// Package ai is a minimal client for OpenAI-compatible chat completion
// APIs (Groq by default) used for transcript masking and analysis.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Auremas/voxanalyze-mvp/pkg/config"
)

// Sentinel errors the caller can branch on when deciding whether to try
// the next candidate model.
var (
	ErrQuotaExceeded = errors.New("ai: quota exceeded")
	ErrOverloaded    = errors.New("ai: service overloaded")
	ErrEmptyResponse = errors.New("ai: empty response")
)

// Client talks to an OpenAI-compatible chat completion endpoint
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient creates the client using values from the provided config.
// Pass a nil config to fall back to environment variables.
func NewClient(cfg *config.AIConfig) *Client {
	var apiKey string
	timeout := 90 * time.Second
	if cfg != nil {
		apiKey = cfg.APIKey
		if cfg.Timeout > 0 {
			timeout = cfg.Timeout
		}
	}
	if apiKey == "" {
		apiKey = os.Getenv("AI_API_KEY")
	}

	var base string
	if cfg != nil && cfg.BaseURL != "" {
		base = cfg.BaseURL
	} else {
		base = os.Getenv("AI_BASE_URL")
		if base == "" {
			base = "https://api.groq.com"
		}
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(base, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// ChatRequest is the shape for chat completion requests
type ChatRequest struct {
	Model       string      `json:"model,omitempty"`
	Messages    interface{} `json:"messages,omitempty"`
	Temperature float64     `json:"temperature,omitempty"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
}

// GenerateText sends a single-turn prompt to the given model and
// returns the assistant text.
func (c *Client) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	reqBody := ChatRequest{
		Model:       model,
		Messages:    []map[string]string{{"role": "user", "content": prompt}},
		Temperature: 0.2,
		MaxTokens:   8000,
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	endpoint := c.baseURL + "/openai/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: model %s", ErrQuotaExceeded, model)
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == 529:
		return "", fmt.Errorf("%w: model %s", ErrOverloaded, model)
	case resp.StatusCode >= 400:
		return "", fmt.Errorf("ai: %s returned status %d: %s", model, resp.StatusCode, truncate(string(body), 200))
	}

	text, err := extractText(body)
	if err != nil {
		return "", err
	}
	return text, nil
}

// extractText pulls the assistant text out of the provider response.
// Providers differ in response shape, so the known shapes are tried in
// order until one yields text.
func extractText(body []byte) (string, error) {
	var chat struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &chat); err == nil && len(chat.Choices) > 0 {
		if content := strings.TrimSpace(chat.Choices[0].Message.Content); content != "" {
			return content, nil
		}
	}

	var gemini struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &gemini); err == nil && len(gemini.Candidates) > 0 {
		var sb strings.Builder
		for _, part := range gemini.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
		if content := strings.TrimSpace(sb.String()); content != "" {
			return content, nil
		}
	}

	var flat struct {
		Text       string `json:"text"`
		OutputText string `json:"output_text"`
	}
	if err := json.Unmarshal(body, &flat); err == nil {
		if content := strings.TrimSpace(flat.Text); content != "" {
			return content, nil
		}
		if content := strings.TrimSpace(flat.OutputText); content != "" {
			return content, nil
		}
	}

	return "", ErrEmptyResponse
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
