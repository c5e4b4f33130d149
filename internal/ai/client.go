package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"smart-scheduler/internal/scheduler"
)

// Summarizer turns a run's suggestions into a short plain-language plan.
type Summarizer interface {
	Summarize(ctx context.Context, suggestions []scheduler.Suggestion) (string, error)
}

var ErrDisabled = errors.New("summarizer disabled")

const defaultBaseURL = "https://api.openai.com/v1"

type OpenAIClient struct {
	APIKey  string
	Model   string
	BaseURL string

	HTTP    *http.Client
	limiter *rate.Limiter
}

// New returns a chat-completions client that sends at most ratePerSec
// requests per second.
func New(apiKey, model, baseURL string, ratePerSec int) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &OpenAIClient{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *OpenAIClient) Summarize(ctx context.Context, suggestions []scheduler.Suggestion) (string, error) {
	if c == nil || c.APIKey == "" {
		return "", ErrDisabled
	}
	if len(suggestions) == 0 {
		return "Nothing to schedule.", nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: summarySystemPrompt},
			{Role: "user", Content: BuildSchedulePrompt(suggestions)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("ai: status %d: decode: %w", res.StatusCode, err)
	}
	if res.StatusCode/100 != 2 {
		msg := http.StatusText(res.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("ai: status %d: %s", res.StatusCode, msg)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("ai: assistant did not return text")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
