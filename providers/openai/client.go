// Package openai talks to any OpenAI-compatible chat-completions endpoint.
// Groq, OpenRouter and DeepSeek all speak this shape.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/level5vta-creator/ejdevassistant-bot/llm"
)

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *Client) Chat(ctx context.Context, req llm.Request) (llm.Result, error) {
	start := time.Now()

	body := chatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return llm.Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/chat/completions", bytes.NewReader(b))
	if err != nil {
		return llm.Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return llm.Result{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Result{}, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var out chatCompletionResponse
		if json.Unmarshal(raw, &out) == nil && out.Error != nil && out.Error.Message != "" {
			return llm.Result{}, &llm.HTTPError{Status: resp.StatusCode, Body: out.Error.Message}
		}
		return llm.Result{}, &llm.HTTPError{Status: resp.StatusCode, Body: string(raw)}
	}

	var out chatCompletionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return llm.Result{}, fmt.Errorf("%w: %v", llm.ErrMalformedResponse, err)
	}
	if len(out.Choices) == 0 {
		return llm.Result{}, fmt.Errorf("%w: empty choices", llm.ErrMalformedResponse)
	}
	text := out.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return llm.Result{}, fmt.Errorf("%w: empty message content", llm.ErrMalformedResponse)
	}

	return llm.Result{
		Text: text,
		Usage: llm.Usage{
			InputTokens:  out.Usage.PromptTokens,
			OutputTokens: out.Usage.CompletionTokens,
			TotalTokens:  out.Usage.TotalTokens,
		},
		Duration: time.Since(start),
	}, nil
}
