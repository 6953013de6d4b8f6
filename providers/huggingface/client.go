// Package huggingface talks to the HuggingFace inference API, whose response
// is an array of {generated_text} objects rather than the chat-completions
// shape.
package huggingface

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

const defaultBaseURL = "https://api-inference.huggingface.co"

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
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

type inferenceRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type inferenceResponse []struct {
	GeneratedText string `json:"generated_text"`
}

// Chat flattens the chat messages into a single prompt; the inference API has
// no role structure.
func (c *Client) Chat(ctx context.Context, req llm.Request) (llm.Result, error) {
	start := time.Now()

	var prompt strings.Builder
	for _, m := range req.Messages {
		if prompt.Len() > 0 {
			prompt.WriteString("\n\n")
		}
		prompt.WriteString(m.Content)
	}

	body := inferenceRequest{Inputs: prompt.String()}
	if req.MaxTokens > 0 {
		body.Parameters = map[string]any{"max_new_tokens": req.MaxTokens}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return llm.Result{}, err
	}

	url := c.BaseURL + "/models/" + strings.TrimLeft(req.Model, "/")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
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
		return llm.Result{}, &llm.HTTPError{Status: resp.StatusCode, Body: string(raw)}
	}

	var out inferenceResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return llm.Result{}, fmt.Errorf("%w: %v", llm.ErrMalformedResponse, err)
	}
	if len(out) == 0 || strings.TrimSpace(out[0].GeneratedText) == "" {
		return llm.Result{}, fmt.Errorf("%w: missing generated_text", llm.ErrMalformedResponse)
	}

	return llm.Result{
		Text:     out[0].GeneratedText,
		Duration: time.Since(start),
	}, nil
}
