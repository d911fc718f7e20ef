// Package llm is a client for an OpenAI-compatible chat completions
// endpoint serving the fine-tuned sales model.
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

const (
	temperature = 0.7
	topP        = 0.8
)

type Client struct {
	HTTPClient *http.Client

	// Endpoint is the API base URL, e.g. http://127.0.0.1:23333/v1.
	// The client appends the operation path itself.
	Endpoint string
	APIKey   string
	Model    string
}

func NewClient(endpoint, apiKey, model string) *Client {
	return &Client{
		// No overall timeout: streamed generations can legitimately run long.
		HTTPClient: &http.Client{Timeout: 0},
		Endpoint:   strings.TrimRight(endpoint, "/"),
		APIKey:     apiKey,
		Model:      model,
	}
}

// StreamChat sends the assembled turn context and returns a channel of
// response fragments in arrival order. The channel closes after the end
// of stream; a mid-stream failure is delivered as the last fragment with
// Error set. The stream is not restartable.
func (c *Client) StreamChat(ctx context.Context, messages []Message) (<-chan Fragment, error) {
	if len(messages) == 0 {
		return nil, errors.New("llm: empty message context")
	}

	reqBody, err := json.Marshal(chatRequest{
		Model:       c.Model,
		Messages:    messages,
		Stream:      true,
		Temperature: temperature,
		TopP:        topP,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("llm status=%d body=%s", resp.StatusCode, string(b))
	}

	fragmentCh := make(chan Fragment, 64)

	go func() {
		defer close(fragmentCh)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}

			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				return
			}

			var chunk chatStreamResponse
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				fragmentCh <- Fragment{Error: fmt.Errorf("llm stream decode: %w", err)}
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if text := chunk.Choices[0].Delta.Content; text != "" {
				fragmentCh <- Fragment{Text: text}
			}
		}

		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			fragmentCh <- Fragment{Error: fmt.Errorf("llm stream interrupted: %w", err)}
		}
	}()

	return fragmentCh, nil
}

// Healthy pings the endpoint so startup can log a dead backend early.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+"/models", nil)
	if err != nil {
		return false
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
