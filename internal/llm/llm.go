// Package llm talks to an OpenAI-compatible text-generation backend and
// turns its unreliable free-text output into structured questions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultTimeout bounds a single generation call. Local models can take
// minutes on a long prompt, but an unresponsive backend should not hang a
// request forever.
const DefaultTimeout = 2 * time.Minute

// GenerationError reports a non-success status from the backend.
type GenerationError struct {
	Status int
	Body   string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation backend returned status %d: %s", e.Status, e.Body)
}

// TransportError reports a failure to reach the backend at all.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("generation backend unreachable: %v", e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// Client wraps an OpenAI-compatible API client. It never retries: retry
// policy belongs to the caller.
type Client struct {
	api *openai.Client
}

// New creates an LLM client for the given endpoint. A zero timeout selects
// DefaultTimeout.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	config.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{api: openai.NewClientWithConfig(config)}
}

// Ping verifies the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// Generate sends the prompt in a single-shot completion call and returns
// the raw model output.
func (c *Client) Generate(ctx context.Context, modelID, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: modelID,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &GenerationError{Status: http.StatusOK, Body: "no choices in response"}
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream sends the prompt in streaming mode and concatenates the
// content fragments in arrival order. The transport guarantees fragment
// order; nothing is reordered here.
func (c *Client) GenerateStream(ctx context.Context, modelID, prompt string) (string, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: modelID,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: true,
	})
	if err != nil {
		return "", classify(err)
	}
	defer stream.Close()

	var out []byte
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", classify(err)
		}
		if len(chunk.Choices) > 0 {
			out = append(out, chunk.Choices[0].Delta.Content...)
		}
	}
	slog.Debug("streamed generation complete", "model", modelID, "bytes", len(out))
	return string(out), nil
}

// classify maps client errors onto the two failure kinds callers care
// about: the backend answered with an error, or it could not be reached.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		body := apiErr.Message
		if body == "" {
			if code, ok := apiErr.Code.(string); ok {
				body = code
			}
		}
		return &GenerationError{Status: apiErr.HTTPStatusCode, Body: body}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &GenerationError{Status: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return &TransportError{Cause: err}
}
