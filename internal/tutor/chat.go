package tutor

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ChatClient generates the final tutoring answer from an assembled prompt.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Stream(ctx context.Context, system, user string, fn func(token string) error) error
}

// OpenAIChat implements ChatClient against any OpenAI-compatible endpoint;
// the vendor and model are deployment parameters.
type OpenAIChat struct {
	client openai.Client
	model  string
}

// NewOpenAIChat creates a chat client. baseURL may be empty for the vendor
// default.
func NewOpenAIChat(baseURL, apiKey, model string, timeout time.Duration) *OpenAIChat {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	return &OpenAIChat{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (c *OpenAIChat) params(system, user string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}
}

// Complete returns the full answer in one call.
func (c *OpenAIChat) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(system, user))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream yields the answer token by token. Malformed stream chunks are
// skipped by the underlying SSE decoder rather than aborting the stream.
func (c *OpenAIChat) Stream(ctx context.Context, system, user string, fn func(token string) error) error {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(system, user))
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := fn(delta); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("chat stream: %w", err)
	}
	return nil
}
