package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// VisionClient transcribes an image with a vision-capable model.
type VisionClient interface {
	Transcribe(ctx context.Context, mime string, image []byte) (string, error)
}

// transcribeInstruction asks for a verbatim transcription; the model must not
// summarize or comment.
const transcribeInstruction = "Transcribe all text, formulas and diagram labels " +
	"from this image verbatim. Preserve layout and structure. " +
	"Return only the transcription, no commentary."

// OpenAIVision implements VisionClient on any OpenAI-compatible chat endpoint.
type OpenAIVision struct {
	client openai.Client
	model  string
}

// NewOpenAIVision creates a vision client. baseURL may be empty to use the
// vendor default.
func NewOpenAIVision(baseURL, apiKey, model string, timeout time.Duration) *OpenAIVision {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	return &OpenAIVision{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Transcribe sends the image inline as a data URL and returns the model's
// transcription.
func (v *OpenAIVision) Transcribe(ctx context.Context, mime string, image []byte) (string, error) {
	if mime == "" {
		mime = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(image))

	resp, err := v.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(v.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
				openai.TextContentPart(transcribeInstruction),
			}),
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
