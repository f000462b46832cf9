package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when OpenAI.Model is empty.
const DefaultOpenAIModel = openai.GPT4oMini

// OpenAI talks to any OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	BaseURL string
	Model   string
}

func (o OpenAI) client(apiKey string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if o.BaseURL != "" {
		config.BaseURL = o.BaseURL
	}
	return openai.NewClientWithConfig(config)
}

func (o OpenAI) Complete(ctx context.Context, apiKey string, req Request) (string, error) {
	model := o.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(req.Images) == 0 {
		msg.Content = req.Prompt
	} else {
		msg.MultiContent = []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: req.Prompt}}
		for _, img := range req.Images {
			msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: img.DataURL()},
			})
		}
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    []openai.ChatCompletionMessage{msg},
		Temperature: float32(req.Temperature),
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := o.client(apiKey).CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
