package responder

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const systemPrompt = "You are the cartlane shop assistant. Answer customer " +
	"questions about orders, products, shipping, and returns concisely and " +
	"politely. If a question needs a human (refunds, complaints, account " +
	"changes), say a staff member will follow up in this chat."

// OpenAI implements Responder using the OpenAI chat-completions API.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI constructs a responder that talks to the OpenAI API.
func NewOpenAI(apiKey, model string) (*OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("assistant responder requires an API key")
	}
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAI{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// Reply generates one assistant reply for the given customer message.
func (o *OpenAI) Reply(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("assistant completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("assistant returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
