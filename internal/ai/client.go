package ai

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// Message is one turn of a conversation as sent to the completion API.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client wraps the OpenAI SDK for chat completion and image generation.
type Client struct {
	api *openai.Client
}

// NewClient builds a client for the given key. baseURL overrides the
// API endpoint for OpenAI-compatible proxies; empty keeps the default.
func NewClient(apiKey, baseURL string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{api: openai.NewClientWithConfig(cfg)}
}

// Complete sends the full history to the chat-completion endpoint and
// returns the top choice's content. Provider errors come back as errors;
// the caller decides what the user sees.
func (c *Client) Complete(ctx context.Context, model string, history []Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "AI response is empty", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateImage asks DALL-E 3 for a single 1024x1024 image and returns
// its URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateImage(ctx, openai.ImageRequest{
		Model:   openai.CreateImageModelDallE3,
		Prompt:  prompt,
		Size:    openai.CreateImageSize1024x1024,
		Quality: openai.CreateImageQualityStandard,
		N:       1,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Data) == 0 {
		return "", errors.New("image response is empty")
	}
	return resp.Data[0].URL, nil
}
