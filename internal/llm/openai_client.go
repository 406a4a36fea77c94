package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nbenliogludev/go-chat-agent-tester/internal/config"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var errEmptyResponse = errors.New("no response generated")

const pingMaxTokens = 10

// placeholderKeys are the sample values shipped in .env templates.
var placeholderKeys = map[string]struct{}{
	"your-api-key-here":        {},
	"your-openai-api-key-here": {},
}

type OpenAIClient struct {
	client *openai.Client
	logger *zap.Logger

	apiKey              string
	model               string
	timeout             time.Duration
	messageMaxTokens    int
	messageTemperature  float32
	classifyMaxTokens   int
	classifyTemperature float32

	maxTurns          int
	fallbackTurnCap   int
	fallbackResponses []string

	onFallback func(call string)
}

// NewOpenAIClient builds a client from the llm and conversation sections.
// A missing key is not an error: HasCredential reports it and callers switch
// to the canned conversation policy.
func NewOpenAIClient(cfg config.LLMConfig, conv config.ConversationConfig, logger *zap.Logger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:              openai.NewClientWithConfig(oc),
		logger:              logger.Named("llm"),
		apiKey:              cfg.APIKey,
		model:               cfg.Model,
		timeout:             cfg.Timeout,
		messageMaxTokens:    cfg.MessageMaxTokens,
		messageTemperature:  cfg.MessageTemperature,
		classifyMaxTokens:   cfg.ClassifyMaxTokens,
		classifyTemperature: cfg.ClassifyTemperature,
		maxTurns:            conv.MaxTurns,
		fallbackTurnCap:     conv.FallbackTurnCap,
		fallbackResponses:   cfg.FallbackResponses,
	}
}

// HasCredential reports whether a usable API key is configured.
func (c *OpenAIClient) HasCredential() bool {
	key := strings.TrimSpace(c.apiKey)
	if key == "" {
		return false
	}
	_, placeholder := placeholderKeys[key]
	return !placeholder
}

// SetFallbackHook registers fn to be told whenever a call degrades to its
// local fallback. call is "classify" or "message".
func (c *OpenAIClient) SetFallbackHook(fn func(call string)) {
	c.onFallback = fn
}

func (c *OpenAIClient) fellBack(call string) {
	if c.onFallback != nil {
		c.onFallback(call)
	}
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// MaskedKey renders the key as "sk-abcd...wxyz" for diagnostics.
func (c *OpenAIClient) MaskedKey() string {
	if len(c.apiKey) < 12 {
		return "***"
	}
	return c.apiKey[:7] + "..." + c.apiKey[len(c.apiKey)-4:]
}

// Ping asks the model for a fixed phrase and returns its trimmed reply.
func (c *OpenAIClient) Ping(ctx context.Context) (string, error) {
	reply, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: pingPrompt},
		},
		MaxTokens: pingMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("ping %s: %w", c.model, err)
	}
	return reply, nil
}

func (c *OpenAIClient) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyResponse
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errEmptyResponse
	}
	return content, nil
}

// visionMessages pairs a system prompt with a user turn carrying text and a
// PNG screenshot as a data URL.
func visionMessages(system, text string, image []byte) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: text},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(image),
					},
				},
			},
		},
	}
}
