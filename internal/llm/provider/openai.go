package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// OpenAIProvider implements Provider using the official openai-go client.
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string

	Client openai.Client
}

type OpenAIProviderOption func(*OpenAIProvider)

func WithAPIKey(apiKey string) OpenAIProviderOption {
	return func(p *OpenAIProvider) {
		p.apiKey = apiKey
	}
}

func WithModel(model string) OpenAIProviderOption {
	return func(p *OpenAIProvider) {
		if model != "" {
			p.model = model
		}
	}
}

func WithBaseURL(u string) OpenAIProviderOption {
	return func(p *OpenAIProvider) {
		p.baseURL = u
	}
}

func NewOpenAIProvider(opts ...OpenAIProviderOption) *OpenAIProvider {
	p := &OpenAIProvider{model: DefaultModel}
	for _, opt := range opts {
		opt(p)
	}
	// Single attempt per call; the gateway owns failure handling.
	copts := []option.RequestOption{option.WithAPIKey(p.apiKey), option.WithMaxRetries(0)}
	if p.baseURL != "" {
		copts = append(copts, option.WithBaseURL(p.baseURL))
	}
	p.Client = openai.NewClient(copts...)
	return p
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Validate() error {
	if p.apiKey == "" {
		return fmt.Errorf("openai: %w", ErrMissingCredentials)
	}
	return nil
}

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		if m.Role == RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(m.Content))
			continue
		}
		msgs = append(msgs, openai.UserMessage(m.Content))
	}
	params := openai.ChatCompletionNewParams{
		Messages:            msgs,
		Model:               openai.ChatModel(p.model),
		Temperature:         openai.Float(req.temperature()),
		MaxCompletionTokens: openai.Int(int64(req.maxTokens())),
	}
	chat, err := p.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	var s string
	if len(chat.Choices) > 0 {
		s = strings.TrimSpace(chat.Choices[0].Message.Content)
	}
	if s == "" {
		return "", fmt.Errorf("openai: %w", ErrNoCandidate)
	}
	return s, nil
}
