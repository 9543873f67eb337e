package providers

import (
	"context"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/adalundhe/scriptorium/core/errors"
)

// AnthropicMessagesClient defines the slice of the Anthropic API the
// adapter uses. It allows mocking the client in tests.
type AnthropicMessagesClient interface {
	New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

// realAnthropicClient wraps the real SDK service.
type realAnthropicClient struct {
	messages *anthropic.MessageService
}

func (c *realAnthropicClient) New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return c.messages.New(ctx, params)
}

// AnthropicProvider implements Invoker over the Anthropic Messages API.
// The Messages API is stateless, so the thread ref is minted locally and
// every turn replays the full history; a resume can never go stale on the
// provider side.
type AnthropicProvider struct {
	client AnthropicMessagesClient
	config AnthropicConfig
	logger *slog.Logger
}

// NewAnthropicProvider creates an Anthropic provider with the given configuration.
func NewAnthropicProvider(config AnthropicConfig, logger *slog.Logger) (*AnthropicProvider, error) {
	if config.Model == "" {
		config.Model = DefaultAnthropicConfig().Model
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultAnthropicConfig().MaxTokens
	}
	if err := config.Validate(); err != nil {
		return nil, errors.New(errors.ClassInvalidRequest, "anthropic config", err)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	client := anthropic.NewClient(opts...)

	if logger == nil {
		logger = slog.Default()
	}

	return &AnthropicProvider{
		client: &realAnthropicClient{messages: &client.Messages},
		config: config,
		logger: logger,
	}, nil
}

// NewAnthropicProviderWithClient creates a provider with an injected client.
func NewAnthropicProviderWithClient(client AnthropicMessagesClient, config AnthropicConfig, logger *slog.Logger) *AnthropicProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnthropicProvider{client: client, config: config, logger: logger}
}

// Name returns the provider identifier.
func (p *AnthropicProvider) Name() string {
	return string(ProviderTypeAnthropic)
}

// Invoke executes one turn against the Messages API.
func (p *AnthropicProvider) Invoke(ctx context.Context, req *InvokeRequest) (*AgentResult, error) {
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	msg, err := p.client.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, normalizeError("anthropic", err)
	}

	if msg.StopReason == anthropic.StopReasonRefusal {
		return nil, errors.New(errors.ClassContentPolicy, "anthropic refused the content", nil)
	}

	threadRef := req.ThreadRef
	if threadRef == "" || req.FreshThread {
		threadRef = "anthropic-" + uuid.New().String()
	}

	var content string
	for _, block := range msg.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += b.Text
		}
	}

	return &AgentResult{
		Text:      content,
		ThreadRef: threadRef,
		Model:     string(msg.Model),
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}

func (p *AnthropicProvider) buildParams(req *InvokeRequest) anthropic.MessageNewParams {
	model := req.Model.Model
	if model == "" {
		model = p.config.Model
	}

	maxTokens := req.Model.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  p.convertMessages(req.Messages),
	}

	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	if req.Model.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Model.Temperature)
	} else if p.config.Temperature > 0 {
		params.Temperature = anthropic.Float(p.config.Temperature)
	}

	return params
}

func (p *AnthropicProvider) convertMessages(messages []Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser, RoleSystem:
			// System entries inside the transcript are folded into user
			// turns; the variant prompt rides on params.System.
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			result = append(result, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return result
}
