package providers

import (
	"context"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"github.com/adalundhe/scriptorium/core/errors"
)

// OpenAIResponsesClient defines the slice of the OpenAI Responses API the
// adapter uses. It allows mocking the client in tests.
type OpenAIResponsesClient interface {
	New(ctx context.Context, params responses.ResponseNewParams) (*responses.Response, error)
}

// realOpenAIResponsesClient wraps the real SDK service.
type realOpenAIResponsesClient struct {
	service *responses.ResponseService
}

func (c *realOpenAIResponsesClient) New(ctx context.Context, params responses.ResponseNewParams) (*responses.Response, error) {
	return c.service.New(ctx, params)
}

// OpenAIProvider implements Invoker over the OpenAI Responses API. The
// provider-side thread is the response chain: each response id becomes the
// thread ref, and resuming sends only the trailing turn with
// previous_response_id set. A stale ref is reconciled by replaying the
// full local history on a fresh chain.
type OpenAIProvider struct {
	client OpenAIResponsesClient
	config OpenAIConfig
	logger *slog.Logger
}

// NewOpenAIProvider creates an OpenAI provider with the given configuration.
func NewOpenAIProvider(config OpenAIConfig, logger *slog.Logger) (*OpenAIProvider, error) {
	if config.Model == "" {
		config.Model = DefaultOpenAIConfig().Model
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultOpenAIConfig().MaxTokens
	}
	if err := config.Validate(); err != nil {
		return nil, errors.New(errors.ClassInvalidRequest, "openai config", err)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.Organization != "" {
		opts = append(opts, option.WithHeader("OpenAI-Organization", config.Organization))
	}
	if config.Project != "" {
		opts = append(opts, option.WithHeader("OpenAI-Project", config.Project))
	}

	client := openai.NewClient(opts...)

	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAIProvider{
		client: &realOpenAIResponsesClient{service: &client.Responses},
		config: config,
		logger: logger,
	}, nil
}

// NewOpenAIProviderWithClient creates a provider with an injected client.
func NewOpenAIProviderWithClient(client OpenAIResponsesClient, config OpenAIConfig, logger *slog.Logger) *OpenAIProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIProvider{client: client, config: config, logger: logger}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return string(ProviderTypeOpenAI)
}

// Invoke executes one turn. Resume failures on a stale thread ref fall
// back to a fresh thread seeded with the full local history, so the
// conversation never loses context.
func (p *OpenAIProvider) Invoke(ctx context.Context, req *InvokeRequest) (*AgentResult, error) {
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	if req.ThreadRef != "" && !req.FreshThread {
		result, err := p.send(ctx, p.buildParams(req, true))
		if err == nil {
			return result, nil
		}
		if !isStaleThreadError(err) {
			return nil, normalizeError("openai", err)
		}
		p.logger.Warn("provider thread expired, replaying local history",
			"provider", p.Name(),
			"thread_ref", req.ThreadRef)
	}

	result, err := p.send(ctx, p.buildParams(req, false))
	if err != nil {
		return nil, normalizeError("openai", err)
	}
	return result, nil
}

func (p *OpenAIProvider) send(ctx context.Context, params responses.ResponseNewParams) (*AgentResult, error) {
	resp, err := p.client.New(ctx, params)
	if err != nil {
		return nil, err
	}

	if resp.IncompleteDetails.Reason == "content_filter" {
		return nil, errors.New(errors.ClassContentPolicy, "openai filtered the response", nil)
	}

	return &AgentResult{
		Text:      resp.OutputText(),
		ThreadRef: resp.ID,
		Model:     string(resp.Model),
		Usage: Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}, nil
}

// buildParams constructs Responses API parameters. When resuming, only
// the messages after the last assistant reply are sent; the provider
// thread holds everything earlier.
func (p *OpenAIProvider) buildParams(req *InvokeRequest, resume bool) responses.ResponseNewParams {
	model := req.Model.Model
	if model == "" {
		model = p.config.Model
	}

	maxTokens := req.Model.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	messages := req.Messages
	if resume {
		messages = trailingTurn(messages)
	}

	params := responses.ResponseNewParams{
		Model:           shared.ResponsesModel(model),
		Input:           responses.ResponseNewParamsInputUnion{OfInputItemList: p.convertMessages(messages)},
		MaxOutputTokens: openai.Int(int64(maxTokens)),
	}

	if req.SystemPrompt != "" {
		params.Instructions = openai.String(req.SystemPrompt)
	}

	if resume {
		params.PreviousResponseID = openai.String(req.ThreadRef)
	}

	if req.Model.Temperature != nil {
		params.Temperature = openai.Float(*req.Model.Temperature)
	} else if p.config.Temperature > 0 {
		params.Temperature = openai.Float(p.config.Temperature)
	}

	return params
}

// trailingTurn returns the messages after the last assistant reply.
func trailingTurn(messages []Message) []Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleAssistant {
			return messages[i+1:]
		}
	}
	return messages
}

func (p *OpenAIProvider) convertMessages(messages []Message) responses.ResponseInputParam {
	result := make(responses.ResponseInputParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			result = append(result, responses.ResponseInputItemParamOfMessage(msg.Content, responses.EasyInputMessageRoleSystem))
		case RoleUser:
			result = append(result, responses.ResponseInputItemParamOfMessage(msg.Content, responses.EasyInputMessageRoleUser))
		case RoleAssistant:
			result = append(result, responses.ResponseInputItemParamOfMessage(msg.Content, responses.EasyInputMessageRoleAssistant))
		}
	}
	return result
}
