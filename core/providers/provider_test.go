package providers

import (
	"context"
	stderrors "errors"
	"net/http"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/responses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/scriptorium/core/errors"
)

// mockResponsesClient records Responses API calls and replays scripted results.
type mockResponsesClient struct {
	calls   []responses.ResponseNewParams
	results []func() (*responses.Response, error)
}

func (m *mockResponsesClient) New(ctx context.Context, params responses.ResponseNewParams) (*responses.Response, error) {
	m.calls = append(m.calls, params)
	if len(m.results) == 0 {
		return &responses.Response{ID: "resp_default"}, nil
	}
	next := m.results[0]
	m.results = m.results[1:]
	return next()
}

func testConfig() OpenAIConfig {
	cfg := DefaultOpenAIConfig()
	cfg.APIKey = "test-key"
	return cfg
}

func TestOpenAIProvider_FreshThreadSendsFullHistory(t *testing.T) {
	client := &mockResponsesClient{
		results: []func() (*responses.Response, error){
			func() (*responses.Response, error) {
				return &responses.Response{ID: "resp_1"}, nil
			},
		},
	}
	provider := NewOpenAIProviderWithClient(client, testConfig(), nil)

	result, err := provider.Invoke(context.Background(), &InvokeRequest{
		Messages: []Message{
			{Role: RoleUser, Content: "hello"},
			{Role: RoleAssistant, Content: "hi"},
			{Role: RoleUser, Content: "more"},
		},
		SystemPrompt: "be helpful",
	})

	require.NoError(t, err)
	assert.Equal(t, "resp_1", result.ThreadRef)
	require.Len(t, client.calls, 1)
	assert.False(t, client.calls[0].PreviousResponseID.Valid())
	assert.Len(t, client.calls[0].Input.OfInputItemList, 3)
}

func TestOpenAIProvider_ResumeSendsTrailingTurnOnly(t *testing.T) {
	client := &mockResponsesClient{
		results: []func() (*responses.Response, error){
			func() (*responses.Response, error) {
				return &responses.Response{ID: "resp_9"}, nil
			},
		},
	}
	provider := NewOpenAIProviderWithClient(client, testConfig(), nil)

	result, err := provider.Invoke(context.Background(), &InvokeRequest{
		Messages: []Message{
			{Role: RoleUser, Content: "hello"},
			{Role: RoleAssistant, Content: "hi"},
			{Role: RoleUser, Content: "follow-up"},
		},
		ThreadRef: "resp_8",
	})

	require.NoError(t, err)
	assert.Equal(t, "resp_9", result.ThreadRef)
	require.Len(t, client.calls, 1)
	require.True(t, client.calls[0].PreviousResponseID.Valid())
	assert.Equal(t, "resp_8", client.calls[0].PreviousResponseID.Value)
	assert.Len(t, client.calls[0].Input.OfInputItemList, 1)
}

func TestOpenAIProvider_StaleThreadReplaysHistory(t *testing.T) {
	client := &mockResponsesClient{
		results: []func() (*responses.Response, error){
			func() (*responses.Response, error) {
				return nil, &openai.Error{StatusCode: http.StatusNotFound}
			},
			func() (*responses.Response, error) {
				return &responses.Response{ID: "resp_new"}, nil
			},
		},
	}
	provider := NewOpenAIProviderWithClient(client, testConfig(), nil)

	result, err := provider.Invoke(context.Background(), &InvokeRequest{
		Messages: []Message{
			{Role: RoleUser, Content: "hello"},
			{Role: RoleAssistant, Content: "hi"},
			{Role: RoleUser, Content: "follow-up"},
		},
		ThreadRef: "resp_gone",
	})

	require.NoError(t, err)
	assert.Equal(t, "resp_new", result.ThreadRef)
	require.Len(t, client.calls, 2)
	assert.True(t, client.calls[0].PreviousResponseID.Valid())
	assert.False(t, client.calls[1].PreviousResponseID.Valid())
	assert.Len(t, client.calls[1].Input.OfInputItemList, 3)
}

func TestOpenAIProvider_NonStaleErrorIsNormalized(t *testing.T) {
	client := &mockResponsesClient{
		results: []func() (*responses.Response, error){
			func() (*responses.Response, error) {
				return nil, &openai.Error{StatusCode: http.StatusTooManyRequests}
			},
		},
	}
	provider := NewOpenAIProviderWithClient(client, testConfig(), nil)

	_, err := provider.Invoke(context.Background(), &InvokeRequest{
		Messages:  []Message{{Role: RoleUser, Content: "hello"}},
		ThreadRef: "resp_1",
	})

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrRateLimited))
	assert.Len(t, client.calls, 1)
}

func TestOpenAIProvider_ContentFilterSurfacesAsPolicyRejection(t *testing.T) {
	client := &mockResponsesClient{
		results: []func() (*responses.Response, error){
			func() (*responses.Response, error) {
				resp := &responses.Response{ID: "resp_1"}
				resp.IncompleteDetails.Reason = "content_filter"
				return resp, nil
			},
		},
	}
	provider := NewOpenAIProviderWithClient(client, testConfig(), nil)

	_, err := provider.Invoke(context.Background(), &InvokeRequest{
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrContentPolicy))
}

// mockAnthropicClient replays a scripted Anthropic response.
type mockAnthropicClient struct {
	response *anthropic.Message
	err      error
	calls    []anthropic.MessageNewParams
}

func (m *mockAnthropicClient) New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	m.calls = append(m.calls, params)
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func TestAnthropicProvider_MintsLocalThreadRef(t *testing.T) {
	client := &mockAnthropicClient{
		response: &anthropic.Message{
			Content: []anthropic.ContentBlockUnion{{Type: "text", Text: "hello back"}},
			Usage:   anthropic.Usage{InputTokens: 10, OutputTokens: 5},
		},
	}
	cfg := DefaultAnthropicConfig()
	cfg.APIKey = "test-key"
	provider := NewAnthropicProviderWithClient(client, cfg, nil)

	result, err := provider.Invoke(context.Background(), &InvokeRequest{
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "hello back", result.Text)
	assert.NotEmpty(t, result.ThreadRef)
	assert.Equal(t, 15, result.Usage.TotalTokens)
}

func TestAnthropicProvider_KeepsExistingThreadRef(t *testing.T) {
	client := &mockAnthropicClient{
		response: &anthropic.Message{
			Content: []anthropic.ContentBlockUnion{{Type: "text", Text: "ok"}},
		},
	}
	cfg := DefaultAnthropicConfig()
	cfg.APIKey = "test-key"
	provider := NewAnthropicProviderWithClient(client, cfg, nil)

	result, err := provider.Invoke(context.Background(), &InvokeRequest{
		Messages:  []Message{{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "yes"}, {Role: RoleUser, Content: "go on"}},
		ThreadRef: "anthropic-abc",
	})

	require.NoError(t, err)
	assert.Equal(t, "anthropic-abc", result.ThreadRef)
	// The stateless API always receives the whole transcript.
	require.Len(t, client.calls, 1)
	assert.Len(t, client.calls[0].Messages, 3)
}

func TestNormalizeError_StatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		target error
	}{
		{"rate limited", &openai.Error{StatusCode: http.StatusTooManyRequests}, errors.ErrRateLimited},
		{"server error", &openai.Error{StatusCode: http.StatusBadGateway}, errors.ErrProviderUnavailable},
		{"bad request", &openai.Error{StatusCode: http.StatusBadRequest}, errors.ErrInvalidRequest},
		{"unauthorized", &openai.Error{StatusCode: http.StatusUnauthorized}, errors.ErrInvalidRequest},
		{"deadline", context.DeadlineExceeded, errors.ErrTimeout},
		{"connection", stderrors.New("dial tcp: connection refused"), errors.ErrProviderUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			normalized := normalizeError("openai", tc.err)
			assert.True(t, stderrors.Is(normalized, tc.target))
		})
	}
}

func TestNormalizeError_ContentPolicyMessage(t *testing.T) {
	err := &openai.Error{StatusCode: http.StatusBadRequest, Message: "rejected by our content policy"}
	normalized := normalizeError("openai", err)
	assert.True(t, stderrors.Is(normalized, errors.ErrContentPolicy))
}

func TestIsStaleThreadError(t *testing.T) {
	assert.True(t, isStaleThreadError(&openai.Error{StatusCode: http.StatusNotFound}))
	assert.True(t, isStaleThreadError(&openai.Error{
		StatusCode: http.StatusBadRequest,
		Message:    "previous_response not found",
	}))
	assert.False(t, isStaleThreadError(&openai.Error{StatusCode: http.StatusBadRequest, Message: "bad model"}))
	assert.False(t, isStaleThreadError(stderrors.New("plain")))
}

func TestTrailingTurn(t *testing.T) {
	messages := []Message{
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "b"},
		{Role: RoleUser, Content: "c"},
		{Role: RoleUser, Content: "d"},
	}
	trailing := trailingTurn(messages)
	require.Len(t, trailing, 2)
	assert.Equal(t, "c", trailing[0].Content)

	// No assistant message yet: the whole history is the trailing turn.
	assert.Len(t, trailingTurn(messages[:1]), 1)
}

func TestScriptedProvider_ReplaysOutcomesInOrder(t *testing.T) {
	provider := NewScriptedProvider(
		ScriptedOutcome{Err: errors.New(errors.ClassRateLimited, "throttled", nil)},
		ScriptedOutcome{Text: "second try"},
	)

	_, err := provider.Invoke(context.Background(), &InvokeRequest{})
	require.Error(t, err)

	result, err := provider.Invoke(context.Background(), &InvokeRequest{})
	require.NoError(t, err)
	assert.Equal(t, "second try", result.Text)
	assert.Equal(t, 2, provider.CallCount())
}

func TestScriptedProvider_LatencyRespectsContext(t *testing.T) {
	provider := NewScriptedProvider()
	provider.Latency = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := provider.Invoke(ctx, &InvokeRequest{})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, context.DeadlineExceeded))
}
