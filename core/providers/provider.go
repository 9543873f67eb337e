// Package providers abstracts the external LLM backends behind a single
// Invoker interface. Adapters normalize backend errors into the shared
// taxonomy and own provider-side thread lifecycle, including falling back
// to a fresh thread seeded from local history when a stale ref cannot be
// resumed.
package providers

import (
	"context"
	"time"
)

// Invoker executes one completion request against an LLM backend.
type Invoker interface {
	Name() string
	Invoke(ctx context.Context, req *InvokeRequest) (*AgentResult, error)
}

// InvokeRequest carries everything an adapter needs for a single turn:
// the full local message history, the variant's model configuration, and
// the thread resume/fresh decision.
type InvokeRequest struct {
	// Messages is the full conversation transcript, oldest first. Adapters
	// resuming a provider thread may send only the trailing turn, but must
	// replay the whole history when the remote thread is gone.
	Messages []Message `json:"messages"`

	// SystemPrompt is the variant's instruction block.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Model selects the backend model configuration.
	Model ModelConfig `json:"model"`

	// ThreadRef resumes an existing provider-side thread when set.
	ThreadRef string `json:"thread_ref,omitempty"`

	// FreshThread forces a new provider-side thread even if ThreadRef is set.
	FreshThread bool `json:"fresh_thread,omitempty"`
}

// ModelConfig is the variant-selected model and sampling configuration.
type ModelConfig struct {
	Model       string   `json:"model"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Message is a single transcript entry.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// AgentResult is the normalized outcome of a successful invocation.
type AgentResult struct {
	// Text is the generated assistant reply.
	Text string `json:"text"`

	// ThreadRef is the provider-side thread handle to persist on the
	// session. Always set on success; replaces any stale ref the caller
	// passed in.
	ThreadRef string `json:"thread_ref,omitempty"`

	// Usage reports token accounting from the backend.
	Usage Usage `json:"usage"`

	// Model is the backend model that produced the reply.
	Model string `json:"model,omitempty"`
}

// Usage is the normalized token accounting across backends.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}
