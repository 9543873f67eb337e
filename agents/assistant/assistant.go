// Package assistant is the default conversational variant: a general
// PowerShell expert grounded on the script knowledge base.
package assistant

import (
	"github.com/adalundhe/scriptorium/core/agents"
	"github.com/adalundhe/scriptorium/core/providers"
)

// AgentType is the identifier clients request for this variant.
const AgentType = "assistant"

// DefaultSystemPrompt frames the assistant persona.
const DefaultSystemPrompt = `You are a specialized PowerShell expert assistant. You provide accurate,
detailed help with PowerShell scripting: writing and explaining scripts,
debugging errors, and recommending cmdlets and best practices.

Guidelines:
- Prefer working, complete script examples over fragments.
- Call out anything destructive (deletions, registry edits, service
  restarts) before showing it.
- When the knowledge base offers a relevant existing script, point the
  user at it rather than rewriting it from scratch.
- If a request is ambiguous, ask one clarifying question instead of
  guessing.`

const defaultMaxTokens = 4096

// Config adjusts the variant. Zero values use defaults.
type Config struct {
	SystemPrompt string
	Model        string
	MaxTokens    int
}

// New creates the assistant variant.
func New(cfg Config) *agents.BaseVariant {
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &agents.BaseVariant{
		AgentType:    AgentType,
		Summary:      "General PowerShell scripting help, grounded on the script knowledge base",
		SystemPrompt: prompt,
		Grounded:     true,
		ModelConfig: providers.ModelConfig{
			Model:     cfg.Model,
			MaxTokens: maxTokens,
		},
	}
}
