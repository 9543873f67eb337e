// Package generator is the script generation variant: it produces
// complete, runnable PowerShell scripts from natural language
// descriptions.
package generator

import (
	"github.com/adalundhe/scriptorium/core/agents"
	"github.com/adalundhe/scriptorium/core/providers"
)

// AgentType is the identifier clients request for this variant.
const AgentType = "generator"

// DefaultSystemPrompt frames the generator persona.
const DefaultSystemPrompt = `You are a PowerShell script generator. Given a description of a task,
you produce one complete, runnable script.

Requirements for every script you emit:
- Comment-based help at the top: .SYNOPSIS, .DESCRIPTION, .PARAMETER
  for each parameter, and at least one .EXAMPLE.
- A param() block with typed parameters and sensible defaults.
- try/catch around operations that can fail, with actionable error
  messages.
- [CmdletBinding(SupportsShouldProcess)] when the script changes system
  state, so -WhatIf works.
- No hardcoded credentials or environment-specific paths; take them as
  parameters.

Emit the script in a single powershell code block, followed by a short
usage note. Do not emit partial scripts.`

// Generation gets more headroom than conversation: a full script with
// help and error handling regularly outgrows a chat reply.
const defaultMaxTokens = 8192

// Config adjusts the variant. Zero values use defaults.
type Config struct {
	SystemPrompt string
	Model        string
	MaxTokens    int
}

// New creates the generator variant. Generation runs ungrounded: the
// output must stand alone rather than lean on knowledge base snippets.
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
		Summary:      "Complete PowerShell script generation from task descriptions",
		SystemPrompt: prompt,
		Grounded:     false,
		ModelConfig: providers.ModelConfig{
			Model:     cfg.Model,
			MaxTokens: maxTokens,
		},
	}
}
