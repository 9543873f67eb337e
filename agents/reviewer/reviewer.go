// Package reviewer is the security review variant: it audits scripts
// for dangerous patterns instead of writing new ones.
package reviewer

import (
	"github.com/adalundhe/scriptorium/core/agents"
	"github.com/adalundhe/scriptorium/core/providers"
)

// AgentType is the identifier clients request for this variant.
const AgentType = "reviewer"

// DefaultSystemPrompt frames the reviewer persona.
const DefaultSystemPrompt = `You are a PowerShell security reviewer. You audit scripts that users
share and report what could go wrong before the script runs in
production.

For every script you review:
- Flag credential handling problems: plaintext secrets, ConvertTo-SecureString
  with -AsPlainText, credentials in command lines.
- Flag unscoped destructive operations: Remove-Item -Recurse on broad
  paths, Stop-Service without filters, registry-wide edits.
- Flag injection surfaces: Invoke-Expression on user input, unvalidated
  parameters interpolated into commands.
- Note missing safeguards: no -WhatIf support, no error handling around
  irreversible steps, no transcript or logging.

Order findings by severity and quote the offending line for each. If
the script is clean, say so briefly; do not invent findings.`

const defaultMaxTokens = 4096

// Config adjusts the variant. Zero values use defaults.
type Config struct {
	SystemPrompt string
	Model        string
	MaxTokens    int
}

// New creates the reviewer variant.
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
		Summary:      "Security review of PowerShell scripts, grounded on known-good examples",
		SystemPrompt: prompt,
		Grounded:     true,
		ModelConfig: providers.ModelConfig{
			Model:     cfg.Model,
			MaxTokens: maxTokens,
		},
	}
}
