package agents

import (
	"fmt"
	"strings"

	"github.com/adalundhe/scriptorium/core/providers"
	"github.com/adalundhe/scriptorium/core/retrieval"
)

// BaseVariant is the common Variant implementation. Concrete variants
// are instances of this with their own prompt and model settings.
type BaseVariant struct {
	AgentType    string
	Summary      string
	SystemPrompt string
	ModelConfig  providers.ModelConfig
	Grounded     bool
}

func (v *BaseVariant) Type() string                 { return v.AgentType }
func (v *BaseVariant) Description() string          { return v.Summary }
func (v *BaseVariant) Model() providers.ModelConfig { return v.ModelConfig }
func (v *BaseVariant) NeedsGrounding() bool         { return v.Grounded }

// BuildRequest folds grounding matches into the system prompt and
// passes the transcript through unchanged.
func (v *BaseVariant) BuildRequest(history []providers.Message, grounding []retrieval.Match) *providers.InvokeRequest {
	return &providers.InvokeRequest{
		Messages:     history,
		SystemPrompt: PromptWithGrounding(v.SystemPrompt, grounding),
		Model:        v.ModelConfig,
	}
}

// PromptWithGrounding appends a knowledge base context block to a
// system prompt. An empty match set returns the prompt untouched.
func PromptWithGrounding(prompt string, grounding []retrieval.Match) string {
	if len(grounding) == 0 {
		return prompt
	}

	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nRelevant scripts from the knowledge base:\n")
	for _, match := range grounding {
		b.WriteString(fmt.Sprintf("- %s", match.Item.Title))
		if match.Item.Description != "" {
			b.WriteString(": ")
			b.WriteString(match.Item.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString("Reference these when they are relevant to the user's request.")
	return b.String()
}
