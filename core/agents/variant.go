// Package agents defines the agent variant contract and the registry
// that resolves a requested agent type to a concrete variant.
package agents

import (
	"github.com/adalundhe/scriptorium/core/providers"
	"github.com/adalundhe/scriptorium/core/retrieval"
)

// Variant is one persona of the conversational platform. A variant owns
// its system prompt, model settings, and how retrieved knowledge base
// context is folded into the provider request.
type Variant interface {
	// Type is the stable identifier clients request, e.g. "assistant".
	Type() string

	// Description is a one-line summary for discovery listings.
	Description() string

	// Model returns the model settings for this variant.
	Model() providers.ModelConfig

	// NeedsGrounding reports whether the variant wants knowledge base
	// retrieval before invocation. Grounding is best-effort: a variant
	// must produce a usable request from an empty match set.
	NeedsGrounding() bool

	// BuildRequest assembles the provider request for one turn from the
	// full transcript and the retrieved grounding matches.
	BuildRequest(history []providers.Message, grounding []retrieval.Match) *providers.InvokeRequest
}
