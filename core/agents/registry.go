package agents

import (
	"log/slog"
	"sort"
	"sync"
)

// DefaultAgentType is the variant used when a requested type is unknown
// or empty. Unknown types never fail a turn; they degrade to this.
const DefaultAgentType = "assistant"

// Registry holds the registered agent variants.
type Registry struct {
	mu       sync.RWMutex
	variants map[string]Variant
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		variants: make(map[string]Variant),
		logger:   logger,
	}
}

// Register adds a variant. Registering the same type twice replaces the
// earlier variant.
func (r *Registry) Register(variant Variant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variants[variant.Type()] = variant
}

// Resolve returns the variant for the requested type. Matching is
// exact: an unknown or empty type resolves to the default variant.
// resolved reports whether the requested type matched directly.
func (r *Registry) Resolve(agentType string) (variant Variant, resolved bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if v, ok := r.variants[agentType]; ok {
		return v, true
	}

	if agentType != "" {
		r.logger.Warn("unknown agent type, using default",
			"requested", agentType,
			"default", DefaultAgentType)
	}
	return r.variants[DefaultAgentType], false
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.variants))
	for name := range r.variants {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}
