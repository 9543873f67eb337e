// Package orchestrator coordinates a conversation turn end to end:
// session resolution, knowledge base retrieval, provider invocation
// with retries, and durable persistence of the exchanged pair.
package orchestrator

import (
	"log/slog"

	"github.com/adalundhe/scriptorium/core/agents"
	"github.com/adalundhe/scriptorium/core/errors"
	"github.com/adalundhe/scriptorium/core/providers"
	"github.com/adalundhe/scriptorium/core/retrieval"
	"github.com/adalundhe/scriptorium/core/session"
)

// turnPhase names the stage a turn is in. Phases only move forward;
// a turn that cannot reach phaseResponding ends in phaseFailed.
type turnPhase string

const (
	phaseResolvingSession  turnPhase = "resolving_session"
	phaseRetrievingContext turnPhase = "retrieving_context"
	phaseInvokingProvider  turnPhase = "invoking_provider"
	phasePersisting        turnPhase = "persisting"
	phaseResponding        turnPhase = "responding"
	phaseFailed            turnPhase = "failed"
)

// FallbackReply is returned when the provider stays unreachable after
// the retry budget is spent. The turn still succeeds from the client's
// point of view; nothing is persisted.
const FallbackReply = "I apologize, but I'm having trouble generating a response right now. Please try again in a moment."

// RefusalReply is returned when the provider rejects the content on
// policy grounds. A refusal is an answer, not a system error, so it
// reads as a normal assistant message; nothing is persisted.
const RefusalReply = "I'm not able to help with that request. Please rephrase it or ask about something else."

// SendRequest is one inbound user message.
type SendRequest struct {
	// SessionID is the conversation to continue. Empty or unknown ids
	// start a fresh session instead of failing.
	SessionID string

	// AgentType selects the variant. Unknown types resolve to the
	// default variant.
	AgentType string

	// Content is the user's message text.
	Content string

	// BusyPolicy decides behavior when the session is mid-turn.
	BusyPolicy BusyPolicy

	// TopK and MinSimilarity tune retrieval; zero values use defaults.
	TopK          int
	MinSimilarity float64
}

// SendResult is the outcome of a completed turn.
type SendResult struct {
	SessionID string `json:"session_id"`

	// SessionCreated reports that the turn started a new session,
	// either because no id was sent or the id was unknown.
	SessionCreated bool `json:"session_created"`

	// AgentType is the variant that actually served the turn.
	AgentType string `json:"agent_type"`

	// Reply is the assistant's message.
	Reply session.Message `json:"reply"`

	// Grounded reports whether knowledge base context reached the
	// provider. False for ungrounded variants and for turns where
	// retrieval failed and the turn degraded.
	Grounded bool `json:"grounded"`

	// GroundingCount is how many knowledge base matches were used.
	GroundingCount int `json:"grounding_count,omitempty"`

	// Fallback reports that the reply is the canned apology because the
	// provider stayed unreachable.
	Fallback bool `json:"fallback,omitempty"`

	// Refused reports that the provider rejected the message on policy
	// grounds and the reply is the canned refusal.
	Refused bool `json:"refused,omitempty"`

	// PersistFailed reports that the reply was generated but could not
	// be stored; the transcript is missing this turn.
	PersistFailed bool `json:"persist_failed,omitempty"`

	Usage providers.Usage `json:"usage"`
}

// Options configures a Coordinator.
type Options struct {
	// Retry bounds provider retries. Nil uses the default budget.
	Retry *errors.RetryBudget

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// SummaryCacheSize bounds the search hydration cache.
	SummaryCacheSize int
}

// Coordinator wires the session store, search index, retrieval ranker,
// agent registry, and provider into the turn state machine.
type Coordinator struct {
	store    session.Store
	search   *session.SearchIndex
	ranker   *retrieval.Ranker
	index    *retrieval.IndexStore
	registry *agents.Registry
	provider providers.Invoker

	retry     *errors.RetryExecutor
	locks     *sessionLocks
	summaries *session.SummaryCache
	logger    *slog.Logger
}

// NewCoordinator assembles a coordinator. ranker and index may be nil
// when no knowledge base is configured; grounded variants then run
// ungrounded.
func NewCoordinator(
	store session.Store,
	search *session.SearchIndex,
	ranker *retrieval.Ranker,
	index *retrieval.IndexStore,
	registry *agents.Registry,
	provider providers.Invoker,
	opts Options,
) (*Coordinator, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	budget := opts.Retry
	if budget == nil {
		b := errors.DefaultRetryBudget()
		budget = &b
	}

	summaries, err := session.NewSummaryCache(opts.SummaryCacheSize)
	if err != nil {
		return nil, err
	}

	return &Coordinator{
		store:     store,
		search:    search,
		ranker:    ranker,
		index:     index,
		registry:  registry,
		provider:  provider,
		retry:     errors.NewRetryExecutor(*budget),
		locks:     newSessionLocks(),
		summaries: summaries,
		logger:    logger,
	}, nil
}
