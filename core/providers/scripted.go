package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ScriptedOutcome is one queued result for a ScriptedProvider invocation.
type ScriptedOutcome struct {
	// Err, when set, is returned instead of a result.
	Err error

	// Text is the assistant reply for a successful invocation.
	Text string

	// ThreadRef overrides the minted thread ref when set.
	ThreadRef string
}

// ScriptedProvider is a deterministic Invoker for tests: fixed latency,
// scripted error injection, and full invocation recording.
type ScriptedProvider struct {
	mu sync.Mutex

	// Latency is applied to every invocation before resolving the outcome.
	Latency time.Duration

	script []ScriptedOutcome
	calls  []*InvokeRequest
}

// NewScriptedProvider creates a scripted provider with no queued outcomes.
// Invocations beyond the script succeed with a generated reply.
func NewScriptedProvider(outcomes ...ScriptedOutcome) *ScriptedProvider {
	return &ScriptedProvider{script: outcomes}
}

// Name returns the provider identifier.
func (p *ScriptedProvider) Name() string {
	return "scripted"
}

// Enqueue appends outcomes to the script.
func (p *ScriptedProvider) Enqueue(outcomes ...ScriptedOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, outcomes...)
}

// Invoke records the request and resolves the next scripted outcome.
func (p *ScriptedProvider) Invoke(ctx context.Context, req *InvokeRequest) (*AgentResult, error) {
	if p.Latency > 0 {
		timer := time.NewTimer(p.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, req)

	var outcome ScriptedOutcome
	if len(p.script) > 0 {
		outcome = p.script[0]
		p.script = p.script[1:]
	}

	if outcome.Err != nil {
		return nil, outcome.Err
	}

	text := outcome.Text
	if text == "" {
		text = fmt.Sprintf("scripted reply %d", len(p.calls))
	}

	threadRef := outcome.ThreadRef
	if threadRef == "" {
		threadRef = req.ThreadRef
	}
	if threadRef == "" || req.FreshThread {
		threadRef = "scripted-" + uuid.New().String()
	}

	return &AgentResult{
		Text:      text,
		ThreadRef: threadRef,
		Model:     "scripted-model",
		Usage:     Usage{InputTokens: len(req.Messages), OutputTokens: 1, TotalTokens: len(req.Messages) + 1},
	}, nil
}

// Calls returns the recorded invocations in order.
func (p *ScriptedProvider) Calls() []*InvokeRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*InvokeRequest, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallCount returns the number of invocations made.
func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
