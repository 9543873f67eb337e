package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/adalundhe/scriptorium/core/errors"
	"github.com/adalundhe/scriptorium/core/providers"
	"github.com/adalundhe/scriptorium/core/retrieval"
	"github.com/adalundhe/scriptorium/core/session"
)

// SendMessage runs one conversation turn. Turns on the same session are
// serialized; turns on different sessions run concurrently.
func (c *Coordinator) SendMessage(ctx context.Context, req SendRequest) (*SendResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, errors.New(errors.ClassInvalidRequest, "message content is empty", nil)
	}

	// Lock on the requested id. A turn that ends up creating a fresh
	// session contends with nobody anyway.
	if req.SessionID != "" {
		release, err := c.locks.acquire(ctx, req.SessionID, req.BusyPolicy)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	phase := phaseResolvingSession
	c.logPhase(req.SessionID, phase)

	// Resolve the variant first so a fresh session records the type
	// that actually serves it, not an unknown requested name.
	variant, _ := c.registry.Resolve(req.AgentType)
	if variant == nil {
		return nil, errors.New(errors.ClassInvalidRequest, "no agent variants registered", nil)
	}

	sess, created, err := c.resolveSession(ctx, req.SessionID, variant.Type())
	if err != nil {
		c.logPhase(req.SessionID, phaseFailed)
		return nil, err
	}

	result := &SendResult{
		SessionID:      sess.ID,
		SessionCreated: created,
		AgentType:      variant.Type(),
	}

	phase = phaseRetrievingContext
	c.logPhase(sess.ID, phase)

	var grounding []retrieval.Match
	if variant.NeedsGrounding() && c.ranker != nil {
		grounding, err = c.ranker.Rank(ctx, req.Content, req.TopK, req.MinSimilarity)
		if err != nil {
			// Retrieval is best-effort: a broken knowledge base degrades
			// the turn to ungrounded instead of failing it.
			c.logger.Warn("retrieval failed, continuing ungrounded",
				"session_id", sess.ID, "error", err)
			grounding = nil
		} else {
			result.Grounded = len(grounding) > 0
			result.GroundingCount = len(grounding)
		}
	}

	userMessage := session.Message{
		Role:      session.RoleUser,
		Content:   req.Content,
		Timestamp: time.Now().UTC(),
	}

	history := append(transcriptMessages(sess.Messages), providers.Message{
		Role:      providers.RoleUser,
		Content:   req.Content,
		Timestamp: userMessage.Timestamp,
	})

	invokeReq := variant.BuildRequest(history, grounding)
	invokeReq.ThreadRef = sess.ThreadRef

	phase = phaseInvokingProvider
	c.logPhase(sess.ID, phase)

	var agentResult *providers.AgentResult
	invokeErr := c.retry.Execute(ctx, func() error {
		var err error
		agentResult, err = c.provider.Invoke(ctx, invokeReq)
		return err
	})

	if invokeErr != nil {
		if errors.ClassOf(invokeErr) == errors.ClassContentPolicy {
			// A policy rejection is an answer about the content, not a
			// transport failure: reply with the canned refusal and
			// persist nothing.
			c.logger.Warn("provider refused content",
				"session_id", sess.ID, "error", invokeErr)
			result.Refused = true
			result.Reply = session.Message{
				Role:      session.RoleAssistant,
				Content:   RefusalReply,
				Timestamp: time.Now().UTC(),
			}
			c.logPhase(sess.ID, phaseResponding)
			return result, nil
		}

		if !errors.IsRetryable(invokeErr) {
			c.logPhase(sess.ID, phaseFailed)
			return nil, invokeErr
		}

		// Budget exhausted on a transient failure: answer with the
		// canned apology and persist nothing, so a later retry of the
		// same message starts clean.
		c.logger.Error("provider unreachable after retries",
			"session_id", sess.ID,
			"class", errors.ClassOf(invokeErr),
			"error", invokeErr)
		result.Fallback = true
		result.Reply = session.Message{
			Role:      session.RoleAssistant,
			Content:   FallbackReply,
			Timestamp: time.Now().UTC(),
		}
		c.logPhase(sess.ID, phaseResponding)
		return result, nil
	}

	phase = phasePersisting
	c.logPhase(sess.ID, phase)

	assistantMessage := session.Message{
		Role:      session.RoleAssistant,
		Content:   agentResult.Text,
		Timestamp: time.Now().UTC(),
	}

	if err := c.persistTurn(ctx, sess, userMessage, assistantMessage, agentResult.ThreadRef); err != nil {
		// The reply exists; losing it now serves nobody. Hand it back
		// and record the transcript gap.
		c.logger.Error("turn generated but not persisted",
			"session_id", sess.ID, "error", err)
		result.PersistFailed = true
	}

	c.logPhase(sess.ID, phaseResponding)
	result.Reply = assistantMessage
	result.Usage = agentResult.Usage
	return result, nil
}

// resolveSession loads the requested session or creates a fresh one
// when the id is empty or unknown. Unknown ids are not an error.
func (c *Coordinator) resolveSession(ctx context.Context, sessionID, agentType string) (*session.Session, bool, error) {
	if sessionID != "" {
		sess, err := c.store.Get(ctx, sessionID)
		if err == nil {
			return sess, false, nil
		}
		if errors.ClassOf(err) != errors.ClassSessionNotFound {
			return nil, false, err
		}
		c.logger.Info("unknown session id, starting fresh",
			"requested_id", sessionID)
	}

	sess, err := c.store.Create(ctx, agentType)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

// persistTurn appends the (user, assistant) pair atomically, updates
// the thread ref, and refreshes derived state.
func (c *Coordinator) persistTurn(
	ctx context.Context,
	sess *session.Session,
	userMessage, assistantMessage session.Message,
	threadRef string,
) error {
	if err := c.store.AppendMessages(ctx, sess.ID, userMessage, assistantMessage); err != nil {
		return err
	}

	if threadRef != "" && threadRef != sess.ThreadRef {
		if err := c.store.SetThreadRef(ctx, sess.ID, threadRef); err != nil {
			c.logger.Warn("thread ref not stored, next turn replays history",
				"session_id", sess.ID, "error", err)
		}
	}

	c.summaries.Invalidate(sess.ID)
	c.reindex(ctx, sess.ID)
	return nil
}

// reindex refreshes the search document for a session. Search lags the
// store on failure rather than failing the turn.
func (c *Coordinator) reindex(ctx context.Context, sessionID string) {
	if c.search == nil {
		return
	}
	sess, err := c.store.Get(ctx, sessionID)
	if err != nil {
		c.logger.Warn("session not reindexed", "session_id", sessionID, "error", err)
		return
	}
	if err := c.search.Index(sess); err != nil {
		c.logger.Warn("session not reindexed", "session_id", sessionID, "error", err)
	}
}

func transcriptMessages(messages []session.Message) []providers.Message {
	out := make([]providers.Message, 0, len(messages)+1)
	for _, msg := range messages {
		out = append(out, providers.Message{
			Role:      providers.Role(msg.Role),
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		})
	}
	return out
}

func (c *Coordinator) logPhase(sessionID string, phase turnPhase) {
	c.logger.Debug("turn phase", "session_id", sessionID, "phase", phase)
}
