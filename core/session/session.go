// Package session owns durable conversation state: the append-only
// message transcript, the active agent type, the provider thread ref,
// and keyword search over past conversations. Sessions survive process
// restarts; the store is the single source of truth and any
// client-supplied history is treated as a cache hint only.
package session

import (
	"time"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single transcript entry. Messages are owned exclusively by
// their session and are never mutated after insertion.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a durable, identified conversation. The transcript is
// append-only: turns add a (user, assistant) pair and nothing ever
// reorders or rewrites earlier messages. A session with zero messages is
// valid only between creation and its first turn.
type Session struct {
	ID             string    `json:"id"`
	AgentType      string    `json:"agent_type"`
	Category       string    `json:"category,omitempty"`
	ThreadRef      string    `json:"thread_ref,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	Messages       []Message `json:"messages"`
}

// Summary is the listing/search projection of a session.
type Summary struct {
	ID             string    `json:"id"`
	AgentType      string    `json:"agent_type"`
	Category       string    `json:"category,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	MessageCount   int       `json:"message_count"`

	// Preview is the leading fragment of the first user message.
	Preview string `json:"preview,omitempty"`

	// Score is the relevance score when the summary came from a
	// relevance-ranked search; zero for recency-ordered listings.
	Score float64 `json:"score,omitempty"`
}

// SummaryOf projects a loaded session into its listing form.
func SummaryOf(sess *Session) *Summary {
	return &Summary{
		ID:             sess.ID,
		AgentType:      sess.AgentType,
		Category:       sess.Category,
		CreatedAt:      sess.CreatedAt,
		LastActivityAt: sess.LastActivityAt,
		MessageCount:   len(sess.Messages),
		Preview:        preview(sess.Messages),
	}
}

const previewLength = 120

func preview(messages []Message) string {
	for _, msg := range messages {
		if msg.Role != RoleUser {
			continue
		}
		if len(msg.Content) <= previewLength {
			return msg.Content
		}
		return msg.Content[:previewLength]
	}
	return ""
}
