// Package session implements the in-process, TTL-scoped conversation store
// of §3 (Session) and §9 ("two-level lock": a map lock for insert/evict, a
// per-session lock for mutation).
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TurnRole is the role of a single conversation turn.
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// Turn is one entry in a session's append-only history.
type Turn struct {
	Role      TurnRole
	Content   string
	Action    string
	Timestamp time.Time
}

// Session is the per-conversation state the Gateway reads and persists on
// every turn.
type Session struct {
	ConversationID     string
	Turns              []Turn
	AccumulatedContext map[string]any
	LastIntent         string
	LastAction         string
	// ArtifactType is set by the Gateway when the last turn produced a
	// renderable artifact. It is restored on a subsequent turn only when
	// that turn is both referential and follow-up-shaped (decided by the
	// Gateway, not this package).
	ArtifactType string
	CreatedAt    time.Time
	LastSeenAt   time.Time
}

// ErrSessionExpired reports that a session existed but its TTL has elapsed.
// Store does not return it: LoadOrCreate treats an expired session as not
// found and creates a fresh one.
var ErrSessionExpired = errors.New("session: expired")

// NewConversationID generates a server-side conversation ID in the
// "conv-<uuid>" format mandated by §3.
func NewConversationID() string {
	return "conv-" + uuid.NewString()
}

// MergeContext merges incoming values into accumulated context, current
// values winning over existing ones per key (last-write-wins, current
// request overwrites session context — §3).
func MergeContext(accumulated, incoming map[string]any) map[string]any {
	out := make(map[string]any, len(accumulated)+len(incoming))
	for k, v := range accumulated {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}

// RecentTurns returns the last n turns, excluding the final one if
// excludeCurrent is true (used when the current user message has already
// been appended before history text is assembled).
func (s Session) RecentTurns(n int, excludeCurrent bool) []Turn {
	turns := s.Turns
	if excludeCurrent && len(turns) > 0 {
		turns = turns[:len(turns)-1]
	}
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
