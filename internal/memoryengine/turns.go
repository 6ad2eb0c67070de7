package memoryengine

import (
	"sync"
	"time"

	"github.com/agentrt/runtime/internal/models"
)

// TurnStore persists conversation turns, keyed by (channel, user), oldest
// first. Invariant I-C1: timestamps are monotonically non-decreasing
// within a (channel, user) pair — enforced here rather than trusted from
// the caller.
type TurnStore struct {
	mu    sync.RWMutex
	turns map[string][]models.ConversationTurn
}

// NewTurnStore builds an empty turn store.
func NewTurnStore() *TurnStore {
	return &TurnStore{turns: make(map[string][]models.ConversationTurn)}
}

func convKey(channel, userID string) string {
	return channel + "|" + userID
}

// Append records a turn, clamping its timestamp forward if necessary to
// preserve monotonicity.
func (s *TurnStore) Append(channel, userID, role, content string) models.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := convKey(channel, userID)
	now := time.Now().UTC()
	if existing := s.turns[key]; len(existing) > 0 {
		if last := existing[len(existing)-1].Timestamp; last.After(now) {
			now = last
		}
	}
	turn := models.ConversationTurn{
		Key:       key + "|" + now.Format(time.RFC3339Nano),
		Channel:   channel,
		UserID:    userID,
		Role:      role,
		Content:   content,
		Timestamp: now,
	}
	s.turns[key] = append(s.turns[key], turn)
	return turn
}

// List returns the turns for (channel, user), oldest first.
func (s *TurnStore) List(channel, userID string) []models.ConversationTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing := s.turns[convKey(channel, userID)]
	out := make([]models.ConversationTurn, len(existing))
	copy(out, existing)
	return out
}
