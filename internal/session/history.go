// Package session owns conversation history and the top-level Session
// type tying together turn context, active-turn tracking, and rollout
// persistence for one browser-extension conversation.
package session

import (
	"sync"

	"github.com/codex-web-agent/agent/internal/protocol"
)

// History manages the ResponseItems exchanged with the model across turns.
// It's deliberately a narrow interface (rather than a concrete type) so a
// future persisted-history implementation can stand in without touching
// callers.
type History interface {
	AddItem(item protocol.ResponseItem)
	ForPrompt() []protocol.ResponseItem
	EstimateTokenCount() int
	TurnCount() int
	DropOldestUserTurns(keep int) int
	Replace(items []protocol.ResponseItem)
}

// InMemoryHistory is the default History: everything lives in a slice for
// the lifetime of the session and is replayed from the rollout store on
// resume.
type InMemoryHistory struct {
	mu    sync.RWMutex
	items []protocol.ResponseItem
}

// NewInMemoryHistory builds an empty history, optionally seeded from a
// replayed rollout.
func NewInMemoryHistory(seed []protocol.ResponseItem) *InMemoryHistory {
	items := make([]protocol.ResponseItem, len(seed))
	copy(items, seed)
	return &InMemoryHistory{items: items}
}

func (h *InMemoryHistory) AddItem(item protocol.ResponseItem) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, item)
}

func (h *InMemoryHistory) ForPrompt() []protocol.ResponseItem {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]protocol.ResponseItem, len(h.items))
	copy(out, h.items)
	return out
}

// EstimateTokenCount gives a cheap, synchronous estimate (4 characters per
// token) of the history's size; the real count comes back from the
// provider afterwards. The auto-compaction hook does not call it: it
// applies the same estimate to its own snapshot via estimateTokens.
func (h *InMemoryHistory) EstimateTokenCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	chars := 0
	for _, item := range h.items {
		switch it := item.(type) {
		case protocol.MessageItem:
			for _, c := range it.Content {
				chars += len(c.Text)
			}
		case protocol.ReasoningItem:
			chars += len(it.Summary)
		case protocol.FunctionCallItem:
			chars += len(it.Name) + len(it.Arguments)
		case protocol.FunctionCallOutputItem:
			chars += len(it.Output)
		}
	}
	return chars / 4
}

func (h *InMemoryHistory) TurnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, item := range h.items {
		if msg, ok := item.(protocol.MessageItem); ok && msg.Role == "user" {
			count++
		}
	}
	return count
}

// DropOldestUserTurns keeps only the last keep user turns (and anything
// after the cut point), discarding everything older. It is the fallback
// used when structured compaction itself fails. Returns the number of
// items dropped.
func (h *InMemoryHistory) DropOldestUserTurns(keep int) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if keep <= 0 {
		return 0
	}

	userCount := 0
	cutIndex := 0
	for i := len(h.items) - 1; i >= 0; i-- {
		if msg, ok := h.items[i].(protocol.MessageItem); ok && msg.Role == "user" {
			userCount++
			if userCount == keep {
				cutIndex = i
				break
			}
		}
	}
	if cutIndex == 0 {
		return 0
	}

	dropped := cutIndex
	h.items = h.items[cutIndex:]
	return dropped
}

// Replace swaps the entire history contents, used by compaction to install
// a summary message in place of the items it replaced.
func (h *InMemoryHistory) Replace(items []protocol.ResponseItem) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = items
}
