package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codex-web-agent/agent/internal/model"
	"github.com/codex-web-agent/agent/internal/protocol"
	"github.com/codex-web-agent/agent/internal/sse"
	"github.com/codex-web-agent/agent/internal/turn"
)

const compactionInstructions = "Summarize the conversation above into a compact recap that preserves " +
	"the user's goals, decisions made, and any page state the agent needs to remember. " +
	"Reply with the summary only, no preamble."

// ErrContextStillExceeded is returned by a CompactHook when compaction (and
// its drop-oldest-turns fallback) could not bring the conversation back
// under the effective auto-compact limit. RunTurn aborts the turn on this
// error rather than looping forever against a context it can never shrink
// enough.
var ErrContextStillExceeded = errors.New("session: context cannot be reduced enough by compaction")

// compactItems asks the model to summarize items into a single recap
// string. Returns an error if the stream fails or produces nothing.
func compactItems(ctx context.Context, client model.Client, items []protocol.ResponseItem) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("session: nothing to compact")
	}

	prompt := protocol.Prompt{
		Instructions: compactionInstructions,
		Input:        items,
	}

	var summary string
	err := client.Stream(ctx, prompt, func(ev sse.ResponseEvent) error {
		if delta, ok := ev.(sse.OutputTextDelta); ok {
			summary += delta.Delta
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("session: compaction stream failed: %w", err)
	}
	if summary == "" {
		return "", fmt.Errorf("session: compaction produced no summary")
	}
	return summary, nil
}

// summaryMessage wraps a compaction summary as the single assistant
// message that replaces everything compacted away.
func summaryMessage(summary string) protocol.ResponseItem {
	return protocol.MessageItem{
		Role:    "assistant",
		Content: []protocol.ContentItem{{Type: "output_text", Text: summary}},
	}
}

// estimateTokens gives the same cheap 4-characters-per-token estimate as
// InMemoryHistory.EstimateTokenCount, but over an arbitrary item slice
// rather than a History's own internal state — used by CompactHook, which
// operates on a turn-in-progress snapshot (history plus whatever the turn
// has produced so far) rather than the committed History.
func estimateTokens(items []protocol.ResponseItem) int {
	chars := 0
	for _, item := range items {
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

func turnCount(items []protocol.ResponseItem) int {
	count := 0
	for _, item := range items {
		if msg, ok := item.(protocol.MessageItem); ok && msg.Role == "user" {
			count++
		}
	}
	return count
}

// dropOldestUserTurns returns the suffix of items starting at the keep-th
// most recent user turn, the pure-slice equivalent of
// InMemoryHistory.DropOldestUserTurns used as compaction's fallback when
// summarization itself fails.
func dropOldestUserTurns(items []protocol.ResponseItem, keep int) []protocol.ResponseItem {
	if keep <= 0 {
		return items
	}
	userCount := 0
	cutIndex := 0
	for i := len(items) - 1; i >= 0; i-- {
		if msg, ok := items[i].(protocol.MessageItem); ok && msg.Role == "user" {
			userCount++
			if userCount == keep {
				cutIndex = i
				break
			}
		}
	}
	if cutIndex == 0 {
		return items
	}
	return items[cutIndex:]
}

// effectiveAutoCompactLimit clamps the configured auto-compaction token
// threshold to 90% of the model's context window, so compaction always
// triggers with enough headroom left for the model's own response.
func effectiveAutoCompactLimit(configured, contextWindow int) int {
	if configured <= 0 {
		return 0
	}
	limit := contextWindow * 9 / 10
	if limit > 0 && limit < configured {
		return limit
	}
	return configured
}

// Compact asks the model to summarize the current history and replaces it
// with a single assistant message carrying that summary, used to service
// an explicit Compact submission (ForceCompact), independent of the
// per-iteration auto-compact hook.
func Compact(ctx context.Context, client model.Client, history History) (string, error) {
	summary, err := compactItems(ctx, client, history.ForPrompt())
	if err != nil {
		return "", err
	}
	history.Replace([]protocol.ResponseItem{summaryMessage(summary)})
	return summary, nil
}

// newCompactHook builds the turn.CompactHook that runs auto-compaction once
// per turn-loop iteration (see turn.Manager.RunTurn): it's a no-op below
// the effective auto-compact limit, summarizes via the model when over it,
// falls back to dropping the oldest turns if summarization itself fails,
// and returns ErrContextStillExceeded if even that fallback can't bring
// the estimate back under the limit. It emits CompactionStarted once over
// the limit. A model summary is persisted as a Compacted rollout item and
// announced with CompactionComplete before returning, so the caller only
// needs to adopt the returned items. The drop-oldest-turns fallback records
// no rollout item and emits no CompactionComplete; a replay of the rollout
// still holds the dropped turns.
func newCompactHook(ctx context.Context, submitID string, s *Session, state *turn.State, now time.Time) turn.CompactHook {
	limit := effectiveAutoCompactLimit(s.cfg.AutoCompactTokenLimit, s.cfg.Model.ContextWindow)
	return func(hookCtx context.Context, items []protocol.ResponseItem) ([]protocol.ResponseItem, bool, error) {
		if limit <= 0 || estimateTokens(items) < limit {
			return nil, false, nil
		}

		state.SetPhase(turn.PhaseCompacting)
		_ = s.publish(ctx, submitID, protocol.CompactionStarted{}, now)

		summary, err := compactItems(hookCtx, s.client, items)
		if err != nil {
			keep := turnCount(items) / 2
			if keep < 2 {
				keep = 2
			}
			kept := dropOldestUserTurns(items, keep)
			if estimateTokens(kept) >= limit {
				return nil, false, ErrContextStillExceeded
			}
			return kept, true, nil
		}

		newItems := []protocol.ResponseItem{summaryMessage(summary)}
		if rerr := s.recorder.RecordCompacted(ctx, summary, now); rerr != nil {
			return nil, false, rerr
		}
		if perr := s.publish(ctx, submitID, protocol.CompactionComplete{Summary: summary}, now); perr != nil {
			return nil, false, perr
		}
		return newItems, true, nil
	}
}
