package rollout

import (
	"context"
	"fmt"
	"time"

	"github.com/codex-web-agent/agent/internal/protocol"
)

// Recorder persists RolloutItems before they become visible to any
// consumer. Every Record call must complete before the caller publishes
// the corresponding event — the "persisted-before-visible" invariant — so
// a crash can never lose an event a subscriber has already seen.
type Recorder struct {
	store            *Store
	rolloutID        string
	ttl              time.Duration
	showRawReasoning bool
}

// NewRecorder starts (or resumes) recording for rolloutID against store,
// creating the rollouts row if it doesn't already exist. ttl <= 0 makes the
// rollout permanent (expires_at left unset); showRawReasoning controls
// whether ReasoningItems are persisted at all, per the frozen policy table.
func NewRecorder(ctx context.Context, store *Store, rolloutID, model string, ttl time.Duration, showRawReasoning bool, now time.Time) (*Recorder, error) {
	var expiresAt *time.Time
	if ttl > 0 {
		t := now.Add(ttl)
		expiresAt = &t
	}
	if err := store.CreateRollout(ctx, rolloutID, model, expiresAt, now); err != nil {
		return nil, err
	}
	return &Recorder{store: store, rolloutID: rolloutID, ttl: ttl, showRawReasoning: showRawReasoning}, nil
}

// RecordSessionMeta writes the one-time session-start item. Callers should
// invoke this before recording anything else for the rollout.
func (r *Recorder) RecordSessionMeta(ctx context.Context, item protocol.SessionMetaRolloutItem, now time.Time) error {
	return r.record(ctx, item, false, now)
}

// RecordTurnContext writes the resolved config in effect at the start of a
// turn.
func (r *Recorder) RecordTurnContext(ctx context.Context, item protocol.TurnContextRolloutItem, now time.Time) error {
	return r.record(ctx, item, false, now)
}

// RecordResponseItem persists item if the persistence policy calls for it;
// a no-op otherwise. A ReasoningItem is only persisted when this recorder
// was opened with showRawReasoning.
func (r *Recorder) RecordResponseItem(ctx context.Context, item protocol.ResponseItem, now time.Time) error {
	if _, ok := item.(protocol.ReasoningItem); ok && !r.showRawReasoning {
		return nil
	}
	if !ShouldPersistResponseItem(item) {
		return nil
	}
	return r.record(ctx, protocol.ResponseRolloutItem{Item: item}, isUserMessage(item), now)
}

// RecordEvent persists msg if the persistence policy calls for it; a no-op
// otherwise. Called before the event is handed to any subscriber.
func (r *Recorder) RecordEvent(ctx context.Context, msg protocol.EventMsg, now time.Time) error {
	if !ShouldPersistEvent(msg) {
		return nil
	}
	return r.record(ctx, protocol.EventRolloutItem{Msg: msg}, false, now)
}

// RecordCompacted persists a compaction boundary. Always persisted,
// regardless of showRawReasoning or any other policy flag.
func (r *Recorder) RecordCompacted(ctx context.Context, summary string, now time.Time) error {
	return r.record(ctx, protocol.CompactedRolloutItem{Summary: summary}, false, now)
}

func isUserMessage(item protocol.ResponseItem) bool {
	msg, ok := item.(protocol.MessageItem)
	return ok && msg.Role == "user"
}

func (r *Recorder) record(ctx context.Context, item protocol.RolloutItem, isUserEvent bool, now time.Time) error {
	payload, err := Encode(item)
	if err != nil {
		return err
	}
	_, err = r.store.AppendItem(ctx, r.rolloutID, item.Kind(), payload, isUserEvent, now)
	if err != nil {
		return fmt.Errorf("rollout: record %s: %w", item.Kind(), err)
	}
	return nil
}

// ReplayResponseItems loads every ResponseItem recorded for this rollout,
// in order, for rebuilding conversation history after a restart. A
// "compacted" row resets the accumulator to its single summary message,
// discarding every ResponseItem recorded before it — a resumed session
// must see the same post-compaction history the original session did, not
// the full pre-compaction transcript.
func (r *Recorder) ReplayResponseItems(ctx context.Context) ([]protocol.ResponseItem, error) {
	stored, err := r.store.ListItems(ctx, r.rolloutID)
	if err != nil {
		return nil, err
	}
	var items []protocol.ResponseItem
	for _, s := range stored {
		switch s.Kind {
		case (protocol.ResponseRolloutItem{}).Kind():
			decoded, err := Decode(s.Payload)
			if err != nil {
				return nil, err
			}
			wrapped, ok := decoded.(protocol.ResponseRolloutItem)
			if !ok {
				continue
			}
			items = append(items, wrapped.Item)
		case (protocol.CompactedRolloutItem{}).Kind():
			decoded, err := Decode(s.Payload)
			if err != nil {
				return nil, err
			}
			compacted, ok := decoded.(protocol.CompactedRolloutItem)
			if !ok {
				continue
			}
			items = []protocol.ResponseItem{protocol.MessageItem{
				Role:    "assistant",
				Content: []protocol.ContentItem{{Type: "output_text", Text: compacted.Summary}},
			}}
		}
	}
	return items, nil
}

// CleanupExpired deletes every rollout (across the whole store, not just
// this one) whose stored expires_at has passed now. Permanent rollouts
// (ttl <= 0 at creation, expires_at left unset) are never selected.
func (r *Recorder) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.store.DeleteExpired(ctx, now)
}
