package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codex-web-agent/agent/internal/config"
	"github.com/codex-web-agent/agent/internal/model"
	"github.com/codex-web-agent/agent/internal/protocol"
	"github.com/codex-web-agent/agent/internal/rollout"
	"github.com/codex-web-agent/agent/internal/tools"
	"github.com/codex-web-agent/agent/internal/turn"
)

// Listener receives every Event a session produces, in persisted order.
type Listener func(protocol.Event)

// Session is one browser-extension conversation: its persistent turn
// context, history, the one turn that may be running at a time, and the
// recorder that persists everything before a Listener sees it.
type Session struct {
	id       string
	cfg      config.SessionConfig
	client   model.Client
	manager  *turn.Manager
	recorder *rollout.Recorder
	history  History
	log      *slog.Logger

	base turn.Context

	mu        sync.Mutex
	listeners []Listener
	active    turn.ActiveTurn
}

// New builds a session from its resolved configuration, replaying history
// from rolloutID if the store already has rows for it. A SessionMeta item
// is recorded only when the rollout has no items yet, so a resumed rollout
// keeps the single SessionMeta it was created with. A nil logger
// defaults to slog.Default(), matching the harness's own logger-per-
// component wiring rather than reaching for a package-level global.
func New(ctx context.Context, id string, cfg config.SessionConfig, client model.Client, registry *tools.Registry, store *rollout.Store, instructions string, toolSpecs []protocol.ToolSpec, now time.Time, log *slog.Logger) (*Session, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("session_id", id)

	rec, err := rollout.NewRecorder(ctx, store, id, cfg.Model.Model, cfg.Rollout.TTL, cfg.ShowRawAgentReasoning, now)
	if err != nil {
		return nil, fmt.Errorf("session: open recorder: %w", err)
	}

	replayed, err := rec.ReplayResponseItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: replay history: %w", err)
	}
	log.Debug("session opened", "replayed_items", len(replayed), "model", cfg.Model.Model)

	s := &Session{
		id:       id,
		cfg:      cfg,
		client:   client,
		manager:  &turn.Manager{Client: client, Registry: registry, Log: log},
		recorder: rec,
		history:  NewInMemoryHistory(replayed),
		log:      log,
		base:     turn.NewContext(cfg, instructions, toolSpecs, id),
	}

	existing, err := store.ListItems(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session: list rollout items: %w", err)
	}
	if len(existing) > 0 {
		return s, nil
	}
	if err := rec.RecordSessionMeta(ctx, protocol.SessionMetaRolloutItem{
		SessionID: id,
		Model:     cfg.Model.Model,
		CreatedAt: now.UTC().Format(time.RFC3339),
	}, now); err != nil {
		return nil, err
	}
	return s, nil
}

// Subscribe registers a listener for every event this session emits.
func (s *Session) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Session) notify(evt protocol.Event) {
	s.mu.Lock()
	listeners := append([]Listener{}, s.listeners...)
	s.mu.Unlock()
	for _, l := range listeners {
		l(evt)
	}
}

// publish persists evt (per policy) and only then hands it to subscribers,
// upholding the persisted-before-visible invariant.
func (s *Session) publish(ctx context.Context, submitID string, msg protocol.EventMsg, now time.Time) error {
	if err := s.recorder.RecordEvent(ctx, msg, now); err != nil {
		return err
	}
	s.notify(protocol.Event{ID: submitID, Msg: msg})
	return nil
}

// RunTurn executes a UserTurn submission: it resolves the turn's context
// (applying any per-turn overrides), runs the model/tool loop, persists
// every produced ResponseItem into history, and emits TaskStarted /
// TaskComplete around it.
func (s *Session) RunTurn(ctx context.Context, submitID string, items []protocol.InputItem, overrides protocol.TurnConfig, now time.Time) error {
	tc := s.base.WithOverrides(overrides)

	if err := s.recorder.RecordTurnContext(ctx, protocol.TurnContextRolloutItem{
		Model:          tc.Model,
		ApprovalPolicy: tc.ApprovalPolicy,
	}, now); err != nil {
		return err
	}

	for _, item := range items {
		msgItem := inputToMessage(item)
		s.history.AddItem(msgItem)
		if err := s.recorder.RecordResponseItem(ctx, msgItem, now); err != nil {
			return err
		}
	}

	state := turn.NewState()
	turnCtx, cancel := context.WithCancel(ctx)
	s.active.Start(submitID, state, cancel)
	defer s.active.Clear(submitID)
	defer cancel()

	if err := s.publish(ctx, submitID, protocol.TaskStarted{ModelContextWindow: s.cfg.Model.ContextWindow}, now); err != nil {
		return err
	}

	emit := func(msg protocol.EventMsg) error {
		return s.publish(ctx, submitID, msg, now)
	}
	compactHook := newCompactHook(ctx, submitID, s, state, now)

	produced, compactedBase, err := s.manager.RunTurn(turnCtx, tc, s.history.ForPrompt(), state, emit, compactHook)
	if compactedBase != nil {
		s.history.Replace(compactedBase)
	}
	for _, item := range produced {
		s.history.AddItem(item)
		if rerr := s.recorder.RecordResponseItem(ctx, item, now); rerr != nil {
			return rerr
		}
	}

	if err != nil {
		var cancelled turn.TaskCancelled
		if errors.As(err, &cancelled) {
			s.log.Info("turn cancelled", "submission_id", submitID)
			_ = s.publish(ctx, submitID, protocol.TurnAborted{Reason: "UserInterrupt"}, now)
			return err
		}
		s.log.Error("turn failed", "submission_id", submitID, "error", err)
		_ = s.publish(ctx, submitID, protocol.Error{Message: err.Error()}, now)
		_ = s.publish(ctx, submitID, protocol.TaskFailed{Message: err.Error()}, now)
		return err
	}

	if perr := s.publish(ctx, submitID, protocol.TaskComplete{LastAgentMessage: lastAgentMessage(produced)}, now); perr != nil {
		return perr
	}

	if !s.cfg.DisableSuggestions {
		if text, ok := GenerateSuggestion(ctx, s.client, s.history.ForPrompt()); ok {
			_ = s.publish(ctx, submitID, protocol.Notification{Category: "suggestion", Message: text}, now)
		}
	}
	return nil
}

// ForceCompact runs history compaction unconditionally (ignoring the
// auto-compact threshold), used to service an explicit Compact submission.
func (s *Session) ForceCompact(ctx context.Context, submitID string, now time.Time) error {
	if err := s.publish(ctx, submitID, protocol.CompactionStarted{}, now); err != nil {
		return err
	}
	summary, err := Compact(ctx, s.client, s.history)
	if err != nil {
		_ = s.publish(ctx, submitID, protocol.Error{Message: fmt.Sprintf("compaction failed: %v", err)}, now)
		return err
	}
	// Compact replaces the in-memory history outright; the recorder's log
	// is append-only, so the swap is recorded as a Compacted rollout item
	// rather than rewriting history. A replay after this point starts from
	// the summary, not the pre-compaction transcript.
	if err := s.recorder.RecordCompacted(ctx, summary, now); err != nil {
		return err
	}
	return s.publish(ctx, submitID, protocol.CompactionComplete{Summary: summary}, now)
}

// Interrupt cancels whatever turn is currently running for this session, if
// any, aborting all pending approvals too.
func (s *Session) Interrupt() {
	s.active.Cancel()
}

// ResolveApproval delivers decision to the pending approval registered
// under approvalID on the currently active turn, if any.
func (s *Session) ResolveApproval(approvalID string, decision protocol.Decision) bool {
	state := s.active.Current()
	if state == nil {
		return false
	}
	return state.Approvals().Resolve(approvalID, decision)
}

func inputToMessage(item protocol.InputItem) protocol.MessageItem {
	switch it := item.(type) {
	case protocol.TextInput:
		return protocol.MessageItem{Role: "user", Content: []protocol.ContentItem{{Type: "input_text", Text: it.Text}}}
	case protocol.ImageInput:
		return protocol.MessageItem{Role: "user", Content: []protocol.ContentItem{{Type: "input_image", URL: it.URL}}}
	case protocol.PageContextInput:
		return protocol.MessageItem{Role: "user", Content: []protocol.ContentItem{{Type: "input_text", Text: fmt.Sprintf("Active tab: %s (%s)", it.URL, it.Title)}}}
	default:
		return protocol.MessageItem{Role: "user", Content: []protocol.ContentItem{{Type: "input_text", Text: ""}}}
	}
}

func lastAgentMessage(items []protocol.ResponseItem) string {
	for i := len(items) - 1; i >= 0; i-- {
		msg, ok := items[i].(protocol.MessageItem)
		if !ok || msg.Role != "assistant" {
			continue
		}
		for _, c := range msg.Content {
			if c.Type == "output_text" && c.Text != "" {
				return c.Text
			}
		}
	}
	return ""
}
