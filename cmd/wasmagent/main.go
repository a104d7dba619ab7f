//go:build js && wasm

// Command wasmagent is the actual browser-resident entry point: compiled to
// WebAssembly and loaded by the extension's background service worker, it
// wires the real JSBridge in place of agentcli's FakeBridge and exposes the
// agent's submission queue to JavaScript as globalThis.codexAgent:
//
//	codexAgent.submit(submissionJSON)       queue one Submission
//	codexAgent.events(callback)             receive every Event as JSON
//	codexAgent.shutdown()                   submit a Shutdown op
//
// Configuration (API key, provider, model, approval policy, session id,
// rollout path) is read once at startup from window.__agentConfig, which
// the background script sets before instantiating the module. The tab URL
// and title are read from the JSBridge instead.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"syscall/js"
	"time"

	"github.com/google/uuid"

	"github.com/codex-web-agent/agent/internal/agent"
	"github.com/codex-web-agent/agent/internal/config"
	"github.com/codex-web-agent/agent/internal/instructions"
	"github.com/codex-web-agent/agent/internal/model"
	"github.com/codex-web-agent/agent/internal/protocol"
	"github.com/codex-web-agent/agent/internal/rollout"
	"github.com/codex-web-agent/agent/internal/session"
	"github.com/codex-web-agent/agent/internal/tools"
	"github.com/codex-web-agent/agent/internal/tools/browser"
)

// startupConfig mirrors the shape of window.__agentConfig.
type startupConfig struct {
	Provider       string `json:"provider"`
	APIKey         string `json:"apiKey"`
	Model          string `json:"model"`
	ApprovalPolicy string `json:"approvalPolicy"`
	SessionID      string `json:"sessionId"`
	RolloutPath    string `json:"rolloutPath"`
}

func main() {
	cfgJS := js.Global().Get("__agentConfig")
	if cfgJS.IsUndefined() {
		panic("wasmagent: window.__agentConfig is not set")
	}
	var cfg startupConfig
	if err := json.Unmarshal([]byte(js.Global().Get("JSON").Call("stringify", cfgJS).String()), &cfg); err != nil {
		panic(fmt.Sprintf("wasmagent: decode __agentConfig: %v", err))
	}

	a, err := buildAgent(cfg)
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	go a.Run(ctx)

	submit := js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) == 0 {
			return nil
		}
		var sub wireSubmission
		if err := json.Unmarshal([]byte(args[0].String()), &sub); err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		a.Submit(sub.toSubmission())
		return nil
	})

	events := js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) == 0 {
			return nil
		}
		callback := args[0]
		a.Subscribe(func(evt protocol.Event) {
			payload, err := json.Marshal(evt)
			if err != nil {
				return
			}
			callback.Invoke(string(payload))
		})
		return nil
	})

	shutdown := js.FuncOf(func(this js.Value, args []js.Value) any {
		a.Submit(protocol.Submission{ID: uuid.NewString(), Op: protocol.Shutdown{}})
		return nil
	})

	codexAgent := js.Global().Get("Object").New()
	codexAgent.Set("submit", submit)
	codexAgent.Set("events", events)
	codexAgent.Set("shutdown", shutdown)
	js.Global().Set("codexAgent", codexAgent)

	select {} // keep the wasm instance alive; the extension owns the lifecycle
}

func buildAgent(cfg startupConfig) (*agent.Agent, error) {
	sessCfg := config.DefaultSessionConfig()
	sessCfg.ApprovalPolicy = cfg.ApprovalPolicy
	sessCfg.Model.Provider = cfg.Provider
	if cfg.Model != "" {
		sessCfg.Model.Model = cfg.Model
	}

	profiles := config.NewDefaultRegistry()
	resolved := profiles.Resolve(cfg.Provider, sessCfg.Model.Model)
	if resolved.ContextWindow != nil {
		sessCfg.Model.ContextWindow = *resolved.ContextWindow
	}

	var client model.Client
	switch cfg.Provider {
	case "anthropic":
		client = model.NewAnthropicClient(cfg.APIKey, sessCfg.Model.Model, int64(sessCfg.Model.MaxTokens))
	default:
		client = model.NewOpenAIClient(cfg.APIKey, sessCfg.Model.Model)
	}

	bridge := browser.NewJSBridge()
	ctx := context.Background()
	tabURL, _ := bridge.CurrentURL(ctx)
	tabTitle, _ := bridge.CurrentTitle(ctx)

	toolRegistry := tools.NewRegistry(tools.DefaultTimeout)
	if err := browser.Register(toolRegistry, bridge, sessCfg.Tools); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}

	merged := instructions.MergeInstructions(instructions.MergeInput{
		ApprovalPolicy: sessCfg.ApprovalPolicy,
		TabURL:         tabURL,
	})
	fullInstructions := merged.Base + "\n\n" + merged.Developer
	if merged.User != "" {
		fullInstructions += "\n\n" + merged.User
	}
	if resolved.PromptSuffix != "" {
		fullInstructions += "\n\n" + resolved.PromptSuffix
	}
	_ = tabTitle

	rolloutPath := cfg.RolloutPath
	if rolloutPath == "" {
		rolloutPath = ":memory:"
	}
	store, err := rollout.Open(rolloutPath)
	if err != nil {
		return nil, fmt.Errorf("open rollout store: %w", err)
	}

	specs := toolRegistry.Specs()
	toolSpecs := make([]protocol.ToolSpec, 0, len(specs))
	for _, s := range specs {
		toolSpecs = append(toolSpecs, s.ToWire())
	}

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = tabURL
	}
	sess, err := session.New(ctx, sessionID, sessCfg, client, toolRegistry, store, fullInstructions, toolSpecs, time.Now(), slog.Default())
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	return agent.New(sess, time.Now), nil
}

// wireSubmission is the JSON shape codexAgent.submit accepts from the
// extension's popup/background scripts: a discriminated union keyed by
// "op", flattened for easy construction on the JS side.
type wireSubmission struct {
	ID   string          `json:"id"`
	Op   string          `json:"op"`
	Text string          `json:"text,omitempty"`
	ApprovalID string    `json:"approvalId,omitempty"`
	Decision   string    `json:"decision,omitempty"`
	Model      string    `json:"model,omitempty"`
	ApprovalPolicy string `json:"approvalPolicy,omitempty"`
}

func (w wireSubmission) toSubmission() protocol.Submission {
	switch w.Op {
	case "user_turn":
		return protocol.Submission{ID: w.ID, Op: protocol.UserTurn{
			Items:     []protocol.InputItem{protocol.TextInput{Text: w.Text}},
			Overrides: protocol.TurnConfig{Model: w.Model, ApprovalPolicy: w.ApprovalPolicy},
		}}
	case "exec_approval":
		return protocol.Submission{ID: w.ID, Op: protocol.ExecApproval{ApprovalID: w.ApprovalID, Decision: protocol.Decision(w.Decision)}}
	case "patch_approval":
		return protocol.Submission{ID: w.ID, Op: protocol.PatchApproval{ApprovalID: w.ApprovalID, Decision: protocol.Decision(w.Decision)}}
	case "interrupt":
		return protocol.Submission{ID: w.ID, Op: protocol.Interrupt{}}
	case "compact":
		return protocol.Submission{ID: w.ID, Op: protocol.Compact{}}
	case "shutdown":
		return protocol.Submission{ID: w.ID, Op: protocol.Shutdown{}}
	default:
		return protocol.Submission{ID: w.ID, Op: protocol.UserInput{Items: []protocol.InputItem{protocol.TextInput{Text: w.Text}}}}
	}
}
