// Command agentcli is a native, terminal-driven harness for developing and
// manually exercising the agent loop without a browser extension host: it
// wires a FakeBridge in place of real DOM/tab access and drives the agent
// from stdin, one line per turn.
//
// Usage:
//
//	agentcli -m "find the checkout button"   Start a session with an initial message
//	agentcli --provider anthropic            Use Anthropic instead of OpenAI
//	agentcli --rollout ./session.db          Persist/resume from a specific rollout file
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
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

func main() {
	message := flag.String("m", "", "Initial message (otherwise read from stdin first)")
	provider := flag.String("provider", "openai", "Model provider: openai | anthropic")
	modelName := flag.String("model", "", "Model name (defaults per provider)")
	rolloutPath := flag.String("rollout", "rollouts.db", "Path to the rollout sqlite database")
	sessionID := flag.String("session", "dev-session", "Rollout id to create or resume")
	approvalPolicy := flag.String("approval-policy", "unless-trusted", "never | unless-trusted | on-failure")
	tabURL := flag.String("tab-url", "https://example.com/", "Fake active tab URL")
	tabTitle := flag.String("tab-title", "Example Domain", "Fake active tab title")
	logLevel := flag.String("log-level", "warn", "debug | info | warn | error")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)})))

	if err := run(*message, *provider, *modelName, *rolloutPath, *sessionID, *approvalPolicy, *tabURL, *tabTitle); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func run(initialMessage, provider, modelName, rolloutPath, sessionID, approvalPolicy, tabURL, tabTitle string) error {
	cfg := config.DefaultSessionConfig()
	cfg.ApprovalPolicy = approvalPolicy
	cfg.Model.Provider = provider
	if modelName != "" {
		cfg.Model.Model = modelName
	} else if provider == "anthropic" {
		cfg.Model.Model = "claude-3-5-sonnet-latest"
	}

	profiles := config.NewDefaultRegistry()
	resolved := profiles.Resolve(provider, cfg.Model.Model)
	if resolved.Temperature != nil {
		cfg.Model.Temperature = *resolved.Temperature
	}
	if resolved.MaxTokens != nil {
		cfg.Model.MaxTokens = *resolved.MaxTokens
	}
	if resolved.ContextWindow != nil {
		cfg.Model.ContextWindow = *resolved.ContextWindow
	}

	client, err := buildClient(provider, cfg.Model.Model, cfg.Model.MaxTokens)
	if err != nil {
		return err
	}

	bridge := browser.NewFakeBridge(tabURL, tabTitle, map[string]string{
		"#checkout":      "Checkout",
		"#search":        "",
		".product-title": "Wireless Mouse",
	})

	toolRegistry := tools.NewRegistry(tools.DefaultTimeout)
	if err := browser.Register(toolRegistry, bridge, cfg.Tools); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	merged := instructions.MergeInstructions(instructions.MergeInput{
		ApprovalPolicy: cfg.ApprovalPolicy,
		TabURL:         tabURL,
	})
	fullInstructions := merged.Base
	if merged.Developer != "" {
		fullInstructions += "\n\n" + merged.Developer
	}
	if merged.User != "" {
		fullInstructions += "\n\n" + merged.User
	}
	if resolved.PromptSuffix != "" {
		fullInstructions += "\n\n" + resolved.PromptSuffix
	}

	store, err := rollout.Open(rolloutPath)
	if err != nil {
		return fmt.Errorf("open rollout store: %w", err)
	}
	defer store.Close()

	specs := toolRegistry.Specs()
	toolSpecs := make([]protocol.ToolSpec, 0, len(specs))
	for _, s := range specs {
		toolSpecs = append(toolSpecs, s.ToWire())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	sess, err := session.New(ctx, sessionID, cfg, client, toolRegistry, store, fullInstructions, toolSpecs, time.Now(), nil)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	a := agent.New(sess, time.Now)
	a.Subscribe(printEvent)
	a.Subscribe(func(evt protocol.Event) {
		if req, ok := evt.Msg.(protocol.ExecApprovalRequest); ok {
			a.Submit(protocol.Submission{ID: newID(), Op: protocol.ExecApproval{ApprovalID: req.ApprovalID, Decision: protocol.DecisionDenied}})
		}
	})
	go a.Run(ctx)

	scanner := bufio.NewScanner(os.Stdin)
	if initialMessage != "" {
		submitText(a, initialMessage)
	}

	fmt.Println("Type a message and press enter. Ctrl-C to quit.")
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if line == "/compact" {
			a.Submit(protocol.Submission{ID: newID(), Op: protocol.Compact{}})
			continue
		}
		if line == "/interrupt" {
			a.Submit(protocol.Submission{ID: newID(), Op: protocol.Interrupt{}})
			continue
		}
		submitText(a, line)
	}

	a.Submit(protocol.Submission{ID: newID(), Op: protocol.Shutdown{}})
	return nil
}

func submitText(a *agent.Agent, text string) {
	a.Submit(protocol.Submission{
		ID: newID(),
		Op: protocol.UserInput{Items: []protocol.InputItem{protocol.TextInput{Text: text}}},
	})
}

func newID() string {
	return uuid.NewString()
}

func buildClient(provider, modelName string, maxTokens int) (model.Client, error) {
	switch provider {
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}
		return model.NewAnthropicClient(key, modelName, int64(maxTokens)), nil
	default:
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		return model.NewOpenAIClient(key, modelName), nil
	}
}

func printEvent(evt protocol.Event) {
	switch msg := evt.Msg.(type) {
	case protocol.AgentMessageDelta:
		fmt.Print(msg.Delta)
	case protocol.AgentMessage:
		fmt.Println()
	case protocol.ToolCallBegin:
		fmt.Printf("\n[tool] %s %v\n", msg.ToolName, msg.Arguments)
	case protocol.ToolCallEnd:
		if msg.Success {
			fmt.Printf("[tool ok] %s\n", msg.Output)
		} else {
			fmt.Printf("[tool error] %s\n", msg.Error)
		}
	case protocol.ExecApprovalRequest:
		fmt.Printf("\n[approval requested] %s %v (auto-denying in this harness)\n", msg.ToolName, msg.Arguments)
	case protocol.TaskComplete:
		fmt.Println("\n-- turn complete --")
	case protocol.Error:
		fmt.Printf("\n[error] %s\n", msg.Message)
	case protocol.CompactionStarted:
		fmt.Println("\n[compacting...]")
	case protocol.CompactionComplete:
		fmt.Println("[compaction complete]")
	}
}
