package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codex-web-agent/agent/internal/config"
	"github.com/codex-web-agent/agent/internal/tools"
)

// Register adds the enabled built-in tools to reg, wiring each handler
// against bridge. Which tools are added is controlled by cfg.
func Register(reg *tools.Registry, bridge Bridge, cfg config.ToolsConfig) error {
	if cfg.EnableDOMQuery {
		if err := reg.Register(domQuerySpec(), domQueryHandler(bridge)); err != nil {
			return err
		}
	}
	if cfg.EnableDOMMutate {
		if err := reg.Register(domMutateSpec(), domMutateHandler(bridge)); err != nil {
			return err
		}
	}
	if cfg.EnableNavigate {
		if err := reg.Register(navigateSpec(), navigateHandler(bridge)); err != nil {
			return err
		}
	}
	if cfg.EnableFetch {
		if err := reg.Register(fetchSpec(), fetchHandler(bridge)); err != nil {
			return err
		}
	}
	if cfg.EnableStorage {
		if err := reg.Register(storageGetSpec(), storageGetHandler(bridge)); err != nil {
			return err
		}
		if err := reg.Register(storageSetSpec(), storageSetHandler(bridge)); err != nil {
			return err
		}
	}
	if cfg.EnableUpdatePlan {
		if err := reg.Register(updatePlanSpec(), updatePlanHandler()); err != nil {
			return err
		}
	}
	return nil
}

func argString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

func domQuerySpec() tools.Spec {
	return tools.Spec{
		Name:        "dom_query",
		Description: "Query the active page's DOM with a CSS selector and return matching elements.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"selector": map[string]any{"type": "string", "description": "CSS selector to query"},
			},
			"required":             []string{"selector"},
			"additionalProperties": false,
		},
	}
}

func domQueryHandler(b Bridge) tools.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		selector, err := argString(args, "selector")
		if err != nil {
			return "", err
		}
		return b.Query(ctx, selector)
	}
}

func domMutateSpec() tools.Spec {
	return tools.Spec{
		Name:        "dom_mutate",
		Description: "Mutate an element on the active page. Gated by the session's approval policy.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"selector": map[string]any{"type": "string", "description": "CSS selector of the element to mutate"},
				"op":       map[string]any{"type": "string", "enum": []string{"setText", "setAttribute", "remove"}},
				"value":    map[string]any{"type": "string", "description": "new text, attribute value, or unused for remove"},
			},
			"required":             []string{"selector", "op"},
			"additionalProperties": false,
		},
	}
}

func domMutateHandler(b Bridge) tools.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		selector, err := argString(args, "selector")
		if err != nil {
			return "", err
		}
		op, err := argString(args, "op")
		if err != nil {
			return "", err
		}
		value, _ := args["value"].(string)
		return b.Mutate(ctx, selector, op, value)
	}
}

func navigateSpec() tools.Spec {
	return tools.Spec{
		Name:        "navigate",
		Description: "Navigate the active tab to a new URL. Gated by the session's approval policy.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{"type": "string", "description": "destination URL"},
			},
			"required":             []string{"url"},
			"additionalProperties": false,
		},
	}
}

func navigateHandler(b Bridge) tools.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		url, err := argString(args, "url")
		if err != nil {
			return "", err
		}
		if err := b.Navigate(ctx, url); err != nil {
			return "", err
		}
		return fmt.Sprintf("navigated to %s", url), nil
	}
}

func fetchSpec() tools.Spec {
	return tools.Spec{
		Name:        "fetch",
		Description: "Fetch a URL from the page's own context, subject to its CORS and CSP policy.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url":    map[string]any{"type": "string"},
				"method": map[string]any{"type": "string", "enum": []string{"GET", "POST", "PUT", "DELETE"}},
				"body":   map[string]any{"type": "string"},
			},
			"required":             []string{"url"},
			"additionalProperties": false,
		},
	}
}

func fetchHandler(b Bridge) tools.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		url, err := argString(args, "url")
		if err != nil {
			return "", err
		}
		method, _ := args["method"].(string)
		if method == "" {
			method = "GET"
		}
		body, _ := args["body"].(string)
		return b.Fetch(ctx, url, method, body)
	}
}

func storageGetSpec() tools.Spec {
	return tools.Spec{
		Name:        "storage_get",
		Description: "Read a value previously written via storage_set in this session.",
		Parameters: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{"key": map[string]any{"type": "string"}},
			"required":             []string{"key"},
			"additionalProperties": false,
		},
	}
}

func storageGetHandler(b Bridge) tools.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		key, err := argString(args, "key")
		if err != nil {
			return "", err
		}
		return b.StorageGet(ctx, key)
	}
}

func storageSetSpec() tools.Spec {
	return tools.Spec{
		Name:        "storage_set",
		Description: "Persist a key/value pair in extension-scoped storage for the remainder of the session.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key":   map[string]any{"type": "string"},
				"value": map[string]any{"type": "string"},
			},
			"required":             []string{"key", "value"},
			"additionalProperties": false,
		},
	}
}

func storageSetHandler(b Bridge) tools.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		key, err := argString(args, "key")
		if err != nil {
			return "", err
		}
		value, err := argString(args, "value")
		if err != nil {
			return "", err
		}
		if err := b.StorageSet(ctx, key, value); err != nil {
			return "", err
		}
		return "ok", nil
	}
}

// planItem mirrors protocol.PlanItem for decoding the update_plan tool's
// arguments.
type planItem struct {
	Step   string `json:"step"`
	Status string `json:"status"`
}

func updatePlanSpec() tools.Spec {
	return tools.Spec{
		Name:        "update_plan",
		Description: "Report the agent's current self-tracked multi-step plan for this task.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tasks": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"step":   map[string]any{"type": "string"},
							"status": map[string]any{"type": "string", "enum": []string{"pending", "in_progress", "completed"}},
						},
						"required": []string{"step", "status"},
					},
				},
			},
			"required":             []string{"tasks"},
			"additionalProperties": false,
		},
	}
}

// updatePlanHandler just echoes the validated plan back as its own output.
// No protocol.PlanUpdate event is emitted for it; the client sees the plan
// through the ToolCallBegin arguments and this output.
func updatePlanHandler() tools.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		raw, err := json.Marshal(args["tasks"])
		if err != nil {
			return "", err
		}
		var items []planItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return "", err
		}
		return fmt.Sprintf("plan updated (%d steps)", len(items)), nil
	}
}
