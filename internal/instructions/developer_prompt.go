package instructions

import "fmt"

// ComposeDeveloperInstructions generates developer-role instructions
// based on the session's approval policy and active tab URL.
func ComposeDeveloperInstructions(approvalPolicy, tabURL string) string {
	var parts []string

	if tabURL != "" {
		parts = append(parts, fmt.Sprintf("Active tab: %s", tabURL))
		parts = append(parts, "All selectors and relative navigation in tool calls apply to this tab unless a tool result indicates it changed.")
	}

	switch approvalPolicy {
	case "never":
		parts = append(parts, "Approval policy: full-auto. All tool calls execute without user confirmation. Proactively verify your own mutations.")
	case "unless-trusted":
		parts = append(parts, "Approval policy: unless-trusted. Read-only tools (dom_query, fetch) execute automatically. Mutating operations (dom_mutate, navigate, storage writes) require user approval unless the user already trusted this tab. Hold off on further mutating verification until the user confirms.")
	case "on-failure":
		parts = append(parts, "Approval policy: on-failure. All tool calls execute automatically. If a tool call fails, the user is asked whether to retry with relaxed restrictions.")
	default:
		// No approval policy info if unset (backward compat)
	}

	if len(parts) == 0 {
		return ""
	}

	result := ""
	for i, p := range parts {
		if i > 0 {
			result += "\n"
		}
		result += p
	}
	return result
}
