package config

import "regexp"

// Profile is a single layer in the provider/model resolution chain. Nil
// pointer fields mean "inherit from the parent layer"; non-nil means
// "override".
type Profile struct {
	// Provider matches a provider name ("openai", "anthropic"). Empty
	// string means this is the default profile (matches everything).
	Provider string

	// ModelPattern is a regexp matched against the model name. Empty
	// string means this profile applies to every model for Provider.
	ModelPattern string

	PromptSuffix  string
	Temperature   *float64
	MaxTokens     *int
	ContextWindow *int
	ToolsDisable  []string
}

// Resolved is a fully merged profile, ready to apply on top of
// DefaultSessionConfig.
type Resolved struct {
	PromptSuffix  string
	Temperature   *float64
	MaxTokens     *int
	ContextWindow *int
	ToolsDisable  []string
}

// Registry holds ordered profiles and resolves them against a
// provider/model pair. Built with an explicit constructor and passed
// around by value/pointer; there is no package-level singleton.
type Registry struct {
	profiles []Profile
}

// NewRegistry builds a registry from the given profiles plus the built-in
// default layer. Profiles are applied in the order given, each merged on
// top of the previous.
func NewRegistry(profiles ...Profile) *Registry {
	return &Registry{profiles: append([]Profile{defaultProfile}, profiles...)}
}

// NewDefaultRegistry returns a registry populated with the built-in
// provider profiles (openai, anthropic) plus the default layer.
func NewDefaultRegistry() *Registry {
	return NewRegistry(openAIProfile, anthropicProfile)
}

// Resolve walks the registry, merging every profile whose Provider/Model
// pattern matches, in registration order.
func (r *Registry) Resolve(provider, model string) Resolved {
	merged := Profile{}
	for _, p := range r.profiles {
		if !matches(p, provider, model) {
			continue
		}
		merged = merge(merged, p)
	}
	return Resolved{
		PromptSuffix:  merged.PromptSuffix,
		Temperature:   merged.Temperature,
		MaxTokens:     merged.MaxTokens,
		ContextWindow: merged.ContextWindow,
		ToolsDisable:  merged.ToolsDisable,
	}
}

func matches(p Profile, provider, model string) bool {
	if p.Provider == "" && p.ModelPattern == "" {
		return true
	}
	if p.Provider != "" && p.Provider != provider {
		return false
	}
	if p.ModelPattern == "" {
		return true
	}
	ok, err := regexp.MatchString(p.ModelPattern, model)
	return err == nil && ok
}

func merge(base, overlay Profile) Profile {
	result := base
	if overlay.PromptSuffix != "" {
		if result.PromptSuffix != "" {
			result.PromptSuffix += "\n\n" + overlay.PromptSuffix
		} else {
			result.PromptSuffix = overlay.PromptSuffix
		}
	}
	if overlay.Temperature != nil {
		result.Temperature = overlay.Temperature
	}
	if overlay.MaxTokens != nil {
		result.MaxTokens = overlay.MaxTokens
	}
	if overlay.ContextWindow != nil {
		result.ContextWindow = overlay.ContextWindow
	}
	if overlay.ToolsDisable != nil {
		result.ToolsDisable = append(append([]string{}, result.ToolsDisable...), overlay.ToolsDisable...)
	}
	return result
}

// defaultProfile is the base layer applied before any provider-specific
// profile.
var defaultProfile = Profile{}

// openAIProfile is the provider-wide profile for OpenAI models.
var openAIProfile = Profile{
	Provider:     "openai",
	PromptSuffix: "Prefer the Responses API streaming shape: emit reasoning summaries before the final message when available.",
}

// anthropicProfile is the provider-wide profile for Anthropic models.
var anthropicProfile = Profile{
	Provider:     "anthropic",
	PromptSuffix: "When using tools, prefer sequential calls when results depend on each other. Use parallel tool calls only for independent operations.",
}
