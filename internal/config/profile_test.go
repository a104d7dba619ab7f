package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_Default(t *testing.T) {
	registry := NewDefaultRegistry()
	resolved := registry.Resolve("unknown-provider", "unknown-model")

	assert.Empty(t, resolved.PromptSuffix)
	assert.Nil(t, resolved.Temperature)
	assert.Nil(t, resolved.MaxTokens)
	assert.Nil(t, resolved.ContextWindow)
}

func TestResolve_Anthropic(t *testing.T) {
	registry := NewDefaultRegistry()
	resolved := registry.Resolve("anthropic", "claude-sonnet-4-5-20250929")

	assert.Contains(t, resolved.PromptSuffix, "sequential")
}

func TestResolve_OpenAI(t *testing.T) {
	registry := NewDefaultRegistry()
	resolved := registry.Resolve("openai", "gpt-4o")

	assert.Contains(t, resolved.PromptSuffix, "Responses API")
}

func TestResolve_UnknownProviderNoSuffix(t *testing.T) {
	registry := NewDefaultRegistry()
	resolved := registry.Resolve("local", "llama3")

	assert.Empty(t, resolved.PromptSuffix)
}

func TestResolve_CustomProfileOverridesTemperature(t *testing.T) {
	temp := 0.9
	registry := NewRegistry(Profile{Provider: "openai", Temperature: &temp})

	resolved := registry.Resolve("openai", "gpt-4o")
	if assert.NotNil(t, resolved.Temperature) {
		assert.Equal(t, 0.9, *resolved.Temperature)
	}
}
