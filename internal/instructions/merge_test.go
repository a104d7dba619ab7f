package instructions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- GetBaseInstructions tests ---

func TestGetBaseInstructions_Default(t *testing.T) {
	result := GetBaseInstructions("")
	assert.Contains(t, result, "browser agent")
	assert.Contains(t, result, "Task execution")
}

func TestGetBaseInstructions_Override(t *testing.T) {
	result := GetBaseInstructions("custom system prompt")
	assert.Equal(t, "custom system prompt", result)
}

// --- ComposeDeveloperInstructions tests ---

func TestComposeDeveloperInstructions_WithURLAndPolicy(t *testing.T) {
	result := ComposeDeveloperInstructions("unless-trusted", "https://example.com/cart")
	assert.Contains(t, result, "https://example.com/cart")
	assert.Contains(t, result, "unless-trusted")
}

func TestComposeDeveloperInstructions_NeverPolicy(t *testing.T) {
	result := ComposeDeveloperInstructions("never", "https://example.com")
	assert.Contains(t, result, "full-auto")
}

func TestComposeDeveloperInstructions_EmptyPolicy(t *testing.T) {
	result := ComposeDeveloperInstructions("", "https://example.com")
	assert.Contains(t, result, "https://example.com")
	assert.NotContains(t, result, "Approval policy")
}

func TestComposeDeveloperInstructions_Empty(t *testing.T) {
	result := ComposeDeveloperInstructions("", "")
	assert.Empty(t, result)
}

// --- BuildPageContext tests ---

func TestBuildPageContext_Basic(t *testing.T) {
	result := BuildPageContext("https://example.com/cart", "Shopping Cart")
	assert.Contains(t, result, "<url>https://example.com/cart</url>")
	assert.Contains(t, result, "<title>Shopping Cart</title>")
	assert.Contains(t, result, "<page_context>")
}

func TestBuildPageContext_DefaultTitle(t *testing.T) {
	result := BuildPageContext("https://example.com", "")
	assert.Contains(t, result, "<title>(untitled)</title>")
}

// --- MergeInstructions tests ---

func TestMergeInstructions_SiteInstructionsIncluded(t *testing.T) {
	result := MergeInstructions(MergeInput{
		SiteInstructions: "site docs",
	})
	assert.Contains(t, result.User, "site docs")
}

func TestMergeInstructions_PersonalInstructionsAlwaysAppended(t *testing.T) {
	result := MergeInstructions(MergeInput{
		SiteInstructions:         "site docs",
		UserPersonalInstructions: "personal prefs",
	})
	assert.Contains(t, result.User, "site docs")
	assert.Contains(t, result.User, "personal prefs")
}

func TestMergeInstructions_PersonalInstructionsAloneWhenNoDocs(t *testing.T) {
	result := MergeInstructions(MergeInput{
		UserPersonalInstructions: "personal prefs",
	})
	assert.Equal(t, "personal prefs", result.User)
}

func TestMergeInstructions_BaseOverride(t *testing.T) {
	result := MergeInstructions(MergeInput{
		BaseOverride: "custom base",
	})
	assert.Equal(t, "custom base", result.Base)
}

func TestMergeInstructions_DefaultBase(t *testing.T) {
	result := MergeInstructions(MergeInput{})
	assert.Contains(t, result.Base, "browser agent")
}

func TestMergeInstructions_DeveloperPopulated(t *testing.T) {
	result := MergeInstructions(MergeInput{
		ApprovalPolicy: "never",
		TabURL:         "https://example.com/cart",
	})
	assert.Contains(t, result.Developer, "https://example.com/cart")
	assert.Contains(t, result.Developer, "full-auto")
}

func TestMergeInstructions_AllEmpty(t *testing.T) {
	result := MergeInstructions(MergeInput{})
	assert.NotEmpty(t, result.Base)
	assert.Empty(t, result.Developer)
	assert.Empty(t, result.User)
}
