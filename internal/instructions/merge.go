package instructions

import "strings"

// MergeInput collects all instruction sources for merging.
type MergeInput struct {
	// BaseOverride replaces the default base system prompt if non-empty.
	BaseOverride string

	// SiteInstructions contains per-origin instructions configured by the
	// user for the active tab's origin (the browser analog of a project
	// doc). Empty if none configured for this origin.
	SiteInstructions string

	// UserPersonalInstructions contains user preferences stored in the
	// extension's own settings. Always appended if non-empty.
	UserPersonalInstructions string

	// ApprovalPolicy is the session's approval policy ("never", "unless-trusted", "on-failure").
	ApprovalPolicy string

	// TabURL is the active tab's URL.
	TabURL string
}

// MergedInstructions is the result of merging all instruction sources.
type MergedInstructions struct {
	// Base is the core system prompt (sent as system message).
	Base string

	// Developer contains active-tab context and approval policy
	// (sent as developer message).
	Developer string

	// User contains site instructions and personal preferences
	// (appended to system message or sent as user context).
	User string
}

// MergeInstructions combines all instruction sources into the three-tier
// instruction hierarchy (Base, Developer, User).
//
// Merge rules:
//   - Base: GetBaseInstructions(BaseOverride)
//   - Developer: ComposeDeveloperInstructions(ApprovalPolicy, TabURL)
//   - User: SiteInstructions + UserPersonalInstructions (both appended if present)
func MergeInstructions(input MergeInput) MergedInstructions {
	base := GetBaseInstructions(input.BaseOverride)
	developer := ComposeDeveloperInstructions(input.ApprovalPolicy, input.TabURL)

	var userParts []string
	if input.SiteInstructions != "" {
		userParts = append(userParts, input.SiteInstructions)
	}
	if input.UserPersonalInstructions != "" {
		userParts = append(userParts, input.UserPersonalInstructions)
	}
	user := strings.Join(userParts, "\n\n")

	return MergedInstructions{
		Base:      base,
		Developer: developer,
		User:      user,
	}
}
