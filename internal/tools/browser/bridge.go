// Package browser implements the built-in tool set the agent exposes to the
// model: DOM inspection and mutation, tab navigation, same-origin fetch,
// and extension-scoped storage. All of it is expressed against a Bridge
// interface rather than real browser APIs, so the same tool specs run
// under both cmd/wasmagent (backed by a JS bridge) and cmd/agentcli
// (backed by an in-memory fake for local development and testing).
package browser

import "context"

// Bridge is the seam between tool handlers and the actual browser
// environment. Under GOOS=js/wasm, an implementation forwards these calls
// to the extension's content script over a message channel; natively, a
// fake implementation serves canned pages for development.
type Bridge interface {
	// Query returns a JSON-encoded array of matching elements' outerHTML
	// (or a summary thereof) for the given CSS selector.
	Query(ctx context.Context, selector string) (string, error)

	// Mutate applies one DOM mutation (setText, setAttribute, remove, etc.)
	// described by op and returns a human-readable confirmation.
	Mutate(ctx context.Context, selector, op, value string) (string, error)

	// Navigate changes the active tab's URL and returns once the
	// navigation has committed.
	Navigate(ctx context.Context, url string) error

	// Fetch performs a same-origin-constrained HTTP request from the page
	// context and returns the response body as a string.
	Fetch(ctx context.Context, url, method, body string) (string, error)

	// StorageGet/StorageSet read and write extension-scoped key/value
	// storage, scoped to the current session.
	StorageGet(ctx context.Context, key string) (string, error)
	StorageSet(ctx context.Context, key, value string) error

	// CurrentURL and CurrentTitle describe the active tab. cmd/wasmagent
	// reads both at startup and passes the URL into the developer
	// instructions; the title is not used.
	CurrentURL(ctx context.Context) (string, error)
	CurrentTitle(ctx context.Context) (string, error)
}
