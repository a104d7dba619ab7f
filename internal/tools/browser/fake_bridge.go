package browser

import (
	"context"
	"fmt"
	"sync"
)

// FakeBridge is an in-memory Bridge used by cmd/agentcli and by tests. It
// simulates a single page with a tiny DOM model: a flat list of elements
// keyed by selector, good enough to exercise the tool contracts without a
// real browser.
type FakeBridge struct {
	mu       sync.Mutex
	url      string
	title    string
	elements map[string]string // selector -> outerHTML
	storage  map[string]string
}

// NewFakeBridge seeds a fake page at url/title with the given elements.
func NewFakeBridge(url, title string, elements map[string]string) *FakeBridge {
	if elements == nil {
		elements = map[string]string{}
	}
	return &FakeBridge{
		url:      url,
		title:    title,
		elements: elements,
		storage:  map[string]string{},
	}
}

func (b *FakeBridge) Query(ctx context.Context, selector string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	html, ok := b.elements[selector]
	if !ok {
		return "[]", nil
	}
	return fmt.Sprintf("[%q]", html), nil
}

func (b *FakeBridge) Mutate(ctx context.Context, selector, op, value string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch op {
	case "setText":
		b.elements[selector] = fmt.Sprintf("<span>%s</span>", value)
	case "remove":
		delete(b.elements, selector)
	case "setAttribute":
		b.elements[selector] = fmt.Sprintf("<div data-updated=%q>%s</div>", value, b.elements[selector])
	default:
		return "", fmt.Errorf("unsupported mutation op %q", op)
	}
	return fmt.Sprintf("applied %s to %s", op, selector), nil
}

func (b *FakeBridge) Navigate(ctx context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.url = url
	return nil
}

func (b *FakeBridge) Fetch(ctx context.Context, url, method, body string) (string, error) {
	return fmt.Sprintf("fake response for %s %s", method, url), nil
}

func (b *FakeBridge) StorageGet(ctx context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.storage[key], nil
}

func (b *FakeBridge) StorageSet(ctx context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.storage[key] = value
	return nil
}

func (b *FakeBridge) CurrentURL(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.url, nil
}

func (b *FakeBridge) CurrentTitle(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.title, nil
}
