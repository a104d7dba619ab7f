//go:build js && wasm

package browser

import (
	"context"
	"fmt"
	"syscall/js"
)

// JSBridge implements Bridge by calling into a global JS object the
// extension's content script installs before the wasm module starts:
//
//	window.__agentBridge = {
//	  query(selector) -> Promise<string>,
//	  mutate(selector, op, value) -> Promise<string>,
//	  navigate(url) -> Promise<void>,
//	  fetch(url, method, body) -> Promise<string>,
//	  storageGet(key) -> Promise<string>,
//	  storageSet(key, value) -> Promise<void>,
//	  currentURL() -> Promise<string>,
//	  currentTitle() -> Promise<string>,
//	}
//
// Every method returns a Promise so the content script can hop across the
// extension's message-passing boundary without blocking its own event loop.
type JSBridge struct {
	obj js.Value
}

// NewJSBridge looks up window.__agentBridge and returns a Bridge backed by
// it. It panics if the global isn't present, since the wasm module has no
// useful fallback without it.
func NewJSBridge() *JSBridge {
	obj := js.Global().Get("__agentBridge")
	if obj.IsUndefined() || obj.IsNull() {
		panic("browser: window.__agentBridge is not installed")
	}
	return &JSBridge{obj: obj}
}

func (b *JSBridge) Query(ctx context.Context, selector string) (string, error) {
	return awaitString(ctx, b.obj.Call("query", selector))
}

func (b *JSBridge) Mutate(ctx context.Context, selector, op, value string) (string, error) {
	return awaitString(ctx, b.obj.Call("mutate", selector, op, value))
}

func (b *JSBridge) Navigate(ctx context.Context, url string) error {
	_, err := awaitString(ctx, b.obj.Call("navigate", url))
	return err
}

func (b *JSBridge) Fetch(ctx context.Context, url, method, body string) (string, error) {
	return awaitString(ctx, b.obj.Call("fetch", url, method, body))
}

func (b *JSBridge) StorageGet(ctx context.Context, key string) (string, error) {
	return awaitString(ctx, b.obj.Call("storageGet", key))
}

func (b *JSBridge) StorageSet(ctx context.Context, key, value string) error {
	_, err := awaitString(ctx, b.obj.Call("storageSet", key, value))
	return err
}

func (b *JSBridge) CurrentURL(ctx context.Context) (string, error) {
	return awaitString(ctx, b.obj.Call("currentURL"))
}

func (b *JSBridge) CurrentTitle(ctx context.Context) (string, error) {
	return awaitString(ctx, b.obj.Call("currentTitle"))
}

// awaitString blocks the calling goroutine (safe under wasm's cooperative
// scheduler, which js.FuncOf callbacks run against independently) until the
// given Promise settles, returning its resolved string or a wrapped error.
func awaitString(ctx context.Context, promise js.Value) (string, error) {
	type outcome struct {
		val string
		err error
	}
	done := make(chan outcome, 1)

	var thenFunc, catchFunc js.Func
	thenFunc = js.FuncOf(func(this js.Value, args []js.Value) any {
		thenFunc.Release()
		catchFunc.Release()
		var v string
		if len(args) > 0 && !args[0].IsUndefined() && !args[0].IsNull() {
			v = args[0].String()
		}
		done <- outcome{val: v}
		return nil
	})
	catchFunc = js.FuncOf(func(this js.Value, args []js.Value) any {
		thenFunc.Release()
		catchFunc.Release()
		msg := "bridge call rejected"
		if len(args) > 0 {
			msg = args[0].String()
		}
		done <- outcome{err: fmt.Errorf("browser: %s", msg)}
		return nil
	})
	promise.Call("then", thenFunc).Call("catch", catchFunc)

	select {
	case o := <-done:
		return o.val, o.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
