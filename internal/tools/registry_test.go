package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoSpec() Spec {
	return Spec{
		Name:        "echo",
		Description: "echoes the given text",
		Parameters:  objectSchema(map[string]any{"text": stringProp("text to echo")}, "text"),
	}
}

func TestRegistry_ExecuteSuccess(t *testing.T) {
	r := NewRegistry(time.Second)
	require.NoError(t, r.Register(echoSpec(), func(ctx context.Context, args map[string]any) (string, error) {
		return args["text"].(string), nil
	}))

	resp := r.Execute(context.Background(), "echo", `{"text":"hi"}`)
	require.True(t, resp.Success)
	assert.Equal(t, "hi", resp.Data)
	assert.Nil(t, resp.Error)
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	r := NewRegistry(time.Second)
	resp := r.Execute(context.Background(), "missing", `{}`)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestRegistry_ExecuteInvalidArgs(t *testing.T) {
	r := NewRegistry(time.Second)
	require.NoError(t, r.Register(echoSpec(), func(ctx context.Context, args map[string]any) (string, error) {
		return "", nil
	}))

	resp := r.Execute(context.Background(), "echo", `{}`)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
}

func TestRegistry_ExecuteMalformedJSON(t *testing.T) {
	r := NewRegistry(time.Second)
	require.NoError(t, r.Register(echoSpec(), func(ctx context.Context, args map[string]any) (string, error) {
		return "", nil
	}))

	resp := r.Execute(context.Background(), "echo", `not json`)
	require.False(t, resp.Success)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
}

func TestRegistry_ExecuteHandlerError(t *testing.T) {
	r := NewRegistry(time.Second)
	require.NoError(t, r.Register(echoSpec(), func(ctx context.Context, args map[string]any) (string, error) {
		return "", errors.New("boom")
	}))

	resp := r.Execute(context.Background(), "echo", `{"text":"hi"}`)
	require.False(t, resp.Success)
	assert.Equal(t, ErrCodeExecution, resp.Error.Code)
}

func TestRegistry_ExecuteTimeout(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)
	require.NoError(t, r.Register(echoSpec(), func(ctx context.Context, args map[string]any) (string, error) {
		select {
		case <-time.After(time.Second):
			return "too slow", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}))

	resp := r.Execute(context.Background(), "echo", `{"text":"hi"}`)
	require.False(t, resp.Success)
	assert.Equal(t, ErrCodeTimeout, resp.Error.Code)
}
