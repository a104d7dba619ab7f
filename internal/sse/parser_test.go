package sse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoder_SingleFrame(t *testing.T) {
	r := strings.NewReader("event: response.created\ndata: {\"id\":\"resp_1\"}\n\n")
	dec := NewDecoder(r)

	frame, ok := dec.Next()
	require.True(t, ok)
	assert.Equal(t, "response.created", frame.name)
	assert.Equal(t, `{"id":"resp_1"}`, string(frame.data))

	_, ok = dec.Next()
	assert.False(t, ok)
	assert.NoError(t, dec.Err())
}

func TestDecoder_MultipleDataLinesJoinedWithNewline(t *testing.T) {
	r := strings.NewReader("data: line one\ndata: line two\n\n")
	dec := NewDecoder(r)

	frame, ok := dec.Next()
	require.True(t, ok)
	assert.Equal(t, "line one\nline two", string(frame.data))
}

func TestDecoder_MultipleFrames(t *testing.T) {
	r := strings.NewReader("event: a\ndata: 1\n\nevent: b\ndata: 2\n\n")
	dec := NewDecoder(r)

	var names []string
	for {
		frame, ok := dec.Next()
		if !ok {
			break
		}
		names = append(names, frame.name)
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

type fakeDecoder struct{}

func (fakeDecoder) Decode(name string, data []byte) ([]ResponseEvent, error) {
	if name == "response.output_text.delta" {
		return []ResponseEvent{OutputTextDelta{Delta: string(data)}}, nil
	}
	return nil, nil
}

func TestStream_YieldsDecodedEvents(t *testing.T) {
	r := strings.NewReader("event: response.output_text.delta\ndata: hello\n\n")
	var got []ResponseEvent
	err := Stream(r, fakeDecoder{}, func(ev ResponseEvent) error {
		got = append(got, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].(OutputTextDelta).Delta)
}
