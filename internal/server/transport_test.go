package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	out := newStdioTransport(&bytes.Buffer{}, &buf)

	sent := &Message{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`7`),
		Method:  "tools/list",
	}
	require.NoError(t, out.send(sent))
	assert.Contains(t, buf.String(), "Content-Length: ")
	assert.Contains(t, buf.String(), "\r\n\r\n")

	in := newStdioTransport(&buf, &bytes.Buffer{})
	got, err := in.receive()
	require.NoError(t, err)
	assert.Equal(t, "2.0", got.JSONRPC)
	assert.Equal(t, "tools/list", got.Method)
	assert.Equal(t, json.RawMessage(`7`), got.ID)
}

func TestTransportMultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	out := newStdioTransport(&bytes.Buffer{}, &buf)
	for i := 1; i <= 3; i++ {
		msg := &Message{
			JSONRPC: "2.0",
			ID:      json.RawMessage(fmt.Sprintf("%d", i)),
			Method:  "ping",
		}
		require.NoError(t, out.send(msg))
	}

	in := newStdioTransport(&buf, &bytes.Buffer{})
	for i := 1; i <= 3; i++ {
		got, err := in.receive()
		require.NoError(t, err)
		assert.Equal(t, json.RawMessage(fmt.Sprintf("%d", i)), got.ID)
	}
}

func TestTransportMissingContentLength(t *testing.T) {
	buf := bytes.NewBufferString("X-Other: 1\r\n\r\n{}")
	in := newStdioTransport(buf, &bytes.Buffer{})

	_, err := in.receive()
	require.Error(t, err)
	assert.False(t, errors.Is(err, errBadFrame), "a missing header leaves the stream unrecoverable")
}

func TestTransportMalformedBody(t *testing.T) {
	body := "{not json"
	buf := bytes.NewBufferString(fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body))
	in := newStdioTransport(buf, &bytes.Buffer{})

	_, err := in.receive()
	require.ErrorIs(t, err, errBadFrame)

	// The frame boundary held, so a well-formed successor still parses.
	out := newStdioTransport(&bytes.Buffer{}, buf)
	require.NoError(t, out.send(&Message{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "ping"}))
	got, err := in.receive()
	require.NoError(t, err)
	assert.Equal(t, "ping", got.Method)
}
