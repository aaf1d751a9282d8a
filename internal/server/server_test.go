package server

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepsake-ai/keepsake/internal/config"
	"github.com/keepsake-ai/keepsake/internal/keeper"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = dir
	cfg.DBPath = filepath.Join(dir, "keepsake.db")
	cfg.ContentRoot = filepath.Join(dir, "memories")

	k, err := keeper.Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { k.Close() })

	s, err := New(k, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func request(t *testing.T, id int, method string, params any) *Message {
	t.Helper()
	msg := &Message{JSONRPC: "2.0", ID: json.RawMessage(strconv.Itoa(id)), Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		require.NoError(t, err)
		msg.Params = raw
	}
	return msg
}

// invoke runs one tool call through dispatch and decodes the text block
// into out when a result is expected.
func invoke(t *testing.T, s *Server, name string, args map[string]any, out any) *Message {
	t.Helper()
	resp := s.dispatch(context.Background(), request(t, 1, "tools/call", callParams{Name: name, Arguments: args}))
	if resp.Error != nil || out == nil {
		return resp
	}
	res, ok := resp.Result.(*callResult)
	require.True(t, ok, "tools/call result should be a content block list")
	require.Len(t, res.Content, 1)
	require.Equal(t, "text", res.Content[0].Type)
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), out))
	return resp
}

func TestInitialize(t *testing.T) {
	s := newTestServer(t)

	resp := s.dispatch(context.Background(), request(t, 1, "initialize", nil))
	require.Nil(t, resp.Error)
	init, ok := resp.Result.(initializeResult)
	require.True(t, ok)
	assert.Equal(t, protocolVersion, init.ProtocolVersion)
	assert.Equal(t, serverName, init.ServerInfo.Name)
}

func TestToolsListComplete(t *testing.T) {
	s := newTestServer(t)

	resp := s.dispatch(context.Background(), request(t, 1, "tools/list", nil))
	require.Nil(t, resp.Error)
	list, ok := resp.Result.(toolsListResult)
	require.True(t, ok)

	names := make([]string, len(list.Tools))
	for i, info := range list.Tools {
		names[i] = info.Name
		assert.NotEmpty(t, info.Description)
		assert.Equal(t, "object", info.InputSchema["type"])
	}
	assert.ElementsMatch(t, []string{
		"memory_insert", "memory_update", "memory_search", "memory_get",
		"memory_delete", "memory_list", "memory_optimize", "memory_read_file",
	}, names)
}

func TestInsertGetRoundTrip(t *testing.T) {
	s := newTestServer(t)

	var ins keeper.InsertResult
	resp := invoke(t, s, "memory_insert", map[string]any{
		"content":  "stand-up moved to 9:30 on Tuesdays",
		"summary":  "Tuesday stand-up time",
		"keywords": []string{"meetings", "schedule"},
	}, &ins)
	require.Nil(t, resp.Error)
	assert.Positive(t, ins.ID)
	assert.NotEmpty(t, ins.ContentPath)

	var got keeper.GetResult
	resp = invoke(t, s, "memory_get", map[string]any{"id": ins.ID}, &got)
	require.Nil(t, resp.Error)
	assert.Equal(t, "Tuesday stand-up time", got.Memory.Summary)
	assert.Equal(t, []string{"meetings", "schedule"}, got.Memory.Keywords)
	assert.Equal(t, "stand-up moved to 9:30 on Tuesdays", got.Content.Content)
}

func TestUpdateClearsKeywords(t *testing.T) {
	s := newTestServer(t)

	var ins keeper.InsertResult
	invoke(t, s, "memory_insert", map[string]any{
		"content":  "zsh aliases live in ~/.config/zsh",
		"summary":  "zsh alias location",
		"keywords": []string{"shell"},
	}, &ins)

	resp := invoke(t, s, "memory_update", map[string]any{
		"id":       ins.ID,
		"keywords": []string{},
	}, nil)
	require.Nil(t, resp.Error)

	var got keeper.GetResult
	invoke(t, s, "memory_get", map[string]any{"id": ins.ID}, &got)
	assert.Empty(t, got.Memory.Keywords)
}

func TestSearchThroughServer(t *testing.T) {
	s := newTestServer(t)

	invoke(t, s, "memory_insert", map[string]any{
		"content": "postgres connection pooling uses pgbouncer in transaction mode",
		"summary": "pgbouncer transaction pooling setup",
	}, &keeper.InsertResult{})
	invoke(t, s, "memory_insert", map[string]any{
		"content": "the coffee machine descaling schedule",
		"summary": "descaling the coffee machine",
	}, &keeper.InsertResult{})

	var found keeper.SearchResult
	resp := invoke(t, s, "memory_search", map[string]any{"query": "pgbouncer pooling"}, &found)
	require.Nil(t, resp.Error)
	require.NotEmpty(t, found.Hits)
	assert.Equal(t, "pgbouncer transaction pooling setup", found.Hits[0].Summary)
}

func TestToolArgumentValidation(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name string
		tool string
		args map[string]any
	}{
		{"missing required", "memory_insert", map[string]any{"content": "x"}},
		{"unknown property", "memory_get", map[string]any{"id": 1, "bogus": true}},
		{"id below minimum", "memory_get", map[string]any{"id": 0}},
		{"update without fields", "memory_update", map[string]any{"id": 1}},
		{"limit above maximum", "memory_list", map[string]any{"limit": 500}},
		{"negative lambda", "memory_search", map[string]any{"query": "x", "lambda": -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := invoke(t, s, tc.tool, tc.args, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, codeInvalidParams, resp.Error.Code)
		})
	}
}

func TestErrorCodes(t *testing.T) {
	s := newTestServer(t)

	resp := s.dispatch(context.Background(), request(t, 1, "no/such/method", nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeMethodNotFound, resp.Error.Code)

	resp = invoke(t, s, "memory_get", map[string]any{"id": 12345}, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeNotFound, resp.Error.Code)

	resp = invoke(t, s, "memory_read_file", map[string]any{"path": "/etc/passwd"}, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codePathOutsideRoot, resp.Error.Code)

	resp = invoke(t, s, "nonexistent_tool", map[string]any{}, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestPromptRendering(t *testing.T) {
	s := newTestServer(t)

	resp := s.dispatch(context.Background(), request(t, 1, "prompts/list", nil))
	require.Nil(t, resp.Error)
	list, ok := resp.Result.(promptsListResult)
	require.True(t, ok)
	require.Len(t, list.Prompts, 2)

	resp = s.dispatch(context.Background(), request(t, 2, "prompts/get", getPromptParams{
		Name:      "memory_recall",
		Arguments: map[string]string{"topic": "database tuning"},
	}))
	require.Nil(t, resp.Error)
	rendered, ok := resp.Result.(promptResult)
	require.True(t, ok)
	require.Len(t, rendered.Messages, 1)
	assert.Equal(t, "user", rendered.Messages[0].Role)
	assert.Contains(t, rendered.Messages[0].Content.Text, "database tuning")
	assert.NotContains(t, rendered.Messages[0].Content.Text, "{{topic}}")

	resp = s.dispatch(context.Background(), request(t, 3, "prompts/get", getPromptParams{Name: "memory_recall"}))
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestResourceListAndRead(t *testing.T) {
	s := newTestServer(t)

	var ins keeper.InsertResult
	invoke(t, s, "memory_insert", map[string]any{
		"content": "renew the TLS cert before March",
		"summary": "TLS cert renewal",
	}, &ins)

	resp := s.dispatch(context.Background(), request(t, 1, "resources/list", nil))
	require.Nil(t, resp.Error)
	list, ok := resp.Result.(resourcesListResult)
	require.True(t, ok)
	require.Len(t, list.Resources, 1)
	uri := list.Resources[0].URI
	assert.Equal(t, "memory://"+strconv.FormatInt(ins.ID, 10), uri)
	assert.Equal(t, "TLS cert renewal", list.Resources[0].Name)

	resp = s.dispatch(context.Background(), request(t, 2, "resources/read", readResourceParams{URI: uri}))
	require.Nil(t, resp.Error)
	read, ok := resp.Result.(readResourceResult)
	require.True(t, ok)
	require.Len(t, read.Contents, 1)
	assert.Contains(t, read.Contents[0].Text, "renew the TLS cert")

	resp = s.dispatch(context.Background(), request(t, 3, "resources/read", readResourceParams{URI: "memory://oops"}))
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestServeLoop(t *testing.T) {
	s := newTestServer(t)

	var in bytes.Buffer
	writer := newStdioTransport(&bytes.Buffer{}, &in)
	require.NoError(t, writer.send(request(t, 1, "ping", nil)))
	// Notifications get no reply.
	require.NoError(t, writer.send(&Message{JSONRPC: "2.0", Method: "notifications/initialized"}))
	require.NoError(t, writer.send(request(t, 2, "tools/list", nil)))

	var out bytes.Buffer
	require.NoError(t, s.Serve(context.Background(), &in, &out))

	reader := newStdioTransport(&out, &bytes.Buffer{})
	first, err := reader.receive()
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`1`), first.ID)
	assert.Nil(t, first.Error)

	second, err := reader.receive()
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`2`), second.ID)
	assert.Nil(t, second.Error)
}

func TestServeRecoversFromBadFrame(t *testing.T) {
	s := newTestServer(t)

	var in bytes.Buffer
	body := "{broken"
	in.WriteString("Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body)
	writer := newStdioTransport(&bytes.Buffer{}, &in)
	require.NoError(t, writer.send(request(t, 5, "ping", nil)))

	var out bytes.Buffer
	require.NoError(t, s.Serve(context.Background(), &in, &out))

	reader := newStdioTransport(&out, &bytes.Buffer{})
	first, err := reader.receive()
	require.NoError(t, err)
	require.NotNil(t, first.Error)
	assert.Equal(t, codeParseError, first.Error.Code)

	second, err := reader.receive()
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`5`), second.ID)
	assert.Nil(t, second.Error)
}
