package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dtnitsch/llm-archive-reader/internal/app"
	"github.com/dtnitsch/llm-archive-reader/models"
	"github.com/dtnitsch/llm-archive-reader/pkg/archive/archivetest"
	"github.com/dtnitsch/llm-archive-reader/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	opener := archivetest.NewOpener(".zip")

	cfg := &models.Config{}
	cfg.Archives.Directory = dir
	cfg.SetDefaults()

	svc, err := app.New(cfg, opener, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	root, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	path := filepath.Join(root, "go.zip")
	require.NoError(t, os.WriteFile(path, []byte("archive"), 0o644))
	opener.Register(path, &archivetest.Archive{
		Entries: []*archivetest.Entry{
			{EntryPath: "A/Go", EntryTitle: "Go", Mime: "text/html", Body: []byte("<h1>Go</h1><p>Gophers.</p>")},
			{EntryPath: "A/Home", EntryTitle: "Home", Target: "A/Go"},
			{EntryPath: "A/data.json", EntryTitle: "data", Mime: "application/json", Body: []byte(`{"a":1}`)},
			{EntryPath: "I/logo.png", EntryTitle: "logo", Mime: "image/png", Body: []byte{1, 2, 3}},
		},
		Meta:       map[string]string{"Title": "Go Wiki"},
		Main:       "A/Home",
		TitleIndex: true,
		Searchable: true,
	})

	return NewServer(svc, logger.NewNop())
}

func call(t *testing.T, s *Server, method string, params any) *Response {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	resp := s.HandleRequest(&Request{JSONRPC: "2.0", ID: "1", Method: method, Params: raw})
	require.NotNil(t, resp)
	return resp
}

func callTool(t *testing.T, s *Server, name string, args any) ToolResult {
	t.Helper()
	resp := call(t, s, "tools/call", map[string]any{"name": name, "arguments": args})
	require.Nil(t, resp.Error, "unexpected protocol error")
	var result ToolResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.NotEmpty(t, result.Content)
	return result
}

func TestHandleInitialize(t *testing.T) {
	s := setupServer(t)
	resp := call(t, s, "initialize", map[string]any{})

	var result struct {
		ProtocolVersion string         `json:"protocolVersion"`
		Capabilities    map[string]any `json:"capabilities"`
		ServerInfo      map[string]any `json:"serverInfo"`
		Instructions    string         `json:"instructions"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "2024-11-05", result.ProtocolVersion)
	assert.Contains(t, result.Capabilities, "tools")
	assert.Contains(t, result.Capabilities, "resources")
	assert.Equal(t, "llm-archive-reader", result.ServerInfo["name"])
	assert.Contains(t, result.Instructions, "mcp_tools")
}

func TestHandleRequestProtocolErrors(t *testing.T) {
	s := setupServer(t)

	tests := []struct {
		name string
		req  *Request
		code int
	}{
		{name: "missing version", req: &Request{ID: 1, Method: "ping"}, code: InvalidRequest},
		{name: "missing method", req: &Request{JSONRPC: "2.0", ID: 1}, code: InvalidRequest},
		{name: "unknown method", req: &Request{JSONRPC: "2.0", ID: 1, Method: "nope"}, code: MethodNotFound},
		{name: "bad tool params", req: &Request{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: json.RawMessage(`[]`)}, code: InvalidParams},
		{name: "unknown tool", req: &Request{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: json.RawMessage(`{"name":"nope"}`)}, code: MethodNotFound},
		{name: "resource without uri", req: &Request{JSONRPC: "2.0", ID: 1, Method: "resources/read", Params: json.RawMessage(`{}`)}, code: InvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.HandleRequest(tt.req)
			require.NotNil(t, resp)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, 1, resp.ID)
		})
	}
}

func TestHandleRequestNotification(t *testing.T) {
	s := setupServer(t)
	assert.Nil(t, s.HandleRequest(&Request{JSONRPC: "2.0", Method: "notifications/initialized"}))
	assert.Nil(t, s.HandleRequest(&Request{JSONRPC: "2.0", Method: "ping"}))
}

func TestToolsList(t *testing.T) {
	s := setupServer(t)
	resp := call(t, s, "tools/list", map[string]any{})

	var result struct {
		Tools []Tool `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Tools, len(toolHandlers))
	for _, tool := range result.Tools {
		assert.Contains(t, toolHandlers, tool.Name)
		assert.Equal(t, "object", tool.InputSchema["type"])
	}
}

func TestToolListArchives(t *testing.T) {
	s := setupServer(t)
	result := callTool(t, s, "list_archives", nil)
	assert.False(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, `"filename": "go.zip"`)
	assert.Contains(t, result.Content[0].Text, `"title": "Go Wiki"`)
}

func TestToolGetArchiveMetadata(t *testing.T) {
	s := setupServer(t)
	result := callTool(t, s, "get_archive_metadata", map[string]any{"archive": "go.zip"})
	assert.False(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, `"main_entry_path": "A/Home"`)

	resp := call(t, s, "tools/call", map[string]any{"name": "get_archive_metadata", "arguments": map[string]any{}})
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidParams, resp.Error.Code)
}

func TestToolReadEntry(t *testing.T) {
	s := setupServer(t)

	t.Run("markdown only by default", func(t *testing.T) {
		result := callTool(t, s, "read_entry", map[string]any{"archive": "go.zip", "entry_path": "A/Go"})
		assert.False(t, result.IsError)
		assert.True(t, strings.HasPrefix(result.Content[0].Text, "# Go"))
	})

	t.Run("structured response", func(t *testing.T) {
		result := callTool(t, s, "read_entry", map[string]any{
			"archive": "go.zip", "entry_path": "A/Go", "return_markdown_only": false,
		})
		assert.Contains(t, result.Content[0].Text, `"content_type": "markdown"`)
		assert.Contains(t, result.Content[0].Text, `"filename": "go.zip"`)
	})

	t.Run("json entries stay structured", func(t *testing.T) {
		result := callTool(t, s, "read_entry", map[string]any{"archive": "go.zip", "entry_path": "A/data.json"})
		assert.Contains(t, result.Content[0].Text, `"content_type": "json"`)
	})

	t.Run("image block", func(t *testing.T) {
		result := callTool(t, s, "read_entry", map[string]any{"archive": "go.zip", "entry_path": "I/logo.png"})
		require.Len(t, result.Content, 2)
		assert.Equal(t, "image", result.Content[0].Type)
		assert.Equal(t, "AQID", result.Content[0].Data)
		assert.Equal(t, "image/png", result.Content[0].MimeType)
	})

	t.Run("raw image is base64 text", func(t *testing.T) {
		result := callTool(t, s, "read_entry", map[string]any{
			"archive": "go.zip", "entry_path": "I/logo.png", "raw_output": true,
		})
		require.Len(t, result.Content, 1)
		assert.Contains(t, result.Content[0].Text, "base64-encoded")
	})

	t.Run("missing entry", func(t *testing.T) {
		result := callTool(t, s, "read_entry", map[string]any{"archive": "go.zip", "entry_path": "A/Nope"})
		assert.True(t, result.IsError)
		assert.Contains(t, result.Content[0].Text, "NOT_FOUND")
	})

	t.Run("traversal", func(t *testing.T) {
		result := callTool(t, s, "read_entry", map[string]any{"archive": "../secret.zip", "entry_path": "A/Go"})
		assert.True(t, result.IsError)
		assert.Contains(t, result.Content[0].Text, "INVALID_PATH")
	})
}

func TestToolGetMainEntry(t *testing.T) {
	s := setupServer(t)
	result := callTool(t, s, "get_main_entry", map[string]any{"archive": "go.zip"})
	assert.False(t, result.IsError)
	assert.True(t, strings.HasPrefix(result.Content[0].Text, "# Go"))
}

func TestToolSearchArchives(t *testing.T) {
	s := setupServer(t)

	result := callTool(t, s, "search_archives", map[string]any{"query": "go", "max_results": 1})
	assert.False(t, result.IsError)
	var resp models.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.True(t, resp.HasMore)

	result = callTool(t, s, "search_archives", map[string]any{"query": "  "})
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "INVALID_INPUT")
}

func TestToolGetRandomEntries(t *testing.T) {
	s := setupServer(t)

	result := callTool(t, s, "get_random_entries", map[string]any{})
	assert.False(t, result.IsError)
	var resp models.RandomEntriesResponse
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &resp))
	assert.Equal(t, defaultRandomCount, resp.Requested)
	assert.Equal(t, defaultRandomCount, resp.Returned)

	result = callTool(t, s, "get_random_entries", map[string]any{"count": 51})
	assert.True(t, result.IsError)
}

func TestToolGetCacheStats(t *testing.T) {
	s := setupServer(t)
	callTool(t, s, "read_entry", map[string]any{"archive": "go.zip", "entry_path": "A/Go"})

	result := callTool(t, s, "get_cache_stats", nil)
	var stats models.CacheStats
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &stats))
	assert.Equal(t, 1, stats.ArchiveCacheSize)
}

func TestResourcesListAndTemplates(t *testing.T) {
	s := setupServer(t)

	var list struct {
		Resources []ResourceListItem `json:"resources"`
	}
	require.NoError(t, json.Unmarshal(call(t, s, "resources/list", nil).Result, &list))
	require.Len(t, list.Resources, 1)
	assert.Equal(t, "archive://files", list.Resources[0].URI)

	var templates struct {
		ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
	}
	require.NoError(t, json.Unmarshal(call(t, s, "resources/templates/list", nil).Result, &templates))
	assert.Len(t, templates.ResourceTemplates, 2)
}

func TestResourcesRead(t *testing.T) {
	s := setupServer(t)

	tests := []struct {
		name     string
		uri      string
		mime     string
		contains string
	}{
		{name: "files", uri: "archive://files", mime: "application/json", contains: "go.zip"},
		{name: "metadata", uri: "archive://go.zip/metadata", mime: "application/json", contains: "Go Wiki"},
		{name: "entry", uri: "archive://go.zip/entry/A/Go", mime: "text/markdown", contains: "# Go"},
		{name: "escaped entry", uri: "archive://go.zip/entry/A%2FGo", mime: "text/markdown", contains: "# Go"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, s, "resources/read", map[string]any{"uri": tt.uri})
			require.Nil(t, resp.Error)
			var result struct {
				Contents []ResourceContent `json:"contents"`
			}
			require.NoError(t, json.Unmarshal(resp.Result, &result))
			require.Len(t, result.Contents, 1)
			assert.Equal(t, tt.uri, result.Contents[0].URI)
			assert.Equal(t, tt.mime, result.Contents[0].MimeType)
			assert.Contains(t, result.Contents[0].Text, tt.contains)
		})
	}
}

func TestResourcesReadErrors(t *testing.T) {
	s := setupServer(t)

	tests := []struct {
		name string
		uri  string
		code int
	}{
		{name: "other scheme", uri: "file:///etc/passwd", code: ResourceNotFound},
		{name: "unknown shape", uri: "archive://go.zip/other", code: ResourceNotFound},
		{name: "missing archive", uri: "archive://gone.zip/metadata", code: ResourceNotFound},
		{name: "missing entry", uri: "archive://go.zip/entry/A/Nope", code: ResourceNotFound},
		{name: "parent reference", uri: "archive://../go.zip/metadata", code: InvalidParams},
		{name: "escaped parent reference", uri: "archive://go.zip/entry/%2E%2E/x", code: InvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, s, "resources/read", map[string]any{"uri": tt.uri})
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestServe(t *testing.T) {
	s := setupServer(t)
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		`not json`,
		``,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":"two","method":"tools/list"}`,
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, s.Serve(context.Background(), strings.NewReader(in), &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)

	var first, second, third Response
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &third))

	assert.Equal(t, float64(1), first.ID)
	assert.Nil(t, first.Error)
	assert.Nil(t, second.ID)
	require.NotNil(t, second.Error)
	assert.Equal(t, ParseError, second.Error.Code)
	assert.Equal(t, "two", third.ID)
	assert.Nil(t, third.Error)
}

func TestServeStopsOnCancelledContext(t *testing.T) {
	s := setupServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	require.NoError(t, s.Serve(ctx, strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n"), &out))
	assert.Empty(t, out.String())
}
