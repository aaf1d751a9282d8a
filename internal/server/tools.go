package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/keepsake-ai/keepsake/internal/keeper"
	"github.com/keepsake-ai/keepsake/internal/model"
)

// tool is one named operation: a JSON Schema for its arguments and the
// keeper call behind it.
type tool struct {
	name        string
	description string
	schemaDoc   map[string]any
	schema      *gojsonschema.Schema
	call        func(ctx context.Context, args map[string]any) (any, error)
}

// validate checks args against the tool's compiled schema. Violations are
// validation errors, not internal ones.
func (t *tool) validate(args map[string]any) error {
	result, err := t.schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("validate %s arguments: %w", t.name, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%s arguments: %s: %w", t.name, strings.Join(msgs, "; "), model.ErrValidation)
}

func idSchema() map[string]any {
	return map[string]any{
		"type":        "integer",
		"minimum":     1,
		"description": "Memory id",
	}
}

func keywordsSchema(desc string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"maxItems":    model.MaxKeywords,
		"description": desc,
	}
}

// buildTools declares every tool and compiles its schema.
func buildTools(k *keeper.Keeper) ([]*tool, error) {
	tools := []*tool{
		{
			name:        "memory_insert",
			description: "Store a new memory: full content plus a short searchable summary and optional keywords.",
			schemaDoc: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"content": map[string]any{
						"type":        "string",
						"minLength":   1,
						"description": "Full text to store, kept verbatim",
					},
					"summary": map[string]any{
						"type":        "string",
						"minLength":   1,
						"maxLength":   model.MaxSummaryChars,
						"description": "Short summary, indexed for search",
					},
					"keywords": keywordsSchema("Up to 10 keywords indexed alongside the summary"),
				},
				"required":             []string{"content", "summary"},
				"additionalProperties": false,
			},
			call: func(ctx context.Context, args map[string]any) (any, error) {
				req := keeper.InsertRequest{
					Content: strArg(args, "content"),
					Summary: strArg(args, "summary"),
				}
				if kws, ok := strSliceArg(args, "keywords"); ok {
					req.Keywords = kws
				}
				return k.Insert(ctx, req)
			},
		},
		{
			name:        "memory_update",
			description: "Edit a memory's content, summary, or keywords. An empty keywords array clears them; omitted fields stay unchanged.",
			schemaDoc: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": idSchema(),
					"content": map[string]any{
						"type":        "string",
						"minLength":   1,
						"description": "Replacement content",
					},
					"summary": map[string]any{
						"type":        "string",
						"minLength":   1,
						"maxLength":   model.MaxSummaryChars,
						"description": "Replacement summary",
					},
					"keywords": keywordsSchema("Replacement keyword set; empty array clears all keywords"),
				},
				"required": []string{"id"},
				"anyOf": []any{
					map[string]any{"required": []string{"content"}},
					map[string]any{"required": []string{"summary"}},
					map[string]any{"required": []string{"keywords"}},
				},
				"additionalProperties": false,
			},
			call: func(ctx context.Context, args map[string]any) (any, error) {
				req := keeper.UpdateRequest{
					ID:      intArg(args, "id"),
					Content: optStrArg(args, "content"),
					Summary: optStrArg(args, "summary"),
				}
				if kws, ok := strSliceArg(args, "keywords"); ok {
					req.Keywords = kws
				}
				return k.Update(ctx, req)
			},
		},
		{
			name:        "memory_search",
			description: "Ranked full-text search over summaries and keywords, with optional keyword boosting. Lower scores rank higher.",
			schemaDoc: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"minLength":   1,
						"description": "Search text",
					},
					"keywords": keywordsSchema("Boost keywords: matches rank higher but do not filter"),
					"limit": map[string]any{
						"type":        "integer",
						"minimum":     1,
						"maximum":     model.MaxSearchLimit,
						"description": "Max results (default 10)",
					},
					"summary_weight": map[string]any{
						"type":        "number",
						"description": "Relevance weight of the summary column (default 0.8)",
					},
					"keyword_weight": map[string]any{
						"type":        "number",
						"description": "Relevance weight of the keyword column (default 2.0)",
					},
					"lambda": map[string]any{
						"type":        "number",
						"minimum":     0,
						"description": "Score subtracted per matched boost keyword (default 1.0)",
					},
				},
				"required":             []string{"query"},
				"additionalProperties": false,
			},
			call: func(ctx context.Context, args map[string]any) (any, error) {
				req := keeper.SearchRequest{
					Query:         strArg(args, "query"),
					Limit:         int(intArg(args, "limit")),
					SummaryWeight: optFloatArg(args, "summary_weight"),
					KeywordWeight: optFloatArg(args, "keyword_weight"),
					Lambda:        optFloatArg(args, "lambda"),
				}
				if kws, ok := strSliceArg(args, "keywords"); ok {
					req.Keywords = kws
				}
				return k.Search(ctx, req)
			},
		},
		{
			name:        "memory_get",
			description: "Fetch one memory with its content.",
			schemaDoc: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": idSchema(),
				},
				"required":             []string{"id"},
				"additionalProperties": false,
			},
			call: func(ctx context.Context, args map[string]any) (any, error) {
				return k.Get(ctx, intArg(args, "id"))
			},
		},
		{
			name:        "memory_delete",
			description: "Delete a memory and its keywords. The content file stays on disk.",
			schemaDoc: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": idSchema(),
				},
				"required":             []string{"id"},
				"additionalProperties": false,
			},
			call: func(ctx context.Context, args map[string]any) (any, error) {
				id := intArg(args, "id")
				if err := k.Delete(ctx, id); err != nil {
					return nil, err
				}
				return map[string]any{"ok": true, "id": id}, nil
			},
		},
		{
			name:        "memory_list",
			description: "List memories, most recent first, with pagination metadata.",
			schemaDoc: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"limit": map[string]any{
						"type":        "integer",
						"minimum":     1,
						"maximum":     model.MaxListLimit,
						"description": "Page size (default 20)",
					},
					"offset": map[string]any{
						"type":        "integer",
						"minimum":     0,
						"description": "Rows to skip (default 0)",
					},
				},
				"additionalProperties": false,
			},
			call: func(ctx context.Context, args map[string]any) (any, error) {
				return k.List(ctx, keeper.ListRequest{
					Limit:  int(intArg(args, "limit")),
					Offset: int(intArg(args, "offset")),
				})
			},
		},
		{
			name:        "memory_optimize",
			description: "Run lexical index maintenance.",
			schemaDoc: map[string]any{
				"type":                 "object",
				"properties":           map[string]any{},
				"additionalProperties": false,
			},
			call: func(ctx context.Context, args map[string]any) (any, error) {
				if err := k.Optimize(ctx); err != nil {
					return nil, err
				}
				return map[string]any{"ok": true}, nil
			},
		},
		{
			name:        "memory_read_file",
			description: "Read a raw content file under the content root, with the size cap applied.",
			schemaDoc: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"minLength":   1,
						"description": "Absolute path inside the content root",
					},
				},
				"required":             []string{"path"},
				"additionalProperties": false,
			},
			call: func(ctx context.Context, args map[string]any) (any, error) {
				return k.ReadFile(ctx, strArg(args, "path"))
			},
		},
	}

	for _, t := range tools {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(t.schemaDoc))
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", t.name, err)
		}
		t.schema = schema
	}
	return tools, nil
}

type toolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type toolsListResult struct {
	Tools []toolInfo `json:"tools"`
}

func (s *Server) listTools() toolsListResult {
	infos := make([]toolInfo, len(s.tools))
	for i, t := range s.tools {
		infos[i] = toolInfo{Name: t.name, Description: t.description, InputSchema: t.schemaDoc}
	}
	return toolsListResult{Tools: infos}
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callResult struct {
	Content []contentBlock `json:"content"`
}

// callTool validates the arguments against the tool's schema, runs the
// keeper call, and wraps the JSON-encoded result in a text block.
func (s *Server) callTool(ctx context.Context, raw json.RawMessage) (any, error) {
	var p callParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: "tools/call params: " + err.Error()}
	}

	var t *tool
	for _, candidate := range s.tools {
		if candidate.name == p.Name {
			t = candidate
			break
		}
	}
	if t == nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("unknown tool %q", p.Name)}
	}

	if p.Arguments == nil {
		p.Arguments = map[string]any{}
	}
	if err := t.validate(p.Arguments); err != nil {
		return nil, err
	}

	out, err := t.call(ctx, p.Arguments)
	if err != nil {
		return nil, err
	}
	text, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", t.name, err)
	}
	return &callResult{Content: []contentBlock{{Type: "text", Text: string(text)}}}, nil
}

// Argument extraction below assumes the schema already validated types;
// the comma-ok forms only guard against absent optional fields.

func strArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func optStrArg(args map[string]any, key string) *string {
	v, ok := args[key].(string)
	if !ok {
		return nil
	}
	return &v
}

func intArg(args map[string]any, key string) int64 {
	v, _ := args[key].(float64)
	return int64(v)
}

func optFloatArg(args map[string]any, key string) *float64 {
	v, ok := args[key].(float64)
	if !ok {
		return nil
	}
	return &v
}

// strSliceArg returns the string slice at key and whether the key was
// present at all; an empty array comes back non-nil so "clear" stays
// distinct from "leave unchanged".
func strSliceArg(args map[string]any, key string) ([]string, bool) {
	v, ok := args[key]
	if !ok {
		return nil, false
	}
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}
