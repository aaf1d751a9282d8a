package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/keepsake-ai/keepsake/internal/keeper"
	"github.com/keepsake-ai/keepsake/internal/model"
)

// Memories double as resources under the memory:// scheme so clients can
// browse them without issuing tool calls.

const resourceScheme = "memory://"

type resourceInfo struct {
	URI      string `json:"uri"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

type resourcesListResult struct {
	Resources []resourceInfo `json:"resources"`
}

func (s *Server) listResources(ctx context.Context) (any, error) {
	page, err := s.keeper.List(ctx, keeper.ListRequest{})
	if err != nil {
		return nil, err
	}
	infos := make([]resourceInfo, len(page.Memories))
	for i, m := range page.Memories {
		infos[i] = resourceInfo{
			URI:      fmt.Sprintf("%s%d", resourceScheme, m.ID),
			Name:     m.Summary,
			MimeType: "application/json",
		}
	}
	return resourcesListResult{Resources: infos}, nil
}

type readResourceParams struct {
	URI string `json:"uri"`
}

type resourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

type readResourceResult struct {
	Contents []resourceContents `json:"contents"`
}

func (s *Server) readResource(ctx context.Context, raw json.RawMessage) (any, error) {
	var p readResourceParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: "resources/read params: " + err.Error()}
	}
	rest, ok := strings.CutPrefix(p.URI, resourceScheme)
	if !ok {
		return nil, fmt.Errorf("unsupported resource uri %q: %w", p.URI, model.ErrValidation)
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("resource uri %q: non-numeric id: %w", p.URI, model.ErrValidation)
	}

	got, err := s.keeper.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	text, err := json.MarshalIndent(got, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode resource %d: %w", id, err)
	}
	return readResourceResult{Contents: []resourceContents{{
		URI:      p.URI,
		MimeType: "application/json",
		Text:     string(text),
	}}}, nil
}
