package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keepsake-ai/keepsake/internal/keeper"
)

// Server dispatches protocol requests to the memory service. One server
// handles one client stream.
type Server struct {
	keeper *keeper.Keeper
	log    zerolog.Logger
	tools  []*tool
}

// New builds a server around an open Keeper. Tool schemas are compiled
// here so a bad schema fails startup, not the first call.
func New(k *keeper.Keeper, log zerolog.Logger) (*Server, error) {
	tools, err := buildTools(k)
	if err != nil {
		return nil, err
	}
	return &Server{
		keeper: k,
		log:    log.With().Str("session", uuid.NewString()).Logger(),
		tools:  tools,
	}, nil
}

// Serve reads framed requests until the stream closes, dispatching each
// one and writing its response. Notifications are logged and dropped.
// Returns nil on clean EOF.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	t := newStdioTransport(r, w)
	s.log.Info().Msg("serving")

	for {
		msg, err := t.receive()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.log.Info().Msg("client closed the stream")
			return nil
		}
		if errors.Is(err, errBadFrame) {
			// body consumed, stream still framed: answer and keep going
			if sendErr := t.send(errorResponse(nil, &RPCError{Code: codeParseError, Message: err.Error()})); sendErr != nil {
				return sendErr
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("receive: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if msg.isNotification() {
			s.log.Debug().Str("method", msg.Method).Msg("notification ignored")
			continue
		}

		if err := t.send(s.dispatch(ctx, msg)); err != nil {
			return fmt.Errorf("send response: %w", err)
		}
	}
}

// dispatch routes one request to its handler and wraps the outcome.
func (s *Server) dispatch(ctx context.Context, msg *Message) *Message {
	start := time.Now()

	var (
		result any
		err    error
	)
	switch msg.Method {
	case "initialize":
		result = s.initialize()
	case "ping":
		result = struct{}{}
	case "tools/list":
		result = s.listTools()
	case "tools/call":
		result, err = s.callTool(ctx, msg.Params)
	case "resources/list":
		result, err = s.listResources(ctx)
	case "resources/read":
		result, err = s.readResource(ctx, msg.Params)
	case "prompts/list":
		result = listPrompts()
	case "prompts/get":
		result, err = getPrompt(msg.Params)
	case "":
		err = &RPCError{Code: codeInvalidRequest, Message: "request has no method"}
	default:
		err = &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method %q", msg.Method)}
	}

	evt := s.log.Debug().Str("method", msg.Method).Dur("took", time.Since(start))
	if err != nil {
		evt.Err(err).Msg("request failed")
		return errorResponse(msg.ID, err)
	}
	evt.Msg("request served")
	return response(msg.ID, result)
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type capabilities struct {
	Tools     struct{} `json:"tools"`
	Resources struct{} `json:"resources"`
	Prompts   struct{} `json:"prompts"`
}

type initializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    capabilities `json:"capabilities"`
	ServerInfo      serverInfo   `json:"serverInfo"`
}

func (s *Server) initialize() initializeResult {
	return initializeResult{
		ProtocolVersion: protocolVersion,
		ServerInfo:      serverInfo{Name: serverName, Version: serverVersion},
	}
}
