// Package server exposes the memory service over JSON-RPC 2.0 on stdio:
// every operation is a named tool, stored memories are resources, and a
// pair of canned prompt templates rides along for capture and recall.
package server

import (
	"encoding/json"
	"errors"

	"github.com/keepsake-ai/keepsake/internal/model"
)

const (
	protocolVersion = "2024-11-05"
	serverName      = "keepsake"
	serverVersion   = "0.3.0"
)

// Message is one JSON-RPC 2.0 message. Requests carry Method and Params;
// responses carry Result or Error. The ID stays raw so its type (number
// or string) survives the round trip.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// isNotification reports whether the message expects no response.
func (m *Message) isNotification() bool {
	return len(m.ID) == 0 || string(m.ID) == "null"
}

// RPCError is the JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// JSON-RPC 2.0 standard codes plus this server's domain codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603

	codeNotFound        = -32002
	codePathOutsideRoot = -32003
	codeIOFailure       = -32004
)

// errorCode maps a service error to its wire code.
func errorCode(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return codeInvalidParams
	case errors.Is(err, model.ErrNotFound):
		return codeNotFound
	case errors.Is(err, model.ErrPathOutsideRoot):
		return codePathOutsideRoot
	case errors.Is(err, model.ErrIO):
		return codeIOFailure
	default:
		return codeInternalError
	}
}

// response builds a success message echoing the request id.
func response(id json.RawMessage, result any) *Message {
	return &Message{JSONRPC: "2.0", ID: id, Result: result}
}

// errorResponse builds an error message. A *RPCError passes through
// unchanged; anything else is classified by errorCode.
func errorResponse(id json.RawMessage, err error) *Message {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		rpcErr = &RPCError{Code: errorCode(err), Message: err.Error()}
	}
	return &Message{JSONRPC: "2.0", ID: id, Error: rpcErr}
}
