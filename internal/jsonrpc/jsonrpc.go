// Package jsonrpc holds the JSON-RPC 2.0 envelope types used on the /mcp
// endpoint and the outbound payload sanitizer.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const Version = "2.0"

const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports a request without an id; it gets no response.
func (r Request) IsNotification() bool {
	return len(r.ID) == 0
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

func NewResult(id json.RawMessage, result any) Response {
	return Response{JSONRPC: Version, ID: id, Result: result}
}

func NewError(id json.RawMessage, err *Error) Response {
	return Response{JSONRPC: Version, ID: id, Error: err}
}

var ErrEmptyBatch = errors.New("empty batch")

// Split separates a request body into its messages. batch reports whether
// the body was a JSON array.
func Split(body []byte) (msgs []json.RawMessage, batch bool, err error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false, errors.New("empty body")
	}

	if trimmed[0] != '[' {
		if !json.Valid(trimmed) {
			return nil, false, errors.New("invalid json")
		}
		return []json.RawMessage{json.RawMessage(trimmed)}, false, nil
	}

	if err := json.Unmarshal(trimmed, &msgs); err != nil {
		return nil, true, fmt.Errorf("decode batch: %w", err)
	}
	if len(msgs) == 0 {
		return nil, true, ErrEmptyBatch
	}
	return msgs, true, nil
}

// Decode parses one message. The returned id is usable for an error reply
// even when the message itself is invalid.
func Decode(raw json.RawMessage) (Request, *Error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, &Error{Code: CodeInvalidRequest, Message: "invalid request"}
	}
	if req.JSONRPC != Version {
		return req, &Error{Code: CodeInvalidRequest, Message: `jsonrpc must be "2.0"`}
	}
	if req.Method == "" {
		return req, &Error{Code: CodeInvalidRequest, Message: "method is required"}
	}
	return req, nil
}
