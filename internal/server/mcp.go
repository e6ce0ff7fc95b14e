package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marcin-skalski/workflow-monitor/internal/jsonrpc"
	"github.com/marcin-skalski/workflow-monitor/internal/monitor"
	"github.com/marcin-skalski/workflow-monitor/internal/snapshot"
)

const (
	ToolRender   = "render_workflow_monitor"
	ToolGetState = "get_dashboard_state"

	defaultProtocolVersion = "2025-06-18"
	maxBodyBytes           = 1 << 20
)

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

type tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type toolArgs struct {
	Repo    string      `json:"repo"`
	PR      json.Number `json:"pr"`
	Refresh bool        `json:"refresh"`
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolMeta struct {
	UI struct {
		ResourceURI string `json:"resourceUri"`
	} `json:"ui"`
}

// toolResult is shaped by the configured result schema: v2 carries the
// snapshot in structuredContent with an empty content array (stripped on the
// way out), v1 carries it as JSON text.
type toolResult struct {
	Schema            string             `json:"__schema,omitempty"`
	StructuredContent *snapshot.Snapshot `json:"structuredContent,omitempty"`
	Content           []textContent      `json:"content"`
	Meta              *toolMeta          `json:"_meta,omitempty"`
}

var toolInputSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"repo":    map[string]any{"type": "string", "description": "GitHub repository (owner/repo)"},
		"pr":      map[string]any{"type": "number", "description": "Optional pull request number"},
		"refresh": map[string]any{"type": "boolean", "description": "Bypass the cache and fetch fresh state"},
	},
	"required": []string{"repo"},
}

var tools = []tool{
	{
		Name:        ToolRender,
		Description: "Return widget meta and the initial snapshot for repo/pr.",
		InputSchema: toolInputSchema,
	},
	{
		Name:        ToolGetState,
		Description: "Return the snapshot only, for refresh.",
		InputSchema: toolInputSchema,
	},
}

// handleMCP handles POST /mcp: one JSON-RPC message or a batch.
func (s *Server) handleMCP(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		s.writeRPC(c, jsonrpc.NewError(nil, &jsonrpc.Error{Code: jsonrpc.CodeParseError, Message: "read body"}))
		return
	}

	msgs, batch, err := jsonrpc.Split(body)
	if err != nil {
		code := jsonrpc.CodeParseError
		if errors.Is(err, jsonrpc.ErrEmptyBatch) {
			code = jsonrpc.CodeInvalidRequest
		}
		s.writeRPC(c, jsonrpc.NewError(nil, &jsonrpc.Error{Code: code, Message: err.Error()}))
		return
	}

	responses := make([]jsonrpc.Response, 0, len(msgs))
	for _, raw := range msgs {
		if resp, ok := s.dispatch(c.Request.Context(), raw); ok {
			responses = append(responses, resp)
		}
	}

	switch {
	case len(responses) == 0:
		c.Status(http.StatusAccepted)
	case batch:
		s.writeRPC(c, responses)
	default:
		s.writeRPC(c, responses[0])
	}
}

func (s *Server) writeRPC(c *gin.Context, payload any) {
	out, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("encode jsonrpc response", "err", err, "request_id", c.GetString(requestIDKey))
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}
	c.Data(http.StatusOK, "application/json", jsonrpc.Sanitize(out))
}

// dispatch runs one message. ok is false for notifications, which get no
// response even when they fail.
func (s *Server) dispatch(ctx context.Context, raw json.RawMessage) (resp jsonrpc.Response, ok bool) {
	req, rpcErr := jsonrpc.Decode(raw)
	if rpcErr != nil {
		return jsonrpc.NewError(req.ID, rpcErr), true
	}

	result, rpcErr := s.call(ctx, req)
	if req.IsNotification() {
		if rpcErr != nil {
			s.logger.Debug("notification failed", "method", req.Method, "err", rpcErr.Message)
		}
		return jsonrpc.Response{}, false
	}
	if rpcErr != nil {
		return jsonrpc.NewError(req.ID, rpcErr), true
	}
	return jsonrpc.NewResult(req.ID, result), true
}

func (s *Server) call(ctx context.Context, req jsonrpc.Request) (any, *jsonrpc.Error) {
	switch req.Method {
	case "initialize":
		return s.initialize(req.Params), nil
	case "ping":
		return struct{}{}, nil
	case "tools/list":
		return map[string]any{"tools": tools}, nil
	case "tools/call":
		return s.callTool(ctx, req.Params)
	case "notifications/initialized", "notifications/cancelled":
		// Only reached when sent with an id; the reply still needs a result.
		return struct{}{}, nil
	default:
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeMethodNotFound, Message: "method not found: " + req.Method}
	}
}

func (s *Server) initialize(params json.RawMessage) initializeResult {
	var p struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	_ = json.Unmarshal(params, &p)
	if p.ProtocolVersion == "" {
		p.ProtocolVersion = defaultProtocolVersion
	}
	return initializeResult{
		ProtocolVersion: p.ProtocolVersion,
		Capabilities:    map[string]any{"tools": map[string]any{}},
		ServerInfo:      serverInfo{Name: s.opts.Name, Version: s.opts.Version},
	}
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (any, *jsonrpc.Error) {
	var p callParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "invalid tools/call params"}
	}
	if p.Name != ToolRender && p.Name != ToolGetState {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeMethodNotFound, Message: "tool not found: " + p.Name}
	}

	req, err := decodeArgs(p.Arguments)
	if err != nil {
		return nil, &jsonrpc.Error{
			Code:    jsonrpc.CodeInvalidParams,
			Message: err.Error(),
			Data:    map[string]string{"code": string(monitor.CodeInvalidArgument)},
		}
	}

	snap, err := s.svc.Snapshot(ctx, req)
	if err != nil {
		code := monitor.CodeOf(err)
		return nil, &jsonrpc.Error{
			Code:    rpcCode(code),
			Message: monitor.PublicMessage(err),
			Data:    map[string]string{"code": string(code)},
		}
	}

	res, err := s.toolResult(p.Name, snap)
	if err != nil {
		s.logger.Error("encode tool result", "tool", p.Name, "err", err)
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: "internal error"}
	}
	return res, nil
}

func decodeArgs(raw json.RawMessage) (monitor.Request, error) {
	var args toolArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return monitor.Request{}, fmt.Errorf("invalid arguments: %w", err)
		}
	}

	req := monitor.Request{Repo: args.Repo, ForceRefresh: args.Refresh}
	if args.PR != "" {
		pr, err := args.PR.Int64()
		if err != nil {
			return monitor.Request{}, fmt.Errorf("pr must be an integer, got %s", args.PR)
		}
		req.PR = int(pr)
	}
	return req, nil
}

func (s *Server) toolResult(name string, snap *snapshot.Snapshot) (toolResult, error) {
	var res toolResult
	if s.opts.ResultSchema == ResultSchemaV1 {
		text, err := json.Marshal(snap)
		if err != nil {
			return toolResult{}, err
		}
		res.Content = []textContent{{Type: "text", Text: string(text)}}
	} else {
		res.Schema = jsonrpc.SchemaObjectResult
		res.StructuredContent = snap
		res.Content = []textContent{}
	}

	if name == ToolRender && s.opts.UIResourceURI != "" {
		res.Meta = &toolMeta{}
		res.Meta.UI.ResourceURI = s.opts.UIResourceURI
	}
	return res, nil
}
