package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/wondertwin-ai/ecoscan/internal/client"
)

// Version is reported in the initialize handshake.
const Version = "0.1.0"

// Server exposes ecoscan tools over JSON-RPC 2.0, one message per line.
type Server struct {
	client *client.Client
	tools  []toolEntry
	stdin  io.Reader
	stdout io.Writer
}

// NewServer creates a server on os.Stdin/os.Stdout backed by c.
func NewServer(c *client.Client) *Server {
	return NewServerIO(c, os.Stdin, os.Stdout)
}

// NewServerIO creates a server reading requests from in and writing
// responses to out.
func NewServerIO(c *client.Client, in io.Reader, out io.Writer) *Server {
	return &Server{
		client: c,
		tools:  allTools(),
		stdin:  in,
		stdout: out,
	}
}

// Serve reads requests until stdin is closed or ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	scanner := bufio.NewScanner(s.stdin)
	// Seeds and exports can be large.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(newErrorResponse(nil, ErrCodeParse, "parse error: "+err.Error()))
			continue
		}
		if req.JSONRPC != "2.0" {
			if !req.IsNotification() {
				s.writeResponse(newErrorResponse(req.ID, ErrCodeInvalidReq, "jsonrpc must be \"2.0\""))
			}
			continue
		}

		if resp, ok := s.dispatch(ctx, &req); ok {
			s.writeResponse(resp)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	return nil
}

// dispatch returns false when no reply should be written.
func (s *Server) dispatch(ctx context.Context, req *Request) (Response, bool) {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req), true
	case "notifications/initialized":
		return Response{}, false
	case "ping":
		return newResponse(req.ID, map[string]any{}), true
	case "tools/list":
		return s.handleToolsList(req), true
	case "tools/call":
		return s.handleToolsCall(ctx, req), true
	default:
		if req.IsNotification() {
			return Response{}, false
		}
		return newErrorResponse(req.ID, ErrCodeNoMethod, "method not found: "+req.Method), true
	}
}

func (s *Server) handleInitialize(req *Request) Response {
	return newResponse(req.ID, map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    "ecoscan-mcp",
			"version": Version,
		},
	})
}

func (s *Server) handleToolsList(req *Request) Response {
	tools := make([]Tool, len(s.tools))
	for i, t := range s.tools {
		tools[i] = t.Tool
	}
	return newResponse(req.ID, map[string]any{"tools": tools})
}

type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) Response {
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return newErrorResponse(req.ID, ErrCodeInvalidParams, "invalid params: "+err.Error())
	}

	for _, t := range s.tools {
		if t.Tool.Name == params.Name {
			return newResponse(req.ID, t.Handler(ctx, s.client, params.Arguments))
		}
	}
	return newErrorResponse(req.ID, ErrCodeNoMethod, "unknown tool: "+params.Name)
}

func (s *Server) writeResponse(resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		fmt.Fprintln(s.stdout, `{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal marshal error"}}`)
		return
	}
	fmt.Fprintf(s.stdout, "%s\n", data)
}
