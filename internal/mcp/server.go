// Package mcp serves archive operations over the Model Context Protocol.
package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/dtnitsch/llm-archive-reader/internal/app"
	"github.com/dtnitsch/llm-archive-reader/models"
	"github.com/dtnitsch/llm-archive-reader/pkg/help"
	"github.com/dtnitsch/llm-archive-reader/pkg/logger"
	"github.com/dtnitsch/llm-archive-reader/pkg/metrics"
)

// Service is the set of archive operations the server exposes.
type Service interface {
	ListFiles() (*models.ListFilesResponse, error)
	Metadata(filename string) (*models.MetadataResponse, error)
	ReadEntry(filename, path string, opts app.ReadOptions) (*models.EntryResponse, error)
	MainEntry(filename string, opts app.ReadOptions) (*models.EntryResponse, error)
	RandomEntries(filenames []string, count int) (*models.RandomEntriesResponse, error)
	Search(query string, filenames []string, maxResults, offset int) (*models.SearchResponse, error)
	CacheStats() models.CacheStats
}

// Server handles MCP requests.
type Server struct {
	svc Service
	log logger.Logger
}

// NewServer creates a new MCP server.
func NewServer(svc Service, log logger.Logger) *Server {
	return &Server{svc: svc, log: logger.OrNop(log)}
}

// HandleRequest processes an MCP request. It returns nil for notifications.
func (s *Server) HandleRequest(req *Request) *Response {
	resp := s.dispatch(req)

	status := "ok"
	if resp != nil && resp.Error != nil {
		status = "error"
	}
	metrics.RecordRequest(req.Method, status)

	if req.ID == nil {
		return nil
	}
	return resp
}

func (s *Server) dispatch(req *Request) *Response {
	if req.JSONRPC != jsonRPCVersion || req.Method == "" {
		return s.errorResponse(req.ID, InvalidRequest, "Invalid request")
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req.ID)
	case "ping":
		return s.successResponse(req.ID, map[string]any{})
	case "tools/list":
		return s.successResponse(req.ID, map[string]any{"tools": getAllTools()})
	case "tools/call":
		return s.handleToolsCall(req)
	case "resources/list":
		return s.successResponse(req.ID, map[string]any{"resources": getAllResources()})
	case "resources/templates/list":
		return s.successResponse(req.ID, map[string]any{"resourceTemplates": getResourceTemplates()})
	case "resources/read":
		return s.handleResourcesRead(req)
	case "notifications/initialized", "notifications/cancelled":
		return nil
	default:
		return s.errorResponse(req.ID, MethodNotFound, "Method not found: "+req.Method)
	}
}

func (s *Server) handleInitialize(id any) *Response {
	return s.successResponse(id, map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    serverName,
			"version": serverVersion,
		},
		"instructions": help.ColdstartYAML,
	})
}

func (s *Server) handleToolsCall(req *Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, InvalidParams, "Invalid parameters")
	}

	handler, ok := toolHandlers[params.Name]
	if !ok {
		return s.errorResponse(req.ID, MethodNotFound, "Unknown tool: "+params.Name)
	}
	args := params.Arguments
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}
	return handler(s, req.ID, args)
}

func (s *Server) handleResourcesRead(req *Request) *Response {
	var params ReadResourceParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.URI == "" {
		return s.errorResponse(req.ID, InvalidParams, "uri is required")
	}

	contents, err := s.readResource(params.URI)
	if err != nil {
		s.log.Warn("resource read failed",
			logger.String("uri", params.URI),
			logger.Error(err),
		)
		return s.errorResponse(req.ID, resourceErrorCode(err), err.Error())
	}
	return s.successResponse(req.ID, map[string]any{"contents": contents})
}

func (s *Server) successResponse(id any, result any) *Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return s.errorResponse(id, InternalError, fmt.Sprintf("Failed to marshal result: %v", err))
	}
	return &Response{JSONRPC: jsonRPCVersion, ID: id, Result: raw}
}

func (s *Server) errorResponse(id any, code int, message string) *Response {
	return &Response{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &ErrorObject{Code: code, Message: message},
	}
}
