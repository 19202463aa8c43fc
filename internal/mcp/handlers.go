package mcp

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/dtnitsch/llm-archive-reader/internal/app"
	"github.com/dtnitsch/llm-archive-reader/models"
	"github.com/dtnitsch/llm-archive-reader/pkg/faults"
	"github.com/dtnitsch/llm-archive-reader/pkg/logger"
)

const (
	defaultMaxResults  = 20
	defaultRandomCount = 5
)

type entryArgs struct {
	Archive            string `json:"archive"`
	EntryPath          string `json:"entry_path"`
	RawOutput          bool   `json:"raw_output"`
	ReturnMarkdownOnly *bool  `json:"return_markdown_only"`
}

func (a entryArgs) markdownOnly() bool {
	return a.ReturnMarkdownOnly == nil || *a.ReturnMarkdownOnly
}

func (a entryArgs) options() app.ReadOptions {
	return app.ReadOptions{Raw: a.RawOutput, Images: !a.RawOutput}
}

func (s *Server) handleListArchives(id any, _ json.RawMessage) *Response {
	resp, err := s.svc.ListFiles()
	if err != nil {
		return s.toolError(id, "list_archives", err)
	}
	return s.toolJSON(id, resp)
}

func (s *Server) handleGetArchiveMetadata(id any, arguments json.RawMessage) *Response {
	var args struct {
		Archive string `json:"archive"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return s.errorResponse(id, InvalidParams, "Invalid arguments: "+err.Error())
	}
	if args.Archive == "" {
		return s.errorResponse(id, InvalidParams, "archive is required")
	}

	resp, err := s.svc.Metadata(args.Archive)
	if err != nil {
		return s.toolError(id, "get_archive_metadata", err)
	}
	return s.toolJSON(id, resp)
}

func (s *Server) handleReadEntry(id any, arguments json.RawMessage) *Response {
	var args entryArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return s.errorResponse(id, InvalidParams, "Invalid arguments: "+err.Error())
	}
	if args.Archive == "" || args.EntryPath == "" {
		return s.errorResponse(id, InvalidParams, "archive and entry_path are required")
	}

	resp, err := s.svc.ReadEntry(args.Archive, args.EntryPath, args.options())
	if err != nil {
		return s.toolError(id, "read_entry", err)
	}
	return s.entryResult(id, resp, args)
}

func (s *Server) handleGetMainEntry(id any, arguments json.RawMessage) *Response {
	var args entryArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return s.errorResponse(id, InvalidParams, "Invalid arguments: "+err.Error())
	}
	if args.Archive == "" {
		return s.errorResponse(id, InvalidParams, "archive is required")
	}

	resp, err := s.svc.MainEntry(args.Archive, args.options())
	if err != nil {
		return s.toolError(id, "get_main_entry", err)
	}
	return s.entryResult(id, resp, args)
}

func (s *Server) handleSearchArchives(id any, arguments json.RawMessage) *Response {
	var args struct {
		Query       string   `json:"query"`
		Archives    []string `json:"archives"`
		MaxResults  *int     `json:"max_results"`
		StartOffset int      `json:"start_offset"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return s.errorResponse(id, InvalidParams, "Invalid arguments: "+err.Error())
	}
	maxResults := defaultMaxResults
	if args.MaxResults != nil {
		maxResults = *args.MaxResults
	}

	resp, err := s.svc.Search(args.Query, args.Archives, maxResults, args.StartOffset)
	if err != nil {
		return s.toolError(id, "search_archives", err)
	}
	return s.toolJSON(id, resp)
}

func (s *Server) handleGetRandomEntries(id any, arguments json.RawMessage) *Response {
	var args struct {
		Archives []string `json:"archives"`
		Count    *int     `json:"count"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return s.errorResponse(id, InvalidParams, "Invalid arguments: "+err.Error())
	}
	count := defaultRandomCount
	if args.Count != nil {
		count = *args.Count
	}

	resp, err := s.svc.RandomEntries(args.Archives, count)
	if err != nil {
		return s.toolError(id, "get_random_entries", err)
	}
	return s.toolJSON(id, resp)
}

func (s *Server) handleGetCacheStats(id any, _ json.RawMessage) *Response {
	return s.toolJSON(id, s.svc.CacheStats())
}

// entryResult picks the result shape: an image block, bare markdown, or the
// structured response.
func (s *Server) entryResult(id any, resp *models.EntryResponse, args entryArgs) *Response {
	if resp.Image != nil {
		return s.successResponse(id, ToolResult{Content: []ContentItem{
			{Type: "image", Data: base64.StdEncoding.EncodeToString(resp.Image.Data), MimeType: resp.Image.MimeType},
			{Type: "text", Text: fmt.Sprintf("%s (%s, %d bytes)", resp.Path, resp.Image.MimeType, len(resp.Image.Data))},
		}})
	}
	if args.markdownOnly() && !args.RawOutput && resp.ContentKind == models.KindMarkdown {
		return s.toolText(id, resp.Content)
	}
	return s.toolJSON(id, resp)
}

func (s *Server) toolText(id any, text string) *Response {
	return s.successResponse(id, ToolResult{Content: []ContentItem{{Type: "text", Text: text}}})
}

func (s *Server) toolJSON(id any, v any) *Response {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return s.errorResponse(id, InternalError, fmt.Sprintf("Failed to marshal result: %v", err))
	}
	return s.toolText(id, string(b))
}

// toolError reports a failed tool call as an isError result.
func (s *Server) toolError(id any, tool string, err error) *Response {
	s.log.Warn("tool call failed",
		logger.String("tool", tool),
		logger.String("code", faults.Code(err)),
		logger.Error(err),
	)
	return s.successResponse(id, ToolResult{
		Content: []ContentItem{{Type: "text", Text: "Error: " + err.Error()}},
		IsError: true,
	})
}
