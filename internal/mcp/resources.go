package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dtnitsch/llm-archive-reader/internal/app"
	"github.com/dtnitsch/llm-archive-reader/models"
	"github.com/dtnitsch/llm-archive-reader/pkg/faults"
)

const (
	archiveScheme  = "archive://"
	filesURI       = archiveScheme + "files"
	metadataSuffix = "/metadata"
	entrySeparator = "/entry/"
)

func getAllResources() []ResourceListItem {
	return []ResourceListItem{
		{
			URI:         filesURI,
			Name:        "Archive list",
			Description: "Every archive in the archive directory",
			MimeType:    "application/json",
		},
	}
}

func getResourceTemplates() []ResourceTemplate {
	return []ResourceTemplate{
		{
			URITemplate: archiveScheme + "{filename}/metadata",
			Name:        "Archive metadata",
			Description: "Descriptor and metadata keys of one archive",
			MimeType:    "application/json",
		},
		{
			URITemplate: archiveScheme + "{filename}/entry/{path}",
			Name:        "Archive entry",
			Description: "Processed content of one entry",
			MimeType:    "text/markdown",
		},
	}
}

// ResourceNotFoundError is returned for URIs that name no resource.
type ResourceNotFoundError struct {
	URI string
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.URI)
}

func (s *Server) readResource(uri string) ([]ResourceContent, error) {
	if !strings.HasPrefix(uri, archiveScheme) {
		return nil, &ResourceNotFoundError{URI: uri}
	}
	rest := strings.TrimPrefix(uri, archiveScheme)

	switch {
	case rest == "files":
		resp, err := s.svc.ListFiles()
		if err != nil {
			return nil, err
		}
		return jsonContent(uri, resp)

	case strings.Contains(rest, entrySeparator):
		i := strings.Index(rest, entrySeparator)
		filename, err := resourceSegment(rest[:i])
		if err != nil {
			return nil, err
		}
		path, err := resourceSegment(rest[i+len(entrySeparator):])
		if err != nil {
			return nil, err
		}
		resp, err := s.svc.ReadEntry(filename, path, app.ReadOptions{})
		if err != nil {
			return nil, err
		}
		mime := "text/plain"
		if resp.ContentKind == models.KindMarkdown {
			mime = "text/markdown"
		}
		return []ResourceContent{{URI: uri, MimeType: mime, Text: resp.Content}}, nil

	case strings.HasSuffix(rest, metadataSuffix):
		filename, err := resourceSegment(strings.TrimSuffix(rest, metadataSuffix))
		if err != nil {
			return nil, err
		}
		resp, err := s.svc.Metadata(filename)
		if err != nil {
			return nil, err
		}
		return jsonContent(uri, resp)
	}
	return nil, &ResourceNotFoundError{URI: uri}
}

// resourceSegment unescapes one URI component and rejects parent references.
func resourceSegment(raw string) (string, error) {
	s, err := url.PathUnescape(raw)
	if err != nil {
		s = raw
	}
	if s == "" {
		return "", faults.InvalidInput("resource uri has an empty component")
	}
	for _, part := range strings.Split(s, "/") {
		if part == ".." {
			return "", faults.InvalidInput("resource uri must not contain parent references: %q", raw)
		}
	}
	return s, nil
}

func jsonContent(uri string, v any) ([]ResourceContent, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []ResourceContent{{URI: uri, MimeType: "application/json", Text: string(b)}}, nil
}

func resourceErrorCode(err error) int {
	var nf *ResourceNotFoundError
	switch {
	case errors.As(err, &nf), faults.IsNotFound(err):
		return ResourceNotFound
	case faults.IsInvalidInput(err), faults.IsInvalidPath(err):
		return InvalidParams
	default:
		return InternalError
	}
}
