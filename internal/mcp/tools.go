package mcp

import "encoding/json"

type toolHandler func(s *Server, id any, arguments json.RawMessage) *Response

var toolHandlers = map[string]toolHandler{
	"list_archives":        (*Server).handleListArchives,
	"get_archive_metadata": (*Server).handleGetArchiveMetadata,
	"read_entry":           (*Server).handleReadEntry,
	"search_archives":      (*Server).handleSearchArchives,
	"get_random_entries":   (*Server).handleGetRandomEntries,
	"get_main_entry":       (*Server).handleGetMainEntry,
	"get_cache_stats":      (*Server).handleGetCacheStats,
}

// getAllTools returns every tool definition in a stable order.
func getAllTools() []Tool {
	return []Tool{
		{
			Name:        "list_archives",
			Description: "List every archive in the archive directory with its title, language, size and entry counts.",
			InputSchema: objectSchema(nil, nil),
		},
		{
			Name:        "get_archive_metadata",
			Description: "Get the descriptor of one archive, its metadata keys, main entry path and whether the descriptor was cached.",
			InputSchema: objectSchema(map[string]any{
				"archive": archiveProperty,
			}, []string{"archive"}),
		},
		{
			Name: "read_entry",
			Description: "Read one entry by path. HTML becomes markdown, JSON is pretty-printed, images are returned " +
				"for display and other binaries are described. raw_output returns text verbatim and binaries base64-encoded.",
			InputSchema: objectSchema(map[string]any{
				"archive": archiveProperty,
				"entry_path": map[string]any{
					"type":        "string",
					"description": "Path of the entry inside the archive, as returned by search or random entries",
				},
				"raw_output":           rawOutputProperty,
				"return_markdown_only": markdownOnlyProperty,
			}, []string{"archive", "entry_path"}),
		},
		{
			Name:        "search_archives",
			Description: "Search entry titles across one or more archives. Results come back in archive order with pagination.",
			InputSchema: objectSchema(map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query",
					"minLength":   1,
					"maxLength":   1000,
				},
				"archives": archivesProperty,
				"max_results": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results to return",
					"minimum":     1,
					"maximum":     100,
					"default":     defaultMaxResults,
				},
				"start_offset": map[string]any{
					"type":        "integer",
					"description": "Zero-based position of the first result",
					"minimum":     0,
					"default":     0,
				},
			}, []string{"query"}),
		},
		{
			Name:        "get_random_entries",
			Description: "Draw random entries spread evenly across archives. May return fewer entries than requested.",
			InputSchema: objectSchema(map[string]any{
				"archives": archivesProperty,
				"count": map[string]any{
					"type":        "integer",
					"description": "Number of entries to return",
					"minimum":     1,
					"maximum":     50,
					"default":     defaultRandomCount,
				},
			}, nil),
		},
		{
			Name:        "get_main_entry",
			Description: "Read the archive's main entry (home page), following redirects.",
			InputSchema: objectSchema(map[string]any{
				"archive":              archiveProperty,
				"raw_output":           rawOutputProperty,
				"return_markdown_only": markdownOnlyProperty,
			}, []string{"archive"}),
		},
		{
			Name:        "get_cache_stats",
			Description: "Report archive handle and descriptor cache occupancy.",
			InputSchema: objectSchema(nil, nil),
		},
	}
}

func objectSchema(properties map[string]any, required []string) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var (
	archiveProperty = map[string]any{
		"type":        "string",
		"description": "Archive filename relative to the archive directory, as returned by list_archives",
	}
	archivesProperty = map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": "Archives to use. Defaults to every available archive",
	}
	rawOutputProperty = map[string]any{
		"type":        "boolean",
		"description": "Return original content without processing",
		"default":     false,
	}
	markdownOnlyProperty = map[string]any{
		"type":        "boolean",
		"description": "Return bare markdown text instead of the structured response when the entry is HTML",
		"default":     true,
	}
)
