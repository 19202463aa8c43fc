package models

// ListFilesResponse answers a catalog listing.
type ListFilesResponse struct {
	Directory string       `json:"directory" yaml:"directory"`
	Count     int          `json:"count" yaml:"count"`
	Files     []Descriptor `json:"files" yaml:"files"`
}

// CacheInfo tells the caller whether the descriptor and handle came from cache.
type CacheInfo struct {
	MetadataCached bool `json:"metadata_cached" yaml:"metadata_cached"`
	HandleCached   bool `json:"handle_cached" yaml:"handle_cached"`
}

type MetadataResponse struct {
	Descriptor    `yaml:",inline"`
	MainEntryPath string    `json:"main_entry_path,omitempty" yaml:"main_entry_path,omitempty"`
	MetadataKeys  []string  `json:"metadata_keys,omitempty" yaml:"metadata_keys,omitempty"`
	CacheInfo     CacheInfo `json:"cache_info" yaml:"cache_info"`
}

// EntryResponse wraps extracted content with its archive.
type EntryResponse struct {
	Filename         string `json:"filename" yaml:"filename"`
	ExtractedContent `yaml:",inline"`
	// Image holds raw bytes when the caller asked for displayable images.
	Image *ImagePayload `json:"-" yaml:"-"`
}

// ImagePayload is an image returned for protocol-level display.
type ImagePayload struct {
	MimeType string
	Data     []byte
}

// RandomEntry is one sampled entry.
type RandomEntry struct {
	Filename string `json:"filename" yaml:"filename"`
	Path     string `json:"path" yaml:"path"`
	Title    string `json:"title" yaml:"title"`
	MimeType string `json:"mime_type" yaml:"mime_type"`
}

type RandomEntriesResponse struct {
	Requested int           `json:"requested" yaml:"requested"`
	Returned  int           `json:"returned" yaml:"returned"`
	Archives  []string      `json:"archives" yaml:"archives"`
	Entries   []RandomEntry `json:"entries" yaml:"entries"`
}

// SearchHit is one search result.
type SearchHit struct {
	Filename string  `json:"filename" yaml:"filename"`
	Path     string  `json:"path" yaml:"path"`
	Title    string  `json:"title" yaml:"title"`
	Snippet  string  `json:"snippet,omitempty" yaml:"snippet,omitempty"`
	Score    float64 `json:"score" yaml:"score"`
}

type SearchResponse struct {
	Query      string      `json:"query" yaml:"query"`
	Archives   []string    `json:"archives" yaml:"archives"`
	Offset     int         `json:"offset" yaml:"offset"`
	MaxResults int         `json:"max_results" yaml:"max_results"`
	Count      int         `json:"count" yaml:"count"`
	HasMore    bool        `json:"has_more" yaml:"has_more"`
	Results    []SearchHit `json:"results" yaml:"results"`
	Unsearched []string    `json:"unsearched,omitempty" yaml:"unsearched,omitempty"`
}

// HealthStatus is served on /health.
type HealthStatus struct {
	Status       string `json:"status" yaml:"status"`
	Directory    string `json:"directory" yaml:"directory"`
	ArchiveCount int    `json:"archive_count" yaml:"archive_count"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
}
