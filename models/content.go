package models

// ContentKind names the representation chosen for an extracted entry.
type ContentKind string

const (
	KindMarkdown       ContentKind = "markdown"
	KindText           ContentKind = "text"
	KindImageMetadata  ContentKind = "image-metadata"
	KindJSON           ContentKind = "json"
	KindBinaryMetadata ContentKind = "binary-metadata"
	KindRedirect       ContentKind = "redirect"
	KindRaw            ContentKind = "raw"
)

// ExtractedContent is one entry rendered for a caller. ContentLength is the
// byte length of the source payload, before conversion or truncation.
type ExtractedContent struct {
	Path             string      `json:"path" yaml:"path"`
	Title            string      `json:"title" yaml:"title"`
	Content          string      `json:"content" yaml:"content"`
	ContentKind      ContentKind `json:"content_type" yaml:"content_type"`
	ContentLength    int         `json:"content_length" yaml:"content_length"`
	MimeType         string      `json:"mime_type" yaml:"mime_type"`
	ProcessingTimeMs float64     `json:"processing_time_ms" yaml:"processing_time_ms"`
	IsRedirect       bool        `json:"is_redirect" yaml:"is_redirect"`
	RedirectTarget   string      `json:"redirect_target,omitempty" yaml:"redirect_target,omitempty"`
}
