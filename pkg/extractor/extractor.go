// Package extractor turns archive entries into caller-facing text.
//
// Entries are classified once by MIME type and handed to the first matching
// route. Raw mode bypasses the routes: text is passed through and everything
// else is base64 encoded.
package extractor

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dtnitsch/llm-archive-reader/models"
	"github.com/dtnitsch/llm-archive-reader/pkg/archive"
	"github.com/dtnitsch/llm-archive-reader/pkg/convert"
	"github.com/dtnitsch/llm-archive-reader/pkg/logger"
	"github.com/dtnitsch/llm-archive-reader/pkg/metrics"
)

const (
	DefaultMimeType = "application/octet-stream"

	RedirectPlaceholder = "[This is a redirect]"
	TruncationMarker    = "\n\n... [Content truncated at configured limit] ..."
)

// handler renders a processed entry. Returning an error yields the failure placeholder.
type handler func(p *Pipeline, src source) (string, models.ContentKind, error)

type route struct {
	match  func(mime string) bool
	handle handler
}

// source is the entry payload as read once from the archive.
type source struct {
	path  string
	title string
	mime  string
	body  []byte
}

// Pipeline is the content extraction pipeline. It is safe for concurrent use.
type Pipeline struct {
	maxLength int
	conv      convert.Converter
	log       logger.Logger
	routes    []route
	now       func() time.Time
}

// New returns a Pipeline truncating output at cfg.MaxContentLength runes.
func New(cfg models.ContentConfig, conv convert.Converter, log logger.Logger) *Pipeline {
	if conv == nil {
		conv = convert.NewMarkdown(cfg.UseReadability)
	}
	return &Pipeline{
		maxLength: cfg.MaxContentLength,
		conv:      conv,
		log:       logger.OrNop(log).With(logger.String("component", "extractor")),
		routes:    defaultRoutes,
		now:       time.Now,
	}
}

var defaultRoutes = []route{
	{match: prefix("text/html"), handle: (*Pipeline).renderHTML},
	{match: prefix("text/"), handle: (*Pipeline).renderText},
	{match: prefix("image/"), handle: (*Pipeline).renderImage},
	{match: exact("application/json"), handle: (*Pipeline).renderJSON},
	{match: func(string) bool { return true }, handle: (*Pipeline).renderBinary},
}

func prefix(p string) func(string) bool {
	return func(mime string) bool { return strings.HasPrefix(mime, p) }
}

func exact(m string) func(string) bool {
	return func(mime string) bool { return mime == m || strings.HasPrefix(mime, m+";") }
}

// Extract renders entry. raw selects passthrough mode. Failures never
// propagate; they become a placeholder in Content.
func (p *Pipeline) Extract(entry archive.Entry, raw bool) *models.ExtractedContent {
	out := &models.ExtractedContent{
		Path:  entry.Path(),
		Title: entry.Title(),
	}

	if entry.IsRedirect() {
		out.ContentKind = models.KindRedirect
		out.IsRedirect = true
		out.RedirectTarget = entry.RedirectTarget()
		out.MimeType = entry.MimeType()
		out.Content = RedirectPlaceholder
		if out.RedirectTarget != "" {
			out.Content = fmt.Sprintf("[This is a redirect to %s]", out.RedirectTarget)
		}
		metrics.RecordExtraction(string(out.ContentKind), 0)
		return out
	}

	start := p.now()
	content, kind, length, mime := p.run(entry, raw)
	elapsed := p.now().Sub(start)

	out.Content = p.truncate(content)
	out.ContentKind = kind
	out.ContentLength = length
	out.MimeType = mime
	if !raw {
		out.ProcessingTimeMs = float64(elapsed.Microseconds()) / 1000
	}
	metrics.RecordExtraction(string(kind), elapsed.Seconds())
	return out
}

func (p *Pipeline) run(entry archive.Entry, raw bool) (content string, kind models.ContentKind, length int, mime string) {
	mime = strings.TrimSpace(entry.MimeType())
	if mime == "" {
		mime = DefaultMimeType
	}

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("content extraction panicked",
				logger.String("path", entry.Path()),
				logger.String("mime_type", mime),
				logger.Any("panic", r),
			)
			content, kind = failure(fmt.Errorf("%v", r))
		}
	}()

	body, err := entry.Content()
	if err != nil {
		p.log.Error("failed to read entry content",
			logger.String("path", entry.Path()),
			logger.String("operation", "read"),
			logger.Error(err),
		)
		content, kind = failure(err)
		return content, kind, 0, mime
	}
	length = len(body)
	src := source{path: entry.Path(), title: entry.Title(), mime: mime, body: body}

	if raw {
		return rawContent(src), models.KindRaw, length, mime
	}

	for _, rt := range p.routes {
		if !rt.match(strings.ToLower(mime)) {
			continue
		}
		content, kind, err = rt.handle(p, src)
		if err != nil {
			p.log.Error("content extraction failed",
				logger.String("path", entry.Path()),
				logger.String("mime_type", mime),
				logger.Error(err),
			)
			content, kind = failure(err)
		}
		break
	}
	return content, kind, length, mime
}

func failure(err error) (string, models.ContentKind) {
	return fmt.Sprintf("[Content extraction failed: %v]", err), models.KindText
}

// truncate cuts s to maxLength runes and appends TruncationMarker.
func (p *Pipeline) truncate(s string) string {
	if p.maxLength <= 0 || utf8.RuneCountInString(s) <= p.maxLength {
		return s
	}
	n := 0
	for i := range s {
		if n == p.maxLength {
			return s[:i] + TruncationMarker
		}
		n++
	}
	return s
}

func (p *Pipeline) renderHTML(src source) (string, models.ContentKind, error) {
	start := p.now()
	md, err := p.conv.Convert(bytes.NewReader(src.body), ".html")
	if err != nil {
		p.log.Warn("markdown conversion failed, returning raw html",
			logger.String("path", src.path),
			logger.Error(err),
		)
		notice := fmt.Sprintf("[Markdown conversion failed: %v. Showing raw HTML content.]", err)
		return notice + "\n\n" + decodeText(src.body), models.KindText, nil
	}

	elapsed := p.now().Sub(start)
	var b strings.Builder
	b.WriteString(md)
	b.WriteString("\n\n---\n")
	fmt.Fprintf(&b, "- Original MIME type: %s\n", src.mime)
	b.WriteString("- Converted to: markdown\n")
	fmt.Fprintf(&b, "- Original size: %.1f KB\n", float64(len(src.body))/1024)
	fmt.Fprintf(&b, "- Processing time: %.2f ms", float64(elapsed.Microseconds())/1000)
	return b.String(), models.KindMarkdown, nil
}

func (p *Pipeline) renderText(src source) (string, models.ContentKind, error) {
	return decodeText(src.body), models.KindText, nil
}

func (p *Pipeline) renderImage(src source) (string, models.ContentKind, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Image: %s\n\n", src.title)
	fmt.Fprintf(&b, "- Path: %s\n", src.path)
	fmt.Fprintf(&b, "- MIME type: %s\n", src.mime)
	fmt.Fprintf(&b, "- Size: %d bytes\n\n", len(src.body))
	b.WriteString("Image content is binary. Request this entry with raw output enabled to receive the base64-encoded bytes.")
	return b.String(), models.KindImageMetadata, nil
}

func (p *Pipeline) renderJSON(src source) (string, models.ContentKind, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(src.body), "", "  "); err != nil {
		return decodeText(src.body), models.KindJSON, nil
	}
	return out.String(), models.KindJSON, nil
}

func (p *Pipeline) renderBinary(src source) (string, models.ContentKind, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Binary content: %s\n\n", src.title)
	fmt.Fprintf(&b, "- Path: %s\n", src.path)
	fmt.Fprintf(&b, "- MIME type: %s\n", src.mime)
	fmt.Fprintf(&b, "- Size: %d bytes\n\n", len(src.body))
	b.WriteString("This content cannot be displayed as text. Request this entry with raw output enabled to receive the base64-encoded bytes.")
	return b.String(), models.KindBinaryMetadata, nil
}

func rawContent(src source) string {
	if IsTextMime(src.mime) {
		return decodeText(src.body)
	}
	return fmt.Sprintf("[MIME type: %s, base64-encoded]\n%s", src.mime, base64.StdEncoding.EncodeToString(src.body))
}

// IsTextMime reports whether mime is safe to pass through as text.
func IsTextMime(mime string) bool {
	mime = strings.ToLower(mime)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch {
	case strings.HasPrefix(mime, "text/"):
		return true
	case mime == "application/json", mime == "application/xml", mime == "application/javascript":
		return true
	case strings.HasSuffix(mime, "+json"), strings.HasSuffix(mime, "+xml"):
		return true
	}
	return false
}

// decodeText decodes UTF-8, replacing each invalid byte with U+FFFD.
func decodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return string(bytes.Runes(b))
}
