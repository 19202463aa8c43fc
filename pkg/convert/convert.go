// Package convert renders HTML documents as markdown.
package convert

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

// Converter turns a document stream into markdown. ext names the source
// format, e.g. ".html".
type Converter interface {
	Convert(r io.Reader, ext string) (string, error)
}

// Markdown converts HTML to markdown. When UseReadability is set the main
// article is isolated before conversion.
type Markdown struct {
	UseReadability bool
	policy         *bluemonday.Policy
}

// NewMarkdown returns a Markdown converter with a UGC sanitizing policy.
func NewMarkdown(useReadability bool) *Markdown {
	p := bluemonday.UGCPolicy()
	p.AllowElements("article", "section", "div", "span", "figure", "figcaption")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[\w+-]+$`)).OnElements("code", "pre")
	return &Markdown{UseReadability: useReadability, policy: p}
}

var baseURL = &url.URL{Scheme: "http", Host: "archive.local", Path: "/"}

// Convert reads the whole document and renders it. Only HTML is supported.
func (m *Markdown) Convert(r io.Reader, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".html", ".htm", ".xhtml":
	default:
		return "", fmt.Errorf("unsupported source format %q", ext)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}

	source := string(raw)
	if m.UseReadability {
		parser := readability.NewParser()
		article, err := parser.Parse(bytes.NewReader(raw), baseURL)
		if err == nil && strings.TrimSpace(article.Content) != "" {
			source = article.Content
		}
	}

	policy := m.policy
	if policy == nil {
		policy = NewMarkdown(false).policy
	}
	clean := policy.SanitizeReader(strings.NewReader(source))

	doc, err := goquery.NewDocumentFromReader(clean)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	var w mdWriter
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	root.Contents().Each(func(_ int, s *goquery.Selection) {
		w.node(s, 0)
	})
	return w.String(), nil
}

var blankLines = regexp.MustCompile(`\n{3,}`)

type mdWriter struct {
	b strings.Builder
}

func (w *mdWriter) String() string {
	lines := strings.Split(w.b.String(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	out := blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(out)
}

func (w *mdWriter) block(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	w.b.WriteString("\n\n")
	w.b.WriteString(s)
	w.b.WriteString("\n\n")
}

func (w *mdWriter) node(s *goquery.Selection, depth int) {
	switch tag := goquery.NodeName(s); tag {
	case "#text":
		text := collapseSpace(s.Text())
		if strings.TrimSpace(text) == "" && (w.b.Len() == 0 || strings.HasSuffix(w.b.String(), "\n")) {
			return
		}
		w.b.WriteString(text)
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(tag[1] - '0')
		w.block(strings.Repeat("#", level) + " " + normalizeText(inline(s)))
	case "p":
		w.block(inline(s))
	case "br":
		w.b.WriteString("\n")
	case "hr":
		w.block("---")
	case "ul", "ol":
		w.block(list(s, tag == "ol", depth))
	case "pre":
		w.block(codeBlock(s))
	case "table":
		w.block(table(s))
	case "blockquote":
		var inner mdWriter
		s.Contents().Each(func(_ int, c *goquery.Selection) { inner.node(c, depth) })
		w.block(quote(inner.String()))
	case "img":
		w.b.WriteString(image(s))
	case "a", "strong", "b", "em", "i", "code", "span", "sup", "sub", "small", "u":
		w.b.WriteString(inlineNode(s))
	case "script", "style", "noscript", "template", "head", "title":
	default:
		s.Contents().Each(func(_ int, c *goquery.Selection) { w.node(c, depth) })
		if isBlock(tag) {
			w.b.WriteString("\n\n")
		}
	}
}

func isBlock(tag string) bool {
	switch tag {
	case "div", "section", "article", "main", "header", "footer", "figure", "figcaption", "aside", "dl", "dt", "dd", "li", "nav":
		return true
	}
	return false
}

// inline renders the children of s as a single run of markdown text.
func inline(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		b.WriteString(inlineNode(c))
	})
	return b.String()
}

func inlineNode(c *goquery.Selection) string {
	switch goquery.NodeName(c) {
	case "#text":
		return collapseSpace(c.Text())
	case "strong", "b":
		return wrap(inline(c), "**")
	case "em", "i":
		return wrap(inline(c), "_")
	case "code":
		return wrap(normalizeText(c.Text()), "`")
	case "a":
		return link(c)
	case "img":
		return image(c)
	case "br":
		return "\n"
	case "script", "style":
		return ""
	default:
		return inline(c)
	}
}

func wrap(s, marker string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	return marker + trimmed + marker
}

func link(s *goquery.Selection) string {
	text := strings.TrimSpace(inline(s))
	href, _ := s.Attr("href")
	if href == "" {
		return text
	}
	if text == "" {
		text = href
	}
	return fmt.Sprintf("[%s](%s)", text, href)
}

func image(s *goquery.Selection) string {
	src, _ := s.Attr("src")
	if src == "" {
		return ""
	}
	alt, _ := s.Attr("alt")
	return fmt.Sprintf("![%s](%s)", normalizeText(alt), src)
}

func list(s *goquery.Selection, ordered bool, depth int) string {
	var b strings.Builder
	indent := strings.Repeat("  ", depth)
	n := 0
	s.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		n++
		marker := "-"
		if ordered {
			marker = fmt.Sprintf("%d.", n)
		}

		var text strings.Builder
		var nested []string
		li.Contents().Each(func(_ int, c *goquery.Selection) {
			switch tag := goquery.NodeName(c); tag {
			case "ul", "ol":
				nested = append(nested, list(c, tag == "ol", depth+1))
			default:
				text.WriteString(inlineNode(c))
			}
		})

		fmt.Fprintf(&b, "%s%s %s\n", indent, marker, normalizeText(text.String()))
		for _, sub := range nested {
			b.WriteString(sub)
		}
	})
	return b.String()
}

func quote(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l == "" {
			lines[i] = ">"
			continue
		}
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}

func codeBlock(s *goquery.Selection) string {
	codeSel := s.Find("code").First()
	text := s.Text()
	lang := ""
	if codeSel.Length() > 0 {
		text = codeSel.Text()
		lang = language(codeSel)
	}
	if lang == "" {
		lang = language(s)
	}
	text = strings.Trim(text, "\n")
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return "```" + lang + "\n" + text + "\n```"
}

func language(s *goquery.Selection) string {
	class, _ := s.Attr("class")
	for _, c := range strings.Fields(class) {
		if strings.HasPrefix(c, "language-") {
			return strings.TrimPrefix(c, "language-")
		}
	}
	return ""
}

func table(s *goquery.Selection) string {
	var headers []string
	var rows [][]string

	s.Find("thead tr th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, cell(th))
	})

	s.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if tr.ParentsFiltered("thead").Length() > 0 {
			return
		}
		var row []string
		tr.Find("th,td").Each(func(_ int, td *goquery.Selection) {
			row = append(row, cell(td))
		})
		if len(row) == 0 {
			return
		}
		if len(headers) == 0 {
			headers = row
			return
		}
		rows = append(rows, row)
	})

	if len(headers) == 0 {
		return ""
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for len(cells) < len(headers) {
			cells = append(cells, "")
		}
		b.WriteString("| " + strings.Join(cells[:len(headers)], " | ") + " |\n")
	}
	writeRow(headers)
	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(sep)
	for _, r := range rows {
		writeRow(r)
	}
	return b.String()
}

func cell(s *goquery.Selection) string {
	return strings.ReplaceAll(normalizeText(inline(s)), "|", `\|`)
}

var spaceRun = regexp.MustCompile(`\s+`)

func collapseSpace(s string) string {
	return spaceRun.ReplaceAllString(s, " ")
}

// normalizeText cleans up a string by trimming space and removing excess newlines.
func normalizeText(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			b.WriteString(line)
			b.WriteString(" ")
		}
	}
	return strings.TrimSpace(b.String())
}
