// Package ziparchive reads offline archives packaged as zip files.
//
// Layout:
//
//	M/<Key>       metadata values (Title, Description, Language, Creator, Date, UUID, ...)
//	X/main        path of the main entry
//	X/redirects   YAML map of redirect path to target path
//	X/titles      YAML map of path to title
//	X/checksum    hex BLAKE3 over every content entry, see Checksum
//	anything else is a content entry addressed by its zip name
package ziparchive

import (
	"encoding/hex"
	"fmt"
	"html"
	"io"
	"math/rand/v2"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dtnitsch/llm-archive-reader/pkg/analytics"
	"github.com/dtnitsch/llm-archive-reader/pkg/archive"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/microcosm-cc/bluemonday"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultExtension = ".zip"

	metadataPrefix = "M/"
	controlPrefix  = "X/"
	mainFile       = "X/main"
	redirectsFile  = "X/redirects"
	titlesFile     = "X/titles"
	checksumFile   = "X/checksum"

	sniffLen     = 3072
	snippetTerms = 8
)

var textPolicy = bluemonday.StrictPolicy()

var (
	_ archive.Opener   = (*Opener)(nil)
	_ archive.Archive  = (*Archive)(nil)
	_ archive.Searcher = (*Archive)(nil)
)

// Opener opens zip-packaged archives.
type Opener struct {
	Ext string
}

// NewOpener returns an Opener matching DefaultExtension.
func NewOpener() *Opener {
	return &Opener{Ext: DefaultExtension}
}

func (o *Opener) Extension() string {
	if o.Ext == "" {
		return DefaultExtension
	}
	return o.Ext
}

func (o *Opener) Open(path string) (archive.Archive, error) {
	return Open(path)
}

type item struct {
	path   string
	title  string
	mime   string
	target string
	file   *zip.File
}

// Archive is an open zip archive. It is safe for concurrent reads.
type Archive struct {
	f        *os.File
	name     string
	size     int64
	items    map[string]*item
	byTitle  map[string]*item
	meta     map[string]*zip.File
	articles []*item
	content  []*zip.File
	media    int
	main     string
	checksum string
	id       string
}

// Open reads the zip directory and builds the path and title indexes.
func Open(filename string) (*Archive, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read zip directory: %w", err)
	}

	a := &Archive{
		f:       f,
		name:    filepath.Base(filename),
		size:    info.Size(),
		items:   map[string]*item{},
		byTitle: map[string]*item{},
		meta:    map[string]*zip.File{},
	}
	if err := a.index(zr); err != nil {
		f.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) index(zr *zip.Reader) error {
	var redirects, titles map[string]string

	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		name := zf.Name
		switch {
		case strings.HasPrefix(name, metadataPrefix):
			a.meta[strings.TrimPrefix(name, metadataPrefix)] = zf
		case name == mainFile:
			b, err := readFile(zf)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", name, err)
			}
			a.main = strings.TrimSpace(string(b))
		case name == redirectsFile:
			if err := readYAML(zf, &redirects); err != nil {
				return err
			}
		case name == titlesFile:
			if err := readYAML(zf, &titles); err != nil {
				return err
			}
		case name == checksumFile:
			b, err := readFile(zf)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", name, err)
			}
			a.checksum = strings.ToLower(strings.TrimSpace(string(b)))
		case strings.HasPrefix(name, controlPrefix):
		default:
			mt, err := detectMime(zf)
			if err != nil {
				return fmt.Errorf("failed to sniff %s: %w", name, err)
			}
			it := &item{path: name, mime: mt, file: zf}
			a.items[name] = it
			a.content = append(a.content, zf)
		}
	}

	for p, target := range redirects {
		if _, exists := a.items[p]; exists {
			continue
		}
		a.items[p] = &item{path: p, target: target}
	}

	paths := make([]string, 0, len(a.items))
	for p := range a.items {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		it := a.items[p]
		if t, ok := titles[p]; ok && t != "" {
			it.title = t
		} else {
			it.title = titleFromPath(p)
		}
		if _, taken := a.byTitle[it.title]; !taken {
			a.byTitle[it.title] = it
		}
		if it.target != "" {
			continue
		}
		switch {
		case strings.HasPrefix(it.mime, "text/html"):
			a.articles = append(a.articles, it)
		case isMedia(it.mime):
			a.media++
		}
	}

	sort.Slice(a.content, func(i, j int) bool { return a.content[i].Name < a.content[j].Name })
	a.id = a.resolveUUID()
	return nil
}

func (a *Archive) resolveUUID() string {
	if f, ok := a.meta["UUID"]; ok {
		if b, err := readFile(f); err == nil {
			if id, err := uuid.Parse(strings.TrimSpace(string(b))); err == nil {
				return id.String()
			}
		}
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s:%d", a.name, a.size))).String()
}

func (a *Archive) HasEntryByPath(p string) bool {
	_, ok := a.items[p]
	return ok
}

func (a *Archive) EntryByPath(p string) (archive.Entry, error) {
	it, ok := a.items[p]
	if !ok {
		return nil, archive.ErrNoEntry
	}
	return &Entry{item: it}, nil
}

func (a *Archive) HasEntryByTitle(t string) bool {
	_, ok := a.byTitle[t]
	return ok
}

func (a *Archive) EntryByTitle(t string) (archive.Entry, error) {
	it, ok := a.byTitle[t]
	if !ok {
		return nil, archive.ErrNoEntry
	}
	return &Entry{item: it}, nil
}

func (a *Archive) HasMainEntry() bool {
	return a.main != "" && a.HasEntryByPath(a.main)
}

func (a *Archive) MainEntry() (archive.Entry, error) {
	if a.main == "" {
		return nil, archive.ErrNoEntry
	}
	return a.EntryByPath(a.main)
}

// RandomEntry picks uniformly among articles.
func (a *Archive) RandomEntry() (archive.Entry, error) {
	if len(a.articles) == 0 {
		return nil, archive.ErrNoEntry
	}
	return &Entry{item: a.articles[rand.IntN(len(a.articles))]}, nil
}

func (a *Archive) MetadataKeys() []string {
	keys := make([]string, 0, len(a.meta))
	for k := range a.meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (a *Archive) Metadata(key string) ([]byte, error) {
	f, ok := a.meta[key]
	if !ok {
		return nil, archive.ErrNoEntry
	}
	return readFile(f)
}

func (a *Archive) ArticleCount() int      { return len(a.articles) }
func (a *Archive) MediaCount() int        { return a.media }
func (a *Archive) FileSize() int64        { return a.size }
func (a *Archive) UUID() string           { return a.id }
func (a *Archive) HasFulltextIndex() bool { return false }
func (a *Archive) HasTitleIndex() bool    { return true }
func (a *Archive) HasChecksum() bool      { return a.checksum != "" }

// Check recomputes the content checksum and compares it with X/checksum.
func (a *Archive) Check() error {
	if a.checksum == "" {
		return nil
	}
	sum, err := Checksum(a.content)
	if err != nil {
		return err
	}
	if sum != a.checksum {
		return fmt.Errorf("%w: have %s, want %s", archive.ErrChecksumMismatch, sum, a.checksum)
	}
	return nil
}

// Search matches query case-insensitively against article titles and paths.
// Results are in path order; no relevance score is computed.
func (a *Archive) Search(query string, limit int) ([]archive.Hit, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil, nil
	}
	var hits []archive.Hit
	for _, it := range a.articles {
		if !strings.Contains(strings.ToLower(it.title), q) && !strings.Contains(strings.ToLower(it.path), q) {
			continue
		}
		hits = append(hits, archive.Hit{
			Path:    it.path,
			Title:   it.title,
			Snippet: snippet(it),
			Score:   analytics.Score(query, it.title+" "+it.path),
		})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

// snippet summarizes an article by its most frequent terms.
func snippet(it *item) string {
	b, err := readFile(it.file)
	if err != nil {
		return ""
	}
	text := html.UnescapeString(textPolicy.Sanitize(string(b)))
	return strings.Join(analytics.TopNWords(text, snippetTerms), " ")
}

func (a *Archive) Close() error {
	return a.f.Close()
}

// Entry is a content entry or redirect inside an Archive.
type Entry struct {
	item *item
}

func (e *Entry) Path() string           { return e.item.path }
func (e *Entry) Title() string          { return e.item.title }
func (e *Entry) IsRedirect() bool       { return e.item.target != "" }
func (e *Entry) RedirectTarget() string { return e.item.target }
func (e *Entry) MimeType() string       { return e.item.mime }

// Content returns the decompressed payload. Redirects have no payload.
func (e *Entry) Content() ([]byte, error) {
	if e.item.file == nil {
		return nil, nil
	}
	return readFile(e.item.file)
}

// Checksum hashes entry names and payloads in the given order with BLAKE3.
func Checksum(files []*zip.File) (string, error) {
	h := blake3.New()
	for _, f := range files {
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		err = hashEntry(h, f.Name, rc)
		rc.Close()
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashEntry(h io.Writer, name string, r io.Reader) error {
	if _, err := io.WriteString(h, name); err != nil {
		return err
	}
	if _, err := io.Copy(h, r); err != nil {
		return fmt.Errorf("failed to hash %s: %w", name, err)
	}
	return nil
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func readYAML(f *zip.File, out *map[string]string) error {
	b, err := readFile(f)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", f.Name, err)
	}
	return nil
}

// detectMime uses the file extension when it is registered, otherwise sniffs the payload.
func detectMime(f *zip.File) (string, error) {
	if ext := path.Ext(f.Name); ext != "" {
		if mt := mime.TypeByExtension(ext); mt != "" {
			return baseMime(mt), nil
		}
	}
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	head, err := io.ReadAll(io.LimitReader(rc, sniffLen))
	if err != nil {
		return "", err
	}
	return baseMime(mimetype.Detect(head).String()), nil
}

func baseMime(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.TrimSpace(strings.ToLower(mt))
}

func isMedia(mt string) bool {
	return strings.HasPrefix(mt, "image/") || strings.HasPrefix(mt, "audio/") || strings.HasPrefix(mt, "video/")
}

func titleFromPath(p string) string {
	base := path.Base(p)
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return strings.ReplaceAll(base, "_", " ")
}

