// Package archivetest provides in-memory archives for tests.
package archivetest

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dtnitsch/llm-archive-reader/pkg/archive"
)

// Entry is a static archive entry.
type Entry struct {
	EntryPath  string
	EntryTitle string
	Mime       string
	Body       []byte
	Target     string
	ReadErr    error
	Panic      bool
}

func (e *Entry) Path() string           { return e.EntryPath }
func (e *Entry) Title() string          { return e.EntryTitle }
func (e *Entry) IsRedirect() bool       { return e.Target != "" }
func (e *Entry) RedirectTarget() string { return e.Target }
func (e *Entry) MimeType() string       { return e.Mime }

func (e *Entry) Content() ([]byte, error) {
	if e.Panic {
		panic("archivetest: content panic")
	}
	if e.ReadErr != nil {
		return nil, e.ReadErr
	}
	return e.Body, nil
}

// Archive is an in-memory archive.Archive.
type Archive struct {
	Entries    []*Entry
	Meta       map[string]string
	Main       string
	Media      int
	Size       int64
	ID         string
	Fulltext   bool
	TitleIndex bool
	Checksum   bool
	CheckErr   error
	RandomErr  error
	SearchErr  error
	Searchable bool
	next       atomic.Int64
	closed     atomic.Int32
}

func (a *Archive) find(match func(*Entry) bool) *Entry {
	for _, e := range a.Entries {
		if match(e) {
			return e
		}
	}
	return nil
}

func (a *Archive) byPath(p string) *Entry {
	return a.find(func(e *Entry) bool { return e.EntryPath == p })
}

func (a *Archive) byTitle(t string) *Entry {
	return a.find(func(e *Entry) bool { return e.EntryTitle == t })
}

func (a *Archive) HasEntryByPath(p string) bool { return a.byPath(p) != nil }

func (a *Archive) EntryByPath(p string) (archive.Entry, error) {
	if e := a.byPath(p); e != nil {
		return e, nil
	}
	return nil, archive.ErrNoEntry
}

func (a *Archive) HasEntryByTitle(t string) bool { return a.byTitle(t) != nil }

func (a *Archive) EntryByTitle(t string) (archive.Entry, error) {
	if e := a.byTitle(t); e != nil {
		return e, nil
	}
	return nil, archive.ErrNoEntry
}

func (a *Archive) HasMainEntry() bool { return a.Main != "" }

func (a *Archive) MainEntry() (archive.Entry, error) {
	if a.Main == "" {
		return nil, archive.ErrNoEntry
	}
	return a.EntryByPath(a.Main)
}

// RandomEntry cycles through entries in order so tests stay deterministic.
func (a *Archive) RandomEntry() (archive.Entry, error) {
	if a.RandomErr != nil {
		return nil, a.RandomErr
	}
	if len(a.Entries) == 0 {
		return nil, archive.ErrNoEntry
	}
	i := a.next.Add(1) - 1
	return a.Entries[int(i)%len(a.Entries)], nil
}

func (a *Archive) MetadataKeys() []string {
	keys := make([]string, 0, len(a.Meta))
	for k := range a.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (a *Archive) Metadata(key string) ([]byte, error) {
	v, ok := a.Meta[key]
	if !ok {
		return nil, archive.ErrNoEntry
	}
	return []byte(v), nil
}

func (a *Archive) ArticleCount() int {
	n := 0
	for _, e := range a.Entries {
		if !e.IsRedirect() && strings.HasPrefix(e.Mime, "text/html") {
			n++
		}
	}
	return n
}

func (a *Archive) MediaCount() int        { return a.Media }
func (a *Archive) FileSize() int64        { return a.Size }
func (a *Archive) UUID() string           { return a.ID }
func (a *Archive) HasFulltextIndex() bool { return a.Fulltext }
func (a *Archive) HasTitleIndex() bool    { return a.TitleIndex }
func (a *Archive) HasChecksum() bool      { return a.Checksum }
func (a *Archive) Check() error           { return a.CheckErr }

func (a *Archive) Close() error {
	a.closed.Add(1)
	return nil
}

// Closed reports how many times Close was called.
func (a *Archive) Closed() int { return int(a.closed.Load()) }

// SearchableArchive adds archive.Searcher with substring title matches.
type SearchableArchive struct {
	*Archive
}

func (s SearchableArchive) Search(query string, limit int) ([]archive.Hit, error) {
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	var hits []archive.Hit
	q := strings.ToLower(query)
	for _, e := range s.Entries {
		if len(hits) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(e.EntryTitle), q) {
			hits = append(hits, archive.Hit{Path: e.EntryPath, Title: e.EntryTitle})
		}
	}
	return hits, nil
}

// Opener serves archives registered by absolute path. Files must also exist
// on disk because the catalog checks for them before opening.
type Opener struct {
	Ext string

	mu       sync.Mutex
	archives map[string]*Archive
	opens    map[string]int
	failures map[string]error
	handles  []*Archive
}

// NewOpener returns an Opener for ext.
func NewOpener(ext string) *Opener {
	return &Opener{
		Ext:      ext,
		archives: map[string]*Archive{},
		opens:    map[string]int{},
		failures: map[string]error{},
	}
}

// Register makes path open as a.
func (o *Opener) Register(path string, a *Archive) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.archives[path] = a
}

// Fail makes Open(path) return err.
func (o *Opener) Fail(path string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures[path] = err
}

func (o *Opener) Extension() string { return o.Ext }

// Open returns a fresh copy of the registered archive so close counts are per handle.
func (o *Opener) Open(path string) (archive.Archive, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.opens[path]++
	if err := o.failures[path]; err != nil {
		return nil, err
	}
	a, ok := o.archives[path]
	if !ok {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("archivetest: no archive registered for %s", path)
	}
	h := &Archive{
		Entries: a.Entries, Meta: a.Meta, Main: a.Main, Media: a.Media, Size: a.Size,
		ID: a.ID, Fulltext: a.Fulltext, TitleIndex: a.TitleIndex, Checksum: a.Checksum,
		CheckErr: a.CheckErr, RandomErr: a.RandomErr, SearchErr: a.SearchErr, Searchable: a.Searchable,
	}
	o.handles = append(o.handles, h)
	if h.Searchable {
		return SearchableArchive{h}, nil
	}
	return h, nil
}

// Opens reports how many times path was opened.
func (o *Opener) Opens(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens[path]
}

// Handles returns every handle opened so far.
func (o *Opener) Handles() []*Archive {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Archive(nil), o.handles...)
}

// ErrBroken is a stock read failure.
var ErrBroken = errors.New("archivetest: broken")
