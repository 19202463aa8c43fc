// Package archive defines the read-only contract lar needs from an offline
// archive format. Backends implement Opener; ziparchive is the bundled one.
package archive

import "errors"

// ErrNoEntry is returned by lookups for entries that do not exist.
var ErrNoEntry = errors.New("archive: entry not found")

// ErrChecksumMismatch is returned by Check when the embedded checksum does not match.
var ErrChecksumMismatch = errors.New("archive: checksum mismatch")

// Opener opens archive files of one format.
type Opener interface {
	// Extension is the file suffix discovery looks for, e.g. ".zip".
	Extension() string
	Open(path string) (Archive, error)
}

// Archive is an open archive handle. Implementations must allow concurrent
// reads; Close is called exactly once by the owner.
type Archive interface {
	HasEntryByPath(path string) bool
	EntryByPath(path string) (Entry, error)
	HasEntryByTitle(title string) bool
	EntryByTitle(title string) (Entry, error)
	HasMainEntry() bool
	MainEntry() (Entry, error)
	RandomEntry() (Entry, error)

	MetadataKeys() []string
	Metadata(key string) ([]byte, error)

	ArticleCount() int
	MediaCount() int
	FileSize() int64
	UUID() string
	HasFulltextIndex() bool
	HasTitleIndex() bool

	HasChecksum() bool
	// Check verifies the embedded checksum.
	Check() error

	Close() error
}

// Entry is one addressable item inside an archive.
type Entry interface {
	Path() string
	Title() string
	IsRedirect() bool
	// RedirectTarget is the path a redirect points to, or "".
	RedirectTarget() string
	MimeType() string
	Content() ([]byte, error)
}

// Hit is one search result inside a single archive.
type Hit struct {
	Path    string
	Title   string
	Snippet string
	Score   float64
}

// Searcher is implemented by archives that carry a searchable index.
type Searcher interface {
	Search(query string, limit int) ([]Hit, error)
}

// Resolve follows redirects up to maxHops and returns the final entry.
func Resolve(a Archive, e Entry, maxHops int) (Entry, error) {
	for hops := 0; e.IsRedirect(); hops++ {
		if hops >= maxHops {
			return nil, errors.New("archive: redirect chain too long")
		}
		next, err := a.EntryByPath(e.RedirectTarget())
		if err != nil {
			return nil, err
		}
		e = next
	}
	return e, nil
}
