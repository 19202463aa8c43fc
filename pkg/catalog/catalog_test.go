package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dtnitsch/llm-archive-reader/models"
	"github.com/dtnitsch/llm-archive-reader/pkg/archive"
	"github.com/dtnitsch/llm-archive-reader/pkg/archive/archivetest"
	"github.com/dtnitsch/llm-archive-reader/pkg/faults"
	"github.com/dtnitsch/llm-archive-reader/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleArchive() *archivetest.Archive {
	return &archivetest.Archive{
		Entries: []*archivetest.Entry{
			{EntryPath: "A/Go", EntryTitle: "Go", Mime: "text/html", Body: []byte("<p>Go</p>")},
			{EntryPath: "A/Golang", EntryTitle: "Golang", Target: "A/Go"},
			{EntryPath: "I/logo.png", EntryTitle: "logo", Mime: "image/png", Body: []byte{0x89}},
		},
		Meta: map[string]string{
			"Title":       "Go Wiki",
			"Description": "About Go",
			"Language":    "eng",
			"Creator":     "Gophers",
			"Date":        "2024-01-01",
		},
		Main:       "A/Go",
		Media:      1,
		ID:         "uuid-1",
		TitleIndex: true,
	}
}

type fixture struct {
	cat    *Catalog
	opener *archivetest.Opener
	dir    string
}

func setupCatalog(t *testing.T, capacity int, files map[string]*archivetest.Archive) *fixture {
	t.Helper()
	dir := t.TempDir()
	opener := archivetest.NewOpener(".zip")

	cat, err := New(models.ArchivesConfig{
		Directory:     dir,
		CacheSize:     capacity,
		MaxFileSizeMB: 1,
	}, opener, logger.NewNop())
	require.NoError(t, err)

	for name, a := range files {
		path := filepath.Join(cat.Dir(), filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("archive"), 0o644))
		if a != nil {
			opener.Register(path, a)
		}
	}
	t.Cleanup(func() { cat.Close() })
	return &fixture{cat: cat, opener: opener, dir: cat.Dir()}
}

func (f *fixture) path(name string) string {
	return filepath.Join(f.dir, filepath.FromSlash(name))
}

func TestNewValidatesConfig(t *testing.T) {
	opener := archivetest.NewOpener(".zip")

	_, err := New(models.ArchivesConfig{Directory: filepath.Join(t.TempDir(), "missing"), CacheSize: 1}, opener, nil)
	assert.True(t, faults.IsConfig(err))

	_, err = New(models.ArchivesConfig{Directory: t.TempDir(), CacheSize: 0}, opener, nil)
	assert.True(t, faults.IsConfig(err))

	_, err = New(models.ArchivesConfig{Directory: t.TempDir(), CacheSize: 1}, nil, nil)
	assert.True(t, faults.IsConfig(err))
}

func TestDescriptor(t *testing.T) {
	f := setupCatalog(t, 2, map[string]*archivetest.Archive{"wiki.zip": sampleArchive()})

	assert.False(t, f.cat.IsDescriptorCached("wiki.zip"))

	d, ok, err := f.cat.Descriptor("wiki.zip")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "wiki.zip", d.Filename)
	assert.Equal(t, f.path("wiki.zip"), d.Filepath)
	assert.Equal(t, int64(7), d.Size)
	assert.Equal(t, "7.0 B", d.SizeFormatted)
	assert.Equal(t, 1, d.ArticleCount)
	assert.Equal(t, 1, d.MediaCount)
	assert.Equal(t, "Go Wiki", d.Title)
	assert.Equal(t, "About Go", d.Description)
	assert.Equal(t, "eng", d.Language)
	assert.Equal(t, "Gophers", d.Creator)
	assert.Equal(t, "2024-01-01", d.Date)
	assert.Equal(t, "uuid-1", d.UUID)
	assert.True(t, d.HasTitleIndex)
	assert.False(t, d.HasFulltextIndex)
	assert.True(t, f.cat.IsDescriptorCached("wiki.zip"))

	again, ok, err := f.cat.Descriptor("./wiki.zip")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, d, again)
	assert.Equal(t, 1, f.opener.Opens(f.path("wiki.zip")))
}

func TestDescriptorDefaultsTitleToFilename(t *testing.T) {
	a := sampleArchive()
	a.Meta = nil
	f := setupCatalog(t, 1, map[string]*archivetest.Archive{"sub/bare.zip": a})

	d, ok, err := f.cat.Descriptor("sub/bare.zip")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sub/bare.zip", d.Title)
	assert.Empty(t, d.Description)
	assert.Empty(t, d.Language)
}

func TestDescriptorDegradedForLargeFiles(t *testing.T) {
	f := setupCatalog(t, 1, map[string]*archivetest.Archive{"huge.zip": sampleArchive()})
	require.NoError(t, os.Truncate(f.path("huge.zip"), 2<<20))

	d, ok, err := f.cat.Descriptor("huge.zip")
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, d.Degraded)
	assert.Equal(t, "Large archive (skipped metadata loading due to size)", d.Description)
	assert.Equal(t, "huge.zip", d.Title)
	assert.Zero(t, d.ArticleCount)
	assert.Zero(t, d.MediaCount)
	assert.Empty(t, d.UUID)
	assert.False(t, d.HasTitleIndex)
	assert.Zero(t, f.opener.Opens(f.path("huge.zip")))
}

func TestDescriptorMissingAndInvalid(t *testing.T) {
	f := setupCatalog(t, 1, nil)

	d, ok, err := f.cat.Descriptor("ghost.zip")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, d)

	for _, bad := range []string{"../escape.zip", "/etc/passwd", "a/../../b.zip"} {
		_, ok, err := f.cat.Descriptor(bad)
		assert.False(t, ok)
		assert.True(t, faults.IsInvalidPath(err), bad)

		_, ok, err = f.cat.Handle(bad)
		assert.False(t, ok)
		assert.True(t, faults.IsInvalidPath(err), bad)
	}
}

func TestDescriptorChecksumMismatchStillReturns(t *testing.T) {
	a := sampleArchive()
	a.Checksum = true
	a.CheckErr = archive.ErrChecksumMismatch
	f := setupCatalog(t, 1, map[string]*archivetest.Archive{"bad.zip": a})

	d, ok, err := f.cat.Descriptor("bad.zip")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Go Wiki", d.Title)
}

func TestDescriptorOpenFailure(t *testing.T) {
	f := setupCatalog(t, 1, map[string]*archivetest.Archive{"broken.zip": nil})
	f.opener.Fail(f.path("broken.zip"), archivetest.ErrBroken)

	_, ok, err := f.cat.Descriptor("broken.zip")
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, faults.IsIOFailure(err))
	assert.True(t, errors.Is(err, archivetest.ErrBroken))
	assert.False(t, f.cat.Validate("broken.zip"))
}

func TestHandleReusesCachedArchive(t *testing.T) {
	f := setupCatalog(t, 2, map[string]*archivetest.Archive{"wiki.zip": sampleArchive()})

	for range 3 {
		h, ok, err := f.cat.Handle("wiki.zip")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "wiki.zip", h.Filename)
		h.Release()
		h.Release()
	}
	assert.Equal(t, 1, f.opener.Opens(f.path("wiki.zip")))

	assert.True(t, f.cat.IsHandleCached("wiki.zip"))

	st := f.cat.Stats()
	assert.Equal(t, []string{"wiki.zip"}, st.CachedArchives)
	assert.Equal(t, 1, st.ArchiveCacheSize)
	assert.Equal(t, 2, st.ArchiveCacheMaxSize)
	assert.Equal(t, int64(2), st.ArchiveCacheHits)
	assert.Equal(t, int64(1), st.OpenHandles)
}

func TestHandleConcurrentColdOpenOpensOnce(t *testing.T) {
	f := setupCatalog(t, 2, map[string]*archivetest.Archive{"wiki.zip": sampleArchive()})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, ok, err := f.cat.Handle("wiki.zip")
			if assert.NoError(t, err) && assert.True(t, ok) {
				h.Release()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, f.opener.Opens(f.path("wiki.zip")))
}

func TestEvictionWaitsForOutstandingLease(t *testing.T) {
	f := setupCatalog(t, 1, map[string]*archivetest.Archive{
		"a.zip": sampleArchive(),
		"b.zip": sampleArchive(),
	})

	ha, ok, err := f.cat.Handle("a.zip")
	require.NoError(t, err)
	require.True(t, ok)

	hb, ok, err := f.cat.Handle("b.zip")
	require.NoError(t, err)
	require.True(t, ok)
	hb.Release()

	handles := f.opener.Handles()
	require.Len(t, handles, 2)
	first := handles[0]

	assert.Equal(t, 0, first.Closed())
	assert.True(t, ha.Archive.HasEntryByPath("A/Go"))
	ha.Release()
	assert.Equal(t, 1, first.Closed())

	assert.False(t, f.cat.IsHandleCached("a.zip"))
	assert.True(t, f.cat.IsHandleCached("b.zip"))

	st := f.cat.Stats()
	assert.Equal(t, []string{"b.zip"}, st.CachedArchives)
	assert.Equal(t, 1, st.ArchiveCacheSize)
	assert.Equal(t, int64(1), st.ArchiveEvictions)
	assert.Equal(t, int64(1), st.OpenHandles)

	h, ok, err := f.cat.Handle("a.zip")
	require.NoError(t, err)
	require.True(t, ok)
	h.Release()
	assert.Equal(t, 2, f.opener.Opens(f.path("a.zip")))
}

func TestEntryLookups(t *testing.T) {
	f := setupCatalog(t, 2, map[string]*archivetest.Archive{"wiki.zip": sampleArchive()})

	e, ok, err := f.cat.EntryByPath("wiki.zip", "A/Go")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Go", e.Title())
	assert.Equal(t, "wiki.zip", e.Filename)
	assert.NotNil(t, e.Archive())
	e.Release()

	e, ok, err = f.cat.EntryByTitle("wiki.zip", "Golang")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, e.IsRedirect())
	e.Release()

	e, ok, err = f.cat.MainEntry("wiki.zip")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "A/Go", e.Path())
	e.Release()

	e, ok, err = f.cat.RandomEntry("wiki.zip")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, e.Path())
	e.Release()

	tests := []struct {
		name   string
		lookup func() (*Entry, bool, error)
	}{
		{"missing path", func() (*Entry, bool, error) { return f.cat.EntryByPath("wiki.zip", "A/Nope") }},
		{"missing title", func() (*Entry, bool, error) { return f.cat.EntryByTitle("wiki.zip", "Nope") }},
		{"missing archive", func() (*Entry, bool, error) { return f.cat.EntryByPath("ghost.zip", "A/Go") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok, err := tt.lookup()
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, e)
		})
	}
}

func TestMainEntryAbsent(t *testing.T) {
	a := sampleArchive()
	a.Main = ""
	f := setupCatalog(t, 1, map[string]*archivetest.Archive{"wiki.zip": a})

	_, ok, err := f.cat.MainEntry("wiki.zip")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRandomEntryFailure(t *testing.T) {
	a := sampleArchive()
	a.RandomErr = archivetest.ErrBroken
	f := setupCatalog(t, 1, map[string]*archivetest.Archive{"wiki.zip": a})

	_, ok, err := f.cat.RandomEntry("wiki.zip")
	assert.False(t, ok)
	assert.True(t, faults.IsIOFailure(err))
}

func TestDiscover(t *testing.T) {
	f := setupCatalog(t, 4, map[string]*archivetest.Archive{
		"a.zip":        sampleArchive(),
		"nested/b.zip": sampleArchive(),
		"broken.zip":   nil,
	})
	f.opener.Fail(f.path("broken.zip"), archivetest.ErrBroken)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "readme.txt"), []byte("x"), 0o644))

	found, err := f.cat.Discover(false)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "a.zip", found[0].Filename)
	assert.Equal(t, "nested/b.zip", found[1].Filename)
	assert.True(t, f.cat.Stats().DiscoveryCached)

	brokenOpens := f.opener.Opens(f.path("broken.zip"))
	_, err = f.cat.Discover(false)
	require.NoError(t, err)
	assert.Equal(t, brokenOpens, f.opener.Opens(f.path("broken.zip")))

	_, err = f.cat.Discover(true)
	require.NoError(t, err)
	assert.Equal(t, brokenOpens+1, f.opener.Opens(f.path("broken.zip")))
}

func TestClearCaches(t *testing.T) {
	f := setupCatalog(t, 2, map[string]*archivetest.Archive{"wiki.zip": sampleArchive()})

	_, err := f.cat.Discover(false)
	require.NoError(t, err)
	lease, ok, err := f.cat.Handle("wiki.zip")
	require.NoError(t, err)
	require.True(t, ok)

	f.cat.ClearCaches()

	st := f.cat.Stats()
	assert.Zero(t, st.ArchiveCacheSize)
	assert.Empty(t, st.CachedArchives)
	assert.Zero(t, st.DescriptorCacheSize)
	assert.False(t, st.DiscoveryCached)
	assert.Zero(t, st.ArchiveEvictions)
	assert.False(t, f.cat.IsDescriptorCached("wiki.zip"))

	handle := f.opener.Handles()[0]
	assert.Equal(t, 0, handle.Closed())
	lease.Release()
	assert.Equal(t, 1, handle.Closed())

	_, ok, err = f.cat.Descriptor("wiki.zip")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, f.opener.Opens(f.path("wiki.zip")))
}

func TestValidateAndExists(t *testing.T) {
	f := setupCatalog(t, 1, map[string]*archivetest.Archive{"wiki.zip": sampleArchive()})

	assert.True(t, f.cat.Validate("wiki.zip"))
	assert.False(t, f.cat.Validate("ghost.zip"))
	assert.False(t, f.cat.Validate("../wiki.zip"))
	assert.True(t, f.cat.Exists("wiki.zip"))
	assert.False(t, f.cat.Exists("ghost.zip"))
	assert.Equal(t, ".zip", f.cat.Extension())
}
