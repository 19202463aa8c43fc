// Package catalog discovers archives under a root directory, describes them,
// and hands out leases on a bounded cache of open archive handles.
package catalog

import (
	"errors"
	"io/fs"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dtnitsch/llm-archive-reader/models"
	"github.com/dtnitsch/llm-archive-reader/pkg/archive"
	"github.com/dtnitsch/llm-archive-reader/pkg/cache"
	"github.com/dtnitsch/llm-archive-reader/pkg/faults"
	"github.com/dtnitsch/llm-archive-reader/pkg/logger"
	"github.com/dtnitsch/llm-archive-reader/pkg/metrics"
	"github.com/dtnitsch/llm-archive-reader/pkg/storage"
	"golang.org/x/sync/singleflight"
)

const (
	degradedDescription = "Large archive (skipped metadata loading due to size)"
	// maxLeaseAttempts bounds retries when a cached handle closes between lookup and acquire.
	maxLeaseAttempts = 3
)

// Catalog is the single entry point for archive access. It is safe for concurrent use.
type Catalog struct {
	root   *storage.Root
	opener archive.Opener
	cfg    models.ArchivesConfig
	log    logger.Logger

	handles  *cache.Cache[string, *handleRef]
	opens    singleflight.Group
	live     atomic.Int64
	clearing atomic.Bool

	mu          sync.RWMutex
	descriptors map[string]*models.Descriptor
	discovered  []models.Descriptor
	hasListing  bool
	generation  uint64
}

// New validates the archive root and builds an empty catalog.
func New(cfg models.ArchivesConfig, opener archive.Opener, log logger.Logger) (*Catalog, error) {
	if opener == nil {
		return nil, faults.Config("archive opener is required")
	}
	root, err := storage.NewRoot(cfg.Directory)
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		root:        root,
		opener:      opener,
		cfg:         cfg,
		log:         logger.OrNop(log).With(logger.String("component", "catalog")),
		descriptors: map[string]*models.Descriptor{},
	}
	c.handles, err = cache.New[string, *handleRef](cfg.CacheSize, c.evicted)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) evicted(path string, ref *handleRef) {
	if !c.clearing.Load() {
		metrics.RecordEviction()
		c.log.Debug("evicted archive handle", logger.String("archive", path))
	}
	ref.release()
}

// Dir is the absolute archive root.
func (c *Catalog) Dir() string {
	return c.root.Dir()
}

// Extension is the archive file suffix discovery matches.
func (c *Catalog) Extension() string {
	return c.opener.Extension()
}

// resolve validates filename and returns its canonical name and absolute path.
func (c *Catalog) resolve(filename string) (name, path string, err error) {
	path, err = c.root.Resolve(filename)
	if err != nil {
		return "", "", err
	}
	name, err = c.root.Rel(path)
	if err != nil {
		return "", "", faults.InvalidPath(filename, c.root.Dir())
	}
	return name, path, nil
}

// Discover lists every archive under the root. The listing is memoized until
// forceRefresh or ClearCaches. Archives that fail to load are logged and
// skipped. An error is returned only when the root itself cannot be walked.
func (c *Catalog) Discover(forceRefresh bool) ([]models.Descriptor, error) {
	c.mu.RLock()
	if c.hasListing && !forceRefresh {
		out := append([]models.Descriptor(nil), c.discovered...)
		c.mu.RUnlock()
		return out, nil
	}
	gen := c.generation
	c.mu.RUnlock()

	var paths []string
	err := c.root.Walk(c.opener.Extension(), func(path string, _ fs.FileInfo) {
		paths = append(paths, path)
	}, func(path string, err error) {
		c.log.Warn("failed to scan archive directory",
			logger.String("path", path),
			logger.String("operation", "discover"),
			logger.Error(err),
		)
	})
	if err != nil {
		return nil, faults.IOFailure(err, "discover", c.root.Dir())
	}

	found := make([]models.Descriptor, 0, len(paths))
	for _, path := range paths {
		name, err := c.root.Rel(path)
		if err != nil {
			continue
		}
		d, ok, err := c.Descriptor(name)
		if err != nil {
			c.log.Warn("skipping archive",
				logger.String("archive", name),
				logger.String("operation", "describe"),
				logger.Error(err),
			)
			continue
		}
		if ok {
			found = append(found, *d)
		}
	}

	c.mu.Lock()
	if c.generation == gen {
		c.discovered = found
		c.hasListing = true
	}
	c.mu.Unlock()

	c.log.Info("discovered archives", logger.Int("count", len(found)), logger.String("directory", c.root.Dir()))
	return append([]models.Descriptor(nil), found...), nil
}

// Descriptor returns the archive's descriptor, loading it on first use.
// ok is false when the file does not exist.
func (c *Catalog) Descriptor(filename string) (*models.Descriptor, bool, error) {
	name, path, err := c.resolve(filename)
	if err != nil {
		return nil, false, err
	}
	if !c.root.HasFile(path) {
		return nil, false, nil
	}

	c.mu.RLock()
	if d, ok := c.descriptors[name]; ok {
		c.mu.RUnlock()
		out := *d
		return &out, true, nil
	}
	gen := c.generation
	c.mu.RUnlock()

	d, ok, err := c.describe(name, path)
	if err != nil || !ok {
		return nil, ok, err
	}

	c.mu.Lock()
	if c.generation == gen {
		if existing, dup := c.descriptors[name]; dup {
			d = existing
		} else {
			c.descriptors[name] = d
		}
	}
	c.mu.Unlock()

	out := *d
	return &out, true, nil
}

// IsDescriptorCached reports whether filename's descriptor is already loaded.
func (c *Catalog) IsDescriptorCached(filename string) bool {
	name, _, err := c.resolve(filename)
	if err != nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.descriptors[name]
	return ok
}

// IsHandleCached reports whether filename has an open handle in the cache.
// It does not touch recency.
func (c *Catalog) IsHandleCached(filename string) bool {
	_, path, err := c.resolve(filename)
	if err != nil {
		return false
	}
	return c.handles.Contains(path)
}

func (c *Catalog) describe(name, path string) (*models.Descriptor, bool, error) {
	st, err := c.root.GetFileStats(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, faults.IOFailure(err, "stat", name)
	}

	d := &models.Descriptor{
		Filename:      name,
		Filepath:      path,
		Size:          st.SizeBytes,
		SizeFormatted: storage.FormatFileSize(st.SizeBytes),
		Title:         name,
	}

	if st.SizeBytes > c.cfg.MaxFileSizeBytes() {
		d.Description = degradedDescription
		d.Degraded = true
		c.log.Info("skipping metadata for large archive",
			logger.String("archive", name),
			logger.Int64("size", st.SizeBytes),
		)
		return d, true, nil
	}

	h, ok, err := c.Handle(name)
	if err != nil || !ok {
		return nil, ok, err
	}
	defer h.Release()

	a := h.Archive
	d.ArticleCount = a.ArticleCount()
	d.MediaCount = a.MediaCount()
	d.UUID = a.UUID()
	d.HasFulltextIndex = a.HasFulltextIndex()
	d.HasTitleIndex = a.HasTitleIndex()
	if title := metadataString(a, "Title"); title != "" {
		d.Title = title
	}
	d.Description = metadataString(a, "Description")
	d.Language = metadataString(a, "Language")
	d.Creator = metadataString(a, "Creator")
	d.Date = metadataString(a, "Date")

	if c.cfg.ShouldVerifyChecksums() && a.HasChecksum() {
		if err := a.Check(); err != nil {
			c.log.Warn("archive checksum verification failed, archive may be corrupt",
				logger.String("archive", name),
				logger.String("operation", "check"),
				logger.Error(err),
			)
		}
	}
	return d, true, nil
}

func metadataString(a archive.Archive, key string) string {
	b, err := a.Metadata(key)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// Handle leases the open archive for filename, opening it on a cache miss.
// ok is false when the file does not exist. The caller must Release the lease.
func (c *Catalog) Handle(filename string) (*Handle, bool, error) {
	name, path, err := c.resolve(filename)
	if err != nil {
		return nil, false, err
	}
	if !c.root.HasFile(path) {
		return nil, false, nil
	}

	for attempt := 0; attempt < maxLeaseAttempts; attempt++ {
		ref, hit := c.handles.Get(path)
		metrics.RecordCacheLookup(hit)
		if !hit {
			ref, err = c.open(name, path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil, false, nil
				}
				return nil, false, err
			}
		}
		if ref.acquire() {
			return &Handle{Archive: ref.archive, Filename: name, ref: ref}, true, nil
		}
	}
	return nil, false, faults.IOFailure(errors.New("handle closed while acquiring"), "lease", name)
}

// open performs a cold open, collapsing concurrent opens of the same path.
func (c *Catalog) open(name, path string) (*handleRef, error) {
	v, err, _ := c.opens.Do(path, func() (any, error) {
		if ref, ok := c.handles.Peek(path); ok {
			return ref, nil
		}

		start := time.Now()
		a, err := c.opener.Open(path)
		elapsed := time.Since(start)
		if err != nil {
			metrics.RecordOpen("error", elapsed.Seconds())
			if errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			c.log.Error("failed to open archive",
				logger.String("archive", name),
				logger.String("operation", "open"),
				logger.Error(err),
			)
			return nil, faults.IOFailure(err, "open", name)
		}
		metrics.RecordOpen("ok", elapsed.Seconds())
		c.live.Add(1)

		ref := newHandleRef(a, path, func() { c.live.Add(-1) }, c.log)
		c.handles.Put(path, ref)
		c.log.Debug("opened archive", logger.String("archive", name), logger.Duration("elapsed", elapsed))
		return ref, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*handleRef), nil
}

func (c *Catalog) lookup(filename string, find func(archive.Archive) (archive.Entry, bool, error)) (*Entry, bool, error) {
	h, ok, err := c.Handle(filename)
	if err != nil || !ok {
		return nil, false, err
	}
	e, ok, err := find(h.Archive)
	if err != nil {
		h.Release()
		if errors.Is(err, archive.ErrNoEntry) {
			return nil, false, nil
		}
		return nil, false, faults.IOFailure(err, "read entry", h.Filename)
	}
	if !ok {
		h.Release()
		return nil, false, nil
	}
	return &Entry{Entry: e, Filename: h.Filename, handle: h}, true, nil
}

// EntryByPath returns the entry at path, or ok=false when the archive or entry is missing.
func (c *Catalog) EntryByPath(filename, path string) (*Entry, bool, error) {
	return c.lookup(filename, func(a archive.Archive) (archive.Entry, bool, error) {
		if !a.HasEntryByPath(path) {
			return nil, false, nil
		}
		e, err := a.EntryByPath(path)
		return e, err == nil, err
	})
}

// EntryByTitle returns the entry with title, or ok=false when missing.
func (c *Catalog) EntryByTitle(filename, title string) (*Entry, bool, error) {
	return c.lookup(filename, func(a archive.Archive) (archive.Entry, bool, error) {
		if !a.HasEntryByTitle(title) {
			return nil, false, nil
		}
		e, err := a.EntryByTitle(title)
		return e, err == nil, err
	})
}

// MainEntry returns the archive's designated main entry, if it has one.
func (c *Catalog) MainEntry(filename string) (*Entry, bool, error) {
	return c.lookup(filename, func(a archive.Archive) (archive.Entry, bool, error) {
		if !a.HasMainEntry() {
			return nil, false, nil
		}
		e, err := a.MainEntry()
		return e, err == nil, err
	})
}

// RandomEntry draws one entry from the archive.
func (c *Catalog) RandomEntry(filename string) (*Entry, bool, error) {
	return c.lookup(filename, func(a archive.Archive) (archive.Entry, bool, error) {
		e, err := a.RandomEntry()
		return e, err == nil, err
	})
}

// Validate reports whether filename names an archive that can be opened.
func (c *Catalog) Validate(filename string) bool {
	h, ok, err := c.Handle(filename)
	if err != nil || !ok {
		return false
	}
	h.Release()
	return true
}

// ClearCaches drops every cached handle, descriptor and the discovery
// listing. Leased handles stay open until released.
func (c *Catalog) ClearCaches() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.descriptors = map[string]*models.Descriptor{}
	c.discovered = nil
	c.hasListing = false

	c.clearing.Store(true)
	c.handles.Clear()
	c.clearing.Store(false)

	c.log.Info("cleared archive caches")
}

// Close releases every cached handle.
func (c *Catalog) Close() error {
	c.ClearCaches()
	return nil
}

// Stats reports cache occupancy.
func (c *Catalog) Stats() models.CacheStats {
	hs := c.handles.Stats()
	keys := c.handles.Keys()
	names := make([]string, 0, len(keys))
	for _, path := range keys {
		if name, err := c.root.Rel(path); err == nil {
			names = append(names, name)
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.CacheStats{
		ArchiveCacheSize:    hs.Size,
		ArchiveCacheMaxSize: hs.Capacity,
		ArchiveCacheHits:    hs.Hits,
		ArchiveCacheMisses:  hs.Misses,
		ArchiveEvictions:    hs.Evictions,
		OpenHandles:         c.live.Load(),
		DescriptorCacheSize: len(c.descriptors),
		DiscoveryCached:     c.hasListing,
		CachedArchives:      names,
	}
}

// Exists reports whether filename is a file under the root.
func (c *Catalog) Exists(filename string) bool {
	_, path, err := c.resolve(filename)
	if err != nil {
		return false
	}
	return c.root.HasFile(path)
}
