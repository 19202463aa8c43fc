// Package app wires the catalog, extraction pipeline and search engine into
// the operations exposed by the CLI and the MCP server.
package app

import (
	"strings"

	"github.com/dtnitsch/llm-archive-reader/models"
	"github.com/dtnitsch/llm-archive-reader/pkg/archive"
	"github.com/dtnitsch/llm-archive-reader/pkg/archive/ziparchive"
	"github.com/dtnitsch/llm-archive-reader/pkg/catalog"
	"github.com/dtnitsch/llm-archive-reader/pkg/convert"
	"github.com/dtnitsch/llm-archive-reader/pkg/extractor"
	"github.com/dtnitsch/llm-archive-reader/pkg/faults"
	"github.com/dtnitsch/llm-archive-reader/pkg/logger"
	"github.com/dtnitsch/llm-archive-reader/pkg/metrics"
	"github.com/dtnitsch/llm-archive-reader/pkg/sampler"
	"github.com/dtnitsch/llm-archive-reader/pkg/search"
)

const maxRedirectHops = 5

// App is the long-lived service instance. It is safe for concurrent use.
type App struct {
	cfg      *models.Config
	catalog  *catalog.Catalog
	pipeline *extractor.Pipeline
	search   *search.Engine
	log      logger.Logger
}

// ReadOptions controls how an entry is rendered.
type ReadOptions struct {
	// Raw returns text verbatim and binaries base64-encoded.
	Raw bool
	// Images attaches image bytes for callers that can display them.
	Images bool
}

// Bootstrap builds an App reading zip-packaged archives.
func Bootstrap(cfg *models.Config, log logger.Logger) (*App, error) {
	return New(cfg, &ziparchive.Opener{Ext: cfg.Archives.Extension}, log)
}

// New builds an App over opener. Configuration problems are returned as
// INVALID_CONFIGURATION errors.
func New(cfg *models.Config, opener archive.Opener, log logger.Logger) (*App, error) {
	log = logger.OrNop(log)
	cat, err := catalog.New(cfg.Archives, opener, log)
	if err != nil {
		return nil, err
	}
	return &App{
		cfg:      cfg,
		catalog:  cat,
		pipeline: extractor.New(cfg.Content, convert.NewMarkdown(cfg.Content.UseReadability), log),
		search:   search.NewEngine(cat, log),
		log:      log,
	}, nil
}

// Config is the configuration the App was built with.
func (a *App) Config() *models.Config {
	return a.cfg
}

// Close releases cached archive handles.
func (a *App) Close() error {
	return a.catalog.Close()
}

// ListFiles describes every archive under the root.
func (a *App) ListFiles() (*models.ListFilesResponse, error) {
	files, err := a.catalog.Discover(false)
	if err != nil {
		return nil, err
	}
	return &models.ListFilesResponse{
		Directory: a.catalog.Dir(),
		Count:     len(files),
		Files:     files,
	}, nil
}

// Metadata describes one archive.
func (a *App) Metadata(filename string) (*models.MetadataResponse, error) {
	cached := a.catalog.IsDescriptorCached(filename)
	handleCached := a.catalog.IsHandleCached(filename)
	d, ok, err := a.catalog.Descriptor(filename)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, faults.NotFound("archive %q not found", filename)
	}

	resp := &models.MetadataResponse{
		Descriptor: *d,
		CacheInfo:  models.CacheInfo{MetadataCached: cached, HandleCached: handleCached},
	}
	if d.Degraded {
		return resp, nil
	}

	h, ok, err := a.catalog.Handle(filename)
	if err != nil || !ok {
		return resp, nil
	}
	defer h.Release()
	resp.MetadataKeys = h.Archive.MetadataKeys()
	if h.Archive.HasMainEntry() {
		if e, err := h.Archive.MainEntry(); err == nil {
			resp.MainEntryPath = e.Path()
		}
	}
	return resp, nil
}

// ReadEntry renders the entry at path, falling back to a title lookup.
func (a *App) ReadEntry(filename, path string, opts ReadOptions) (*models.EntryResponse, error) {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil, faults.InvalidInput("entry path must not be empty")
	}

	e, ok, err := a.catalog.EntryByPath(filename, path)
	if err == nil && !ok {
		e, ok, err = a.catalog.EntryByTitle(filename, path)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, a.missing(filename, faults.NotFound("entry %q not found in %s", path, filename))
	}
	defer e.Release()
	return a.render(e, e.Entry, opts), nil
}

// MainEntry renders the archive's main entry, following redirects.
func (a *App) MainEntry(filename string, opts ReadOptions) (*models.EntryResponse, error) {
	e, ok, err := a.catalog.MainEntry(filename)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, a.missing(filename, faults.NotFound("archive %s has no main entry", filename))
	}
	defer e.Release()

	target, err := archive.Resolve(e.Archive(), e.Entry, maxRedirectHops)
	if err != nil {
		a.log.Warn("failed to follow main entry redirect",
			logger.String("archive", filename),
			logger.String("path", e.Path()),
			logger.Error(err),
		)
		target = e.Entry
	}
	return a.render(e, target, opts), nil
}

func (a *App) render(e *catalog.Entry, target archive.Entry, opts ReadOptions) *models.EntryResponse {
	resp := &models.EntryResponse{
		Filename:         e.Filename,
		ExtractedContent: *a.pipeline.Extract(target, opts.Raw),
	}
	if opts.Images && !opts.Raw && !target.IsRedirect() && strings.HasPrefix(target.MimeType(), "image/") {
		if data, err := target.Content(); err == nil {
			resp.Image = &models.ImagePayload{MimeType: target.MimeType(), Data: data}
		}
	}
	return resp
}

// missing reports a missing archive in preference to err.
func (a *App) missing(filename string, err error) error {
	if !a.catalog.Exists(filename) {
		return faults.NotFound("archive %q not found", filename)
	}
	return err
}

// RandomEntries samples count entries spread across filenames, or across
// every discovered archive when filenames is empty.
func (a *App) RandomEntries(filenames []string, count int) (*models.RandomEntriesResponse, error) {
	if count < 1 || count > a.cfg.Random.MaxCount {
		return nil, faults.InvalidInput("count must be between 1 and %d, got %d", a.cfg.Random.MaxCount, count)
	}
	filenames, err := a.targets(filenames)
	if err != nil {
		return nil, err
	}

	entries := sampler.Distribute(filenames, count, a.drawRandom, a.log)
	metrics.RecordRandomEntries(len(entries))
	if len(entries) < count {
		a.log.Info("random sample under-filled",
			logger.Int("requested", count),
			logger.Int("returned", len(entries)),
		)
	}
	return &models.RandomEntriesResponse{
		Requested: count,
		Returned:  len(entries),
		Archives:  filenames,
		Entries:   entries,
	}, nil
}

func (a *App) drawRandom(filename string) (models.RandomEntry, bool, error) {
	e, ok, err := a.catalog.RandomEntry(filename)
	if err != nil {
		return models.RandomEntry{}, false, err
	}
	if !ok {
		if !a.catalog.Exists(filename) {
			return models.RandomEntry{}, false, faults.NotFound("archive %s not found", filename)
		}
		return models.RandomEntry{}, false, nil
	}
	defer e.Release()
	return models.RandomEntry{
		Filename: e.Filename,
		Path:     e.Path(),
		Title:    e.Title(),
		MimeType: e.MimeType(),
	}, true, nil
}

// Search runs query across filenames, or every discovered archive.
func (a *App) Search(query string, filenames []string, maxResults, offset int) (*models.SearchResponse, error) {
	if maxResults == 0 {
		maxResults = a.cfg.Search.MaxResults
	}
	if maxResults < 1 || maxResults > a.cfg.Search.MaxResults {
		return nil, faults.InvalidInput("max_results must be between 1 and %d, got %d", a.cfg.Search.MaxResults, maxResults)
	}
	q, err := search.ValidateQuery(query)
	if err != nil {
		return nil, err
	}
	filenames, err = a.targets(filenames)
	if err != nil {
		return nil, err
	}

	res, err := a.search.Search(q, filenames, maxResults, offset)
	if err != nil {
		return nil, err
	}
	return &models.SearchResponse{
		Query:      q,
		Archives:   filenames,
		Offset:     offset,
		MaxResults: maxResults,
		Count:      len(res.Hits),
		HasMore:    len(res.Hits) == maxResults,
		Results:    res.Hits,
		Unsearched: res.Unsearched,
	}, nil
}

func (a *App) targets(filenames []string) ([]string, error) {
	if len(filenames) > 0 {
		return filenames, nil
	}
	files, err := a.catalog.Discover(false)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, faults.NotFound("no archives available in %s", a.catalog.Dir())
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Filename
	}
	return names, nil
}

// CacheStats reports catalog cache occupancy.
func (a *App) CacheStats() models.CacheStats {
	return a.catalog.Stats()
}

// ClearCaches drops cached handles, descriptors and the listing.
func (a *App) ClearCaches() {
	a.catalog.ClearCaches()
}

// Health reports whether the archive directory is usable.
func (a *App) Health() models.HealthStatus {
	status := models.HealthStatus{Status: "healthy", Directory: a.catalog.Dir()}
	files, err := a.catalog.Discover(false)
	if err != nil {
		status.Status = "unhealthy"
		status.Error = err.Error()
		return status
	}
	status.ArchiveCount = len(files)
	return status
}
