// Package search fans a query out to archives that carry a search index.
// Results are concatenated in archive order; no ranking happens here.
package search

import (
	"strings"
	"unicode/utf8"

	"github.com/dtnitsch/llm-archive-reader/models"
	"github.com/dtnitsch/llm-archive-reader/pkg/archive"
	"github.com/dtnitsch/llm-archive-reader/pkg/catalog"
	"github.com/dtnitsch/llm-archive-reader/pkg/faults"
	"github.com/dtnitsch/llm-archive-reader/pkg/logger"
	"github.com/dtnitsch/llm-archive-reader/pkg/metrics"
)

// MaxQueryLength is the longest accepted query, in characters.
const MaxQueryLength = 1000

// ValidateQuery trims query and rejects empty or overlong input.
func ValidateQuery(query string) (string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", faults.InvalidInput("search query must not be empty")
	}
	if utf8.RuneCountInString(q) > MaxQueryLength {
		return "", faults.InvalidInput("search query exceeds %d characters", MaxQueryLength)
	}
	return q, nil
}

// HandleSource leases archive handles.
type HandleSource interface {
	Handle(filename string) (*catalog.Handle, bool, error)
}

// Engine runs searches against a HandleSource.
type Engine struct {
	handles HandleSource
	log     logger.Logger
}

func NewEngine(handles HandleSource, log logger.Logger) *Engine {
	return &Engine{handles: handles, log: logger.OrNop(log).With(logger.String("component", "search"))}
}

// Result is one page of hits.
type Result struct {
	Hits []models.SearchHit
	// Unsearched lists archives that were skipped: missing, failing, or without an index.
	Unsearched []string
}

// Search returns hits offset..offset+limit across filenames in order.
func (e *Engine) Search(query string, filenames []string, limit, offset int) (*Result, error) {
	q, err := ValidateQuery(query)
	if err != nil {
		metrics.RecordSearch("invalid")
		return nil, err
	}
	if limit <= 0 {
		return nil, faults.InvalidInput("max results must be positive, got %d", limit)
	}
	if offset < 0 {
		return nil, faults.InvalidInput("offset must not be negative, got %d", offset)
	}

	want := offset + limit
	res := &Result{}
	var all []models.SearchHit
	for _, name := range filenames {
		if len(all) >= want {
			break
		}
		hits, ok := e.searchOne(name, q, want-len(all))
		if !ok {
			res.Unsearched = append(res.Unsearched, name)
			continue
		}
		all = append(all, hits...)
	}

	if offset < len(all) {
		end := min(len(all), want)
		res.Hits = all[offset:end]
	}
	metrics.RecordSearch("ok")
	return res, nil
}

func (e *Engine) searchOne(name, query string, limit int) ([]models.SearchHit, bool) {
	h, ok, err := e.handles.Handle(name)
	if err != nil || !ok {
		if err != nil {
			e.log.Warn("skipping archive in search",
				logger.String("archive", name),
				logger.String("operation", "search"),
				logger.Error(err),
			)
		}
		return nil, false
	}
	defer h.Release()

	s, ok := h.Archive.(archive.Searcher)
	if !ok {
		e.log.Debug("archive has no search index", logger.String("archive", name))
		return nil, false
	}
	found, err := s.Search(query, limit)
	if err != nil {
		e.log.Warn("archive search failed",
			logger.String("archive", name),
			logger.String("operation", "search"),
			logger.Error(err),
		)
		return nil, false
	}

	hits := make([]models.SearchHit, 0, len(found))
	for _, f := range found {
		hits = append(hits, models.SearchHit{
			Filename: h.Filename,
			Path:     f.Path,
			Title:    f.Title,
			Snippet:  f.Snippet,
			Score:    f.Score,
		})
	}
	return hits, true
}
