package catalog

import (
	"sync"
	"sync/atomic"

	"github.com/dtnitsch/llm-archive-reader/pkg/archive"
	"github.com/dtnitsch/llm-archive-reader/pkg/logger"
	"github.com/dtnitsch/llm-archive-reader/pkg/metrics"
)

// handleRef is a reference-counted open archive. The handle cache owns one
// reference; every outstanding Handle owns one more. The archive is closed
// when the count reaches zero.
type handleRef struct {
	archive archive.Archive
	path    string
	refs    atomic.Int32
	onClose func()
	log     logger.Logger
}

func newHandleRef(a archive.Archive, path string, onClose func(), log logger.Logger) *handleRef {
	ref := &handleRef{archive: a, path: path, onClose: onClose, log: log}
	ref.refs.Store(1)
	metrics.HandleOpened()
	return ref
}

// acquire takes a reference unless the handle is already closed.
func (r *handleRef) acquire() bool {
	for {
		n := r.refs.Load()
		if n <= 0 {
			return false
		}
		if r.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (r *handleRef) release() {
	if r.refs.Add(-1) != 0 {
		return
	}
	if err := r.archive.Close(); err != nil {
		r.log.Warn("failed to close archive",
			logger.String("archive", r.path),
			logger.String("operation", "close"),
			logger.Error(err),
		)
	}
	metrics.HandleClosed()
	if r.onClose != nil {
		r.onClose()
	}
}

// Handle is a lease on a cached archive. The archive stays open until
// Release is called, even if the cache evicts it in the meantime.
type Handle struct {
	// Archive must not be closed by the holder.
	Archive archive.Archive
	// Filename is the archive name relative to the catalog root.
	Filename string

	ref  *handleRef
	once sync.Once
}

// Release returns the lease. Calling it more than once is a no-op.
func (h *Handle) Release() {
	h.once.Do(h.ref.release)
}

// Entry is an archive entry together with the lease keeping its archive open.
type Entry struct {
	archive.Entry
	Filename string

	handle *Handle
}

// Archive is the archive the entry was read from. It is valid until Release.
func (e *Entry) Archive() archive.Archive {
	return e.handle.Archive
}

// Release returns the underlying archive lease.
func (e *Entry) Release() {
	e.handle.Release()
}
