// Package ziptest builds zip-packaged archives for tests.
package ziptest

import (
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zip"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

const (
	metadataPrefix = "M/"
	mainFile       = "X/main"
	redirectsFile  = "X/redirects"
	titlesFile     = "X/titles"
	checksumFile   = "X/checksum"
)

// Writer assembles an archive in the layout ziparchive.Open reads. Entries are buffered
// until Close so the checksum can cover them in name order.
type Writer struct {
	w         io.Writer
	entries   map[string][]byte
	meta      map[string]string
	redirects map[string]string
	titles    map[string]string
	main      string
	checksum  bool
}

// NewWriter returns a Writer that emits the archive to w on Close.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:         w,
		entries:   map[string][]byte{},
		meta:      map[string]string{},
		redirects: map[string]string{},
		titles:    map[string]string{},
	}
}

// Add stores a content entry. title may be empty.
func (w *Writer) Add(path, title string, data []byte) {
	w.entries[path] = data
	if title != "" {
		w.titles[path] = title
	}
}

func (w *Writer) Redirect(path, title, target string) {
	w.redirects[path] = target
	if title != "" {
		w.titles[path] = title
	}
}

func (w *Writer) SetMetadata(key, value string) { w.meta[key] = value }
func (w *Writer) SetMain(path string)           { w.main = path }

// WithChecksum makes Close write X/checksum.
func (w *Writer) WithChecksum() { w.checksum = true }

// Close writes the zip stream.
func (w *Writer) Close() error {
	zw := zip.NewWriter(w.w)

	names := make([]string, 0, len(w.entries))
	for name := range w.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writeFile(zw, name, w.entries[name]); err != nil {
			return err
		}
	}

	for key, value := range w.meta {
		if err := writeFile(zw, metadataPrefix+key, []byte(value)); err != nil {
			return err
		}
	}
	if w.main != "" {
		if err := writeFile(zw, mainFile, []byte(w.main)); err != nil {
			return err
		}
	}
	if len(w.redirects) > 0 {
		if err := writeYAML(zw, redirectsFile, w.redirects); err != nil {
			return err
		}
	}
	if len(w.titles) > 0 {
		if err := writeYAML(zw, titlesFile, w.titles); err != nil {
			return err
		}
	}
	if w.checksum {
		if err := writeFile(zw, checksumFile, []byte(w.sum(names))); err != nil {
			return err
		}
	}
	return zw.Close()
}

// sum matches ziparchive.Checksum: every name followed by its payload, in name order.
func (w *Writer) sum(names []string) string {
	h := blake3.New()
	for _, name := range names {
		io.WriteString(h, name)
		h.Write(w.entries[name])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeFile(zw *zip.Writer, name string, data []byte) error {
	fw, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func writeYAML(zw *zip.Writer, name string, v map[string]string) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return writeFile(zw, name, data)
}
