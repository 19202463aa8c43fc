// Package sampler spreads a random-entry request across several archives.
package sampler

import (
	"github.com/dtnitsch/llm-archive-reader/models"
	"github.com/dtnitsch/llm-archive-reader/pkg/logger"
)

// DrawFunc draws one random entry from the named archive. ok is false when
// the archive is missing or yielded nothing.
type DrawFunc func(filename string) (entry models.RandomEntry, ok bool, err error)

// Quota is the number of draws attempted per archive: max(1, count/archives).
func Quota(count, archives int) int {
	if archives <= 0 {
		return 0
	}
	q := count / archives
	if q < 1 {
		q = 1
	}
	return q
}

// Distribute draws up to Quota entries from each archive in order and stops
// as soon as count entries are collected. An archive whose draw fails or
// comes back empty is logged and skipped. The result may hold fewer than
// count entries when the archives do not divide count evenly or some of them
// are skipped.
func Distribute(filenames []string, count int, draw DrawFunc, log logger.Logger) []models.RandomEntry {
	if count <= 0 || len(filenames) == 0 {
		return nil
	}
	log = logger.OrNop(log)
	quota := Quota(count, len(filenames))

	entries := make([]models.RandomEntry, 0, count)
	for _, name := range filenames {
		if len(entries) >= count {
			break
		}
		for i := 0; i < quota && len(entries) < count; i++ {
			e, ok, err := draw(name)
			if err != nil {
				log.Warn("skipping archive for random entries",
					logger.String("archive", name),
					logger.String("operation", "random_entry"),
					logger.Error(err),
				)
				break
			}
			if !ok {
				log.Warn("archive yielded no random entry, skipping",
					logger.String("archive", name),
					logger.String("operation", "random_entry"),
				)
				break
			}
			entries = append(entries, e)
		}
	}
	return entries
}
