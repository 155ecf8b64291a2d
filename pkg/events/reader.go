/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: reader.go
Description: Poll-based reader for the driver's event directory. Tracks which
files have been processed so every poll returns only the delta, and marks
malformed files as processed so they are never retried.
*/

package events

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Reader polls an event directory for records that have not been seen yet.
// The directory may not exist when polling starts; that is treated as an
// empty delta since the driver creates it on its own schedule.
type Reader struct {
	dir    string
	logger *logrus.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewReader creates a reader for the given event directory
func NewReader(dir string, logger *logrus.Logger) *Reader {
	return &Reader{
		dir:    dir,
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// Poll returns every event record that appeared since the previous poll, in
// filename order. A file is consumed exactly once: malformed files are logged,
// counted as seen, and never surfaced or retried.
func (r *Reader) Poll() []*Record {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		r.logger.WithField("dir", r.dir).Debugf("event directory not readable yet: %v", err)
		return nil
	}

	r.mu.Lock()
	var fresh []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if _, ok := r.seen[name]; ok {
			continue
		}
		r.seen[name] = struct{}{}
		fresh = append(fresh, name)
	}
	r.mu.Unlock()

	sort.Strings(fresh)

	var records []*Record
	for _, name := range fresh {
		record, err := ParseRecord(filepath.Join(r.dir, name))
		if err != nil {
			r.logger.WithField("file", name).Warnf("skipping malformed event record: %v", err)
			continue
		}
		records = append(records, record)
	}
	return records
}

// SeenCount returns how many event files have been consumed so far
func (r *Reader) SeenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// Dir returns the polled event directory
func (r *Reader) Dir() string {
	return r.dir
}
