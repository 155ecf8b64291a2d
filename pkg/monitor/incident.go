/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: incident.go
Description: Data-loss incident persistence. Each incident becomes its own
directory holding copies of the monitor's snapshot history plus a manifest,
immutable once written, so evidence survives no matter how the session ends.
*/

package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kleascm/akaylee-droid/pkg/events"
	"github.com/kleascm/akaylee-droid/pkg/interfaces"
)

// IncidentsDir is the directory name incidents are persisted into, relative
// to the session output directory
const IncidentsDir = "data_loss_events"

// manifestName is the per-incident metadata file
const manifestName = "manifest.json"

// IncidentReason classifies what tripped the detector
type IncidentReason string

const (
	ReasonActivityChange IncidentReason = "activity_change"
	ReasonVisualChange   IncidentReason = "visual_change"
)

// IncidentEvent is one recent UI event captured with an incident
type IncidentEvent struct {
	File string      `json:"file"`
	Kind events.Kind `json:"kind"`
}

// Incident represents one detected data-loss occurrence. Written once into
// its own directory and never mutated afterwards.
type Incident struct {
	ID           string          `json:"id"`
	Number       int             `json:"number"` // Ordinal within the session, starting at 1
	TriggeredAt  time.Time       `json:"triggered_at"`
	Reason       IncidentReason  `json:"reason"`
	Activity     string          `json:"activity,omitempty"`      // Foreground component at trigger
	ChangeRatio  float64         `json:"change_ratio,omitempty"`  // Pixel-diff ratio for visual incidents
	HashDistance int             `json:"hash_distance,omitempty"` // Fingerprint distance between the compared pair
	Snapshots    []string        `json:"snapshots"`               // Screenshot filenames copied alongside
	RecentEvents []IncidentEvent `json:"recent_events,omitempty"` // Driver events leading up to the trigger
	ChecksBefore int64           `json:"checks_before"`           // Comparisons performed before this one
}

// IncidentStore persists incidents under a session's incident directory and
// can recount them from disk, which is the source of truth after a crash of
// the monitor itself.
type IncidentStore struct {
	dir    string
	logger *logrus.Logger

	mu    sync.Mutex
	count int
}

// NewIncidentStore creates a store rooted at dir, creating it if needed
func NewIncidentStore(dir string, logger *logrus.Logger) (*IncidentStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create incident directory: %w", err)
	}
	return &IncidentStore{dir: dir, logger: logger}, nil
}

// Persist writes an incident directory containing the manifest and a copy of
// every snapshot in the provided history. Snapshot copy failures degrade the
// evidence but never the manifest.
func (s *IncidentStore) Persist(incident *Incident, history []*interfaces.Snapshot) (string, error) {
	s.mu.Lock()
	s.count++
	incident.Number = s.count
	s.mu.Unlock()

	dirName := fmt.Sprintf("incident_%03d_%s", incident.Number, incident.TriggeredAt.Format("20060102_150405"))
	incidentDir := filepath.Join(s.dir, dirName)
	if err := os.MkdirAll(incidentDir, 0755); err != nil {
		return "", fmt.Errorf("create incident dir: %w", err)
	}

	incident.Snapshots = incident.Snapshots[:0]
	for _, snapshot := range history {
		base := filepath.Base(snapshot.Path)
		if err := copyFile(snapshot.Path, filepath.Join(incidentDir, base)); err != nil {
			s.logger.WithField("snapshot", base).Warnf("snapshot copy failed, incident evidence incomplete: %v", err)
			continue
		}
		incident.Snapshots = append(incident.Snapshots, base)
	}

	data, err := json.MarshalIndent(incident, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal incident manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(incidentDir, manifestName), data, 0644); err != nil {
		return "", fmt.Errorf("write incident manifest: %w", err)
	}
	return incidentDir, nil
}

// Count returns how many incidents this store persisted in-process
func (s *IncidentStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// LoadAll reads every incident manifest under the store directory, in
// incident order. Directories without a readable manifest are counted as
// incidents with no detail, since their existence is still evidence.
func (s *IncidentStore) LoadAll() []*Incident {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Debugf("incident directory unreadable: %v", err)
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var incidents []*Incident
	for _, name := range names {
		manifest := filepath.Join(s.dir, name, manifestName)
		data, err := os.ReadFile(manifest)
		if err != nil {
			s.logger.WithField("incident", name).Warnf("incident manifest unreadable: %v", err)
			incidents = append(incidents, &Incident{ID: name})
			continue
		}
		var incident Incident
		if err := json.Unmarshal(data, &incident); err != nil {
			s.logger.WithField("incident", name).Warnf("incident manifest corrupt: %v", err)
			incidents = append(incidents, &Incident{ID: name})
			continue
		}
		incidents = append(incidents, &incident)
	}
	return incidents
}

// copyFile copies src to dst, buffering the whole file
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
