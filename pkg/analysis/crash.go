/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: crash.go
Description: Crash detection over recorded session artifacts. Treats the first
captured screen state as the device home screen and flags any later state that
perceptually recurs to it, pairing each hit with the UI event at the same
ordinal position in the event stream.
*/

package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kleascm/akaylee-droid/pkg/events"
	"github.com/kleascm/akaylee-droid/pkg/imaging"
)

// CrashReportName is the crash analysis file within the session output
// directory
const CrashReportName = "crash_analysis.json"

// CrashPoint represents one state that recurred to the home screen
type CrashPoint struct {
	Index        int                    `json:"state_index"`   // Position in the sorted state sequence
	StateFile    string                 `json:"state_file"`    // Screenshot that matched home
	HashDistance int                    `json:"hash_distance"` // Fingerprint distance to home
	EventFile    string                 `json:"event_file,omitempty"`
	Event        map[string]interface{} `json:"event,omitempty"` // UI event at the same ordinal
}

// CrashMetadata records where and how an analysis ran
type CrashMetadata struct {
	StateDir            string    `json:"state_dir"`
	EventDir            string    `json:"event_dir"`
	AnalysisTime        time.Time `json:"analysis_time"`
	SimilarityThreshold int       `json:"similarity_threshold"`
}

// CrashStatistics summarizes an analysis run
type CrashStatistics struct {
	TotalStatesAnalyzed int     `json:"total_states_analyzed"`
	CrashesDetected     int     `json:"crashes_detected"`
	CrashRate           float64 `json:"crash_rate"`
}

// CrashReport is the full crash analysis result, serialized as
// crash_analysis.json in the session output directory.
//
// The underlying heuristic is recurrence of the first captured screen: apps
// that legitimately navigate back to a home-like first screen will be
// over-reported, so crash points are leads for triage rather than verdicts.
type CrashReport struct {
	Metadata   CrashMetadata   `json:"metadata"`
	Statistics CrashStatistics `json:"statistics"`
	Crashes    []CrashPoint    `json:"crashes"`
}

// CrashDetector analyzes recorded screen states for home recurrence. It is a
// pure artifact consumer: no device interaction, deterministic for fixed
// inputs.
type CrashDetector struct {
	threshold int
	logger    *logrus.Logger
}

// NewCrashDetector creates a detector. threshold is the maximum fingerprint
// distance to the home screen still considered a recurrence.
func NewCrashDetector(threshold int, logger *logrus.Logger) *CrashDetector {
	if threshold < 0 {
		threshold = 5
	}
	return &CrashDetector{threshold: threshold, logger: logger}
}

// Analyze walks the sorted state sequence against the home reference.
// Fewer than two states means nothing to compare: the result is an empty
// report, not an error, since short sessions are normal.
func (d *CrashDetector) Analyze(stateDir, eventDir string) (*CrashReport, error) {
	report := &CrashReport{
		Metadata: CrashMetadata{
			StateDir:            stateDir,
			EventDir:            eventDir,
			AnalysisTime:        time.Now(),
			SimilarityThreshold: d.threshold,
		},
		Crashes: []CrashPoint{},
	}

	states, err := listSorted(stateDir, ".png", ".jpg", ".jpeg")
	if err != nil {
		d.logger.Warnf("state directory unavailable, nothing to analyze: %v", err)
		return report, nil
	}
	if len(states) < 2 {
		d.logger.WithField("states", len(states)).Info("not enough screen states for crash analysis")
		return report, nil
	}

	eventFiles, err := listSorted(eventDir, ".json")
	if err != nil {
		d.logger.Debugf("event directory unavailable, crashes will have no event context: %v", err)
	}

	home, err := imaging.FingerprintFile(states[0])
	if err != nil {
		d.logger.WithField("state", states[0]).Warnf("home reference undecodable, skipping analysis: %v", err)
		return report, nil
	}

	for i := 1; i < len(states); i++ {
		fp, err := imaging.FingerprintFile(states[i])
		if err != nil {
			d.logger.WithField("state", states[i]).Warnf("skipping undecodable state: %v", err)
			continue
		}

		distance := imaging.Distance(home, fp)
		if distance > d.threshold {
			continue
		}

		point := CrashPoint{
			Index:        i,
			StateFile:    filepath.Base(states[i]),
			HashDistance: distance,
		}
		if i < len(eventFiles) {
			if record, err := events.ParseRecord(eventFiles[i]); err != nil {
				d.logger.WithField("file", eventFiles[i]).Warnf("crash event context unreadable: %v", err)
			} else {
				point.EventFile = record.File
				point.Event = record.Payload
			}
		}
		report.Crashes = append(report.Crashes, point)

		d.logger.WithFields(logrus.Fields{
			"state":    point.StateFile,
			"distance": distance,
		}).Warn("screen recurred to home, possible crash")
	}

	report.Statistics = CrashStatistics{
		TotalStatesAnalyzed: len(states) - 1,
		CrashesDetected:     len(report.Crashes),
	}
	if report.Statistics.TotalStatesAnalyzed > 0 {
		report.Statistics.CrashRate = round4(float64(report.Statistics.CrashesDetected) /
			float64(report.Statistics.TotalStatesAnalyzed))
	}
	return report, nil
}

// Write serializes the report as indented JSON
func (r *CrashReport) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal crash report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write crash report: %w", err)
	}
	return nil
}

// Summary returns a one-line human-readable digest
func (r *CrashReport) Summary() string {
	return fmt.Sprintf("%d crashes across %d analyzed states (rate %.4f)",
		r.Statistics.CrashesDetected, r.Statistics.TotalStatesAnalyzed, r.Statistics.CrashRate)
}

// listSorted returns files in dir matching any of the extensions, sorted so
// driver timestamp naming yields capture order
func listSorted(dir string, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		for _, ext := range exts {
			if strings.HasSuffix(name, ext) {
				files = append(files, filepath.Join(dir, entry.Name()))
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// round4 rounds to four decimal places for report statistics
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
