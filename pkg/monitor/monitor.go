/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: monitor.go
Description: Data-loss monitor engine. Periodically samples the device screen,
keeps bounded snapshot and event histories, and classifies each consecutive
snapshot pair as unchanged, benignly rotated, or a data-loss incident. Runs
until stopped and flushes a report that survives abnormal termination.
*/

package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kleascm/akaylee-droid/pkg/events"
	"github.com/kleascm/akaylee-droid/pkg/imaging"
	"github.com/kleascm/akaylee-droid/pkg/interfaces"
	"github.com/kleascm/akaylee-droid/pkg/metrics"
)

// ReportName is the monitor's report file within the session output directory
const ReportName = "data_loss_report.json"

// Config represents data-loss monitor configuration
type Config struct {
	Interval        time.Duration // Check cadence; each sleep is shortened by the time the check took
	SnapshotHistory int           // Bounded snapshot window, oldest evicted
	EventHistory    int           // Bounded event window, oldest evicted
	TargetPackage   string        // Package whose foreground loss counts as an incident
	OutputDir       string        // Session output root
}

// Stats is a point-in-time view of monitor counters
type Stats struct {
	ChecksPerformed int64 `json:"checks_performed"`
	SamplesTaken    int64 `json:"samples_taken"`
	CaptureFailures int64 `json:"capture_failures"`
	Incidents       int   `json:"incidents"`
}

// Report is the monitor's aggregated result, serialized as
// data_loss_report.json. Incident detail is re-read from disk so a monitor
// killed mid-tick still reports everything it persisted.
type Report struct {
	Metadata struct {
		OutputDir     string        `json:"output_dir"`
		GeneratedAt   time.Time     `json:"generated_at"`
		Interval      time.Duration `json:"interval_ns"`
		TargetPackage string        `json:"target_package"`
	} `json:"metadata"`
	Statistics struct {
		Stats
		IncidentRate float64 `json:"incident_rate"`
	} `json:"statistics"`
	Incidents []*Incident `json:"incidents"`
}

// Monitor watches for UI data loss during an exploration session
type Monitor struct {
	config  *Config
	sampler interfaces.SnapshotSampler
	reader  *events.Reader
	differ  *imaging.Differ
	store   *IncidentStore
	logger  *logrus.Logger

	// State
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex

	// Bounded histories
	snapshots []*interfaces.Snapshot
	history   []*events.Record

	// Counters
	checks          int64
	samples         int64
	captureFailures int64
	visited         map[string]struct{}
}

// NewMonitor creates a data-loss monitor. The incident store is rooted under
// the session output directory.
func NewMonitor(config *Config, sampler interfaces.SnapshotSampler, reader *events.Reader,
	differ *imaging.Differ, logger *logrus.Logger) (*Monitor, error) {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.SnapshotHistory < 2 {
		config.SnapshotHistory = 5
	}
	if config.EventHistory <= 0 {
		config.EventHistory = 20
	}

	store, err := NewIncidentStore(filepath.Join(config.OutputDir, IncidentsDir), logger)
	if err != nil {
		return nil, err
	}

	return &Monitor{
		config:    config,
		sampler:   sampler,
		reader:    reader,
		differ:    differ,
		store:     store,
		logger:    logger,
		snapshots: make([]*interfaces.Snapshot, 0, config.SnapshotHistory),
		history:   make([]*events.Record, 0, config.EventHistory),
		visited:   make(map[string]struct{}),
	}, nil
}

// Start begins the monitoring loop
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("data-loss monitor already running")
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.running = true

	m.wg.Add(1)
	go m.loop()

	m.logger.WithFields(logrus.Fields{
		"interval": m.config.Interval,
		"package":  m.config.TargetPackage,
	}).Info("Data-loss monitor started")
	return nil
}

// Stop ends monitoring and flushes the report to disk
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("data-loss monitor not running")
	}
	m.running = false
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()

	report := m.Report()
	path := filepath.Join(m.config.OutputDir, ReportName)
	if err := writeReport(report, path); err != nil {
		return err
	}
	m.logger.WithField("incidents", len(report.Incidents)).Info("Data-loss monitor stopped")
	return nil
}

// loop runs checks every Interval, deducting the time each check took so the
// cadence holds even when capture is slow. The sleep never goes negative.
func (m *Monitor) loop() {
	defer m.wg.Done()

	for {
		start := time.Now()
		m.check()

		sleep := m.config.Interval - time.Since(start)
		if sleep < 0 {
			sleep = 0
		}
		select {
		case <-m.ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

// check performs one monitoring tick: drain new events, capture a snapshot,
// and classify the two most recent states
func (m *Monitor) check() {
	for _, record := range m.reader.Poll() {
		m.pushEvent(record)
	}

	snapshot, err := m.sampler.Capture(m.ctx)
	if err != nil {
		m.mu.Lock()
		m.captureFailures++
		m.mu.Unlock()
		metrics.IncCapture("failure")
		m.logger.Warnf("snapshot capture failed, skipping check: %v", err)
		return
	}
	metrics.IncCapture("success")

	m.mu.Lock()
	m.samples++
	if snapshot.Activity != "" {
		m.visited[snapshot.Activity] = struct{}{}
	}
	m.snapshots = append(m.snapshots, snapshot)
	if len(m.snapshots) > m.config.SnapshotHistory {
		m.snapshots = m.snapshots[1:]
	}
	held := len(m.snapshots)
	ready := held >= 2
	var previous *interfaces.Snapshot
	if ready {
		previous = m.snapshots[held-2]
	}
	m.mu.Unlock()
	metrics.SetSnapshotHistory(held)

	if !ready {
		return
	}
	m.compare(previous, snapshot)
}

// compare classifies one consecutive snapshot pair. Order matters: a
// foreground change is decisive on its own, a rotation exempts the pair from
// the pixel diff, and only then does significance apply.
func (m *Monitor) compare(previous, current *interfaces.Snapshot) {
	m.mu.Lock()
	m.checks++
	checksBefore := m.checks - 1
	m.mu.Unlock()
	metrics.IncCheck()

	if current.Activity != "" && m.config.TargetPackage != "" &&
		!inPackage(current.Activity, m.config.TargetPackage) {
		m.logger.WithField("activity", current.Activity).Warn("target app left the foreground")
		m.recordIncident(ReasonActivityChange, current, 0, m.pairDistance(previous, current), checksBefore)
		return
	}

	prevImg, err := imaging.LoadImage(previous.Path)
	if err != nil {
		m.logger.Warnf("previous snapshot unreadable, skipping comparison: %v", err)
		return
	}
	currImg, err := imaging.LoadImage(current.Path)
	if err != nil {
		m.logger.Warnf("current snapshot unreadable, skipping comparison: %v", err)
		return
	}

	if m.differ.RotationOnly(prevImg, currImg) {
		m.logger.Debug("screen change explained by rotation, ignoring")
		return
	}

	if significant, ratio := m.differ.Significant(prevImg, currImg); significant {
		m.logger.WithField("ratio", fmt.Sprintf("%.3f", ratio)).Warn("significant unexplained screen change")
		m.recordIncident(ReasonVisualChange, current, ratio, m.pairDistance(previous, current), checksBefore)
	}
}

// recordIncident persists the current snapshot history as an incident.
// Persistence failures are logged and absorbed; monitoring continues.
func (m *Monitor) recordIncident(reason IncidentReason, current *interfaces.Snapshot,
	ratio float64, distance int, checksBefore int64) {
	m.mu.RLock()
	history := make([]*interfaces.Snapshot, len(m.snapshots))
	copy(history, m.snapshots)
	recent := make([]IncidentEvent, 0, len(m.history))
	for _, record := range m.history {
		recent = append(recent, IncidentEvent{File: record.File, Kind: record.Kind})
	}
	m.mu.RUnlock()

	incident := &Incident{
		ID:           current.ID,
		TriggeredAt:  current.Taken,
		Reason:       reason,
		Activity:     current.Activity,
		ChangeRatio:  ratio,
		HashDistance: distance,
		RecentEvents: recent,
		ChecksBefore: checksBefore,
	}

	dir, err := m.store.Persist(incident, history)
	if err != nil {
		m.logger.Errorf("incident persistence failed, continuing: %v", err)
		return
	}
	metrics.IncIncident(string(reason))
	m.logger.WithFields(logrus.Fields{
		"reason":   reason,
		"incident": filepath.Base(dir),
	}).Warn("data-loss incident recorded")
}

// pairDistance fingerprints both snapshots for incident context. Failures
// yield zero distance; the incident is already decided by then.
func (m *Monitor) pairDistance(previous, current *interfaces.Snapshot) int {
	prevFp, err := imaging.FingerprintFile(previous.Path)
	if err != nil {
		return 0
	}
	currFp, err := imaging.FingerprintFile(current.Path)
	if err != nil {
		return 0
	}
	return imaging.Distance(prevFp, currFp)
}

// pushEvent appends to the bounded event history
func (m *Monitor) pushEvent(record *events.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, record)
	if len(m.history) > m.config.EventHistory {
		m.history = m.history[1:]
	}
}

// Stats returns a copy of the monitor counters
func (m *Monitor) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		ChecksPerformed: m.checks,
		SamplesTaken:    m.samples,
		CaptureFailures: m.captureFailures,
		Incidents:       m.store.Count(),
	}
}

// VisitedActivities returns every distinct foreground activity observed
// during sampling, sorted for stable report output
func (m *Monitor) VisitedActivities() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	activities := make([]string, 0, len(m.visited))
	for activity := range m.visited {
		activities = append(activities, activity)
	}
	sort.Strings(activities)
	return activities
}

// Report aggregates counters with incidents re-read from disk
func (m *Monitor) Report() *Report {
	report := &Report{Incidents: m.store.LoadAll()}
	report.Metadata.OutputDir = m.config.OutputDir
	report.Metadata.GeneratedAt = time.Now()
	report.Metadata.Interval = m.config.Interval
	report.Metadata.TargetPackage = m.config.TargetPackage

	report.Statistics.Stats = m.Stats()
	report.Statistics.Incidents = len(report.Incidents)
	if report.Statistics.ChecksPerformed > 0 {
		report.Statistics.IncidentRate = float64(report.Statistics.Incidents) /
			float64(report.Statistics.ChecksPerformed)
	}
	return report
}

// writeReport serializes a report as indented JSON
func writeReport(report *Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal data-loss report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write data-loss report: %w", err)
	}
	return nil
}

// inPackage reports whether a foreground component belongs to the package
func inPackage(activity, pkg string) bool {
	component := activity
	if i := strings.IndexByte(component, '/'); i >= 0 {
		component = component[:i]
	}
	return component == pkg
}
