/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: orchestrator.go
Description: Session orchestrator. Runs one exploration session end to end:
output directory layout, driver subprocess, data-loss monitor, perturbation
tasks fed from the driver's event stream, then offline crash and home-probe
analyses and the final session report. Shutdown is best-effort on every path,
including interrupts and driver death.
*/

package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kleascm/akaylee-droid/pkg/analysis"
	"github.com/kleascm/akaylee-droid/pkg/device"
	"github.com/kleascm/akaylee-droid/pkg/events"
	"github.com/kleascm/akaylee-droid/pkg/imaging"
	"github.com/kleascm/akaylee-droid/pkg/interfaces"
	"github.com/kleascm/akaylee-droid/pkg/monitor"
	"github.com/kleascm/akaylee-droid/pkg/perturb"
)

// Output directory layout. The driver owns states/ and events/; every other
// component writes into its own namespace.
const (
	DriverStatesDir  = "states"
	DriverEventsDir  = "events"
	MonitorStatesDir = "monitor_states"
	LogsDir          = "logs"
)

// appInfoWait bounds how long the session waits for the driver to write its
// app identity file before falling back to configured defaults
const appInfoWait = 10 * time.Second

// statsEvery is how many poll ticks pass between resource samples
const statsEvery = 15

// Session orchestrates one exploration run. The main loop is single threaded
// and polls at the configured interval; the monitor and driver run on their
// own goroutines and processes.
type Session struct {
	id     string
	config *interfaces.SessionConfig
	logger *logrus.Logger

	transport   interfaces.DeviceTransport
	driver      *Driver
	monitor     *monitor.Monitor
	coordinator *perturb.Coordinator
	reader      *events.Reader
	app         AppInfo

	started     time.Time
	driverEarly bool
	report      *Report
}

// NewSession wires a session from configuration. The device is first
// contacted on Run.
func NewSession(config *interfaces.SessionConfig, logger *logrus.Logger) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}

	return &Session{
		id:        uuid.New().String(),
		config:    config,
		logger:    logger,
		transport: device.NewADB(config.DeviceSerial, config.CommandTimeout, config.SlowCmdTimeout, logger),
	}, nil
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// SetTransport replaces the device transport, used by tests to run sessions
// against a fake device
func (s *Session) SetTransport(transport interfaces.DeviceTransport) {
	s.transport = transport
}

// Report returns the final session report, available after Run
func (s *Session) Report() *Report { return s.report }

// Run executes the session until the driver exits, the timeout elapses, or
// the context is canceled. Cleanup, analyses, and the session report run on
// every path; only failure to create the output directory is fatal enough to
// skip them.
func (s *Session) Run(ctx context.Context) error {
	if err := s.prepareDirs(); err != nil {
		return err
	}
	s.started = time.Now()
	s.logger.WithFields(logrus.Fields{
		"session": s.id,
		"output":  s.config.OutputDir,
		"timeout": s.config.SessionTimeout,
	}).Info("Session starting")

	runErr := s.explore(ctx)

	if err := s.finalize(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// explore starts every component and drives the main poll loop
func (s *Session) explore(ctx context.Context) error {
	s.driver = NewDriver(s.config, s.logger)
	s.driver.KillStray()
	if err := s.driver.Start(); err != nil {
		s.logger.Errorf("driver start failed, finishing with analyses only: %v", err)
		return err
	}

	s.app = s.awaitAppInfo(ctx)

	if err := s.startMonitor(ctx); err != nil {
		s.logger.Errorf("monitor start failed, continuing without it: %v", err)
	}
	if err := s.startPerturbations(ctx); err != nil {
		s.logger.Errorf("perturbation start failed, continuing without them: %v", err)
	}
	s.reader = events.NewReader(filepath.Join(s.config.OutputDir, DriverEventsDir), s.logger)

	deadline := s.started.Add(s.config.SessionTimeout)
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Session interrupted, shutting down")
			return nil
		case <-ticker.C:
			if time.Now().After(deadline) {
				s.logger.Info("Session timeout reached, shutting down")
				return nil
			}
			if !s.driver.Alive() {
				s.logger.Warn("Exploration driver exited, ending session")
				s.driverEarly = true
				return nil
			}

			if s.coordinator != nil {
				for _, record := range s.reader.Poll() {
					s.coordinator.Dispatch(record)
				}
			}

			tick++
			if tick%statsEvery == 0 {
				s.driver.SampleResources()
				s.logStats()
			}
		}
	}
}

// prepareDirs lays out the session output tree. This is the one fatal
// failure: without an output directory nothing can be recorded at all.
func (s *Session) prepareDirs() error {
	dirs := []string{
		s.config.OutputDir,
		filepath.Join(s.config.OutputDir, DriverStatesDir),
		filepath.Join(s.config.OutputDir, DriverEventsDir),
		filepath.Join(s.config.OutputDir, MonitorStatesDir),
		filepath.Join(s.config.OutputDir, monitor.IncidentsDir),
		filepath.Join(s.config.OutputDir, analysis.HomeScreenshotsDir),
		filepath.Join(s.config.OutputDir, LogsDir),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create session directory %s: %w", dir, err)
		}
	}
	return nil
}

// awaitAppInfo waits for the driver to write app.json, then loads it. The
// driver needs a few seconds to install the APK and record the identity;
// after the wait the configured fallback applies.
func (s *Session) awaitAppInfo(ctx context.Context) AppInfo {
	fallback := AppInfo{
		Package:      s.config.AppPackage,
		MainActivity: s.config.MainActivity,
	}

	path := filepath.Join(s.config.OutputDir, AppInfoName)
	waitCtx, cancel := context.WithTimeout(ctx, appInfoWait)
	defer cancel()
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		select {
		case <-waitCtx.Done():
			return LoadAppInfo(s.config.OutputDir, fallback, s.logger)
		case <-time.After(500 * time.Millisecond):
		}
	}
	return LoadAppInfo(s.config.OutputDir, fallback, s.logger)
}

// startMonitor builds and starts the data-loss monitor
func (s *Session) startMonitor(ctx context.Context) error {
	sampler := device.NewSampler(s.transport, device.SamplerConfig{
		StateDir:       filepath.Join(s.config.OutputDir, MonitorStatesDir),
		DriverStateDir: filepath.Join(s.config.OutputDir, DriverStatesDir),
		Retries:        s.config.CaptureRetries,
		Backoff:        s.config.CaptureBackoff,
	}, s.logger)

	differ := imaging.NewDiffer(s.config.PixelThreshold, s.config.AreaThreshold, s.config.RotationThreshold)
	reader := events.NewReader(filepath.Join(s.config.OutputDir, DriverEventsDir), s.logger)

	m, err := monitor.NewMonitor(&monitor.Config{
		Interval:        s.config.MonitorInterval,
		SnapshotHistory: s.config.SnapshotHistory,
		EventHistory:    s.config.EventHistory,
		TargetPackage:   s.app.Package,
		OutputDir:       s.config.OutputDir,
	}, sampler, reader, differ, s.logger)
	if err != nil {
		return err
	}
	if err := m.Start(ctx); err != nil {
		return err
	}
	s.monitor = m
	return nil
}

// startPerturbations builds and starts the perturbation tasks under one
// coordinator
func (s *Session) startPerturbations(ctx context.Context) error {
	rotation := perturb.NewRotationTask(s.transport, s.config.RotationInterval, s.logger)
	power := perturb.NewPowerCycleTask(s.transport, s.config.PowerCycleInterval, s.config.MaxPowerCycles, s.logger)
	probe := perturb.NewHomeProbe(s.transport, perturb.HomeProbeConfig{
		ScreenshotDir: filepath.Join(s.config.OutputDir, analysis.HomeScreenshotsDir),
		Component:     s.app.Component(),
		MinInterval:   s.config.HomeProbeInterval,
		MaxProbes:     s.config.MaxHomeProbes,
	}, s.logger)

	coordinator := perturb.NewCoordinator(rotation, power, probe, s.logger)
	if err := coordinator.Start(ctx); err != nil {
		return err
	}
	s.coordinator = coordinator
	return nil
}

// logStats emits a periodic progress line
func (s *Session) logStats() {
	fields := logrus.Fields{
		"elapsed": time.Since(s.started).Round(time.Second),
	}
	if s.monitor != nil {
		stats := s.monitor.Stats()
		fields["checks"] = stats.ChecksPerformed
		fields["incidents"] = stats.Incidents
	}
	if s.coordinator != nil {
		stats := s.coordinator.Stats()
		fields["rotations"] = stats.Rotations
		fields["probes"] = stats.ProbesAttempted
	}
	s.logger.WithFields(fields).Info("Session progress")
}

// finalize stops every component, runs the offline analyses, and writes the
// session report. Every step is best-effort; the report reflects whatever
// made it to disk.
func (s *Session) finalize() error {
	if s.coordinator != nil {
		if err := s.coordinator.Stop(); err != nil {
			s.logger.Warnf("perturbation stop: %v", err)
		}
	}
	if s.monitor != nil {
		if err := s.monitor.Stop(); err != nil {
			s.logger.Warnf("monitor stop: %v", err)
		}
	}
	if s.driver != nil {
		if err := s.driver.Stop(); err != nil {
			s.logger.Warnf("driver stop: %v", err)
		}
	}

	s.report = s.buildReport()

	path := filepath.Join(s.config.OutputDir, ReportName)
	if err := s.report.Write(path); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"report":    path,
		"incidents": s.report.Monitoring.Incidents,
		"crashes":   s.report.CrashesDetected,
	}).Info("Session finished")
	return nil
}

// buildReport aggregates live counters with the offline analyses
func (s *Session) buildReport() *Report {
	report := &Report{
		SessionID:       s.id,
		GeneratedAt:     time.Now(),
		StartedAt:       s.started,
		DurationSecs:    time.Since(s.started).Seconds(),
		App:             s.app,
		DeviceSerial:    s.config.DeviceSerial,
		OutputDir:       s.config.OutputDir,
		MonitorInterval: s.config.MonitorInterval,
		DriverExited:    s.driverEarly,
	}
	if s.monitor != nil {
		report.Monitoring = s.monitor.Stats()
		report.VisitedActivities = s.monitor.VisitedActivities()
	}
	if s.coordinator != nil {
		report.Perturbations = s.coordinator.Stats()
	}

	s.analyzeCrashes(report)
	s.analyzeHomeLoss(report)
	return report
}

// analyzeCrashes runs home-recurrence detection over the driver's states and
// events and folds the result into the session report
func (s *Session) analyzeCrashes(report *Report) {
	detector := analysis.NewCrashDetector(s.config.CrashThreshold, s.logger)
	crashReport, err := detector.Analyze(
		filepath.Join(s.config.OutputDir, DriverStatesDir),
		filepath.Join(s.config.OutputDir, DriverEventsDir),
	)
	if err != nil {
		s.logger.Warnf("crash analysis failed: %v", err)
		return
	}

	report.CrashesDetected = crashReport.Statistics.CrashesDetected
	report.CrashRate = crashReport.Statistics.CrashRate
	if err := crashReport.Write(filepath.Join(s.config.OutputDir, analysis.CrashReportName)); err != nil {
		s.logger.Warnf("crash report write failed: %v", err)
	}
}

// analyzeHomeLoss runs probe-pair comparison over the home-probe screenshots
// and folds the result into the session report
func (s *Session) analyzeHomeLoss(report *Report) {
	detector := analysis.NewHomeLossDetector(s.config.HomeLossThreshold, s.logger)
	lossReport, err := detector.Analyze(s.config.OutputDir)
	if err != nil {
		s.logger.Warnf("home-probe analysis failed: %v", err)
		return
	}

	report.HomeLossEvents = lossReport.Statistics.PotentialDataLoss
	if err := lossReport.Write(filepath.Join(s.config.OutputDir, analysis.HomeLossReportName)); err != nil {
		s.logger.Warnf("home-probe report write failed: %v", err)
	}
}
