/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: report.go
Description: Whole-session report. Ties together monitoring counters,
perturbation counters, and the offline crash and home-probe analyses into
one session_report.json plus a printable summary.
*/

package session

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kleascm/akaylee-droid/pkg/monitor"
	"github.com/kleascm/akaylee-droid/pkg/perturb"
)

// ReportName is the session summary file within the output directory
const ReportName = "session_report.json"

// Report is the whole-session summary
type Report struct {
	SessionID    string    `json:"session_id"`
	GeneratedAt  time.Time `json:"generated_at"`
	StartedAt    time.Time `json:"started_at"`
	DurationSecs float64   `json:"duration_seconds"`

	App          AppInfo `json:"app"`
	DeviceSerial string  `json:"device_serial,omitempty"`
	OutputDir    string  `json:"output_dir"`

	MonitorInterval time.Duration `json:"monitor_interval_ns"`
	Monitoring      monitor.Stats `json:"monitoring"`
	Perturbations   perturb.Stats `json:"perturbations"`

	CrashesDetected int     `json:"crashes_detected"`
	CrashRate       float64 `json:"crash_rate"`
	HomeLossEvents  int     `json:"home_loss_events"`

	VisitedActivities []string `json:"visited_activities,omitempty"`

	DriverExited bool `json:"driver_exited_early,omitempty"`
}

// Write serializes the report as indented JSON
func (r *Report) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write session report: %w", err)
	}
	return nil
}

// Summary returns a printable digest of the session outcome
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s finished in %.0fs\n", r.SessionID, r.DurationSecs)
	fmt.Fprintf(&b, "  App:                  %s\n", r.App.Component())
	fmt.Fprintf(&b, "  Output:               %s\n", r.OutputDir)
	fmt.Fprintf(&b, "  Checks performed:     %d\n", r.Monitoring.ChecksPerformed)
	fmt.Fprintf(&b, "  Data-loss incidents:  %d\n", r.Monitoring.Incidents)
	fmt.Fprintf(&b, "  Crashes detected:     %d (rate %.2f%%)\n", r.CrashesDetected, r.CrashRate*100)
	fmt.Fprintf(&b, "  Home-probe losses:    %d of %d probes\n", r.HomeLossEvents, r.Perturbations.ProbesCompleted)
	fmt.Fprintf(&b, "  Rotations:            %d\n", r.Perturbations.Rotations)
	fmt.Fprintf(&b, "  Power cycles:         %d\n", r.Perturbations.PowerCycles)
	fmt.Fprintf(&b, "  Activities visited:   %d", len(r.VisitedActivities))
	return b.String()
}
