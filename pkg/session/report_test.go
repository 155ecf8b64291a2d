/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: report_test.go
Description: Tests for session report serialization and the console summary.
*/

package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleascm/akaylee-droid/pkg/monitor"
	"github.com/kleascm/akaylee-droid/pkg/perturb"
)

func sampleReport() *Report {
	return &Report{
		SessionID:    "9f2c1d3e",
		GeneratedAt:  time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC),
		StartedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		DurationSecs: 1800,
		App:          AppInfo{Package: "com.demo.app", MainActivity: "MainActivity"},
		OutputDir:    "/tmp/session",
		Monitoring: monitor.Stats{
			ChecksPerformed: 60,
			SamplesTaken:    61,
			Incidents:       2,
		},
		Perturbations: perturb.Stats{
			Rotations:       12,
			PowerCycles:     3,
			ProbesCompleted: 4,
			ProbesAttempted: 5,
		},
		CrashesDetected:   2,
		CrashRate:         0.5,
		HomeLossEvents:    1,
		VisitedActivities: []string{"com.demo.app/.Main", "com.demo.app/.Settings"},
		DriverExited:      true,
	}
}

func TestReportWriteRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ReportName)
	require.NoError(t, sampleReport().Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "9f2c1d3e", got.SessionID)
	assert.Equal(t, int64(60), got.Monitoring.ChecksPerformed)
	assert.Equal(t, 12, got.Perturbations.Rotations)
	assert.Equal(t, 2, got.CrashesDetected)
	assert.True(t, got.DriverExited)
	assert.Len(t, got.VisitedActivities, 2)

	// Field names are part of the on-disk contract
	assert.Contains(t, string(data), `"session_id"`)
	assert.Contains(t, string(data), `"driver_exited_early"`)
	assert.Contains(t, string(data), `"visited_activities"`)
}

func TestReportWriteToMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", ReportName)
	assert.Error(t, sampleReport().Write(path))
}

func TestReportSummary(t *testing.T) {
	summary := sampleReport().Summary()
	assert.Contains(t, summary, "Session 9f2c1d3e finished in 1800s")
	assert.Contains(t, summary, "com.demo.app/com.demo.app.MainActivity")
	assert.Contains(t, summary, "Data-loss incidents:  2")
	assert.Contains(t, summary, "(rate 50.00%)")
	assert.Contains(t, summary, "1 of 4 probes")
	assert.Contains(t, summary, "Activities visited:   2")
}
