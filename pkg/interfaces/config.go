/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: config.go
Description: Session configuration for the Akaylee Droid monitor. Carries every
tunable threshold and interval used by the capture, analysis, monitoring, and
perturbation components.
*/

package interfaces

import (
	"fmt"
	"time"
)

// SessionConfig represents the full configuration for an exploration session.
// All thresholds are hand-calibrated defaults, exposed here so operators can
// retune them per app without rebuilding.
type SessionConfig struct {
	// Target & driver
	DeviceSerial string   // adb serial, empty for the default device
	APKPath      string   // APK handed to the exploration driver
	AppPackage   string   // Fallback package when app.json is absent
	MainActivity string   // Fallback activity when app.json is absent
	DriverPath   string   // Exploration driver binary (droidbot-compatible)
	DriverArgs   []string // Extra driver arguments
	KeepEnv      bool     // Pass -keep_env to the driver
	OutputDir    string   // Session output root

	// Timing
	SessionTimeout  time.Duration // Cooperative whole-session budget
	PollInterval    time.Duration // Orchestrator event poll cadence
	MonitorInterval time.Duration // Data-loss check cadence
	CommandTimeout  time.Duration // Per adb command budget
	SlowCmdTimeout  time.Duration // Budget for launch/orientation commands

	// Capture
	CaptureRetries int           // Full strategy-list retry passes
	CaptureBackoff time.Duration // Sleep between retry passes

	// History bounds
	SnapshotHistory int // Most-recent snapshots kept by the monitor
	EventHistory    int // Most-recent event records kept by the monitor

	// Visual thresholds
	PixelThreshold    uint8   // Per-pixel intensity delta considered changed
	AreaThreshold     float64 // Changed-area fraction considered significant
	RotationThreshold float64 // Changed-area fraction still considered identical under rotation
	CrashThreshold    int     // Max hash distance to the home screen for a crash
	HomeLossThreshold int     // Min hash distance between probe pairs for data loss

	// Perturbation rate limits
	RotationInterval   time.Duration // Min gap between rotations
	PowerCycleInterval time.Duration // Min gap between power cycles
	MaxPowerCycles     int           // Hard per-session power cycle cap
	HomeProbeInterval  time.Duration // Min gap between home probes
	MaxHomeProbes      int           // Hard per-session home probe cap

	// Observability
	LogLevel    string // debug, info, warn, error
	LogFile     string // Optional log file, empty for stderr only
	JSONLogs    bool   // Structured JSON log output
	MetricsAddr string // Optional prometheus listen address, empty disables
}

// DefaultSessionConfig returns a configuration with the calibrated defaults.
// Callers override individual fields from flags or environment before use.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		AppPackage:         "com.example.app",
		MainActivity:       "MainActivity",
		DriverPath:         "droidbot",
		OutputDir:          "droid_output",
		SessionTimeout:     time.Hour,
		PollInterval:       time.Second,
		MonitorInterval:    30 * time.Second,
		CommandTimeout:     5 * time.Second,
		SlowCmdTimeout:     10 * time.Second,
		CaptureRetries:     3,
		CaptureBackoff:     2 * time.Second,
		SnapshotHistory:    5,
		EventHistory:       20,
		PixelThreshold:     25,
		AreaThreshold:      0.15,
		RotationThreshold:  0.05,
		CrashThreshold:     5,
		HomeLossThreshold:  10,
		RotationInterval:   5 * time.Second,
		PowerCycleInterval: 30 * time.Second,
		MaxPowerCycles:     3,
		HomeProbeInterval:  30 * time.Second,
		MaxHomeProbes:      5,
		LogLevel:           "info",
	}
}

// Validate checks the configuration for values the session cannot run with
func (c *SessionConfig) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output directory must not be empty")
	}
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %v", c.MonitorInterval)
	}
	if c.SnapshotHistory < 2 {
		return fmt.Errorf("snapshot history must hold at least 2 entries, got %d", c.SnapshotHistory)
	}
	if c.AreaThreshold <= 0 || c.AreaThreshold >= 1 {
		return fmt.Errorf("area threshold must be in (0, 1), got %v", c.AreaThreshold)
	}
	if c.RotationThreshold <= 0 || c.RotationThreshold >= c.AreaThreshold {
		return fmt.Errorf("rotation threshold must be in (0, area threshold), got %v", c.RotationThreshold)
	}
	if c.CrashThreshold < 0 || c.CrashThreshold > 64 {
		return fmt.Errorf("crash threshold must be within a 64-bit hash, got %d", c.CrashThreshold)
	}
	return nil
}

// ComponentName returns the explicit component string for am start -n
func (c *SessionConfig) ComponentName() string {
	return c.AppPackage + "/" + c.AppPackage + "." + c.MainActivity
}
