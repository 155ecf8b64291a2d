/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: interfaces.go
Description: Shared interfaces for the Akaylee Droid session monitor. Defines the
core types and contracts used across all packages to break import cycles and keep
device access mockable in tests.
*/

package interfaces

import (
	"context"
	"time"
)

// Snapshot represents a single captured device screen state. The PNG at Path is
// written exactly once and never mutated; consumers that need pixels decode it
// on demand. Activity and ViewTree are attached best-effort and may be empty.
type Snapshot struct {
	ID       string    // Unique snapshot ID
	Taken    time.Time // Capture time
	Path     string    // Owned PNG file on disk
	Activity string    // Foreground component, e.g. "com.app/.MainActivity"
	ViewTree []byte    // Raw uiautomator dump, stored opaque
	Source   string    // Capture strategy that produced the image
}

// Orientation represents a requested device screen orientation.
type Orientation string

const (
	OrientationPortrait         Orientation = "portrait"
	OrientationLandscape        Orientation = "landscape"
	OrientationReverseLandscape Orientation = "reverse-landscape"
)

// TaskState represents the lifecycle state of a perturbation task.
type TaskState int32

const (
	TaskRunning TaskState = iota
	TaskPaused
	TaskStopped
)

// String returns a human-readable task state name
func (s TaskState) String() string {
	switch s {
	case TaskRunning:
		return "running"
	case TaskPaused:
		return "paused"
	case TaskStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// DeviceTransport abstracts the adb command boundary. Implementations execute
// real adb invocations; tests substitute fakes. Every method takes a context
// and honors its deadline, so callers control per-command timeouts.
type DeviceTransport interface {
	// Run executes a raw adb command for the bound device
	Run(ctx context.Context, args ...string) ([]byte, error)
	// Shell executes an adb shell command for the bound device
	Shell(ctx context.Context, args ...string) ([]byte, error)
	// InputKey injects a key event, e.g. "KEYCODE_HOME"
	InputKey(ctx context.Context, keycode string) error
	// InputSwipe injects a swipe gesture over the given duration
	InputSwipe(ctx context.Context, x1, y1, x2, y2 int, d time.Duration) error
	// SetOrientation rotates the device or emulator screen
	SetOrientation(ctx context.Context, o Orientation) error
	// StartActivity launches an explicit component via am start -n
	StartActivity(ctx context.Context, component string) error
	// ForceStop force-stops the given package
	ForceStop(ctx context.Context, pkg string) error
	// ForegroundActivity reports the currently focused component
	ForegroundActivity(ctx context.Context) (string, error)
	// Screencap captures the screen as PNG bytes without touching device storage
	Screencap(ctx context.Context) ([]byte, error)
	// ScreencapToFile captures via device storage and pulls to localPath
	ScreencapToFile(ctx context.Context, localPath string) error
	// DumpViewTree captures the uiautomator view hierarchy
	DumpViewTree(ctx context.Context) ([]byte, error)
	// Serial returns the bound device serial
	Serial() string
}

// SnapshotSampler captures device screen states with retry and fallback
// handling. Implementations must return an error only after every capture
// strategy has been exhausted.
type SnapshotSampler interface {
	Capture(ctx context.Context) (*Snapshot, error)
}
