/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: transport.go
Description: ADB-backed device transport. Executes adb commands with per-command
timeouts, robust output parsing for foreground activity detection, and both
streamed and device-storage screenshot capture paths.
*/

package device

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kleascm/akaylee-droid/pkg/interfaces"
)

// pngMagic is the PNG file signature used to validate streamed screenshots
var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// tempScreenshotPath is the on-device staging path for pull-based capture
const tempScreenshotPath = "/sdcard/__akaylee_screenshot.png"

// tempViewTreePath is the on-device staging path for uiautomator dumps
const tempViewTreePath = "/sdcard/__akaylee_window_dump.xml"

// ADB implements interfaces.DeviceTransport over the adb binary. A missing
// adb binary or absent device surfaces as command errors, never as a panic.
type ADB struct {
	serial      string
	cmdTimeout  time.Duration
	slowTimeout time.Duration
	logger      *logrus.Logger
}

// NewADB creates a transport bound to the given device serial. An empty
// serial targets the default device. cmdTimeout bounds ordinary commands,
// slowTimeout bounds activity launches and orientation changes.
func NewADB(serial string, cmdTimeout, slowTimeout time.Duration, logger *logrus.Logger) *ADB {
	if cmdTimeout <= 0 {
		cmdTimeout = 5 * time.Second
	}
	if slowTimeout <= 0 {
		slowTimeout = 10 * time.Second
	}
	return &ADB{
		serial:      serial,
		cmdTimeout:  cmdTimeout,
		slowTimeout: slowTimeout,
		logger:      logger,
	}
}

// Serial returns the bound device serial
func (a *ADB) Serial() string {
	return a.serial
}

// deviceArgs prepends the -s serial selector when one is configured
func (a *ADB) deviceArgs(args ...string) []string {
	if a.serial == "" {
		return args
	}
	return append([]string{"-s", a.serial}, args...)
}

// run executes adb with combined output, bounded by the given timeout
func (a *ADB) run(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "adb", a.deviceArgs(args...)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("adb %s failed: %v, output: %s",
			strings.Join(args, " "), err, bytes.TrimSpace(output))
	}
	return output, nil
}

// output executes adb keeping stdout separate from stderr, for commands whose
// stdout is a payload rather than a status message
func (a *ADB) output(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "adb", a.deviceArgs(args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("adb %s failed: %v, stderr: %s",
			strings.Join(args, " "), err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}

// Run executes a raw adb command for the bound device
func (a *ADB) Run(ctx context.Context, args ...string) ([]byte, error) {
	return a.run(ctx, a.cmdTimeout, args...)
}

// Shell executes an adb shell command for the bound device
func (a *ADB) Shell(ctx context.Context, args ...string) ([]byte, error) {
	return a.run(ctx, a.cmdTimeout, append([]string{"shell"}, args...)...)
}

// InputKey injects a key event such as KEYCODE_HOME or KEYCODE_POWER
func (a *ADB) InputKey(ctx context.Context, keycode string) error {
	_, err := a.Shell(ctx, "input", "keyevent", keycode)
	return err
}

// InputSwipe injects a swipe gesture over the given duration
func (a *ADB) InputSwipe(ctx context.Context, x1, y1, x2, y2 int, d time.Duration) error {
	_, err := a.Shell(ctx, "input", "swipe",
		strconv.Itoa(x1), strconv.Itoa(y1), strconv.Itoa(x2), strconv.Itoa(y2),
		strconv.Itoa(int(d.Milliseconds())))
	return err
}

// orientationValues maps orientations to the user_rotation surface values
var orientationValues = map[interfaces.Orientation]string{
	interfaces.OrientationPortrait:         "0",
	interfaces.OrientationLandscape:        "1",
	interfaces.OrientationReverseLandscape: "3",
}

// SetOrientation rotates the screen. Emulators honor the console rotate
// command; physical devices fall back to pinning user_rotation directly.
func (a *ADB) SetOrientation(ctx context.Context, o interfaces.Orientation) error {
	if _, err := a.run(ctx, a.slowTimeout, "emu", "rotate", string(o)); err == nil {
		return nil
	}
	a.logger.WithField("orientation", o).Debug("emulator console rotate unavailable, pinning user_rotation")

	value, ok := orientationValues[o]
	if !ok {
		return fmt.Errorf("unknown orientation %q", o)
	}
	if _, err := a.Shell(ctx, "settings", "put", "system", "accelerometer_rotation", "0"); err != nil {
		return fmt.Errorf("disable auto-rotate: %w", err)
	}
	if _, err := a.Shell(ctx, "settings", "put", "system", "user_rotation", value); err != nil {
		return fmt.Errorf("set rotation %s: %w", o, err)
	}
	return nil
}

// StartActivity launches an explicit component via am start -n. The activity
// manager reports some failures on stdout with a zero exit code, so the
// output is checked as well.
func (a *ADB) StartActivity(ctx context.Context, component string) error {
	output, err := a.run(ctx, a.slowTimeout, "shell", "am", "start", "-n", component)
	if err != nil {
		return err
	}
	if bytes.Contains(output, []byte("Error")) {
		return fmt.Errorf("am start %s failed: %s", component, bytes.TrimSpace(output))
	}
	return nil
}

// ForceStop force-stops the given package
func (a *ADB) ForceStop(ctx context.Context, pkg string) error {
	_, err := a.Shell(ctx, "am", "force-stop", pkg)
	return err
}

// ForegroundActivity reports the currently focused component. Window focus is
// authoritative; the resumed activity is consulted when focus parsing fails,
// which happens during transitions and on some OEM dumpsys formats.
func (a *ADB) ForegroundActivity(ctx context.Context) (string, error) {
	output, err := a.output(ctx, a.cmdTimeout, "shell", "dumpsys", "window", "windows")
	if err == nil {
		if component := parseFocusedComponent(output); component != "" {
			return component, nil
		}
	}

	output, err = a.output(ctx, a.cmdTimeout, "shell", "dumpsys", "activity", "activities")
	if err != nil {
		return "", fmt.Errorf("foreground activity lookup failed: %w", err)
	}
	if component := parseFocusedComponent(output); component != "" {
		return component, nil
	}
	return "", fmt.Errorf("no focused component in dumpsys output")
}

// Screencap captures the screen as PNG bytes streamed over exec-out, without
// touching device storage
func (a *ADB) Screencap(ctx context.Context) ([]byte, error) {
	data, err := a.output(ctx, a.slowTimeout, "exec-out", "screencap", "-p")
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, pngMagic) {
		return nil, fmt.Errorf("screencap returned %d bytes of non-PNG data", len(data))
	}
	return data, nil
}

// ScreencapToFile captures via device storage and pulls the result to
// localPath. Slower than Screencap but works on devices whose adbd mangles
// exec-out binary streams.
func (a *ADB) ScreencapToFile(ctx context.Context, localPath string) error {
	if _, err := a.Shell(ctx, "screencap", "-p", tempScreenshotPath); err != nil {
		return err
	}
	if _, err := a.run(ctx, a.slowTimeout, "pull", tempScreenshotPath, localPath); err != nil {
		return err
	}
	_, _ = a.Shell(ctx, "rm", tempScreenshotPath)
	return nil
}

// DumpViewTree captures the uiautomator view hierarchy as raw XML
func (a *ADB) DumpViewTree(ctx context.Context) ([]byte, error) {
	if _, err := a.Shell(ctx, "uiautomator", "dump", tempViewTreePath); err != nil {
		return nil, err
	}
	data, err := a.output(ctx, a.cmdTimeout, "exec-out", "cat", tempViewTreePath)
	if err != nil {
		return nil, err
	}
	_, _ = a.Shell(ctx, "rm", tempViewTreePath)
	return data, nil
}

// parseFocusedComponent extracts a package/activity component from dumpsys
// window or activity output. Lines of interest look like
//
//	mCurrentFocus=Window{8f0a78 u0 com.app/com.app.MainActivity}
//	mResumedActivity: ActivityRecord{f74bc85 u0 com.app/.MainActivity t12}
func parseFocusedComponent(output []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "mCurrentFocus") &&
			!strings.Contains(line, "mFocusedApp") &&
			!strings.Contains(line, "mResumedActivity") {
			continue
		}
		for _, field := range strings.Fields(line) {
			field = strings.Trim(field, "{}")
			if strings.Count(field, "/") == 1 && strings.Contains(field, ".") {
				return field
			}
		}
	}
	return ""
}
