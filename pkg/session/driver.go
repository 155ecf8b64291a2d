/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: driver.go
Description: Exploration driver supervision. Runs the external driver in its
own process group with stdout and stderr teed into rotating log files, kills
stray drivers left over from earlier sessions, and stops the process group
with a SIGTERM, grace period, SIGKILL ladder.
*/

package session

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"
	"github.com/sirupsen/logrus"
	lj "gopkg.in/natefinch/lumberjack.v2"

	"github.com/kleascm/akaylee-droid/pkg/interfaces"
	"github.com/kleascm/akaylee-droid/pkg/metrics"
)

// DriverGrace is how long the driver gets to exit after SIGTERM before the
// process group is killed
const DriverGrace = 5 * time.Second

// Rotation limits for the driver's output logs
const (
	driverLogSizeMB = 10
	driverLogCount  = 3
	driverLogDays   = 7
)

// Driver supervises the external exploration driver subprocess. The driver
// spawns its own adb children, so it runs in a dedicated process group and
// all signals go to the group.
type Driver struct {
	config *interfaces.SessionConfig
	logger *logrus.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdout  io.Closer
	stderr  io.Closer
	done    chan struct{}
	exitErr error
	started bool
}

// NewDriver creates a driver supervisor
func NewDriver(config *interfaces.SessionConfig, logger *logrus.Logger) *Driver {
	return &Driver{config: config, logger: logger}
}

// args builds the droidbot-compatible command line
func (d *Driver) args() []string {
	args := []string{"-a", d.config.APKPath, "-o", d.config.OutputDir}
	if d.config.KeepEnv {
		args = append(args, "-keep_env")
	}
	return append(args, d.config.DriverArgs...)
}

// KillStray scans for driver processes left over from a previous session,
// identified by binary name plus this output directory on their command line,
// and kills them so two drivers never fight over one device
func (d *Driver) KillStray() {
	procs, err := gopsproc.Processes()
	if err != nil {
		d.logger.Debugf("stray driver scan unavailable: %v", err)
		return
	}

	binary := filepath.Base(d.config.DriverPath)
	self := int32(os.Getpid())
	for _, proc := range procs {
		if proc.Pid == self {
			continue
		}
		name, err := proc.Name()
		if err != nil || name != binary {
			continue
		}
		cmdline, err := proc.Cmdline()
		if err != nil || !strings.Contains(cmdline, d.config.OutputDir) {
			continue
		}

		d.logger.WithFields(logrus.Fields{
			"pid":     proc.Pid,
			"cmdline": cmdline,
		}).Warn("Killing stray driver process from previous session")
		if err := proc.Kill(); err != nil {
			d.logger.Warnf("stray driver kill failed: %v", err)
		}
	}
}

// Start launches the driver. Its output goes to rotating log files under the
// session's logs directory rather than the session's own stdout.
func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return fmt.Errorf("driver already started")
	}

	logDir := filepath.Join(d.config.OutputDir, LogsDir)
	stdout := &lj.Logger{
		Filename:   filepath.Join(logDir, "driver.stdout.log"),
		MaxSize:    driverLogSizeMB,
		MaxBackups: driverLogCount,
		MaxAge:     driverLogDays,
	}
	stderr := &lj.Logger{
		Filename:   filepath.Join(logDir, "driver.stderr.log"),
		MaxSize:    driverLogSizeMB,
		MaxBackups: driverLogCount,
		MaxAge:     driverLogDays,
	}

	cmd := exec.Command(d.config.DriverPath, d.args()...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start driver %s: %w", d.config.DriverPath, err)
	}

	d.cmd = cmd
	d.stdout = stdout
	d.stderr = stderr
	d.started = true
	d.done = make(chan struct{})
	go d.reap()

	d.logger.WithFields(logrus.Fields{
		"driver": d.config.DriverPath,
		"pid":    cmd.Process.Pid,
		"apk":    d.config.APKPath,
	}).Info("Exploration driver started")
	return nil
}

// reap waits for the driver to exit and records the result
func (d *Driver) reap() {
	err := d.cmd.Wait()

	d.mu.Lock()
	d.exitErr = err
	d.mu.Unlock()
	close(d.done)

	if err != nil {
		d.logger.Debugf("driver exited: %v", err)
	}
}

// Alive reports whether the driver process is still running
func (d *Driver) Alive() bool {
	d.mu.Lock()
	started, done := d.started, d.done
	d.mu.Unlock()

	if !started {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// PID returns the driver process id, or zero before start
func (d *Driver) PID() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd == nil || d.cmd.Process == nil {
		return 0
	}
	return d.cmd.Process.Pid
}

// Stop terminates the driver process group: SIGTERM first, then SIGKILL once
// the grace period runs out. Safe to call after the driver already exited.
// An error means the group would not die even to SIGKILL.
func (d *Driver) Stop() error {
	d.mu.Lock()
	started, done := d.started, d.done
	d.mu.Unlock()

	if !started {
		return nil
	}
	defer d.closeLogs()

	pid := d.PID()
	select {
	case <-done:
		return nil
	default:
	}

	d.logger.WithField("pid", pid).Info("Stopping exploration driver")
	_ = syscall.Kill(-pid, syscall.SIGTERM)

	select {
	case <-done:
		return nil
	case <-time.After(DriverGrace):
	}

	d.logger.Warn("driver ignored SIGTERM, killing process group")
	_ = syscall.Kill(-pid, syscall.SIGKILL)
	select {
	case <-done:
		return nil
	case <-time.After(200 * time.Millisecond):
		return fmt.Errorf("driver pid %d survived SIGKILL", pid)
	}
}

// Wait blocks until the driver exits on its own and returns its exit error
func (d *Driver) Wait() error {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()

	if done == nil {
		return fmt.Errorf("driver not started")
	}
	<-done

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exitErr
}

// closeLogs flushes the rotating writers once the process is gone
func (d *Driver) closeLogs() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stdout != nil {
		_ = d.stdout.Close()
	}
	if d.stderr != nil {
		_ = d.stderr.Close()
	}
}

// SampleResources reads the driver's RSS and CPU usage and exports them as
// gauges. Failures are logged at debug; the driver may be mid-exit.
func (d *Driver) SampleResources() {
	pid := d.PID()
	if pid == 0 || !d.Alive() {
		return
	}

	proc, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		d.logger.Debugf("driver resource handle unavailable: %v", err)
		return
	}
	cpu, err := proc.CPUPercent()
	if err != nil {
		cpu = 0
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		d.logger.Debugf("driver memory info unavailable: %v", err)
		return
	}

	metrics.SetDriverResources(mem.RSS, cpu)
	d.logger.WithFields(logrus.Fields{
		"pid":         pid,
		"rss_mb":      mem.RSS / (1024 * 1024),
		"cpu_percent": fmt.Sprintf("%.1f", cpu),
	}).Debug("Driver resource sample")
}
