/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: homeprobe.go
Description: Home button probe. Captures the screen, backgrounds the app with
the home key, relaunches its main activity, and captures again, leaving a
numbered before/after screenshot pair for later data-loss analysis. A failed
probe still consumes its rate budget.
*/

package perturb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kleascm/akaylee-droid/pkg/events"
	"github.com/kleascm/akaylee-droid/pkg/interfaces"
	"github.com/kleascm/akaylee-droid/pkg/metrics"
)

// Probe sequence pacing
const (
	homeWait   = time.Second     // After pressing home, before relaunch
	settleWait = 3 * time.Second // After relaunch, before the after-capture
)

// HomeProbeConfig configures the home button probe
type HomeProbeConfig struct {
	ScreenshotDir string        // Where before/after pairs are written
	Component     string        // Explicit component relaunched after home
	MinInterval   time.Duration // Minimum gap between probes
	MaxProbes     int           // Hard per-session probe cap
}

// HomeProbe exercises background-and-restore in response to driver UI events.
// The probe disturbs the screen for several seconds, so the coordinator
// pauses sibling perturbations for the duration of each probe.
type HomeProbe struct {
	lifecycle
	transport   interfaces.DeviceTransport
	config      HomeProbeConfig
	triggers    map[events.Kind]struct{}
	homePause   time.Duration
	settlePause time.Duration

	hmu       sync.Mutex
	last      time.Time
	attempts  int
	completed int
}

// NewHomeProbe creates a home probe task
func NewHomeProbe(transport interfaces.DeviceTransport, config HomeProbeConfig, logger *logrus.Logger) *HomeProbe {
	if config.MinInterval <= 0 {
		config.MinInterval = 30 * time.Second
	}
	if config.MaxProbes <= 0 {
		config.MaxProbes = 5
	}
	return &HomeProbe{
		lifecycle:   newLifecycle("home-probe", logger),
		transport:   transport,
		config:      config,
		homePause:   homeWait,
		settlePause: settleWait,
		triggers: kindSet(
			events.KindTouch, events.KindLongTouch, events.KindSetText,
			events.KindSpawn, events.KindScroll, events.KindSwipe,
		),
	}
}

func (t *HomeProbe) Description() string {
	return "Backgrounds and relaunches the app, recording before/after screenshots for data-loss analysis."
}

// Handles reports whether the event kind triggers a probe
func (t *HomeProbe) Handles(kind events.Kind) bool {
	_, ok := t.triggers[kind]
	return ok
}

// Due reports whether a probe would execute right now. The coordinator
// consults this before pausing sibling tasks, so a rate-limited trigger
// leaves them untouched.
func (t *HomeProbe) Due() bool {
	if t.State() != interfaces.TaskRunning {
		return false
	}
	t.hmu.Lock()
	defer t.hmu.Unlock()
	return t.attempts < t.config.MaxProbes && time.Since(t.last) >= t.config.MinInterval
}

// Trigger runs one probe sequence. The attempt consumes rate budget up
// front: a probe that fails partway still counts, which keeps a broken
// sequence from repeating back to back.
func (t *HomeProbe) Trigger(record *events.Record) {
	ctx, ok := t.runnable()
	if !ok {
		return
	}

	t.hmu.Lock()
	if t.attempts >= t.config.MaxProbes || time.Since(t.last) < t.config.MinInterval {
		t.hmu.Unlock()
		return
	}
	t.last = time.Now()
	t.attempts++
	index := t.attempts
	t.hmu.Unlock()

	t.logger.WithFields(logrus.Fields{
		"probe":   index,
		"trigger": record.Kind,
	}).Info("Home probe starting")

	if err := t.probe(ctx, index); err != nil {
		metrics.IncProbe("failure")
		t.logger.WithField("probe", index).Warnf("home probe failed: %v", err)
		return
	}

	t.hmu.Lock()
	t.completed++
	t.hmu.Unlock()
	metrics.IncProbe("success")
	t.logger.WithField("probe", index).Info("Home probe completed")
}

// probe runs the capture-home-relaunch-capture sequence
func (t *HomeProbe) probe(ctx context.Context, index int) error {
	if err := os.MkdirAll(t.config.ScreenshotDir, 0755); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}

	before := filepath.Join(t.config.ScreenshotDir, fmt.Sprintf("before_%d.png", index))
	if err := t.captureTo(ctx, before); err != nil {
		return fmt.Errorf("before-capture: %w", err)
	}

	if err := t.transport.InputKey(ctx, "KEYCODE_HOME"); err != nil {
		return fmt.Errorf("home key: %w", err)
	}
	if err := sleepCtx(ctx, t.homePause); err != nil {
		return err
	}

	if err := t.transport.StartActivity(ctx, t.config.Component); err != nil {
		return fmt.Errorf("relaunch %s: %w", t.config.Component, err)
	}
	if err := sleepCtx(ctx, t.settlePause); err != nil {
		return err
	}

	after := filepath.Join(t.config.ScreenshotDir, fmt.Sprintf("after_%d.png", index))
	if err := t.captureTo(ctx, after); err != nil {
		return fmt.Errorf("after-capture: %w", err)
	}
	return nil
}

// captureTo grabs a screenshot to an exact path, preferring the streamed
// capture and falling back to device storage
func (t *HomeProbe) captureTo(ctx context.Context, path string) error {
	data, err := t.transport.Screencap(ctx)
	if err == nil {
		return os.WriteFile(path, data, 0644)
	}
	t.logger.Debugf("streamed capture failed, pulling via device storage: %v", err)
	return t.transport.ScreencapToFile(ctx, path)
}

// Probes returns completed and attempted probe counts
func (t *HomeProbe) Probes() (completed, attempted int) {
	t.hmu.Lock()
	defer t.hmu.Unlock()
	return t.completed, t.attempts
}
