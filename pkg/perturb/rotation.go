/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: rotation.go
Description: Screen rotation perturbation. Cycles the device through landscape,
reverse landscape, and portrait on driver UI events, rate limited so the
window manager keeps up, and restores portrait when the session ends.
*/

package perturb

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kleascm/akaylee-droid/pkg/events"
	"github.com/kleascm/akaylee-droid/pkg/interfaces"
	"github.com/kleascm/akaylee-droid/pkg/metrics"
)

// rotationCycle is the orientation sequence applied on successive triggers,
// starting from the portrait the session opens in
var rotationCycle = []interfaces.Orientation{
	interfaces.OrientationLandscape,
	interfaces.OrientationReverseLandscape,
	interfaces.OrientationPortrait,
}

// RotationTask rotates the screen in response to driver UI events
type RotationTask struct {
	lifecycle
	transport   interfaces.DeviceTransport
	minInterval time.Duration
	triggers    map[events.Kind]struct{}

	rmu       sync.Mutex
	last      time.Time
	cycleIdx  int
	rotations int
}

// NewRotationTask creates a rotation task. minInterval is the minimum gap
// between rotations; triggers arriving sooner are skipped.
func NewRotationTask(transport interfaces.DeviceTransport, minInterval time.Duration, logger *logrus.Logger) *RotationTask {
	if minInterval <= 0 {
		minInterval = 5 * time.Second
	}
	return &RotationTask{
		lifecycle:   newLifecycle("rotation", logger),
		transport:   transport,
		minInterval: minInterval,
		triggers: kindSet(
			events.KindKey, events.KindManual, events.KindExit,
			events.KindTouch, events.KindLongTouch, events.KindSetText,
			events.KindSelect, events.KindUnselect, events.KindIntent,
			events.KindSpawn,
		),
	}
}

func (t *RotationTask) Description() string {
	return "Cycles screen orientation on UI events to shake out state loss during configuration changes."
}

// Handles reports whether the event kind triggers a rotation
func (t *RotationTask) Handles(kind events.Kind) bool {
	_, ok := t.triggers[kind]
	return ok
}

// Trigger rotates to the next orientation in the cycle if the task is
// running and the rate limit allows
func (t *RotationTask) Trigger(record *events.Record) {
	ctx, ok := t.runnable()
	if !ok {
		return
	}

	t.rmu.Lock()
	if time.Since(t.last) < t.minInterval {
		t.rmu.Unlock()
		return
	}
	t.last = time.Now()
	next := rotationCycle[t.cycleIdx%len(rotationCycle)]
	t.cycleIdx++
	t.rmu.Unlock()

	if err := t.transport.SetOrientation(ctx, next); err != nil {
		t.logger.WithField("orientation", next).Warnf("rotation failed: %v", err)
		return
	}

	t.rmu.Lock()
	t.rotations++
	t.rmu.Unlock()
	metrics.IncRotation()
	t.logger.WithFields(logrus.Fields{
		"orientation": next,
		"trigger":     record.Kind,
	}).Info("Screen rotated")
}

// Stop ends the task and restores portrait so the next session starts from a
// known orientation. The session context may already be canceled by now, so
// the reset runs under its own deadline.
func (t *RotationTask) Stop() error {
	if err := t.lifecycle.Stop(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.transport.SetOrientation(ctx, interfaces.OrientationPortrait); err != nil {
		t.logger.Warnf("portrait reset failed: %v", err)
	}
	return nil
}

// Rotations returns how many rotations were performed
func (t *RotationTask) Rotations() int {
	t.rmu.Lock()
	defer t.rmu.Unlock()
	return t.rotations
}
