/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: powercycle.go
Description: Power cycle perturbation. Simulates screen-off, screen-on, and
swipe-to-unlock on driver UI events, with a rate limit and a hard per-session
cap since each cycle costs several seconds of exploration time.
*/

package perturb

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kleascm/akaylee-droid/pkg/events"
	"github.com/kleascm/akaylee-droid/pkg/interfaces"
	"github.com/kleascm/akaylee-droid/pkg/metrics"
)

// screenOffWait is how long the screen stays off before waking
const screenOffWait = 3 * time.Second

// Swipe-up unlock gesture coordinates, scaled for a 1080 wide screen
const (
	unlockStartX = 500
	unlockStartY = 1500
	unlockEndX   = 500
	unlockEndY   = 500
	unlockMillis = 300 * time.Millisecond
)

// PowerCycleTask turns the screen off and back on in response to driver UI
// events. An attempt consumes rate budget even when a step fails, so a flaky
// device cannot put the task into a tight retry loop.
type PowerCycleTask struct {
	lifecycle
	transport   interfaces.DeviceTransport
	minInterval time.Duration
	maxCycles   int
	offWait     time.Duration
	triggers    map[events.Kind]struct{}

	pmu      sync.Mutex
	last     time.Time
	attempts int
	cycles   int
}

// NewPowerCycleTask creates a power cycle task. maxCycles caps attempts for
// the whole session.
func NewPowerCycleTask(transport interfaces.DeviceTransport, minInterval time.Duration,
	maxCycles int, logger *logrus.Logger) *PowerCycleTask {
	if minInterval <= 0 {
		minInterval = 30 * time.Second
	}
	if maxCycles <= 0 {
		maxCycles = 3
	}
	return &PowerCycleTask{
		lifecycle:   newLifecycle("power-cycle", logger),
		transport:   transport,
		minInterval: minInterval,
		maxCycles:   maxCycles,
		offWait:     screenOffWait,
		triggers: kindSet(
			events.KindManual, events.KindExit, events.KindLongTouch,
			events.KindSetText, events.KindSpawn, events.KindKey,
		),
	}
}

func (t *PowerCycleTask) Description() string {
	return "Simulates power button presses with unlock to exercise lock-screen state restoration."
}

// Handles reports whether the event kind triggers a power cycle
func (t *PowerCycleTask) Handles(kind events.Kind) bool {
	_, ok := t.triggers[kind]
	return ok
}

// Trigger performs one off-wait-on-unlock sequence if the task is running,
// the rate limit allows, and the session cap is not exhausted
func (t *PowerCycleTask) Trigger(record *events.Record) {
	ctx, ok := t.runnable()
	if !ok {
		return
	}

	t.pmu.Lock()
	if t.attempts >= t.maxCycles {
		t.pmu.Unlock()
		return
	}
	if time.Since(t.last) < t.minInterval {
		t.pmu.Unlock()
		return
	}
	t.last = time.Now()
	t.attempts++
	t.pmu.Unlock()

	t.logger.WithField("trigger", record.Kind).Info("Power cycling screen")

	if err := t.transport.InputKey(ctx, "KEYCODE_POWER"); err != nil {
		t.logger.Warnf("screen off failed: %v", err)
		return
	}
	if err := sleepCtx(ctx, t.offWait); err != nil {
		t.logger.Debugf("power cycle interrupted: %v", err)
		return
	}
	if err := t.transport.InputKey(ctx, "KEYCODE_POWER"); err != nil {
		t.logger.Warnf("screen on failed: %v", err)
		return
	}
	if err := t.transport.InputSwipe(ctx, unlockStartX, unlockStartY, unlockEndX, unlockEndY, unlockMillis); err != nil {
		t.logger.Warnf("unlock swipe failed: %v", err)
		return
	}

	t.pmu.Lock()
	t.cycles++
	t.pmu.Unlock()
	metrics.IncPowerCycle()
	t.logger.Info("Power cycle completed")
}

// Cycles returns how many full cycles completed
func (t *PowerCycleTask) Cycles() int {
	t.pmu.Lock()
	defer t.pmu.Unlock()
	return t.cycles
}

// Attempts returns how many cycles were started, completed or not
func (t *PowerCycleTask) Attempts() int {
	t.pmu.Lock()
	defer t.pmu.Unlock()
	return t.attempts
}
