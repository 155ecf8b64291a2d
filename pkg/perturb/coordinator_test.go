/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: coordinator_test.go
Description: Tests for event dispatch routing and the home probe bracket:
siblings paused while a probe owns the device, resumed on every exit path,
and left entirely alone when the probe is rate limited.
*/

package perturb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleascm/akaylee-droid/pkg/events"
	"github.com/kleascm/akaylee-droid/pkg/interfaces"
)

// testCoordinator wires all three tasks over one transport with fast pacing
func testCoordinator(t *testing.T, transport *scriptedTransport, probeInterval time.Duration, maxProbes int) (*Coordinator, *RotationTask, *PowerCycleTask, *HomeProbe) {
	t.Helper()
	logger := quietLogger()

	rotation := NewRotationTask(transport, time.Millisecond, logger)
	power := NewPowerCycleTask(transport, time.Millisecond, 10, logger)
	power.offWait = time.Millisecond
	probe := NewHomeProbe(transport, HomeProbeConfig{
		ScreenshotDir: t.TempDir(),
		Component:     "com.example.app/.Main",
		MinInterval:   probeInterval,
		MaxProbes:     maxProbes,
	}, logger)
	probe.homePause = time.Millisecond
	probe.settlePause = time.Millisecond

	coord := NewCoordinator(rotation, power, probe, logger)
	require.NoError(t, coord.Start(context.Background()))
	return coord, rotation, power, probe
}

func TestDispatchRoutesByKind(t *testing.T) {
	transport := &scriptedTransport{}
	coord, rotation, power, probe := testCoordinator(t, transport, time.Hour, 5)

	// select rotates but neither power cycles nor probes
	coord.Dispatch(&events.Record{File: "1.json", Kind: events.KindSelect})
	assert.Equal(t, 1, rotation.Rotations())
	assert.Zero(t, power.Attempts())
	_, attempted := probe.Probes()
	assert.Zero(t, attempted)

	// exit reaches rotation and power
	time.Sleep(2 * time.Millisecond)
	coord.Dispatch(&events.Record{File: "2.json", Kind: events.KindExit})
	assert.Equal(t, 2, rotation.Rotations())
	assert.Equal(t, 1, power.Attempts())
	_, attempted = probe.Probes()
	assert.Zero(t, attempted)

	// scroll reaches only the probe
	coord.Dispatch(&events.Record{File: "3.json", Kind: events.KindScroll})
	assert.Equal(t, 2, rotation.Rotations())
	assert.Equal(t, 1, power.Attempts())
	_, attempted = probe.Probes()
	assert.Equal(t, 1, attempted)
}

func TestProbePausesSiblingsWhileItRuns(t *testing.T) {
	transport := &scriptedTransport{}
	var rotationMid, powerMid interfaces.TaskState
	coord, rotation, power, _ := testCoordinator(t, transport, time.Millisecond, 5)

	// StartActivity runs in the middle of the probe sequence
	transport.onStartActivity = func() {
		rotationMid = rotation.State()
		powerMid = power.State()
	}

	coord.Dispatch(&events.Record{File: "1.json", Kind: events.KindScroll})

	assert.Equal(t, interfaces.TaskPaused, rotationMid, "rotation must not fire mid-probe")
	assert.Equal(t, interfaces.TaskPaused, powerMid, "power cycling must not fire mid-probe")
	assert.Equal(t, interfaces.TaskRunning, rotation.State(), "rotation resumes after the probe")
	assert.Equal(t, interfaces.TaskRunning, power.State(), "power resumes after the probe")
}

func TestProbeFailureStillResumesSiblings(t *testing.T) {
	transport := &scriptedTransport{startErr: errors.New("relaunch refused")}
	coord, rotation, power, probe := testCoordinator(t, transport, time.Millisecond, 5)

	coord.Dispatch(&events.Record{File: "1.json", Kind: events.KindScroll})

	completed, attempted := probe.Probes()
	assert.Zero(t, completed)
	assert.Equal(t, 1, attempted)
	assert.Equal(t, interfaces.TaskRunning, rotation.State())
	assert.Equal(t, interfaces.TaskRunning, power.State())
}

func TestRateLimitedProbeLeavesSiblingsAlone(t *testing.T) {
	transport := &scriptedTransport{}
	coord, _, power, probe := testCoordinator(t, transport, time.Hour, 1)

	// Consume the only probe in the budget
	coord.Dispatch(&events.Record{File: "1.json", Kind: events.KindScroll})
	_, attempted := probe.Probes()
	require.Equal(t, 1, attempted)

	// Start a slow power cycle, then dispatch a probe trigger that cannot
	// run. If the coordinator paused power anyway, the in-flight cycle
	// would abort.
	power.offWait = 100 * time.Millisecond
	done := make(chan struct{})
	go func() {
		power.Trigger(keyEvent())
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)

	coord.Dispatch(&events.Record{File: "2.json", Kind: events.KindScroll})
	<-done

	assert.Equal(t, 1, power.Cycles(), "the in-flight cycle must complete undisturbed")
	_, attempted = probe.Probes()
	assert.Equal(t, 1, attempted, "the exhausted probe budget stays exhausted")
}

func TestCoordinatorStartAndStop(t *testing.T) {
	transport := &scriptedTransport{}
	coord, rotation, power, probe := testCoordinator(t, transport, time.Hour, 5)

	assert.Equal(t, interfaces.TaskRunning, rotation.State())
	assert.Equal(t, interfaces.TaskRunning, power.State())
	assert.Equal(t, interfaces.TaskRunning, probe.State())

	require.NoError(t, coord.Stop())
	assert.Equal(t, interfaces.TaskStopped, rotation.State())
	assert.Equal(t, interfaces.TaskStopped, power.State())
	assert.Equal(t, interfaces.TaskStopped, probe.State())
}

func TestCoordinatorToleratesDisabledTasks(t *testing.T) {
	transport := &scriptedTransport{}
	rotation := NewRotationTask(transport, time.Millisecond, quietLogger())
	coord := NewCoordinator(rotation, nil, nil, quietLogger())
	require.NoError(t, coord.Start(context.Background()))

	coord.Dispatch(&events.Record{File: "1.json", Kind: events.KindTouch})
	coord.Dispatch(&events.Record{File: "2.json", Kind: events.KindScroll})

	stats := coord.Stats()
	assert.Equal(t, 1, stats.Rotations)
	assert.Zero(t, stats.PowerCycles)
	assert.Zero(t, stats.ProbesAttempted)
	require.NoError(t, coord.Stop())
}

func TestCoordinatorStats(t *testing.T) {
	transport := &scriptedTransport{}
	coord, _, _, _ := testCoordinator(t, transport, time.Millisecond, 5)

	coord.Dispatch(&events.Record{File: "1.json", Kind: events.KindScroll})
	time.Sleep(2 * time.Millisecond)
	coord.Dispatch(&events.Record{File: "2.json", Kind: events.KindExit})

	stats := coord.Stats()
	assert.Equal(t, 1, stats.ProbesCompleted)
	assert.Equal(t, 1, stats.ProbesAttempted)
	assert.Equal(t, 1, stats.PowerCycleAttempts)
	assert.Equal(t, 1, stats.PowerCycles)
	assert.Equal(t, 1, stats.Rotations)
}