/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: task.go
Description: Perturbation task contract and shared lifecycle harness. Tasks
are trigger-driven with three states: running tasks execute, paused tasks skip
triggers with any in-flight device work canceled, stopped tasks are terminal
and ignore further transitions.
*/

package perturb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kleascm/akaylee-droid/pkg/events"
	"github.com/kleascm/akaylee-droid/pkg/interfaces"
)

// Task is a device perturbation reacting to driver UI events
type Task interface {
	Name() string
	Description() string
	// Start arms the task under the given session context
	Start(ctx context.Context) error
	// Pause suspends triggering and cancels in-flight device commands
	Pause()
	// Resume re-arms a paused task with a clean execution context
	Resume()
	// Stop is terminal; a stopped task ignores Pause and Resume
	Stop() error
	State() interfaces.TaskState
	// Handles reports whether an event kind triggers this task
	Handles(kind events.Kind) bool
	// Trigger executes the perturbation if the task is running and its rate
	// limits allow it
	Trigger(record *events.Record)
}

// lifecycle implements the shared state machine. Each concrete task embeds it
// and executes under the context it hands out, so Pause can abort device
// commands mid-sequence.
type lifecycle struct {
	name   string
	logger *logrus.Logger

	mu        sync.Mutex
	state     interfaces.TaskState
	started   bool
	base      context.Context
	runCtx    context.Context
	runCancel context.CancelFunc
}

func newLifecycle(name string, logger *logrus.Logger) lifecycle {
	return lifecycle{
		name:   name,
		logger: logger,
		state:  interfaces.TaskPaused,
	}
}

// Name returns the task name
func (l *lifecycle) Name() string { return l.name }

// Start arms the task. Starting twice or after Stop is an error.
func (l *lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == interfaces.TaskStopped {
		return fmt.Errorf("task %s already stopped", l.name)
	}
	if l.started {
		return fmt.Errorf("task %s already started", l.name)
	}
	l.started = true
	l.base = ctx
	l.runCtx, l.runCancel = context.WithCancel(ctx)
	l.state = interfaces.TaskRunning
	l.logger.WithField("task", l.name).Info("Perturbation task started")
	return nil
}

// Pause suspends a running task and cancels its execution context. Any other
// state is a no-op.
func (l *lifecycle) Pause() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != interfaces.TaskRunning {
		return
	}
	l.state = interfaces.TaskPaused
	if l.runCancel != nil {
		l.runCancel()
	}
	l.logger.WithField("task", l.name).Debug("Perturbation task paused")
}

// Resume re-arms a paused, started task with a fresh execution context. Any
// other state is a no-op; in particular a stopped task stays stopped.
func (l *lifecycle) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != interfaces.TaskPaused || !l.started {
		return
	}
	l.runCtx, l.runCancel = context.WithCancel(l.base)
	l.state = interfaces.TaskRunning
	l.logger.WithField("task", l.name).Debug("Perturbation task resumed")
}

// Stop transitions to the terminal state. Stopping twice is an error.
func (l *lifecycle) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == interfaces.TaskStopped {
		return fmt.Errorf("task %s already stopped", l.name)
	}
	l.state = interfaces.TaskStopped
	if l.runCancel != nil {
		l.runCancel()
	}
	l.logger.WithField("task", l.name).Info("Perturbation task stopped")
	return nil
}

// State returns the current lifecycle state
func (l *lifecycle) State() interfaces.TaskState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// runnable returns the current execution context if the task may execute
func (l *lifecycle) runnable() (context.Context, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != interfaces.TaskRunning || l.runCtx == nil {
		return nil, false
	}
	return l.runCtx, true
}

// kindSet builds a membership set for trigger kinds
func kindSet(kinds ...events.Kind) map[events.Kind]struct{} {
	set := make(map[events.Kind]struct{}, len(kinds))
	for _, kind := range kinds {
		set[kind] = struct{}{}
	}
	return set
}

// sleepCtx waits for the duration unless the context is canceled first
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
