/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: coordinator.go
Description: Perturbation coordinator. Routes driver UI events to the tasks
whose trigger sets match, and brackets every home probe by pausing the
rotation and power-cycle tasks first and resuming them afterwards on every
exit path, so a probe is never photobombed by a sibling perturbation.
*/

package perturb

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kleascm/akaylee-droid/pkg/events"
)

// Stats aggregates perturbation counters for the session report
type Stats struct {
	Rotations          int `json:"rotations"`
	PowerCycles        int `json:"power_cycles"`
	PowerCycleAttempts int `json:"power_cycle_attempts"`
	ProbesCompleted    int `json:"home_probes_completed"`
	ProbesAttempted    int `json:"home_probes_attempted"`
}

// Coordinator owns the perturbation tasks for one session. Any task may be
// nil when its perturbation is disabled.
type Coordinator struct {
	rotation *RotationTask
	power    *PowerCycleTask
	probe    *HomeProbe
	logger   *logrus.Logger
}

// NewCoordinator creates a coordinator over the given tasks
func NewCoordinator(rotation *RotationTask, power *PowerCycleTask, probe *HomeProbe,
	logger *logrus.Logger) *Coordinator {
	return &Coordinator{
		rotation: rotation,
		power:    power,
		probe:    probe,
		logger:   logger,
	}
}

// Start arms every configured task under the session context
func (c *Coordinator) Start(ctx context.Context) error {
	for _, task := range c.tasks() {
		if err := task.Start(ctx); err != nil {
			return fmt.Errorf("start %s: %w", task.Name(), err)
		}
	}
	return nil
}

// Stop stops every configured task. All tasks are stopped even if one
// errors; the first error is returned.
func (c *Coordinator) Stop() error {
	var firstErr error
	for _, task := range c.tasks() {
		if err := task.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Dispatch routes one driver event to every matching task. The home probe is
// special: it monopolizes the device for several seconds, so siblings are
// paused for the duration and resumed on every exit path, including panics.
// A rate-limited probe trigger leaves siblings untouched.
func (c *Coordinator) Dispatch(record *events.Record) {
	if c.rotation != nil && c.rotation.Handles(record.Kind) {
		c.rotation.Trigger(record)
	}
	if c.power != nil && c.power.Handles(record.Kind) {
		c.power.Trigger(record)
	}
	if c.probe != nil && c.probe.Handles(record.Kind) {
		c.dispatchProbe(record)
	}
}

// dispatchProbe brackets a due probe with sibling pause and resume
func (c *Coordinator) dispatchProbe(record *events.Record) {
	if !c.probe.Due() {
		return
	}

	c.logger.Debug("pausing sibling perturbations for home probe")
	if c.rotation != nil {
		c.rotation.Pause()
	}
	if c.power != nil {
		c.power.Pause()
	}
	defer func() {
		if c.power != nil {
			c.power.Resume()
		}
		if c.rotation != nil {
			c.rotation.Resume()
		}
		c.logger.Debug("sibling perturbations resumed after home probe")
	}()

	c.probe.Trigger(record)
}

// Stats returns aggregated perturbation counters
func (c *Coordinator) Stats() Stats {
	var stats Stats
	if c.rotation != nil {
		stats.Rotations = c.rotation.Rotations()
	}
	if c.power != nil {
		stats.PowerCycles = c.power.Cycles()
		stats.PowerCycleAttempts = c.power.Attempts()
	}
	if c.probe != nil {
		stats.ProbesCompleted, stats.ProbesAttempted = c.probe.Probes()
	}
	return stats
}

// tasks returns the configured tasks in start order
func (c *Coordinator) tasks() []Task {
	var tasks []Task
	if c.rotation != nil {
		tasks = append(tasks, c.rotation)
	}
	if c.power != nil {
		tasks = append(tasks, c.power)
	}
	if c.probe != nil {
		tasks = append(tasks, c.probe)
	}
	return tasks
}
