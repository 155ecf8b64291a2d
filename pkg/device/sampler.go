/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: sampler.go
Description: Multi-strategy snapshot sampler. Captures device screen states
through an ordered list of strategies with a retry budget, attaches foreground
activity and view tree context best-effort, and writes each snapshot exactly
once into the session state directory.
*/

package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kleascm/akaylee-droid/pkg/interfaces"
)

// CaptureStrategy is one way of obtaining a screenshot. Strategies are tried
// in order; each either writes a PNG to the destination path or fails.
type CaptureStrategy struct {
	Name    string
	Capture func(ctx context.Context, dest string) error
}

// SamplerConfig configures snapshot capture behavior
type SamplerConfig struct {
	StateDir       string        // Directory owned by the sampler for its PNGs
	DriverStateDir string        // Driver screenshot directory used as a last-resort source
	Retries        int           // Full passes over the strategy list
	Backoff        time.Duration // Sleep between passes
	ViewTree       bool          // Attach uiautomator dumps to snapshots
}

// Sampler captures device screen states. An error is returned only after
// every strategy has failed in every retry pass; individual strategy failures
// are logged and absorbed. Per-strategy time budgets come from the transport's
// command timeouts.
type Sampler struct {
	transport  interfaces.DeviceTransport
	config     SamplerConfig
	logger     *logrus.Logger
	strategies []CaptureStrategy
	seq        atomic.Uint64
}

// NewSampler creates a sampler with the standard strategy order: streamed
// screencap, then capture via device storage, then reuse of the newest
// driver-produced screenshot.
func NewSampler(transport interfaces.DeviceTransport, config SamplerConfig, logger *logrus.Logger) *Sampler {
	if config.Retries <= 0 {
		config.Retries = 3
	}
	if config.Backoff <= 0 {
		config.Backoff = 2 * time.Second
	}
	s := &Sampler{
		transport: transport,
		config:    config,
		logger:    logger,
	}
	s.strategies = []CaptureStrategy{
		{Name: "exec-out", Capture: s.captureDirect},
		{Name: "sdcard-pull", Capture: s.capturePull},
		{Name: "driver-state", Capture: s.captureFromDriver},
	}
	return s
}

// Capture obtains one snapshot. The destination filename embeds the capture
// time with a sequence suffix so directory listings sort in capture order.
func (s *Sampler) Capture(ctx context.Context) (*interfaces.Snapshot, error) {
	taken := time.Now()
	name := fmt.Sprintf("snap_%s_%04d.png", taken.Format("20060102_150405.000"), s.seq.Add(1))
	dest := filepath.Join(s.config.StateDir, name)

	var lastErr error
	for pass := 1; pass <= s.config.Retries; pass++ {
		if pass > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.config.Backoff):
			}
		}
		for _, strategy := range s.strategies {
			if err := strategy.Capture(ctx, dest); err != nil {
				lastErr = err
				s.logger.WithFields(logrus.Fields{
					"strategy": strategy.Name,
					"pass":     pass,
				}).Debugf("capture strategy failed: %v", err)
				continue
			}

			snapshot := &interfaces.Snapshot{
				ID:     uuid.New().String(),
				Taken:  taken,
				Path:   dest,
				Source: strategy.Name,
			}
			s.attachContext(ctx, snapshot)
			return snapshot, nil
		}
	}
	return nil, fmt.Errorf("all capture strategies exhausted after %d passes: %w", s.config.Retries, lastErr)
}

// captureDirect streams the screen over exec-out and writes it locally
func (s *Sampler) captureDirect(ctx context.Context, dest string) error {
	data, err := s.transport.Screencap(ctx)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0644)
}

// capturePull captures via device storage and pulls the file
func (s *Sampler) capturePull(ctx context.Context, dest string) error {
	return s.transport.ScreencapToFile(ctx, dest)
}

// captureFromDriver copies the newest driver-produced screenshot. The driver
// names its screenshots by capture time, so the lexicographically last PNG is
// the freshest one it has.
func (s *Sampler) captureFromDriver(ctx context.Context, dest string) error {
	if s.config.DriverStateDir == "" {
		return fmt.Errorf("no driver state directory configured")
	}
	entries, err := os.ReadDir(s.config.DriverStateDir)
	if err != nil {
		return fmt.Errorf("read driver state dir: %w", err)
	}

	var candidates []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(name), ".png") {
			continue
		}
		candidates = append(candidates, name)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("driver has produced no screenshots yet")
	}
	sort.Strings(candidates)

	newest := filepath.Join(s.config.DriverStateDir, candidates[len(candidates)-1])
	data, err := os.ReadFile(newest)
	if err != nil {
		return fmt.Errorf("read driver screenshot %s: %w", newest, err)
	}
	return os.WriteFile(dest, data, 0644)
}

// attachContext adds foreground activity and view tree to a snapshot.
// Both are best-effort: their failure never fails the capture.
func (s *Sampler) attachContext(ctx context.Context, snapshot *interfaces.Snapshot) {
	activity, err := s.transport.ForegroundActivity(ctx)
	if err != nil {
		s.logger.Debugf("foreground activity unavailable: %v", err)
	} else {
		snapshot.Activity = activity
	}

	if s.config.ViewTree {
		tree, err := s.transport.DumpViewTree(ctx)
		if err != nil {
			s.logger.Debugf("view tree unavailable: %v", err)
		} else {
			snapshot.ViewTree = tree
		}
	}
}
