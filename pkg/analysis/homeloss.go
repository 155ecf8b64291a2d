/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: homeloss.go
Description: Data-loss analysis over home-probe screenshot pairs. Each probe
leaves a before/after screenshot pair; a large perceptual distance between the
two means the app failed to restore its UI state after being backgrounded.
*/

package analysis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kleascm/akaylee-droid/pkg/imaging"
)

// HomeScreenshotsDir is the directory name probes write their pairs into,
// relative to the session output directory
const HomeScreenshotsDir = "home_button_screenshots"

// HomeLossReportName is the home-probe analysis file within the session
// output directory
const HomeLossReportName = "home_button_data_loss.json"

// HomeLossAction is the verdict for one home-probe pair
type HomeLossAction struct {
	ActionIndex         int    `json:"action_index"`
	BeforeImage         string `json:"before_image"`
	AfterImage          string `json:"after_image"`
	HashDifference      int    `json:"hash_difference"`
	IsPotentialDataLoss bool   `json:"is_potential_data_loss"`
}

// HomeLossMetadata records where and how an analysis ran
type HomeLossMetadata struct {
	OutputDir           string    `json:"output_dir"`
	AnalysisTime        time.Time `json:"analysis_time"`
	SimilarityThreshold int       `json:"similarity_threshold"`
}

// HomeLossStatistics summarizes an analysis run
type HomeLossStatistics struct {
	TotalActionsAnalyzed int     `json:"total_actions_analyzed"`
	PotentialDataLoss    int     `json:"potential_data_loss"`
	DataLossRate         float64 `json:"data_loss_rate"`
}

// HomeLossReport is the full home-probe analysis result, serialized as
// home_button_data_loss.json in the session output directory
type HomeLossReport struct {
	Metadata   HomeLossMetadata   `json:"metadata"`
	Statistics HomeLossStatistics `json:"statistics"`
	Actions    []HomeLossAction   `json:"actions"`
}

// HomeLossDetector analyzes recorded probe pairs for state restoration
// failures
type HomeLossDetector struct {
	threshold int
	logger    *logrus.Logger
}

// NewHomeLossDetector creates a detector. threshold is the minimum
// fingerprint distance between a probe pair considered a restoration failure.
func NewHomeLossDetector(threshold int, logger *logrus.Logger) *HomeLossDetector {
	if threshold <= 0 {
		threshold = 10
	}
	return &HomeLossDetector{threshold: threshold, logger: logger}
}

// Analyze pairs before_N.png with after_N.png under the probe screenshot
// directory. A before-image without its after counterpart means the probe
// died mid-sequence; the pair is logged and skipped.
func (d *HomeLossDetector) Analyze(outputDir string) (*HomeLossReport, error) {
	report := &HomeLossReport{
		Metadata: HomeLossMetadata{
			OutputDir:           outputDir,
			AnalysisTime:        time.Now(),
			SimilarityThreshold: d.threshold,
		},
		Actions: []HomeLossAction{},
	}

	screenshotDir := filepath.Join(outputDir, HomeScreenshotsDir)
	befores, err := listSorted(screenshotDir, ".png")
	if err != nil {
		d.logger.Debugf("no probe screenshots recorded: %v", err)
		return report, nil
	}

	for _, before := range befores {
		index, ok := probeIndex(filepath.Base(before))
		if !ok {
			continue
		}
		after := filepath.Join(screenshotDir, fmt.Sprintf("after_%d.png", index))
		if _, err := os.Stat(after); err != nil {
			d.logger.WithField("probe", index).Warnf("probe has no after-image, skipping: %v", err)
			continue
		}

		beforeFp, err := imaging.FingerprintFile(before)
		if err != nil {
			d.logger.WithField("file", before).Warnf("skipping undecodable before-image: %v", err)
			continue
		}
		afterFp, err := imaging.FingerprintFile(after)
		if err != nil {
			d.logger.WithField("file", after).Warnf("skipping undecodable after-image: %v", err)
			continue
		}

		distance := imaging.Distance(beforeFp, afterFp)
		action := HomeLossAction{
			ActionIndex:         index,
			BeforeImage:         filepath.Base(before),
			AfterImage:          filepath.Base(after),
			HashDifference:      distance,
			IsPotentialDataLoss: distance > d.threshold,
		}
		report.Actions = append(report.Actions, action)

		if action.IsPotentialDataLoss {
			d.logger.WithFields(logrus.Fields{
				"probe":    index,
				"distance": distance,
			}).Warn("UI state not restored after home probe, potential data loss")
		}
	}

	for _, action := range report.Actions {
		if action.IsPotentialDataLoss {
			report.Statistics.PotentialDataLoss++
		}
	}
	report.Statistics.TotalActionsAnalyzed = len(report.Actions)
	if report.Statistics.TotalActionsAnalyzed > 0 {
		report.Statistics.DataLossRate = round4(float64(report.Statistics.PotentialDataLoss) /
			float64(report.Statistics.TotalActionsAnalyzed))
	}
	return report, nil
}

// Write serializes the report as indented JSON
func (r *HomeLossReport) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal home loss report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write home loss report: %w", err)
	}
	return nil
}

// Summary returns a one-line human-readable digest
func (r *HomeLossReport) Summary() string {
	return fmt.Sprintf("%d potential data losses across %d probes (rate %.4f)",
		r.Statistics.PotentialDataLoss, r.Statistics.TotalActionsAnalyzed, r.Statistics.DataLossRate)
}

// probeIndex extracts N from a before_N.png filename
func probeIndex(name string) (int, bool) {
	if !strings.HasPrefix(name, "before_") || !strings.HasSuffix(name, ".png") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "before_"), ".png"))
	if err != nil {
		return 0, false
	}
	return n, true
}
