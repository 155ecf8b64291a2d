/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: analyze.go
Description: Analyze command implementation for Akaylee Droid. Re-runs crash
detection and home-probe data-loss analysis over a finished session directory
so thresholds can be retuned without repeating the exploration.
*/

package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kleascm/akaylee-droid/pkg/analysis"
	"github.com/kleascm/akaylee-droid/pkg/session"
)

// RunAnalyze re-runs the offline analyses on an existing session directory
func RunAnalyze(cmd *cobra.Command, args []string) error {
	fmt.Println("🔍 Akaylee Droid - Offline Session Analysis")
	fmt.Println("===========================================")
	fmt.Println()

	// Load configuration first
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logging
	logger := BuildLogger()

	outputDir := viper.GetString("output_dir")
	if info, err := os.Stat(outputDir); err != nil || !info.IsDir() {
		return fmt.Errorf("session directory not found: %s", outputDir)
	}

	// Crash detection over the driver's recorded states
	crashDetector := analysis.NewCrashDetector(viper.GetInt("crash_threshold"), logger)
	crashReport, err := crashDetector.Analyze(
		filepath.Join(outputDir, session.DriverStatesDir),
		filepath.Join(outputDir, session.DriverEventsDir),
	)
	if err != nil {
		return fmt.Errorf("crash analysis failed: %w", err)
	}

	crashPath := filepath.Join(outputDir, analysis.CrashReportName)
	if err := crashReport.Write(crashPath); err != nil {
		return fmt.Errorf("failed to write crash report: %w", err)
	}
	fmt.Printf("✅ Crash analysis: %d states, %d crashes (rate %.2f%%)\n",
		crashReport.Statistics.TotalStatesAnalyzed,
		crashReport.Statistics.CrashesDetected,
		crashReport.Statistics.CrashRate*100)
	fmt.Printf("   Report: %s\n", crashPath)

	// Home-probe comparison over the before and after screenshots
	lossDetector := analysis.NewHomeLossDetector(viper.GetInt("home_loss_threshold"), logger)
	lossReport, err := lossDetector.Analyze(outputDir)
	if err != nil {
		return fmt.Errorf("home-probe analysis failed: %w", err)
	}

	lossPath := filepath.Join(outputDir, analysis.HomeLossReportName)
	if err := lossReport.Write(lossPath); err != nil {
		return fmt.Errorf("failed to write home-probe report: %w", err)
	}
	fmt.Printf("✅ Home-probe analysis: %d probe pairs, %d potential data losses\n",
		lossReport.Statistics.TotalActionsAnalyzed,
		lossReport.Statistics.PotentialDataLoss)
	fmt.Printf("   Report: %s\n", lossPath)

	fmt.Println("\n✨ Analysis completed!")
	return nil
}
