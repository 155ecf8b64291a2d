/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main.go
Description: Main command-line interface for Akaylee Droid. Provides session
orchestration and offline analysis commands with comprehensive configuration
management over flags, environment variables, and config files.
*/

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kleascm/akaylee-droid/cmd/droid/commands"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Configuration
	configFile  string
	logLevel    string
	logFile     string
	jsonLogs    bool
	metricsAddr string

	// Target configuration
	deviceSerial string
	apkPath      string
	appPackage   string
	mainActivity string

	// Driver configuration
	driverPath string
	driverArgs []string
	keepEnv    bool
	outputDir  string

	// Timing configuration
	sessionTimeout  time.Duration
	pollInterval    time.Duration
	monitorInterval time.Duration
	commandTimeout  time.Duration
	slowCmdTimeout  time.Duration

	// Capture configuration
	captureRetries  int
	captureBackoff  time.Duration
	snapshotHistory int
	eventHistory    int

	// Detection thresholds
	pixelThreshold    int
	areaThreshold     float64
	rotationThreshold float64
	crashThreshold    int
	homeLossThreshold int

	// Perturbation configuration
	rotationInterval   time.Duration
	powerCycleInterval time.Duration
	maxPowerCycles     int
	homeProbeInterval  time.Duration
	maxHomeProbes      int
)

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:   "akaylee-droid",
		Short: "Akaylee Droid - Android exploration session monitor",
		Long: `Akaylee Droid wraps an automated UI exploration driver with continuous
data-loss monitoring, crash detection, and UI perturbation. It watches the
screen while the driver explores, rotates and power-cycles the device to
shake out state-restoration bugs, and distills everything into session
reports.`,
		Version: "1.0.0",
	}

	// Add persistent flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Optional log file with rotation (stderr only when empty)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Use JSON log format")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Prometheus listen address (e.g. :9090, empty disables)")
	rootCmd.PersistentFlags().StringVar(&deviceSerial, "serial", "", "adb device serial (default device when empty)")

	// Bind persistent flags to viper
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("json_logs", rootCmd.PersistentFlags().Lookup("json-logs"))
	viper.BindPFlag("metrics_addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))
	viper.BindPFlag("device_serial", rootCmd.PersistentFlags().Lookup("serial"))

	// Add session command
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Run a monitored exploration session",
		Long: `Start the exploration driver against an APK and monitor the whole run.
The session captures screenshots while the driver explores, flags sudden UI
data loss, perturbs the app with rotations, power cycles, and home-button
probes, then analyzes the recorded states for crashes and writes a session
report into the output directory.`,
		RunE: commands.RunSession,
	}

	// Add session command flags
	sessionCmd.Flags().StringVar(&apkPath, "apk", "", "Path to the APK under test (required)")
	sessionCmd.Flags().StringVar(&outputDir, "output", "droid_output", "Directory for session output")
	sessionCmd.Flags().StringVar(&driverPath, "driver", "droidbot", "Exploration driver binary")
	sessionCmd.Flags().StringSliceVar(&driverArgs, "driver-args", []string{}, "Extra arguments for the driver")
	sessionCmd.Flags().BoolVar(&keepEnv, "keep-env", false, "Keep the device environment (driver -keep_env)")
	sessionCmd.Flags().StringVar(&appPackage, "app-package", "com.example.app", "Fallback package when app.json is absent")
	sessionCmd.Flags().StringVar(&mainActivity, "main-activity", "MainActivity", "Fallback activity when app.json is absent")

	sessionCmd.Flags().DurationVar(&sessionTimeout, "timeout", time.Hour, "Whole-session time budget")
	sessionCmd.Flags().DurationVar(&pollInterval, "poll-interval", time.Second, "Driver event poll cadence")
	sessionCmd.Flags().DurationVar(&monitorInterval, "monitor-interval", 30*time.Second, "Data-loss check cadence")
	sessionCmd.Flags().DurationVar(&commandTimeout, "command-timeout", 5*time.Second, "Per adb command budget")
	sessionCmd.Flags().DurationVar(&slowCmdTimeout, "slow-command-timeout", 10*time.Second, "Budget for launch and orientation commands")

	sessionCmd.Flags().IntVar(&captureRetries, "capture-retries", 3, "Screenshot retry passes")
	sessionCmd.Flags().DurationVar(&captureBackoff, "capture-backoff", 2*time.Second, "Sleep between screenshot retry passes")
	sessionCmd.Flags().IntVar(&snapshotHistory, "snapshot-history", 5, "Recent snapshots kept for comparison")
	sessionCmd.Flags().IntVar(&eventHistory, "event-history", 20, "Recent driver events kept for incident context")

	sessionCmd.Flags().IntVar(&pixelThreshold, "pixel-threshold", 25, "Per-pixel intensity delta considered changed")
	sessionCmd.Flags().Float64Var(&areaThreshold, "area-threshold", 0.15, "Changed-area fraction considered significant")
	sessionCmd.Flags().Float64Var(&rotationThreshold, "rotation-threshold", 0.05, "Changed-area fraction still identical under rotation")
	sessionCmd.Flags().IntVar(&crashThreshold, "crash-threshold", 5, "Max hash distance to the home screen for a crash")
	sessionCmd.Flags().IntVar(&homeLossThreshold, "home-loss-threshold", 10, "Min hash distance between probe pairs for data loss")

	sessionCmd.Flags().DurationVar(&rotationInterval, "rotation-interval", 5*time.Second, "Minimum gap between rotations")
	sessionCmd.Flags().DurationVar(&powerCycleInterval, "power-cycle-interval", 30*time.Second, "Minimum gap between power cycles")
	sessionCmd.Flags().IntVar(&maxPowerCycles, "max-power-cycles", 3, "Hard per-session power cycle cap")
	sessionCmd.Flags().DurationVar(&homeProbeInterval, "home-probe-interval", 30*time.Second, "Minimum gap between home-button probes")
	sessionCmd.Flags().IntVar(&maxHomeProbes, "max-home-probes", 5, "Hard per-session home probe cap")

	// Mark required flags
	sessionCmd.MarkFlagRequired("apk")

	// Bind session flags to viper
	viper.BindPFlag("apk_path", sessionCmd.Flags().Lookup("apk"))
	viper.BindPFlag("output_dir", sessionCmd.Flags().Lookup("output"))
	viper.BindPFlag("driver_path", sessionCmd.Flags().Lookup("driver"))
	viper.BindPFlag("driver_args", sessionCmd.Flags().Lookup("driver-args"))
	viper.BindPFlag("keep_env", sessionCmd.Flags().Lookup("keep-env"))
	viper.BindPFlag("app_package", sessionCmd.Flags().Lookup("app-package"))
	viper.BindPFlag("main_activity", sessionCmd.Flags().Lookup("main-activity"))
	viper.BindPFlag("session_timeout", sessionCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("poll_interval", sessionCmd.Flags().Lookup("poll-interval"))
	viper.BindPFlag("monitor_interval", sessionCmd.Flags().Lookup("monitor-interval"))
	viper.BindPFlag("command_timeout", sessionCmd.Flags().Lookup("command-timeout"))
	viper.BindPFlag("slow_command_timeout", sessionCmd.Flags().Lookup("slow-command-timeout"))
	viper.BindPFlag("capture_retries", sessionCmd.Flags().Lookup("capture-retries"))
	viper.BindPFlag("capture_backoff", sessionCmd.Flags().Lookup("capture-backoff"))
	viper.BindPFlag("snapshot_history", sessionCmd.Flags().Lookup("snapshot-history"))
	viper.BindPFlag("event_history", sessionCmd.Flags().Lookup("event-history"))
	viper.BindPFlag("pixel_threshold", sessionCmd.Flags().Lookup("pixel-threshold"))
	viper.BindPFlag("area_threshold", sessionCmd.Flags().Lookup("area-threshold"))
	viper.BindPFlag("rotation_threshold", sessionCmd.Flags().Lookup("rotation-threshold"))
	viper.BindPFlag("crash_threshold", sessionCmd.Flags().Lookup("crash-threshold"))
	viper.BindPFlag("home_loss_threshold", sessionCmd.Flags().Lookup("home-loss-threshold"))
	viper.BindPFlag("rotation_interval", sessionCmd.Flags().Lookup("rotation-interval"))
	viper.BindPFlag("power_cycle_interval", sessionCmd.Flags().Lookup("power-cycle-interval"))
	viper.BindPFlag("max_power_cycles", sessionCmd.Flags().Lookup("max-power-cycles"))
	viper.BindPFlag("home_probe_interval", sessionCmd.Flags().Lookup("home-probe-interval"))
	viper.BindPFlag("max_home_probes", sessionCmd.Flags().Lookup("max-home-probes"))

	rootCmd.AddCommand(sessionCmd)

	// Add analyze command for offline re-analysis of a finished session
	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Re-run crash and data-loss analysis on a session directory",
		Long: `Analyze the recorded states of a finished session without rerunning it.
Useful for retuning detection thresholds: crash detection re-reads the
driver's screenshots, home-probe analysis re-reads the probe pairs, and
both reports are rewritten in place.`,
		RunE: commands.RunAnalyze,
	}

	// Add analyze flags
	analyzeCmd.Flags().String("output", "", "Session output directory to analyze (required)")
	analyzeCmd.Flags().Int("crash-threshold", 5, "Max hash distance to the home screen for a crash")
	analyzeCmd.Flags().Int("home-loss-threshold", 10, "Min hash distance between probe pairs for data loss")

	// Mark required flags
	analyzeCmd.MarkFlagRequired("output")

	// Bind analyze flags to viper
	viper.BindPFlag("output_dir", analyzeCmd.Flags().Lookup("output"))
	viper.BindPFlag("crash_threshold", analyzeCmd.Flags().Lookup("crash-threshold"))
	viper.BindPFlag("home_loss_threshold", analyzeCmd.Flags().Lookup("home-loss-threshold"))

	rootCmd.AddCommand(analyzeCmd)

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
