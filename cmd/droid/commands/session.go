/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: session.go
Description: Session command implementation for Akaylee Droid. Runs one
monitored exploration session end to end with graceful shutdown on interrupt
and a final summary of everything the session found.
*/

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kleascm/akaylee-droid/pkg/interfaces"
	"github.com/kleascm/akaylee-droid/pkg/session"
)

// RunSession executes one monitored exploration session
func RunSession(cmd *cobra.Command, args []string) error {
	fmt.Println("🤖 Akaylee Droid - Starting Exploration Session")
	fmt.Println("===============================================")
	fmt.Println()

	// Load configuration first
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logging
	logger := BuildLogger()

	// Create session configuration
	config := createSessionConfig()
	if err := validateSessionConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Expose metrics if configured
	metricsServer := StartMetrics(logger)
	if metricsServer != nil {
		defer metricsServer.Shutdown(context.Background())
	}

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\n🛑 Received shutdown signal, stopping session...")
		cancel()
	}()

	// Create and run the session
	s, err := session.NewSession(config, logger)
	if err != nil {
		return err
	}

	runErr := s.Run(ctx)

	// Print the final summary even when the run ended badly; the report
	// reflects whatever made it to disk
	if report := s.Report(); report != nil {
		fmt.Println()
		fmt.Println("📊 Session Summary")
		fmt.Println("==================")
		fmt.Println(report.Summary())
		fmt.Printf("\nFull report: %s\n", filepath.Join(config.OutputDir, session.ReportName))
	}

	if runErr != nil {
		return runErr
	}
	fmt.Println("\n✨ Exploration session completed!")
	return nil
}

// createSessionConfig creates the session configuration from viper
func createSessionConfig() *interfaces.SessionConfig {
	config := interfaces.DefaultSessionConfig()

	config.DeviceSerial = viper.GetString("device_serial")
	config.APKPath = viper.GetString("apk_path")
	config.AppPackage = viper.GetString("app_package")
	config.MainActivity = viper.GetString("main_activity")
	config.DriverPath = viper.GetString("driver_path")
	config.DriverArgs = viper.GetStringSlice("driver_args")
	config.KeepEnv = viper.GetBool("keep_env")
	config.OutputDir = viper.GetString("output_dir")

	config.SessionTimeout = viper.GetDuration("session_timeout")
	config.PollInterval = viper.GetDuration("poll_interval")
	config.MonitorInterval = viper.GetDuration("monitor_interval")
	config.CommandTimeout = viper.GetDuration("command_timeout")
	config.SlowCmdTimeout = viper.GetDuration("slow_command_timeout")

	config.CaptureRetries = viper.GetInt("capture_retries")
	config.CaptureBackoff = viper.GetDuration("capture_backoff")
	config.SnapshotHistory = viper.GetInt("snapshot_history")
	config.EventHistory = viper.GetInt("event_history")

	config.PixelThreshold = uint8(viper.GetInt("pixel_threshold"))
	config.AreaThreshold = viper.GetFloat64("area_threshold")
	config.RotationThreshold = viper.GetFloat64("rotation_threshold")
	config.CrashThreshold = viper.GetInt("crash_threshold")
	config.HomeLossThreshold = viper.GetInt("home_loss_threshold")

	config.RotationInterval = viper.GetDuration("rotation_interval")
	config.PowerCycleInterval = viper.GetDuration("power_cycle_interval")
	config.MaxPowerCycles = viper.GetInt("max_power_cycles")
	config.HomeProbeInterval = viper.GetDuration("home_probe_interval")
	config.MaxHomeProbes = viper.GetInt("max_home_probes")

	config.LogLevel = viper.GetString("log_level")
	config.LogFile = viper.GetString("log_file")
	config.JSONLogs = viper.GetBool("json_logs")
	config.MetricsAddr = viper.GetString("metrics_addr")

	return config
}

// validateSessionConfig checks the command-level preconditions before the
// session's own validation runs
func validateSessionConfig(config *interfaces.SessionConfig) error {
	if config.APKPath == "" {
		return fmt.Errorf("APK path is required")
	}
	if _, err := os.Stat(config.APKPath); os.IsNotExist(err) {
		return fmt.Errorf("APK not found: %s", config.APKPath)
	}
	return config.Validate()
}
