/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Shared utilities for the Akaylee Droid commands. Provides common
configuration loading, logger construction, and the optional metrics endpoint
used across command implementations.
*/

package commands

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/kleascm/akaylee-droid/pkg/logging"
	"github.com/kleascm/akaylee-droid/pkg/metrics"
)

// LoadConfig loads configuration from files and environment
func LoadConfig() error {
	// Set config file if specified
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("AKAYLEE_DROID")
	viper.AutomaticEnv()

	return nil
}

// BuildLogger constructs the session logger from the logging configuration
func BuildLogger() *logrus.Logger {
	return logging.New(logging.Config{
		Level: viper.GetString("log_level"),
		JSON:  viper.GetBool("json_logs"),
		File:  viper.GetString("log_file"),
	})
}

// StartMetrics exposes the prometheus endpoint when an address is configured.
// Returns the server so the caller can shut it down, or nil when disabled.
func StartMetrics(logger *logrus.Logger) *http.Server {
	addr := viper.GetString("metrics_addr")
	if addr == "" {
		return nil
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Warnf("metrics registration: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.WithField("addr", addr).Info("Metrics endpoint listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warnf("metrics server: %v", err)
		}
	}()
	return server
}
