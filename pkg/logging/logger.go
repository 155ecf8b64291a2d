/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: logger.go
Description: Session logger construction for the Akaylee Droid monitor.
Builds a logrus logger with the configured level and format, optionally
teeing output into a rotating file under the session's logs directory.
*/

package logging

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for the session log file
const (
	maxLogSizeMB  = 10
	maxLogBackups = 3
	maxLogAgeDays = 7
)

// Config holds the logging configuration for one session
type Config struct {
	Level string // debug, info, warn, error; unknown levels fall back to info
	JSON  bool   // Structured JSON output instead of text
	File  string // Optional log file path, rotated; empty logs to stderr only
}

// New creates a session logger. The file sink rotates via lumberjack, which
// also creates the parent directory on first write.
func New(config Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if config.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	} else {
		// Colors stay off when the output is teed into a file
		logger.SetFormatter(&ConsoleFormatter{
			Timestamp: true,
			Colors:    config.File == "",
		})
	}

	if config.File != "" {
		rotating := &lj.Logger{
			Filename:   config.File,
			MaxSize:    maxLogSizeMB,
			MaxBackups: maxLogBackups,
			MaxAge:     maxLogAgeDays,
		}
		logger.SetOutput(io.MultiWriter(os.Stderr, rotating))
	}

	return logger
}
