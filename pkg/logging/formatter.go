/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: formatter.go
Description: Console log formatter for the Akaylee Droid monitor. Provides
structured, colorized output tuned for session logs with compact timestamps,
colored levels, and readable rendering of durations, timestamps, and artifact
paths in structured fields.
*/

package logging

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ConsoleFormatter renders session log entries for terminals
type ConsoleFormatter struct {
	Timestamp bool
	Colors    bool
}

// Format formats a log entry as a single line
func (f *ConsoleFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var output strings.Builder

	// Add timestamp
	if f.Timestamp {
		timestamp := entry.Time.Format("2006-01-02 15:04:05.000")
		if f.Colors {
			fmt.Fprintf(&output, "\033[36m%s\033[0m ", timestamp) // Cyan
		} else {
			fmt.Fprintf(&output, "%s ", timestamp)
		}
	}

	// Add log level with color
	level := strings.ToUpper(entry.Level.String())
	if f.Colors {
		fmt.Fprintf(&output, "\033[%dm%s\033[0m ", f.levelColor(entry.Level), level)
	} else {
		fmt.Fprintf(&output, "%s ", level)
	}

	// Add message
	output.WriteString(entry.Message)

	// Add structured fields in stable order
	if len(entry.Data) > 0 {
		output.WriteString(" ")
		output.WriteString(f.formatFields(entry.Data))
	}

	output.WriteString("\n")
	return []byte(output.String()), nil
}

// levelColor returns the ANSI color code for a log level
func (f *ConsoleFormatter) levelColor(level logrus.Level) int {
	switch level {
	case logrus.DebugLevel:
		return 37 // White
	case logrus.InfoLevel:
		return 32 // Green
	case logrus.WarnLevel:
		return 33 // Yellow
	case logrus.ErrorLevel:
		return 31 // Red
	case logrus.FatalLevel, logrus.PanicLevel:
		return 35 // Magenta
	default:
		return 37 // White
	}
}

// formatFields formats structured fields in a readable way
func (f *ConsoleFormatter) formatFields(fields logrus.Fields) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		formattedValue := f.formatValue(fields[key])
		if f.Colors {
			parts = append(parts, fmt.Sprintf("\033[34m%s\033[0m=\033[32m%s\033[0m", key, formattedValue)) // Blue key, Green value
		} else {
			parts = append(parts, fmt.Sprintf("%s=%s", key, formattedValue))
		}
	}

	return strings.Join(parts, " ")
}

// formatValue formats a field value appropriately
func (f *ConsoleFormatter) formatValue(value interface{}) string {
	switch v := value.(type) {
	case time.Duration:
		return v.String()
	case time.Time:
		return v.Format("15:04:05.000")
	case float64:
		return fmt.Sprintf("%.4f", v)
	case string:
		if len(v) > 80 {
			return fmt.Sprintf("...%s", v[len(v)-77:])
		}
		return v
	case []byte:
		return fmt.Sprintf("[%d bytes]", len(v))
	case error:
		return v.Error()
	default:
		return fmt.Sprintf("%v", v)
	}
}
