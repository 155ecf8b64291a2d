/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: logging_test.go
Description: Tests for session logger construction and the console formatter.
*/

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParsesLevel(t *testing.T) {
	logger := New(Config{Level: "debug"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestNewFallsBackToInfo(t *testing.T) {
	logger := New(Config{Level: "chatty"})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestNewJSONOutput(t *testing.T) {
	logger := New(Config{Level: "info", JSON: true})
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.WithField("session", "abc").Info("hello")

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "hello", doc["msg"])
	assert.Equal(t, "abc", doc["session"])
	assert.Equal(t, "info", doc["level"])
}

func TestNewTeesIntoLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "droid.log")
	logger := New(Config{Level: "info", File: path})

	logger.Info("written to both sinks")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to both sinks")
	assert.NotContains(t, string(data), "\033[", "file output must stay free of ANSI codes")
}

func formatEntry(t *testing.T, formatter *ConsoleFormatter, fields logrus.Fields, msg string) string {
	t.Helper()
	entry := logrus.New().WithFields(fields)
	entry.Message = msg
	entry.Level = logrus.InfoLevel
	entry.Time = time.Date(2025, 6, 1, 10, 20, 30, 0, time.UTC)

	out, err := formatter.Format(entry)
	require.NoError(t, err)
	return string(out)
}

func TestConsoleFormatterPlainOutput(t *testing.T) {
	formatter := &ConsoleFormatter{Timestamp: true}
	out := formatEntry(t, formatter, logrus.Fields{
		"ratio":   0.1234567,
		"elapsed": 1500 * time.Millisecond,
	}, "check done")

	assert.Contains(t, out, "2025-06-01 10:20:30.000 INFO check done")
	assert.Contains(t, out, "ratio=0.1235")
	assert.Contains(t, out, "elapsed=1.5s")
	assert.True(t, strings.Index(out, "elapsed=") < strings.Index(out, "ratio="),
		"fields are rendered in sorted key order")
}

func TestConsoleFormatterTruncatesLongPathsFromTheLeft(t *testing.T) {
	long := "/very/deep/session/output/" + strings.Repeat("x", 60) + "/states/screen_0001.png"
	out := formatEntry(t, &ConsoleFormatter{}, logrus.Fields{"path": long}, "saved")

	assert.Contains(t, out, "path=...")
	assert.Contains(t, out, "screen_0001.png", "the end of a path carries the file name")
}

func TestConsoleFormatterColors(t *testing.T) {
	formatter := &ConsoleFormatter{Colors: true}
	out := formatEntry(t, formatter, nil, "colored")
	assert.Contains(t, out, "\033[32mINFO\033[0m")
}
