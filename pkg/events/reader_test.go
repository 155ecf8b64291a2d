/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: reader_test.go
Description: Tests for the event directory poller. Verifies exactly-once
delivery, filename ordering, malformed-file handling, and tolerance of a
directory that does not exist yet.
*/

package events

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func writeEvent(t *testing.T, dir, name, eventType string) {
	t.Helper()
	body := `{"tag": "` + name + `", "event": {"event_type": "` + eventType + `"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestPollReturnsOnlyDelta(t *testing.T) {
	dir := t.TempDir()
	reader := NewReader(dir, quietLogger())

	writeEvent(t, dir, "event_2026-01-01_100001.json", "touch")
	writeEvent(t, dir, "event_2026-01-01_100002.json", "scroll")

	first := reader.Poll()
	require.Len(t, first, 2)
	assert.Equal(t, "event_2026-01-01_100001.json", first[0].File)
	assert.Equal(t, KindTouch, first[0].Kind)
	assert.Equal(t, KindScroll, first[1].Kind)

	assert.Empty(t, reader.Poll(), "a second poll with no new files must return nothing")

	writeEvent(t, dir, "event_2026-01-01_100003.json", "key")
	second := reader.Poll()
	require.Len(t, second, 1)
	assert.Equal(t, KindKey, second[0].Kind)
}

func TestPollSortsByFilename(t *testing.T) {
	dir := t.TempDir()
	reader := NewReader(dir, quietLogger())

	writeEvent(t, dir, "event_2026-01-01_100003.json", "touch")
	writeEvent(t, dir, "event_2026-01-01_100001.json", "key")
	writeEvent(t, dir, "event_2026-01-01_100002.json", "swipe")

	records := reader.Poll()
	require.Len(t, records, 3)
	assert.Equal(t, KindKey, records[0].Kind)
	assert.Equal(t, KindSwipe, records[1].Kind)
	assert.Equal(t, KindTouch, records[2].Kind)
}

func TestPollSkipsMalformedOnce(t *testing.T) {
	dir := t.TempDir()
	reader := NewReader(dir, quietLogger())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{nope"), 0644))
	writeEvent(t, dir, "good.json", "touch")

	records := reader.Poll()
	require.Len(t, records, 1)
	assert.Equal(t, "good.json", records[0].File)

	assert.Empty(t, reader.Poll(), "a malformed file must never be retried")
	assert.Equal(t, 2, reader.SeenCount(), "malformed files still count as consumed")
}

func TestPollIgnoresNonEventFiles(t *testing.T) {
	dir := t.TempDir()
	reader := NewReader(dir, quietLogger())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0755))
	writeEvent(t, dir, "real.json", "manual")

	records := reader.Poll()
	require.Len(t, records, 1)
	assert.Equal(t, KindManual, records[0].Kind)
}

func TestPollMissingDirectory(t *testing.T) {
	reader := NewReader(filepath.Join(t.TempDir(), "not_created_yet"), quietLogger())
	assert.Empty(t, reader.Poll(), "an absent event directory is an empty delta, not an error")
}

func TestParseRecordBareDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bare.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"event_type": "long_touch"}`), 0644))

	record, err := ParseRecord(path)
	require.NoError(t, err)
	assert.Equal(t, KindLongTouch, record.Kind)
	assert.Equal(t, "bare.json", record.File)
}

func TestParseRecordMissingKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "odd.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tag": "x"}`), 0644))

	record, err := ParseRecord(path)
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, record.Kind)
}
