/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: appinfo_test.go
Description: Tests for app identity loading and component composition.
*/

package session

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

var testFallback = AppInfo{Package: "com.fallback.app", MainActivity: "MainActivity"}

func TestLoadAppInfoFromDriverFile(t *testing.T) {
	dir := t.TempDir()
	body := `{"package": "com.amaze.filemanager", "main_activity": "com.amaze.filemanager.activities.MainActivity"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, AppInfoName), []byte(body), 0644))

	info := LoadAppInfo(dir, testFallback, quietLogger())
	assert.Equal(t, "com.amaze.filemanager", info.Package)
	assert.Equal(t, "com.amaze.filemanager.activities.MainActivity", info.MainActivity)
}

func TestLoadAppInfoMissingUsesFallback(t *testing.T) {
	info := LoadAppInfo(t.TempDir(), testFallback, quietLogger())
	assert.Equal(t, testFallback, info)
}

func TestLoadAppInfoMalformedUsesFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, AppInfoName), []byte("{nope"), 0644))

	info := LoadAppInfo(dir, testFallback, quietLogger())
	assert.Equal(t, testFallback, info)
}

func TestLoadAppInfoFillsMissingFields(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, AppInfoName),
		[]byte(`{"package": "com.demo.app"}`), 0644))

	info := LoadAppInfo(dir, testFallback, quietLogger())
	assert.Equal(t, "com.demo.app", info.Package)
	assert.Equal(t, "MainActivity", info.MainActivity, "missing activity comes from the fallback")
}

func TestComponentComposition(t *testing.T) {
	bare := AppInfo{Package: "com.demo.app", MainActivity: "MainActivity"}
	assert.Equal(t, "com.demo.app/com.demo.app.MainActivity", bare.Component(),
		"bare class names get the package prefix")

	qualified := AppInfo{Package: "com.demo.app", MainActivity: "com.demo.app.ui.MainActivity"}
	assert.Equal(t, "com.demo.app/com.demo.app.ui.MainActivity", qualified.Component())

	relative := AppInfo{Package: "com.demo.app", MainActivity: ".MainActivity"}
	assert.Equal(t, "com.demo.app/.MainActivity", relative.Component())
}
