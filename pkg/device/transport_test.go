/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: transport_test.go
Description: Tests for the ADB transport's output parsing and argument
construction. Command execution itself is exercised through fakes in the
sampler tests since it requires a connected device.
*/

package device

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestParseFocusedComponentWindowFocus(t *testing.T) {
	dump := `WINDOW MANAGER WINDOWS (dumpsys window windows)
  Window #7 Window{41ba8ab0 u0 StatusBar}:
  mCurrentFocus=Window{8f0a78 u0 com.example.app/com.example.app.MainActivity}
  mFocusedApp=AppWindowToken{9349ef7 token=Token{a64f992}}`

	component := parseFocusedComponent([]byte(dump))
	assert.Equal(t, "com.example.app/com.example.app.MainActivity", component)
}

func TestParseFocusedComponentResumedActivity(t *testing.T) {
	dump := `ACTIVITY MANAGER ACTIVITIES (dumpsys activity activities)
  Display #0 (activities from top to bottom):
    mResumedActivity: ActivityRecord{f74bc85 u0 com.example.app/.MainActivity t12}`

	component := parseFocusedComponent([]byte(dump))
	assert.Equal(t, "com.example.app/.MainActivity", component)
}

func TestParseFocusedComponentNoFocus(t *testing.T) {
	dump := `  mCurrentFocus=null
  mFocusedApp=null`

	assert.Empty(t, parseFocusedComponent([]byte(dump)))
	assert.Empty(t, parseFocusedComponent(nil))
}

func TestParseFocusedComponentLauncher(t *testing.T) {
	dump := `  mCurrentFocus=Window{d4c1f30 u0 com.android.launcher3/com.android.launcher3.Launcher}`

	component := parseFocusedComponent([]byte(dump))
	assert.Equal(t, "com.android.launcher3/com.android.launcher3.Launcher", component)
}

func TestDeviceArgsSerialSelection(t *testing.T) {
	bound := NewADB("emulator-5554", time.Second, time.Second, testLogger())
	assert.Equal(t, []string{"-s", "emulator-5554", "shell", "ls"}, bound.deviceArgs("shell", "ls"))
	assert.Equal(t, "emulator-5554", bound.Serial())

	unbound := NewADB("", time.Second, time.Second, testLogger())
	assert.Equal(t, []string{"shell", "ls"}, unbound.deviceArgs("shell", "ls"))
}

func TestNewADBTimeoutDefaults(t *testing.T) {
	a := NewADB("x", 0, 0, testLogger())
	assert.Equal(t, 5*time.Second, a.cmdTimeout)
	assert.Equal(t, 10*time.Second, a.slowTimeout)
}
