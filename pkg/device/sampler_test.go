/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: sampler_test.go
Description: Tests for the multi-strategy snapshot sampler using a fake
transport. Verifies strategy fallback order, the driver-state last resort,
retry exhaustion, and best-effort context attachment.
*/

package device

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleascm/akaylee-droid/pkg/interfaces"
)

// fakeTransport scripts per-method outcomes for sampler tests
type fakeTransport struct {
	screencapData  []byte
	screencapErr   error
	screencapCalls int
	pullErr        error
	pullCalls      int
	activity       string
	activityErr    error
	viewTree       []byte
	viewTreeErr    error
}

func (f *fakeTransport) Run(ctx context.Context, args ...string) ([]byte, error)   { return nil, nil }
func (f *fakeTransport) Shell(ctx context.Context, args ...string) ([]byte, error) { return nil, nil }
func (f *fakeTransport) InputKey(ctx context.Context, keycode string) error        { return nil }
func (f *fakeTransport) InputSwipe(ctx context.Context, x1, y1, x2, y2 int, d time.Duration) error {
	return nil
}
func (f *fakeTransport) SetOrientation(ctx context.Context, o interfaces.Orientation) error {
	return nil
}
func (f *fakeTransport) StartActivity(ctx context.Context, component string) error { return nil }
func (f *fakeTransport) ForceStop(ctx context.Context, pkg string) error           { return nil }
func (f *fakeTransport) Serial() string                                            { return "fake-0000" }

func (f *fakeTransport) ForegroundActivity(ctx context.Context) (string, error) {
	return f.activity, f.activityErr
}

func (f *fakeTransport) Screencap(ctx context.Context) ([]byte, error) {
	f.screencapCalls++
	return f.screencapData, f.screencapErr
}

func (f *fakeTransport) ScreencapToFile(ctx context.Context, localPath string) error {
	f.pullCalls++
	if f.pullErr != nil {
		return f.pullErr
	}
	return os.WriteFile(localPath, []byte("pulled-png"), 0644)
}

func (f *fakeTransport) DumpViewTree(ctx context.Context) ([]byte, error) {
	return f.viewTree, f.viewTreeErr
}

func newTestSampler(t *testing.T, transport interfaces.DeviceTransport, driverDir string) *Sampler {
	t.Helper()
	return NewSampler(transport, SamplerConfig{
		StateDir:       t.TempDir(),
		DriverStateDir: driverDir,
		Retries:        2,
		Backoff:        time.Millisecond,
	}, testLogger())
}

func TestCapturePreferredStrategy(t *testing.T) {
	transport := &fakeTransport{
		screencapData: []byte("direct-png"),
		activity:      "com.example.app/.MainActivity",
	}
	sampler := newTestSampler(t, transport, "")

	snapshot, err := sampler.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "exec-out", snapshot.Source)
	assert.Equal(t, "com.example.app/.MainActivity", snapshot.Activity)
	assert.NotEmpty(t, snapshot.ID)

	data, err := os.ReadFile(snapshot.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte("direct-png"), data)
}

func TestCaptureFallsBackToPull(t *testing.T) {
	transport := &fakeTransport{screencapErr: errors.New("exec-out mangled")}
	sampler := newTestSampler(t, transport, "")

	snapshot, err := sampler.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sdcard-pull", snapshot.Source)
	assert.Equal(t, 1, transport.screencapCalls, "fallback must not re-run earlier strategies")

	data, err := os.ReadFile(snapshot.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte("pulled-png"), data)
}

func TestCaptureFallsBackToDriverState(t *testing.T) {
	driverDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(driverDir, "screen_2026-01-01_100001.png"), []byte("old"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(driverDir, "screen_2026-01-01_100002.png"), []byte("newest"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(driverDir, "state.json"), []byte("{}"), 0644))

	transport := &fakeTransport{
		screencapErr: errors.New("device gone"),
		pullErr:      errors.New("device gone"),
	}
	sampler := newTestSampler(t, transport, driverDir)

	snapshot, err := sampler.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "driver-state", snapshot.Source)

	data, err := os.ReadFile(snapshot.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte("newest"), data, "must reuse the lexicographically newest driver screenshot")
}

func TestCaptureExhaustsRetryBudget(t *testing.T) {
	transport := &fakeTransport{
		screencapErr: errors.New("no device"),
		pullErr:      errors.New("no device"),
	}
	sampler := newTestSampler(t, transport, "")

	_, err := sampler.Capture(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, transport.screencapCalls, "each pass must retry the full strategy list")
	assert.Equal(t, 2, transport.pullCalls)
}

func TestCaptureContextAttachmentIsBestEffort(t *testing.T) {
	transport := &fakeTransport{
		screencapData: []byte("png"),
		activityErr:   errors.New("dumpsys busted"),
	}
	sampler := newTestSampler(t, transport, "")

	snapshot, err := sampler.Capture(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snapshot.Activity, "activity lookup failure must not fail the capture")
}

func TestCaptureHonorsCancellation(t *testing.T) {
	transport := &fakeTransport{
		screencapErr: errors.New("no device"),
		pullErr:      errors.New("no device"),
	}
	sampler := newTestSampler(t, transport, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sampler.Capture(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCaptureFilenamesSortByTime(t *testing.T) {
	transport := &fakeTransport{screencapData: []byte("png")}
	sampler := newTestSampler(t, transport, "")

	first, err := sampler.Capture(context.Background())
	require.NoError(t, err)
	second, err := sampler.Capture(context.Background())
	require.NoError(t, err)

	assert.Less(t, filepath.Base(first.Path), filepath.Base(second.Path))
}
