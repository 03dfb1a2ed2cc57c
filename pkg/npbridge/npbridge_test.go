package npbridge

import (
	"errors"
	"testing"

	transportcore "github.com/soren-m/now_playing/internal/modules/transport_core"
	"github.com/soren-m/now_playing/pkg/np"
)

// withMemoryDriver points the package-wide default instance at a fresh
// in-memory driver and restores the platform factory afterwards.
func withMemoryDriver(t *testing.T) *transportcore.MemoryDriver {
	t.Helper()
	driver := transportcore.NewMemoryDriver()
	mu.Lock()
	bridge = nil
	fallbackErr = ""
	newDriver = func() (transportcore.Driver, error) { return driver, nil }
	mu.Unlock()
	t.Cleanup(func() {
		Shutdown()
		mu.Lock()
		bridge = nil
		fallbackErr = ""
		newDriver = platformDriver
		mu.Unlock()
	})
	return driver
}

func TestLifecycle(t *testing.T) {
	withMemoryDriver(t)

	if code := SetPlaybackStatus(np.PlaybackPlaying); code != np.StatusNotInitialized {
		t.Fatalf("expected %d before initialize, got %d", np.StatusNotInitialized, code)
	}
	if msg := GetLastError(); msg != "not initialized" {
		t.Fatalf("unexpected last error %q", msg)
	}

	if code := Initialize(); code != np.StatusOK {
		t.Fatalf("initialize failed with %d: %s", code, GetLastError())
	}
	if !IsInitialized() {
		t.Fatalf("expected initialized")
	}
	if msg := GetLastError(); msg != "" {
		t.Fatalf("initialize did not clear last error: %q", msg)
	}
	if code := Initialize(); code != np.StatusOK {
		t.Fatalf("repeated initialize failed with %d", code)
	}

	Shutdown()
	if IsInitialized() {
		t.Fatalf("expected uninitialized after shutdown")
	}
	if code := UpdateDisplay(); code != np.StatusNotInitialized {
		t.Fatalf("expected %d after shutdown, got %d", np.StatusNotInitialized, code)
	}

	// The session can be brought back up.
	if code := Initialize(); code != np.StatusOK {
		t.Fatalf("reinitialize failed with %d", code)
	}
}

func TestDisplayFlow(t *testing.T) {
	driver := withMemoryDriver(t)
	if code := Initialize(); code != np.StatusOK {
		t.Fatalf("initialize failed with %d", code)
	}

	title := "Blue in Green"
	artist := "Miles Davis"
	if code := SetMusicInfo(&title, &artist, nil); code != np.StatusOK {
		t.Fatalf("set music info failed with %d", code)
	}
	if got := driver.Committed(); got.Title != "" {
		t.Fatalf("metadata committed before update display: %+v", got)
	}
	if code := UpdateDisplay(); code != np.StatusOK {
		t.Fatalf("update display failed with %d", code)
	}
	if got := driver.Committed(); got.Title != title || got.Artist != artist {
		t.Fatalf("unexpected committed display: %+v", got)
	}

	if code := SetThumbnailFromMemory([]byte{0xFF, 0xD8}, "image/jpeg"); code != np.StatusOK {
		t.Fatalf("set thumbnail failed with %d", code)
	}
	if driver.Staged().Thumbnail == nil {
		t.Fatalf("thumbnail not staged")
	}
	if code := ClearThumbnail(); code != np.StatusOK {
		t.Fatalf("clear thumbnail failed with %d", code)
	}
	if driver.Staged().Thumbnail != nil {
		t.Fatalf("thumbnail not cleared")
	}
}

func TestPlaybackAndButtons(t *testing.T) {
	withMemoryDriver(t)
	if code := Initialize(); code != np.StatusOK {
		t.Fatalf("initialize failed with %d", code)
	}

	if code := SetPlaybackStatus(np.PlaybackPaused); code != np.StatusOK {
		t.Fatalf("set playback failed with %d", code)
	}
	if got := GetPlaybackStatus(); got != np.PlaybackPaused {
		t.Fatalf("expected paused, got %v", got)
	}

	if !IsButtonEnabled(np.ButtonPlay) {
		t.Fatalf("expected play enabled by default")
	}
	if IsButtonEnabled(np.ButtonStop) {
		t.Fatalf("expected stop disabled by default")
	}
	if code := SetButtonEnabled(np.ButtonStop, true); code != np.StatusOK {
		t.Fatalf("enable stop failed with %d", code)
	}
	if !IsButtonEnabled(np.ButtonStop) {
		t.Fatalf("stop not enabled")
	}

	if code := SetButtonEnabled(np.ButtonRecord, true); code != np.StatusNotInitialized {
		t.Fatalf("expected %d for record, got %d", np.StatusNotInitialized, code)
	}
	if msg := GetLastError(); msg != "unknown button type" {
		t.Fatalf("unexpected last error %q", msg)
	}
	// The getter is soft where the setter is hard.
	if IsButtonEnabled(np.ButtonRecord) {
		t.Fatalf("record should read as disabled")
	}
}

func TestTimelinePinsSeekRange(t *testing.T) {
	driver := withMemoryDriver(t)
	if code := Initialize(); code != np.StatusOK {
		t.Fatalf("initialize failed with %d", code)
	}

	if code := SetTimelineProperties(0, 180_000, 45_000); code != np.StatusOK {
		t.Fatalf("set timeline failed with %d", code)
	}
	got := driver.Timeline()
	if got.MinSeekMS != 0 || got.MaxSeekMS != 180_000 || got.PositionMS != 45_000 {
		t.Fatalf("unexpected timeline: %+v", got)
	}
}

func TestCallbackBeforeInitialize(t *testing.T) {
	driver := withMemoryDriver(t)

	var pressed []np.Button
	OnButtonPressed(func(button np.Button) { pressed = append(pressed, button) })

	if code := Initialize(); code != np.StatusOK {
		t.Fatalf("initialize failed with %d", code)
	}
	driver.PressNative(int(np.ButtonPause))
	if len(pressed) != 1 || pressed[0] != np.ButtonPause {
		t.Fatalf("unexpected presses: %v", pressed)
	}

	// Nil deregisters.
	OnButtonPressed(nil)
	driver.PressNative(int(np.ButtonPause))
	if len(pressed) != 1 {
		t.Fatalf("deregistered callback still invoked")
	}
}

func TestDriverConstructionFailure(t *testing.T) {
	withMemoryDriver(t)
	mu.Lock()
	newDriver = func() (transportcore.Driver, error) {
		return nil, errors.New("no transport controls here")
	}
	mu.Unlock()

	if code := Initialize(); code != np.StatusNativeError {
		t.Fatalf("expected %d, got %d", np.StatusNativeError, code)
	}
	if msg := GetLastError(); msg != "no transport controls here" {
		t.Fatalf("unexpected last error %q", msg)
	}
	ClearError()
	if msg := GetLastError(); msg != "" {
		t.Fatalf("clear error left %q", msg)
	}
}
