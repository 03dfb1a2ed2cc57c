// Package npbridge is the flat embedding surface over the transport-control
// bridge: a process-wide default instance driven through plain functions and
// integer status codes, for hosts that bind this module through a thin FFI
// shim rather than the MQTT node.
//
// Functions returning int use the np status codes: 0 on success, negative on
// failure, with the detail available through GetLastError.
package npbridge

import (
	"sync"

	"go.uber.org/zap"

	transportcore "github.com/soren-m/now_playing/internal/modules/transport_core"
	transportsmtc "github.com/soren-m/now_playing/internal/modules/transport_smtc"
	"github.com/soren-m/now_playing/pkg/np"
)

var (
	mu     sync.Mutex
	bridge *transportcore.Bridge
	logger = zap.NewNop()

	// fallbackErr holds the last error raised before a bridge exists.
	fallbackErr string

	newDriver = platformDriver
)

func platformDriver() (transportcore.Driver, error) {
	return transportsmtc.NewDriver()
}

// SetLogger replaces the logger used by bridges created after the call.
func SetLogger(log *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if log != nil {
		logger = log
	}
}

// Initialize creates the native session. Repeated calls on an initialized
// bridge succeed without side effects. On success the last error is cleared.
func Initialize() int {
	mu.Lock()
	defer mu.Unlock()

	if bridge == nil {
		driver, err := newDriver()
		if err != nil {
			fallbackErr = err.Error()
			return np.StatusNativeError
		}
		bridge = transportcore.New(driver, logger)
	}
	if err := bridge.Initialize(); err != nil {
		return transportcore.Code(err)
	}
	fallbackErr = ""
	return np.StatusOK
}

// Shutdown tears the session down. Safe to call at any time, repeatedly.
func Shutdown() {
	mu.Lock()
	defer mu.Unlock()
	if bridge != nil {
		bridge.Shutdown()
	}
}

// IsInitialized reports whether the bridge is initialized.
func IsInitialized() bool {
	mu.Lock()
	defer mu.Unlock()
	return bridge != nil && bridge.Initialized()
}

// SetMediaType selects the metadata schema shown by the OS display.
func SetMediaType(mediaType np.MediaType) int {
	return call(func(b *transportcore.Bridge) error {
		return b.SetMediaType(mediaType)
	})
}

// SetMusicInfo stages music metadata. Nil arguments leave the corresponding
// field unchanged; pass a pointer to the empty string to clear one. Staged
// values become visible only after UpdateDisplay.
func SetMusicInfo(title, artist, album *string) int {
	return call(func(b *transportcore.Bridge) error {
		return b.SetMusicInfo(np.MusicInfo{Title: title, Artist: artist, Album: album})
	})
}

// SetThumbnailFromFile stages artwork referenced by a local path or file URI.
// An empty path clears the thumbnail.
func SetThumbnailFromFile(path string) int {
	return call(func(b *transportcore.Bridge) error {
		return b.SetThumbnailFile(path)
	})
}

// SetThumbnailFromMemory stages artwork from an image buffer. The MIME type
// is advisory. Empty data clears the thumbnail.
func SetThumbnailFromMemory(data []byte, mimeType string) int {
	return call(func(b *transportcore.Bridge) error {
		return b.SetThumbnailBytes(data, mimeType)
	})
}

// ClearThumbnail removes any staged artwork.
func ClearThumbnail() int {
	return call(func(b *transportcore.Bridge) error {
		return b.ClearThumbnail()
	})
}

// UpdateDisplay flushes all staged metadata to the OS shell.
func UpdateDisplay() int {
	return call(func(b *transportcore.Bridge) error {
		return b.UpdateDisplay()
	})
}

// SetPlaybackStatus sets the playback status shown by the OS.
func SetPlaybackStatus(status np.PlaybackStatus) int {
	return call(func(b *transportcore.Bridge) error {
		return b.SetPlaybackStatus(status)
	})
}

// GetPlaybackStatus returns the current playback status, degrading to
// PlaybackClosed when uninitialized or on native failure.
func GetPlaybackStatus() np.PlaybackStatus {
	mu.Lock()
	b := bridge
	mu.Unlock()
	if b == nil {
		return np.PlaybackClosed
	}
	return b.PlaybackStatus()
}

// SetButtonEnabled toggles a transport button. Unknown buttons are a hard
// error.
func SetButtonEnabled(button np.Button, enabled bool) int {
	return call(func(b *transportcore.Bridge) error {
		return b.SetButtonEnabled(button, enabled)
	})
}

// IsButtonEnabled reports whether a button is enabled; unknown buttons and
// failures read as false.
func IsButtonEnabled(button np.Button) bool {
	mu.Lock()
	b := bridge
	mu.Unlock()
	if b == nil {
		return false
	}
	return b.ButtonEnabled(button)
}

// SetTimelineProperties pushes timeline properties in milliseconds. The seek
// range is forced equal to [startMS, endMS].
func SetTimelineProperties(startMS, endMS, positionMS int64) int {
	return call(func(b *transportcore.Bridge) error {
		return b.SetTimeline(startMS, endMS, positionMS)
	})
}

// OnButtonPressed registers the button-press callback. Last registration
// wins; nil deregisters. Registration works before Initialize.
func OnButtonPressed(fn func(np.Button)) {
	mu.Lock()
	defer mu.Unlock()
	if bridge == nil {
		ensureBridgeLocked()
	}
	if bridge != nil {
		bridge.OnButtonPressed(fn)
	}
}

// OnPositionChangeRequested registers the seek-request callback.
func OnPositionChangeRequested(fn func(positionMS int64)) {
	mu.Lock()
	defer mu.Unlock()
	if bridge == nil {
		ensureBridgeLocked()
	}
	if bridge != nil {
		bridge.OnPositionChangeRequested(fn)
	}
}

// GetLastError returns the message of the most recent failure, or the empty
// string. Successful operations other than Initialize do not clear it.
func GetLastError() string {
	mu.Lock()
	defer mu.Unlock()
	if bridge == nil {
		return fallbackErr
	}
	if msg := bridge.LastError(); msg != "" {
		return msg
	}
	return fallbackErr
}

// ClearError resets the error string.
func ClearError() {
	mu.Lock()
	defer mu.Unlock()
	fallbackErr = ""
	if bridge != nil {
		bridge.ClearLastError()
	}
}

// ensureBridgeLocked constructs the bridge so pre-Initialize callback
// registrations have somewhere to land. Driver construction failures are
// deferred to Initialize. Caller holds mu.
func ensureBridgeLocked() {
	driver, err := newDriver()
	if err != nil {
		return
	}
	bridge = transportcore.New(driver, logger)
}

// call runs op against the default bridge, recording a not-initialized
// failure when no bridge exists yet.
func call(op func(*transportcore.Bridge) error) int {
	mu.Lock()
	b := bridge
	mu.Unlock()

	if b == nil {
		mu.Lock()
		fallbackErr = transportcore.ErrNotInitialized.Error()
		mu.Unlock()
		return np.StatusNotInitialized
	}
	return transportcore.Code(op(b))
}
