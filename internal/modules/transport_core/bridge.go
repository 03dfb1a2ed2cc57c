// Package transportcore implements the transport-control bridge engine over
// a pluggable native driver.
package transportcore

import (
	"sync"

	"go.uber.org/zap"

	"github.com/soren-m/now_playing/pkg/np"
)

// Driver is the capability interface over the OS media-transport subsystem.
// Display metadata follows a stage-then-commit protocol: the Set* display
// calls stage values and CommitDisplay flushes them to the OS shell in one
// step. Handlers are invoked on the driver's own delivery goroutine.
type Driver interface {
	Open() error
	Close() error
	SetEnabled(enabled bool) error

	SetPlaybackStatus(status np.PlaybackStatus) error
	PlaybackStatus() (np.PlaybackStatus, error)

	SetButtonEnabled(button np.Button, enabled bool) error
	ButtonEnabled(button np.Button) (bool, error)

	SetMediaType(mediaType np.MediaType) error
	SetMusicInfo(info np.MusicInfo) error
	SetThumbnail(thumb *np.Thumbnail) error
	CommitDisplay() error
	SetTimeline(timeline np.Timeline) error

	SetButtonHandler(fn func(np.Button))
	SetSeekHandler(fn func(positionMS int64))
}

// Bridge owns one transport-control session. All operations are serialized
// by a single lock; the bridge is effectively single-threaded-at-a-time from
// the caller's perspective. The zero value is not usable, construct with New.
type Bridge struct {
	mu          sync.Mutex
	driver      Driver
	log         *zap.Logger
	initialized bool
	lastErr     string

	onButton func(np.Button)
	onSeek   func(positionMS int64)
}

// New creates a bridge over the given driver. The driver is not opened
// until Initialize.
func New(driver Driver, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Bridge{driver: driver, log: log}
	driver.SetButtonHandler(b.relayButton)
	driver.SetSeekHandler(b.relaySeek)
	return b
}

// Initialize opens the native session, applies the default button
// enablement and enables the transport controls. It is idempotent: when the
// bridge is already initialized it returns nil without touching the driver.
// On success the last error string is cleared.
func (b *Bridge) Initialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}

	if err := b.driver.Open(); err != nil {
		return b.fail(driverErr("open session", err))
	}

	// Play/pause and track navigation start enabled, stop starts disabled;
	// the remaining buttons keep the OS default.
	defaults := []struct {
		button  np.Button
		enabled bool
	}{
		{np.ButtonPlay, true},
		{np.ButtonPause, true},
		{np.ButtonNext, true},
		{np.ButtonPrevious, true},
		{np.ButtonStop, false},
	}
	for _, d := range defaults {
		if err := b.driver.SetButtonEnabled(d.button, d.enabled); err != nil {
			b.closeDriverLocked()
			return b.fail(driverErr("set default buttons", err))
		}
	}

	if err := b.driver.SetMediaType(np.MediaMusic); err != nil {
		b.closeDriverLocked()
		return b.fail(driverErr("set media type", err))
	}

	if err := b.driver.SetEnabled(true); err != nil {
		b.closeDriverLocked()
		return b.fail(driverErr("enable controls", err))
	}

	b.initialized = true
	b.lastErr = ""
	b.log.Info("transport bridge initialized")
	return nil
}

// Shutdown tears the session down. Every step is best-effort: a failing
// step never prevents the remaining steps from running, and the bridge
// always ends up uninitialized. Calling Shutdown on an uninitialized bridge
// is a no-op.
func (b *Bridge) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return
	}

	if err := b.driver.SetEnabled(false); err != nil {
		b.log.Debug("disable controls during shutdown", zap.Error(err))
	}
	b.closeDriverLocked()

	b.onButton = nil
	b.onSeek = nil
	b.initialized = false
	b.log.Info("transport bridge shut down")
}

func (b *Bridge) closeDriverLocked() {
	if err := b.driver.Close(); err != nil {
		b.log.Debug("close driver", zap.Error(err))
	}
}

// Initialized reports whether Initialize has succeeded and Shutdown has not
// yet run.
func (b *Bridge) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

// SetMediaType selects the metadata schema shown by the OS display.
func (b *Bridge) SetMediaType(mediaType np.MediaType) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return b.fail(ErrNotInitialized)
	}
	if err := b.driver.SetMediaType(mediaType); err != nil {
		return b.fail(driverErr("set media type", err))
	}
	return nil
}

// SetMusicInfo stages music metadata. Nil fields leave the corresponding
// display property untouched; stage an empty string to clear a field. The
// staged values become visible only after UpdateDisplay.
func (b *Bridge) SetMusicInfo(info np.MusicInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return b.fail(ErrNotInitialized)
	}
	if err := b.driver.SetMusicInfo(info); err != nil {
		return b.fail(driverErr("set music info", err))
	}
	return nil
}

// SetThumbnailFile stages artwork referenced by a local URI. An empty path
// clears the thumbnail.
func (b *Bridge) SetThumbnailFile(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return b.fail(ErrNotInitialized)
	}
	var thumb *np.Thumbnail
	if path != "" {
		thumb = &np.Thumbnail{URI: path}
	}
	if err := b.driver.SetThumbnail(thumb); err != nil {
		return b.fail(driverErr("set thumbnail", err))
	}
	return nil
}

// SetThumbnailBytes stages artwork from an in-memory buffer. Nil or empty
// data clears the thumbnail. The MIME type is recorded but advisory: the OS
// layer infers the encoding from content.
func (b *Bridge) SetThumbnailBytes(data []byte, mimeType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return b.fail(ErrNotInitialized)
	}
	var thumb *np.Thumbnail
	if len(data) > 0 {
		buf := make([]byte, len(data))
		copy(buf, data)
		thumb = &np.Thumbnail{Data: buf, MIME: mimeType}
	}
	if err := b.driver.SetThumbnail(thumb); err != nil {
		return b.fail(driverErr("set thumbnail", err))
	}
	return nil
}

// ClearThumbnail removes any staged artwork.
func (b *Bridge) ClearThumbnail() error {
	return b.SetThumbnailFile("")
}

// UpdateDisplay flushes all staged metadata to the OS shell. Setter calls
// alone do not make changes visible; batching several setters behind a
// single flush avoids partial states in the OS overlay.
func (b *Bridge) UpdateDisplay() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return b.fail(ErrNotInitialized)
	}
	if err := b.driver.CommitDisplay(); err != nil {
		return b.fail(driverErr("update display", err))
	}
	return nil
}

// SetPlaybackStatus sets the playback status shown by the OS.
func (b *Bridge) SetPlaybackStatus(status np.PlaybackStatus) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return b.fail(ErrNotInitialized)
	}
	if err := b.driver.SetPlaybackStatus(status); err != nil {
		return b.fail(driverErr("set playback status", err))
	}
	return nil
}

// PlaybackStatus returns the current playback status. It degrades to
// PlaybackClosed when the bridge is uninitialized or the driver fails; it
// never reports an error.
func (b *Bridge) PlaybackStatus() np.PlaybackStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return np.PlaybackClosed
	}
	status, err := b.driver.PlaybackStatus()
	if err != nil {
		return np.PlaybackClosed
	}
	return status
}

// SetButtonEnabled toggles a transport button. Buttons without plumbing
// (record, channel-up, channel-down) and out-of-range values are a hard
// error, unlike the soft-false getter.
func (b *Bridge) SetButtonEnabled(button np.Button, enabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return b.fail(ErrNotInitialized)
	}
	if !settable(button) {
		return b.fail(ErrUnknownButton)
	}
	if err := b.driver.SetButtonEnabled(button, enabled); err != nil {
		return b.fail(driverErr("set button", err))
	}
	return nil
}

// ButtonEnabled reports whether a button is enabled. Unknown buttons,
// driver failures and the uninitialized state all read as false.
func (b *Bridge) ButtonEnabled(button np.Button) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized || !settable(button) {
		return false
	}
	enabled, err := b.driver.ButtonEnabled(button)
	if err != nil {
		return false
	}
	return enabled
}

// SetTimeline pushes timeline properties. The seek range is forced equal to
// [start, end]; the position is passed through without local validation.
func (b *Bridge) SetTimeline(startMS, endMS, positionMS int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return b.fail(ErrNotInitialized)
	}
	if err := b.driver.SetTimeline(np.NewTimeline(startMS, endMS, positionMS)); err != nil {
		return b.fail(driverErr("set timeline", err))
	}
	return nil
}

// OnButtonPressed registers the button-press callback. Last registration
// wins; nil deregisters. The callback runs synchronously on the driver's
// delivery goroutine.
func (b *Bridge) OnButtonPressed(fn func(np.Button)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onButton = fn
}

// OnPositionChangeRequested registers the seek-request callback. The slot
// follows the same last-write-wins rules as OnButtonPressed; whether any
// events arrive depends on the driver.
func (b *Bridge) OnPositionChangeRequested(fn func(positionMS int64)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onSeek = fn
}

// LastError returns the message of the most recent failure. Successful
// operations do not clear it; only Initialize success does.
func (b *Bridge) LastError() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// ClearLastError resets the error string.
func (b *Bridge) ClearLastError() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastErr = ""
}

// fail records err as the last error and returns it. Caller holds b.mu.
func (b *Bridge) fail(err error) error {
	b.lastErr = err.Error()
	return err
}

// relayButton delivers a driver button event to the registered callback on
// the delivery goroutine. The lock is held only to read the slot so a
// callback may call back into the bridge.
func (b *Bridge) relayButton(button np.Button) {
	b.mu.Lock()
	fn := b.onButton
	b.mu.Unlock()
	if fn != nil {
		fn(button)
	}
}

func (b *Bridge) relaySeek(positionMS int64) {
	b.mu.Lock()
	fn := b.onSeek
	b.mu.Unlock()
	if fn != nil {
		fn(positionMS)
	}
}

// settable reports whether a button has setter plumbing. Record and the
// channel buttons are declared for wire compatibility only.
func settable(button np.Button) bool {
	switch button {
	case np.ButtonPlay, np.ButtonPause, np.ButtonStop,
		np.ButtonFastForward, np.ButtonRewind,
		np.ButtonNext, np.ButtonPrevious:
		return true
	default:
		return false
	}
}
