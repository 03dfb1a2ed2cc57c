package transportcore

import (
	"errors"
	"sync"

	"github.com/soren-m/now_playing/pkg/np"
)

// DisplayProps is the display-updater state of a MemoryDriver: media type,
// music metadata and artwork.
type DisplayProps struct {
	MediaType np.MediaType
	Title     string
	Artist    string
	Album     string
	Thumbnail *np.Thumbnail
}

// MemoryDriver is a fully functional in-process backend. It models the
// native display updater's stage-then-commit behavior and lets callers
// simulate inbound OS events, which makes it the test backend and the
// `--driver memory` backend of npd.
type MemoryDriver struct {
	mu        sync.Mutex
	open      bool
	enabled   bool
	status    np.PlaybackStatus
	buttons   map[np.Button]bool
	staged    DisplayProps
	committed DisplayProps
	timeline  np.Timeline
	onButton  func(np.Button)
	onSeek    func(positionMS int64)
}

// NewMemoryDriver creates a closed in-memory driver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{buttons: map[np.Button]bool{}}
}

func (d *MemoryDriver) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return errors.New("session already open")
	}
	d.open = true
	d.enabled = false
	d.status = np.PlaybackClosed
	d.buttons = map[np.Button]bool{}
	d.staged = DisplayProps{}
	d.committed = DisplayProps{}
	d.timeline = np.Timeline{}
	return nil
}

func (d *MemoryDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	return nil
}

func (d *MemoryDriver) SetEnabled(enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return errors.New("session not open")
	}
	d.enabled = enabled
	return nil
}

func (d *MemoryDriver) SetPlaybackStatus(status np.PlaybackStatus) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return errors.New("session not open")
	}
	d.status = status
	return nil
}

func (d *MemoryDriver) PlaybackStatus() (np.PlaybackStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return np.PlaybackClosed, errors.New("session not open")
	}
	return d.status, nil
}

func (d *MemoryDriver) SetButtonEnabled(button np.Button, enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return errors.New("session not open")
	}
	d.buttons[button] = enabled
	return nil
}

func (d *MemoryDriver) ButtonEnabled(button np.Button) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return false, errors.New("session not open")
	}
	return d.buttons[button], nil
}

func (d *MemoryDriver) SetMediaType(mediaType np.MediaType) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return errors.New("session not open")
	}
	d.staged.MediaType = mediaType
	return nil
}

func (d *MemoryDriver) SetMusicInfo(info np.MusicInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return errors.New("session not open")
	}
	if info.Title != nil {
		d.staged.Title = *info.Title
	}
	if info.Artist != nil {
		d.staged.Artist = *info.Artist
	}
	if info.Album != nil {
		d.staged.Album = *info.Album
	}
	return nil
}

func (d *MemoryDriver) SetThumbnail(thumb *np.Thumbnail) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return errors.New("session not open")
	}
	d.staged.Thumbnail = thumb
	return nil
}

func (d *MemoryDriver) CommitDisplay() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return errors.New("session not open")
	}
	d.committed = d.staged
	return nil
}

func (d *MemoryDriver) SetTimeline(timeline np.Timeline) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return errors.New("session not open")
	}
	d.timeline = timeline
	return nil
}

func (d *MemoryDriver) SetButtonHandler(fn func(np.Button)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onButton = fn
}

func (d *MemoryDriver) SetSeekHandler(fn func(positionMS int64)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSeek = fn
}

// PressNative simulates a native button-press notification carrying the
// OS-level button identifier. Identifiers without a mapping (record and the
// channel buttons included) are dropped without invoking any handler,
// mirroring the native relay.
func (d *MemoryDriver) PressNative(id int) {
	button, ok := buttonFromNative(id)
	if !ok {
		return
	}
	d.mu.Lock()
	fn := d.onButton
	deliver := d.open && d.enabled
	d.mu.Unlock()
	if deliver && fn != nil {
		fn(button)
	}
}

// RequestSeek simulates a native position-change request.
func (d *MemoryDriver) RequestSeek(positionMS int64) {
	d.mu.Lock()
	fn := d.onSeek
	deliver := d.open && d.enabled
	d.mu.Unlock()
	if deliver && fn != nil {
		fn(positionMS)
	}
}

// Staged returns the display properties staged since the last commit.
func (d *MemoryDriver) Staged() DisplayProps {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.staged
}

// Committed returns the display properties flushed by the last commit.
func (d *MemoryDriver) Committed() DisplayProps {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.committed
}

// Timeline returns the last pushed timeline properties.
func (d *MemoryDriver) Timeline() np.Timeline {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timeline
}

// Enabled reports whether the controls object is enabled.
func (d *MemoryDriver) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

// buttonFromNative maps a native button identifier to the public
// enumeration. Only the seven relayed buttons have a mapping.
func buttonFromNative(id int) (np.Button, bool) {
	switch np.Button(id) {
	case np.ButtonPlay, np.ButtonPause, np.ButtonStop,
		np.ButtonFastForward, np.ButtonRewind,
		np.ButtonNext, np.ButtonPrevious:
		return np.Button(id), true
	default:
		return 0, false
	}
}
