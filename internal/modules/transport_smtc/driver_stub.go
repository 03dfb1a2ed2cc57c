//go:build !windows

package transportsmtc

import (
	"errors"

	"github.com/soren-m/now_playing/pkg/np"
)

// Driver is a stub on platforms without system media transport controls.
type Driver struct{}

var errUnsupported = errors.New("system media transport controls not supported on this platform")

// NewDriver returns an error on non-Windows platforms.
func NewDriver() (*Driver, error) {
	return nil, errUnsupported
}

func (d *Driver) Open() error             { return errUnsupported }
func (d *Driver) Close() error            { return errUnsupported }
func (d *Driver) SetEnabled(bool) error   { return errUnsupported }
func (d *Driver) SetPlaybackStatus(np.PlaybackStatus) error {
	return errUnsupported
}
func (d *Driver) PlaybackStatus() (np.PlaybackStatus, error) {
	return np.PlaybackClosed, errUnsupported
}
func (d *Driver) SetButtonEnabled(np.Button, bool) error { return errUnsupported }
func (d *Driver) ButtonEnabled(np.Button) (bool, error)  { return false, errUnsupported }
func (d *Driver) SetMediaType(np.MediaType) error        { return errUnsupported }
func (d *Driver) SetMusicInfo(np.MusicInfo) error        { return errUnsupported }
func (d *Driver) SetThumbnail(*np.Thumbnail) error       { return errUnsupported }
func (d *Driver) CommitDisplay() error                   { return errUnsupported }
func (d *Driver) SetTimeline(np.Timeline) error          { return errUnsupported }
func (d *Driver) SetButtonHandler(func(np.Button))       {}
func (d *Driver) SetSeekHandler(func(positionMS int64))  {}
