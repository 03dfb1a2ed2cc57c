//go:build windows

package transportsmtc

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/go-ole/go-ole"

	"github.com/soren-m/now_playing/pkg/np"
)

// Driver talks to the Windows System Media Transport Controls through a
// MediaPlayer session. The multithreaded COM apartment is initialized on
// open and torn down on close only when this driver owned the
// initialization; a host that already runs its own apartment (a game
// engine, typically) is left alone.
type Driver struct {
	mu            sync.Mutex
	open          bool
	ownsApartment bool

	player  *ole.IUnknown // MediaPlayer (IInspectable)
	smtc    *ole.IUnknown // ISystemMediaTransportControls
	smtc2   *ole.IUnknown // ISystemMediaTransportControls2
	updater *ole.IUnknown // display updater
	music   *ole.IUnknown // IMusicDisplayProperties
	music2  *ole.IUnknown // IMusicDisplayProperties2

	sink     *buttonPressedSink
	token    int64
	onButton func(np.Button)
	onSeek   func(positionMS int64)
}

var errNotOpen = errors.New("session not open")

// NewDriver creates a closed SMTC driver.
func NewDriver() (*Driver, error) {
	return &Driver{}, nil
}

// Open initializes the apartment, creates the media player session with
// command auto-handling disabled, and registers the button-press sink.
func (d *Driver) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.open {
		return errors.New("session already open")
	}

	switch err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); {
	case err == nil:
		d.ownsApartment = true
	case isHResult(err, hrSFalse), isHResult(err, hrRPCChangedMode):
		// Already initialized on this thread, possibly in STA mode. Both
		// are workable; we just must not uninitialize on close.
		d.ownsApartment = false
	default:
		return fmt.Errorf("initialize apartment: %w", err)
	}

	if err := d.openSessionLocked(); err != nil {
		d.closeLocked()
		return err
	}
	d.open = true
	return nil
}

func (d *Driver) openSessionLocked() error {
	player, err := activate(classMediaPlayer)
	if err != nil {
		return err
	}
	d.player = player

	// Forward button presses to the host instead of letting the player
	// auto-execute them against its (empty) source.
	player3, err := queryInterface(player, iidMediaPlayer3)
	if err != nil {
		return err
	}
	defer release(player3)
	manager, err := getObject(player3, slotGetCommandManager, "get command manager")
	if err != nil {
		return err
	}
	defer release(manager)
	if err := putBool(manager, slotPutManagerIsEnabled, false, "disable command manager"); err != nil {
		return err
	}

	player2, err := queryInterface(player, iidMediaPlayer2)
	if err != nil {
		return err
	}
	defer release(player2)
	smtcObj, err := getObject(player2, slotGetTransportControls, "get transport controls")
	if err != nil {
		return err
	}
	d.smtc, err = queryInterface(smtcObj, iidTransportControls)
	release(smtcObj)
	if err != nil {
		return err
	}
	d.smtc2, err = queryInterface(d.smtc, iidTransportControls2)
	if err != nil {
		return err
	}

	updaterObj, err := getObject(d.smtc, slotGetDisplayUpdater, "get display updater")
	if err != nil {
		return err
	}
	d.updater, err = queryInterface(updaterObj, iidDisplayUpdater)
	release(updaterObj)
	if err != nil {
		return err
	}

	musicObj, err := getObject(d.updater, slotGetMusicProperties, "get music properties")
	if err != nil {
		return err
	}
	d.music, err = queryInterface(musicObj, iidMusicProperties)
	release(musicObj)
	if err != nil {
		return err
	}
	d.music2, err = queryInterface(d.music, iidMusicProperties2)
	if err != nil {
		return err
	}

	d.sink = newButtonPressedSink(d.dispatchButton)
	hr := comCall(d.smtc, slotAddButtonPressed,
		uintptr(unsafe.Pointer(d.sink)),
		uintptr(unsafe.Pointer(&d.token)))
	if err := hr.errorf("register button sink"); err != nil {
		return err
	}
	return nil
}

// Close tears the session down. Every step is best-effort.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLocked()
	return nil
}

func (d *Driver) closeLocked() {
	if d.smtc != nil && d.sink != nil {
		_ = comCall(d.smtc, slotRemoveButtonPressed, uintptr(d.token))
	}
	d.sink = nil
	d.token = 0

	release(d.music2)
	release(d.music)
	release(d.updater)
	release(d.smtc2)
	release(d.smtc)
	d.music2, d.music, d.updater, d.smtc2, d.smtc = nil, nil, nil, nil, nil

	if d.player != nil {
		if closable, err := queryInterface(d.player, iidClosable); err == nil {
			_ = comCall(closable, slotClose)
			release(closable)
		}
		release(d.player)
		d.player = nil
	}

	if d.ownsApartment {
		ole.CoUninitialize()
		d.ownsApartment = false
	}
	d.open = false
}

func (d *Driver) SetEnabled(enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return errNotOpen
	}
	return putBool(d.smtc, slotPutIsEnabled, enabled, "set controls enabled")
}

func (d *Driver) SetPlaybackStatus(status np.PlaybackStatus) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return errNotOpen
	}
	return putInt32(d.smtc, slotPutPlaybackStatus, nativeStatus(status), "set playback status")
}

func (d *Driver) PlaybackStatus() (np.PlaybackStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return np.PlaybackClosed, errNotOpen
	}
	native, err := getInt32(d.smtc, slotGetPlaybackStatus, "get playback status")
	if err != nil {
		return np.PlaybackClosed, err
	}
	return statusFromNative(native), nil
}

func (d *Driver) SetButtonEnabled(button np.Button, enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return errNotOpen
	}
	_, put, ok := buttonSlots(button)
	if !ok {
		return fmt.Errorf("button %v has no native plumbing", button)
	}
	return putBool(d.smtc, put, enabled, "set button "+button.String())
}

func (d *Driver) ButtonEnabled(button np.Button) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return false, errNotOpen
	}
	get, _, ok := buttonSlots(button)
	if !ok {
		return false, nil
	}
	return getBool(d.smtc, get, "get button "+button.String())
}

func (d *Driver) SetMediaType(mediaType np.MediaType) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return errNotOpen
	}
	return putInt32(d.updater, slotPutType, int32(mediaType), "set media type")
}

func (d *Driver) SetMusicInfo(info np.MusicInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return errNotOpen
	}
	if info.Title != nil {
		if err := putString(d.music, slotPutTitle, *info.Title, "set title"); err != nil {
			return err
		}
	}
	if info.Artist != nil {
		if err := putString(d.music, slotPutArtist, *info.Artist, "set artist"); err != nil {
			return err
		}
	}
	if info.Album != nil {
		if err := putString(d.music2, slotPutAlbumTitle, *info.Album, "set album"); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) SetThumbnail(thumb *np.Thumbnail) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return errNotOpen
	}
	if thumb == nil {
		return comCall(d.updater, slotPutThumbnail, 0).errorf("clear thumbnail")
	}
	// The MIME hint is advisory; the shell sniffs the stream content.
	if len(thumb.Data) > 0 {
		return d.setThumbnailBytesLocked(thumb.Data)
	}
	return d.setThumbnailURILocked(thumb.URI)
}

func (d *Driver) setThumbnailURILocked(uri string) error {
	factory, err := activationFactory(classUri, iidUriFactory)
	if err != nil {
		return err
	}
	defer release(factory)

	hs, err := ole.NewHString(uri)
	if err != nil {
		return fmt.Errorf("uri string: %w", err)
	}
	defer ole.DeleteHString(hs)

	var uriObj *ole.IUnknown
	hr := comCall(factory, slotCreateUri, uintptr(hs), uintptr(unsafe.Pointer(&uriObj)))
	if err := hr.errorf("create uri"); err != nil {
		return err
	}
	defer release(uriObj)

	statics, err := activationFactory(classStreamReference, iidStreamRefStatics)
	if err != nil {
		return err
	}
	defer release(statics)

	var ref *ole.IUnknown
	hr = comCall(statics, slotCreateFromUri,
		uintptr(unsafe.Pointer(uriObj)), uintptr(unsafe.Pointer(&ref)))
	if err := hr.errorf("stream reference from uri"); err != nil {
		return err
	}
	defer release(ref)

	return comCall(d.updater, slotPutThumbnail, uintptr(unsafe.Pointer(ref))).errorf("set thumbnail")
}

func (d *Driver) setThumbnailBytesLocked(data []byte) error {
	stream, err := activate(classMemoryStream)
	if err != nil {
		return err
	}
	defer release(stream)

	var output *ole.IUnknown
	hr := comCall(stream, slotGetOutputStreamAt, 0, uintptr(unsafe.Pointer(&output)))
	if err := hr.errorf("get output stream"); err != nil {
		return err
	}
	defer release(output)

	writerFactory, err := activationFactory(classDataWriter, iidDataWriterFactory)
	if err != nil {
		return err
	}
	defer release(writerFactory)

	var writer *ole.IUnknown
	hr = comCall(writerFactory, 6, uintptr(unsafe.Pointer(output)), uintptr(unsafe.Pointer(&writer)))
	if err := hr.errorf("create data writer"); err != nil {
		return err
	}
	defer release(writer)

	hr = comCall(writer, slotWriteBytes, uintptr(len(data)), uintptr(unsafe.Pointer(&data[0])))
	if err := hr.errorf("write thumbnail bytes"); err != nil {
		return err
	}

	var storeOp *ole.IUnknown
	hr = comCall(writer, slotStoreAsync, uintptr(unsafe.Pointer(&storeOp)))
	if err := hr.errorf("store thumbnail bytes"); err != nil {
		return err
	}
	defer release(storeOp)
	if err := awaitAsync(storeOp, "store thumbnail bytes"); err != nil {
		return err
	}

	var detached *ole.IUnknown
	hr = comCall(writer, slotDetachStream, uintptr(unsafe.Pointer(&detached)))
	if err := hr.errorf("detach stream"); err != nil {
		return err
	}
	release(detached)

	if err := comCall(stream, slotStreamSeek, 0).errorf("rewind stream"); err != nil {
		return err
	}

	statics, err := activationFactory(classStreamReference, iidStreamRefStatics)
	if err != nil {
		return err
	}
	defer release(statics)

	var ref *ole.IUnknown
	hr = comCall(statics, slotCreateFromStream,
		uintptr(unsafe.Pointer(stream)), uintptr(unsafe.Pointer(&ref)))
	if err := hr.errorf("stream reference from stream"); err != nil {
		return err
	}
	defer release(ref)

	return comCall(d.updater, slotPutThumbnail, uintptr(unsafe.Pointer(ref))).errorf("set thumbnail")
}

func (d *Driver) CommitDisplay() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return errNotOpen
	}
	return comCall(d.updater, slotUpdate).errorf("update display")
}

func (d *Driver) SetTimeline(timeline np.Timeline) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return errNotOpen
	}

	propsObj, err := activate(classTimelineProperties)
	if err != nil {
		return err
	}
	defer release(propsObj)
	props, err := queryInterface(propsObj, iidTimelineProperties)
	if err != nil {
		return err
	}
	defer release(props)

	steps := []struct {
		slot uintptr
		ms   int64
		op   string
	}{
		{slotPutStartTime, timeline.StartMS, "set start time"},
		{slotPutEndTime, timeline.EndMS, "set end time"},
		{slotPutMinSeekTime, timeline.MinSeekMS, "set min seek time"},
		{slotPutMaxSeekTime, timeline.MaxSeekMS, "set max seek time"},
		{slotPutPosition, timeline.PositionMS, "set position"},
	}
	for _, s := range steps {
		if err := putTimeSpan(props, s.slot, msToDuration(s.ms), s.op); err != nil {
			return err
		}
	}

	hr := comCall(d.smtc2, slotUpdateTimelineProperties, uintptr(unsafe.Pointer(props)))
	return hr.errorf("update timeline properties")
}

// SetButtonHandler registers the relay target for native button presses.
func (d *Driver) SetButtonHandler(fn func(np.Button)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onButton = fn
}

// SetSeekHandler stores the seek relay target. The native
// position-change-requested event is intentionally not registered, so the
// slot never fires on this backend.
func (d *Driver) SetSeekHandler(fn func(positionMS int64)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSeek = fn
}

// dispatchButton runs on the OS event delivery thread. Identifiers outside
// the seven relayed buttons are dropped.
func (d *Driver) dispatchButton(nativeButton int32) {
	button, ok := buttonFromNativeID(nativeButton)
	if !ok {
		return
	}
	d.mu.Lock()
	fn := d.onButton
	d.mu.Unlock()
	if fn != nil {
		fn(button)
	}
}

func isHResult(err error, hr hresult) bool {
	var oleErr *ole.OleError
	if errors.As(err, &oleErr) {
		return hresult(oleErr.Code()) == hr
	}
	return false
}

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// nativeStatus maps to the OS MediaPlaybackStatus enumeration
// (Closed, Changing, Stopped, Playing, Paused).
func nativeStatus(status np.PlaybackStatus) int32 {
	switch status {
	case np.PlaybackClosed:
		return 0
	case np.PlaybackChanging:
		return 1
	case np.PlaybackStopped:
		return 2
	case np.PlaybackPlaying:
		return 3
	case np.PlaybackPaused:
		return 4
	default:
		return 2
	}
}

func statusFromNative(native int32) np.PlaybackStatus {
	switch native {
	case 0:
		return np.PlaybackClosed
	case 1:
		return np.PlaybackChanging
	case 2:
		return np.PlaybackStopped
	case 3:
		return np.PlaybackPlaying
	case 4:
		return np.PlaybackPaused
	default:
		return np.PlaybackStopped
	}
}

// buttonSlots returns the get/put vtable slots for a button following the
// OS declaration order (play, stop, pause, record, fast-forward, rewind,
// previous, next, channel-up, channel-down).
func buttonSlots(button np.Button) (get uintptr, put uintptr, ok bool) {
	var index uintptr
	switch button {
	case np.ButtonPlay:
		index = 0
	case np.ButtonStop:
		index = 1
	case np.ButtonPause:
		index = 2
	case np.ButtonFastForward:
		index = 4
	case np.ButtonRewind:
		index = 5
	case np.ButtonPrevious:
		index = 6
	case np.ButtonNext:
		index = 7
	default:
		return 0, 0, false
	}
	get = slotButtonBase + 2*index
	return get, get + 1, true
}

// buttonFromNativeID maps the OS SystemMediaTransportControlsButton value
// to the public enumeration; only the seven relayed buttons map.
func buttonFromNativeID(id int32) (np.Button, bool) {
	switch np.Button(id) {
	case np.ButtonPlay, np.ButtonPause, np.ButtonStop,
		np.ButtonFastForward, np.ButtonRewind,
		np.ButtonNext, np.ButtonPrevious:
		return np.Button(id), true
	default:
		return 0, false
	}
}
