//go:build windows

package transportsmtc

import (
	"fmt"
	"syscall"
	"time"
	"unsafe"

	"github.com/go-ole/go-ole"
)

// Low-level WinRT plumbing for the SMTC driver. Interfaces are invoked
// through raw vtable slots; slot 6 is the first method after IInspectable.

type hresult uintptr

const (
	hrSFalse          hresult = 0x00000001
	hrRPCChangedMode  hresult = 0x80010106
	asyncCompleted            = 1
	asyncError                = 3
)

func (hr hresult) failed() bool { return hr>>31 == 1 }

func (hr hresult) errorf(op string) error {
	if !hr.failed() {
		return nil
	}
	return fmt.Errorf("%s: hresult 0x%08X", op, uintptr(hr))
}

// comCall invokes the vtable slot of a COM object with this as the first
// argument.
func comCall(obj *ole.IUnknown, slot uintptr, args ...uintptr) hresult {
	vtbl := *(**[1024]uintptr)(unsafe.Pointer(obj))
	full := make([]uintptr, 0, len(args)+1)
	full = append(full, uintptr(unsafe.Pointer(obj)))
	full = append(full, args...)
	hr, _, _ := syscall.SyscallN(vtbl[slot], full...)
	return hresult(hr)
}

func queryInterface(obj *ole.IUnknown, iid string) (*ole.IUnknown, error) {
	guid := ole.NewGUID(iid)
	var out *ole.IUnknown
	hr := comCall(obj, 0, uintptr(unsafe.Pointer(guid)), uintptr(unsafe.Pointer(&out)))
	if err := hr.errorf("QueryInterface " + iid); err != nil {
		return nil, err
	}
	return out, nil
}

func release(obj *ole.IUnknown) {
	if obj != nil {
		obj.Release()
	}
}

func activate(class string) (*ole.IUnknown, error) {
	insp, err := ole.RoActivateInstance(class)
	if err != nil {
		return nil, fmt.Errorf("activate %s: %w", class, err)
	}
	return (*ole.IUnknown)(unsafe.Pointer(insp)), nil
}

func activationFactory(class string, iid string) (*ole.IUnknown, error) {
	insp, err := ole.RoGetActivationFactory(class, ole.NewGUID(iid))
	if err != nil {
		return nil, fmt.Errorf("activation factory %s: %w", class, err)
	}
	return (*ole.IUnknown)(unsafe.Pointer(insp)), nil
}

// getObject reads an interface-typed property from a vtable slot.
func getObject(obj *ole.IUnknown, slot uintptr, op string) (*ole.IUnknown, error) {
	var out *ole.IUnknown
	if err := comCall(obj, slot, uintptr(unsafe.Pointer(&out))).errorf(op); err != nil {
		return nil, err
	}
	return out, nil
}

func getBool(obj *ole.IUnknown, slot uintptr, op string) (bool, error) {
	var out uint8
	if err := comCall(obj, slot, uintptr(unsafe.Pointer(&out))).errorf(op); err != nil {
		return false, err
	}
	return out != 0, nil
}

func putBool(obj *ole.IUnknown, slot uintptr, value bool, op string) error {
	var v uintptr
	if value {
		v = 1
	}
	return comCall(obj, slot, v).errorf(op)
}

func getInt32(obj *ole.IUnknown, slot uintptr, op string) (int32, error) {
	var out int32
	if err := comCall(obj, slot, uintptr(unsafe.Pointer(&out))).errorf(op); err != nil {
		return 0, err
	}
	return out, nil
}

func putInt32(obj *ole.IUnknown, slot uintptr, value int32, op string) error {
	return comCall(obj, slot, uintptr(value)).errorf(op)
}

func putString(obj *ole.IUnknown, slot uintptr, value string, op string) error {
	hs, err := ole.NewHString(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer ole.DeleteHString(hs)
	return comCall(obj, slot, uintptr(hs)).errorf(op)
}

// putTimeSpan writes a Windows.Foundation.TimeSpan property (100ns ticks).
func putTimeSpan(obj *ole.IUnknown, slot uintptr, d time.Duration, op string) error {
	ticks := d.Nanoseconds() / 100
	return comCall(obj, slot, uintptr(ticks)).errorf(op)
}

// awaitAsync polls an IAsyncInfo until it leaves the started state. The
// underlying operations here are local buffered writes, so the wait is
// bounded and short.
func awaitAsync(op *ole.IUnknown, what string) error {
	info, err := queryInterface(op, iidAsyncInfo)
	if err != nil {
		return err
	}
	defer release(info)

	deadline := time.Now().Add(5 * time.Second)
	for {
		status, err := getInt32(info, 7, what+" status")
		if err != nil {
			return err
		}
		switch status {
		case asyncCompleted:
			return nil
		case asyncError:
			code, _ := getInt32(info, 8, what+" error code")
			return fmt.Errorf("%s: async error 0x%08X", what, uint32(code))
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s: async operation timed out", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// Runtime classes and interface identifiers used by the driver.
const (
	classMediaPlayer        = "Windows.Media.Playback.MediaPlayer"
	classTimelineProperties = "Windows.Media.SystemMediaTransportControlsTimelineProperties"
	classMemoryStream       = "Windows.Storage.Streams.InMemoryRandomAccessStream"
	classDataWriter         = "Windows.Storage.Streams.DataWriter"
	classStreamReference    = "Windows.Storage.Streams.RandomAccessStreamReference"
	classUri                = "Windows.Foundation.Uri"

	iidMediaPlayer2       = "{3C841218-2123-4FC5-9082-2F883F77BDF5}"
	iidMediaPlayer3       = "{EE684C02-E6B8-4FFD-85A5-552E22D0B6C9}"
	iidCommandManager     = "{0896C80B-274F-43DA-9A06-CBFBAB13E5A8}"
	iidClosable           = "{30D5A829-7FA4-4026-83BB-D75BAE4EA99E}"
	iidTransportControls  = "{99FA3FF4-1742-42A6-902E-087D41F965EC}"
	iidTransportControls2 = "{EA98D2F6-7F3C-4AF2-A586-72889808EFB1}"
	iidDisplayUpdater     = "{8ABBC53E-FA55-4ECF-AD8E-C984E5DD1550}"
	iidMusicProperties    = "{6BBF0C59-D0A0-4D26-92A0-F978E1D18E7B}"
	iidMusicProperties2   = "{00368462-97D3-44B9-B00F-008AFCEFAF18}"
	iidButtonPressedArgs  = "{B7F47116-A56F-4DC8-9E11-92031F4A87C2}"
	iidTimelineProperties = "{5125316A-C3A2-475B-8507-93534DC88F15}"
	iidDataWriterFactory  = "{338C67C2-8B84-4C2B-9C50-7B8767847A1F}"
	iidOutputStream       = "{905A0FE6-BC53-11DF-8C49-001E4FC686DA}"
	iidStreamRefStatics   = "{857309DC-3FBF-4E7D-986F-EF3B1A07A964}"
	iidUriFactory         = "{44A9796F-723E-4FDF-A218-033E75B0C084}"
	iidAsyncInfo          = "{00000036-0000-0000-C000-000000000046}"
)

// Vtable slots (after the six IUnknown/IInspectable entries).
const (
	// ISystemMediaTransportControls
	slotGetPlaybackStatus   = 6
	slotPutPlaybackStatus   = 7
	slotGetDisplayUpdater   = 8
	slotGetIsEnabled        = 10
	slotPutIsEnabled        = 11
	slotButtonBase          = 12 // get/put pairs in OS button order
	slotAddButtonPressed    = 32
	slotRemoveButtonPressed = 33

	// ISystemMediaTransportControls2
	slotUpdateTimelineProperties = 12

	// ISystemMediaTransportControlsDisplayUpdater
	slotGetType            = 6
	slotPutType            = 7
	slotPutThumbnail       = 11
	slotGetMusicProperties = 12
	slotUpdate             = 16

	// IMusicDisplayProperties / IMusicDisplayProperties2
	slotPutTitle      = 7
	slotPutArtist     = 11
	slotPutAlbumTitle = 7

	// ISystemMediaTransportControlsTimelineProperties
	slotPutStartTime   = 7
	slotPutEndTime     = 9
	slotPutMinSeekTime = 11
	slotPutMaxSeekTime = 13
	slotPutPosition    = 15

	// IMediaPlayer2 / IMediaPlayer3 / IMediaPlaybackCommandManager
	slotGetTransportControls = 6
	slotGetCommandManager    = 17
	slotPutManagerIsEnabled  = 7

	// IClosable
	slotClose = 6

	// IRandomAccessStream
	slotGetOutputStreamAt = 9
	slotStreamSeek        = 11

	// IDataWriter
	slotWriteBytes   = 12
	slotStoreAsync   = 33
	slotDetachStream = 36

	// IRandomAccessStreamReferenceStatics
	slotCreateFromUri    = 7
	slotCreateFromStream = 8

	// IUriRuntimeClassFactory
	slotCreateUri = 6

	// ISystemMediaTransportControlsButtonPressedEventArgs
	slotGetButton = 6
)

// buttonPressedSink is a COM callback object implementing the WinRT
// TypedEventHandler delegate for SMTC button presses.
type buttonPressedSink struct {
	vtbl *buttonPressedSinkVtbl
	fn   func(nativeButton int32)
}

type buttonPressedSinkVtbl struct {
	queryInterface uintptr
	addRef         uintptr
	release        uintptr
	invoke         uintptr
}

var sinkVtbl = &buttonPressedSinkVtbl{
	queryInterface: syscall.NewCallback(sinkQueryInterface),
	addRef:         syscall.NewCallback(sinkAddRef),
	release:        syscall.NewCallback(sinkRelease),
	invoke:         syscall.NewCallback(sinkInvoke),
}

func newButtonPressedSink(fn func(nativeButton int32)) *buttonPressedSink {
	return &buttonPressedSink{vtbl: sinkVtbl, fn: fn}
}

// The sink lives for the whole registration and is unregistered before the
// session closes, so reference counting can be inert.
func sinkQueryInterface(this uintptr, _ uintptr, out *uintptr) uintptr {
	*out = this
	return 0
}

func sinkAddRef(uintptr) uintptr  { return 1 }
func sinkRelease(uintptr) uintptr { return 1 }

func sinkInvoke(this uintptr, _ uintptr, args uintptr) uintptr {
	sink := (*buttonPressedSink)(unsafe.Pointer(this))
	if sink.fn == nil || args == 0 {
		return 0
	}
	button, err := getInt32((*ole.IUnknown)(unsafe.Pointer(args)), slotGetButton, "get button")
	if err != nil {
		return 0
	}
	sink.fn(button)
	return 0
}
