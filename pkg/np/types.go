// Package np defines the shared vocabulary and MQTT protocol for the
// now_playing transport-control bridge.
package np

import "fmt"

// PlaybackStatus mirrors the OS media playback status 1:1.
type PlaybackStatus int

const (
	PlaybackClosed PlaybackStatus = iota
	PlaybackStopped
	PlaybackPlaying
	PlaybackPaused
	PlaybackChanging
)

func (s PlaybackStatus) String() string {
	switch s {
	case PlaybackClosed:
		return "closed"
	case PlaybackStopped:
		return "stopped"
	case PlaybackPlaying:
		return "playing"
	case PlaybackPaused:
		return "paused"
	case PlaybackChanging:
		return "changing"
	default:
		return "closed"
	}
}

// ParsePlaybackStatus maps a status name to its value.
func ParsePlaybackStatus(s string) (PlaybackStatus, error) {
	switch s {
	case "closed":
		return PlaybackClosed, nil
	case "stopped":
		return PlaybackStopped, nil
	case "playing":
		return PlaybackPlaying, nil
	case "paused":
		return PlaybackPaused, nil
	case "changing":
		return PlaybackChanging, nil
	default:
		return PlaybackClosed, fmt.Errorf("unknown playback status %q", s)
	}
}

// Button identifies a transport button. Values match the OS enumeration.
// Record, channel-up and channel-down are declared for wire compatibility
// but have no setter plumbing.
type Button int

const (
	ButtonPlay Button = iota
	ButtonPause
	ButtonStop
	ButtonRecord
	ButtonFastForward
	ButtonRewind
	ButtonNext
	ButtonPrevious
	ButtonChannelUp
	ButtonChannelDown
)

func (b Button) String() string {
	switch b {
	case ButtonPlay:
		return "play"
	case ButtonPause:
		return "pause"
	case ButtonStop:
		return "stop"
	case ButtonRecord:
		return "record"
	case ButtonFastForward:
		return "fastforward"
	case ButtonRewind:
		return "rewind"
	case ButtonNext:
		return "next"
	case ButtonPrevious:
		return "previous"
	case ButtonChannelUp:
		return "channelup"
	case ButtonChannelDown:
		return "channeldown"
	default:
		return fmt.Sprintf("button(%d)", int(b))
	}
}

// ParseButton maps a button name to its value.
func ParseButton(s string) (Button, error) {
	switch s {
	case "play":
		return ButtonPlay, nil
	case "pause":
		return ButtonPause, nil
	case "stop":
		return ButtonStop, nil
	case "record":
		return ButtonRecord, nil
	case "fastforward", "ff":
		return ButtonFastForward, nil
	case "rewind", "rw":
		return ButtonRewind, nil
	case "next":
		return ButtonNext, nil
	case "previous", "prev":
		return ButtonPrevious, nil
	case "channelup":
		return ButtonChannelUp, nil
	case "channeldown":
		return ButtonChannelDown, nil
	default:
		return ButtonPlay, fmt.Errorf("unknown button %q", s)
	}
}

// MediaType selects the metadata schema the OS display expects.
type MediaType int

const (
	MediaUnknown MediaType = iota
	MediaMusic
	MediaVideo
	MediaImage
)

func (m MediaType) String() string {
	switch m {
	case MediaMusic:
		return "music"
	case MediaVideo:
		return "video"
	case MediaImage:
		return "image"
	default:
		return "unknown"
	}
}

// ParseMediaType maps a media type name to its value. Unknown names map to
// MediaUnknown without error, matching the OS-side fallback.
func ParseMediaType(s string) MediaType {
	switch s {
	case "music":
		return MediaMusic
	case "video":
		return MediaVideo
	case "image":
		return MediaImage
	default:
		return MediaUnknown
	}
}

// MusicInfo carries music metadata updates. A nil field leaves the
// corresponding display property unchanged; pass a pointer to the empty
// string to clear a field.
type MusicInfo struct {
	Title  *string
	Artist *string
	Album  *string
}

// Thumbnail references artwork either by local URI or by in-memory bytes.
// The two are mutually exclusive, last write wins. MIME is advisory: the OS
// layer sniffs the encoding from content.
type Thumbnail struct {
	URI  string
	Data []byte
	MIME string
}

// Timeline carries display timeline properties in milliseconds. The seek
// range is always forced equal to [StartMS, EndMS]; no local validation of
// the range is performed.
type Timeline struct {
	StartMS    int64 `json:"startMs"`
	EndMS      int64 `json:"endMs"`
	PositionMS int64 `json:"positionMs"`
	MinSeekMS  int64 `json:"minSeekMs"`
	MaxSeekMS  int64 `json:"maxSeekMs"`
}

// NewTimeline builds a Timeline with the seek range pinned to [start, end].
func NewTimeline(startMS, endMS, positionMS int64) Timeline {
	return Timeline{
		StartMS:    startMS,
		EndMS:      endMS,
		PositionMS: positionMS,
		MinSeekMS:  startMS,
		MaxSeekMS:  endMS,
	}
}

// Status codes of the flat compatibility surface.
const (
	StatusOK             = 0
	StatusNotInitialized = -1
	StatusNativeError    = -2
	StatusInternalError  = -3
)
