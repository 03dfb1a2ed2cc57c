package np

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BaseTopic is the default MQTT topic prefix for the protocol.
const BaseTopic = "np/v1"

// Command types understood by a transport node.
const (
	CmdSetMetadata    = "transport.setMetadata"
	CmdSetThumbnail   = "transport.setThumbnail"
	CmdClearThumbnail = "transport.clearThumbnail"
	CmdUpdateDisplay  = "transport.updateDisplay"
	CmdSetPlayback    = "transport.setPlayback"
	CmdSetTimeline    = "transport.setTimeline"
	CmdSetButton      = "transport.setButton"
	CmdGetState       = "transport.getState"
)

// Reply error codes.
const (
	ReplyCodeInvalid        = "INVALID"
	ReplyCodeNotInitialized = "NOT_INITIALIZED"
	ReplyCodeNative         = "NATIVE"
	ReplyCodeUnknownButton  = "UNKNOWN_BUTTON"
	ReplyCodeInternal       = "INTERNAL"
)

// CommandEnvelope is the common controller command envelope for MQTT.
type CommandEnvelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	TS      int64           `json:"ts"`
	From    string          `json:"from"`
	ReplyTo string          `json:"replyTo,omitempty"`
	Body    json.RawMessage `json:"body"`
}

// ReplyEnvelope is the response envelope for commands.
type ReplyEnvelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	OK   bool            `json:"ok"`
	TS   int64           `json:"ts"`
	Body json.RawMessage `json:"body,omitempty"`
	Err  *ReplyError     `json:"err,omitempty"`
}

// ReplyError describes an error response.
type ReplyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Presence describes a node presence payload.
type Presence struct {
	NodeID string         `json:"nodeId"`
	Kind   string         `json:"kind"`
	Name   string         `json:"name"`
	Caps   map[string]any `json:"caps,omitempty"`
	TS     int64          `json:"ts"`
}

// DisplayState is the committed (flushed) display metadata of a node.
type DisplayState struct {
	MediaType string `json:"mediaType"`
	Title     string `json:"title,omitempty"`
	Artist    string `json:"artist,omitempty"`
	Album     string `json:"album,omitempty"`
	Thumbnail bool   `json:"thumbnail"`
}

// TransportState is the retained state of a transport node. Display holds
// committed metadata only; staged-but-unflushed setter calls are not visible
// here until an updateDisplay command lands.
type TransportState struct {
	Status       string          `json:"status"`
	Display      *DisplayState   `json:"display,omitempty"`
	Timeline     *Timeline       `json:"timeline,omitempty"`
	Buttons      map[string]bool `json:"buttons,omitempty"`
	StateVersion int64           `json:"stateVersion,omitempty"`
	TS           int64           `json:"ts"`
}

// Event types published by a transport node.
const (
	EventButtonPressed = "transport.buttonPressed"
	EventSeekRequested = "transport.seekRequested"
)

// Event is a transport node event payload.
type Event struct {
	Type       string `json:"type"`
	Button     string `json:"button,omitempty"`
	PositionMS int64  `json:"positionMs,omitempty"`
	TS         int64  `json:"ts"`
}

// SetMetadataBody updates staged display metadata. Nil fields leave the
// corresponding property untouched.
type SetMetadataBody struct {
	MediaType *string `json:"mediaType,omitempty"`
	Title     *string `json:"title,omitempty"`
	Artist    *string `json:"artist,omitempty"`
	Album     *string `json:"album,omitempty"`
}

// SetThumbnailBody stages artwork from a URI or inline base64 data. An empty
// body clears the thumbnail.
type SetThumbnailBody struct {
	URI  string `json:"uri,omitempty"`
	Data []byte `json:"data,omitempty"`
	MIME string `json:"mimeType,omitempty"`
}

// SetPlaybackBody sets the playback status.
type SetPlaybackBody struct {
	Status string `json:"status"`
}

// SetTimelineBody sets timeline properties in milliseconds.
type SetTimelineBody struct {
	StartMS    int64 `json:"startMs"`
	EndMS      int64 `json:"endMs"`
	PositionMS int64 `json:"positionMs"`
}

// SetButtonBody toggles a transport button.
type SetButtonBody struct {
	Button  string `json:"button"`
	Enabled bool   `json:"enabled"`
}

// NewCommand builds a command envelope with a JSON body.
func NewCommand(cmdType string, body any) (CommandEnvelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return CommandEnvelope{}, fmt.Errorf("marshal body: %w", err)
	}

	return CommandEnvelope{
		Type: cmdType,
		Body: payload,
	}, nil
}

// ValidateCommandEnvelope validates required envelope fields.
func ValidateCommandEnvelope(cmd CommandEnvelope) error {
	if strings.TrimSpace(cmd.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(cmd.Type) == "" {
		return errors.New("type is required")
	}
	if cmd.TS <= 0 {
		return errors.New("ts must be a positive unix timestamp")
	}
	if strings.TrimSpace(cmd.From) == "" {
		return errors.New("from is required")
	}
	if len(cmd.Body) == 0 {
		return errors.New("body is required")
	}
	return nil
}

// TopicPresence builds the presence topic for a node.
func TopicPresence(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/presence", topicBase, nodeID)
}

// TopicState builds the state topic for a node.
func TopicState(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/state", topicBase, nodeID)
}

// TopicCommands builds the command topic for a node.
func TopicCommands(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/cmd", topicBase, nodeID)
}

// TopicEvents builds the events topic for a node.
func TopicEvents(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/evt", topicBase, nodeID)
}

// TopicReply builds the reply topic for a controller instance.
func TopicReply(topicBase, controllerID string) string {
	return fmt.Sprintf("%s/reply/%s", topicBase, controllerID)
}
