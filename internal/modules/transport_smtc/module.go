// Package transportsmtc exposes a transport-control bridge as an MQTT node:
// presence and retained state publishing, transport.* command dispatch and
// button/seek event relaying.
package transportsmtc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	transportcore "github.com/soren-m/now_playing/internal/modules/transport_core"
	"github.com/soren-m/now_playing/pkg/np"
)

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler paho.MessageHandler) error
	Unsubscribe(topic string) error
}

// Config configures the transport module.
type Config struct {
	NodeID    string
	TopicBase string
	Name      string
}

// Module runs one transport node. It owns the bridge and keeps a shadow of
// the staged and committed display state so retained state can be published
// even when the native backend is write-only.
type Module struct {
	log      *zap.Logger
	client   mqttClient
	bridge   *transportcore.Bridge
	config   Config
	cmdTopic string

	mu        sync.Mutex
	status    np.PlaybackStatus
	staged    np.DisplayState
	committed np.DisplayState
	timeline  *np.Timeline
	buttons   map[string]bool
	version   int64
}

// NewModule creates a transport module over the given driver.
func NewModule(log *zap.Logger, client mqttClient, driver transportcore.Driver, cfg Config) (*Module, error) {
	if strings.TrimSpace(cfg.NodeID) == "" {
		return nil, errors.New("node_id required")
	}
	if strings.TrimSpace(cfg.TopicBase) == "" {
		cfg.TopicBase = np.BaseTopic
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "Now Playing Transport"
	}

	m := &Module{
		log:      log,
		client:   client,
		bridge:   transportcore.New(driver, log),
		config:   cfg,
		cmdTopic: np.TopicCommands(cfg.TopicBase, cfg.NodeID),
		staged:   np.DisplayState{MediaType: np.MediaMusic.String()},
		buttons:  map[string]bool{},
	}
	return m, nil
}

// Bridge returns the underlying bridge, for hosts that drive it directly.
func (m *Module) Bridge() *transportcore.Bridge { return m.bridge }

// Run initializes the bridge and serves commands until the context ends.
func (m *Module) Run(ctx context.Context) error {
	if err := m.bridge.Initialize(); err != nil {
		return err
	}
	defer m.bridge.Shutdown()

	m.mu.Lock()
	m.status = m.bridge.PlaybackStatus()
	for _, b := range []np.Button{
		np.ButtonPlay, np.ButtonPause, np.ButtonStop,
		np.ButtonFastForward, np.ButtonRewind,
		np.ButtonNext, np.ButtonPrevious,
	} {
		m.buttons[b.String()] = m.bridge.ButtonEnabled(b)
	}
	m.mu.Unlock()

	m.bridge.OnButtonPressed(func(button np.Button) {
		m.publishEvent(np.Event{Type: np.EventButtonPressed, Button: button.String()})
	})
	m.bridge.OnPositionChangeRequested(func(positionMS int64) {
		m.publishEvent(np.Event{Type: np.EventSeekRequested, PositionMS: positionMS})
	})

	if err := m.publishPresence(); err != nil {
		return err
	}
	if err := m.publishState(); err != nil {
		return err
	}

	handler := func(_ paho.Client, msg paho.Message) {
		m.handleMessage(msg)
	}
	if err := m.client.Subscribe(m.cmdTopic, 1, handler); err != nil {
		return err
	}
	defer m.client.Unsubscribe(m.cmdTopic)

	<-ctx.Done()
	return nil
}

func (m *Module) publishPresence() error {
	presence := np.Presence{
		NodeID: m.config.NodeID,
		Kind:   "transport",
		Name:   m.config.Name,
		Caps: map[string]any{
			"display":  true,
			"timeline": true,
			"buttons":  true,
		},
		TS: time.Now().Unix(),
	}
	payload, err := json.Marshal(presence)
	if err != nil {
		return err
	}
	return m.client.Publish(np.TopicPresence(m.config.TopicBase, m.config.NodeID), 1, true, payload)
}

func (m *Module) publishState() error {
	m.mu.Lock()
	state := m.stateLocked()
	m.mu.Unlock()

	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return m.client.Publish(np.TopicState(m.config.TopicBase, m.config.NodeID), 1, true, payload)
}

// stateLocked snapshots the retained state. Caller holds m.mu.
func (m *Module) stateLocked() np.TransportState {
	display := m.committed
	buttons := make(map[string]bool, len(m.buttons))
	for name, enabled := range m.buttons {
		buttons[name] = enabled
	}
	state := np.TransportState{
		Status:       m.status.String(),
		Display:      &display,
		Buttons:      buttons,
		StateVersion: m.version,
		TS:           time.Now().Unix(),
	}
	if m.timeline != nil {
		timeline := *m.timeline
		state.Timeline = &timeline
	}
	return state
}

func (m *Module) publishEvent(event np.Event) {
	event.TS = time.Now().Unix()
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := m.client.Publish(np.TopicEvents(m.config.TopicBase, m.config.NodeID), 1, false, payload); err != nil {
		m.log.Warn("publish event", zap.Error(err))
	}
}

func (m *Module) handleMessage(msg paho.Message) {
	var cmd np.CommandEnvelope
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		m.log.Warn("invalid command", zap.Error(err))
		return
	}
	if err := np.ValidateCommandEnvelope(cmd); err != nil {
		if cmd.ReplyTo != "" {
			payload, merr := json.Marshal(errorReply(cmd, np.ReplyCodeInvalid, err.Error()))
			if merr == nil {
				_ = m.client.Publish(cmd.ReplyTo, 1, false, payload)
			}
		}
		return
	}

	reply, changed := m.dispatch(cmd)
	if cmd.ReplyTo != "" {
		payload, err := json.Marshal(reply)
		if err == nil {
			_ = m.client.Publish(cmd.ReplyTo, 1, false, payload)
		}
	}
	if changed {
		_ = m.publishState()
	}
}

// dispatch runs one command and reports whether retained state changed.
func (m *Module) dispatch(cmd np.CommandEnvelope) (np.ReplyEnvelope, bool) {
	ack := np.ReplyEnvelope{ID: cmd.ID, Type: "ack", OK: true, TS: time.Now().Unix()}

	switch cmd.Type {
	case np.CmdSetMetadata:
		return m.handleSetMetadata(cmd, ack)
	case np.CmdSetThumbnail:
		return m.handleSetThumbnail(cmd, ack)
	case np.CmdClearThumbnail:
		if err := m.bridge.ClearThumbnail(); err != nil {
			return bridgeErrorReply(cmd, err), false
		}
		m.mu.Lock()
		m.staged.Thumbnail = false
		m.mu.Unlock()
		return ack, false
	case np.CmdUpdateDisplay:
		if err := m.bridge.UpdateDisplay(); err != nil {
			return bridgeErrorReply(cmd, err), false
		}
		m.mu.Lock()
		m.committed = m.staged
		m.version++
		m.mu.Unlock()
		return ack, true
	case np.CmdSetPlayback:
		return m.handleSetPlayback(cmd, ack)
	case np.CmdSetTimeline:
		return m.handleSetTimeline(cmd, ack)
	case np.CmdSetButton:
		return m.handleSetButton(cmd, ack)
	case np.CmdGetState:
		m.mu.Lock()
		state := m.stateLocked()
		m.mu.Unlock()
		payload, err := json.Marshal(state)
		if err != nil {
			return errorReply(cmd, np.ReplyCodeInternal, err.Error()), false
		}
		ack.Body = payload
		return ack, false
	default:
		return errorReply(cmd, np.ReplyCodeInvalid, "unknown command "+cmd.Type), false
	}
}

func (m *Module) handleSetMetadata(cmd np.CommandEnvelope, ack np.ReplyEnvelope) (np.ReplyEnvelope, bool) {
	var body np.SetMetadataBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, np.ReplyCodeInvalid, "invalid body"), false
	}

	if body.MediaType != nil {
		mediaType := np.ParseMediaType(*body.MediaType)
		if err := m.bridge.SetMediaType(mediaType); err != nil {
			return bridgeErrorReply(cmd, err), false
		}
		m.mu.Lock()
		m.staged.MediaType = mediaType.String()
		m.mu.Unlock()
	}

	info := np.MusicInfo{Title: body.Title, Artist: body.Artist, Album: body.Album}
	if err := m.bridge.SetMusicInfo(info); err != nil {
		return bridgeErrorReply(cmd, err), false
	}

	m.mu.Lock()
	if body.Title != nil {
		m.staged.Title = *body.Title
	}
	if body.Artist != nil {
		m.staged.Artist = *body.Artist
	}
	if body.Album != nil {
		m.staged.Album = *body.Album
	}
	m.mu.Unlock()
	return ack, false
}

func (m *Module) handleSetThumbnail(cmd np.CommandEnvelope, ack np.ReplyEnvelope) (np.ReplyEnvelope, bool) {
	var body np.SetThumbnailBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, np.ReplyCodeInvalid, "invalid body"), false
	}
	if body.URI != "" && len(body.Data) > 0 {
		return errorReply(cmd, np.ReplyCodeInvalid, "uri and data are mutually exclusive"), false
	}
	if body.URI == "" && len(body.Data) == 0 {
		return errorReply(cmd, np.ReplyCodeInvalid, "uri or data required"), false
	}

	var err error
	if len(body.Data) > 0 {
		err = m.bridge.SetThumbnailBytes(body.Data, body.MIME)
	} else {
		err = m.bridge.SetThumbnailFile(body.URI)
	}
	if err != nil {
		return bridgeErrorReply(cmd, err), false
	}

	m.mu.Lock()
	m.staged.Thumbnail = true
	m.mu.Unlock()
	return ack, false
}

func (m *Module) handleSetPlayback(cmd np.CommandEnvelope, ack np.ReplyEnvelope) (np.ReplyEnvelope, bool) {
	var body np.SetPlaybackBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, np.ReplyCodeInvalid, "invalid body"), false
	}
	status, err := np.ParsePlaybackStatus(body.Status)
	if err != nil {
		return errorReply(cmd, np.ReplyCodeInvalid, err.Error()), false
	}
	if err := m.bridge.SetPlaybackStatus(status); err != nil {
		return bridgeErrorReply(cmd, err), false
	}

	m.mu.Lock()
	m.status = status
	m.version++
	m.mu.Unlock()
	return ack, true
}

func (m *Module) handleSetTimeline(cmd np.CommandEnvelope, ack np.ReplyEnvelope) (np.ReplyEnvelope, bool) {
	var body np.SetTimelineBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, np.ReplyCodeInvalid, "invalid body"), false
	}
	if err := m.bridge.SetTimeline(body.StartMS, body.EndMS, body.PositionMS); err != nil {
		return bridgeErrorReply(cmd, err), false
	}

	timeline := np.NewTimeline(body.StartMS, body.EndMS, body.PositionMS)
	m.mu.Lock()
	m.timeline = &timeline
	m.version++
	m.mu.Unlock()
	return ack, true
}

func (m *Module) handleSetButton(cmd np.CommandEnvelope, ack np.ReplyEnvelope) (np.ReplyEnvelope, bool) {
	var body np.SetButtonBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, np.ReplyCodeInvalid, "invalid body"), false
	}
	button, err := np.ParseButton(body.Button)
	if err != nil {
		return errorReply(cmd, np.ReplyCodeInvalid, err.Error()), false
	}
	if err := m.bridge.SetButtonEnabled(button, body.Enabled); err != nil {
		return bridgeErrorReply(cmd, err), false
	}

	m.mu.Lock()
	m.buttons[button.String()] = body.Enabled
	m.version++
	m.mu.Unlock()
	return ack, true
}

func errorReply(cmd np.CommandEnvelope, code string, message string) np.ReplyEnvelope {
	return np.ReplyEnvelope{
		ID:   cmd.ID,
		Type: "error",
		OK:   false,
		TS:   time.Now().Unix(),
		Err:  &np.ReplyError{Code: code, Message: message},
	}
}

// bridgeErrorReply maps a bridge failure onto the wire error codes.
func bridgeErrorReply(cmd np.CommandEnvelope, err error) np.ReplyEnvelope {
	var derr *transportcore.DriverError
	switch {
	case errors.Is(err, transportcore.ErrNotInitialized):
		return errorReply(cmd, np.ReplyCodeNotInitialized, err.Error())
	case errors.Is(err, transportcore.ErrUnknownButton):
		return errorReply(cmd, np.ReplyCodeUnknownButton, err.Error())
	case errors.As(err, &derr):
		return errorReply(cmd, np.ReplyCodeNative, err.Error())
	default:
		return errorReply(cmd, np.ReplyCodeInternal, err.Error())
	}
}
