package transportsmtc

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	transportcore "github.com/soren-m/now_playing/internal/modules/transport_core"
	"github.com/soren-m/now_playing/pkg/np"
)

type fakeMQTTClient struct {
	mu        sync.Mutex
	subs      map[string]paho.MessageHandler
	published []recordedPublish
}

type recordedPublish struct {
	topic    string
	retained bool
	payload  []byte
}

func (f *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, recordedPublish{topic: topic, retained: retained, payload: payload})
	return nil
}

func (f *fakeMQTTClient) Subscribe(topic string, qos byte, handler paho.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[string]paho.MessageHandler)
	}
	f.subs[topic] = handler
	return nil
}

func (f *fakeMQTTClient) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, topic)
	return nil
}

func (f *fakeMQTTClient) emit(topic string, payload []byte) {
	f.mu.Lock()
	handler := f.subs[topic]
	f.mu.Unlock()
	if handler != nil {
		handler(nil, fakeMessage{topic: topic, payload: payload})
	}
}

func (f *fakeMQTTClient) subscribed(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subs[topic]
	return ok
}

func (f *fakeMQTTClient) lastPublished(topic string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.published) - 1; i >= 0; i-- {
		if f.published[i].topic == topic {
			return f.published[i].payload, true
		}
	}
	return nil, false
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func newTestModule(t *testing.T) (*Module, *fakeMQTTClient, *transportcore.MemoryDriver) {
	t.Helper()
	client := &fakeMQTTClient{}
	driver := transportcore.NewMemoryDriver()
	module, err := NewModule(zap.NewNop(), client, driver, Config{
		NodeID: "np:transport:test",
		Name:   "Test Transport",
	})
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	return module, client, driver
}

// runModule starts Run and blocks until the command subscription exists.
func runModule(t *testing.T, module *Module, client *fakeMQTTClient) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- module.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Errorf("module did not stop")
		}
	})

	deadline := time.After(time.Second)
	for !client.subscribed(module.cmdTopic) {
		select {
		case err := <-done:
			t.Fatalf("module exited early: %v", err)
		case <-deadline:
			t.Fatalf("module never subscribed to commands")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func sendCommand(t *testing.T, module *Module, client *fakeMQTTClient, cmdType string, body any) np.ReplyEnvelope {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	cmd := np.CommandEnvelope{
		ID:      "cmd-1",
		Type:    cmdType,
		TS:      time.Now().Unix(),
		From:    "tester",
		ReplyTo: np.TopicReply(np.BaseTopic, "tester"),
		Body:    payload,
	}
	cmdPayload, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	client.emit(module.cmdTopic, cmdPayload)

	replyPayload, ok := client.lastPublished(cmd.ReplyTo)
	if !ok {
		t.Fatalf("no reply published for %s", cmdType)
	}
	var reply np.ReplyEnvelope
	if err := json.Unmarshal(replyPayload, &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return reply
}

func requireErrorCode(t *testing.T, reply np.ReplyEnvelope, code string) {
	t.Helper()
	if reply.OK {
		t.Fatalf("expected error reply, got ack")
	}
	if reply.Err == nil || reply.Err.Code != code {
		t.Fatalf("expected code %s, got %+v", code, reply.Err)
	}
}

func fetchState(t *testing.T, module *Module, client *fakeMQTTClient) np.TransportState {
	t.Helper()
	reply := sendCommand(t, module, client, np.CmdGetState, struct{}{})
	if !reply.OK {
		t.Fatalf("getState failed: %+v", reply.Err)
	}
	var state np.TransportState
	if err := json.Unmarshal(reply.Body, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return state
}

func TestRunPublishesPresenceAndState(t *testing.T) {
	module, client, _ := newTestModule(t)
	runModule(t, module, client)

	payload, ok := client.lastPublished(np.TopicPresence(np.BaseTopic, "np:transport:test"))
	if !ok {
		t.Fatalf("no presence published")
	}
	var presence np.Presence
	if err := json.Unmarshal(payload, &presence); err != nil {
		t.Fatalf("decode presence: %v", err)
	}
	if presence.Kind != "transport" || presence.Name != "Test Transport" {
		t.Fatalf("unexpected presence: %+v", presence)
	}

	payload, ok = client.lastPublished(np.TopicState(np.BaseTopic, "np:transport:test"))
	if !ok {
		t.Fatalf("no state published")
	}
	var state np.TransportState
	if err := json.Unmarshal(payload, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Status != "closed" {
		t.Fatalf("expected initial status closed, got %s", state.Status)
	}
	if !state.Buttons["play"] || state.Buttons["stop"] {
		t.Fatalf("unexpected initial buttons: %+v", state.Buttons)
	}
}

func TestMalformedEnvelopeRejected(t *testing.T) {
	module, client, _ := newTestModule(t)
	runModule(t, module, client)

	replyTo := np.TopicReply(np.BaseTopic, "tester")
	cmd := np.CommandEnvelope{
		ID:      "cmd-1",
		Type:    np.CmdUpdateDisplay,
		ReplyTo: replyTo,
		Body:    json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	client.emit(module.cmdTopic, payload)

	replyPayload, ok := client.lastPublished(replyTo)
	if !ok {
		t.Fatalf("no reply published")
	}
	var reply np.ReplyEnvelope
	if err := json.Unmarshal(replyPayload, &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	requireErrorCode(t, reply, np.ReplyCodeInvalid)
}

func TestCommandsBeforeRunReportNotInitialized(t *testing.T) {
	module, _, _ := newTestModule(t)

	payload, _ := json.Marshal(np.SetPlaybackBody{Status: "playing"})
	cmd := np.CommandEnvelope{ID: "cmd-1", Type: np.CmdSetPlayback, TS: time.Now().Unix(), From: "tester", Body: payload}
	reply, changed := module.dispatch(cmd)
	if changed {
		t.Fatalf("expected no state change")
	}
	requireErrorCode(t, reply, np.ReplyCodeNotInitialized)
}

func TestSetMetadataStagesUntilUpdateDisplay(t *testing.T) {
	module, client, driver := newTestModule(t)
	runModule(t, module, client)

	title := "Harvest Moon"
	artist := "Neil Young"
	reply := sendCommand(t, module, client, np.CmdSetMetadata, np.SetMetadataBody{Title: &title, Artist: &artist})
	if !reply.OK {
		t.Fatalf("setMetadata failed: %+v", reply.Err)
	}

	state := fetchState(t, module, client)
	if state.Display.Title != "" {
		t.Fatalf("staged metadata leaked into committed state: %+v", state.Display)
	}
	if driver.Committed().Title != "" {
		t.Fatalf("staged metadata committed in driver")
	}

	reply = sendCommand(t, module, client, np.CmdUpdateDisplay, struct{}{})
	if !reply.OK {
		t.Fatalf("updateDisplay failed: %+v", reply.Err)
	}

	state = fetchState(t, module, client)
	if state.Display.Title != title || state.Display.Artist != artist {
		t.Fatalf("unexpected committed display: %+v", state.Display)
	}
	if got := driver.Committed(); got.Title != title || got.Artist != artist {
		t.Fatalf("unexpected driver display: %+v", got)
	}
}

func TestSetPlaybackUpdatesRetainedState(t *testing.T) {
	module, client, driver := newTestModule(t)
	runModule(t, module, client)

	reply := sendCommand(t, module, client, np.CmdSetPlayback, np.SetPlaybackBody{Status: "playing"})
	if !reply.OK {
		t.Fatalf("setPlayback failed: %+v", reply.Err)
	}

	payload, ok := client.lastPublished(np.TopicState(np.BaseTopic, "np:transport:test"))
	if !ok {
		t.Fatalf("no state published")
	}
	var state np.TransportState
	if err := json.Unmarshal(payload, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Status != "playing" {
		t.Fatalf("expected playing, got %s", state.Status)
	}
	if status, _ := driver.PlaybackStatus(); status != np.PlaybackPlaying {
		t.Fatalf("driver status not updated: %v", status)
	}

	reply = sendCommand(t, module, client, np.CmdSetPlayback, np.SetPlaybackBody{Status: "warbling"})
	requireErrorCode(t, reply, np.ReplyCodeInvalid)
}

func TestSetTimelinePinsSeekRange(t *testing.T) {
	module, client, driver := newTestModule(t)
	runModule(t, module, client)

	reply := sendCommand(t, module, client, np.CmdSetTimeline, np.SetTimelineBody{StartMS: 0, EndMS: 240_000, PositionMS: 60_000})
	if !reply.OK {
		t.Fatalf("setTimeline failed: %+v", reply.Err)
	}

	state := fetchState(t, module, client)
	if state.Timeline == nil {
		t.Fatalf("no timeline in state")
	}
	if state.Timeline.MinSeekMS != 0 || state.Timeline.MaxSeekMS != 240_000 {
		t.Fatalf("seek range not pinned: %+v", state.Timeline)
	}
	if got := driver.Timeline(); got.PositionMS != 60_000 {
		t.Fatalf("unexpected driver timeline: %+v", got)
	}
}

func TestSetButtonReplies(t *testing.T) {
	module, client, _ := newTestModule(t)
	runModule(t, module, client)

	reply := sendCommand(t, module, client, np.CmdSetButton, np.SetButtonBody{Button: "stop", Enabled: true})
	if !reply.OK {
		t.Fatalf("setButton failed: %+v", reply.Err)
	}
	if state := fetchState(t, module, client); !state.Buttons["stop"] {
		t.Fatalf("stop button not enabled in state")
	}

	reply = sendCommand(t, module, client, np.CmdSetButton, np.SetButtonBody{Button: "record", Enabled: true})
	requireErrorCode(t, reply, np.ReplyCodeUnknownButton)

	reply = sendCommand(t, module, client, np.CmdSetButton, np.SetButtonBody{Button: "bogus", Enabled: true})
	requireErrorCode(t, reply, np.ReplyCodeInvalid)
}

func TestThumbnailCommands(t *testing.T) {
	module, client, driver := newTestModule(t)
	runModule(t, module, client)

	reply := sendCommand(t, module, client, np.CmdSetThumbnail, np.SetThumbnailBody{URI: "file:///art.png", Data: []byte{1}})
	requireErrorCode(t, reply, np.ReplyCodeInvalid)

	reply = sendCommand(t, module, client, np.CmdSetThumbnail, np.SetThumbnailBody{})
	requireErrorCode(t, reply, np.ReplyCodeInvalid)

	reply = sendCommand(t, module, client, np.CmdSetThumbnail, np.SetThumbnailBody{Data: []byte{0x89, 0x50}, MIME: "image/png"})
	if !reply.OK {
		t.Fatalf("setThumbnail failed: %+v", reply.Err)
	}
	if driver.Staged().Thumbnail == nil {
		t.Fatalf("thumbnail not staged in driver")
	}

	reply = sendCommand(t, module, client, np.CmdClearThumbnail, struct{}{})
	if !reply.OK {
		t.Fatalf("clearThumbnail failed: %+v", reply.Err)
	}
	if driver.Staged().Thumbnail != nil {
		t.Fatalf("thumbnail not cleared in driver")
	}
}

func TestUnknownCommandRejected(t *testing.T) {
	module, client, _ := newTestModule(t)
	runModule(t, module, client)

	reply := sendCommand(t, module, client, "transport.selfDestruct", struct{}{})
	requireErrorCode(t, reply, np.ReplyCodeInvalid)
	if !strings.Contains(reply.Err.Message, "transport.selfDestruct") {
		t.Fatalf("unexpected message: %s", reply.Err.Message)
	}
}

func TestButtonPressPublishesEvent(t *testing.T) {
	module, client, driver := newTestModule(t)
	runModule(t, module, client)

	driver.PressNative(int(np.ButtonNext))
	// Unmapped native identifiers are dropped silently.
	driver.PressNative(int(np.ButtonChannelUp))

	payload, ok := client.lastPublished(np.TopicEvents(np.BaseTopic, "np:transport:test"))
	if !ok {
		t.Fatalf("no event published")
	}
	var event np.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.Type != np.EventButtonPressed || event.Button != "next" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestSeekRequestPublishesEvent(t *testing.T) {
	module, client, driver := newTestModule(t)
	runModule(t, module, client)

	driver.RequestSeek(93_000)

	payload, ok := client.lastPublished(np.TopicEvents(np.BaseTopic, "np:transport:test"))
	if !ok {
		t.Fatalf("no event published")
	}
	var event np.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.Type != np.EventSeekRequested || event.PositionMS != 93_000 {
		t.Fatalf("unexpected event: %+v", event)
	}
}
