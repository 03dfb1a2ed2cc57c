package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soren-m/now_playing/pkg/np"
)

type fakeBroker struct {
	presence  []np.Presence
	state     np.TransportState
	stateErr  error
	replies   map[string]np.ReplyEnvelope
	published []np.CommandEnvelope
}

func (f *fakeBroker) ReplyTopic() string { return "np/v1/reply/tester" }

func (f *fakeBroker) PublishCommand(_ context.Context, _ string, cmd np.CommandEnvelope) (np.ReplyEnvelope, error) {
	f.published = append(f.published, cmd)
	if reply, ok := f.replies[cmd.Type]; ok {
		reply.ID = cmd.ID
		return reply, nil
	}
	return np.ReplyEnvelope{ID: cmd.ID, Type: cmd.Type + ".reply", OK: true}, nil
}

func (f *fakeBroker) ListPresence(context.Context) ([]np.Presence, error) {
	return f.presence, nil
}

func (f *fakeBroker) GetTransportState(context.Context, string) (np.TransportState, error) {
	return f.state, f.stateErr
}

func (f *fakeBroker) WatchTransport(context.Context, string) (<-chan np.TransportState, <-chan np.Event, <-chan error) {
	states := make(chan np.TransportState)
	events := make(chan np.Event)
	errs := make(chan error)
	close(states)
	close(events)
	close(errs)
	return states, events, errs
}

type stubClock struct{}

func (stubClock) NowUnix() int64 { return 1700000000 }

type stubIDGen struct{ next int }

func (g *stubIDGen) NewID() string {
	g.next++
	return fmt.Sprintf("id-%d", g.next)
}

func newTestService(broker *fakeBroker) Service {
	if broker.presence == nil {
		broker.presence = []np.Presence{
			{NodeID: "np:transport:desk", Kind: "transport", Name: "Desk", TS: 1700000000},
		}
	}
	cfg := Config{Identity: "tester"}
	return Service{
		Broker:   broker,
		Resolver: Resolver{Presence: broker, Config: cfg},
		Clock:    stubClock{},
		IDGen:    &stubIDGen{},
		Config:   cfg,
	}
}

func lastPublished(t *testing.T, broker *fakeBroker) np.CommandEnvelope {
	t.Helper()
	if len(broker.published) == 0 {
		t.Fatalf("expected a published command")
	}
	return broker.published[len(broker.published)-1]
}

func TestListNodesFiltersKind(t *testing.T) {
	broker := &fakeBroker{presence: []np.Presence{
		{NodeID: "np:transport:desk", Kind: "transport", Name: "Desk", TS: 1},
		{NodeID: "np:other:x", Kind: "other", Name: "X", TS: 1},
	}}
	svc := newTestService(broker)

	result, err := svc.ListNodes(context.Background(), "transport", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Nodes) != 1 || result.Nodes[0].NodeID != "np:transport:desk" {
		t.Fatalf("unexpected nodes: %+v", result.Nodes)
	}
}

func TestStatusReturnsRetainedState(t *testing.T) {
	broker := &fakeBroker{state: np.TransportState{Status: "playing", StateVersion: 3}}
	svc := newTestService(broker)

	result, err := svc.Status(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State.Status != "playing" || result.Transport.NodeID != "np:transport:desk" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSetMetadataPublishesCommand(t *testing.T) {
	broker := &fakeBroker{}
	svc := newTestService(broker)

	title := "Blue in Green"
	err := svc.SetMetadata(context.Background(), "", np.SetMetadataBody{Title: &title}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cmd := lastPublished(t, broker)
	if cmd.Type != np.CmdSetMetadata {
		t.Fatalf("unexpected command type %q", cmd.Type)
	}
	if cmd.From != "tester" || cmd.ReplyTo != "np/v1/reply/tester" || cmd.ID == "" {
		t.Fatalf("command not decorated: %+v", cmd)
	}
	var body np.SetMetadataBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Title == nil || *body.Title != title || body.Artist != nil {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestSetMetadataRequiresAField(t *testing.T) {
	svc := newTestService(&fakeBroker{})

	err := svc.SetMetadata(context.Background(), "", np.SetMetadataBody{}, false)
	if ExitCode(err) != ExitUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestSetMetadataCommitSendsUpdateDisplay(t *testing.T) {
	broker := &fakeBroker{}
	svc := newTestService(broker)

	artist := "Miles Davis"
	if err := svc.SetMetadata(context.Background(), "", np.SetMetadataBody{Artist: &artist}, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(broker.published) != 2 {
		t.Fatalf("expected two commands, got %d", len(broker.published))
	}
	if broker.published[0].Type != np.CmdSetMetadata || broker.published[1].Type != np.CmdUpdateDisplay {
		t.Fatalf("unexpected sequence: %q, %q", broker.published[0].Type, broker.published[1].Type)
	}
}

func TestSetPlaybackRejectsUnknownStatus(t *testing.T) {
	broker := &fakeBroker{}
	svc := newTestService(broker)

	err := svc.SetPlayback(context.Background(), "", "warbling")
	if ExitCode(err) != ExitUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
	if len(broker.published) != 0 {
		t.Fatalf("command published despite invalid status")
	}

	if err := svc.SetPlayback(context.Background(), "", "paused"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lastPublished(t, broker).Type != np.CmdSetPlayback {
		t.Fatalf("expected setPlayback command")
	}
}

func TestSetTimelineParsesDurations(t *testing.T) {
	broker := &fakeBroker{}
	svc := newTestService(broker)

	if err := svc.SetTimeline(context.Background(), "", "0", "3m20s", "45500"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body np.SetTimelineBody
	if err := json.Unmarshal(lastPublished(t, broker).Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.StartMS != 0 || body.EndMS != 200000 || body.PositionMS != 45500 {
		t.Fatalf("unexpected timeline body: %+v", body)
	}

	if err := svc.SetTimeline(context.Background(), "", "nope", "1", "2"); ExitCode(err) != ExitUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestSetButtonValidatesName(t *testing.T) {
	broker := &fakeBroker{}
	svc := newTestService(broker)

	if err := svc.SetButton(context.Background(), "", "sideways", true); ExitCode(err) != ExitUsage {
		t.Fatalf("expected usage error")
	}
	if err := svc.SetButton(context.Background(), "", "stop", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body np.SetButtonBody
	if err := json.Unmarshal(lastPublished(t, broker).Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Button != "stop" || !body.Enabled {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestSetThumbnailDataReadsFile(t *testing.T) {
	broker := &fakeBroker{}
	svc := newTestService(broker)

	path := filepath.Join(t.TempDir(), "cover.png")
	if err := os.WriteFile(path, []byte{0x89, 0x50, 0x4e, 0x47}, 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if err := svc.SetThumbnailData(context.Background(), "", path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body np.SetThumbnailBody
	if err := json.Unmarshal(lastPublished(t, broker).Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Data) != 4 || body.URI != "" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if !strings.HasPrefix(body.MIME, "image/png") {
		t.Fatalf("unexpected mime %q", body.MIME)
	}
}

func TestReplyErrorsMapToExitCodes(t *testing.T) {
	broker := &fakeBroker{replies: map[string]np.ReplyEnvelope{
		np.CmdSetButton: {Type: np.CmdSetButton + ".reply", Err: &np.ReplyError{
			Code: np.ReplyCodeUnknownButton, Message: "unknown button type",
		}},
		np.CmdUpdateDisplay: {Type: np.CmdUpdateDisplay + ".reply", Err: &np.ReplyError{
			Code: np.ReplyCodeNotInitialized, Message: "not initialized",
		}},
	}}
	svc := newTestService(broker)

	err := svc.SetButton(context.Background(), "", "record", true)
	if ExitCode(err) != ExitUsage {
		t.Fatalf("expected usage exit for unknown button, got %v", err)
	}
	err = svc.UpdateDisplay(context.Background(), "")
	if ExitCode(err) != ExitNotInitialized {
		t.Fatalf("expected not-initialized exit, got %v", err)
	}
}

func TestGetStateDecodesReply(t *testing.T) {
	state := np.TransportState{Status: "paused", StateVersion: 7}
	raw, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	broker := &fakeBroker{replies: map[string]np.ReplyEnvelope{
		np.CmdGetState: {Type: np.CmdGetState + ".reply", OK: true, Body: raw},
	}}
	svc := newTestService(broker)

	result, err := svc.GetState(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State.Status != "paused" || result.State.StateVersion != 7 {
		t.Fatalf("unexpected state: %+v", result.State)
	}
}

func TestParseDurationToMS(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"1500", 1500, true},
		{"2s", 2000, true},
		{"150ms", 150, true},
		{"1h", 3600000, true},
		{"", 0, false},
		{"abc", 0, false},
	}
	for _, test := range tests {
		got, err := parseDurationToMS(test.in)
		if test.ok && (err != nil || got != test.want) {
			t.Fatalf("parseDurationToMS(%q) = %d, %v; want %d", test.in, got, err, test.want)
		}
		if !test.ok && err == nil {
			t.Fatalf("parseDurationToMS(%q) expected error", test.in)
		}
	}
}
