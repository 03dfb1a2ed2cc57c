// Package core implements the np CLI use cases over the Broker port.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/soren-m/now_playing/internal/ports"
	"github.com/soren-m/now_playing/pkg/np"
)

// Service orchestrates np CLI use cases.
type Service struct {
	Broker   ports.Broker
	Resolver Resolver
	Clock    ports.Clock
	IDGen    ports.IDGen
	Config   Config
}

// Inline artwork travels in the command body; anything larger should use a
// file URI resolved on the node.
const maxThumbnailBytes = 1 << 20

// ListNodes returns presence entries with optional filters.
func (s Service) ListNodes(ctx context.Context, kind string, onlineOnly bool) (NodesResult, error) {
	nodes, err := s.Broker.ListPresence(ctx)
	if err != nil {
		return NodesResult{}, WrapError(ExitRuntime, "list nodes", err)
	}
	if kind != "" {
		filtered := nodes[:0]
		for _, node := range nodes {
			if node.Kind == kind {
				filtered = append(filtered, node)
			}
		}
		nodes = filtered
	}
	// Online filtering relies on presence; with retained presence this is best-effort.
	if onlineOnly {
		filtered := nodes[:0]
		for _, node := range nodes {
			if node.TS > 0 {
				filtered = append(filtered, node)
			}
		}
		nodes = filtered
	}
	return NodesResult{Nodes: nodes}, nil
}

// Status returns the retained transport state.
func (s Service) Status(ctx context.Context, selector string) (StatusResult, error) {
	transport, err := s.Resolver.ResolveTransport(ctx, selector)
	if err != nil {
		return StatusResult{}, err
	}
	state, err := s.Broker.GetTransportState(ctx, transport.NodeID)
	if err != nil {
		return StatusResult{}, WrapError(ExitRuntime, "get transport state", err)
	}
	return StatusResult{Transport: transport, State: state}, nil
}

// WatchStatus streams state and events for a transport node.
func (s Service) WatchStatus(ctx context.Context, selector string) (<-chan np.TransportState, <-chan np.Event, <-chan error, error) {
	transport, err := s.Resolver.ResolveTransport(ctx, selector)
	if err != nil {
		return nil, nil, nil, err
	}
	states, events, errs := s.Broker.WatchTransport(ctx, transport.NodeID)
	return states, events, errs, nil
}

// GetState queries the node directly, bypassing the retained copy.
func (s Service) GetState(ctx context.Context, selector string) (StatusResult, error) {
	transport, err := s.Resolver.ResolveTransport(ctx, selector)
	if err != nil {
		return StatusResult{}, err
	}
	cmd, err := np.NewCommand(np.CmdGetState, struct{}{})
	if err != nil {
		return StatusResult{}, WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd)
	reply, err := s.Broker.PublishCommand(ctx, transport.NodeID, cmd)
	if err != nil {
		return StatusResult{}, WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return StatusResult{}, ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	var state np.TransportState
	if err := json.Unmarshal(reply.Body, &state); err != nil {
		return StatusResult{}, WrapError(ExitRuntime, "decode state reply", err)
	}
	return StatusResult{Transport: transport, State: state}, nil
}

// SetMetadata stages display metadata. Nil fields leave the node's current
// value alone. With commit set the display is flushed in the same call.
func (s Service) SetMetadata(ctx context.Context, selector string, body np.SetMetadataBody, commit bool) error {
	if body.MediaType == nil && body.Title == nil && body.Artist == nil && body.Album == nil {
		return &CLIError{Code: ExitUsage, Msg: "at least one metadata field required"}
	}
	transport, err := s.Resolver.ResolveTransport(ctx, selector)
	if err != nil {
		return err
	}
	if err := s.publishSimple(ctx, transport.NodeID, np.CmdSetMetadata, body); err != nil {
		return err
	}
	if commit {
		return s.publishSimple(ctx, transport.NodeID, np.CmdUpdateDisplay, struct{}{})
	}
	return nil
}

// SetThumbnailFile stages artwork by URI. The URI is resolved on the node,
// not on the controller.
func (s Service) SetThumbnailFile(ctx context.Context, selector string, uri string) error {
	if strings.TrimSpace(uri) == "" {
		return &CLIError{Code: ExitUsage, Msg: "thumbnail uri required"}
	}
	transport, err := s.Resolver.ResolveTransport(ctx, selector)
	if err != nil {
		return err
	}
	return s.publishSimple(ctx, transport.NodeID, np.CmdSetThumbnail, np.SetThumbnailBody{URI: uri})
}

// SetThumbnailData reads a local image and stages it as inline artwork.
func (s Service) SetThumbnailData(ctx context.Context, selector string, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return WrapError(ExitUsage, "read thumbnail", err)
	}
	if len(data) > maxThumbnailBytes {
		return &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("thumbnail exceeds %d bytes", maxThumbnailBytes)}
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))

	transport, err := s.Resolver.ResolveTransport(ctx, selector)
	if err != nil {
		return err
	}
	return s.publishSimple(ctx, transport.NodeID, np.CmdSetThumbnail, np.SetThumbnailBody{Data: data, MIME: mimeType})
}

// ClearThumbnail removes staged artwork.
func (s Service) ClearThumbnail(ctx context.Context, selector string) error {
	transport, err := s.Resolver.ResolveTransport(ctx, selector)
	if err != nil {
		return err
	}
	return s.publishSimple(ctx, transport.NodeID, np.CmdClearThumbnail, struct{}{})
}

// UpdateDisplay flushes staged metadata to the OS shell.
func (s Service) UpdateDisplay(ctx context.Context, selector string) error {
	transport, err := s.Resolver.ResolveTransport(ctx, selector)
	if err != nil {
		return err
	}
	return s.publishSimple(ctx, transport.NodeID, np.CmdUpdateDisplay, struct{}{})
}

// SetPlayback sets the playback status shown by the node.
func (s Service) SetPlayback(ctx context.Context, selector string, status string) error {
	if _, err := np.ParsePlaybackStatus(status); err != nil {
		return WrapError(ExitUsage, "playback status", err)
	}
	transport, err := s.Resolver.ResolveTransport(ctx, selector)
	if err != nil {
		return err
	}
	return s.publishSimple(ctx, transport.NodeID, np.CmdSetPlayback, np.SetPlaybackBody{Status: status})
}

// SetTimeline pushes timeline properties. Arguments accept raw milliseconds
// or Go durations ("3m20s"); the node pins the seek range to [start, end].
func (s Service) SetTimeline(ctx context.Context, selector string, start, end, position string) error {
	startMS, err := parseDurationToMS(start)
	if err != nil {
		return err
	}
	endMS, err := parseDurationToMS(end)
	if err != nil {
		return err
	}
	positionMS, err := parseDurationToMS(position)
	if err != nil {
		return err
	}
	transport, err := s.Resolver.ResolveTransport(ctx, selector)
	if err != nil {
		return err
	}
	body := np.SetTimelineBody{StartMS: startMS, EndMS: endMS, PositionMS: positionMS}
	return s.publishSimple(ctx, transport.NodeID, np.CmdSetTimeline, body)
}

// SetButton toggles a transport button on the node.
func (s Service) SetButton(ctx context.Context, selector string, button string, enabled bool) error {
	if _, err := np.ParseButton(button); err != nil {
		return WrapError(ExitUsage, "button", err)
	}
	transport, err := s.Resolver.ResolveTransport(ctx, selector)
	if err != nil {
		return err
	}
	return s.publishSimple(ctx, transport.NodeID, np.CmdSetButton, np.SetButtonBody{Button: button, Enabled: enabled})
}

func (s Service) publishSimple(ctx context.Context, nodeID string, cmdType string, body any) error {
	cmd, err := np.NewCommand(cmdType, body)
	if err != nil {
		return WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd)
	reply, err := s.Broker.PublishCommand(ctx, nodeID, cmd)
	if err != nil {
		return WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	return nil
}

func (s Service) decorateCommand(cmd np.CommandEnvelope) np.CommandEnvelope {
	cmd.ID = s.IDGen.NewID()
	cmd.TS = s.Clock.NowUnix()
	cmd.From = s.Config.Identity
	cmd.ReplyTo = s.Broker.ReplyTopic()
	return cmd
}

func parseDurationToMS(arg string) (int64, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 0, &CLIError{Code: ExitUsage, Msg: "duration required"}
	}
	if strings.HasSuffix(arg, "ms") || strings.HasSuffix(arg, "s") || strings.HasSuffix(arg, "m") || strings.HasSuffix(arg, "h") {
		dur, err := time.ParseDuration(arg)
		if err != nil {
			return 0, &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("invalid duration %q", arg)}
		}
		return int64(dur / time.Millisecond), nil
	}
	value, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("invalid duration %q", arg)}
	}
	return value, nil
}
