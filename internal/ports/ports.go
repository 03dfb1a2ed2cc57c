// Package ports defines the controller-side interfaces the np CLI is built
// against.
package ports

import (
	"context"

	"github.com/soren-m/now_playing/pkg/np"
)

// Broker publishes commands and reads retained state/presence.
type Broker interface {
	ReplyTopic() string
	PublishCommand(ctx context.Context, nodeID string, cmd np.CommandEnvelope) (np.ReplyEnvelope, error)
	ListPresence(ctx context.Context) ([]np.Presence, error)
	GetTransportState(ctx context.Context, nodeID string) (np.TransportState, error)
	WatchTransport(ctx context.Context, nodeID string) (<-chan np.TransportState, <-chan np.Event, <-chan error)
}

// Clock returns the current unix time in seconds.
type Clock interface {
	NowUnix() int64
}

// IDGen returns unique correlation IDs.
type IDGen interface {
	NewID() string
}
