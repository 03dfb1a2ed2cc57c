package core

import "github.com/soren-m/now_playing/pkg/np"

// NodesResult holds a list of presence records.
type NodesResult struct {
	Nodes []np.Presence
}

// StatusResult holds transport presence and state.
type StatusResult struct {
	Transport np.Presence
	State     np.TransportState
}
