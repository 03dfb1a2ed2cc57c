package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/soren-m/now_playing/internal/ports"
	"github.com/soren-m/now_playing/pkg/np"
)

// Resolver resolves selectors to node presence.
type Resolver struct {
	Presence ports.Broker
	Config   Config
}

// ResolveTransport resolves a transport selector using config defaults.
// With no selector and exactly one transport node present, that node wins.
func (r Resolver) ResolveTransport(ctx context.Context, selector string) (np.Presence, error) {
	if selector == "" {
		selector = r.Config.Defaults.Transport
	}

	presence, err := r.Presence.ListPresence(ctx)
	if err != nil {
		return np.Presence{}, WrapError(ExitRuntime, "list presence", err)
	}

	filtered := filterPresenceByKind(presence, "transport")
	if selector == "" {
		if len(filtered) == 1 {
			return filtered[0], nil
		}
		return np.Presence{}, &CLIError{Code: ExitUsage, Msg: "selector required"}
	}
	return resolveSelector(selector, filtered, r.Config.Aliases)
}

func filterPresenceByKind(presence []np.Presence, kind string) []np.Presence {
	if kind == "" {
		return presence
	}
	out := make([]np.Presence, 0, len(presence))
	for _, p := range presence {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

func resolveSelector(selector string, presence []np.Presence, aliases map[string]string) (np.Presence, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return np.Presence{}, &CLIError{Code: ExitUsage, Msg: "selector required"}
	}

	if strings.HasPrefix(selector, "np:") {
		return resolveExact(selector, presence)
	}

	if alias, ok := aliases[selector]; ok {
		if strings.HasPrefix(alias, "np:") {
			return resolveExact(alias, presence)
		}
		selector = alias
	}

	matches := make([]np.Presence, 0)
	for _, p := range presence {
		if strings.EqualFold(p.Name, selector) || strings.EqualFold(p.NodeID, selector) {
			matches = append(matches, p)
		}
	}

	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) == 0 {
		return np.Presence{}, &CLIError{Code: ExitNotFound, Msg: fmt.Sprintf("no match for %q", selector)}
	}
	return np.Presence{}, &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("ambiguous selector %q: %s", selector, suggestionList(matches))}
}

func resolveExact(nodeID string, presence []np.Presence) (np.Presence, error) {
	for _, p := range presence {
		if p.NodeID == nodeID {
			return p, nil
		}
	}
	return np.Presence{}, &CLIError{Code: ExitNotFound, Msg: fmt.Sprintf("node not found: %s", nodeID)}
}

func suggestionList(matches []np.Presence) string {
	names := make([]string, 0, len(matches))
	for _, p := range matches {
		names = append(names, fmt.Sprintf("%s (%s)", p.Name, p.NodeID))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
