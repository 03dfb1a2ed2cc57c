package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"

	"github.com/soren-m/now_playing/internal/core"
	"github.com/soren-m/now_playing/pkg/np"
)

// HumanPrinter prints human-readable output.
type HumanPrinter struct{}

// Print renders human output.
func (HumanPrinter) Print(v any) error {
	switch data := v.(type) {
	case core.NodesResult:
		return printNodes(data)
	case core.StatusResult:
		return printStatus(data)
	case np.TransportState:
		return printState(data)
	case np.Event:
		return printEvent(data)
	default:
		_, err := fmt.Fprintln(os.Stdout, "ok")
		return err
	}
}

func printNodes(result core.NodesResult) error {
	rows := pterm.TableData{{"NAME", "KIND", "NODE_ID"}}
	for _, node := range result.Nodes {
		rows = append(rows, []string{node.Name, node.Kind, node.NodeID})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func printStatus(result core.StatusResult) error {
	line := fmt.Sprintf("%s  [%s]", result.Transport.Name, statusLabel(result.State.Status))
	if item := formatDisplay(result.State.Display); item != "" {
		line += "  " + item
	}
	if result.State.Timeline != nil {
		line += "  " + formatPosition(result.State.Timeline.PositionMS, result.State.Timeline.EndMS)
	}
	if _, err := fmt.Fprintln(os.Stdout, line); err != nil {
		return err
	}
	if buttons := formatButtons(result.State.Buttons); buttons != "" {
		_, err := fmt.Fprintf(os.Stdout, "buttons: %s\n", buttons)
		return err
	}
	return nil
}

func printState(state np.TransportState) error {
	line := fmt.Sprintf("[%s]", statusLabel(state.Status))
	if item := formatDisplay(state.Display); item != "" {
		line += "  " + item
	}
	if state.Timeline != nil {
		line += "  " + formatPosition(state.Timeline.PositionMS, state.Timeline.EndMS)
	}
	_, err := fmt.Fprintf(os.Stdout, "%s  (v%d)\n", line, state.StateVersion)
	return err
}

func printEvent(evt np.Event) error {
	switch evt.Type {
	case np.EventButtonPressed:
		_, err := fmt.Fprintf(os.Stdout, "button: %s\n", evt.Button)
		return err
	case np.EventSeekRequested:
		_, err := fmt.Fprintf(os.Stdout, "seek: %s\n", formatMS(evt.PositionMS))
		return err
	default:
		_, err := fmt.Fprintf(os.Stdout, "event: %s\n", evt.Type)
		return err
	}
}

func statusLabel(status string) string {
	switch status {
	case "playing":
		return pterm.Green(status)
	case "paused", "changing":
		return pterm.Yellow(status)
	case "":
		return "unknown"
	default:
		return status
	}
}

func formatDisplay(display *np.DisplayState) string {
	if display == nil {
		return ""
	}
	var parts []string
	if display.Artist != "" && display.Title != "" {
		parts = append(parts, fmt.Sprintf("%s - %s", display.Artist, display.Title))
	} else if display.Title != "" {
		parts = append(parts, display.Title)
	}
	if display.Album != "" {
		parts = append(parts, fmt.Sprintf("(%s)", display.Album))
	}
	if display.Thumbnail {
		parts = append(parts, "[art]")
	}
	return strings.Join(parts, " ")
}

func formatButtons(buttons map[string]bool) string {
	if len(buttons) == 0 {
		return ""
	}
	order := []string{"play", "pause", "stop", "fastforward", "rewind", "next", "previous"}
	enabled := make([]string, 0, len(order))
	for _, name := range order {
		if buttons[name] {
			enabled = append(enabled, name)
		}
	}
	return strings.Join(enabled, " ")
}

func formatPosition(pos, end int64) string {
	if pos == 0 && end == 0 {
		return ""
	}
	if end > 0 {
		percent := (pos * 100) / end
		return fmt.Sprintf("%s / %s (%d%%)", formatMS(pos), formatMS(end), percent)
	}
	return formatMS(pos)
}

func formatMS(ms int64) string {
	if ms <= 0 {
		return "0:00"
	}
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
