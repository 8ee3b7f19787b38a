package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/cwbudde/voicegate/monitor"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#2E86DE")
	activeColor  = lipgloss.Color("#00AA00")
	warnColor    = lipgloss.Color("#FFA500")
	errorColor   = lipgloss.Color("#A40000")
	mutedColor   = lipgloss.Color("#888888")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	connectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(activeColor)

	disconnectedStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(warnColor)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	keyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	meterOnStyle = lipgloss.NewStyle().
			Foreground(activeColor)

	meterOffStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

const meterWidth = 30

// renderMeter draws level in [0,1] as a bar with a tick at the
// sensitivity threshold.
func renderMeter(level, sensitivity float64, active bool) string {
	filled := int(level*meterWidth + 0.5)
	filled = max(0, min(filled, meterWidth))
	mark := int(sensitivity*meterWidth + 0.5)

	var sb strings.Builder
	for i := range meterWidth {
		switch {
		case i < filled:
			sb.WriteRune('█')
		case i == mark:
			sb.WriteRune('|')
		default:
			sb.WriteRune('·')
		}
	}

	style := meterOffStyle
	state := "idle "
	if active {
		style = meterOnStyle
		state = "voice"
	}
	return fmt.Sprintf("%s %s %.3f", style.Render(sb.String()), style.Render(state), level)
}

// renderEvent formats one engine event for the terminal.
func renderEvent(ev monitor.Event, sensitivity float64) string {
	ts := keyStyle.Render(ev.Time.Format("15:04:05.000"))
	switch ev.Kind {
	case monitor.EventConnection:
		if ev.Connection == monitor.Connected {
			return fmt.Sprintf("%s %s %s", ts, connectedStyle.Render("● connected"), keyStyle.Render("mode "+ev.Mode.String()))
		}
		return fmt.Sprintf("%s %s", ts, disconnectedStyle.Render("○ disconnected"))
	case monitor.EventVoice:
		return fmt.Sprintf("%s %s", ts, renderMeter(ev.Voice.Level, sensitivity, ev.Voice.Active))
	case monitor.EventError:
		msg := ev.Err.Message()
		if ev.Err.Param != "" {
			msg += " (" + ev.Err.Param + ")"
		}
		if ev.Err.Retryable() {
			msg += "; type 'retry' to ask again"
		}
		return fmt.Sprintf("%s %s %s", ts, errorStyle.Render("✗ "+ev.Err.Kind.String()), msg)
	}
	return ts
}

// renderStatus formats a status snapshot as key/value lines.
func renderStatus(st monitor.Status) string {
	conn := disconnectedStyle.Render(st.Connection.String())
	if st.Connection == monitor.Connected {
		conn = connectedStyle.Render(st.Connection.String())
	}
	lines := []string{
		titleStyle.Render("voicegate status"),
		keyStyle.Render("connection   ") + conn,
		keyStyle.Render("mode         ") + st.Mode.String(),
		keyStyle.Render("next mode    ") + st.PendingMode.String(),
		keyStyle.Render("volume       ") + fmt.Sprintf("%.2f (muted %v)", st.Volume, st.Muted),
		keyStyle.Render("gain         ") + fmt.Sprintf("%.3f", st.EffectiveGain),
		keyStyle.Render("sensitivity  ") + fmt.Sprintf("%.3f", st.Sensitivity),
		keyStyle.Render("voice        ") + renderMeter(st.Voice.Level, st.Sensitivity, st.Voice.Active),
	}
	if st.LastError != nil {
		lines = append(lines, keyStyle.Render("last error   ")+errorStyle.Render(st.LastError.Message()))
	}
	return strings.Join(lines, "\n")
}
