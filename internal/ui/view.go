package ui

import (
	"fmt"
	"strings"
)

func (m Model) View() string {
	if m.current == nil && m.lastErr == nil {
		return fmt.Sprintf("%s Querying NPU status...\n", m.spinner.View())
	}

	var b strings.Builder
	if m.lastErr != nil {
		b.WriteString(m.renderer.RenderError(m.lastErr, m.lastUpdate))
	} else {
		b.WriteString(m.renderer.Render(m.current))
	}

	status := fmt.Sprintf("Interval: %s | Last Updated: %s | 'r' refresh | 'q' quit",
		formatInterval(m.interval), m.lastUpdate.Format("15:04:05"))
	if m.inFlight {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(m.renderer.Styles.Footer.Render(status))
	return b.String()
}
