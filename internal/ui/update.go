package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			if !m.inFlight {
				m.inFlight = true
				m.tickGen++
				return m, m.runQuery()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case QueryResultMsg:
		m.inFlight = false
		m.lastUpdate = msg.finished
		if msg.err != nil {
			m.lastErr = msg.err
		} else {
			m.lastErr = nil
			m.current = msg.collection
		}
		m.tickGen++
		return m, m.tick(msg.finished.Sub(msg.started))

	case TickMsg:
		if msg.gen != m.tickGen || m.inFlight {
			return m, nil
		}
		m.inFlight = true
		return m, m.runQuery()
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

// runQuery never shares its context with the refresh timer, so a slow query
// is only cut short by its own command timeouts or by quitting.
func (m Model) runQuery() tea.Cmd {
	return func() tea.Msg {
		started := time.Now()
		c, err := m.query(m.ctx)
		return QueryResultMsg{collection: c, err: err, started: started, finished: time.Now()}
	}
}

// tick schedules the next refresh one interval after the previous query
// started, tagged with the current generation.
func (m Model) tick(took time.Duration) tea.Cmd {
	wait := m.interval - took
	if wait <= 0 {
		wait = time.Millisecond
	}
	gen := m.tickGen
	return tea.Tick(wait, func(t time.Time) tea.Msg {
		return TickMsg{gen: gen, at: t}
	})
}
