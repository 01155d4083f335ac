package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wmc1992/npustat/internal/stat"
)

// QueryFunc runs one status query.
type QueryFunc func(ctx context.Context) (*stat.Collection, error)

// Model is the watch screen: the latest status table refreshed every
// interval, or the last error in its place.
type Model struct {
	ctx      context.Context
	query    QueryFunc
	renderer *Renderer
	interval time.Duration
	spinner  spinner.Model

	current    *stat.Collection
	lastErr    error
	lastUpdate time.Time
	inFlight   bool
	tickGen    int
	width      int
	height     int
}

// TickMsg fires a scheduled refresh. Only the tick carrying the current
// generation starts a query; older ones were superseded by a manual refresh.
type TickMsg struct {
	gen int
	at  time.Time
}

type QueryResultMsg struct {
	collection *stat.Collection
	err        error
	started    time.Time
	finished   time.Time
}

func formatInterval(interval time.Duration) string {
	seconds := interval.Seconds()
	if seconds < 1 {
		return fmt.Sprintf("%.2fs", seconds)
	} else if seconds < 10 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	return fmt.Sprintf("%.0fs", seconds)
}

func InitialModel(ctx context.Context, query QueryFunc, renderer *Renderer, interval time.Duration) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		ctx:      ctx,
		query:    query,
		renderer: renderer,
		interval: interval,
		spinner:  s,
		inFlight: true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runQuery())
}

// Err returns the error of the most recent query, if it failed.
func (m Model) Err() error {
	return m.lastErr
}
