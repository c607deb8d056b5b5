package main

import (
	"context"
	"slices"
	"strings"
	"time"
	"unicode"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/yitech/klinedesk/chart"
	"github.com/yitech/klinedesk/interaction"
	"github.com/yitech/klinedesk/model/candle"
	"github.com/yitech/klinedesk/papersim"
	"github.com/yitech/klinedesk/viewport"
)

// ── styles ────────────────────────────────────────────────────────────────────

var (
	bullStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#26a641"))
	bearStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e05c5c"))
	wickStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	axisStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#aaaaaa"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
	fastStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e3b341"))
	midStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#a371f7"))
	hoverStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#58a6ff"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#d29922"))
)

const doubleClickWindow = 400 * time.Millisecond

// Screen rows above the chart grid: header and info line.
const chartTop = 2

// Rows below the grid: x-axis, time labels, paper panel (4) and footer.
const chartBottom = 7

// ── messages ──────────────────────────────────────────────────────────────────

type chartMsg struct {
	ev chart.Event
	ok bool
}

type paperMsg struct{ e papersim.Entry }

type pausedMsg struct{}

// ── model ─────────────────────────────────────────────────────────────────────

type model struct {
	ctx       context.Context
	session   *chart.Session
	loop      *papersim.Loop
	ledger    *papersim.Ledger
	entries   <-chan papersim.Entry
	exchanges []string
	warnings  []error

	ctl       interaction.Controller
	lastClick time.Time

	editing bool
	input   string

	width  int
	height int
}

func newModel(ctx context.Context, session *chart.Session, loop *papersim.Loop, ledger *papersim.Ledger,
	entries <-chan papersim.Entry, exchanges []string, warnings []error) model {
	return model{
		ctx:       ctx,
		session:   session,
		loop:      loop,
		ledger:    ledger,
		entries:   entries,
		exchanges: exchanges,
		warnings:  warnings,
		ctl:       interaction.Controller{Location: time.Local},
	}
}

// ── Init / Update / View ──────────────────────────────────────────────────────

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.session.Events()), waitForEntry(m.entries))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.editing {
			return m.editSymbol(msg)
		}
		return m.handleKey(msg)

	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, nil

	case chartMsg:
		if !msg.ok {
			return m, nil
		}
		return m, waitForEvent(m.session.Events())

	case paperMsg:
		return m, waitForEntry(m.entries)

	case pausedMsg:
		return m, nil
	}

	return m, nil
}

func (m model) View() string {
	if m.width == 0 {
		return "connecting…"
	}
	snap := m.session.Snapshot()
	m.ctl.Interval = snap.Key.Interval

	var hover interaction.Hover
	var hovering bool
	m.session.Do(func(v chart.View) {
		m.ctl.Layout = m.layout(v.Viewport.Visible(len(v.Candles)))
		hover, hovering = m.ctl.Hover(v.Candles, v.Indicators, v.Viewport)
	})

	clip := lipgloss.NewStyle().MaxWidth(m.width)

	var b strings.Builder
	b.WriteString(clip.Render(renderHeader(snap)))
	b.WriteByte('\n')
	if hovering {
		b.WriteString(clip.Render(renderTooltip(hover)))
	} else {
		b.WriteString(clip.Render(renderInfo(snap)))
	}
	b.WriteByte('\n')
	b.WriteString(m.renderChart(snap, hover, hovering))
	b.WriteString(clip.Render(renderPaper(m.loop.State(), m.ledger.Recent(paperRows-1), m.ledger.Len())))
	b.WriteString(m.renderFooter(snap))
	return b.String()
}

// ── helpers ───────────────────────────────────────────────────────────────────

// waitForEvent blocks on the session's event channel.
func waitForEvent(ch <-chan chart.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		return chartMsg{ev: ev, ok: ok}
	}
}

// waitForEntry blocks until the simulator records an entry.
func waitForEntry(ch <-chan papersim.Entry) tea.Cmd {
	return func() tea.Msg {
		return paperMsg{<-ch}
	}
}

func (m model) chartHeight() int {
	return max(3, m.height-chartTop-chartBottom)
}

func (m model) chartWidth() int {
	return max(1, m.width-yAxisWidth)
}

// layout spreads n visible candles over the chart columns.
func (m model) layout(n int) viewport.Layout {
	return viewport.Fit(yAxisWidth, float64(m.chartWidth()-1), n)
}

func (m model) inChart(x, y int) bool {
	return y >= chartTop && y < chartTop+m.chartHeight() && x >= yAxisWidth && x < m.width
}

func (m model) open(key chart.Key) {
	if err := m.session.Open(m.ctx, key); err != nil {
		log.Error().Err(err).Str("key", key.String()).Msg("open failed")
	}
}

// ── input ─────────────────────────────────────────────────────────────────────

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := m.session.Key()

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "[", "]":
		i := slices.Index(candle.Intervals, key.Interval)
		if msg.String() == "]" {
			i = (i + 1) % len(candle.Intervals)
		} else {
			i = (i - 1 + len(candle.Intervals)) % len(candle.Intervals)
		}
		key.Interval = candle.Intervals[i]
		m.open(key)

	case "e":
		i := slices.Index(m.exchanges, key.Exchange)
		key.Exchange = m.exchanges[(i+1)%len(m.exchanges)]
		m.open(key)

	case "s":
		m.editing = true
		m.input = ""

	case "r":
		if err := m.session.Refresh(m.ctx); err != nil {
			log.Error().Err(err).Msg("refresh failed")
		}

	case "p":
		if m.loop.State() == papersim.Running {
			loop := m.loop
			return m, func() tea.Msg {
				loop.Pause()
				return pausedMsg{}
			}
		}
		m.loop.Start(m.ctx)

	case "+", "=":
		m.session.Do(func(v chart.View) { v.Viewport.Zoom(-1, len(v.Candles)) })
	case "-":
		m.session.Do(func(v chart.View) { v.Viewport.Zoom(1, len(v.Candles)) })
	case "left", "right":
		delta := 10.0
		if msg.String() == "right" {
			delta = -delta
		}
		m.session.Do(func(v chart.View) { v.Viewport.Pan(delta, 1, len(v.Candles)) })
	case "0", "home":
		m.session.Do(func(v chart.View) { v.Viewport.Reset() })
	}
	return m, nil
}

func (m model) editSymbol(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.editing = false
	case tea.KeyEnter:
		m.editing = false
		if m.input != "" {
			key := m.session.Key()
			key.Symbol = m.input
			m.open(key)
		}
	case tea.KeyBackspace:
		if n := len(m.input); n > 0 {
			m.input = m.input[:n-1]
		}
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '/') {
				m.input += strings.ToUpper(string(r))
			}
		}
	}
	return m, nil
}

// handleMouse routes pointer input through the interaction controller.
func (m *model) handleMouse(msg tea.MouseMsg) {
	x := float64(msg.X)
	inside := m.inChart(msg.X, msg.Y)

	m.session.Do(func(v chart.View) {
		total := len(v.Candles)
		m.ctl.Layout = m.layout(v.Viewport.Visible(total))
		if inside {
			m.ctl.Enter(x)
		} else if !m.ctl.Dragging() {
			m.ctl.Leave()
		}

		switch {
		case msg.Button == tea.MouseButtonWheelUp:
			m.ctl.Wheel(-1, v.Viewport, total)
		case msg.Button == tea.MouseButtonWheelDown:
			m.ctl.Wheel(1, v.Viewport, total)

		case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
			if !inside {
				return
			}
			now := time.Now()
			if now.Sub(m.lastClick) < doubleClickWindow {
				m.ctl.DoubleClick(v.Viewport)
				m.lastClick = time.Time{}
				return
			}
			m.lastClick = now
			m.ctl.PointerDown(x, v.Viewport)

		case msg.Action == tea.MouseActionRelease:
			m.ctl.PointerUp()

		case msg.Action == tea.MouseActionMotion:
			if inside || m.ctl.Dragging() {
				m.ctl.PointerMove(x, v.Viewport, total)
			}
		}
	})
}
