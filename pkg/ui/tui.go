package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/liquidity-engine/business/liquidity/app"
)

const (
	defaultHistory = 10
	maxErrors      = 3
	pricePlaces    = 6
	amountPlaces   = 6
	// Below this width the depth and fill boxes stack.
	sideBySideWidth = 100
)

// Options configures the dashboard.
type Options struct {
	Title    string // e.g. "BUY 1000 XRP/USD"
	Interval time.Duration
	History  int // estimates kept in the history panel
}

type historyRow struct {
	at       time.Time
	outcome  string
	filled   string
	avg      string
	slippage string
	ammShare string
}

type errorEntry struct {
	message string
	at      time.Time
}

// Model is the Bubble Tea model for watch mode.
type Model struct {
	opts    Options
	keys    KeyMap
	help    help.Model
	spinner spinner.Model

	width    int
	paused   bool
	quitting bool

	last       *app.Estimate
	received   int
	skipped    int // received while paused
	lastUpdate time.Time
	history    []historyRow
	errors     []errorEntry
}

// New creates the dashboard model.
func New(opts Options) Model {
	if opts.History <= 0 {
		opts.History = defaultHistory
	}
	return Model{
		opts:    opts,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(HeaderStyle)),
	}
}

// Init starts the waiting spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Clear):
			m.history = nil
			m.errors = nil
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if m.last != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case EstimateMsg:
		if msg.Estimate == nil {
			return m, nil
		}
		m.received++
		if m.paused {
			m.skipped++
			return m, nil
		}
		m.last = msg.Estimate
		m.lastUpdate = msg.Estimate.CreatedAt
		m.history = append([]historyRow{newHistoryRow(msg.Estimate)}, m.history...)
		if len(m.history) > m.opts.History {
			m.history = m.history[:m.opts.History]
		}
		return m, nil

	case ErrorMsg:
		if msg.Err == nil {
			return m, nil
		}
		m.errors = append(m.errors, errorEntry{message: msg.Err.Error(), at: msg.At})
		if len(m.errors) > maxErrors {
			m.errors = m.errors[len(m.errors)-maxErrors:]
		}
		return m, nil
	}

	return m, nil
}

func newHistoryRow(est *app.Estimate) historyRow {
	row := historyRow{
		at:       est.CreatedAt,
		outcome:  est.Outcome(),
		filled:   "0",
		avg:      "-",
		slippage: "-",
		ammShare: "-",
	}
	if f := est.Fill; f != nil {
		row.filled = f.FilledAmount.StringFixed(amountPlaces)
		row.avg = f.AvgPrice.StringFixed(pricePlaces)
		row.ammShare = f.AmmShare().Shift(2).StringFixed(1) + "%"
		if f.SlippagePercent.Valid {
			row.slippage = f.SlippagePercent.Decimal.StringFixed(4) + "%"
		}
	}
	return row
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" Liquidity Estimator "))
	b.WriteString("  ")
	b.WriteString(HeaderStyle.Render(m.opts.Title))
	b.WriteString("\n\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	if m.last == nil {
		b.WriteString(fmt.Sprintf("  %s Waiting for first estimate...\n\n", m.spinner.View()))
	} else {
		depth := m.renderDepth()
		fill := m.renderFill()
		if m.width > sideBySideWidth {
			half := m.width/2 - 2
			b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
				BoxStyle.Width(half).Render(depth),
				BoxStyle.Width(half).Render(fill)))
		} else {
			b.WriteString(BoxStyle.Render(depth))
			b.WriteString("\n")
			b.WriteString(BoxStyle.Render(fill))
		}
		b.WriteString("\n\n")
		b.WriteString(m.renderHistory())
		b.WriteString("\n")
	}

	if len(m.errors) > 0 {
		b.WriteString(NoFillStyle.Render("ERRORS"))
		b.WriteString("\n")
		for _, e := range m.errors {
			b.WriteString(ErrorStyle.Render("  • " + e.message))
			if !e.at.IsZero() {
				b.WriteString(MutedValue.Render(fmt.Sprintf(" (%s ago)", time.Since(e.at).Round(time.Second))))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.paused {
		b.WriteString(PausedStyle.Render("⏸ PAUSED"))
		b.WriteString(" • ")
	}
	b.WriteString(m.help.View(m.keys))

	return b.String()
}

func (m Model) renderStatusBar() string {
	parts := []string{fmt.Sprintf("Estimates: %d", m.received)}
	if m.opts.Interval > 0 {
		parts = append(parts, fmt.Sprintf("Every %s", m.opts.Interval))
	}
	if m.skipped > 0 {
		parts = append(parts, fmt.Sprintf("Skipped: %d", m.skipped))
	}
	if !m.lastUpdate.IsZero() {
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago", time.Since(m.lastUpdate).Round(time.Second))))
	}
	return strings.Join(parts, "  │  ")
}

func (m Model) renderDepth() string {
	est := m.last

	var sb strings.Builder
	sb.WriteString(HeaderStyle.Render("DEPTH"))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Bids  %3d levels  %s\n", est.Depth.BidLevels, est.Depth.BidVolume.StringFixed(amountPlaces))
	fmt.Fprintf(&sb, "Asks  %3d levels  %s\n", est.Depth.AskLevels, est.Depth.AskVolume.StringFixed(amountPlaces))

	mid := "n/a"
	if est.MidPrice.Valid {
		mid = est.MidPrice.Decimal.StringFixed(pricePlaces)
	}
	fmt.Fprintf(&sb, "Mid   %s\n", mid)

	switch {
	case est.Pool != nil:
		fmt.Fprintf(&sb, "Pool  spot %s  fee %s\n",
			est.Pool.SpotPrice().StringFixed(pricePlaces), est.Pool.FeeRate.String())
	case est.PoolSkipped != "":
		sb.WriteString(MutedValue.Render("Pool  skipped: " + est.PoolSkipped))
		sb.WriteString("\n")
	default:
		sb.WriteString(MutedValue.Render("Pool  none"))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderFill() string {
	est := m.last
	outcome := est.Outcome()

	var sb strings.Builder
	sb.WriteString(HeaderStyle.Render("FILL"))
	sb.WriteString("  ")
	sb.WriteString(OutcomeStyle(outcome).Render(strings.ToUpper(outcome)))
	sb.WriteString("\n\n")

	f := est.Fill
	if f == nil {
		sb.WriteString(MutedValue.Render("no liquidity on this side"))
		sb.WriteString("\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, "Filled     %s\n", f.FilledAmount.StringFixed(amountPlaces))
	fmt.Fprintf(&sb, "  book     %s\n", f.ClobFilled.StringFixed(amountPlaces))
	fmt.Fprintf(&sb, "  pool     %s\n", f.AmmFilled.StringFixed(amountPlaces))
	fmt.Fprintf(&sb, "Avg price  %s\n", f.AvgPrice.StringFixed(pricePlaces))
	fmt.Fprintf(&sb, "Worst      %s\n", f.WorstPrice.StringFixed(pricePlaces))
	fmt.Fprintf(&sb, "Total      %s\n", f.TotalCost.StringFixed(amountPlaces))
	if f.SlippagePercent.Valid {
		fmt.Fprintf(&sb, "Slippage   %s%%\n", f.SlippagePercent.Decimal.StringFixed(4))
	}
	if !f.FullFill {
		fmt.Fprintf(&sb, "Shortfall  %s\n", est.Shortfall().StringFixed(amountPlaces))
	}
	return sb.String()
}

func (m Model) renderHistory() string {
	var sb strings.Builder
	sb.WriteString(HeaderStyle.Render("HISTORY"))
	sb.WriteString("\n")
	for _, r := range m.history {
		fmt.Fprintf(&sb, "  %s  %s  filled %s  avg %s  slip %s  pool %s\n",
			MutedValue.Render(r.at.Format("15:04:05")),
			OutcomeStyle(r.outcome).Render(fmt.Sprintf("%-7s", strings.ToUpper(r.outcome))),
			r.filled, r.avg, r.slippage, r.ammShare)
	}
	return sb.String()
}
