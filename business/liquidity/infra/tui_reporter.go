package infra

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fd1az/liquidity-engine/business/liquidity/app"
	"github.com/fd1az/liquidity-engine/pkg/ui"
)

var (
	_ app.Reporter      = (*TUIReporter)(nil)
	_ app.ErrorReporter = (*TUIReporter)(nil)
)

// TUIReporter forwards estimates to the Bubble Tea dashboard.
type TUIReporter struct {
	program *tea.Program
}

// NewTUIReporter creates the dashboard program. It renders nothing until Run.
func NewTUIReporter(opts ui.Options, programOpts ...tea.ProgramOption) *TUIReporter {
	if len(programOpts) == 0 {
		programOpts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &TUIReporter{program: tea.NewProgram(ui.New(opts), programOpts...)}
}

// Report sends est to the dashboard. It blocks until the program accepts the
// message or has exited.
func (r *TUIReporter) Report(_ context.Context, est *app.Estimate) error {
	r.program.Send(ui.EstimateMsg{Estimate: est})
	return nil
}

// ReportError shows err in the dashboard's error panel.
func (r *TUIReporter) ReportError(_ context.Context, err error) {
	r.program.Send(ui.ErrorMsg{Err: err, At: time.Now()})
}

// Run blocks until the user quits or Quit is called.
func (r *TUIReporter) Run() error {
	_, err := r.program.Run()
	return err
}

// Quit stops the program.
func (r *TUIReporter) Quit() {
	r.program.Quit()
}
