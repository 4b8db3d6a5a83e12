// Package infra contains infrastructure adapters for the liquidity context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/fd1az/liquidity-engine/business/liquidity/app"
	"github.com/fd1az/liquidity-engine/business/liquidity/domain"
	"github.com/fd1az/liquidity-engine/pkg/ui"
)

var _ app.Reporter = (*ConsoleReporter)(nil)

const (
	defaultTopLevels = 5
	pricePlaces      = 6
	amountPlaces     = 6
)

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	out       io.Writer
	topLevels int
}

// NewConsoleReporter creates a ConsoleReporter writing to stdout.
func NewConsoleReporter() *ConsoleReporter {
	return NewConsoleReporterTo(os.Stdout)
}

// NewConsoleReporterTo creates a ConsoleReporter writing to w.
func NewConsoleReporterTo(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: w, topLevels: defaultTopLevels}
}

// Report prints the depth, best levels and fill of one estimate.
func (r *ConsoleReporter) Report(ctx context.Context, est *app.Estimate) error {
	if est == nil {
		return nil
	}
	req := est.Request

	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, ui.HeaderStyle.Render(fmt.Sprintf("%s %s %s", strings.ToUpper(string(req.Side)), req.Amount.String(), req.Pair.String())))
	fmt.Fprintln(r.out, ui.MutedValue.Render(fmt.Sprintf("estimate %s at %s (%s)",
		est.ID, est.CreatedAt.Format(time.RFC3339), est.Duration.Round(time.Millisecond))))

	r.printDepth(est)
	r.printLevels(est)
	r.printFill(est)
	return nil
}

func (r *ConsoleReporter) printDepth(est *app.Estimate) {
	mid := "n/a"
	if est.MidPrice.Valid {
		mid = est.MidPrice.Decimal.StringFixed(pricePlaces)
	}

	pool := "none"
	switch {
	case est.Pool != nil:
		pool = fmt.Sprintf("%s / %s (fee %s, spot %s)",
			est.Pool.BaseReserves.StringFixed(amountPlaces),
			est.Pool.QuoteReserves.StringFixed(amountPlaces),
			est.Pool.FeeRate.String(),
			est.Pool.SpotPrice().StringFixed(pricePlaces))
	case est.PoolSkipped != "":
		pool = "skipped: " + est.PoolSkipped
	}

	table := tablewriter.NewWriter(r.out)
	table.Header("Side", "Levels", "Volume")
	table.Append("bids", fmt.Sprintf("%d", est.Depth.BidLevels), est.Depth.BidVolume.StringFixed(amountPlaces))
	table.Append("asks", fmt.Sprintf("%d", est.Depth.AskLevels), est.Depth.AskVolume.StringFixed(amountPlaces))
	table.Render()

	fmt.Fprintf(r.out, "  Mid:  %s\n", mid)
	fmt.Fprintf(r.out, "  Pool: %s\n", pool)
}

func (r *ConsoleReporter) printLevels(est *app.Estimate) {
	asks := domain.AsksBestFirst(est.Asks)
	if len(asks) == 0 && len(est.Bids) == 0 {
		return
	}

	table := tablewriter.NewWriter(r.out)
	table.Header("#", "Bid", "Bid size", "Ask", "Ask size")
	for i := 0; i < r.topLevels && (i < len(est.Bids) || i < len(asks)); i++ {
		row := []string{fmt.Sprintf("%d", i+1), "", "", "", ""}
		if i < len(est.Bids) {
			row[1] = est.Bids[i].Price.StringFixed(pricePlaces)
			row[2] = est.Bids[i].Amount.StringFixed(amountPlaces)
		}
		if i < len(asks) {
			row[3] = asks[i].Price.StringFixed(pricePlaces)
			row[4] = asks[i].Amount.StringFixed(amountPlaces)
		}
		table.Append(row)
	}
	table.Render()
}

func (r *ConsoleReporter) printFill(est *app.Estimate) {
	outcome := est.Outcome()
	fmt.Fprintf(r.out, "  Outcome: %s\n", ui.OutcomeStyle(outcome).Render(strings.ToUpper(outcome)))

	fill := est.Fill
	if fill == nil {
		fmt.Fprintln(r.out, ui.MutedValue.Render("  no liquidity on this side"))
		return
	}

	slippage := "n/a"
	if fill.SlippagePercent.Valid {
		slippage = fill.SlippagePercent.Decimal.StringFixed(4) + "%"
	}

	table := tablewriter.NewWriter(r.out)
	table.Header("Metric", "Value")
	table.Append("filled", fill.FilledAmount.StringFixed(amountPlaces))
	table.Append("from book", fill.ClobFilled.StringFixed(amountPlaces))
	table.Append("from pool", fill.AmmFilled.StringFixed(amountPlaces))
	table.Append("avg price", fill.AvgPrice.StringFixed(pricePlaces))
	table.Append("worst price", fill.WorstPrice.StringFixed(pricePlaces))
	table.Append("total", fill.TotalCost.StringFixed(amountPlaces))
	table.Append("slippage", slippage)
	if !fill.FullFill {
		table.Append("shortfall", est.Shortfall().StringFixed(amountPlaces))
	}
	table.Render()
}
