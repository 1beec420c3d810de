package quarter

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Sharoon166/reverie/internal/crm"
)

// TransactionSource exposes the read side of the transactional collections.
type TransactionSource interface {
	ListExpensesBetween(ctx context.Context, from, to time.Time) ([]crm.Expense, error)
	ListSalaryPaymentsByMonths(ctx context.Context, months []string) ([]crm.SalaryPayment, error)
	ListInvoicesIssuedBetween(ctx context.Context, from, to time.Time) ([]crm.Invoice, error)
	ListClients(ctx context.Context) ([]crm.Client, error)
	ListLeads(ctx context.Context) ([]crm.Lead, error)
}

// ClosureLookup answers whether a closure record exists for a quarter.
type ClosureLookup interface {
	IsClosed(ctx context.Context, quarterID string) (bool, error)
}

// Aggregator rolls transactional rows up into per-quarter summaries. A
// failing data source degrades to a zero contribution rather than aborting
// the whole summary.
type Aggregator struct {
	source   TransactionSource
	closures ClosureLookup
	logger   *slog.Logger
	now      func() time.Time
}

// NewAggregator constructs an Aggregator instance.
func NewAggregator(source TransactionSource, closures ClosureLookup, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		source:   source,
		closures: closures,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (a *Aggregator) WithNow(now func() time.Time) {
	if now != nil {
		a.now = now
	}
}

// QuarterlySummaries computes all four quarters of the given year. Zero
// means the current year. Quarters are computed sequentially; each quarter's
// five source queries run concurrently.
func (a *Aggregator) QuarterlySummaries(ctx context.Context, year int) ([]QuarterlySummary, error) {
	if year == 0 {
		_, year = QuarterOf(a.now())
	}
	summaries := make([]QuarterlySummary, 0, 4)
	for number := 1; number <= 4; number++ {
		summary, err := a.QuarterSummary(ctx, year, number)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// QuarterSummary computes the summary view for a single quarter.
func (a *Aggregator) QuarterSummary(ctx context.Context, year, number int) (QuarterlySummary, error) {
	start, end := Range(year, number)
	quarterID := FormatQuarterID(number, year)

	var (
		expenses []crm.Expense
		salaries []crm.SalaryPayment
		invoices []crm.Invoice
		clients  []crm.Client
		leads    []crm.Lead
	)

	var g errgroup.Group
	g.Go(func() error {
		var err error
		if expenses, err = a.source.ListExpensesBetween(ctx, start, end); err != nil {
			a.warn("expenses", quarterID, err)
			expenses = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if salaries, err = a.source.ListSalaryPaymentsByMonths(ctx, Months(year, number)); err != nil {
			a.warn("salary_payments", quarterID, err)
			salaries = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if invoices, err = a.source.ListInvoicesIssuedBetween(ctx, start, end); err != nil {
			a.warn("invoices", quarterID, err)
			invoices = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if clients, err = a.source.ListClients(ctx); err != nil {
			a.warn("clients", quarterID, err)
			clients = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if leads, err = a.source.ListLeads(ctx); err != nil {
			a.warn("leads", quarterID, err)
			leads = nil
		}
		return nil
	})
	_ = g.Wait()

	summary := QuarterlySummary{
		ID:        quarterID,
		Name:      QuarterName(year, number),
		StartDate: start,
		EndDate:   end,
	}

	for _, e := range expenses {
		summary.TotalExpenses += e.Amount
	}
	for _, p := range salaries {
		summary.TotalSalaries += p.EffectiveAmount()
	}
	summary.Counts.Invoices = len(invoices)
	for _, inv := range invoices {
		if inv.IsPaid() {
			summary.TotalRevenue += inv.Amount
			summary.Counts.PaidInvoices++
		}
	}
	// Client and lead totals are intentionally unscoped running totals; only
	// the "new" and "converted" subsets are period-bound.
	summary.Counts.Clients = len(clients)
	for _, c := range clients {
		if dateInRange(c.StartDate, start, end) {
			summary.Counts.NewClients++
		}
	}
	summary.Counts.Leads = len(leads)
	for _, l := range leads {
		if l.IsConverted() {
			summary.Counts.ConvertedLeads++
		}
	}

	summary.NetProfit = NetProfit(summary.TotalRevenue, summary.TotalExpenses, summary.TotalSalaries)
	summary.ProfitMargin = ProfitMargin(summary.NetProfit, summary.TotalRevenue)
	summary.Status = a.deriveStatus(ctx, quarterID, start, end)
	return summary, nil
}

// deriveStatus computes the three-way derived state: an explicit closure
// record wins, otherwise the quarter's position relative to the clock decides.
func (a *Aggregator) deriveStatus(ctx context.Context, quarterID string, start, end time.Time) SummaryStatus {
	if a.closures != nil {
		closed, err := a.closures.IsClosed(ctx, quarterID)
		if err != nil {
			a.warn("closure lookup", quarterID, err)
		} else if closed {
			return SummaryClosed
		}
	}
	now := a.now().UTC()
	switch {
	case now.Before(start):
		return SummaryArchived
	case now.After(end):
		return SummaryClosed
	default:
		return SummaryActive
	}
}

func (a *Aggregator) warn(source, quarterID string, err error) {
	if a.logger == nil {
		return
	}
	a.logger.Warn("partial aggregation: source degraded to zero",
		slog.String("source", source),
		slog.String("quarter", quarterID),
		slog.Any("error", err))
}

// dateInRange compares on calendar days in UTC, inclusive on both ends.
func dateInRange(t, start, end time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(startDay) && !day.After(endDay)
}
