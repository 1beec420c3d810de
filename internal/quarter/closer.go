package quarter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Sharoon166/reverie/internal/crm"
)

// CloseTarget exposes the mutation side of the transactional collections
// used while locking a quarter.
type CloseTarget interface {
	ArchiveLeads(ctx context.Context, from, to time.Time) (int64, error)
	DeactivateClients(ctx context.Context, from, to time.Time) (int64, error)
	CloseInvoices(ctx context.Context, from, to time.Time) (int64, error)
	LockExpenses(ctx context.Context, from, to time.Time) (int64, error)
	CreateExpense(ctx context.Context, in crm.Expense) (crm.Expense, error)
}

// RecordStore exposes the quarter record operations the closer needs.
type RecordStore interface {
	GetOrCreate(ctx context.Context, year, number int) (Quarter, error)
	UpdateQuarter(ctx context.Context, quarterID string, upd Update) (Quarter, error)
}

// SummarySource recomputes the live summary for one quarter.
type SummarySource interface {
	QuarterSummary(ctx context.Context, year, number int) (QuarterlySummary, error)
}

// CloseHook receives a notification after a successful close. Hook failures
// must not fail the close.
type CloseHook interface {
	QuarterClosed(ctx context.Context, result ClosureResult)
}

// Closer orchestrates the quarter close workflow: precondition validation,
// locking the transactional rows, persisting closure fields, and carrying the
// remaining balance forward as an opening-balance expense.
//
// The mutation phase is not transactional across collections; a failure
// after some mutations have been applied leaves them applied.
type Closer struct {
	target  CloseTarget
	records RecordStore
	summary SummarySource
	logger  *slog.Logger
	hook    CloseHook
	now     func() time.Time
}

// NewCloser constructs a Closer instance.
func NewCloser(target CloseTarget, records RecordStore, summary SummarySource, logger *slog.Logger) *Closer {
	return &Closer{
		target:  target,
		records: records,
		summary: summary,
		logger:  logger,
		now:     time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (c *Closer) WithNow(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// WithHook registers a post-close notification hook.
func (c *Closer) WithHook(hook CloseHook) {
	c.hook = hook
}

// Close runs the close workflow for the identified quarter. Preconditions
// raise before any mutation; mutation-phase failures wrap as *CloseError and
// are not rolled back.
func (c *Closer) Close(ctx context.Context, quarterID string, withdrawal float64) (ClosureResult, error) {
	number, year, err := ParseQuarterID(quarterID)
	if err != nil {
		return ClosureResult{}, err
	}
	if withdrawal < 0 {
		return ClosureResult{}, fmt.Errorf("%w: withdrawal %.2f is negative", ErrInvalidAmount, withdrawal)
	}

	summary, err := c.summary.QuarterSummary(ctx, year, number)
	if err != nil {
		return ClosureResult{}, fmt.Errorf("%w: %s", ErrNotFound, quarterID)
	}
	if summary.Status != SummaryActive {
		return ClosureResult{}, fmt.Errorf("%w: %s is %s, only an active quarter can be closed", ErrInvalidState, quarterID, summary.Status)
	}

	cashOnHand := NetProfit(summary.TotalRevenue, summary.TotalExpenses, summary.TotalSalaries)
	if withdrawal > cashOnHand {
		return ClosureResult{}, fmt.Errorf("%w: %.2f > %.2f", ErrInvalidAmount, withdrawal, cashOnHand)
	}
	remaining := cashOnHand - withdrawal

	start, end := Range(year, number)
	var archivedLeads, inactiveClients, closedInvoices, lockedExpenses int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		archivedLeads, err = c.target.ArchiveLeads(gctx, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		inactiveClients, err = c.target.DeactivateClients(gctx, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		closedInvoices, err = c.target.CloseInvoices(gctx, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		lockedExpenses, err = c.target.LockExpenses(gctx, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return ClosureResult{}, &CloseError{QuarterID: quarterID, Err: err}
	}

	record, err := c.records.GetOrCreate(ctx, year, number)
	if err != nil {
		return ClosureResult{}, &CloseError{QuarterID: quarterID, Err: err}
	}

	closedStatus := StatusClosed
	closedBy := "system"
	reportGenerated := true
	closureID := uuid.NewString()
	closureSummary := buildClosureSummary(summary, cashOnHand, withdrawal, remaining, archivedLeads, inactiveClients, closedInvoices, lockedExpenses)
	updated, err := c.records.UpdateQuarter(ctx, record.QuarterID, Update{
		Status:           &closedStatus,
		TotalRevenue:     &summary.TotalRevenue,
		TotalExpenses:    &summary.TotalExpenses,
		TotalSalaries:    &summary.TotalSalaries,
		NetProfit:        &summary.NetProfit,
		ProfitMargin:     &summary.ProfitMargin,
		CashOnHand:       &cashOnHand,
		WithdrawalAmount: &withdrawal,
		RemainingBalance: &remaining,
		ClosedBy:         &closedBy,
		Summary:          &closureSummary,
		ReportGenerated:  &reportGenerated,
		ClosureID:        &closureID,
	})
	if err != nil {
		return ClosureResult{}, &CloseError{QuarterID: quarterID, Err: err}
	}

	if remaining > 0 {
		_, err := c.target.CreateExpense(ctx, crm.Expense{
			Description: fmt.Sprintf("Opening balance carried forward from %s", QuarterName(year, number)),
			Category:    crm.OpeningBalanceCategory,
			Amount:      remaining,
			Date:        c.now().UTC(),
			Locked:      true,
		})
		if err != nil {
			return ClosureResult{}, &CloseError{QuarterID: quarterID, Err: err}
		}
	}

	closedDate := c.now().UTC()
	if updated.ClosedDate != nil {
		closedDate = *updated.ClosedDate
	}
	result := ClosureResult{
		Success:          true,
		QuarterID:        quarterID,
		ClosedDate:       closedDate,
		WithdrawalAmount: withdrawal,
		RemainingBalance: remaining,
		ReportGenerated:  true,
		QuarterClosureID: updated.ClosureID,
	}

	if c.logger != nil {
		c.logger.Info("quarter closed",
			slog.String("quarter", quarterID),
			slog.Float64("cash_on_hand", cashOnHand),
			slog.Float64("withdrawal", withdrawal),
			slog.Float64("remaining", remaining),
			slog.Int64("leads_archived", archivedLeads),
			slog.Int64("clients_deactivated", inactiveClients),
			slog.Int64("invoices_closed", closedInvoices),
			slog.Int64("expenses_locked", lockedExpenses))
	}
	if c.hook != nil {
		c.hook.QuarterClosed(ctx, result)
	}
	return result, nil
}

func buildClosureSummary(s QuarterlySummary, cashOnHand, withdrawal, remaining float64, leads, clients, invoices, expenses int64) string {
	return fmt.Sprintf(
		"%s closed: revenue %.2f, expenses %.2f, salaries %.2f, net profit %.2f (margin %.1f%%), cash on hand %.2f, withdrawal %.2f, remaining balance %.2f; "+
			"%d invoices (%d paid), %d clients (%d new), %d leads (%d converted); "+
			"%d leads archived, %d clients deactivated, %d invoices closed, %d expenses locked",
		s.Name, s.TotalRevenue, s.TotalExpenses, s.TotalSalaries, s.NetProfit, s.ProfitMargin, cashOnHand, withdrawal, remaining,
		s.Counts.Invoices, s.Counts.PaidInvoices, s.Counts.Clients, s.Counts.NewClients, s.Counts.Leads, s.Counts.ConvertedLeads,
		leads, clients, invoices, expenses,
	)
}
