package quarter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sharoon166/reverie/internal/platform/db"
)

// querier is the subset of pgxpool.Pool the single-row read and insert paths
// go through. Tests substitute an in-memory implementation.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists quarter records. One row exists per (year, quarter),
// enforced by a unique index on quarter_id; get-or-create relies on
// INSERT ... ON CONFLICT DO NOTHING rather than a check-then-insert.
type Store struct {
	pool *pgxpool.Pool
	db   querier
	now  func() time.Time
}

// NewStore constructs a Store using the provided pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		db:   pool,
		now:  time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Store) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Update carries the optional field changes applied to a quarter record.
// Nil fields are left untouched.
type Update struct {
	Status *Status

	TotalRevenue     *float64
	TotalExpenses    *float64
	TotalSalaries    *float64
	NetProfit        *float64
	ProfitMargin     *float64
	CashOnHand       *float64
	WithdrawalAmount *float64
	RemainingBalance *float64
	RetainerRevenue  *float64
	ClientsAcquired  *float64
	ProposalsSent    *float64
	MeetingsBooked   *float64
	InvoicesSent     *float64
	InvoicesPaid     *float64

	RevenueTarget             *float64
	ExpenseTarget             *float64
	ProfitTarget              *float64
	RetainerRevenueTarget     *float64
	ClientAcquisitionTarget   *float64
	ProposalsSentTarget       *float64
	MeetingsBookedTarget      *float64
	InvoicesSentTarget        *float64
	EmployeesVsSalariesTarget *float64

	ClosedBy        *string
	Summary         *string
	ReportGenerated *bool
	ClosureID       *string
}

const quarterColumns = `quarter_id, quarter, year, status, closed_date,
total_revenue, total_expenses, total_salaries, net_profit, profit_margin,
cash_on_hand, withdrawal_amount, remaining_balance, retainer_revenue,
clients_acquired, proposals_sent, meetings_booked, invoices_sent, invoices_paid,
revenue_target, expense_target, profit_target, retainer_revenue_target,
client_acquisition_target, proposals_sent_target, meetings_booked_target,
invoices_sent_target, employees_vs_salaries_target,
closed_by, summary, report_generated, closure_id, created_at, updated_at`

func scanQuarter(row pgx.Row) (Quarter, error) {
	var q Quarter
	err := row.Scan(
		&q.QuarterID, &q.Number, &q.Year, &q.Status, &q.ClosedDate,
		&q.TotalRevenue, &q.TotalExpenses, &q.TotalSalaries, &q.NetProfit, &q.ProfitMargin,
		&q.CashOnHand, &q.WithdrawalAmount, &q.RemainingBalance, &q.RetainerRevenue,
		&q.ClientsAcquired, &q.ProposalsSent, &q.MeetingsBooked, &q.InvoicesSent, &q.InvoicesPaid,
		&q.RevenueTarget, &q.ExpenseTarget, &q.ProfitTarget, &q.RetainerRevenueTarget,
		&q.ClientAcquisitionTarget, &q.ProposalsSentTarget, &q.MeetingsBookedTarget,
		&q.InvoicesSentTarget, &q.EmployeesVsSalariesTarget,
		&q.ClosedBy, &q.Summary, &q.ReportGenerated, &q.ClosureID, &q.CreatedAt, &q.UpdatedAt,
	)
	return q, err
}

// Get fetches a quarter record by its quarter_id.
func (s *Store) Get(ctx context.Context, quarterID string) (Quarter, error) {
	if _, _, err := ParseQuarterID(quarterID); err != nil {
		return Quarter{}, err
	}
	row := s.db.QueryRow(ctx, `SELECT `+quarterColumns+` FROM quarters WHERE quarter_id = $1`, quarterID)
	q, err := scanQuarter(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quarter{}, fmt.Errorf("%w: %s", ErrNotFound, quarterID)
		}
		return Quarter{}, err
	}
	return q, nil
}

// GetOrCreate returns the quarter record for (year, number), lazily creating
// it with zero actuals and status open. Safe to call concurrently.
func (s *Store) GetOrCreate(ctx context.Context, year, number int) (Quarter, error) {
	if number < 1 || number > 4 {
		return Quarter{}, fmt.Errorf("%w: quarter %d", ErrInvalidQuarterID, number)
	}
	quarterID := FormatQuarterID(number, year)
	_, err := s.db.Exec(ctx, `
INSERT INTO quarters (quarter_id, quarter, year, status)
VALUES ($1, $2, $3, $4)
ON CONFLICT (quarter_id) DO NOTHING`,
		quarterID, number, year, StatusOpen)
	if err != nil {
		return Quarter{}, fmt.Errorf("quarter: get-or-create %s: %w", quarterID, err)
	}
	return s.Get(ctx, quarterID)
}

// GetOrCreateCurrent resolves the quarter containing the store clock's
// current instant and returns its record, creating it on first access.
func (s *Store) GetOrCreateCurrent(ctx context.Context) (Quarter, error) {
	number, year := QuarterOf(s.now())
	return s.GetOrCreate(ctx, year, number)
}

// UpdateQuarter mutates a quarter record under the transition rules:
// archived records are immutable, closed records may only move to archived,
// and closed_date is stamped exactly once on the first transition into
// closed. The row is locked for the duration of the update.
func (s *Store) UpdateQuarter(ctx context.Context, quarterID string, upd Update) (Quarter, error) {
	if _, _, err := ParseQuarterID(quarterID); err != nil {
		return Quarter{}, err
	}
	var updated Quarter
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+quarterColumns+` FROM quarters WHERE quarter_id = $1 FOR UPDATE`, quarterID)
		current, err := scanQuarter(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrNotFound, quarterID)
			}
			return err
		}

		status, closedDate, err := resolveTransition(current, upd.Status, s.now())
		if err != nil {
			return err
		}
		next := current
		next.Status = status
		next.ClosedDate = closedDate
		applyUpdate(&next, upd)

		row = tx.QueryRow(ctx, `
UPDATE quarters SET
	status = $2, closed_date = $3,
	total_revenue = $4, total_expenses = $5, total_salaries = $6,
	net_profit = $7, profit_margin = $8, cash_on_hand = $9,
	withdrawal_amount = $10, remaining_balance = $11, retainer_revenue = $12,
	clients_acquired = $13, proposals_sent = $14, meetings_booked = $15,
	invoices_sent = $16, invoices_paid = $17,
	revenue_target = $18, expense_target = $19, profit_target = $20,
	retainer_revenue_target = $21, client_acquisition_target = $22,
	proposals_sent_target = $23, meetings_booked_target = $24,
	invoices_sent_target = $25, employees_vs_salaries_target = $26,
	closed_by = $27, summary = $28, report_generated = $29, closure_id = $30,
	updated_at = now()
WHERE quarter_id = $1
RETURNING `+quarterColumns,
			quarterID, next.Status, next.ClosedDate,
			next.TotalRevenue, next.TotalExpenses, next.TotalSalaries,
			next.NetProfit, next.ProfitMargin, next.CashOnHand,
			next.WithdrawalAmount, next.RemainingBalance, next.RetainerRevenue,
			next.ClientsAcquired, next.ProposalsSent, next.MeetingsBooked,
			next.InvoicesSent, next.InvoicesPaid,
			next.RevenueTarget, next.ExpenseTarget, next.ProfitTarget,
			next.RetainerRevenueTarget, next.ClientAcquisitionTarget,
			next.ProposalsSentTarget, next.MeetingsBookedTarget,
			next.InvoicesSentTarget, next.EmployeesVsSalariesTarget,
			next.ClosedBy, next.Summary, next.ReportGenerated, next.ClosureID,
		)
		updated, err = scanQuarter(row)
		return err
	})
	if err != nil {
		return Quarter{}, err
	}
	return updated, nil
}

// IsClosed reports whether an explicit closure record exists for the quarter.
func (s *Store) IsClosed(ctx context.Context, quarterID string) (bool, error) {
	var closed bool
	err := s.db.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM quarters WHERE quarter_id = $1 AND status = $2)`,
		quarterID, StatusClosed).Scan(&closed)
	if err != nil {
		return false, err
	}
	return closed, nil
}

func applyUpdate(q *Quarter, upd Update) {
	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setF(&q.TotalRevenue, upd.TotalRevenue)
	setF(&q.TotalExpenses, upd.TotalExpenses)
	setF(&q.TotalSalaries, upd.TotalSalaries)
	setF(&q.NetProfit, upd.NetProfit)
	setF(&q.ProfitMargin, upd.ProfitMargin)
	setF(&q.CashOnHand, upd.CashOnHand)
	setF(&q.WithdrawalAmount, upd.WithdrawalAmount)
	setF(&q.RemainingBalance, upd.RemainingBalance)
	setF(&q.RetainerRevenue, upd.RetainerRevenue)
	setF(&q.ClientsAcquired, upd.ClientsAcquired)
	setF(&q.ProposalsSent, upd.ProposalsSent)
	setF(&q.MeetingsBooked, upd.MeetingsBooked)
	setF(&q.InvoicesSent, upd.InvoicesSent)
	setF(&q.InvoicesPaid, upd.InvoicesPaid)

	setT := func(dst **float64, src *float64) {
		if src != nil {
			v := *src
			*dst = &v
		}
	}
	setT(&q.RevenueTarget, upd.RevenueTarget)
	setT(&q.ExpenseTarget, upd.ExpenseTarget)
	setT(&q.ProfitTarget, upd.ProfitTarget)
	setT(&q.RetainerRevenueTarget, upd.RetainerRevenueTarget)
	setT(&q.ClientAcquisitionTarget, upd.ClientAcquisitionTarget)
	setT(&q.ProposalsSentTarget, upd.ProposalsSentTarget)
	setT(&q.MeetingsBookedTarget, upd.MeetingsBookedTarget)
	setT(&q.InvoicesSentTarget, upd.InvoicesSentTarget)
	setT(&q.EmployeesVsSalariesTarget, upd.EmployeesVsSalariesTarget)

	if upd.ClosedBy != nil {
		q.ClosedBy = *upd.ClosedBy
	}
	if upd.Summary != nil {
		q.Summary = *upd.Summary
	}
	if upd.ReportGenerated != nil {
		q.ReportGenerated = *upd.ReportGenerated
	}
	if upd.ClosureID != nil {
		q.ClosureID = *upd.ClosureID
	}
}
