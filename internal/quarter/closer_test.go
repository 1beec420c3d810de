package quarter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Sharoon166/reverie/internal/crm"
)

type fakeTarget struct {
	archiveErr error

	archivedCalls    int
	deactivatedCalls int
	closedCalls      int
	lockedCalls      int
	created          []crm.Expense
}

func (f *fakeTarget) ArchiveLeads(ctx context.Context, from, to time.Time) (int64, error) {
	if f.archiveErr != nil {
		return 0, f.archiveErr
	}
	f.archivedCalls++
	return 3, nil
}

func (f *fakeTarget) DeactivateClients(ctx context.Context, from, to time.Time) (int64, error) {
	f.deactivatedCalls++
	return 2, nil
}

func (f *fakeTarget) CloseInvoices(ctx context.Context, from, to time.Time) (int64, error) {
	f.closedCalls++
	return 4, nil
}

func (f *fakeTarget) LockExpenses(ctx context.Context, from, to time.Time) (int64, error) {
	f.lockedCalls++
	return 5, nil
}

func (f *fakeTarget) CreateExpense(ctx context.Context, in crm.Expense) (crm.Expense, error) {
	f.created = append(f.created, in)
	in.ID = "expense-1"
	return in, nil
}

type fakeRecords struct {
	updates   []Update
	updateErr error
	closedAt  time.Time
}

func (f *fakeRecords) GetOrCreate(ctx context.Context, year, number int) (Quarter, error) {
	return Quarter{QuarterID: FormatQuarterID(number, year), Number: number, Year: year, Status: StatusOpen}, nil
}

func (f *fakeRecords) UpdateQuarter(ctx context.Context, quarterID string, upd Update) (Quarter, error) {
	if f.updateErr != nil {
		return Quarter{}, f.updateErr
	}
	f.updates = append(f.updates, upd)
	q := Quarter{QuarterID: quarterID, Status: StatusClosed}
	if !f.closedAt.IsZero() {
		q.ClosedDate = &f.closedAt
	}
	if upd.ClosureID != nil {
		q.ClosureID = *upd.ClosureID
	}
	return q, nil
}

type fakeSummarySource struct {
	summary QuarterlySummary
	err     error
}

func (f *fakeSummarySource) QuarterSummary(ctx context.Context, year, number int) (QuarterlySummary, error) {
	if f.err != nil {
		return QuarterlySummary{}, f.err
	}
	return f.summary, nil
}

type fakeHook struct {
	results []ClosureResult
}

func (f *fakeHook) QuarterClosed(ctx context.Context, result ClosureResult) {
	f.results = append(f.results, result)
}

func activeSummary() QuarterlySummary {
	return QuarterlySummary{
		ID:            "q1-2025",
		Name:          "Q1 2025",
		Status:        SummaryActive,
		TotalRevenue:  20000,
		TotalExpenses: 1000,
		TotalSalaries: 10000,
		NetProfit:     9000,
		ProfitMargin:  45,
		Counts:        SummaryCounts{Invoices: 4, PaidInvoices: 2, Clients: 2, NewClients: 1, Leads: 3, ConvertedLeads: 1},
	}
}

func newTestCloser(target *fakeTarget, records *fakeRecords, source *fakeSummarySource) *Closer {
	c := NewCloser(target, records, source, nil)
	c.WithNow(fixedClock(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)))
	return c
}

func TestCloseHappyPath(t *testing.T) {
	target := &fakeTarget{}
	records := &fakeRecords{closedAt: time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)}
	closer := newTestCloser(target, records, &fakeSummarySource{summary: activeSummary()})
	hook := &fakeHook{}
	closer.WithHook(hook)

	result, err := closer.Close(context.Background(), "q1-2025", 4000)
	require.NoError(t, err)

	require.True(t, result.Success)
	require.Equal(t, "q1-2025", result.QuarterID)
	require.Equal(t, 4000.0, result.WithdrawalAmount)
	require.Equal(t, 5000.0, result.RemainingBalance)
	require.True(t, result.ReportGenerated)
	require.NotEmpty(t, result.QuarterClosureID)
	require.Equal(t, records.closedAt, result.ClosedDate)

	require.Equal(t, 1, target.archivedCalls)
	require.Equal(t, 1, target.deactivatedCalls)
	require.Equal(t, 1, target.closedCalls)
	require.Equal(t, 1, target.lockedCalls)

	require.Len(t, records.updates, 1)
	upd := records.updates[0]
	require.Equal(t, StatusClosed, *upd.Status)
	require.Equal(t, 20000.0, *upd.TotalRevenue)
	require.Equal(t, 9000.0, *upd.CashOnHand)
	require.Equal(t, 4000.0, *upd.WithdrawalAmount)
	require.Equal(t, 5000.0, *upd.RemainingBalance)
	require.Equal(t, "system", *upd.ClosedBy)
	require.True(t, *upd.ReportGenerated)
	require.NotEmpty(t, *upd.Summary)
	require.NotNil(t, upd.ClosureID)
	require.Equal(t, *upd.ClosureID, result.QuarterClosureID)

	require.Len(t, target.created, 1)
	carry := target.created[0]
	require.Equal(t, crm.OpeningBalanceCategory, carry.Category)
	require.Equal(t, 5000.0, carry.Amount)
	require.True(t, carry.Locked)
	require.Contains(t, carry.Description, "Q1 2025")

	require.Len(t, hook.results, 1)
	require.Equal(t, result, hook.results[0])
}

func TestCloseNoCarryForwardWhenNothingRemains(t *testing.T) {
	target := &fakeTarget{}
	closer := newTestCloser(target, &fakeRecords{}, &fakeSummarySource{summary: activeSummary()})

	result, err := closer.Close(context.Background(), "q1-2025", 9000)
	require.NoError(t, err)
	require.Equal(t, 0.0, result.RemainingBalance)
	require.Empty(t, target.created)
}

func TestCloseRejectsInvalidQuarterID(t *testing.T) {
	closer := newTestCloser(&fakeTarget{}, &fakeRecords{}, &fakeSummarySource{summary: activeSummary()})

	_, err := closer.Close(context.Background(), "2025-q1", 0)
	require.ErrorIs(t, err, ErrInvalidQuarterID)
}

func TestCloseRejectsNegativeWithdrawal(t *testing.T) {
	closer := newTestCloser(&fakeTarget{}, &fakeRecords{}, &fakeSummarySource{summary: activeSummary()})

	_, err := closer.Close(context.Background(), "q1-2025", -1)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCloseRejectsWithdrawalOverCashOnHand(t *testing.T) {
	target := &fakeTarget{}
	closer := newTestCloser(target, &fakeRecords{}, &fakeSummarySource{summary: activeSummary()})

	_, err := closer.Close(context.Background(), "q1-2025", 9000.01)
	require.ErrorIs(t, err, ErrInvalidAmount)
	require.Zero(t, target.archivedCalls)
	require.Zero(t, target.lockedCalls)
}

func TestCloseRejectsNonActiveQuarter(t *testing.T) {
	summary := activeSummary()
	summary.Status = SummaryClosed
	closer := newTestCloser(&fakeTarget{}, &fakeRecords{}, &fakeSummarySource{summary: summary})

	_, err := closer.Close(context.Background(), "q1-2025", 0)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCloseMissingSummaryBecomesNotFound(t *testing.T) {
	closer := newTestCloser(&fakeTarget{}, &fakeRecords{}, &fakeSummarySource{err: errors.New("db down")})

	_, err := closer.Close(context.Background(), "q1-2025", 0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCloseMutationFailureWrapsCloseError(t *testing.T) {
	cause := errors.New("archive blew up")
	target := &fakeTarget{archiveErr: cause}
	closer := newTestCloser(target, &fakeRecords{}, &fakeSummarySource{summary: activeSummary()})

	_, err := closer.Close(context.Background(), "q1-2025", 0)
	var closeErr *CloseError
	require.ErrorAs(t, err, &closeErr)
	require.Equal(t, "q1-2025", closeErr.QuarterID)
	require.ErrorIs(t, err, cause)
}

func TestCloseRecordUpdateFailureWrapsCloseError(t *testing.T) {
	records := &fakeRecords{updateErr: errors.New("constraint violation")}
	closer := newTestCloser(&fakeTarget{}, records, &fakeSummarySource{summary: activeSummary()})

	_, err := closer.Close(context.Background(), "q1-2025", 0)
	var closeErr *CloseError
	require.ErrorAs(t, err, &closeErr)
}
