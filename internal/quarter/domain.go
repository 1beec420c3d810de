package quarter

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// Status enumerates the stored lifecycle of a quarter record.
type Status string

const (
	StatusOpen     Status = "open"
	StatusClosed   Status = "closed"
	StatusArchived Status = "archived"
)

// SummaryStatus is the derived state of a quarter, computed from the clock and
// the existence of a closure record rather than read from storage.
type SummaryStatus string

const (
	SummaryActive   SummaryStatus = "active"
	SummaryClosed   SummaryStatus = "closed"
	SummaryArchived SummaryStatus = "archived"
)

// Quarter is the per-(year, quarter) financial record. Actuals default to
// zero; targets are nil until set.
type Quarter struct {
	QuarterID  string     `json:"quarterId"`
	Number     int        `json:"quarter"`
	Year       int        `json:"year"`
	Status     Status     `json:"status"`
	ClosedDate *time.Time `json:"closedDate,omitempty"`

	TotalRevenue     float64 `json:"totalRevenue"`
	TotalExpenses    float64 `json:"totalExpenses"`
	TotalSalaries    float64 `json:"totalSalaries"`
	NetProfit        float64 `json:"netProfit"`
	ProfitMargin     float64 `json:"profitMargin"`
	CashOnHand       float64 `json:"cashOnHand"`
	WithdrawalAmount float64 `json:"withdrawalAmount"`
	RemainingBalance float64 `json:"remainingBalance"`
	RetainerRevenue  float64 `json:"retainerRevenue"`
	ClientsAcquired  float64 `json:"clientsAcquired"`
	ProposalsSent    float64 `json:"proposalsSent"`
	MeetingsBooked   float64 `json:"meetingsBooked"`
	InvoicesSent     float64 `json:"invoicesSent"`
	InvoicesPaid     float64 `json:"invoicesPaid"`

	RevenueTarget             *float64 `json:"revenueTarget,omitempty"`
	ExpenseTarget             *float64 `json:"expenseTarget,omitempty"`
	ProfitTarget              *float64 `json:"profitTarget,omitempty"`
	RetainerRevenueTarget     *float64 `json:"retainerRevenueTarget,omitempty"`
	ClientAcquisitionTarget   *float64 `json:"clientAcquisitionTarget,omitempty"`
	ProposalsSentTarget       *float64 `json:"proposalsSentTarget,omitempty"`
	MeetingsBookedTarget      *float64 `json:"meetingsBookedTarget,omitempty"`
	InvoicesSentTarget        *float64 `json:"invoicesSentTarget,omitempty"`
	EmployeesVsSalariesTarget *float64 `json:"employeesVsSalariesTarget,omitempty"`

	ClosedBy        string `json:"closedBy,omitempty"`
	Summary         string `json:"summary,omitempty"`
	ReportGenerated bool   `json:"reportGenerated"`
	ClosureID       string `json:"quarterClosureId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SummaryCounts aggregates the transactional row counts for one quarter.
type SummaryCounts struct {
	Clients        int `json:"clients"`
	NewClients     int `json:"newClients"`
	Leads          int `json:"leads"`
	ConvertedLeads int `json:"convertedLeads"`
	Invoices       int `json:"invoices"`
	PaidInvoices   int `json:"paidInvoices"`
}

// QuarterlySummary is a computed view over the transactional collections for
// one quarter. It is recomputed on demand and never persisted.
type QuarterlySummary struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Status        SummaryStatus `json:"status"`
	StartDate     time.Time     `json:"startDate"`
	EndDate       time.Time     `json:"endDate"`
	TotalRevenue  float64       `json:"totalRevenue"`
	TotalExpenses float64       `json:"totalExpenses"`
	TotalSalaries float64       `json:"totalSalaries"`
	NetProfit     float64       `json:"netProfit"`
	ProfitMargin  float64       `json:"profitMargin"`
	Counts        SummaryCounts `json:"counts"`
}

// ClosureResult reports the outcome of a successful quarter close.
type ClosureResult struct {
	Success          bool      `json:"success"`
	QuarterID        string    `json:"quarterId"`
	ClosedDate       time.Time `json:"closedDate"`
	WithdrawalAmount float64   `json:"withdrawalAmount"`
	RemainingBalance float64   `json:"remainingBalance"`
	ReportGenerated  bool      `json:"reportGenerated"`
	QuarterClosureID string    `json:"quarterClosureId"`
}

// ErrNotFound indicates the referenced quarter does not exist.
var ErrNotFound = errors.New("quarter: not found")

// ErrInvalidState indicates the quarter is not in the status the operation requires.
var ErrInvalidState = errors.New("quarter: invalid state for operation")

// ErrInvalidTransition indicates an illegal status change.
var ErrInvalidTransition = errors.New("quarter: invalid status transition")

// ErrInvalidAmount indicates the withdrawal exceeds available cash.
var ErrInvalidAmount = errors.New("quarter: withdrawal exceeds cash on hand")

// ErrInvalidQuarterID indicates a malformed quarter identifier.
var ErrInvalidQuarterID = errors.New("quarter: invalid quarter id")

// CloseError wraps an unexpected failure during the mutation phase of a close.
// Row mutations applied before the failure are not rolled back.
type CloseError struct {
	QuarterID string
	Err       error
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("quarter: close %s failed: %v", e.QuarterID, e.Err)
}

func (e *CloseError) Unwrap() error { return e.Err }

var quarterIDPattern = regexp.MustCompile(`^q([1-4])-(\d{4})$`)

// FormatQuarterID renders the canonical q<1-4>-<year> identifier.
func FormatQuarterID(number, year int) string {
	return fmt.Sprintf("q%d-%d", number, year)
}

// ParseQuarterID splits a q<1-4>-<year> identifier into its parts.
func ParseQuarterID(id string) (number, year int, err error) {
	m := quarterIDPattern.FindStringSubmatch(id)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidQuarterID, id)
	}
	number, _ = strconv.Atoi(m[1])
	year, _ = strconv.Atoi(m[2])
	return number, year, nil
}

// QuarterOf returns the quarter number and year containing the instant.
func QuarterOf(t time.Time) (number, year int) {
	t = t.UTC()
	return (int(t.Month())-1)/3 + 1, t.Year()
}

// Range returns the inclusive [start, end] span of a quarter in UTC. The end
// is the last millisecond of the quarter's final day.
func Range(year, number int) (start, end time.Time) {
	startMonth := time.Month((number-1)*3 + 1)
	start = time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 3, 0).Add(-time.Millisecond)
	return start, end
}

// Months lists the three YYYY-MM month keys of a quarter.
func Months(year, number int) []string {
	start, _ := Range(year, number)
	months := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		months = append(months, start.AddDate(0, i, 0).Format("2006-01"))
	}
	return months
}

// QuarterName renders the display name, e.g. "Q1 2025".
func QuarterName(year, number int) string {
	return fmt.Sprintf("Q%d %d", number, year)
}

// ValidateTransition enforces the monotonic open -> closed -> archived
// lifecycle. Any change away from archived is rejected, as is reopening a
// closed quarter.
func ValidateTransition(current, next Status) error {
	if current == next {
		return nil
	}
	switch current {
	case StatusOpen:
		if next == StatusClosed || next == StatusArchived {
			return nil
		}
	case StatusClosed:
		if next == StatusArchived {
			return nil
		}
	case StatusArchived:
		// terminal
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
}

// resolveTransition computes the status and closed date a record update
// produces. Archived records reject every update, a nil next status keeps the
// current one, and the closed date is stamped exactly once, on the first
// transition into closed.
func resolveTransition(current Quarter, next *Status, now time.Time) (Status, *time.Time, error) {
	if current.Status == StatusArchived {
		return "", nil, fmt.Errorf("%w: quarter %s is archived", ErrInvalidTransition, current.QuarterID)
	}
	status := current.Status
	closedDate := current.ClosedDate
	if next == nil {
		return status, closedDate, nil
	}
	if err := ValidateTransition(current.Status, *next); err != nil {
		return "", nil, err
	}
	status = *next
	if status == StatusClosed && closedDate == nil {
		stamped := now.UTC()
		closedDate = &stamped
	}
	return status, closedDate, nil
}

// NetProfit computes revenue minus expenses minus salaries.
func NetProfit(revenue, expenses, salaries float64) float64 {
	return revenue - expenses - salaries
}

// ProfitMargin computes the net profit margin as a one-decimal percentage.
// Zero revenue yields zero margin.
func ProfitMargin(netProfit, revenue float64) float64 {
	if revenue <= 0 {
		return 0
	}
	return math.Round(netProfit/revenue*1000) / 10
}
