package crm

import (
	"errors"
	"strings"
	"time"
)

// LeadStatus enumerates the lead pipeline stages.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusLost      LeadStatus = "lost"
	LeadStatusArchived  LeadStatus = "archived"
)

// ClientStatus enumerates client engagement states.
type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
)

// InvoiceStatus enumerates invoice lifecycle stages.
type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "draft"
	InvoiceStatusSent    InvoiceStatus = "sent"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
	InvoiceStatusClosed  InvoiceStatus = "closed"
)

// OpeningBalanceCategory marks the carry-forward expense created on quarter close.
const OpeningBalanceCategory = "opening-balance"

// Lead is a prospective client tracked through the sales pipeline.
type Lead struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Company   string     `json:"company"`
	Source    string     `json:"source"`
	Status    LeadStatus `json:"status"`
	Value     float64    `json:"value"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// IsConverted reports whether the lead reached the converted stage.
// Status values arrive from UI forms in mixed case.
func (l Lead) IsConverted() bool {
	return strings.EqualFold(string(l.Status), string(LeadStatusConverted))
}

// Client is an acquired customer.
type Client struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	Company   string       `json:"company"`
	Status    ClientStatus `json:"status"`
	StartDate time.Time    `json:"startDate"`
	Retainer  float64      `json:"retainer"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Invoice is a billing document issued to a client.
type Invoice struct {
	ID        string        `json:"id"`
	ClientID  string        `json:"clientId"`
	Number    string        `json:"number"`
	Amount    float64       `json:"amount"`
	Status    InvoiceStatus `json:"status"`
	IssueDate time.Time     `json:"issueDate"`
	DueDate   *time.Time    `json:"dueDate,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// IsPaid reports whether the invoice has been settled.
func (i Invoice) IsPaid() bool {
	return strings.EqualFold(string(i.Status), string(InvoiceStatusPaid))
}

// Expense is a single business expenditure.
type Expense struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Amount      float64   `json:"amount"`
	Date        time.Time `json:"date"`
	Locked      bool      `json:"locked"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SalaryPayment records one payroll disbursement for a calendar month.
type SalaryPayment struct {
	ID        string     `json:"id"`
	Employee  string     `json:"employee"`
	Month     string     `json:"month"` // YYYY-MM
	Amount    float64    `json:"amount"`
	NetAmount *float64   `json:"netAmount,omitempty"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// EffectiveAmount prefers the net amount and falls back to the gross amount.
func (p SalaryPayment) EffectiveAmount() float64 {
	if p.NetAmount != nil {
		return *p.NetAmount
	}
	return p.Amount
}

// ErrNotFound indicates the referenced row does not exist.
var ErrNotFound = errors.New("crm: not found")

// ErrDuplicate indicates a uniqueness conflict on insert.
var ErrDuplicate = errors.New("crm: duplicate entry")

// ErrLocked indicates a mutation attempt on a locked expense row.
var ErrLocked = errors.New("crm: row locked by a closed quarter")
