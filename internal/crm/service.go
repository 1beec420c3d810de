package crm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Store is the persistence surface the service depends on.
type Store interface {
	CreateLead(ctx context.Context, in Lead) (Lead, error)
	GetLead(ctx context.Context, id string) (Lead, error)
	ListLeads(ctx context.Context) ([]Lead, error)
	UpdateLeadStatus(ctx context.Context, id string, status LeadStatus) (Lead, error)
	DeleteLead(ctx context.Context, id string) error
	CreateClient(ctx context.Context, in Client) (Client, error)
	GetClient(ctx context.Context, id string) (Client, error)
	ListClients(ctx context.Context) ([]Client, error)
	CreateInvoice(ctx context.Context, in Invoice) (Invoice, error)
	GetInvoice(ctx context.Context, id string) (Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, id string, status InvoiceStatus) (Invoice, error)
	ListInvoicesIssuedBetween(ctx context.Context, from, to time.Time) ([]Invoice, error)
	CreateExpense(ctx context.Context, in Expense) (Expense, error)
	GetExpense(ctx context.Context, id string) (Expense, error)
	ListExpensesBetween(ctx context.Context, from, to time.Time) ([]Expense, error)
	DeleteExpense(ctx context.Context, id string) error
	CreateSalaryPayment(ctx context.Context, in SalaryPayment) (SalaryPayment, error)
	ListSalaryPaymentsByMonths(ctx context.Context, months []string) ([]SalaryPayment, error)
}

// Service applies domain rules on top of the repository.
type Service struct {
	repo   Store
	logger *slog.Logger
}

// NewService constructs a Service instance.
func NewService(repo Store, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// CreateLead registers a new lead.
func (s *Service) CreateLead(ctx context.Context, in Lead) (Lead, error) {
	return s.repo.CreateLead(ctx, in)
}

// GetLead fetches a lead by id.
func (s *Service) GetLead(ctx context.Context, id string) (Lead, error) {
	return s.repo.GetLead(ctx, id)
}

// ListLeads returns every lead.
func (s *Service) ListLeads(ctx context.Context) ([]Lead, error) {
	return s.repo.ListLeads(ctx)
}

// UpdateLeadStatus moves a lead through the pipeline. Archived leads stay archived.
func (s *Service) UpdateLeadStatus(ctx context.Context, id string, status LeadStatus) (Lead, error) {
	current, err := s.repo.GetLead(ctx, id)
	if err != nil {
		return Lead{}, err
	}
	if current.Status == LeadStatusArchived {
		return Lead{}, ErrLocked
	}
	return s.repo.UpdateLeadStatus(ctx, id, status)
}

// DeleteLead removes a lead.
func (s *Service) DeleteLead(ctx context.Context, id string) error {
	return s.repo.DeleteLead(ctx, id)
}

// CreateClient registers a new client.
func (s *Service) CreateClient(ctx context.Context, in Client) (Client, error) {
	return s.repo.CreateClient(ctx, in)
}

// GetClient fetches a client by id.
func (s *Service) GetClient(ctx context.Context, id string) (Client, error) {
	return s.repo.GetClient(ctx, id)
}

// ListClients returns every client.
func (s *Service) ListClients(ctx context.Context) ([]Client, error) {
	return s.repo.ListClients(ctx)
}

// CreateInvoice issues a new invoice.
func (s *Service) CreateInvoice(ctx context.Context, in Invoice) (Invoice, error) {
	if in.Amount <= 0 {
		return Invoice{}, errors.New("crm: invoice amount must be positive")
	}
	if in.ClientID != "" {
		if _, err := s.repo.GetClient(ctx, in.ClientID); err != nil {
			return Invoice{}, fmt.Errorf("crm: invoice client: %w", err)
		}
	}
	return s.repo.CreateInvoice(ctx, in)
}

// GetInvoice fetches an invoice by id.
func (s *Service) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// UpdateInvoiceStatus transitions an invoice. Closed invoices stay closed.
func (s *Service) UpdateInvoiceStatus(ctx context.Context, id string, status InvoiceStatus) (Invoice, error) {
	current, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if current.Status == InvoiceStatusClosed {
		return Invoice{}, ErrLocked
	}
	return s.repo.UpdateInvoiceStatus(ctx, id, status)
}

// ListInvoices returns invoices issued in the given range.
func (s *Service) ListInvoices(ctx context.Context, from, to time.Time) ([]Invoice, error) {
	return s.repo.ListInvoicesIssuedBetween(ctx, from, to)
}

// CreateExpense records an expenditure.
func (s *Service) CreateExpense(ctx context.Context, in Expense) (Expense, error) {
	if in.Amount <= 0 {
		return Expense{}, errors.New("crm: expense amount must be positive")
	}
	return s.repo.CreateExpense(ctx, in)
}

// GetExpense fetches an expense by id.
func (s *Service) GetExpense(ctx context.Context, id string) (Expense, error) {
	return s.repo.GetExpense(ctx, id)
}

// ListExpenses returns expenses dated in the given range.
func (s *Service) ListExpenses(ctx context.Context, from, to time.Time) ([]Expense, error) {
	return s.repo.ListExpensesBetween(ctx, from, to)
}

// DeleteExpense removes an unlocked expense.
func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	return s.repo.DeleteExpense(ctx, id)
}

// CreateSalaryPayment records a payroll disbursement.
func (s *Service) CreateSalaryPayment(ctx context.Context, in SalaryPayment) (SalaryPayment, error) {
	if _, err := time.Parse("2006-01", in.Month); err != nil {
		return SalaryPayment{}, fmt.Errorf("crm: salary month must be YYYY-MM: %w", err)
	}
	return s.repo.CreateSalaryPayment(ctx, in)
}

// ListSalaryPayments returns payroll rows for the given months.
func (s *Service) ListSalaryPayments(ctx context.Context, months []string) ([]SalaryPayment, error) {
	return s.repo.ListSalaryPaymentsByMonths(ctx, months)
}
