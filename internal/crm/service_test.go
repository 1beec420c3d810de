package crm

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	leads    map[string]Lead
	clients  map[string]Client
	invoices map[string]Invoice
	expenses map[string]Expense
	salaries map[string]SalaryPayment
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		leads:    make(map[string]Lead),
		clients:  make(map[string]Client),
		invoices: make(map[string]Invoice),
		expenses: make(map[string]Expense),
		salaries: make(map[string]SalaryPayment),
	}
}

func (m *memoryStore) CreateLead(ctx context.Context, in Lead) (Lead, error) {
	in.ID = uuid.NewString()
	m.leads[in.ID] = in
	return in, nil
}

func (m *memoryStore) GetLead(ctx context.Context, id string) (Lead, error) {
	l, ok := m.leads[id]
	if !ok {
		return Lead{}, ErrNotFound
	}
	return l, nil
}

func (m *memoryStore) ListLeads(ctx context.Context) ([]Lead, error) {
	out := make([]Lead, 0, len(m.leads))
	for _, l := range m.leads {
		out = append(out, l)
	}
	return out, nil
}

func (m *memoryStore) UpdateLeadStatus(ctx context.Context, id string, status LeadStatus) (Lead, error) {
	l, ok := m.leads[id]
	if !ok {
		return Lead{}, ErrNotFound
	}
	l.Status = status
	m.leads[id] = l
	return l, nil
}

func (m *memoryStore) DeleteLead(ctx context.Context, id string) error {
	if _, ok := m.leads[id]; !ok {
		return ErrNotFound
	}
	delete(m.leads, id)
	return nil
}

func (m *memoryStore) CreateClient(ctx context.Context, in Client) (Client, error) {
	in.ID = uuid.NewString()
	m.clients[in.ID] = in
	return in, nil
}

func (m *memoryStore) GetClient(ctx context.Context, id string) (Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return Client{}, ErrNotFound
	}
	return c, nil
}

func (m *memoryStore) ListClients(ctx context.Context) ([]Client, error) {
	out := make([]Client, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, c)
	}
	return out, nil
}

func (m *memoryStore) CreateInvoice(ctx context.Context, in Invoice) (Invoice, error) {
	in.ID = uuid.NewString()
	m.invoices[in.ID] = in
	return in, nil
}

func (m *memoryStore) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return inv, nil
}

func (m *memoryStore) UpdateInvoiceStatus(ctx context.Context, id string, status InvoiceStatus) (Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	inv.Status = status
	m.invoices[id] = inv
	return inv, nil
}

func (m *memoryStore) ListInvoicesIssuedBetween(ctx context.Context, from, to time.Time) ([]Invoice, error) {
	out := make([]Invoice, 0, len(m.invoices))
	for _, inv := range m.invoices {
		if !inv.IssueDate.Before(from) && !inv.IssueDate.After(to) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *memoryStore) CreateExpense(ctx context.Context, in Expense) (Expense, error) {
	in.ID = uuid.NewString()
	m.expenses[in.ID] = in
	return in, nil
}

func (m *memoryStore) GetExpense(ctx context.Context, id string) (Expense, error) {
	e, ok := m.expenses[id]
	if !ok {
		return Expense{}, ErrNotFound
	}
	return e, nil
}

func (m *memoryStore) ListExpensesBetween(ctx context.Context, from, to time.Time) ([]Expense, error) {
	out := make([]Expense, 0, len(m.expenses))
	for _, e := range m.expenses {
		if !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryStore) DeleteExpense(ctx context.Context, id string) error {
	e, ok := m.expenses[id]
	if !ok {
		return ErrNotFound
	}
	if e.Locked {
		return ErrLocked
	}
	delete(m.expenses, id)
	return nil
}

func (m *memoryStore) CreateSalaryPayment(ctx context.Context, in SalaryPayment) (SalaryPayment, error) {
	in.ID = uuid.NewString()
	m.salaries[in.ID] = in
	return in, nil
}

func (m *memoryStore) ListSalaryPaymentsByMonths(ctx context.Context, months []string) ([]SalaryPayment, error) {
	wanted := make(map[string]bool, len(months))
	for _, mo := range months {
		wanted[mo] = true
	}
	out := make([]SalaryPayment, 0, len(m.salaries))
	for _, p := range m.salaries {
		if wanted[p.Month] {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestUpdateLeadStatusArchivedImmutable(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := NewService(store, nil)

	lead, err := svc.CreateLead(ctx, Lead{Name: "Jane", Status: LeadStatusArchived})
	require.NoError(t, err)

	_, err = svc.UpdateLeadStatus(ctx, lead.ID, LeadStatusContacted)
	require.ErrorIs(t, err, ErrLocked)
}

func TestUpdateLeadStatusMovesPipeline(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := NewService(store, nil)

	lead, err := svc.CreateLead(ctx, Lead{Name: "Jane", Status: LeadStatusNew})
	require.NoError(t, err)

	updated, err := svc.UpdateLeadStatus(ctx, lead.ID, LeadStatusConverted)
	require.NoError(t, err)
	require.Equal(t, LeadStatusConverted, updated.Status)
	require.True(t, updated.IsConverted())
}

func TestCreateInvoiceValidation(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := NewService(store, nil)

	_, err := svc.CreateInvoice(ctx, Invoice{Amount: 0})
	require.Error(t, err)

	_, err = svc.CreateInvoice(ctx, Invoice{Amount: 100, ClientID: "missing"})
	require.ErrorIs(t, err, ErrNotFound)

	client, err := svc.CreateClient(ctx, Client{Name: "Acme"})
	require.NoError(t, err)
	inv, err := svc.CreateInvoice(ctx, Invoice{Amount: 100, ClientID: client.ID, Status: InvoiceStatusSent})
	require.NoError(t, err)
	require.NotEmpty(t, inv.ID)
}

func TestUpdateInvoiceStatusClosedImmutable(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := NewService(store, nil)

	inv, err := store.CreateInvoice(ctx, Invoice{Amount: 100, Status: InvoiceStatusClosed})
	require.NoError(t, err)

	_, err = svc.UpdateInvoiceStatus(ctx, inv.ID, InvoiceStatusPaid)
	require.ErrorIs(t, err, ErrLocked)
}

func TestDeleteExpenseLocked(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := NewService(store, nil)

	locked, err := store.CreateExpense(ctx, Expense{Description: "carry forward", Amount: 500, Locked: true})
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteExpense(ctx, locked.ID), ErrLocked)

	open, err := svc.CreateExpense(ctx, Expense{Description: "supplies", Amount: 100})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteExpense(ctx, open.ID))
}

func TestCreateExpenseRejectsNonPositiveAmount(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryStore(), nil)

	_, err := svc.CreateExpense(ctx, Expense{Description: "bad", Amount: -5})
	require.Error(t, err)
}

func TestCreateSalaryPaymentValidatesMonth(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryStore(), nil)

	_, err := svc.CreateSalaryPayment(ctx, SalaryPayment{Employee: "Ava", Month: "Jan 2025", Amount: 5000})
	require.Error(t, err)

	payment, err := svc.CreateSalaryPayment(ctx, SalaryPayment{Employee: "Ava", Month: "2025-01", Amount: 5000})
	require.NoError(t, err)
	require.Equal(t, 5000.0, payment.EffectiveAmount())
}
