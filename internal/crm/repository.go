package crm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides persistence for the transactional CRM collections.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a CRM repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const uniqueViolation = "23505"

func mapInsertErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

// Leads

const leadColumns = `id, name, email, company, source, status, value, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(&l.ID, &l.Name, &l.Email, &l.Company, &l.Source, &l.Status, &l.Value, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

// CreateLead inserts a new lead row.
func (r *Repository) CreateLead(ctx context.Context, in Lead) (Lead, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Status == "" {
		in.Status = LeadStatusNew
	}
	row := r.pool.QueryRow(ctx, `
INSERT INTO leads (id, name, email, company, source, status, value)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+leadColumns,
		in.ID, in.Name, in.Email, in.Company, in.Source, in.Status, in.Value)
	lead, err := scanLead(row)
	if err != nil {
		return Lead{}, mapInsertErr(err)
	}
	return lead, nil
}

// GetLead fetches a lead by id.
func (r *Repository) GetLead(ctx context.Context, id string) (Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, err
	}
	return lead, nil
}

// ListLeads returns every lead, newest first.
func (r *Repository) ListLeads(ctx context.Context) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var leads []Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// UpdateLeadStatus moves a lead through the pipeline.
func (r *Repository) UpdateLeadStatus(ctx context.Context, id string, status LeadStatus) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE leads SET status = $2, updated_at = now() WHERE id = $1
RETURNING `+leadColumns, id, status)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, err
	}
	return lead, nil
}

// DeleteLead removes a lead.
func (r *Repository) DeleteLead(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ArchiveLeads archives every lead created inside the range, inclusive on both ends.
func (r *Repository) ArchiveLeads(ctx context.Context, from, to time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE leads SET status = $3, updated_at = now()
WHERE created_at::date >= $1::date AND created_at::date <= $2::date`,
		from, to, LeadStatusArchived)
	if err != nil {
		return 0, fmt.Errorf("crm: archive leads: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Clients

const clientColumns = `id, name, email, company, status, start_date, retainer, created_at, updated_at`

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Company, &c.Status, &c.StartDate, &c.Retainer, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// CreateClient inserts a new client row.
func (r *Repository) CreateClient(ctx context.Context, in Client) (Client, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Status == "" {
		in.Status = ClientStatusActive
	}
	if in.StartDate.IsZero() {
		in.StartDate = time.Now().UTC()
	}
	row := r.pool.QueryRow(ctx, `
INSERT INTO clients (id, name, email, company, status, start_date, retainer)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+clientColumns,
		in.ID, in.Name, in.Email, in.Company, in.Status, in.StartDate, in.Retainer)
	client, err := scanClient(row)
	if err != nil {
		return Client{}, mapInsertErr(err)
	}
	return client, nil
}

// GetClient fetches a client by id.
func (r *Repository) GetClient(ctx context.Context, id string) (Client, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	client, err := scanClient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, ErrNotFound
		}
		return Client{}, err
	}
	return client, nil
}

// ListClients returns every client regardless of status.
func (r *Repository) ListClients(ctx context.Context) ([]Client, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY start_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var clients []Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

// DeactivateClients marks clients whose engagement started inside the range as inactive.
func (r *Repository) DeactivateClients(ctx context.Context, from, to time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE clients SET status = $3, updated_at = now()
WHERE start_date::date >= $1::date AND start_date::date <= $2::date`,
		from, to, ClientStatusInactive)
	if err != nil {
		return 0, fmt.Errorf("crm: deactivate clients: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Invoices

const invoiceColumns = `id, client_id, number, amount, status, issue_date, due_date, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var i Invoice
	err := row.Scan(&i.ID, &i.ClientID, &i.Number, &i.Amount, &i.Status, &i.IssueDate, &i.DueDate, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

// CreateInvoice inserts a new invoice row.
func (r *Repository) CreateInvoice(ctx context.Context, in Invoice) (Invoice, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Status == "" {
		in.Status = InvoiceStatusDraft
	}
	if in.IssueDate.IsZero() {
		in.IssueDate = time.Now().UTC()
	}
	row := r.pool.QueryRow(ctx, `
INSERT INTO invoices (id, client_id, number, amount, status, issue_date, due_date)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+invoiceColumns,
		in.ID, in.ClientID, in.Number, in.Amount, in.Status, in.IssueDate, in.DueDate)
	invoice, err := scanInvoice(row)
	if err != nil {
		return Invoice{}, mapInsertErr(err)
	}
	return invoice, nil
}

// GetInvoice fetches an invoice by id.
func (r *Repository) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	invoice, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrNotFound
		}
		return Invoice{}, err
	}
	return invoice, nil
}

// UpdateInvoiceStatus transitions an invoice.
func (r *Repository) UpdateInvoiceStatus(ctx context.Context, id string, status InvoiceStatus) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE invoices SET status = $2, updated_at = now() WHERE id = $1
RETURNING `+invoiceColumns, id, status)
	invoice, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrNotFound
		}
		return Invoice{}, err
	}
	return invoice, nil
}

// ListInvoicesIssuedBetween returns invoices issued inside the range, inclusive on both ends.
func (r *Repository) ListInvoicesIssuedBetween(ctx context.Context, from, to time.Time) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+invoiceColumns+` FROM invoices
WHERE issue_date::date >= $1::date AND issue_date::date <= $2::date
ORDER BY issue_date`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

// CloseInvoices closes every invoice issued inside the range.
func (r *Repository) CloseInvoices(ctx context.Context, from, to time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE invoices SET status = $3, updated_at = now()
WHERE issue_date::date >= $1::date AND issue_date::date <= $2::date`,
		from, to, InvoiceStatusClosed)
	if err != nil {
		return 0, fmt.Errorf("crm: close invoices: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Expenses

const expenseColumns = `id, description, category, amount, date, locked, created_at, updated_at`

func scanExpense(row pgx.Row) (Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.Description, &e.Category, &e.Amount, &e.Date, &e.Locked, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// CreateExpense inserts a new expense row.
func (r *Repository) CreateExpense(ctx context.Context, in Expense) (Expense, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Date.IsZero() {
		in.Date = time.Now().UTC()
	}
	row := r.pool.QueryRow(ctx, `
INSERT INTO expenses (id, description, category, amount, date, locked)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+expenseColumns,
		in.ID, in.Description, in.Category, in.Amount, in.Date, in.Locked)
	expense, err := scanExpense(row)
	if err != nil {
		return Expense{}, mapInsertErr(err)
	}
	return expense, nil
}

// GetExpense fetches an expense by id.
func (r *Repository) GetExpense(ctx context.Context, id string) (Expense, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id)
	expense, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Expense{}, ErrNotFound
		}
		return Expense{}, err
	}
	return expense, nil
}

// ListExpensesBetween returns expenses dated inside the range, inclusive on both ends.
func (r *Repository) ListExpensesBetween(ctx context.Context, from, to time.Time) ([]Expense, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+expenseColumns+` FROM expenses
WHERE date::date >= $1::date AND date::date <= $2::date
ORDER BY date`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var expenses []Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}
	return expenses, rows.Err()
}

// DeleteExpense removes an unlocked expense.
func (r *Repository) DeleteExpense(ctx context.Context, id string) error {
	expense, err := r.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if expense.Locked {
		return ErrLocked
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND NOT locked`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LockExpenses locks every expense dated inside the range.
func (r *Repository) LockExpenses(ctx context.Context, from, to time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE expenses SET locked = TRUE, updated_at = now()
WHERE date::date >= $1::date AND date::date <= $2::date`,
		from, to)
	if err != nil {
		return 0, fmt.Errorf("crm: lock expenses: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Salary payments

const salaryColumns = `id, employee, month, amount, net_amount, paid_at, created_at, updated_at`

func scanSalaryPayment(row pgx.Row) (SalaryPayment, error) {
	var p SalaryPayment
	err := row.Scan(&p.ID, &p.Employee, &p.Month, &p.Amount, &p.NetAmount, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// CreateSalaryPayment inserts a payroll disbursement row.
func (r *Repository) CreateSalaryPayment(ctx context.Context, in SalaryPayment) (SalaryPayment, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx, `
INSERT INTO salary_payments (id, employee, month, amount, net_amount, paid_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+salaryColumns,
		in.ID, in.Employee, in.Month, in.Amount, in.NetAmount, in.PaidAt)
	payment, err := scanSalaryPayment(row)
	if err != nil {
		return SalaryPayment{}, mapInsertErr(err)
	}
	return payment, nil
}

// ListSalaryPaymentsByMonths returns payroll rows whose month matches any of the provided YYYY-MM values.
func (r *Repository) ListSalaryPaymentsByMonths(ctx context.Context, months []string) ([]SalaryPayment, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+salaryColumns+` FROM salary_payments
WHERE month = ANY($1)
ORDER BY month`, months)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []SalaryPayment
	for rows.Next() {
		payment, err := scanSalaryPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}
