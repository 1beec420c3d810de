package crmhttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Sharoon166/reverie/internal/crm"
	"github.com/Sharoon166/reverie/internal/platform/httpx"
)

type crmService interface {
	CreateLead(ctx context.Context, in crm.Lead) (crm.Lead, error)
	GetLead(ctx context.Context, id string) (crm.Lead, error)
	ListLeads(ctx context.Context) ([]crm.Lead, error)
	UpdateLeadStatus(ctx context.Context, id string, status crm.LeadStatus) (crm.Lead, error)
	DeleteLead(ctx context.Context, id string) error
	CreateClient(ctx context.Context, in crm.Client) (crm.Client, error)
	GetClient(ctx context.Context, id string) (crm.Client, error)
	ListClients(ctx context.Context) ([]crm.Client, error)
	CreateInvoice(ctx context.Context, in crm.Invoice) (crm.Invoice, error)
	GetInvoice(ctx context.Context, id string) (crm.Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, id string, status crm.InvoiceStatus) (crm.Invoice, error)
	ListInvoices(ctx context.Context, from, to time.Time) ([]crm.Invoice, error)
	CreateExpense(ctx context.Context, in crm.Expense) (crm.Expense, error)
	GetExpense(ctx context.Context, id string) (crm.Expense, error)
	ListExpenses(ctx context.Context, from, to time.Time) ([]crm.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
	CreateSalaryPayment(ctx context.Context, in crm.SalaryPayment) (crm.SalaryPayment, error)
	ListSalaryPayments(ctx context.Context, months []string) ([]crm.SalaryPayment, error)
}

// Handler wires HTTP endpoints for the transactional CRM collections.
type Handler struct {
	logger   *slog.Logger
	service  crmService
	validate *validator.Validate
}

// NewHandler constructs a CRM HTTP handler.
func NewHandler(logger *slog.Logger, service crmService) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountRoutes registers CRM routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/leads", func(r chi.Router) {
		r.Post("/", h.createLead)
		r.Get("/", h.listLeads)
		r.Get("/{id}", h.getLead)
		r.Patch("/{id}/status", h.updateLeadStatus)
		r.Delete("/{id}", h.deleteLead)
	})
	r.Route("/clients", func(r chi.Router) {
		r.Post("/", h.createClient)
		r.Get("/", h.listClients)
		r.Get("/{id}", h.getClient)
	})
	r.Route("/invoices", func(r chi.Router) {
		r.Post("/", h.createInvoice)
		r.Get("/", h.listInvoices)
		r.Get("/{id}", h.getInvoice)
		r.Patch("/{id}/status", h.updateInvoiceStatus)
	})
	r.Route("/expenses", func(r chi.Router) {
		r.Post("/", h.createExpense)
		r.Get("/", h.listExpenses)
		r.Get("/{id}", h.getExpense)
		r.Delete("/{id}", h.deleteExpense)
	})
	r.Route("/salary-payments", func(r chi.Router) {
		r.Post("/", h.createSalaryPayment)
		r.Get("/", h.listSalaryPayments)
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, crm.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, crm.ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, crm.ErrLocked):
		httpx.Problem(w, http.StatusConflict, "Locked", err.Error())
	default:
		h.logger.Error("crm request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

type leadRequest struct {
	Name    string  `json:"name" validate:"required"`
	Email   string  `json:"email" validate:"omitempty,email"`
	Company string  `json:"company"`
	Source  string  `json:"source"`
	Value   float64 `json:"value" validate:"gte=0"`
}

func (h *Handler) createLead(w http.ResponseWriter, r *http.Request) {
	var req leadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	lead, err := h.service.CreateLead(r.Context(), crm.Lead{
		Name:    req.Name,
		Email:   req.Email,
		Company: req.Company,
		Source:  req.Source,
		Value:   req.Value,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, lead)
}

func (h *Handler) listLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := h.service.ListLeads(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, leads)
}

func (h *Handler) getLead(w http.ResponseWriter, r *http.Request) {
	lead, err := h.service.GetLead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) updateLeadStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	lead, err := h.service.UpdateLeadStatus(r.Context(), chi.URLParam(r, "id"), crm.LeadStatus(strings.ToLower(req.Status)))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
}

func (h *Handler) deleteLead(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteLead(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type clientRequest struct {
	Name      string  `json:"name" validate:"required"`
	Email     string  `json:"email" validate:"omitempty,email"`
	Company   string  `json:"company"`
	StartDate string  `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	Retainer  float64 `json:"retainer" validate:"gte=0"`
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := crm.Client{
		Name:     req.Name,
		Email:    req.Email,
		Company:  req.Company,
		Retainer: req.Retainer,
	}
	if req.StartDate != "" {
		start, _ := time.ParseInLocation("2006-01-02", req.StartDate, time.UTC)
		in.StartDate = start
	}
	client, err := h.service.CreateClient(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, client)
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.service.ListClients(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, clients)
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.service.GetClient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

type invoiceRequest struct {
	ClientID  string  `json:"clientId"`
	Number    string  `json:"number" validate:"required"`
	Amount    float64 `json:"amount" validate:"gt=0"`
	IssueDate string  `json:"issueDate" validate:"omitempty,datetime=2006-01-02"`
	DueDate   string  `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := crm.Invoice{
		ClientID: req.ClientID,
		Number:   req.Number,
		Amount:   req.Amount,
	}
	if req.IssueDate != "" {
		issue, _ := time.ParseInLocation("2006-01-02", req.IssueDate, time.UTC)
		in.IssueDate = issue
	}
	if req.DueDate != "" {
		due, _ := time.ParseInLocation("2006-01-02", req.DueDate, time.UTC)
		in.DueDate = &due
	}
	invoice, err := h.service.CreateInvoice(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, invoice)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.service.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) updateInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	invoice, err := h.service.UpdateInvoiceStatus(r.Context(), chi.URLParam(r, "id"), crm.InvoiceStatus(strings.ToLower(req.Status)))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}
	invoices, err := h.service.ListInvoices(r.Context(), from, to)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

type expenseRequest struct {
	Description string  `json:"description" validate:"required"`
	Category    string  `json:"category" validate:"required"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	Date        string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) createExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := crm.Expense{
		Description: req.Description,
		Category:    req.Category,
		Amount:      req.Amount,
	}
	if req.Date != "" {
		date, _ := time.ParseInLocation("2006-01-02", req.Date, time.UTC)
		in.Date = date
	}
	expense, err := h.service.CreateExpense(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, expense)
}

func (h *Handler) getExpense(w http.ResponseWriter, r *http.Request) {
	expense, err := h.service.GetExpense(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, expense)
}

func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}
	expenses, err := h.service.ListExpenses(r.Context(), from, to)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, expenses)
}

func (h *Handler) deleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteExpense(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type salaryPaymentRequest struct {
	Employee  string   `json:"employee" validate:"required"`
	Month     string   `json:"month" validate:"required,datetime=2006-01"`
	Amount    float64  `json:"amount" validate:"gt=0"`
	NetAmount *float64 `json:"netAmount" validate:"omitempty,gt=0"`
}

func (h *Handler) createSalaryPayment(w http.ResponseWriter, r *http.Request) {
	var req salaryPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	payment, err := h.service.CreateSalaryPayment(r.Context(), crm.SalaryPayment{
		Employee:  req.Employee,
		Month:     req.Month,
		Amount:    req.Amount,
		NetAmount: req.NetAmount,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) listSalaryPayments(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("months"))
	if raw == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "months query parameter required (comma-separated YYYY-MM)")
		return
	}
	months := strings.Split(raw, ",")
	for _, m := range months {
		if _, err := time.Parse("2006-01", m); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid month "+m)
			return
		}
	}
	payments, err := h.service.ListSalaryPayments(r.Context(), months)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *Handler) parseRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	fromParam := r.URL.Query().Get("from")
	toParam := r.URL.Query().Get("to")
	if fromParam == "" || toParam == "" {
		// Default to the current calendar year.
		now := time.Now().UTC()
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
			time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, time.UTC), true
	}
	from, err := time.ParseInLocation("2006-01-02", fromParam, time.UTC)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid from date")
		return time.Time{}, time.Time{}, false
	}
	to, err := time.ParseInLocation("2006-01-02", toParam, time.UTC)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid to date")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
