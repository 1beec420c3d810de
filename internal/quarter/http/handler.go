package quarterhttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Sharoon166/reverie/internal/kpi"
	"github.com/Sharoon166/reverie/internal/platform/httpx"
	"github.com/Sharoon166/reverie/internal/quarter"
)

type aggregatorService interface {
	QuarterlySummaries(ctx context.Context, year int) ([]quarter.QuarterlySummary, error)
}

type recordService interface {
	Get(ctx context.Context, quarterID string) (quarter.Quarter, error)
	GetOrCreateCurrent(ctx context.Context) (quarter.Quarter, error)
	UpdateQuarter(ctx context.Context, quarterID string, upd quarter.Update) (quarter.Quarter, error)
}

type closeService interface {
	Close(ctx context.Context, quarterID string, withdrawal float64) (quarter.ClosureResult, error)
}

// Handler wires HTTP endpoints for quarterly reporting and close.
type Handler struct {
	logger     *slog.Logger
	aggregator aggregatorService
	records    recordService
	closer     closeService
	cache      *kpi.Cache
	validate   *validator.Validate
}

// NewHandler constructs a quarter HTTP handler.
func NewHandler(logger *slog.Logger, aggregator aggregatorService, records recordService, closer closeService, cache *kpi.Cache) *Handler {
	return &Handler{
		logger:     logger,
		aggregator: aggregator,
		records:    records,
		closer:     closer,
		cache:      cache,
		validate:   validator.New(),
	}
}

// MountRoutes registers quarter routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/quarters", func(r chi.Router) {
		r.Get("/", h.listSummaries)
		r.Get("/current", h.currentQuarter)
		r.Get("/{quarterID}", h.getQuarter)
		r.Patch("/{quarterID}/targets", h.updateTargets)
		r.Post("/{quarterID}/close", h.closeQuarter)
		r.Get("/{quarterID}/kpi", h.kpiSummary)
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var closeErr *quarter.CloseError
	switch {
	case errors.Is(err, quarter.ErrInvalidQuarterID):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Quarter ID", err.Error())
	case errors.Is(err, quarter.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, quarter.ErrInvalidState), errors.Is(err, quarter.ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, quarter.ErrInvalidAmount):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Amount", err.Error())
	case errors.As(err, &closeErr):
		h.logger.Error("quarter close failed", slog.String("quarter", closeErr.QuarterID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Close Failed", err.Error())
	default:
		h.logger.Error("quarter request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) listSummaries(w http.ResponseWriter, r *http.Request) {
	year := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("year")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1970 || parsed > 9999 {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid year")
			return
		}
		year = parsed
	}
	summaries, err := h.aggregator.QuarterlySummaries(r.Context(), year)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summaries)
}

func (h *Handler) currentQuarter(w http.ResponseWriter, r *http.Request) {
	record, err := h.records.GetOrCreateCurrent(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) getQuarter(w http.ResponseWriter, r *http.Request) {
	record, err := h.records.Get(r.Context(), chi.URLParam(r, "quarterID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

type targetsRequest struct {
	RevenueTarget             *float64 `json:"revenueTarget" validate:"omitempty,gte=0"`
	ExpenseTarget             *float64 `json:"expenseTarget" validate:"omitempty,gte=0"`
	ProfitTarget              *float64 `json:"profitTarget" validate:"omitempty,gte=0"`
	RetainerRevenueTarget     *float64 `json:"retainerRevenueTarget" validate:"omitempty,gte=0"`
	ClientAcquisitionTarget   *float64 `json:"clientAcquisitionTarget" validate:"omitempty,gte=0"`
	ProposalsSentTarget       *float64 `json:"proposalsSentTarget" validate:"omitempty,gte=0"`
	MeetingsBookedTarget      *float64 `json:"meetingsBookedTarget" validate:"omitempty,gte=0"`
	InvoicesSentTarget        *float64 `json:"invoicesSentTarget" validate:"omitempty,gte=0"`
	EmployeesVsSalariesTarget *float64 `json:"employeesVsSalariesTarget" validate:"omitempty,gte=0"`
}

func (h *Handler) updateTargets(w http.ResponseWriter, r *http.Request) {
	var req targetsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	record, err := h.records.UpdateQuarter(r.Context(), chi.URLParam(r, "quarterID"), quarter.Update{
		RevenueTarget:             req.RevenueTarget,
		ExpenseTarget:             req.ExpenseTarget,
		ProfitTarget:              req.ProfitTarget,
		RetainerRevenueTarget:     req.RetainerRevenueTarget,
		ClientAcquisitionTarget:   req.ClientAcquisitionTarget,
		ProposalsSentTarget:       req.ProposalsSentTarget,
		MeetingsBookedTarget:      req.MeetingsBookedTarget,
		InvoicesSentTarget:        req.InvoicesSentTarget,
		EmployeesVsSalariesTarget: req.EmployeesVsSalariesTarget,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

type closeRequest struct {
	WithdrawalAmount float64 `json:"withdrawalAmount" validate:"gte=0"`
}

func (h *Handler) closeQuarter(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
			return
		}
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.closer.Close(r.Context(), chi.URLParam(r, "quarterID"), req.WithdrawalAmount)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) kpiSummary(w http.ResponseWriter, r *http.Request) {
	quarterID := chi.URLParam(r, "quarterID")
	if _, _, err := quarter.ParseQuarterID(quarterID); err != nil {
		h.respondError(w, err)
		return
	}
	key, err := h.cache.BuildKey(r.Context(), kpi.KeySummary(quarterID)...)
	if err != nil {
		h.respondError(w, err)
		return
	}
	var summary kpi.Summary
	err = h.cache.FetchJSON(r.Context(), key, &summary, func(ctx context.Context) (interface{}, error) {
		record, err := h.records.Get(ctx, quarterID)
		if err != nil {
			return nil, err
		}
		return kpi.BuildSummary(record), nil
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
