package quarterhttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/Sharoon166/reverie/internal/kpi"
	"github.com/Sharoon166/reverie/internal/quarter"
)

type fakeAggregator struct {
	summaries []quarter.QuarterlySummary
	err       error
}

func (f *fakeAggregator) QuarterlySummaries(ctx context.Context, year int) ([]quarter.QuarterlySummary, error) {
	return f.summaries, f.err
}

type fakeRecords struct {
	quarters map[string]quarter.Quarter
	updates  []quarter.Update
}

func (f *fakeRecords) Get(ctx context.Context, quarterID string) (quarter.Quarter, error) {
	q, ok := f.quarters[quarterID]
	if !ok {
		return quarter.Quarter{}, quarter.ErrNotFound
	}
	return q, nil
}

func (f *fakeRecords) GetOrCreateCurrent(ctx context.Context) (quarter.Quarter, error) {
	return quarter.Quarter{QuarterID: "q3-2025", Number: 3, Year: 2025, Status: quarter.StatusOpen}, nil
}

func (f *fakeRecords) UpdateQuarter(ctx context.Context, quarterID string, upd quarter.Update) (quarter.Quarter, error) {
	q, ok := f.quarters[quarterID]
	if !ok {
		return quarter.Quarter{}, quarter.ErrNotFound
	}
	f.updates = append(f.updates, upd)
	return q, nil
}

type fakeCloser struct {
	result quarter.ClosureResult
	err    error

	gotQuarterID  string
	gotWithdrawal float64
}

func (f *fakeCloser) Close(ctx context.Context, quarterID string, withdrawal float64) (quarter.ClosureResult, error) {
	f.gotQuarterID = quarterID
	f.gotWithdrawal = withdrawal
	return f.result, f.err
}

func newTestRouter(agg *fakeAggregator, records *fakeRecords, closer *fakeCloser) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, agg, records, closer, kpi.NewCache(nil, 0))
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func TestListSummaries(t *testing.T) {
	agg := &fakeAggregator{summaries: []quarter.QuarterlySummary{{ID: "q1-2025"}, {ID: "q2-2025"}}}
	router := newTestRouter(agg, &fakeRecords{}, &fakeCloser{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/quarters?year=2025", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []quarter.QuarterlySummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
}

func TestListSummariesRejectsBadYear(t *testing.T) {
	router := newTestRouter(&fakeAggregator{}, &fakeRecords{}, &fakeCloser{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/quarters?year=abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetQuarterNotFound(t *testing.T) {
	router := newTestRouter(&fakeAggregator{}, &fakeRecords{quarters: map[string]quarter.Quarter{}}, &fakeCloser{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/quarters/q1-2025", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
}

func TestUpdateTargets(t *testing.T) {
	records := &fakeRecords{quarters: map[string]quarter.Quarter{
		"q1-2025": {QuarterID: "q1-2025", Status: quarter.StatusOpen},
	}}
	router := newTestRouter(&fakeAggregator{}, records, &fakeCloser{})

	body := strings.NewReader(`{"revenueTarget": 100000, "profitTarget": 40000}`)
	req := httptest.NewRequest(http.MethodPatch, "/quarters/q1-2025/targets", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, records.updates, 1)
	require.Equal(t, 100000.0, *records.updates[0].RevenueTarget)
	require.Equal(t, 40000.0, *records.updates[0].ProfitTarget)
	require.Nil(t, records.updates[0].ExpenseTarget)
}

func TestUpdateTargetsRejectsNegative(t *testing.T) {
	records := &fakeRecords{quarters: map[string]quarter.Quarter{
		"q1-2025": {QuarterID: "q1-2025"},
	}}
	router := newTestRouter(&fakeAggregator{}, records, &fakeCloser{})

	body := strings.NewReader(`{"revenueTarget": -5}`)
	req := httptest.NewRequest(http.MethodPatch, "/quarters/q1-2025/targets", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, records.updates)
}

func TestCloseQuarter(t *testing.T) {
	closer := &fakeCloser{result: quarter.ClosureResult{
		Success:          true,
		QuarterID:        "q1-2025",
		ClosedDate:       time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		WithdrawalAmount: 4000,
		RemainingBalance: 5000,
		ReportGenerated:  true,
	}}
	router := newTestRouter(&fakeAggregator{}, &fakeRecords{}, closer)

	body := strings.NewReader(`{"withdrawalAmount": 4000}`)
	req := httptest.NewRequest(http.MethodPost, "/quarters/q1-2025/close", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "q1-2025", closer.gotQuarterID)
	require.Equal(t, 4000.0, closer.gotWithdrawal)

	var result quarter.ClosureResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.True(t, result.Success)
	require.Equal(t, 5000.0, result.RemainingBalance)
}

func TestCloseQuarterErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"invalid id", quarter.ErrInvalidQuarterID, http.StatusBadRequest},
		{"not found", quarter.ErrNotFound, http.StatusNotFound},
		{"invalid state", quarter.ErrInvalidState, http.StatusConflict},
		{"invalid amount", quarter.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{"close failure", &quarter.CloseError{QuarterID: "q1-2025", Err: http.ErrAbortHandler}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&fakeAggregator{}, &fakeRecords{}, &fakeCloser{err: tc.err})

			req := httptest.NewRequest(http.MethodPost, "/quarters/q1-2025/close", strings.NewReader(`{"withdrawalAmount": 0}`))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			require.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestKPISummaryEndpoint(t *testing.T) {
	profitTarget := 5000.0
	records := &fakeRecords{quarters: map[string]quarter.Quarter{
		"q1-2025": {QuarterID: "q1-2025", NetProfit: 6000, ProfitTarget: &profitTarget},
	}}
	router := newTestRouter(&fakeAggregator{}, records, &fakeCloser{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/quarters/q1-2025/kpi", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var summary kpi.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, "q1-2025", summary.QuarterID)
	require.Equal(t, 100, summary.OverallPerformance)
	require.True(t, summary.Financial.Profit.IsMet)
}

func TestKPISummaryRejectsMalformedID(t *testing.T) {
	router := newTestRouter(&fakeAggregator{}, &fakeRecords{}, &fakeCloser{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/quarters/bogus/kpi", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
