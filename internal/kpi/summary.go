package kpi

import (
	"math"

	"github.com/Sharoon166/reverie/internal/quarter"
)

// Performance status labels derived from the overall score.
const (
	StatusOnTrack        = "on-track"
	StatusNeedsAttention = "needs-attention"
	StatusAtRisk         = "at-risk"
)

// FinancialMetrics groups the money-side metrics.
type FinancialMetrics struct {
	Revenue         Metric `json:"revenue"`
	Profit          Metric `json:"profit"`
	Expenses        Metric `json:"expenses"`
	RetainerRevenue Metric `json:"retainerRevenue"`
}

// ClientMetrics groups the pipeline metrics.
type ClientMetrics struct {
	ClientAcquisition Metric `json:"clientAcquisition"`
	ProposalsSent     Metric `json:"proposalsSent"`
	MeetingsBooked    Metric `json:"meetingsBooked"`
}

// EmployeeMetrics groups the staffing metrics.
type EmployeeMetrics struct {
	EmployeesVsSalaries Metric `json:"employeesVsSalaries"`
}

// InvoiceMetrics groups the billing metrics.
type InvoiceMetrics struct {
	InvoicesSent Metric `json:"invoicesSent"`
	InvoicesPaid Metric `json:"invoicesPaid"`
}

// Summary is the dashboard payload combining all metric groups with the
// weighted overall performance score.
type Summary struct {
	QuarterID          string           `json:"quarterId"`
	Financial          FinancialMetrics `json:"financial"`
	Client             ClientMetrics    `json:"client"`
	Employee           EmployeeMetrics  `json:"employee"`
	Invoice            InvoiceMetrics   `json:"invoice"`
	OverallPerformance int              `json:"overallPerformance"`
	Status             string           `json:"status"`
}

// Weights for the overall performance score. Expense progress is inverted
// before weighting since lower spend is better.
const (
	weightRevenue         = 0.3
	weightProfit          = 0.4
	weightExpenses        = 0.2
	weightRetainerRevenue = 0.1
)

// BuildSummary pairs each actual on the quarter record with its target and
// rolls the financial group into the weighted overall score.
func BuildSummary(q quarter.Quarter) Summary {
	s := Summary{
		QuarterID: q.QuarterID,
		Financial: FinancialMetrics{
			Revenue:         CalculateMetric(q.TotalRevenue, q.RevenueTarget),
			Profit:          CalculateMetric(q.NetProfit, q.ProfitTarget),
			Expenses:        CalculateMetric(q.TotalExpenses, q.ExpenseTarget),
			RetainerRevenue: CalculateMetric(q.RetainerRevenue, q.RetainerRevenueTarget),
		},
		Client: ClientMetrics{
			ClientAcquisition: CalculateMetric(q.ClientsAcquired, q.ClientAcquisitionTarget),
			ProposalsSent:     CalculateMetric(q.ProposalsSent, q.ProposalsSentTarget),
			MeetingsBooked:    CalculateMetric(q.MeetingsBooked, q.MeetingsBookedTarget),
		},
		Employee: EmployeeMetrics{
			EmployeesVsSalaries: salariesMetric(q),
		},
		Invoice: InvoiceMetrics{
			InvoicesSent: CalculateMetric(q.InvoicesSent, q.InvoicesSentTarget),
			InvoicesPaid: CalculateMetric(q.InvoicesPaid, nil),
		},
	}
	s.OverallPerformance = overallScore(q, s.Financial)
	s.Status = statusLabel(s.OverallPerformance)
	return s
}

// salariesMetric inverts the met rule: the target is a salary ceiling, so
// the metric is met when actual spend stays at or under it.
func salariesMetric(q quarter.Quarter) Metric {
	m := CalculateMetric(q.TotalSalaries, q.EmployeesVsSalariesTarget)
	ceiling := 0.0
	if q.EmployeesVsSalariesTarget != nil {
		ceiling = *q.EmployeesVsSalariesTarget
	}
	m.IsMet = q.TotalSalaries <= ceiling
	return m
}

func overallScore(q quarter.Quarter, fin FinancialMetrics) int {
	var sum, totalWeight float64
	add := func(target *float64, weight, progress float64) {
		if target == nil {
			return
		}
		sum += weight * progress
		totalWeight += weight
	}
	add(q.RevenueTarget, weightRevenue, fin.Revenue.Progress)
	add(q.ProfitTarget, weightProfit, fin.Profit.Progress)
	add(q.ExpenseTarget, weightExpenses, 100-fin.Expenses.Progress)
	add(q.RetainerRevenueTarget, weightRetainerRevenue, fin.RetainerRevenue.Progress)
	if totalWeight == 0 {
		return 0
	}
	score := int(math.Round(sum / totalWeight))
	if score > 100 {
		score = 100
	}
	return score
}

func statusLabel(score int) string {
	switch {
	case score >= 70:
		return StatusOnTrack
	case score >= 50:
		return StatusNeedsAttention
	default:
		return StatusAtRisk
	}
}
