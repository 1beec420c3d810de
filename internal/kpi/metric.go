// Package kpi computes per-target performance metrics and the dashboard
// summary derived from a quarter record.
package kpi

import "math"

// Metric is the evaluation of one (actual, target) pair. Progress is capped
// at 100; over-achievement shows up in Variance, which is uncapped.
type Metric struct {
	Actual   float64 `json:"actual"`
	Target   float64 `json:"target"`
	Progress float64 `json:"progress"`
	IsMet    bool    `json:"isMet"`
	Variance float64 `json:"variance"`
}

// CalculateMetric evaluates an actual value against an optional target. A nil
// or zero target yields zero progress and variance.
func CalculateMetric(actual float64, target *float64) Metric {
	t := 0.0
	if target != nil {
		t = *target
	}
	m := Metric{
		Actual: actual,
		Target: t,
		IsMet:  actual >= t,
	}
	if t == 0 {
		return m
	}
	m.Progress = math.Min(actual/t*100, 100)
	m.Variance = (actual - t) / t * 100
	return m
}
