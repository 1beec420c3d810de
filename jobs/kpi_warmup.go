package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/Sharoon166/reverie/internal/jobs"
	"github.com/Sharoon166/reverie/internal/kpi"
	"github.com/Sharoon166/reverie/internal/quarter"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SummaryLister recomputes the quarterly summaries for a year.
type SummaryLister interface {
	QuarterlySummaries(ctx context.Context, year int) ([]quarter.QuarterlySummary, error)
}

// QuarterRecords resolves quarter records for dashboard rebuilding.
type QuarterRecords interface {
	GetOrCreate(ctx context.Context, year, number int) (quarter.Quarter, error)
}

// KPIWarmupJob pre-populates the dashboard caches so the first request after
// an invalidation does not pay the aggregation cost.
type KPIWarmupJob struct {
	Summaries SummaryLister
	Records   QuarterRecords
	Cache     *kpi.Cache
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewKPIWarmupJob wires dependencies for the warmup handler.
func NewKPIWarmupJob(summaries SummaryLister, records QuarterRecords, cache *kpi.Cache, logger *slog.Logger, metrics *jobmetrics.Metrics) *KPIWarmupJob {
	return &KPIWarmupJob{
		Summaries: summaries,
		Records:   records,
		Cache:     cache,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskKPIWarmup tasks.
func (j *KPIWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("kpi warmup: handler not configured")
	}
	var payload KPIWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	year := payload.Year
	if year == 0 {
		year = j.now().Year()
	}

	tracker := j.metrics().Track(TaskKPIWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("year", year))
	logger.Info("starting kpi warmup")

	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	if err := j.warmYear(runCtx, year); err != nil {
		resultErr = err
		logger.Error("warm year summaries", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddWarmed("year", 1)

	warmed := 0
	for number := 1; number <= 4; number++ {
		if err := j.warmQuarter(runCtx, year, number); err != nil {
			resultErr = err
			logger.Error("warm quarter", slog.Int("quarter", number), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}
	j.metrics().AddWarmed("quarter", warmed)

	logger.Info("completed kpi warmup", slog.Int("quarters", warmed))
	return resultErr
}

func (j *KPIWarmupJob) warmYear(ctx context.Context, year int) error {
	key, err := j.Cache.BuildKey(ctx, kpi.KeyYear(year)...)
	if err != nil {
		return err
	}
	var summaries []quarter.QuarterlySummary
	return j.Cache.FetchJSON(ctx, key, &summaries, func(ctx context.Context) (interface{}, error) {
		return j.Summaries.QuarterlySummaries(ctx, year)
	})
}

func (j *KPIWarmupJob) warmQuarter(ctx context.Context, year, number int) error {
	quarterID := quarter.FormatQuarterID(number, year)
	key, err := j.Cache.BuildKey(ctx, kpi.KeySummary(quarterID)...)
	if err != nil {
		return err
	}
	var summary kpi.Summary
	return j.Cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (interface{}, error) {
		record, err := j.Records.GetOrCreate(ctx, year, number)
		if err != nil {
			return nil, err
		}
		return kpi.BuildSummary(record), nil
	})
}

func (j *KPIWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskKPIWarmup))
	}
	return slog.Default().With(slog.String("job", TaskKPIWarmup))
}

func (j *KPIWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *KPIWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
