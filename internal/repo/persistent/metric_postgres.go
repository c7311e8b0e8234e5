package persistent

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/postgres"
)

const (
	// Tables
	metricsTable       = "daily_metrics"
	contributionsTable = "daily_metric_contributions"

	// Columns
	metricDateColumn            = "metric_date"
	metricNameColumn            = "metric_name"
	metricValueColumn           = "value"
	metricContributionKeyColumn = "contribution_key"
)

type MetricRepo struct {
	*postgres.Postgres
}

func NewMetricRepo(pg *postgres.Postgres) *MetricRepo {
	return &MetricRepo{pg}
}

// Add records the contribution and bumps the aggregate in one transaction,
// a contribution key seen before leaves the aggregate untouched.
func (r *MetricRepo) Add(ctx context.Context, c entity.MetricContribution) (bool, error) {
	day := c.Date.UTC().Truncate(24 * time.Hour)

	contribSQL, contribArgs, err := r.Builder.
		Insert(contributionsTable).
		Columns(metricDateColumn, metricNameColumn, metricContributionKeyColumn, metricValueColumn).
		Values(day, c.Name, c.ContributionKey, c.Value).
		Suffix("ON CONFLICT (metric_date, metric_name, contribution_key) DO NOTHING RETURNING 1").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("MetricRepo - Add - r.Builder.ToSql(contribution): %w", err)
	}

	metricSQL, metricArgs, err := r.Builder.
		Insert(metricsTable).
		Columns(metricDateColumn, metricNameColumn, metricValueColumn).
		Values(day, c.Name, c.Value).
		Suffix("ON CONFLICT (metric_date, metric_name) DO UPDATE SET value = daily_metrics.value + EXCLUDED.value").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("MetricRepo - Add - r.Builder.ToSql(metric): %w", err)
	}

	var applied bool
	err = r.WithinTransaction(ctx, func(ctx context.Context) error {
		executor := r.GetExecutor(ctx)

		inserted, err := insertReturning(ctx, executor, contribSQL, contribArgs)
		if err != nil || !inserted {
			return err
		}

		_, err = executor.Exec(ctx, metricSQL, metricArgs...)
		if err != nil {
			return fmt.Errorf("executor.Exec: %w", err)
		}

		applied = true

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("MetricRepo - Add - r.WithinTransaction: %w", err)
	}

	return applied, nil
}

func (r *MetricRepo) ListDaily(ctx context.Context, date time.Time) ([]entity.DailyMetric, error) {
	sql, args, err := r.Builder.
		Select(metricDateColumn, metricNameColumn, metricValueColumn).
		From(metricsTable).
		Where(squirrel.Eq{metricDateColumn: date.UTC().Truncate(24 * time.Hour)}).
		OrderBy(metricNameColumn).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("MetricRepo - ListDaily - r.Builder.ToSql: %w", err)
	}

	rows, err := r.GetExecutor(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("MetricRepo - ListDaily - executor.Query: %w", err)
	}
	defer rows.Close()

	metrics := make([]entity.DailyMetric, 0)
	for rows.Next() {
		var m entity.DailyMetric
		if err = rows.Scan(&m.Date, &m.Name, &m.Value); err != nil {
			return nil, fmt.Errorf("MetricRepo - ListDaily - rows.Scan: %w", err)
		}
		metrics = append(metrics, m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("MetricRepo - ListDaily - rows.Err: %w", err)
	}

	return metrics, nil
}
