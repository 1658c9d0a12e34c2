package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/vfg2006/mediation-report-pipeline/infrastructure/database/postgres"
	"github.com/vfg2006/mediation-report-pipeline/internal/domain"
)

const alertEventsTable = "alert_events"

// AlertEventRepository persists dispatched alert events. The stored keys are
// what makes cross-run suppression possible: the schedule runs twice a day
// and an identical breach should not page twice.
type AlertEventRepository interface {
	Exists(ctx context.Context, reportDate, app, adUnit, metric string) (bool, error)
	Save(ctx context.Context, event *domain.AlertEvent) error
}

type alertEventRepository struct {
	conn *postgres.Connection
}

func NewAlertEventRepository(conn *postgres.Connection) AlertEventRepository {
	return &alertEventRepository{
		conn: conn,
	}
}

func (r *alertEventRepository) Exists(ctx context.Context, reportDate, app, adUnit, metric string) (bool, error) {
	query, args, err := squirrel.
		Select("1").
		From(alertEventsTable).
		Where(squirrel.Eq{
			"report_date": reportDate,
			"app_name":    app,
			"ad_unit":     adUnit,
			"metric":      metric,
		}).
		Limit(1).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("building alert event query: %w", err)
	}

	var one int
	if err := r.conn.QueryRow(ctx, query, args...).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("querying alert event: %w", err)
	}

	return true, nil
}

func (r *alertEventRepository) Save(ctx context.Context, event *domain.AlertEvent) error {
	query, args, err := squirrel.
		Insert(alertEventsTable).
		Columns(
			"id", "report_date", "app_name", "ad_unit", "metric",
			"operator", "threshold", "observed", "triggered_at",
		).
		Values(
			event.ID, event.ReportDate, event.App, event.AdUnit, event.Metric,
			string(event.Op), event.Threshold, event.Observed, event.TriggeredAt,
		).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building alert event insert: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("saving alert event: %w", err)
	}

	return nil
}
