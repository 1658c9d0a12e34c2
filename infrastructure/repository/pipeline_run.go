package repository

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/vfg2006/mediation-report-pipeline/infrastructure/database/postgres"
	"github.com/vfg2006/mediation-report-pipeline/internal/domain"
)

const pipelineRunsTable = "pipeline_runs"

// PipelineRunRepository keeps the bookkeeping record of each export run.
type PipelineRunRepository interface {
	SaveOrUpdate(ctx context.Context, run *domain.PipelineRun) error
	ListRecent(ctx context.Context, limit int) ([]*domain.PipelineRun, error)
}

type pipelineRunRepository struct {
	conn *postgres.Connection
}

func NewPipelineRunRepository(conn *postgres.Connection) PipelineRunRepository {
	return &pipelineRunRepository{
		conn: conn,
	}
}

func (r *pipelineRunRepository) SaveOrUpdate(ctx context.Context, run *domain.PipelineRun) error {
	query, args, err := squirrel.
		Insert(pipelineRunsTable).
		Columns(
			"id", "report_date", "state", "row_count", "dropped_chunks",
			"alerts_sent", "alerts_failed", "error", "started_at", "finished_at",
		).
		Values(
			run.ID, run.ReportDate, string(run.State), run.RowCount, run.DroppedChunks,
			run.AlertsSent, run.AlertsFailed, run.Error, run.StartedAt, run.FinishedAt,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			row_count = EXCLUDED.row_count,
			dropped_chunks = EXCLUDED.dropped_chunks,
			alerts_sent = EXCLUDED.alerts_sent,
			alerts_failed = EXCLUDED.alerts_failed,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at`).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building pipeline run upsert: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("saving pipeline run: %w", err)
	}

	return nil
}

func (r *pipelineRunRepository) ListRecent(ctx context.Context, limit int) ([]*domain.PipelineRun, error) {
	query, args, err := squirrel.
		Select(
			"id", "report_date", "state", "row_count", "dropped_chunks",
			"alerts_sent", "alerts_failed", "error", "started_at", "finished_at",
		).
		From(pipelineRunsTable).
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building pipeline run query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying pipeline runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.PipelineRun
	for rows.Next() {
		run := &domain.PipelineRun{}
		var state string
		if err := rows.Scan(
			&run.ID, &run.ReportDate, &state, &run.RowCount, &run.DroppedChunks,
			&run.AlertsSent, &run.AlertsFailed, &run.Error, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning pipeline run: %w", err)
		}
		run.State = domain.RunState(state)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pipeline runs: %w", err)
	}

	return runs, nil
}
