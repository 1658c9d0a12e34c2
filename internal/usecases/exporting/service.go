package exporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vfg2006/mediation-report-pipeline/infrastructure/integrator/admob/admobclient"
	admobdomain "github.com/vfg2006/mediation-report-pipeline/infrastructure/integrator/admob/domain"
	"github.com/vfg2006/mediation-report-pipeline/internal/config"
	"github.com/vfg2006/mediation-report-pipeline/internal/domain"
	"github.com/vfg2006/mediation-report-pipeline/internal/usecases/alerting"
	"github.com/vfg2006/mediation-report-pipeline/internal/usecases/reporting"
	"github.com/vfg2006/mediation-report-pipeline/pkg/log"
	"github.com/vfg2006/mediation-report-pipeline/pkg/utils"
)

// Fatal error classes of a run. Authentication and sink failures abort the
// run; alert delivery failures do not.
var (
	ErrAuth = errors.New("report credentials rejected")
	ErrSink = errors.New("report sink failure")
)

// ReportFetcher yields the raw report stream for a date.
type ReportFetcher interface {
	FetchMediationReport(ctx context.Context, reportDate time.Time) (admobdomain.ChunkStream, error)
}

// Uploader copies the sink file into object storage and returns its URI.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// WarehouseLoader loads the uploaded CSV into the warehouse table,
// replacing the date's partition.
type WarehouseLoader interface {
	ReplacePartition(ctx context.Context, gcsURI string, reportDate time.Time) error
}

// AlertDispatcher delivers one breach notification.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, event domain.AlertEvent) error
}

// AlertEventRepository records dispatched events for cross-run suppression.
type AlertEventRepository interface {
	Exists(ctx context.Context, reportDate, app, adUnit, metric string) (bool, error)
	Save(ctx context.Context, event *domain.AlertEvent) error
}

// PipelineRunRepository keeps the per-run bookkeeping record.
type PipelineRunRepository interface {
	SaveOrUpdate(ctx context.Context, run *domain.PipelineRun) error
	ListRecent(ctx context.Context, limit int) ([]*domain.PipelineRun, error)
}

// Service runs the daily export: fetch, flatten, write the CSV, upload it,
// load the warehouse, then evaluate and dispatch alerts.
type Service struct {
	cfg       *config.Config
	fetcher   ReportFetcher
	consumer  *reporting.Consumer
	sink      *reporting.CSVSink
	uploader  Uploader
	loader    WarehouseLoader
	evaluator *alerting.Evaluator
	rules     []domain.AlertRule

	dispatcher AlertDispatcher
	alertRepo  AlertEventRepository
	runRepo    PipelineRunRepository
}

func NewService(
	cfg *config.Config,
	fetcher ReportFetcher,
	consumer *reporting.Consumer,
	sink *reporting.CSVSink,
	uploader Uploader,
	loader WarehouseLoader,
	evaluator *alerting.Evaluator,
	rules []domain.AlertRule,
	dispatcher AlertDispatcher,
	alertRepo AlertEventRepository,
	runRepo PipelineRunRepository,
) *Service {
	return &Service{
		cfg:        cfg,
		fetcher:    fetcher,
		consumer:   consumer,
		sink:       sink,
		uploader:   uploader,
		loader:     loader,
		evaluator:  evaluator,
		rules:      rules,
		dispatcher: dispatcher,
		alertRepo:  alertRepo,
		runRepo:    runRepo,
	}
}

// Run executes the pipeline for one report date. The returned run record is
// always non-nil; its final state is DONE or FAILED.
func (s *Service) Run(ctx context.Context, reportDate time.Time) (*domain.PipelineRun, error) {
	ctx, correlationID := log.WithCorrelationID(ctx)
	logger := log.ForContext(ctx).WithField("report_date", reportDate.Format("2006-01-02"))

	id, err := utils.GenerateID()
	if err != nil {
		return nil, fmt.Errorf("generating run ID: %w", err)
	}

	run := &domain.PipelineRun{
		ID:         id,
		ReportDate: reportDate.Format("2006-01-02"),
		State:      domain.RunStateInit,
		StartedAt:  time.Now().UTC(),
	}
	s.saveRun(ctx, run)

	logger.WithFields(log.Fields{"run_id": run.ID, "correlation_id": correlationID}).
		Info("Mediation export started")

	s.transition(ctx, run, domain.RunStateFetching)

	stream, err := s.fetcher.FetchMediationReport(ctx, reportDate)
	if err != nil {
		if errors.Is(err, admobclient.ErrCredentialRefresh) {
			err = fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return run, s.fail(ctx, run, fmt.Errorf("fetching report: %w", err))
	}
	defer stream.Close()

	records, dropped, err := s.consumer.Consume(ctx, stream)
	if err != nil {
		return run, s.fail(ctx, run, err)
	}

	run.RowCount = len(records)
	run.DroppedChunks = dropped
	s.transition(ctx, run, domain.RunStateFlattened)

	if len(records) == 0 {
		logger.Warn("Report came back empty, nothing to export")
		s.finish(ctx, run)
		return run, nil
	}

	path, err := s.sink.WriteReport(records, reportDate)
	if err != nil {
		return run, s.fail(ctx, run, fmt.Errorf("%w: %v", ErrSink, err))
	}

	uri, err := s.uploader.Upload(ctx, path)
	if err != nil {
		return run, s.fail(ctx, run, fmt.Errorf("%w: %v", ErrSink, err))
	}

	if err := s.loader.ReplacePartition(ctx, uri, reportDate); err != nil {
		return run, s.fail(ctx, run, fmt.Errorf("%w: %v", ErrSink, err))
	}
	s.transition(ctx, run, domain.RunStateWritten)

	events := s.evaluator.Evaluate(records, s.rules, run.ReportDate)
	s.transition(ctx, run, domain.RunStateEvaluated)

	events = s.filterSuppressed(ctx, events)
	s.dispatchAll(ctx, run, events)
	s.transition(ctx, run, domain.RunStateDispatched)

	s.finish(ctx, run)

	logger.WithFields(log.Fields{
		"run_id":         run.ID,
		"rows":           run.RowCount,
		"dropped_chunks": run.DroppedChunks,
		"alerts_sent":    run.AlertsSent,
		"alerts_failed":  run.AlertsFailed,
	}).Info("Mediation export finished")

	return run, nil
}

// filterSuppressed drops events already dispatched for the same key in a
// previous run. A lookup failure keeps the event: a duplicate page beats a
// silently dropped one.
func (s *Service) filterSuppressed(ctx context.Context, events []domain.AlertEvent) []domain.AlertEvent {
	if !s.cfg.Alerts.CrossRunSuppression || s.alertRepo == nil {
		return events
	}

	kept := events[:0]
	for _, event := range events {
		exists, err := s.alertRepo.Exists(ctx, event.ReportDate, event.App, event.AdUnit, event.Metric)
		if err != nil {
			log.ForContext(ctx).WithError(err).Warn("Could not check alert history, dispatching anyway")
			kept = append(kept, event)
			continue
		}
		if exists {
			log.ForContext(ctx).WithFields(log.Fields{
				"app":     event.App,
				"ad_unit": event.AdUnit,
				"metric":  event.Metric,
			}).Info("Alert suppressed, already dispatched in a previous run")
			continue
		}
		kept = append(kept, event)
	}

	return kept
}

// dispatchAll delivers each event independently. A delivery failure is
// counted and logged but never aborts the run or the remaining events.
func (s *Service) dispatchAll(ctx context.Context, run *domain.PipelineRun, events []domain.AlertEvent) {
	for _, event := range events {
		if err := s.dispatcher.Dispatch(ctx, event); err != nil {
			run.AlertsFailed++
			log.ForContext(ctx).WithError(err).WithFields(log.Fields{
				"app":     event.App,
				"ad_unit": event.AdUnit,
				"metric":  event.Metric,
			}).Error("Alert dispatch failed")
			continue
		}

		run.AlertsSent++

		if s.cfg.Alerts.CrossRunSuppression && s.alertRepo != nil {
			if err := s.alertRepo.Save(ctx, &event); err != nil {
				log.ForContext(ctx).WithError(err).Warn("Could not record dispatched alert")
			}
		}
	}
}

func (s *Service) transition(ctx context.Context, run *domain.PipelineRun, state domain.RunState) {
	run.State = state
	s.saveRun(ctx, run)
}

func (s *Service) finish(ctx context.Context, run *domain.PipelineRun) {
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.State = domain.RunStateDone
	s.saveRun(ctx, run)
}

func (s *Service) fail(ctx context.Context, run *domain.PipelineRun, err error) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.State = domain.RunStateFailed
	run.Error = err.Error()
	s.saveRun(ctx, run)

	log.ForContext(ctx).WithError(err).WithField("run_id", run.ID).Error("Mediation export failed")

	return err
}

// saveRun is bookkeeping only: a persistence failure is logged, never
// escalated.
func (s *Service) saveRun(ctx context.Context, run *domain.PipelineRun) {
	if s.runRepo == nil {
		return
	}
	if err := s.runRepo.SaveOrUpdate(ctx, run); err != nil {
		log.ForContext(ctx).WithError(err).Warn("Could not persist pipeline run state")
	}
}
