package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/mediation-report-pipeline/internal/config"
	"github.com/vfg2006/mediation-report-pipeline/internal/domain"
	"github.com/vfg2006/mediation-report-pipeline/internal/usecases/exporting"
	"github.com/vfg2006/mediation-report-pipeline/pkg/utils"
)

// MediationExportService schedules the export pipeline and guards against
// overlapping runs.
type MediationExportService struct {
	scheduler *gocron.Scheduler
	appConfig *config.Config
	exporter  *exporting.Service

	syncRunning         bool
	syncMutex           sync.Mutex
	lastSyncStartedAt   time.Time
	lastSyncCompletedAt time.Time
	lastRun             *domain.PipelineRun
}

func NewMediationExportService(exporter *exporting.Service, appConfig *config.Config) *MediationExportService {
	scheduler := gocron.NewScheduler(time.UTC)

	logrus.WithFields(logrus.Fields{
		"cron_schedule":  appConfig.Export.CronSchedule,
		"export_enabled": appConfig.Export.Enabled,
	}).Info("Mediation export scheduler configured")

	return &MediationExportService{
		scheduler: scheduler,
		appConfig: appConfig,
		exporter:  exporter,
	}
}

// Start registers the cron job and runs the scheduler asynchronously. The
// scheduler stops when the context is cancelled.
func (s *MediationExportService) Start(ctx context.Context) error {
	if !s.appConfig.Export.Enabled {
		logrus.Info("Mediation export disabled by configuration")
		return nil
	}

	logrus.WithField("cron", s.appConfig.Export.CronSchedule).Info("Starting mediation export scheduler")

	_, err := s.scheduler.Cron(s.appConfig.Export.CronSchedule).Do(func() {
		s.runExport(utils.Yesterday())
	})
	if err != nil {
		return fmt.Errorf("scheduling mediation export: %w", err)
	}

	s.scheduler.StartAsync()

	go func() {
		<-ctx.Done()
		logrus.Info("Stopping mediation export scheduler")
		s.scheduler.Stop()
	}()

	return nil
}

// runExport executes one pipeline run, skipping when one is already in
// flight.
func (s *MediationExportService) runExport(reportDate time.Time) {
	s.syncMutex.Lock()
	if s.syncRunning {
		s.syncMutex.Unlock()
		logrus.Info("Mediation export already running, skipping")
		return
	}
	s.syncRunning = true
	s.lastSyncStartedAt = time.Now()
	s.syncMutex.Unlock()

	defer func() {
		s.syncMutex.Lock()
		s.syncRunning = false
		s.lastSyncCompletedAt = time.Now()
		s.syncMutex.Unlock()
	}()

	run, err := s.exporter.Run(context.Background(), reportDate)
	if err != nil {
		logrus.WithError(err).Error("Scheduled mediation export failed")
	}

	s.syncMutex.Lock()
	s.lastRun = run
	s.syncMutex.Unlock()
}

// TriggerManualSync starts one run for the given date in the background. It
// reports false when a run is already in flight.
func (s *MediationExportService) TriggerManualSync(reportDate time.Time) bool {
	s.syncMutex.Lock()
	if s.syncRunning {
		s.syncMutex.Unlock()
		logrus.Info("Mediation export already running, ignoring manual trigger")
		return false
	}
	s.syncMutex.Unlock()

	logrus.WithField("report_date", reportDate.Format("2006-01-02")).
		Info("Starting manual mediation export")
	go s.runExport(reportDate)

	return true
}

// GetStatus returns the current scheduler status.
func (s *MediationExportService) GetStatus() map[string]any {
	s.syncMutex.Lock()
	defer s.syncMutex.Unlock()

	status := map[string]any{
		"export_enabled":         s.appConfig.Export.Enabled,
		"export_cron":            s.appConfig.Export.CronSchedule,
		"sync_running":           s.syncRunning,
		"last_sync_started_at":   s.lastSyncStartedAt,
		"last_sync_completed_at": s.lastSyncCompletedAt,
	}

	if s.lastRun != nil {
		status["last_run_id"] = s.lastRun.ID
		status["last_run_state"] = string(s.lastRun.State)
		status["last_run_report_date"] = s.lastRun.ReportDate
	}

	return status
}
