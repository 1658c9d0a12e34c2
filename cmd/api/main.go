package main

import (
	"context"
	"flag"
	"os"
	"path"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vfg2006/mediation-report-pipeline/infrastructure/database/postgres"
	"github.com/vfg2006/mediation-report-pipeline/infrastructure/integrator/admob"
	"github.com/vfg2006/mediation-report-pipeline/infrastructure/integrator/admob/admobclient"
	"github.com/vfg2006/mediation-report-pipeline/infrastructure/repository"
	"github.com/vfg2006/mediation-report-pipeline/infrastructure/storage/gcs"
	"github.com/vfg2006/mediation-report-pipeline/infrastructure/warehouse/bigquery"
	"github.com/vfg2006/mediation-report-pipeline/internal/api"
	"github.com/vfg2006/mediation-report-pipeline/internal/config"
	"github.com/vfg2006/mediation-report-pipeline/internal/scheduler"
	"github.com/vfg2006/mediation-report-pipeline/internal/usecases/alerting"
	"github.com/vfg2006/mediation-report-pipeline/internal/usecases/exporting"
	"github.com/vfg2006/mediation-report-pipeline/internal/usecases/reporting"
	"github.com/vfg2006/mediation-report-pipeline/pkg/utils"
)

func main() {
	var (
		once    = flag.Bool("once", false, "run one export for the given date and exit")
		dateStr = flag.String("date", "", "report date for -once, YYYY-MM-DD (default yesterday)")
	)
	flag.Parse()

	configureLogger()

	cfg, err := config.NewConfig()
	if err != nil {
		logrus.Fatal(err)
	}

	logLevel, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		logrus.Warnf("Invalid log level: %s, falling back to 'info'", cfg.App.LogLevel)
		logLevel = logrus.InfoLevel
	}
	logrus.SetLevel(logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgConn := pgconn(ctx, cfg.Database)
	defer pgConn.Close()

	alertEventRepo := repository.NewAlertEventRepository(pgConn)
	pipelineRunRepo := repository.NewPipelineRunRepository(pgConn)

	tokenManager := admobclient.NewTokenManager(cfg)
	admobClient := admobclient.NewClient(cfg, tokenManager)
	admobIntegrator := admob.New(cfg, admobClient)

	if err := admobClient.EnsureValidToken(ctx); err != nil {
		logrus.WithError(err).Warn("AdMob credential check failed, report fetches will not work")
	}

	uploader, err := gcs.NewBucketUploader(ctx, cfg.GCP.Bucket)
	if err != nil {
		logrus.WithError(err).Fatal("Could not create the object storage client")
	}
	defer uploader.Close()

	loader, err := bigquery.NewTableLoader(ctx, cfg.GCP.Project, cfg.GCP.Dataset, cfg.GCP.Table)
	if err != nil {
		logrus.WithError(err).Fatal("Could not create the warehouse client")
	}

	rules, err := alerting.ParseRules(cfg.Alerts.Rules)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid alert rules configuration")
	}

	exportService := exporting.NewService(
		cfg,
		admobIntegrator,
		reporting.NewConsumer(reporting.NewFlattener()),
		reporting.NewCSVSink(cfg.Export.OutputDir),
		uploader,
		loader,
		alerting.NewEvaluator(),
		rules,
		alerting.NewWebhookDispatcher(cfg.Alerts.WebhookURL, 10*time.Second),
		alertEventRepo,
		pipelineRunRepo,
	)

	if *once {
		runOnce(ctx, exportService, *dateStr)
		return
	}

	syncService := scheduler.NewMediationExportService(exportService, cfg)
	if err := syncService.Start(ctx); err != nil {
		logrus.WithError(err).Error("Could not start the export scheduler")
	} else {
		logrus.Info("Export scheduler started")
	}

	server, err := api.New(cfg, syncService, pipelineRunRepo)
	if err != nil {
		logrus.Fatal(err)
	}

	if err := server.Run(ctx); err != nil {
		logrus.Error(err)
	}
}

// runOnce executes a single export run and exits non-zero when it fails.
func runOnce(ctx context.Context, exportService *exporting.Service, dateStr string) {
	reportDate := utils.Yesterday()
	if dateStr != "" {
		parsed, err := utils.ParseDate(dateStr)
		if err != nil {
			logrus.WithError(err).Fatal("Invalid -date, expected YYYY-MM-DD")
		}
		reportDate = *parsed
	}

	run, err := exportService.Run(ctx, reportDate)
	if err != nil {
		logrus.WithError(err).Error("One-shot export failed")
		os.Exit(1)
	}

	logrus.WithFields(logrus.Fields{
		"run_id": run.ID,
		"state":  string(run.State),
		"rows":   run.RowCount,
	}).Info("One-shot export finished")
}

// configureLogger sets the log format
func configureLogger() {
	_, file, _, _ := runtime.Caller(0)
	dir := path.Dir(file)
	os.Chdir(dir)

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
}

// pgconn opens the database connection
func pgconn(ctx context.Context, dbConfig config.Database) *postgres.Connection {
	conn, err := postgres.NewConnection(ctx, dbConfig)
	if err != nil {
		logrus.WithError(err).Fatal("Could not connect to PostgreSQL")
	}

	err = conn.Ping(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("Could not ping PostgreSQL")
	}

	logrus.Info("PostgreSQL connection established")
	return conn
}
