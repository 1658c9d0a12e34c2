package handler

import (
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/mediation-report-pipeline/internal/scheduler"
	"github.com/vfg2006/mediation-report-pipeline/internal/usecases/exporting"
	"github.com/vfg2006/mediation-report-pipeline/pkg/apiErrors"
	"github.com/vfg2006/mediation-report-pipeline/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultRunsLimit = 20

// RunPipeline triggers one export run in the background. The optional "date"
// query parameter selects the report date; the default is yesterday.
func RunPipeline(service *scheduler.MediationExportService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logrus.Info("INIT - RunPipeline")

		reportDate := utils.Yesterday()

		if dateStr := r.URL.Query().Get("date"); dateStr != "" {
			parsed, err := utils.ParseDate(dateStr)
			if err != nil {
				apiErrors.WriteError(w, apiErrors.ErrInvalidFormat, "date must be YYYY-MM-DD", nil)
				return
			}
			reportDate = *parsed
		}

		if !service.TriggerManualSync(reportDate) {
			apiErrors.WriteError(w, apiErrors.ErrPipelineRunning, "an export run is already in progress", nil)
			return
		}

		w.WriteHeader(http.StatusAccepted)
		response := map[string]any{
			"message":     "Export run started",
			"report_date": reportDate.Format("2006-01-02"),
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			logrus.WithError(err).Warn("error encoding run response")
		}
	}
}

// PipelineStatus reports the scheduler state and the last run, if any.
func PipelineStatus(service *scheduler.MediationExportService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(service.GetStatus()); err != nil {
			logrus.WithError(err).Warn("error encoding status response")
		}
	}
}

// PipelineRuns lists recent run records, newest first. The optional "limit"
// query parameter caps the page size.
func PipelineRuns(runRepo exporting.PipelineRunRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRunsLimit
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			parsed, err := strconv.Atoi(limitStr)
			if err != nil || parsed <= 0 {
				apiErrors.WriteError(w, apiErrors.ErrInvalidFormat, "limit must be a positive integer", nil)
				return
			}
			limit = parsed
		}

		runs, err := runRepo.ListRecent(r.Context(), limit)
		if err != nil {
			logrus.WithError(err).Error("error listing pipeline runs")
			apiErrors.WriteError(w, apiErrors.ErrDatabaseOperation, "could not list pipeline runs", nil)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(runs); err != nil {
			logrus.WithError(err).Warn("error encoding runs response")
		}
	}
}
