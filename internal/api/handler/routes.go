package handler

import (
	"net/http"

	"github.com/vfg2006/mediation-report-pipeline/internal/api/handler/router"
	"github.com/vfg2006/mediation-report-pipeline/internal/scheduler"
	"github.com/vfg2006/mediation-report-pipeline/internal/usecases/exporting"
)

func Healthcheck() []router.Route {
	return []router.Route{
		{
			Path:    "/healthcheck",
			Method:  http.MethodGet,
			Handler: HealthcheckHandler(),
		},
	}
}

func Pipeline(service *scheduler.MediationExportService, runRepo exporting.PipelineRunRepository) []router.Route {
	return []router.Route{
		{
			Path:    "/v1/pipeline/run",
			Method:  http.MethodPost,
			Handler: RunPipeline(service),
		},
		{
			Path:    "/v1/pipeline/status",
			Method:  http.MethodGet,
			Handler: PipelineStatus(service),
		},
		{
			Path:    "/v1/pipeline/runs",
			Method:  http.MethodGet,
			Handler: PipelineRuns(runRepo),
		},
	}
}
