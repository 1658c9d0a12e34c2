package exporting

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vfg2006/mediation-report-pipeline/infrastructure/integrator/admob/admobclient"
	admobdomain "github.com/vfg2006/mediation-report-pipeline/infrastructure/integrator/admob/domain"
	"github.com/vfg2006/mediation-report-pipeline/internal/config"
	"github.com/vfg2006/mediation-report-pipeline/internal/domain"
	"github.com/vfg2006/mediation-report-pipeline/internal/usecases/alerting"
	"github.com/vfg2006/mediation-report-pipeline/internal/usecases/exporting/mocks"
	"github.com/vfg2006/mediation-report-pipeline/internal/usecases/reporting"
)

var testDate = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

// fakeStream replays fixed chunks in order.
type fakeStream struct {
	chunks []*admobdomain.ReportChunk
	pos    int
	closed bool
}

func (s *fakeStream) Next(ctx context.Context) (*admobdomain.ReportChunk, error) {
	if s.pos >= len(s.chunks) {
		return nil, io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

func lowCTRStream(t *testing.T) *fakeStream {
	t.Helper()
	raw := `{
		"row": {
			"dimensionValues": {
				"DATE": {"value": "20240115"},
				"APP": {"value": "a", "displayLabel": "My Game"},
				"AD_UNIT": {"value": "u", "displayLabel": "Banner"}
			},
			"metricValues": {
				"CLICKS": {"integerValue": "1"},
				"IMPRESSIONS": {"integerValue": "1000"}
			}
		}
	}`
	var chunk admobdomain.ReportChunk
	require.NoError(t, json.Unmarshal([]byte(raw), &chunk))
	return &fakeStream{chunks: []*admobdomain.ReportChunk{&chunk}}
}

type serviceMocks struct {
	fetcher    *mocks.MockReportFetcher
	uploader   *mocks.MockUploader
	loader     *mocks.MockWarehouseLoader
	dispatcher *mocks.MockAlertDispatcher
	alertRepo  *mocks.MockAlertEventRepository
	runRepo    *mocks.MockPipelineRunRepository
}

func newService(t *testing.T, ctrl *gomock.Controller, rules []domain.AlertRule, suppression bool) (*Service, *serviceMocks) {
	t.Helper()

	m := &serviceMocks{
		fetcher:    mocks.NewMockReportFetcher(ctrl),
		uploader:   mocks.NewMockUploader(ctrl),
		loader:     mocks.NewMockWarehouseLoader(ctrl),
		dispatcher: mocks.NewMockAlertDispatcher(ctrl),
		alertRepo:  mocks.NewMockAlertEventRepository(ctrl),
		runRepo:    mocks.NewMockPipelineRunRepository(ctrl),
	}
	m.runRepo.EXPECT().SaveOrUpdate(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	cfg := &config.Config{}
	cfg.Alerts.CrossRunSuppression = suppression

	service := NewService(
		cfg,
		m.fetcher,
		reporting.NewConsumer(reporting.NewFlattener()),
		reporting.NewCSVSink(t.TempDir()),
		m.uploader,
		m.loader,
		alerting.NewEvaluator(),
		rules,
		m.dispatcher,
		m.alertRepo,
		m.runRepo,
	)
	return service, m
}

func ctrRule() []domain.AlertRule {
	return []domain.AlertRule{
		{Metric: domain.AlertMetricCTR, Op: domain.OpLessThan, Threshold: 0.01},
	}
}

func TestRunHappyPathWithAlert(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service, m := newService(t, ctrl, ctrRule(), true)
	stream := lowCTRStream(t)

	m.fetcher.EXPECT().FetchMediationReport(gomock.Any(), testDate).Return(stream, nil)
	m.uploader.EXPECT().
		Upload(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, localPath string) (string, error) {
			assert.Equal(t, "mediation_20240115.csv", filepath.Base(localPath))
			return "gs://bucket/mediation_20240115.csv", nil
		})
	m.loader.EXPECT().ReplacePartition(gomock.Any(), "gs://bucket/mediation_20240115.csv", testDate).Return(nil)
	m.alertRepo.EXPECT().Exists(gomock.Any(), "2024-01-15", "My Game", "Banner", "ctr").Return(false, nil)
	m.dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Return(nil)
	m.alertRepo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	run, err := service.Run(context.Background(), testDate)
	require.NoError(t, err)

	assert.Equal(t, domain.RunStateDone, run.State)
	assert.Equal(t, "2024-01-15", run.ReportDate)
	assert.Equal(t, 1, run.RowCount)
	assert.Equal(t, 1, run.AlertsSent)
	assert.Zero(t, run.AlertsFailed)
	assert.NotNil(t, run.FinishedAt)
	assert.True(t, stream.closed)
}

func TestRunAuthFailureIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service, m := newService(t, ctrl, nil, false)

	m.fetcher.EXPECT().
		FetchMediationReport(gomock.Any(), testDate).
		Return(nil, admobclient.ErrCredentialRefresh)

	run, err := service.Run(context.Background(), testDate)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, domain.RunStateFailed, run.State)
	assert.NotEmpty(t, run.Error)
	assert.NotNil(t, run.FinishedAt)
}

func TestRunUploadFailureIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service, m := newService(t, ctrl, nil, false)

	m.fetcher.EXPECT().FetchMediationReport(gomock.Any(), testDate).Return(lowCTRStream(t), nil)
	m.uploader.EXPECT().Upload(gomock.Any(), gomock.Any()).Return("", errors.New("bucket not found"))
	// loader must never be reached

	run, err := service.Run(context.Background(), testDate)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrSink)
	assert.Equal(t, domain.RunStateFailed, run.State)
}

func TestRunDispatchFailureStillCompletes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service, m := newService(t, ctrl, ctrRule(), false)

	m.fetcher.EXPECT().FetchMediationReport(gomock.Any(), testDate).Return(lowCTRStream(t), nil)
	m.uploader.EXPECT().Upload(gomock.Any(), gomock.Any()).Return("gs://bucket/x.csv", nil)
	m.loader.EXPECT().ReplacePartition(gomock.Any(), "gs://bucket/x.csv", testDate).Return(nil)
	m.dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Return(errors.New("webhook down"))

	run, err := service.Run(context.Background(), testDate)
	require.NoError(t, err)

	assert.Equal(t, domain.RunStateDone, run.State)
	assert.Zero(t, run.AlertsSent)
	assert.Equal(t, 1, run.AlertsFailed)
}

func TestRunEmptyReportFinishesEarly(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service, m := newService(t, ctrl, ctrRule(), false)

	m.fetcher.EXPECT().
		FetchMediationReport(gomock.Any(), testDate).
		Return(&fakeStream{}, nil)
	// nothing is uploaded, loaded or dispatched

	run, err := service.Run(context.Background(), testDate)
	require.NoError(t, err)

	assert.Equal(t, domain.RunStateDone, run.State)
	assert.Zero(t, run.RowCount)
	assert.Zero(t, run.AlertsSent)
}

func TestRunSuppressesPreviouslyDispatchedAlert(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service, m := newService(t, ctrl, ctrRule(), true)

	m.fetcher.EXPECT().FetchMediationReport(gomock.Any(), testDate).Return(lowCTRStream(t), nil)
	m.uploader.EXPECT().Upload(gomock.Any(), gomock.Any()).Return("gs://bucket/x.csv", nil)
	m.loader.EXPECT().ReplacePartition(gomock.Any(), gomock.Any(), testDate).Return(nil)
	m.alertRepo.EXPECT().Exists(gomock.Any(), "2024-01-15", "My Game", "Banner", "ctr").Return(true, nil)
	// dispatcher must never be called

	run, err := service.Run(context.Background(), testDate)
	require.NoError(t, err)

	assert.Equal(t, domain.RunStateDone, run.State)
	assert.Zero(t, run.AlertsSent)
	assert.Zero(t, run.AlertsFailed)
}

func TestRunSuppressionLookupErrorDispatchesAnyway(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service, m := newService(t, ctrl, ctrRule(), true)

	m.fetcher.EXPECT().FetchMediationReport(gomock.Any(), testDate).Return(lowCTRStream(t), nil)
	m.uploader.EXPECT().Upload(gomock.Any(), gomock.Any()).Return("gs://bucket/x.csv", nil)
	m.loader.EXPECT().ReplacePartition(gomock.Any(), gomock.Any(), testDate).Return(nil)
	m.alertRepo.EXPECT().
		Exists(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(false, errors.New("db down"))
	m.dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Return(nil)
	m.alertRepo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	run, err := service.Run(context.Background(), testDate)
	require.NoError(t, err)
	assert.Equal(t, 1, run.AlertsSent)
}
