package admobclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	admobdomain "github.com/vfg2006/mediation-report-pipeline/infrastructure/integrator/admob/domain"
	"github.com/vfg2006/mediation-report-pipeline/pkg/utils"
)

type generateRequest struct {
	ReportSpec admobdomain.ReportSpec `json:"reportSpec"`
}

// GenerateMediationReport calls accounts/{publisher}/mediationReport:generate
// for a single report date and returns the response body as a lazy chunk
// stream. The caller owns closing the stream.
func (c *AdMobClient) GenerateMediationReport(ctx context.Context, publisherID string, reportDate time.Time) (admobdomain.ChunkStream, error) {
	token, err := c.TokenManager.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	spec := admobdomain.MediationReportSpec(reportDate, c.Cfg.AdMob.AppFilter, c.Cfg.AdMob.AdUnitFilter)

	body, err := json.Marshal(generateRequest{ReportSpec: spec})
	if err != nil {
		return nil, fmt.Errorf("encoding report spec: %w", err)
	}

	url := fmt.Sprintf("%s/accounts/%s/mediationReport:generate", c.Cfg.AdMob.BaseURL, publisherID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating report request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting mediation report: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("mediation report request returned status %d: %s", resp.StatusCode, payload)
	}

	logrus.WithFields(logrus.Fields{
		"publisher_id": publisherID,
		"report_date":  reportDate.Format(time.DateOnly),
	}).Debug("Mediation report stream opened")

	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		logrus.Trace("Report request body:\n", utils.PrettyJson(body))
	}

	return newChunkStream(resp.Body), nil
}
