package admob

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vfg2006/mediation-report-pipeline/infrastructure/integrator/admob/admobclient"
	admobdomain "github.com/vfg2006/mediation-report-pipeline/infrastructure/integrator/admob/domain"
	"github.com/vfg2006/mediation-report-pipeline/internal/config"
)

// Fetcher is the report fetch collaborator of the pipeline. It owns
// credentials, publisher resolution and the network call; the pipeline only
// sees a finite chunk stream or a terminal error.
type Fetcher interface {
	FetchMediationReport(ctx context.Context, reportDate time.Time) (admobdomain.ChunkStream, error)
}

type Integrator struct {
	cfg    *config.Config
	client admobclient.Client

	publisherID string
}

func New(cfg *config.Config, client admobclient.Client) *Integrator {
	return &Integrator{
		cfg:    cfg,
		client: client,
	}
}

func (i *Integrator) FetchMediationReport(ctx context.Context, reportDate time.Time) (admobdomain.ChunkStream, error) {
	publisherID, err := i.resolvePublisherID(ctx)
	if err != nil {
		return nil, err
	}

	return i.client.GenerateMediationReport(ctx, publisherID, reportDate)
}

// resolvePublisherID prefers the configured publisher and falls back to the
// first account visible to the credentials. The result is cached for the
// lifetime of the integrator.
func (i *Integrator) resolvePublisherID(ctx context.Context) (string, error) {
	if i.publisherID != "" {
		return i.publisherID, nil
	}

	if configured := i.cfg.AdMob.Publisher(); configured != "" {
		i.publisherID = configured
		return configured, nil
	}

	accounts, err := i.client.ListAccounts(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving publisher account: %w", err)
	}
	if len(accounts) == 0 {
		return "", fmt.Errorf("no admob accounts visible to the configured credentials")
	}

	i.publisherID = accounts[0].PublisherID
	logrus.WithField("publisher_id", i.publisherID).Info("Using first visible AdMob account")

	return i.publisherID, nil
}
