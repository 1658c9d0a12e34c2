package admobclient

import (
	"context"
	"net/http"
	"time"

	admobdomain "github.com/vfg2006/mediation-report-pipeline/infrastructure/integrator/admob/domain"
	"github.com/vfg2006/mediation-report-pipeline/internal/config"
)

type Client interface {
	GenerateMediationReport(ctx context.Context, publisherID string, reportDate time.Time) (admobdomain.ChunkStream, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	EnsureValidToken(ctx context.Context) error
}

type AdMobClient struct {
	Cfg          *config.Config
	TokenManager *TokenManager
	httpClient   *http.Client
}

func NewClient(cfg *config.Config, tokenManager *TokenManager) Client {
	return &AdMobClient{
		Cfg:          cfg,
		TokenManager: tokenManager,
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
	}
}

// EnsureValidToken refreshes the access token when the cached one expired.
func (c *AdMobClient) EnsureValidToken(ctx context.Context) error {
	return c.TokenManager.EnsureValidToken(ctx)
}
