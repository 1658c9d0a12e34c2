package admobclient

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/vfg2006/mediation-report-pipeline/internal/config"
)

const (
	// APIScope is the OAuth scope of the AdMob reporting API.
	APIScope = "https://www.googleapis.com/auth/admob.report"

	googleTokenURL = "https://oauth2.googleapis.com/token"
)

// ErrCredentialRefresh marks a failed refresh-token exchange. The pipeline
// treats it as fatal before any fetch happens.
var ErrCredentialRefresh = errors.New("admob credential refresh failed")

// TokenManager exchanges the stored refresh token for short-lived access
// tokens and caches them until close to expiry.
type TokenManager struct {
	mu     sync.Mutex
	source oauth2.TokenSource
	token  *oauth2.Token
}

func NewTokenManager(cfg *config.Config) *TokenManager {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.AdMob.ClientID,
		ClientSecret: cfg.AdMob.ClientSecret,
		Scopes:       []string{APIScope},
		Endpoint: oauth2.Endpoint{
			TokenURL: googleTokenURL,
		},
	}

	return &TokenManager{
		source: oauthCfg.TokenSource(
			context.Background(),
			&oauth2.Token{RefreshToken: cfg.AdMob.RefreshToken},
		),
	}
}

// AccessToken returns a valid access token, refreshing it first when needed.
func (tm *TokenManager) AccessToken(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.token.Valid() {
		return tm.token.AccessToken, nil
	}

	token, err := tm.source.Token()
	if err != nil {
		return "", errors.Wrap(ErrCredentialRefresh, err.Error())
	}

	logrus.WithFields(logrus.Fields{
		"expires_at": token.Expiry.Format(time.RFC3339),
	}).Debug("AdMob access token refreshed")

	tm.token = token
	return token.AccessToken, nil
}

// EnsureValidToken refreshes the cached token when it is no longer valid.
func (tm *TokenManager) EnsureValidToken(ctx context.Context) error {
	_, err := tm.AccessToken(ctx)
	return err
}
