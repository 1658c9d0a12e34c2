package admobclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Account is one AdMob publisher account visible to the credentials.
type Account struct {
	Name        string `json:"name"` // "accounts/pub-XXXX"
	PublisherID string `json:"publisherId"`
	Currency    string `json:"currencyCode,omitempty"`
	Timezone    string `json:"reportingTimeZone,omitempty"`
}

type listAccountsResponse struct {
	Account []Account `json:"account"`
}

// ListAccounts returns the publisher accounts accessible with the current
// credentials. Used when no publisher ID is configured.
func (c *AdMobClient) ListAccounts(ctx context.Context) ([]Account, error) {
	token, err := c.TokenManager.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/accounts", c.Cfg.AdMob.BaseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating accounts request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting accounts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("accounts request returned status %d: %s", resp.StatusCode, payload)
	}

	var response listAccountsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decoding accounts response: %w", err)
	}

	return response.Account, nil
}
