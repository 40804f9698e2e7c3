package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenClient talks to the external session-token service. The request
// carries the match id and the ordered participant display names; the
// response maps each display name to an opaque session credential.
type TokenClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewTokenClient(baseURL string) *TokenClient {
	return &TokenClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

// FetchTokens requests one credential per username. Any non-200 response is
// a finalize failure.
func (c *TokenClient) FetchTokens(ctx context.Context, matchID string, usernames []string) (map[string]string, error) {
	params := url.Values{}
	params.Set("matchId", matchID)
	params.Set("usernames", strings.Join(usernames, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/tokens?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get session tokens: status %d", resp.StatusCode)
	}

	tokens := make(map[string]string)
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	for _, name := range usernames {
		if tokens[name] == "" {
			return nil, fmt.Errorf("token service returned no credential for %q", name)
		}
	}
	return tokens, nil
}
