package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"
)

// ArrClient talks to a Radarr or Sonarr instance. It is only used for
// connectivity checks; deletion decisions never depend on organizer data.
type ArrClient struct {
	name   string
	url    string
	apiKey string
	http   *http.Client
}

// ArrStatus is the subset of /api/v3/system/status we report.
type ArrStatus struct {
	AppName string `json:"appName"`
	Version string `json:"version"`
}

func NewArrClient(name, url, apiKey string) *ArrClient {
	return &ArrClient{
		name:   name,
		url:    strings.TrimRight(url, "/"),
		apiKey: apiKey,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

// SystemStatus fetches the organizer status, retrying transient failures.
func (c *ArrClient) SystemStatus(ctx context.Context) (*ArrStatus, error) {
	var status ArrStatus

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/api/v3/system/status", nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
			}
			req.Header.Set("X-Api-Key", c.apiKey)
			req.Header.Set("Accept", "application/json")

			resp, err := c.http.Do(req)
			if err != nil {
				return fmt.Errorf("failed to reach %s: %w", c.name, err)
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusUnauthorized:
				return retry.Unrecoverable(fmt.Errorf("%s rejected the api key", c.name))
			case resp.StatusCode != http.StatusOK:
				return fmt.Errorf("%s returned %s", c.name, resp.Status)
			}

			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to decode %s status: %w", c.name, err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().Err(err).Str("service", c.name).Uint("attempt", n+1).Msg("retrying status check")
		}),
	)
	if err != nil {
		return nil, err
	}

	return &status, nil
}
