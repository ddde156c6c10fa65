// Package sheets talks to the department's Google Apps Script web app, which
// fronts the duty roster spreadsheet. The script exposes a single JSON
// endpoint guarded by a shared token.
package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// RosterRow is one spreadsheet row as returned by the script.
type RosterRow struct {
	DutyRole  string `json:"dutyRole"`
	Station   string `json:"station"`
	DayOfWeek string `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Notes     string `json:"notes"`
}

// Client fetches roster rows from the Apps Script endpoint.
type Client struct {
	endpointURL string
	apiToken    string
	httpClient  *http.Client
}

// NewClient constructs a client. Timeout bounds the whole request; Apps
// Script cold starts routinely take several seconds.
func NewClient(endpointURL, apiToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpointURL: endpointURL,
		apiToken:    apiToken,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// FetchRoster retrieves every roster row from the spreadsheet.
func (c *Client) FetchRoster(ctx context.Context) ([]RosterRow, error) {
	endpoint, err := url.Parse(c.endpointURL)
	if err != nil {
		return nil, fmt.Errorf("parse sheets endpoint: %w", err)
	}
	query := endpoint.Query()
	query.Set("action", "roster")
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build sheets request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch roster: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sheets endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Rows []RosterRow `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode roster payload: %w", err)
	}
	return payload.Rows, nil
}
