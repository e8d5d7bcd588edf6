// Package openmeteo fetches hourly weather history from the Open-Meteo archive API.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tigerroll/mibel/internal/config"
	"github.com/tigerroll/mibel/internal/domain/entity"
	"github.com/tigerroll/mibel/pkg/support/exception"
	"github.com/tigerroll/mibel/pkg/support/logger"
)

const moduleName = "openmeteo"

// Client is a thin HTTP client for the Open-Meteo archive API.
type Client struct {
	cfg    config.OpenMeteoConfig
	client *http.Client
}

// NewClient creates a Client from the source configuration.
func NewClient(cfg config.OpenMeteoConfig) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchArchive fetches the hourly archive for one location over the inclusive
// [startDate, endDate] day range. The API is queried with timezone=UTC so the
// returned zone-less timestamps are unambiguous.
func (c *Client) FetchArchive(ctx context.Context, loc config.LocationConfig, startDate, endDate time.Time) (*entity.OpenMeteoArchive, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%f", loc.Latitude))
	q.Set("longitude", fmt.Sprintf("%f", loc.Longitude))
	q.Set("start_date", startDate.Format("2006-01-02"))
	q.Set("end_date", endDate.Format("2006-01-02"))
	q.Set("hourly", strings.Join(c.cfg.HourlyVariables, ","))
	q.Set("timezone", "UTC")

	reqURL := c.cfg.BaseURL + "?" + q.Encode()
	logger.Debugf("Fetching Open-Meteo archive for %s: %s", loc.Name, reqURL)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to create API request", err, false, false)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "API call failed", err, false, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		bodyString := strings.TrimSpace(string(bodyBytes))
		errMsg := fmt.Sprintf("error response from API for %s: status code %d, body: %s", loc.Name, resp.StatusCode, bodyString)
		isRetryable := resp.StatusCode >= 500
		return nil, exception.NewPipelineError(moduleName, errMsg, errors.New(bodyString), false, isRetryable)
	}

	var archive entity.OpenMeteoArchive
	if err := json.NewDecoder(resp.Body).Decode(&archive); err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to decode API response", err, false, false)
	}

	logger.Debugf("Fetched %d hourly weather records for %s.", len(archive.Hourly.Time), loc.Name)
	return &archive, nil
}
