// Package omie fetches and parses OMIE day-ahead marginal price files.
//
// The files are semicolon-separated wide records: a trading date, a concept
// label, and one cell per hour slot H1..H24 (H25 on the 25-hour fall-back
// day). Hour slots are CET/CEST wall-clock offsets.
package omie

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tigerroll/mibel/internal/config"
	"github.com/tigerroll/mibel/internal/domain/entity"
	"github.com/tigerroll/mibel/pkg/support/exception"
	"github.com/tigerroll/mibel/pkg/support/logger"
)

const moduleName = "omie"

// Client is a thin HTTP client for the OMIE file server.
type Client struct {
	cfg    config.OmieConfig
	client *http.Client
}

// NewClient creates a Client from the source configuration.
func NewClient(cfg config.OmieConfig) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchDay downloads and parses the marginalpdbc file for one trading day.
// A 404 means the file is not published (yet); it returns no rows and no error.
func (c *Client) FetchDay(ctx context.Context, day time.Time) ([]entity.OmieDailyRow, error) {
	filename := fmt.Sprintf("marginalpdbc_%s.1", day.Format("20060102"))

	q := url.Values{}
	q.Set("parents[0]", "marginalpdbc")
	q.Set("filename", filename)
	reqURL := c.cfg.BaseURL + "?" + q.Encode()
	logger.Debugf("Fetching OMIE file %s: %s", filename, reqURL)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to create file request", err, false, false)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "file download failed", err, false, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		logger.Warnf("OMIE file %s not published; skipping day %s.", filename, day.Format("2006-01-02"))
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		bodyString := strings.TrimSpace(string(bodyBytes))
		errMsg := fmt.Sprintf("error response for %s: status code %d, body: %s", filename, resp.StatusCode, bodyString)
		isRetryable := resp.StatusCode >= 500
		return nil, exception.NewPipelineError(moduleName, errMsg, errors.New(bodyString), false, isRetryable)
	}

	rows, err := Parse(resp.Body)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to parse "+filename, err, false, false)
	}
	logger.Debugf("Parsed %d wide rows from %s.", len(rows), filename)
	return rows, nil
}

// Parse reads the semicolon-separated wide format. Lines that are not data
// rows (headers, trailing markers like "*") are skipped.
func Parse(r io.Reader) ([]entity.OmieDailyRow, error) {
	var rows []entity.OmieDailyRow

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "*" || strings.HasPrefix(line, "MARGINALPDBC") {
			continue
		}

		fields := strings.Split(line, ";")
		if len(fields) < 3 {
			continue
		}

		row := entity.OmieDailyRow{
			Date:    strings.TrimSpace(fields[0]),
			Concept: strings.TrimSpace(fields[1]),
		}

		// Cells beyond H25 are ignored; trailing separators produce empty fields.
		for i, cell := range fields[2:] {
			if i >= len(row.Hours) {
				break
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			// OMIE prints decimal commas in some exports.
			cell = strings.ReplaceAll(cell, ",", ".")
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				// Non-numeric cells stay nil; the transformer counts the drop.
				continue
			}
			value := v
			row.Hours[i] = &value
		}

		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
