// Package entsoe fetches cross-border physical flows and actual generation
// per technology from the ENTSO-E transparency platform REST API.
package entsoe

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tigerroll/mibel/internal/config"
	"github.com/tigerroll/mibel/internal/domain/entity"
	"github.com/tigerroll/mibel/internal/timeutil"
	"github.com/tigerroll/mibel/pkg/support/exception"
	"github.com/tigerroll/mibel/pkg/support/logger"
)

const moduleName = "entsoe"

// areaEIC maps bidding zone labels to their EIC area codes.
var areaEIC = map[string]string{
	"ES": "10YES-REE------0",
	"PT": "10YPT-REN------W",
	"FR": "10YFR-RTE------C",
}

// psrTechnologies decodes the PSR type codes used by GL_MarketDocument series.
var psrTechnologies = map[string]string{
	"B01": "biomass",
	"B04": "fossil_gas",
	"B05": "fossil_hard_coal",
	"B10": "hydro_pumped_storage",
	"B11": "hydro_run_of_river",
	"B12": "hydro_reservoir",
	"B14": "nuclear",
	"B16": "solar",
	"B18": "wind_offshore",
	"B19": "wind_onshore",
	"B20": "other",
}

// Client is a thin HTTP client for the ENTSO-E transparency platform.
type Client struct {
	cfg    config.EntsoeConfig
	client *http.Client
}

// NewClient creates a Client from the source configuration.
func NewClient(cfg config.EntsoeConfig) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// marketDocument covers the elements shared by Publication_MarketDocument and
// GL_MarketDocument that this client needs.
type marketDocument struct {
	TimeSeries []timeSeries `xml:"TimeSeries"`
}

type timeSeries struct {
	InDomain      string      `xml:"in_Domain.mRID"`
	OutDomain     string      `xml:"out_Domain.mRID"`
	InBiddingZone string      `xml:"inBiddingZone_Domain.mRID"`
	PsrType       psrType     `xml:"MktPSRType"`
	Periods       []xmlPeriod `xml:"Period"`
}

type psrType struct {
	Code string `xml:"psrType"`
}

type xmlPeriod struct {
	TimeInterval xmlInterval `xml:"timeInterval"`
	Resolution   string      `xml:"resolution"`
	Points       []xmlPoint  `xml:"Point"`
}

type xmlInterval struct {
	Start string `xml:"start"`
}

type xmlPoint struct {
	Position int     `xml:"position"`
	Quantity float64 `xml:"quantity"`
}

// FetchFlows fetches the hourly physical flow series from outArea to inArea
// over [start, end).
func (c *Client) FetchFlows(ctx context.Context, outArea, inArea string, start, end time.Time) ([]entity.EntsoeSeriesPoint, error) {
	outEIC, ok := areaEIC[outArea]
	if !ok {
		return nil, exception.NewPipelineErrorf(moduleName, "no EIC code for area %q", outArea)
	}
	inEIC, ok := areaEIC[inArea]
	if !ok {
		return nil, exception.NewPipelineErrorf(moduleName, "no EIC code for area %q", inArea)
	}

	q := url.Values{}
	q.Set("documentType", "A11") // Aggregated energy data: physical flows
	q.Set("out_Domain", outEIC)
	q.Set("in_Domain", inEIC)

	doc, err := c.fetch(ctx, q, start, end)
	if err != nil {
		return nil, err
	}

	var points []entity.EntsoeSeriesPoint
	for _, series := range doc.TimeSeries {
		expanded, err := expandPeriods(series.Periods)
		if err != nil {
			return nil, err
		}
		for _, p := range expanded {
			points = append(points, entity.EntsoeSeriesPoint{
				Kind:      entity.EntsoeSeriesFlow,
				Timestamp: p.ts,
				Value:     p.value,
				OutArea:   outArea,
				InArea:    inArea,
			})
		}
	}
	logger.Debugf("Fetched %d flow points for %s-%s.", len(points), outArea, inArea)
	return points, nil
}

// FetchGeneration fetches the hourly actual generation per technology for one
// bidding zone over [start, end).
func (c *Client) FetchGeneration(ctx context.Context, area string, start, end time.Time) ([]entity.EntsoeSeriesPoint, error) {
	eic, ok := areaEIC[area]
	if !ok {
		return nil, exception.NewPipelineErrorf(moduleName, "no EIC code for area %q", area)
	}

	q := url.Values{}
	q.Set("documentType", "A75") // Actual generation per type
	q.Set("processType", "A16")  // Realised
	q.Set("in_Domain", eic)

	doc, err := c.fetch(ctx, q, start, end)
	if err != nil {
		return nil, err
	}

	var points []entity.EntsoeSeriesPoint
	for _, series := range doc.TimeSeries {
		technology, ok := psrTechnologies[series.PsrType.Code]
		if !ok {
			logger.Debugf("Skipping generation series with unmapped PSR type %q.", series.PsrType.Code)
			continue
		}
		// Consumption-side series (outBiddingZone only) are not carried.
		if series.InBiddingZone == "" && series.InDomain == "" {
			continue
		}
		expanded, err := expandPeriods(series.Periods)
		if err != nil {
			return nil, err
		}
		for _, p := range expanded {
			points = append(points, entity.EntsoeSeriesPoint{
				Kind:       entity.EntsoeSeriesGeneration,
				Timestamp:  p.ts,
				Value:      p.value,
				Area:       area,
				Technology: technology,
			})
		}
	}
	logger.Debugf("Fetched %d generation points for %s.", len(points), area)
	return points, nil
}

// fetch performs one API call and decodes the response document.
func (c *Client) fetch(ctx context.Context, q url.Values, start, end time.Time) (*marketDocument, error) {
	if c.cfg.APIToken == "" {
		return nil, exception.NewPipelineErrorf(moduleName, "API token is not configured")
	}
	q.Set("securityToken", c.cfg.APIToken)
	q.Set("periodStart", start.UTC().Format("200601021504"))
	q.Set("periodEnd", end.UTC().Format("200601021504"))

	reqURL := c.cfg.BaseURL + "?" + q.Encode()

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
		errMsg := fmt.Sprintf("error response from API: status code %d, body: %s", resp.StatusCode, bodyString)
		isRetryable := resp.StatusCode >= 500
		return nil, exception.NewPipelineError(moduleName, errMsg, errors.New(bodyString), false, isRetryable)
	}

	var doc marketDocument
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to decode API response", err, false, false)
	}
	return &doc, nil
}

type expandedPoint struct {
	ts    time.Time
	value float64
}

// expandPeriods turns period point positions into canonical hourly timestamps.
// Only PT60M resolution is carried; other resolutions are skipped with a warning.
func expandPeriods(periods []xmlPeriod) ([]expandedPoint, error) {
	var out []expandedPoint
	for _, period := range periods {
		if period.Resolution != "PT60M" {
			logger.Warnf("Skipping period with unsupported resolution %q.", period.Resolution)
			continue
		}
		start, err := parseInterval(period.TimeInterval.Start)
		if err != nil {
			return nil, exception.NewPipelineError(moduleName,
				fmt.Sprintf("failed to parse period start %q", period.TimeInterval.Start), err, false, false)
		}
		for _, point := range period.Points {
			if point.Position < 1 {
				continue
			}
			ts := timeutil.Normalize(start.Add(time.Duration(point.Position-1) * time.Hour))
			out = append(out, expandedPoint{ts: ts, value: point.Quantity})
		}
	}
	return out, nil
}

// parseInterval parses the interval start formats the platform emits.
func parseInterval(value string) (time.Time, error) {
	layouts := []string{"2006-01-02T15:04Z", time.RFC3339}
	var t time.Time
	var err error
	for _, layout := range layouts {
		t, err = time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
