package openmeteo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/mibel/internal/config"
	"github.com/tigerroll/mibel/internal/downloader/openmeteo"
)

const archivePayload = `{
  "latitude": 40.4168,
  "longitude": -3.7038,
  "hourly": {
    "time": ["2022-06-15T00:00", "2022-06-15T01:00"],
    "temperature_2m": [21.4, 20.9],
    "wind_speed_10m": [3.2, 2.8],
    "wind_speed_100m": [6.1, null],
    "wind_direction_100m": [180.0, 190.0],
    "shortwave_radiation": [0.0, 0.0],
    "direct_normal_irradiance": [0.0, 0.0],
    "diffuse_radiation": [0.0, 0.0],
    "cloud_cover": [75.0, 80.0]
  }
}`

func TestFetchArchive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2022-06-15", q.Get("start_date"))
		assert.Equal(t, "2022-06-16", q.Get("end_date"))
		assert.Equal(t, "UTC", q.Get("timezone"))
		assert.Equal(t, "temperature_2m,wind_speed_10m,wind_speed_100m,wind_direction_100m,shortwave_radiation,direct_normal_irradiance,diffuse_radiation,cloud_cover", q.Get("hourly"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(archivePayload))
	}))
	defer server.Close()

	client := openmeteo.NewClient(config.OpenMeteoConfig{
		BaseURL:         server.URL,
		HourlyVariables: []string{
			"temperature_2m", "wind_speed_10m", "wind_speed_100m", "wind_direction_100m",
			"shortwave_radiation", "direct_normal_irradiance", "diffuse_radiation", "cloud_cover",
		},
	})

	loc := config.LocationConfig{Name: "Madrid", Latitude: 40.4168, Longitude: -3.7038}
	start := time.Date(2022, time.June, 15, 0, 0, 0, 0, time.UTC)
	archive, err := client.FetchArchive(context.Background(), loc, start, start.AddDate(0, 0, 1))
	require.NoError(t, err)

	require.Len(t, archive.Hourly.Time, 2)
	assert.Equal(t, "2022-06-15T00:00", archive.Hourly.Time[0])
	require.NotNil(t, archive.Hourly.Temperature2M[0])
	assert.Equal(t, 21.4, *archive.Hourly.Temperature2M[0])
	assert.Nil(t, archive.Hourly.WindSpeed100M[1])
	require.NotNil(t, archive.Hourly.CloudCover[1])
	assert.Equal(t, 80.0, *archive.Hourly.CloudCover[1])
}

func TestFetchArchiveServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "out of quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := openmeteo.NewClient(config.OpenMeteoConfig{BaseURL: server.URL})
	loc := config.LocationConfig{Name: "Madrid"}
	_, err := client.FetchArchive(context.Background(), loc, time.Now(), time.Now())
	assert.Error(t, err)
}
