package entity

// OpenMeteoHourly represents the parallel hourly arrays returned by the
// Open-Meteo archive API. Timestamps are zone-less strings; the API is
// queried with timezone=UTC and the parser treats them accordingly. Metric
// cells are pointers because the archive reports null for hours a station
// did not observe.
type OpenMeteoHourly struct {
	Time                   []string   `json:"time"`
	Temperature2M          []*float64 `json:"temperature_2m"`
	WindSpeed10M           []*float64 `json:"wind_speed_10m"`
	WindSpeed100M          []*float64 `json:"wind_speed_100m"`
	WindDirection100M      []*float64 `json:"wind_direction_100m"`
	ShortwaveRadiation     []*float64 `json:"shortwave_radiation"`
	DirectNormalIrradiance []*float64 `json:"direct_normal_irradiance"`
	DiffuseRadiation       []*float64 `json:"diffuse_radiation"`
	CloudCover             []*float64 `json:"cloud_cover"`
}

// OpenMeteoArchive represents the raw archive payload for one location.
type OpenMeteoArchive struct {
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
	Hourly    OpenMeteoHourly `json:"hourly"`
}
