// Package model defines the canonical store records and the assembled panel row.
// All Timestamp fields hold the canonical UTC hour representation produced by
// timeutil.Normalize; the composite primary keys mirror the store's
// (timestamp, entity) uniqueness constraints.
package model

import "time"

// DayAheadPrice is one hourly day-ahead market price for a country.
// EnergyMwh is the matched energy for the hour where the source publishes it.
type DayAheadPrice struct {
	Timestamp   time.Time `gorm:"column:timestamp;primaryKey"`
	Country     string    `gorm:"column:country;primaryKey"`
	PriceEurMwh float64   `gorm:"column:price_eur_mwh"`
	EnergyMwh   *float64  `gorm:"column:energy_mwh"`
}

// TableName specifies the table name for DayAheadPrice.
func (DayAheadPrice) TableName() string {
	return "prices_day_ahead"
}

// Generation is one hourly actual-generation value for a country and technology.
type Generation struct {
	Timestamp    time.Time `gorm:"column:timestamp;primaryKey"`
	Country      string    `gorm:"column:country;primaryKey"`
	Technology   string    `gorm:"column:technology;primaryKey"`
	GenerationMw float64   `gorm:"column:generation_mw"`
}

// TableName specifies the table name for Generation.
func (Generation) TableName() string {
	return "generation"
}

// CrossBorderFlow is one hourly physical flow between two bidding zones.
type CrossBorderFlow struct {
	Timestamp   time.Time `gorm:"column:timestamp;primaryKey"`
	FromCountry string    `gorm:"column:from_country;primaryKey"`
	ToCountry   string    `gorm:"column:to_country;primaryKey"`
	FlowMw      float64   `gorm:"column:flow_mw"`
}

// TableName specifies the table name for CrossBorderFlow.
func (CrossBorderFlow) TableName() string {
	return "cross_border_flows"
}

// WeatherObservation is one hourly weather record for a named location.
// Coordinates are carried per record; metric columns are nullable because the
// archive reports null for hours a station did not observe.
type WeatherObservation struct {
	Timestamp         time.Time `gorm:"column:timestamp;primaryKey"`
	Location          string    `gorm:"column:location;primaryKey"`
	Latitude          float64   `gorm:"column:latitude"`
	Longitude         float64   `gorm:"column:longitude"`
	TemperatureC      *float64  `gorm:"column:temperature_c"`
	WindSpeed10M      *float64  `gorm:"column:wind_speed_10m"`
	WindSpeed100M     *float64  `gorm:"column:wind_speed_100m"`
	WindDirection100M *float64  `gorm:"column:wind_direction_100m"`
	SolarRadiation    *float64  `gorm:"column:solar_radiation"`
	Dni               *float64  `gorm:"column:dni"`
	DiffuseRadiation  *float64  `gorm:"column:diffuse_radiation"`
	CloudCover        *float64  `gorm:"column:cloud_cover"`
}

// TableName specifies the table name for WeatherObservation.
func (WeatherObservation) TableName() string {
	return "weather"
}
