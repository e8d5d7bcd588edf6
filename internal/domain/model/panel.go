package model

// AnalysisRow is one fully rectangular panel row: a canonical hour crossed with
// a country, metric columns left-joined from the canonical store, and derived
// calendar features. Metric fields are pointers so missing hours surface as
// explicit nulls in the parquet artifact instead of dropped rows.
type AnalysisRow struct {
	Timestamp int64  `gorm:"column:timestamp" parquet:"name=timestamp,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
	Country   string `gorm:"column:country" parquet:"name=country,type=BYTE_ARRAY,convertedtype=UTF8"`

	PriceEurMwh       *float64 `gorm:"column:price_eur_mwh" parquet:"name=price_eur_mwh,type=DOUBLE,repetitiontype=OPTIONAL"`
	TotalGenerationMw *float64 `gorm:"column:total_generation_mw" parquet:"name=total_generation_mw,type=DOUBLE,repetitiontype=OPTIONAL"`
	WindGenerationMw  *float64 `gorm:"column:wind_generation_mw" parquet:"name=wind_generation_mw,type=DOUBLE,repetitiontype=OPTIONAL"`
	SolarGenerationMw *float64 `gorm:"column:solar_generation_mw" parquet:"name=solar_generation_mw,type=DOUBLE,repetitiontype=OPTIONAL"`
	NetImportMw       *float64 `gorm:"column:net_import_mw" parquet:"name=net_import_mw,type=DOUBLE,repetitiontype=OPTIONAL"`

	TemperatureC   *float64 `gorm:"column:temperature_c" parquet:"name=temperature_c,type=DOUBLE,repetitiontype=OPTIONAL"`
	WindSpeed100M  *float64 `gorm:"column:wind_speed_100m" parquet:"name=wind_speed_100m,type=DOUBLE,repetitiontype=OPTIONAL"`
	SolarRadiation *float64 `gorm:"column:solar_radiation" parquet:"name=solar_radiation,type=DOUBLE,repetitiontype=OPTIONAL"`
	CloudCover     *float64 `gorm:"column:cloud_cover" parquet:"name=cloud_cover,type=DOUBLE,repetitiontype=OPTIONAL"`

	Hour               int32 `gorm:"column:hour" parquet:"name=hour,type=INT32"`
	DayOfWeek          int32 `gorm:"column:day_of_week" parquet:"name=day_of_week,type=INT32"`
	Month              int32 `gorm:"column:month" parquet:"name=month,type=INT32"`
	Year               int32 `gorm:"column:year" parquet:"name=year,type=INT32"`
	Quarter            int32 `gorm:"column:quarter" parquet:"name=quarter,type=INT32"`
	DayOfYear          int32 `gorm:"column:day_of_year" parquet:"name=day_of_year,type=INT32"`
	IsWeekend          bool  `gorm:"column:is_weekend" parquet:"name=is_weekend,type=BOOLEAN"`
	IsIberianException bool  `gorm:"column:is_iberian_exception" parquet:"name=is_iberian_exception,type=BOOLEAN"`
}
