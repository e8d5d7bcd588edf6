package entity

import "time"

// EntsoeSeriesKind distinguishes the two document families parsed from the
// ENTSO-E transparency platform.
type EntsoeSeriesKind string

const (
	// EntsoeSeriesFlow marks points from a Publication_MarketDocument (cross-border physical flows).
	EntsoeSeriesFlow EntsoeSeriesKind = "flow"
	// EntsoeSeriesGeneration marks points from a GL_MarketDocument (actual generation per technology).
	EntsoeSeriesGeneration EntsoeSeriesKind = "generation"
)

// EntsoeSeriesPoint is a single hourly value expanded from an ENTSO-E
// time series period. Timestamps are UTC as published by the platform.
type EntsoeSeriesPoint struct {
	Kind      EntsoeSeriesKind
	Timestamp time.Time
	Value     float64
	// InArea / OutArea carry the flow direction for flow series ("ES", "FR", ...).
	InArea  string
	OutArea string
	// Area and Technology identify generation series (PSR type decoded to a label).
	Area       string
	Technology string
}
