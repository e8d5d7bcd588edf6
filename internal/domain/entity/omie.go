// Package entity holds the raw source-shaped records as parsed from each
// upstream provider, before normalization into the canonical store models.
package entity

// OmieDailyRow represents one line of an OMIE marginalpdbc wide-format file:
// a trading date, a concept label, and up to 25 hour-slot cells.
// Hour slots are local CET/CEST wall-clock offsets; H25 only appears on the
// 25-hour fall-back day. Cells are nil when the file carries no value.
type OmieDailyRow struct {
	// Date is the trading day as printed in the file ("02/01/2006" or "2006-01-02").
	Date string
	// Concept is the row label (e.g., "PRICE_SP", "PRICE_PT").
	Concept string
	// Hours holds the H1..H25 cells; index 0 is H1.
	Hours [25]*float64
}
