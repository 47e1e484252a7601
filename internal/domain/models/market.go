package models

import "time"

// RawPriceRow is an unvalidated price record as delivered by an upstream
// feed (CSV export, websocket frame, Kafka message). Numeric fields are
// strings because several sources ship CSV-shaped payloads.
type RawPriceRow struct {
	Instrument string `json:"instrument"`
	Timestamp  string `json:"timestamp"`
	Open       string `json:"open"`
	High       string `json:"high"`
	Low        string `json:"low"`
	Close      string `json:"close"`
	Volume     string `json:"volume"`
}

// PriceBar is a validated OHLCV bar. Timestamp is the bar close in UTC.
// Bars are immutable once stored; corrections supersede by (instrument,
// timestamp) upsert.
type PriceBar struct {
	Instrument string    `json:"instrument"`
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     float64   `json:"volume"`
}

// RowError reports a single rejected row inside an otherwise accepted batch.
type RowError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// PriceIngestReport summarizes one price batch.
type PriceIngestReport struct {
	Committed int        `json:"committed"`
	Rejected  int        `json:"rejected"`
	Errors    []RowError `json:"errors,omitempty"`
}
