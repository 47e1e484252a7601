package models

import "time"

// FusionRecord joins the price bars of one (instrument, bucket) with the
// news published inside the bucket window extended by the lag tolerance.
// Records are rebuilt, never patched in place.
type FusionRecord struct {
	Instrument  string     `json:"instrument"`
	BucketStart time.Time  `json:"bucket_start"`
	BucketEnd   time.Time  `json:"bucket_end"`
	Bars        []PriceBar `json:"bars"`
	News        []NewsItem `json:"news"`
	RebuiltAt   time.Time  `json:"rebuilt_at"`
}
