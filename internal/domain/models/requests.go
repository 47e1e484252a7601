package models

// Requests for HTTP endpoints. Defined in domain for consistency and reuse.

type AskRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query" validate:"required,min=2,max=2000"`
}

type PriceIngestRequest struct {
	Rows []RawPriceRow `json:"rows" validate:"required,min=1,dive"`
}

type NewsIngestRequest struct {
	Items []RawNewsItem `json:"items" validate:"required,min=1,dive"`
}

type FusionRequest struct {
	Instrument string `query:"instrument" json:"instrument" validate:"required"`
	From       string `query:"from" json:"from" validate:"required,timestr"`
	To         string `query:"to" json:"to" validate:"required,timestr"`
}

type PriceHistoryRequest struct {
	Instrument string `query:"instrument" json:"instrument" validate:"required"`
	From       string `query:"from" json:"from" validate:"required,timestr"`
	To         string `query:"to" json:"to" validate:"required,timestr"`
}

type NewsSearchRequest struct {
	Query      string `query:"q" json:"q" validate:"required,min=2"`
	Instrument string `query:"instrument" json:"instrument"`
	TopK       int    `query:"top_k" json:"top_k" default:"5" validate:"gte=0,lte=100"`
}
