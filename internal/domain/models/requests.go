package models

// ScanRequest parametrizes an on-demand scan triggered over the API.
// Zero values fall back to the configured scan settings.
type ScanRequest struct {
	Sports       []string `json:"sports" validate:"omitempty,dive,min=2"`
	TotalStake   float64  `json:"total_stake" default:"0" validate:"gte=0"`
	MinMargin    float64  `json:"min_margin" default:"0" validate:"gte=0,lte=100"`
	ForceRefresh bool     `json:"force_refresh"`
}

// OpportunitiesQuery filters the GET /api/opportunities listing.
type OpportunitiesQuery struct {
	Sport     string  `query:"sport"`
	MinMargin float64 `query:"min_margin" validate:"gte=0,lte=100"`
	Limit     int     `query:"limit" default:"50" validate:"gte=1,lte=500"`
}
