package models

// Requests for the read API. Defined in domain for consistency and reuse.

type TriggersRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type StrategiesRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
}

type BreakersRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

// SettingsRequest updates runtime scanner settings. Omitted fields are left as is.
type SettingsRequest struct {
	Status       string   `json:"status" validate:"omitempty,oneof=running stopped"`
	Pairs        []string `json:"pairs" validate:"omitempty,dive,required,uppercase"`
	VolumeRatio  float64  `json:"volume_ratio" validate:"required_with=PricePercent,gte=0"`
	PricePercent float64  `json:"price_percent" validate:"required_with=VolumeRatio,gte=0"`
}

// Settings converts the request into the partial settings it describes.
func (r SettingsRequest) Settings() ScannerSettings {
	return ScannerSettings{
		Status: ScannerStatus(r.Status),
		Pairs:  r.Pairs,
		Thresholds: Thresholds{
			VolumeRatio:  r.VolumeRatio,
			PricePercent: r.PricePercent,
		},
	}
}
