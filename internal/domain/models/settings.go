package models

type ScannerStatus string

const (
	ScannerRunning ScannerStatus = "running"
	ScannerStopped ScannerStatus = "stopped"
)

type Thresholds struct {
	VolumeRatio  float64 `json:"volume_ratio"`
	PricePercent float64 `json:"price_percent"`
}

// ScannerSettings is the runtime configuration read by the detector.
type ScannerSettings struct {
	Status     ScannerStatus
	Pairs      []string
	Thresholds Thresholds
}

// Monitors reports whether symbol is in the monitored pair list.
func (s ScannerSettings) Monitors(symbol string) bool {
	for _, p := range s.Pairs {
		if p == symbol {
			return true
		}
	}
	return false
}
