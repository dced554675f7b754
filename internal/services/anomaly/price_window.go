package anomaly

import (
	"math"
	"time"

	"PulseScan/internal/domain/models"
	"PulseScan/pkg/util"
)

const defaultPriceWindow = 5 * time.Minute

// PriceWindow keeps a per-symbol sliding window of recent prices. Change is
// measured from the oldest surviving point, not a regression over the window.
type PriceWindow struct {
	window time.Duration
	now    util.Clock
	points map[string][]models.PricePoint
}

type WindowOption func(*PriceWindow)

func WithWindow(d time.Duration) WindowOption {
	return func(w *PriceWindow) {
		if d > 0 {
			w.window = d
		}
	}
}

func WithWindowClock(now util.Clock) WindowOption {
	return func(w *PriceWindow) {
		if now != nil {
			w.now = now
		}
	}
}

func NewPriceWindow(opts ...WindowOption) *PriceWindow {
	w := &PriceWindow{
		window: defaultPriceWindow,
		now:    time.Now,
		points: make(map[string][]models.PricePoint),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Window returns the configured window length.
func (w *PriceWindow) Window() time.Duration { return w.window }

// Add appends a point stamped now and prunes points older than the window.
func (w *PriceWindow) Add(symbol string, price float64) {
	now := w.now()
	pts := append(w.points[symbol], models.PricePoint{Price: price, ObservedAt: now})
	w.points[symbol] = prune(pts, now, w.window)
}

// Change is the percent change from the oldest point to currentPrice, 0 when empty.
func (w *PriceWindow) Change(symbol string, currentPrice float64) float64 {
	pts := w.points[symbol]
	if len(pts) == 0 {
		return 0
	}
	ref := pts[0].Price
	if ref <= 0 {
		return 0
	}
	return (currentPrice - ref) / ref * 100
}

func (w *PriceWindow) Check(symbol string, currentPrice, thresholdPercent float64) (isTrigger bool, change float64) {
	change = w.Change(symbol, currentPrice)
	return math.Abs(change) >= thresholdPercent, change
}

// Oldest returns the reference point the change is measured from.
func (w *PriceWindow) Oldest(symbol string) (models.PricePoint, bool) {
	pts := w.points[symbol]
	if len(pts) == 0 {
		return models.PricePoint{}, false
	}
	return pts[0], true
}

// Prices returns a copy of the prices currently in the window, oldest first.
func (w *PriceWindow) Prices(symbol string) []float64 {
	pts := w.points[symbol]
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.Price
	}
	return out
}

// prune drops points older than window, reusing the backing array.
func prune(pts []models.PricePoint, now time.Time, window time.Duration) []models.PricePoint {
	i := 0
	for i < len(pts) && now.Sub(pts[i].ObservedAt) > window {
		i++
	}
	if i == 0 {
		return pts
	}
	n := copy(pts, pts[i:])
	return pts[:n]
}
