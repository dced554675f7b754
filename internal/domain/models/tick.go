package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidTick is returned when a feed payload cannot be turned into a Tick.
var ErrInvalidTick = errors.New("invalid tick")

// RawTick is a feed payload as delivered by the transport. Price and volume
// arrive as decimal strings.
type RawTick struct {
	Symbol      string `json:"symbol"`
	Price       string `json:"price"`
	QuoteVolume string `json:"quote_volume"`
	Timestamp   int64  `json:"timestamp"` // unix seconds or milliseconds
}

// Tick is a validated market observation.
type Tick struct {
	Symbol      string
	Price       float64
	QuoteVolume float64
	Timestamp   time.Time
}

// ParseTick validates a RawTick and converts it into a Tick.
func ParseTick(raw RawTick) (Tick, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw.Symbol))
	if symbol == "" {
		return Tick{}, fmt.Errorf("%w: empty symbol", ErrInvalidTick)
	}

	price, err := decimal.NewFromString(strings.TrimSpace(raw.Price))
	if err != nil {
		return Tick{}, fmt.Errorf("%w: price %q: %v", ErrInvalidTick, raw.Price, err)
	}
	if !price.IsPositive() {
		return Tick{}, fmt.Errorf("%w: non-positive price %s", ErrInvalidTick, price)
	}

	volume := decimal.Zero
	if v := strings.TrimSpace(raw.QuoteVolume); v != "" {
		volume, err = decimal.NewFromString(v)
		if err != nil {
			return Tick{}, fmt.Errorf("%w: quote volume %q: %v", ErrInvalidTick, raw.QuoteVolume, err)
		}
	}
	if volume.IsNegative() {
		return Tick{}, fmt.Errorf("%w: negative quote volume %s", ErrInvalidTick, volume)
	}

	var ts time.Time
	switch {
	case raw.Timestamp > 1e11:
		ts = time.UnixMilli(raw.Timestamp)
	case raw.Timestamp > 0:
		ts = time.Unix(raw.Timestamp, 0)
	}

	return Tick{
		Symbol:      symbol,
		Price:       price.InexactFloat64(),
		QuoteVolume: volume.InexactFloat64(),
		Timestamp:   ts,
	}, nil
}
