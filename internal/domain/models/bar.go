package models

import (
	"fmt"
	"math"
	"time"
)

// Bar is one OHLCV interval for a symbol. Bars are immutable once produced.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Range is high minus low.
func (b Bar) Range() float64 { return b.High - b.Low }

// Body is the absolute open-to-close distance.
func (b Bar) Body() float64 { return math.Abs(b.Close - b.Open) }

// UpperWick is the distance from the body top to the high.
func (b Bar) UpperWick() float64 { return b.High - math.Max(b.Open, b.Close) }

// LowerWick is the distance from the body bottom to the low.
func (b Bar) LowerWick() float64 { return math.Min(b.Open, b.Close) - b.Low }

// Bullish reports a close above the open.
func (b Bar) Bullish() bool { return b.Close > b.Open }

// Validate checks that the bar is internally consistent.
func (b Bar) Validate() error {
	if b.Symbol == "" {
		return fmt.Errorf("bar: symbol empty")
	}
	if b.Timestamp.IsZero() || b.Timestamp.Unix() <= 0 {
		return fmt.Errorf("bar %s: timestamp invalid", b.Symbol)
	}
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bar %s: non-finite value", b.Symbol)
		}
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s: negative volume", b.Symbol)
	}
	if b.Low <= 0 || b.High < b.Low {
		return fmt.Errorf("bar %s: invalid high/low %.5f/%.5f", b.Symbol, b.High, b.Low)
	}
	if b.Open < b.Low || b.Open > b.High || b.Close < b.Low || b.Close > b.High {
		return fmt.Errorf("bar %s: open/close outside range", b.Symbol)
	}
	return nil
}
