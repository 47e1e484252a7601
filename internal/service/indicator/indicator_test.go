package indicator

import (
	"math"
	"testing"
	"time"

	"FinFuse/internal/domain/models"
)

func barsFromCloses(closes []float64) []models.PriceBar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.PriceBar, len(closes))
	for i, c := range closes {
		out[i] = models.PriceBar{
			Instrument: "AAPL",
			Timestamp:  start.Add(time.Duration(i) * 24 * time.Hour),
			Open:       c, High: c, Low: c, Close: c, Volume: 1,
		}
	}
	return out
}

func TestSMA(t *testing.T) {
	bars := barsFromCloses([]float64{1, 2, 3, 4, 5})
	got, err := Compute(SMA, bars, 3)
	if err != nil {
		t.Fatalf("sma: %v", err)
	}
	if got != 4 { // (3+4+5)/3
		t.Fatalf("sma=%v want 4", got)
	}

	if _, err := Compute(SMA, bars, 10); err == nil {
		t.Fatalf("expected error for window > data")
	}
	if _, err := Compute(SMA, bars, 0); err == nil {
		t.Fatalf("expected error for zero window")
	}
}

func TestEMA(t *testing.T) {
	// constant series: EMA equals the constant
	bars := barsFromCloses([]float64{5, 5, 5, 5, 5, 5})
	got, err := Compute(EMA, bars, 3)
	if err != nil {
		t.Fatalf("ema: %v", err)
	}
	if math.Abs(got-5) > 1e-9 {
		t.Fatalf("ema=%v want 5", got)
	}

	// rising series: EMA lags the last close but exceeds the SMA seed
	bars = barsFromCloses([]float64{1, 2, 3, 4, 5, 6})
	got, err = Compute(EMA, bars, 3)
	if err != nil {
		t.Fatalf("ema: %v", err)
	}
	if got <= 2 || got >= 6 {
		t.Fatalf("ema=%v out of expected band", got)
	}
}

func TestRSI(t *testing.T) {
	// strictly rising: no losses, RSI pegs at 100
	bars := barsFromCloses([]float64{1, 2, 3, 4, 5, 6, 7, 8})
	got, err := Compute(RSI, bars, 5)
	if err != nil {
		t.Fatalf("rsi: %v", err)
	}
	if got != 100 {
		t.Fatalf("rsi=%v want 100", got)
	}

	// alternating equal up/down moves: RSI 50
	bars = barsFromCloses([]float64{10, 11, 10, 11, 10, 11, 10})
	got, err = Compute(RSI, bars, 6)
	if err != nil {
		t.Fatalf("rsi: %v", err)
	}
	if math.Abs(got-50) > 1e-9 {
		t.Fatalf("rsi=%v want 50", got)
	}
}

func TestRealizedVol(t *testing.T) {
	// constant series has zero volatility
	bars := barsFromCloses([]float64{100, 100, 100, 100, 100})
	got, err := Compute(Vol, bars, 4)
	if err != nil {
		t.Fatalf("vol: %v", err)
	}
	if got != 0 {
		t.Fatalf("vol=%v want 0", got)
	}

	bars = barsFromCloses([]float64{100, 110, 95, 105, 100})
	got, err = Compute(Vol, bars, 4)
	if err != nil {
		t.Fatalf("vol: %v", err)
	}
	if got <= 0 {
		t.Fatalf("vol=%v want positive", got)
	}

	// non-positive closes are rejected
	bars = barsFromCloses([]float64{100, 0, 100})
	if _, err := Compute(Vol, bars, 2); err == nil {
		t.Fatalf("expected error for non-positive close")
	}
}

func TestUnknownIndicator(t *testing.T) {
	bars := barsFromCloses([]float64{1, 2, 3})
	if _, err := Compute("macd", bars, 2); err == nil {
		t.Fatalf("expected unknown indicator error")
	}
}
