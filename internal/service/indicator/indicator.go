package indicator

import (
	"fmt"
	"math"

	"FinFuse/internal/domain/models"
)

// Supported indicator names for the compute_indicator tool.
const (
	SMA = "sma"
	EMA = "ema"
	RSI = "rsi"
	Vol = "volatility"
)

// Compute evaluates the named indicator over bars (oldest first) with the
// given lookback window and returns the value for the latest bar.
func Compute(name string, bars []models.PriceBar, window int) (float64, error) {
	if window <= 0 {
		return 0, fmt.Errorf("window must be positive, got %d", window)
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	switch name {
	case SMA:
		return sma(closes, window)
	case EMA:
		return ema(closes, window)
	case RSI:
		return rsi(closes, window)
	case Vol:
		return realizedVol(closes, window)
	default:
		return 0, fmt.Errorf("unknown indicator %q", name)
	}
}

func sma(closes []float64, window int) (float64, error) {
	if len(closes) < window {
		return 0, fmt.Errorf("need %d closes, have %d", window, len(closes))
	}
	var sum float64
	for _, c := range closes[len(closes)-window:] {
		sum += c
	}
	return sum / float64(window), nil
}

func ema(closes []float64, window int) (float64, error) {
	if len(closes) < window {
		return 0, fmt.Errorf("need %d closes, have %d", window, len(closes))
	}
	// Seed with the SMA of the first window, then fold forward.
	seed, _ := sma(closes[:window], window)
	k := 2.0 / (float64(window) + 1)
	val := seed
	for _, c := range closes[window:] {
		val = c*k + val*(1-k)
	}
	return val, nil
}

func rsi(closes []float64, window int) (float64, error) {
	if len(closes) < window+1 {
		return 0, fmt.Errorf("need %d closes, have %d", window+1, len(closes))
	}
	var gains, losses float64
	start := len(closes) - window - 1
	for i := start + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	if losses == 0 {
		return 100, nil
	}
	rs := gains / losses
	return 100 - 100/(1+rs), nil
}

// realizedVol is the stddev of log returns over the window.
func realizedVol(closes []float64, window int) (float64, error) {
	if len(closes) < window+1 {
		return 0, fmt.Errorf("need %d closes, have %d", window+1, len(closes))
	}
	rets := make([]float64, 0, window)
	start := len(closes) - window - 1
	for i := start + 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			return 0, fmt.Errorf("non-positive close at index %d", i)
		}
		rets = append(rets, math.Log(closes[i]/closes[i-1]))
	}
	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	var variance float64
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(rets))
	return math.Sqrt(variance), nil
}
