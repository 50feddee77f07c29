package features

import (
	"math"
	"time"

	"MacroGate/internal/domain/models"
)

// TrueRanges computes max(h-l, |h-pc|, |l-pc|) per bar.
// The first bar has no previous close and yields h-l.
func TrueRanges(bars []models.Bar) []float64 {
	if len(bars) == 0 {
		return nil
	}
	out := make([]float64, 0, len(bars))
	for i, b := range bars {
		tr := b.High - b.Low
		if i > 0 {
			pc := bars[i-1].Close
			tr = math.Max(tr, math.Max(math.Abs(b.High-pc), math.Abs(b.Low-pc)))
		}
		out = append(out, tr)
	}
	return out
}

// RollingMean returns the mean of each full window; partial windows are dropped.
func RollingMean(xs []float64, window int) []float64 {
	if window <= 0 || len(xs) < window {
		return nil
	}
	out := make([]float64, 0, len(xs)-window+1)
	sum := 0.0
	for i, x := range xs {
		sum += x
		if i >= window {
			sum -= xs[i-window]
		}
		if i >= window-1 {
			out = append(out, sum/float64(window))
		}
	}
	return out
}

// ATR is the rolling mean of true range over window bars.
func ATR(bars []models.Bar, window int) []float64 {
	return RollingMean(TrueRanges(bars), window)
}

// ATRRatio divides the latest ATR by the mean of the trailing baseline values
// (all values when fewer than baseline exist). A non-empty reason means 1.0
// was returned instead of a computed ratio.
func ATRRatio(bars []models.Bar, window, baseline int) (ratio float64, reason models.DefaultReason) {
	atr := ATR(bars, window)
	if len(atr) == 0 {
		return 1.0, models.DefaultInsufficientATR
	}
	tail := atr
	if baseline > 0 && len(atr) >= baseline {
		tail = atr[len(atr)-baseline:]
	}
	base := mean(tail)
	if base == 0 {
		return 1.0, models.DefaultZeroBaseline
	}
	return atr[len(atr)-1] / base, ""
}

// ImpulsePct is the percent change between the last two closes.
func ImpulsePct(bars []models.Bar) (float64, models.DefaultReason) {
	if len(bars) < 2 {
		return 0, models.DefaultShortSeries
	}
	last := bars[len(bars)-1].Close
	prev := bars[len(bars)-2].Close
	if prev == 0 {
		return 0, models.DefaultZeroPrevious
	}
	return (last - prev) / prev * 100.0, ""
}

// BarAgeMinutes is the elapsed time since the last bar; nil for an empty series.
func BarAgeMinutes(bars []models.Bar, now time.Time) *float64 {
	if len(bars) == 0 {
		return nil
	}
	ts := bars[len(bars)-1].Time
	if ts.IsZero() {
		return nil
	}
	age := now.Sub(ts).Minutes()
	return &age
}

// LastClose returns the final close, if any.
func LastClose(bars []models.Bar) (float64, bool) {
	if len(bars) == 0 {
		return 0, false
	}
	return bars[len(bars)-1].Close, true
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}
