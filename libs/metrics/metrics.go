// Package metrics computes the run-level performance statistics derived
// from an equity curve: period returns, the annualized Sharpe ratio, and
// max drawdown.
//
// Sharpe uses the Bessel-corrected (N-1) sample standard deviation and
// math.Sqrt directly rather than an iterative approximation: at the
// precision this package is held to, a fixed-iteration Newton step on a
// population (N-divisor) variance isn't accurate enough.
package metrics

import "math"

// ReturnsFromEquity converts an equity curve into simple period returns:
// (equity[i] - equity[i-1]) / equity[i-1]. Returns nil for fewer than two
// points.
func ReturnsFromEquity(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		returns[i-1] = (equity[i] - equity[i-1]) / equity[i-1]
	}
	return returns
}

// SharpeRatio computes the annualized Sharpe ratio of a return series using
// the Bessel-corrected (N-1) sample standard deviation. Returns 0 for an
// empty series or a zero-variance series (undefined ratio).
func SharpeRatio(returns []float64, tradingDays int) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	mean, stdDev := meanStdDev(returns)
	if stdDev == 0.0 {
		return 0.0
	}
	return (mean / stdDev) * math.Sqrt(float64(tradingDays))
}

// MaxDrawdown computes the largest peak-to-trough fractional decline over
// an equity curve.
func MaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0.0
	}
	peak := equity[0]
	mdd := 0.0
	for _, x := range equity {
		if x > peak {
			peak = x
		}
		if peak == 0 {
			continue
		}
		dd := (peak - x) / peak
		if dd > mdd {
			mdd = dd
		}
	}
	return mdd
}

// meanStdDev returns the sample mean and Bessel-corrected (ddof=1) sample
// standard deviation of values. stdDev is 0 for fewer than two values.
func meanStdDev(values []float64) (mean, stdDev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	if len(values) < 2 {
		return mean, 0
	}

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)
	return mean, math.Sqrt(variance)
}
