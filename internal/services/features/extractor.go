package features

import "math"

// ComputeLogReturns computes log returns r_t = ln(P_t / P_{t-1}).
// It returns a slice of length len(prices)-1, or nil if insufficient data.
func ComputeLogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		cur := prices[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes the sample standard deviation of the last
// window log returns, scaled by sqrt(periods). Returns 0 with insufficient data.
func RealizedVolatility(logReturns []float64, window int, periods float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	if periods <= 0 {
		periods = 1
	}
	tail := logReturns[len(logReturns)-window:]
	// shift by the first return so identical returns give an exact zero
	shift := tail[0]
	mean := 0.0
	for _, r := range tail {
		mean += r - shift
	}
	mean /= float64(window)
	ss := 0.0
	for _, r := range tail {
		d := r - shift - mean
		ss += d * d
	}
	variance := ss / float64(window-1)
	return math.Sqrt(variance * periods)
}

// WindowVolatility is the realized volatility, in percent, of every return in prices.
func WindowVolatility(prices []float64) float64 {
	r := ComputeLogReturns(prices)
	return RealizedVolatility(r, len(r), 1) * 100
}
