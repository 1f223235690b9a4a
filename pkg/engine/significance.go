package engine

import "math"

// SignificanceEstimator converts test statistics into p-values. The engine
// ships a threshold-table approximation; swapping in an exact distribution
// implementation only requires replacing this dependency, not its callers.
type SignificanceEstimator interface {
	// PValueForT approximates the two-tailed p-value of a t statistic
	PValueForT(t float64, df int) float64
	// PValueForF approximates the p-value of an F statistic
	PValueForF(f float64, dfNum, dfDen int) float64
}

// ThresholdSignificance approximates p-values from fixed critical-value
// thresholds rather than exact distribution CDFs. This mirrors the model's
// documented simplification; downstream consumers must not treat these
// p-values as statistically rigorous.
type ThresholdSignificance struct{}

var _ SignificanceEstimator = ThresholdSignificance{}

// PValueForT maps |t| onto the conventional two-tailed critical values for
// moderate degrees of freedom
func (ThresholdSignificance) PValueForT(t float64, df int) float64 {
	at := math.Abs(t)
	switch {
	case at > 3.5:
		return 0.001
	case at > 2.8:
		return 0.01
	case at > 2.0:
		return 0.05
	case at > 1.7:
		return 0.10
	case at > 1.3:
		return 0.20
	default:
		return 0.50
	}
}

// PValueForF maps an F statistic onto fixed thresholds
func (ThresholdSignificance) PValueForF(f float64, dfNum, dfDen int) float64 {
	switch {
	case f > 10.0:
		return 0.001
	case f > 6.0:
		return 0.01
	case f > 4.0:
		return 0.05
	case f > 2.8:
		return 0.10
	default:
		return 0.50
	}
}
