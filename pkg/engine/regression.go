package engine

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jason-ratigan/college-pickem-prediction-sub001/internal/logger"
)

// Regression errors that make the entire computation meaningless
var (
	ErrInsufficientSample = errors.New("insufficient sample size")
	ErrZeroVariance       = errors.New("zero variance predictor")
)

// Observation pairs one efficiency value with the points actually scored in
// a completed game
type Observation struct {
	X float64 // efficiency value
	Y float64 // actual points scored
}

// MetricObservations maps efficiency categories to their observation sets
type MetricObservations map[string][]Observation

// RegressionResult holds a fitted single-metric ordinary least squares model
type RegressionResult struct {
	Metric          string  `json:"metric"`
	Slope           float64 `json:"slope"`
	Intercept       float64 `json:"intercept"`
	RSquared        float64 `json:"rSquared"`
	PValue          float64 `json:"pValue"`
	StdError        float64 `json:"stdError"`
	ConfidenceLower float64 `json:"confidenceLower"`
	ConfidenceUpper float64 `json:"confidenceUpper"`
	SampleSize      int     `json:"sampleSize"`
	Significant     bool    `json:"significant"`
	DerivedWeight   float64 `json:"derivedWeight"`
}

// MultipleRegressionResult holds the fitted multi-variable model built from
// the statistically significant single-metric predictors
type MultipleRegressionResult struct {
	Metrics          []string  `json:"metrics"`
	Coefficients     []float64 `json:"coefficients"` // [intercept, one per metric]
	RSquared         float64   `json:"rSquared"`
	AdjustedRSquared float64   `json:"adjustedRSquared"`
	ResidualStdError float64   `json:"residualStdError"`
	FStatistic       float64   `json:"fStatistic"`
	FPValue          float64   `json:"fPValue"`
	SampleSize       int       `json:"sampleSize"`
}

// RegressionAnalysis is the full output of a season-level batch fit
type RegressionAnalysis struct {
	Season          string                    `json:"season"`
	Results         []*RegressionResult       `json:"results"`
	Multiple        *MultipleRegressionResult `json:"multiple,omitempty"`
	OverallRSquared float64                   `json:"overallRSquared"`
	SampleSize      int                       `json:"sampleSize"`
	Validation      *ValidationResult         `json:"validation"`
	GeneratedAt     time.Time                 `json:"generatedAt"`
}

// SignificantMetrics returns the names of metrics that passed the
// significance rule, in result order
func (a *RegressionAnalysis) SignificantMetrics() []string {
	var names []string
	for _, r := range a.Results {
		if r.Significant {
			names = append(names, r.Metric)
		}
	}
	return names
}

// FitSimpleRegression fits ordinary least squares on (efficiency, points)
// pairs for one metric. A predictor with zero variance yields
// ErrZeroVariance; the caller skips that metric and continues with the rest.
func FitSimpleRegression(metric string, obs []Observation, est SignificanceEstimator) (*RegressionResult, error) {
	n := len(obs)
	if n < 3 {
		return nil, fmt.Errorf("%w: metric %s has %d observations, need at least 3", ErrInsufficientSample, metric, n)
	}

	var sumX, sumY float64
	for _, o := range obs {
		sumX += o.X
		sumY += o.Y
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var sxx, sxy, syy float64
	for _, o := range obs {
		dx := o.X - meanX
		dy := o.Y - meanY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}

	if sxx == 0 {
		return nil, fmt.Errorf("%w: metric %s", ErrZeroVariance, metric)
	}

	slope := sxy / sxx
	intercept := meanY - slope*meanX

	// R² = 1 - SSres/SStot
	var ssRes float64
	for _, o := range obs {
		fitted := intercept + slope*o.X
		resid := o.Y - fitted
		ssRes += resid * resid
	}

	rSquared := 1.0
	if syy > 0 {
		rSquared = 1.0 - ssRes/syy
	}

	// Standard error of the slope; guard the n == 2 exact-fit case
	var stdError float64
	if n > 2 {
		stdError = math.Sqrt(ssRes/float64(n-2)) / math.Sqrt(sxx)
	}

	tStat := 0.0
	if stdError > 0 {
		tStat = slope / stdError
	} else if slope != 0 {
		// Perfect fit: treat as maximally significant
		tStat = math.Inf(1)
	}

	pValue := est.PValueForT(tStat, n-2)

	z := Config.ConfidenceZ
	result := &RegressionResult{
		Metric:          metric,
		Slope:           slope,
		Intercept:       intercept,
		RSquared:        rSquared,
		PValue:          pValue,
		StdError:        stdError,
		ConfidenceLower: slope - z*stdError,
		ConfidenceUpper: slope + z*stdError,
		SampleSize:      n,
	}

	result.Significant = rSquared > Config.SignificanceRSquared && pValue < Config.SignificancePValue
	result.DerivedWeight = deriveMetricWeight(result)

	return result, nil
}

// deriveMetricWeight converts a fit into a bounded raw weight. Weak
// predictors are down-weighted, strong ones boosted; WeightManager applies
// normalization afterwards.
func deriveMetricWeight(r *RegressionResult) float64 {
	weight := r.RSquared
	if weight < 0 {
		weight = 0
	}
	if !r.Significant {
		weight *= Config.NonSignificantMultiplier
	}
	if r.RSquared > Config.BoostRSquared {
		weight *= Config.BoostMultiplier
	}
	return weight
}

// FitMultipleRegression solves the normal equations beta = (XtX)^-1 XtY via
// Gaussian elimination with partial pivoting, for a design matrix with an
// intercept column plus one column per given metric. Rows must be aligned:
// rows[i] holds the predictor values for observation i.
func FitMultipleRegression(metrics []string, rows [][]float64, ys []float64, est SignificanceEstimator) (*MultipleRegressionResult, error) {
	n := len(ys)
	p := len(metrics)

	if n < Config.MinSampleSize {
		return nil, fmt.Errorf("%w: multiple regression has %d observations, need at least %d",
			ErrInsufficientSample, n, Config.MinSampleSize)
	}
	if p == 0 {
		return nil, fmt.Errorf("no predictors supplied for multiple regression")
	}
	if n <= p+1 {
		return nil, fmt.Errorf("%w: %d observations cannot support %d predictors", ErrInsufficientSample, n, p)
	}

	// Design matrix with intercept column
	design := make([][]float64, n)
	for i := 0; i < n; i++ {
		if len(rows[i]) != p {
			return nil, fmt.Errorf("observation %d has %d predictors, expected %d", i, len(rows[i]), p)
		}
		design[i] = make([]float64, p+1)
		design[i][0] = 1.0
		copy(design[i][1:], rows[i])
	}

	// Normal equations: A = XtX, b = XtY
	cols := p + 1
	a := make([][]float64, cols)
	b := make([]float64, cols)
	for i := 0; i < cols; i++ {
		a[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			var sum float64
			for k := 0; k < n; k++ {
				sum += design[k][i] * design[k][j]
			}
			a[i][j] = sum
		}
		var sum float64
		for k := 0; k < n; k++ {
			sum += design[k][i] * ys[k]
		}
		b[i] = sum
	}

	coefficients := solveGaussian(a, b)

	// Fit quality
	var sumY float64
	for _, y := range ys {
		sumY += y
	}
	meanY := sumY / float64(n)

	var ssRes, ssTot float64
	for i := 0; i < n; i++ {
		var fitted float64
		for j := 0; j < cols; j++ {
			fitted += coefficients[j] * design[i][j]
		}
		resid := ys[i] - fitted
		ssRes += resid * resid
		dy := ys[i] - meanY
		ssTot += dy * dy
	}

	rSquared := 1.0
	if ssTot > 0 {
		rSquared = 1.0 - ssRes/ssTot
	}

	dfDen := n - p - 1
	adjusted := 1.0 - (1.0-rSquared)*float64(n-1)/float64(dfDen)
	residualStdError := math.Sqrt(ssRes / float64(dfDen))

	fStat := 0.0
	if ssRes > 0 {
		fStat = ((ssTot - ssRes) / float64(p)) / (ssRes / float64(dfDen))
	} else {
		fStat = math.Inf(1)
	}

	return &MultipleRegressionResult{
		Metrics:          metrics,
		Coefficients:     coefficients,
		RSquared:         rSquared,
		AdjustedRSquared: adjusted,
		ResidualStdError: residualStdError,
		FStatistic:       fStat,
		FPValue:          est.PValueForF(fStat, p, dfDen),
		SampleSize:       n,
	}, nil
}

// solveGaussian solves Ax = b in place using Gaussian elimination with
// partial pivoting. A pivot below the configured epsilon marks a singular or
// near-singular column; its coefficient is zeroed rather than crashing.
func solveGaussian(a [][]float64, b []float64) []float64 {
	n := len(b)
	singular := make([]bool, n)

	for col := 0; col < n; col++ {
		// Partial pivoting: find the largest magnitude pivot in this column
		pivotRow := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivotRow][col]) {
				pivotRow = row
			}
		}
		if pivotRow != col {
			a[col], a[pivotRow] = a[pivotRow], a[col]
			b[col], b[pivotRow] = b[pivotRow], b[col]
		}

		if math.Abs(a[col][col]) < Config.SingularPivotEpsilon {
			logger.Warn("Singular pivot in normal equations, zeroing coefficient", col)
			singular[col] = true
			continue
		}

		for row := col + 1; row < n; row++ {
			factor := a[row][col] / a[col][col]
			for k := col; k < n; k++ {
				a[row][k] -= factor * a[col][k]
			}
			b[row] -= factor * b[col]
		}
	}

	// Back substitution
	x := make([]float64, n)
	for col := n - 1; col >= 0; col-- {
		if singular[col] {
			x[col] = 0
			continue
		}
		sum := b[col]
		for k := col + 1; k < n; k++ {
			sum -= a[col][k] * x[k]
		}
		x[col] = sum / a[col][col]
	}

	return x
}

// AnalyzeSeason runs the full regression pipeline over prepared observation
// sets: one simple fit per metric, then a multiple regression over the
// significant predictors. Degenerate metrics are skipped with a warning;
// fewer than the minimum observations is a hard error.
func AnalyzeSeason(season string, observations MetricObservations, est SignificanceEstimator) (*RegressionAnalysis, error) {
	if est == nil {
		est = ThresholdSignificance{}
	}

	sampleSize := 0
	for _, obs := range observations {
		if len(obs) > sampleSize {
			sampleSize = len(obs)
		}
	}
	if sampleSize < Config.MinSampleSize {
		return nil, fmt.Errorf("%w: season %s has %d qualifying observations, need at least %d",
			ErrInsufficientSample, season, sampleSize, Config.MinSampleSize)
	}

	analysis := &RegressionAnalysis{
		Season:      season,
		Validation:  NewValidationResult(),
		SampleSize:  sampleSize,
		GeneratedAt: time.Now(),
	}

	// Fit metrics in canonical order so output is deterministic
	for _, metric := range EfficiencyCategories() {
		obs, ok := observations[metric]
		if !ok {
			continue
		}

		result, err := FitSimpleRegression(metric, obs, est)
		if err != nil {
			if errors.Is(err, ErrZeroVariance) {
				analysis.Validation.AddWarning(CodeCalculationError,
					"check that the metric varies across the season's games",
					"metric %s skipped: zero variance predictor", metric)
				continue
			}
			return nil, err
		}

		if result.RSquared < 0 {
			// A negative R² signals a computation defect, not a real result
			analysis.Validation.AddError(CodeNegativeRSquared, "RegressionEngine", SeverityHigh,
				"metric %s produced R² %.4f, rejecting fit", metric, result.RSquared)
			continue
		}

		analysis.Results = append(analysis.Results, result)
	}

	// Multiple regression over the significant predictors
	significant := analysis.SignificantMetrics()
	if len(significant) > 0 {
		rows, ys := buildDesignRows(significant, observations)
		multiple, err := FitMultipleRegression(significant, rows, ys, est)
		if err != nil {
			logger.Warn("Multiple regression failed, keeping single-metric results", err)
			analysis.Validation.AddWarning(CodeCalculationError,
				"inspect the design matrix for collinear or constant predictors",
				"multiple regression failed: %v", err)
		} else {
			analysis.Multiple = multiple
			analysis.OverallRSquared = multiple.RSquared
		}
	}

	if analysis.Multiple == nil {
		// Fall back to the strongest single-metric fit for the overall figure
		for _, r := range analysis.Results {
			if r.RSquared > analysis.OverallRSquared {
				analysis.OverallRSquared = r.RSquared
			}
		}
	}

	validateModel(analysis)

	logger.Info("Season regression complete", season, "overall R²", analysis.OverallRSquared,
		"significant metrics", len(significant))

	return analysis, nil
}

// buildDesignRows aligns observations across metrics by index. Observation
// sets are built per game in a fixed order, so index i refers to the same
// game in every metric's slice; rows are truncated to the shortest set.
func buildDesignRows(metrics []string, observations MetricObservations) ([][]float64, []float64) {
	n := -1
	for _, metric := range metrics {
		if n == -1 || len(observations[metric]) < n {
			n = len(observations[metric])
		}
	}
	if n < 0 {
		n = 0
	}

	rows := make([][]float64, n)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		rows[i] = make([]float64, len(metrics))
		for j, metric := range metrics {
			rows[i][j] = observations[metric][i].X
		}
		ys[i] = observations[metrics[0]][i].Y
	}

	return rows, ys
}

// validateModel runs the non-fatal model diagnostics. Each flag yields a
// warning plus a textual recommendation; none of them aborts the pipeline.
func validateModel(analysis *RegressionAnalysis) {
	v := analysis.Validation

	if analysis.SampleSize < 2*Config.MinSampleSize {
		v.AddWarning(CodeSmallSample,
			"collect more completed games before trusting the fitted weights",
			"sample size %d is small for a stable fit", analysis.SampleSize)
		v.AddRecommendation("Re-run the regression once more games have completed; %d observations is marginal", analysis.SampleSize)
	}

	if analysis.OverallRSquared < Config.LowModelRSquared {
		v.AddWarning(CodeLowModelRSquared,
			"consider additional predictors or longer observation windows",
			"overall R² %.3f is below %.2f", analysis.OverallRSquared, Config.LowModelRSquared)
		v.AddRecommendation("The model explains little scoring variance; predictions should lean on fallback weights")
	}

	significant := analysis.SignificantMetrics()
	if len(significant) == 0 {
		v.AddWarning(CodeNoSignificantMetrics,
			"review metric construction; no efficiency signal cleared the significance rule",
			"no statistically significant predictors found")
		v.AddRecommendation("Keep the current weights; regression found nothing actionable this run")
	}

	// Simplistic multicollinearity heuristic: two significant predictors with
	// coefficient ratio in [0.7, 1.3] likely carry overlapping signal
	var sigResults []*RegressionResult
	for _, r := range analysis.Results {
		if r.Significant {
			sigResults = append(sigResults, r)
		}
	}
	for i := 0; i < len(sigResults); i++ {
		for j := i + 1; j < len(sigResults); j++ {
			si, sj := sigResults[i].Slope, sigResults[j].Slope
			if sj == 0 {
				continue
			}
			ratio := math.Abs(si / sj)
			if ratio >= 0.7 && ratio <= 1.3 {
				v.AddWarning(CodeMulticollinearity,
					"drop one of the correlated predictors or combine them",
					"metrics %s and %s have coefficient ratio %.2f, possible multicollinearity",
					sigResults[i].Metric, sigResults[j].Metric, ratio)
			}
		}
	}

	if analysis.Multiple != nil {
		if analysis.Multiple.ResidualStdError > Config.HighResidualStdError {
			v.AddWarning(CodeHighResidualError,
				"predictions carry wide error bars; widen reported confidence intervals",
				"residual standard error %.2f exceeds %.0f points",
				analysis.Multiple.ResidualStdError, Config.HighResidualStdError)
		}
		if analysis.Multiple.FPValue > Config.OverallFPValue {
			v.AddWarning(CodeWeakOverallFit,
				"the joint model is not significant; treat derived weights cautiously",
				"overall F-test p-value %.3f exceeds %.2f",
				analysis.Multiple.FPValue, Config.OverallFPValue)
		}
	}
}
