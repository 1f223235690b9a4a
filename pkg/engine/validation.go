package engine

import "fmt"

// Severity classifies how badly a validation error compromises a result
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Machine-readable validation error codes
const (
	CodeTotalYardsMismatch    = "TOTAL_YARDS_MISMATCH"
	CodeCalculationError      = "CALCULATION_ERROR"
	CodeEfficiencyOutOfBounds = "EFFICIENCY_OUT_OF_BOUNDS"
	CodeProbabilitySumError   = "PROBABILITY_SUM_ERROR"
	CodeNegativeWeight        = "NEGATIVE_WEIGHT"
	CodeNonNumericWeight      = "NON_NUMERIC_WEIGHT"
	CodeZeroSumWeights        = "ZERO_SUM_WEIGHTS"
	CodeUnknownCategory       = "UNKNOWN_CATEGORY"
	CodeInsufficientSample    = "INSUFFICIENT_SAMPLE_SIZE"
	CodeInsufficientData      = "INSUFFICIENT_DATA"
	CodeMissingStatistics     = "MISSING_STATISTICS"
	CodeNegativeRSquared      = "NEGATIVE_R_SQUARED"
	CodeConfidenceOutOfBounds = "CONFIDENCE_OUT_OF_BOUNDS"
	CodeScoreOutOfBounds      = "SCORE_OUT_OF_BOUNDS"
)

// Validation warning codes
const (
	CodeExtremeEfficiency    = "EFFICIENCY_EXTREME"
	CodeImplausibleWeight    = "IMPLAUSIBLE_WEIGHT"
	CodeLowDataCompleteness  = "LOW_DATA_COMPLETENESS"
	CodeSmallSample          = "SMALL_SAMPLE"
	CodeLowModelRSquared     = "LOW_MODEL_R_SQUARED"
	CodeNoSignificantMetrics = "NO_SIGNIFICANT_METRICS"
	CodeMulticollinearity    = "POSSIBLE_MULTICOLLINEARITY"
	CodeHighResidualError    = "HIGH_RESIDUAL_ERROR"
	CodeWeakOverallFit       = "WEAK_OVERALL_FIT"
	CodeWeightsNormalized    = "WEIGHTS_NORMALIZED"
	CodeFallbackWeightsUsed  = "FALLBACK_WEIGHTS_USED"
)

// ValidationError is a blocking defect found while checking a calculation.
// It carries a machine-readable code, the originating component and a severity.
type ValidationError struct {
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Component string   `json:"component"`
	Severity  Severity `json:"severity"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s/%s] %s: %s", e.Component, e.Severity, e.Code, e.Message)
}

// ValidationWarning is a non-blocking diagnostic with remediation text
type ValidationWarning struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Remediation string `json:"remediation,omitempty"`
}

// ValidationResult accumulates errors and warnings for one stage of a
// calculation. Components return these rather than raising errors across
// stage boundaries.
type ValidationResult struct {
	Errors          []ValidationError   `json:"errors"`
	Warnings        []ValidationWarning `json:"warnings"`
	Recommendations []string            `json:"recommendations,omitempty"`
}

// NewValidationResult returns an empty, valid result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{}
}

// IsValid reports whether no errors were accumulated
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError records a blocking defect
func (r *ValidationResult) AddError(code, component string, severity Severity, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Component: component,
		Severity:  severity,
	})
}

// AddWarning records a non-blocking diagnostic
func (r *ValidationResult) AddWarning(code, remediation, format string, args ...any) {
	r.Warnings = append(r.Warnings, ValidationWarning{
		Code:        code,
		Message:     fmt.Sprintf(format, args...),
		Remediation: remediation,
	})
}

// AddRecommendation records remediation advice for the overall model
func (r *ValidationResult) AddRecommendation(format string, args ...any) {
	r.Recommendations = append(r.Recommendations, fmt.Sprintf(format, args...))
}

// Merge folds another result into this one
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Recommendations = append(r.Recommendations, other.Recommendations...)
}

// FirstError returns the first accumulated error, or nil
func (r *ValidationResult) FirstError() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}
