package engine

import (
	"math"
	"strings"
	"time"
)

// MathematicalVerifier independently recomputes the expected output of each
// recorded calculation step and compares it against what the pipeline
// produced, within a small numeric tolerance. Discrepancies become typed
// errors or warnings; verification never raises.
type MathematicalVerifier struct {
	Tolerance float64
}

// NewMathematicalVerifier returns a verifier with the configured tolerance
func NewMathematicalVerifier() *MathematicalVerifier {
	return &MathematicalVerifier{Tolerance: Config.VerifyTolerance}
}

// VerifyTrace checks every step of a finalized trace and builds the report.
// The score starts at 100 and loses 20 per error and 5 per warning.
func (v *MathematicalVerifier) VerifyTrace(trace *CalculationTrace) *TraceReport {
	combined := NewValidationResult()

	expectedOrder := PipelineStepOrder()
	for i, step := range trace.Steps {
		result := v.VerifyStep(step)
		// Keep any validation the pipeline attached while recording the step
		result.Merge(step.Validation)
		step.Validation = result
		combined.Merge(result)

		if i < len(expectedOrder) && step.Type != expectedOrder[i] {
			combined.AddError(CodeCalculationError, "MathematicalVerifier", SeverityMedium,
				"step %d is %s, expected %s", step.StepNumber, step.Type, expectedOrder[i])
		}
	}

	if trace.FinalPrediction == nil {
		combined.AddWarning(CodeLowDataCompleteness,
			"finalize traces with the assembled prediction before exporting",
			"trace %s completed without a final prediction", trace.ID)
	}

	score := 100 - 20*len(combined.Errors) - 5*len(combined.Warnings)
	if score < 0 {
		score = 0
	}

	return &TraceReport{
		TraceID:         trace.ID,
		IsValid:         combined.IsValid(),
		Score:           score,
		Errors:          combined.Errors,
		Warnings:        combined.Warnings,
		Recommendations: combined.Recommendations,
		Timestamp:       time.Now(),
	}
}

// VerifyStep recomputes one step's expected output by step type
func (v *MathematicalVerifier) VerifyStep(step *CalculationStep) *ValidationResult {
	switch step.Type {
	case StepDataExtraction:
		return v.verifyDataExtraction(step)
	case StepBaseline:
		return v.verifyBaseline(step)
	case StepEfficiency:
		return v.verifyEfficiency(step)
	case StepWeightApplication:
		return v.verifyWeightApplication(step)
	case StepPredictionAssembly:
		return v.verifyAssembly(step)
	default:
		result := NewValidationResult()
		result.AddWarning(CodeCalculationError,
			"register a verification rule for this step type",
			"step %d has unknown type %s", step.StepNumber, step.Type)
		return result
	}
}

// verifyDataExtraction checks yardage reconciliation and data completeness.
// Inputs carry "<side>_passing_yards", "<side>_rushing_yards" and
// "<side>_total_yards"; output carries "<side>_completeness" in [0, 1].
func (v *MathematicalVerifier) verifyDataExtraction(step *CalculationStep) *ValidationResult {
	result := NewValidationResult()

	for _, side := range []string{"home", "away"} {
		total, haveTotal := step.Inputs[side+"_total_yards"]
		passing := step.Inputs[side+"_passing_yards"]
		rushing := step.Inputs[side+"_rushing_yards"]

		if haveTotal && math.Abs(total-(passing+rushing)) > yardsTolerance {
			result.AddError(CodeTotalYardsMismatch, "MathematicalVerifier", SeverityHigh,
				"%s total yards %.1f != passing %.1f + rushing %.1f", side, total, passing, rushing)
		}

		if completeness, ok := step.Output[side+"_completeness"]; ok && completeness < 0.8 {
			result.AddWarning(CodeLowDataCompleteness,
				"backfill the missing statistical categories before trusting this prediction",
				"%s data completeness %.2f is low", side, completeness)
		}
	}

	return result
}

// verifyBaseline recomputes each mean from its sum and count. Output keys
// "<name>_mean" pair with input keys "<name>_sum" and "<name>_count".
func (v *MathematicalVerifier) verifyBaseline(step *CalculationStep) *ValidationResult {
	result := NewValidationResult()

	for key, mean := range step.Output {
		name, ok := strings.CutSuffix(key, "_mean")
		if !ok {
			continue
		}

		sum, haveSum := step.Inputs[name+"_sum"]
		count, haveCount := step.Inputs[name+"_count"]
		if !haveSum || !haveCount {
			continue
		}

		if count <= 0 {
			result.AddError(CodeInsufficientData, "MathematicalVerifier", SeverityCritical,
				"baseline %s averaged over %.0f opponents", name, count)
			continue
		}

		expected := sum / count
		if math.Abs(mean-expected) > v.Tolerance {
			result.AddError(CodeCalculationError, "MathematicalVerifier", SeverityHigh,
				"baseline %s: recorded mean %.4f, recomputed %.4f", name, mean, expected)
		}
	}

	return result
}

// verifyEfficiency recomputes each differential. Output keys "<name>" pair
// with inputs "<name>_raw", "<name>_baseline" and "<name>_defensive" (0/1);
// defensive categories invert the subtraction.
func (v *MathematicalVerifier) verifyEfficiency(step *CalculationStep) *ValidationResult {
	result := NewValidationResult()

	for key, value := range step.Output {
		raw, haveRaw := step.Inputs[key+"_raw"]
		baseline, haveBaseline := step.Inputs[key+"_baseline"]
		if !haveRaw || !haveBaseline {
			continue
		}

		expected := raw - baseline
		if step.Inputs[key+"_defensive"] == 1 {
			expected = baseline - raw
		}

		if math.Abs(value-expected) > v.Tolerance {
			result.AddError(CodeCalculationError, "MathematicalVerifier", SeverityHigh,
				"efficiency %s: recorded %.4f, recomputed %.4f", key, value, expected)
		}

		if math.Abs(value) > Config.EfficiencyBound {
			result.AddError(CodeEfficiencyOutOfBounds, "MathematicalVerifier", SeverityHigh,
				"efficiency %s magnitude %.2f exceeds bound %.0f", key, value, Config.EfficiencyBound)
		} else if math.Abs(value) > Config.ExtremeEfficiencyThreshold {
			result.AddWarning(CodeExtremeEfficiency,
				"verify the underlying statistics for data entry errors",
				"efficiency %s value %.2f is statistically extreme", key, value)
		}
	}

	return result
}

// verifyWeightApplication recomputes contribution = efficiency × weight.
// Output keys "<name>_contribution" pair with inputs "<name>_efficiency"
// and "<name>_weight".
func (v *MathematicalVerifier) verifyWeightApplication(step *CalculationStep) *ValidationResult {
	result := NewValidationResult()

	for key, contribution := range step.Output {
		name, ok := strings.CutSuffix(key, "_contribution")
		if !ok {
			continue
		}

		efficiency, haveEff := step.Inputs[name+"_efficiency"]
		weight, haveWeight := step.Inputs[name+"_weight"]
		if !haveEff || !haveWeight {
			continue
		}

		expected := efficiency * weight
		if math.Abs(contribution-expected) > v.Tolerance {
			result.AddError(CodeCalculationError, "MathematicalVerifier", SeverityHigh,
				"weight application %s: recorded %.4f, recomputed %.4f", name, contribution, expected)
		}
	}

	return result
}

// verifyAssembly checks probability complements, score bounds and the
// confidence clamp on the final assembled prediction
func (v *MathematicalVerifier) verifyAssembly(step *CalculationStep) *ValidationResult {
	result := NewValidationResult()

	homeProb, haveHome := step.Output["home_win_probability"]
	awayProb, haveAway := step.Output["away_win_probability"]
	if haveHome && haveAway {
		if math.Abs(homeProb+awayProb-1.0) > v.Tolerance {
			result.AddError(CodeProbabilitySumError, "MathematicalVerifier", SeverityHigh,
				"win probabilities sum to %.4f, expected 1.0", homeProb+awayProb)
		}
	}

	for _, key := range []string{"home_expected_score", "away_expected_score"} {
		if score, ok := step.Output[key]; ok {
			if score < Config.MinScore-v.Tolerance || score > Config.MaxScore+v.Tolerance {
				result.AddError(CodeScoreOutOfBounds, "MathematicalVerifier", SeverityHigh,
					"%s %.2f escaped bounds [%.0f, %.0f]", key, score, Config.MinScore, Config.MaxScore)
			}
		}
	}

	if confidence, ok := step.Output["confidence"]; ok {
		if confidence < Config.ConfidenceFloor-v.Tolerance || confidence > Config.ConfidenceCeiling+v.Tolerance {
			result.AddError(CodeConfidenceOutOfBounds, "MathematicalVerifier", SeverityHigh,
				"confidence %.3f escaped clamp [%.2f, %.2f]", confidence, Config.ConfidenceFloor, Config.ConfidenceCeiling)
		}
	}

	return result
}
