package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSink retains exported reports for inspection
type captureSink struct {
	reports []*TraceReport
}

func (s *captureSink) Export(report *TraceReport) error {
	s.reports = append(s.reports, report)
	return nil
}

// buildConsistentTrace records a small pipeline whose every step recomputes
// cleanly under the verifier
func buildConsistentTrace(trace *CalculationTrace) {
	trace.AddStep(StepDataExtraction, "extract", "totalYards = passing + rushing",
		map[string]float64{
			"home_passing_yards": 280, "home_rushing_yards": 180, "home_total_yards": 460,
			"away_passing_yards": 240, "away_rushing_yards": 160, "away_total_yards": 400,
		},
		map[string]float64{"home_completeness": 1.0, "away_completeness": 1.0})

	trace.AddStep(StepBaseline, "baseline", "mean = sum / count",
		map[string]float64{"points_allowed_sum": 92, "points_allowed_count": 4},
		map[string]float64{"points_allowed_mean": 23})

	trace.AddStep(StepEfficiency, "efficiency", "eff = raw - baseline",
		map[string]float64{
			"home_scoring_raw": 32, "home_scoring_baseline": 23, "home_scoring_defensive": 0,
		},
		map[string]float64{"home_scoring": 9})

	trace.AddStep(StepWeightApplication, "weights", "contribution = eff * weight",
		map[string]float64{"home_scoring_efficiency": 9, "home_scoring_weight": 0.3},
		map[string]float64{"home_scoring_contribution": 2.7})

	trace.AddStep(StepPredictionAssembly, "assemble", "p = logistic(k * diff)",
		map[string]float64{"home_raw_score": 2.7, "away_raw_score": 0},
		map[string]float64{
			"home_expected_score": 26.7, "away_expected_score": 24.0,
			"home_win_probability": 0.58, "away_win_probability": 0.42,
			"confidence": 0.45,
		})
}

func TestTracerLifecycle(t *testing.T) {
	sink := &captureSink{}
	tracer := NewTracer(sink)

	trace := tracer.StartTrace("2024", "psu", "rutgers", "g1")
	require.NotEmpty(t, trace.ID)
	assert.Equal(t, 1, tracer.ActiveCount())

	got, ok := tracer.Get(trace.ID)
	require.True(t, ok)
	assert.Same(t, trace, got)

	buildConsistentTrace(trace)

	report, err := tracer.Complete(trace.ID, &MatchupPrediction{})
	require.NoError(t, err)

	// Finalized traces leave the registry and hit the sink
	assert.Equal(t, 0, tracer.ActiveCount())
	require.Len(t, sink.reports, 1)
	assert.Equal(t, report.TraceID, sink.reports[0].TraceID)

	assert.True(t, report.IsValid)
	assert.Equal(t, 100, report.Score)
}

func TestTracerCompleteUnknownTrace(t *testing.T) {
	tracer := NewTracer(&captureSink{})

	_, err := tracer.Complete("no-such-trace", &MatchupPrediction{})
	assert.Error(t, err)
}

func TestTracerDoubleCompleteFails(t *testing.T) {
	tracer := NewTracer(&captureSink{})
	trace := tracer.StartTrace("2024", "psu", "rutgers", "")
	buildConsistentTrace(trace)

	_, err := tracer.Complete(trace.ID, &MatchupPrediction{})
	require.NoError(t, err)

	_, err = tracer.Complete(trace.ID, &MatchupPrediction{})
	assert.Error(t, err)
}

func TestTracerEvictsStaleTraces(t *testing.T) {
	tracer := NewTracer(&captureSink{})
	stale := tracer.StartTrace("2024", "psu", "rutgers", "")

	// Backdate the registry entry past the TTL
	tracer.mu.Lock()
	tracer.traces[stale.ID].createdAt = time.Now().Add(-time.Duration(Config.TraceTTLMinutes+5) * time.Minute)
	tracer.mu.Unlock()

	tracer.StartTrace("2024", "osu", "mich", "")
	assert.Equal(t, 1, tracer.ActiveCount())

	_, ok := tracer.Get(stale.ID)
	assert.False(t, ok, "stale trace should have been evicted")
}

func TestVerifyStepsRunInPipelineOrder(t *testing.T) {
	trace := &CalculationTrace{ID: "test", FinalPrediction: &MatchupPrediction{}}

	// Baseline recorded before data extraction
	trace.AddStep(StepBaseline, "baseline", "", map[string]float64{}, map[string]float64{})
	trace.AddStep(StepDataExtraction, "extract", "", map[string]float64{}, map[string]float64{})

	report := NewMathematicalVerifier().VerifyTrace(trace)
	assert.False(t, report.IsValid)
}

func TestVerifyTotalYardsMismatch(t *testing.T) {
	trace := &CalculationTrace{ID: "test", FinalPrediction: &MatchupPrediction{}}
	trace.AddStep(StepDataExtraction, "extract", "",
		map[string]float64{
			"home_passing_yards": 280, "home_rushing_yards": 180, "home_total_yards": 500,
		},
		map[string]float64{"home_completeness": 1.0})

	report := NewMathematicalVerifier().VerifyTrace(trace)
	require.False(t, report.IsValid)
	assert.Equal(t, CodeTotalYardsMismatch, report.Errors[0].Code)
}

func TestVerifyBaselineRecomputation(t *testing.T) {
	verifier := NewMathematicalVerifier()

	good := &CalculationStep{Type: StepBaseline,
		Inputs: map[string]float64{"points_sum": 92, "points_count": 4},
		Output: map[string]float64{"points_mean": 23}}
	assert.True(t, verifier.VerifyStep(good).IsValid())

	bad := &CalculationStep{Type: StepBaseline,
		Inputs: map[string]float64{"points_sum": 92, "points_count": 4},
		Output: map[string]float64{"points_mean": 25}}
	result := verifier.VerifyStep(bad)
	require.False(t, result.IsValid())
	assert.Equal(t, CodeCalculationError, result.Errors[0].Code)

	zeroCount := &CalculationStep{Type: StepBaseline,
		Inputs: map[string]float64{"points_sum": 92, "points_count": 0},
		Output: map[string]float64{"points_mean": 23}}
	result = verifier.VerifyStep(zeroCount)
	require.False(t, result.IsValid())
	assert.Equal(t, CodeInsufficientData, result.Errors[0].Code)
}

func TestVerifyEfficiencyBoundsAndSigns(t *testing.T) {
	verifier := NewMathematicalVerifier()

	// Defensive category: expected = baseline - raw
	defensive := &CalculationStep{Type: StepEfficiency,
		Inputs: map[string]float64{
			"home_passing_defense_raw": 220, "home_passing_defense_baseline": 250,
			"home_passing_defense_defensive": 1,
		},
		Output: map[string]float64{"home_passing_defense": 30}}
	assert.True(t, verifier.VerifyStep(defensive).IsValid())

	// Magnitude past the hard bound is an error
	outOfBounds := &CalculationStep{Type: StepEfficiency,
		Inputs: map[string]float64{
			"home_scoring_raw": 80, "home_scoring_baseline": 20, "home_scoring_defensive": 0,
		},
		Output: map[string]float64{"home_scoring": 60}}
	result := verifier.VerifyStep(outOfBounds)
	require.False(t, result.IsValid())
	assert.Equal(t, CodeEfficiencyOutOfBounds, result.Errors[0].Code)

	// Extreme but in-bounds only warns
	extreme := &CalculationStep{Type: StepEfficiency,
		Inputs: map[string]float64{
			"home_scoring_raw": 65, "home_scoring_baseline": 20, "home_scoring_defensive": 0,
		},
		Output: map[string]float64{"home_scoring": 45}}
	result = verifier.VerifyStep(extreme)
	assert.True(t, result.IsValid())
	assert.NotEmpty(t, result.Warnings)
}

func TestVerifyWeightApplication(t *testing.T) {
	verifier := NewMathematicalVerifier()

	bad := &CalculationStep{Type: StepWeightApplication,
		Inputs: map[string]float64{"home_scoring_efficiency": 9, "home_scoring_weight": 0.3},
		Output: map[string]float64{"home_scoring_contribution": 5.0}}

	result := verifier.VerifyStep(bad)
	require.False(t, result.IsValid())
	assert.Equal(t, CodeCalculationError, result.Errors[0].Code)
}

func TestVerifyAssemblyProbabilitySum(t *testing.T) {
	verifier := NewMathematicalVerifier()

	bad := &CalculationStep{Type: StepPredictionAssembly,
		Output: map[string]float64{
			"home_win_probability": 0.7, "away_win_probability": 0.7,
			"home_expected_score": 30, "away_expected_score": 20,
			"confidence": 0.5,
		}}

	result := verifier.VerifyStep(bad)
	require.False(t, result.IsValid())
	assert.Equal(t, CodeProbabilitySumError, result.Errors[0].Code)
}

func TestVerifyAssemblyScoreAndConfidenceBounds(t *testing.T) {
	verifier := NewMathematicalVerifier()

	step := &CalculationStep{Type: StepPredictionAssembly,
		Output: map[string]float64{
			"home_win_probability": 0.6, "away_win_probability": 0.4,
			"home_expected_score": 120, "away_expected_score": 20,
			"confidence": 0.99,
		}}

	result := verifier.VerifyStep(step)
	require.False(t, result.IsValid())

	codes := map[string]bool{}
	for _, e := range result.Errors {
		codes[e.Code] = true
	}
	assert.True(t, codes[CodeScoreOutOfBounds])
	assert.True(t, codes[CodeConfidenceOutOfBounds])
}

func TestVerifyTraceScoreDeductions(t *testing.T) {
	trace := &CalculationTrace{ID: "test", FinalPrediction: &MatchupPrediction{}}

	// One arithmetic error (-20) and one extreme-value warning (-5)
	trace.AddStep(StepDataExtraction, "extract", "",
		map[string]float64{
			"home_passing_yards": 280, "home_rushing_yards": 180, "home_total_yards": 500,
		},
		map[string]float64{"home_completeness": 0.5})

	report := NewMathematicalVerifier().VerifyTrace(trace)
	assert.False(t, report.IsValid)
	assert.Equal(t, 100-20-5, report.Score)
}
