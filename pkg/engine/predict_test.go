package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWeights() *PredictionWeights {
	return &PredictionWeights{
		Season:  "2024",
		Version: 1,
		Values:  FallbackWeights(),
	}
}

func testProfile(teamID string, value float64) *EfficiencyProfile {
	values := map[string]float64{}
	for _, category := range EfficiencyCategories() {
		values[category] = value
	}
	return &EfficiencyProfile{TeamID: teamID, Season: "2024", Values: values}
}

func TestClampScoreBounds(t *testing.T) {
	assert.Equal(t, 100.0, ClampScore(105.0))
	assert.Equal(t, 0.0, ClampScore(-5.0))
	assert.Equal(t, 42.0, ClampScore(42.0))
	assert.Equal(t, 0.0, ClampScore(0.0))
	assert.Equal(t, 100.0, ClampScore(100.0))
}

func TestLimitDifferentialPullsSymmetrically(t *testing.T) {
	home, away, adjusted := LimitDifferential(95.0, 10.0)
	require.True(t, adjusted)
	assert.InDelta(t, 87.5, home, 1e-9)
	assert.InDelta(t, 17.5, away, 1e-9)
	assert.InDelta(t, Config.MaxPointDifferential, home-away, 1e-9)
}

func TestLimitDifferentialAwayBlowout(t *testing.T) {
	home, away, adjusted := LimitDifferential(3.0, 80.0)
	require.True(t, adjusted)
	assert.InDelta(t, Config.MaxPointDifferential, away-home, 1e-9)
	// Midpoint is preserved
	assert.InDelta(t, 41.5, (home+away)/2.0, 1e-9)
}

func TestLimitDifferentialWithinBoundsUntouched(t *testing.T) {
	home, away, adjusted := LimitDifferential(35.0, 21.0)
	assert.False(t, adjusted)
	assert.Equal(t, 35.0, home)
	assert.Equal(t, 21.0, away)
}

func TestAssemblePredictionBasics(t *testing.T) {
	prediction, err := AssemblePrediction(testWeights(),
		testProfile("psu", 10.0), testProfile("rutgers", -5.0),
		ModelContext{RSquared: 0.5, SampleSize: 60, HistoricalAccuracy: 0.6})
	require.NoError(t, err)

	// The stronger team projects higher
	assert.Greater(t, prediction.HomeExpectedScore, prediction.AwayExpectedScore)
	assert.Greater(t, prediction.NetAdvantage, 0.0)

	// Scores stay inside the valid range
	assert.GreaterOrEqual(t, prediction.HomeExpectedScore, Config.MinScore)
	assert.LessOrEqual(t, prediction.HomeExpectedScore, Config.MaxScore)
	assert.GreaterOrEqual(t, prediction.AwayExpectedScore, Config.MinScore)
	assert.LessOrEqual(t, prediction.AwayExpectedScore, Config.MaxScore)

	// Probabilities complement each other and respect their clamp
	assert.InDelta(t, 1.0, prediction.HomeWinProbability+prediction.AwayWinProbability, 1e-9)
	assert.GreaterOrEqual(t, prediction.HomeWinProbability, Config.ProbabilityFloor)
	assert.LessOrEqual(t, prediction.HomeWinProbability, Config.ProbabilityCeiling)
	assert.Greater(t, prediction.HomeWinProbability, 0.5)

	// Confidence respects its clamp
	assert.GreaterOrEqual(t, prediction.Confidence, Config.ConfidenceFloor)
	assert.LessOrEqual(t, prediction.Confidence, Config.ConfidenceCeiling)
}

func TestAssemblePredictionHomeFieldContribution(t *testing.T) {
	prediction, err := AssemblePrediction(testWeights(),
		testProfile("psu", 0.0), testProfile("rutgers", 0.0),
		ModelContext{})
	require.NoError(t, err)

	var homeHasEdge, awayHasEdge bool
	for _, c := range prediction.HomeBreakdown.Contributions {
		if c.Category == CategoryHomeField {
			homeHasEdge = true
			assert.InDelta(t, Config.HomeFieldAdvantagePoints*FallbackWeights()[CategoryHomeField],
				c.Contribution, 1e-9)
		}
	}
	for _, c := range prediction.AwayBreakdown.Contributions {
		if c.Category == CategoryHomeField {
			awayHasEdge = true
		}
	}

	assert.True(t, homeHasEdge, "home side carries the home-field contribution")
	assert.False(t, awayHasEdge, "away side never gets a home-field contribution")

	// Identical teams: home field alone tips the balance
	assert.Greater(t, prediction.HomeExpectedScore, prediction.AwayExpectedScore)
	assert.Greater(t, prediction.HomeWinProbability, 0.5)
}

func TestAssemblePredictionContributionArithmetic(t *testing.T) {
	prediction, err := AssemblePrediction(testWeights(),
		testProfile("psu", 12.0), testProfile("rutgers", 4.0),
		ModelContext{RSquared: 0.4, SampleSize: 40})
	require.NoError(t, err)

	var sum float64
	for _, c := range prediction.HomeBreakdown.Contributions {
		assert.InDelta(t, c.Efficiency*c.Weight, c.Contribution, 1e-9, "category %s", c.Category)
		sum += c.Contribution
	}
	assert.InDelta(t, sum, prediction.HomeBreakdown.RawScore, 1e-9)
}

func TestAssemblePredictionRecordsClamps(t *testing.T) {
	// Absurd profile drives the raw score far past the valid maximum
	weights := testWeights()
	weights.Values[CategoryScoring] = 2.0

	prediction, err := AssemblePrediction(weights,
		testProfile("juggernaut", 50.0), testProfile("cupcake", -50.0),
		ModelContext{})
	require.NoError(t, err)

	assert.LessOrEqual(t, prediction.HomeExpectedScore, Config.MaxScore)
	assert.GreaterOrEqual(t, prediction.AwayExpectedScore, Config.MinScore)
	assert.LessOrEqual(t, prediction.HomeExpectedScore-prediction.AwayExpectedScore,
		Config.MaxPointDifferential+1e-9)
	assert.NotEmpty(t, prediction.Adjustments, "boundary adjustments must be recorded")
}

func TestAssemblePredictionNilInputs(t *testing.T) {
	_, err := AssemblePrediction(nil, testProfile("a", 0), testProfile("b", 0), ModelContext{})
	assert.Error(t, err)

	_, err = AssemblePrediction(testWeights(), nil, testProfile("b", 0), ModelContext{})
	assert.Error(t, err)
}

func TestConfidenceGrowsWithModelQuality(t *testing.T) {
	home := testProfile("psu", 5.0)
	away := testProfile("rutgers", -5.0)

	weak, err := AssemblePrediction(testWeights(), home, away,
		ModelContext{RSquared: 0.05, SampleSize: 10})
	require.NoError(t, err)

	strong, err := AssemblePrediction(testWeights(), home, away,
		ModelContext{RSquared: 0.85, SampleSize: 100})
	require.NoError(t, err)

	assert.Greater(t, strong.Confidence, weak.Confidence)
}
