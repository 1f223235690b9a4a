package engine

import (
	"fmt"
	"math"
	"time"
)

// CategoryContribution is one category's share of a team's expected score
type CategoryContribution struct {
	Category     string  `json:"category"`
	Efficiency   float64 `json:"efficiency"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// TeamBreakdown exposes, per team, the opponent baseline used and every
// category's weighted contribution, for explainability consumers
type TeamBreakdown struct {
	TeamID        string                 `json:"teamId"`
	Baseline      *OpponentBaseline      `json:"baseline,omitempty"`
	Contributions []CategoryContribution `json:"contributions"`
	RawScore      float64                `json:"rawScore"`
}

// ScoreAdjustment records one boundary clamp or differential pull-in with
// its reason
type ScoreAdjustment struct {
	Field  string  `json:"field"`
	Reason string  `json:"reason"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
}

// ModelContext carries the regression quality figures behind the current
// weights, used for confidence and win-probability scaling
type ModelContext struct {
	RSquared           float64 `json:"rSquared"`
	SampleSize         int     `json:"sampleSize"`
	HistoricalAccuracy float64 `json:"historicalAccuracy"`
}

// MatchupPrediction is the assembled output for one matchup
type MatchupPrediction struct {
	Season     string `json:"season"`
	HomeTeamID string `json:"homeTeamId"`
	AwayTeamID string `json:"awayTeamId"`

	HomeExpectedScore float64 `json:"homeExpectedScore"`
	AwayExpectedScore float64 `json:"awayExpectedScore"`
	NetAdvantage      float64 `json:"netAdvantage"`

	Confidence         float64 `json:"confidence"`
	HomeWinProbability float64 `json:"homeWinProbability"`
	AwayWinProbability float64 `json:"awayWinProbability"`

	HomeBreakdown *TeamBreakdown    `json:"homeBreakdown"`
	AwayBreakdown *TeamBreakdown    `json:"awayBreakdown"`
	Adjustments   []ScoreAdjustment `json:"adjustments,omitempty"`

	// Set when the engine had to fall back to last known-good weights
	UsedFallback   bool   `json:"usedFallback,omitempty"`
	FallbackReason string `json:"fallbackReason,omitempty"`

	WeightsVersion int       `json:"weightsVersion"`
	GeneratedAt    time.Time `json:"generatedAt"`
}

// AssemblePrediction applies the current weights to both teams' efficiency
// profiles and produces expected scores, a confidence score and win
// probabilities, with every boundary adjustment recorded.
func AssemblePrediction(weights *PredictionWeights, home, away *EfficiencyProfile, model ModelContext) (*MatchupPrediction, error) {
	if weights == nil || home == nil || away == nil {
		return nil, fmt.Errorf("must pass non-nil weights and both efficiency profiles")
	}

	if model.HistoricalAccuracy <= 0 {
		model.HistoricalAccuracy = Config.DefaultHistoricalAccuracy
	}

	homeBreakdown := applyWeights(home, weights, true)
	awayBreakdown := applyWeights(away, weights, false)

	netAdvantage := homeBreakdown.RawScore - awayBreakdown.RawScore

	prediction := &MatchupPrediction{
		Season:            weights.Season,
		HomeTeamID:        home.TeamID,
		AwayTeamID:        away.TeamID,
		HomeExpectedScore: Config.BaselineExpectedScore + homeBreakdown.RawScore,
		AwayExpectedScore: Config.BaselineExpectedScore + awayBreakdown.RawScore,
		NetAdvantage:      netAdvantage,
		HomeBreakdown:     homeBreakdown,
		AwayBreakdown:     awayBreakdown,
		WeightsVersion:    weights.Version,
		GeneratedAt:       time.Now(),
	}

	prediction.Confidence = calculateConfidence(model, homeBreakdown, awayBreakdown, netAdvantage)

	homeProb := winProbability(prediction.HomeExpectedScore-prediction.AwayExpectedScore,
		prediction.Confidence, model.HistoricalAccuracy)
	prediction.HomeWinProbability = homeProb
	prediction.AwayWinProbability = 1.0 - homeProb

	applyBoundaryValidation(prediction)

	return prediction, nil
}

// applyWeights computes contribution = efficiency × weight per category.
// The home side additionally carries the static home-field edge.
func applyWeights(profile *EfficiencyProfile, weights *PredictionWeights, isHome bool) *TeamBreakdown {
	breakdown := &TeamBreakdown{TeamID: profile.TeamID}

	for _, category := range EfficiencyCategories() {
		efficiency := profile.Value(category)
		weight := weights.Values[category]
		contribution := efficiency * weight
		breakdown.Contributions = append(breakdown.Contributions, CategoryContribution{
			Category:     category,
			Efficiency:   efficiency,
			Weight:       weight,
			Contribution: contribution,
		})
		breakdown.RawScore += contribution
	}

	if isHome {
		weight := weights.Values[CategoryHomeField]
		contribution := Config.HomeFieldAdvantagePoints * weight
		breakdown.Contributions = append(breakdown.Contributions, CategoryContribution{
			Category:     CategoryHomeField,
			Efficiency:   Config.HomeFieldAdvantagePoints,
			Weight:       weight,
			Contribution: contribution,
		})
		breakdown.RawScore += contribution
	}

	return breakdown
}

// calculateConfidence blends model quality (40%), sample-size adequacy (20%),
// prediction stability (20%) and team-strength separation (20%), clamped to
// the configured floor and ceiling.
func calculateConfidence(model ModelContext, home, away *TeamBreakdown, netAdvantage float64) float64 {
	rSquared := model.RSquared
	if rSquared < 0 {
		rSquared = 0
	}
	if rSquared > 1 {
		rSquared = 1
	}

	adequacy := float64(model.SampleSize) / float64(2*Config.MinSampleSize)
	if adequacy > 1 {
		adequacy = 1
	}
	if adequacy < 0 {
		adequacy = 0
	}

	// Stability: the inverse spread of per-category contributions. Wildly
	// uneven contributions mean the score rests on one volatile signal.
	stability := 1.0 / (1.0 + contributionStdDev(home, away)/10.0)

	strengthGap := math.Abs(netAdvantage) / 20.0
	if strengthGap > 1 {
		strengthGap = 1
	}

	confidence := 0.4*rSquared + 0.2*adequacy + 0.2*stability + 0.2*strengthGap

	if confidence < Config.ConfidenceFloor {
		confidence = Config.ConfidenceFloor
	}
	if confidence > Config.ConfidenceCeiling {
		confidence = Config.ConfidenceCeiling
	}
	return confidence
}

// contributionStdDev measures spread across both teams' category contributions
func contributionStdDev(home, away *TeamBreakdown) float64 {
	var values []float64
	for _, c := range home.Contributions {
		values = append(values, c.Contribution)
	}
	for _, c := range away.Contributions {
		values = append(values, c.Contribution)
	}
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))

	return math.Sqrt(variance)
}

// winProbability maps the score differential through a logistic transform
// whose steepness scales with confidence and historical accuracy, then
// regresses the result toward a toss-up in proportion to how unconfident the
// prediction is.
func winProbability(scoreDiff, confidence, historicalAccuracy float64) float64 {
	k := Config.WinProbabilityScale * confidence * historicalAccuracy
	p := 1.0 / (1.0 + math.Exp(-k*scoreDiff))

	// Less-confident predictions regress toward 0.5
	p = 0.5 + (p-0.5)*confidence

	if p < Config.ProbabilityFloor {
		p = Config.ProbabilityFloor
	}
	if p > Config.ProbabilityCeiling {
		p = Config.ProbabilityCeiling
	}
	return p
}

// applyBoundaryValidation clamps both scores into the configured range and
// pulls an excessive differential symmetrically toward the midpoint. Every
// adjustment is recorded with its reason.
func applyBoundaryValidation(p *MatchupPrediction) {
	p.HomeExpectedScore = clampScore(p, "homeExpectedScore", p.HomeExpectedScore)
	p.AwayExpectedScore = clampScore(p, "awayExpectedScore", p.AwayExpectedScore)

	home, away, adjusted := LimitDifferential(p.HomeExpectedScore, p.AwayExpectedScore)
	if adjusted {
		p.Adjustments = append(p.Adjustments,
			ScoreAdjustment{
				Field:  "homeExpectedScore",
				Reason: fmt.Sprintf("point differential pulled to maximum %.0f", Config.MaxPointDifferential),
				Before: p.HomeExpectedScore,
				After:  home,
			},
			ScoreAdjustment{
				Field:  "awayExpectedScore",
				Reason: fmt.Sprintf("point differential pulled to maximum %.0f", Config.MaxPointDifferential),
				Before: p.AwayExpectedScore,
				After:  away,
			})
		p.HomeExpectedScore = home
		p.AwayExpectedScore = away
	}
}

// clampScore clamps one score into [MinScore, MaxScore], recording any change
func clampScore(p *MatchupPrediction, field string, value float64) float64 {
	clamped := ClampScore(value)
	if clamped != value {
		p.Adjustments = append(p.Adjustments, ScoreAdjustment{
			Field:  field,
			Reason: fmt.Sprintf("score clamped into [%.0f, %.0f]", Config.MinScore, Config.MaxScore),
			Before: value,
			After:  clamped,
		})
	}
	return clamped
}

// ClampScore bounds a single expected score to the configured range
func ClampScore(value float64) float64 {
	if value < Config.MinScore {
		return Config.MinScore
	}
	if value > Config.MaxScore {
		return Config.MaxScore
	}
	return value
}

// LimitDifferential pulls both scores symmetrically toward their midpoint
// until the differential equals the configured maximum. Reports whether an
// adjustment was made.
func LimitDifferential(home, away float64) (float64, float64, bool) {
	diff := home - away
	maxDiff := Config.MaxPointDifferential
	if math.Abs(diff) <= maxDiff {
		return home, away, false
	}

	mid := (home + away) / 2.0
	half := maxDiff / 2.0
	if diff > 0 {
		return mid + half, mid - half, true
	}
	return mid - half, mid + half, true
}
