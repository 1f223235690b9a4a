package engine

import (
	"errors"
	"fmt"

	"github.com/jason-ratigan/college-pickem-prediction-sub001/internal/logger"
)

// Engine wires the calculation pipeline together: baselines and efficiency
// signals feed the season-level regression batch, regression output feeds
// the weight store, and per-matchup predictions consume the persisted
// weights plus two efficiency profiles. Every stage can be traced and
// independently re-verified.
type Engine struct {
	Weights      *WeightManager
	Tracer       *Tracer
	Significance SignificanceEstimator
}

// NewEngine returns an engine with the default collaborators
func NewEngine() *Engine {
	return &Engine{
		Weights:      NewWeightManager(),
		Tracer:       NewTracer(nil),
		Significance: ThresholdSignificance{},
	}
}

// PerformRegressionAnalysis runs the season-level batch fit and, when it
// succeeds, rolls the derived weights into the store. The regression holds
// no lock over the weight store while fitting; only the final append is
// serialized per season.
func (e *Engine) PerformRegressionAnalysis(season string, actorID string) (*RegressionAnalysis, error) {
	season, err := ParseSeason(season)
	if err != nil {
		return nil, err
	}

	observations, err := BuildSeasonObservations(season)
	if err != nil {
		return nil, err
	}

	analysis, err := AnalyzeSeason(season, observations, e.Significance)
	if err != nil {
		return nil, err
	}

	if _, _, err := e.Weights.UpdateFromRegression(season, analysis, actorID); err != nil {
		if errors.Is(err, ErrWeightsRejected) {
			// The analysis stands on its own; the store keeps the previous weights
			logger.Warn("Regression-derived weights rejected, keeping previous set", season, err)
			analysis.Validation.AddWarning(CodeFallbackWeightsUsed,
				"inspect the rejected weight set in the regression results",
				"derived weights rejected; season %s keeps its previous weights", season)
			return analysis, nil
		}
		return nil, err
	}

	return analysis, nil
}

// matchupInputs gathers everything a prediction needs for one matchup
type matchupInputs struct {
	homeStats    *TeamGameStats
	awayStats    *TeamGameStats
	homeBaseline *OpponentBaseline
	awayBaseline *OpponentBaseline
	weights      *PredictionWeights
	model        ModelContext
	fallback     bool
	fallbackWhy  string
}

// loadMatchupInputs loads aggregates, opponent baselines and the current
// weights for one matchup. A missing regression history falls back to the
// last known-good (or fallback) weights, explicitly flagged.
func (e *Engine) loadMatchupInputs(season, homeTeamID, awayTeamID string) (*matchupInputs, error) {
	homeStats, err := LoadSeasonAggregate(homeTeamID, season)
	if err != nil {
		return nil, err
	}
	awayStats, err := LoadSeasonAggregate(awayTeamID, season)
	if err != nil {
		return nil, err
	}

	homeOpponents, err := LoadOpponentAggregates(homeTeamID, season)
	if err != nil {
		return nil, err
	}
	awayOpponents, err := LoadOpponentAggregates(awayTeamID, season)
	if err != nil {
		return nil, err
	}

	homeBaseline, err := CalculateOpponentBaseline(homeTeamID, season, homeOpponents)
	if err != nil {
		return nil, err
	}
	awayBaseline, err := CalculateOpponentBaseline(awayTeamID, season, awayOpponents)
	if err != nil {
		return nil, err
	}

	weights, err := e.Weights.GetCurrentWeights(season)
	if err != nil {
		return nil, err
	}

	inputs := &matchupInputs{
		homeStats:    homeStats,
		awayStats:    awayStats,
		homeBaseline: homeBaseline,
		awayBaseline: awayBaseline,
		weights:      weights,
		model: ModelContext{
			HistoricalAccuracy: HistoricalAccuracy(season),
		},
	}

	history, err := e.Weights.GetWeightHistory(season, 1)
	if err == nil && len(history) > 0 && !history[0].Manual && history[0].SampleSize > 0 {
		inputs.model.RSquared = history[0].RSquared
		inputs.model.SampleSize = history[0].SampleSize
	} else {
		inputs.fallback = true
		inputs.fallbackWhy = "no regression-derived weights available; using last known-good set"
	}

	return inputs, nil
}

// Predict produces the assembled prediction for one matchup, tracing every
// pipeline stage and verifying the trace before returning.
func (e *Engine) Predict(season, homeTeamID, awayTeamID string) (*MatchupPrediction, *TraceReport, error) {
	season, err := ParseSeason(season)
	if err != nil {
		return nil, nil, err
	}

	inputs, err := e.loadMatchupInputs(season, homeTeamID, awayTeamID)
	if err != nil {
		return nil, nil, err
	}

	trace := e.Tracer.StartTrace(season, homeTeamID, awayTeamID, "")

	// Stage 1: data extraction
	trace.AddStep(StepDataExtraction,
		"extract raw season statistics for both teams",
		"totalYards = passingYards + rushingYards",
		map[string]float64{
			"home_passing_yards": inputs.homeStats.PassingYards,
			"home_rushing_yards": inputs.homeStats.RushingYards,
			"home_total_yards":   inputs.homeStats.TotalYards,
			"away_passing_yards": inputs.awayStats.PassingYards,
			"away_rushing_yards": inputs.awayStats.RushingYards,
			"away_total_yards":   inputs.awayStats.TotalYards,
		},
		map[string]float64{
			"home_completeness": statsCompleteness(inputs.homeStats),
			"away_completeness": statsCompleteness(inputs.awayStats),
		})

	// Stage 2: opponent baselines
	trace.AddStep(StepBaseline,
		"average what each team's opponents typically allow",
		"baseline = sum(category) / opponentCount",
		map[string]float64{
			"home_points_allowed_sum":   inputs.homeBaseline.PointsAllowed * float64(inputs.homeBaseline.OpponentCount),
			"home_points_allowed_count": float64(inputs.homeBaseline.OpponentCount),
			"away_points_allowed_sum":   inputs.awayBaseline.PointsAllowed * float64(inputs.awayBaseline.OpponentCount),
			"away_points_allowed_count": float64(inputs.awayBaseline.OpponentCount),
		},
		map[string]float64{
			"home_points_allowed_mean": inputs.homeBaseline.PointsAllowed,
			"away_points_allowed_mean": inputs.awayBaseline.PointsAllowed,
		})

	// Stage 3: efficiency differentials
	homeProfile, homeValidation, err := CalculateEfficiency(inputs.homeStats, inputs.awayBaseline)
	if err != nil {
		return nil, nil, err
	}
	awayProfile, awayValidation, err := CalculateEfficiency(inputs.awayStats, inputs.homeBaseline)
	if err != nil {
		return nil, nil, err
	}

	effInputs := map[string]float64{}
	effOutputs := map[string]float64{}
	recordEfficiency(effInputs, effOutputs, "home", homeProfile, inputs.homeStats, inputs.awayBaseline)
	recordEfficiency(effInputs, effOutputs, "away", awayProfile, inputs.awayStats, inputs.homeBaseline)
	effStep := trace.AddStep(StepEfficiency,
		"compute opponent-relative efficiency per category",
		"efficiency = raw - baseline (defense: baseline - rawAllowed)",
		effInputs, effOutputs)
	effStep.Validation = NewValidationResult()
	effStep.Validation.Merge(homeValidation)
	effStep.Validation.Merge(awayValidation)

	// Stage 4: weight application
	prediction, err := AssemblePrediction(inputs.weights, homeProfile, awayProfile, inputs.model)
	if err != nil {
		return nil, nil, err
	}
	if inputs.fallback {
		prediction.UsedFallback = true
		prediction.FallbackReason = inputs.fallbackWhy
	}

	waInputs := map[string]float64{}
	waOutputs := map[string]float64{}
	recordContributions(waInputs, waOutputs, "home", prediction.HomeBreakdown)
	recordContributions(waInputs, waOutputs, "away", prediction.AwayBreakdown)
	trace.AddStep(StepWeightApplication,
		"apply current weights to each efficiency value",
		"contribution = efficiency * weight",
		waInputs, waOutputs)

	// Stage 5: prediction assembly
	trace.AddStep(StepPredictionAssembly,
		"compose expected scores, confidence and win probabilities",
		"score = baseline + sum(contributions); p = logistic(k * diff)",
		map[string]float64{
			"home_raw_score":  prediction.HomeBreakdown.RawScore,
			"away_raw_score":  prediction.AwayBreakdown.RawScore,
			"model_r_squared": inputs.model.RSquared,
		},
		map[string]float64{
			"home_expected_score":  prediction.HomeExpectedScore,
			"away_expected_score":  prediction.AwayExpectedScore,
			"home_win_probability": prediction.HomeWinProbability,
			"away_win_probability": prediction.AwayWinProbability,
			"confidence":           prediction.Confidence,
		})

	report, err := e.Tracer.Complete(trace.ID, prediction)
	if err != nil {
		return nil, nil, err
	}

	return prediction, report, nil
}

// TraceAndValidate runs a traced prediction and returns the verification
// report for an external validation/reporting dashboard
func (e *Engine) TraceAndValidate(season, homeTeamID, awayTeamID string) (*TraceReport, error) {
	_, report, err := e.Predict(season, homeTeamID, awayTeamID)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// statsCompleteness is the fraction of required statistical categories
// populated on a row
func statsCompleteness(ts *TeamGameStats) float64 {
	fields := []float64{
		ts.PassingYards, ts.PassingYardsAllowed,
		ts.RushingYards, ts.RushingYardsAllowed,
		ts.PointsScored, ts.PointsAllowed,
		ts.TurnoversForced, ts.TurnoversCommitted,
		ts.Sacks, ts.FieldGoals,
	}
	populated := 0
	for _, v := range fields {
		if v != 0 {
			populated++
		}
	}
	return float64(populated) / float64(len(fields))
}

// recordEfficiency flattens one side's efficiency calculation into trace
// input/output maps the verifier can recompute
func recordEfficiency(inputs, outputs map[string]float64, side string, profile *EfficiencyProfile, team *TeamGameStats, baseline *OpponentBaseline) {
	raws := map[string]float64{
		CategoryScoring:        team.PerGame(team.PointsScored),
		CategoryPassingOffense: team.PerGame(team.PassingYards),
		CategoryRushingOffense: team.PerGame(team.RushingYards),
		CategoryPassingDefense: team.PerGame(team.PassingYardsAllowed),
		CategoryRushingDefense: team.PerGame(team.RushingYardsAllowed),
		CategoryTurnovers:      team.PerGame(team.TurnoversForced - team.TurnoversCommitted),
		CategorySpecialTeams:   team.PerGame(team.FieldGoals),
	}
	baselines := map[string]float64{
		CategoryScoring:        baseline.PerGame(baseline.PointsAllowed),
		CategoryPassingOffense: baseline.PerGame(baseline.PassingYardsAllowed),
		CategoryRushingOffense: baseline.PerGame(baseline.RushingYardsAllowed),
		CategoryPassingDefense: baseline.PerGame(baseline.PassingYards),
		CategoryRushingDefense: baseline.PerGame(baseline.RushingYards),
		CategoryTurnovers:      baseline.PerGame(baseline.TurnoversCommitted - baseline.TurnoversForced),
		CategorySpecialTeams:   baseline.PerGame(baseline.FieldGoals),
	}

	for _, category := range EfficiencyCategories() {
		key := side + "_" + category
		inputs[key+"_raw"] = raws[category]
		inputs[key+"_baseline"] = baselines[category]
		if IsDefensiveCategory(category) {
			inputs[key+"_defensive"] = 1
		} else {
			inputs[key+"_defensive"] = 0
		}
		outputs[key] = profile.Value(category)
	}
}

// recordContributions flattens a breakdown into trace input/output maps
func recordContributions(inputs, outputs map[string]float64, side string, breakdown *TeamBreakdown) {
	for _, c := range breakdown.Contributions {
		key := side + "_" + c.Category
		inputs[key+"_efficiency"] = c.Efficiency
		inputs[key+"_weight"] = c.Weight
		outputs[key+"_contribution"] = c.Contribution
	}
}

// GradePrediction stores a prediction against its game so accuracy can be
// evaluated once the final score lands
func GradePrediction(gameID, season string, prediction *MatchupPrediction) error {
	g := &Game{GameID: gameID, Season: season}
	if err := FindByPrimaryKey(g, g.GetPrimaryKey()); err != nil {
		return fmt.Errorf("cannot grade prediction: %w", err)
	}

	g.PredictedHomeScore = prediction.HomeExpectedScore
	g.PredictedAwayScore = prediction.AwayExpectedScore
	return Save(g)
}
